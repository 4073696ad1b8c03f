package filter

import (
	"github.com/japaniel/mozcfilter/pkg/errors"
	"github.com/japaniel/mozcfilter/pkg/record"
)

const (
	// DefaultMinFields is the field count below which a line is malformed.
	DefaultMinFields = 5
	// DefaultMaxSurfaceLen is the rune length above which SkipLongEntries drops a surface.
	DefaultMaxSurfaceLen = 16
)

// Exclusion names one (surface, reading) pair to drop from a source.
type Exclusion struct {
	Surface string `mapstructure:"surface" yaml:"surface"`
	Reading string `mapstructure:"reading" yaml:"reading"`
}

// Config is the rule set applied to one source. The zero value applies only
// the unconditional rules (field count, symbol-only-in-reading, leading ん).
type Config struct {
	// CleanLast strips '(' and ')' from the reading field before anything else.
	CleanLast bool `mapstructure:"clean_last" yaml:"clean_last"`
	// RemoveExclamation strips '!' from the reading field.
	RemoveExclamation bool `mapstructure:"remove_exclamation" yaml:"remove_exclamation"`
	// ExtraFilter rejects readings containing '・', '！' or '？'.
	ExtraFilter bool `mapstructure:"extra_filter" yaml:"extra_filter"`
	// RequireFilter enables the reading consistency check and the known-reading exclusion.
	RequireFilter bool `mapstructure:"require_filter" yaml:"require_filter"`
	// SkipLongEntries rejects surfaces longer than MaxSurfaceLen runes.
	SkipLongEntries bool `mapstructure:"skip_long_entries" yaml:"skip_long_entries"`
	MaxSurfaceLen   int  `mapstructure:"max_surface_len" yaml:"max_surface_len"`
	// SkipIdentical drops entries whose surface equals their reading only when
	// the surface is already in the baseline.
	SkipIdentical bool `mapstructure:"skip_identical" yaml:"skip_identical"`
	// MinFields is the minimum tab-separated field count. Zero means DefaultMinFields.
	MinFields int           `mapstructure:"min_fields" yaml:"min_fields"`
	Format    record.Format `mapstructure:"format" yaml:"format"`

	Exclusions []Exclusion `mapstructure:"exclusions" yaml:"exclusions"`

	// POSField and POSAllow form the optional part-of-speech gate: when POSAllow
	// is non-empty, field POSField must equal one of its values.
	POSField int      `mapstructure:"pos_field" yaml:"pos_field"`
	POSAllow []string `mapstructure:"pos_allow" yaml:"pos_allow"`
}

// WithDefaults fills zero-valued numeric and format fields.
func (c Config) WithDefaults() Config {
	if c.MinFields == 0 {
		c.MinFields = DefaultMinFields
	}
	if c.MaxSurfaceLen == 0 {
		c.MaxSurfaceLen = DefaultMaxSurfaceLen
	}
	if c.Format == "" {
		c.Format = record.FormatTSV
	}
	return c
}

// Validate checks c after defaults are applied.
func (c Config) Validate() error {
	c = c.WithDefaults()
	if c.MinFields < 1 {
		return errors.NewConfigError("min_fields", c.MinFields, "must be at least 1")
	}
	if c.MaxSurfaceLen < 1 {
		return errors.NewConfigError("max_surface_len", c.MaxSurfaceLen, "must be at least 1")
	}
	switch c.Format {
	case record.FormatTSV, record.FormatMeCab:
	default:
		return errors.NewConfigError("format", c.Format, "must be tsv or mecab")
	}
	if len(c.POSAllow) > 0 && c.POSField < 1 {
		return errors.NewConfigError("pos_field", c.POSField, "must point past the surface field when pos_allow is set")
	}
	return nil
}
