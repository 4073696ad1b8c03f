// Package config loads run configuration from, in order of precedence,
// command-line flags, MOZCFILTER_* environment variables, .env files, an
// optional YAML file and built-in defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/japaniel/mozcfilter/pkg/errors"
	"github.com/japaniel/mozcfilter/pkg/logging"
	"github.com/japaniel/mozcfilter/pkg/pipeline"
)

// EnvPrefix prefixes every environment variable read.
const EnvPrefix = "MOZCFILTER"

// DefaultConfigName is looked up in the working directory when no file is given.
const DefaultConfigName = "mozcfilter"

// Config is the full application configuration.
type Config struct {
	Run pipeline.Config `mapstructure:",squash"`
	Log logging.Config  `mapstructure:"log"`

	// DB is the sqlite run report path. Empty disables the report.
	DB string `mapstructure:"db"`
	// AllowFallback permits running with the kana-only oracle when the
	// tokenizer cannot be initialized.
	AllowFallback bool `mapstructure:"allow_fallback"`
	// SkipComparison disables the comparison step.
	SkipComparison bool `mapstructure:"skip_comparison"`

	// ConfigFile is the file actually read, empty when none was found.
	ConfigFile string `mapstructure:"-"`
}

// Options controls where Load looks.
type Options struct {
	// File is an explicit config file. A missing explicit file is an error.
	File string
	// Flags are bound over file and environment values when set.
	Flags *pflag.FlagSet
	// EnvFiles are loaded into the process environment first. Earlier files
	// take precedence. Nil means .env.local then .env.
	EnvFiles []string
	// SearchPaths are searched for DefaultConfigName.yaml. Nil means ".".
	SearchPaths []string
}

// flagKeys maps CLI flag names to configuration keys.
var flagKeys = map[string]string{
	"corpus-dir":      "corpus_dir",
	"workers":         "workers",
	"db":              "db",
	"allow-fallback":  "allow_fallback",
	"skip-comparison": "skip_comparison",
	"log-level":       "log.level",
	"log-format":      "log.format",
	"log-output":      "log.output",
	"no-color":        "log.no_color",
}

// Load builds a Config.
func Load(opts Options) (*Config, error) {
	loadEnvFiles(opts.EnvFiles)

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := readConfigFile(v, opts); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewConfigError("file", v.ConfigFileUsed(), err.Error())
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	if !v.IsSet("sources") {
		cfg.Run.Sources = pipeline.DefaultSources()
	}
	if cfg.SkipComparison {
		cfg.Run.Comparison = nil
	} else if cfg.Run.Comparison == nil {
		cmp := pipeline.DefaultComparison()
		cfg.Run.Comparison = &cmp
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "", "auto", "json", "console", "pretty":
	default:
		return errors.NewConfigError("log.format", c.Log.Format, "must be auto, json or console")
	}
	return c.Run.Validate()
}

func setDefaults(v *viper.Viper) {
	d := pipeline.DefaultConfig()
	v.SetDefault("corpus_dir", d.CorpusDir)
	v.SetDefault("corpus_pattern", d.CorpusPattern)
	v.SetDefault("suffix_file", d.SuffixFile)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("db", "")
	v.SetDefault("allow_fallback", false)
	v.SetDefault("skip_comparison", false)

	l := logging.DefaultConfig()
	v.SetDefault("log.level", l.Level)
	v.SetDefault("log.format", l.Format)
	v.SetDefault("log.output", l.Output)
	v.SetDefault("log.no_color", l.NoColor)
}

func readConfigFile(v *viper.Viper, opts Options) error {
	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return errors.NewConfigError("config", opts.File, err.Error())
		}
		return nil
	}

	paths := opts.SearchPaths
	if paths == nil {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName(DefaultConfigName)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.NewConfigError("config", DefaultConfigName+".yaml", err.Error())
	}
	return nil
}

// loadEnvFiles loads environment variables from .env files. godotenv never
// overrides variables already set, so earlier files win.
func loadEnvFiles(files []string) {
	if files == nil {
		files = []string{".env.local", ".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}
