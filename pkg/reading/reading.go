// Package reading supplies the reading oracle: given a surface form it returns
// the most likely reading. The filter engine normalizes the result to hiragana.
package reading

import (
	"strings"
	"sync"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
	"github.com/rs/zerolog"

	"github.com/japaniel/mozcfilter/pkg/errors"
	"github.com/japaniel/mozcfilter/pkg/kana"
)

// Oracle returns a reading for a surface string. Implementations must be safe
// for concurrent use.
type Oracle interface {
	Reading(surface string) string
}

// Confidence is implemented by oracles that can report reduced fidelity.
type Confidence interface {
	ReducedConfidence() bool
}

// IsReduced reports whether o marks its readings as reduced-confidence.
func IsReduced(o Oracle) bool {
	c, ok := o.(Confidence)
	return ok && c.ReducedConfidence()
}

// Func adapts a plain function to Oracle.
type Func func(surface string) string

func (f Func) Reading(surface string) string { return f(surface) }

// Map is an Oracle backed by a lookup table; unknown surfaces read as themselves.
type Map map[string]string

func (m Map) Reading(surface string) string {
	if r, ok := m[surface]; ok {
		return r
	}
	return surface
}

// Kagome reads surfaces with the kagome morphological analyzer.
type Kagome struct {
	t *tokenizer.Tokenizer
}

// NewKagome creates a tokenizer over the IPA dictionary.
func NewKagome() (*Kagome, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, &errors.OracleUnavailableError{Oracle: "kagome", Err: err}
	}
	return &Kagome{t: t}, nil
}

// Reading concatenates the per-token readings of surface.
func (k *Kagome) Reading(surface string) string {
	if surface == "" {
		return ""
	}
	var b strings.Builder
	for _, token := range k.t.Tokenize(surface) {
		if token.Class == tokenizer.DUMMY {
			continue
		}
		// IPA features: 0-5 POS and conjugation, 6 base form, 7 reading, 8 pronunciation.
		features := token.Features()
		if len(features) > 7 && features[7] != "*" && features[7] != "" {
			b.WriteString(features[7])
			continue
		}
		b.WriteString(token.Surface)
	}
	return b.String()
}

// Fallback converts katakana to hiragana and leaves kanji untouched. It is the
// degraded mode used when the tokenizer cannot be initialized; readings of
// kanji surfaces will not match, so results are marked reduced-confidence.
type Fallback struct{}

func (Fallback) Reading(surface string) string { return kana.KatakanaToHiragana(surface) }

func (Fallback) ReducedConfidence() bool { return true }

// Open returns the kagome oracle, or Fallback when kagome fails and
// allowFallback is set. Without allowFallback the initialization error is returned.
func Open(allowFallback bool, log zerolog.Logger) (Oracle, error) {
	k, err := NewKagome()
	if err == nil {
		return k, nil
	}
	if !allowFallback {
		return nil, err
	}
	log.Warn().Err(err).Msg("reading oracle unavailable, falling back to kana-only conversion; results are reduced-confidence")
	return Fallback{}, nil
}

// Name identifies an oracle in logs and run reports.
func Name(o Oracle) string {
	switch v := o.(type) {
	case *Cached:
		return Name(v.next)
	case *Kagome:
		return "kagome"
	case Fallback:
		return "fallback"
	default:
		return "custom"
	}
}

// Cached memoizes another oracle. Source files repeat surfaces often enough
// that tokenizing each once pays off.
type Cached struct {
	next  Oracle
	cache sync.Map
}

// NewCached wraps next.
func NewCached(next Oracle) *Cached {
	return &Cached{next: next}
}

func (c *Cached) Reading(surface string) string {
	if v, ok := c.cache.Load(surface); ok {
		return v.(string)
	}
	r := c.next.Reading(surface)
	c.cache.Store(surface, r)
	return r
}

func (c *Cached) ReducedConfidence() bool { return IsReduced(c.next) }
