// Package filter decides, record by record, whether a candidate dictionary
// entry is kept, dropped as already covered or malformed, or flagged for review
// because its reading looks inconsistent with its surface.
package filter

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/japaniel/mozcfilter/pkg/corpus"
	"github.com/japaniel/mozcfilter/pkg/kana"
	"github.com/japaniel/mozcfilter/pkg/reading"
	"github.com/japaniel/mozcfilter/pkg/record"
)

// Verdict is the outcome for one record.
type Verdict int

const (
	Kept Verdict = iota
	Dropped
	Flagged
)

func (v Verdict) String() string {
	switch v {
	case Kept:
		return "kept"
	case Dropped:
		return "dropped"
	case Flagged:
		return "flagged"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Reason names the rule that produced a verdict.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonMalformed         Reason = "malformed"
	ReasonExcluded          Reason = "excluded"
	ReasonPOS               Reason = "pos"
	ReasonTooLong           Reason = "too_long"
	ReasonSymbolInReading   Reason = "symbol_in_reading"
	ReasonStartsWithN       Reason = "starts_with_n"
	ReasonInvalidChar       Reason = "invalid_reading_char"
	ReasonIdentical         Reason = "identical"
	ReasonIdenticalKnown    Reason = "identical_known"
	ReasonSuspiciousReading Reason = "suspicious_reading"
	ReasonReadingKnown      Reason = "reading_known"
)

// invalidReadingChars are rejected by ExtraFilter.
const invalidReadingChars = "・！？"

// Decision is the evaluation of one record.
type Decision struct {
	LineNo  int
	Verdict Verdict
	Reason  Reason
	// Line is the original input line, written verbatim when kept or flagged.
	Line    string
	Surface string
	Reading string
	// OracleReading is the hiragana oracle reading, set once rule 7 ran.
	OracleReading string
	// Unexplained lists the kana of the reading the oracle reading lacks (flagged only).
	Unexplained string
}

// Stats counts verdicts for one source.
type Stats struct {
	Total   int
	Kept    int
	Flagged int
	Dropped map[Reason]int
}

// DroppedTotal sums all drop reasons.
func (s Stats) DroppedTotal() int {
	n := 0
	for _, c := range s.Dropped {
		n += c
	}
	return n
}

// Outcome partitions one source. Kept and Flagged preserve input order.
type Outcome struct {
	Source  string
	Kept    []string
	Flagged []Decision
	Stats   Stats
	// Missing is set when the source file did not exist.
	Missing bool
	// ReducedConfidence is set when the oracle was a degraded fallback.
	ReducedConfidence bool
}

// FlaggedLines returns the original lines of flagged records.
func (o Outcome) FlaggedLines() []string {
	out := make([]string, len(o.Flagged))
	for i, d := range o.Flagged {
		out[i] = d.Line
	}
	return out
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for per-record diagnostics (debug level).
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithObserver registers fn to receive every decision. It is called
// synchronously and cannot influence the outcome.
func WithObserver(fn func(Decision)) Option {
	return func(e *Engine) { e.observer = fn }
}

// Engine applies one Config against a shared corpus and oracle. An Engine
// holds no per-record state and may be used from several goroutines when the
// oracle allows it.
type Engine struct {
	cfg        Config
	corpus     *corpus.Corpus
	oracle     reading.Oracle
	log        zerolog.Logger
	observer   func(Decision)
	exclusions map[Exclusion]struct{}
	posAllow   map[string]struct{}
}

// New validates cfg and returns an Engine.
func New(cfg Config, c *corpus.Corpus, o reading.Oracle, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if c == nil {
		c = corpus.New(nil, nil, nil)
	}
	if o == nil {
		o = reading.Fallback{}
	}
	e := &Engine{
		cfg:        cfg.WithDefaults(),
		corpus:     c,
		oracle:     o,
		log:        zerolog.Nop(),
		exclusions: make(map[Exclusion]struct{}, len(cfg.Exclusions)),
		posAllow:   make(map[string]struct{}, len(cfg.POSAllow)),
	}
	for _, ex := range cfg.Exclusions {
		e.exclusions[ex] = struct{}{}
	}
	for _, p := range cfg.POSAllow {
		e.posAllow[p] = struct{}{}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Evaluate applies the rules to rec in order; the first matching rule decides.
func (e *Engine) Evaluate(rec record.Record) Decision {
	cfg := e.cfg
	d := Decision{Line: rec.Line, Surface: rec.Surface()}

	if rec.FieldCount() < cfg.MinFields {
		return e.drop(d, ReasonMalformed)
	}

	surface := rec.Surface()
	readingField := rec.ReadingField()
	if cfg.CleanLast {
		readingField = kana.StripParens(readingField)
	}
	d.Reading = readingField

	if _, ok := e.exclusions[Exclusion{Surface: surface, Reading: readingField}]; ok {
		return e.drop(d, ReasonExcluded)
	}

	if len(e.posAllow) > 0 {
		if _, ok := e.posAllow[rec.Field(cfg.POSField)]; !ok {
			return e.drop(d, ReasonPOS)
		}
	}

	if cfg.SkipLongEntries && utf8.RuneCountInString(surface) > cfg.MaxSurfaceLen {
		return e.drop(d, ReasonTooLong)
	}

	// A symbol only in the reading is a formatting artifact, not a reading.
	if kana.HasSymbol(readingField) && !kana.HasSymbol(surface) {
		return e.drop(d, ReasonSymbolInReading)
	}

	if strings.HasPrefix(surface, "ん") {
		return e.drop(d, ReasonStartsWithN)
	}

	if cfg.RemoveExclamation {
		readingField = strings.ReplaceAll(readingField, "!", "")
		d.Reading = readingField
	}

	if cfg.ExtraFilter && strings.ContainsAny(readingField, invalidReadingChars) {
		return e.drop(d, ReasonInvalidChar)
	}

	surfaceClean := strings.TrimSpace(kana.StripDots(surface))
	readingHira := strings.TrimSpace(kana.KatakanaToHiragana(readingField))

	if (cfg.RequireFilter || cfg.SkipIdentical) && surfaceClean == readingHira {
		if cfg.SkipIdentical {
			if e.corpus.HasSurface(surfaceClean) || e.corpus.HasSurface(surface) {
				return e.drop(d, ReasonIdenticalKnown)
			}
		} else {
			return e.drop(d, ReasonIdentical)
		}
	}

	if cfg.RequireFilter {
		oracleHira := strings.TrimSpace(kana.KatakanaToHiragana(e.oracle.Reading(surfaceClean)))
		d.OracleReading = oracleHira
		if diff := kana.ExtractKana(readingHira).Difference(kana.ExtractKana(oracleHira)); len(diff) > 0 {
			d.Unexplained = diff.String()
			return e.flag(d)
		}
		if e.corpus.HasReading(readingField) {
			return e.drop(d, ReasonReadingKnown)
		}
	}

	d.Verdict = Kept
	return d
}

func (e *Engine) drop(d Decision, reason Reason) Decision {
	d.Verdict = Dropped
	d.Reason = reason
	return d
}

func (e *Engine) flag(d Decision) Decision {
	d.Verdict = Flagged
	d.Reason = ReasonSuspiciousReading
	return d
}

// Filter evaluates every line of r and partitions the results.
func (e *Engine) Filter(ctx context.Context, r io.Reader) (Outcome, error) {
	out := Outcome{
		Stats:             Stats{Dropped: make(map[Reason]int)},
		ReducedConfidence: reading.IsReduced(e.oracle),
	}
	err := record.Scan(r, e.cfg.Format, func(lineNo int, rec record.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		d := e.Evaluate(rec)
		d.LineNo = lineNo
		e.report(d)

		out.Stats.Total++
		switch d.Verdict {
		case Kept:
			out.Kept = append(out.Kept, d.Line)
			out.Stats.Kept++
		case Flagged:
			out.Flagged = append(out.Flagged, d)
			out.Stats.Flagged++
		default:
			out.Stats.Dropped[d.Reason]++
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// FilterFile filters the file at path. A missing file is logged and yields an
// empty outcome with Missing set, not an error.
func (e *Engine) FilterFile(ctx context.Context, path string) (Outcome, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			e.log.Warn().Str("source", path).Msg("source file not found, skipping")
			return Outcome{
				Source:            path,
				Missing:           true,
				Stats:             Stats{Dropped: make(map[Reason]int)},
				ReducedConfidence: reading.IsReduced(e.oracle),
			}, nil
		}
		return Outcome{}, fmt.Errorf("open source %s: %w", path, err)
	}
	defer f.Close()

	out, err := e.Filter(ctx, f)
	if err != nil {
		return Outcome{}, fmt.Errorf("filter %s: %w", path, err)
	}
	out.Source = path
	return out, nil
}

func (e *Engine) report(d Decision) {
	if e.observer != nil {
		e.observer(d)
	}
	// Malformed lines are expected noise in bulk corpora.
	if d.Verdict == Kept || d.Reason == ReasonMalformed {
		return
	}
	ev := e.log.Debug().
		Int("line", d.LineNo).
		Str("rule", string(d.Reason)).
		Str("surface", d.Surface).
		Str("reading", d.Reading)
	if d.Verdict == Flagged {
		ev = ev.Str("oracle", d.OracleReading).Str("unexplained", d.Unexplained)
	}
	ev.Msg(d.Verdict.String())
}
