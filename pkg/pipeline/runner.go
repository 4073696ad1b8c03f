package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/japaniel/mozcfilter/pkg/compare"
	"github.com/japaniel/mozcfilter/pkg/corpus"
	"github.com/japaniel/mozcfilter/pkg/errors"
	"github.com/japaniel/mozcfilter/pkg/filter"
	"github.com/japaniel/mozcfilter/pkg/reading"
)

// Config describes one run.
type Config struct {
	CorpusDir     string          `mapstructure:"corpus_dir" yaml:"corpus_dir"`
	CorpusPattern string          `mapstructure:"corpus_pattern" yaml:"corpus_pattern"`
	SuffixFile    string          `mapstructure:"suffix_file" yaml:"suffix_file"`
	Sources       []Source        `mapstructure:"sources" yaml:"sources"`
	Comparison    *ComparisonSpec `mapstructure:"comparison" yaml:"comparison"`
	// Workers is the number of sources filtered concurrently. Zero means one.
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// DefaultConfig returns the standard run layout.
func DefaultConfig() Config {
	cmp := DefaultComparison()
	return Config{
		CorpusDir:     "./mozc",
		CorpusPattern: corpus.DefaultPattern,
		SuffixFile:    filepath.Join("./mozc", "suffix.txt"),
		Sources:       DefaultSources(),
		Comparison:    &cmp,
		Workers:       1,
	}
}

// Validate checks the run configuration.
func (c Config) Validate() error {
	if c.CorpusDir == "" {
		return errors.NewConfigError("corpus_dir", c.CorpusDir, "must not be empty")
	}
	if c.Workers < 0 {
		return errors.NewConfigError("workers", c.Workers, "must not be negative")
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.Name] {
			return errors.NewConfigError("sources.name", s.Name, "duplicate source name")
		}
		seen[s.Name] = true
	}
	if c.Comparison != nil {
		return c.Comparison.Validate()
	}
	return nil
}

// RunInfo is what a Recorder learns when a run starts.
type RunInfo struct {
	StartedAt         time.Time
	Oracle            string
	ReducedConfidence bool
	Corpus            corpus.Stats
}

// Recorder persists a run report. Recording failures are logged and never
// abort the run.
type Recorder interface {
	StartRun(ctx context.Context, info RunInfo) error
	RecordSource(ctx context.Context, src Source, out filter.Outcome) error
	RecordComparison(ctx context.Context, spec ComparisonSpec, res compare.Result) error
	FinishRun(ctx context.Context, runErr error) error
}

// Report summarizes a finished run.
type Report struct {
	Corpus corpus.Stats
	// Outcomes are in configuration order.
	Outcomes   []filter.Outcome
	Comparison *compare.Result
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the run logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithRecorder attaches a run report recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithCorpus uses c instead of loading the corpus from CorpusDir.
func WithCorpus(c *corpus.Corpus) Option {
	return func(r *Runner) { r.corpus = c }
}

// Runner executes a Config.
type Runner struct {
	cfg      Config
	oracle   reading.Oracle
	corpus   *corpus.Corpus
	log      zerolog.Logger
	recorder Recorder
}

// NewRunner validates cfg and returns a Runner using oracle for readings.
func NewRunner(cfg Config, oracle reading.Oracle, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if oracle == nil {
		oracle = reading.Fallback{}
	}
	r := &Runner{cfg: cfg, oracle: oracle, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run loads the corpus, filters every source and runs the comparison. Output
// files already written stay in place when a later step fails.
func (r *Runner) Run(ctx context.Context) (rep Report, err error) {
	started := time.Now()
	c := r.corpus
	if c == nil {
		c, err = r.loadCorpus(ctx)
		if err != nil {
			return Report{}, err
		}
	}
	rep.Corpus = c.Stats()

	reduced := reading.IsReduced(r.oracle)
	if reduced {
		r.log.Warn().Str("oracle", reading.Name(r.oracle)).Msg("reading oracle is a fallback, results have reduced confidence")
	}
	r.record("start", func() error {
		return r.recorder.StartRun(ctx, RunInfo{
			StartedAt:         started,
			Oracle:            reading.Name(r.oracle),
			ReducedConfidence: reduced,
			Corpus:            rep.Corpus,
		})
	})
	defer func() {
		r.record("finish", func() error { return r.recorder.FinishRun(ctx, err) })
	}()

	rep.Outcomes, err = r.filterSources(ctx, c)
	if err != nil {
		return rep, err
	}

	if r.cfg.Comparison != nil {
		res, err := r.runComparison(ctx, *r.cfg.Comparison)
		if err != nil {
			return rep, err
		}
		rep.Comparison = &res
	}
	r.log.Info().Dur("elapsed", time.Since(started)).Msg("run finished")
	return rep, nil
}

func (r *Runner) loadCorpus(ctx context.Context) (*corpus.Corpus, error) {
	opts := corpus.Options{
		Pattern:    r.cfg.CorpusPattern,
		SuffixFile: r.cfg.SuffixFile,
		Logger:     r.log,
	}
	c, err := corpus.Load(ctx, r.cfg.CorpusDir, opts)
	if err != nil {
		return nil, fmt.Errorf("load reference corpus: %w", err)
	}
	return c, nil
}

// filterSources runs every source on the worker pool and returns the
// outcomes in configuration order.
func (r *Runner) filterSources(ctx context.Context, c *corpus.Corpus) ([]filter.Outcome, error) {
	engines := make([]*filter.Engine, len(r.cfg.Sources))
	for i, src := range r.cfg.Sources {
		e, err := filter.New(src.Filter, c, r.oracle, filter.WithLogger(r.log.With().Str("source", src.Name).Logger()))
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name, err)
		}
		engines[i] = e
	}

	outcomes := make([]filter.Outcome, len(r.cfg.Sources))
	pool := NewWorkerPool(r.cfg.Workers, len(r.cfg.Sources))
	pool.Start(ctx)
	for i := range r.cfg.Sources {
		if err := pool.SubmitCtx(ctx, func(ctx context.Context) error {
			out, err := r.filterSource(ctx, r.cfg.Sources[i], engines[i])
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		}); err != nil {
			_ = pool.Wait()
			return nil, err
		}
	}
	if err := pool.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, out := range outcomes {
		r.record("source", func() error { return r.recorder.RecordSource(ctx, r.cfg.Sources[i], out) })
	}
	return outcomes, nil
}

func (r *Runner) filterSource(ctx context.Context, src Source, e *filter.Engine) (filter.Outcome, error) {
	log := r.log.With().Str("source", src.Name).Logger()
	log.Info().Str("input", src.Input).Msg("filtering source")

	out, err := e.FilterFile(ctx, src.Input)
	if err != nil {
		return filter.Outcome{}, err
	}
	out.Source = src.Name
	if out.Missing {
		return out, nil
	}
	if err := WriteOutcome(src, out); err != nil {
		return filter.Outcome{}, err
	}

	ev := log.Info().
		Int("total", out.Stats.Total).
		Int("kept", out.Stats.Kept).
		Int("flagged", out.Stats.Flagged).
		Int("dropped", out.Stats.DroppedTotal()).
		Str("output", src.Output)
	if len(out.Flagged) > 0 && src.FlaggedOutput != "" {
		ev = ev.Str("flagged_output", src.FlaggedOutput)
	}
	ev.Msg("source filtered")
	if out.ReducedConfidence {
		log.Warn().Msg("source filtered with reduced-confidence readings")
	}
	return out, nil
}

// WriteOutcome writes the kept lines of out to src.Output (an empty file when
// nothing was kept) and the flagged lines to src.FlaggedOutput when there are
// any.
func WriteOutcome(src Source, out filter.Outcome) error {
	if err := compare.WriteLines(src.Output, out.Kept); err != nil {
		return err
	}
	if len(out.Flagged) > 0 && src.FlaggedOutput != "" {
		if err := compare.WriteLines(src.FlaggedOutput, out.FlaggedLines()); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runComparison(ctx context.Context, spec ComparisonSpec) (compare.Result, error) {
	res, err := compare.CompareFiles(ctx, spec.Left, spec.Right, r.log)
	if err != nil {
		return compare.Result{}, fmt.Errorf("compare %s and %s: %w", spec.Left, spec.Right, err)
	}
	if res.Skipped {
		r.log.Info().Msg("skipping comparison, an input is missing")
		r.record("comparison", func() error { return r.recorder.RecordComparison(ctx, spec, res) })
		return res, nil
	}
	if err := compare.WriteFiles(res, spec.Paths); err != nil {
		return compare.Result{}, err
	}
	r.log.Info().
		Int("common", len(res.Common)).
		Int("left_only", len(res.LeftOnly)).
		Int("right_only", len(res.RightOnly)).
		Msg("comparison written")
	r.record("comparison", func() error { return r.recorder.RecordComparison(ctx, spec, res) })
	return res, nil
}

func (r *Runner) record(step string, fn func() error) {
	if r.recorder == nil {
		return
	}
	if err := fn(); err != nil {
		r.log.Error().Err(err).Str("step", step).Msg("run report write failed")
	}
}
