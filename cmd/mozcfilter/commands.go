package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/japaniel/mozcfilter/pkg/compare"
	"github.com/japaniel/mozcfilter/pkg/corpus"
	"github.com/japaniel/mozcfilter/pkg/db"
	"github.com/japaniel/mozcfilter/pkg/errors"
	"github.com/japaniel/mozcfilter/pkg/filter"
	"github.com/japaniel/mozcfilter/pkg/pipeline"
	"github.com/japaniel/mozcfilter/pkg/record"
)

func (a *app) newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Filter every configured source and compare the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			oracle, err := a.openOracle()
			if err != nil {
				return err
			}
			opts := []pipeline.Option{pipeline.WithLogger(a.log)}
			conn, err := a.openReport()
			if err != nil {
				return err
			}
			var rec *db.Recorder
			if conn != nil {
				defer conn.Close()
				rec = db.NewRecorder(conn, a.log)
				opts = append(opts, pipeline.WithRecorder(rec))
			}

			runner, err := pipeline.NewRunner(a.cfg.Run, oracle, opts...)
			if err != nil {
				return err
			}
			rep, err := runner.Run(ctx)
			if err != nil {
				return err
			}
			sum := summarizeRun(rep, a.cfg.Run.Comparison)
			if rec != nil {
				sum.RunID = rec.RunID()
			}
			return a.render(sum)
		},
	}
	cmd.Flags().Bool("skip-comparison", false, "do not run the comparison step")
	return cmd
}

// ruleFlags are the per-source rule switches of the filter command.
type ruleFlags struct {
	cleanLast         bool
	removeExclamation bool
	extraFilter       bool
	requireFilter     bool
	skipLong          bool
	maxLen            int
	skipIdentical     bool
	minFields         int
	format            string
	exclude           []string
	posField          int
	posAllow          []string
}

func (f ruleFlags) config() (filter.Config, error) {
	cfg := filter.Config{
		CleanLast:         f.cleanLast,
		RemoveExclamation: f.removeExclamation,
		ExtraFilter:       f.extraFilter,
		RequireFilter:     f.requireFilter,
		SkipLongEntries:   f.skipLong,
		MaxSurfaceLen:     f.maxLen,
		SkipIdentical:     f.skipIdentical,
		MinFields:         f.minFields,
		Format:            record.Format(f.format),
		POSField:          f.posField,
		POSAllow:          f.posAllow,
	}
	for _, ex := range f.exclude {
		surface, rd, ok := strings.Cut(ex, "=")
		if !ok || surface == "" {
			return filter.Config{}, errors.NewConfigError("exclude", ex, "must be surface=reading")
		}
		cfg.Exclusions = append(cfg.Exclusions, filter.Exclusion{Surface: surface, Reading: rd})
	}
	return cfg, cfg.Validate()
}

func (a *app) newFilterCommand() *cobra.Command {
	var rf ruleFlags
	cmd := &cobra.Command{
		Use:   "filter <input> <output> [flagged-output]",
		Short: "Filter one candidate file with the given rules",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := rf.config()
			if err != nil {
				return err
			}
			src := pipeline.Source{Name: "adhoc", Input: args[0], Output: args[1], Filter: cfg}
			if len(args) == 3 {
				src.FlaggedOutput = args[2]
			}
			if _, err := os.Stat(src.Input); os.IsNotExist(err) {
				return errors.NewMissingInputError(src.Input)
			}

			c, err := a.loadCorpus(ctx)
			if err != nil {
				return err
			}
			oracle, err := a.openOracle()
			if err != nil {
				return err
			}
			e, err := filter.New(cfg, c, oracle, filter.WithLogger(a.log))
			if err != nil {
				return err
			}
			out, err := e.FilterFile(ctx, src.Input)
			if err != nil {
				return err
			}
			out.Source = src.Name
			if err := pipeline.WriteOutcome(src, out); err != nil {
				return err
			}
			return a.render(summarizeOutcome(out))
		},
	}
	fl := cmd.Flags()
	fl.BoolVar(&rf.cleanLast, "clean-last", false, "strip parentheses from the reading")
	fl.BoolVar(&rf.removeExclamation, "remove-exclamation", false, "strip '!' from the reading")
	fl.BoolVar(&rf.extraFilter, "extra-filter", false, "drop readings containing ・！？")
	fl.BoolVar(&rf.requireFilter, "require-filter", false, "check readings against the analyzer and drop known readings")
	fl.BoolVar(&rf.skipLong, "skip-long", false, "drop surfaces longer than --max-len")
	fl.IntVar(&rf.maxLen, "max-len", filter.DefaultMaxSurfaceLen, "surface length limit for --skip-long")
	fl.BoolVar(&rf.skipIdentical, "skip-identical", false, "drop surface==reading entries only when the surface is already known")
	fl.IntVar(&rf.minFields, "min-fields", filter.DefaultMinFields, "minimum tab-separated fields")
	fl.StringVar(&rf.format, "format", string(record.FormatTSV), "record format: tsv or mecab")
	fl.StringArrayVar(&rf.exclude, "exclude", nil, "surface=reading pair to drop (repeatable)")
	fl.IntVar(&rf.posField, "pos-field", 0, "field index of the part of speech")
	fl.StringSliceVar(&rf.posAllow, "pos-allow", nil, "allowed part-of-speech values")
	return cmd
}

func (a *app) newCompareCommand() *cobra.Command {
	var paths compare.Paths
	cmd := &cobra.Command{
		Use:   "compare <left> <right>",
		Short: "Partition two filtered files into common, left-only and right-only entries",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := compare.CompareFiles(cmd.Context(), args[0], args[1], a.log)
			if err != nil {
				return err
			}
			if res.Skipped {
				for _, p := range args {
					if _, err := os.Stat(p); os.IsNotExist(err) {
						return errors.NewMissingInputError(p)
					}
				}
			}
			if err := compare.WriteFiles(res, paths); err != nil {
				return err
			}
			return a.render(summarizeComparison(args[0], args[1], res))
		},
	}
	cmd.Flags().StringVar(&paths.Common, "common", "", "write common entries here")
	cmd.Flags().StringVar(&paths.LeftOnly, "left-only", "", "write left-only entries here")
	cmd.Flags().StringVar(&paths.RightOnly, "right-only", "", "write right-only entries here")
	return cmd
}

func (a *app) newCorpusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "corpus",
		Short: "Load the reference corpus and print its size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.loadCorpus(cmd.Context())
			if err != nil {
				return err
			}
			return a.render(summarizeCorpus(c.Stats()))
		},
	}
}

func (a *app) newReportCommand() *cobra.Command {
	var runID int64
	var flaggedSource string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show a recorded run from the report database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.DB == "" {
				return errors.NewConfigError("db", "", "report needs --db")
			}
			if _, err := os.Stat(a.cfg.DB); os.IsNotExist(err) {
				return errors.NewMissingInputError(a.cfg.DB)
			}
			conn, err := a.openReport()
			if err != nil {
				return err
			}
			defer conn.Close()

			var run db.Run
			if runID > 0 {
				run, err = db.GetRun(conn, runID)
			} else {
				run, err = db.LatestRun(conn)
			}
			if err != nil {
				return fmt.Errorf("load run: %w", err)
			}

			if flaggedSource != "" {
				entries, err := db.FlaggedBySource(conn, run.ID, flaggedSource)
				if err != nil {
					return err
				}
				return a.render(summarizeFlagged(entries))
			}

			stats, err := db.GetSourceStats(conn, run.ID)
			if err != nil {
				return err
			}
			cmps, err := db.GetComparisons(conn, run.ID)
			if err != nil {
				return err
			}
			return a.render(summarizeStoredRun(run, stats, cmps))
		},
	}
	cmd.Flags().Int64Var(&runID, "run", 0, "run id (default is the latest run)")
	cmd.Flags().StringVar(&flaggedSource, "flagged", "", "list the flagged entries of this source")
	return cmd
}

func (a *app) newFetchCommand() *cobra.Command {
	var opts corpus.FetchOptions
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the Mozc system dictionary files missing from the corpus directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Logger = a.log
			got, err := corpus.Fetch(cmd.Context(), a.cfg.Run.CorpusDir, opts)
			if err != nil {
				return err
			}
			a.log.Info().Int("files", len(got)).Str("dir", a.cfg.Run.CorpusDir).Msg("fetch finished")
			return a.render(fetchSummary{Dir: a.cfg.Run.CorpusDir, Fetched: got})
		},
	}
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", corpus.DefaultBaseURL, "location of the dictionary0N.txt files")
	cmd.Flags().StringSliceVar(&opts.Files, "files", nil, "file names to fetch (default dictionary00.txt to dictionary09.txt)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "download files that already exist")
	return cmd
}
