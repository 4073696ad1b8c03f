package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/japaniel/mozcfilter/pkg/config"
	"github.com/japaniel/mozcfilter/pkg/corpus"
	"github.com/japaniel/mozcfilter/pkg/db"
	"github.com/japaniel/mozcfilter/pkg/errors"
	"github.com/japaniel/mozcfilter/pkg/logging"
	"github.com/japaniel/mozcfilter/pkg/reading"
)

// app holds what every command needs once flags are parsed.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configFile string
	format     string

	cfg      *config.Config
	log      zerolog.Logger
	closeLog func() error
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, log: logging.Nop()}
}

func (a *app) execute(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	err := root.ExecuteContext(ctx)
	if a.closeLog != nil {
		if cerr := a.closeLog(); cerr != nil && err == nil {
			err = fmt.Errorf("close log: %w", cerr)
		}
	}
	return err
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "mozcfilter",
		Short: "Filter candidate dictionary entries against the Mozc system dictionary",
		Long: `mozcfilter removes candidate entries that the Mozc system dictionary already
covers or that are malformed, and sets aside entries whose reading does not
match what the morphological analyzer produces for the surface.

Configuration is read from --config (or ./mozcfilter.yaml), .env files and
MOZCFILTER_* environment variables. Flags take precedence.`,
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default is ./mozcfilter.yaml)")
	pf.StringVarP(&a.format, "output", "o", "table", "summary format: table, json, yaml")
	pf.String("log-level", "info", "log level: trace, debug, info, warn, error")
	pf.String("log-format", "auto", "log format: auto, json, console")
	pf.String("log-output", "stderr", "log destination: stderr, stdout, discard or a file path")
	pf.Bool("no-color", false, "disable colored console logs")
	pf.String("db", "", "sqlite run report path (empty disables the report)")
	pf.Bool("allow-fallback", false, "run with kana-only readings when the analyzer is unavailable")
	pf.Int("workers", 1, "number of sources filtered concurrently")
	pf.String("corpus-dir", "./mozc", "directory holding the Mozc dictionary0N.txt files")

	root.AddCommand(
		a.newRunCommand(),
		a.newFilterCommand(),
		a.newCompareCommand(),
		a.newCorpusCommand(),
		a.newFetchCommand(),
		a.newReportCommand(),
	)
	return root
}

// setup loads configuration and the logger before any command runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	switch a.format {
	case "table", "json", "yaml":
	default:
		return errors.NewConfigError("output", a.format, "must be table, json or yaml")
	}
	cfg, err := config.Load(config.Options{File: a.configFile, Flags: cmd.Flags()})
	if err != nil {
		return err
	}
	a.cfg = cfg
	log, closeLog, err := logging.Open(cfg.Log)
	if err != nil {
		return errors.NewConfigError("log.output", cfg.Log.Output, err.Error())
	}
	a.log, a.closeLog = log, closeLog
	if cfg.ConfigFile != "" {
		a.log.Debug().Str("file", cfg.ConfigFile).Msg("configuration loaded")
	}
	return nil
}

func (a *app) openOracle() (reading.Oracle, error) {
	o, err := reading.Open(a.cfg.AllowFallback, a.log)
	if err != nil {
		return nil, fmt.Errorf("%w (use --allow-fallback to run with kana-only readings)", err)
	}
	return reading.NewCached(o), nil
}

func (a *app) loadCorpus(ctx context.Context) (*corpus.Corpus, error) {
	return corpus.Load(ctx, a.cfg.Run.CorpusDir, corpus.Options{
		Pattern:    a.cfg.Run.CorpusPattern,
		SuffixFile: a.cfg.Run.SuffixFile,
		Logger:     a.log,
	})
}

// openReport opens the run report database. It returns nil when no path is
// configured.
func (a *app) openReport() (*sql.DB, error) {
	if a.cfg.DB == "" {
		return nil, nil
	}
	conn, err := db.Open(a.cfg.DB)
	if err != nil {
		return nil, err
	}
	a.log.Debug().Str("db", a.cfg.DB).Msg("run report database ready")
	return conn, nil
}
