// Package logging builds the zerolog loggers used across the pipeline.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Config holds logger configuration options
type Config struct {
	// Level is the minimum log level to output
	Level string `mapstructure:"level"`

	// Format is console, json, or auto (console when stderr is a terminal)
	Format string `mapstructure:"format"`

	// Output is stderr, stdout, discard, or a file path
	Output string `mapstructure:"output"`

	NoColor bool `mapstructure:"no_color"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Format:  "auto",
		Output:  "stderr",
		NoColor: os.Getenv("NO_COLOR") != "",
	}
}

// Open creates a logger from cfg. The close function releases the log file
// when Output names one and does nothing otherwise. A log file that cannot be
// opened is an error.
func Open(cfg Config) (zerolog.Logger, func() error, error) {
	w, closer, err := writer(cfg)
	if err != nil {
		return zerolog.Nop(), noClose, err
	}
	return build(w, cfg), closer, nil
}

// New creates a logger from cfg for callers that never close it. When the log
// file cannot be opened a warning goes to stderr and logging continues there.
func New(cfg Config) zerolog.Logger {
	l, _, err := Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v, logging to stderr\n", err)
		cfg.Output = "stderr"
		l, _, _ = Open(cfg)
	}
	return l
}

func build(w io.Writer, cfg Config) zerolog.Logger {
	return zerolog.New(w).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
}

func noClose() error { return nil }

// Nop returns a disabled logger.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

func writer(cfg Config) (io.Writer, func() error, error) {
	var out io.Writer
	closer := noClose
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	case "discard", "none":
		return io.Discard, noClose, nil
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, noClose, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f.Close
	}

	format := strings.ToLower(cfg.Format)
	if format == "" || format == "auto" {
		format = "json"
		if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			format = "console"
		}
	}

	if format == "console" || format == "pretty" {
		return zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
			NoColor:    cfg.NoColor,
		}, closer, nil
	}
	return out, closer, nil
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "", "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "none", "off":
		return zerolog.Disabled
	default:
		if l, err := zerolog.ParseLevel(level); err == nil {
			return l
		}
		return zerolog.InfoLevel
	}
}
