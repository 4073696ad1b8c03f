package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"warning", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"off", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "ParseLevel(%q)", tt.in)
	}
}

func TestOpenWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	log, closeLog, err := Open(Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)
	log.Debug().Msg("hidden")
	log.Info().Str("source", "wiki").Msg("filtered")
	require.NoError(t, closeLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"source":"wiki"`)
	assert.Contains(t, out, `"message":"filtered"`)
	assert.False(t, strings.Contains(out, "hidden"), "debug line should be filtered at info level")
}

func TestOpenUnwritableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no", "such", "dir", "run.log")
	_, closeLog, err := Open(Config{Output: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open log file")
	assert.NoError(t, closeLog())

	// New keeps running on stderr instead.
	log := New(Config{Output: path, Level: "disabled"})
	log.Info().Msg("dropped")
	assert.NoFileExists(t, path)
}

func TestOpenDiscardNeedsNoClose(t *testing.T) {
	log, closeLog, err := Open(Config{Output: "discard"})
	require.NoError(t, err)
	log.Info().Msg("nowhere")
	assert.NoError(t, closeLog())
}
