package errors

import (
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMissingInputError(t *testing.T) {
	err := fmt.Errorf("load source: %w", NewMissingInputError("dic/wiki.txt"))
	assert.True(t, Is(err, ErrMissingInput))
	assert.False(t, Is(err, ErrInvalidConfig))

	var mi *MissingInputError
	if assert.True(t, As(err, &mi)) {
		assert.Equal(t, "dic/wiki.txt", mi.Path)
	}
	assert.Contains(t, err.Error(), "dic/wiki.txt")
}

func TestOracleUnavailableError(t *testing.T) {
	err := &OracleUnavailableError{Oracle: "kagome", Err: fs.ErrNotExist}
	assert.True(t, Is(err, ErrOracleUnavailable))
	assert.True(t, Is(err, fs.ErrNotExist), "should unwrap to the cause")
	assert.Contains(t, err.Error(), "kagome")

	bare := &OracleUnavailableError{Oracle: "kagome"}
	assert.Equal(t, "reading oracle kagome unavailable", bare.Error())
}

func TestConfigError(t *testing.T) {
	err := NewConfigError("min_fields", -1, "must be positive")
	assert.True(t, Is(err, ErrInvalidConfig))
	assert.Equal(t, "invalid config min_fields=-1: must be positive", err.Error())

	noField := NewConfigError("", nil, "no sources")
	assert.Equal(t, "invalid config: no sources", noField.Error())
}
