package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/mozcfilter/pkg/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewCorpus(t *testing.T) {
	c := New([]string{"東京"}, []string{"とうきょう"}, []string{"駅"})
	assert.True(t, c.HasSurface("東京"))
	assert.False(t, c.HasSurface("とうきょう"))
	assert.True(t, c.HasReading("とうきょう"))
	assert.True(t, c.HasSuffix("駅"))
	assert.Equal(t, Stats{Surfaces: 1, Readings: 1, Suffixes: 1}, c.Stats())
}

func TestNilCorpus(t *testing.T) {
	var c *Corpus
	assert.False(t, c.HasSurface("x"))
	assert.False(t, c.HasReading("x"))
	assert.Equal(t, Stats{}, c.Stats())
	assert.Nil(t, c.Files())
}

func TestBuilderPanicsAfterBuild(t *testing.T) {
	b := NewBuilder()
	b.AddEntry("a", "b")
	b.Build()
	assert.Panics(t, func() { b.AddSurface("c") })
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "dictionary00.txt", "東京\t1\t2\t100\tとうきょう\n大阪\tおおさか\nsingle\n")
	writeFile(t, dir, "dictionary01.txt", "  京都\t1\t2\tきょうと  \r\n\n")
	writeFile(t, dir, "dictionary02.txt", "")
	writeFile(t, dir, "other.txt", "名古屋\tなごや\n")
	suffixPath := writeFile(t, dir, "suffix.txt", "駅\n\n  線 \n")

	c, err := Load(context.Background(), dir, Options{SuffixFile: suffixPath})
	require.NoError(t, err)

	for _, s := range []string{"東京", "大阪", "京都"} {
		assert.True(t, c.HasSurface(s), "surface %s", s)
	}
	for _, r := range []string{"とうきょう", "おおさか", "きょうと"} {
		assert.True(t, c.HasReading(r), "reading %s", r)
	}
	assert.False(t, c.HasSurface("single"), "one-field lines are ignored")
	assert.False(t, c.HasSurface("名古屋"), "files outside the pattern are ignored")
	assert.False(t, c.HasReading("100"))

	assert.Equal(t, []string{"線", "駅"}, c.Suffixes())
	st := c.Stats()
	assert.Equal(t, 3, st.Files)
	assert.Equal(t, 3, st.Surfaces)
	assert.Equal(t, 2, st.Suffixes)
}

func TestLoadMissingSuffixFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "dictionary00.txt", "東京\tとうきょう\n")
	c, err := Load(context.Background(), dir, Options{SuffixFile: filepath.Join(dir, "nope.txt")})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Stats().Suffixes)
}

func TestLoadEmptyDir(t *testing.T) {
	c, err := Load(context.Background(), t.TempDir(), Options{})
	require.NoError(t, err)
	assert.Equal(t, Stats{}, c.Stats())
}

func TestLoadCanceled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "dictionary00.txt", "東京\tとうきょう\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx, dir, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadSuffixesMissing(t *testing.T) {
	_, err := LoadSuffixes(filepath.Join(t.TempDir(), "suffix.txt"))
	assert.True(t, errors.Is(err, errors.ErrMissingInput))
}
