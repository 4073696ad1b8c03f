package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/mozcfilter/pkg/errors"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := newApp(&stdout, &stderr).execute(context.Background(), append([]string{"--log-output", "discard"}, args...))
	return stdout.String(), err
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const (
	towerLine = "東京タワー\t1\t1\t1\tトウキョウタワー"
	kandaLine = "神田\t1\t1\t1\tかみた"
)

// writeWorkspace lays out a corpus, two sources and a config file under dir.
func writeWorkspace(t *testing.T, dir string) string {
	t.Helper()
	write(t, filepath.Join(dir, "mozc", "dictionary00.txt"), "東京\t1\t1\t1\tとうきょう\n")
	write(t, filepath.Join(dir, "dic", "wiki.txt"), towerLine+"\n"+kandaLine+"\nbroken\n")
	write(t, filepath.Join(dir, "dic", "neologd.txt"), towerLine+"\n")

	cfg := `corpus_dir: {dir}/mozc
suffix_file: {dir}/mozc/suffix.txt
sources:
  - name: wiki
    input: {dir}/dic/wiki.txt
    output: {dir}/filtered_wiki.txt
    flagged_output: {dir}/filtered_wiki_not_same.txt
    filter:
      remove_exclamation: true
      extra_filter: true
      require_filter: true
      skip_long_entries: true
      skip_identical: true
  - name: neologd
    input: {dir}/dic/neologd.txt
    output: {dir}/filtered_neologd.txt
    flagged_output: {dir}/filtered_neologd_not_same.txt
    filter:
      require_filter: true
comparison:
  left: {dir}/filtered_wiki.txt
  right: {dir}/filtered_neologd.txt
  paths:
    common: {dir}/wiki_neologd_common.txt
    left_only: {dir}/only_wiki.txt
    right_only: {dir}/only_neologd.txt
`
	path := filepath.Join(dir, "mozcfilter.yaml")
	write(t, path, strings.ReplaceAll(cfg, "{dir}", dir))
	return path
}

func TestCLIRunAndReport(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeWorkspace(t, dir)
	dbPath := filepath.Join(dir, "report.db")

	out, err := run(t, "--config", cfgPath, "--db", dbPath, "-o", "json", "run")
	require.NoError(t, err)

	var sum runSummary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, int64(1), sum.RunID)
	assert.Equal(t, 1, sum.Corpus.Files)
	require.Len(t, sum.Sources, 2)
	wiki := sum.Sources[0]
	assert.Equal(t, "wiki", wiki.Source)
	assert.Equal(t, 3, wiki.Total)
	assert.Equal(t, 1, wiki.Kept)
	assert.Equal(t, 1, wiki.Flagged)
	assert.Equal(t, 1, wiki.DroppedByRule["malformed"])
	require.NotNil(t, sum.Comparison)
	assert.Equal(t, 1, sum.Comparison.Common)

	kept, err := os.ReadFile(filepath.Join(dir, "filtered_wiki.txt"))
	require.NoError(t, err)
	assert.Equal(t, towerLine+"\n", string(kept))
	flagged, err := os.ReadFile(filepath.Join(dir, "filtered_wiki_not_same.txt"))
	require.NoError(t, err)
	assert.Equal(t, kandaLine+"\n", string(flagged))
	assert.FileExists(t, filepath.Join(dir, "wiki_neologd_common.txt"))

	out, err = run(t, "--config", cfgPath, "--db", dbPath, "-o", "json", "report")
	require.NoError(t, err)
	var stored runSummary
	require.NoError(t, json.Unmarshal([]byte(out), &stored))
	assert.Equal(t, int64(1), stored.RunID)
	assert.Equal(t, "kagome", stored.Oracle)
	require.Len(t, stored.Sources, 2)
	assert.Equal(t, "neologd", stored.Sources[0].Source)
	assert.Equal(t, 1, stored.Sources[1].Flagged)

	out, err = run(t, "--config", cfgPath, "--db", dbPath, "report", "--flagged", "wiki")
	require.NoError(t, err)
	assert.Contains(t, out, "SURFACE")
	assert.Contains(t, out, "神田")
	assert.Contains(t, out, "かんだ")
}

func TestCLIFilter(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeWorkspace(t, dir)
	input := filepath.Join(dir, "place.txt")
	write(t, input, "横浜\t1\t1\t1\t(よこはま)\nんとう\t1\t1\t1\tんとう\n")
	output := filepath.Join(dir, "filtered_place.txt")

	out, err := run(t, "--config", cfgPath, "-o", "yaml", "filter", "--clean-last", input, output)
	require.NoError(t, err)
	assert.Contains(t, out, "kept: 1")
	assert.Contains(t, out, "starts_with_n: 1")

	b, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "横浜\t1\t1\t1\t(よこはま)\n", string(b))
}

func TestCLIFilterMissingInput(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeWorkspace(t, dir)
	_, err := run(t, "--config", cfgPath, "filter", filepath.Join(dir, "none.txt"), filepath.Join(dir, "out.txt"))
	assert.ErrorIs(t, err, errors.ErrMissingInput)
}

func TestCLIFilterBadExclusion(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeWorkspace(t, dir)
	_, err := run(t, "--config", cfgPath, "filter", "--exclude", "nopair", filepath.Join(dir, "dic", "wiki.txt"), filepath.Join(dir, "out.txt"))
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestCLICompare(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeWorkspace(t, dir)
	left := filepath.Join(dir, "left.txt")
	right := filepath.Join(dir, "right.txt")
	write(t, left, "A\ta\n")
	write(t, right, "A\ta\nB\tb\n")
	common := filepath.Join(dir, "common.txt")
	rightOnly := filepath.Join(dir, "only_right.txt")

	out, err := run(t, "--config", cfgPath, "compare", left, right, "--common", common, "--right-only", rightOnly)
	require.NoError(t, err)
	assert.Contains(t, out, "COMMON")

	b, err := os.ReadFile(common)
	require.NoError(t, err)
	assert.Equal(t, "A\ta\n", string(b))
	b, err = os.ReadFile(rightOnly)
	require.NoError(t, err)
	assert.Equal(t, "B\tb\n", string(b))

	_, err = run(t, "--config", cfgPath, "compare", left, filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, errors.ErrMissingInput)
}

func TestCLICorpus(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeWorkspace(t, dir)
	out, err := run(t, "--config", cfgPath, "-o", "yaml", "corpus")
	require.NoError(t, err)
	assert.Contains(t, out, "files: 1")
	assert.Contains(t, out, "surfaces: 1")
}

func TestCLIFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/dictionary01.txt" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("大阪\t1\t1\t1\tおおさか\n"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfgPath := writeWorkspace(t, dir)
	out, err := run(t, "--config", cfgPath, "-o", "json", "fetch",
		"--base-url", srv.URL, "--files", "dictionary00.txt,dictionary01.txt")
	require.NoError(t, err)

	var sum fetchSummary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, []string{"dictionary01.txt"}, sum.Fetched)

	out, err = run(t, "--config", cfgPath, "-o", "yaml", "corpus")
	require.NoError(t, err)
	assert.Contains(t, out, "files: 2")
}

func TestCLIErrors(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeWorkspace(t, dir)

	_, err := run(t, "--config", cfgPath, "-o", "xml", "corpus")
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = run(t, "--config", cfgPath, "report")
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = run(t, "--config", filepath.Join(dir, "nope.yaml"), "corpus")
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = run(t, "--config", cfgPath, "--log-output", filepath.Join(dir, "no", "dir", "run.log"), "corpus")
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestCLILogFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeWorkspace(t, dir)
	logPath := filepath.Join(dir, "run.log")

	_, err := run(t, "--config", cfgPath, "--log-output", logPath, "--log-format", "json", "corpus")
	require.NoError(t, err)
	b, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(b), "reference corpus ready")
}
