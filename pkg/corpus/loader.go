package corpus

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/edsrzf/mmap-go"
	"github.com/rs/zerolog"

	"github.com/japaniel/mozcfilter/pkg/errors"
	"github.com/japaniel/mozcfilter/pkg/record"
)

// DefaultPattern matches the numbered Mozc system dictionary files.
const DefaultPattern = "dictionary0[0-9].txt"

// Options configures Load.
type Options struct {
	// Pattern is the glob matched inside the directory. Empty means DefaultPattern.
	Pattern string
	// SuffixFile is an optional one-token-per-line file. Empty skips it.
	SuffixFile string
	Logger     zerolog.Logger
}

// Load reads every baseline file matching the pattern in dir (sorted by name) and
// returns the combined corpus. Only field 0 and the last field of lines with at
// least two tab-separated fields are used.
func Load(ctx context.Context, dir string, opts Options) (*Corpus, error) {
	pattern := opts.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	log := opts.Logger

	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, errors.NewConfigError("corpus.pattern", pattern, err.Error())
	}
	sort.Strings(files)
	if len(files) == 0 {
		log.Warn().Str("dir", dir).Str("pattern", pattern).Msg("no baseline dictionary files matched")
	}

	b := NewBuilder()
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := loadFile(b, path)
		if err != nil {
			if errors.Is(err, errors.ErrMissingInput) {
				log.Warn().Str("file", path).Msg("baseline dictionary file not found, skipping")
				continue
			}
			return nil, err
		}
		b.addFile(path)
		log.Debug().Str("file", path).Int("lines", n).Msg("loaded baseline dictionary file")
	}

	if opts.SuffixFile != "" {
		suffixes, err := LoadSuffixes(opts.SuffixFile)
		if err != nil && !errors.Is(err, errors.ErrMissingInput) {
			return nil, err
		}
		for _, s := range suffixes {
			b.AddSuffix(s)
		}
		log.Info().Int("suffixes", len(suffixes)).Msg("loaded suffixes")
	}

	c := b.Build()
	st := c.Stats()
	log.Info().
		Int("files", st.Files).
		Int("surfaces", st.Surfaces).
		Int("readings", st.Readings).
		Msg("reference corpus ready")
	return c, nil
}

// loadFile maps path read-only and feeds its lines to b. It returns the number
// of lines that contributed an entry.
func loadFile(b *Builder, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.NewMissingInputError(path)
		}
		return 0, fmt.Errorf("open baseline %s: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat baseline %s: %w", path, err)
	}
	// Zero-length files cannot be mapped.
	if fi.Size() == 0 {
		return 0, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return 0, fmt.Errorf("mmap baseline %s: %w", path, err)
	}
	defer func() { _ = m.Unmap() }()

	return addLines(b, m), nil
}

func addLines(b *Builder, data []byte) int {
	n := 0
	for len(data) > 0 {
		var line []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			line, data = data, nil
		}
		line = bytes.TrimSpace(line)
		first := bytes.IndexByte(line, '\t')
		if first < 0 {
			continue
		}
		last := bytes.LastIndexByte(line, '\t')
		// string() copies out of the mapping, which is released after loading.
		b.AddEntry(string(line[:first]), string(line[last+1:]))
		n++
	}
	return n
}

// LoadSuffixes reads one suffix per line, skipping blanks. A missing file
// returns a *errors.MissingInputError and no suffixes.
func LoadSuffixes(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewMissingInputError(path)
		}
		return nil, fmt.Errorf("open suffixes %s: %w", path, err)
	}
	defer f.Close()

	var out []string
	err = record.Lines(f, func(_ int, line string) error {
		if s := strings.TrimSpace(line); s != "" {
			out = append(out, s)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read suffixes %s: %w", path, err)
	}
	return out, nil
}
