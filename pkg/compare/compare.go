// Package compare computes the common, left-only and right-only entries of two
// filtered outputs, keyed by (surface, reading).
package compare

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/japaniel/mozcfilter/pkg/kana"
	"github.com/japaniel/mozcfilter/pkg/record"
)

// Key identifies an entry across files.
type Key struct {
	Surface string
	Reading string
}

// Less orders keys by surface, then reading.
func (k Key) Less(o Key) bool {
	if k.Surface != o.Surface {
		return k.Surface < o.Surface
	}
	return k.Reading < o.Reading
}

// KeyOf builds the key of a line: field 0 and the last field, trimmed, with
// parentheses removed from the reading. ok is false for lines with fewer than
// two tab-separated fields.
func KeyOf(line string) (Key, bool) {
	parts := strings.Split(line, "\t")
	if len(parts) < 2 {
		return Key{}, false
	}
	return Key{
		Surface: strings.TrimSpace(parts[0]),
		Reading: kana.StripParens(strings.TrimSpace(parts[len(parts)-1])),
	}, true
}

// Entries maps keys to the original line. A later line with the same key
// replaces an earlier one.
type Entries map[Key]string

// Load reads r into Entries.
func Load(r io.Reader) (Entries, error) {
	entries := make(Entries)
	err := record.Lines(r, func(_ int, line string) error {
		if k, ok := KeyOf(line); ok {
			entries[k] = line
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// LoadFile reads path into Entries.
func LoadFile(path string) (Entries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	entries, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return entries, nil
}

// Result holds the three partitions, each sorted by key.
type Result struct {
	Common    []string
	LeftOnly  []string
	RightOnly []string
	// Skipped is set when an input file was missing.
	Skipped bool
}

// Compare partitions the key spaces of left and right. Common entries carry
// the left line.
func Compare(left, right Entries) Result {
	var common, leftOnly, rightOnly []Key
	for k := range left {
		if _, ok := right[k]; ok {
			common = append(common, k)
		} else {
			leftOnly = append(leftOnly, k)
		}
	}
	for k := range right {
		if _, ok := left[k]; !ok {
			rightOnly = append(rightOnly, k)
		}
	}
	return Result{
		Common:    linesOf(left, common),
		LeftOnly:  linesOf(left, leftOnly),
		RightOnly: linesOf(right, rightOnly),
	}
}

func linesOf(entries Entries, keys []Key) []string {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = entries[k]
	}
	return out
}

// CompareFiles loads both files and compares them. If either file is missing
// the comparison is skipped: the result has Skipped set and the error is nil.
func CompareFiles(ctx context.Context, leftPath, rightPath string, log zerolog.Logger) (Result, error) {
	for _, p := range []string{leftPath, rightPath} {
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				log.Warn().Str("file", p).Msg("comparison source not found, skipping comparison")
				return Result{Skipped: true}, nil
			}
			return Result{}, err
		}
	}
	left, err := LoadFile(leftPath)
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	right, err := LoadFile(rightPath)
	if err != nil {
		return Result{}, err
	}
	return Compare(left, right), nil
}

// Paths names the three output files.
type Paths struct {
	Common    string `mapstructure:"common" yaml:"common"`
	LeftOnly  string `mapstructure:"left_only" yaml:"left_only"`
	RightOnly string `mapstructure:"right_only" yaml:"right_only"`
}

// WriteFiles writes each partition, one line per entry.
func WriteFiles(res Result, paths Paths) error {
	for _, out := range []struct {
		path  string
		lines []string
	}{
		{paths.Common, res.Common},
		{paths.LeftOnly, res.LeftOnly},
		{paths.RightOnly, res.RightOnly},
	} {
		if out.path == "" {
			continue
		}
		if err := WriteLines(out.path, out.lines); err != nil {
			return err
		}
	}
	return nil
}

// WriteLines writes lines to path, each followed by a newline. No lines
// produces an empty file.
func WriteLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	for _, l := range lines {
		if _, err := w.WriteString(l); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}
