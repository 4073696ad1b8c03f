// Package record parses one line of a tab-separated dictionary file into the
// projection the filter needs (surface and reading), keeping the original line
// untouched for output.
package record

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Format selects how the reading is located within a line.
type Format string

const (
	// FormatTSV takes the reading from the last tab-separated field.
	FormatTSV Format = "tsv"
	// FormatMeCab takes the reading from feature 7 of the comma-separated
	// feature field that follows the surface.
	FormatMeCab Format = "mecab"
)

// mecabReadingIndex is the reading position in IPA-style feature strings.
const mecabReadingIndex = 7

// Record is one parsed line.
type Record struct {
	// Line is the text as read, without its trailing '\n'. A '\r' before the
	// newline stays, so CRLF input is written back unchanged. It is never modified.
	Line   string
	Fields []string
	Format Format
}

// Parse splits line into fields. Surrounding whitespace is trimmed from a copy
// before splitting; Line keeps the original.
func Parse(line string, format Format) Record {
	if format == "" {
		format = FormatTSV
	}
	return Record{
		Line:   line,
		Fields: strings.Split(strings.TrimSpace(line), "\t"),
		Format: format,
	}
}

// FieldCount is the number of tab-separated fields.
func (r Record) FieldCount() int {
	return len(r.Fields)
}

// Field returns field i or "" when out of range.
func (r Record) Field(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return r.Fields[i]
}

// Surface is field 0.
func (r Record) Surface() string {
	return r.Field(0)
}

// ReadingField is the last field for TSV records. For MeCab records it is
// feature 7 of field 1, falling back to the surface when absent or "*".
func (r Record) ReadingField() string {
	if r.Format == FormatMeCab {
		features := strings.Split(r.Field(1), ",")
		if len(features) > mecabReadingIndex && features[mecabReadingIndex] != "*" && features[mecabReadingIndex] != "" {
			return features[mecabReadingIndex]
		}
		return r.Surface()
	}
	if len(r.Fields) == 0 {
		return ""
	}
	return r.Fields[len(r.Fields)-1]
}

// ScanFunc receives each record with its 1-based line number.
type ScanFunc func(lineNo int, rec Record) error

// Scan streams r line by line. A non-nil error from fn stops the scan and is returned.
func Scan(r io.Reader, format Format, fn ScanFunc) error {
	return Lines(r, func(lineNo int, line string) error {
		return fn(lineNo, Parse(line, format))
	})
}

// Lines calls fn for every line of r with its 1-based number. Lines have no
// length limit. The '\n' terminator is removed, anything before it is kept. A
// final line without a terminator is still reported.
func Lines(r io.Reader, fn func(lineNo int, line string) error) error {
	br := bufio.NewReaderSize(r, 64*1024)
	lineNo := 0
	for {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("read line %d: %w", lineNo+1, err)
		}
		if line == "" && err == io.EOF {
			return nil
		}
		lineNo++
		if ferr := fn(lineNo, strings.TrimSuffix(line, "\n")); ferr != nil {
			return ferr
		}
		if err == io.EOF {
			return nil
		}
	}
}
