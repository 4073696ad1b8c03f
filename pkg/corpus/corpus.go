// Package corpus holds the baseline dictionary lookup sets that candidate
// entries are filtered against.
package corpus

import "sort"

// Corpus is the read-only set of surfaces and readings already present in the
// baseline dictionary. Values are raw field text; no normalization is applied.
// A Corpus is never mutated after Build, so it may be shared across goroutines.
type Corpus struct {
	surfaces map[string]struct{}
	readings map[string]struct{}
	suffixes map[string]struct{}
	files    []string
}

// Stats summarizes a corpus for logging and run reports.
type Stats struct {
	Files    int
	Surfaces int
	Readings int
	Suffixes int
}

// New builds a corpus directly from slices. Mostly useful for tests.
func New(surfaces, readings, suffixes []string) *Corpus {
	b := NewBuilder()
	for _, s := range surfaces {
		b.AddSurface(s)
	}
	for _, r := range readings {
		b.AddReading(r)
	}
	for _, s := range suffixes {
		b.AddSuffix(s)
	}
	return b.Build()
}

// HasSurface reports whether s is a known baseline surface form.
func (c *Corpus) HasSurface(s string) bool {
	if c == nil {
		return false
	}
	_, ok := c.surfaces[s]
	return ok
}

// HasReading reports whether r is a known baseline reading.
func (c *Corpus) HasReading(r string) bool {
	if c == nil {
		return false
	}
	_, ok := c.readings[r]
	return ok
}

// HasSuffix reports whether s is in the advisory suffix list.
func (c *Corpus) HasSuffix(s string) bool {
	if c == nil {
		return false
	}
	_, ok := c.suffixes[s]
	return ok
}

// Files returns the baseline files the corpus was loaded from.
func (c *Corpus) Files() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.files...)
}

// Suffixes returns the advisory suffixes in sorted order.
func (c *Corpus) Suffixes() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.suffixes))
	for s := range c.suffixes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Stats returns set sizes.
func (c *Corpus) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		Files:    len(c.files),
		Surfaces: len(c.surfaces),
		Readings: len(c.readings),
		Suffixes: len(c.suffixes),
	}
}

// Builder accumulates entries before freezing them into a Corpus.
// Builder is not safe for concurrent use.
type Builder struct {
	c     *Corpus
	built bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{c: &Corpus{
		surfaces: make(map[string]struct{}),
		readings: make(map[string]struct{}),
		suffixes: make(map[string]struct{}),
	}}
}

// AddEntry records one baseline line's surface and reading.
func (b *Builder) AddEntry(surface, reading string) {
	b.AddSurface(surface)
	b.AddReading(reading)
}

func (b *Builder) AddSurface(s string) {
	b.mustOpen()
	b.c.surfaces[s] = struct{}{}
}

func (b *Builder) AddReading(r string) {
	b.mustOpen()
	b.c.readings[r] = struct{}{}
}

func (b *Builder) AddSuffix(s string) {
	b.mustOpen()
	b.c.suffixes[s] = struct{}{}
}

func (b *Builder) addFile(path string) {
	b.mustOpen()
	b.c.files = append(b.c.files, path)
}

// Build freezes the builder. Further Add calls panic.
func (b *Builder) Build() *Corpus {
	b.built = true
	return b.c
}

func (b *Builder) mustOpen() {
	if b.built {
		panic("corpus: builder used after Build")
	}
}
