package db

import "time"

// Run is one pipeline execution.
type Run struct {
	ID                int64
	StartedAt         time.Time
	FinishedAt        time.Time
	Oracle            string
	ReducedConfidence bool
	CorpusFiles       int
	Surfaces          int
	Readings          int
	Suffixes          int
	// Error is the run failure message, empty on success.
	Error string
}

// SourceStats holds the verdict counts of one source in one run.
type SourceStats struct {
	ID      int64
	RunID   int64
	Source  string
	Input   string
	Missing bool
	Total   int
	Kept    int
	Flagged int
	// Dropped counts drops per rule name.
	Dropped map[string]int
}

// FlaggedEntry is a record set aside for review because its reading looked
// inconsistent with its surface.
type FlaggedEntry struct {
	ID            int64
	RunID         int64
	Source        string
	LineNo        int
	Surface       string
	Reading       string
	OracleReading string
	Unexplained   string
	Line          string
}

// Comparison holds the partition sizes of one comparison.
type Comparison struct {
	ID        int64
	RunID     int64
	LeftPath  string
	RightPath string
	// Skipped is set when an input was missing and nothing was compared.
	Skipped   bool
	Common    int
	LeftOnly  int
	RightOnly int
}
