package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/japaniel/mozcfilter/pkg/compare"
	"github.com/japaniel/mozcfilter/pkg/filter"
	"github.com/japaniel/mozcfilter/pkg/pipeline"
)

// Recorder writes a pipeline run report to sqlite. Flagged entries go through
// a BatchWriter; everything else is written directly.
type Recorder struct {
	db    *sql.DB
	log   zerolog.Logger
	runID int64
	bw    *BatchWriter

	// BatchSize is the number of flagged entries per transaction.
	BatchSize int
}

var _ pipeline.Recorder = (*Recorder)(nil)

// NewRecorder returns a Recorder writing to conn, which must be migrated.
func NewRecorder(conn *sql.DB, log zerolog.Logger) *Recorder {
	return &Recorder{db: conn, log: log, BatchSize: 200}
}

// RunID returns the id of the current run, zero before StartRun.
func (r *Recorder) RunID() int64 { return r.runID }

func (r *Recorder) StartRun(ctx context.Context, info pipeline.RunInfo) error {
	id, err := CreateRun(r.db, Run{
		StartedAt:         info.StartedAt,
		Oracle:            info.Oracle,
		ReducedConfidence: info.ReducedConfidence,
		CorpusFiles:       info.Corpus.Files,
		Surfaces:          info.Corpus.Surfaces,
		Readings:          info.Corpus.Readings,
		Suffixes:          info.Corpus.Suffixes,
	})
	if err != nil {
		return err
	}
	r.runID = id
	r.bw = NewBatchWriter(r.db, r.BatchSize, 0, r.log)
	r.log.Debug().Int64("run", id).Msg("run report started")
	return nil
}

func (r *Recorder) RecordSource(ctx context.Context, src pipeline.Source, out filter.Outcome) error {
	if r.runID == 0 {
		return fmt.Errorf("record source %s: run not started", src.Name)
	}
	dropped := make(map[string]int, len(out.Stats.Dropped))
	for reason, n := range out.Stats.Dropped {
		dropped[string(reason)] = n
	}
	if _, err := InsertSourceStats(r.db, SourceStats{
		RunID:   r.runID,
		Source:  src.Name,
		Input:   src.Input,
		Missing: out.Missing,
		Total:   out.Stats.Total,
		Kept:    out.Stats.Kept,
		Flagged: out.Stats.Flagged,
		Dropped: dropped,
	}); err != nil {
		return err
	}

	runID := r.runID
	for _, d := range out.Flagged {
		entry := FlaggedEntry{
			RunID:         runID,
			Source:        src.Name,
			LineNo:        d.LineNo,
			Surface:       d.Surface,
			Reading:       d.Reading,
			OracleReading: d.OracleReading,
			Unexplained:   d.Unexplained,
			Line:          d.Line,
		}
		if err := r.bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
			return InsertFlagged(tx, entry)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) RecordComparison(ctx context.Context, spec pipeline.ComparisonSpec, res compare.Result) error {
	if r.runID == 0 {
		return fmt.Errorf("record comparison: run not started")
	}
	_, err := InsertComparison(r.db, Comparison{
		RunID:     r.runID,
		LeftPath:  spec.Left,
		RightPath: spec.Right,
		Skipped:   res.Skipped,
		Common:    len(res.Common),
		LeftOnly:  len(res.LeftOnly),
		RightOnly: len(res.RightOnly),
	})
	return err
}

// FinishRun commits outstanding flagged entries and stamps the run.
func (r *Recorder) FinishRun(ctx context.Context, runErr error) error {
	if r.runID == 0 {
		return fmt.Errorf("finish run: run not started")
	}
	var flushErr error
	if r.bw != nil {
		flushErr = r.bw.Close()
		r.log.Debug().Int("flagged", r.bw.Written()).Msg("flagged entries recorded")
		r.bw = nil
	}
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	if err := FinishRun(r.db, r.runID, time.Now(), msg); err != nil {
		return err
	}
	return flushErr
}
