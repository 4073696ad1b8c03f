package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/japaniel/mozcfilter/pkg/errors"
)

// ErrNoRuns is returned by LatestRun on an empty report database.
var ErrNoRuns = errors.New("no runs recorded")

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// CreateRun inserts a run and returns its id.
func CreateRun(db DBExecutor, r Run) (int64, error) {
	if strings.TrimSpace(r.Oracle) == "" {
		return 0, fmt.Errorf("oracle must be non-empty")
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	res, err := db.Exec(`INSERT INTO runs (started_at, oracle, reduced_confidence, corpus_files, surfaces, readings, suffixes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.StartedAt.UTC(), r.Oracle, r.ReducedConfidence, r.CorpusFiles, r.Surfaces, r.Readings, r.Suffixes)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun stamps the run as finished. A non-empty errMsg marks it failed.
func FinishRun(db DBExecutor, runID int64, finishedAt time.Time, errMsg string) error {
	if runID <= 0 {
		return fmt.Errorf("runID must be positive")
	}
	res, err := db.Exec(`UPDATE runs SET finished_at = ?, error = ? WHERE id = ?`,
		finishedAt.UTC(), nullableString(errMsg), runID)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %d: no such run", runID)
	}
	return nil
}

// InsertSourceStats upserts the counters of one source and replaces its drop
// breakdown. It returns the stats row id.
func InsertSourceStats(db DBExecutor, s SourceStats) (int64, error) {
	if s.RunID <= 0 {
		return 0, fmt.Errorf("runID must be positive")
	}
	if strings.TrimSpace(s.Source) == "" {
		return 0, fmt.Errorf("source must be non-empty")
	}
	var id int64
	err := db.QueryRow(`INSERT INTO source_stats (run_id, source, input, missing, total, kept, flagged)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, source) DO UPDATE SET
		  input = excluded.input,
		  missing = excluded.missing,
		  total = excluded.total,
		  kept = excluded.kept,
		  flagged = excluded.flagged
		RETURNING id`,
		s.RunID, s.Source, s.Input, s.Missing, s.Total, s.Kept, s.Flagged).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert source stats %s: %w", s.Source, err)
	}
	if _, err := db.Exec(`DELETE FROM source_drops WHERE stats_id = ?`, id); err != nil {
		return 0, fmt.Errorf("clear drops %s: %w", s.Source, err)
	}
	for reason, count := range s.Dropped {
		if count == 0 {
			continue
		}
		if _, err := db.Exec(`INSERT INTO source_drops (stats_id, reason, count) VALUES (?, ?, ?)`, id, reason, count); err != nil {
			return 0, fmt.Errorf("insert drop %s/%s: %w", s.Source, reason, err)
		}
	}
	return id, nil
}

// InsertFlagged stores one flagged entry.
func InsertFlagged(db DBExecutor, f FlaggedEntry) error {
	if f.RunID <= 0 {
		return fmt.Errorf("runID must be positive")
	}
	_, err := db.Exec(`INSERT INTO flagged_entries (run_id, source, line_no, surface, reading, oracle_reading, unexplained, line)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.RunID, f.Source, f.LineNo, f.Surface, f.Reading, nullableString(f.OracleReading), nullableString(f.Unexplained), f.Line)
	if err != nil {
		return fmt.Errorf("insert flagged %s:%d: %w", f.Source, f.LineNo, err)
	}
	return nil
}

// InsertComparison stores the partition sizes of a comparison.
func InsertComparison(db DBExecutor, c Comparison) (int64, error) {
	if c.RunID <= 0 {
		return 0, fmt.Errorf("runID must be positive")
	}
	res, err := db.Exec(`INSERT INTO comparisons (run_id, left_path, right_path, skipped, common, left_only, right_only)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.RunID, c.LeftPath, c.RightPath, c.Skipped, c.Common, c.LeftOnly, c.RightOnly)
	if err != nil {
		return 0, fmt.Errorf("insert comparison: %w", err)
	}
	return res.LastInsertId()
}

// LatestRun returns the most recently started run.
func LatestRun(db DBExecutor) (Run, error) {
	return scanRun(db.QueryRow(`SELECT id, started_at, finished_at, oracle, reduced_confidence,
		corpus_files, surfaces, readings, suffixes, error
		FROM runs ORDER BY id DESC LIMIT 1`))
}

// GetRun returns the run with the given id.
func GetRun(db DBExecutor, runID int64) (Run, error) {
	return scanRun(db.QueryRow(`SELECT id, started_at, finished_at, oracle, reduced_confidence,
		corpus_files, surfaces, readings, suffixes, error
		FROM runs WHERE id = ?`, runID))
}

func scanRun(row *sql.Row) (Run, error) {
	var r Run
	var finished sql.NullTime
	var errMsg sql.NullString
	err := row.Scan(&r.ID, &r.StartedAt, &finished, &r.Oracle, &r.ReducedConfidence,
		&r.CorpusFiles, &r.Surfaces, &r.Readings, &r.Suffixes, &errMsg)
	if err == sql.ErrNoRows {
		return Run{}, ErrNoRuns
	}
	if err != nil {
		return Run{}, err
	}
	if finished.Valid {
		r.FinishedAt = finished.Time
	}
	if errMsg.Valid {
		r.Error = errMsg.String
	}
	return r, nil
}

// GetSourceStats returns the stats of every source of a run, ordered by name.
func GetSourceStats(db DBExecutor, runID int64) ([]SourceStats, error) {
	rows, err := db.Query(`SELECT id, run_id, source, input, missing, total, kept, flagged
		FROM source_stats WHERE run_id = ? ORDER BY source`, runID)
	if err != nil {
		return nil, err
	}
	var out []SourceStats
	for rows.Next() {
		var s SourceStats
		if err := rows.Scan(&s.ID, &s.RunID, &s.Source, &s.Input, &s.Missing, &s.Total, &s.Kept, &s.Flagged); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// The drop rows are read after the stats cursor is closed so a single
	// connection database does not need two open cursors.
	for i := range out {
		drops, err := getDrops(db, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Dropped = drops
	}
	return out, nil
}

func getDrops(db DBExecutor, statsID int64) (map[string]int, error) {
	rows, err := db.Query(`SELECT reason, count FROM source_drops WHERE stats_id = ?`, statsID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	drops := make(map[string]int)
	for rows.Next() {
		var reason string
		var count int
		if err := rows.Scan(&reason, &count); err != nil {
			return nil, err
		}
		drops[reason] = count
	}
	return drops, rows.Err()
}

// FlaggedBySource returns the flagged entries of one source in a run, in input
// order.
func FlaggedBySource(db DBExecutor, runID int64, source string) ([]FlaggedEntry, error) {
	rows, err := db.Query(`SELECT id, run_id, source, line_no, surface, reading, oracle_reading, unexplained, line
		FROM flagged_entries WHERE run_id = ? AND source = ? ORDER BY line_no, id`, runID, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FlaggedEntry
	for rows.Next() {
		var f FlaggedEntry
		var oracle, unexplained sql.NullString
		if err := rows.Scan(&f.ID, &f.RunID, &f.Source, &f.LineNo, &f.Surface, &f.Reading, &oracle, &unexplained, &f.Line); err != nil {
			return nil, err
		}
		if oracle.Valid {
			f.OracleReading = oracle.String
		}
		if unexplained.Valid {
			f.Unexplained = unexplained.String
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetComparisons returns the comparisons recorded for a run.
func GetComparisons(db DBExecutor, runID int64) ([]Comparison, error) {
	rows, err := db.Query(`SELECT id, run_id, left_path, right_path, skipped, common, left_only, right_only
		FROM comparisons WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Comparison
	for rows.Next() {
		var c Comparison
		if err := rows.Scan(&c.ID, &c.RunID, &c.LeftPath, &c.RightPath, &c.Skipped, &c.Common, &c.LeftOnly, &c.RightOnly); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// nullableString returns nil for "" else the value.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
