package db

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// Ensure single connection to avoid separate in-memory DBs per connection.
	db.SetMaxOpenConns(1)
	if err := InitDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestRun(t *testing.T, db DBExecutor) int64 {
	t.Helper()
	id, err := CreateRun(db, Run{Oracle: "kagome", Surfaces: 3, Readings: 2, CorpusFiles: 1})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	return id
}

func TestCreateAndFinishRun(t *testing.T) {
	db := setupTestDB(t)
	id := createTestRun(t, db)

	r, err := LatestRun(db)
	if err != nil {
		t.Fatalf("latest run: %v", err)
	}
	if r.ID != id || r.Oracle != "kagome" || r.Surfaces != 3 || !r.FinishedAt.IsZero() {
		t.Fatalf("unexpected run before finish: %+v", r)
	}

	if err := FinishRun(db, id, time.Now(), "boom"); err != nil {
		t.Fatalf("finish run: %v", err)
	}
	r, err = GetRun(db, id)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if r.FinishedAt.IsZero() {
		t.Fatalf("expected finished_at to be set")
	}
	if r.Error != "boom" {
		t.Fatalf("expected error boom, got %q", r.Error)
	}
}

func TestCreateRunRequiresOracle(t *testing.T) {
	db := setupTestDB(t)
	if _, err := CreateRun(db, Run{}); err == nil {
		t.Fatalf("expected error for empty oracle")
	}
}

func TestFinishUnknownRun(t *testing.T) {
	db := setupTestDB(t)
	if err := FinishRun(db, 42, time.Now(), ""); err == nil {
		t.Fatalf("expected error finishing a run that does not exist")
	}
}

func TestLatestRunEmpty(t *testing.T) {
	db := setupTestDB(t)
	if _, err := LatestRun(db); !errors.Is(err, ErrNoRuns) {
		t.Fatalf("expected ErrNoRuns, got %v", err)
	}
}

func TestInsertSourceStatsUpserts(t *testing.T) {
	db := setupTestDB(t)
	runID := createTestRun(t, db)

	id1, err := InsertSourceStats(db, SourceStats{
		RunID: runID, Source: "wiki", Input: "./dic/wiki.txt",
		Total: 10, Kept: 4, Flagged: 1,
		Dropped: map[string]int{"malformed": 2, "reading_known": 3},
	})
	if err != nil {
		t.Fatalf("insert stats: %v", err)
	}
	id2, err := InsertSourceStats(db, SourceStats{
		RunID: runID, Source: "wiki", Input: "./dic/wiki.txt",
		Total: 11, Kept: 5, Flagged: 1,
		Dropped: map[string]int{"malformed": 5, "too_long": 0},
	})
	if err != nil {
		t.Fatalf("upsert stats: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected same stats id, got %d and %d", id1, id2)
	}
	if _, err := InsertSourceStats(db, SourceStats{RunID: runID, Source: "names", Missing: true}); err != nil {
		t.Fatalf("insert names: %v", err)
	}

	stats, err := GetSourceStats(db, runID)
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(stats))
	}
	names, wiki := stats[0], stats[1]
	if names.Source != "names" || !names.Missing {
		t.Fatalf("unexpected names stats: %+v", names)
	}
	if wiki.Total != 11 || wiki.Kept != 5 {
		t.Fatalf("unexpected wiki counters: %+v", wiki)
	}
	if len(wiki.Dropped) != 1 || wiki.Dropped["malformed"] != 5 {
		t.Fatalf("expected drops replaced, got %v", wiki.Dropped)
	}
}

func TestFlaggedBySource(t *testing.T) {
	db := setupTestDB(t)
	runID := createTestRun(t, db)
	entries := []FlaggedEntry{
		{RunID: runID, Source: "wiki", LineNo: 7, Surface: "神田", Reading: "かみた", OracleReading: "かんだ", Unexplained: "たみ", Line: "神田\t1\t1\t1\tかみた"},
		{RunID: runID, Source: "wiki", LineNo: 2, Surface: "秋葉原", Reading: "あきば", Line: "秋葉原\t1\t1\t1\tあきば"},
		{RunID: runID, Source: "neologd", LineNo: 1, Surface: "x", Reading: "y", Line: "x\ty"},
	}
	for _, e := range entries {
		if err := InsertFlagged(db, e); err != nil {
			t.Fatalf("insert flagged: %v", err)
		}
	}
	got, err := FlaggedBySource(db, runID, "wiki")
	if err != nil {
		t.Fatalf("query flagged: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 wiki entries, got %d", len(got))
	}
	if got[0].LineNo != 2 || got[1].LineNo != 7 {
		t.Fatalf("expected line order 2, 7, got %d, %d", got[0].LineNo, got[1].LineNo)
	}
	if got[1].OracleReading != "かんだ" || got[1].Unexplained != "たみ" {
		t.Fatalf("unexpected flagged details: %+v", got[1])
	}
	if got[0].OracleReading != "" {
		t.Fatalf("expected empty oracle reading, got %q", got[0].OracleReading)
	}
}

func TestInsertComparison(t *testing.T) {
	db := setupTestDB(t)
	runID := createTestRun(t, db)
	if _, err := InsertComparison(db, Comparison{RunID: runID, LeftPath: "a", RightPath: "b", Common: 1, LeftOnly: 2, RightOnly: 3}); err != nil {
		t.Fatalf("insert comparison: %v", err)
	}
	got, err := GetComparisons(db, runID)
	if err != nil {
		t.Fatalf("get comparisons: %v", err)
	}
	if len(got) != 1 || got[0].Common != 1 || got[0].LeftOnly != 2 || got[0].RightOnly != 3 {
		t.Fatalf("unexpected comparisons: %+v", got)
	}
	if _, err := InsertComparison(db, Comparison{RunID: runID, LeftPath: "a", RightPath: "missing", Skipped: true}); err != nil {
		t.Fatalf("insert skipped comparison: %v", err)
	}
	got, err = GetComparisons(db, runID)
	if err != nil {
		t.Fatalf("get comparisons: %v", err)
	}
	if len(got) != 2 || got[0].Skipped || !got[1].Skipped {
		t.Fatalf("skipped flag not stored: %+v", got)
	}
	if _, err := InsertComparison(db, Comparison{}); err == nil {
		t.Fatalf("expected error for missing run id")
	}
}
