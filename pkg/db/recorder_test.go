package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/japaniel/mozcfilter/pkg/corpus"
	"github.com/japaniel/mozcfilter/pkg/filter"
	"github.com/japaniel/mozcfilter/pkg/logging"
	"github.com/japaniel/mozcfilter/pkg/pipeline"
	"github.com/japaniel/mozcfilter/pkg/reading"
)

func TestRecorderStoresRun(t *testing.T) {
	db := setupTestDB(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "wiki.txt")
	lines := "東京タワー\t1\t1\t1\tトウキョウタワー\n" +
		"神田\t1\t1\t1\tかみた\n" +
		"秋葉原\t1\t1\t1\tあきばはら\n" +
		"bad\n"
	if err := os.WriteFile(input, []byte(lines), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	cfg := pipeline.Config{
		CorpusDir: dir,
		Sources: []pipeline.Source{{
			Name:          "wiki",
			Input:         input,
			Output:        filepath.Join(dir, "filtered_wiki.txt"),
			FlaggedOutput: filepath.Join(dir, "filtered_wiki_not_same.txt"),
			Filter:        filter.Config{RequireFilter: true},
		}, {
			Name:   "names",
			Input:  filepath.Join(dir, "names.txt"),
			Output: filepath.Join(dir, "filtered_names.txt"),
		}},
		Comparison: &pipeline.ComparisonSpec{
			Left:  filepath.Join(dir, "filtered_wiki.txt"),
			Right: filepath.Join(dir, "filtered_wiki.txt"),
		},
	}
	oracle := reading.Map{
		"東京タワー": "トウキョウタワー",
		"神田":    "カンダ",
		"秋葉原":   "アキハバラ",
	}
	rec := NewRecorder(db, logging.Nop())
	rec.BatchSize = 1
	r, err := pipeline.NewRunner(cfg, oracle,
		pipeline.WithCorpus(corpus.New([]string{"東京"}, []string{"とうきょう"}, nil)),
		pipeline.WithRecorder(rec))
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	run, err := LatestRun(db)
	if err != nil {
		t.Fatalf("latest run: %v", err)
	}
	if run.ID != rec.RunID() || run.Oracle != "custom" || run.Surfaces != 1 || run.FinishedAt.IsZero() || run.Error != "" {
		t.Fatalf("unexpected run row: %+v", run)
	}

	stats, err := GetSourceStats(db, run.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 source rows, got %d", len(stats))
	}
	names, wiki := stats[0], stats[1]
	if !names.Missing {
		t.Fatalf("expected names to be missing: %+v", names)
	}
	if wiki.Total != 4 || wiki.Kept != 2 || wiki.Flagged != 1 || wiki.Dropped["malformed"] != 1 {
		t.Fatalf("unexpected wiki stats: %+v", wiki)
	}

	flagged, err := FlaggedBySource(db, run.ID, "wiki")
	if err != nil {
		t.Fatalf("flagged: %v", err)
	}
	if len(flagged) != 1 || flagged[0].Surface != "神田" || flagged[0].LineNo != 2 || flagged[0].OracleReading != "かんだ" {
		t.Fatalf("unexpected flagged entries: %+v", flagged)
	}

	cmps, err := GetComparisons(db, run.ID)
	if err != nil {
		t.Fatalf("comparisons: %v", err)
	}
	if len(cmps) != 1 || cmps[0].Common != 2 || cmps[0].LeftOnly != 0 || cmps[0].RightOnly != 0 {
		t.Fatalf("unexpected comparisons: %+v", cmps)
	}
}

func TestRecorderStoresRunError(t *testing.T) {
	db := setupTestDB(t)
	rec := NewRecorder(db, logging.Nop())
	ctx := context.Background()
	if err := rec.StartRun(ctx, pipeline.RunInfo{Oracle: "fallback", ReducedConfidence: true}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := rec.FinishRun(ctx, errors.New("disk full")); err != nil {
		t.Fatalf("finish: %v", err)
	}
	run, err := GetRun(db, rec.RunID())
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Error != "disk full" || !run.ReducedConfidence {
		t.Fatalf("unexpected run: %+v", run)
	}
}

func TestRecorderRequiresStart(t *testing.T) {
	rec := NewRecorder(setupTestDB(t), logging.Nop())
	if err := rec.RecordSource(context.Background(), pipeline.Source{Name: "wiki"}, filter.Outcome{}); err == nil {
		t.Fatalf("expected error before StartRun")
	}
}
