package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/japaniel/mozcfilter/pkg/compare"
	"github.com/japaniel/mozcfilter/pkg/corpus"
	"github.com/japaniel/mozcfilter/pkg/db"
	"github.com/japaniel/mozcfilter/pkg/filter"
	"github.com/japaniel/mozcfilter/pkg/pipeline"
)

// tabular is implemented by summaries that print as a table.
type tabular interface {
	table(w io.Writer)
}

func (a *app) render(v tabular) error {
	switch a.format {
	case "json":
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		b, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = a.stdout.Write(b)
		return err
	default:
		tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
		v.table(tw)
		return tw.Flush()
	}
}

type corpusSummary struct {
	Files    int `json:"files" yaml:"files"`
	Surfaces int `json:"surfaces" yaml:"surfaces"`
	Readings int `json:"readings" yaml:"readings"`
	Suffixes int `json:"suffixes" yaml:"suffixes"`
}

func summarizeCorpus(s corpus.Stats) corpusSummary {
	return corpusSummary{Files: s.Files, Surfaces: s.Surfaces, Readings: s.Readings, Suffixes: s.Suffixes}
}

func (c corpusSummary) table(w io.Writer) {
	fmt.Fprintln(w, "FILES\tSURFACES\tREADINGS\tSUFFIXES")
	fmt.Fprintf(w, "%d\t%d\t%d\t%d\n", c.Files, c.Surfaces, c.Readings, c.Suffixes)
}

type fetchSummary struct {
	Dir     string   `json:"dir" yaml:"dir"`
	Fetched []string `json:"fetched" yaml:"fetched"`
}

func (f fetchSummary) table(w io.Writer) {
	fmt.Fprintln(w, "DIR\tFETCHED")
	fmt.Fprintf(w, "%s\t%d\n", f.Dir, len(f.Fetched))
	for _, name := range f.Fetched {
		fmt.Fprintf(w, "\t%s\n", name)
	}
}

type sourceSummary struct {
	Source            string         `json:"source" yaml:"source"`
	Missing           bool           `json:"missing,omitempty" yaml:"missing,omitempty"`
	Total             int            `json:"total" yaml:"total"`
	Kept              int            `json:"kept" yaml:"kept"`
	Flagged           int            `json:"flagged" yaml:"flagged"`
	Dropped           int            `json:"dropped" yaml:"dropped"`
	DroppedByRule     map[string]int `json:"dropped_by_rule,omitempty" yaml:"dropped_by_rule,omitempty"`
	ReducedConfidence bool           `json:"reduced_confidence,omitempty" yaml:"reduced_confidence,omitempty"`
}

func summarizeOutcome(o filter.Outcome) sourceSummary {
	s := sourceSummary{
		Source:            o.Source,
		Missing:           o.Missing,
		Total:             o.Stats.Total,
		Kept:              o.Stats.Kept,
		Flagged:           o.Stats.Flagged,
		Dropped:           o.Stats.DroppedTotal(),
		ReducedConfidence: o.ReducedConfidence,
	}
	if len(o.Stats.Dropped) > 0 {
		s.DroppedByRule = make(map[string]int, len(o.Stats.Dropped))
		for r, n := range o.Stats.Dropped {
			s.DroppedByRule[string(r)] = n
		}
	}
	return s
}

func (s sourceSummary) table(w io.Writer) {
	sourceTable(w, []sourceSummary{s})
}

func sourceTable(w io.Writer, sources []sourceSummary) {
	fmt.Fprintln(w, "SOURCE\tTOTAL\tKEPT\tFLAGGED\tDROPPED\tRULES")
	for _, s := range sources {
		if s.Missing {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\tmissing\n", s.Source)
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n", s.Source, s.Total, s.Kept, s.Flagged, s.Dropped, ruleList(s.DroppedByRule))
	}
}

// ruleList formats drop counts as "rule=n" sorted by rule.
func ruleList(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return strings.Join(parts, ",")
}

type comparisonSummary struct {
	Left      string `json:"left" yaml:"left"`
	Right     string `json:"right" yaml:"right"`
	Skipped   bool   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Common    int    `json:"common" yaml:"common"`
	LeftOnly  int    `json:"left_only" yaml:"left_only"`
	RightOnly int    `json:"right_only" yaml:"right_only"`
}

func summarizeComparison(left, right string, res compare.Result) comparisonSummary {
	return comparisonSummary{
		Left:      left,
		Right:     right,
		Skipped:   res.Skipped,
		Common:    len(res.Common),
		LeftOnly:  len(res.LeftOnly),
		RightOnly: len(res.RightOnly),
	}
}

func (c comparisonSummary) table(w io.Writer) {
	fmt.Fprintln(w, "LEFT\tRIGHT\tCOMMON\tLEFT ONLY\tRIGHT ONLY")
	if c.Skipped {
		fmt.Fprintf(w, "%s\t%s\tskipped\t\t\n", c.Left, c.Right)
		return
	}
	fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", c.Left, c.Right, c.Common, c.LeftOnly, c.RightOnly)
}

type runSummary struct {
	RunID      int64              `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	StartedAt  *time.Time         `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Oracle     string             `json:"oracle,omitempty" yaml:"oracle,omitempty"`
	Error      string             `json:"error,omitempty" yaml:"error,omitempty"`
	Corpus     corpusSummary      `json:"corpus" yaml:"corpus"`
	Sources    []sourceSummary    `json:"sources" yaml:"sources"`
	Comparison *comparisonSummary `json:"comparison,omitempty" yaml:"comparison,omitempty"`
}

func summarizeRun(rep pipeline.Report, spec *pipeline.ComparisonSpec) runSummary {
	s := runSummary{Corpus: summarizeCorpus(rep.Corpus)}
	for _, o := range rep.Outcomes {
		s.Sources = append(s.Sources, summarizeOutcome(o))
	}
	if rep.Comparison != nil && spec != nil {
		c := summarizeComparison(spec.Left, spec.Right, *rep.Comparison)
		s.Comparison = &c
	}
	return s
}

func summarizeStoredRun(run db.Run, stats []db.SourceStats, cmps []db.Comparison) runSummary {
	started := run.StartedAt
	s := runSummary{
		RunID:     run.ID,
		StartedAt: &started,
		Oracle:    run.Oracle,
		Error:     run.Error,
		Corpus: corpusSummary{
			Files:    run.CorpusFiles,
			Surfaces: run.Surfaces,
			Readings: run.Readings,
			Suffixes: run.Suffixes,
		},
	}
	for _, st := range stats {
		dropped := 0
		for _, n := range st.Dropped {
			dropped += n
		}
		s.Sources = append(s.Sources, sourceSummary{
			Source:            st.Source,
			Missing:           st.Missing,
			Total:             st.Total,
			Kept:              st.Kept,
			Flagged:           st.Flagged,
			Dropped:           dropped,
			DroppedByRule:     st.Dropped,
			ReducedConfidence: run.ReducedConfidence,
		})
	}
	if len(cmps) > 0 {
		c := cmps[len(cmps)-1]
		s.Comparison = &comparisonSummary{
			Left:      c.LeftPath,
			Right:     c.RightPath,
			Skipped:   c.Skipped,
			Common:    c.Common,
			LeftOnly:  c.LeftOnly,
			RightOnly: c.RightOnly,
		}
	}
	return s
}

func (s runSummary) table(w io.Writer) {
	if s.RunID > 0 {
		fmt.Fprintf(w, "run %d\toracle %s\n", s.RunID, s.Oracle)
		if s.Error != "" {
			fmt.Fprintf(w, "error\t%s\n", s.Error)
		}
		fmt.Fprintln(w)
	}
	s.Corpus.table(w)
	fmt.Fprintln(w)
	sourceTable(w, s.Sources)
	if s.Comparison != nil {
		fmt.Fprintln(w)
		s.Comparison.table(w)
	}
}

type flaggedSummary struct {
	Entries []flaggedEntry `json:"entries" yaml:"entries"`
}

type flaggedEntry struct {
	Line        int    `json:"line" yaml:"line"`
	Surface     string `json:"surface" yaml:"surface"`
	Reading     string `json:"reading" yaml:"reading"`
	Oracle      string `json:"oracle" yaml:"oracle"`
	Unexplained string `json:"unexplained" yaml:"unexplained"`
}

func summarizeFlagged(entries []db.FlaggedEntry) flaggedSummary {
	s := flaggedSummary{Entries: make([]flaggedEntry, 0, len(entries))}
	for _, e := range entries {
		s.Entries = append(s.Entries, flaggedEntry{
			Line:        e.LineNo,
			Surface:     e.Surface,
			Reading:     e.Reading,
			Oracle:      e.OracleReading,
			Unexplained: e.Unexplained,
		})
	}
	return s
}

func (s flaggedSummary) table(w io.Writer) {
	fmt.Fprintln(w, "LINE\tSURFACE\tREADING\tORACLE\tUNEXPLAINED")
	for _, e := range s.Entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", e.Line, e.Surface, e.Reading, e.Oracle, e.Unexplained)
	}
}
