package report

import (
	"fmt"
	"time"

	"sql-cleanser/internal/anomaly"
	"sql-cleanser/internal/dialect"
	"sql-cleanser/internal/diff"
	"sql-cleanser/internal/dupes"
	"sql-cleanser/internal/engine"
	"sql-cleanser/internal/schema"
)

// Side describes one input of a run.
type Side struct {
	URL     string   `json:"url" yaml:"url"`
	Dialect string   `json:"dialect" yaml:"dialect"`
	Files   []string `json:"files" yaml:"files"`
}

// TableReport is the diff of one table as published.
type TableReport struct {
	Table      string                `json:"table" yaml:"table"`
	Rank       int                   `json:"rank" yaml:"rank"`
	Status     string                `json:"status" yaml:"status"`
	Error      string                `json:"error,omitempty" yaml:"error,omitempty"`
	Key        schema.Key            `json:"key" yaml:"key"`
	SourceRows int                   `json:"source_rows" yaml:"source_rows"`
	TargetRows int                   `json:"target_rows" yaml:"target_rows"`
	Matched    int                   `json:"matched" yaml:"matched"`
	Missing    []diff.Entry          `json:"missing" yaml:"missing"`
	Extra      []diff.Entry          `json:"extra" yaml:"extra"`
	Mismatches []diff.Mismatch       `json:"mismatches" yaml:"mismatches"`
	Types      []dialect.TypeMapping `json:"types,omitempty" yaml:"types,omitempty"`
}

// RunDocument carries what differs between two runs over the same inputs.
// Every other document is a function of the inputs alone.
type RunDocument struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	Mode       string    `json:"mode" yaml:"mode"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	Incomplete bool      `json:"incomplete" yaml:"incomplete"`
	Source     Side      `json:"source" yaml:"source"`
	Target     Side      `json:"target" yaml:"target"`
	Tables     int       `json:"tables" yaml:"tables"`
}

// DiffDocument is the primary artifact. Tables follow dependency order;
// the summary lists tables by name.
type DiffDocument struct {
	Incomplete bool          `json:"incomplete" yaml:"incomplete"`
	Source     Side          `json:"source" yaml:"source"`
	Target     Side          `json:"target" yaml:"target"`
	Order      []string      `json:"order" yaml:"order"`
	Edges      []schema.Edge `json:"edges" yaml:"edges"`
	Removed    []schema.Edge `json:"removed_edges,omitempty" yaml:"removed_edges,omitempty"`
	Tables     []TableReport `json:"tables" yaml:"tables"`
	Summary    diff.Summary  `json:"summary" yaml:"summary"`
}

type DuplicatesDocument struct {
	Tables []*dupes.Report `json:"tables" yaml:"tables"`
}

type AnomaliesDocument struct {
	Incomplete bool                 `json:"incomplete" yaml:"incomplete"`
	Counts     map[anomaly.Kind]int `json:"counts" yaml:"counts"`
	Items      []anomaly.Anomaly    `json:"items" yaml:"items"`
}

// Script is one generated SQL file, relative to the output root.
type Script struct {
	Path    string
	Table   string
	Content string
}

// Report is everything written for a run.
type Report struct {
	Mode       string
	Run        *RunDocument
	Diff       *DiffDocument
	Duplicates *DuplicatesDocument
	Anomalies  *AnomaliesDocument
	Plan       *Plan
	Guide      string
	Scripts    []Script
}

func newRunDocument(run *engine.Run) *RunDocument {
	return &RunDocument{
		RunID:      run.ID,
		Mode:       run.Mode,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Incomplete: run.Incomplete,
		Source:     Side{URL: run.SourceURL, Dialect: run.From, Files: run.SourceFiles},
		Target:     Side{URL: run.TargetURL, Dialect: run.To, Files: run.TargetFiles},
		Tables:     len(run.Tables),
	}
}

func newDiffDocument(run *engine.Run) *DiffDocument {
	doc := &DiffDocument{
		Incomplete: run.Incomplete,
		Source:     Side{URL: run.SourceURL, Dialect: run.From, Files: run.SourceFiles},
		Target:     Side{URL: run.TargetURL, Dialect: run.To, Files: run.TargetFiles},
		Tables:     make([]TableReport, 0, len(run.Tables)),
		Summary:    diff.Summarize(run.Results()),
	}
	if run.Graph != nil {
		doc.Order, doc.Edges, doc.Removed = run.Graph.Order, run.Graph.Edges, run.Graph.Removed
	}
	for _, t := range run.Tables {
		tr := TableReport{Table: t.Table, Rank: t.Rank, Status: t.Status, Error: t.ErrorMsg, Key: t.Key, Types: t.Types}
		if d := t.Diff; d != nil {
			tr.SourceRows, tr.TargetRows, tr.Matched = d.SourceRows, d.TargetRows, d.Matched
			tr.Missing, tr.Extra, tr.Mismatches = d.Missing, d.Extra, d.Mismatches
		}
		doc.Tables = append(doc.Tables, tr)
	}
	return doc
}

func newDuplicatesDocument(run *engine.Run) *DuplicatesDocument {
	doc := &DuplicatesDocument{Tables: []*dupes.Report{}}
	for _, t := range run.Tables {
		for _, r := range t.Duplicates {
			if !r.Empty() || r.FuzzySkipped {
				doc.Tables = append(doc.Tables, r)
			}
		}
	}
	return doc
}

func newAnomaliesDocument(incomplete bool, items []anomaly.Anomaly) *AnomaliesDocument {
	if items == nil {
		items = []anomaly.Anomaly{}
	}
	return &AnomaliesDocument{Incomplete: incomplete, Counts: anomaly.Count(items), Items: items}
}

// scripts renders one file per table and direction, numbered by dependency
// rank so that replaying them in name order respects references.
func scripts(run *engine.Run) []Script {
	var result []Script
	for _, t := range run.Tables {
		if run.Mode == engine.ModeTransform {
			if out := t.Forward; out != nil && len(out.Statements) > 0 {
				result = append(result, script("sql", t, out, run.From, run.To, "every row"))
			}
			continue
		}
		if out := t.Forward; out != nil && len(out.Statements) > 0 {
			result = append(result, script("sql/target", t, out, run.From, run.To, "rows missing from target"))
		}
		if out := t.Backward; out != nil && len(out.Statements) > 0 {
			result = append(result, script("sql/source", t, out, run.To, run.From, "rows present only in target"))
		}
	}
	return result
}

func script(dir string, t *engine.TableOutcome, out *dialect.Output, from, to, scope string) Script {
	header := fmt.Sprintf("-- sql-cleanser: table %s (%s), %s -> %s, %s: %d statements\n",
		t.Table, out.Table, from, to, scope, len(out.Statements))
	return Script{
		Path:    fmt.Sprintf("%s/%03d_%s.sql", dir, t.Rank+1, t.Table),
		Table:   t.Table,
		Content: header + out.SQL(),
	}
}
