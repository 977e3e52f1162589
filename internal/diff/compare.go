package diff

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"sql-cleanser/internal/anomaly"
	"sql-cleanser/internal/schema"
)

// Entry is a row present on one side only.
type Entry struct {
	Key  []string    `json:"key" yaml:"key"`
	File string      `json:"file" yaml:"file"`
	Line int         `json:"line" yaml:"line"`
	Row  *schema.Row `json:"-" yaml:"-"`
}

// Cell is one side of a column mismatch.
type Cell struct {
	Raw    string           `json:"raw,omitempty" yaml:"raw,omitempty"`
	Kind   schema.ValueKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Absent bool             `json:"absent,omitempty" yaml:"absent,omitempty"`
}

type ColumnMismatch struct {
	Column string `json:"column" yaml:"column"`
	Source Cell   `json:"source" yaml:"source"`
	Target Cell   `json:"target" yaml:"target"`
}

type Mismatch struct {
	Key     []string         `json:"key" yaml:"key"`
	Columns []ColumnMismatch `json:"columns" yaml:"columns"`
}

// TableResult is the outcome for one logical table. When Failure is set the
// row lists are empty and the table counts as unusable.
type TableResult struct {
	Table      string     `json:"table" yaml:"table"`
	Key        schema.Key `json:"key" yaml:"key"`
	SourceRows int        `json:"source_rows" yaml:"source_rows"`
	TargetRows int        `json:"target_rows" yaml:"target_rows"`
	Matched    int        `json:"matched" yaml:"matched"`
	Missing    []Entry    `json:"missing" yaml:"missing"`
	Extra      []Entry    `json:"extra" yaml:"extra"`
	Mismatches []Mismatch `json:"mismatches" yaml:"mismatches"`
	Failure    string     `json:"failure,omitempty" yaml:"failure,omitempty"`
}

// Options tunes the column comparison.
type Options struct {
	// Exclude reports columns never compared for mismatches.
	Exclude func(column string) bool
}

// ErrNoKey is returned when a table reaches the diff without a key.
var ErrNoKey = errors.New("table has no key")

// Compare diffs one logical table. Either side may be nil. The error is
// table-scoped: callers record it and move on to the next table. Rows with a
// generated surrogate key are paired by content after the keyed merge.
func Compare(source, target *schema.Table, key schema.Key, opts Options) (result *TableResult, anomalies []anomaly.Anomaly, err error) {
	name := tableName(source, target)
	defer func() {
		if r := recover(); r != nil {
			result, anomalies, err = nil, nil, fmt.Errorf("table %s: diff panicked: %v", name, r)
		}
	}()
	if key.IsEmpty() {
		return nil, nil, fmt.Errorf("table %s: %w", name, ErrNoKey)
	}

	numeric := numericColumns(key.Columns, source, target)
	left, leftUnkeyed, leftAnomalies, err := index(source, "source", key.Columns, numeric, key.Surrogate())
	if err != nil {
		return nil, nil, fmt.Errorf("table %s: %w", name, err)
	}
	right, rightUnkeyed, rightAnomalies, err := index(target, "target", key.Columns, numeric, key.Surrogate())
	if err != nil {
		return nil, nil, fmt.Errorf("table %s: %w", name, err)
	}
	anomalies = append(leftAnomalies, rightAnomalies...)

	result = &TableResult{
		Table:      name,
		Key:        key,
		SourceRows: rowCount(source),
		TargetRows: rowCount(target),
		Missing:    []Entry{},
		Extra:      []Entry{},
		Mismatches: []Mismatch{},
	}
	columns := compareColumns(key, opts, source, target)

	i, j := 0, 0
	for i < len(left) || j < len(right) {
		var c int
		switch {
		case i == len(left):
			c = 1
		case j == len(right):
			c = -1
		default:
			c = compareKeys(left[i], right[j])
		}
		switch {
		case c < 0:
			result.Missing = append(result.Missing, entry(left[i]))
			i++
		case c > 0:
			result.Extra = append(result.Extra, entry(right[j]))
			j++
		default:
			if diffs := compareRows(left[i].row, right[j].row, columns); len(diffs) > 0 {
				result.Mismatches = append(result.Mismatches, Mismatch{Key: left[i].display(), Columns: diffs})
			} else {
				result.Matched++
			}
			i++
			j++
		}
	}
	pairUnkeyed(result, leftUnkeyed, rightUnkeyed, columns)
	return result, anomalies, nil
}

// pairUnkeyed matches rows whose key the database has yet to assign by the
// rest of their content, first come first served. Leftovers are missing or
// extra.
func pairUnkeyed(result *TableResult, left, right []keyed, columns []string) {
	used := make([]bool, len(right))
	for _, l := range left {
		found := false
		for j, r := range right {
			if used[j] || len(compareRows(l.row, r.row, columns)) > 0 {
				continue
			}
			used[j], found = true, true
			result.Matched++
			break
		}
		if !found {
			result.Missing = append(result.Missing, entry(l))
		}
	}
	for j, r := range right {
		if !used[j] {
			result.Extra = append(result.Extra, entry(r))
		}
	}
}

// Failed builds the placeholder result for a table whose diff could not run.
func Failed(name string, key schema.Key, err error) *TableResult {
	return &TableResult{
		Table:      name,
		Key:        key,
		Missing:    []Entry{},
		Extra:      []Entry{},
		Mismatches: []Mismatch{},
		Failure:    err.Error(),
	}
}

func entry(k keyed) Entry {
	return Entry{Key: k.display(), File: k.row.File, Line: k.row.Line, Row: k.row}
}

func tableName(tables ...*schema.Table) string {
	for _, t := range tables {
		if t != nil {
			return t.Name
		}
	}
	return ""
}

func rowCount(t *schema.Table) int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// compareColumns is the sorted, case-folded union of both sides' columns
// minus key and excluded columns.
func compareColumns(key schema.Key, opts Options, tables ...*schema.Table) []string {
	seen := map[string]bool{}
	var columns []string
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.Columns {
			lc := strings.ToLower(c)
			if seen[lc] || key.Contains(lc) || (opts.Exclude != nil && opts.Exclude(lc)) {
				continue
			}
			seen[lc] = true
			columns = append(columns, lc)
		}
	}
	sort.Strings(columns)
	return columns
}

func compareRows(src, tgt *schema.Row, columns []string) []ColumnMismatch {
	var diffs []ColumnMismatch
	for _, column := range columns {
		sv, sok := src.Get(column)
		tv, tok := tgt.Get(column)
		switch {
		case !sok && !tok:
			continue
		case sok && tok && Equivalent(sv, tv):
			continue
		}
		diffs = append(diffs, ColumnMismatch{Column: column, Source: cell(sv, sok), Target: cell(tv, tok)})
	}
	return diffs
}

func cell(v schema.Value, ok bool) Cell {
	if !ok {
		return Cell{Absent: true}
	}
	return Cell{Raw: v.Raw, Kind: v.Kind}
}
