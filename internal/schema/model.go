package schema

import (
	"fmt"
	"sort"
	"strings"
)

// ValueKind is the literal class a parsed value was recognized as.
type ValueKind string

const (
	KindUnknown  ValueKind = "unknown"
	KindInteger  ValueKind = "integer"
	KindDecimal  ValueKind = "decimal"
	KindString   ValueKind = "string"
	KindBoolean  ValueKind = "boolean"
	KindNull     ValueKind = "null"
	KindDatetime ValueKind = "datetime"
)

// Value keeps the literal as written next to its unescaped content.
// For datetime literals Text holds the date/time string only, so
// `TO_DATE('2024-01-02','YYYY-MM-DD')` and `DATE '2024-01-02'` compare equal.
type Value struct {
	Raw  string    `json:"raw" yaml:"raw"`
	Text string    `json:"text" yaml:"text"`
	Kind ValueKind `json:"kind" yaml:"kind"`
}

func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

func (v Value) IsNumeric() bool {
	return v.Kind == KindInteger || v.Kind == KindDecimal
}

// Null is the shared NULL literal.
var Null = Value{Raw: "NULL", Kind: KindNull}

// Row is one reconstructed tuple. len(Columns) == len(Values) always.
type Row struct {
	Table         string   `json:"table" yaml:"table"`
	Columns       []string `json:"columns" yaml:"columns"`
	Values        []Value  `json:"values" yaml:"values"`
	File          string   `json:"file" yaml:"file"`
	Line          int      `json:"line" yaml:"line"`
	StatementLine int      `json:"statement_line" yaml:"statement_line"`
}

// Index returns the position of column (case-insensitive) or -1.
func (r *Row) Index(column string) int {
	for i, c := range r.Columns {
		if strings.EqualFold(c, column) {
			return i
		}
	}
	return -1
}

func (r *Row) Get(column string) (Value, bool) {
	if i := r.Index(column); i >= 0 {
		return r.Values[i], true
	}
	return Value{}, false
}

// KeyValues extracts the values of the key columns in key order.
func (r *Row) KeyValues(key []string) ([]Value, error) {
	result := make([]Value, len(key))
	for i, column := range key {
		v, ok := r.Get(column)
		if !ok {
			return nil, fmt.Errorf("row %s:%d has no key column %q", r.File, r.Line, column)
		}
		result[i] = v
	}
	return result, nil
}

// Confidence records how a table key was obtained.
type Confidence string

const (
	ConfidenceHeuristic Confidence = "heuristic"
	ConfidenceOracle    Confidence = "oracle-confirmed"
	ConfidenceFallback  Confidence = "fallback-low-confidence"
)

// Key is the ordered identity column list of a table.
type Key struct {
	Columns    []string   `json:"columns" yaml:"columns"`
	Confidence Confidence `json:"confidence" yaml:"confidence"`
}

func (k Key) IsEmpty() bool {
	return len(k.Columns) == 0
}

func (k Key) Equal(other Key) bool {
	if len(k.Columns) != len(other.Columns) {
		return false
	}
	for i := range k.Columns {
		if !strings.EqualFold(k.Columns[i], other.Columns[i]) {
			return false
		}
	}
	return true
}

func (k Key) Contains(column string) bool {
	for _, c := range k.Columns {
		if strings.EqualFold(c, column) {
			return true
		}
	}
	return false
}

// Surrogate returns the sole column of a single-column key the database may
// generate values for. Low-confidence keys have none.
func (k Key) Surrogate() string {
	if len(k.Columns) != 1 || k.Confidence == ConfidenceFallback {
		return ""
	}
	return k.Columns[0]
}

func (k Key) String() string {
	return "(" + strings.Join(k.Columns, ", ") + ")"
}

// Table groups rows of one logical table on one side.
type Table struct {
	Name    string
	Rows    []*Row
	Columns []string // union of row columns, first-seen order, as written
	Key     Key

	seen map[string]bool
}

func (t *Table) add(row *Row) {
	if t.seen == nil {
		t.seen = make(map[string]bool)
	}
	for _, c := range row.Columns {
		lc := strings.ToLower(c)
		if !t.seen[lc] {
			t.seen[lc] = true
			t.Columns = append(t.Columns, c)
		}
	}
	t.Rows = append(t.Rows, row)
}

func (t *Table) HasColumn(column string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if strings.EqualFold(c, column) {
			return true
		}
	}
	return false
}

// Dataset is one side of a comparison. Tables are keyed by case-folded name.
type Dataset struct {
	Name   string
	Tables map[string]*Table
}

func NewDataset(name string) *Dataset {
	return &Dataset{Name: name, Tables: make(map[string]*Table)}
}

// TableName returns the logical name used to group rows: the last
// dot-separated segment, case-folded.
func TableName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToLower(name)
}

func (d *Dataset) Add(row *Row) {
	name := TableName(row.Table)
	t, ok := d.Tables[name]
	if !ok {
		t = &Table{Name: name}
		d.Tables[name] = t
	}
	t.add(row)
}

func (d *Dataset) Table(name string) *Table {
	if d == nil {
		return nil
	}
	return d.Tables[TableName(name)]
}

func (d *Dataset) TableNames() []string {
	names := make([]string, 0, len(d.Tables))
	for name := range d.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *Dataset) RowCount() int {
	total := 0
	for _, t := range d.Tables {
		total += len(t.Rows)
	}
	return total
}

// Singular strips common English plural endings so that `categories`,
// `addresses` and `users` map to `category`, `address` and `user`.
func Singular(name string) string {
	n := strings.ToLower(name)
	switch {
	case strings.HasSuffix(n, "ies") && len(n) > 3:
		return n[:len(n)-3] + "y"
	case strings.HasSuffix(n, "sses"), strings.HasSuffix(n, "xes"),
		strings.HasSuffix(n, "ches"), strings.HasSuffix(n, "shes"):
		return n[:len(n)-2]
	case strings.HasSuffix(n, "ss"):
		return n
	case strings.HasSuffix(n, "s") && len(n) > 1:
		return n[:len(n)-1]
	}
	return n
}
