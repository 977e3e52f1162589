package diff

import (
	"sort"
	"strings"

	"sql-cleanser/internal/schema"

	"github.com/shopspring/decimal"
)

// Equivalent compares two values across dialects: numbers by value, booleans
// against 1/0, datetimes by literal content. NULL equals only NULL; an empty
// string is not NULL.
func Equivalent(a, b schema.Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	if a.Kind == schema.KindBoolean || b.Kind == schema.KindBoolean {
		ab, aok := truth(a)
		bb, bok := truth(b)
		return aok && bok && ab == bb
	}
	if a.Kind == schema.KindDatetime || b.Kind == schema.KindDatetime {
		return datetime(a.Text) == datetime(b.Text)
	}
	if a.IsNumeric() || b.IsNumeric() {
		da, errA := decimal.NewFromString(a.Text)
		db, errB := decimal.NewFromString(b.Text)
		if errA == nil && errB == nil {
			return da.Equal(db)
		}
	}
	if a.Kind == schema.KindUnknown && b.Kind == schema.KindUnknown {
		return strings.EqualFold(compact(a.Raw), compact(b.Raw))
	}
	return a.Text == b.Text
}

func truth(v schema.Value) (bool, bool) {
	switch strings.ToLower(v.Text) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	}
	return false, false
}

func datetime(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 10 && s[10] == 'T' {
		s = s[:10] + " " + s[11:]
	}
	return s
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// Counts is one line of the global summary.
type Counts struct {
	Table      string `json:"table,omitempty" yaml:"table,omitempty"`
	Missing    int    `json:"missing" yaml:"missing"`
	Extra      int    `json:"extra" yaml:"extra"`
	Mismatches int    `json:"mismatches" yaml:"mismatches"`
	Matched    int    `json:"matched" yaml:"matched"`
	Failed     bool   `json:"failed,omitempty" yaml:"failed,omitempty"`
}

type Summary struct {
	Tables []Counts `json:"tables" yaml:"tables"`
	Totals Counts   `json:"totals" yaml:"totals"`
}

// Summarize counts per table, ordered by table name.
func Summarize(results []*TableResult) Summary {
	summary := Summary{Tables: make([]Counts, 0, len(results))}
	for _, r := range results {
		c := Counts{
			Table:      r.Table,
			Missing:    len(r.Missing),
			Extra:      len(r.Extra),
			Mismatches: len(r.Mismatches),
			Matched:    r.Matched,
			Failed:     r.Failure != "",
		}
		summary.Tables = append(summary.Tables, c)
		summary.Totals.Missing += c.Missing
		summary.Totals.Extra += c.Extra
		summary.Totals.Mismatches += c.Mismatches
		summary.Totals.Matched += c.Matched
	}
	sort.Slice(summary.Tables, func(i, j int) bool {
		return summary.Tables[i].Table < summary.Tables[j].Table
	})
	return summary
}
