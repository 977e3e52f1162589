package diff

import (
	"fmt"
	"sort"
	"strings"

	"sql-cleanser/internal/anomaly"
	"sql-cleanser/internal/dialect"
	"sql-cleanser/internal/schema"

	"github.com/shopspring/decimal"
)

type part struct {
	null    bool
	numeric bool
	num     decimal.Decimal
	text    string
}

type keyed struct {
	canon string
	parts []part
	row   *schema.Row
}

func (k keyed) display() []string {
	out := make([]string, len(k.parts))
	for i, p := range k.parts {
		switch {
		case p.null:
			out[i] = "NULL"
		case p.numeric:
			out[i] = p.num.String()
		default:
			out[i] = p.text
		}
	}
	return out
}

// numericColumns reports, per key position, whether every literal value on
// both sides parses as a decimal. NULL and sequence calls are ignored.
func numericColumns(key []string, tables ...*schema.Table) []bool {
	numeric := make([]bool, len(key))
	for i, column := range key {
		numeric[i] = true
		seen := false
	scan:
		for _, t := range tables {
			if t == nil {
				continue
			}
			for _, row := range t.Rows {
				v, ok := row.Get(column)
				if !ok || dialect.Generated(v) {
					continue
				}
				seen = true
				if _, err := decimal.NewFromString(v.Text); err != nil {
					numeric[i] = false
					break scan
				}
			}
		}
		numeric[i] = numeric[i] && seen
	}
	return numeric
}

func makeKey(row *schema.Row, key []string, numeric []bool) (keyed, error) {
	values, err := row.KeyValues(key)
	if err != nil {
		return keyed{}, err
	}
	k := keyed{row: row, parts: make([]part, len(values))}
	canon := make([]string, len(values))
	for i, v := range values {
		d, numErr := decimal.NewFromString(v.Text)
		switch {
		case v.IsNull():
			k.parts[i] = part{null: true}
			canon[i] = "\x00"
		case numeric[i] && numErr == nil:
			k.parts[i] = part{numeric: true, num: d}
			canon[i] = d.String()
		default:
			k.parts[i] = part{text: v.Text}
			canon[i] = "s" + v.Text
		}
	}
	k.canon = strings.Join(canon, "\x1f")
	return k, nil
}

func compareKeys(a, b keyed) int {
	for i := range a.parts {
		pa, pb := a.parts[i], b.parts[i]
		switch {
		case pa.null && pb.null:
			continue
		case pa.null:
			return -1
		case pb.null:
			return 1
		}
		if c := pa.num.Cmp(pb.num); c != 0 {
			return c
		}
		if c := strings.Compare(pa.text, pb.text); c != 0 {
			return c
		}
	}
	return 0
}

// index builds the key ordered row list of one side. When a key repeats the
// last row wins and the earlier one is reported. Rows whose surrogate column
// holds a generated value carry no identity yet; they are returned apart, in
// row order.
func index(t *schema.Table, side string, key []string, numeric []bool, surrogate string) ([]keyed, []keyed, []anomaly.Anomaly, error) {
	if t == nil {
		return nil, nil, nil, nil
	}
	var (
		entries   []keyed
		unkeyed   []keyed
		anomalies []anomaly.Anomaly
		at        = make(map[string]int, len(t.Rows))
	)
	for _, row := range t.Rows {
		k, err := makeKey(row, key, numeric)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%s side: %w", side, err)
		}
		if surrogate != "" {
			if v, ok := row.Get(surrogate); ok && dialect.Generated(v) {
				unkeyed = append(unkeyed, k)
				continue
			}
		}
		if i, ok := at[k.canon]; ok {
			prev := entries[i].row
			a := anomaly.Newf(anomaly.DuplicateKey, t.Name, "key (%s) at %s:%d superseded by %s:%d",
				strings.Join(k.display(), ", "), prev.File, prev.Line, row.File, row.Line)
			a.Side, a.File, a.Line = side, row.File, row.Line
			anomalies = append(anomalies, a)
			entries[i] = k
			continue
		}
		at[k.canon] = len(entries)
		entries = append(entries, k)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return compareKeys(entries[i], entries[j]) < 0
	})
	return entries, unkeyed, anomalies, nil
}
