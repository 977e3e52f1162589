package dupes

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"sort"
	"strings"

	"sql-cleanser/internal/anomaly"
	"sql-cleanser/internal/dialect"
	"sql-cleanser/internal/schema"

	"go.uber.org/zap"
)

// DefaultThreshold and DefaultRowCeiling apply when Options leaves them zero.
const (
	DefaultThreshold  = 0.8
	DefaultRowCeiling = 5000
)

type Location struct {
	Key  []string `json:"key" yaml:"key"`
	File string   `json:"file" yaml:"file"`
	Line int      `json:"line" yaml:"line"`
}

// Group is a set of rows sharing a key, and for identical groups, content.
type Group struct {
	Key  []string   `json:"key" yaml:"key"`
	Rows []Location `json:"rows" yaml:"rows"`
}

type Pair struct {
	Left  Location `json:"left" yaml:"left"`
	Right Location `json:"right" yaml:"right"`
	Score float64  `json:"score" yaml:"score"`
}

// Report is advisory: nothing here changes the diff.
type Report struct {
	Table        string  `json:"table" yaml:"table"`
	Side         string  `json:"side" yaml:"side"`
	Rows         int     `json:"rows" yaml:"rows"`
	Identical    []Group `json:"identical" yaml:"identical"`
	KeyConflicts []Group `json:"key_conflicts" yaml:"key_conflicts"`
	Fuzzy        []Pair  `json:"fuzzy" yaml:"fuzzy"`
	FuzzySkipped bool    `json:"fuzzy_skipped,omitempty" yaml:"fuzzy_skipped,omitempty"`
}

func (r *Report) Empty() bool {
	return len(r.Identical) == 0 && len(r.KeyConflicts) == 0 && len(r.Fuzzy) == 0
}

type Options struct {
	Threshold  float64
	RowCeiling int // negative disables the ceiling
	Exclude    func(column string) bool
}

type Detector struct {
	opts   Options
	logger *zap.Logger
}

func NewDetector(opts Options, logger *zap.Logger) *Detector {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.RowCeiling == 0 {
		opts.RowCeiling = DefaultRowCeiling
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{opts: opts, logger: logger.Named("dupes")}
}

type record struct {
	row     *schema.Row
	loc     Location
	keyHash string
	sum     string
}

// Detect scans one side of one table.
func (d *Detector) Detect(t *schema.Table, side string, key schema.Key) (*Report, []anomaly.Anomaly) {
	report := &Report{Table: t.Name, Side: side, Rows: len(t.Rows), Identical: []Group{}, KeyConflicts: []Group{}, Fuzzy: []Pair{}}
	columns := sortedColumns(t.Columns)

	surrogate := key.Surrogate()
	records := make([]record, 0, len(t.Rows))
	for i, row := range t.Rows {
		values, err := row.KeyValues(key.Columns)
		if err != nil {
			continue
		}
		keyText := texts(values)
		rec := record{row: row, loc: Location{Key: keyText, File: row.File, Line: row.Line}}
		h := sha256.New()
		writeTuple(h, keyText)
		rec.keyHash = fmt.Sprintf("%x", h.Sum(nil))
		writeTuple(h, vector(row, columns))
		rec.sum = fmt.Sprintf("%x", h.Sum(nil))
		if v, ok := row.Get(surrogate); surrogate != "" && ok && dialect.Generated(v) {
			// not assigned yet, so never a key conflict
			rec.keyHash = fmt.Sprintf("generated-%d", i)
		}
		records = append(records, rec)
	}

	report.Identical, report.KeyConflicts = exact(records)

	var anomalies []anomaly.Anomaly
	if d.opts.RowCeiling > 0 && len(records) > d.opts.RowCeiling {
		report.FuzzySkipped = true
		a := anomaly.Newf(anomaly.FuzzySkipped, t.Name, "%d rows exceed the fuzzy row ceiling of %d", len(records), d.opts.RowCeiling)
		a.Side = side
		anomalies = append(anomalies, a)
		d.logger.Info("fuzzy detection skipped", zap.String("table", t.Name), zap.String("side", side), zap.Int("rows", len(records)))
		return report, anomalies
	}
	report.Fuzzy = d.fuzzy(records, d.fuzzyColumns(columns, key))
	return report, anomalies
}

// fuzzyColumns are the non-key, non-excluded columns; with a composite
// fallback key every column is compared.
func (d *Detector) fuzzyColumns(columns []string, key schema.Key) []string {
	var out []string
	for _, c := range columns {
		if key.Confidence != schema.ConfidenceFallback && key.Contains(c) {
			continue
		}
		if d.opts.Exclude != nil && d.opts.Exclude(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func exact(records []record) (identical, conflicts []Group) {
	identical, conflicts = []Group{}, []Group{}
	bySum := map[string][]Location{}
	byKey := map[string][]record{}
	var sumOrder, keyOrder []string
	for _, rec := range records {
		if _, ok := bySum[rec.sum]; !ok {
			sumOrder = append(sumOrder, rec.sum)
		}
		bySum[rec.sum] = append(bySum[rec.sum], rec.loc)
		if _, ok := byKey[rec.keyHash]; !ok {
			keyOrder = append(keyOrder, rec.keyHash)
		}
		byKey[rec.keyHash] = append(byKey[rec.keyHash], rec)
	}
	for _, sum := range sumOrder {
		if locs := bySum[sum]; len(locs) > 1 {
			identical = append(identical, Group{Key: locs[0].Key, Rows: locs})
		}
	}
	for _, k := range keyOrder {
		recs := byKey[k]
		distinct := map[string]bool{}
		for _, rec := range recs {
			distinct[rec.sum] = true
		}
		if len(distinct) < 2 {
			continue
		}
		group := Group{Key: recs[0].loc.Key}
		for _, rec := range recs {
			group.Rows = append(group.Rows, rec.loc)
		}
		conflicts = append(conflicts, group)
	}
	return identical, conflicts
}

func (d *Detector) fuzzy(records []record, columns []string) []Pair {
	pairs := []Pair{}
	if len(columns) == 0 {
		return pairs
	}
	n := newNormalizer()
	normalized := make([][]*string, len(records))
	for i, rec := range records {
		normalized[i] = make([]*string, len(columns))
		for j, c := range columns {
			if v, ok := rec.row.Get(c); ok && !v.IsNull() {
				s := n.normalize(v.Text)
				normalized[i][j] = &s
			}
		}
	}
	for i := 0; i < len(records); i++ {
		for j := i + 1; j < len(records); j++ {
			if records[i].keyHash == records[j].keyHash {
				continue
			}
			score := rowScore(normalized[i], normalized[j])
			if score >= d.opts.Threshold {
				pairs = append(pairs, Pair{Left: records[i].loc, Right: records[j].loc, Score: round(score)})
			}
		}
	}
	return pairs
}

func rowScore(a, b []*string) float64 {
	total := 0.0
	for i := range a {
		switch {
		case a[i] == nil && b[i] == nil:
			total++
		case a[i] == nil || b[i] == nil:
		default:
			total += similarity(*a[i], *b[i])
		}
	}
	return total / float64(len(a))
}

func round(f float64) float64 {
	return float64(int(f*10000+0.5)) / 10000
}

func sortedColumns(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = strings.ToLower(c)
	}
	sort.Strings(out)
	return out
}

func texts(values []schema.Value) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if v.IsNull() {
			out[i] = "NULL"
			continue
		}
		out[i] = v.Text
	}
	return out
}

func vector(row *schema.Row, columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		v, ok := row.Get(c)
		switch {
		case !ok:
			out[i] = "\x00absent"
		case v.IsNull():
			out[i] = "\x00null"
		default:
			out[i] = string(v.Kind) + ":" + v.Text
		}
	}
	return out
}

func writeTuple(h hash.Hash, parts []string) {
	for _, p := range parts {
		fmt.Fprintf(h, "%d:%s;", len(p), p)
	}
}
