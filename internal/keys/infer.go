package keys

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"sql-cleanser/internal/anomaly"
	"sql-cleanser/internal/dialect"
	"sql-cleanser/internal/inference"
	"sql-cleanser/internal/schema"

	"go.uber.org/zap"
)

// DefaultSampleSize is the number of leading rows examined per table.
const DefaultSampleSize = 20

// ErrIrreconcilable is returned by Resolve when neither side's key can be
// applied to the other.
var ErrIrreconcilable = errors.New("keys cannot be reconciled between sides")

// Inferrer picks identity columns for tables that carry no schema.
type Inferrer struct {
	sampleSize int
	oracle     inference.Oracle
	policy     inference.Policy
	logger     *zap.Logger
}

// New builds an Inferrer. A nil oracle disables the oracle path.
func New(sampleSize int, oracle inference.Oracle, policy inference.Policy, logger *zap.Logger) *Inferrer {
	if sampleSize < 1 {
		sampleSize = DefaultSampleSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inferrer{sampleSize: sampleSize, oracle: oracle, policy: policy, logger: logger.Named("keys")}
}

func (in *Inferrer) sample(t *schema.Table) []*schema.Row {
	if len(t.Rows) <= in.sampleSize {
		return t.Rows
	}
	return t.Rows[:in.sampleSize]
}

// Heuristic looks for `id`, `<table>_id` or `<singular>_id` present in every
// sampled row with unique literal values. NULL and next-value expressions in
// such a column are keys the database assigns; they are skipped, not counted
// as repeats, and the resulting single-column key is surrogate capable.
func (in *Inferrer) Heuristic(t *schema.Table) (schema.Key, bool) {
	names := map[string]bool{"id": true}
	names[strings.ToLower(t.Name)+"_id"] = true
	names[schema.Singular(t.Name)+"_id"] = true
	var candidates []string
	for _, column := range t.Columns {
		if names[strings.ToLower(column)] && keyable(in.sample(t), column) {
			candidates = append(candidates, column)
		}
	}
	if len(candidates) == 0 {
		return schema.Key{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i]) != len(candidates[j]) {
			return len(candidates[i]) < len(candidates[j])
		}
		return strings.ToLower(candidates[i]) < strings.ToLower(candidates[j])
	})
	return schema.Key{Columns: candidates[:1], Confidence: schema.ConfidenceHeuristic}, true
}

func keyable(rows []*schema.Row, column string) bool {
	if len(rows) == 0 {
		return false
	}
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		v, ok := row.Get(column)
		if !ok {
			return false
		}
		if dialect.Generated(v) {
			continue
		}
		if seen[v.Text] {
			return false
		}
		seen[v.Text] = true
	}
	return true
}

// Fallback is the composite of every column, in first-seen order.
func Fallback(t *schema.Table) schema.Key {
	return schema.Key{Columns: append([]string(nil), t.Columns...), Confidence: schema.ConfidenceFallback}
}

// Validate maps oracle suggested names onto the table's own spelling.
// Unknown, repeated or missing names reject the suggestion.
func Validate(t *schema.Table, suggested []string) ([]string, error) {
	if len(suggested) == 0 {
		return nil, fmt.Errorf("%w: no columns", inference.ErrRejected)
	}
	used := make(map[string]bool, len(suggested))
	columns := make([]string, 0, len(suggested))
	for _, name := range suggested {
		name = strings.TrimSpace(name)
		match := ""
		for _, c := range t.Columns {
			if strings.EqualFold(c, name) {
				match = c
				break
			}
		}
		if match == "" {
			return nil, fmt.Errorf("%w: unknown column %q in table %s", inference.ErrRejected, name, t.Name)
		}
		if used[strings.ToLower(match)] {
			return nil, fmt.Errorf("%w: column %q listed twice", inference.ErrRejected, name)
		}
		used[strings.ToLower(match)] = true
		columns = append(columns, match)
	}
	return columns, nil
}

func (in *Inferrer) request(t *schema.Table) inference.KeyRequest {
	req := inference.KeyRequest{Table: t.Name, Columns: t.Columns}
	for _, row := range in.sample(t) {
		values := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			if v, ok := row.Get(c); ok {
				values[i] = v.Raw
			}
		}
		req.Sample = append(req.Sample, values)
	}
	return req
}

// Infer runs the heuristic, then the oracle, then the fallback.
func (in *Inferrer) Infer(ctx context.Context, t *schema.Table, side string) (schema.Key, []anomaly.Anomaly) {
	if key, ok := in.Heuristic(t); ok {
		return key, nil
	}
	var reason error = errors.New("no oracle configured")
	if in.oracle != nil {
		req := in.request(t)
		out := inference.Attempt(ctx, in.policy, func(ctx context.Context) ([]string, error) {
			suggested, err := in.oracle.SuggestKey(ctx, req)
			if err != nil {
				return nil, err
			}
			return Validate(t, suggested)
		})
		if out.OK() {
			in.logger.Debug("oracle key accepted", zap.String("table", t.Name), zap.Strings("key", out.Value), zap.Int("attempts", out.Attempts))
			return schema.Key{Columns: out.Value, Confidence: schema.ConfidenceOracle}, nil
		}
		reason = out.Err
		in.logger.Warn("oracle key inference failed", zap.String("table", t.Name), zap.Int("attempts", out.Attempts), zap.Error(out.Err))
	}
	key := Fallback(t)
	a := anomaly.Newf(anomaly.KeyInferenceFailure, t.Name, "using composite key %s: %v", key, reason)
	a.Side = side
	return key, []anomaly.Anomaly{a}
}

// Resolve picks the key used to compare both sides of one table. Either
// table may be nil when it exists on one side only. The choice does not
// depend on which side is which: among the keys whose columns exist on both
// sides, a heuristic or oracle key beats a fallback, then fewer columns win,
// then the lexically smaller column list.
func Resolve(source, target *schema.Table) (schema.Key, error) {
	switch {
	case source == nil && target == nil:
		return schema.Key{}, fmt.Errorf("%w: no table on either side", ErrIrreconcilable)
	case target == nil:
		return source.Key, nil
	case source == nil:
		return target.Key, nil
	}
	if source.Key.Equal(target.Key) {
		key := source.Key
		if target.Key.Confidence == schema.ConfidenceFallback {
			key.Confidence = schema.ConfidenceFallback
		}
		return key, nil
	}
	var candidates []schema.Key
	if coveredBy(source.Key, target) {
		candidates = append(candidates, source.Key)
	}
	if coveredBy(target.Key, source) {
		candidates = append(candidates, target.Key)
	}
	if len(candidates) == 0 {
		return schema.Key{}, fmt.Errorf("%w: source key %s, target key %s", ErrIrreconcilable, source.Key, target.Key)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return preferred(candidates[i], candidates[j])
	})
	return candidates[0], nil
}

func preferred(a, b schema.Key) bool {
	if ra, rb := rank(a), rank(b); ra != rb {
		return ra > rb
	}
	if len(a.Columns) != len(b.Columns) {
		return len(a.Columns) < len(b.Columns)
	}
	return strings.ToLower(strings.Join(a.Columns, "\x1f")) < strings.ToLower(strings.Join(b.Columns, "\x1f"))
}

func rank(k schema.Key) int {
	if k.Confidence == schema.ConfidenceFallback {
		return 0
	}
	return 1
}

func coveredBy(key schema.Key, t *schema.Table) bool {
	if key.IsEmpty() {
		return false
	}
	for _, c := range key.Columns {
		if !t.HasColumn(c) {
			return false
		}
	}
	return true
}
