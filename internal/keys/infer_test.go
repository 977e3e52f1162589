package keys

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"sql-cleanser/internal/anomaly"
	"sql-cleanser/internal/inference"
	"sql-cleanser/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeOracle struct {
	calls   int32
	suggest func(call int32, req inference.KeyRequest) ([]string, error)
}

func (f *fakeOracle) SuggestKey(ctx context.Context, req inference.KeyRequest) ([]string, error) {
	return f.suggest(atomic.AddInt32(&f.calls, 1), req)
}

func (f *fakeOracle) Narrate(ctx context.Context, summary []byte) (string, error) {
	return "", errors.New("not used")
}

func table(name string, columns []string, rows ...[]string) *schema.Table {
	ds := schema.NewDataset("source")
	for i, values := range rows {
		row := &schema.Row{Table: name, Columns: columns, Line: i + 1}
		for _, v := range values {
			if v == "NULL" {
				row.Values = append(row.Values, schema.Null)
				continue
			}
			if strings.HasPrefix(v, "nextval(") {
				row.Values = append(row.Values, schema.Value{Raw: v, Text: v, Kind: schema.KindUnknown})
				continue
			}
			row.Values = append(row.Values, schema.Value{Raw: v, Text: v, Kind: schema.KindString})
		}
		ds.Add(row)
	}
	return ds.Table(name)
}

var fastPolicy = inference.Policy{Attempts: 3, Timeout: 50 * time.Millisecond, Backoff: time.Millisecond}

func TestHeuristic(t *testing.T) {
	testCases := []struct {
		name    string
		table   *schema.Table
		want    []string
		wantErr bool
	}{
		{
			name:  "plain id",
			table: table("users", []string{"id", "name"}, []string{"1", "a"}, []string{"2", "b"}),
			want:  []string{"id"},
		},
		{
			name:  "singular table id",
			table: table("categories", []string{"name", "category_id"}, []string{"x", "1"}, []string{"y", "2"}),
			want:  []string{"category_id"},
		},
		{
			name:  "shortest unique candidate wins",
			table: table("user", []string{"user_id", "id"}, []string{"1", "1"}, []string{"2", "2"}),
			want:  []string{"id"},
		},
		{
			name:  "falls through to next candidate when id repeats",
			table: table("orders", []string{"id", "order_id"}, []string{"1", "10"}, []string{"1", "11"}),
			want:  []string{"order_id"},
		},
		{
			name:  "several null ids are generated keys",
			table: table("users", []string{"id", "name"}, []string{"1", "Ann"}, []string{"NULL", "Bob"}, []string{"NULL", "Cy"}),
			want:  []string{"id"},
		},
		{
			name: "repeated sequence calls are generated keys",
			table: table("users", []string{"id", "name"},
				[]string{"nextval('users_id_seq')", "Ann"}, []string{"nextval('users_id_seq')", "Bob"}, []string{"4", "Cy"}),
			want: []string{"id"},
		},
		{
			name:  "only null ids",
			table: table("t", []string{"t_id", "v"}, []string{"NULL", "a"}, []string{"NULL", "b"}),
			want:  []string{"t_id"},
		},
		{
			name:    "repeated literal beside generated keys",
			table:   table("t", []string{"id"}, []string{"1"}, []string{"NULL"}, []string{"1"}),
			wantErr: true,
		},
		{
			name:    "foreign ids are not candidates",
			table:   table("items", []string{"order_id", "sku"}, []string{"1", "a"}, []string{"2", "b"}),
			wantErr: true,
		},
	}
	in := New(20, nil, fastPolicy, nil)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			key, ok := in.Heuristic(tc.table)
			if tc.wantErr {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tc.want, key.Columns)
			assert.Equal(t, schema.ConfidenceHeuristic, key.Confidence)
			assert.Equal(t, tc.want[0], key.Surrogate())
		})
	}
}

func TestHeuristic_OnlySamplesLeadingRows(t *testing.T) {
	var rows [][]string
	for i := 0; i < 5; i++ {
		rows = append(rows, []string{strconv.Itoa(i)})
	}
	rows = append(rows, []string{"0"})
	tbl := table("t", []string{"id"}, rows...)

	_, ok := New(5, nil, fastPolicy, nil).Heuristic(tbl)
	assert.True(t, ok)
	_, ok = New(6, nil, fastPolicy, nil).Heuristic(tbl)
	assert.False(t, ok)
}

func TestInfer_OracleAccepted(t *testing.T) {
	oracle := &fakeOracle{suggest: func(call int32, req inference.KeyRequest) ([]string, error) {
		assert.Equal(t, "items", req.Table)
		assert.Len(t, req.Sample, 2)
		return []string{"SKU"}, nil
	}}
	tbl := table("items", []string{"sku", "name"}, []string{"a", "x"}, []string{"b", "x"})
	key, anomalies := New(20, oracle, fastPolicy, zaptest.NewLogger(t)).Infer(context.Background(), tbl, "source")
	assert.Empty(t, anomalies)
	assert.Equal(t, []string{"sku"}, key.Columns)
	assert.Equal(t, schema.ConfidenceOracle, key.Confidence)
}

func TestInfer_RejectionRetriesThenAccepts(t *testing.T) {
	oracle := &fakeOracle{suggest: func(call int32, req inference.KeyRequest) ([]string, error) {
		if call == 1 {
			return []string{"nope"}, nil
		}
		return []string{"sku"}, nil
	}}
	tbl := table("items", []string{"sku"}, []string{"a"})
	key, _ := New(20, oracle, fastPolicy, nil).Infer(context.Background(), tbl, "source")
	assert.Equal(t, schema.ConfidenceOracle, key.Confidence)
	assert.EqualValues(t, 2, oracle.calls)
}

func TestInfer_TimeoutFallsBackToComposite(t *testing.T) {
	oracle := &fakeOracle{suggest: func(call int32, req inference.KeyRequest) ([]string, error) {
		time.Sleep(time.Second)
		return []string{"sku"}, nil
	}}
	tbl := table("items", []string{"sku", "name", "qty"}, []string{"a", "x", "1"}, []string{"a", "x", "2"})

	key, anomalies := New(20, oracle, fastPolicy, nil).Infer(context.Background(), tbl, "target")
	assert.EqualValues(t, 3, atomic.LoadInt32(&oracle.calls))
	assert.Equal(t, []string{"sku", "name", "qty"}, key.Columns)
	assert.Equal(t, schema.ConfidenceFallback, key.Confidence)
	require.Len(t, anomalies, 1)
	assert.Equal(t, anomaly.KeyInferenceFailure, anomalies[0].Kind)
	assert.Equal(t, "target", anomalies[0].Side)
	assert.Contains(t, anomalies[0].Message, "deadline exceeded")
}

func TestInfer_NoOracle(t *testing.T) {
	tbl := table("items", []string{"sku"}, []string{"a"}, []string{"a"})
	key, anomalies := New(20, nil, fastPolicy, nil).Infer(context.Background(), tbl, "source")
	assert.Equal(t, schema.ConfidenceFallback, key.Confidence)
	require.Len(t, anomalies, 1)
	assert.Contains(t, anomalies[0].Message, "no oracle configured")
}

func TestValidate(t *testing.T) {
	tbl := table("t", []string{"Id", "Name"}, []string{"1", "a"})
	cols, err := Validate(tbl, []string{"id"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Id"}, cols)

	for _, bad := range [][]string{nil, {"missing"}, {"id", "ID"}} {
		_, err := Validate(tbl, bad)
		assert.ErrorIs(t, err, inference.ErrRejected)
	}
}

func TestStart(t *testing.T) {
	in := New(20, nil, fastPolicy, nil)
	ready := in.Start(context.Background(), table("t", []string{"id"}, []string{"1"}), "source")
	assert.True(t, ready.Ready())

	release := make(chan struct{})
	oracle := &fakeOracle{suggest: func(call int32, req inference.KeyRequest) ([]string, error) {
		<-release
		return []string{"sku"}, nil
	}}
	pending := New(20, oracle, inference.Policy{Attempts: 1, Timeout: time.Minute}, nil).
		Start(context.Background(), table("items", []string{"sku"}, []string{"a"}), "source")
	assert.False(t, pending.Ready())
	close(release)
	key, _ := pending.Wait()
	assert.Equal(t, []string{"sku"}, key.Columns)
	assert.True(t, pending.Ready())
}

func TestResolve(t *testing.T) {
	withKey := func(tbl *schema.Table, key schema.Key) *schema.Table {
		tbl.Key = key
		return tbl
	}
	heuristic := func(cols ...string) schema.Key {
		return schema.Key{Columns: cols, Confidence: schema.ConfidenceHeuristic}
	}

	src := withKey(table("t", []string{"id", "code"}, []string{"1", "a"}), heuristic("id"))
	tgt := withKey(table("t", []string{"ID", "code"}, []string{"1", "a"}), heuristic("ID"))
	key, err := Resolve(src, tgt)
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, key.Columns)

	tgt = withKey(table("t", []string{"id", "code"}, []string{"1", "a"}), heuristic("code"))
	key, err = Resolve(src, tgt)
	require.NoError(t, err)
	assert.Equal(t, []string{"code"}, key.Columns)

	src = withKey(table("t", []string{"code", "name"}, []string{"a", "b"}), heuristic("name"))
	tgt = withKey(table("t", []string{"id", "code"}, []string{"1", "a"}), heuristic("code"))
	key, err = Resolve(src, tgt)
	require.NoError(t, err)
	assert.Equal(t, []string{"code"}, key.Columns)

	src = withKey(table("t", []string{"a"}, []string{"1"}), heuristic("a"))
	tgt = withKey(table("t", []string{"b"}, []string{"1"}), heuristic("b"))
	_, err = Resolve(src, tgt)
	assert.ErrorIs(t, err, ErrIrreconcilable)

	key, err = Resolve(nil, tgt)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, key.Columns)
}

func TestResolve_IgnoresSide(t *testing.T) {
	withKey := func(tbl *schema.Table, key schema.Key) *schema.Table {
		tbl.Key = key
		return tbl
	}
	testCases := []struct {
		name string
		a    *schema.Table
		b    *schema.Table
		want schema.Key
	}{
		{
			name: "heuristic beats fallback",
			a:    withKey(table("users", []string{"id", "name"}, []string{"1", "A"}), schema.Key{Columns: []string{"id"}, Confidence: schema.ConfidenceHeuristic}),
			b:    withKey(table("users", []string{"id", "name"}, []string{"1", "A"}), schema.Key{Columns: []string{"id", "name"}, Confidence: schema.ConfidenceFallback}),
			want: schema.Key{Columns: []string{"id"}, Confidence: schema.ConfidenceHeuristic},
		},
		{
			name: "oracle beats fallback",
			a:    withKey(table("items", []string{"sku", "qty"}, []string{"a", "1"}), schema.Key{Columns: []string{"sku", "qty"}, Confidence: schema.ConfidenceFallback}),
			b:    withKey(table("items", []string{"sku", "qty"}, []string{"a", "1"}), schema.Key{Columns: []string{"sku"}, Confidence: schema.ConfidenceOracle}),
			want: schema.Key{Columns: []string{"sku"}, Confidence: schema.ConfidenceOracle},
		},
		{
			name: "fewer columns win at equal confidence",
			a:    withKey(table("t", []string{"a", "b", "c"}, []string{"1", "2", "3"}), schema.Key{Columns: []string{"a", "b"}, Confidence: schema.ConfidenceOracle}),
			b:    withKey(table("t", []string{"a", "b", "c"}, []string{"1", "2", "3"}), schema.Key{Columns: []string{"c"}, Confidence: schema.ConfidenceOracle}),
			want: schema.Key{Columns: []string{"c"}, Confidence: schema.ConfidenceOracle},
		},
		{
			name: "lexical order breaks the last tie",
			a:    withKey(table("t", []string{"id", "code"}, []string{"1", "a"}), schema.Key{Columns: []string{"id"}, Confidence: schema.ConfidenceHeuristic}),
			b:    withKey(table("t", []string{"id", "code"}, []string{"1", "a"}), schema.Key{Columns: []string{"code"}, Confidence: schema.ConfidenceHeuristic}),
			want: schema.Key{Columns: []string{"code"}, Confidence: schema.ConfidenceHeuristic},
		},
		{
			name: "equal keys take the lower confidence",
			a:    withKey(table("t", []string{"id"}, []string{"1"}), schema.Key{Columns: []string{"id"}, Confidence: schema.ConfidenceFallback}),
			b:    withKey(table("t", []string{"id"}, []string{"1"}), schema.Key{Columns: []string{"id"}, Confidence: schema.ConfidenceHeuristic}),
			want: schema.Key{Columns: []string{"id"}, Confidence: schema.ConfidenceFallback},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			forward, err := Resolve(tc.a, tc.b)
			require.NoError(t, err)
			backward, err := Resolve(tc.b, tc.a)
			require.NoError(t, err)
			assert.Equal(t, tc.want, forward)
			assert.Equal(t, tc.want, backward)
		})
	}
}
