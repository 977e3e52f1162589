package diff

import (
	"encoding/json"
	"testing"

	"sql-cleanser/internal/anomaly"
	"sql-cleanser/internal/parser"
	"sql-cleanser/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, dialect, sql string) *schema.Dataset {
	t.Helper()
	rows, errs := parser.New(dialect).ParseAll("test.sql", []byte(sql))
	require.Empty(t, errs)
	ds := schema.NewDataset("test")
	for _, row := range rows {
		ds.Add(row)
	}
	return ds
}

func key(columns ...string) schema.Key {
	return schema.Key{Columns: columns, Confidence: schema.ConfidenceHeuristic}
}

func keys(entries []Entry) [][]string {
	out := [][]string{}
	for _, e := range entries {
		out = append(out, e.Key)
	}
	return out
}

func TestCompare_MissingTable(t *testing.T) {
	src := load(t, "postgres", "INSERT INTO users (id, name) VALUES (1, 'Ann');")
	res, anomalies, err := Compare(src.Table("users"), nil, key("id"), Options{})
	require.NoError(t, err)
	assert.Empty(t, anomalies)
	assert.Equal(t, [][]string{{"1"}}, keys(res.Missing))
	assert.Empty(t, res.Extra)
	assert.Equal(t, 1, res.SourceRows)
	assert.Zero(t, res.TargetRows)
	assert.Equal(t, "Ann", res.Missing[0].Row.Values[1].Text)
}

func TestCompare_Mismatch(t *testing.T) {
	src := load(t, "postgres", "INSERT INTO orders (id, status) VALUES (5, 'OPEN');")
	tgt := load(t, "oracle", "INSERT INTO ORDERS (ID, STATUS) VALUES (5, 'CLOSED');")
	res, _, err := Compare(src.Table("orders"), tgt.Table("orders"), key("id"), Options{})
	require.NoError(t, err)
	require.Len(t, res.Mismatches, 1)
	assert.Equal(t, []string{"5"}, res.Mismatches[0].Key)
	assert.Equal(t, []ColumnMismatch{{
		Column: "status",
		Source: Cell{Raw: "'OPEN'", Kind: schema.KindString},
		Target: Cell{Raw: "'CLOSED'", Kind: schema.KindString},
	}}, res.Mismatches[0].Columns)
	assert.Zero(t, res.Matched)
}

func TestCompare_CompositeFallbackKey(t *testing.T) {
	src := load(t, "postgres", "INSERT INTO items (sku, name, qty) VALUES ('a', 'x', 1), ('b', 'y', 2);")
	tgt := load(t, "postgres", "INSERT INTO items (sku, name, qty) VALUES ('a', 'x', 1), ('b', 'y', 3);")
	fallback := schema.Key{Columns: []string{"sku", "name", "qty"}, Confidence: schema.ConfidenceFallback}

	res, _, err := Compare(src.Table("items"), tgt.Table("items"), fallback, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Mismatches)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, [][]string{{"b", "y", "2"}}, keys(res.Missing))
	assert.Equal(t, [][]string{{"b", "y", "3"}}, keys(res.Extra))
}

func TestCompare_NumericKeyOrder(t *testing.T) {
	src := load(t, "postgres", "INSERT INTO t (id, v) VALUES (10, 'a'), (9, 'b'), (100, 'c'), (NULL, 'n'), (1.50, 'd');")
	testCases := []struct {
		name string
		key  schema.Key
		want [][]string
	}{
		{
			name: "generated surrogate trails the keyed rows",
			key:  key("id"),
			want: [][]string{{"1.5"}, {"9"}, {"10"}, {"100"}, {"NULL"}},
		},
		{
			name: "null sorts first in a low confidence key",
			key:  schema.Key{Columns: []string{"id"}, Confidence: schema.ConfidenceFallback},
			want: [][]string{{"NULL"}, {"1.5"}, {"9"}, {"10"}, {"100"}},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, _, err := Compare(src.Table("t"), nil, tc.key, Options{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, keys(res.Missing))
		})
	}
}

func TestCompare_GeneratedSurrogateKeys(t *testing.T) {
	testCases := []struct {
		name        string
		source      string
		target      string
		wantMatched int
		wantMissing [][]string
		wantExtra   [][]string
	}{
		{
			name:        "null ids on the source only",
			source:      "INSERT INTO users (id, name) VALUES (1, 'Ann'), (NULL, 'Bob'), (NULL, 'Cy');",
			target:      "INSERT INTO users (id, name) VALUES (1, 'Ann');",
			wantMatched: 1,
			wantMissing: [][]string{{"NULL"}, {"NULL"}},
			wantExtra:   [][]string{},
		},
		{
			name:        "sequence calls on the source only",
			source:      "INSERT INTO users (id, name) VALUES (1, 'Ann'), (nextval('users_id_seq'), 'Bob'), (nextval('users_id_seq'), 'Cy');",
			target:      "INSERT INTO users (id, name) VALUES (1, 'Ann');",
			wantMatched: 1,
			wantMissing: [][]string{{"nextval('users_id_seq')"}, {"nextval('users_id_seq')"}},
			wantExtra:   [][]string{},
		},
		{
			name:        "generated rows pair by content",
			source:      "INSERT INTO users (id, name) VALUES (NULL, 'Bob'), (NULL, 'Cy'), (NULL, 'Di');",
			target:      "INSERT INTO users (id, name) VALUES (nextval('users_id_seq'), 'Cy'), (NULL, 'Bob'), (NULL, 'Ed');",
			wantMatched: 2,
			wantMissing: [][]string{{"NULL"}},
			wantExtra:   [][]string{{"NULL"}},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			src := load(t, "postgres", tc.source)
			tgt := load(t, "postgres", tc.target)
			res, anomalies, err := Compare(src.Table("users"), tgt.Table("users"), key("id"), Options{})
			require.NoError(t, err)
			assert.Empty(t, anomalies)
			assert.Equal(t, tc.wantMatched, res.Matched)
			assert.Empty(t, res.Mismatches)
			assert.Equal(t, tc.wantMissing, keys(res.Missing))
			assert.Equal(t, tc.wantExtra, keys(res.Extra))
		})
	}
}

func TestCompare_TextKeyOrder(t *testing.T) {
	src := load(t, "postgres", "INSERT INTO t (code) VALUES ('b'), ('B'), ('a10'), ('a9');")
	res, _, err := Compare(src.Table("t"), nil, key("code"), Options{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"B"}, {"a10"}, {"a9"}, {"b"}}, keys(res.Missing))
}

func TestCompare_CrossDialectEquivalence(t *testing.T) {
	src := load(t, "postgres", `INSERT INTO t (id, active, price, created, note, gone) VALUES
		(1, TRUE, 10.50, DATE '2024-01-02', '', 'x'),
		(2, FALSE, 3, '2024-01-02 10:00:00', NULL, 'y');`)
	tgt := load(t, "oracle", `INSERT INTO T (ID, ACTIVE, PRICE, CREATED, NOTE) VALUES
		(1, 1, 10.5, TO_DATE('2024-01-02', 'YYYY-MM-DD'), NULL),
		('2', 0, 3.00, TIMESTAMP '2024-01-02 10:00:00', NULL);`)

	res, _, err := Compare(src.Table("t"), tgt.Table("t"), key("id"), Options{})
	require.NoError(t, err)
	require.Len(t, res.Mismatches, 2)

	first := res.Mismatches[0]
	assert.Equal(t, []string{"1"}, first.Key)
	require.Len(t, first.Columns, 2)
	assert.Equal(t, "gone", first.Columns[0].Column)
	assert.True(t, first.Columns[0].Target.Absent)
	assert.Equal(t, "note", first.Columns[1].Column)
	assert.Equal(t, schema.KindNull, first.Columns[1].Target.Kind)

	second := res.Mismatches[1]
	assert.Equal(t, []string{"2"}, second.Key)
	require.Len(t, second.Columns, 1)
	assert.Equal(t, "gone", second.Columns[0].Column)
}

func TestCompare_ExcludedColumns(t *testing.T) {
	src := load(t, "postgres", "INSERT INTO t (id, updated_at, v) VALUES (1, '2024-01-01', 'a');")
	tgt := load(t, "postgres", "INSERT INTO t (id, updated_at, v) VALUES (1, '2025-01-01', 'a');")
	opts := Options{Exclude: func(c string) bool { return c == "updated_at" }}
	res, _, err := Compare(src.Table("t"), tgt.Table("t"), key("id"), opts)
	require.NoError(t, err)
	assert.Empty(t, res.Mismatches)
	assert.Equal(t, 1, res.Matched)
}

func TestCompare_DuplicateKeyLastWins(t *testing.T) {
	src := load(t, "postgres", "INSERT INTO t (id, v) VALUES (1, 'old');\nINSERT INTO t (id, v) VALUES (1, 'new');")
	tgt := load(t, "postgres", "INSERT INTO t (id, v) VALUES (1, 'new');")
	res, anomalies, err := Compare(src.Table("t"), tgt.Table("t"), key("id"), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matched)
	require.Len(t, anomalies, 1)
	assert.Equal(t, anomaly.DuplicateKey, anomalies[0].Kind)
	assert.Equal(t, "source", anomalies[0].Side)
	assert.Equal(t, 2, anomalies[0].Line)
}

func TestCompare_TableScopedFailures(t *testing.T) {
	src := load(t, "postgres", "INSERT INTO t (id, v) VALUES (1, 'a');\nINSERT INTO t (v) VALUES ('b');")
	_, _, err := Compare(src.Table("t"), nil, key("id"), Options{})
	assert.ErrorContains(t, err, `no key column "id"`)

	_, _, err = Compare(src.Table("t"), nil, schema.Key{}, Options{})
	assert.ErrorIs(t, err, ErrNoKey)

	failed := Failed("t", key("id"), err)
	assert.NotEmpty(t, failed.Failure)
	assert.Empty(t, failed.Missing)
}

const sourceSQL = `INSERT INTO p (id, a, b) VALUES (1, 'x', 1), (2, 'y', 2), (3, 'z', 3), (7, 'q', NULL), (11, 'k', 0);`
const targetSQL = `INSERT INTO p (id, a, b) VALUES (2, 'y', 2), (3, 'Z', 3), (4, 'w', 4), (11, 'k', 0), (12, 'm', 1);`

func TestCompare_Properties(t *testing.T) {
	src := load(t, "postgres", sourceSQL).Table("p")
	tgt := load(t, "postgres", targetSQL).Table("p")

	forward, _, err := Compare(src, tgt, key("id"), Options{})
	require.NoError(t, err)

	t.Run("deterministic", func(t *testing.T) {
		again, _, err := Compare(src, tgt, key("id"), Options{})
		require.NoError(t, err)
		a, _ := json.Marshal(forward)
		b, _ := json.Marshal(again)
		assert.Equal(t, string(a), string(b))
	})

	t.Run("complete", func(t *testing.T) {
		covered := map[string]int{}
		for _, e := range forward.Missing {
			covered[e.Key[0]]++
		}
		for _, e := range forward.Extra {
			covered[e.Key[0]]++
		}
		for _, m := range forward.Mismatches {
			covered[m.Key[0]]++
		}
		for k, n := range covered {
			assert.Equal(t, 1, n, k)
		}
		// union of ids on both sides: 1 2 3 4 7 11 12
		assert.Equal(t, 2, forward.Matched)
		assert.Equal(t, 7, len(covered)+forward.Matched)
		assert.Equal(t, [][]string{{"1"}, {"7"}}, keys(forward.Missing))
		assert.Equal(t, [][]string{{"4"}, {"12"}}, keys(forward.Extra))
	})

	t.Run("symmetric", func(t *testing.T) {
		backward, _, err := Compare(tgt, src, key("id"), Options{})
		require.NoError(t, err)
		assert.Equal(t, keys(forward.Missing), keys(backward.Extra))
		assert.Equal(t, keys(forward.Extra), keys(backward.Missing))
		require.Len(t, backward.Mismatches, len(forward.Mismatches))
		for i, m := range forward.Mismatches {
			assert.Equal(t, m.Key, backward.Mismatches[i].Key)
			for j, c := range m.Columns {
				assert.Equal(t, c.Source, backward.Mismatches[i].Columns[j].Target)
				assert.Equal(t, c.Target, backward.Mismatches[i].Columns[j].Source)
			}
		}
	})
}

func TestEquivalent(t *testing.T) {
	v := func(raw, text string, kind schema.ValueKind) schema.Value {
		return schema.Value{Raw: raw, Text: text, Kind: kind}
	}
	testCases := []struct {
		name string
		a, b schema.Value
		want bool
	}{
		{"null null", schema.Null, schema.Null, true},
		{"null empty", schema.Null, v("''", "", schema.KindString), false},
		{"decimal scale", v("1.50", "1.50", schema.KindDecimal), v("1.5", "1.5", schema.KindDecimal), true},
		{"number vs numeric string", v("7", "7", schema.KindInteger), v("'7'", "7", schema.KindString), true},
		{"boolean vs bit", v("TRUE", "true", schema.KindBoolean), v("1", "1", schema.KindInteger), true},
		{"boolean vs wrong bit", v("TRUE", "true", schema.KindBoolean), v("0", "0", schema.KindInteger), false},
		{"boolean vs text", v("TRUE", "true", schema.KindBoolean), v("'yes'", "yes", schema.KindString), false},
		{"datetime iso T", v("'2024-01-02T10:00:00'", "2024-01-02T10:00:00", schema.KindDatetime), v("'2024-01-02 10:00:00'", "2024-01-02 10:00:00", schema.KindDatetime), true},
		{"case sensitive text", v("'a'", "a", schema.KindString), v("'A'", "A", schema.KindString), false},
		{"functions ignore spacing and case", v("NOW()", "NOW()", schema.KindUnknown), v("now( )", "now( )", schema.KindUnknown), true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Equivalent(tc.a, tc.b))
			assert.Equal(t, tc.want, Equivalent(tc.b, tc.a))
		})
	}
}

func TestSummarize(t *testing.T) {
	results := []*TableResult{
		{Table: "users", Missing: make([]Entry, 2), Matched: 3},
		{Table: "orders", Extra: make([]Entry, 1), Mismatches: make([]Mismatch, 4)},
		{Table: "broken", Failure: "boom"},
	}
	s := Summarize(results)
	require.Len(t, s.Tables, 3)
	assert.Equal(t, "broken", s.Tables[0].Table)
	assert.True(t, s.Tables[0].Failed)
	assert.Equal(t, Counts{Missing: 2, Extra: 1, Mismatches: 4, Matched: 3}, s.Totals)
}
