package dialect

import (
	"fmt"
	"strings"
	"testing"

	"sql-cleanser/internal/anomaly"
	"sql-cleanser/internal/parser"
	"sql-cleanser/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func loadTable(t *testing.T, dialect, sql string) *schema.Table {
	t.Helper()
	rows, errs := parser.New(dialect).ParseAll("in.sql", []byte(sql))
	require.Empty(t, errs)
	ds := schema.NewDataset("source")
	for _, row := range rows {
		ds.Add(row)
	}
	return ds.Table(rows[0].Table)
}

func newTransformer(t *testing.T, from, to string) *Transformer {
	t.Helper()
	tr, err := NewTransformer(from, to, zaptest.NewLogger(t))
	require.NoError(t, err)
	return tr
}

var idKey = schema.Key{Columns: []string{"id"}, Confidence: schema.ConfidenceHeuristic}

func TestTransform_PlainRow(t *testing.T) {
	tbl := loadTable(t, "postgres", "INSERT INTO users (id, name) VALUES (1, 'Ann');")
	tr := newTransformer(t, "postgres", "oracle")
	out := tr.Transform("users", idKey, tbl.Rows, ProfileTable(tbl, idKey, tr.From))

	assert.Empty(t, out.DDL)
	assert.Empty(t, out.Warnings)
	require.Len(t, out.Statements, 1)
	assert.Equal(t, "INSERT INTO USERS (ID, NAME) VALUES (1, 'Ann');", out.Statements[0].SQL)
	assert.Equal(t, "USERS", out.Table)
}

func TestTransform_SurrogateKeys(t *testing.T) {
	sql := `INSERT INTO users (id, name) VALUES (7, 'Ann'), (NULL, 'Bob'), (NULL, 'Cy'),
		(nextval('users_id_seq'), 'Di'), (nextval('users_id_seq'), 'Ed');`
	tbl := loadTable(t, "postgres", sql)

	testCases := []struct {
		to   string
		ddl  []string
		next string
		row  string
	}{
		{
			to:   "oracle",
			ddl:  []string{"CREATE SEQUENCE USERS_SEQ START WITH 8 INCREMENT BY 1 NOCACHE;"},
			next: "USERS_SEQ.NEXTVAL",
			row:  "INSERT INTO USERS (ID, NAME) VALUES (%s, '%s');",
		},
		{
			to:   "mssql",
			ddl:  []string{"CREATE SEQUENCE users_id_seq START WITH 8 INCREMENT BY 1;"},
			next: "NEXT VALUE FOR users_id_seq",
			row:  "INSERT INTO users (id, name) VALUES (%s, '%s');",
		},
		{
			to:   "mysql",
			ddl:  []string{},
			next: "NULL",
			row:  "INSERT INTO users (id, name) VALUES (%s, '%s');",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.to, func(t *testing.T) {
			tr := newTransformer(t, "postgres", tc.to)
			out := tr.Transform("users", idKey, tbl.Rows, ProfileTable(tbl, idKey, tr.From))
			assert.Equal(t, tc.ddl, out.DDL)
			want := []string{fmt.Sprintf(tc.row, "7", "Ann")}
			for _, name := range []string{"Bob", "Cy", "Di", "Ed"} {
				want = append(want, fmt.Sprintf(tc.row, tc.next, name))
			}
			var sqls []string
			for _, s := range out.Statements {
				sqls = append(sqls, s.SQL)
			}
			assert.Equal(t, want, sqls)
			assert.Empty(t, out.Warnings)

			lines := strings.Split(strings.TrimSpace(out.SQL()), "\n")
			assert.Len(t, lines, len(tc.ddl)+5)
			if len(tc.ddl) > 0 {
				assert.Equal(t, tc.ddl[0], lines[0])
				assert.Equal(t, 1, strings.Count(out.SQL(), "CREATE SEQUENCE"))
			}
		})
	}
}

func TestTransform_SequenceCallsOutsideTheKey(t *testing.T) {
	testCases := []struct {
		name string
		sql  string
		key  schema.Key
		ddl  []string
		sqls []string
	}{
		{
			name: "low confidence key",
			sql:  "INSERT INTO users (id, name) VALUES (nextval('users_id_seq'), 'Bob'), (nextval('users_id_seq'), 'Cy');",
			key:  schema.Key{Columns: []string{"id", "name"}, Confidence: schema.ConfidenceFallback},
			ddl:  []string{"CREATE SEQUENCE USERS_SEQ START WITH 1 INCREMENT BY 1 NOCACHE;"},
			sqls: []string{
				"INSERT INTO USERS (ID, NAME) VALUES (USERS_SEQ.NEXTVAL, 'Bob');",
				"INSERT INTO USERS (ID, NAME) VALUES (USERS_SEQ.NEXTVAL, 'Cy');",
			},
		},
		{
			name: "non key column",
			sql:  "INSERT INTO users (id, ticket) VALUES (1, nextval('ticket_seq')), (2, nextval('ticket_seq'));",
			key:  idKey,
			ddl:  []string{"CREATE SEQUENCE USERS_SEQ START WITH 1 INCREMENT BY 1 NOCACHE;"},
			sqls: []string{
				"INSERT INTO USERS (ID, TICKET) VALUES (1, USERS_SEQ.NEXTVAL);",
				"INSERT INTO USERS (ID, TICKET) VALUES (2, USERS_SEQ.NEXTVAL);",
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tbl := loadTable(t, "postgres", tc.sql)
			out := newTransformer(t, "postgres", "oracle").Transform("users", tc.key, tbl.Rows, nil)
			assert.Equal(t, tc.ddl, out.DDL)
			var sqls []string
			for _, s := range out.Statements {
				sqls = append(sqls, s.SQL)
			}
			assert.Equal(t, tc.sqls, sqls)
			assert.Empty(t, out.Warnings)
		})
	}
}

func TestTransform_SequencePerColumnInPostgres(t *testing.T) {
	tbl := loadTable(t, "oracle", "INSERT INTO ORDERS (ID, REF) VALUES (ORDERS_SEQ.NEXTVAL, REFS_SEQ.NEXTVAL), (ORDERS_SEQ.NEXTVAL, REFS_SEQ.NEXTVAL);")
	out := newTransformer(t, "oracle", "postgres").Transform("orders", idKey, tbl.Rows, nil)
	assert.Equal(t, []string{
		"CREATE SEQUENCE IF NOT EXISTS orders_id_seq START WITH 1;",
		"CREATE SEQUENCE IF NOT EXISTS orders_ref_seq START WITH 1;",
	}, out.DDL)
	require.Len(t, out.Statements, 2)
	assert.Equal(t, "INSERT INTO orders (id, ref) VALUES (nextval('orders_id_seq'), nextval('orders_ref_seq'));", out.Statements[1].SQL)
}

func TestTransform_OracleToPostgres(t *testing.T) {
	sql := `INSERT INTO ACCOUNTS (ID, IS_ACTIVE, OPENED, SEEN_AT, NOTE, TOKEN, RATE) VALUES
		(1, 1, TO_DATE('2024-01-02', 'YYYY-MM-DD'), SYSTIMESTAMP, 'it''s', SYS_GUID(), 0.5),
		(2, 0, DATE '2024-02-03', CAST(SYSDATE AS DATE), NULL, NULL, 1);`
	tbl := loadTable(t, "oracle", sql)
	tr := newTransformer(t, "oracle", "postgres")
	profile := ProfileTable(tbl, idKey, tr.From)
	assert.True(t, profile.IsBoolean("is_active"))

	out := tr.Transform("accounts", idKey, tbl.Rows, profile)
	require.Len(t, out.Statements, 2)
	assert.Equal(t,
		"INSERT INTO accounts (id, is_active, opened, seen_at, note, token, rate) VALUES (1, TRUE, DATE '2024-01-02', CURRENT_TIMESTAMP, 'it''s', gen_random_uuid(), 0.5);",
		out.Statements[0].SQL)
	assert.Equal(t,
		"INSERT INTO accounts (id, is_active, opened, seen_at, note, token, rate) VALUES (2, FALSE, DATE '2024-02-03', CURRENT_TIMESTAMP::timestamp, NULL, NULL, 1);",
		out.Statements[1].SQL)
	assert.Empty(t, out.Warnings)
}

func TestTransform_BooleanProfileNeedsFlagName(t *testing.T) {
	tbl := loadTable(t, "mysql", "INSERT INTO t (id, qty, has_stock) VALUES (1, 1, 1), (2, 0, 0);")
	tr := newTransformer(t, "mysql", "postgres")
	profile := ProfileTable(tbl, idKey, tr.From)
	assert.False(t, profile.IsBoolean("qty"))
	assert.True(t, profile.IsBoolean("has_stock"))

	out := tr.Transform("t", idKey, tbl.Rows, profile)
	assert.Equal(t, "INSERT INTO t (id, qty, has_stock) VALUES (1, 1, TRUE);", out.Statements[0].SQL)
}

func TestBooleanName(t *testing.T) {
	testCases := []struct {
		column string
		want   bool
	}{
		{column: "is_active", want: true},
		{column: "HAS_STOCK", want: true},
		{column: "can_edit", want: true},
		{column: "del_yn", want: true},
		{column: "promo_flag", want: true},
		{column: "name", want: false},
		{column: "island", want: false},
		{column: "qty", want: false},
	}
	for _, tc := range testCases {
		t.Run(tc.column, func(t *testing.T) {
			assert.Equal(t, tc.want, BooleanName(tc.column))
		})
	}
}

func TestTransform_NativeBooleanSourceKeepsIntegers(t *testing.T) {
	tbl := loadTable(t, "postgres", "INSERT INTO t (id, is_x) VALUES (1, 1), (2, 0);")
	tr := newTransformer(t, "postgres", "oracle")
	assert.False(t, ProfileTable(tbl, idKey, tr.From).IsBoolean("is_x"))
}

func TestTransform_UnsupportedTokenWarns(t *testing.T) {
	tbl := loadTable(t, "postgres", "INSERT INTO t (id, doc) VALUES (1, to_tsvector('english', 'x'));")
	tr := newTransformer(t, "postgres", "oracle")
	out := tr.Transform("t", idKey, tbl.Rows, nil)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, anomaly.TransformationWarning, out.Warnings[0].Kind)
	assert.Equal(t, "in.sql", out.Warnings[0].File)
	assert.Contains(t, out.Statements[0].SQL, "to_tsvector('english', 'x')")
}

func TestTransform_FallbackKeyNeverUsesSequence(t *testing.T) {
	tbl := loadTable(t, "postgres", "INSERT INTO t (code) VALUES (NULL);")
	fallback := schema.Key{Columns: []string{"code"}, Confidence: schema.ConfidenceFallback}
	out := newTransformer(t, "postgres", "oracle").Transform("t", fallback, tbl.Rows, nil)
	assert.Empty(t, out.DDL)
	assert.Equal(t, "INSERT INTO T (CODE) VALUES (NULL);", out.Statements[0].SQL)
}

func TestOutput_SQL(t *testing.T) {
	out := &Output{DDL: []string{"CREATE SEQUENCE S;"}, Statements: []Statement{{SQL: "INSERT 1;"}, {SQL: "INSERT 2;"}}}
	assert.Equal(t, "CREATE SEQUENCE S;\nINSERT 1;\nINSERT 2;\n", out.SQL())
}

func TestExpression_Casts(t *testing.T) {
	tr := newTransformer(t, "postgres", "oracle")
	got, err := tr.Expression("CAST(now() AS date)")
	require.NoError(t, err)
	assert.Equal(t, "CAST(SYSTIMESTAMP AS DATE)", got)

	got, err = tr.Expression("now()::timestamptz")
	require.NoError(t, err)
	assert.Equal(t, "CAST(SYSTIMESTAMP AS TIMESTAMP WITH TIME ZONE)", got)

	_, err = tr.Expression("CAST(now() AS tsvector)")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestColumnTypes(t *testing.T) {
	tbl := loadTable(t, "postgres", `INSERT INTO t (id, name, price, born, active, ref) VALUES
		(1, 'Ann', 10.25, '2024-01-02', TRUE, 'a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11'),
		(123456, 'Bobby', 3, '2024-01-03', FALSE, 'b0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11');`)
	tr := newTransformer(t, "postgres", "oracle")
	mappings := tr.ColumnTypes(ProfileTable(tbl, idKey, tr.From))
	assert.Equal(t, []TypeMapping{
		{Column: "id", Source: "integer", Target: "NUMBER(10)"},
		{Column: "name", Source: "varchar(5)", Target: "VARCHAR2(5)"},
		{Column: "price", Source: "numeric(4,2)", Target: "NUMBER(4,2)"},
		{Column: "born", Source: "date", Target: "DATE"},
		{Column: "active", Source: "boolean", Target: "NUMBER(1)"},
		{Column: "ref", Source: "uuid", Target: "RAW(16)"},
	}, mappings)
}
