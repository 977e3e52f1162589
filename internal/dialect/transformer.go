package dialect

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"sql-cleanser/internal/anomaly"
	"sql-cleanser/internal/parser"
	"sql-cleanser/internal/schema"

	"go.uber.org/zap"
)

// ErrUnsupported marks a token passed through unchanged.
var ErrUnsupported = errors.New("unsupported token passed through")

// Statement is one rewritten row.
type Statement struct {
	Columns []string `json:"columns" yaml:"columns"`
	Values  []string `json:"values" yaml:"values"`
	SQL     string   `json:"sql" yaml:"sql"`
	File    string   `json:"file" yaml:"file"`
	Line    int      `json:"line" yaml:"line"`
}

// Output bundles everything emitted for one table. DDL always precedes the
// statements.
type Output struct {
	Table      string            `json:"table" yaml:"table"`
	DDL        []string          `json:"ddl" yaml:"ddl"`
	Statements []Statement       `json:"statements" yaml:"statements"`
	Warnings   []anomaly.Anomaly `json:"warnings" yaml:"warnings"`
}

// SQL renders the bundle as script text.
func (o *Output) SQL() string {
	var b strings.Builder
	for _, ddl := range o.DDL {
		b.WriteString(ddl)
		b.WriteByte('\n')
	}
	for _, s := range o.Statements {
		b.WriteString(s.SQL)
		b.WriteByte('\n')
	}
	return b.String()
}

// TypeMapping pairs a column's type in both dialects.
type TypeMapping struct {
	Column string `json:"column" yaml:"column"`
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Transformer rewrites rows written for one dialect into another.
type Transformer struct {
	From   Dialect
	To     Dialect
	logger *zap.Logger
}

func NewTransformer(from, to string, logger *zap.Logger) (*Transformer, error) {
	src, err := GetDialect(from)
	if err != nil {
		return nil, fmt.Errorf("source dialect: %w", err)
	}
	dst, err := GetDialect(to)
	if err != nil {
		return nil, fmt.Errorf("target dialect: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transformer{From: src, To: dst, logger: logger.Named("transform")}, nil
}

// Reverse returns the transformer for the opposite direction.
func (tr *Transformer) Reverse() *Transformer {
	return &Transformer{From: tr.To, To: tr.From, logger: tr.logger}
}

// Transform rewrites rows of one table. A sole key column holding NULL or a
// sequence expression becomes a target sequence value, numbered above the
// profiled maximum. Sequence expressions in any other column are renamed to
// the target's per-table sequence. Each sequence is declared once, ahead of
// every INSERT.
func (tr *Transformer) Transform(table string, key schema.Key, rows []*schema.Row, profile *Profile) *Output {
	out := &Output{Table: tr.To.NormalizeIdentifier(table), DDL: []string{}, Statements: []Statement{}, Warnings: []anomaly.Anomaly{}}
	surrogate := key.Surrogate()
	declared := map[string]bool{}
	declare := func(column string, start int64) string {
		name := tr.To.SequenceName(table, column)
		if !declared[name] {
			declared[name] = true
			if ddl := tr.To.SequenceDDL(table, column, start); ddl != "" {
				out.DDL = append(out.DDL, ddl)
			}
		}
		return tr.To.NextValue(name)
	}

	for _, row := range rows {
		st := Statement{Columns: row.Columns, Values: make([]string, len(row.Values)), File: row.File, Line: row.Line}
		for i, v := range row.Values {
			column := row.Columns[i]
			if surrogate != "" && strings.EqualFold(column, surrogate) && Generated(v) {
				start := int64(1)
				if profile != nil {
					start = profile.MaxKey + 1
				}
				st.Values[i] = declare(column, start)
				continue
			}
			if _, ok := ParseSequence(v.Raw); ok && v.Kind == schema.KindUnknown {
				st.Values[i] = declare(column, 1)
				continue
			}
			rendered, err := tr.Value(v, column, profile)
			if err != nil {
				a := anomaly.Newf(anomaly.TransformationWarning, table, "column %s: %v", column, err)
				a.File, a.Line = row.File, row.Line
				out.Warnings = append(out.Warnings, a)
			}
			st.Values[i] = rendered
		}
		st.SQL = tr.To.InsertStatement(table, st.Columns, st.Values)
		out.Statements = append(out.Statements, st)
	}
	tr.logger.Debug("table transformed",
		zap.String("table", table),
		zap.String("from", tr.From.Name()),
		zap.String("to", tr.To.Name()),
		zap.Int("statements", len(out.Statements)),
		zap.Int("sequences", len(out.DDL)),
		zap.Int("warnings", len(out.Warnings)))
	return out
}

// Value renders one value in the target dialect. On error the returned text
// is the original literal.
func (tr *Transformer) Value(v schema.Value, column string, profile *Profile) (string, error) {
	switch v.Kind {
	case schema.KindNull:
		return "NULL", nil
	case schema.KindBoolean:
		return tr.To.Boolean(v.Text == "true"), nil
	case schema.KindInteger, schema.KindDecimal:
		if profile.IsBoolean(column) && (v.Text == "0" || v.Text == "1") {
			return tr.To.Boolean(v.Text == "1"), nil
		}
		return v.Text, nil
	case schema.KindString:
		return tr.To.QuoteString(v.Text), nil
	case schema.KindDatetime:
		return tr.To.DateLiteral(v.Text, len(v.Text) > 10), nil
	}
	return tr.Expression(v.Raw)
}

var typeLike = regexp.MustCompile(`^(?i)[a-z_][a-z0-9_ ]*(\(\s*(\d+|max)\s*(,\s*\d+\s*)?\))?(\s+with(out)?\s+(local\s+)?time\s+zone)?$`)

// Expression rewrites functions, sequence calls and casts.
func (tr *Transformer) Expression(raw string) (string, error) {
	expr := strings.TrimSpace(raw)
	if fn := ParseFunction(expr); fn != FuncUnknown {
		return tr.To.Function(fn), nil
	}
	if seq, ok := ParseSequence(expr); ok {
		return tr.To.NextValue(seq), nil
	}
	if operand, sqlType, ok := splitCast(expr); ok {
		return tr.cast(raw, operand, sqlType)
	}
	if i := strings.LastIndex(expr, "::"); i > 0 && typeLike.MatchString(strings.TrimSpace(expr[i+2:])) {
		return tr.cast(raw, expr[:i], expr[i+2:])
	}
	return raw, fmt.Errorf("%w: %s", ErrUnsupported, raw)
}

func (tr *Transformer) cast(raw, operand, sqlType string) (string, error) {
	value, err := tr.Value(parser.Classify(strings.TrimSpace(operand), tr.From.BackslashEscapes()), "", nil)
	if err != nil {
		return raw, err
	}
	mapped, ok := MapType(tr.From, tr.To, strings.TrimSpace(sqlType))
	if !ok {
		return raw, fmt.Errorf("%w: type %s", ErrUnsupported, strings.TrimSpace(sqlType))
	}
	if tr.To.Name() == "postgres" {
		return value + "::" + mapped, nil
	}
	return "CAST(" + value + " AS " + mapped + ")", nil
}

// splitCast parses CAST(<expr> AS <type>).
func splitCast(expr string) (string, string, bool) {
	lower := strings.ToLower(expr)
	if !strings.HasPrefix(lower, "cast") || !strings.HasSuffix(expr, ")") {
		return "", "", false
	}
	rest := strings.TrimSpace(expr[4:])
	if !strings.HasPrefix(rest, "(") {
		return "", "", false
	}
	inner := rest[1 : len(rest)-1]
	i := strings.LastIndex(strings.ToLower(inner), " as ")
	if i < 0 {
		return "", "", false
	}
	sqlType := strings.TrimSpace(inner[i+4:])
	if !typeLike.MatchString(sqlType) {
		return "", "", false
	}
	return inner[:i], sqlType, true
}

// ColumnTypes maps each profiled column into both dialects.
func (tr *Transformer) ColumnTypes(p *Profile) []TypeMapping {
	mappings := make([]TypeMapping, 0, len(p.Columns))
	for _, c := range p.Columns {
		mappings = append(mappings, TypeMapping{
			Column: c.Name,
			Source: tr.From.RenderType(c.Type),
			Target: tr.To.RenderType(c.Type),
		})
	}
	return mappings
}
