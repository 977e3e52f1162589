package dialect

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"sql-cleanser/internal/schema"

	"github.com/shopspring/decimal"
)

// ColumnProfile is what the values of one column say about its type.
type ColumnProfile struct {
	Name     string   `json:"name" yaml:"name"`
	Type     TypeSpec `json:"type" yaml:"type"`
	Boolean  bool     `json:"boolean,omitempty" yaml:"boolean,omitempty"`
	Nullable bool     `json:"nullable,omitempty" yaml:"nullable,omitempty"`
}

// Profile summarizes one table on one side. MaxKey is the largest integer
// value of a single-column key, used to start generated sequences.
type Profile struct {
	Table   string          `json:"table" yaml:"table"`
	Columns []ColumnProfile `json:"columns" yaml:"columns"`
	MaxKey  int64           `json:"-" yaml:"-"`
}

func (p *Profile) Column(name string) (ColumnProfile, bool) {
	if p == nil {
		return ColumnProfile{}, false
	}
	for _, c := range p.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnProfile{}, false
}

func (p *Profile) IsBoolean(column string) bool {
	c, ok := p.Column(column)
	return ok && c.Boolean
}

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// BooleanName reports whether a column name reads as a flag: an `is_`,
// `has_` or `can_` prefix, or a `_flag` or `_yn` suffix.
func BooleanName(column string) bool {
	c := strings.ToLower(column)
	for _, prefix := range []string{"is_", "has_", "can_"} {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return strings.HasSuffix(c, "_flag") || strings.HasSuffix(c, "_yn")
}

// ProfileTable infers column types from the values of t as written in the
// from dialect.
func ProfileTable(t *schema.Table, key schema.Key, from Dialect) *Profile {
	p := &Profile{Table: t.Name}
	for _, column := range t.Columns {
		p.Columns = append(p.Columns, profileColumn(t, column, from))
	}
	if len(key.Columns) == 1 {
		for _, row := range t.Rows {
			v, ok := row.Get(key.Columns[0])
			if !ok || v.Kind != schema.KindInteger {
				continue
			}
			if d, err := decimal.NewFromString(v.Text); err == nil && d.IntPart() > p.MaxKey {
				p.MaxKey = d.IntPart()
			}
		}
	}
	return p
}

type columnStats struct {
	kinds    map[schema.ValueKind]int
	nonNull  int
	nulls    int
	maxLen   int
	intLen   int
	scale    int
	withTime bool
	bits     bool // every integer value is 0 or 1
	uuids    bool
}

func profileColumn(t *schema.Table, column string, from Dialect) ColumnProfile {
	s := columnStats{kinds: map[schema.ValueKind]int{}, bits: true, uuids: true}
	for _, row := range t.Rows {
		v, ok := row.Get(column)
		if !ok || v.IsNull() {
			s.nulls++
			continue
		}
		if Generated(v) {
			// sequence calls say nothing about the column type
			continue
		}
		s.nonNull++
		s.kinds[v.Kind]++
		s.maxLen = max(s.maxLen, utf8.RuneCountInString(v.Text))
		switch v.Kind {
		case schema.KindInteger, schema.KindDecimal:
			digits := strings.TrimLeft(v.Text, "-+")
			whole, frac, _ := strings.Cut(digits, ".")
			s.intLen = max(s.intLen, len(strings.TrimLeft(whole, "0")))
			s.scale = max(s.scale, len(frac))
			if v.Text != "0" && v.Text != "1" {
				s.bits = false
			}
		case schema.KindDatetime:
			s.withTime = s.withTime || len(v.Text) > 10
		}
		if !uuidPattern.MatchString(v.Text) {
			s.uuids = false
		}
	}
	cp := ColumnProfile{Name: column, Nullable: s.nulls > 0, Type: s.typeSpec()}
	switch {
	case s.nonNull > 0 && s.kinds[schema.KindBoolean] == s.nonNull:
		cp.Boolean = true
	case !from.NativeBoolean() && s.nonNull > 0 && s.kinds[schema.KindInteger] == s.nonNull && s.bits && BooleanName(column):
		cp.Boolean = true
	}
	if cp.Boolean {
		cp.Type = TypeSpec{Class: ClassBoolean}
	}
	return cp
}

func (s columnStats) typeSpec() TypeSpec {
	numeric := s.kinds[schema.KindInteger] + s.kinds[schema.KindDecimal]
	switch {
	case s.nonNull == 0:
		return TypeSpec{Class: ClassVarchar}
	case s.kinds[schema.KindInteger] == s.nonNull:
		if class := digitsClass(s.intLen); class != ClassDecimal {
			return TypeSpec{Class: class}
		}
		return TypeSpec{Class: ClassDecimal, Precision: s.intLen}
	case numeric == s.nonNull:
		return TypeSpec{Class: ClassDecimal, Precision: max(s.intLen+s.scale, 1), Scale: s.scale}
	case s.kinds[schema.KindDatetime] == s.nonNull:
		if s.withTime {
			return TypeSpec{Class: ClassTimestamp}
		}
		return TypeSpec{Class: ClassDate}
	case s.kinds[schema.KindString] == s.nonNull && s.uuids:
		return TypeSpec{Class: ClassUUID}
	case s.maxLen > 4000:
		return TypeSpec{Class: ClassText}
	}
	return TypeSpec{Class: ClassVarchar, Length: max(s.maxLen, 1)}
}
