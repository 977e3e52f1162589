package dialect

import (
	"fmt"
	"strconv"
	"strings"
)

// TypeClass is a dialect-neutral type family.
type TypeClass string

const (
	ClassSmallInt    TypeClass = "smallint"
	ClassInteger     TypeClass = "integer"
	ClassBigInt      TypeClass = "bigint"
	ClassDecimal     TypeClass = "decimal"
	ClassFloat       TypeClass = "float"
	ClassDouble      TypeClass = "double"
	ClassChar        TypeClass = "char"
	ClassVarchar     TypeClass = "varchar"
	ClassText        TypeClass = "text"
	ClassBinary      TypeClass = "binary"
	ClassBlob        TypeClass = "blob"
	ClassBoolean     TypeClass = "boolean"
	ClassDate        TypeClass = "date"
	ClassTime        TypeClass = "time"
	ClassTimestamp   TypeClass = "timestamp"
	ClassTimestampTZ TypeClass = "timestamptz"
	ClassInterval    TypeClass = "interval"
	ClassUUID        TypeClass = "uuid"
	ClassJSON        TypeClass = "json"
	ClassXML         TypeClass = "xml"
)

// TypeSpec is a parsed column type. Zero Length/Precision mean unspecified.
type TypeSpec struct {
	Class     TypeClass `json:"class" yaml:"class"`
	Length    int       `json:"length,omitempty" yaml:"length,omitempty"`
	Precision int       `json:"precision,omitempty" yaml:"precision,omitempty"`
	Scale     int       `json:"scale,omitempty" yaml:"scale,omitempty"`
}

func (t TypeSpec) String() string {
	switch {
	case t.Precision > 0:
		return fmt.Sprintf("%s(%d,%d)", t.Class, t.Precision, t.Scale)
	case t.Length > 0:
		return fmt.Sprintf("%s(%d)", t.Class, t.Length)
	}
	return string(t.Class)
}

// typeName splits `varchar(20)`, `numeric(10, 2)` or
// `timestamp(6) with time zone` into a normalized base name and arguments.
func typeName(sqlType string) (string, []int, bool) {
	s := strings.ToLower(strings.Join(strings.Fields(sqlType), " "))
	if s == "" {
		return "", nil, false
	}
	var args []int
	if open := strings.IndexByte(s, '('); open >= 0 {
		end := strings.IndexByte(s[open:], ')')
		if end < 0 {
			return "", nil, false
		}
		for _, a := range strings.Split(s[open+1:open+end], ",") {
			a = strings.TrimSpace(a)
			if a == "max" {
				args = append(args, -1)
				continue
			}
			n, err := strconv.Atoi(a)
			if err != nil {
				return "", nil, false
			}
			args = append(args, n)
		}
		s = strings.TrimSpace(s[:open] + " " + strings.TrimSpace(s[open+end+1:]))
		s = strings.Join(strings.Fields(s), " ")
	}
	return s, args, true
}

// lookupType resolves base names through a per-dialect table and copies
// length or precision arguments onto the spec.
func lookupType(sqlType string, names map[string]TypeClass) (TypeSpec, bool) {
	base, args, ok := typeName(sqlType)
	if !ok {
		return TypeSpec{}, false
	}
	class, ok := names[base]
	if !ok {
		return TypeSpec{}, false
	}
	spec := TypeSpec{Class: class}
	switch class {
	case ClassDecimal:
		if len(args) > 0 {
			spec.Precision = args[0]
		}
		if len(args) > 1 {
			spec.Scale = args[1]
		}
	case ClassChar, ClassVarchar, ClassBinary:
		if len(args) > 0 {
			if args[0] < 0 {
				spec.Class = map[TypeClass]TypeClass{ClassVarchar: ClassText, ClassChar: ClassText, ClassBinary: ClassBlob}[class]
			} else {
				spec.Length = args[0]
			}
		}
	}
	return spec, true
}

// integerClass maps NUMBER(p) precisions back to the integer class that
// renders them: 5, 10 and 19 digits.
func integerClass(precision int) TypeClass {
	switch {
	case precision <= 0:
		return ClassDecimal
	case precision <= 5:
		return ClassSmallInt
	case precision <= 10:
		return ClassInteger
	case precision <= 19:
		return ClassBigInt
	}
	return ClassDecimal
}

// digitsClass picks the narrowest integer class that holds every value
// with the given number of digits.
func digitsClass(digits int) TypeClass {
	switch {
	case digits <= 4:
		return ClassSmallInt
	case digits <= 9:
		return ClassInteger
	case digits <= 18:
		return ClassBigInt
	}
	return ClassDecimal
}

// MapType rewrites a type name from one dialect into another.
func MapType(from, to Dialect, sqlType string) (string, bool) {
	spec, ok := from.ParseType(sqlType)
	if !ok {
		return sqlType, false
	}
	return to.RenderType(spec), true
}

func withLength(name string, n, fallback int) string {
	if n <= 0 {
		n = fallback
	}
	return fmt.Sprintf("%s(%d)", name, n)
}

func withPrecision(name string, spec TypeSpec) string {
	if spec.Precision <= 0 {
		return name
	}
	return fmt.Sprintf("%s(%d,%d)", name, spec.Precision, spec.Scale)
}
