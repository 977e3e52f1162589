package dialect

import (
	"regexp"
	"strings"

	"sql-cleanser/internal/schema"
)

// Function is a dialect-neutral value-producing function.
type Function int

const (
	FuncUnknown Function = iota
	FuncCurrentTimestamp
	FuncCurrentDate
	FuncCurrentTime
	FuncUUID
)

var functionNames = map[string]Function{
	"now":               FuncCurrentTimestamp,
	"current_timestamp": FuncCurrentTimestamp,
	"localtimestamp":    FuncCurrentTimestamp,
	"systimestamp":      FuncCurrentTimestamp,
	"sysdate":           FuncCurrentTimestamp,
	"getdate":           FuncCurrentTimestamp,
	"sysdatetime":       FuncCurrentTimestamp,
	"current_date":      FuncCurrentDate,
	"curdate":           FuncCurrentDate,
	"current_time":      FuncCurrentTime,
	"curtime":           FuncCurrentTime,
	"localtime":         FuncCurrentTime,
	"gen_random_uuid":   FuncUUID,
	"uuid_generate_v4":  FuncUUID,
	"uuid":              FuncUUID,
	"sys_guid":          FuncUUID,
	"newid":             FuncUUID,
}

// functionPattern matches `name`, `name()` and `name(3)` (precision only).
var functionPattern = regexp.MustCompile(`^(?i)([a-z_][a-z0-9_]*)\s*(\(\s*\d*\s*\))?$`)

// ParseFunction recognizes an argument-less function call in any dialect.
func ParseFunction(expr string) Function {
	m := functionPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return FuncUnknown
	}
	return functionNames[strings.ToLower(m[1])]
}

var (
	pgNextval    = regexp.MustCompile(`^(?i)nextval\s*\(\s*'([^']+)'(?:\s*::\s*regclass)?\s*\)$`)
	oraNextval   = regexp.MustCompile(`^(?i)([a-z_][a-z0-9_$#."]*)\.nextval$`)
	mssqlNextval = regexp.MustCompile(`^(?i)next\s+value\s+for\s+([a-z_\[\]][a-z0-9_.\[\]"]*)$`)
)

// ParseSequence recognizes a next-value expression and returns the
// sequence name without schema or quotes.
func ParseSequence(expr string) (string, bool) {
	expr = strings.TrimSpace(expr)
	for _, re := range []*regexp.Regexp{pgNextval, oraNextval, mssqlNextval} {
		if m := re.FindStringSubmatch(expr); m != nil {
			name := m[1]
			if i := strings.LastIndexByte(name, '.'); i >= 0 {
				name = name[i+1:]
			}
			return strings.Trim(name, `"[]`), true
		}
	}
	return "", false
}

// Generated reports whether a value stands for a key the database assigns:
// NULL or a next-value expression.
func Generated(v schema.Value) bool {
	if v.IsNull() {
		return true
	}
	if v.Kind != schema.KindUnknown {
		return false
	}
	_, ok := ParseSequence(v.Raw)
	return ok
}
