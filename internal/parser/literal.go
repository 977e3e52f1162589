package parser

import (
	"regexp"
	"strings"

	"sql-cleanser/internal/schema"
)

var (
	numberExpr   = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
	integerExpr  = regexp.MustCompile(`^[+-]?\d+$`)
	datetimeExpr = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}([ T]\d{2}:\d{2}(:\d{2}(\.\d+)?)?)?( ?(Z|[+-]\d{2}(:?\d{2})?))?$`)
	typedExpr    = regexp.MustCompile(`(?is)^(date|time|timestamp(\s+with(out)?\s+time\s+zone)?)\s*(['].*)$`)
	toDateExpr   = regexp.MustCompile(`(?is)^(to_date|to_timestamp|to_timestamp_tz)\s*\((.*)\)$`)
	castExpr     = regexp.MustCompile(`(?is)^cast\s*\((.*)\s+as\s+([a-z0-9_ (),]+)\)$`)
)

// Classify recognizes the literal class of a raw SQL value expression.
func Classify(raw string, backslash bool) schema.Value {
	text := strings.TrimSpace(raw)
	value := schema.Value{Raw: text, Text: text, Kind: schema.KindUnknown}
	if text == "" {
		return value
	}
	upper := strings.ToUpper(text)
	switch upper {
	case "NULL":
		return schema.Value{Raw: text, Kind: schema.KindNull}
	case "TRUE", "FALSE":
		value.Kind = schema.KindBoolean
		value.Text = strings.ToLower(upper)
		return value
	}

	if content, ok := unquote(text, backslash); ok {
		value.Text = content
		value.Kind = schema.KindString
		if datetimeExpr.MatchString(content) {
			value.Kind = schema.KindDatetime
		}
		return value
	}
	if numberExpr.MatchString(text) {
		value.Text = strings.TrimPrefix(text, "+")
		value.Kind = schema.KindDecimal
		if integerExpr.MatchString(text) {
			value.Kind = schema.KindInteger
		}
		return value
	}
	if m := typedExpr.FindStringSubmatch(text); m != nil {
		if content, ok := unquote(m[4], backslash); ok {
			value.Text = content
			value.Kind = schema.KindDatetime
		}
		return value
	}
	if m := toDateExpr.FindStringSubmatch(text); m != nil {
		args := splitList(m[2], backslash)
		if len(args) > 0 {
			if content, ok := unquote(strings.TrimSpace(args[0]), backslash); ok {
				value.Text = content
				value.Kind = schema.KindDatetime
			}
		}
		return value
	}
	if m := castExpr.FindStringSubmatch(text); m != nil {
		return retype(text, Classify(m[1], backslash), m[2])
	}
	if i := castOperatorIndex(text); i > 0 {
		return retype(text, Classify(text[:i], backslash), text[i+2:])
	}
	return value
}

// retype applies the target type of an explicit cast to the inner value.
func retype(raw string, inner schema.Value, typeName string) schema.Value {
	inner.Raw = raw
	if inner.IsNull() || inner.Kind == schema.KindUnknown {
		return inner
	}
	t := strings.ToLower(strings.TrimSpace(typeName))
	switch {
	case strings.HasPrefix(t, "date"), strings.HasPrefix(t, "time"):
		inner.Kind = schema.KindDatetime
	case strings.HasPrefix(t, "bool"):
		switch strings.ToLower(inner.Text) {
		case "t", "true", "1", "y", "yes":
			inner.Kind, inner.Text = schema.KindBoolean, "true"
		case "f", "false", "0", "n", "no":
			inner.Kind, inner.Text = schema.KindBoolean, "false"
		}
	case strings.HasPrefix(t, "int"), strings.HasPrefix(t, "bigint"), strings.HasPrefix(t, "smallint"):
		if integerExpr.MatchString(inner.Text) {
			inner.Kind = schema.KindInteger
		}
	case strings.HasPrefix(t, "numeric"), strings.HasPrefix(t, "decimal"), strings.HasPrefix(t, "real"),
		strings.HasPrefix(t, "double"), strings.HasPrefix(t, "float"):
		if numberExpr.MatchString(inner.Text) {
			inner.Kind = schema.KindDecimal
		}
	}
	return inner
}

// castOperatorIndex finds a trailing `::type` outside quotes.
func castOperatorIndex(text string) int {
	last := -1
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\'', '"':
			n := quotedLength([]byte(text), i, text[i], false)
			if n == 0 {
				return -1
			}
			i += n - 1
		case ':':
			if i+1 < len(text) && text[i+1] == ':' {
				last = i
				i++
			}
		}
	}
	return last
}

// unquote returns the content of a single complete string literal, with an
// optional E/N prefix. E'' strings always honour backslash escapes.
func unquote(text string, backslash bool) (string, bool) {
	if len(text) >= 3 && text[1] == '\'' {
		switch text[0] {
		case 'E', 'e':
			backslash = true
			text = text[1:]
		case 'N', 'n':
			text = text[1:]
		}
	}
	if len(text) < 2 || text[0] != '\'' {
		return "", false
	}
	if quotedLength([]byte(text), 0, '\'', backslash) != len(text) {
		return "", false
	}
	body := text[1 : len(text)-1]
	if !backslash {
		return strings.ReplaceAll(body, "''", "'"), true
	}
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		b := body[i]
		switch {
		case b == '\\' && i+1 < len(body):
			i++
			switch body[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '0':
				sb.WriteByte(0)
			case 'Z':
				sb.WriteByte(26)
			default:
				sb.WriteByte(body[i])
			}
		case b == '\'' && i+1 < len(body) && body[i+1] == '\'':
			sb.WriteByte('\'')
			i++
		default:
			sb.WriteByte(b)
		}
	}
	return sb.String(), true
}

// splitList splits on top-level commas, outside quotes and nested groups.
func splitList(text string, backslash bool) []string {
	var result []string
	input := []byte(text)
	depth, start := 0, 0
	for i := 0; i < len(input); i++ {
		switch b := input[i]; b {
		case '\'':
			if n := quotedLength(input, i, b, backslash); n > 0 {
				i += n - 1
			}
		case '"', '`':
			if n := quotedLength(input, i, b, false); n > 0 {
				i += n - 1
			}
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				result = append(result, text[start:i])
				start = i + 1
			}
		}
	}
	return append(result, text[start:])
}

// unquoteIdentifier strips identifier quoting: "x", `x`, [x].
func unquoteIdentifier(name string) string {
	if len(name) < 2 {
		return name
	}
	switch first, last := name[0], name[len(name)-1]; {
	case first == '"' && last == '"':
		return strings.ReplaceAll(name[1:len(name)-1], `""`, `"`)
	case first == '`' && last == '`':
		return strings.ReplaceAll(name[1:len(name)-1], "``", "`")
	case first == '[' && last == ']':
		return name[1 : len(name)-1]
	}
	return name
}
