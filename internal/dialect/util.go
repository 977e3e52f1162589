package dialect

import (
	"fmt"
	"strings"
)

// isSimpleIdentifier reports whether name can be written without quotes.
func isSimpleIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// DefaultQuoteString doubles single quotes, the ANSI escape.
func DefaultQuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// DefaultInsertStatement renders a single-row INSERT terminated by `;`.
func DefaultInsertStatement(d Dialect, table string, cols []string, values []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdentifier(d.NormalizeIdentifier(c))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);",
		d.QuoteIdentifier(d.NormalizeIdentifier(table)),
		strings.Join(quoted, ", "),
		strings.Join(values, ", "))
}

func datePart(text string) string {
	if len(text) > 10 {
		return text[:10]
	}
	return text
}

// timestampText normalizes the ISO `T` separator to a space.
func timestampText(text string) string {
	if len(text) > 10 && text[10] == 'T' {
		return text[:10] + " " + text[11:]
	}
	return text
}
