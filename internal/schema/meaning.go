package schema

import "strings"

var abbreviations = map[string]string{
	// Common Nouns
	"nm": "name", "dt": "date", "no": "number", "cd": "code",
	"desc": "description", "amt": "amount", "cnt": "count", "qty": "quantity",
	"addr": "address", "tel": "phone", "ph": "phone", "mobile": "phone",
	"pwd": "password", "passwd": "password", "pw": "password",
	"img": "image", "zip": "zipcode", "postal": "zipcode",
	"msg": "message", "txt": "text", "subj": "subject",
	"usr": "user", "emp": "employee", "dept": "department", "cat": "category",
	"lat": "latitude", "lng": "longitude", "lon": "longitude",
	"bal": "balance", "avg": "average", "uid": "id", "pid": "id",
	"mail": "email", "ts": "timestamp", "tm": "time",

	// Verbs / Status
	"reg": "registered", "mod": "modified", "del": "deleted", "cre": "created",
	"upd": "updated", "yn": "yesno", "stat": "status", "sts": "status",
	"typ": "type", "val": "value", "seq": "sequence", "idx": "index",
	"is": "yesno", "has": "yesno", "can": "yesno", "use": "yesno",
	"flg": "flag", "flag": "flag", "active": "yesno", "enabled": "yesno",
}

// ColumnMeaning expands abbreviations in a snake_case column name, for
// example `reg_dt` -> "registered date" and `is_active` -> "yesno yesno".
func ColumnMeaning(column string) string {
	parts := strings.Split(strings.ToLower(column), "_")
	decoded := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		if full, ok := abbreviations[part]; ok {
			decoded = append(decoded, full)
		} else {
			decoded = append(decoded, part)
		}
	}
	return strings.Join(decoded, " ")
}

// IsTemporalColumn reports whether the column name reads as a date or time.
func IsTemporalColumn(column string) bool {
	for _, word := range strings.Fields(ColumnMeaning(column)) {
		switch word {
		case "date", "time", "timestamp", "created", "updated", "modified", "registered", "deleted", "at":
			return true
		}
	}
	return false
}
