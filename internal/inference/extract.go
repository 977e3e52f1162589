package inference

import (
	"encoding/json"
	"strings"
)

// ExtractJSON returns the first complete JSON object or array embedded in
// text, skipping prose and code fences around it.
func ExtractJSON(text string) (string, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			continue
		}
		return text[i : i+int(dec.InputOffset())], true
	}
	return "", false
}

// StripFences removes a surrounding ``` block, if any.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}

// parseColumns accepts either ["a","b"] or {"key":["a","b"]}.
func parseColumns(response string) ([]string, error) {
	fragment, ok := ExtractJSON(response)
	if !ok {
		return nil, ErrRejected
	}
	var columns []string
	if err := json.Unmarshal([]byte(fragment), &columns); err == nil {
		return columns, nil
	}
	var wrapped struct {
		Key        []string `json:"key"`
		PrimaryKey []string `json:"primary_key"`
	}
	if err := json.Unmarshal([]byte(fragment), &wrapped); err != nil {
		return nil, ErrRejected
	}
	if len(wrapped.Key) > 0 {
		return wrapped.Key, nil
	}
	return wrapped.PrimaryKey, nil
}
