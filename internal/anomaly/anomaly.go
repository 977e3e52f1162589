package anomaly

import (
	"fmt"
	"sort"
	"sync"
)

// Kind classifies a per-item failure or warning collected during a run.
type Kind string

const (
	ParseError             Kind = "parse_error"
	KeyInferenceFailure    Kind = "key_inference_failure"
	DependencyCycleWarning Kind = "dependency_cycle_warning"
	TransformationWarning  Kind = "transformation_warning"
	TableDiffFailure       Kind = "table_diff_failure"
	OracleUnavailable      Kind = "oracle_unavailable"
	DuplicateKey           Kind = "duplicate_key"
	FuzzySkipped           Kind = "fuzzy_skipped"
	TableSkipped           Kind = "table_skipped"
	InputUnreadable        Kind = "input_unreadable"
)

// Anomaly is a single reported problem. Table and File are optional.
type Anomaly struct {
	Kind    Kind   `json:"kind" yaml:"kind"`
	Table   string `json:"table,omitempty" yaml:"table,omitempty"`
	Side    string `json:"side,omitempty" yaml:"side,omitempty"`
	File    string `json:"file,omitempty" yaml:"file,omitempty"`
	Line    int    `json:"line,omitempty" yaml:"line,omitempty"`
	Message string `json:"message" yaml:"message"`
}

func New(kind Kind, table, message string) Anomaly {
	return Anomaly{Kind: kind, Table: table, Message: message}
}

func Newf(kind Kind, table, format string, args ...interface{}) Anomaly {
	return Anomaly{Kind: kind, Table: table, Message: fmt.Sprintf(format, args...)}
}

func (a Anomaly) String() string {
	loc := a.Table
	if a.File != "" {
		loc = fmt.Sprintf("%s:%d", a.File, a.Line)
	}
	if loc == "" {
		return fmt.Sprintf("[%s] %s", a.Kind, a.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", a.Kind, loc, a.Message)
}

// Log collects anomalies from concurrent workers.
type Log struct {
	mux   sync.Mutex
	items []Anomaly
}

func (l *Log) Add(items ...Anomaly) {
	if len(items) == 0 {
		return
	}
	l.mux.Lock()
	l.items = append(l.items, items...)
	l.mux.Unlock()
}

func (l *Log) Len() int {
	l.mux.Lock()
	defer l.mux.Unlock()
	return len(l.items)
}

// Sorted returns a copy ordered by kind, table, file, line and message, so
// reports do not depend on worker scheduling.
func (l *Log) Sorted() []Anomaly {
	l.mux.Lock()
	result := make([]Anomaly, len(l.items))
	copy(result, l.items)
	l.mux.Unlock()
	Sort(result)
	return result
}

func Sort(items []Anomaly) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Table != b.Table {
			return a.Table < b.Table
		}
		if a.Side != b.Side {
			return a.Side < b.Side
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Message < b.Message
	})
}

// Count returns the number of anomalies per kind.
func Count(items []Anomaly) map[Kind]int {
	result := make(map[Kind]int)
	for _, item := range items {
		result[item.Kind]++
	}
	return result
}
