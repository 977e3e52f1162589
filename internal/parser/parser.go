package parser

import (
	"fmt"
	"iter"
	"sort"
	"strings"

	"sql-cleanser/internal/schema"

	"github.com/viant/parsly"
)

// ReasonMissingColumns is reported for INSERT statements without a column list.
const ReasonMissingColumns = "column list required for row reconstruction"

// ParseError describes one malformed statement or tuple.
type ParseError struct {
	File    string `json:"file" yaml:"file"`
	Line    int    `json:"line" yaml:"line"`
	Reason  string `json:"reason" yaml:"reason"`
	Snippet string `json:"snippet,omitempty" yaml:"snippet,omitempty"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Reason)
}

// Parser turns INSERT scripts into rows.
type Parser struct {
	// Backslash enables MySQL style backslash escapes in string literals.
	Backslash    bool
	groupMatcher *parsly.Token
}

// New creates a parser for the given source dialect name.
func New(dialect string) *Parser {
	backslash := strings.EqualFold(dialect, "mysql")
	return &Parser{Backslash: backslash, groupMatcher: newGroupMatcher(backslash)}
}

// Parse returns a lazy sequence over the rows of content. Malformed statements
// and tuples are yielded as *ParseError with a nil row; parsing continues with
// the next tuple or statement. Ranging twice re-scans content from the start.
func (p *Parser) Parse(file string, content []byte) iter.Seq2[*schema.Row, error] {
	group := p.groupMatcher
	if group == nil {
		group = newGroupMatcher(p.Backslash)
	}
	return func(yield func(*schema.Row, error) bool) {
		s := &scanner{
			parser: p,
			group:  group,
			file:   file,
			cursor: parsly.NewCursor(file, content, 0),
			lines:  newLineIndex(content),
			yield:  yield,
		}
		s.run()
	}
}

// ParseAll collects the rows and errors of content.
func (p *Parser) ParseAll(file string, content []byte) ([]*schema.Row, []*ParseError) {
	var rows []*schema.Row
	var errs []*ParseError
	for row, err := range p.Parse(file, content) {
		if err != nil {
			errs = append(errs, err.(*ParseError))
			continue
		}
		rows = append(rows, row)
	}
	return rows, errs
}

type scanner struct {
	parser  *Parser
	group   *parsly.Token
	file    string
	cursor  *parsly.Cursor
	lines   lineIndex
	yield   func(*schema.Row, error) bool
	stopped bool
}

func (s *scanner) run() {
	cursor := s.cursor
	for !s.stopped {
		s.skipTrivia()
		if cursor.Pos >= cursor.InputSize {
			return
		}
		start := cursor.Pos
		if cursor.MatchOne(semicolonMatcher).Code == semicolonToken {
			continue
		}
		if s.keyword(insertMatcher) {
			s.insert(start)
			continue
		}
		s.skipStatement()
	}
}

func (s *scanner) insert(start int) {
	cursor := s.cursor
	line := s.lines.line(start)
	s.keyword(ignoreMatcher)
	if !s.keyword(intoMatcher) {
		s.fail(start, line, "expected INTO after INSERT")
		return
	}
	s.skipTrivia()
	table, ok := s.tableName()
	if !ok {
		s.fail(start, line, "expected table name")
		return
	}

	s.skipTrivia()
	if s.keyword(valuesMatcher) {
		s.fail(start, line, ReasonMissingColumns)
		return
	}
	if s.keyword(selectMatcher) {
		s.fail(start, line, "INSERT ... SELECT is not supported")
		return
	}
	group := cursor.MatchOne(s.group)
	if group.Code != groupToken {
		s.fail(start, line, "expected column list")
		return
	}
	columns, err := s.columns(group.Text(cursor))
	if err != "" {
		s.fail(start, line, err)
		return
	}

	if !s.keyword(valuesMatcher) {
		s.skipTrivia()
		if s.keyword(selectMatcher) {
			s.fail(start, line, "INSERT ... SELECT is not supported")
			return
		}
		s.fail(start, line, "expected VALUES")
		return
	}

	for !s.stopped {
		s.skipTrivia()
		tupleStart := cursor.Pos
		tuple := cursor.MatchOne(s.group)
		if tuple.Code != groupToken {
			reason := "expected value tuple"
			if tupleStart < cursor.InputSize && cursor.Input[tupleStart] == '(' {
				reason = "unterminated value tuple"
			}
			s.fail(tupleStart, s.lines.line(tupleStart), reason)
			return
		}
		s.tuple(table, columns, tuple.Text(cursor), tupleStart, line)

		s.skipTrivia()
		if cursor.MatchOne(commaMatcher).Code == commaToken {
			continue
		}
		// trailing clauses such as ON CONFLICT are ignored
		s.skipStatement()
		return
	}
}

func (s *scanner) tuple(table string, columns []string, text string, offset, statementLine int) {
	line := s.lines.line(offset)
	items := splitList(text[1:len(text)-1], s.parser.Backslash)
	if len(items) == 1 && strings.TrimSpace(items[0]) == "" {
		items = nil
	}
	if len(items) != len(columns) {
		s.emit(nil, &ParseError{
			File:    s.file,
			Line:    line,
			Reason:  fmt.Sprintf("tuple has %d values, column list has %d", len(items), len(columns)),
			Snippet: snippet(text),
		})
		return
	}
	values := make([]schema.Value, len(items))
	for i, item := range items {
		values[i] = Classify(item, s.parser.Backslash)
	}
	s.emit(&schema.Row{
		Table:         table,
		Columns:       columns,
		Values:        values,
		File:          s.file,
		Line:          line,
		StatementLine: statementLine,
	}, nil)
}

func (s *scanner) columns(text string) ([]string, string) {
	items := splitList(text[1:len(text)-1], false)
	columns := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		name := strings.TrimSpace(item)
		if i := strings.LastIndexByte(name, '.'); i >= 0 && !strings.ContainsAny(name, "\"`[") {
			name = name[i+1:]
		}
		name = unquoteIdentifier(name)
		if name == "" {
			return nil, "empty column name in column list"
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, fmt.Sprintf("duplicate column %q in column list", name)
		}
		seen[key] = true
		columns = append(columns, name)
	}
	return columns, ""
}

// tableName matches a possibly qualified identifier and returns its last
// segment, unquoted.
func (s *scanner) tableName() (string, bool) {
	cursor := s.cursor
	var last string
	for {
		matched := cursor.MatchOne(identifierMatcher)
		if matched.Code != identifierToken {
			return "", false
		}
		last = unquoteIdentifier(matched.Text(cursor))
		if cursor.MatchOne(dotMatcher).Code != dotToken {
			return last, last != ""
		}
	}
}

// keyword matches a keyword after optional trivia, requiring a word boundary.
func (s *scanner) keyword(token *parsly.Token) bool {
	s.skipTrivia()
	cursor := s.cursor
	pos := cursor.Pos
	if cursor.MatchOne(token).Code != token.Code {
		cursor.Pos = pos
		return false
	}
	if cursor.Pos < cursor.InputSize && isIdentifierPart(cursor.Input[cursor.Pos]) {
		cursor.Pos = pos
		return false
	}
	return true
}

func (s *scanner) skipTrivia() {
	cursor := s.cursor
	for cursor.Pos < cursor.InputSize {
		if cursor.MatchOne(whitespaceMatcher).Code == whitespaceToken {
			continue
		}
		if cursor.MatchOne(lineCommentMatcher).Code == lineCommentToken {
			continue
		}
		if cursor.MatchOne(blockCommentMatcher).Code == blockCommentToken {
			continue
		}
		return
	}
}

// skipStatement advances past the next ';' outside quotes and comments.
func (s *scanner) skipStatement() {
	cursor := s.cursor
	input := cursor.Input
	for cursor.Pos < cursor.InputSize {
		switch b := input[cursor.Pos]; b {
		case '\'':
			if n := quotedLength(input, cursor.Pos, b, s.parser.Backslash); n > 0 {
				cursor.Pos += n
				continue
			}
			cursor.Pos = cursor.InputSize
			return
		case '"', '`':
			if n := quotedLength(input, cursor.Pos, b, false); n > 0 {
				cursor.Pos += n
				continue
			}
		case '-', '/':
			before := cursor.Pos
			s.skipTrivia()
			if cursor.Pos != before {
				continue
			}
		case ';':
			cursor.Pos++
			return
		}
		cursor.Pos++
	}
}

func (s *scanner) fail(start, line int, reason string) {
	end := s.cursor.Pos
	s.skipStatement()
	if end < s.cursor.Pos {
		end = s.cursor.Pos
	}
	s.emit(nil, &ParseError{
		File:    s.file,
		Line:    line,
		Reason:  reason,
		Snippet: snippet(string(s.cursor.Input[start:end])),
	})
}

func (s *scanner) emit(row *schema.Row, err *ParseError) {
	if s.stopped {
		return
	}
	if err != nil {
		s.stopped = !s.yield(nil, err)
		return
	}
	s.stopped = !s.yield(row, nil)
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > 120 {
		return text[:117] + "..."
	}
	return text
}

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex []int

func newLineIndex(content []byte) lineIndex {
	index := lineIndex{0}
	for i, b := range content {
		if b == '\n' {
			index = append(index, i+1)
		}
	}
	return index
}

func (l lineIndex) line(offset int) int {
	return sort.Search(len(l), func(i int) bool { return l[i] > offset })
}
