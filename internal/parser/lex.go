package parser

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

const (
	whitespaceToken = iota
	lineCommentToken
	blockCommentToken
	insertToken
	ignoreToken
	intoToken
	valuesToken
	selectToken
	identifierToken
	dotToken
	groupToken
	commaToken
	semicolonToken
)

var (
	whitespaceMatcher   = parsly.NewToken(whitespaceToken, "Whitespace", matcher.NewWhiteSpace())
	lineCommentMatcher  = parsly.NewToken(lineCommentToken, "LineComment", &lineCommentMatch{})
	blockCommentMatcher = parsly.NewToken(blockCommentToken, "BlockComment", matcher.NewSeqBlock("/*", "*/"))

	insertMatcher = parsly.NewToken(insertToken, "INSERT", matcher.NewFragmentsFold([]byte("insert")))
	ignoreMatcher = parsly.NewToken(ignoreToken, "IGNORE", matcher.NewFragmentsFold([]byte("ignore")))
	intoMatcher   = parsly.NewToken(intoToken, "INTO", matcher.NewFragmentsFold([]byte("into")))
	valuesMatcher = parsly.NewToken(valuesToken, "VALUES", matcher.NewFragmentsFold([]byte("values")))
	selectMatcher = parsly.NewToken(selectToken, "SELECT", matcher.NewFragmentsFold([]byte("select"), []byte("with")))

	identifierMatcher = parsly.NewToken(identifierToken, "Identifier", &identifierMatch{})
	dotMatcher        = parsly.NewToken(dotToken, ".", matcher.NewByte('.'))
	commaMatcher      = parsly.NewToken(commaToken, ",", matcher.NewByte(','))
	semicolonMatcher  = parsly.NewToken(semicolonToken, ";", matcher.NewByte(';'))
)

// newGroupMatcher matches a balanced ( ... ) group, ignoring parentheses
// inside quoted literals and identifiers.
func newGroupMatcher(backslash bool) *parsly.Token {
	return parsly.NewToken(groupToken, "( ... )", &groupMatch{backslash: backslash})
}

type lineCommentMatch struct{}

func (l *lineCommentMatch) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	if pos+1 >= cursor.InputSize || input[pos] != '-' || input[pos+1] != '-' {
		return 0
	}
	end := pos + 2
	for end < cursor.InputSize && input[end] != '\n' {
		end++
	}
	return end - pos
}

type identifierMatch struct{}

func (i *identifierMatch) Match(cursor *parsly.Cursor) int {
	if cursor.Pos >= cursor.InputSize {
		return 0
	}
	input := cursor.Input
	b := input[cursor.Pos]
	switch b {
	case '"', '`':
		return quotedLength(input, cursor.Pos, b, false)
	case '[':
		for pos := cursor.Pos + 1; pos < cursor.InputSize; pos++ {
			if input[pos] == ']' {
				return pos - cursor.Pos + 1
			}
		}
		return 0
	}
	if !isIdentifierStart(b) {
		return 0
	}
	pos := cursor.Pos + 1
	for pos < cursor.InputSize && isIdentifierPart(input[pos]) {
		pos++
	}
	return pos - cursor.Pos
}

type groupMatch struct {
	backslash bool
}

func (g *groupMatch) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	if cursor.Pos >= cursor.InputSize || input[cursor.Pos] != '(' {
		return 0
	}
	depth := 0
	for pos := cursor.Pos; pos < cursor.InputSize; pos++ {
		switch b := input[pos]; b {
		case '\'':
			n := quotedLength(input, pos, b, g.backslash)
			if n == 0 {
				return 0
			}
			pos += n - 1
		case '"', '`':
			n := quotedLength(input, pos, b, false)
			if n == 0 {
				return 0
			}
			pos += n - 1
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return pos - cursor.Pos + 1
			}
		}
	}
	return 0
}

// quotedLength returns the length of the quoted run starting at offset,
// honouring doubled quotes and optionally backslash escapes; 0 if unterminated.
func quotedLength(input []byte, offset int, quote byte, backslash bool) int {
	for pos := offset + 1; pos < len(input); pos++ {
		b := input[pos]
		if backslash && b == '\\' {
			pos++
			continue
		}
		if b != quote {
			continue
		}
		if pos+1 < len(input) && input[pos+1] == quote {
			pos++
			continue
		}
		return pos - offset + 1
	}
	return 0
}

func isIdentifierStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' || b == '#' || b == '@' || b >= 0x80
}

func isIdentifierPart(b byte) bool {
	return isIdentifierStart(b) || (b >= '0' && b <= '9') || b == '$'
}
