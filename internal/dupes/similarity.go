package dupes

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// normalizer is not safe for concurrent use; cases.Caser keeps state.
type normalizer struct {
	fold cases.Caser
}

func newNormalizer() *normalizer {
	return &normalizer{fold: cases.Fold()}
}

// normalize applies NFKC, case folding and whitespace collapsing.
func (n *normalizer) normalize(s string) string {
	s = n.fold.String(norm.NFKC.String(s))
	return strings.Join(strings.Fields(s), " ")
}

// similarity is 1 - edit distance / longer length, over normalized text.
// It is symmetric and in [0, 1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// Similarity compares two raw values the way fuzzy detection does.
func Similarity(a, b string) float64 {
	n := newNormalizer()
	return similarity(n.normalize(a), n.normalize(b))
}
