// Package fuzzy scores how alike two OCR strings are.
//
// The score is the Ratcliff/Obershelp ratio 2*M/T computed by go-difflib's
// SequenceMatcher over runes, where M is the number of characters in the matching
// blocks and T is the combined length.
package fuzzy

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Similarity returns a case-insensitive ratio in [0, 1].
// Two empty strings are identical.
func Similarity(a, b string) float64 {
	sa := runesAsStrings(strings.ToLower(a))
	sb := runesAsStrings(strings.ToLower(b))

	if len(sa)+len(sb) == 0 {
		return 1.0
	}

	// Block search breaks ties by position, so the ratio can differ with argument order.
	ratio := difflib.NewMatcher(sa, sb).Ratio()
	if r := difflib.NewMatcher(sb, sa).Ratio(); r > ratio {
		ratio = r
	}
	return ratio
}

// Matches reports whether a and b are at least cutoff similar.
func Matches(a, b string, cutoff float64) bool {
	return Similarity(a, b) >= cutoff
}

// CloseMatch returns the corpus entry most similar to candidate, provided it
// meets cutoff. Earlier entries win ties.
func CloseMatch(candidate string, corpus []string, cutoff float64) (string, bool) {
	best := ""
	bestScore := -1.0
	for _, entry := range corpus {
		score := Similarity(candidate, entry)
		if score >= cutoff && score > bestScore {
			best, bestScore = entry, score
		}
	}
	return best, bestScore >= 0
}

// runesAsStrings splits s into one element per rune for the sequence matcher.
func runesAsStrings(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
