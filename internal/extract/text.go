package extract

import (
	"strings"
	"unicode"
)

var quoteReplacer = strings.NewReplacer(
	"‘", "'",
	"’", "'",
	"“", `"`,
	"”", `"`,
)

// normalize straightens typographic quotes that OCR emits for apostrophes
func normalize(s string) string {
	return quoteReplacer.Replace(s)
}

// lettersOnly keeps ASCII letters and whitespace
func lettersOnly(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || unicode.IsSpace(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// isUpper reports whether s has at least one cased letter and no lower-case ones
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

// lowerToken is the trimmed, lower-cased, quote-normalized form of a raw token
func lowerToken(s string) string {
	return normalize(strings.ToLower(strings.TrimSpace(s)))
}
