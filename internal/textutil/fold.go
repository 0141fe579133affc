package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// whitespacePattern matches interior whitespace runs for collapsing.
var whitespacePattern = regexp.MustCompile(`\s+`)

// Fold normalizes text for comparison: lowercase, diacritics stripped, and
// whitespace collapsed to single spaces. Returns "" for blank input.
func Fold(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return ""
	}
	s = stripDiacritics(s)
	return whitespacePattern.ReplaceAllString(s, " ")
}

// FoldEmail normalizes an email address for comparison. Addresses are
// case-insensitive in practice, so the whole string is lowercased and trimmed.
// Returns "" for blank input.
func FoldEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Tokenize splits folded text into its word tokens.
func Tokenize(text string) []string {
	folded := Fold(text)
	if folded == "" {
		return nil
	}
	return strings.Fields(folded)
}

// stripDiacritics removes combining marks after NFD decomposition, so accented
// characters fold to their base letters.
func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
