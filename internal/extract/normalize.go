package extract

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize folds text for comparison: NFKC, lowercase, curly quotes
// straightened and whitespace runs collapsed to one space.
// The result is for scoring only; offsets never refer to it.
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	text = quoteFolder.Replace(text)

	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

var quoteFolder = strings.NewReplacer(
	"‘", "'", "’", "'",
	"“", `"`, "”", `"`,
	"–", "-", "—", "-",
)

// ContentWords returns the distinct normalized words longer than three
// characters with surrounding punctuation removed
func ContentWords(text string) []string {
	seen := make(map[string]bool)
	var words []string
	for _, field := range strings.Fields(Normalize(text)) {
		w := TrimPunct(field)
		if len(w) <= 3 || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	return words
}

// TrimPunct strips leading and trailing punctuation and symbols from a word
func TrimPunct(word string) string {
	return strings.TrimFunc(word, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}
