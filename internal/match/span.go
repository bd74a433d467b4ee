package match

import (
	"regexp"
	"strings"

	"github.com/ppiankov/clauseguard/internal/extract"
)

// Span is an exact substring of a paragraph and its byte bounds in that paragraph
type Span struct {
	Text  string
	Start int
	End   int
}

// anchorWords is how many leading pattern words drive the sentence fallback
const anchorWords = 3

// anchorGap lets up to five words and any punctuation sit between anchor words
const anchorGap = `\W+(?:\w+\W+){0,5}?`

// ExtractExactSpan pins pattern to an exact range of paragraph.
// It first looks for the whole pattern (case-insensitive, any whitespace run
// matching any whitespace run). Failing that it looks for the pattern's first
// three long words in order and returns the sentence enclosing them.
// A nil result means only an approximate location is known.
func ExtractExactSpan(paragraph, pattern string) *Span {
	pattern = strings.TrimSpace(pattern)
	if paragraph == "" || pattern == "" {
		return nil
	}

	if loc := literalPattern(pattern).FindStringIndex(paragraph); loc != nil {
		return &Span{Text: paragraph[loc[0]:loc[1]], Start: loc[0], End: loc[1]}
	}

	anchor := anchorPattern(pattern)
	if anchor == nil {
		return nil
	}
	loc := anchor.FindStringIndex(paragraph)
	if loc == nil {
		return nil
	}

	start, end := extract.SentenceBounds(paragraph, loc[0], loc[1])
	if start >= end {
		return nil
	}
	return &Span{Text: paragraph[start:end], Start: start, End: end}
}

func literalPattern(pattern string) *regexp.Regexp {
	fields := strings.Fields(pattern)
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = regexp.QuoteMeta(f)
	}
	return regexp.MustCompile(`(?i)` + strings.Join(quoted, `\s+`))
}

func anchorPattern(pattern string) *regexp.Regexp {
	var words []string
	for _, field := range strings.Fields(pattern) {
		w := extract.TrimPunct(field)
		if len(w) <= 3 {
			continue
		}
		words = append(words, regexp.QuoteMeta(w))
		if len(words) == anchorWords {
			break
		}
	}
	if len(words) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)` + strings.Join(words, anchorGap))
}
