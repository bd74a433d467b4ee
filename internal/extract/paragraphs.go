package extract

import (
	"regexp"
	"strings"
	"unicode"
)

// Paragraph is a trimmed block of text and its byte bounds in the source document
type Paragraph struct {
	Text  string
	Start int
	End   int
}

var blankLine = regexp.MustCompile(`\n[ \t\r\f\v]*\n\s*`)

// SplitParagraphs splits text at blank lines and keeps paragraphs whose trimmed
// length is at least minLen bytes. Text always equals source[Start:End].
func SplitParagraphs(text string, minLen int) []Paragraph {
	var paragraphs []Paragraph

	cursor := 0
	for _, sep := range blankLine.FindAllStringIndex(text, -1) {
		if p, ok := trimmedParagraph(text, cursor, sep[0]); ok && len(p.Text) >= minLen {
			paragraphs = append(paragraphs, p)
		}
		cursor = sep[1]
	}
	if p, ok := trimmedParagraph(text, cursor, len(text)); ok && len(p.Text) >= minLen {
		paragraphs = append(paragraphs, p)
	}

	return paragraphs
}

// WholeText returns the trimmed document as a single paragraph (ok=false for blank text)
func WholeText(text string) (Paragraph, bool) {
	return trimmedParagraph(text, 0, len(text))
}

func trimmedParagraph(text string, start, end int) (Paragraph, bool) {
	segment := text[start:end]
	lead := len(segment) - len(strings.TrimLeftFunc(segment, unicode.IsSpace))
	trimmed := strings.TrimSpace(segment)
	if trimmed == "" {
		return Paragraph{}, false
	}
	return Paragraph{
		Text:  trimmed,
		Start: start + lead,
		End:   start + lead + len(trimmed),
	}, true
}

// Word is a whitespace-delimited token and its byte bounds
type Word struct {
	Text  string
	Start int
	End   int
}

// SplitWords tokenizes text on whitespace, keeping offsets
func SplitWords(text string) []Word {
	var words []Word
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				words = append(words, Word{Text: text[start:i], Start: start, End: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, Word{Text: text[start:], Start: start, End: len(text)})
	}
	return words
}

// IsSentenceTerminator reports whether b ends a sentence
func IsSentenceTerminator(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

// SentenceBounds widens [start,end) of text to the enclosing sentence and trims it.
// The sentence begins just after the nearest terminator before start (or at 0)
// and runs through the first terminator at or after end (or to len(text)).
func SentenceBounds(text string, start, end int) (int, int) {
	s := 0
	for i := start - 1; i >= 0; i-- {
		if IsSentenceTerminator(text[i]) {
			s = i + 1
			break
		}
	}

	e := len(text)
	for i := end; i < len(text); i++ {
		if IsSentenceTerminator(text[i]) {
			e = i + 1
			break
		}
	}
	// A match that already ends on a terminator closes its own sentence
	if end > 0 && end <= len(text) && IsSentenceTerminator(text[end-1]) {
		e = end
	}

	for s < e && isSpaceByte(text[s]) {
		s++
	}
	for e > s && isSpaceByte(text[e-1]) {
		e--
	}
	return s, e
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == '\v'
}
