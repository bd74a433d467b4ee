// Package match finds policy language inside contract text: an approximate
// paragraph-level search scored by normalized edit distance, followed by
// exact span recovery so every hit maps back to the original bytes.
package match

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/ppiankov/clauseguard/internal/extract"
)

const (
	// DefaultThreshold accepts matches whose normalized distance is at most 0.4
	DefaultThreshold = 0.4

	// DefaultMinParagraphLength drops paragraphs too short to hold a clause
	DefaultMinParagraphLength = 20

	// MissingClause is the ExactText of a search that found nothing
	MissingClause = "MISSING_CLAUSE"

	// minWordOverlap is the share of the pattern's content words a paragraph
	// must contain before edit distance is computed for it
	minWordOverlap = 0.3
)

// Result is the outcome of one fuzzy search.
// Score is the raw normalized distance (0 = exact, 1 = unrelated).
type Result struct {
	Matched    bool
	ExactText  string
	StartIndex int
	EndIndex   int
	Score      float64
}

// Missing returns the sentinel result carrying the best score seen
func Missing(score float64) Result {
	return Result{
		Matched:    false,
		ExactText:  MissingClause,
		StartIndex: -1,
		EndIndex:   -1,
		Score:      score,
	}
}

// Matcher runs fuzzy clause searches
type Matcher struct {
	MinParagraphLength int
}

// NewMatcher creates a matcher; non-positive lengths fall back to the default
func NewMatcher(minParagraphLength int) *Matcher {
	if minParagraphLength <= 0 {
		minParagraphLength = DefaultMinParagraphLength
	}
	return &Matcher{MinParagraphLength: minParagraphLength}
}

// FuzzySearch searches documentText for pattern with the default matcher
func FuzzySearch(documentText, pattern string, threshold float64) Result {
	return NewMatcher(DefaultMinParagraphLength).Search(documentText, pattern, threshold)
}

// Search finds the paragraph closest to pattern and, when its score is within
// threshold, the exact span inside it. Offsets are absolute byte offsets.
func (m *Matcher) Search(documentText, pattern string, threshold float64) Result {
	target := extract.Normalize(pattern)
	if target == "" {
		return Missing(1)
	}

	candidates := extract.SplitParagraphs(documentText, m.MinParagraphLength)
	if len(candidates) == 0 {
		whole, ok := extract.WholeText(documentText)
		if !ok {
			return Missing(1)
		}
		candidates = []extract.Paragraph{whole}
	}

	q := newQuery(pattern, target)

	bestScore := 1.0
	var best *extract.Paragraph
	var bestWindow window
	for i := range candidates {
		score, win := q.score(candidates[i].Text)
		if best == nil || score < bestScore {
			bestScore = score
			best = &candidates[i]
			bestWindow = win
		}
		if score == 0 {
			break
		}
	}

	// Paragraphs below the length floor only count when they hold the pattern verbatim
	if bestScore > 0 {
		if short, ok := m.shortContaining(documentText, target); ok {
			bestScore = 0
			best = &short
			bestWindow = window{start: 0, end: len(short.Text)}
		}
	}

	if best == nil || bestScore > threshold {
		return Missing(bestScore)
	}

	if span := ExtractExactSpan(best.Text, pattern); span != nil {
		return Result{
			Matched:    true,
			ExactText:  span.Text,
			StartIndex: best.Start + span.Start,
			EndIndex:   best.Start + span.End,
			Score:      bestScore,
		}
	}

	return Result{
		Matched:    true,
		ExactText:  best.Text[bestWindow.start:bestWindow.end],
		StartIndex: best.Start + bestWindow.start,
		EndIndex:   best.Start + bestWindow.end,
		Score:      bestScore,
	}
}

// shortContaining returns the first paragraph shorter than MinParagraphLength
// whose normalized text contains target
func (m *Matcher) shortContaining(documentText, target string) (extract.Paragraph, bool) {
	for _, p := range extract.SplitParagraphs(documentText, 1) {
		if len(p.Text) >= m.MinParagraphLength {
			continue
		}
		if strings.Contains(extract.Normalize(p.Text), target) {
			return p, true
		}
	}
	return extract.Paragraph{}, false
}

// window is a byte range inside a paragraph
type window struct {
	start int
	end   int
}

// query holds the normalized forms of one pattern
type query struct {
	target       string
	targetWords  int
	contentWords []string
}

func newQuery(pattern, target string) *query {
	return &query{
		target:       target,
		targetWords:  len(strings.Fields(target)),
		contentWords: extract.ContentWords(pattern),
	}
}

// score returns the paragraph's distance to the pattern and the best window
func (q *query) score(paragraph string) (float64, window) {
	whole := window{start: 0, end: len(paragraph)}

	normalized := extract.Normalize(paragraph)
	if strings.Contains(normalized, q.target) {
		return 0, whole
	}

	if !q.overlaps(normalized) {
		return 1, whole
	}

	words := extract.SplitWords(paragraph)
	if len(words) <= q.targetWords {
		return distance(q.target, normalized), whole
	}

	best := 1.0
	bestWin := whole
	for size := q.targetWords - 1; size <= q.targetWords+1; size++ {
		if size < 1 || size > len(words) {
			continue
		}
		for i := 0; i+size <= len(words); i++ {
			win := window{start: words[i].Start, end: words[i+size-1].End}
			d := distance(q.target, extract.Normalize(paragraph[win.start:win.end]))
			if d < best {
				best = d
				bestWin = win
			}
		}
	}
	return best, bestWin
}

// overlaps applies the content-word pre-filter
func (q *query) overlaps(normalized string) bool {
	if len(q.contentWords) == 0 {
		return true
	}
	present := make(map[string]bool)
	for _, field := range strings.Fields(normalized) {
		present[extract.TrimPunct(field)] = true
	}
	hits := 0
	for _, w := range q.contentWords {
		if present[w] {
			hits++
		}
	}
	return float64(hits)/float64(len(q.contentWords)) >= minWordOverlap
}

// distance is the Levenshtein distance scaled by the longer string's rune count
func distance(a, b string) float64 {
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 0
	}
	d := float64(levenshtein.ComputeDistance(a, b)) / float64(longest)
	if d > 1 {
		d = 1
	}
	return d
}
