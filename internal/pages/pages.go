// Package pages maps byte offsets in joined document text back to page numbers.
package pages

import (
	"sort"
	"strings"

	"github.com/ppiankov/clauseguard/internal/model"
)

// Separator joins consecutive pages into the full document text
const Separator = "\n\n"

// Range is the half-open byte range [Start, End) one page occupies in the joined text
type Range struct {
	Start int
	End   int
}

// Join concatenates pages with Separator
func Join(pages []string) string {
	return strings.Join(pages, Separator)
}

// BuildRanges computes page ranges for the text Join produces.
// Separator bytes belong to the page before them, so the ranges tile
// [0, len(Join(pages))) without gaps.
func BuildRanges(pages []string) []Range {
	ranges := make([]Range, len(pages))
	offset := 0
	for i, p := range pages {
		end := offset + len(p)
		if i < len(pages)-1 {
			end += len(Separator)
		}
		ranges[i] = Range{Start: offset, End: end}
		offset = end
	}
	return ranges
}

// SplitFormFeed splits pdftotext-style output into pages at form feeds.
// A trailing form feed does not produce an empty final page.
func SplitFormFeed(text string) []string {
	if text == "" {
		return nil
	}
	pages := strings.Split(text, "\f")
	if len(pages) > 1 && pages[len(pages)-1] == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}

// Resolver assigns page numbers to detections
type Resolver struct {
	ranges []Range
}

// NewResolver builds a resolver for the given pages
func NewResolver(pages []string) *Resolver {
	return &Resolver{ranges: BuildRanges(pages)}
}

// PageCount returns the number of pages
func (r *Resolver) PageCount() int {
	return len(r.ranges)
}

// PageOf returns the 1-based page containing offset
func (r *Resolver) PageOf(offset int) (int, bool) {
	idx := r.index(offset)
	if idx < 0 {
		return 0, false
	}
	return idx + 1, true
}

// Local converts a document offset into an offset within its page
func (r *Resolver) Local(offset int) (page, local int, ok bool) {
	idx := r.index(offset)
	if idx < 0 {
		return 0, 0, false
	}
	return idx + 1, offset - r.ranges[idx].Start, true
}

// Resolve returns copies of detections with PageNumber and the page-local span set.
// The local end keeps the span's length, so a span that runs onto the next page
// ends past its own page. Detections without a span, or whose start lies outside
// every page, keep all three unset.
func (r *Resolver) Resolve(detections []model.ClauseDetection) []model.ClauseDetection {
	out := make([]model.ClauseDetection, len(detections))
	for i, d := range detections {
		d.PageNumber, d.PageStartIndex, d.PageEndIndex = nil, nil, nil
		if d.HasSpan() {
			if page, local, ok := r.Local(*d.StartIndex); ok {
				d.PageNumber = model.IntPtr(page)
				d.PageStartIndex = model.IntPtr(local)
				d.PageEndIndex = model.IntPtr(local + *d.EndIndex - *d.StartIndex)
			}
		}
		out[i] = d
	}
	return out
}

func (r *Resolver) index(offset int) int {
	if offset < 0 || len(r.ranges) == 0 {
		return -1
	}
	idx := sort.Search(len(r.ranges), func(i int) bool {
		return r.ranges[i].End > offset
	})
	if idx == len(r.ranges) || offset < r.ranges[idx].Start {
		return -1
	}
	return idx
}
