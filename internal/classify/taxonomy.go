// Package classify finds candidate clause paragraphs with a zero-shot classifier.
package classify

import (
	"context"
	"strings"
)

// LabelScore is one label's confidence for a piece of text
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classifier scores text against a set of candidate labels.
// Labels are independent: scores need not sum to one.
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) ([]LabelScore, error)
}

// taxonomy pairs each clause label with the rule category it maps to.
// Order is significant: it is the label order sent to classifiers.
var taxonomy = []struct {
	label    string
	category string
}{
	{"indemnification", "Indemnification"},
	{"limitation of liability", "Liability"},
	{"termination", "Termination"},
	{"intellectual property", "IntellectualProperty"},
	{"confidentiality", "Confidentiality"},
	{"governing law", "GoverningLaw"},
	{"arbitration", "DisputeResolution"},
	{"dispute resolution", "DisputeResolution"},
	{"insurance", "Insurance"},
	{"payment terms", "Payment"},
	{"export control", "ExportControl"},
	{"publication rights", "Publication"},
	{"warranty", "Warranty"},
	{"assignment", "Assignment"},
	{"force majeure", "ForceMajeure"},
}

// Taxonomy returns the fixed clause labels in classification order
func Taxonomy() []string {
	labels := make([]string, len(taxonomy))
	for i, t := range taxonomy {
		labels[i] = t.label
	}
	return labels
}

// CategoryFor maps a taxonomy label to its rule category.
// Unknown labels map to themselves so partial category matching can still apply.
func CategoryFor(label string) string {
	lower := strings.ToLower(strings.TrimSpace(label))
	for _, t := range taxonomy {
		if t.label == lower {
			return t.category
		}
	}
	return label
}
