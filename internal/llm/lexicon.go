package llm

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/ppiankov/clauseguard/internal/extract"
)

// lexicon lists word stems that signal each clause label.
// A stem matches at the start of a word, so "indemnif" matches "indemnify".
var lexicon = map[string][]string{
	"indemnification":         {"indemnif", "hold harmless", "defend"},
	"limitation of liability": {"liabil", "consequential damages", "in no event"},
	"termination":             {"terminat", "cancel"},
	"intellectual property":   {"intellectual property", "patent", "copyright", "invention", "licens"},
	"confidentiality":         {"confidential", "proprietary information", "non-disclosure", "disclos"},
	"governing law":           {"governing law", "governed by", "laws of", "jurisdiction"},
	"arbitration":             {"arbitrat"},
	"dispute resolution":      {"dispute", "mediat", "venue"},
	"insurance":               {"insurance", "insured", "coverage"},
	"payment terms":           {"payment", "invoice", "compensat", "reimburs"},
	"export control":          {"export", "itar", "export administration regulations"},
	"publication rights":      {"publicat", "publish", "manuscript"},
	"warranty":                {"warrant", "merchantab", "fitness for"},
	"assignment":              {"assign", "successors and"},
	"force majeure":           {"force majeure", "acts of god", "beyond the reasonable control"},
}

// LexiconProvider is an offline keyword scorer.
// Each distinct stem hit halves the remaining distance to 1, so one hit
// scores 0.5, two 0.75 and three 0.875.
type LexiconProvider struct{}

// NewLexiconProvider creates the offline provider
func NewLexiconProvider() *LexiconProvider {
	return &LexiconProvider{}
}

// Name returns the provider name
func (p *LexiconProvider) Name() string {
	return "lexicon"
}

// IsAvailable is always true: the lexicon needs no network
func (p *LexiconProvider) IsAvailable(ctx context.Context) bool {
	return true
}

// Classify scores the paragraph by stem hits per label
func (p *LexiconProvider) Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	padded := " " + strings.Map(wordRune, extract.Normalize(req.Text))
	scores := make(map[string]float64, len(req.Labels))
	for _, label := range req.Labels {
		hits := 0
		for _, stem := range lexicon[strings.ToLower(label)] {
			if strings.Contains(padded, " "+stem) {
				hits++
			}
		}
		scores[label] = 1 - math.Pow(0.5, float64(hits))
	}

	return &ClassifyResponse{
		Scores: scores,
		Model:  "lexicon-v1",
	}, nil
}

// wordRune blanks punctuation so stems match after brackets and quotes
func wordRune(r rune) rune {
	if r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
		return r
	}
	return ' '
}
