package model

// DetectionType classifies a finding
type DetectionType string

const (
	DetectionMissingClause   DetectionType = "MISSING_CLAUSE"   // Required language absent
	DetectionProblematicText DetectionType = "PROBLEMATIC_TEXT" // Prohibited language present
)

// DetectionOrigin records which signal produced a detection
type DetectionOrigin string

const (
	OriginRule DetectionOrigin = "rule" // Rule-based fuzzy matching over the full text
	OriginAI   DetectionOrigin = "ai"   // Classifier candidate narrowed by rule patterns
)

// ClauseDetection is a single compliance finding.
// Offsets are byte offsets into the full document text; both are nil for MISSING_CLAUSE.
// Paged documents also carry the span relative to the page it starts on.
type ClauseDetection struct {
	ID                string          `json:"id"`
	Type              DetectionType   `json:"type"`
	Severity          RiskLevel       `json:"severity"`
	Category          string          `json:"category"`
	ExactText         string          `json:"exact_text,omitempty"`
	StartIndex        *int            `json:"start_index,omitempty"`
	EndIndex          *int            `json:"end_index,omitempty"`
	PageNumber        *int            `json:"page_number,omitempty"`
	PageStartIndex    *int            `json:"page_start_index,omitempty"` // Span start relative to its page
	PageEndIndex      *int            `json:"page_end_index,omitempty"`
	Reference         string          `json:"reference,omitempty"`
	Explanation       string          `json:"explanation"`
	PreferredLanguage string          `json:"preferred_language,omitempty"`
	Confidence        float64         `json:"confidence"`
	RuleID            string          `json:"rule_id"`
	Origin            DetectionOrigin `json:"origin"`
	MatchScore        float64         `json:"match_score"`
}

// HasSpan reports whether the detection is anchored to the document text
func (d ClauseDetection) HasSpan() bool {
	return d.StartIndex != nil && d.EndIndex != nil
}

// ClauseCandidate is a paragraph the classifier tagged with a clause type
type ClauseCandidate struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	StartIndex int     `json:"start_index"`
	EndIndex   int     `json:"end_index"`
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}
