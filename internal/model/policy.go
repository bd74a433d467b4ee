package model

import "strings"

// PolicySource identifies which body of policy a rule came from
type PolicySource string

const (
	SourceGovernment  PolicySource = "GOVERNMENT"  // Government acquisition rule matrix
	SourceInstitution PolicySource = "INSTITUTION" // Institution preferred-terms matrix
)

// ParsePolicySource maps loose user input ("gov", "far", "institution") to a PolicySource
func ParsePolicySource(s string) (PolicySource, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "government", "gov", "far", "dfars":
		return SourceGovernment, true
	case "institution", "inst", "university", "preferred":
		return SourceInstitution, true
	default:
		return "", false
	}
}

// Short returns a compact prefix used in rule identifiers
func (s PolicySource) Short() string {
	if s == SourceGovernment {
		return "GOV"
	}
	return "INST"
}

// RiskLevel is the severity assigned to a rule and inherited by its detections
type RiskLevel string

const (
	RiskCritical RiskLevel = "CRITICAL"
	RiskHigh     RiskLevel = "HIGH"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskLow      RiskLevel = "LOW"
)

// Rank orders risk levels: lower rank is more severe
func (r RiskLevel) Rank() int {
	switch r {
	case RiskCritical:
		return 0
	case RiskHigh:
		return 1
	case RiskMedium:
		return 2
	case RiskLow:
		return 3
	default:
		return 4
	}
}

// AtLeast reports whether r is as severe as other or more
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return r.Rank() <= other.Rank()
}

// ParseRiskLevel parses a risk cell such as "High" or "critical risk"
func ParseRiskLevel(s string) (RiskLevel, bool) {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "critical"):
		return RiskCritical, true
	case strings.Contains(lower, "high"):
		return RiskHigh, true
	case strings.Contains(lower, "medium"), strings.Contains(lower, "moderate"):
		return RiskMedium, true
	case strings.Contains(lower, "low"):
		return RiskLow, true
	default:
		return "", false
	}
}

// AcceptanceStatus records how the policy owner treats a clause
type AcceptanceStatus string

const (
	StatusOK          AcceptanceStatus = "OK"          // No issue, never loaded as actionable
	StatusRemove      AcceptanceStatus = "REMOVE"      // Must be removed from the contract
	StatusConditional AcceptanceStatus = "CONDITIONAL" // Acceptable only with changes
)

// PolicyRule is one normalized compliance rule.
// Rules are immutable once loaded and may be shared across concurrent runs.
type PolicyRule struct {
	ID                 string           `json:"id"`
	Source             PolicySource     `json:"source"`
	Category           string           `json:"category"`
	Title              string           `json:"title,omitempty"`
	RequirementText    string           `json:"requirement_text,omitempty"`
	ProhibitedPatterns []string         `json:"prohibited_patterns,omitempty"`
	Risk               RiskLevel        `json:"risk"`
	AcceptanceStatus   AcceptanceStatus `json:"acceptance_status"`
	References         []string         `json:"references,omitempty"`
	Notes              string           `json:"notes,omitempty"`
}

// IsActionable reports whether the rule carries anything a detector can check
func (r PolicyRule) IsActionable() bool {
	return len(r.ProhibitedPatterns) > 0 || strings.TrimSpace(r.RequirementText) != ""
}

// Reference joins the rule's citations for display
func (r PolicyRule) Reference() string {
	return strings.Join(r.References, "; ")
}
