package model

import "time"

// Report is the complete result of auditing one contract
type Report struct {
	Subject    string            `json:"subject"`               // File name or caller supplied label
	AuditedAt  time.Time         `json:"audited_at"`            // When the audit ran
	TextLength int               `json:"text_length"`           // Bytes of document text audited
	PageCount  int               `json:"page_count,omitempty"`  // Pages supplied for page resolution
	Detections []ClauseDetection `json:"detections"`            // Severity-ordered findings
	Candidates []ClauseCandidate `json:"candidates,omitempty"`  // Classifier output (diagnostics)
	Summary    Summary           `json:"summary"`               // Counts, risk index and signals
	RuleStats  RuleStats         `json:"rule_stats"`            // What the rule loader kept and dropped
	AI         *AIStatus         `json:"ai,omitempty"`          // Present when AI assistance was requested
}

// RuleStats reports how many policy rows turned into rules
type RuleStats struct {
	Tables    int `json:"tables"`
	Rows      int `json:"rows"`
	Loaded    int `json:"loaded"`
	SkippedOK int `json:"skipped_ok"`
	Dropped   int `json:"dropped"`
}

// AIStatus describes how the classifier contributed to a run
type AIStatus struct {
	Enabled    bool     `json:"enabled"`
	Provider   string   `json:"provider,omitempty"`
	Model      string   `json:"model,omitempty"`
	Candidates int      `json:"candidates"`
	Degraded   bool     `json:"degraded"` // Classifier failed; run fell back to rules only
	Warnings   []string `json:"warnings,omitempty"`
}

// Summary is the transparent roll-up of a detection list
type Summary struct {
	Total      int                   `json:"total"`
	BySeverity map[RiskLevel]int     `json:"by_severity"`
	ByType     map[DetectionType]int `json:"by_type"`
	RiskIndex  int                   `json:"risk_index"` // 0-100, higher is riskier
	Posture    string                `json:"posture"`    // clear, low, elevated, high, critical
	Signals    []Signal              `json:"signals,omitempty"`
}

// Signal is a diagnostic observation with the data behind it
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// SignalType classifies a summary signal
type SignalType string

const (
	SignalMissingRequired    SignalType = "missing_required"     // Required clauses not found
	SignalProhibitedLanguage SignalType = "prohibited_language"  // Prohibited language present
	SignalCategoryHotspot    SignalType = "category_hotspot"     // One category dominates findings
	SignalLowConfidence      SignalType = "low_confidence"       // Findings close to the match threshold
	SignalUnresolvedPages    SignalType = "unresolved_pages"     // Spans that could not be placed on a page
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
