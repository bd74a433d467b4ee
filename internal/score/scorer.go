package score

import (
	"fmt"
	"sort"

	"github.com/ppiankov/clauseguard/internal/model"
)

// Severity weights behind the risk index
const (
	weightCritical = 25
	weightHigh     = 10
	weightMedium   = 4
	weightLow      = 1

	// lowConfidence marks detections whose match sat close to the threshold
	lowConfidence = 0.7

	// hotspotMin is the smallest category count reported as a hotspot
	hotspotMin = 3
)

// Scorer rolls detections up into a summary with diagnostic signals
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Summarize counts detections, computes the risk index and generates signals
func (s *Scorer) Summarize(detections []model.ClauseDetection) model.Summary {
	return s.SummarizeWithPages(detections, 0)
}

// SummarizeWithPages is Summarize for a report that carried page texts;
// spans that fell outside every page are reported as a signal
func (s *Scorer) SummarizeWithPages(detections []model.ClauseDetection, pageCount int) model.Summary {
	summary := model.Summary{
		Total:      len(detections),
		BySeverity: make(map[model.RiskLevel]int),
		ByType:     make(map[model.DetectionType]int),
	}
	for _, d := range detections {
		summary.BySeverity[d.Severity]++
		summary.ByType[d.Type]++
	}

	// 1. Risk index (0-100)
	summary.RiskIndex = riskIndex(summary.BySeverity)
	summary.Posture = posture(summary.RiskIndex)

	// 2. Missing required clauses
	if sig, ok := s.missingSignal(detections); ok {
		summary.Signals = append(summary.Signals, sig)
	}

	// 3. Prohibited language present
	if sig, ok := s.prohibitedSignal(detections); ok {
		summary.Signals = append(summary.Signals, sig)
	}

	// 4. Category concentration
	if sig, ok := s.hotspotSignal(detections); ok {
		summary.Signals = append(summary.Signals, sig)
	}

	// 5. Borderline matches
	if sig, ok := s.lowConfidenceSignal(detections); ok {
		summary.Signals = append(summary.Signals, sig)
	}

	// 6. Page resolution misses
	if pageCount > 0 {
		if sig, ok := s.unresolvedSignal(detections, pageCount); ok {
			summary.Signals = append(summary.Signals, sig)
		}
	}

	return summary
}

func riskIndex(bySeverity map[model.RiskLevel]int) int {
	index := weightCritical*bySeverity[model.RiskCritical] +
		weightHigh*bySeverity[model.RiskHigh] +
		weightMedium*bySeverity[model.RiskMedium] +
		weightLow*bySeverity[model.RiskLow]
	if index > 100 {
		index = 100
	}
	return index
}

// posture buckets the risk index for display
func posture(index int) string {
	switch {
	case index == 0:
		return "clear"
	case index < 10:
		return "low"
	case index < 25:
		return "elevated"
	case index < 50:
		return "high"
	default:
		return "critical"
	}
}

func (s *Scorer) missingSignal(detections []model.ClauseDetection) (model.Signal, bool) {
	var missing []string
	critical := 0
	for _, d := range detections {
		if d.Type != model.DetectionMissingClause {
			continue
		}
		missing = append(missing, d.Category)
		if d.Severity == model.RiskCritical {
			critical++
		}
	}
	if len(missing) == 0 {
		return model.Signal{}, false
	}

	severity := model.SeverityWarning
	if critical > 0 {
		severity = model.SeverityCritical
	}

	return model.Signal{
		Type:        model.SignalMissingRequired,
		Severity:    severity,
		Description: fmt.Sprintf("%d required clause(s) not found (%d critical)", len(missing), critical),
		Data: map[string]interface{}{
			"missing":    len(missing),
			"critical":   critical,
			"categories": missing,
		},
	}, true
}

func (s *Scorer) prohibitedSignal(detections []model.ClauseDetection) (model.Signal, bool) {
	count := 0
	fromAI := 0
	worst := model.RiskLow
	for _, d := range detections {
		if d.Type != model.DetectionProblematicText {
			continue
		}
		count++
		if d.Origin == model.OriginAI {
			fromAI++
		}
		if d.Severity.Rank() < worst.Rank() {
			worst = d.Severity
		}
	}
	if count == 0 {
		return model.Signal{}, false
	}

	severity := model.SeverityInfo
	switch worst {
	case model.RiskCritical:
		severity = model.SeverityCritical
	case model.RiskHigh:
		severity = model.SeverityWarning
	}

	return model.Signal{
		Type:        model.SignalProhibitedLanguage,
		Severity:    severity,
		Description: fmt.Sprintf("%d prohibited passage(s), worst severity %s", count, worst),
		Data: map[string]interface{}{
			"count":    count,
			"from_ai":  fromAI,
			"worst":    string(worst),
			"severity": string(severity),
		},
	}, true
}

func (s *Scorer) hotspotSignal(detections []model.ClauseDetection) (model.Signal, bool) {
	counts := make(map[string]int)
	for _, d := range detections {
		counts[d.Category]++
	}

	categories := make([]string, 0, len(counts))
	for c := range counts {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool {
		if counts[categories[i]] != counts[categories[j]] {
			return counts[categories[i]] > counts[categories[j]]
		}
		return categories[i] < categories[j]
	})

	if len(categories) == 0 {
		return model.Signal{}, false
	}
	top := categories[0]
	share := float64(counts[top]) / float64(len(detections))
	if counts[top] < hotspotMin || share <= 0.5 {
		return model.Signal{}, false
	}

	return model.Signal{
		Type:        model.SignalCategoryHotspot,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("%s accounts for %d of %d findings", top, counts[top], len(detections)),
		Data: map[string]interface{}{
			"category": top,
			"count":    counts[top],
			"total":    len(detections),
			"share":    share,
		},
	}, true
}

func (s *Scorer) lowConfidenceSignal(detections []model.ClauseDetection) (model.Signal, bool) {
	low := 0
	for _, d := range detections {
		if d.Type == model.DetectionProblematicText && d.Confidence < lowConfidence {
			low++
		}
	}
	if low == 0 {
		return model.Signal{}, false
	}

	return model.Signal{
		Type:        model.SignalLowConfidence,
		Severity:    model.SeverityInfo,
		Description: fmt.Sprintf("%d finding(s) below %.0f%% confidence; review the quoted text", low, lowConfidence*100),
		Data: map[string]interface{}{
			"count":     low,
			"threshold": lowConfidence,
			"formula":   "confidence = 1 - match_score (rules), candidate * (1 - match_score) (ai)",
		},
	}, true
}

func (s *Scorer) unresolvedSignal(detections []model.ClauseDetection, pageCount int) (model.Signal, bool) {
	unresolved := 0
	for _, d := range detections {
		if d.HasSpan() && d.PageNumber == nil {
			unresolved++
		}
	}
	if unresolved == 0 {
		return model.Signal{}, false
	}

	return model.Signal{
		Type:        model.SignalUnresolvedPages,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("%d span(s) could not be placed on any of %d pages", unresolved, pageCount),
		Data: map[string]interface{}{
			"unresolved": unresolved,
			"pages":      pageCount,
		},
	}, true
}
