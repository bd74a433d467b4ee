// Package detect combines rule-based fuzzy matching and classifier candidates
// into a deduplicated, severity-ordered list of compliance findings.
package detect

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ppiankov/clauseguard/internal/match"
	"github.com/ppiankov/clauseguard/internal/model"
)

// MissingConfidence is the fixed confidence of a MISSING_CLAUSE detection.
// Absence is asserted with high but not total confidence because a
// paraphrased clause can escape the fuzzy search.
const MissingConfidence = 0.9

var (
	tracer = otel.Tracer("github.com/ppiankov/clauseguard/internal/detect")

	// idNamespace scopes deterministic detection IDs
	idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/ppiankov/clauseguard/detection"))
)

// RuleSource supplies the policy rules for a run
type RuleSource interface {
	Load(ctx context.Context) ([]model.PolicyRule, error)
}

// CandidateFinder tags paragraphs with clause types
type CandidateFinder interface {
	FindClauses(ctx context.Context, text string, minConfidence float64) ([]model.ClauseCandidate, error)
}

// Options controls one detection run
type Options struct {
	UseAI          bool
	MinConfidence  float64 // Candidate cut-off for the classifier
	FuzzyThreshold float64 // <= 0 uses match.DefaultThreshold
}

// RunResult is the full outcome of a run, for reports and diagnostics
type RunResult struct {
	Detections []model.ClauseDetection
	Candidates []model.ClauseCandidate
	RuleCount  int
	AI         *model.AIStatus // Nil when AI was not requested
}

// Detector runs detections against a rule source
type Detector struct {
	rules   RuleSource
	finder  CandidateFinder
	matcher *match.Matcher
}

// NewDetector creates a detector. finder may be nil when AI is never used;
// a nil matcher uses the default paragraph length.
func NewDetector(rules RuleSource, finder CandidateFinder, matcher *match.Matcher) *Detector {
	if matcher == nil {
		matcher = match.NewMatcher(match.DefaultMinParagraphLength)
	}
	return &Detector{rules: rules, finder: finder, matcher: matcher}
}

// RunDetections returns the severity-ordered detections for documentText
func (d *Detector) RunDetections(ctx context.Context, documentText string, opts Options) ([]model.ClauseDetection, error) {
	res, err := d.Run(ctx, documentText, opts)
	if err != nil {
		return nil, err
	}
	return res.Detections, nil
}

// Run performs a detection run. A rule load failure or a context that ends
// before the run completes is returned as an error; classifier failures
// degrade the run to rule-only matching.
func (d *Detector) Run(ctx context.Context, documentText string, opts Options) (*RunResult, error) {
	ctx, span := tracer.Start(ctx, "detect.Run")
	defer span.End()

	threshold := opts.FuzzyThreshold
	if threshold <= 0 {
		threshold = match.DefaultThreshold
	}

	rules, err := d.rules.Load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rule load failed")
		return nil, fmt.Errorf("load rules: %w", err)
	}

	set := newDetectionSet()

	// Prohibited language anywhere in the document
	for _, rule := range rules {
		for _, pattern := range rule.ProhibitedPatterns {
			res := d.matcher.Search(documentText, pattern, threshold)
			if !res.Matched {
				continue
			}
			set.add(problematic(rule, pattern, res, 0, 1-res.Score, model.OriginRule, ""))
		}
	}

	// Required language that is absent
	for _, rule := range rules {
		if strings.TrimSpace(rule.RequirementText) == "" || rule.AcceptanceStatus == model.StatusOK {
			continue
		}
		if !rule.Risk.AtLeast(model.RiskHigh) {
			continue
		}
		res := d.matcher.Search(documentText, rule.RequirementText, threshold)
		if res.Matched {
			continue
		}
		set.add(missing(rule, res.Score))
	}

	result := &RunResult{RuleCount: len(rules)}

	if opts.UseAI {
		result.AI = &model.AIStatus{Enabled: true}
		candidates, err := d.findCandidates(ctx, documentText, opts.MinConfidence)
		if err != nil {
			slog.Warn("AI candidate finder failed, continuing with rule-based detection only", "error", err)
			result.AI.Degraded = true
			result.AI.Warnings = append(result.AI.Warnings, err.Error())
		} else {
			result.Candidates = candidates
			result.AI.Candidates = len(candidates)
			d.augment(set, rules, candidates, threshold)
		}
	}

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "detection incomplete")
		return nil, fmt.Errorf("detection incomplete: %w", err)
	}

	result.Detections = set.sorted()

	span.SetAttributes(
		attribute.Int("rules", len(rules)),
		attribute.Int("detections", len(result.Detections)),
		attribute.Bool("ai.enabled", opts.UseAI),
		attribute.Bool("ai.degraded", result.AI != nil && result.AI.Degraded),
	)
	return result, nil
}

func (d *Detector) findCandidates(ctx context.Context, text string, minConfidence float64) ([]model.ClauseCandidate, error) {
	if d.finder == nil {
		return nil, fmt.Errorf("no candidate finder configured")
	}
	return d.finder.FindClauses(ctx, text, minConfidence)
}

// augment narrows each candidate paragraph with the prohibited patterns of
// rules in a matching category
func (d *Detector) augment(set *detectionSet, rules []model.PolicyRule, candidates []model.ClauseCandidate, threshold float64) {
	for _, c := range candidates {
		category := c.Category
		if category == "" {
			category = c.Type
		}
		for _, rule := range rules {
			if !CategoriesMatch(rule.Category, category) {
				continue
			}
			for _, pattern := range rule.ProhibitedPatterns {
				res := d.matcher.Search(c.Text, pattern, threshold)
				if !res.Matched {
					continue
				}
				note := fmt.Sprintf("The classifier tagged this paragraph as %s (confidence %.2f).", c.Type, c.Confidence)
				set.add(problematic(rule, pattern, res, c.StartIndex, c.Confidence*(1-res.Score), model.OriginAI, note))
			}
		}
	}
}

// CategoriesMatch reports whether two category names overlap: after dropping
// everything but letters and digits, either contains the other (case-insensitive)
func CategoriesMatch(a, b string) bool {
	na, nb := categoryKey(a), categoryKey(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

func categoryKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func problematic(rule model.PolicyRule, pattern string, res match.Result, base int, confidence float64, origin model.DetectionOrigin, note string) model.ClauseDetection {
	explanation := fmt.Sprintf("%s policy prohibits %s language matching %q.",
		sourceLabel(rule.Source), rule.Category, pattern)
	if rule.Title != "" {
		explanation = fmt.Sprintf("%s policy prohibits %s language (%s) matching %q.",
			sourceLabel(rule.Source), rule.Category, rule.Title, pattern)
	}
	if note != "" {
		explanation += " " + note
	}
	if rule.AcceptanceStatus == model.StatusRemove {
		explanation += " This language must be removed."
	}
	if rule.Notes != "" {
		explanation += " Guidance: " + rule.Notes
	}

	return model.ClauseDetection{
		Type:              model.DetectionProblematicText,
		Severity:          rule.Risk,
		Category:          rule.Category,
		ExactText:         res.ExactText,
		StartIndex:        model.IntPtr(base + res.StartIndex),
		EndIndex:          model.IntPtr(base + res.EndIndex),
		Reference:         rule.Reference(),
		Explanation:       explanation,
		PreferredLanguage: rule.RequirementText,
		Confidence:        clamp01(confidence),
		RuleID:            rule.ID,
		Origin:            origin,
		MatchScore:        res.Score,
	}
}

func missing(rule model.PolicyRule, score float64) model.ClauseDetection {
	explanation := fmt.Sprintf("Required %s language from %s policy was not found in the contract.",
		rule.Category, strings.ToLower(string(rule.Source)))
	if rule.Notes != "" {
		explanation += " Guidance: " + rule.Notes
	}

	return model.ClauseDetection{
		Type:              model.DetectionMissingClause,
		Severity:          rule.Risk,
		Category:          rule.Category,
		Reference:         rule.Reference(),
		Explanation:       explanation,
		PreferredLanguage: rule.RequirementText,
		Confidence:        MissingConfidence,
		RuleID:            rule.ID,
		Origin:            model.OriginRule,
		MatchScore:        score,
	}
}

func sourceLabel(s model.PolicySource) string {
	lower := strings.ToLower(string(s))
	if lower == "" {
		return "Policy"
	}
	return strings.ToUpper(lower[:1]) + lower[1:]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// detectionSet accumulates detections in insertion order, dropping
// PROBLEMATIC_TEXT repeats of the same (exact text, category)
type detectionSet struct {
	items []model.ClauseDetection
	seen  map[string]bool
}

func newDetectionSet() *detectionSet {
	return &detectionSet{seen: make(map[string]bool)}
}

func (s *detectionSet) add(d model.ClauseDetection) bool {
	if d.Type == model.DetectionProblematicText {
		key := d.ExactText + "\x00" + d.Category
		if s.seen[key] {
			return false
		}
		s.seen[key] = true
	}
	s.items = append(s.items, d)
	return true
}

// sorted assigns deterministic IDs and orders by severity, keeping insertion
// order within a severity
func (s *detectionSet) sorted() []model.ClauseDetection {
	out := make([]model.ClauseDetection, len(s.items))
	copy(out, s.items)
	for i := range out {
		out[i].ID = detectionID(out[i], i)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Rank() < out[j].Severity.Rank()
	})
	return out
}

func detectionID(d model.ClauseDetection, ordinal int) string {
	start, end := -1, -1
	if d.HasSpan() {
		start, end = *d.StartIndex, *d.EndIndex
	}
	name := fmt.Sprintf("%s|%s|%s|%d|%d|%d", d.RuleID, d.Type, d.Origin, start, end, ordinal)
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}
