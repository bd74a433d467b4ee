package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/ppiankov/clauseguard/internal/model"
)

const footer = "Generated by clauseguard. Findings are decision support for contract review, not legal advice."

// Renderer writes reports as JSON, Markdown and a console summary
type Renderer struct {
	includeFooter bool
	colors        map[model.RiskLevel]*color.Color
}

// NewRenderer creates a renderer. Console colors follow color.NoColor.
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{
		includeFooter: includeFooter,
		colors: map[model.RiskLevel]*color.Color{
			model.RiskCritical: color.New(color.FgRed, color.Bold),
			model.RiskHigh:     color.New(color.FgRed),
			model.RiskMedium:   color.New(color.FgYellow),
			model.RiskLow:      color.New(color.FgCyan),
		},
	}
}

// RenderJSON writes the report as indented JSON to path
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	var buf bytes.Buffer
	if err := r.WriteJSON(&buf, report); err != nil {
		return err
	}
	return writeFile(path, buf.Bytes())
}

// WriteJSON encodes the report with two-space indentation
func (r *Renderer) WriteJSON(w io.Writer, report *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(report)
}

// RenderMarkdown writes the Markdown report to path
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	var buf bytes.Buffer
	if err := r.WriteMarkdown(&buf, report); err != nil {
		return err
	}
	return writeFile(path, buf.Bytes())
}

// WriteMarkdown renders a reviewer-facing report
func (r *Renderer) WriteMarkdown(w io.Writer, report *model.Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Compliance audit: %s\n\n", report.Subject)
	fmt.Fprintf(&b, "Audited %s · %d bytes", report.AuditedAt.Format("2006-01-02 15:04 MST"), report.TextLength)
	if report.PageCount > 0 {
		fmt.Fprintf(&b, " · %d pages", report.PageCount)
	}
	b.WriteString("\n\n")

	s := report.Summary
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "**Risk index:** %d/100 (%s)\n\n", s.RiskIndex, s.Posture)
	b.WriteString("| Severity | Findings |\n|---|---|\n")
	for _, level := range []model.RiskLevel{model.RiskCritical, model.RiskHigh, model.RiskMedium, model.RiskLow} {
		fmt.Fprintf(&b, "| %s | %d |\n", level, s.BySeverity[level])
	}
	b.WriteString("\n")

	if len(s.Signals) > 0 {
		b.WriteString("### Signals\n\n")
		for _, sig := range s.Signals {
			fmt.Fprintf(&b, "- %s **%s**: %s\n", severityIcon(sig.Severity), sig.Type, sig.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Findings\n\n")
	if len(report.Detections) == 0 {
		b.WriteString("No policy violations were detected.\n\n")
	}
	for i, d := range report.Detections {
		fmt.Fprintf(&b, "### %d. [%s] %s: %s\n\n", i+1, d.Severity, d.Category, typeLabel(d.Type))
		if d.ExactText != "" {
			fmt.Fprintf(&b, "> %s\n\n", strings.Join(strings.Fields(d.ExactText), " "))
		}
		fmt.Fprintf(&b, "%s\n\n", d.Explanation)
		if d.PreferredLanguage != "" {
			fmt.Fprintf(&b, "- **Preferred language:** %s\n", d.PreferredLanguage)
		}
		if d.Reference != "" {
			fmt.Fprintf(&b, "- **Reference:** %s\n", d.Reference)
		}
		fmt.Fprintf(&b, "- **Location:** %s\n", location(d))
		fmt.Fprintf(&b, "- **Confidence:** %.0f%% (%s, rule %s)\n\n", d.Confidence*100, d.Origin, d.RuleID)
	}

	b.WriteString("## Rules\n\n")
	rs := report.RuleStats
	fmt.Fprintf(&b, "%d rules loaded from %d tables (%d rows; %d marked OK, %d not actionable).\n\n",
		rs.Loaded, rs.Tables, rs.Rows, rs.SkippedOK, rs.Dropped)

	if report.AI != nil {
		b.WriteString("## AI assistance\n\n")
		fmt.Fprintf(&b, "Provider %s", report.AI.Provider)
		if report.AI.Model != "" {
			fmt.Fprintf(&b, " (%s)", report.AI.Model)
		}
		fmt.Fprintf(&b, ", %d candidate paragraphs.", report.AI.Candidates)
		if report.AI.Degraded {
			b.WriteString(" The classifier failed; findings are rule-based only.")
		}
		b.WriteString("\n\n")
	}

	if r.includeFooter {
		fmt.Fprintf(&b, "---\n\n_%s_\n", footer)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderSummary prints a one-screen summary
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	s := report.Summary
	fmt.Fprintf(w, "\n%s\n", report.Subject)
	fmt.Fprintf(w, "Risk index: %d/100 (%s)\n", s.RiskIndex, r.paint(postureLevel(s.Posture), s.Posture))
	fmt.Fprintf(w, "Findings: %d (critical %d, high %d, medium %d, low %d)\n",
		s.Total, s.BySeverity[model.RiskCritical], s.BySeverity[model.RiskHigh],
		s.BySeverity[model.RiskMedium], s.BySeverity[model.RiskLow])

	for _, d := range report.Detections {
		line := fmt.Sprintf("  [%s] %-22s %s", r.paint(d.Severity, fmt.Sprintf("%-8s", d.Severity)), truncate(d.Category, 22), typeLabel(d.Type))
		if d.ExactText != "" {
			line += fmt.Sprintf(": %q", truncate(strings.Join(strings.Fields(d.ExactText), " "), 60))
		}
		if d.PageNumber != nil {
			line += fmt.Sprintf(" (p. %d)", *d.PageNumber)
		}
		fmt.Fprintln(w, line)
	}

	if report.AI != nil && report.AI.Degraded {
		fmt.Fprintln(w, "Warning: AI classifier failed, results are rule-based only")
	}
}

func (r *Renderer) paint(level model.RiskLevel, text string) string {
	c, ok := r.colors[level]
	if !ok {
		return text
	}
	return c.Sprint(text)
}

func postureLevel(posture string) model.RiskLevel {
	switch posture {
	case "critical":
		return model.RiskCritical
	case "high":
		return model.RiskHigh
	case "elevated":
		return model.RiskMedium
	case "low":
		return model.RiskLow
	default:
		return ""
	}
}

func typeLabel(t model.DetectionType) string {
	if t == model.DetectionMissingClause {
		return "missing clause"
	}
	return "problematic text"
}

func location(d model.ClauseDetection) string {
	if !d.HasSpan() {
		return "not present in the contract"
	}
	loc := fmt.Sprintf("bytes %d-%d", *d.StartIndex, *d.EndIndex)
	if d.PageNumber == nil {
		return loc
	}
	if d.PageStartIndex != nil && d.PageEndIndex != nil {
		return fmt.Sprintf("page %d, bytes %d-%d of the page (document %s)", *d.PageNumber, *d.PageStartIndex, *d.PageEndIndex, loc)
	}
	return fmt.Sprintf("page %d, %s", *d.PageNumber, loc)
}

func severityIcon(s model.SignalSeverity) string {
	switch s {
	case model.SeverityCritical:
		return "🔴"
	case model.SeverityWarning:
		return "🟡"
	default:
		return "🔵"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}
