package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/clauseguard/internal/model"
	"github.com/ppiankov/clauseguard/internal/rules"
)

const ruleMatrix = `Clause,Category,Acceptance Status,Prohibited Language,Preferred Language,Risk,Reference
Indemnity,Indemnification,Remove,shall indemnify and hold harmless,,High,Ala. Const. art. I sec. 14
Insurance,Insurance,Conditional,,"Sponsor shall maintain liability insurance of at least $5,000,000 per occurrence",Critical,
`

const contractText = `RESEARCH AGREEMENT

1. Scope. The University will perform the research described in Exhibit A.

2. Indemnification. Auburn University shall indemnify and hold harmless the Sponsor from any claims arising from the research.
`

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testConfig(t *testing.T) *model.Config {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.Cache.Enabled = false
	cfg.Fetch.RespectRobots = false
	cfg.Rules.Sources = []model.RuleSourceConfig{{
		Path:   writeTemp(t, t.TempDir(), "gov.csv", ruleMatrix),
		Source: model.SourceGovernment,
	}}
	return cfg
}

func TestPipeline_AuditFile(t *testing.T) {
	cfg := testConfig(t)
	path := writeTemp(t, t.TempDir(), "sponsored-research.txt", contractText)

	report, err := NewPipeline(cfg).AuditFile(context.Background(), path)
	if err != nil {
		t.Fatalf("AuditFile failed: %v", err)
	}

	if report.Subject != "sponsored-research" {
		t.Errorf("Unexpected subject: %q", report.Subject)
	}
	if report.TextLength != len(contractText) {
		t.Errorf("Expected text length %d, got %d", len(contractText), report.TextLength)
	}
	if len(report.Detections) != 2 {
		t.Fatalf("Expected 2 detections, got %d: %+v", len(report.Detections), report.Detections)
	}

	missing := report.Detections[0]
	if missing.Type != model.DetectionMissingClause || missing.Severity != model.RiskCritical {
		t.Errorf("Expected critical missing clause first, got %s %s", missing.Severity, missing.Type)
	}

	problem := report.Detections[1]
	if problem.Type != model.DetectionProblematicText || problem.Severity != model.RiskHigh {
		t.Errorf("Expected high problematic text second, got %s %s", problem.Severity, problem.Type)
	}
	if got := contractText[*problem.StartIndex:*problem.EndIndex]; got != problem.ExactText {
		t.Errorf("Span %q does not match exact text %q", got, problem.ExactText)
	}

	if report.RuleStats.Loaded != 2 {
		t.Errorf("Expected 2 rules loaded, got %d", report.RuleStats.Loaded)
	}
	if report.Summary.RiskIndex != 35 {
		t.Errorf("Expected risk index 35, got %d", report.Summary.RiskIndex)
	}
	if report.AI != nil {
		t.Error("Expected no AI status when AI is disabled")
	}
}

func TestPipeline_AuditPages(t *testing.T) {
	cfg := testConfig(t)
	pageTexts := []string{
		"The University will perform the research described in Exhibit A using reasonable efforts.",
		"Auburn University shall indemnify and hold harmless the Sponsor from any claims.",
	}

	report, err := NewPipeline(cfg).Audit(context.Background(), AuditRequest{Subject: "paged", Pages: pageTexts})
	if err != nil {
		t.Fatalf("Audit failed: %v", err)
	}

	if report.PageCount != 2 {
		t.Errorf("Expected 2 pages, got %d", report.PageCount)
	}

	var found bool
	for _, d := range report.Detections {
		switch d.Type {
		case model.DetectionProblematicText:
			found = true
			if d.PageNumber == nil || *d.PageNumber != 2 {
				t.Errorf("Expected problematic text on page 2, got %v", d.PageNumber)
			}
		case model.DetectionMissingClause:
			if d.PageNumber != nil {
				t.Error("Missing clauses must not carry a page number")
			}
		}
	}
	if !found {
		t.Error("Expected a problematic text detection")
	}
}

func TestPipeline_PageLocalSpanInReports(t *testing.T) {
	cfg := testConfig(t)
	pageTexts := []string{
		"The University will perform the research described in Exhibit A using reasonable efforts.",
		"Auburn University shall indemnify and hold harmless the Sponsor from any claims.",
	}

	report, err := NewPipeline(cfg).Audit(context.Background(), AuditRequest{Subject: "paged", Pages: pageTexts})
	if err != nil {
		t.Fatalf("Audit failed: %v", err)
	}

	var det *model.ClauseDetection
	for i := range report.Detections {
		if report.Detections[i].Type == model.DetectionProblematicText {
			det = &report.Detections[i]
			break
		}
	}
	if det == nil {
		t.Fatal("Expected a problematic text detection")
	}
	if det.PageStartIndex == nil || det.PageEndIndex == nil {
		t.Fatalf("Expected a page-local span, got %+v", det)
	}
	if got := pageTexts[1][*det.PageStartIndex:*det.PageEndIndex]; got != det.ExactText {
		t.Errorf("Page-local span selects %q, want %q", got, det.ExactText)
	}

	r := NewRenderer(false)
	var mdBuf bytes.Buffer
	if err := r.WriteMarkdown(&mdBuf, report); err != nil {
		t.Fatalf("WriteMarkdown failed: %v", err)
	}
	want := fmt.Sprintf("page 2, bytes %d-%d of the page", *det.PageStartIndex, *det.PageEndIndex)
	if !strings.Contains(mdBuf.String(), want) {
		t.Errorf("Markdown missing %q:\n%s", want, mdBuf.String())
	}

	var jsonBuf bytes.Buffer
	if err := r.WriteJSON(&jsonBuf, report); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	var decoded model.Report
	if err := json.Unmarshal(jsonBuf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	for _, d := range decoded.Detections {
		if d.ID == det.ID && (d.PageStartIndex == nil || *d.PageStartIndex != *det.PageStartIndex) {
			t.Errorf("JSON page_start_index = %v, want %d", d.PageStartIndex, *det.PageStartIndex)
		}
	}
}

func TestPipeline_FormFeedPages(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.PageNumbers = true
	text := "The University will perform the research described in Exhibit A.\f" +
		"Auburn University shall indemnify and hold harmless the Sponsor from any claims.\f"
	path := writeTemp(t, t.TempDir(), "paged.txt", text)

	report, err := NewPipeline(cfg).AuditFile(context.Background(), path)
	if err != nil {
		t.Fatalf("AuditFile failed: %v", err)
	}
	if report.PageCount != 2 {
		t.Fatalf("Expected 2 pages, got %d", report.PageCount)
	}
	for _, d := range report.Detections {
		if d.Type == model.DetectionProblematicText && (d.PageNumber == nil || *d.PageNumber != 2) {
			t.Errorf("Expected page 2, got %v", d.PageNumber)
		}
	}
}

func TestPipeline_NoRuleSources(t *testing.T) {
	cfg := testConfig(t)
	cfg.Rules.Sources = nil

	_, err := NewPipeline(cfg).Audit(context.Background(), AuditRequest{Text: contractText})
	if !errors.Is(err, rules.ErrNoSources) {
		t.Errorf("Expected ErrNoSources, got %v", err)
	}
}

func TestPipeline_AIFailureDegrades(t *testing.T) {
	cfg := testConfig(t)
	cfg.AI.Enabled = true
	cfg.AI.Provider = "no-such-provider"

	report, err := NewPipeline(cfg).Audit(context.Background(), AuditRequest{Subject: "x", Text: contractText})
	if err != nil {
		t.Fatalf("Audit must not fail when the classifier fails: %v", err)
	}
	if report.AI == nil || !report.AI.Degraded {
		t.Fatalf("Expected degraded AI status, got %+v", report.AI)
	}
	if report.AI.Provider != "no-such-provider" {
		t.Errorf("Unexpected provider: %q", report.AI.Provider)
	}
	if len(report.Detections) != 2 {
		t.Errorf("Expected rule-based detections to survive, got %d", len(report.Detections))
	}
}

func TestPipeline_AILexicon(t *testing.T) {
	cfg := testConfig(t)
	cfg.AI.Enabled = true
	cfg.AI.Provider = "lexicon"
	cfg.AI.MinConfidence = 0.3
	cfg.Output.IncludeCandidates = true

	report, err := NewPipeline(cfg).Audit(context.Background(), AuditRequest{Subject: "x", Text: contractText})
	if err != nil {
		t.Fatalf("Audit failed: %v", err)
	}
	if report.AI == nil || report.AI.Degraded {
		t.Fatalf("Expected a healthy AI run, got %+v", report.AI)
	}
	if report.AI.Candidates != len(report.Candidates) {
		t.Errorf("Candidate count %d does not match candidates %d", report.AI.Candidates, len(report.Candidates))
	}
	for i := 1; i < len(report.Detections); i++ {
		if report.Detections[i-1].Severity.Rank() > report.Detections[i].Severity.Rank() {
			t.Error("Detections must be ordered by severity")
		}
	}
}

func TestPipeline_AuditURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, `<html><head><style>p{}</style></head><body>
<h1>Research Agreement</h1>
<p>Auburn University shall indemnify and hold harmless the Sponsor from any claims.</p>
</body></html>`)
	}))
	defer server.Close()

	report, err := NewPipeline(testConfig(t)).AuditFile(context.Background(), server.URL+"/agreements/research_agreement.html")
	if err != nil {
		t.Fatalf("AuditFile failed: %v", err)
	}
	if report.Subject != "research agreement" {
		t.Errorf("Unexpected subject: %q", report.Subject)
	}

	var found bool
	for _, d := range report.Detections {
		if d.Type == model.DetectionProblematicText {
			found = true
			if strings.Contains(d.ExactText, "<") {
				t.Errorf("Markup leaked into exact text: %q", d.ExactText)
			}
		}
	}
	if !found {
		t.Error("Expected problematic text from the fetched contract")
	}
}

func TestReadContract(t *testing.T) {
	dir := t.TempDir()

	text, err := ReadContract(writeTemp(t, dir, "a.txt", "plain contract"))
	if err != nil || text != "plain contract" {
		t.Errorf("Expected verbatim text, got %q (%v)", text, err)
	}

	html, err := ReadContract(writeTemp(t, dir, "b.html", "<p>First clause.</p><script>x()</script><p>Second clause.</p>"))
	if err != nil {
		t.Fatalf("ReadContract html failed: %v", err)
	}
	if !strings.Contains(html, "First clause.") || !strings.Contains(html, "Second clause.") || strings.Contains(html, "x()") {
		t.Errorf("Unexpected visible text: %q", html)
	}

	if _, err := ReadContract(writeTemp(t, dir, "c.pdf", "%PDF")); err == nil {
		t.Error("Expected error for unsupported format")
	}
	if _, err := ReadContract(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestRenderer_JSONAndMarkdown(t *testing.T) {
	cfg := testConfig(t)
	report, err := NewPipeline(cfg).Audit(context.Background(), AuditRequest{Subject: "sample", Text: contractText})
	if err != nil {
		t.Fatalf("Audit failed: %v", err)
	}

	r := NewRenderer(true)

	var jsonBuf bytes.Buffer
	if err := r.WriteJSON(&jsonBuf, report); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(jsonBuf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := decoded["detections"]; !ok {
		t.Error("Expected detections in JSON output")
	}
	if !strings.Contains(jsonBuf.String(), "\n  \"subject\"") {
		t.Error("Expected two-space indentation")
	}

	var mdBuf bytes.Buffer
	if err := r.WriteMarkdown(&mdBuf, report); err != nil {
		t.Fatalf("WriteMarkdown failed: %v", err)
	}
	md := mdBuf.String()
	for _, want := range []string{"# Compliance audit: sample", "**Risk index:** 35/100", "missing clause", "Preferred language", footer} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown missing %q", want)
		}
	}

	var summary bytes.Buffer
	r.RenderSummary(&summary, report)
	if !strings.Contains(summary.String(), "Findings: 2") {
		t.Errorf("Unexpected summary: %s", summary.String())
	}
}

func TestPipeline_RenderReportWritesFiles(t *testing.T) {
	cfg := testConfig(t)
	p := NewPipeline(cfg)
	report, err := p.Audit(context.Background(), AuditRequest{Subject: "sample", Text: contractText})
	if err != nil {
		t.Fatalf("Audit failed: %v", err)
	}

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "out", "report.json")
	mdPath := filepath.Join(dir, "out", "report.md")
	if err := p.RenderReport(report, jsonPath, mdPath, false); err != nil {
		t.Fatalf("RenderReport failed: %v", err)
	}
	for _, path := range []string{jsonPath, mdPath} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Expected %s to exist: %v", path, err)
		}
	}
}
