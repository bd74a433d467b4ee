package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/clauseguard/internal/cache"
	"github.com/ppiankov/clauseguard/internal/classify"
	"github.com/ppiankov/clauseguard/internal/detect"
	"github.com/ppiankov/clauseguard/internal/extract"
	"github.com/ppiankov/clauseguard/internal/llm"
	"github.com/ppiankov/clauseguard/internal/match"
	"github.com/ppiankov/clauseguard/internal/model"
	"github.com/ppiankov/clauseguard/internal/pages"
	"github.com/ppiankov/clauseguard/internal/rules"
	"github.com/ppiankov/clauseguard/internal/score"
)

// Pipeline orchestrates the complete audit process
type Pipeline struct {
	repo     *rules.Repository
	detector *detect.Detector
	scorer   *score.Scorer
	renderer *Renderer
	fetcher  *Fetcher
	config   *model.Config
	ai       model.AIStatus // Provider and model reported on every AI run
}

// NewPipeline creates a new pipeline with the given configuration.
// Cache or classifier problems degrade the pipeline rather than failing it.
func NewPipeline(cfg *model.Config) *Pipeline {
	c, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Warn("cache unavailable, continuing without it", "type", cfg.Cache.Type, "error", err)
		c = cache.NopCache{}
	}

	sources := make([]rules.SourceSpec, 0, len(cfg.Rules.Sources))
	for _, s := range cfg.Rules.Sources {
		sources = append(sources, rules.SourceSpec{Path: s.Path, Source: s.Source})
	}
	repo := rules.NewRepository(sources, c)

	p := &Pipeline{
		repo:     repo,
		scorer:   score.NewScorer(),
		renderer: NewRenderer(cfg.Output.IncludeFooter),
		fetcher: NewFetcher(cfg.Fetch.Timeout, cfg.Fetch.UserAgent, cfg.Fetch.MaxBodyBytes,
			cfg.Fetch.RespectRobots, cfg.Fetch.HTTPProxy, cfg.Fetch.HTTPSProxy, cfg.Fetch.NoProxy),
		config: cfg,
	}

	// The detector only consults the finder when AI is enabled, and the
	// finder only builds its classifier on the first call
	var finder detect.CandidateFinder
	if cfg.AI.Enabled {
		llmConfig := llm.ApplyEnv(llm.ConfigFromModel(cfg.AI))
		id := strings.ToLower(llmConfig.Provider)
		if llmConfig.Model != "" {
			id += "/" + llmConfig.Model
		}
		finder = classify.NewFinder(llm.NewClassifierFactory(llmConfig), classify.Options{
			ClassifierID:      id,
			Workers:           cfg.AI.Workers,
			RequestsPerSecond: cfg.AI.RequestsPerSecond,
			Burst:             cfg.AI.BurstSize,
			Cache:             c,
		})
		p.ai = model.AIStatus{Provider: llmConfig.Provider, Model: llmConfig.Model}
	}

	p.detector = detect.NewDetector(repo, finder, match.NewMatcher(cfg.Matching.MinParagraphLength))
	return p
}

// AuditRequest is one contract to audit. When Text is empty it is built
// from Pages; when both are set Text must equal pages.Join(Pages).
type AuditRequest struct {
	Subject string
	Text    string
	Pages   []string
}

// Audit runs detection over one contract and builds the report
func (p *Pipeline) Audit(ctx context.Context, req AuditRequest) (*model.Report, error) {
	text := req.Text
	if text == "" && len(req.Pages) > 0 {
		text = pages.Join(req.Pages)
	}

	var resolver *pages.Resolver
	if len(req.Pages) > 0 {
		resolver = pages.NewResolver(req.Pages)
		if joined := len(pages.Join(req.Pages)); joined != len(text) {
			slog.Warn("page texts do not add up to the document text, page numbers may be wrong",
				"subject", req.Subject, "text_bytes", len(text), "page_bytes", joined)
		}
	}

	start := time.Now()
	res, err := p.detector.Run(ctx, text, detect.Options{
		UseAI:          p.config.AI.Enabled,
		MinConfidence:  p.config.AI.MinConfidence,
		FuzzyThreshold: p.config.Matching.FuzzyThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	detections := res.Detections
	pageCount := 0
	if resolver != nil {
		detections = resolver.Resolve(detections)
		pageCount = resolver.PageCount()
	}

	report := &model.Report{
		Subject:    req.Subject,
		AuditedAt:  time.Now().UTC(),
		TextLength: len(text),
		PageCount:  pageCount,
		Detections: detections,
		Summary:    p.scorer.SummarizeWithPages(detections, pageCount),
		RuleStats:  p.repo.Stats(),
	}
	if report.Detections == nil {
		report.Detections = []model.ClauseDetection{}
	}
	if p.config.Output.IncludeCandidates {
		report.Candidates = res.Candidates
	}
	if res.AI != nil {
		ai := *res.AI
		ai.Provider = p.ai.Provider
		ai.Model = p.ai.Model
		report.AI = &ai
	}

	slog.Info("audit complete",
		"subject", req.Subject,
		"rules", res.RuleCount,
		"detections", len(detections),
		"risk_index", report.Summary.RiskIndex,
		"duration", time.Since(start))

	return report, nil
}

// AuditFile reads a contract from a path or URL and audits it
func (p *Pipeline) AuditFile(ctx context.Context, location string) (*model.Report, error) {
	req, err := p.LoadContract(ctx, location)
	if err != nil {
		return nil, err
	}
	return p.Audit(ctx, req)
}

// LoadContract turns a path or http(s) URL into an audit request.
// With page numbers enabled, form feeds split the text into pages.
func (p *Pipeline) LoadContract(ctx context.Context, location string) (AuditRequest, error) {
	var req AuditRequest

	if IsURL(location) {
		result, err := p.fetcher.FetchWithRetry(ctx, location)
		if err != nil {
			return req, fmt.Errorf("fetch contract: %w", err)
		}
		req.Subject = result.Subject
		req.Text = result.Body
		if result.IsHTML() {
			text, err := extract.VisibleText(result.Body)
			if err != nil {
				return req, fmt.Errorf("extract text: %w", err)
			}
			req.Text = text
		}
	} else {
		text, err := ReadContract(location)
		if err != nil {
			return req, err
		}
		req.Subject = strings.TrimSuffix(filepath.Base(location), filepath.Ext(location))
		req.Text = text
	}

	if p.config.Output.PageNumbers && strings.Contains(req.Text, "\f") {
		req.Pages = pages.SplitFormFeed(req.Text)
		req.Text = ""
	}
	return req, nil
}

// RuleSet loads the configured rules with their load statistics
func (p *Pipeline) RuleSet(ctx context.Context) ([]model.PolicyRule, model.RuleStats, error) {
	loaded, err := p.repo.Load(ctx)
	if err != nil {
		return nil, model.RuleStats{}, err
	}
	return loaded, p.repo.Stats(), nil
}

// ReadContract reads a plain-text or HTML contract from disk.
// Other formats must be converted to text before auditing.
func ReadContract(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case "", ".txt", ".text", ".md":
	case ".html", ".htm":
	default:
		return "", fmt.Errorf("unsupported contract format %q: convert it to text first", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read contract: %w", err)
	}

	if ext == ".html" || ext == ".htm" {
		text, err := extract.VisibleText(string(data))
		if err != nil {
			return "", fmt.Errorf("extract text: %w", err)
		}
		return text, nil
	}
	return string(data), nil
}

// RenderReport renders the report to the specified outputs
func (p *Pipeline) RenderReport(report *model.Report, jsonPath string, mdPath string, verbose bool) error {
	// Render JSON
	if jsonPath != "" {
		if err := p.renderer.RenderJSON(report, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	// Render Markdown
	if mdPath != "" {
		if err := p.renderer.RenderMarkdown(report, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	// Print summary to stdout
	p.renderer.RenderSummary(os.Stdout, report)

	return nil
}
