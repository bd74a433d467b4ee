package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/clauseguard/internal/model"
)

// Detection flags shared by audit, batch and rules
var (
	ruleSpecs     []string
	ruleSource    string
	threshold     float64
	useAI         bool
	aiProvider    string
	aiModel       string
	minConfidence float64
	aiWorkers     int
	pageNumbers   bool
	noCache       bool
	noFooter      bool
	candidates    bool
	timeout       time.Duration
	httpProxy     string
	httpsProxy    string
)

// addRuleFlags registers the flags that select policy matrices
func addRuleFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&ruleSpecs, "rules", nil, "policy matrix (.xlsx, .csv, .tsv) as path or source=path; repeatable")
	cmd.Flags().StringVar(&ruleSource, "source", "institution", "policy source for --rules paths without a source= prefix (government, institution)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable cache (re-parse matrices, re-run classifier)")
}

// addDetectionFlags registers the flags that tune a detection run
func addDetectionFlags(cmd *cobra.Command) {
	addRuleFlags(cmd)

	cmd.Flags().Float64Var(&threshold, "threshold", 0.4, "fuzzy match threshold (0 = exact only, 1 = anything)")
	cmd.Flags().BoolVar(&pageNumbers, "pages", false, "split form-feed separated text into pages and report page numbers")
	cmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	cmd.Flags().BoolVar(&candidates, "candidates", false, "include classifier candidates in JSON reports")
	cmd.Flags().StringVar(&httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	cmd.Flags().StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")

	// AI flags
	cmd.Flags().BoolVar(&useAI, "ai", false, "enable AI candidate finding")
	cmd.Flags().StringVar(&aiProvider, "ai-provider", "lexicon", "classifier provider (lexicon, openai, anthropic, ollama); implies --ai")
	cmd.Flags().StringVar(&aiModel, "ai-model", "", "classifier model name (provider default when empty)")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0.5, "minimum classifier confidence for a candidate paragraph")
	cmd.Flags().IntVar(&aiWorkers, "workers", 1, "concurrent classifier calls per contract")
}

// loadConfig merges defaults, config file, CLAUSEGUARD_* env and changed flags
func loadConfig(cmd *cobra.Command) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *model.Config) error {
	flags := cmd.Flags()
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}

	if changed("rules") {
		fallback, ok := model.ParsePolicySource(ruleSource)
		if !ok {
			return fmt.Errorf("unknown policy source %q (use government or institution)", ruleSource)
		}
		cfg.Rules.Sources = cfg.Rules.Sources[:0]
		for _, spec := range ruleSpecs {
			cfg.Rules.Sources = append(cfg.Rules.Sources, parseRuleSpec(spec, fallback))
		}
	}
	if changed("no-cache") && noCache {
		cfg.Cache.Enabled = false
	}
	if changed("threshold") {
		cfg.Matching.FuzzyThreshold = threshold
	}
	if changed("pages") {
		cfg.Output.PageNumbers = pageNumbers
	}
	if changed("no-footer") {
		cfg.Output.IncludeFooter = !noFooter
	}
	if changed("candidates") {
		cfg.Output.IncludeCandidates = candidates
	}
	if changed("http-proxy") {
		cfg.Fetch.HTTPProxy = httpProxy
		cfg.AI.HTTPProxy = httpProxy
	}
	if changed("https-proxy") {
		cfg.Fetch.HTTPSProxy = httpsProxy
		cfg.AI.HTTPSProxy = httpsProxy
	}
	if changed("ai") {
		cfg.AI.Enabled = useAI
	}
	if changed("ai-provider") {
		cfg.AI.Provider = aiProvider
		cfg.AI.Enabled = true
	}
	if changed("ai-model") {
		cfg.AI.Model = aiModel
	}
	if changed("min-confidence") {
		cfg.AI.MinConfidence = minConfidence
	}
	if changed("workers") {
		cfg.AI.Workers = aiWorkers
	}
	if verbose {
		cfg.Output.Verbose = true
	}
	return nil
}

// parseRuleSpec reads "government=gov.xlsx" or a bare path
func parseRuleSpec(spec string, fallback model.PolicySource) model.RuleSourceConfig {
	if name, path, ok := strings.Cut(spec, "="); ok {
		if source, known := model.ParsePolicySource(name); known {
			return model.RuleSourceConfig{Path: path, Source: source}
		}
	}
	return model.RuleSourceConfig{Path: spec, Source: fallback}
}

// validateConfig checks ranges and canonicalizes rule sources from config files
func validateConfig(cfg *model.Config) error {
	if cfg.Matching.FuzzyThreshold < 0 || cfg.Matching.FuzzyThreshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %v", cfg.Matching.FuzzyThreshold)
	}
	if cfg.AI.MinConfidence < 0 || cfg.AI.MinConfidence > 1 {
		return fmt.Errorf("min-confidence must be between 0 and 1, got %v", cfg.AI.MinConfidence)
	}
	for i, s := range cfg.Rules.Sources {
		if s.Path == "" {
			return fmt.Errorf("rule source %d has no path", i+1)
		}
		source, ok := model.ParsePolicySource(string(s.Source))
		if !ok {
			return fmt.Errorf("rule source %s: unknown policy source %q", s.Path, s.Source)
		}
		cfg.Rules.Sources[i].Source = source
	}
	return nil
}

// registerDefaults makes every config key known to viper so that
// CLAUSEGUARD_* environment variables are picked up by Unmarshal
func registerDefaults(v *viper.Viper) {
	d := model.DefaultConfig()
	defaults := map[string]interface{}{
		"matching.fuzzy_threshold":      d.Matching.FuzzyThreshold,
		"matching.min_paragraph_length": d.Matching.MinParagraphLength,

		"ai.enabled":             d.AI.Enabled,
		"ai.provider":            d.AI.Provider,
		"ai.model":               d.AI.Model,
		"ai.api_key":             d.AI.APIKey,
		"ai.base_url":            d.AI.BaseURL,
		"ai.timeout":             d.AI.Timeout,
		"ai.max_tokens":          d.AI.MaxTokens,
		"ai.min_confidence":      d.AI.MinConfidence,
		"ai.workers":             d.AI.Workers,
		"ai.requests_per_second": d.AI.RequestsPerSecond,
		"ai.burst_size":          d.AI.BurstSize,
		"ai.strict_labels":       d.AI.StrictLabels,
		"ai.http_proxy":          d.AI.HTTPProxy,
		"ai.https_proxy":         d.AI.HTTPSProxy,

		"cache.enabled":        d.Cache.Enabled,
		"cache.type":           d.Cache.Type,
		"cache.dir":            d.Cache.Dir,
		"cache.ttl":            d.Cache.TTL,
		"cache.redis_addr":     d.Cache.RedisAddr,
		"cache.redis_password": d.Cache.RedisPassword,
		"cache.redis_db":       d.Cache.RedisDB,

		"fetch.timeout":        d.Fetch.Timeout,
		"fetch.user_agent":     d.Fetch.UserAgent,
		"fetch.max_body_bytes": d.Fetch.MaxBodyBytes,
		"fetch.respect_robots": d.Fetch.RespectRobots,
		"fetch.http_proxy":     d.Fetch.HTTPProxy,
		"fetch.https_proxy":    d.Fetch.HTTPSProxy,
		"fetch.no_proxy":       d.Fetch.NoProxy,

		"output.verbose":            d.Output.Verbose,
		"output.include_candidates": d.Output.IncludeCandidates,
		"output.include_footer":     d.Output.IncludeFooter,
		"output.page_numbers":       d.Output.PageNumbers,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}
