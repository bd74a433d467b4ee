// Package rules turns tabular policy matrices into normalized compliance rules.
package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/ppiankov/clauseguard/internal/cache"
	"github.com/ppiankov/clauseguard/internal/model"
)

// ErrNoSources is returned when a load is requested without any policy files
var ErrNoSources = errors.New("no rule sources configured")

// SourceSpec is one policy file and the body of policy it belongs to
type SourceSpec struct {
	Path   string
	Source model.PolicySource
}

// LoadStats reports how many rows became rules and why the rest did not
type LoadStats = model.RuleStats

// LoadRules reads every source and returns the actionable rules in file order.
// Unusable rows are dropped and counted, never reported as errors; only I/O
// and format failures are fatal.
func LoadRules(ctx context.Context, sources []SourceSpec) ([]model.PolicyRule, LoadStats, error) {
	var stats LoadStats
	if len(sources) == 0 {
		return nil, stats, ErrNoSources
	}

	ids := make(map[string]int)
	var rules []model.PolicyRule
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		tables, err := readTables(src.Path)
		if err != nil {
			return nil, stats, fmt.Errorf("load rules: %w", err)
		}

		for _, t := range tables {
			loaded := parseTable(t, src.Source, ids, &stats)
			rules = append(rules, loaded...)
		}
	}

	if stats.Dropped > 0 {
		slog.Warn("dropped policy rows without patterns or requirement text",
			"dropped", stats.Dropped, "rows", stats.Rows)
	}
	slog.Debug("policy rules loaded",
		"tables", stats.Tables, "rows", stats.Rows, "loaded", stats.Loaded, "skipped_ok", stats.SkippedOK)

	return rules, stats, nil
}

// parseTable converts one table's rows into rules, updating stats
func parseTable(t table, source model.PolicySource, ids map[string]int, stats *LoadStats) []model.PolicyRule {
	headerIdx, cols, ok := findHeader(t.Rows)
	if !ok {
		slog.Debug("no header row found, skipping table", "table", t.Name)
		return nil
	}
	stats.Tables++

	var rules []model.PolicyRule
	for i := headerIdx + 1; i < len(t.Rows); i++ {
		row := t.Rows[i]
		if isBlank(row) {
			continue
		}
		stats.Rows++

		status := parseStatus(cols.cell(row, roleStatus))
		if status == model.StatusOK {
			stats.SkippedOK++
			continue
		}

		category := cols.cell(row, roleCategory)
		if category == "" {
			category = t.Name
		}

		idCell := cols.cell(row, roleID)
		title := cols.cell(row, roleTitle)
		if title == "" && hasLetters(idCell) {
			title = idCell
		}

		requirement := cols.cell(row, roleRequirement)
		notes := cols.cell(row, roleNotes)

		rule := model.PolicyRule{
			Source:             source,
			Category:           category,
			Title:              title,
			RequirementText:    requirement,
			ProhibitedPatterns: collectPatterns(cols.cell(row, roleProhibited), notes, title, status),
			Risk:               assessRisk(cols.cell(row, roleRisk), category, requirement, status),
			AcceptanceStatus:   status,
			References:         collectReferences(cols.cell(row, roleReference), idCell),
			Notes:              notes,
		}

		if !rule.IsActionable() {
			stats.Dropped++
			continue
		}

		rule.ID = uniqueID(ruleID(source, category, idCell, i+1), ids)
		rules = append(rules, rule)
		stats.Loaded++
	}
	return rules
}

func ruleID(source model.PolicySource, category, idCell string, rowNumber int) string {
	if s := slug(idCell); s != "" {
		return source.Short() + "-" + s
	}
	return source.Short() + "-" + slug(category) + "-" + strconv.Itoa(rowNumber)
}

func uniqueID(id string, ids map[string]int) string {
	ids[id]++
	if n := ids[id]; n > 1 {
		return id + "-" + strconv.Itoa(n)
	}
	return id
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Repository memoizes the parsed rule set for a fixed list of sources.
// The cache key fingerprints every file's path, size and modification time,
// so edits to a matrix invalidate the cached rules.
type Repository struct {
	sources []SourceSpec
	cache   cache.Cache

	mu    sync.Mutex
	stats LoadStats
}

// NewRepository creates a repository; a nil cache disables memoization
func NewRepository(sources []SourceSpec, c cache.Cache) *Repository {
	if c == nil {
		c = cache.NopCache{}
	}
	return &Repository{sources: sources, cache: c}
}

type cachedRules struct {
	Rules []model.PolicyRule `json:"rules"`
	Stats LoadStats          `json:"stats"`
}

// Load returns the rule set, parsing the sources only on a cache miss
func (r *Repository) Load(ctx context.Context) ([]model.PolicyRule, error) {
	if len(r.sources) == 0 {
		return nil, ErrNoSources
	}

	key, err := r.fingerprint()
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	if data, ok := r.cache.Get(key); ok {
		var cached cachedRules
		if err := json.Unmarshal(data, &cached); err == nil {
			r.setStats(cached.Stats)
			return cached.Rules, nil
		}
	}

	rules, stats, err := LoadRules(ctx, r.sources)
	if err != nil {
		return nil, err
	}
	r.setStats(stats)

	if data, err := json.Marshal(cachedRules{Rules: rules, Stats: stats}); err == nil {
		if err := r.cache.Set(key, data, 0); err != nil {
			slog.Warn("failed to cache rules", "error", err)
		}
	}
	return rules, nil
}

// Stats returns the load statistics of the most recent Load
func (r *Repository) Stats() LoadStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Repository) setStats(s LoadStats) {
	r.mu.Lock()
	r.stats = s
	r.mu.Unlock()
}

func (r *Repository) fingerprint() (string, error) {
	parts := make([]string, 0, len(r.sources))
	for _, src := range r.sources {
		info, err := os.Stat(src.Path)
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", src.Path, err)
		}
		parts = append(parts, fmt.Sprintf("%s|%d|%d|%s",
			src.Path, info.Size(), info.ModTime().UnixNano(), src.Source))
	}
	return cache.CacheKey("rules", parts...), nil
}
