package model

import "time"

// Config is the complete clauseguard configuration.
// Field tags are shared by viper (mapstructure) and config show/init (yaml).
type Config struct {
	Rules    RulesConfig    `yaml:"rules" mapstructure:"rules"`
	Matching MatchingConfig `yaml:"matching" mapstructure:"matching"`
	AI       AIConfig       `yaml:"ai" mapstructure:"ai"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
}

// RulesConfig lists the tabular policy sources to load
type RulesConfig struct {
	Sources []RuleSourceConfig `yaml:"sources" mapstructure:"sources"`
}

// RuleSourceConfig is one policy file and the body of policy it belongs to
type RuleSourceConfig struct {
	Path   string       `yaml:"path" mapstructure:"path"`
	Source PolicySource `yaml:"source" mapstructure:"source"`
}

// MatchingConfig tunes the fuzzy clause matcher
type MatchingConfig struct {
	FuzzyThreshold     float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`           // Accept scores <= threshold
	MinParagraphLength int     `yaml:"min_paragraph_length" mapstructure:"min_paragraph_length"` // Bytes
}

// AIConfig configures the optional clause classifier
type AIConfig struct {
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
	Provider          string  `yaml:"provider" mapstructure:"provider"` // lexicon, openai, anthropic, ollama
	Model             string  `yaml:"model" mapstructure:"model"`
	APIKey            string  `yaml:"-" mapstructure:"api_key"`
	BaseURL           string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout           int     `yaml:"timeout" mapstructure:"timeout"` // Seconds per classification call
	MaxTokens         int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	MinConfidence     float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	Workers           int     `yaml:"workers" mapstructure:"workers"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
	StrictLabels      bool    `yaml:"strict_labels" mapstructure:"strict_labels"`
	HTTPProxy         string  `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string  `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// CacheConfig selects where parsed rules and classifier results are memoized
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	Type          string        `yaml:"type" mapstructure:"type"` // memory, disk, layered, redis
	Dir           string        `yaml:"dir" mapstructure:"dir"`
	TTL           time.Duration `yaml:"ttl" mapstructure:"ttl"`
	RedisAddr     string        `yaml:"redis_addr,omitempty" mapstructure:"redis_addr"`
	RedisPassword string        `yaml:"-" mapstructure:"redis_password"`
	RedisDB       int           `yaml:"redis_db,omitempty" mapstructure:"redis_db"`
}

// FetchConfig controls retrieval of contracts given as http(s) URLs
type FetchConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Verbose           bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeCandidates bool `yaml:"include_candidates" mapstructure:"include_candidates"`
	IncludeFooter     bool `yaml:"include_footer" mapstructure:"include_footer"`
	PageNumbers       bool `yaml:"page_numbers" mapstructure:"page_numbers"` // Split form-feed text into pages
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Matching: MatchingConfig{
			FuzzyThreshold:     0.4,
			MinParagraphLength: 20,
		},
		AI: AIConfig{
			Enabled:           false,
			Provider:          "lexicon",
			Timeout:           30,
			MaxTokens:         300,
			MinConfidence:     0.5,
			Workers:           1,
			RequestsPerSecond: 2,
			BurstSize:         2,
			StrictLabels:      true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Type:    "memory",
			Dir:     ".clauseguard-cache",
			TTL:     24 * time.Hour,
		},
		Fetch: FetchConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "clauseguard/0.1 (+https://github.com/ppiankov/clauseguard)",
			MaxBodyBytes:  10 << 20,
			RespectRobots: true,
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
	}
}
