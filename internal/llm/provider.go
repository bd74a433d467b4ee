package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Provider defines the interface for clause classification backends
type Provider interface {
	// Name returns the provider name
	Name() string

	// Classify scores a paragraph against candidate clause labels
	Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// ClassifyRequest contains the input for zero-shot classification
type ClassifyRequest struct {
	// Text is the contract paragraph to classify
	Text string

	// Labels is the candidate label set; in strict mode no other label is returned
	Labels []string

	// Prompt is an optional custom prompt (if empty, use default)
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// ClassifyResponse contains per-label confidences
type ClassifyResponse struct {
	// Scores maps label to confidence in [0,1] (strict mode)
	Scores map[string]float64

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "lexicon", "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// StrictLabels drops labels outside the request and clamps scores (should always be true)
	StrictLabels bool

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:     "lexicon", // Offline, no network
		Model:        "",
		Timeout:      30,
		StrictLabels: true,
		MaxTokens:    300,
	}
}

const systemPrompt = "You are a contract analyst who classifies contract clauses. You answer with JSON only."

// BuildPrompt constructs the default zero-shot classification prompt
func BuildPrompt(text string, labels []string) string {
	var b strings.Builder
	b.WriteString("Classify the contract paragraph below against each clause type.\n\n")
	b.WriteString("RULES:\n")
	b.WriteString("1. Score every clause type independently from 0.0 (absent) to 1.0 (certain).\n")
	b.WriteString("2. Use ONLY these clause types as keys:\n")
	for _, l := range labels {
		fmt.Fprintf(&b, "   - %s\n", l)
	}
	b.WriteString("3. Respond with a single JSON object mapping clause type to score, for example {\"")
	if len(labels) > 0 {
		b.WriteString(labels[0])
	} else {
		b.WriteString("label")
	}
	b.WriteString("\": 0.8}.\n\n")
	b.WriteString("Paragraph:\n\"\"\"\n")
	b.WriteString(text)
	b.WriteString("\n\"\"\"\n")
	return b.String()
}

// ParseScores extracts label scores from a model reply.
// It accepts a flat {"label": score} object, optionally wrapped in prose or
// code fences, and the {"labels": [...], "scores": [...]} zero-shot shape.
// In strict mode labels outside the request are dropped, matching is
// case-insensitive and scores are clamped to [0,1].
func ParseScores(reply string, labels []string, strict bool) (map[string]float64, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("parse reply: %w", err)
	}

	pairs := flatten(raw)

	canonical := make(map[string]string, len(labels))
	for _, l := range labels {
		canonical[strings.ToLower(strings.TrimSpace(l))] = l
	}

	scores := make(map[string]float64)
	for key, score := range pairs {
		label := key
		if c, ok := canonical[strings.ToLower(strings.TrimSpace(key))]; ok {
			label = c
		} else if strict {
			continue
		}
		if strict {
			score = clamp(score)
		}
		scores[label] = score
	}
	return scores, nil
}

// flatten turns either reply shape into label -> score pairs
func flatten(raw map[string]interface{}) map[string]float64 {
	pairs := make(map[string]float64)

	labels, hasLabels := raw["labels"].([]interface{})
	values, hasScores := raw["scores"].([]interface{})
	if hasLabels && hasScores {
		for i, l := range labels {
			name, ok := l.(string)
			if !ok || i >= len(values) {
				continue
			}
			if v, ok := toFloat(values[i]); ok {
				pairs[name] = v
			}
		}
		return pairs
	}

	for k, v := range raw {
		if f, ok := toFloat(v); ok {
			pairs[k] = f
		}
	}
	return pairs
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
