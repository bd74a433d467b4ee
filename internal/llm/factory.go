package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/clauseguard/internal/model"
)

// NewProvider creates a new classification provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "", "lexicon":
		return NewLexiconProvider(), nil

	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: lexicon, openai, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromModel converts model.AIConfig to llm.Config
func ConfigFromModel(modelConfig model.AIConfig) Config {
	return Config{
		Provider:     modelConfig.Provider,
		Model:        modelConfig.Model,
		APIKey:       modelConfig.APIKey,
		BaseURL:      modelConfig.BaseURL,
		Timeout:      modelConfig.Timeout,
		StrictLabels: modelConfig.StrictLabels,
		MaxTokens:    modelConfig.MaxTokens,
		HTTPProxy:    modelConfig.HTTPProxy,
		HTTPSProxy:   modelConfig.HTTPSProxy,
	}
}

// ApplyEnv fills unset credentials and endpoints from the provider's
// conventional environment variables
func ApplyEnv(config Config) Config {
	switch strings.ToLower(config.Provider) {
	case "openai":
		if config.APIKey == "" {
			config.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if config.APIKey == "" {
			config.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	case "ollama":
		if config.BaseURL == "" {
			config.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		}
	}
	if config.NoProxy == "" {
		config.NoProxy = os.Getenv("NO_PROXY")
	}
	return config
}
