package llm

import (
	"context"
	"fmt"
	"sort"

	"github.com/ppiankov/clauseguard/internal/classify"
)

// Classifier adapts a Provider to classify.Classifier
type Classifier struct {
	provider Provider
	model    string
}

// NewClassifier wraps a provider; model overrides the provider's default when set
func NewClassifier(provider Provider, model string) *Classifier {
	return &Classifier{provider: provider, model: model}
}

// ID identifies the provider and model for cache keys
func (c *Classifier) ID() string {
	if c.model == "" {
		return c.provider.Name()
	}
	return c.provider.Name() + "/" + c.model
}

// Classify scores text against labels; labels the provider did not score get 0
func (c *Classifier) Classify(ctx context.Context, text string, labels []string) ([]classify.LabelScore, error) {
	resp, err := c.provider.Classify(ctx, ClassifyRequest{
		Text:   text,
		Labels: labels,
		Model:  c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("%s classify: %w", c.provider.Name(), err)
	}

	out := make([]classify.LabelScore, 0, len(labels))
	for _, l := range labels {
		out = append(out, classify.LabelScore{Label: l, Score: resp.Scores[l]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out, nil
}

// NewClassifierFactory returns a constructor suitable for classify.NewFinder.
// The provider is built, and its availability checked, only when first needed.
func NewClassifierFactory(config Config) func() (classify.Classifier, error) {
	return func() (classify.Classifier, error) {
		provider, err := NewProvider(config)
		if err != nil {
			return nil, err
		}
		if !provider.IsAvailable(context.Background()) {
			return nil, fmt.Errorf("%s provider is not available", provider.Name())
		}
		return NewClassifier(provider, config.Model), nil
	}
}
