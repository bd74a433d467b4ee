package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ppiankov/clauseguard/internal/cache"
	"github.com/ppiankov/clauseguard/internal/extract"
	"github.com/ppiankov/clauseguard/internal/model"
	"github.com/ppiankov/clauseguard/internal/worker"
)

// ErrNoClassifier is returned when no classifier could be constructed
var ErrNoClassifier = errors.New("no classifier available")

// MinParagraphLength is the shortest paragraph worth classifying (bytes)
const MinParagraphLength = 50

var tracer = otel.Tracer("github.com/ppiankov/clauseguard/internal/classify")

// Options tunes how the Finder runs its classifier
type Options struct {
	ClassifierID      string      // Cache namespace; empty disables memoization
	Workers           int         // Concurrent classifications; <= 1 runs sequentially
	RequestsPerSecond float64     // Shared budget across workers; <= 0 is unlimited
	Burst             int         // Token bucket burst
	Cache             cache.Cache // Memoizes per-paragraph scores
	Labels            []string    // Defaults to Taxonomy()
}

// Finder tags contract paragraphs with clause types.
// The classifier is built on first use and at most once.
type Finder struct {
	factory func() (Classifier, error)
	opts    Options
	limiter *worker.Limiter

	once       sync.Once
	classifier Classifier
	initErr    error
}

// NewFinder creates a finder around a lazily constructed classifier
func NewFinder(factory func() (Classifier, error), opts Options) *Finder {
	if opts.Cache == nil {
		opts.Cache = cache.NopCache{}
	}
	if len(opts.Labels) == 0 {
		opts.Labels = Taxonomy()
	}
	return &Finder{
		factory: factory,
		opts:    opts,
		limiter: worker.NewLimiter(opts.RequestsPerSecond, opts.Burst),
	}
}

func (f *Finder) load() (Classifier, error) {
	f.once.Do(func() {
		if f.factory == nil {
			f.initErr = ErrNoClassifier
			return
		}
		f.classifier, f.initErr = f.factory()
		if f.initErr == nil && f.classifier == nil {
			f.initErr = ErrNoClassifier
		}
	})
	return f.classifier, f.initErr
}

// FindClauses classifies every paragraph longer than MinParagraphLength and
// returns (paragraph, label) candidates with confidence >= minConfidence,
// ordered by confidence desc, then position, then label. A context that ends
// mid-run is returned as an error rather than a partial candidate list.
func (f *Finder) FindClauses(ctx context.Context, text string, minConfidence float64) ([]model.ClauseCandidate, error) {
	ctx, span := tracer.Start(ctx, "classify.FindClauses")
	defer span.End()

	classifier, err := f.load()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classifier unavailable")
		return nil, fmt.Errorf("load classifier: %w", err)
	}

	var paragraphs []extract.Paragraph
	for _, p := range extract.SplitParagraphs(text, 0) {
		if len(p.Text) > MinParagraphLength {
			paragraphs = append(paragraphs, p)
		}
	}
	span.SetAttributes(attribute.Int("paragraphs", len(paragraphs)))

	scored := f.classifyAll(ctx, classifier, paragraphs)
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classification incomplete")
		return nil, fmt.Errorf("classification incomplete: %w", err)
	}

	var candidates []model.ClauseCandidate
	for i, p := range paragraphs {
		for _, ls := range scored[i] {
			if ls.Score < minConfidence {
				continue
			}
			candidates = append(candidates, model.ClauseCandidate{
				Text:       p.Text,
				Type:       ls.Label,
				Category:   CategoryFor(ls.Label),
				Confidence: ls.Score,
				StartIndex: p.Start,
				EndIndex:   p.End,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.StartIndex != b.StartIndex {
			return a.StartIndex < b.StartIndex
		}
		return a.Type < b.Type
	})

	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	return candidates, nil
}

// classifyAll returns label scores per paragraph index; failed paragraphs are nil
func (f *Finder) classifyAll(ctx context.Context, c Classifier, paragraphs []extract.Paragraph) [][]LabelScore {
	scored := make([][]LabelScore, len(paragraphs))

	if f.opts.Workers <= 1 || len(paragraphs) < 2 {
		for i, p := range paragraphs {
			scored[i] = f.classifyOne(ctx, c, i, p)
		}
		return scored
	}

	jobs := make([]worker.Job, len(paragraphs))
	for i, p := range paragraphs {
		jobs[i] = &paragraphJob{finder: f, classifier: c, index: i, paragraph: p}
	}
	for _, r := range worker.NewPoolWithContext(ctx, f.opts.Workers).Run(jobs) {
		res := r.(*paragraphResult)
		scored[res.index] = res.scores
	}
	return scored
}

// classifyOne classifies a paragraph, consulting the cache first.
// Errors are logged and the paragraph is skipped.
func (f *Finder) classifyOne(ctx context.Context, c Classifier, index int, p extract.Paragraph) []LabelScore {
	key := ""
	if f.opts.ClassifierID != "" {
		key = cache.CacheKey("classify", f.opts.ClassifierID, strings.Join(f.opts.Labels, "|"), p.Text)
		if data, ok := f.opts.Cache.Get(key); ok {
			var cached []LabelScore
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached
			}
		}
	}

	if err := f.limiter.Wait(ctx, f.opts.ClassifierID); err != nil {
		slog.Warn("classification skipped", "paragraph", index, "error", err)
		return nil
	}

	scores, err := c.Classify(ctx, p.Text, f.opts.Labels)
	if err != nil {
		slog.Warn("classification failed, skipping paragraph",
			"paragraph", index, "offset", p.Start, "error", err)
		return nil
	}

	if key != "" {
		if data, err := json.Marshal(scores); err == nil {
			_ = f.opts.Cache.Set(key, data, 0)
		}
	}
	return scores
}

type paragraphJob struct {
	finder     *Finder
	classifier Classifier
	index      int
	paragraph  extract.Paragraph
}

type paragraphResult struct {
	index  int
	scores []LabelScore
}

func (r *paragraphResult) GetError() error { return nil }

func (j *paragraphJob) Execute(ctx context.Context) worker.Result {
	return &paragraphResult{
		index:  j.index,
		scores: j.finder.classifyOne(ctx, j.classifier, j.index, j.paragraph),
	}
}
