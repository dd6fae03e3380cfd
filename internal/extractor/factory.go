package extractor

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ppiankov/seedloop/internal/cache"
	"github.com/ppiankov/seedloop/internal/corpus"
	"github.com/ppiankov/seedloop/internal/knowledge"
	"github.com/ppiankov/seedloop/internal/llm"
	"github.com/ppiankov/seedloop/internal/logger"
	"github.com/ppiankov/seedloop/internal/worker"
)

// Hyperparameter defaults
const (
	DefaultAlpha           = 1.0
	DefaultWindow          = 2
	DefaultIterations      = 10
	DefaultUnlabeledWeight = 0.5
	DefaultExamples        = 6
)

// Factory is the default Builder. It dispatches on Config.Algorithm.
type Factory struct {
	segments corpus.SegmentLookup
	provider llm.Provider
	model    string
	cache    cache.Cache
	cacheTTL time.Duration
	limiter  *worker.Limiter
	workers  int
	log      *zap.SugaredLogger
}

// FactoryOption configures a Factory
type FactoryOption func(*Factory)

// WithJudge sets the language model used by the llm algorithm
func WithJudge(provider llm.Provider, modelName string) FactoryOption {
	return func(f *Factory) {
		f.provider = provider
		f.model = modelName
	}
}

// WithCache caches LLM judgments
func WithCache(c cache.Cache, ttl time.Duration) FactoryOption {
	return func(f *Factory) {
		f.cache = c
		f.cacheTTL = ttl
	}
}

// WithLimiter rate limits LLM calls, keyed by provider name
func WithLimiter(l *worker.Limiter) FactoryOption {
	return func(f *Factory) { f.limiter = l }
}

// WithWorkers sets the number of concurrent LLM calls
func WithWorkers(n int) FactoryOption {
	return func(f *Factory) { f.workers = n }
}

// WithLogger sets the factory logger
func WithLogger(log *zap.SugaredLogger) FactoryOption {
	return func(f *Factory) { f.log = log }
}

// NewFactory creates a Factory reading segment text from segments
func NewFactory(segments corpus.SegmentLookup, opts ...FactoryOption) *Factory {
	f := &Factory{
		segments: segments,
		workers:  4,
		log:      logger.Logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Build implements Builder
func (f *Factory) Build(ctx context.Context, cfg Config, data *knowledge.Knowledge) (Classifier, error) {
	labeled, unlabeled, err := splitTrainingData(data)
	if err != nil {
		return nil, err
	}

	feat := newFeaturizer(f.segments, int(cfg.Param("window", DefaultWindow)))
	alpha := cfg.Param("alpha", DefaultAlpha)

	switch cfg.Algorithm {
	case NaiveBayes:
		m, err := trainNaiveBayes(ctx, feat, labeled, alpha)
		if err != nil {
			return nil, err
		}
		return &NaiveBayesClassifier{model: m, feat: feat}, nil

	case LabelSpreading:
		m, err := trainLabelSpreading(ctx, feat, labeled, unlabeled, alpha,
			int(cfg.Param("iterations", DefaultIterations)),
			cfg.Param("unlabeled_weight", DefaultUnlabeledWeight))
		if err != nil {
			return nil, err
		}
		return &NaiveBayesClassifier{model: m, feat: feat}, nil

	case LLMJudge:
		if f.provider == nil {
			return nil, errors.WithHint(errors.New("the llm extractor needs a provider"), "set llm.provider in the config")
		}
		examples, err := fewShot(ctx, f.segments, labeled, int(cfg.Param("examples", DefaultExamples)))
		if err != nil {
			return nil, err
		}
		return &LLMClassifier{
			provider: f.provider,
			model:    f.model,
			segments: f.segments,
			relation: labeled[0].evidence.Relation(),
			examples: examples,
			digest:   examplesDigest(examples),
			cache:    f.cache,
			ttl:      f.cacheTTL,
			limiter:  f.limiter,
			workers:  f.workers,
			log:      f.log,
		}, nil
	}

	return nil, errors.Wrapf(ErrUnknownAlgorithm, "%q", cfg.Algorithm)
}
