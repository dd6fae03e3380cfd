// Package extractor builds the per-relation fact classifiers used by the
// bootstrap loop and turns their output into evidence scores.
package extractor

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/seedloop/internal/knowledge"
	"github.com/ppiankov/seedloop/internal/model"
)

var (
	// ErrUnknownAlgorithm is returned for an algorithm name with no builder
	ErrUnknownAlgorithm = errors.New("unknown extractor algorithm")
	// ErrMalformedData is returned when training data holds scores other than
	// labels and unlabeled markers, or no labels at all
	ErrMalformedData = errors.New("malformed training data")
	// ErrInvalidPrediction is returned when a classifier outputs a value that
	// is not a probability
	ErrInvalidPrediction = errors.New("invalid prediction")
)

// Algorithm names a classifier family
type Algorithm string

const (
	NaiveBayes     Algorithm = "naivebayes"
	LabelSpreading Algorithm = "labelspreading"
	LLMJudge       Algorithm = "llm"
)

// ParseAlgorithm validates an algorithm name
func ParseAlgorithm(name string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(name))); a {
	case NaiveBayes, LabelSpreading, LLMJudge:
		return a, nil
	}
	return "", errors.Wrapf(ErrUnknownAlgorithm, "%q", name)
}

// SemiSupervised reports whether the algorithm trains on unlabeled evidence
// as well as labels
func (a Algorithm) SemiSupervised() bool {
	return a == LabelSpreading
}

// Config selects an algorithm and its hyperparameters
type Config struct {
	Algorithm   Algorithm
	Hyperparams map[string]float64
}

// ConfigFromModel converts the file configuration
func ConfigFromModel(cfg model.ExtractorConfig) (Config, error) {
	a, err := ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return Config{}, err
	}
	return Config{Algorithm: a, Hyperparams: cfg.Hyperparams}, nil
}

// Param returns a hyperparameter or def when unset
func (c Config) Param(name string, def float64) float64 {
	if v, ok := c.Hyperparams[name]; ok {
		return v
	}
	return def
}

// Classifier scores evidence of a single relation
type Classifier interface {
	// PredictProba returns the probability that each evidence manifests
	// the relation
	PredictProba(ctx context.Context, evidence []model.Evidence) ([]float64, error)

	// Predict returns a hard decision per evidence
	Predict(ctx context.Context, evidence []model.Evidence) ([]bool, error)
}

// Builder trains a classifier from labeled, and for semi-supervised
// algorithms unlabeled, evidence of one relation
type Builder interface {
	Build(ctx context.Context, cfg Config, data *knowledge.Knowledge) (Classifier, error)
}

// BuilderFunc adapts a function to Builder
type BuilderFunc func(ctx context.Context, cfg Config, data *knowledge.Knowledge) (Classifier, error)

// Build calls f
func (f BuilderFunc) Build(ctx context.Context, cfg Config, data *knowledge.Knowledge) (Classifier, error) {
	return f(ctx, cfg, data)
}

type example struct {
	evidence model.Evidence
	positive bool
}

// splitTrainingData separates labels from unlabeled markers
func splitTrainingData(data *knowledge.Knowledge) (labeled []example, unlabeled []model.Evidence, err error) {
	for _, it := range data.Items() {
		switch it.Score.Kind() {
		case model.KindLabel:
			labeled = append(labeled, example{evidence: it.Evidence, positive: it.Score.Positive()})
		case model.KindUnlabeled:
			unlabeled = append(unlabeled, it.Evidence)
		default:
			return nil, nil, errors.Wrapf(ErrMalformedData, "%s scored %s", it.Evidence, it.Score)
		}
	}
	if len(labeled) == 0 {
		return nil, nil, errors.Wrap(ErrMalformedData, "no labeled evidence")
	}
	return labeled, unlabeled, nil
}
