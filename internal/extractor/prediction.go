package extractor

import (
	"context"
	"math"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/seedloop/internal/model"
)

// PredictionMethod selects how a classifier's output becomes a score
type PredictionMethod string

const (
	// Probabilistic uses the classifier's probability
	Probabilistic PredictionMethod = "probabilistic"
	// Binary uses hard decisions, scored 0 or 1
	Binary PredictionMethod = "binary"
)

// ParsePredictionMethod validates a method name
func ParsePredictionMethod(name string) (PredictionMethod, error) {
	switch m := PredictionMethod(strings.ToLower(strings.TrimSpace(name))); m {
	case Probabilistic, Binary:
		return m, nil
	}
	return "", errors.Newf("unknown prediction method %q (supported: probabilistic, binary)", name)
}

// Strategy scores evidence with a trained classifier
type Strategy interface {
	Score(ctx context.Context, c Classifier, evidence []model.Evidence) ([]float64, error)
}

// Strategy returns the scoring strategy for m
func (m PredictionMethod) Strategy() Strategy {
	if m == Binary {
		return binaryStrategy{}
	}
	return probabilisticStrategy{}
}

type probabilisticStrategy struct{}

func (probabilisticStrategy) Score(ctx context.Context, c Classifier, evidence []model.Evidence) ([]float64, error) {
	ps, err := c.PredictProba(ctx, evidence)
	if err != nil {
		return nil, err
	}
	if len(ps) != len(evidence) {
		return nil, errors.Newf("classifier returned %d probabilities for %d evidence", len(ps), len(evidence))
	}
	for i, p := range ps {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, errors.Wrapf(ErrInvalidPrediction, "%s: probability %v", evidence[i], p)
		}
	}
	return ps, nil
}

type binaryStrategy struct{}

func (binaryStrategy) Score(ctx context.Context, c Classifier, evidence []model.Evidence) ([]float64, error) {
	labels, err := c.Predict(ctx, evidence)
	if err != nil {
		return nil, err
	}
	if len(labels) != len(evidence) {
		return nil, errors.Newf("classifier returned %d labels for %d evidence", len(labels), len(evidence))
	}
	out := make([]float64, len(labels))
	for i, l := range labels {
		if l {
			out[i] = 1
		}
	}
	return out, nil
}

// Rescale maps ps linearly so its minimum lands on lo and its maximum on hi.
// The bounds may be given in either order. When every score is equal the
// input is returned unchanged and ok is false.
func Rescale(ps []float64, lo, hi float64) (out []float64, ok bool) {
	if len(ps) == 0 {
		return ps, true
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	minScore, maxScore := slices.Min(ps), slices.Max(ps)
	span := maxScore - minScore
	if span == 0 {
		return ps, false
	}

	out = make([]float64, len(ps))
	for i, p := range ps {
		out[i] = (p-minScore)*(hi-lo)/span + lo
	}
	return out, true
}
