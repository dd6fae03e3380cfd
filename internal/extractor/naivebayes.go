package extractor

import (
	"context"
	"math"

	"github.com/ppiankov/seedloop/internal/model"
)

const (
	negative = 0
	positive = 1
)

// nbModel is a two-class multinomial naive Bayes model with additive
// smoothing. Counts are float so that soft assignments can be added.
type nbModel struct {
	alpha  float64
	counts [2]map[string]float64
	totals [2]float64
	docs   [2]float64
	vocab  map[string]struct{}
}

func newNBModel(alpha float64) *nbModel {
	if alpha <= 0 {
		alpha = 1
	}
	return &nbModel{
		alpha:  alpha,
		counts: [2]map[string]float64{{}, {}},
		vocab:  make(map[string]struct{}),
	}
}

func (m *nbModel) add(feats []string, class int, weight float64) {
	if weight <= 0 {
		return
	}
	m.docs[class] += weight
	for _, f := range feats {
		m.counts[class][f] += weight
		m.totals[class] += weight
		m.vocab[f] = struct{}{}
	}
}

// posterior returns P(positive | feats). Features never seen in training
// carry no information and are ignored.
func (m *nbModel) posterior(feats []string) float64 {
	n := m.docs[negative] + m.docs[positive]
	v := float64(len(m.vocab))

	var logp [2]float64
	for c := range logp {
		logp[c] = math.Log((m.docs[c] + m.alpha) / (n + 2*m.alpha))
		for _, f := range feats {
			if _, ok := m.vocab[f]; !ok {
				continue
			}
			logp[c] += math.Log((m.counts[c][f] + m.alpha) / (m.totals[c] + m.alpha*v))
		}
	}
	return 1 / (1 + math.Exp(logp[negative]-logp[positive]))
}

// NaiveBayesClassifier scores evidence with a trained naive Bayes model
type NaiveBayesClassifier struct {
	model *nbModel
	feat  *featurizer
}

func trainNaiveBayes(ctx context.Context, feat *featurizer, labeled []example, alpha float64) (*nbModel, error) {
	feats, err := labeledFeatures(ctx, feat, labeled)
	if err != nil {
		return nil, err
	}
	return fitLabeled(feats, labeled, alpha), nil
}

func labeledFeatures(ctx context.Context, feat *featurizer, labeled []example) ([][]string, error) {
	evidence := make([]model.Evidence, len(labeled))
	for i, ex := range labeled {
		evidence[i] = ex.evidence
	}
	return feat.all(ctx, evidence)
}

// fitLabeled builds a model from labeled examples whose features are
// feats[i], each counted once
func fitLabeled(feats [][]string, labeled []example, alpha float64) *nbModel {
	m := newNBModel(alpha)
	for i, ex := range labeled {
		class := negative
		if ex.positive {
			class = positive
		}
		m.add(feats[i], class, 1)
	}
	return m
}

// PredictProba implements Classifier
func (c *NaiveBayesClassifier) PredictProba(ctx context.Context, evidence []model.Evidence) ([]float64, error) {
	all, err := c.feat.all(ctx, evidence)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(all))
	for i, feats := range all {
		out[i] = c.model.posterior(feats)
	}
	return out, nil
}

// Predict implements Classifier
func (c *NaiveBayesClassifier) Predict(ctx context.Context, evidence []model.Evidence) ([]bool, error) {
	ps, err := c.PredictProba(ctx, evidence)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(ps))
	for i, p := range ps {
		out[i] = p > 0.5
	}
	return out, nil
}
