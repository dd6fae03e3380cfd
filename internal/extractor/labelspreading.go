package extractor

import (
	"context"
	"math"

	"github.com/ppiankov/seedloop/internal/model"
)

const convergence = 1e-4

// trainLabelSpreading fits naive Bayes on the labels, then repeatedly
// refits on the labels plus every unlabeled item split across both classes
// by its current posterior, scaled by weight. It stops after iterations
// rounds or once no posterior moves by more than convergence.
func trainLabelSpreading(ctx context.Context, feat *featurizer, labeled []example, unlabeled []model.Evidence, alpha float64, iterations int, weight float64) (*nbModel, error) {
	labeledFeats, err := labeledFeatures(ctx, feat, labeled)
	if err != nil {
		return nil, err
	}
	base := fitLabeled(labeledFeats, labeled, alpha)
	if len(unlabeled) == 0 || iterations <= 0 || weight <= 0 {
		return base, nil
	}

	unlabeledFeats, err := feat.all(ctx, unlabeled)
	if err != nil {
		return nil, err
	}

	current := base
	prev := make([]float64, len(unlabeledFeats))
	for i, f := range unlabeledFeats {
		prev[i] = current.posterior(f)
	}

	for it := 0; it < iterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next := fitLabeled(labeledFeats, labeled, alpha)
		for i, f := range unlabeledFeats {
			next.add(f, positive, weight*prev[i])
			next.add(f, negative, weight*(1-prev[i]))
		}
		current = next

		var moved float64
		for i, f := range unlabeledFeats {
			p := current.posterior(f)
			moved = math.Max(moved, math.Abs(p-prev[i]))
			prev[i] = p
		}
		if moved < convergence {
			break
		}
	}
	return current, nil
}
