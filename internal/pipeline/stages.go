package pipeline

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ppiankov/seedloop/internal/extractor"
	"github.com/ppiankov/seedloop/internal/knowledge"
	"github.com/ppiankov/seedloop/internal/logger"
	"github.com/ppiankov/seedloop/internal/model"
)

// generalizeKnowledge assigns each known fact's score to every universe
// evidence of that fact. When a fact is known through several evidence the
// highest score wins.
//
// Reads: Universe.
func generalizeKnowledge(s *Session, known *knowledge.Knowledge) *knowledge.Knowledge {
	facts := make(map[model.Fact]model.Score)
	known.Each(func(e model.Evidence, sc model.Score) {
		if cur, ok := facts[e.Fact]; !ok || sc.Value() > cur.Value() {
			facts[e.Fact] = sc
		}
	})

	out := knowledge.New()
	s.Universe.Each(func(e model.Evidence, _ model.Score) {
		if sc, ok := facts[e.Fact]; ok {
			out.Set(e, sc)
		}
	})
	return out
}

// generateQuestions replaces the question set with every unanswered
// universe evidence, known-fact evidence taking the generalized score.
//
// Reads: Universe, Answers. Writes: Questions.
func generateQuestions(s *Session, generalized *knowledge.Knowledge) {
	questions := knowledge.New()
	add := func(e model.Evidence, sc model.Score) {
		if !s.Answered(e) {
			questions.Set(e, sc)
		}
	}
	s.Universe.Each(add)
	generalized.Each(add)
	s.Questions = questions
}

// filterEvidence builds training labels from the human answers plus every
// unanswered universe evidence the last round scored with certainty above
// threshold. It returns the labels and how many were auto-labeled.
//
// Reads: Answers, Universe.
func filterEvidence(s *Session, threshold float64) (*knowledge.Knowledge, int) {
	labels := s.Answers.Clone()
	auto := 0
	s.Universe.Each(func(e model.Evidence, sc model.Score) {
		if s.Answered(e) || knowledge.ScoreCertainty(sc) <= threshold {
			return
		}
		labels.Set(e, model.Label(sc.Value() > model.Neutral))
		auto++
	})
	return labels, auto
}

// learnFactExtractors trains one classifier per relation that has both
// positive and negative labels. Every registered relation and every labeled
// relation gets an entry; relations without diverse labels map to nil.
//
// Reads: Universe, Relations.
func learnFactExtractors(ctx context.Context, s *Session, labels *knowledge.Knowledge,
	b extractor.Builder, cfg extractor.Config, log *zap.SugaredLogger) (map[string]extractor.Classifier, error) {

	classifiers := make(map[string]extractor.Classifier)
	for rel := range s.Relations {
		classifiers[rel] = nil
	}

	perRelation := labels.PerRelation()
	var universe map[string]*knowledge.Knowledge
	if cfg.Algorithm.SemiSupervised() {
		universe = s.Universe.PerRelation()
	}

	for _, rel := range labels.Relations() {
		data := perRelation[rel]
		classifiers[rel] = nil
		if !hasBothLabels(data) {
			log.Warnw("Not enough evidence to train a fact extractor",
				logger.FieldRelation, rel, logger.FieldCount, data.Len())
			continue
		}

		if part, ok := universe[rel]; ok {
			part.Each(func(e model.Evidence, _ model.Score) {
				if !data.Has(e) {
					data.Set(e, model.Unlabeled())
				}
			})
		}

		log.Infow("Training fact extractor", logger.FieldRelation, rel, logger.FieldCount, data.Len())
		c, err := b.Build(ctx, cfg, data)
		if err != nil {
			return nil, errors.Wrapf(err, "train %q", rel)
		}
		classifiers[rel] = c
	}
	return classifiers, nil
}

func hasBothLabels(data *knowledge.Knowledge) bool {
	var pos, neg bool
	data.Each(func(_ model.Evidence, sc model.Score) {
		if !sc.IsLabel() {
			return
		}
		if sc.Positive() {
			pos = true
		} else {
			neg = true
		}
	})
	return pos && neg
}

// scoring is how extractFacts turns classifier output into scores
type scoring struct {
	strategy     extractor.Strategy
	scaleToRange []float64 // Empty or [min, max]
}

// extractFacts scores every universe evidence. Relations without a
// classifier get 0.5. The new scores are merged into the universe and
// returned.
//
// Reads: Universe. Writes: Universe.
func extractFacts(ctx context.Context, s *Session, classifiers map[string]extractor.Classifier,
	sc scoring, log *zap.SugaredLogger) (*knowledge.Knowledge, error) {

	result := knowledge.New()
	perRelation := s.Universe.PerRelation()

	for _, rel := range s.Universe.Relations() {
		evidence := perRelation[rel].Keys()
		ps, err := scoreEvidence(ctx, rel, classifiers[rel], evidence, sc, log)
		if err != nil {
			return nil, err
		}
		for i, e := range evidence {
			result.Set(e, model.Probability(ps[i]))
		}
		log.Infow("Estimated fact probabilities", logger.FieldRelation, rel, logger.FieldCount, len(ps))
	}

	s.Universe.Update(result)
	return result, nil
}

func scoreEvidence(ctx context.Context, rel string, c extractor.Classifier, evidence []model.Evidence,
	sc scoring, log *zap.SugaredLogger) ([]float64, error) {

	if c == nil {
		ps := make([]float64, len(evidence))
		for i := range ps {
			ps[i] = model.Neutral
		}
		return ps, nil
	}

	ps, err := sc.strategy.Score(ctx, c, evidence)
	if err != nil {
		return nil, errors.Wrapf(err, "score %q", rel)
	}
	if len(sc.scaleToRange) == 2 {
		scaled, ok := extractor.Rescale(ps, sc.scaleToRange[0], sc.scaleToRange[1])
		if !ok {
			log.Warnw("Scores have zero range, leaving them unscaled", logger.FieldRelation, rel)
		}
		ps = scaled
	}
	return ps, nil
}

// filterFacts accepts every evidence scoring above threshold into knowledge
// and then removes every evidence the human rejected. With dropGuesses the
// knowledge is first reset to the human-accepted evidence. It returns the
// number of evidence accepted and removed.
//
// Reads: Answers. Writes: Knowledge.
func filterFacts(s *Session, facts *knowledge.Knowledge, threshold float64, dropGuesses bool) (accepted, removed int, err error) {
	if dropGuesses {
		kept := knowledge.New()
		s.Answers.Each(func(e model.Evidence, sc model.Score) {
			if sc.Positive() {
				kept.Set(e, sc)
			}
		})
		s.Knowledge = kept
	}

	facts.Each(func(e model.Evidence, sc model.Score) {
		if sc.Value() > threshold {
			if !s.Knowledge.Has(e) {
				accepted++
			}
			s.Knowledge.Set(e, sc)
		}
	})

	var rejected []model.Evidence
	s.Answers.Each(func(e model.Evidence, sc model.Score) {
		if !sc.Positive() && s.Knowledge.Has(e) {
			rejected = append(rejected, e)
		}
	})
	for _, e := range rejected {
		if err := s.Knowledge.Delete(e); err != nil {
			return accepted, removed, err
		}
		removed++
	}
	return accepted, removed, nil
}

// splitTrained separates relations with a classifier from those without, each sorted
func splitTrained(classifiers map[string]extractor.Classifier) (trained, skipped []string) {
	for rel, c := range classifiers {
		if c == nil {
			skipped = append(skipped, rel)
		} else {
			trained = append(trained, rel)
		}
	}
	sort.Strings(trained)
	sort.Strings(skipped)
	return trained, skipped
}
