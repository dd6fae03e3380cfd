package pipeline

import (
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ppiankov/seedloop/internal/extractor"
	"github.com/ppiankov/seedloop/internal/knowledge"
	"github.com/ppiankov/seedloop/internal/model"
)

// SortOrder selects how QuestionsAvailable orders questions
type SortOrder string

const (
	SortByScore     SortOrder = "score"
	SortByCertainty SortOrder = "certainty"
)

// ParseSortOrder validates a sort order name
func ParseSortOrder(name string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(name))); o {
	case SortByScore, SortByCertainty:
		return o, nil
	}
	return "", errors.Newf("unknown question order %q (supported: score, certainty)", name)
}

// Settings are the loop's tunables
type Settings struct {
	Extractor         extractor.Config
	Prediction        extractor.PredictionMethod
	ScaleToRange      []float64 // Empty or [min, max]
	EvidenceThreshold float64
	FactThreshold     float64
	SortQuestionsBy   SortOrder
	DropGuesses       bool
}

// DefaultSettings mirrors model.DefaultConfig
func DefaultSettings() Settings {
	return Settings{
		Extractor:         extractor.Config{Algorithm: extractor.NaiveBayes},
		Prediction:        extractor.Probabilistic,
		EvidenceThreshold: 0.85,
		FactThreshold:     0.5,
		SortQuestionsBy:   SortByScore,
	}
}

func (s Settings) validate() error {
	if s.EvidenceThreshold < 0 || s.EvidenceThreshold > 1 {
		return errors.Newf("evidence threshold must be in [0,1], got %v", s.EvidenceThreshold)
	}
	if s.FactThreshold < 0 || s.FactThreshold > 1 {
		return errors.Newf("fact threshold must be in [0,1], got %v", s.FactThreshold)
	}
	if n := len(s.ScaleToRange); n != 0 && n != 2 {
		return errors.Newf("scale range needs exactly two bounds, got %d", n)
	}
	for _, b := range s.ScaleToRange {
		if math.IsNaN(b) || b < 0 || b > 1 {
			return errors.Newf("scale range bounds must be in [0,1], got %v", s.ScaleToRange)
		}
	}
	if _, err := ParseSortOrder(string(s.SortQuestionsBy)); err != nil {
		return err
	}
	if _, err := extractor.ParsePredictionMethod(string(s.Prediction)); err != nil {
		return err
	}
	return nil
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithSeeds sets the facts the loop starts from
func WithSeeds(facts ...model.Fact) Option {
	return func(p *Pipeline) { p.seeds = append(p.seeds, facts...) }
}

// WithGoldStandard enables precision and recall reporting. gold maps
// evidence to labels.
func WithGoldStandard(gold *knowledge.Knowledge) Option {
	return func(p *Pipeline) { p.gold = gold }
}

// WithKnowledge merges previously accepted evidence into the initial
// knowledge, for resuming a session
func WithKnowledge(k *knowledge.Knowledge) Option {
	return func(p *Pipeline) { p.prior = k }
}

// WithRound continues round numbering after n finished rounds
func WithRound(n int) Option {
	return func(p *Pipeline) { p.round = n }
}

// WithExtractor selects the classifier algorithm and hyperparameters
func WithExtractor(cfg extractor.Config) Option {
	return func(p *Pipeline) { p.settings.Extractor = cfg }
}

// WithPrediction selects the scoring strategy and an optional [min, max]
// range to rescale classifier output into
func WithPrediction(method extractor.PredictionMethod, scaleToRange ...float64) Option {
	return func(p *Pipeline) {
		p.settings.Prediction = method
		p.settings.ScaleToRange = scaleToRange
	}
}

// WithEvidenceThreshold sets the certainty above which unanswered evidence
// becomes training data
func WithEvidenceThreshold(t float64) Option {
	return func(p *Pipeline) { p.settings.EvidenceThreshold = t }
}

// WithFactThreshold sets the score above which evidence is accepted as knowledge
func WithFactThreshold(t float64) Option {
	return func(p *Pipeline) { p.settings.FactThreshold = t }
}

// WithSortQuestionsBy sets the question order
func WithSortQuestionsBy(o SortOrder) Option {
	return func(p *Pipeline) { p.settings.SortQuestionsBy = o }
}

// WithDropGuessesEachRound resets knowledge to human-accepted evidence at
// the start of every fact filtering
func WithDropGuessesEachRound(drop bool) Option {
	return func(p *Pipeline) { p.settings.DropGuesses = drop }
}

// WithLogger sets the logger
func WithLogger(log *zap.SugaredLogger) Option {
	return func(p *Pipeline) { p.log = log }
}

// OptionsFromConfig converts the file configuration into options
func OptionsFromConfig(cfg *model.Config) ([]Option, error) {
	ext, err := extractor.ConfigFromModel(cfg.Extractor)
	if err != nil {
		return nil, err
	}
	method, err := extractor.ParsePredictionMethod(cfg.Prediction.Method)
	if err != nil {
		return nil, err
	}
	order, err := ParseSortOrder(cfg.Pipeline.SortQuestionsBy)
	if err != nil {
		return nil, err
	}

	return []Option{
		WithExtractor(ext),
		WithPrediction(method, cfg.Prediction.ScaleToRange...),
		WithEvidenceThreshold(cfg.Pipeline.EvidenceThreshold),
		WithFactThreshold(cfg.Pipeline.FactThreshold),
		WithSortQuestionsBy(order),
		WithDropGuessesEachRound(cfg.Pipeline.DropGuessesEachRound),
	}, nil
}
