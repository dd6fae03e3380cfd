// Package pipeline runs the bootstrapped information extraction loop: it
// generalizes known facts onto text evidence, pauses for human judgments,
// trains a classifier per relation and accepts the evidence they score high.
package pipeline

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ppiankov/seedloop/internal/corpus"
	"github.com/ppiankov/seedloop/internal/extractor"
	"github.com/ppiankov/seedloop/internal/knowledge"
	"github.com/ppiankov/seedloop/internal/logger"
	"github.com/ppiankov/seedloop/internal/model"
	"github.com/ppiankov/seedloop/internal/score"
)

var (
	// ErrNoSeeds is returned when a pipeline is created without seed facts
	ErrNoSeeds = errors.New("no seed facts")
	// ErrNotStarted is returned by ForceProcess before Start
	ErrNotStarted = errors.New("pipeline not started")
	// ErrAlreadyStarted is returned by a second Start
	ErrAlreadyStarted = errors.New("pipeline already started")
)

// carry is what one stage hands to the next
type carry struct {
	evidence    *knowledge.Knowledge
	classifiers map[string]extractor.Classifier
}

type stageFunc func(ctx context.Context, in carry) (carry, error)

// roundStats collects what the round report needs while stages run
type roundStats struct {
	questions int
	labeled   int
	trained   []string
	skipped   []string
}

// Pipeline is the bootstrap loop. It is synchronous and holds no lock:
// callers must not use it from several goroutines at once.
type Pipeline struct {
	conn     corpus.Connector
	builder  extractor.Builder
	settings Settings
	seeds    []model.Fact
	gold     *knowledge.Knowledge
	prior    *knowledge.Knowledge
	log      *zap.SugaredLogger

	session *Session
	stages  map[Stage]stageFunc
	stage   Stage
	pending carry // Input of the current stage
	started bool

	round   int
	stats   roundStats
	reports []model.RoundReport
	now     func() time.Time
}

// New builds the relation registry from the seed facts and precomputes the
// evidence universe from the corpus
func New(ctx context.Context, conn corpus.Connector, builder extractor.Builder, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		conn:     conn,
		builder:  builder,
		settings: DefaultSettings(),
		log:      logger.Logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	if len(p.seeds) == 0 {
		return nil, ErrNoSeeds
	}
	if err := p.settings.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid settings")
	}

	rels, err := BuildRelations(p.seeds)
	if err != nil {
		return nil, err
	}
	universe, err := BuildUniverse(ctx, conn, rels)
	if err != nil {
		return nil, errors.Wrap(err, "build evidence universe")
	}

	p.session = NewSession(p.seeds, rels, universe)
	p.session.Knowledge.Update(p.prior)

	p.stages = map[Stage]stageFunc{
		GeneralizeKnowledge: p.generalizeKnowledge,
		GenerateQuestions:   p.generateQuestions,
		FilterEvidence:      p.filterEvidence,
		LearnFactExtractors: p.learnFactExtractors,
		ExtractFacts:        p.extractFacts,
		FilterFacts:         p.filterFacts,
		Evaluate:            p.evaluate,
	}

	p.log.Infow("Pipeline ready",
		"relations", rels.Labels(),
		"seeds", len(p.seeds),
		"evidence", universe.Len())
	return p, nil
}

// Start runs the first round from the seed knowledge up to the pause for
// answers
func (p *Pipeline) Start(ctx context.Context) error {
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true
	p.log.Infow("Starting pipeline", "seeds", p.session.Knowledge.Len())

	p.stage = GeneralizeKnowledge
	p.pending = carry{evidence: p.session.Knowledge}
	return p.run(ctx)
}

// ForceProcess resumes the loop and runs it to the next pause. After a
// stage failure it retries the failed stage with the same input.
func (p *Pipeline) ForceProcess(ctx context.Context) error {
	if !p.started {
		return ErrNotStarted
	}
	if p.stage == Paused {
		p.stage = p.stage.Next()
		p.pending = carry{}
	}
	return p.run(ctx)
}

// run advances through the ring until it reaches the pause. A failing stage
// stays current.
func (p *Pipeline) run(ctx context.Context) error {
	for p.stage != Paused {
		p.log.Debugw("Running stage", logger.FieldStage, p.stage.String(), logger.FieldRound, p.round+1)

		out, err := p.stages[p.stage](ctx, p.pending)
		if err != nil {
			return errors.Wrapf(err, "stage %s", p.stage)
		}
		p.pending = out
		p.stage = p.stage.Next()
	}
	return nil
}

// Stage returns the stage the loop will run next
func (p *Pipeline) Stage() Stage {
	return p.stage
}

// AddAnswer records a human judgment. Nothing is recomputed until
// ForceProcess.
func (p *Pipeline) AddAnswer(e model.Evidence, positive bool) {
	p.session.Answer(e, positive)
}

// QuestionsAvailable returns the open questions in the configured order.
// The result only changes after AddAnswer or ForceProcess.
func (p *Pipeline) QuestionsAvailable() []knowledge.Item {
	if p.settings.SortQuestionsBy == SortByCertainty {
		return p.session.Questions.ByCertainty()
	}
	return p.session.Questions.ByScore(true)
}

// KnownFacts returns a copy of the accepted evidence
func (p *Pipeline) KnownFacts() *knowledge.Knowledge {
	return p.session.Knowledge.Clone()
}

// Answers returns a copy of the human judgments
func (p *Pipeline) Answers() *knowledge.Knowledge {
	return p.session.Answers.Clone()
}

// Confidence returns the knowledge score of e, or 0.5 when e is not known
func (p *Pipeline) Confidence(e model.Evidence) float64 {
	if s, ok := p.session.Knowledge.Get(e); ok {
		return s.Value()
	}
	return model.Neutral
}

// Relations returns the relation registry
func (p *Pipeline) Relations() Relations {
	return p.session.Relations
}

// Reports returns one report per finished round
func (p *Pipeline) Reports() []model.RoundReport {
	out := make([]model.RoundReport, len(p.reports))
	copy(out, p.reports)
	return out
}

func (p *Pipeline) generalizeKnowledge(_ context.Context, in carry) (carry, error) {
	p.stats = roundStats{}
	known := in.evidence
	if known == nil {
		known = p.session.Knowledge
	}
	out := generalizeKnowledge(p.session, known)
	p.log.Infow("Found potential evidence of known facts", logger.FieldCount, out.Len())
	return carry{evidence: out}, nil
}

func (p *Pipeline) generateQuestions(_ context.Context, in carry) (carry, error) {
	generalized := in.evidence
	if generalized == nil {
		generalized = knowledge.New()
	}
	generateQuestions(p.session, generalized)
	p.stats.questions = p.session.Questions.Len()
	p.log.Infow("Questions ready", logger.FieldCount, p.stats.questions)
	return carry{}, nil
}

func (p *Pipeline) filterEvidence(_ context.Context, _ carry) (carry, error) {
	labels, auto := filterEvidence(p.session, p.settings.EvidenceThreshold)
	p.stats.labeled = labels.Len()
	p.log.Infow("Filtered training evidence",
		"human", labels.Len()-auto,
		"auto", auto)
	return carry{evidence: labels}, nil
}

func (p *Pipeline) learnFactExtractors(ctx context.Context, in carry) (carry, error) {
	labels := in.evidence
	if labels == nil {
		labels = knowledge.New()
	}
	classifiers, err := learnFactExtractors(ctx, p.session, labels, p.builder, p.settings.Extractor, p.log)
	if err != nil {
		return carry{}, err
	}
	p.stats.trained, p.stats.skipped = splitTrained(classifiers)
	return carry{classifiers: classifiers}, nil
}

func (p *Pipeline) extractFacts(ctx context.Context, in carry) (carry, error) {
	sc := scoring{strategy: p.settings.Prediction.Strategy(), scaleToRange: p.settings.ScaleToRange}
	facts, err := extractFacts(ctx, p.session, in.classifiers, sc, p.log)
	if err != nil {
		return carry{}, err
	}
	return carry{evidence: facts}, nil
}

func (p *Pipeline) filterFacts(_ context.Context, in carry) (carry, error) {
	facts := in.evidence
	if facts == nil {
		facts = knowledge.New()
	}
	if p.settings.DropGuesses {
		p.log.Infow("Discarding previously auto-accepted evidence")
	}
	accepted, removed, err := filterFacts(p.session, facts, p.settings.FactThreshold, p.settings.DropGuesses)
	if err != nil {
		return carry{}, err
	}
	p.log.Infow("Filtered facts",
		"accepted", accepted,
		"removed", removed,
		logger.FieldTotal, p.session.Knowledge.Len())
	return carry{evidence: p.session.Knowledge}, nil
}

func (p *Pipeline) evaluate(_ context.Context, in carry) (carry, error) {
	p.round++
	report := model.RoundReport{
		Round:            p.round,
		FinishedAt:       p.now(),
		Questions:        p.stats.questions,
		Answers:          p.session.Answers.Len(),
		LabeledEvidence:  p.stats.labeled,
		TrainedRelations: p.stats.trained,
		SkippedRelations: p.stats.skipped,
		KnownFacts:       p.session.Knowledge.Len(),
	}

	if p.gold != nil {
		m := score.Evaluate(p.session.Knowledge, p.gold)
		report.Metrics = &m
		p.log.Infow("Evaluated knowledge",
			logger.FieldRound, p.round,
			"precision", m.Precision,
			"recall", m.Recall)
	}
	report.Signals = score.Signals(report.Metrics, report.SkippedRelations)
	p.reports = append(p.reports, report)

	p.log.Infow("Round finished",
		logger.FieldRound, p.round,
		"known_facts", report.KnownFacts,
		"answers", report.Answers)
	return in, nil
}
