package pipeline

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/seedloop/internal/corpus"
	"github.com/ppiankov/seedloop/internal/extractor"
	"github.com/ppiankov/seedloop/internal/knowledge"
	"github.com/ppiankov/seedloop/internal/model"
)

func person(key string) model.Entity { return model.Entity{Kind: "person", Key: key} }
func org(key string) model.Entity    { return model.Entity{Kind: "org", Key: key} }

func worksAt(p, o string) model.Fact {
	return model.Fact{E1: person(p), Relation: "works_at", E2: org(o)}
}

// pairSegment builds "<Person> <verb...> <Org>" with the person at
// occurrence 0 and the org at occurrence 1
func pairSegment(id, p, verb, o string) *corpus.Segment {
	tokens := append([]string{p}, strings.Fields(verb)...)
	tokens = append(tokens, o)
	return &corpus.Segment{
		ID:     model.SegmentID(id),
		Tokens: tokens,
		Occurrences: []corpus.Occurrence{
			{Entity: person(strings.ToLower(p)), Start: 0, End: 1},
			{Entity: org(strings.ToLower(o)), Start: len(tokens) - 1, End: len(tokens)},
		},
	}
}

type testCorpus struct {
	*corpus.MemoryCorpus
	alice, bob, carol model.Evidence
}

func newTestCorpus() *testCorpus {
	c := &testCorpus{MemoryCorpus: corpus.NewMemoryCorpus()}
	c.AddSegment(pairSegment("s1", "Alice", "works at", "Acme"))
	c.AddSegment(pairSegment("s2", "Bob", "visited", "Globex"))
	c.AddSegment(pairSegment("s3", "Carol", "works at", "Initech"))
	c.alice = model.NewEvidence(worksAt("alice", "acme"), "s1", 0, 1)
	c.bob = model.NewEvidence(worksAt("bob", "globex"), "s2", 0, 1)
	c.carol = model.NewEvidence(worksAt("carol", "initech"), "s3", 0, 1)
	return c
}

// stubClassifier returns a fixed probability per evidence, def otherwise
type stubClassifier struct {
	scores map[model.Evidence]float64
	def    float64
}

func (c stubClassifier) PredictProba(_ context.Context, evidence []model.Evidence) ([]float64, error) {
	out := make([]float64, len(evidence))
	for i, e := range evidence {
		p, ok := c.scores[e]
		if !ok {
			p = c.def
		}
		out[i] = p
	}
	return out, nil
}

func (c stubClassifier) Predict(ctx context.Context, evidence []model.Evidence) ([]bool, error) {
	ps, _ := c.PredictProba(ctx, evidence)
	out := make([]bool, len(ps))
	for i, p := range ps {
		out[i] = p > 0.5
	}
	return out, nil
}

// recordingBuilder hands out clf and remembers every training set
type recordingBuilder struct {
	clf   extractor.Classifier
	err   error
	calls []*knowledge.Knowledge
}

func (b *recordingBuilder) Build(_ context.Context, _ extractor.Config, data *knowledge.Knowledge) (extractor.Classifier, error) {
	b.calls = append(b.calls, data.Clone())
	if b.err != nil {
		return nil, b.err
	}
	return b.clf, nil
}

func newPipeline(t *testing.T, c *testCorpus, b extractor.Builder, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithSeeds(worksAt("alice", "acme"))}, opts...)
	p, err := New(context.Background(), c, b, opts...)
	require.NoError(t, err)
	return p
}

func TestNew_BuildsUniverse(t *testing.T) {
	c := newTestCorpus()
	p := newPipeline(t, c, &recordingBuilder{})

	assert.Equal(t, Relations{"works_at": {Left: "person", Right: "org"}}, p.Relations())
	assert.Equal(t, 3, p.session.Universe.Len())
	for _, e := range []model.Evidence{c.alice, c.bob, c.carol} {
		s, ok := p.session.Universe.Get(e)
		require.True(t, ok, "missing %s", e)
		assert.Equal(t, 0.5, s.Value())
	}
}

func TestNew_Errors(t *testing.T) {
	ctx := context.Background()
	c := newTestCorpus()

	_, err := New(ctx, c, &recordingBuilder{})
	assert.True(t, errors.Is(err, ErrNoSeeds))

	place := model.Fact{E1: person("alice"), Relation: "works_at", E2: model.Entity{Kind: "place", Key: "paris"}}
	_, err = New(ctx, c, &recordingBuilder{}, WithSeeds(worksAt("alice", "acme"), place))
	assert.True(t, errors.Is(err, ErrAmbiguousRelation))

	_, err = New(ctx, c, &recordingBuilder{}, WithSeeds(worksAt("alice", "acme")), WithFactThreshold(1.5))
	assert.Error(t, err)

	for _, bounds := range [][]float64{{-1, 1}, {0, 2}, {math.NaN(), 1}} {
		_, err = New(ctx, c, &recordingBuilder{}, WithSeeds(worksAt("alice", "acme")),
			WithPrediction(extractor.Probabilistic, bounds...))
		assert.Error(t, err, "bounds %v", bounds)
	}
}

func TestStart_SeedEvidenceComesFirst(t *testing.T) {
	c := newTestCorpus()
	p := newPipeline(t, c, &recordingBuilder{})

	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, Paused, p.Stage())

	qs := p.QuestionsAvailable()
	require.Len(t, qs, 3)
	assert.Equal(t, c.alice, qs[0].Evidence)
	assert.Equal(t, 1.0, qs[0].Score.Value())
	assert.Equal(t, 0.5, qs[1].Score.Value())
	assert.Equal(t, 0.5, qs[2].Score.Value())
}

func TestQuestionsAvailable_StableBetweenCalls(t *testing.T) {
	for _, order := range []SortOrder{SortByScore, SortByCertainty} {
		p := newPipeline(t, newTestCorpus(), &recordingBuilder{}, WithSortQuestionsBy(order))
		require.NoError(t, p.Start(context.Background()))
		assert.Equal(t, p.QuestionsAvailable(), p.QuestionsAvailable(), "order %s", order)
	}
}

func TestStartAndForceProcess_Guards(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, newTestCorpus(), &recordingBuilder{})

	assert.True(t, errors.Is(p.ForceProcess(ctx), ErrNotStarted))
	require.NoError(t, p.Start(ctx))
	assert.True(t, errors.Is(p.Start(ctx), ErrAlreadyStarted))
}

func TestForceProcess_HumanNegativeNeverAccepted(t *testing.T) {
	ctx := context.Background()
	c := newTestCorpus()
	b := &recordingBuilder{clf: stubClassifier{def: 0.9}}
	p := newPipeline(t, c, b)

	require.NoError(t, p.Start(ctx))
	p.AddAnswer(c.alice, true)
	p.AddAnswer(c.bob, false)
	require.NoError(t, p.ForceProcess(ctx))

	assert.Equal(t, Paused, p.Stage())
	require.Len(t, b.calls, 1)

	known := p.KnownFacts()
	assert.True(t, known.Has(c.alice))
	assert.True(t, known.Has(c.carol))
	assert.False(t, known.Has(c.bob))
	assert.Equal(t, 0.9, p.Confidence(c.carol))
	assert.Equal(t, 0.5, p.Confidence(c.bob))

	qs := p.QuestionsAvailable()
	require.Len(t, qs, 1)
	assert.Equal(t, c.carol, qs[0].Evidence)
	assert.Equal(t, 0.9, qs[0].Score.Value())

	reports := p.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Round)
	assert.Equal(t, []string{"works_at"}, reports[0].TrainedRelations)
	assert.Equal(t, 2, reports[0].Answers)
	assert.Equal(t, 3, reports[0].Questions)
}

func TestForceProcess_NegativeOnlyRelationStaysNeutral(t *testing.T) {
	ctx := context.Background()
	c := newTestCorpus()
	b := &recordingBuilder{clf: stubClassifier{def: 0.9}}
	p := newPipeline(t, c, b)

	require.NoError(t, p.Start(ctx))
	p.AddAnswer(c.bob, false)
	require.NoError(t, p.ForceProcess(ctx))

	assert.Empty(t, b.calls)
	p.session.Universe.Each(func(e model.Evidence, s model.Score) {
		assert.Equal(t, 0.5, s.Value(), "evidence %s", e)
	})

	reports := p.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, []string{"works_at"}, reports[0].SkippedRelations)
	assert.Equal(t, 1, p.KnownFacts().Len(), "only the seed")
}

func TestForceProcess_AnswersOnlyGrow(t *testing.T) {
	ctx := context.Background()
	c := newTestCorpus()
	p := newPipeline(t, c, &recordingBuilder{clf: stubClassifier{def: 0.7}})
	require.NoError(t, p.Start(ctx))

	seen := 0
	for _, step := range []struct {
		e        model.Evidence
		positive bool
	}{{c.alice, true}, {c.bob, false}, {c.bob, true}, {c.carol, false}} {
		p.AddAnswer(step.e, step.positive)
		require.NoError(t, p.ForceProcess(ctx))
		n := p.Answers().Len()
		assert.GreaterOrEqual(t, n, seen)
		seen = n
	}
	assert.Equal(t, 3, seen)
}

func TestForceProcess_SemiSupervisedGetsUnlabeledEvidence(t *testing.T) {
	ctx := context.Background()
	c := newTestCorpus()
	b := &recordingBuilder{clf: stubClassifier{def: 0.5}}
	p := newPipeline(t, c, b, WithExtractor(extractor.Config{Algorithm: extractor.LabelSpreading}))

	require.NoError(t, p.Start(ctx))
	p.AddAnswer(c.alice, true)
	p.AddAnswer(c.bob, false)
	require.NoError(t, p.ForceProcess(ctx))

	require.Len(t, b.calls, 1)
	data := b.calls[0]
	assert.Equal(t, 3, data.Len())
	s, ok := data.Get(c.carol)
	require.True(t, ok)
	assert.Equal(t, model.KindUnlabeled, s.Kind())
	s, _ = data.Get(c.bob)
	assert.Equal(t, model.Label(false), s)
}

func TestForceProcess_SupervisedGetsLabelsOnly(t *testing.T) {
	ctx := context.Background()
	c := newTestCorpus()
	b := &recordingBuilder{clf: stubClassifier{def: 0.5}}
	p := newPipeline(t, c, b)

	require.NoError(t, p.Start(ctx))
	p.AddAnswer(c.alice, true)
	p.AddAnswer(c.bob, false)
	require.NoError(t, p.ForceProcess(ctx))

	require.Len(t, b.calls, 1)
	assert.Equal(t, 2, b.calls[0].Len())
}

func TestForceProcess_BuildErrorRetriesStage(t *testing.T) {
	ctx := context.Background()
	c := newTestCorpus()
	boom := errors.New("boom")
	b := &recordingBuilder{clf: stubClassifier{def: 0.9}, err: boom}
	p := newPipeline(t, c, b)

	require.NoError(t, p.Start(ctx))
	p.AddAnswer(c.alice, true)
	p.AddAnswer(c.bob, false)

	err := p.ForceProcess(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "learn_fact_extractors")
	assert.Equal(t, LearnFactExtractors, p.Stage())
	assert.Empty(t, p.Reports())

	b.err = nil
	require.NoError(t, p.ForceProcess(ctx))
	assert.Equal(t, Paused, p.Stage())
	assert.Len(t, p.Reports(), 1)
	assert.True(t, p.KnownFacts().Has(c.carol))
}

func TestForceProcess_RescalesScores(t *testing.T) {
	ctx := context.Background()
	c := newTestCorpus()
	clf := stubClassifier{scores: map[model.Evidence]float64{c.alice: 0.6, c.bob: 0.2, c.carol: 0.4}}
	p := newPipeline(t, c, &recordingBuilder{clf: clf},
		WithPrediction(extractor.Probabilistic, 1, 0))

	require.NoError(t, p.Start(ctx))
	p.AddAnswer(c.alice, true)
	p.AddAnswer(c.bob, false)
	require.NoError(t, p.ForceProcess(ctx))

	for e, want := range map[model.Evidence]float64{c.alice: 1, c.bob: 0, c.carol: 0.5} {
		s, _ := p.session.Universe.Get(e)
		assert.InDelta(t, want, s.Value(), 1e-9, "evidence %s", e)
	}
}

func TestForceProcess_BinaryPrediction(t *testing.T) {
	ctx := context.Background()
	c := newTestCorpus()
	clf := stubClassifier{scores: map[model.Evidence]float64{c.alice: 0.6, c.bob: 0.2, c.carol: 0.7}}
	p := newPipeline(t, c, &recordingBuilder{clf: clf}, WithPrediction(extractor.Binary))

	require.NoError(t, p.Start(ctx))
	p.AddAnswer(c.alice, true)
	p.AddAnswer(c.bob, false)
	require.NoError(t, p.ForceProcess(ctx))

	s, _ := p.session.Universe.Get(c.carol)
	assert.Equal(t, 1.0, s.Value())
	s, _ = p.session.Universe.Get(c.bob)
	assert.Equal(t, 0.0, s.Value())
}

func TestForceProcess_InvalidPredictionFailsRound(t *testing.T) {
	ctx := context.Background()
	c := newTestCorpus()
	clf := stubClassifier{def: math.NaN()}
	p := newPipeline(t, c, &recordingBuilder{clf: clf})

	require.NoError(t, p.Start(ctx))
	p.AddAnswer(c.alice, true)
	p.AddAnswer(c.bob, false)

	err := p.ForceProcess(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, extractor.ErrInvalidPrediction))
	assert.Contains(t, err.Error(), "works_at")
	assert.Equal(t, ExtractFacts, p.Stage())

	s, _ := p.session.Universe.Get(c.carol)
	assert.Equal(t, 0.5, s.Value())
	assert.Empty(t, p.Reports())
}

func TestEvaluate_ReportsMetricsAgainstGold(t *testing.T) {
	ctx := context.Background()
	c := newTestCorpus()
	gold := knowledge.New()
	gold.Set(c.alice, model.Label(true))
	gold.Set(c.bob, model.Label(false))
	gold.Set(c.carol, model.Label(true))

	clf := stubClassifier{scores: map[model.Evidence]float64{c.alice: 0.9, c.bob: 0.2, c.carol: 0.3}}
	p := newPipeline(t, c, &recordingBuilder{clf: clf}, WithGoldStandard(gold))
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	require.NoError(t, p.Start(ctx))
	p.AddAnswer(c.alice, true)
	p.AddAnswer(c.bob, false)
	require.NoError(t, p.ForceProcess(ctx))

	reports := p.Reports()
	require.Len(t, reports, 1)
	r := reports[0]
	assert.Equal(t, fixed, r.FinishedAt)
	require.NotNil(t, r.Metrics)
	assert.Equal(t, 1.0, r.Metrics.Precision)
	assert.Equal(t, 0.5, r.Metrics.Recall)
	assert.NotEmpty(t, r.Signals)
}

func TestWithKnowledge_ResumesAcceptedEvidence(t *testing.T) {
	c := newTestCorpus()
	prior := knowledge.New()
	prior.Set(c.carol, model.Probability(0.8))

	p := newPipeline(t, c, &recordingBuilder{}, WithKnowledge(prior))
	require.NoError(t, p.Start(context.Background()))

	assert.Equal(t, 0.8, p.Confidence(c.carol))
	qs := p.QuestionsAvailable()
	require.Len(t, qs, 3)
	assert.Equal(t, c.alice, qs[0].Evidence)
	assert.Equal(t, c.carol, qs[1].Evidence)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Extractor.Algorithm = "labelspreading"
	cfg.Prediction.ScaleToRange = []float64{0.1, 0.9}
	cfg.Pipeline.SortQuestionsBy = "certainty"
	cfg.Pipeline.DropGuessesEachRound = true

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)

	p := &Pipeline{settings: DefaultSettings()}
	for _, o := range opts {
		o(p)
	}
	assert.Equal(t, extractor.LabelSpreading, p.settings.Extractor.Algorithm)
	assert.Equal(t, []float64{0.1, 0.9}, p.settings.ScaleToRange)
	assert.Equal(t, SortByCertainty, p.settings.SortQuestionsBy)
	assert.True(t, p.settings.DropGuesses)

	cfg.Pipeline.SortQuestionsBy = "random"
	_, err = OptionsFromConfig(cfg)
	assert.Error(t, err)
}
