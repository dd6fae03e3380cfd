package extractor

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/seedloop/internal/cache"
	"github.com/ppiankov/seedloop/internal/corpus"
	"github.com/ppiankov/seedloop/internal/knowledge"
	"github.com/ppiankov/seedloop/internal/llm"
	"github.com/ppiankov/seedloop/internal/model"
	"github.com/ppiankov/seedloop/internal/worker"
)

// pairSegment builds "<person> <verb...> <org>" with the person at
// occurrence 0 and the org at occurrence 1
func pairSegment(id, person, verb, org string) *corpus.Segment {
	tokens := append([]string{person}, strings.Fields(verb)...)
	tokens = append(tokens, org)
	return &corpus.Segment{
		ID:     model.SegmentID(id),
		Tokens: tokens,
		Occurrences: []corpus.Occurrence{
			{Entity: model.Entity{Kind: "person", Key: strings.ToLower(person)}, Start: 0, End: 1},
			{Entity: model.Entity{Kind: "org", Key: strings.ToLower(org)}, Start: len(tokens) - 1, End: len(tokens)},
		},
	}
}

func worksAt(seg *corpus.Segment) model.Evidence {
	f := model.Fact{E1: seg.Occurrences[0].Entity, Relation: "works_at", E2: seg.Occurrences[1].Entity}
	return model.NewEvidence(f, seg.ID, 0, 1)
}

type fixture struct {
	corpus *corpus.MemoryCorpus
	ev     map[string]model.Evidence
}

func newFixture() *fixture {
	fx := &fixture{corpus: corpus.NewMemoryCorpus(), ev: make(map[string]model.Evidence)}
	for _, s := range []struct{ id, p, verb, o string }{
		{"pos1", "Alice", "works at", "Acme"},
		{"pos2", "Bob", "now works at", "Globex"},
		{"neg1", "Carol", "sued", "Initech"},
		{"neg2", "Dan", "angrily sued", "Hooli"},
		{"new-pos", "Erin", "works at", "Umbrella"},
		{"new-neg", "Frank", "sued", "Cyberdyne"},
		{"unl1", "Gina", "works at", "Tyrell"},
		{"unl2", "Hank", "works at", "Wayne"},
	} {
		seg := pairSegment(s.id, s.p, s.verb, s.o)
		fx.corpus.AddSegment(seg)
		fx.ev[s.id] = worksAt(seg)
	}
	return fx
}

func (fx *fixture) training(extra ...knowledge.Item) *knowledge.Knowledge {
	k := knowledge.New()
	k.Set(fx.ev["pos1"], model.Label(true))
	k.Set(fx.ev["neg1"], model.Label(false))
	k.Set(fx.ev["pos2"], model.Label(true))
	k.Set(fx.ev["neg2"], model.Label(false))
	for _, it := range extra {
		k.Set(it.Evidence, it.Score)
	}
	return k
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm(" NaiveBayes ")
	require.NoError(t, err)
	assert.Equal(t, NaiveBayes, a)
	assert.True(t, LabelSpreading.SemiSupervised())
	assert.False(t, LLMJudge.SemiSupervised())

	_, err = ParseAlgorithm("svm")
	assert.True(t, errors.Is(err, ErrUnknownAlgorithm))
}

func TestConfig_Param(t *testing.T) {
	cfg := Config{Hyperparams: map[string]float64{"alpha": 0.1}}
	assert.Equal(t, 0.1, cfg.Param("alpha", 1))
	assert.Equal(t, 2.0, cfg.Param("window", 2))
}

func TestNaiveBayes_SeparatesClasses(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	c, err := NewFactory(fx.corpus).Build(ctx, Config{Algorithm: NaiveBayes}, fx.training())
	require.NoError(t, err)

	ps, err := c.PredictProba(ctx, []model.Evidence{fx.ev["new-pos"], fx.ev["new-neg"]})
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Greater(t, ps[0], 0.5)
	assert.Less(t, ps[1], 0.5)
	for _, p := range ps {
		assert.True(t, p >= 0 && p <= 1)
	}

	labels, err := c.Predict(ctx, []model.Evidence{fx.ev["new-pos"], fx.ev["new-neg"]})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, labels)
}

func TestLabelSpreading_UsesUnlabeled(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	data := fx.training(
		knowledge.Item{Evidence: fx.ev["unl1"], Score: model.Unlabeled()},
		knowledge.Item{Evidence: fx.ev["unl2"], Score: model.Unlabeled()},
	)
	cfg := Config{Algorithm: LabelSpreading, Hyperparams: map[string]float64{"iterations": 5}}

	c, err := NewFactory(fx.corpus).Build(ctx, cfg, data)
	require.NoError(t, err)

	ps, err := c.PredictProba(ctx, []model.Evidence{fx.ev["new-pos"], fx.ev["new-neg"], fx.ev["unl1"]})
	require.NoError(t, err)
	assert.Greater(t, ps[0], 0.5)
	assert.Less(t, ps[1], 0.5)
	assert.Greater(t, ps[2], 0.5)
}

func TestBuild_MalformedData(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	f := NewFactory(fx.corpus)

	bad := fx.training(knowledge.Item{Evidence: fx.ev["unl1"], Score: model.Probability(0.7)})
	_, err := f.Build(ctx, Config{Algorithm: NaiveBayes}, bad)
	assert.True(t, errors.Is(err, ErrMalformedData))

	onlyUnlabeled := knowledge.New()
	onlyUnlabeled.Set(fx.ev["unl1"], model.Unlabeled())
	_, err = f.Build(ctx, Config{Algorithm: LabelSpreading}, onlyUnlabeled)
	assert.True(t, errors.Is(err, ErrMalformedData))

	_, err = f.Build(ctx, Config{Algorithm: "svm"}, fx.training())
	assert.True(t, errors.Is(err, ErrUnknownAlgorithm))
}

func TestBuild_MissingSegment(t *testing.T) {
	fx := newFixture()
	ghost := fx.ev["pos1"]
	ghost.Segment = "missing"

	_, err := NewFactory(fx.corpus).Build(context.Background(), Config{Algorithm: NaiveBayes},
		fx.training(knowledge.Item{Evidence: ghost, Score: model.Label(true)}))
	assert.True(t, errors.Is(err, corpus.ErrSegmentNotFound))
}

func TestLabelSpreading_LabeledFeatureError(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	broken := fx.ev["pos2"]
	broken.O2 = 5
	labeled := []example{
		{evidence: fx.ev["pos1"], positive: true},
		{evidence: fx.ev["neg1"], positive: false},
		{evidence: broken, positive: true},
	}

	m, err := trainLabelSpreading(ctx, newFeaturizer(fx.corpus, 2), labeled,
		[]model.Evidence{fx.ev["unl1"]}, 1, 5, 0.5)
	assert.Nil(t, m)
	assert.True(t, errors.Is(err, ErrMalformedData))

	ghost := fx.ev["pos1"]
	ghost.Segment = "missing"
	_, err = NewFactory(fx.corpus).Build(ctx, Config{Algorithm: LabelSpreading},
		fx.training(
			knowledge.Item{Evidence: ghost, Score: model.Label(true)},
			knowledge.Item{Evidence: fx.ev["unl1"], Score: model.Unlabeled()},
		))
	assert.True(t, errors.Is(err, corpus.ErrSegmentNotFound))
}

type fakeProvider struct {
	calls atomic.Int32
	fail  bool
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) IsAvailable(ctx context.Context) bool { return true }

func (p *fakeProvider) Judge(ctx context.Context, req llm.JudgeRequest) (*llm.JudgeResponse, error) {
	p.calls.Add(1)
	if p.fail {
		return nil, errors.New("provider down")
	}
	prob := 0.1
	if strings.Contains(req.Text, "works") {
		prob = 0.9
	}
	return &llm.JudgeResponse{Probability: prob, Raw: "x"}, nil
}

func TestLLMJudge_PredictsAndCaches(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	provider := &fakeProvider{}

	f := NewFactory(fx.corpus,
		WithJudge(provider, "test-model"),
		WithCache(cache.NewMemoryCache(time.Minute, time.Minute), time.Minute),
		WithLimiter(worker.NewLimiter(0, 1)),
		WithWorkers(3))

	c, err := f.Build(ctx, Config{Algorithm: LLMJudge, Hyperparams: map[string]float64{"examples": 2}}, fx.training())
	require.NoError(t, err)

	judge := c.(*LLMClassifier)
	require.Len(t, judge.examples, 2)
	assert.True(t, judge.examples[0].Positive)
	assert.False(t, judge.examples[1].Positive)
	assert.Equal(t, "works_at", judge.relation)

	evidence := []model.Evidence{fx.ev["new-pos"], fx.ev["new-neg"], fx.ev["unl1"], fx.ev["unl2"]}
	ps, err := c.PredictProba(ctx, evidence)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 0.1, 0.9, 0.9}, ps)
	assert.Equal(t, int32(4), provider.calls.Load())

	labels, err := c.Predict(ctx, evidence)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true, true}, labels)
	assert.Equal(t, int32(4), provider.calls.Load(), "second pass should be served from cache")
}

func TestLLMJudge_ProviderError(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	c, err := NewFactory(fx.corpus, WithJudge(&fakeProvider{fail: true}, "")).
		Build(ctx, Config{Algorithm: LLMJudge}, fx.training())
	require.NoError(t, err)

	_, err = c.PredictProba(ctx, []model.Evidence{fx.ev["new-pos"]})
	assert.Error(t, err)
}

func TestLLMJudge_NoProvider(t *testing.T) {
	fx := newFixture()
	_, err := NewFactory(fx.corpus).Build(context.Background(), Config{Algorithm: LLMJudge}, fx.training())
	assert.Error(t, err)
}
