package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvidenceEquality(t *testing.T) {
	f := Fact{E1: Entity{"person", "alice"}, Relation: "works_at", E2: Entity{"org", "acme"}}
	a := NewEvidence(f, "s1", 0, 2)
	b := NewEvidence(f, "s1", 0, 2)
	c := NewEvidence(f, "s1", 2, 0)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	m := map[Evidence]int{a: 1}
	m[b] = 2
	assert.Len(t, m, 1, "equal evidence must collide as map keys")
	assert.Equal(t, f, c.Fact, "different evidence still shares the fact")
}

func TestSeedEvidence(t *testing.T) {
	f := Fact{E1: Entity{"person", "alice"}, Relation: "works_at", E2: Entity{"org", "acme"}}
	e := SeedEvidence(f)
	assert.False(t, e.Grounded())
	assert.Equal(t, NoOccurrence, e.O1)
	assert.Equal(t, NoOccurrence, e.O2)
	assert.Equal(t, "works_at", e.Relation())
	assert.Equal(t, "(person:alice, works_at, org:acme)", e.String())
}

func TestScoreVariants(t *testing.T) {
	tests := []struct {
		name     string
		score    Score
		kind     ScoreKind
		value    float64
		positive bool
	}{
		{"unscored", Unscored(), KindUnscored, 0.5, false},
		{"probability", Probability(0.8), KindProbability, 0.8, true},
		{"clamped high", Probability(1.7), KindProbability, 1, true},
		{"clamped low", Probability(-0.2), KindProbability, 0, false},
		{"label yes", Label(true), KindLabel, 1, true},
		{"label no", Label(false), KindLabel, 0, false},
		{"unlabeled", Unlabeled(), KindUnlabeled, -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.score.Kind())
			assert.InDelta(t, tt.value, tt.score.Value(), 1e-9)
			assert.Equal(t, tt.positive, tt.score.Positive())
		})
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Pipeline.FactThreshold = 1.5
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Pipeline.SortQuestionsBy = "random"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Prediction.ScaleToRange = []float64{0.1}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Prediction.ScaleToRange = []float64{-1, 1}
	assert.Error(t, cfg.Validate())

	cfg.Prediction.ScaleToRange = []float64{0, 1.5}
	assert.Error(t, cfg.Validate())

	cfg.Prediction.ScaleToRange = []float64{0.9, 0.1}
	assert.NoError(t, cfg.Validate())
}
