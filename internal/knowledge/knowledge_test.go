package knowledge

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/seedloop/internal/model"
)

func ev(rel string, seg string, o1, o2 int) model.Evidence {
	f := model.Fact{
		E1:       model.Entity{Kind: "person", Key: "p" + seg},
		Relation: rel,
		E2:       model.Entity{Kind: "org", Key: "o" + seg},
	}
	return model.NewEvidence(f, model.SegmentID(seg), o1, o2)
}

func TestCertainty(t *testing.T) {
	assert.Equal(t, 0.0, Certainty(0.5))
	assert.Equal(t, 1.0, Certainty(0))
	assert.Equal(t, 1.0, Certainty(1))
	assert.InDelta(t, 0.6, Certainty(0.8), 1e-9)
	assert.InDelta(t, Certainty(0.2), Certainty(0.8), 1e-9, "symmetric around 0.5")

	for v := 0.0; v <= 1.0; v += 0.05 {
		c := Certainty(v)
		assert.GreaterOrEqual(t, c, 0.0)
		assert.LessOrEqual(t, c, 1.0+1e-9)
	}

	assert.Equal(t, 0.0, ScoreCertainty(model.Unlabeled()))
	assert.Equal(t, 0.0, ScoreCertainty(model.Unscored()))
	assert.Equal(t, 1.0, ScoreCertainty(model.Label(false)))
}

func TestSetOverwritesInPlace(t *testing.T) {
	k := New()
	a, b := ev("r", "1", 0, 1), ev("r", "2", 0, 1)
	k.Set(a, model.Probability(0.1))
	k.Set(b, model.Probability(0.2))
	k.Set(a, model.Probability(0.9))

	require.Equal(t, 2, k.Len())
	assert.Equal(t, []model.Evidence{a, b}, k.Keys(), "overwrite keeps position")
	s, ok := k.Get(a)
	require.True(t, ok)
	assert.Equal(t, 0.9, s.Value())
}

func TestDeleteMissingFails(t *testing.T) {
	k := New()
	a := ev("r", "1", 0, 1)
	err := k.Delete(a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	k.Set(a, model.Probability(0.4))
	k.Set(ev("r", "2", 0, 1), model.Probability(0.4))
	k.Set(ev("r", "3", 0, 1), model.Probability(0.4))
	require.NoError(t, k.Delete(a))
	assert.False(t, k.Has(a))
	assert.Equal(t, 2, k.Len())

	// Index must stay consistent after compaction
	require.NoError(t, k.Delete(ev("r", "3", 0, 1)))
	assert.Equal(t, []model.Evidence{ev("r", "2", 0, 1)}, k.Keys())
}

func TestUpdateMerges(t *testing.T) {
	a, b, c := ev("r", "1", 0, 1), ev("r", "2", 0, 1), ev("r", "3", 0, 1)
	k := FromItems([]Item{{a, model.Probability(0.1)}, {b, model.Probability(0.2)}})
	other := FromItems([]Item{{b, model.Probability(0.7)}, {c, model.Probability(0.3)}})

	k.Update(other)

	assert.Equal(t, []model.Evidence{a, b, c}, k.Keys())
	sa, _ := k.Get(a)
	sb, _ := k.Get(b)
	sc, _ := k.Get(c)
	assert.Equal(t, 0.1, sa.Value(), "keys absent from incoming are untouched")
	assert.Equal(t, 0.7, sb.Value(), "incoming wins")
	assert.Equal(t, 0.3, sc.Value())
}

func TestByScore(t *testing.T) {
	a, b, c, d := ev("r", "1", 0, 1), ev("r", "2", 0, 1), ev("r", "3", 0, 1), ev("r", "4", 0, 1)
	k := FromItems([]Item{
		{a, model.Probability(0.5)},
		{b, model.Probability(0.9)},
		{c, model.Probability(0.5)},
		{d, model.Probability(0.1)},
	})

	desc := k.ByScore(true)
	assert.Equal(t, []model.Evidence{b, a, c, d}, evidenceOf(desc), "ties keep insertion order")

	asc := k.ByScore(false)
	assert.Equal(t, []model.Evidence{d, a, c, b}, evidenceOf(asc))

	assert.Equal(t, []model.Evidence{a, b, c, d}, k.Keys(), "views do not reorder storage")
}

func TestByCertainty(t *testing.T) {
	a, b, c, d := ev("r", "1", 0, 1), ev("r", "2", 0, 1), ev("r", "3", 0, 1), ev("r", "4", 0, 1)
	k := FromItems([]Item{
		{a, model.Probability(0.55)},
		{b, model.Probability(0.05)},
		{c, model.Probability(0.95)},
		{d, model.Probability(0.5)},
	})

	got := evidenceOf(k.ByCertainty())
	assert.Equal(t, []model.Evidence{b, c, a, d}, got)
}

func TestPerRelationIsLossless(t *testing.T) {
	k := New()
	for i, rel := range []string{"works_at", "born_in", "works_at", "lives_in", "born_in"} {
		k.Set(ev(rel, string(rune('a'+i)), 0, 1), model.Probability(float64(i)/10))
	}

	parts := k.PerRelation()
	require.Len(t, parts, 3)

	total := 0
	for rel, part := range parts {
		part.Each(func(e model.Evidence, s model.Score) {
			assert.Equal(t, rel, e.Relation())
			orig, ok := k.Get(e)
			require.True(t, ok)
			assert.Equal(t, orig, s)
		})
		total += part.Len()
	}
	assert.Equal(t, k.Len(), total)
	assert.Equal(t, []string{"born_in", "lives_in", "works_at"}, k.Relations())
}

func TestCloneIsIndependent(t *testing.T) {
	a := ev("r", "1", 0, 1)
	k := FromItems([]Item{{a, model.Probability(0.3)}})
	c := k.Clone()
	c.Set(a, model.Probability(0.8))
	c.Set(ev("r", "2", 0, 1), model.Probability(0.8))

	s, _ := k.Get(a)
	assert.Equal(t, 0.3, s.Value())
	assert.Equal(t, 1, k.Len())
}

func evidenceOf(items []Item) []model.Evidence {
	out := make([]model.Evidence, len(items))
	for i, it := range items {
		out[i] = it.Evidence
	}
	return out
}
