// Package knowledge implements the scored evidence container the bootstrap
// loop trades in: an insertion-ordered map from Evidence to Score with
// sorted and per-relation views computed on demand.
package knowledge

import (
	"math"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/seedloop/internal/model"
)

// ErrNotFound is returned when deleting evidence that is not present
var ErrNotFound = errors.New("evidence not in knowledge")

// Item is one evidence/score pair
type Item struct {
	Evidence model.Evidence
	Score    model.Score
}

// Knowledge maps evidence to scores and remembers insertion order. Keys are
// unique; setting an existing key overwrites its score in place.
// Not safe for concurrent use.
type Knowledge struct {
	order []model.Evidence
	index map[model.Evidence]int
	score map[model.Evidence]model.Score
}

// New creates an empty Knowledge
func New() *Knowledge {
	return &Knowledge{
		index: make(map[model.Evidence]int),
		score: make(map[model.Evidence]model.Score),
	}
}

// FromItems creates a Knowledge from items, later duplicates overwriting earlier ones
func FromItems(items []Item) *Knowledge {
	k := New()
	for _, it := range items {
		k.Set(it.Evidence, it.Score)
	}
	return k
}

// Certainty maps a score value in [0,1] to its distance from 0.5, scaled to [0,1]
func Certainty(v float64) float64 {
	return math.Abs(v-model.Neutral) * 2
}

// ScoreCertainty is Certainty for tagged scores. Unlabeled items carry no certainty.
func ScoreCertainty(s model.Score) float64 {
	if s.Kind() == model.KindUnlabeled {
		return 0
	}
	return Certainty(s.Value())
}

// Len returns the number of entries
func (k *Knowledge) Len() int {
	return len(k.order)
}

// Set inserts or overwrites the score of e
func (k *Knowledge) Set(e model.Evidence, s model.Score) {
	if _, ok := k.index[e]; !ok {
		k.index[e] = len(k.order)
		k.order = append(k.order, e)
	}
	k.score[e] = s
}

// Get returns the score of e
func (k *Knowledge) Get(e model.Evidence) (model.Score, bool) {
	s, ok := k.score[e]
	return s, ok
}

// Has reports whether e is present
func (k *Knowledge) Has(e model.Evidence) bool {
	_, ok := k.index[e]
	return ok
}

// Delete removes e. Deleting missing evidence is an orchestration bug and
// returns ErrNotFound.
func (k *Knowledge) Delete(e model.Evidence) error {
	pos, ok := k.index[e]
	if !ok {
		return errors.Wrapf(ErrNotFound, "delete %s", e)
	}
	copy(k.order[pos:], k.order[pos+1:])
	k.order = k.order[:len(k.order)-1]
	for i := pos; i < len(k.order); i++ {
		k.index[k.order[i]] = i
	}
	delete(k.index, e)
	delete(k.score, e)
	return nil
}

// Update merges other into k: incoming scores overwrite existing keys, new
// keys are appended in other's order, and keys absent from other are untouched.
func (k *Knowledge) Update(other *Knowledge) {
	if other == nil {
		return
	}
	for _, e := range other.order {
		k.Set(e, other.score[e])
	}
}

// Keys returns the evidence in insertion order
func (k *Knowledge) Keys() []model.Evidence {
	out := make([]model.Evidence, len(k.order))
	copy(out, k.order)
	return out
}

// Items returns all entries in insertion order
func (k *Knowledge) Items() []Item {
	out := make([]Item, len(k.order))
	for i, e := range k.order {
		out[i] = Item{Evidence: e, Score: k.score[e]}
	}
	return out
}

// Each calls fn for every entry in insertion order. fn must not mutate k.
func (k *Knowledge) Each(fn func(e model.Evidence, s model.Score)) {
	for _, e := range k.order {
		fn(e, k.score[e])
	}
}

// Clone returns an independent copy
func (k *Knowledge) Clone() *Knowledge {
	c := New()
	c.Update(k)
	return c
}

// ByScore returns the entries sorted by score value, descending when reverse
// is true. Ties keep insertion order.
func (k *Knowledge) ByScore(reverse bool) []Item {
	items := k.Items()
	sort.SliceStable(items, func(i, j int) bool {
		if reverse {
			return items[i].Score.Value() > items[j].Score.Value()
		}
		return items[i].Score.Value() < items[j].Score.Value()
	})
	return items
}

// ByCertainty returns the entries sorted by descending certainty. Ties keep
// insertion order.
func (k *Knowledge) ByCertainty() []Item {
	items := k.Items()
	sort.SliceStable(items, func(i, j int) bool {
		return ScoreCertainty(items[i].Score) > ScoreCertainty(items[j].Score)
	})
	return items
}

// PerRelation partitions k by fact relation. Every entry lands in exactly
// one partition with its score unchanged.
func (k *Knowledge) PerRelation() map[string]*Knowledge {
	out := make(map[string]*Knowledge)
	for _, e := range k.order {
		rel := e.Relation()
		part, ok := out[rel]
		if !ok {
			part = New()
			out[rel] = part
		}
		part.Set(e, k.score[e])
	}
	return out
}

// Relations returns the relation labels present, sorted
func (k *Knowledge) Relations() []string {
	seen := make(map[string]bool)
	var rels []string
	for _, e := range k.order {
		if !seen[e.Relation()] {
			seen[e.Relation()] = true
			rels = append(rels, e.Relation())
		}
	}
	sort.Strings(rels)
	return rels
}
