package pipeline

import (
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/seedloop/internal/model"
)

// ErrAmbiguousRelation is returned when seed facts give one relation label
// two different entity kind pairs
var ErrAmbiguousRelation = errors.New("ambiguous kinds for relation")

// KindPair is the (left, right) entity kinds a relation connects
type KindPair struct {
	Left  string
	Right string
}

// Relations maps relation labels to the kinds they connect
type Relations map[string]KindPair

// BuildRelations derives the relation registry from seed facts
func BuildRelations(seeds []model.Fact) (Relations, error) {
	rels := make(Relations)
	for _, f := range seeds {
		kinds := KindPair{Left: f.E1.Kind, Right: f.E2.Kind}
		if prev, ok := rels[f.Relation]; ok && prev != kinds {
			return nil, errors.Wrapf(ErrAmbiguousRelation, "%q: (%s, %s) vs (%s, %s)",
				f.Relation, prev.Left, prev.Right, kinds.Left, kinds.Right)
		}
		rels[f.Relation] = kinds
	}
	return rels, nil
}

// Labels returns the relation labels, sorted
func (r Relations) Labels() []string {
	labels := make([]string, 0, len(r))
	for l := range r {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}
