package pipeline

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/seedloop/internal/corpus"
	"github.com/ppiankov/seedloop/internal/knowledge"
	"github.com/ppiankov/seedloop/internal/model"
)

// BuildUniverse enumerates every evidence the loop will ever score: for each
// relation, every segment holding both kinds and every ordered occurrence
// pair of matching kinds inside it. All evidence starts at 0.5.
func BuildUniverse(ctx context.Context, conn corpus.Connector, rels Relations) (*knowledge.Knowledge, error) {
	universe := knowledge.New()

	for _, rel := range rels.Labels() {
		kinds := rels[rel]
		segments, err := conn.SegmentsWithBothKinds(ctx, kinds.Left, kinds.Right)
		if err != nil {
			return nil, errors.Wrapf(err, "list segments for %q", rel)
		}

		for _, seg := range segments {
			for _, pair := range seg.KindOccurrencePairs(kinds.Left, kinds.Right) {
				e1, err := resolveOccurrence(ctx, conn, seg, pair[0])
				if err != nil {
					return nil, err
				}
				e2, err := resolveOccurrence(ctx, conn, seg, pair[1])
				if err != nil {
					return nil, err
				}
				f := model.Fact{E1: e1, Relation: rel, E2: e2}
				universe.Set(model.NewEvidence(f, seg.ID, pair[0], pair[1]), model.Probability(model.Neutral))
			}
		}
	}
	return universe, nil
}

func resolveOccurrence(ctx context.Context, conn corpus.Connector, seg *corpus.Segment, i int) (model.Entity, error) {
	kind, key := seg.Entity(i)
	e, err := conn.ResolveEntity(ctx, kind, key)
	if err != nil {
		return model.Entity{}, errors.Wrapf(err, "segment %s occurrence %d", seg.ID, i)
	}
	return e, nil
}
