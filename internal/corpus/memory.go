package corpus

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/seedloop/internal/model"
)

// MemoryCorpus is an in-memory Connector. Segments keep insertion order.
type MemoryCorpus struct {
	segments []*Segment
	byID     map[model.SegmentID]*Segment
	entities map[model.Entity]bool
}

// NewMemoryCorpus creates an empty in-memory corpus
func NewMemoryCorpus() *MemoryCorpus {
	return &MemoryCorpus{
		byID:     make(map[model.SegmentID]*Segment),
		entities: make(map[model.Entity]bool),
	}
}

// AddEntity registers an entity that appears in no segment yet
func (c *MemoryCorpus) AddEntity(e model.Entity) {
	c.entities[e] = true
}

// AddSegment stores seg, replacing any segment with the same ID, and
// registers the entities it mentions
func (c *MemoryCorpus) AddSegment(seg *Segment) {
	if old, ok := c.byID[seg.ID]; ok {
		for i, s := range c.segments {
			if s == old {
				c.segments[i] = seg
				break
			}
		}
	} else {
		c.segments = append(c.segments, seg)
	}
	c.byID[seg.ID] = seg
	for _, o := range seg.Occurrences {
		c.entities[o.Entity] = true
	}
}

// Segments returns every stored segment in insertion order
func (c *MemoryCorpus) Segments() []*Segment {
	out := make([]*Segment, len(c.segments))
	copy(out, c.segments)
	return out
}

// ResolveEntity implements Connector
func (c *MemoryCorpus) ResolveEntity(_ context.Context, kind, key string) (model.Entity, error) {
	e := model.Entity{Kind: kind, Key: key}
	if !c.entities[e] {
		return model.Entity{}, errors.Wrapf(ErrEntityNotFound, "%s", e)
	}
	return e, nil
}

// SegmentsWithBothKinds implements Connector
func (c *MemoryCorpus) SegmentsWithBothKinds(_ context.Context, kindA, kindB string) ([]*Segment, error) {
	var out []*Segment
	for _, s := range c.segments {
		if s.HasKind(kindA) && s.HasKind(kindB) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Segment implements SegmentLookup
func (c *MemoryCorpus) Segment(_ context.Context, id model.SegmentID) (*Segment, error) {
	s, ok := c.byID[id]
	if !ok {
		return nil, errors.Wrapf(ErrSegmentNotFound, "%s", id)
	}
	return s, nil
}
