// Package corpus defines the text corpus the bootstrap loop reads from and
// provides an in-memory and a SQLite implementation of it.
package corpus

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/seedloop/internal/model"
)

var (
	// ErrEntityNotFound is returned when an entity cannot be resolved by kind and key
	ErrEntityNotFound = errors.New("entity not found")
	// ErrSegmentNotFound is returned when a segment ID is unknown
	ErrSegmentNotFound = errors.New("segment not found")
)

// Connector is what the bootstrap loop needs from a corpus
type Connector interface {
	// ResolveEntity returns the entity registered under kind and key
	ResolveEntity(ctx context.Context, kind, key string) (model.Entity, error)

	// SegmentsWithBothKinds lists segments holding at least one occurrence of
	// each kind, in a stable order
	SegmentsWithBothKinds(ctx context.Context, kindA, kindB string) ([]*Segment, error)
}

// Writer accepts segments produced by ingestion
type Writer interface {
	AddSegment(ctx context.Context, seg *Segment) error
}

// SegmentLookup resolves segment handles back to segments. Extractors use it
// to reach the text behind evidence.
type SegmentLookup interface {
	Segment(ctx context.Context, id model.SegmentID) (*Segment, error)
}

// Occurrence is one mention of an entity inside a segment, spanning tokens
// [Start, End)
type Occurrence struct {
	Entity model.Entity `json:"entity"`
	Start  int          `json:"start"`
	End    int          `json:"end"`
}

// Segment is a tokenized span of a document with its entity occurrences
type Segment struct {
	ID          model.SegmentID `json:"id"`
	Document    string          `json:"document"`
	Position    int             `json:"position"` // Index of the segment within its document
	Tokens      []string        `json:"tokens"`
	Occurrences []Occurrence    `json:"occurrences"`
}

// Text joins the segment tokens with single spaces
func (s *Segment) Text() string {
	return strings.Join(s.Tokens, " ")
}

// Entity returns the kind and key of occurrence i
func (s *Segment) Entity(i int) (kind, key string) {
	o := s.Occurrences[i]
	return o.Entity.Kind, o.Entity.Key
}

// KindOccurrencePairs lists every ordered pair of distinct occurrence
// indexes (i, j) where occurrence i has kindA and occurrence j has kindB
func (s *Segment) KindOccurrencePairs(kindA, kindB string) [][2]int {
	var pairs [][2]int
	for i, a := range s.Occurrences {
		if a.Entity.Kind != kindA {
			continue
		}
		for j, b := range s.Occurrences {
			if i == j || b.Entity.Kind != kindB {
				continue
			}
			pairs = append(pairs, [2]int{i, j})
		}
	}
	return pairs
}

// HasKind reports whether any occurrence has the given kind
func (s *Segment) HasKind(kind string) bool {
	for _, o := range s.Occurrences {
		if o.Entity.Kind == kind {
			return true
		}
	}
	return false
}

// Between returns the tokens strictly between occurrences i and j, plus
// up to window tokens on the outer side of each
func (s *Segment) Between(i, j, window int) []string {
	a, b := s.Occurrences[i], s.Occurrences[j]
	if a.Start > b.Start {
		a, b = b, a
	}
	lo := max(0, a.Start-window)
	hi := min(len(s.Tokens), b.End+window)

	var out []string
	out = append(out, s.Tokens[lo:a.Start]...)
	if a.End < b.Start {
		out = append(out, s.Tokens[a.End:b.Start]...)
	}
	if b.End < hi {
		out = append(out, s.Tokens[b.End:hi]...)
	}
	return out
}
