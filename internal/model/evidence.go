package model

import "fmt"

// Entity is a typed reference to something the corpus knows about
type Entity struct {
	Kind string `json:"kind" yaml:"kind"` // e.g. "person", "organization"
	Key  string `json:"key" yaml:"key"`   // Corpus-unique key within the kind
}

func (e Entity) String() string {
	return e.Kind + ":" + e.Key
}

// Fact is a relation instance between two entities. Two facts are the same
// fact whenever all three parts are equal.
type Fact struct {
	E1       Entity `json:"e1" yaml:"e1"`
	Relation string `json:"relation" yaml:"relation"`
	E2       Entity `json:"e2" yaml:"e2"`
}

func (f Fact) String() string {
	return fmt.Sprintf("(%s, %s, %s)", f.E1, f.Relation, f.E2)
}

// SegmentID identifies a text segment in the corpus. The empty ID means the
// evidence is not grounded in any text.
type SegmentID string

// NoOccurrence marks the occurrence slots of ungrounded evidence.
const NoOccurrence = -1

// Evidence is a Fact situated in a text segment, pointing at the two entity
// occurrences that manifest it. Evidence is a comparable value and is used
// directly as a map key.
type Evidence struct {
	Fact    Fact      `json:"fact"`
	Segment SegmentID `json:"segment,omitempty"`
	O1      int       `json:"o1"`
	O2      int       `json:"o2"`
}

// NewEvidence creates evidence grounded in a segment
func NewEvidence(f Fact, segment SegmentID, o1, o2 int) Evidence {
	return Evidence{Fact: f, Segment: segment, O1: o1, O2: o2}
}

// SeedEvidence creates ungrounded evidence for a fact asserted by the user
func SeedEvidence(f Fact) Evidence {
	return Evidence{Fact: f, O1: NoOccurrence, O2: NoOccurrence}
}

// Grounded reports whether the evidence points into a text segment
func (e Evidence) Grounded() bool {
	return e.Segment != ""
}

// Relation is shorthand for e.Fact.Relation
func (e Evidence) Relation() string {
	return e.Fact.Relation
}

func (e Evidence) String() string {
	if !e.Grounded() {
		return e.Fact.String()
	}
	return fmt.Sprintf("%s @ %s[%d,%d]", e.Fact, e.Segment, e.O1, e.O2)
}
