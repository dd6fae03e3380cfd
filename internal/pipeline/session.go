package pipeline

import (
	"github.com/ppiankov/seedloop/internal/knowledge"
	"github.com/ppiankov/seedloop/internal/model"
)

// Session is the state the stages share. Every stage function takes the
// session explicitly and documents which fields it reads and writes.
type Session struct {
	Knowledge *knowledge.Knowledge // Accepted evidence, seeds included
	Questions *knowledge.Knowledge // Evidence offered for human judgment
	Answers   *knowledge.Knowledge // Human judgments as labels; only grows
	Universe  *knowledge.Knowledge // Every candidate evidence with its latest score
	Relations Relations
}

// NewSession starts a session whose knowledge holds the seed facts at
// certainty one
func NewSession(seeds []model.Fact, rels Relations, universe *knowledge.Knowledge) *Session {
	known := knowledge.New()
	for _, f := range seeds {
		known.Set(model.SeedEvidence(f), model.Label(true))
	}
	if universe == nil {
		universe = knowledge.New()
	}
	return &Session{
		Knowledge: known,
		Questions: knowledge.New(),
		Answers:   knowledge.New(),
		Universe:  universe,
		Relations: rels,
	}
}

// Answer records a human judgment, replacing an earlier one for e
func (s *Session) Answer(e model.Evidence, positive bool) {
	s.Answers.Set(e, model.Label(positive))
}

// Answered reports whether the human judged e
func (s *Session) Answered(e model.Evidence) bool {
	return s.Answers.Has(e)
}
