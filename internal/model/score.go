package model

import (
	"fmt"
	"math"
)

// ScoreKind tags what a Score value means
type ScoreKind uint8

const (
	KindUnscored    ScoreKind = iota // Not evaluated yet (maximal uncertainty)
	KindProbability                  // Classifier probability in [0,1]
	KindLabel                        // Boolean training label
	KindUnlabeled                    // Unlabeled item for semi-supervised training
)

func (k ScoreKind) String() string {
	switch k {
	case KindProbability:
		return "probability"
	case KindLabel:
		return "label"
	case KindUnlabeled:
		return "unlabeled"
	default:
		return "unscored"
	}
}

// Neutral is the score of maximal uncertainty
const Neutral = 0.5

// UnlabeledValue is the numeric sentinel classifiers receive for unlabeled items
const UnlabeledValue = -1.0

// Score is a tagged value attached to evidence. The zero value is Unscored.
type Score struct {
	kind ScoreKind
	p    float64
}

// Unscored returns the "not yet evaluated" score
func Unscored() Score { return Score{} }

// Probability returns a probability score, clamped into [0,1]
func Probability(p float64) Score {
	if math.IsNaN(p) {
		p = Neutral
	}
	return Score{kind: KindProbability, p: math.Max(0, math.Min(1, p))}
}

// Label returns a boolean training label
func Label(positive bool) Score {
	if positive {
		return Score{kind: KindLabel, p: 1}
	}
	return Score{kind: KindLabel, p: 0}
}

// Unlabeled returns the marker for semi-supervised unlabeled data
func Unlabeled() Score { return Score{kind: KindUnlabeled, p: UnlabeledValue} }

// Kind returns the score tag
func (s Score) Kind() ScoreKind { return s.kind }

// Value returns the numeric view: 0.5 for unscored, the probability, 0/1 for
// labels and -1 for unlabeled.
func (s Score) Value() float64 {
	if s.kind == KindUnscored {
		return Neutral
	}
	return s.p
}

// IsLabel reports whether the score is a training label
func (s Score) IsLabel() bool { return s.kind == KindLabel }

// Positive reports whether the score leans toward the fact being manifested
func (s Score) Positive() bool {
	return s.kind != KindUnlabeled && s.Value() > Neutral
}

func (s Score) String() string {
	switch s.kind {
	case KindLabel:
		if s.p > 0 {
			return "yes"
		}
		return "no"
	case KindUnlabeled:
		return "unlabeled"
	case KindUnscored:
		return "unscored"
	default:
		return fmt.Sprintf("%.3f", s.p)
	}
}
