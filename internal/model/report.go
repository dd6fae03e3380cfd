package model

import "time"

// RoundReport summarizes one bootstrap round, recorded when the loop
// closes the cycle at the evaluate stage
type RoundReport struct {
	Round            int       `json:"round"`
	FinishedAt       time.Time `json:"finished_at"`
	Questions        int       `json:"questions"`         // Questions offered before the pause
	Answers          int       `json:"answers"`           // Human answers accumulated so far
	LabeledEvidence  int       `json:"labeled_evidence"`  // Training items (human + auto-labeled)
	TrainedRelations []string  `json:"trained_relations"` // Relations that got a classifier
	SkippedRelations []string  `json:"skipped_relations"` // Relations without diverse labels
	KnownFacts       int       `json:"known_facts"`       // Size of knowledge after filtering

	Metrics *Metrics `json:"metrics,omitempty"` // Only when a gold standard was given
	Signals []Signal `json:"signals,omitempty"`
}

// Metrics holds precision and recall against a gold standard
type Metrics struct {
	Precision     float64 `json:"precision"`
	Recall        float64 `json:"recall"`
	Correct       int     `json:"correct"`        // Known evidence the gold marks positive
	Predicted     int     `json:"predicted"`      // Known evidence the gold has an opinion on
	GoldPositives int     `json:"gold_positives"` // Evidence the gold marks positive
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalPrecision         SignalType = "precision"          // Accepted facts vs gold
	SignalRecall            SignalType = "recall"             // Gold facts recovered
	SignalUntrainedRelation SignalType = "untrained_relation" // Relation stuck at neutral scores
	SignalNoGold            SignalType = "no_gold"            // Nothing to evaluate against
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// FactRecord is the exported form of one known fact
type FactRecord struct {
	Evidence Evidence `json:"evidence"`
	Score    float64  `json:"score"`
	Text     string   `json:"text,omitempty"` // Segment text when grounded
}

// FactsExport is the document written by the facts command
type FactsExport struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Facts       []FactRecord  `json:"facts"`
	Reports     []RoundReport `json:"reports,omitempty"`
}
