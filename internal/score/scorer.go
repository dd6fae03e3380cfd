// Package score evaluates known facts against a gold standard and turns the
// result into diagnostic signals.
package score

import (
	"fmt"
	"sort"

	"github.com/ppiankov/seedloop/internal/knowledge"
	"github.com/ppiankov/seedloop/internal/model"
)

// Evaluate compares known evidence against gold, a mapping of evidence to
// labels. Only grounded known evidence the gold has a label for counts as a
// prediction; recall is measured against every positive gold label.
// Empty denominators yield zero.
func Evaluate(known, gold *knowledge.Knowledge) model.Metrics {
	var m model.Metrics

	gold.Each(func(_ model.Evidence, s model.Score) {
		if s.Positive() {
			m.GoldPositives++
		}
	})

	known.Each(func(e model.Evidence, _ model.Score) {
		if !e.Grounded() {
			return
		}
		label, ok := gold.Get(e)
		if !ok {
			return
		}
		m.Predicted++
		if label.Positive() {
			m.Correct++
		}
	})

	if m.Predicted > 0 {
		m.Precision = float64(m.Correct) / float64(m.Predicted)
	}
	if m.GoldPositives > 0 {
		m.Recall = float64(m.Correct) / float64(m.GoldPositives)
	}
	return m
}

// Signals describes a round: evaluation quality when metrics are given and
// relations that got no classifier
func Signals(metrics *model.Metrics, untrained []string) []model.Signal {
	var signals []model.Signal

	if metrics == nil {
		signals = append(signals, model.Signal{
			Type:        model.SignalNoGold,
			Severity:    model.SeverityInfo,
			Description: "No gold standard given, precision and recall not measured",
		})
	} else {
		signals = append(signals, precisionSignal(*metrics), recallSignal(*metrics))
	}

	sorted := append([]string(nil), untrained...)
	sort.Strings(sorted)
	for _, r := range sorted {
		signals = append(signals, model.Signal{
			Type:        model.SignalUntrainedRelation,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("Relation %q lacks positive or negative labels; its evidence stays at 0.5", r),
			Data:        map[string]interface{}{"relation": r},
		})
	}
	return signals
}

func precisionSignal(m model.Metrics) model.Signal {
	severity := model.SeverityInfo
	if m.Predicted > 0 {
		if m.Precision < 0.5 {
			severity = model.SeverityCritical
		} else if m.Precision < 0.8 {
			severity = model.SeverityWarning
		}
	}

	return model.Signal{
		Type:        model.SignalPrecision,
		Severity:    severity,
		Description: fmt.Sprintf("Precision: %d/%d (%.0f%%)", m.Correct, m.Predicted, m.Precision*100),
		Data: map[string]interface{}{
			"correct":   m.Correct,
			"predicted": m.Predicted,
			"precision": m.Precision,
			"formula":   "correct / predicted",
		},
	}
}

func recallSignal(m model.Metrics) model.Signal {
	severity := model.SeverityInfo
	if m.GoldPositives > 0 {
		if m.Recall < 0.3 {
			severity = model.SeverityCritical
		} else if m.Recall < 0.6 {
			severity = model.SeverityWarning
		}
	}

	return model.Signal{
		Type:        model.SignalRecall,
		Severity:    severity,
		Description: fmt.Sprintf("Recall: %d/%d (%.0f%%)", m.Correct, m.GoldPositives, m.Recall*100),
		Data: map[string]interface{}{
			"correct":        m.Correct,
			"gold_positives": m.GoldPositives,
			"recall":         m.Recall,
			"formula":        "correct / gold_positives",
		},
	}
}
