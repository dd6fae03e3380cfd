package pipeline

// Stage is a position in the bootstrap ring
type Stage int

const (
	GeneralizeKnowledge Stage = iota
	GenerateQuestions
	Paused // Waiting for answers; holds no logic
	FilterEvidence
	LearnFactExtractors
	ExtractFacts
	FilterFacts
	Evaluate
)

// Next returns the stage after s. Evaluate wraps to GeneralizeKnowledge.
func (s Stage) Next() Stage {
	if s >= Evaluate {
		return GeneralizeKnowledge
	}
	return s + 1
}

func (s Stage) String() string {
	switch s {
	case GeneralizeKnowledge:
		return "generalize_knowledge"
	case GenerateQuestions:
		return "generate_questions"
	case Paused:
		return "paused"
	case FilterEvidence:
		return "filter_evidence"
	case LearnFactExtractors:
		return "learn_fact_extractors"
	case ExtractFacts:
		return "extract_facts"
	case FilterFacts:
		return "filter_facts"
	case Evaluate:
		return "evaluate"
	default:
		return "unknown"
	}
}
