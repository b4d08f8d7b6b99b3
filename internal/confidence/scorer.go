// Package confidence turns raw keyword confidence into the final automation
// score by folding in how well past automation of the same question shape
// actually went.
package confidence

import (
	"quenito/internal/logging"
	"quenito/internal/types"
)

// maxHistoryBoost caps how much a good track record can add.
const maxHistoryBoost = 0.2

// History supplies past automation performance. The knowledge store
// satisfies it; tests use fixed fakes.
type History interface {
	// PairSuccessRate reports the automation success rate for one
	// (question type, element kind) pair, and whether any attempts exist.
	PairSuccessRate(questionType string, element types.ElementKind) (float64, bool)
}

// Scorer computes the final confidence for the automation gate.
type Scorer struct {
	history History
}

// New creates a scorer over the given history.
func New(history History) *Scorer {
	return &Scorer{history: history}
}

// Score combines keyword confidence with a historical adjustment. A success
// rate above 50% adds up to maxHistoryBoost; a rate below 50% subtracts, but
// the penalty is halved so a couple of early failures cannot bury a type the
// keywords clearly recognize. Result is clamped to [0, 1].
func (s *Scorer) Score(questionType string, keywordConfidence float64, element types.ElementKind) float64 {
	score := keywordConfidence

	if rate, ok := s.history.PairSuccessRate(questionType, element); ok {
		adjustment := (rate - 0.5) * 2 * maxHistoryBoost
		if adjustment < 0 {
			adjustment /= 2
		}
		score += adjustment
		logging.Confidence("score for %s/%s: keyword=%.2f history=%.2f adjustment=%+.3f",
			questionType, element, keywordConfidence, rate, adjustment)
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
