package confidence

import (
	"math"
	"testing"

	"quenito/internal/types"
)

type fixedHistory struct {
	rate float64
	ok   bool
}

func (f fixedHistory) PairSuccessRate(string, types.ElementKind) (float64, bool) {
	return f.rate, f.ok
}

func TestScoreNoHistoryPassesThrough(t *testing.T) {
	s := New(fixedHistory{ok: false})

	if got := s.Score("age", 0.7, types.ElementRadio); got != 0.7 {
		t.Errorf("score = %.2f, want keyword confidence unchanged", got)
	}
}

func TestScorePerfectHistoryAddsCap(t *testing.T) {
	s := New(fixedHistory{rate: 1.0, ok: true})

	got := s.Score("age", 0.6, types.ElementRadio)
	if math.Abs(got-0.8) > 1e-9 {
		t.Errorf("score = %.3f, want 0.800 (keyword + full boost)", got)
	}
}

func TestScoreBadHistoryPenaltyHalved(t *testing.T) {
	s := New(fixedHistory{rate: 0.0, ok: true})

	// Full negative adjustment would be -0.2; damping halves it.
	got := s.Score("age", 0.6, types.ElementRadio)
	if math.Abs(got-0.5) > 1e-9 {
		t.Errorf("score = %.3f, want 0.500 (halved penalty)", got)
	}
}

func TestScoreClampedToUnitInterval(t *testing.T) {
	high := New(fixedHistory{rate: 1.0, ok: true})
	if got := high.Score("age", 0.95, types.ElementRadio); got > 1.0 {
		t.Errorf("score = %.3f, must not exceed 1.0", got)
	}

	low := New(fixedHistory{rate: 0.0, ok: true})
	if got := low.Score("age", 0.05, types.ElementRadio); got < 0.0 {
		t.Errorf("score = %.3f, must not go below 0.0", got)
	}
}

func TestScoreNeutralHistoryIsNeutral(t *testing.T) {
	s := New(fixedHistory{rate: 0.5, ok: true})

	if got := s.Score("age", 0.6, types.ElementRadio); math.Abs(got-0.6) > 1e-9 {
		t.Errorf("score = %.3f, 50%% history should not move the score", got)
	}
}
