package knowledge

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"quenito/internal/logging"
	"quenito/internal/types"
)

// defaultSnippetLen caps how much question text a learning event keeps when
// no limit is configured.
const defaultSnippetLen = 200

// prefKey builds the strategy-preference map key for one
// (question type, element kind) pair.
func prefKey(questionType string, element types.ElementKind) string {
	return questionType + "|" + string(element)
}

// RecordOutcome appends a learning event for one processed question,
// recomputes the type's calibration state and the pair's strategy preference,
// then persists the full document. Persistence failure is a warning: the
// in-memory state stays authoritative and the session continues.
func (s *Store) RecordOutcome(questionType, questionText string, strategy types.StrategyName,
	element types.ElementKind, confidence float64, outcome types.Outcome, execTime time.Duration) {

	s.mu.Lock()
	limit := s.snippetLen
	if limit <= 0 {
		limit = defaultSnippetLen
	}
	// Truncate on a rune boundary so the stored snippet stays valid UTF-8.
	if runes := []rune(questionText); len(runes) > limit {
		questionText = string(runes[:limit])
	}

	event := types.LearningEvent{
		ID:            uuid.NewString(),
		QuestionType:  questionType,
		QuestionText:  questionText,
		Strategy:      strategy,
		ElementType:   element,
		Confidence:    confidence,
		Outcome:       outcome,
		ExecutionTime: execTime.Seconds(),
		Timestamp:     time.Now(),
	}

	s.doc.LearningEvents = append(s.doc.LearningEvents, event)
	s.applyCalibration(questionType, outcome)
	// Failures count against the pair aggregate even with no strategy: an
	// exhausted attempt carries no winning strategy but is still evidence
	// the pair automates poorly.
	if outcome == types.OutcomeSuccess && strategy != "" {
		s.updatePreference(questionType, element, strategy, true, execTime)
	} else if outcome == types.OutcomeFailure {
		s.updatePreference(questionType, element, strategy, false, execTime)
	}
	saveErr := s.save()
	archive := s.archive
	s.mu.Unlock()

	if saveErr != nil {
		logging.KnowledgeWarn("could not persist knowledge base: %v (continuing in memory)", saveErr)
	}
	if archive != nil {
		if err := archive.Record(event); err != nil {
			logging.KnowledgeWarn("could not archive learning event: %v", err)
		}
	}

	logging.Knowledge("recorded %s outcome for %s (confidence=%.2f strategy=%s)",
		outcome, questionType, confidence, strategy)
}

// applyCalibration updates the per-type dynamic adjustment after an outcome.
// Successes nudge the adjustment down (lowering the threshold), failures nudge
// it up. Manual completions leave the adjustment untouched: asking a human is
// not evidence the automation got worse. Callers hold s.mu.
func (s *Store) applyCalibration(questionType string, outcome types.Outcome) {
	cal := s.doc.Calibration[questionType]
	if cal == nil {
		cal = &CalibrationState{}
		s.doc.Calibration[questionType] = cal
	}
	set := s.doc.Settings

	cal.TotalAttempts++
	if outcome == types.OutcomeSuccess {
		cal.SuccessfulAttempts++
	}
	cal.SuccessRate = float64(cal.SuccessfulAttempts) / float64(cal.TotalAttempts)

	switch outcome {
	case types.OutcomeSuccess:
		cal.DynamicAdjustment -= set.SuccessBoost * set.LearningRate
	case types.OutcomeFailure:
		cal.DynamicAdjustment += set.FailurePenalty * set.LearningRate
	}
	cal.DynamicAdjustment = clamp(cal.DynamicAdjustment, -set.AdjustmentCap, set.AdjustmentCap)
	cal.Trending = trendLabel(cal.SuccessRate)
}

// trendLabel buckets a success rate for reporting.
func trendLabel(rate float64) string {
	switch {
	case rate > 0.8:
		return "excellent"
	case rate > 0.6:
		return "improving"
	case rate > 0.4:
		return "stable"
	default:
		return "needs_attention"
	}
}

// Threshold returns the confidence threshold for a question type. Types with
// fewer recorded events than the calibration minimum use the conservative
// default; calibrated types apply the dynamic adjustment, clamped to the
// configured floor and ceiling.
func (s *Store) Threshold(questionType string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.doc.Settings
	cal := s.doc.Calibration[questionType]
	if cal == nil || cal.TotalAttempts < set.MinEventsForCalibration {
		return set.DefaultThreshold
	}

	return clamp(set.DefaultThreshold+cal.DynamicAdjustment, set.MinThreshold, set.MaxThreshold)
}

// SuccessRate returns the recorded success rate for a question type and
// whether any attempts exist.
func (s *Store) SuccessRate(questionType string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cal := s.doc.Calibration[questionType]
	if cal == nil || cal.TotalAttempts == 0 {
		return 0, false
	}
	return cal.SuccessRate, true
}

// updatePreference folds one strategy attempt into the (type, element)
// preference. Last successful strategy wins; the rolling success rate decides
// whether the preference is offered back. Callers hold s.mu.
func (s *Store) updatePreference(questionType string, element types.ElementKind,
	strategy types.StrategyName, success bool, execTime time.Duration) {

	key := prefKey(questionType, element)
	pref := s.doc.StrategyPreferences[key]

	pref.TotalAttempts++
	if success {
		pref.SuccessCount++
		pref.Strategy = strategy
	}
	pref.SuccessRate = float64(pref.SuccessCount) / float64(pref.TotalAttempts)
	// Rolling average keeps the report honest about slow strategies.
	pref.AvgExecTime += (execTime.Seconds() - pref.AvgExecTime) / float64(pref.TotalAttempts)

	s.doc.StrategyPreferences[key] = pref
}

// PreferredStrategy returns the remembered strategy for a (type, element)
// pair when its success rate clears 50%. No preference or a weak one returns
// ok=false and the caller falls back to the fixed order.
func (s *Store) PreferredStrategy(questionType string, element types.ElementKind) (types.StrategyName, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pref, ok := s.doc.StrategyPreferences[prefKey(questionType, element)]
	if !ok || pref.Strategy == "" || pref.SuccessRate <= 0.5 {
		return "", false
	}
	return pref.Strategy, true
}

// PairSuccessRate reports the automation success rate for one
// (question type, element kind) pair and whether any attempts exist.
func (s *Store) PairSuccessRate(questionType string, element types.ElementKind) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pref, ok := s.doc.StrategyPreferences[prefKey(questionType, element)]
	if !ok || pref.TotalAttempts == 0 {
		return 0, false
	}
	return pref.SuccessRate, true
}

// StrategyStats returns a copy of the preference map for reporting.
func (s *Store) StrategyStats() map[string]StrategyPreference {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]StrategyPreference, len(s.doc.StrategyPreferences))
	for k, v := range s.doc.StrategyPreferences {
		out[k] = v
	}
	return out
}

// CalibrationStats returns a copy of the per-type calibration map.
func (s *Store) CalibrationStats() map[string]CalibrationState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]CalibrationState, len(s.doc.Calibration))
	for k, v := range s.doc.Calibration {
		out[k] = *v
	}
	return out
}

// Recalibrate rebuilds all calibration state and strategy preferences from
// the learning log. Used by the calibrate command after hand edits, and as a
// consistency check: replaying the log must land on the same aggregates the
// incremental path produced.
func (s *Store) Recalibrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Calibration = make(map[string]*CalibrationState)
	s.doc.StrategyPreferences = make(map[string]StrategyPreference)

	for _, ev := range s.doc.LearningEvents {
		s.applyCalibration(ev.QuestionType, ev.Outcome)
		execTime := time.Duration(ev.ExecutionTime * float64(time.Second))
		switch {
		case ev.Outcome == types.OutcomeSuccess && ev.Strategy != "":
			s.updatePreference(ev.QuestionType, ev.ElementType, ev.Strategy, true, execTime)
		case ev.Outcome == types.OutcomeFailure:
			s.updatePreference(ev.QuestionType, ev.ElementType, ev.Strategy, false, execTime)
		}
	}

	if err := s.save(); err != nil {
		return fmt.Errorf("recalibration computed but not persisted: %w", err)
	}
	logging.Knowledge("recalibrated %d question types from %d events",
		len(s.doc.Calibration), len(s.doc.LearningEvents))
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
