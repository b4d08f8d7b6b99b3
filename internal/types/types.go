// Package types provides shared type definitions used across Quenito packages.
// This package exists to break import cycles between knowledge, classifier,
// strategy, and automation. Types here are foundational data structures with
// no complex dependencies.
package types

import "time"

// =============================================================================
// ELEMENT AND STRATEGY VOCABULARY
// =============================================================================

// ElementKind identifies the UI input family a survey question presents.
type ElementKind string

const (
	ElementRadio    ElementKind = "radio"
	ElementCheckbox ElementKind = "checkbox"
	ElementDropdown ElementKind = "dropdown"
	ElementText     ElementKind = "text"
	ElementUnknown  ElementKind = "unknown"
)

// StrategyName identifies one interaction strategy the executor can attempt.
type StrategyName string

const (
	StrategyClick      StrategyName = "click"
	StrategyForceClick StrategyName = "force_click"
	StrategyScript     StrategyName = "script_click"
	StrategyKeyboard   StrategyName = "keyboard_focus"
	StrategyCoordinate StrategyName = "coordinate_click"
)

// DefaultStrategyOrder is the fixed fallback order tried when no learned
// preference exists for a (question type, element) pair.
var DefaultStrategyOrder = []StrategyName{
	StrategyClick,
	StrategyForceClick,
	StrategyScript,
	StrategyKeyboard,
	StrategyCoordinate,
}

// =============================================================================
// OUTCOMES AND LEARNING EVENTS
// =============================================================================

// Outcome records how one question was resolved.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeManual  Outcome = "manual"
)

// LearningEvent is an immutable record of one processed question.
// Events are append-only; aggregates (success rates, thresholds, strategy
// preferences) are recomputed from them but individual events never change.
type LearningEvent struct {
	ID            string       `json:"id"`
	QuestionType  string       `json:"question_type"`
	QuestionText  string       `json:"question_text"` // truncated snippet
	Strategy      StrategyName `json:"strategy,omitempty"`
	ElementType   ElementKind  `json:"element_type"`
	Confidence    float64      `json:"confidence"`
	Outcome       Outcome      `json:"outcome"`
	ExecutionTime float64      `json:"execution_time_sec"`
	Timestamp     time.Time    `json:"timestamp"`
}

// =============================================================================
// PAGE STATE
// =============================================================================

// PageState is the orchestrator's read of the current browser page.
type PageState struct {
	URL   string
	Title string
	Text  string

	// Input counts used for element-kind detection.
	Radios     int
	Checkboxes int
	TextInputs int
	Selects    int
	Textareas  int
}

// PrimaryElement returns the dominant input kind on the page, mirroring the
// detection order of the interaction handlers: checkboxes indicate a
// multi-select before lone radios, radios before free text, free text before
// dropdowns.
func (p PageState) PrimaryElement() ElementKind {
	switch {
	case p.Checkboxes > 0:
		return ElementCheckbox
	case p.Radios > 0:
		return ElementRadio
	case p.TextInputs > 0 || p.Textareas > 0:
		return ElementText
	case p.Selects > 0:
		return ElementDropdown
	default:
		return ElementUnknown
	}
}

// HasInputs reports whether the page contains any recognized form inputs.
func (p PageState) HasInputs() bool {
	return p.Radios+p.Checkboxes+p.TextInputs+p.Selects+p.Textareas > 0
}
