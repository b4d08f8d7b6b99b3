package automation

import (
	"context"
	"fmt"
	"time"

	"quenito/internal/logging"
	"quenito/internal/strategy"
	"quenito/internal/types"
)

// Loop statuses.
const (
	StatusComplete   = "complete"
	StatusIncomplete = "incomplete"
	StatusAborted    = "aborted"
)

// Escalation reasons. The unknown-type reason is load-bearing: reports and
// manual-intervention prompts surface it verbatim.
const (
	reasonUnknownType    = "unknown question type"
	reasonLowConfidence  = "confidence below threshold"
	reasonExhausted      = "all interaction strategies exhausted"
	reasonNoElement      = "no interactable element found"
	reasonNavigationHelp = "cannot find the next-page control"
)

// Page is the browser surface the loop drives. browser.SurveyPage satisfies
// it; tests use scripted fakes.
type Page interface {
	State() (types.PageState, error)
	AnswerElement(kind types.ElementKind, answer string) (strategy.Element, error)
	ClickNext() (bool, error)
}

// Brain is the knowledge surface the loop consults and teaches.
type Brain interface {
	Threshold(questionType string) float64
	PreferredStrategy(questionType string, element types.ElementKind) (types.StrategyName, bool)
	ResponseFor(questionType, questionText string) string
	RecordOutcome(questionType, questionText string, strat types.StrategyName,
		element types.ElementKind, confidence float64, outcome types.Outcome, execTime time.Duration)
}

// Classifier identifies the question type on a page.
type Classifier interface {
	Classify(pageText string) (string, float64)
}

// Scorer folds history into keyword confidence.
type Scorer interface {
	Score(questionType string, keywordConfidence float64, element types.ElementKind) float64
}

// Config tunes the loop.
type Config struct {
	MaxIterations int
	PageSettle    time.Duration
}

// Orchestrator runs the confidence-gated automation loop for one survey.
type Orchestrator struct {
	page       Page
	brain      Brain
	classifier Classifier
	scorer     Scorer
	executor   *strategy.Executor
	detector   *Detector
	intervenor Intervenor
	cfg        Config
}

// New wires an orchestrator.
func New(page Page, brain Brain, cls Classifier, scorer Scorer, intervenor Intervenor, cfg Config) *Orchestrator {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 300
	}
	return &Orchestrator{
		page:       page,
		brain:      brain,
		classifier: cls,
		scorer:     scorer,
		executor:   strategy.New(),
		detector:   NewDetector(),
		intervenor: intervenor,
		cfg:        cfg,
	}
}

// Run drives the survey until completion, the iteration cap, or a cancelled
// context. Per-question failures never abort the run; they become manual
// escalations. The returned stats are valid for every status.
func (o *Orchestrator) Run(ctx context.Context) (*SessionStats, error) {
	stats := NewSessionStats()
	defer func() {
		stats.FinishedAt = time.Now()
	}()

	for stats.Iterations < o.cfg.MaxIterations {
		if err := ctx.Err(); err != nil {
			stats.Status = StatusAborted
			return stats, err
		}
		stats.Iterations++

		state, err := o.page.State()
		if err != nil {
			logging.AutomationWarn("could not read page: %v", err)
			done, herr := o.handleEscalation(ctx, stats, "", "", 0, 0,
				fmt.Sprintf("page read failed: %v", err), "")
			if herr != nil {
				stats.Status = StatusAborted
				return stats, herr
			}
			if done {
				break
			}
			continue
		}

		// Completion outranks everything else on the page.
		if o.detector.IsComplete(state) {
			logging.Automation("survey complete after %d iterations", stats.Iterations)
			stats.Status = StatusComplete
			return stats, nil
		}

		done, err := o.processQuestion(ctx, stats, state)
		if err != nil {
			stats.Status = StatusAborted
			return stats, err
		}
		if done {
			stats.Status = StatusComplete
			return stats, nil
		}

		done, err = o.navigate(ctx, stats, state)
		if err != nil {
			stats.Status = StatusAborted
			return stats, err
		}
		if done {
			stats.Status = StatusComplete
			return stats, nil
		}

		if o.cfg.PageSettle > 0 {
			select {
			case <-time.After(o.cfg.PageSettle):
			case <-ctx.Done():
				stats.Status = StatusAborted
				return stats, ctx.Err()
			}
		}
	}

	logging.AutomationWarn("iteration cap %d reached, reporting incomplete", o.cfg.MaxIterations)
	stats.Status = StatusIncomplete
	return stats, nil
}

// processQuestion classifies and answers (or escalates) the current page.
// Returns done=true when the human reports the survey finished.
func (o *Orchestrator) processQuestion(ctx context.Context, stats *SessionStats, state types.PageState) (bool, error) {
	qtype, keywordConf := o.classifier.Classify(state.Text)
	element := state.PrimaryElement()
	stats.CountQuestion(qtype)

	if qtype == "" {
		return o.handleEscalation(ctx, stats, "unknown", state.Text, 0, 0, reasonUnknownType, state.URL)
	}

	score := o.scorer.Score(qtype, keywordConf, element)
	threshold := o.brain.Threshold(qtype)
	logging.Automation("question %s: score=%.2f threshold=%.2f element=%s",
		qtype, score, threshold, element)

	if score <= threshold {
		done, err := o.escalateWithContext(ctx, stats, qtype, state, score, threshold, reasonLowConfidence)
		return done, err
	}

	answer := o.brain.ResponseFor(qtype, state.Text)
	el, err := o.page.AnswerElement(element, answer)
	if err != nil {
		logging.AutomationWarn("no element for %s/%s: %v", qtype, element, err)
		return o.escalateWithContext(ctx, stats, qtype, state, score, threshold, reasonNoElement)
	}

	preferred, hasPreferred := o.brain.PreferredStrategy(qtype, element)
	result := o.executor.Attempt(el, answer, strategy.Order(preferred, hasPreferred))

	if result.Success {
		stats.Automated++
		o.brain.RecordOutcome(qtype, state.Text, result.Used, element, score,
			types.OutcomeSuccess, result.Elapsed)
		return false, nil
	}

	stats.Failures++
	o.brain.RecordOutcome(qtype, state.Text, "", element, score,
		types.OutcomeFailure, result.Elapsed)
	return o.escalateWithContext(ctx, stats, qtype, state, score, threshold, reasonExhausted)
}

// escalateWithContext wraps handleEscalation with page context.
func (o *Orchestrator) escalateWithContext(ctx context.Context, stats *SessionStats,
	qtype string, state types.PageState, score, threshold float64, reason string) (bool, error) {
	return o.handleEscalation(ctx, stats, qtype, state.Text, score, threshold, reason, state.URL)
}

// handleEscalation blocks on the human, records the manual outcome, and
// reports whether the human declared the survey finished.
func (o *Orchestrator) handleEscalation(ctx context.Context, stats *SessionStats,
	qtype, questionText string, score, threshold float64, reason, pageURL string) (bool, error) {

	start := time.Now()
	answer, err := o.intervenor.Request(ctx, InterventionRequest{
		QuestionType: qtype,
		QuestionText: questionText,
		Reason:       reason,
		Confidence:   score,
		Threshold:    threshold,
		PageURL:      pageURL,
	})
	if err != nil {
		return false, fmt.Errorf("manual intervention failed: %w", err)
	}

	stats.Manual++
	o.brain.RecordOutcome(qtype, questionText, "", types.ElementUnknown, score,
		types.OutcomeManual, time.Since(start))

	return answer == DoneSentinel, nil
}

// navigate pushes toward the next page. When no next control exists the page
// is re-checked for completion before asking the human for navigation help.
func (o *Orchestrator) navigate(ctx context.Context, stats *SessionStats, prev types.PageState) (bool, error) {
	clicked, err := o.page.ClickNext()
	if err != nil {
		logging.AutomationWarn("navigation click failed: %v", err)
	}
	if clicked {
		return false, nil
	}

	// The answer itself may have advanced or finished the survey.
	state, err := o.page.State()
	if err == nil {
		if o.detector.IsComplete(state) {
			return true, nil
		}
		if state.URL != prev.URL {
			return false, nil
		}
	}

	return o.handleEscalation(ctx, stats, "", "", 0, 0, reasonNavigationHelp, prev.URL)
}
