package automation

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"quenito/internal/classifier"
	"quenito/internal/confidence"
	"quenito/internal/knowledge"
	"quenito/internal/strategy"
	"quenito/internal/types"
)

// scriptedPage serves a fixed sequence of page states; ClickNext advances it.
type scriptedPage struct {
	states   []types.PageState
	pos      int
	elements map[int]*scriptedElement // per-position element, nil = no element
	noNext   bool
}

func (p *scriptedPage) State() (types.PageState, error) {
	if p.pos >= len(p.states) {
		return p.states[len(p.states)-1], nil
	}
	return p.states[p.pos], nil
}

func (p *scriptedPage) AnswerElement(kind types.ElementKind, answer string) (strategy.Element, error) {
	el, ok := p.elements[p.pos]
	if !ok || el == nil {
		return nil, fmt.Errorf("no element scripted at position %d", p.pos)
	}
	return el, nil
}

func (p *scriptedPage) ClickNext() (bool, error) {
	if p.noNext {
		return false, nil
	}
	if p.pos < len(p.states)-1 {
		p.pos++
	}
	return true, nil
}

type scriptedElement struct {
	failAll bool
	applied []types.StrategyName
}

func (e *scriptedElement) Apply(s types.StrategyName, value string) error {
	e.applied = append(e.applied, s)
	if e.failAll {
		return fmt.Errorf("scripted failure")
	}
	return nil
}

// recordingBrain captures RecordOutcome calls over fixed thresholds.
type recordingBrain struct {
	threshold float64
	outcomes  []types.Outcome
	qtypes    []string
}

func (b *recordingBrain) Threshold(string) float64 { return b.threshold }

func (b *recordingBrain) PreferredStrategy(string, types.ElementKind) (types.StrategyName, bool) {
	return "", false
}

func (b *recordingBrain) ResponseFor(qtype, _ string) string { return "42" }

func (b *recordingBrain) RecordOutcome(qtype, _ string, _ types.StrategyName,
	_ types.ElementKind, _ float64, outcome types.Outcome, _ time.Duration) {
	b.outcomes = append(b.outcomes, outcome)
	b.qtypes = append(b.qtypes, qtype)
}

func (b *recordingBrain) PairSuccessRate(string, types.ElementKind) (float64, bool) {
	return 0, false
}

// scriptedIntervenor returns canned answers and captures requests.
type scriptedIntervenor struct {
	answers  []string
	requests []InterventionRequest
}

func (i *scriptedIntervenor) Request(_ context.Context, req InterventionRequest) (string, error) {
	i.requests = append(i.requests, req)
	if len(i.requests) <= len(i.answers) {
		return i.answers[len(i.requests)-1], nil
	}
	return "", nil
}

type passthroughScorer struct{}

func (passthroughScorer) Score(_ string, conf float64, _ types.ElementKind) float64 {
	return conf
}

func defaultClassifier() *classifier.Classifier {
	doc := knowledge.DefaultDocument()
	return classifier.New(staticPatterns{doc.QuestionPatterns}, classifier.Config{})
}

type staticPatterns struct {
	patterns map[string]knowledge.PatternRecord
}

func (s staticPatterns) AllPatterns() map[string]knowledge.PatternRecord {
	return s.patterns
}

func questionState(text string, radios int) types.PageState {
	return types.PageState{
		URL:    "https://survey.example.com/q",
		Title:  "Survey Question",
		Text:   text,
		Radios: radios,
	}
}

func completionState() types.PageState {
	return types.PageState{
		URL:   "https://survey.example.com/end?status=complete&reward=50",
		Title: "Survey",
		Text:  "Thank you for completing our survey.",
	}
}

func TestRunAutomatesConfidentQuestionThenCompletes(t *testing.T) {
	el := &scriptedElement{}
	page := &scriptedPage{
		states: []types.PageState{
			questionState("How old are you? Please select your answer below.", 5),
			completionState(),
		},
		elements: map[int]*scriptedElement{0: el},
	}
	brain := &recordingBrain{threshold: 0.5}
	intervenor := &scriptedIntervenor{}

	o := New(page, brain, defaultClassifier(), passthroughScorer{}, intervenor, Config{MaxIterations: 10})
	stats, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.Status != StatusComplete {
		t.Errorf("status = %s, want complete", stats.Status)
	}
	if stats.Automated != 1 || stats.Manual != 0 {
		t.Errorf("automated=%d manual=%d, want 1/0", stats.Automated, stats.Manual)
	}
	if len(intervenor.requests) != 0 {
		t.Errorf("human was asked %d times, want 0", len(intervenor.requests))
	}
	if len(brain.outcomes) != 1 || brain.outcomes[0] != types.OutcomeSuccess {
		t.Errorf("outcomes = %v, want one success", brain.outcomes)
	}
	if len(el.applied) != 1 || el.applied[0] != types.StrategyClick {
		t.Errorf("applied = %v, want single click", el.applied)
	}
}

func TestRunCompletionOutranksClassification(t *testing.T) {
	// The terminal page still mentions a question; completion must win.
	state := completionState()
	state.Text = "Thank you for completing our survey. How old are you was our favorite question."

	page := &scriptedPage{states: []types.PageState{state}}
	brain := &recordingBrain{threshold: 0.5}

	o := New(page, brain, defaultClassifier(), passthroughScorer{}, &scriptedIntervenor{}, Config{MaxIterations: 10})
	stats, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.Status != StatusComplete {
		t.Errorf("status = %s, want complete", stats.Status)
	}
	if stats.QuestionsSeen != 0 {
		t.Errorf("questions seen = %d, completion page must not be classified", stats.QuestionsSeen)
	}
	if len(brain.outcomes) != 0 {
		t.Errorf("outcomes recorded on a completion page: %v", brain.outcomes)
	}
}

func TestRunUnknownQuestionEscalatesWithUnknownReason(t *testing.T) {
	page := &scriptedPage{
		states: []types.PageState{
			questionState("Lorem ipsum dolor sit amet, consectetur adipiscing elit.", 2),
			completionState(),
		},
	}
	brain := &recordingBrain{threshold: 0.5}
	intervenor := &scriptedIntervenor{answers: []string{""}}

	o := New(page, brain, defaultClassifier(), passthroughScorer{}, intervenor, Config{MaxIterations: 10})
	stats, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(intervenor.requests) == 0 {
		t.Fatal("unknown question did not escalate")
	}
	if got := intervenor.requests[0].Reason; !strings.Contains(got, "unknown") {
		t.Errorf("escalation reason = %q, want it to contain \"unknown\"", got)
	}
	if stats.Manual != 1 {
		t.Errorf("manual = %d, want 1", stats.Manual)
	}
	if len(brain.outcomes) != 1 || brain.outcomes[0] != types.OutcomeManual {
		t.Errorf("outcomes = %v, want one manual", brain.outcomes)
	}
}

func TestRunLowConfidenceEscalates(t *testing.T) {
	page := &scriptedPage{
		states: []types.PageState{
			questionState("How old are you?", 3),
			completionState(),
		},
	}
	// Threshold above the 0.95 strong-indicator confidence: never automate.
	brain := &recordingBrain{threshold: 0.99}
	intervenor := &scriptedIntervenor{answers: []string{""}}

	o := New(page, brain, defaultClassifier(), passthroughScorer{}, intervenor, Config{MaxIterations: 10})
	stats, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.Automated != 0 || stats.Manual != 1 {
		t.Errorf("automated=%d manual=%d, want 0/1", stats.Automated, stats.Manual)
	}
	if got := intervenor.requests[0].Reason; got != reasonLowConfidence {
		t.Errorf("reason = %q, want low-confidence escalation", got)
	}
}

func TestRunStrategyExhaustionRecordsFailureThenEscalates(t *testing.T) {
	el := &scriptedElement{failAll: true}
	page := &scriptedPage{
		states: []types.PageState{
			questionState("How old are you?", 3),
			completionState(),
		},
		elements: map[int]*scriptedElement{0: el},
	}
	brain := &recordingBrain{threshold: 0.5}
	intervenor := &scriptedIntervenor{answers: []string{""}}

	o := New(page, brain, defaultClassifier(), passthroughScorer{}, intervenor, Config{MaxIterations: 10})
	stats, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(el.applied) != len(types.DefaultStrategyOrder) {
		t.Errorf("tried %d strategies, want all %d", len(el.applied), len(types.DefaultStrategyOrder))
	}
	if stats.Failures != 1 || stats.Manual != 1 {
		t.Errorf("failures=%d manual=%d, want 1/1", stats.Failures, stats.Manual)
	}
	// Failure event first, then the manual event for the human takeover.
	if len(brain.outcomes) != 2 ||
		brain.outcomes[0] != types.OutcomeFailure || brain.outcomes[1] != types.OutcomeManual {
		t.Errorf("outcomes = %v, want [failure manual]", brain.outcomes)
	}
}

func TestRunExhaustionFeedsPairHistory(t *testing.T) {
	// Full stack against a real knowledge store: exhausting every strategy
	// must drag the pair success rate down, not leave it where it was.
	store, err := knowledge.Open(filepath.Join(t.TempDir(), "knowledge_base.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	el := &scriptedElement{failAll: true}
	page := &scriptedPage{
		states: []types.PageState{
			questionState("How old are you?", 3),
			completionState(),
		},
		elements: map[int]*scriptedElement{0: el},
	}
	intervenor := &scriptedIntervenor{answers: []string{""}}

	o := New(page, store, classifier.New(store, classifier.Config{}),
		confidence.New(store), intervenor, Config{MaxIterations: 10})
	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	rate, ok := store.PairSuccessRate("age", types.ElementRadio)
	if !ok {
		t.Fatal("exhaustion left no trace in the pair history")
	}
	if rate != 0 {
		t.Errorf("pair success rate = %.2f after exhaustion, want 0", rate)
	}
	if _, ok := store.PreferredStrategy("age", types.ElementRadio); ok {
		t.Error("a pair that only ever failed must not offer a preferred strategy")
	}
}

func TestRunDoneSentinelEndsSession(t *testing.T) {
	page := &scriptedPage{
		states: []types.PageState{
			questionState("Lorem ipsum dolor sit amet.", 1),
		},
	}
	brain := &recordingBrain{threshold: 0.5}
	intervenor := &scriptedIntervenor{answers: []string{DoneSentinel}}

	o := New(page, brain, defaultClassifier(), passthroughScorer{}, intervenor, Config{MaxIterations: 10})
	stats, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if stats.Status != StatusComplete {
		t.Errorf("status = %s, want complete after done sentinel", stats.Status)
	}
	if stats.Iterations != 1 {
		t.Errorf("iterations = %d, want 1", stats.Iterations)
	}
}

func TestRunIterationCapReportsIncomplete(t *testing.T) {
	// The same unanswerable page forever; the human keeps passing.
	page := &scriptedPage{
		states: []types.PageState{
			questionState("Lorem ipsum dolor sit amet.", 1),
		},
	}
	brain := &recordingBrain{threshold: 0.5}
	intervenor := &scriptedIntervenor{}

	o := New(page, brain, defaultClassifier(), passthroughScorer{}, intervenor, Config{MaxIterations: 4})
	stats, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error at iteration cap: %v", err)
	}

	if stats.Status != StatusIncomplete {
		t.Errorf("status = %s, want incomplete", stats.Status)
	}
	if stats.Iterations != 4 {
		t.Errorf("iterations = %d, want the configured cap", stats.Iterations)
	}
}

func TestRunRecordOutcomeCountMatchesProcessedQuestions(t *testing.T) {
	page := &scriptedPage{
		states: []types.PageState{
			questionState("How old are you?", 3),
			questionState("Lorem ipsum dolor sit amet.", 1),
			completionState(),
		},
		elements: map[int]*scriptedElement{0: {}},
	}
	brain := &recordingBrain{threshold: 0.5}
	intervenor := &scriptedIntervenor{answers: []string{""}}

	o := New(page, brain, defaultClassifier(), passthroughScorer{}, intervenor, Config{MaxIterations: 10})
	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// One success for the age question, one manual for the unknown one.
	if len(brain.outcomes) != 2 {
		t.Fatalf("recorded %d outcomes, want 2", len(brain.outcomes))
	}
}
