package automation

import (
	"testing"

	"quenito/internal/types"
)

func TestIsCompleteURLSignature(t *testing.T) {
	d := NewDetector()

	cases := []string{
		"https://survey.example.com/end?status=complete&reward=50",
		"https://panel.example.com/thank-you",
		"https://s.example.com/finished",
	}
	for _, url := range cases {
		if !d.IsComplete(types.PageState{URL: url}) {
			t.Errorf("IsComplete(%q) = false, want true", url)
		}
	}
}

func TestIsCompletePageCopy(t *testing.T) {
	d := NewDetector()

	state := types.PageState{
		URL:   "https://example.com/s",
		Title: "Survey",
		Text:  "Thank you for completing our survey. Your responses have been recorded.",
	}
	if !d.IsComplete(state) {
		t.Error("completion phrase in copy not detected")
	}
}

func TestIsCompleteTitle(t *testing.T) {
	d := NewDetector()

	state := types.PageState{
		URL:   "https://example.com/s",
		Title: "Thank you!",
		Text:  "Some closing words.",
	}
	if !d.IsComplete(state) {
		t.Error("completion phrase in title not detected")
	}
}

func TestFormInputsVetoHeuristic(t *testing.T) {
	d := NewDetector()

	// Unclassifiable copy, but the page still has inputs.
	state := types.PageState{
		URL:    "https://example.com/q1",
		Title:  "Survey",
		Text:   "Lorem ipsum dolor sit amet.",
		Radios: 2,
	}
	if d.IsComplete(state) {
		t.Error("page with form inputs must never be treated as complete")
	}
}

func TestDefiniteQuestionVetoesHeuristic(t *testing.T) {
	d := NewDetector()

	state := types.PageState{
		URL:   "https://example.com/q1",
		Title: "Survey",
		Text:  "How old are you",
	}
	if d.IsComplete(state) {
		t.Error("page naming a question must never be treated as complete")
	}
}

func TestQuestionPageNotComplete(t *testing.T) {
	d := NewDetector()

	state := types.PageState{
		URL:        "https://example.com/q2",
		Title:      "Survey Question 2",
		Text:       "Which of the following brands are you aware of? Select all that apply and press Next to continue.",
		Checkboxes: 6,
	}
	if d.IsComplete(state) {
		t.Error("question page misdetected as complete")
	}
}

func TestBareClosingPageTriggersHeuristic(t *testing.T) {
	d := NewDetector()

	// No URL signature, no phrase, no inputs, no question or form vocabulary.
	state := types.PageState{
		URL:   "https://example.com/exit",
		Title: "Survey",
		Text:  "You may now close this window.",
	}
	if !d.IsComplete(state) {
		t.Error("bare closing page should fall through to the heuristic")
	}
}
