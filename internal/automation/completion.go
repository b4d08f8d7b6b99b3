// Package automation contains the decision loop that drives a survey from
// first question to completion: read the page, detect completion, classify,
// score against the confidence gate, automate or hand to the human, record
// the outcome, and move on.
package automation

import (
	"strings"

	"quenito/internal/logging"
	"quenito/internal/types"
)

// urlCompletionSignatures mark a survey-complete redirect. Checked first;
// platforms encode completion in the return URL more reliably than in copy.
var urlCompletionSignatures = []string{
	"status=complete",
	"status=c",
	"reward",
	"thank",
	"complete",
	"finished",
	"done",
	"end_of_survey",
	"survey_closed",
}

// completionPhrases in page copy mark the terminal page.
var completionPhrases = []string{
	"thank you for completing",
	"survey complete",
	"survey is complete",
	"you have completed",
	"successfully completed",
	"your responses have been recorded",
	"points have been added",
	"reward has been credited",
	"this survey is now closed",
}

// titleCompletionPhrases checked against the document title.
var titleCompletionPhrases = []string{
	"thank you",
	"complete",
	"finished",
}

// definiteQuestionPhrases veto the no-more-questions heuristic outright.
var definiteQuestionPhrases = []string{
	"how old are you",
	"what is your",
	"which of the following",
	"select all that apply",
	"please select",
	"please choose",
	"do you agree",
	"how likely",
	"how often",
	"how satisfied",
}

// questionIndicators and formIndicators feed the conservative heuristic.
var questionIndicators = []string{"?", "select", "choose", "which", "what", "how", "rate", "agree"}

var formIndicators = []string{"submit", "next", "continue", "answer", "required", "option"}

// Detector decides whether the survey has reached its terminal page.
type Detector struct{}

// NewDetector creates a completion detector.
func NewDetector() *Detector {
	return &Detector{}
}

// IsComplete runs the ordered completion checks. URL signatures first, then
// page copy, then the title, and only then the no-more-questions heuristic.
// Completion always outranks classification: the caller must invoke this
// before classifying the page.
func (d *Detector) IsComplete(state types.PageState) bool {
	lowURL := strings.ToLower(state.URL)
	for _, sig := range urlCompletionSignatures {
		if strings.Contains(lowURL, sig) {
			logging.Completion("URL signature %q matched in %s", sig, state.URL)
			return true
		}
	}

	lowText := strings.ToLower(state.Text)
	for _, phrase := range completionPhrases {
		if strings.Contains(lowText, phrase) {
			logging.Completion("completion phrase %q found in page copy", phrase)
			return true
		}
	}

	lowTitle := strings.ToLower(state.Title)
	for _, phrase := range titleCompletionPhrases {
		if strings.Contains(lowTitle, phrase) {
			logging.Completion("completion phrase %q found in title", phrase)
			return true
		}
	}

	return d.noMoreQuestions(state, lowText)
}

// noMoreQuestions is the deliberately conservative last resort: a page that
// still carries form inputs, names a question, or uses normal question/form
// vocabulary is never treated as complete by silence alone.
func (d *Detector) noMoreQuestions(state types.PageState, lowText string) bool {
	if state.HasInputs() {
		return false
	}
	for _, phrase := range definiteQuestionPhrases {
		if strings.Contains(lowText, phrase) {
			return false
		}
	}

	questionCount := 0
	for _, ind := range questionIndicators {
		if strings.Contains(lowText, ind) {
			questionCount++
		}
	}
	formCount := 0
	for _, ind := range formIndicators {
		if strings.Contains(lowText, ind) {
			formCount++
		}
	}

	if questionCount < 2 && formCount < 2 {
		logging.Completion("no-more-questions heuristic fired (questions=%d forms=%d)",
			questionCount, formCount)
		return true
	}
	return false
}
