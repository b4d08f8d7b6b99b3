package automation

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestConsoleIntervenorReturnsTrimmedAnswer(t *testing.T) {
	var out strings.Builder
	c := &ConsoleIntervenor{in: strings.NewReader("  blue  \n"), out: &out}

	answer, err := c.Request(context.Background(), InterventionRequest{
		QuestionType: "color",
		Reason:       "confidence below threshold",
		Confidence:   0.3,
		Threshold:    0.5,
	})
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if answer != "blue" {
		t.Errorf("answer = %q, want trimmed input", answer)
	}
	if !strings.Contains(out.String(), "confidence below threshold") {
		t.Error("prompt did not show the escalation reason")
	}
}

func TestConsoleIntervenorDoneSentinel(t *testing.T) {
	var out strings.Builder
	c := &ConsoleIntervenor{in: strings.NewReader("done\n"), out: &out}

	answer, err := c.Request(context.Background(), InterventionRequest{Reason: "unknown question type"})
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if answer != DoneSentinel {
		t.Errorf("answer = %q, want the done sentinel", answer)
	}
}

func TestConsoleIntervenorTruncatesLongQuestions(t *testing.T) {
	var out strings.Builder
	long := strings.Repeat("q", 1000)
	c := &ConsoleIntervenor{in: strings.NewReader("\n"), out: &out}

	if _, err := c.Request(context.Background(), InterventionRequest{
		QuestionText: long,
		Reason:       "unknown question type",
	}); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if strings.Contains(out.String(), long) {
		t.Error("prompt printed the full untruncated question text")
	}
}

func TestConsoleIntervenorPromptStaysValidUTF8(t *testing.T) {
	var out strings.Builder
	// Two-byte runes force any byte-index cut to land mid-character.
	long := strings.Repeat("né", 400)
	c := &ConsoleIntervenor{in: strings.NewReader("\n"), out: &out}

	if _, err := c.Request(context.Background(), InterventionRequest{
		QuestionText: long,
		Reason:       "unknown question type",
	}); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if !utf8.ValidString(out.String()) {
		t.Error("prompt contains invalid UTF-8 after truncation")
	}
	if strings.Contains(out.String(), long) {
		t.Error("prompt printed the full untruncated question text")
	}
}

func TestSessionStatsRender(t *testing.T) {
	s := NewSessionStats()
	s.CountQuestion("age")
	s.CountQuestion("age")
	s.CountQuestion("")
	s.Automated = 2
	s.Manual = 1
	s.Status = StatusComplete
	s.FinishedAt = s.StartedAt

	report := s.Render()
	for _, want := range []string{"complete", "Questions seen:  3", "(unrecognized)", "67%"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}
