package automation

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SessionStats tallies one survey run for the end-of-session report.
type SessionStats struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string // complete, incomplete, aborted

	QuestionsSeen int
	Automated     int
	Manual        int
	Failures      int
	Iterations    int

	// PerType counts questions seen per classified type; "" keys the
	// unrecognized ones.
	PerType map[string]int
}

// NewSessionStats starts a stats record.
func NewSessionStats() *SessionStats {
	return &SessionStats{
		StartedAt: time.Now(),
		PerType:   make(map[string]int),
	}
}

// CountQuestion records one classified question.
func (s *SessionStats) CountQuestion(questionType string) {
	s.QuestionsSeen++
	s.PerType[questionType]++
}

// AutomationRate returns the share of seen questions answered automatically.
func (s *SessionStats) AutomationRate() float64 {
	if s.QuestionsSeen == 0 {
		return 0
	}
	return float64(s.Automated) / float64(s.QuestionsSeen)
}

// Render formats the session report as text.
func (s *SessionStats) Render() string {
	var b strings.Builder

	duration := s.FinishedAt.Sub(s.StartedAt).Round(time.Second)
	fmt.Fprintf(&b, "Survey session report\n")
	fmt.Fprintf(&b, "=====================\n")
	fmt.Fprintf(&b, "Status:          %s\n", s.Status)
	fmt.Fprintf(&b, "Duration:        %v (%d iterations)\n", duration, s.Iterations)
	fmt.Fprintf(&b, "Questions seen:  %d\n", s.QuestionsSeen)
	fmt.Fprintf(&b, "Automated:       %d (%.0f%%)\n", s.Automated, s.AutomationRate()*100)
	fmt.Fprintf(&b, "Manual:          %d\n", s.Manual)
	fmt.Fprintf(&b, "Failures:        %d\n", s.Failures)

	if len(s.PerType) > 0 {
		fmt.Fprintf(&b, "\nBy question type:\n")
		names := make([]string, 0, len(s.PerType))
		for name := range s.PerType {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			label := name
			if label == "" {
				label = "(unrecognized)"
			}
			fmt.Fprintf(&b, "  %-20s %d\n", label, s.PerType[name])
		}
	}
	return b.String()
}
