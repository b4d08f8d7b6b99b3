package automation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"quenito/internal/logging"
)

// DoneSentinel is what the human types after answering the final question by
// hand; it ends the session as complete instead of returning an answer.
const DoneSentinel = "done"

// InterventionRequest carries everything the human needs to take over one
// question.
type InterventionRequest struct {
	QuestionType string
	QuestionText string
	Reason       string
	Confidence   float64
	Threshold    float64
	PageURL      string
}

// Intervenor asks a human to resolve a question the automation would not
// touch. Request blocks until the human responds.
type Intervenor interface {
	Request(ctx context.Context, req InterventionRequest) (string, error)
}

// ConsoleIntervenor prompts on the terminal. SIGINT is suppressed while the
// prompt is open so a reflexive Ctrl-C cannot kill a half-answered survey.
type ConsoleIntervenor struct {
	in  io.Reader
	out io.Writer
}

// NewConsoleIntervenor creates an intervenor on stdin/stdout.
func NewConsoleIntervenor() *ConsoleIntervenor {
	return &ConsoleIntervenor{in: os.Stdin, out: os.Stdout}
}

// Request implements Intervenor.
func (c *ConsoleIntervenor) Request(ctx context.Context, req InterventionRequest) (string, error) {
	signal.Ignore(syscall.SIGINT)
	defer signal.Reset(syscall.SIGINT)

	logging.Automation("manual intervention requested: %s (%s)", req.QuestionType, req.Reason)

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "============================================")
	fmt.Fprintln(c.out, " MANUAL INTERVENTION NEEDED")
	fmt.Fprintln(c.out, "============================================")
	if req.QuestionType != "" {
		fmt.Fprintf(c.out, " Question type: %s\n", req.QuestionType)
	}
	fmt.Fprintf(c.out, " Reason:        %s\n", req.Reason)
	if req.Threshold > 0 {
		fmt.Fprintf(c.out, " Confidence:    %.2f (threshold %.2f)\n", req.Confidence, req.Threshold)
	}
	if req.PageURL != "" {
		fmt.Fprintf(c.out, " Page:          %s\n", req.PageURL)
	}
	if snippet := truncate(req.QuestionText, 300); snippet != "" {
		fmt.Fprintf(c.out, " Question:      %s\n", snippet)
	}
	fmt.Fprintln(c.out, "--------------------------------------------")
	fmt.Fprintln(c.out, " Answer the question in the browser, then press Enter.")
	fmt.Fprintf(c.out, " Type %q if you just finished the survey by hand.\n", DoneSentinel)
	fmt.Fprint(c.out, " > ")

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		reader := bufio.NewReader(c.in)
		line, err := reader.ReadString('\n')
		ch <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil && r.line == "" {
			return "", fmt.Errorf("read intervention response: %w", r.err)
		}
		return strings.TrimSpace(r.line), nil
	}
}

// truncate caps s at n runes so a multi-byte question never gets split
// mid-character in the prompt.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
