package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/trebuchet-org/forkctl/internal/usecase"
)

// SpinnerSink renders progress events with a terminal spinner
type SpinnerSink struct {
	mu      sync.Mutex
	spinner *spinner.Spinner
	out     io.Writer
	stage   string
	started time.Time
	now     func() time.Time
}

// NewSpinnerSink creates a spinner sink writing to out
func NewSpinnerSink(out io.Writer) *SpinnerSink {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.HideCursor = false
	return &SpinnerSink{spinner: s, out: out, now: time.Now}
}

// NewSink picks the progress sink for the run; non-interactive runs stay quiet
func NewSink(nonInteractive bool) usecase.ProgressSink {
	if nonInteractive {
		return usecase.NopProgress{}
	}
	return NewSpinnerSink(os.Stderr)
}

// OnProgress updates the spinner line, finishing the previous stage when the stage changes
func (s *SpinnerSink) OnProgress(_ context.Context, event usecase.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.Stage != s.stage {
		s.finishStage()
		s.stage = event.Stage
		s.started = s.now()
	}

	if event.Spinner {
		s.spinner.Suffix = " " + s.describe(event)
		if !s.spinner.Active() {
			s.spinner.Start()
		}
		return
	}

	if s.spinner.Active() {
		s.spinner.Stop()
	}
	fmt.Fprintln(s.out, s.describe(event))
}

// Info prints an info message
func (s *SpinnerSink) Info(message string) {
	s.print(color.New(color.FgCyan), message)
}

// Error prints an error message
func (s *SpinnerSink) Error(message string) {
	s.print(color.New(color.FgRed), message)
}

// Stop halts the spinner and closes out the current stage
func (s *SpinnerSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishStage()
	s.stage = ""
}

func (s *SpinnerSink) print(c *color.Color, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasActive := s.spinner.Active()
	if wasActive {
		s.spinner.Stop()
	}
	c.Fprintln(s.out, message)
	if wasActive {
		s.spinner.Start()
	}
}

func (s *SpinnerSink) finishStage() {
	if s.spinner.Active() {
		s.spinner.Stop()
	}
	if s.stage == "" {
		return
	}
	elapsed := s.now().Sub(s.started).Round(time.Millisecond)
	fmt.Fprintf(s.out, "%s %s (%s)\n", color.GreenString("✓"), s.stage, elapsed)
}

func (s *SpinnerSink) describe(event usecase.ProgressEvent) string {
	stage := color.New(color.FgYellow).Sprint(event.Stage)
	switch {
	case event.Total > 0 && event.Current > 0:
		return fmt.Sprintf("%s [%d/%d] %s", stage, event.Current, event.Total, event.Message)
	case event.Message != "":
		return fmt.Sprintf("%s %s", stage, event.Message)
	default:
		return stage
	}
}

var _ usecase.ProgressSink = (*SpinnerSink)(nil)
