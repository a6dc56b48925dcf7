package cliui

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// ProgressSink reports the lifecycle of a long-running step (e.g.
// "pushing branch", "waiting for the API Gateway") to the terminal.
type ProgressSink interface {
	Start(label string)
	Stop(finalMsg string)
}

// SpinnerProgressSink is the default ProgressSink, driving a
// bubbles/spinner.Model frame-by-frame on a ticker rather than a full
// bubbletea.Program — the orchestrator only needs a single in-place
// status line, not a managed TUI, so running the spinner's model
// directly avoids a mismatched dependency on tea.Program's event loop
// for something this small.
type SpinnerProgressSink struct {
	model  spinner.Model
	out    *os.File
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSpinnerProgressSink builds the default spinner-backed sink,
// writing to stderr so spinner frames never pollute piped stdout.
func NewSpinnerProgressSink() *SpinnerProgressSink {
	m := spinner.New()
	m.Spinner = spinner.Dot
	return &SpinnerProgressSink{model: m, out: os.Stderr}
}

// Start begins rendering label with a cycling spinner until Stop is
// called.
func (s *SpinnerProgressSink) Start(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(ctx, label)
}

func (s *SpinnerProgressSink) run(ctx context.Context, label string) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.model.Spinner.FPS)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updated, _ := s.model.Update(spinner.TickMsg{})
			s.model = updated
			fmt.Fprintf(s.out, "\r%s %s", s.model.View(), label)
		}
	}
}

// Stop halts the spinner and prints finalMsg on its own line.
func (s *SpinnerProgressSink) Stop(finalMsg string) {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		s.wg.Wait()
	}
	fmt.Fprintf(s.out, "\r%s\n", finalMsg)
}
