package ui

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
)

// Spinner wraps a terminal spinner shown while waiting on the model.
type Spinner struct {
	s    *spinner.Spinner
	once sync.Once
}

// NewSpinner creates a spinner with the given message.
func NewSpinner(msg string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = "  " + msg
	s.Color("cyan")
	return &Spinner{s: s}
}

// Start begins the spinner animation.
func (sp *Spinner) Start() {
	sp.s.Start()
}

// Stop halts the spinner and clears the line. Safe to call repeatedly.
func (sp *Spinner) Stop() {
	sp.once.Do(sp.s.Stop)
}

// StopOnWrite wraps w so the spinner is stopped just before the first
// byte of streamed output, keeping the animation from mixing with the
// response text.
func (sp *Spinner) StopOnWrite(w io.Writer) io.Writer {
	return &stopWriter{sp: sp, w: w}
}

type stopWriter struct {
	sp *Spinner
	w  io.Writer
}

func (s *stopWriter) Write(p []byte) (int, error) {
	if len(p) > 0 {
		s.sp.Stop()
	}
	return s.w.Write(p)
}
