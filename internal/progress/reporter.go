// Package progress shows activity while the CLI waits on the diagnostic API.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Reporter gives feedback for a single long-running call.
type Reporter interface {
	Start(description string)
	Finish(message string)
}

// NewReporter returns a Spinner writing to w, or a LineReporter when running
// under CI or when quiet is set, so logs stay free of control sequences.
func NewReporter(w io.Writer, quiet bool) Reporter {
	if quiet || os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &LineReporter{w: w}
	}
	return &Spinner{w: w}
}

// Spinner animates an indeterminate progress bar.
type Spinner struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func (s *Spinner) Start(description string) {
	s.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(s.w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	_ = s.bar.RenderBlank()
}

func (s *Spinner) Finish(message string) {
	if s.bar == nil {
		return
	}
	_ = s.bar.Finish()
	s.bar = nil
	if message != "" {
		fmt.Fprintln(s.w, message)
	}
}

// LineReporter prints one line per event.
type LineReporter struct {
	w io.Writer
}

func (r *LineReporter) Start(description string) {
	fmt.Fprintf(r.w, "%s...\n", description)
}

func (r *LineReporter) Finish(message string) {
	if message != "" {
		fmt.Fprintln(r.w, message)
	}
}
