package batch

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"pd-docgen/internal/model"
)

// LineReporter renders a single linear progress narrative for one batch.
// In live mode the "generating" line is rewritten in place.
type LineReporter struct {
	w    io.Writer
	live bool

	mu      sync.Mutex
	pending bool
}

func NewLineReporter(w io.Writer, live bool) *LineReporter {
	return &LineReporter{w: w, live: live}
}

func (r *LineReporter) Start(s ItemStart) {
	r.mu.Lock()
	defer r.mu.Unlock()
	line := fmt.Sprintf("Generating documentation for %q (%d/%d)...", s.Project.Name, s.Index, s.Total)
	if r.live {
		fmt.Fprintf(r.w, "\r\033[2K%s", line)
		r.pending = true
		return
	}
	fmt.Fprintln(r.w, line)
}

func (r *LineReporter) Progress(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending {
		fmt.Fprint(r.w, "\r\033[2K")
		r.pending = false
	}
	fmt.Fprintln(r.w, renderStep(p))
}

func (r *LineReporter) Finish(run model.BatchRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending {
		fmt.Fprint(r.w, "\r\033[2K")
		r.pending = false
	}
	if run.Done() {
		fmt.Fprintf(r.w, "Documentation generation complete! succeeded %d, failed %d\n", run.Succeeded(), run.Failed())
		return
	}
	fmt.Fprintf(r.w, "Documentation generation stopped after %d/%d (succeeded %d, failed %d)\n", run.Completed, run.Total, run.Succeeded(), run.Failed())
}

// Summary is the one-line rendering of a finished item used by every front end.
func (p Progress) Summary() string {
	return renderStep(p)
}

func renderStep(p Progress) string {
	job := p.Current
	parts := []string{fmt.Sprintf("[%d/%d]", p.Completed, p.Total)}
	if job.Succeeded() {
		parts = append(parts, "done ", truncateName(job.ProjectName, 52))
	} else {
		parts = append(parts, "fail ", truncateName(job.ProjectName, 52)+": "+job.Error)
	}
	if eta := estimateRemaining(p.Elapsed, p.Completed, p.Total); eta != "" {
		parts = append(parts, "| eta ~ "+eta)
	}
	return strings.Join(parts, " ")
}

// estimateRemaining extrapolates the average per-item duration over the items left.
func estimateRemaining(elapsed time.Duration, completed, total int) string {
	if completed <= 0 || total <= completed || elapsed <= 0 {
		return ""
	}
	perItem := elapsed.Seconds() / float64(completed)
	return formatETASeconds(perItem * float64(total-completed))
}

func formatETASeconds(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	secs := int64(math.Round(seconds))
	if secs < 60 {
		return "<1m"
	}
	minutes := secs / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	hours := minutes / 60
	remMinutes := minutes % 60
	if remMinutes == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, remMinutes)
}

func truncateName(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
