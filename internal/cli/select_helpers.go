package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"pd-docgen/internal/model"
)

func kv(k, v string) string {
	return fmt.Sprintf("%s: %s", k, v)
}

func listWindow(total, cursor, maxRows int) (int, int) {
	if total <= maxRows {
		return 0, total
	}
	half := maxRows / 2
	start := cursor - half
	if start < 0 {
		start = 0
	}
	end := start + maxRows
	if end > total {
		end = total
		start = end - maxRows
	}
	return start, end
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}

func wrapOrTrim(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	return truncateRunes(s, width)
}

func clampInt(v, minV, maxV int) int {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

func defaultIfEmpty(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func formatWorkflowCount(n int) string {
	if n == 1 {
		return "1 workflow"
	}
	return fmt.Sprintf("%d workflows", n)
}

func formatCreated(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("Jan 2, 2006")
}

func formatSelectedCount(n int) string {
	if n == 1 {
		return "1 project selected"
	}
	return fmt.Sprintf("%d projects selected", n)
}

func statusBadge(job model.GenerationJob) string {
	if job.Succeeded() {
		return "Success"
	}
	return "Failed"
}

func selectAllLabel(allSelected bool) string {
	if allSelected {
		return "Deselect All"
	}
	return "Select All"
}
