package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"pd-docgen/internal/model"
)

func (m selectModel) View() string {
	if m.width <= 0 {
		m.width = 100
	}
	if m.height <= 0 {
		m.height = 30
	}

	switch m.screen {
	case selectScreenDescription:
		return m.viewDescription()
	case selectScreenRunning:
		return m.viewRunning()
	case selectScreenResults:
		return m.viewResults()
	case selectScreenResetConfirm:
		return m.viewResetConfirm()
	default:
		return m.viewBrowse()
	}
}

func (m selectModel) viewBrowse() string {
	header := selectTitleStyle.Render("pd-docgen select") + "\n" +
		selectMutedStyle.Render("up/down: move | space: toggle | a: "+strings.ToLower(selectAllLabel(m.tally.AllSelected))+" | m: mode | e: description | g: generate | v: results | r: reset | q: quit")

	if m.width < 90 {
		body := lipgloss.JoinVertical(lipgloss.Left, m.renderProjectPanel(m.width), m.renderRunPanel(m.width))
		return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderStatusLine(m.width))
	}

	leftW := clampInt(m.width*3/5, 40, 80)
	rightW := m.width - leftW - 1
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderProjectPanel(leftW), m.renderRunPanel(rightW))
	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderStatusLine(m.width))
}

func (m selectModel) renderProjectPanel(width int) string {
	cat := m.sess.Catalog()
	sel := m.sess.Selection()
	total := cat.Len()
	maxRows := clampInt(m.height-10, 4, 24)
	start, end := listWindow(total, m.cursor, maxRows)

	lines := make([]string, 0, maxRows+3)
	lines = append(lines, fmt.Sprintf("Projects (%s)", formatSelectedCount(m.tally.Count)))
	if start > 0 {
		lines = append(lines, selectMutedStyle.Render("..."))
	}
	for i := start; i < end; i++ {
		p, _ := cat.At(i)
		mark := " "
		if sel.Has(p.ID) {
			mark = "x"
		}
		line := fmt.Sprintf("[%s] %s  %s  %s", mark, p.Name, formatWorkflowCount(p.WorkflowCount), formatCreated(p.CreatedAt))
		line = wrapOrTrim(line, clampInt(width-6, 10, width))
		if i == m.cursor {
			line = selectCurStyle.Width(clampInt(width-4, 6, width)).Render(line)
		}
		lines = append(lines, line)
	}
	if end < total {
		lines = append(lines, selectMutedStyle.Render("..."))
	}
	return selectPanelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m selectModel) renderRunPanel(width int) string {
	mode, desc := m.sess.Mode()
	lines := []string{
		"Generation",
		"",
		kv("mode", mode.Label()),
	}
	if mode.NeedsDescription() {
		lines = append(lines, kv("description", defaultIfEmpty(desc, "(required, press e)")))
	}
	lines = append(lines,
		kv("selected", fmt.Sprintf("%d of %d", m.tally.Count, m.tally.Total)),
		kv("export dir", m.exportDir),
	)
	if run := m.sess.Results().Run(); run.Total > 0 {
		lines = append(lines, "", kv("last run", fmt.Sprintf("succeeded %d, failed %d", run.Succeeded(), run.Failed())))
	}
	for i := range lines {
		lines[i] = wrapOrTrim(lines[i], clampInt(width-6, 12, width))
	}
	return selectPanelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m selectModel) renderStatusLine(width int) string {
	msg := strings.TrimSpace(m.statusMessage)
	if msg == "" {
		msg = "Tip: select projects with space, then press g to generate documentation."
	}
	style := selectMutedStyle
	lower := strings.ToLower(msg)
	switch {
	case strings.HasPrefix(lower, "error:"):
		style = selectErrorStyle
	case strings.HasPrefix(lower, "downloaded"), strings.HasPrefix(lower, "documentation generation complete"):
		style = selectOKStyle
	}
	return style.Width(width).Render(truncateRunes(msg, clampInt(width-2, 10, width)))
}

func (m selectModel) viewDescription() string {
	header := selectTitleStyle.Render("Project description")
	hints := selectMutedStyle.Render("enter: save | esc: cancel")
	body := "Used by AI-enhanced mode to give the documentation context.\n\n" + m.descInput.View()
	panel := selectPanelStyle.Width(clampInt(m.width, 40, m.width)).Render(body)
	return lipgloss.JoinVertical(lipgloss.Left, header, hints, panel, m.renderStatusLine(m.width))
}

func (m selectModel) viewRunning() string {
	header := selectTitleStyle.Render("Generating documentation")
	hints := selectMutedStyle.Render("esc/ctrl+c: stop now, the current project is marked cancelled")

	lines := []string{}
	if m.current.Total > 0 {
		lines = append(lines, fmt.Sprintf("Generating documentation for %q (%d/%d)...", m.current.Project.Name, m.current.Index, m.current.Total))
	} else {
		lines = append(lines, "Starting...")
	}
	lines = append(lines, "", m.bar.ViewAs(m.last.Percent()))
	if m.last.Total > 0 {
		lines = append(lines, selectMutedStyle.Render(m.last.Summary()))
	}
	panel := selectPanelStyle.Width(clampInt(m.width, 40, m.width)).Render(strings.Join(lines, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, header, hints, panel, m.renderStatusLine(m.width))
}

func (m selectModel) viewResults() string {
	run := m.sess.Results().Run()
	header := selectTitleStyle.Render("Results") + "  " +
		selectMutedStyle.Render(fmt.Sprintf("succeeded %d, failed %d", run.Succeeded(), run.Failed()))
	hints := selectMutedStyle.Render("up/down: move | enter/s: download selected | a: download all | b: back | r: reset | q: quit")

	maxRows := clampInt(m.height-8, 4, 24)
	start, end := listWindow(len(run.Outcomes), m.resultCursor, maxRows)
	lines := make([]string, 0, maxRows+2)
	if len(run.Outcomes) == 0 {
		lines = append(lines, selectMutedStyle.Render("No results."))
	}
	for i := start; i < end; i++ {
		line := renderResultLine(run.Outcomes[i])
		line = wrapOrTrim(line, clampInt(m.width-6, 20, m.width))
		if i == m.resultCursor {
			line = selectCurStyle.Width(clampInt(m.width-4, 6, m.width)).Render(line)
		}
		lines = append(lines, line)
	}
	panel := selectPanelStyle.Width(clampInt(m.width, 40, m.width)).Render(strings.Join(lines, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, header, hints, panel, m.renderStatusLine(m.width))
}

func renderResultLine(job model.GenerationJob) string {
	if job.Succeeded() {
		return fmt.Sprintf("[%s] %s  %s", statusBadge(job), job.ProjectName, formatBytesIEC(int64(len(job.Content))))
	}
	return fmt.Sprintf("[%s] %s: %s", statusBadge(job), job.ProjectName, job.Error)
}

func (m selectModel) viewResetConfirm() string {
	text := "Reset selection and results?\n\nThe project list stays loaded.\nDownloaded files remain on disk.\n\nPress y or Enter to confirm, n or Esc to cancel."
	boxW := clampInt(m.width-8, 36, 80)
	boxH := clampInt(m.height-6, 9, 14)
	panel := selectPanelStyle.Width(boxW).Height(boxH).Render(text)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, panel)
}
