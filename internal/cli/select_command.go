package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pd-docgen/internal/batch"
	"pd-docgen/internal/catalog"
	"pd-docgen/internal/config"
	"pd-docgen/internal/export"
	"pd-docgen/internal/session"
)

type selectScreen int

const (
	selectScreenBrowse selectScreen = iota
	selectScreenDescription
	selectScreenRunning
	selectScreenResults
	selectScreenResetConfirm
)

// selectionTally mirrors the live selection counters; it is updated by a
// selection subscription so the view never has to recount.
type selectionTally struct {
	catalog.SelectionChange
}

type selectModel struct {
	sess   *session.Session
	ctx    context.Context
	cancel context.CancelFunc

	screen       selectScreen
	resetReturn  selectScreen
	cursor       int
	resultCursor int
	width        int
	height       int

	tally     *selectionTally
	descInput textinput.Model
	bar       progress.Model

	events    <-chan tea.Msg
	stopRun   context.CancelFunc
	current   batch.ItemStart
	last      batch.Progress
	exportDir string

	statusMessage string
}

type runStartMsg batch.ItemStart

type runProgressMsg batch.Progress

type runDoneMsg struct {
	completed int
	total     int
	err       error
}

type exportDoneMsg struct {
	message string
	err     error
}

var (
	selectTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	selectMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	selectErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	selectOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	selectPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	selectCurStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
)

func runSelect(args []string) error {
	fs := flag.NewFlagSet("select", flag.ContinueOnError)
	conn := bindConnectFlags(fs)
	mode := fs.String("mode", "", "initial generation mode: raw|enhanced")
	exportDir := fs.String("export-dir", "", "directory for exported Markdown files")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !stdinIsTTY() {
		return errors.New("select requires an interactive terminal (TTY)")
	}

	fmt.Println("Loading projects...")
	sess, settings, err := connect(context.Background(), conn, config.Overrides{Mode: *mode, ExportDir: *exportDir})
	if err != nil {
		return err
	}
	if err := sess.SetMode(settings.GenerationMode(), ""); err != nil {
		return err
	}

	m := newSelectModel(context.Background(), sess, settings.ExportDir)
	defer m.cancel()
	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return errors.New("select requires an interactive terminal (TTY)")
		}
		return err
	}
	if _, ok := finalModel.(selectModel); ok {
		if run := sess.Results().Run(); run.Total > 0 {
			fmt.Printf("last run %s: succeeded %d, failed %d\n", run.RunID, run.Succeeded(), run.Failed())
		}
	}
	return nil
}

func newSelectModel(parent context.Context, sess *session.Session, exportDir string) selectModel {
	ctx, cancel := context.WithCancel(parent)
	tally := &selectionTally{}
	sel := sess.Selection()
	tally.Total = sess.Catalog().Len()
	tally.Count = sel.Count()
	sel.Subscribe(func(c catalog.SelectionChange) {
		tally.SelectionChange = c
	})

	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "Describe what this project does, e.g. CRM sync between HubSpot and Slack"
	input.CharLimit = 0
	input.Width = 60
	_, desc := sess.Mode()
	input.SetValue(desc)

	return selectModel{
		sess:      sess,
		ctx:       ctx,
		cancel:    cancel,
		screen:    selectScreenBrowse,
		tally:     tally,
		descInput: input,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		exportDir: exportDir,
	}
}

func (m selectModel) Init() tea.Cmd {
	return nil
}

func (m selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.descInput.Width = clampInt(m.width-8, 20, 120)
		m.bar.Width = clampInt(m.width-12, 20, 80)
		return m, nil
	case runStartMsg:
		m.current = batch.ItemStart(msg)
		return m, waitForRunEvent(m.events)
	case runProgressMsg:
		m.last = batch.Progress(msg)
		return m, waitForRunEvent(m.events)
	case runDoneMsg:
		m.events = nil
		if m.stopRun != nil {
			m.stopRun()
			m.stopRun = nil
		}
		return m.finishRun(msg), nil
	case exportDoneMsg:
		switch {
		case isNothingToExport(msg.err):
			m.statusMessage = "No successful documentation to download."
		case msg.err != nil:
			m.statusMessage = "error: " + msg.err.Error()
		default:
			m.statusMessage = msg.message
		}
		return m, nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch m.screen {
	case selectScreenBrowse:
		return m.updateBrowse(keyMsg)
	case selectScreenDescription:
		return m.updateDescription(keyMsg)
	case selectScreenRunning:
		return m.updateRunning(keyMsg)
	case selectScreenResults:
		return m.updateResults(keyMsg)
	case selectScreenResetConfirm:
		return m.updateResetConfirm(keyMsg)
	default:
		return m, nil
	}
}

func (m selectModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	total := m.sess.Catalog().Len()
	switch msg.String() {
	case "ctrl+c", "q":
		m.cancel()
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < total-1 {
			m.cursor++
		}
	case " ", "space":
		p, ok := m.sess.Catalog().At(m.cursor)
		if !ok {
			return m, nil
		}
		if _, err := m.sess.Toggle(p.ID); err != nil {
			m.statusMessage = "error: " + err.Error()
		}
	case "a":
		if err := m.sess.ToggleAll(); err != nil {
			m.statusMessage = "error: " + err.Error()
		}
	case "m":
		mode, desc := m.sess.Mode()
		if err := m.sess.SetMode(mode.Next(), desc); err != nil {
			m.statusMessage = "error: " + err.Error()
			return m, nil
		}
		m.statusMessage = "mode: " + mode.Next().Label()
	case "e":
		m.screen = selectScreenDescription
		_, desc := m.sess.Mode()
		m.descInput.SetValue(desc)
		m.descInput.CursorEnd()
		return m, m.descInput.Focus()
	case "enter", "g":
		return m.startRun()
	case "v":
		if m.sess.Results().Len() == 0 {
			m.statusMessage = "no results yet: press g to generate"
			return m, nil
		}
		m.screen = selectScreenResults
	case "r":
		m.resetReturn = selectScreenBrowse
		m.screen = selectScreenResetConfirm
	}
	return m, nil
}

func (m selectModel) updateDescription(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.descInput.Blur()
		m.screen = selectScreenBrowse
		m.statusMessage = "description unchanged"
		return m, nil
	case "enter":
		mode, _ := m.sess.Mode()
		value := strings.TrimSpace(m.descInput.Value())
		if err := m.sess.SetMode(mode, value); err != nil {
			m.statusMessage = "error: " + err.Error()
			return m, nil
		}
		m.descInput.Blur()
		m.screen = selectScreenBrowse
		m.statusMessage = "description saved"
		return m, nil
	}
	var cmd tea.Cmd
	m.descInput, cmd = m.descInput.Update(msg)
	return m, cmd
}

func (m selectModel) updateRunning(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		if m.stopRun != nil {
			m.stopRun()
		}
		m.statusMessage = "stopping: the current project will be marked cancelled"
	}
	return m, nil
}

func (m selectModel) updateResults(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	total := m.sess.Results().Len()
	switch msg.String() {
	case "ctrl+c", "q":
		m.cancel()
		return m, tea.Quit
	case "up", "k":
		if m.resultCursor > 0 {
			m.resultCursor--
		}
	case "down", "j":
		if m.resultCursor < total-1 {
			m.resultCursor++
		}
	case "enter", "s":
		return m, exportOneCmd(m.ctx, m.sess, m.resultCursor)
	case "a":
		m.statusMessage = "downloading..."
		return m, exportAllCmd(m.ctx, m.sess, m.exportDir)
	case "b", "esc":
		m.screen = selectScreenBrowse
	case "r":
		m.resetReturn = selectScreenResults
		m.screen = selectScreenResetConfirm
	}
	return m, nil
}

func (m selectModel) updateResetConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc", "n":
		m.screen = m.resetReturn
		m.statusMessage = "reset cancelled"
	case "y", "enter":
		if err := m.sess.Reset(true); err != nil {
			m.statusMessage = "error: " + err.Error()
			m.screen = m.resetReturn
			return m, nil
		}
		m.descInput.SetValue("")
		m.resultCursor = 0
		m.last = batch.Progress{}
		m.screen = selectScreenBrowse
		m.statusMessage = "selection and results cleared"
	}
	return m, nil
}

func (m selectModel) startRun() (tea.Model, tea.Cmd) {
	// a stopped run cancels only its own context; exports keep using m.ctx
	ctx, stop := context.WithCancel(m.ctx)
	events := make(chan tea.Msg, 4)
	sess := m.sess
	go func() {
		defer close(events)
		run, err := sess.RunBatch(ctx,
			func(s batch.ItemStart) { events <- runStartMsg(s) },
			func(p batch.Progress) { events <- runProgressMsg(p) },
		)
		events <- runDoneMsg{completed: run.Completed, total: run.Total, err: err}
	}()
	m.events = events
	m.stopRun = stop
	m.current = batch.ItemStart{}
	m.last = batch.Progress{}
	m.screen = selectScreenRunning
	m.statusMessage = ""
	return m, waitForRunEvent(events)
}

func (m selectModel) finishRun(msg runDoneMsg) selectModel {
	switch {
	case msg.err == nil:
		m.screen = selectScreenResults
		m.resultCursor = 0
		m.statusMessage = "Documentation generation complete!"
	case msg.total == 0:
		// rejected before any call
		m.screen = selectScreenBrowse
		m.statusMessage = "error: " + msg.err.Error()
	default:
		m.screen = selectScreenResults
		m.resultCursor = 0
		m.statusMessage = fmt.Sprintf("stopped after %d/%d projects", msg.completed, msg.total)
	}
	return m
}

func waitForRunEvent(events <-chan tea.Msg) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

func exportOneCmd(ctx context.Context, sess *session.Session, index int) tea.Cmd {
	return func() tea.Msg {
		res, err := sess.ExportOne(ctx, index)
		if err != nil {
			return exportDoneMsg{err: err}
		}
		return exportDoneMsg{message: "downloaded " + res.Location}
	}
}

func exportAllCmd(ctx context.Context, sess *session.Session, dir string) tea.Cmd {
	return func() tea.Msg {
		pending, err := sess.ExportAll(ctx)
		if err != nil {
			return exportDoneMsg{err: err}
		}
		exported, err := pending.Wait()
		if err != nil {
			return exportDoneMsg{err: err}
		}
		return exportDoneMsg{message: fmt.Sprintf("downloaded %d file(s) to %s", len(exported), dir)}
	}
}

func isNothingToExport(err error) bool {
	return errors.Is(err, export.ErrNothingToExport)
}
