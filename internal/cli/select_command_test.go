package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"pd-docgen/internal/model"
	"pd-docgen/internal/pdapi"
	"pd-docgen/internal/session"
)

func newTestSelectModel(t *testing.T) (selectModel, *session.Session, *fakeAPI, string) {
	t.Helper()
	return newTestSelectModelWithAPI(t, newFakeAPI(t))
}

func newTestSelectModelWithAPI(t *testing.T, api *fakeAPI) (selectModel, *session.Session, *fakeAPI, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "docs")
	sess := session.New(session.Options{
		Dial: func(creds pdapi.Credentials) (session.Client, error) {
			return pdapi.New(pdapi.Options{BaseURL: api.srv.URL, Credentials: creds, HTTPClient: api.srv.Client()})
		},
		ExportDir:      dir,
		ExportInterval: time.Millisecond,
	})
	if _, err := sess.Connect(context.Background(), pdapi.Credentials{APIKey: "k"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	m := newSelectModel(context.Background(), sess, dir)
	t.Cleanup(m.cancel)
	return m, sess, api, dir
}

func press(t *testing.T, m selectModel, key tea.KeyMsg) (selectModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(key)
	out, ok := next.(selectModel)
	if !ok {
		t.Fatalf("unexpected model type %T", next)
	}
	return out, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// drain executes cmd and feeds its messages back until the chain ends.
func drain(t *testing.T, m selectModel, cmd tea.Cmd) selectModel {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for cmd != nil {
		if time.Now().After(deadline) {
			t.Fatal("command chain did not finish")
		}
		msg := cmd()
		if msg == nil {
			return m
		}
		next, nextCmd := m.Update(msg)
		m = next.(selectModel)
		cmd = nextCmd
	}
	return m
}

// drainUntil feeds messages from cmd until stop reports true for one of them.
func drainUntil(t *testing.T, m selectModel, cmd tea.Cmd, stop func(tea.Msg) bool) (selectModel, tea.Cmd) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for cmd != nil {
		if time.Now().After(deadline) {
			t.Fatal("expected message never arrived")
		}
		msg := cmd()
		if msg == nil {
			break
		}
		next, nextCmd := m.Update(msg)
		m = next.(selectModel)
		cmd = nextCmd
		if stop(msg) {
			return m, cmd
		}
	}
	t.Fatal("command chain ended before the expected message")
	return m, nil
}

func TestSelectToggleAndToggleAll(t *testing.T) {
	m, sess, _, _ := newTestSelectModel(t)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	if !sess.Selection().Has("p1") || m.tally.Count != 1 {
		t.Fatalf("expected p1 selected, tally=%+v", *m.tally)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	if m.cursor != 1 || !sess.Selection().Has("p2") {
		t.Fatalf("expected p2 selected at cursor 1, cursor=%d", m.cursor)
	}

	m, _ = press(t, m, runes("a"))
	if !m.tally.AllSelected || m.tally.Count != 3 {
		t.Fatalf("expected all selected, tally=%+v", *m.tally)
	}
	if !strings.Contains(m.View(), "deselect all") {
		t.Fatalf("expected deselect hint in view:\n%s", m.View())
	}

	m, _ = press(t, m, runes("a"))
	if m.tally.Count != 0 || sess.Selection().Count() != 0 {
		t.Fatalf("expected nothing selected, tally=%+v", *m.tally)
	}
}

func TestSelectModeSwitchAndDescription(t *testing.T) {
	m, sess, _, _ := newTestSelectModel(t)

	m, _ = press(t, m, runes("m"))
	if mode, _ := sess.Mode(); mode != model.ModeEnhanced {
		t.Fatalf("expected enhanced mode, got %q", mode)
	}

	m, _ = press(t, m, runes("e"))
	if m.screen != selectScreenDescription {
		t.Fatalf("expected description screen, got %v", m.screen)
	}
	m, _ = press(t, m, runes("CRM sync"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.screen != selectScreenBrowse {
		t.Fatalf("expected browse screen after save, got %v", m.screen)
	}
	if _, desc := sess.Mode(); desc != "CRM sync" {
		t.Fatalf("expected description saved, got %q", desc)
	}

	m, _ = press(t, m, runes("e"))
	m, _ = press(t, m, runes(" extra"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if _, desc := sess.Mode(); desc != "CRM sync" {
		t.Fatalf("esc must keep the previous description, got %q", desc)
	}
}

func TestSelectRunWithoutDescriptionStaysOnBrowse(t *testing.T) {
	m, _, api, _ := newTestSelectModel(t)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	m, _ = press(t, m, runes("m"))
	m, cmd := press(t, m, runes("g"))
	m = drain(t, m, cmd)

	if m.screen != selectScreenBrowse {
		t.Fatalf("expected browse screen, got %v", m.screen)
	}
	if !strings.HasPrefix(m.statusMessage, "error:") {
		t.Fatalf("expected error status, got %q", m.statusMessage)
	}
	if api.calls.Load() != 0 {
		t.Fatalf("expected no API calls, got %d", api.calls.Load())
	}
}

func TestSelectRunThenExportAll(t *testing.T) {
	m, sess, _, dir := newTestSelectModel(t)

	m, _ = press(t, m, runes("a"))
	m, cmd := press(t, m, runes("g"))
	if m.screen != selectScreenRunning {
		t.Fatalf("expected running screen, got %v", m.screen)
	}
	m = drain(t, m, cmd)

	if m.screen != selectScreenResults {
		t.Fatalf("expected results screen, got %v", m.screen)
	}
	if m.statusMessage != "Documentation generation complete!" {
		t.Fatalf("unexpected status %q", m.statusMessage)
	}
	run := sess.Results().Run()
	if run.Total != 3 || run.Succeeded() != 2 || run.Failed() != 1 {
		t.Fatalf("unexpected run: total=%d ok=%d failed=%d", run.Total, run.Succeeded(), run.Failed())
	}
	view := m.View()
	for _, want := range []string{"[Success] Lead Router", "[Failed] Broken"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in results view:\n%s", want, view)
		}
	}

	m, cmd = press(t, m, runes("a"))
	m = drain(t, m, cmd)
	if !strings.HasPrefix(m.statusMessage, "downloaded 2 file(s)") {
		t.Fatalf("unexpected export status %q", m.statusMessage)
	}
	for _, name := range []string{"lead_router_documentation.md", "billing_sync_documentation.md"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
}

func TestSelectExportOneFailedResult(t *testing.T) {
	m, _, _, _ := newTestSelectModel(t)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	m, cmd := press(t, m, runes("g"))
	m = drain(t, m, cmd)

	m, cmd = press(t, m, runes("s"))
	m = drain(t, m, cmd)
	if !strings.HasPrefix(m.statusMessage, "error:") {
		t.Fatalf("expected export error for failed result, got %q", m.statusMessage)
	}

	m, cmd = press(t, m, runes("a"))
	m = drain(t, m, cmd)
	if m.statusMessage != "No successful documentation to download." {
		t.Fatalf("unexpected status %q", m.statusMessage)
	}
}

func TestSelectResetRequiresConfirmation(t *testing.T) {
	m, sess, _, _ := newTestSelectModel(t)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	m, cmd := press(t, m, runes("g"))
	m = drain(t, m, cmd)

	m, _ = press(t, m, runes("r"))
	if m.screen != selectScreenResetConfirm {
		t.Fatalf("expected reset confirm, got %v", m.screen)
	}
	m, _ = press(t, m, runes("n"))
	if m.screen != selectScreenResults || sess.Results().Len() != 1 {
		t.Fatalf("cancel must keep results, screen=%v len=%d", m.screen, sess.Results().Len())
	}

	m, _ = press(t, m, runes("r"))
	m, _ = press(t, m, runes("y"))
	if m.screen != selectScreenBrowse {
		t.Fatalf("expected browse after reset, got %v", m.screen)
	}
	if sess.Results().Len() != 0 || sess.Selection().Count() != 0 || m.tally.Count != 0 {
		t.Fatalf("expected cleared state")
	}
	if sess.Catalog().Len() != 3 {
		t.Fatalf("reset must keep the catalog")
	}
}

func TestSelectViewNarrowAndWide(t *testing.T) {
	m, _, _, _ := newTestSelectModel(t)
	for _, size := range []tea.WindowSizeMsg{{Width: 70, Height: 24}, {Width: 140, Height: 40}} {
		next, _ := m.Update(size)
		view := next.(selectModel).View()
		for _, want := range []string{"Projects (0 projects selected)", "Lead Router", "mode: raw documentation"} {
			if !strings.Contains(view, want) {
				t.Fatalf("width %d: expected %q in view:\n%s", size.Width, want, view)
			}
		}
	}
}

func TestSelectStoppedRunKeepsSuccessesExportable(t *testing.T) {
	m, sess, _, dir := newTestSelectModelWithAPI(t, newHoldingFakeAPI(t, "p3"))

	m, _ = press(t, m, runes("a"))
	m, cmd := press(t, m, runes("g"))
	m, cmd = drainUntil(t, m, cmd, func(msg tea.Msg) bool {
		p, ok := msg.(runStartMsg)
		return ok && p.Project.ID == "p3"
	})
	if m.screen != selectScreenRunning {
		t.Fatalf("expected running screen, got %v", m.screen)
	}
	if !strings.Contains(m.View(), "the current project is marked cancelled") {
		t.Fatalf("expected stop hint in view:\n%s", m.View())
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	m = drain(t, m, cmd)

	if m.screen != selectScreenResults {
		t.Fatalf("expected results screen, got %v", m.screen)
	}
	if m.statusMessage != "stopped after 3/3 projects" {
		t.Fatalf("unexpected status %q", m.statusMessage)
	}
	run := sess.Results().Run()
	if len(run.Outcomes) != 3 || run.Succeeded() != 1 {
		t.Fatalf("unexpected stored run: outcomes=%d ok=%d", len(run.Outcomes), run.Succeeded())
	}
	if got := run.Outcomes[2].Error; !strings.HasPrefix(got, "cancelled: ") {
		t.Fatalf("expected in-flight project marked cancelled, got %q", got)
	}
	if err := m.ctx.Err(); err != nil {
		t.Fatalf("stopping a run must not end the picker context: %v", err)
	}

	m, cmd = press(t, m, runes("a"))
	m = drain(t, m, cmd)
	if !strings.HasPrefix(m.statusMessage, "downloaded 1 file(s)") {
		t.Fatalf("unexpected export-all status %q", m.statusMessage)
	}

	m, cmd = press(t, m, runes("s"))
	m = drain(t, m, cmd)
	want := "downloaded " + filepath.Join(dir, "lead_router_documentation.md")
	if m.statusMessage != want {
		t.Fatalf("expected %q, got %q", want, m.statusMessage)
	}
}
