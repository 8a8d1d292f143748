package batch

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"pd-docgen/internal/catalog"
	"pd-docgen/internal/model"
)

type fakeCall struct {
	ID          string
	Mode        model.GenerationMode
	Description string
}

type fakeGenerator struct {
	mu       sync.Mutex
	calls    []fakeCall
	inFlight int
	maxSeen  int
	fail     map[string]error
	hook     func(id string)
	// honorCtx makes a call fail with ctx.Err() once ctx is done, like an aborted HTTP request.
	honorCtx bool
}

func (g *fakeGenerator) Generate(ctx context.Context, p model.Project, mode model.GenerationMode, description string) (string, error) {
	g.mu.Lock()
	g.inFlight++
	if g.inFlight > g.maxSeen {
		g.maxSeen = g.inFlight
	}
	g.calls = append(g.calls, fakeCall{ID: p.ID, Mode: mode, Description: description})
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.inFlight--
		g.mu.Unlock()
	}()

	if g.hook != nil {
		g.hook(p.ID)
	}
	if g.honorCtx && ctx.Err() != nil {
		return "", ctx.Err()
	}
	if err := g.fail[p.ID]; err != nil {
		return "", err
	}
	return "# " + p.Name, nil
}

type netErr struct{}

func (netErr) Error() string          { return "dial tcp: connection refused" }
func (netErr) TransportFailure() bool { return true }

func testProjects() *catalog.Catalog {
	return catalog.New([]model.Project{
		{ID: "a", Name: "Alpha"},
		{ID: "b", Name: "Beta"},
		{ID: "c", Name: "Gamma"},
	})
}

func TestRunPreservesOrderAndContinuesAfterFailure(t *testing.T) {
	gen := &fakeGenerator{fail: map[string]error{"b": errors.New("failed to generate documentation: Internal Server Error (HTTP 500)")}}
	r := NewRunner(gen, testProjects(), nil)

	run, err := r.Run(context.Background(), Request{IDs: []string{"a", "b", "c"}, Mode: model.ModeRaw}, nil, nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(run.Outcomes) != 3 || run.Completed != 3 || run.Total != 3 {
		t.Fatalf("unexpected run shape: %+v", run)
	}
	wantIDs := []string{"a", "b", "c"}
	wantStatus := []model.JobStatus{model.JobSuccess, model.JobError, model.JobSuccess}
	for i, o := range run.Outcomes {
		if o.ProjectID != wantIDs[i] || o.Status != wantStatus[i] {
			t.Fatalf("outcome %d: got %s/%s want %s/%s", i, o.ProjectID, o.Status, wantIDs[i], wantStatus[i])
		}
	}
	if run.Outcomes[0].Content != "# Alpha" || run.Outcomes[1].Content != "" {
		t.Fatalf("content must be present iff success: %+v", run.Outcomes)
	}
	if !strings.Contains(run.Outcomes[1].Error, "HTTP 500") {
		t.Fatalf("expected server message to be kept, got %q", run.Outcomes[1].Error)
	}
	if run.RunID == "" || run.FinishedAt == "" {
		t.Fatalf("expected run id and finish time, got %+v", run)
	}
	if len(gen.calls) != 3 {
		t.Fatalf("expected exactly one call per item with no retry, got %d", len(gen.calls))
	}
}

func TestRunOrderFollowsRequestNotCatalog(t *testing.T) {
	gen := &fakeGenerator{}
	r := NewRunner(gen, testProjects(), nil)

	run, err := r.Run(context.Background(), Request{IDs: []string{"c", "a"}}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	got := []string{run.Outcomes[0].ProjectID, run.Outcomes[1].ProjectID}
	if !slices.Equal(got, []string{"c", "a"}) {
		t.Fatalf("expected request order [c a], got %v", got)
	}
}

func TestProgressCompletedIsStrictSequence(t *testing.T) {
	gen := &fakeGenerator{fail: map[string]error{"a": netErr{}}}
	r := NewRunner(gen, testProjects(), nil)

	var completed []int
	var starts []int
	_, err := r.Run(context.Background(), Request{IDs: []string{"a", "b", "c"}},
		func(s ItemStart) { starts = append(starts, s.Index) },
		func(p Progress) {
			completed = append(completed, p.Completed)
			if len(p.Outcomes) != p.Completed {
				t.Errorf("outcomes length %d != completed %d", len(p.Outcomes), p.Completed)
			}
			if p.Total != 3 {
				t.Errorf("unexpected total %d", p.Total)
			}
		})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(completed, []int{1, 2, 3}) {
		t.Fatalf("expected completed 1,2,3, got %v", completed)
	}
	if !slices.Equal(starts, []int{1, 2, 3}) {
		t.Fatalf("expected start hooks 1,2,3, got %v", starts)
	}
}

func TestRunIsStrictlySequential(t *testing.T) {
	gen := &fakeGenerator{}
	r := NewRunner(gen, testProjects(), nil)
	if _, err := r.Run(context.Background(), Request{IDs: []string{"a", "b", "c"}}, nil, nil); err != nil {
		t.Fatal(err)
	}
	if gen.maxSeen != 1 {
		t.Fatalf("expected at most one in-flight call, saw %d", gen.maxSeen)
	}
}

func TestEnhancedWithoutDescriptionFailsBeforeAnyCall(t *testing.T) {
	gen := &fakeGenerator{}
	r := NewRunner(gen, testProjects(), nil)

	for _, desc := range []string{"", "   "} {
		run, err := r.Run(context.Background(), Request{IDs: []string{"a"}, Mode: model.ModeEnhanced, Description: desc}, nil, nil)
		if !errors.Is(err, model.ErrValidation) {
			t.Fatalf("expected ErrValidation for %q, got %v", desc, err)
		}
		if len(run.Outcomes) != 0 {
			t.Fatalf("expected zero jobs, got %d", len(run.Outcomes))
		}
	}
	if len(gen.calls) != 0 {
		t.Fatalf("expected no remote calls, got %d", len(gen.calls))
	}
}

func TestStartRejectsEmptySelectionAndUnknownMode(t *testing.T) {
	r := NewRunner(&fakeGenerator{}, testProjects(), nil)
	if _, err := r.Start(Request{}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty ids, got %v", err)
	}
	if _, err := r.Start(Request{IDs: []string{"a"}, Mode: "fancy"}); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown mode, got %v", err)
	}
}

func TestEnhancedPassesTrimmedDescriptionAndRawDropsIt(t *testing.T) {
	gen := &fakeGenerator{}
	r := NewRunner(gen, testProjects(), nil)

	if _, err := r.Run(context.Background(), Request{IDs: []string{"a"}, Mode: model.ModeEnhanced, Description: "  CRM sync  "}, nil, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Run(context.Background(), Request{IDs: []string{"b"}, Mode: model.ModeRaw, Description: "ignored"}, nil, nil); err != nil {
		t.Fatal(err)
	}
	if gen.calls[0].Description != "CRM sync" || gen.calls[0].Mode != model.ModeEnhanced {
		t.Fatalf("unexpected enhanced call: %+v", gen.calls[0])
	}
	if gen.calls[1].Description != "" || gen.calls[1].Mode != model.ModeRaw {
		t.Fatalf("unexpected raw call: %+v", gen.calls[1])
	}
}

func TestTransportFailureGetsNetworkHint(t *testing.T) {
	gen := &fakeGenerator{fail: map[string]error{"a": netErr{}}}
	run, err := NewRunner(gen, testProjects(), nil).Run(context.Background(), Request{IDs: []string{"a"}}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(run.Outcomes[0].Error, "network error") {
		t.Fatalf("expected network hint, got %q", run.Outcomes[0].Error)
	}
}

func TestUnknownProjectRecordedAsError(t *testing.T) {
	gen := &fakeGenerator{}
	run, err := NewRunner(gen, testProjects(), nil).Run(context.Background(), Request{IDs: []string{"a", "ghost"}}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if run.Outcomes[1].Status != model.JobError || run.Outcomes[1].ProjectID != "ghost" {
		t.Fatalf("expected error outcome for unknown id, got %+v", run.Outcomes[1])
	}
	if len(gen.calls) != 1 {
		t.Fatalf("unknown id must not reach the generator, calls=%d", len(gen.calls))
	}
}

func TestStepsAreLazyAndResumable(t *testing.T) {
	gen := &fakeGenerator{}
	b, err := NewRunner(gen, testProjects(), nil).Start(Request{IDs: []string{"a", "b", "c"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(gen.calls) != 0 {
		t.Fatalf("start must not issue calls, got %d", len(gen.calls))
	}

	for p := range b.Steps(context.Background()) {
		if p.Completed == 1 {
			break
		}
	}
	if len(gen.calls) != 1 || b.Result().Completed != 1 {
		t.Fatalf("expected one call after breaking at first step, calls=%d", len(gen.calls))
	}

	var rest []int
	for p := range b.Steps(context.Background()) {
		rest = append(rest, p.Completed)
	}
	if !slices.Equal(rest, []int{2, 3}) {
		t.Fatalf("expected resume at 2,3, got %v", rest)
	}
}

func TestCancelDuringCallRecordsCancelledFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gen := &fakeGenerator{honorCtx: true, hook: func(id string) {
		if id == "b" {
			cancel()
		}
	}}

	var progress []Progress
	run, err := NewRunner(gen, testProjects(), nil).Run(ctx, Request{IDs: []string{"a", "b", "c"}}, nil,
		func(p Progress) { progress = append(progress, p) })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if run.Total != 3 || run.Completed != 2 || run.Completed != len(run.Outcomes) {
		t.Fatalf("expected 2 recorded outcomes of 3, got completed=%d outcomes=%d", run.Completed, len(run.Outcomes))
	}
	last := run.Outcomes[1]
	if last.ProjectID != "b" || last.Status != model.JobError {
		t.Fatalf("expected b recorded as error, got %+v", last)
	}
	if !strings.HasPrefix(last.Error, "cancelled: ") {
		t.Fatalf("expected cancelled prefix, got %q", last.Error)
	}
	if run.Outcomes[0].Status != model.JobSuccess {
		t.Fatalf("first item must keep its success, got %+v", run.Outcomes[0])
	}
	if len(gen.calls) != 2 {
		t.Fatalf("expected no call after the cancelled one, got %d calls", len(gen.calls))
	}
	if len(progress) != 2 || progress[1].Current.ProjectID != "b" {
		t.Fatalf("expected progress for the cancelled item, got %d events", len(progress))
	}
}

func TestLongDescriptionIsAccepted(t *testing.T) {
	gen := &fakeGenerator{}
	desc := strings.Repeat("sync leads between HubSpot and Slack. ", 500)

	run, err := NewRunner(gen, testProjects(), nil).Run(context.Background(),
		Request{IDs: []string{"a"}, Mode: model.ModeEnhanced, Description: desc}, nil, nil)
	if err != nil {
		t.Fatalf("expected long description to be accepted, got %v", err)
	}
	if run.Succeeded() != 1 || gen.calls[0].Description != strings.TrimSpace(desc) {
		t.Fatalf("expected the full trimmed description to reach the API")
	}
}

func TestCancelStopsBetweenItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gen := &fakeGenerator{hook: func(id string) {
		if id == "b" {
			cancel()
		}
	}}

	run, err := NewRunner(gen, testProjects(), nil).Run(ctx, Request{IDs: []string{"a", "b", "c"}}, nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if run.Completed != 2 || len(run.Outcomes) != 2 || run.Total != 3 {
		t.Fatalf("expected partial run of 2/3, got completed=%d outcomes=%d", run.Completed, len(run.Outcomes))
	}
	if len(gen.calls) != 2 {
		t.Fatalf("expected no call after cancellation, got %d", len(gen.calls))
	}
}
