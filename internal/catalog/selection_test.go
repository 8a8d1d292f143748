package catalog

import (
	"slices"
	"testing"
	"time"

	"pd-docgen/internal/model"
)

func testCatalog() *Catalog {
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return New([]model.Project{
		{ID: "a", Name: "Alpha", WorkflowCount: 1, CreatedAt: created},
		{ID: "b", Name: "Beta", WorkflowCount: 0, CreatedAt: created},
		{ID: "c", Name: "Gamma", WorkflowCount: 7, CreatedAt: created},
	})
}

func TestCatalogSkipsDuplicateAndBlankIDs(t *testing.T) {
	c := New([]model.Project{
		{ID: "a", Name: "first"},
		{ID: " ", Name: "blank"},
		{ID: "a", Name: "second"},
		{ID: "b", Name: "other"},
	})
	if c.Len() != 2 {
		t.Fatalf("expected 2 projects, got %d", c.Len())
	}
	p, ok := c.Lookup("a")
	if !ok || p.Name != "first" {
		t.Fatalf("expected first occurrence to win, got %+v", p)
	}
}

func TestToggleParityMatchesToggleCount(t *testing.T) {
	for n := 0; n <= 6; n++ {
		s := NewSelection(testCatalog())
		for i := 0; i < n; i++ {
			s.Toggle("b")
		}
		want := n%2 == 1
		if got := s.Has("b"); got != want {
			t.Fatalf("after %d toggles: has=%v want %v", n, got, want)
		}
	}
}

func TestToggleUnknownIDIsNoOp(t *testing.T) {
	s := NewSelection(testCatalog())
	s.Toggle("a")

	if s.Toggle("zzz") {
		t.Fatalf("expected toggle of unknown id to report false")
	}
	if s.Count() != 1 || s.Has("zzz") {
		t.Fatalf("unknown id corrupted the selection: count=%d", s.Count())
	}
}

func TestSelectAllDeselectAllAndToggleAll(t *testing.T) {
	c := testCatalog()
	s := NewSelection(c)

	s.SelectAll()
	if !slices.Equal(s.IDs(), c.IDs()) {
		t.Fatalf("select all: got %v want %v", s.IDs(), c.IDs())
	}
	s.DeselectAll()
	if s.Count() != 0 {
		t.Fatalf("deselect all: expected empty, got %d", s.Count())
	}

	s.Toggle("a")
	s.ToggleAll()
	if !s.AllSelected() {
		t.Fatalf("toggle all from partial selection should select everything")
	}
	s.ToggleAll()
	if s.Count() != 0 {
		t.Fatalf("toggle all from full selection should clear, got %d", s.Count())
	}
	s.ToggleAll()
	if !s.AllSelected() {
		t.Fatalf("toggle all should alternate back to full selection")
	}
}

func TestIDsFollowCatalogOrder(t *testing.T) {
	s := NewSelection(testCatalog())
	s.Toggle("c")
	s.Toggle("a")

	got := s.IDs()
	if !slices.Equal(got, []string{"a", "c"}) {
		t.Fatalf("expected catalog order [a c], got %v", got)
	}
}

func TestSubscribeReceivesChanges(t *testing.T) {
	s := NewSelection(testCatalog())
	var seen []SelectionChange
	cancel := s.Subscribe(func(ch SelectionChange) {
		seen = append(seen, ch)
	})

	s.Toggle("a")
	s.SelectAll()
	s.Toggle("nope")
	cancel()
	s.DeselectAll()

	if len(seen) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(seen))
	}
	if seen[0].Count != 1 || seen[0].AllSelected {
		t.Fatalf("unexpected first change: %+v", seen[0])
	}
	if seen[1].Count != 3 || !seen[1].AllSelected || seen[1].Total != 3 {
		t.Fatalf("unexpected second change: %+v", seen[1])
	}
}

func TestEmptyCatalogIsNeverAllSelected(t *testing.T) {
	s := NewSelection(New(nil))
	s.ToggleAll()
	if s.AllSelected() || s.Count() != 0 {
		t.Fatalf("empty catalog selection should stay empty")
	}
}
