package catalog

import (
	"slices"
	"sync"
)

// SelectionChange is emitted to subscribers after every effective mutation.
type SelectionChange struct {
	Count       int
	Total       int
	AllSelected bool
}

// Selection is the set of chosen project ids. Members are always catalog ids.
type Selection struct {
	catalog *Catalog

	mu        sync.Mutex
	ids       map[string]struct{}
	listeners map[int]func(SelectionChange)
	nextID    int
}

func NewSelection(c *Catalog) *Selection {
	return &Selection{
		catalog:   c,
		ids:       make(map[string]struct{}),
		listeners: make(map[int]func(SelectionChange)),
	}
}

// Subscribe registers fn for change notifications and returns its cancel func.
func (s *Selection) Subscribe(fn func(SelectionChange)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Toggle flips membership of id. Ids outside the catalog are ignored and report false.
func (s *Selection) Toggle(id string) bool {
	if !s.catalog.Has(id) {
		return false
	}
	s.mu.Lock()
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
	} else {
		s.ids[id] = struct{}{}
	}
	s.mu.Unlock()
	s.notify()
	return true
}

func (s *Selection) SelectAll() {
	s.mu.Lock()
	for _, id := range s.catalog.IDs() {
		s.ids[id] = struct{}{}
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Selection) DeselectAll() {
	s.mu.Lock()
	clear(s.ids)
	s.mu.Unlock()
	s.notify()
}

// ToggleAll deselects everything when the whole catalog is selected, otherwise selects all.
func (s *Selection) ToggleAll() {
	if s.AllSelected() {
		s.DeselectAll()
		return
	}
	s.SelectAll()
}

func (s *Selection) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

func (s *Selection) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *Selection) AllSelected() bool {
	total := s.catalog.Len()
	return total > 0 && s.Count() == total
}

// IDs returns a snapshot of the members in catalog order.
func (s *Selection) IDs() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	slices.SortFunc(ids, func(a, b string) int {
		return s.catalog.position(a) - s.catalog.position(b)
	})
	return ids
}

func (s *Selection) notify() {
	s.mu.Lock()
	change := SelectionChange{
		Count: len(s.ids),
		Total: s.catalog.Len(),
	}
	change.AllSelected = change.Total > 0 && change.Count == change.Total
	fns := make([]func(SelectionChange), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(change)
	}
}
