package results

import (
	"sync"

	"pd-docgen/internal/model"
)

type Change struct {
	Total     int
	Successes int
}

// Store holds the outcomes of the most recent batch run only.
type Store struct {
	mu        sync.Mutex
	run       model.BatchRun
	listeners map[int]func(Change)
	nextID    int
}

func NewStore() *Store {
	return &Store{listeners: make(map[int]func(Change))}
}

func (s *Store) Subscribe(fn func(Change)) func() {
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

// Replace overwrites the store with run. Previous outcomes are dropped, never merged.
func (s *Store) Replace(run model.BatchRun) {
	run.Outcomes = cloneJobs(run.Outcomes)
	s.mu.Lock()
	s.run = run
	s.mu.Unlock()
	s.notify()
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.run = model.BatchRun{}
	s.mu.Unlock()
	s.notify()
}

func (s *Store) Run() model.BatchRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := s.run
	run.Outcomes = cloneJobs(s.run.Outcomes)
	return run
}

func (s *Store) All() []model.GenerationJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneJobs(s.run.Outcomes)
}

func (s *Store) Successes() []model.GenerationJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.GenerationJob, 0, len(s.run.Outcomes))
	for _, j := range s.run.Outcomes {
		if j.Succeeded() {
			out = append(out, j)
		}
	}
	return out
}

func (s *Store) At(i int) (model.GenerationJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.run.Outcomes) {
		return model.GenerationJob{}, false
	}
	return s.run.Outcomes[i], true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.run.Outcomes)
}

func (s *Store) notify() {
	s.mu.Lock()
	change := Change{Total: len(s.run.Outcomes)}
	for _, j := range s.run.Outcomes {
		if j.Succeeded() {
			change.Successes++
		}
	}
	fns := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(change)
	}
}

func cloneJobs(in []model.GenerationJob) []model.GenerationJob {
	if in == nil {
		return nil
	}
	out := make([]model.GenerationJob, len(in))
	copy(out, in)
	return out
}
