package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pd-docgen/internal/batch"
	"pd-docgen/internal/catalog"
	"pd-docgen/internal/export"
	"pd-docgen/internal/logging"
	"pd-docgen/internal/model"
	"pd-docgen/internal/pdapi"
	"pd-docgen/internal/results"
)

var (
	ErrNotConnected      = errors.New("not connected: load your projects first")
	ErrResetNotConfirmed = errors.New("reset not confirmed")
	ErrBatchRunning      = errors.New("a documentation batch is already running")
)

// Client is the remote API as seen by a session.
type Client interface {
	ListProjects(ctx context.Context) ([]model.Project, error)
	batch.Generator
}

// Dialer builds a Client for the given credentials. It must not perform I/O.
type Dialer func(creds pdapi.Credentials) (Client, error)

type Options struct {
	Dial           Dialer
	ExportDir      string
	// ExportInterval spaces exports apart. Zero selects export.DefaultInterval;
	// a negative value writes every file at once.
	ExportInterval time.Duration
	ExportOptions  []export.Option
	Log            logrus.FieldLogger
}

// Session owns the catalog, selection, results and mode for one connection.
type Session struct {
	opts Options
	log  logrus.FieldLogger

	mu          sync.Mutex
	client      Client
	catalog     *catalog.Catalog
	selection   *catalog.Selection
	results     *results.Store
	runner      *batch.Runner
	mode        model.GenerationMode
	description string
	running     bool
}

func New(opts Options) *Session {
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}
	switch {
	case opts.ExportInterval == 0:
		opts.ExportInterval = export.DefaultInterval
	case opts.ExportInterval < 0:
		opts.ExportInterval = 0
	}
	empty := catalog.New(nil)
	return &Session{
		opts:      opts,
		log:       log,
		catalog:   empty,
		selection: catalog.NewSelection(empty),
		results:   results.NewStore(),
		mode:      model.ModeRaw,
	}
}

// Connect fetches the catalog with creds and starts a fresh selection.
// On failure the previous connection, if any, is left untouched.
func (s *Session) Connect(ctx context.Context, creds pdapi.Credentials) (int, error) {
	if strings.TrimSpace(creds.APIKey) == "" {
		return 0, fmt.Errorf("%w: please enter your Pipedream API key", model.ErrAuthInput)
	}
	if s.opts.Dial == nil {
		return 0, errors.New("session has no API dialer")
	}
	client, err := s.opts.Dial(creds)
	if err != nil {
		return 0, err
	}
	projects, err := client.ListProjects(ctx)
	if err != nil {
		s.log.WithError(err).Warn("catalog fetch failed")
		return 0, err
	}

	cat := catalog.New(projects)
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return 0, ErrBatchRunning
	}
	s.client = client
	s.catalog = cat
	s.selection = catalog.NewSelection(cat)
	s.runner = batch.NewRunner(client, cat, s.log)
	s.mu.Unlock()

	s.results.Clear()
	s.log.WithFields(logrus.Fields{"projects": cat.Len(), "org_id": creds.OrgID}).Info("connected")
	return cat.Len(), nil
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil
}

func (s *Session) Catalog() *catalog.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog
}

func (s *Session) Selection() *catalog.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

func (s *Session) Results() *results.Store {
	return s.results
}

func (s *Session) Toggle(id string) (bool, error) {
	sel, err := s.connectedSelection()
	if err != nil {
		return false, err
	}
	return sel.Toggle(id), nil
}

func (s *Session) ToggleAll() error {
	sel, err := s.connectedSelection()
	if err != nil {
		return err
	}
	sel.ToggleAll()
	return nil
}

// Select replaces the selection with ids. Unknown ids are reported, not added.
func (s *Session) Select(ids []string) error {
	sel, err := s.connectedSelection()
	if err != nil {
		return err
	}
	cat := s.Catalog()
	var unknown []string
	for _, id := range ids {
		if !cat.Has(id) {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: unknown project id(s): %s", model.ErrValidation, strings.Join(unknown, ", "))
	}
	sel.DeselectAll()
	for _, id := range ids {
		if !sel.Has(id) {
			sel.Toggle(id)
		}
	}
	return nil
}

// SetMode records the generation mode. The description is kept even in raw mode
// so switching back to enhanced does not lose it; validation happens at run time.
func (s *Session) SetMode(mode model.GenerationMode, description string) error {
	if _, err := model.ParseGenerationMode(string(mode)); err != nil {
		return fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	s.description = description
	return nil
}

func (s *Session) Mode() (model.GenerationMode, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode, s.description
}

// RunBatch runs the current selection snapshot and replaces the stored results.
// A cancelled run still stores its partial outcomes.
func (s *Session) RunBatch(ctx context.Context, onStart func(batch.ItemStart), onProgress func(batch.Progress)) (model.BatchRun, error) {
	s.mu.Lock()
	if s.client == nil {
		s.mu.Unlock()
		return model.BatchRun{}, ErrNotConnected
	}
	if s.running {
		s.mu.Unlock()
		return model.BatchRun{}, ErrBatchRunning
	}
	req := batch.Request{
		IDs:         s.selection.IDs(),
		Mode:        s.mode,
		Description: s.description,
	}
	runner := s.runner
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	run, err := runner.Run(ctx, req, onStart, onProgress)
	if errors.Is(err, model.ErrValidation) {
		return run, err
	}
	s.results.Replace(run)
	return run, err
}

func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Session) scheduler() *export.Scheduler {
	run := s.results.Run()
	sink := export.NewDirSink(s.exportDir(), run.RunID, string(run.Mode))
	opts := []export.Option{
		export.WithDelayPolicy(export.Stagger(s.opts.ExportInterval)),
		export.WithLogger(s.log),
	}
	return export.NewScheduler(sink, append(opts, s.opts.ExportOptions...)...)
}

func (s *Session) exportDir() string {
	if dir := strings.TrimSpace(s.opts.ExportDir); dir != "" {
		return dir
	}
	return "docs"
}

// ExportOne writes the result at index (0-based, result order).
func (s *Session) ExportOne(ctx context.Context, index int) (export.Exported, error) {
	job, ok := s.results.At(index)
	if !ok {
		return export.Exported{}, fmt.Errorf("no result at position %d", index+1)
	}
	return s.scheduler().ExportOne(ctx, job)
}

func (s *Session) ExportAll(ctx context.Context) (*export.Pending, error) {
	return s.scheduler().ExportAll(ctx, s.results.All())
}

// Reset clears selection, results and description; the catalog stays loaded.
func (s *Session) Reset(confirmed bool) error {
	if !confirmed {
		return ErrResetNotConfirmed
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrBatchRunning
	}
	sel := s.selection
	s.description = ""
	s.mu.Unlock()

	// listeners run outside the session lock
	sel.DeselectAll()
	s.results.Clear()
	s.log.Info("session reset")
	return nil
}

func (s *Session) connectedSelection() (*catalog.Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, ErrNotConnected
	}
	return s.selection, nil
}
