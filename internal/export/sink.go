package export

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pd-docgen/internal/runstore"
)

// Sink stores one exported document and returns where it went.
type Sink interface {
	Write(ctx context.Context, name string, content []byte) (string, error)
}

// BatchSink is a Sink that wants to bracket a group of writes.
// Begin runs before any write is scheduled; Commit runs after the last one settles.
type BatchSink interface {
	Sink
	Begin(total int) error
	Commit(results []Exported) error
}

// DirSink writes documents atomically into Dir and keeps its export.json manifest current.
// Same-named files are overwritten.
type DirSink struct {
	Dir   string
	RunID string
	Mode  string

	mu   sync.Mutex
	lock runstore.DirLock
	now  func() time.Time
}

func NewDirSink(dir, runID, mode string) *DirSink {
	return &DirSink{Dir: dir, RunID: runID, Mode: mode, now: time.Now}
}

func (s *DirSink) Write(ctx context.Context, name string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid export file name %q", name)
	}
	path := filepath.Join(s.Dir, name)
	if err := runstore.WriteBytes(path, content); err != nil {
		return "", err
	}
	return path, nil
}

func (s *DirSink) Begin(total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, err := runstore.AcquireDirLock(s.Dir, s.RunID)
	if err != nil {
		return err
	}
	s.lock = lock
	return nil
}

func (s *DirSink) Commit(results []Exported) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		_ = s.lock.Release()
		s.lock = runstore.DirLock{}
	}()

	stamp := s.now().UTC().Format(time.RFC3339)
	m, ok, err := runstore.LoadManifest(s.Dir)
	if err != nil {
		return err
	}
	if !ok || m.RunID != s.RunID {
		m = runstore.Manifest{RunID: s.RunID, Mode: s.Mode, CreatedAt: stamp, Files: m.Files}
	}
	m.UpdatedAt = stamp
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		m.Upsert(runstore.ManifestEntry{
			ProjectID:   r.Job.ProjectID,
			ProjectName: r.Job.ProjectName,
			File:        r.File,
			Bytes:       r.Bytes,
			ExportedAt:  stamp,
		})
	}
	return runstore.SaveManifest(s.Dir, m)
}
