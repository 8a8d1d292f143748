package runstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	exportLockDirName = ".export.lock"
	exportLockOwner   = "owner.json"
)

// ErrLocked reports that another process holds the export directory.
var ErrLocked = errors.New("export directory is locked")

// DirLock is held while one process writes into an export directory.
type DirLock struct {
	lockDir string
}

type lockOwner struct {
	PID       int    `json:"pid"`
	RunID     string `json:"run_id,omitempty"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

// AcquireDirLock creates dir if needed and takes its lock with an atomic mkdir.
func AcquireDirLock(dir, runID string) (DirLock, error) {
	target := strings.TrimSpace(dir)
	if target == "" {
		return DirLock{}, fmt.Errorf("export directory is required")
	}
	if err := Mkdir(target); err != nil {
		return DirLock{}, err
	}

	lockDir := filepath.Join(target, exportLockDirName)
	if err := os.Mkdir(lockDir, 0o755); err != nil {
		if !os.IsExist(err) {
			return DirLock{}, fmt.Errorf("acquire export lock for %s: %w", target, err)
		}
		var owner lockOwner
		if readErr := ReadJSON(filepath.Join(lockDir, exportLockOwner), &owner); readErr == nil && owner.PID > 0 {
			return DirLock{}, fmt.Errorf("%w: %s (pid=%d run=%s since=%s host=%s)",
				ErrLocked, target, owner.PID, owner.RunID, owner.CreatedAt, owner.Hostname)
		}
		return DirLock{}, fmt.Errorf("%w: %s", ErrLocked, target)
	}

	owner := lockOwner{
		PID:       os.Getpid(),
		RunID:     runID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	}
	if err := WriteJSON(filepath.Join(lockDir, exportLockOwner), owner); err != nil {
		_ = os.RemoveAll(lockDir)
		return DirLock{}, fmt.Errorf("write export lock owner for %s: %w", target, err)
	}
	return DirLock{lockDir: lockDir}, nil
}

func (l DirLock) Release() error {
	if l.lockDir == "" {
		return nil
	}
	if err := os.RemoveAll(l.lockDir); err != nil {
		return fmt.Errorf("release export lock %s: %w", l.lockDir, err)
	}
	return nil
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil || strings.TrimSpace(host) == "" {
		return "unknown"
	}
	return strings.TrimSpace(host)
}
