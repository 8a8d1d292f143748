package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pd-docgen/internal/model"
	"pd-docgen/internal/runstore"
)

// Lister is the part of the API client the API check needs.
type Lister interface {
	ListProjects(ctx context.Context) ([]model.Project, error)
}

type Options struct {
	APIKey    string
	BaseURL   string
	ExportDir string
	// Client is nil when no API key is configured.
	Client Lister
}

type Result struct {
	OK     bool    `json:"ok"`
	Checks []Check `json:"checks"`
}

type Check struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

func Run(ctx context.Context, opts Options) Result {
	checks := make([]Check, 0, 4)

	keyOK := strings.TrimSpace(opts.APIKey) != ""
	checks = append(checks, Check{
		Name:    "config:api_key",
		OK:      keyOK,
		Message: keyMessage(keyOK),
	})

	checks = append(checks, apiCheck(ctx, opts))

	dir := strings.TrimSpace(opts.ExportDir)
	if dir == "" {
		dir = "docs"
	}
	dirOK, dirMessage := ensureWritableDir(dir)
	if docs, err := runstore.ListMarkdown(dir); dirOK && err == nil {
		dirMessage += fmt.Sprintf(", %d documents", len(docs))
	}
	checks = append(checks, Check{
		Name:    "directory:export",
		OK:      dirOK,
		Message: dirMessage,
	})
	if dirOK {
		checks = append(checks, lockCheck(dir))
	}

	ok := true
	for _, c := range checks {
		if !c.OK {
			ok = false
			break
		}
	}
	return Result{OK: ok, Checks: checks}
}

func keyMessage(ok bool) string {
	if ok {
		return "API key configured"
	}
	return "API key missing (set PDDOC_API_KEY or api_key in pd-docgen.yaml)"
}

func apiCheck(ctx context.Context, opts Options) Check {
	c := Check{Name: "api:projects"}
	if opts.Client == nil {
		c.Message = "skipped: no API key"
		return c
	}
	projects, err := opts.Client.ListProjects(ctx)
	if err != nil {
		c.Message = err.Error()
		return c
	}
	c.OK = true
	c.Message = fmt.Sprintf("%s reachable, %d projects", opts.BaseURL, len(projects))
	return c
}

func lockCheck(dir string) Check {
	c := Check{Name: "export:lock"}
	lock, err := runstore.AcquireDirLock(dir, "doctor")
	if err != nil {
		c.Message = err.Error()
		return c
	}
	if err := lock.Release(); err != nil {
		c.Message = err.Error()
		return c
	}
	c.OK = true
	c.Message = "no export in progress"
	return c
}

func ensureWritableDir(path string) (bool, string) {
	if err := runstore.Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "pd-docgen-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return true, abs + " writable"
}
