package runstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const ManifestFileName = "export.json"

// ManifestEntry records one exported document.
type ManifestEntry struct {
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
	File        string `json:"file"`
	Bytes       int    `json:"bytes"`
	ExportedAt  string `json:"exported_at"`
}

// Manifest describes the documents written to an export directory by one run.
type Manifest struct {
	RunID     string          `json:"run_id"`
	Mode      string          `json:"mode"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at,omitempty"`
	Files     []ManifestEntry `json:"files"`
}

func Mkdir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// WriteBytes replaces path atomically through a temp file in the same directory.
func WriteBytes(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, ".pddoc-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	discard := func(cause error, what string) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%s for %s: %w", what, path, cause)
	}

	if _, err := tmp.Write(data); err != nil {
		return discard(err, "write temp file")
	}
	if err := tmp.Chmod(0o644); err != nil {
		return discard(err, "chmod temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("atomic rename for %s: %w", path, err)
	}
	return nil
}

func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON for %s: %w", path, err)
	}
	return WriteBytes(path, append(data, '\n'))
}

func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse JSON %s: %w", path, err)
	}
	return nil
}

func ManifestPath(dir string) string {
	return filepath.Join(dir, ManifestFileName)
}

// LoadManifest returns the manifest in dir, or ok=false when none exists yet.
func LoadManifest(dir string) (Manifest, bool, error) {
	var m Manifest
	if err := ReadJSON(ManifestPath(dir), &m); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Manifest{}, false, nil
		}
		return Manifest{}, false, err
	}
	return m, true, nil
}

func SaveManifest(dir string, m Manifest) error {
	sort.SliceStable(m.Files, func(i, j int) bool {
		return m.Files[i].File < m.Files[j].File
	})
	return WriteJSON(ManifestPath(dir), m)
}

// Upsert replaces the entry for the same file name or appends a new one.
func (m *Manifest) Upsert(e ManifestEntry) {
	for i := range m.Files {
		if m.Files[i].File == e.File {
			m.Files[i] = e
			return
		}
	}
	m.Files = append(m.Files, e)
}

// ListMarkdown returns the .md files in dir, sorted by name.
func ListMarkdown(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read export directory %s: %w", dir, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}
