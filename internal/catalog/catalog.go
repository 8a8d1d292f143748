package catalog

import (
	"strings"

	"pd-docgen/internal/model"
)

// Catalog is the read-only project list installed by a successful connect.
type Catalog struct {
	projects []model.Project
	index    map[string]int
}

func New(projects []model.Project) *Catalog {
	c := &Catalog{
		projects: make([]model.Project, 0, len(projects)),
		index:    make(map[string]int, len(projects)),
	}
	for _, p := range projects {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			continue
		}
		if _, dup := c.index[id]; dup {
			continue
		}
		p.ID = id
		c.index[id] = len(c.projects)
		c.projects = append(c.projects, p)
	}
	return c
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.projects)
}

func (c *Catalog) Lookup(id string) (model.Project, bool) {
	if c == nil {
		return model.Project{}, false
	}
	i, ok := c.index[id]
	if !ok {
		return model.Project{}, false
	}
	return c.projects[i], true
}

func (c *Catalog) Has(id string) bool {
	_, ok := c.Lookup(id)
	return ok
}

// At returns the project at catalog position i.
func (c *Catalog) At(i int) (model.Project, bool) {
	if c == nil || i < 0 || i >= len(c.projects) {
		return model.Project{}, false
	}
	return c.projects[i], true
}

func (c *Catalog) Projects() []model.Project {
	if c == nil {
		return nil
	}
	out := make([]model.Project, len(c.projects))
	copy(out, c.projects)
	return out
}

func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, len(c.projects))
	for i, p := range c.projects {
		ids[i] = p.ID
	}
	return ids
}

// position is used to keep selection snapshots in catalog order.
func (c *Catalog) position(id string) int {
	if i, ok := c.index[id]; ok {
		return i
	}
	return -1
}
