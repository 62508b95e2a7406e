package policy

import (
	"fmt"
	"sort"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// Registry holds the configured work modes.
type Registry struct {
	modes map[string]domain.WorkMode
}

// NewRegistry creates a registry with the default focus mode.
func NewRegistry() *Registry {
	return NewRegistryWithModes(DefaultFocusMode())
}

// NewRegistryWithModes creates a registry with custom modes (config, tests).
func NewRegistryWithModes(modes ...domain.WorkMode) *Registry {
	r := &Registry{
		modes: make(map[string]domain.WorkMode),
	}
	for _, m := range modes {
		r.Register(m)
	}
	return r
}

// Register adds or replaces a mode.
func (r *Registry) Register(m domain.WorkMode) {
	r.modes[m.ID] = m
}

// Get returns a mode by ID.
func (r *Registry) Get(id string) (domain.WorkMode, error) {
	m, ok := r.modes[id]
	if !ok {
		return domain.WorkMode{}, fmt.Errorf("work mode not found: %s", id)
	}
	return m, nil
}

// GetAll returns all modes ordered by ID.
func (r *Registry) GetAll() []domain.WorkMode {
	result := make([]domain.WorkMode, 0, len(r.modes))
	for _, m := range r.modes {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// List returns all mode IDs in order.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.modes))
	for id := range r.modes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
