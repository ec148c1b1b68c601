package flow

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"sync"

	"application-intake/internal/models"
)

// Registry maps roles to flows and designates the baseline flow used before
// a role is chosen.
type Registry struct {
	mu       sync.RWMutex
	byRole   map[models.Role]*Flow
	baseline models.Role
}

// NewRegistry registers flows, keyed by their role. The baseline role must
// have a flow.
func NewRegistry(baseline models.Role, flows ...*Flow) (*Registry, error) {
	r := &Registry{byRole: make(map[models.Role]*Flow, len(flows)), baseline: baseline}
	for _, f := range flows {
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}
	if _, ok := r.byRole[baseline]; !ok {
		return nil, fmt.Errorf("no flow registered for baseline role %q", baseline)
	}
	return r, nil
}

// DefaultRegistry holds the built-in founder and innovator flows with the
// founder flow as baseline.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(models.RoleFounder, FounderFlow(), InnovatorFlow())
	if err != nil {
		panic(err)
	}
	return r
}

// Register validates f and stores it, replacing any flow for the same role.
func (r *Registry) Register(f *Flow) error {
	if f == nil {
		return fmt.Errorf("nil flow")
	}
	if err := f.Validate(); err != nil {
		return fmt.Errorf("flow %q: %w", f.ID, err)
	}
	f.reindex()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byRole[f.Role] = f
	return nil
}

// ForRole returns the flow for role, or the baseline flow when role has none.
func (r *Registry) ForRole(role models.Role) *Flow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.byRole[role]; ok {
		return f
	}
	return r.byRole[r.baseline]
}

// Lookup returns the flow registered for role.
func (r *Registry) Lookup(role models.Role) (*Flow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.byRole[role]
	return f, ok
}

// Baseline returns the flow used when no role is selected.
func (r *Registry) Baseline() *Flow {
	return r.ForRole(r.baseline)
}

// BaselineRole returns the role of the baseline flow.
func (r *Registry) BaselineRole() models.Role {
	return r.baseline
}

// Flows lists the registered flows ordered by id.
func (r *Registry) Flows() []*Flow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Flow, 0, len(r.byRole))
	for _, f := range r.byRole {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LoadRegistry builds a registry from the built-in flows and replaces them
// with any flow files found in dir. A missing dir keeps the built-ins. The
// ids of the loaded files are returned.
func LoadRegistry(baseline models.Role, dir string) (*Registry, []string, error) {
	r, err := NewRegistry(baseline, FounderFlow(), InnovatorFlow())
	if err != nil {
		return nil, nil, err
	}
	if dir == "" {
		return r, nil, nil
	}

	flows, err := LoadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return r, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load flows from %s: %w", dir, err)
	}

	loaded := make([]string, 0, len(flows))
	for _, f := range flows {
		if err := r.Register(f); err != nil {
			return nil, nil, err
		}
		loaded = append(loaded, f.ID)
	}
	return r, loaded, nil
}
