package tools

import (
	"sync"

	"github.com/pkg/errors"
)

var ErrToolNotFound = errors.New("tool not found")

// ToolRegistry is the set of tools offered to the model. Implementations must be safe for concurrent use.
type ToolRegistry interface {
	RegisterTool(name string, def ToolDefinition) error
	GetTool(name string) (*ToolDefinition, error)
	HasTool(name string) bool
	ListTools() []ToolDefinition
	UnregisterTool(name string) error
	Clone() ToolRegistry
}

// InMemoryToolRegistry lists tools in the order they were registered.
type InMemoryToolRegistry struct {
	mu    sync.RWMutex
	order []string
	defs  map[string]ToolDefinition
}

var _ ToolRegistry = (*InMemoryToolRegistry)(nil)

func NewInMemoryToolRegistry() *InMemoryToolRegistry {
	return &InMemoryToolRegistry{defs: map[string]ToolDefinition{}}
}

// RegisterTool adds def under name. def.Name, when set, must agree with name.
func (r *InMemoryToolRegistry) RegisterTool(name string, def ToolDefinition) error {
	switch {
	case name == "":
		return errors.New("tool name cannot be empty")
	case def.Name != "" && def.Name != name:
		return errors.Errorf("tool %q registered as %q", def.Name, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.defs[name]; dup {
		return errors.Errorf("tool already registered: %s", name)
	}
	def.Name = name
	r.defs[name] = def
	r.order = append(r.order, name)
	return nil
}

func (r *InMemoryToolRegistry) GetTool(name string) (*ToolDefinition, error) {
	r.mu.RLock()
	def, ok := r.defs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrap(ErrToolNotFound, name)
	}
	return &def, nil
}

func (r *InMemoryToolRegistry) HasTool(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.defs[name]
	return ok
}

func (r *InMemoryToolRegistry) ListTools() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name])
	}
	return out
}

func (r *InMemoryToolRegistry) UnregisterTool(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[name]; !ok {
		return errors.Wrap(ErrToolNotFound, name)
	}
	delete(r.defs, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *InMemoryToolRegistry) Clone() ToolRegistry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := &InMemoryToolRegistry{
		order: append([]string(nil), r.order...),
		defs:  make(map[string]ToolDefinition, len(r.defs)),
	}
	for k, v := range r.defs {
		c.defs[k] = v
	}
	return c
}
