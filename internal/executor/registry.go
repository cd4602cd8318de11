package executor

import (
	"fmt"
	"log/slog"
	"sort"
)

// Module is the interface a strategy package implements to plug itself into
// a Registry.
type Module interface {
	Register(r *Registry)
}

// Registry maps node type ids onto execution strategies for a single
// application instance.
type Registry struct {
	strategies map[string]Strategy
	fallback   Strategy
}

// NewRegistry creates an empty Registry with the pass-through Base strategy
// as fallback for unknown type ids.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
		fallback:   &Base{},
	}
}

// Register binds a strategy to a node type id.
func (r *Registry) Register(typeID string, s Strategy) {
	if _, exists := r.strategies[typeID]; exists {
		panic(fmt.Sprintf("execution strategy for node type '%s' already registered", typeID))
	}
	slog.Debug("Registering execution strategy.", "typeID", typeID)
	r.strategies[typeID] = s
}

// Load registers every module's strategies.
func (r *Registry) Load(modules ...Module) {
	for _, m := range modules {
		m.Register(r)
	}
	slog.Info("Strategy registry loaded successfully.", "strategies_loaded", len(r.strategies))
}

// Get resolves the strategy for a node type id, falling back to the
// pass-through default so unknown types still execute.
func (r *Registry) Get(typeID string) Strategy {
	if s, ok := r.strategies[typeID]; ok {
		return s
	}
	return r.fallback
}

// Known reports whether a dedicated strategy exists for typeID.
func (r *Registry) Known(typeID string) bool {
	_, ok := r.strategies[typeID]
	return ok
}

// TypeIDs returns the registered type ids in sorted order.
func (r *Registry) TypeIDs() []string {
	ids := make([]string, 0, len(r.strategies))
	for id := range r.strategies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
