// Package catalog holds the node type definitions the editor and the
// execution core resolve type ids against.
//
// Definitions are declared in HCL manifests (see Load) and registered into
// a Catalog instance at startup. The catalog is the single source of truth
// for a node type's port contract and default settings; the connection
// validator and required-inputs guard both resolve through it.
package catalog

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/vk/flowgraph/internal/model"
)

// Catalog is a registry of node types keyed by type id.
type Catalog struct {
	mu    sync.RWMutex
	types map[string]*model.NodeType
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{types: make(map[string]*model.NodeType)}
}

// Register adds a node type. Duplicate ids are an error so two manifests
// cannot silently shadow each other.
func (c *Catalog) Register(nt *model.NodeType) error {
	if nt == nil || nt.ID == "" {
		return fmt.Errorf("node type must have an id")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.types[nt.ID]; exists {
		return fmt.Errorf("node type %q already registered", nt.ID)
	}
	c.types[nt.ID] = nt
	return nil
}

// Get resolves a node type by id.
func (c *Catalog) Get(id string) (*model.NodeType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	nt, ok := c.types[id]
	return nt, ok
}

// All returns every registered node type, sorted by id.
func (c *Catalog) All() []*model.NodeType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*model.NodeType, 0, len(c.types))
	for _, nt := range c.types {
		out = append(out, nt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByCategory returns the registered node types of one category, sorted by
// id.
func (c *Catalog) ByCategory(cat model.Category) []*model.NodeType {
	var out []*model.NodeType
	for _, nt := range c.All() {
		if nt.Category == cat {
			out = append(out, nt)
		}
	}
	return out
}

// StrategySet is the part of the executor registry the catalog validates
// against.
type StrategySet interface {
	TypeIDs() []string
}

// ValidateAgainst performs a strict parity check between the catalog and
// the registered execution strategies: every catalog entry must have a
// strategy and every strategy must have a catalog entry. All mismatches are
// collected into a single error.
func (c *Catalog) ValidateAgainst(strategies StrategySet) error {
	registered := make(map[string]struct{})
	for _, id := range strategies.TypeIDs() {
		registered[id] = struct{}{}
	}

	var errs []string
	for _, nt := range c.All() {
		if _, ok := registered[nt.ID]; !ok {
			errs = append(errs, fmt.Sprintf("node type %q: manifest present but no execution strategy registered", nt.ID))
		}
	}
	for id := range registered {
		if _, ok := c.Get(id); !ok {
			errs = append(errs, fmt.Sprintf("strategy %q: registered but no manifest declares this node type", id))
		}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("catalog validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
