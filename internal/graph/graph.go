// Package graph owns the editable flow document: the set of placed nodes
// and the edges connecting their ports.
//
// The execution core never mutates the document on its own initiative; it
// reads through the Snapshot interface and writes back execution records
// through UpdateNode. The document assumes a single local mutator (one
// editor tab); reads are cheap point-in-time views, not versioned
// snapshots.
package graph

import (
	"fmt"
	"sync"

	"github.com/vk/flowgraph/internal/catalog"
	"github.com/vk/flowgraph/internal/model"
)

// Snapshot is the read-only view of the flow document the execution core
// depends on.
type Snapshot interface {
	// Nodes returns the current node list.
	Nodes() []*model.Node
	// Edges returns the current edge list.
	Edges() []*model.Edge
	// Node resolves a node by id.
	Node(id string) (*model.Node, bool)
}

// Document is the mutable in-memory flow document. All methods are safe for
// concurrent use.
type Document struct {
	catalog *catalog.Catalog

	mu    sync.RWMutex
	nodes map[string]*model.Node
	order []string // insertion order, to keep Nodes() deterministic
	edges []*model.Edge
	seq   int
}

// NewDocument creates an empty document. The catalog is consulted to verify
// edge endpoints against the port contracts of the connected node types.
func NewDocument(cat *catalog.Catalog) *Document {
	return &Document{
		catalog: cat,
		nodes:   make(map[string]*model.Node),
	}
}

// AddNode places a node in the document. Node ids must be unique and the
// type id must exist in the catalog.
func (d *Document) AddNode(n *model.Node) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("node must have an id")
	}
	if _, ok := d.catalog.Get(n.TypeID); !ok {
		return fmt.Errorf("node %q: unknown node type %q", n.ID, n.TypeID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.nodes[n.ID]; exists {
		return fmt.Errorf("node %q already exists", n.ID)
	}
	d.nodes[n.ID] = n
	d.order = append(d.order, n.ID)
	return nil
}

// RemoveNode deletes a node and every edge touching it, keeping the
// document free of dangling edges. Removing an unknown node is a no-op.
func (d *Document) RemoveNode(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.nodes[id]; !exists {
		return
	}
	delete(d.nodes, id)
	for i, nid := range d.order {
		if nid == id {
			d.order = append(d.order[:i:i], d.order[i+1:]...)
			break
		}
	}
	kept := d.edges[:0]
	for _, e := range d.edges {
		if !e.Touches(id) {
			kept = append(kept, e)
		}
	}
	d.edges = kept
}

// AddEdge connects an output port of the source node to an input port of
// the target node. Both endpoints must exist and the ports must have the
// right direction; type compatibility is the connection validator's
// concern, not the document's.
func (d *Document) AddEdge(e *model.Edge) error {
	if e == nil {
		return fmt.Errorf("edge must not be nil")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	src, ok := d.nodes[e.SourceNodeID]
	if !ok {
		return fmt.Errorf("edge source node %q not found", e.SourceNodeID)
	}
	dst, ok := d.nodes[e.TargetNodeID]
	if !ok {
		return fmt.Errorf("edge target node %q not found", e.TargetNodeID)
	}

	srcType, ok := d.catalog.Get(src.TypeID)
	if !ok {
		return fmt.Errorf("source node %q has unknown type %q", src.ID, src.TypeID)
	}
	dstType, ok := d.catalog.Get(dst.TypeID)
	if !ok {
		return fmt.Errorf("target node %q has unknown type %q", dst.ID, dst.TypeID)
	}

	if _, ok := srcType.OutputPort(e.SourcePort()); !ok {
		return fmt.Errorf("node %q (%s) has no output port %q", src.ID, src.TypeID, e.SourcePort())
	}
	if _, ok := dstType.InputPort(e.TargetPort()); !ok {
		return fmt.Errorf("node %q (%s) has no input port %q", dst.ID, dst.TypeID, e.TargetPort())
	}

	if e.ID == "" {
		d.seq++
		e.ID = fmt.Sprintf("edge-%d", d.seq)
	}
	d.edges = append(d.edges, e)
	return nil
}

// RemoveEdge deletes an edge by id. Unknown ids are a no-op.
func (d *Document) RemoveEdge(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, e := range d.edges {
		if e.ID == id {
			d.edges = append(d.edges[:i:i], d.edges[i+1:]...)
			return
		}
	}
}

// UpdateNode applies fn to the node under the document lock. Used by the
// coordinator to publish inputs/outputs/lastExecution back onto the node
// record.
func (d *Document) UpdateNode(id string, fn func(n *model.Node)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.nodes[id]
	if !ok {
		return false
	}
	fn(n)
	return true
}

// Nodes returns the node list in insertion order.
func (d *Document) Nodes() []*model.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*model.Node, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.nodes[id])
	}
	return out
}

// Edges returns the current edge list.
func (d *Document) Edges() []*model.Edge {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*model.Edge, len(d.edges))
	copy(out, d.edges)
	return out
}

// Node resolves a node by id.
func (d *Document) Node(id string) (*model.Node, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.nodes[id]
	return n, ok
}

// IncomingEdges returns the edges whose target is the given node.
func IncomingEdges(s Snapshot, nodeID string) []*model.Edge {
	var in []*model.Edge
	for _, e := range s.Edges() {
		if e.TargetNodeID == nodeID {
			in = append(in, e)
		}
	}
	return in
}
