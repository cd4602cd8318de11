// Package guard decides whether a node is safe to execute: every required
// input port must have at least one incoming edge.
//
// Validate is a pure check. AssertOrNotify is the one deliberate exception
// to the "checks have no side effects" convention in this codebase: invoked
// immediately before execution, a failed check pushes the node to Skipped
// and surfaces a user-facing notification, short-circuiting the execute
// call.
package guard

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/flowgraph/internal/catalog"
	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/vk/flowgraph/internal/graph"
	"github.com/vk/flowgraph/internal/model"
	"github.com/vk/flowgraph/internal/statestore"
)

// Notifier surfaces validation failures to the user. The editor shell
// plugs its toast system in here; the default logs.
type Notifier interface {
	NotifyWarning(nodeID, message string)
}

// Result is the outcome of a required-inputs check.
type Result struct {
	IsValid        bool
	MissingPortIDs []string
	Message        string
}

// Guard validates required input wiring against the current edge list.
type Guard struct {
	snapshot graph.Snapshot
	catalog  *catalog.Catalog
	store    *statestore.Store
	notifier Notifier
}

// New creates a Guard. notifier may be nil; failures are then only logged.
func New(snapshot graph.Snapshot, cat *catalog.Catalog, store *statestore.Store, notifier Notifier) *Guard {
	return &Guard{snapshot: snapshot, catalog: cat, store: store, notifier: notifier}
}

// Validate checks that every required input port of the node has at least
// one incoming edge. A node with no required inputs is always valid. On
// failure the result carries one combined message naming every missing port
// by label.
func (g *Guard) Validate(nodeID string) Result {
	node, ok := g.snapshot.Node(nodeID)
	if !ok {
		return Result{Message: fmt.Sprintf("Node %q not found.", nodeID)}
	}
	nt, ok := g.catalog.Get(node.TypeID)
	if !ok {
		return Result{Message: fmt.Sprintf("Node %q has unknown type %q.", nodeID, node.TypeID)}
	}

	required := nt.RequiredInputs()
	if len(required) == 0 {
		return Result{IsValid: true}
	}

	wired := make(map[string]bool)
	for _, e := range graph.IncomingEdges(g.snapshot, nodeID) {
		wired[e.TargetPort()] = true
	}

	var missingIDs []string
	var missingLabels []string
	for _, p := range required {
		if !wired[p.ID] {
			missingIDs = append(missingIDs, p.ID)
			missingLabels = append(missingLabels, p.DisplayName())
		}
	}
	if len(missingIDs) == 0 {
		return Result{IsValid: true}
	}

	return Result{
		MissingPortIDs: missingIDs,
		Message: fmt.Sprintf("Cannot execute %q: required input(s) not connected: %s.",
			displayName(node, nt), strings.Join(missingLabels, ", ")),
	}
}

// AssertOrNotify runs Validate and, on failure, marks the node Skipped with
// the combined message and notifies the user. Returns the result either
// way.
func (g *Guard) AssertOrNotify(ctx context.Context, nodeID string) Result {
	res := g.Validate(nodeID)
	if res.IsValid {
		return res
	}

	logger := ctxlog.FromContext(ctx)
	logger.Warn("Skipping node: required inputs missing.",
		"nodeID", nodeID, "missing", res.MissingPortIDs)

	g.store.SetStatus(nodeID, model.StatusSkipped, res.Message, nil)
	if g.notifier != nil {
		g.notifier.NotifyWarning(nodeID, res.Message)
	}
	return res
}

func displayName(n *model.Node, nt *model.NodeType) string {
	if n.Label != "" {
		return n.Label
	}
	return nt.Name
}
