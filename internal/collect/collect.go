// Package collect assembles a node's input map from the freshest outputs of
// its upstream neighbors.
//
// Collection is best-effort: a single bad edge never aborts the walk.
// Every skipped or degraded edge is recorded as a structured Warning so
// callers and tests can assert on the details.
package collect

import (
	"context"
	"fmt"

	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/vk/flowgraph/internal/graph"
	"github.com/vk/flowgraph/internal/model"
	"github.com/vk/flowgraph/internal/statestore"
)

// Warning records one edge that could not contribute a usable value.
type Warning struct {
	EdgeID       string
	SourceNodeID string
	SourcePortID string
	TargetPortID string
	Reason       string
}

func (w Warning) String() string {
	return fmt.Sprintf("edge %s (%s.%s -> %s): %s", w.EdgeID, w.SourceNodeID, w.SourcePortID, w.TargetPortID, w.Reason)
}

// Collection is the assembled input map plus the partial-failure details.
type Collection struct {
	Values   map[string]any
	Warnings []Warning
}

// Collector walks incoming edges and resolves upstream outputs.
type Collector struct {
	snapshot graph.Snapshot
	store    *statestore.Store
}

// New creates a Collector reading from the given snapshot and state store.
func New(snapshot graph.Snapshot, store *statestore.Store) *Collector {
	return &Collector{snapshot: snapshot, store: store}
}

// Collect assembles the input map for nodeID from the current edge list.
//
// For each incoming edge the source node's most recent successful outputs
// are resolved from, in order: the state store, the node's persisted
// lastExecution record, the node's flat outputs field. The first present,
// non-nil map wins. A source that exists but has nothing usable
// contributes an explicit nil under the target port, so downstream
// validation can tell "connected but empty" apart from "not connected".
//
// No edges is not an error: the result is simply an empty value map.
func (c *Collector) Collect(ctx context.Context, nodeID string) (*Collection, error) {
	if c.snapshot == nil {
		return nil, fmt.Errorf("collector has no graph snapshot")
	}
	logger := ctxlog.FromContext(ctx)

	out := &Collection{Values: make(map[string]any)}
	for _, edge := range graph.IncomingEdges(c.snapshot, nodeID) {
		targetPort := edge.TargetPort()

		source, ok := c.snapshot.Node(edge.SourceNodeID)
		if !ok {
			out.Warnings = append(out.Warnings, Warning{
				EdgeID:       edge.ID,
				SourceNodeID: edge.SourceNodeID,
				SourcePortID: edge.SourcePort(),
				TargetPortID: targetPort,
				Reason:       "source node no longer exists",
			})
			continue
		}

		outputs := c.sourceOutputs(source)
		if outputs == nil {
			// Connected but the source never produced anything.
			out.Values[targetPort] = nil
			out.Warnings = append(out.Warnings, Warning{
				EdgeID:       edge.ID,
				SourceNodeID: source.ID,
				SourcePortID: edge.SourcePort(),
				TargetPortID: targetPort,
				Reason:       "source node has no recorded outputs",
			})
			continue
		}

		value, present := outputs[edge.SourcePort()]
		if !present {
			out.Values[targetPort] = nil
			out.Warnings = append(out.Warnings, Warning{
				EdgeID:       edge.ID,
				SourceNodeID: source.ID,
				SourcePortID: edge.SourcePort(),
				TargetPortID: targetPort,
				Reason:       fmt.Sprintf("source outputs have no value for port %q", edge.SourcePort()),
			})
			continue
		}

		// Fan-in on one target port: last write wins.
		out.Values[targetPort] = value
	}

	logger.Debug("Collected node inputs.",
		"nodeID", nodeID, "ports", len(out.Values), "warnings", len(out.Warnings))
	return out, nil
}

// sourceOutputs resolves a source node's freshest output map, checking the
// legacy-compatible locations in priority order.
func (c *Collector) sourceOutputs(source *model.Node) map[string]any {
	if st := c.store.GetState(source.ID); st != nil && len(st.Outputs) > 0 {
		return st.Outputs
	}
	if source.LastExecution != nil && len(source.LastExecution.Outputs) > 0 {
		return source.LastExecution.Outputs
	}
	if len(source.Outputs) > 0 {
		return source.Outputs
	}
	return nil
}
