// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Node and Edge, the two halves of the editable flow
// document.
//
// Why distinguish between a NodeType and a Node?
//
// A NodeType is the reusable definition or "template" for a kind of work:
// it declares the ports the node exposes and the settings it understands. A
// Node is a placed *instance* of that template, carrying the user's settings
// and its own execution history. One NodeType ("simple-openai-chat") can be
// instantiated many times in one flow with different settings each.
package model

// Node is a configured instance of a node type placed in the flow graph.
type Node struct {
	// ID is unique within a flow document.
	ID string `json:"id"`
	// TypeID keys into the node type catalog.
	TypeID string `json:"typeId"`
	// Label is the user-facing display name.
	Label string `json:"label,omitempty"`
	// Settings holds node-type-specific configuration edited in the UI.
	Settings map[string]any `json:"settings,omitempty"`
	// Disabled nodes are kept in the document but never executed.
	Disabled bool `json:"disabled,omitempty"`

	// Inputs and Outputs mirror the most recent execution attempt so the
	// result-inspection UI can show what was sent and what came back. They
	// round-trip through save/reload together with LastExecution.
	Inputs  map[string]any `json:"inputs,omitempty"`
	Outputs map[string]any `json:"outputs,omitempty"`

	// LastExecution is the persisted record of the most recent attempt.
	// Status badges are reconstructed purely from it on reload.
	LastExecution *LastExecution `json:"lastExecution,omitempty"`
}

// Clone returns a shallow copy of the node with its maps copied one level
// deep, so callers can hand snapshots around without aliasing the document's
// mutable state.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	cp.Settings = copyMap(n.Settings)
	cp.Inputs = copyMap(n.Inputs)
	cp.Outputs = copyMap(n.Outputs)
	if n.LastExecution != nil {
		le := *n.LastExecution
		le.Outputs = copyMap(n.LastExecution.Outputs)
		cp.LastExecution = &le
	}
	return &cp
}

// Edge is a directed connection from an output port of one node to an input
// port of another.
type Edge struct {
	ID           string `json:"id,omitempty"`
	SourceNodeID string `json:"sourceNodeId"`
	SourcePortID string `json:"sourcePortId"`
	TargetNodeID string `json:"targetNodeId"`
	TargetPortID string `json:"targetPortId"`
}

// Default port ids used when an edge leaves a port unspecified. Legacy
// documents recorded single-port connections without explicit port ids.
const (
	DefaultSourcePort = "output"
	DefaultTargetPort = "input"
)

// SourcePort returns the edge's source port id, defaulting for legacy edges.
func (e *Edge) SourcePort() string {
	if e.SourcePortID == "" {
		return DefaultSourcePort
	}
	return e.SourcePortID
}

// TargetPort returns the edge's target port id, defaulting for legacy edges.
func (e *Edge) TargetPort() string {
	if e.TargetPortID == "" {
		return DefaultTargetPort
	}
	return e.TargetPortID
}

// Touches reports whether the edge references the given node on either end.
func (e *Edge) Touches(nodeID string) bool {
	return e.SourceNodeID == nodeID || e.TargetNodeID == nodeID
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
