// Package executor turns a prepared node into a backend call and a
// normalized outcome. Per-type behavior lives in Strategy implementations;
// the Runner owns the lifecycle around them (status transitions, error
// capture, result recording) so no strategy can forget it.
package executor

import (
	"fmt"
	"sync"

	"github.com/vk/flowgraph/internal/model"
	"github.com/vk/flowgraph/internal/remote"
)

// ExecContext carries everything one execute attempt needs. It is built by
// the Runner and handed to the strategy hooks; strategies must treat the
// maps as read-only.
type ExecContext struct {
	FlowID int64
	Node   *model.Node
	Type   *model.NodeType

	// Inputs is the collected input map, keyed by target port id.
	Inputs map[string]any

	// Settings is the effective settings map: catalog defaults, overlaid
	// with the node's stored settings, overlaid with per-call overrides.
	Settings map[string]any
}

// Strategy is the per-node-type execution contract. Implementations embed
// Base and override only the hooks their type needs.
type Strategy interface {
	// ValidateInputs rejects input maps the node type cannot work with.
	// Returning an error fails the attempt before anything reaches the
	// backend.
	ValidateInputs(inputs map[string]any) error

	// PrepareRequest builds the backend request for one attempt.
	PrepareRequest(ec *ExecContext) (*remote.Request, error)

	// ProcessResult normalizes the backend's outputs into the shape
	// downstream nodes expect.
	ProcessResult(ec *ExecContext, resp *remote.Response) (map[string]any, error)

	// LastKnownInputs returns a copy of the inputs from the most recent
	// prepared attempt, or nil if the strategy never ran.
	LastKnownInputs() map[string]any
}

// Base provides the default hook behavior: accept any inputs, forward them
// to the backend verbatim, and pass outputs through untouched. Concrete
// strategies embed it and override selectively.
type Base struct {
	mu   sync.Mutex
	last map[string]any
}

// ValidateInputs accepts everything by default.
func (b *Base) ValidateInputs(inputs map[string]any) error {
	return nil
}

// PrepareRequest forwards inputs and effective settings unchanged.
func (b *Base) PrepareRequest(ec *ExecContext) (*remote.Request, error) {
	b.Remember(ec.Inputs)
	return &remote.Request{
		FlowID:   ec.FlowID,
		NodeID:   ec.Node.ID,
		Inputs:   ec.Inputs,
		Settings: ec.Settings,
	}, nil
}

// ProcessResult passes the backend outputs through untouched.
func (b *Base) ProcessResult(ec *ExecContext, resp *remote.Response) (map[string]any, error) {
	return resp.Outputs, nil
}

// Remember stores a copy of the inputs for LastKnownInputs. Strategies
// overriding PrepareRequest call this themselves.
func (b *Base) Remember(inputs map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if inputs == nil {
		b.last = nil
		return
	}
	cp := make(map[string]any, len(inputs))
	for k, v := range inputs {
		cp[k] = v
	}
	b.last = cp
}

// LastKnownInputs returns the remembered input map from the most recent
// prepared attempt.
func (b *Base) LastKnownInputs() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last == nil {
		return nil
	}
	cp := make(map[string]any, len(b.last))
	for k, v := range b.last {
		cp[k] = v
	}
	return cp
}

// MergeSettings computes the effective settings for one attempt: type
// defaults first, then the node's stored settings, then call overrides.
// Later layers win per key.
func MergeSettings(nt *model.NodeType, node *model.Node, overrides map[string]any) map[string]any {
	merged := make(map[string]any)
	if nt != nil {
		for k, v := range nt.SettingsDefaults {
			merged[k] = v
		}
	}
	if node != nil {
		for k, v := range node.Settings {
			merged[k] = v
		}
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// RequireSetting resolves a non-empty string setting or fails with a
// message naming the node type.
func RequireSetting(ec *ExecContext, key string) (string, error) {
	v, ok := ec.Settings[key]
	if !ok || v == nil {
		return "", fmt.Errorf("node type %q requires the %q setting", ec.Type.ID, key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("node type %q requires a non-empty %q setting", ec.Type.ID, key)
	}
	return s, nil
}
