// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
package model

// Category groups node types by their role in a flow.
type Category string

const (
	CategoryTrigger   Category = "trigger"
	CategoryProcessor Category = "processor"
	CategoryAction    Category = "action"
)

// ParseCategory maps a manifest category name onto a Category.
func ParseCategory(s string) (Category, bool) {
	switch Category(s) {
	case CategoryTrigger, CategoryProcessor, CategoryAction:
		return Category(s), true
	}
	return "", false
}

// NodeType is the catalog definition of a kind of node: its identity, its
// port contract and the default settings applied when an instance executes
// without overriding them.
type NodeType struct {
	ID          string
	Name        string
	Description string
	Category    Category
	Version     string
	Icon        string
	Color       string

	Inputs  []*Port
	Outputs []*Port

	// SettingsDefaults are merged under an instance's settings at
	// execution time; instance values always win.
	SettingsDefaults map[string]any
}

// InputPort resolves an input port by id.
func (t *NodeType) InputPort(id string) (*Port, bool) {
	return findPort(t.Inputs, id)
}

// OutputPort resolves an output port by id.
func (t *NodeType) OutputPort(id string) (*Port, bool) {
	return findPort(t.Outputs, id)
}

// RequiredInputs returns the input ports that must be wired before the node
// may execute, in declaration order.
func (t *NodeType) RequiredInputs() []*Port {
	var req []*Port
	for _, p := range t.Inputs {
		if p.Required {
			req = append(req, p)
		}
	}
	return req
}

func findPort(ports []*Port, id string) (*Port, bool) {
	for _, p := range ports {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}
