// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Port, the typed contract point through which nodes
// exchange data.
//
// Why a closed DataType set?
//
// Edge validation happens in the editor, before anything executes. Keeping
// the set of port types small and closed means the compatibility matrix is
// total: every pair of types has a defined verdict, and the validator never
// has to guess about a type it has not seen. The wildcard TypeAny is the
// single escape hatch for node types that genuinely accept anything.
package model

import "fmt"

// DataType is the wire type of a port. The set is closed; TypeAny is
// compatible with every other member in both directions.
type DataType string

const (
	TypeString  DataType = "string"
	TypeNumber  DataType = "number"
	TypeBoolean DataType = "boolean"
	TypeObject  DataType = "object"
	TypeArray   DataType = "array"
	TypeAny     DataType = "any"
)

// ParseDataType maps a manifest type name onto a DataType. Unknown names are
// an error so that a typo in a manifest fails at load time, not at edge
// validation time.
func ParseDataType(s string) (DataType, error) {
	switch DataType(s) {
	case TypeString, TypeNumber, TypeBoolean, TypeObject, TypeArray, TypeAny:
		return DataType(s), nil
	default:
		return "", fmt.Errorf("unknown port data type %q", s)
	}
}

// AcceptedBy reports whether a value of type d may flow into a port of type
// target. Every concrete type accepts itself; TypeAny accepts and is
// accepted by everything.
func (d DataType) AcceptedBy(target DataType) bool {
	if d == TypeAny || target == TypeAny {
		return true
	}
	return d == target
}

// Port is a named, typed slot on a node type. Direction is implied by which
// list of the owning NodeType it appears in.
type Port struct {
	ID          string
	Name        string
	Label       string
	Description string
	DataType    DataType

	// Required applies to input ports only: a required input must have at
	// least one incoming edge before the node may execute.
	Required bool
}

// DisplayName returns the label when one is set, falling back to the port id.
func (p *Port) DisplayName() string {
	if p.Label != "" {
		return p.Label
	}
	return p.ID
}
