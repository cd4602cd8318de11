// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the execution lifecycle types: Status, ExecutionState
// (what the state store tracks per node) and ExecutionResult (what one
// execute attempt returns to its caller).
package model

import "time"

// Status is the lifecycle state of a node's most recent (or in-flight)
// execution.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// Terminal reports whether the status ends an execution attempt. CompletedAt
// is stamped only on a transition into a terminal status.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusError, StatusSkipped:
		return true
	}
	return false
}

// ExecutionState is the mutable per-node record kept by the state store. It
// is created lazily on first write and survives until the node is removed or
// explicitly reset.
type ExecutionState struct {
	NodeID      string         `json:"nodeId"`
	Status      Status         `json:"status"`
	Message     string         `json:"message,omitempty"`
	Error       string         `json:"error,omitempty"`
	Outputs     map[string]any `json:"outputs,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	StartedAt   time.Time      `json:"startedAt,omitzero"`
	CompletedAt time.Time      `json:"completedAt,omitzero"`
}

// Clone returns a copy safe to hand to subscribers.
func (s *ExecutionState) Clone() *ExecutionState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Outputs = copyMap(s.Outputs)
	cp.Metadata = copyMap(s.Metadata)
	return &cp
}

// ExecutionResult is the transient outcome of a single execute attempt. It
// is returned by the coordinator and folded into both the state store and
// the node's LastExecution record; it is never persisted on its own.
type ExecutionResult struct {
	Success     bool           `json:"success"`
	Status      Status         `json:"status"`
	Outputs     map[string]any `json:"outputs,omitempty"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt time.Time      `json:"completedAt"`
	// ExecutionTime is the wall-clock duration in milliseconds.
	ExecutionTime int64 `json:"executionTime"`
}

// LastExecution is the envelope persisted onto a node after every attempt.
// The exact field set must survive a save/reload round trip: the UI rebuilds
// status badges from it on mount.
type LastExecution struct {
	Status        Status         `json:"status"`
	Outputs       map[string]any `json:"outputs,omitempty"`
	Error         string         `json:"error,omitempty"`
	StartedAt     time.Time      `json:"startedAt"`
	CompletedAt   time.Time      `json:"completedAt"`
	ExecutionTime int64          `json:"executionTime"`
}

// Record converts a result into the persistable LastExecution envelope.
func (r *ExecutionResult) Record() *LastExecution {
	return &LastExecution{
		Status:        r.Status,
		Outputs:       copyMap(r.Outputs),
		Error:         r.Error,
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt,
		ExecutionTime: r.ExecutionTime,
	}
}
