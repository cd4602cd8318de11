// Package statestore tracks the mutable execution state of nodes and fans
// changes out to subscribers.
//
// # Why statestore exists
//
// It isolates mutable execution state (status, outputs, errors) from the
// flow document structure (nodes, edges) owned by the graph package.
// The editor UI subscribes here to re-render status badges; the coordinator
// and executors write here as an execution progresses.
//
// # Lifecycle
//
// A Store is created per editor session and injected explicitly; there is
// no package-level singleton, so tests construct isolated instances instead
// of resetting shared state. Per-node records are created lazily on first
// write, default to Pending, and are never deleted implicitly while the node
// exists.
//
// # Notification semantics
//
//   - Every change notifies that node's subscribers first, then all global
//     subscribers, in registration order.
//   - Delivery for one change is synchronous and never interleaves with the
//     delivery sweep of another change.
//   - A panicking subscriber is recovered and logged; the remaining
//     subscribers are still notified.
//
// Subscriber callbacks therefore must not write back into the store
// synchronously; reads are safe.
package statestore

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vk/flowgraph/internal/model"
)

// Callback receives a snapshot of a node's state after a change.
type Callback func(state *model.ExecutionState)

// Unsubscribe removes a subscription. Calling it more than once is a no-op.
type Unsubscribe func()

type subscription struct {
	seq int64
	fn  Callback
}

// Store is the execution state registry. The zero value is not usable; use
// New.
type Store struct {
	logger *slog.Logger

	mu     sync.RWMutex
	states map[string]*model.ExecutionState
	subs   map[string][]subscription
	global []subscription
	seq    int64

	// notifyMu serializes delivery sweeps so two changes never interleave
	// their notifications.
	notifyMu sync.Mutex
}

// New creates an empty store. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger: logger,
		states: make(map[string]*model.ExecutionState),
		subs:   make(map[string][]subscription),
	}
}

// SetStatus merges a status change into the node's state. StartedAt is
// stamped the first time the status becomes Running; CompletedAt is stamped
// whenever the status transitions into a terminal state. The optional
// metadata patch is merged key-by-key.
func (s *Store) SetStatus(nodeID string, status model.Status, message string, metadata map[string]any) {
	s.mu.Lock()
	st := s.stateLocked(nodeID)
	st.Status = status
	st.Message = message
	if status == model.StatusRunning && st.StartedAt.IsZero() {
		st.StartedAt = time.Now()
	}
	if status.Terminal() {
		st.CompletedAt = time.Now()
	}
	if len(metadata) > 0 {
		if st.Metadata == nil {
			st.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			st.Metadata[k] = v
		}
	}
	snapshot := st.Clone()
	targets := s.subscribersLocked(nodeID)
	s.mu.Unlock()

	s.notify(targets, snapshot)
}

// SetOutputs merges outputs into the node's state. A node currently Running
// is promoted to Success: outputs arriving is taken to mean the execution
// finished. Known limitation: an executor streaming partial outputs before
// truly finishing would be misreported; this preserves the observable
// behavior the UI depends on.
func (s *Store) SetOutputs(nodeID string, outputs map[string]any) {
	s.mu.Lock()
	st := s.stateLocked(nodeID)
	if st.Outputs == nil {
		st.Outputs = make(map[string]any, len(outputs))
	}
	for k, v := range outputs {
		st.Outputs[k] = v
	}
	if st.Status == model.StatusRunning {
		st.Status = model.StatusSuccess
		st.CompletedAt = time.Now()
	}
	snapshot := st.Clone()
	targets := s.subscribersLocked(nodeID)
	s.mu.Unlock()

	s.notify(targets, snapshot)
}

// SetError forces the node into the Error state with the given message.
func (s *Store) SetError(nodeID string, message string) {
	s.mu.Lock()
	st := s.stateLocked(nodeID)
	st.Status = model.StatusError
	st.Error = message
	st.Message = message
	st.CompletedAt = time.Now()
	snapshot := st.Clone()
	targets := s.subscribersLocked(nodeID)
	s.mu.Unlock()

	s.notify(targets, snapshot)
}

// GetStatus returns the node's status, Pending when nothing was ever
// recorded.
func (s *Store) GetStatus(nodeID string) model.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.states[nodeID]; ok {
		return st.Status
	}
	return model.StatusPending
}

// GetState returns a snapshot of the node's state, or nil when nothing was
// ever recorded.
func (s *Store) GetState(nodeID string) *model.ExecutionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.states[nodeID]; ok {
		return st.Clone()
	}
	return nil
}

// Subscribe registers a callback for one node's changes. If state already
// exists for the node, the callback fires immediately with the current
// snapshot. The returned Unsubscribe removes only this registration and is
// idempotent.
func (s *Store) Subscribe(nodeID string, fn Callback) Unsubscribe {
	s.mu.Lock()
	s.seq++
	sub := subscription{seq: s.seq, fn: fn}
	s.subs[nodeID] = append(s.subs[nodeID], sub)
	var snapshot *model.ExecutionState
	if st, ok := s.states[nodeID]; ok {
		snapshot = st.Clone()
	}
	s.mu.Unlock()

	if snapshot != nil {
		s.notify([]subscription{sub}, snapshot)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			list := s.subs[nodeID]
			for i, candidate := range list {
				if candidate.seq == sub.seq {
					s.subs[nodeID] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
			if len(s.subs[nodeID]) == 0 {
				delete(s.subs, nodeID)
			}
		})
	}
}

// SubscribeGlobal registers a callback for every node's changes. Unlike
// Subscribe it does not replay current state on registration.
func (s *Store) SubscribeGlobal(fn Callback) Unsubscribe {
	s.mu.Lock()
	s.seq++
	sub := subscription{seq: s.seq, fn: fn}
	s.global = append(s.global, sub)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, candidate := range s.global {
				if candidate.seq == sub.seq {
					s.global = append(s.global[:i:i], s.global[i+1:]...)
					break
				}
			}
		})
	}
}

// Reset forces a node back to Pending, clearing any recorded outcome, and
// notifies. It does not abort an in-flight remote call; a late response will
// overwrite this state when it eventually lands.
func (s *Store) Reset(nodeID string) {
	s.mu.Lock()
	st := &model.ExecutionState{NodeID: nodeID, Status: model.StatusPending}
	s.states[nodeID] = st
	snapshot := st.Clone()
	targets := s.subscribersLocked(nodeID)
	s.mu.Unlock()

	s.notify(targets, snapshot)
}

// ResetAll resets every tracked node.
func (s *Store) ResetAll() {
	s.mu.RLock()
	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		s.Reset(id)
	}
}

// stateLocked returns the node's record, creating a Pending one lazily.
// Caller holds mu.
func (s *Store) stateLocked(nodeID string) *model.ExecutionState {
	st, ok := s.states[nodeID]
	if !ok {
		st = &model.ExecutionState{NodeID: nodeID, Status: model.StatusPending}
		s.states[nodeID] = st
	}
	return st
}

// subscribersLocked snapshots the delivery list for one node: per-node
// subscribers first, then global ones, each in registration order. Caller
// holds mu.
func (s *Store) subscribersLocked(nodeID string) []subscription {
	targets := make([]subscription, 0, len(s.subs[nodeID])+len(s.global))
	targets = append(targets, s.subs[nodeID]...)
	targets = append(targets, s.global...)
	return targets
}

// notify delivers one change to the given subscribers. The sweep is
// serialized so deliveries for different changes never interleave. A
// panicking callback is logged and skipped.
func (s *Store) notify(targets []subscription, state *model.ExecutionState) {
	if len(targets) == 0 {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	for _, sub := range targets {
		s.deliver(sub, state)
	}
}

func (s *Store) deliver(sub subscription, state *model.ExecutionState) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("State subscriber panicked.",
				"nodeID", state.NodeID, "error", fmt.Sprintf("%v", r))
		}
	}()
	sub.fn(state)
}
