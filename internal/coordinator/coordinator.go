// Package coordinator sequences one node execution end to end: required
// input guard, input collection, strategy execution, result recording and
// completion callbacks.
//
// ExecuteNode never reports an execution failure as an error. Failures are
// values: every attempt ends in a terminal ExecutionResult, the state store
// reflects it, and the registered callbacks fire. The error return is
// reserved for caller mistakes such as an unknown node id.
package coordinator

import (
	"context"
	"time"

	"github.com/vk/flowgraph/internal/catalog"
	"github.com/vk/flowgraph/internal/collect"
	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/vk/flowgraph/internal/executor"
	"github.com/vk/flowgraph/internal/graph"
	"github.com/vk/flowgraph/internal/guard"
	"github.com/vk/flowgraph/internal/model"
	"github.com/vk/flowgraph/internal/statestore"
)

// Callbacks observe an attempt's progress. Both are optional and both are
// invoked exactly once per ExecuteNode call, whatever the outcome.
type Callbacks struct {
	// OnNodeUpdate fires after the node record has absorbed the attempt
	// (inputs, outputs, lastExecution). The node is a private copy.
	OnNodeUpdate func(nodeID string, node *model.Node)
	// OnExecutionComplete fires last, with the attempt's final result.
	OnExecutionComplete func(nodeID string, result *model.ExecutionResult)
}

// Options tune a single ExecuteNode call.
type Options struct {
	// Inputs short-circuits collection; used for trigger nodes whose input
	// comes from the user, not the graph.
	Inputs map[string]any
	// Settings override the node's stored settings for this attempt only.
	Settings map[string]any
	// Callbacks observe the attempt.
	Callbacks Callbacks
}

// Service wires the execution pipeline over one flow document.
type Service struct {
	flowID    int64
	doc       *graph.Document
	catalog   *catalog.Catalog
	store     *statestore.Store
	guard     *guard.Guard
	collector *collect.Collector
	runner    *executor.Runner
}

// New assembles a Service for one flow.
func New(flowID int64, doc *graph.Document, cat *catalog.Catalog, store *statestore.Store, g *guard.Guard, c *collect.Collector, r *executor.Runner) *Service {
	return &Service{
		flowID:    flowID,
		doc:       doc,
		catalog:   cat,
		store:     store,
		guard:     g,
		collector: c,
		runner:    r,
	}
}

// ExecuteNode runs one attempt for nodeID and returns its terminal result.
func (s *Service) ExecuteNode(ctx context.Context, nodeID string, opts Options) *model.ExecutionResult {
	logger := ctxlog.FromContext(ctx).With("flowID", s.flowID, "nodeID", nodeID)
	started := time.Now()

	node, ok := s.doc.Node(nodeID)
	if !ok {
		logger.Error("Cannot execute: node not found.")
		return s.finish(nodeID, failed(started, "node not found"), opts)
	}
	if node.Disabled {
		logger.Info("Skipping disabled node.")
		s.store.SetStatus(nodeID, model.StatusSkipped, "Node is disabled.", nil)
		return s.finish(nodeID, skipped(started, "Node is disabled."), opts)
	}
	nt, ok := s.catalog.Get(node.TypeID)
	if !ok {
		logger.Error("Cannot execute: unknown node type.", "typeID", node.TypeID)
		s.store.SetError(nodeID, "unknown node type "+node.TypeID)
		return s.finish(nodeID, failed(started, "unknown node type "+node.TypeID), opts)
	}

	if res := s.guard.AssertOrNotify(ctx, nodeID); !res.IsValid {
		return s.finish(nodeID, skipped(started, res.Message), opts)
	}

	inputs := opts.Inputs
	if inputs == nil {
		collection, err := s.collector.Collect(ctx, nodeID)
		if err != nil {
			logger.Error("Input collection failed.", "error", err)
			s.store.SetError(nodeID, err.Error())
			return s.finish(nodeID, failed(started, err.Error()), opts)
		}
		for _, w := range collection.Warnings {
			logger.Warn("Input collection warning.", "detail", w.String())
		}
		inputs = collection.Values
	}

	// Publish the collected inputs onto the node record so the editor can
	// show what the node was fed, even if the attempt fails later.
	s.doc.UpdateNode(nodeID, func(n *model.Node) {
		n.Inputs = inputs
	})

	result := s.runner.Execute(ctx, &executor.ExecContext{
		FlowID:   s.flowID,
		Node:     node,
		Type:     nt,
		Inputs:   inputs,
		Settings: executor.MergeSettings(nt, node, opts.Settings),
	})
	return s.finish(nodeID, result, opts)
}

// finish records the attempt onto the node and fires the callbacks.
func (s *Service) finish(nodeID string, result *model.ExecutionResult, opts Options) *model.ExecutionResult {
	var updated *model.Node
	s.doc.UpdateNode(nodeID, func(n *model.Node) {
		n.LastExecution = result.Record()
		if result.Success {
			n.Outputs = result.Outputs
		}
		updated = n.Clone()
	})

	if opts.Callbacks.OnNodeUpdate != nil && updated != nil {
		opts.Callbacks.OnNodeUpdate(nodeID, updated)
	}
	if opts.Callbacks.OnExecutionComplete != nil {
		opts.Callbacks.OnExecutionComplete(nodeID, result)
	}
	return result
}

func failed(started time.Time, msg string) *model.ExecutionResult {
	now := time.Now()
	return &model.ExecutionResult{
		Status:        model.StatusError,
		Error:         msg,
		StartedAt:     started,
		CompletedAt:   now,
		ExecutionTime: now.Sub(started).Milliseconds(),
	}
}

func skipped(started time.Time, msg string) *model.ExecutionResult {
	now := time.Now()
	return &model.ExecutionResult{
		Status:        model.StatusSkipped,
		Error:         msg,
		StartedAt:     started,
		CompletedAt:   now,
		ExecutionTime: now.Sub(started).Milliseconds(),
	}
}
