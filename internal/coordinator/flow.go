package coordinator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/vk/flowgraph/internal/model"
)

// RunOptions tune a whole-flow run.
type RunOptions struct {
	// Workers bounds the number of nodes executing concurrently.
	Workers int
	// Callbacks observe every node attempt in the run.
	Callbacks Callbacks
}

// DefaultWorkers is used when RunOptions leaves Workers unset.
const DefaultWorkers = 4

// FlowRun is the outcome of one whole-flow execution.
type FlowRun struct {
	// TriggerID is the node the run started from.
	TriggerID string
	// Results holds the terminal result of every node in the flow.
	Results map[string]*model.ExecutionResult
}

// Failed returns the ids of nodes that ended in Error, in no particular
// order.
func (r *FlowRun) Failed() []string {
	var ids []string
	for id, res := range r.Results {
		if res.Status == model.StatusError {
			ids = append(ids, id)
		}
	}
	return ids
}

// flowNode is the scheduling record for one node in a run.
type flowNode struct {
	id         string
	depCount   atomic.Int32
	dependents []*flowNode
	doneOnce   sync.Once
}

// RunFlow executes the whole flow: the trigger first with the given inputs,
// then every downstream node in dependency order over a bounded worker
// pool. A failing node skips its downstream subtree; independent branches
// keep running. Node failures are reported in the FlowRun, not as an
// error; the error return covers structural problems only (no trigger,
// more than one trigger, a cycle).
func (s *Service) RunFlow(ctx context.Context, triggerInputs map[string]any, opts RunOptions) (*FlowRun, error) {
	logger := ctxlog.FromContext(ctx).With("flowID", s.flowID)

	triggerID, err := s.findTrigger()
	if err != nil {
		return nil, err
	}

	nodes, err := s.buildSchedule()
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	run := &FlowRun{
		TriggerID: triggerID,
		Results:   make(map[string]*model.ExecutionResult, len(nodes)),
	}
	var resultsMu sync.Mutex
	record := func(id string, res *model.ExecutionResult) {
		resultsMu.Lock()
		run.Results[id] = res
		resultsMu.Unlock()
	}

	readyChan := make(chan *flowNode, len(nodes))
	var wg sync.WaitGroup
	wg.Add(len(nodes))

	rootCount := 0
	for _, n := range nodes {
		if n.depCount.Load() == 0 {
			readyChan <- n
			rootCount++
		}
	}
	logger.Debug("Starting flow run.", "nodes", len(nodes), "roots", rootCount, "workers", workers)

	var skipDownstream func(n *flowNode, cause string)
	skipDownstream = func(n *flowNode, cause string) {
		for _, dep := range n.dependents {
			dep.doneOnce.Do(func() {
				msg := fmt.Sprintf("Skipped due to upstream failure of %q.", cause)
				logger.Warn("Skipping node: upstream failed.", "nodeID", dep.id, "upstream", cause)
				s.store.SetStatus(dep.id, model.StatusSkipped, msg, nil)
				res := s.finish(dep.id, skipped(time.Now(), msg), Options{Callbacks: opts.Callbacks})
				record(dep.id, res)
				wg.Done()
				skipDownstream(dep, cause)
			})
		}
	}

	worker := func(workerID int) {
		for n := range readyChan {
			if ctx.Err() != nil {
				n.doneOnce.Do(func() {
					logger.Warn("Run canceled, skipping node.", "nodeID", n.id)
					s.store.SetStatus(n.id, model.StatusSkipped, "Execution canceled.", nil)
					record(n.id, s.finish(n.id, skipped(time.Now(), "Execution canceled."), Options{Callbacks: opts.Callbacks}))
					wg.Done()
					skipDownstream(n, n.id)
				})
				continue
			}

			nodeOpts := Options{Callbacks: opts.Callbacks}
			if n.id == triggerID {
				nodeOpts.Inputs = triggerInputs
			}
			logger.Debug("Worker picked up node.", "workerID", workerID, "nodeID", n.id)
			res := s.ExecuteNode(ctx, n.id, nodeOpts)
			record(n.id, res)

			if !res.Success {
				skipDownstream(n, n.id)
				wg.Done()
				continue
			}
			for _, dep := range n.dependents {
				if dep.depCount.Add(-1) == 0 {
					readyChan <- dep
				}
			}
			wg.Done()
		}
	}

	for i := 0; i < workers; i++ {
		go worker(i)
	}
	wg.Wait()
	close(readyChan)

	if failed := run.Failed(); len(failed) > 0 {
		logger.Warn("Flow run finished with failures.", "failed", failed)
	} else {
		logger.Info("Flow run finished.", "nodes", len(run.Results))
	}
	return run, nil
}

// findTrigger locates the single enabled trigger node the run starts from.
func (s *Service) findTrigger() (string, error) {
	var triggers []string
	for _, n := range s.doc.Nodes() {
		if n.Disabled {
			continue
		}
		nt, ok := s.catalog.Get(n.TypeID)
		if !ok {
			continue
		}
		if nt.Category == model.CategoryTrigger {
			triggers = append(triggers, n.ID)
		}
	}
	switch len(triggers) {
	case 0:
		return "", fmt.Errorf("flow has no trigger node")
	case 1:
		return triggers[0], nil
	default:
		return "", fmt.Errorf("flow has %d trigger nodes; exactly one is required", len(triggers))
	}
}

// buildSchedule derives the dependency graph from the edge list and rejects
// cycles up front; the worker pool would deadlock on one otherwise.
func (s *Service) buildSchedule() (map[string]*flowNode, error) {
	nodes := make(map[string]*flowNode)
	for _, n := range s.doc.Nodes() {
		nodes[n.ID] = &flowNode{id: n.ID}
	}

	seen := make(map[[2]string]bool)
	for _, e := range s.doc.Edges() {
		pair := [2]string{e.SourceNodeID, e.TargetNodeID}
		if seen[pair] {
			continue
		}
		seen[pair] = true
		src, ok := nodes[e.SourceNodeID]
		if !ok {
			continue
		}
		dst, ok := nodes[e.TargetNodeID]
		if !ok {
			continue
		}
		src.dependents = append(src.dependents, dst)
		dst.depCount.Add(1)
	}

	// Kahn's check: every node must become reachable from a root.
	remaining := make(map[string]int, len(nodes))
	var ready []*flowNode
	for id, n := range nodes {
		remaining[id] = int(n.depCount.Load())
		if remaining[id] == 0 {
			ready = append(ready, n)
		}
	}
	visited := 0
	for len(ready) > 0 {
		n := ready[len(ready)-1]
		ready = ready[:len(ready)-1]
		visited++
		for _, dep := range n.dependents {
			remaining[dep.id]--
			if remaining[dep.id] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	if visited != len(nodes) {
		return nil, fmt.Errorf("flow contains a cycle")
	}
	return nodes, nil
}
