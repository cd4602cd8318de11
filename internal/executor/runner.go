package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/vk/flowgraph/internal/model"
	"github.com/vk/flowgraph/internal/remote"
	"github.com/vk/flowgraph/internal/statestore"
)

// Runner drives one node execution attempt through its strategy. Failures
// never escape as errors: every attempt ends in a terminal ExecutionResult
// and a matching state store transition, so a crashing node cannot take the
// rest of a flow run down with it.
type Runner struct {
	registry *Registry
	store    *statestore.Store
	client   remote.Client
}

// NewRunner wires a Runner to its strategy registry, state store and
// backend client.
func NewRunner(registry *Registry, store *statestore.Store, client remote.Client) *Runner {
	return &Runner{registry: registry, store: store, client: client}
}

// Execute runs one attempt: validate, prepare, mark Running, call the
// backend, normalize outputs and land on a terminal status.
func (r *Runner) Execute(ctx context.Context, ec *ExecContext) *model.ExecutionResult {
	logger := ctxlog.FromContext(ctx).With("nodeID", ec.Node.ID, "typeID", ec.Node.TypeID)
	started := time.Now()
	strategy := r.registry.Get(ec.Node.TypeID)

	if err := strategy.ValidateInputs(ec.Inputs); err != nil {
		logger.Warn("Node inputs rejected by strategy.", "error", err)
		return r.fail(ec, started, fmt.Errorf("invalid inputs: %w", err))
	}

	req, err := strategy.PrepareRequest(ec)
	if err != nil {
		logger.Warn("Failed to prepare execution request.", "error", err)
		return r.fail(ec, started, err)
	}

	r.store.SetStatus(ec.Node.ID, model.StatusRunning,
		fmt.Sprintf("Executing %s...", displayName(ec)), nil)
	logger.Debug("Dispatching node to execution backend.")

	resp, err := r.client.Execute(ctx, req)
	if err != nil {
		logger.Error("Backend call failed.", "error", err)
		return r.fail(ec, started, err)
	}
	if resp.Error != "" || resp.Status == "error" {
		msg := resp.Error
		if msg == "" {
			msg = "execution backend reported an error"
		}
		logger.Warn("Backend reported node failure.", "error", msg)
		return r.fail(ec, started, fmt.Errorf("%s", msg))
	}

	outputs, err := strategy.ProcessResult(ec, resp)
	if err != nil {
		logger.Warn("Failed to normalize backend outputs.", "error", err)
		return r.fail(ec, started, err)
	}
	if len(outputs) == 0 {
		logger.Warn("Backend returned no outputs.")
		return r.fail(ec, started, fmt.Errorf("execution produced no outputs"))
	}

	r.store.SetOutputs(ec.Node.ID, outputs)
	completed := time.Now()
	logger.Info("Node executed successfully.",
		"outputs", len(outputs), "durationMs", completed.Sub(started).Milliseconds())

	return &model.ExecutionResult{
		Success:       true,
		Status:        model.StatusSuccess,
		Outputs:       outputs,
		StartedAt:     started,
		CompletedAt:   completed,
		ExecutionTime: completed.Sub(started).Milliseconds(),
	}
}

// fail lands the attempt on Error in both the store and the result.
func (r *Runner) fail(ec *ExecContext, started time.Time, err error) *model.ExecutionResult {
	r.store.SetError(ec.Node.ID, err.Error())
	completed := time.Now()
	return &model.ExecutionResult{
		Success:       false,
		Status:        model.StatusError,
		Error:         err.Error(),
		StartedAt:     started,
		CompletedAt:   completed,
		ExecutionTime: completed.Sub(started).Milliseconds(),
	}
}

func displayName(ec *ExecContext) string {
	if ec.Node.Label != "" {
		return ec.Node.Label
	}
	if ec.Type != nil && ec.Type.Name != "" {
		return ec.Type.Name
	}
	return ec.Node.ID
}
