package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/flowgraph/internal/coordinator"
	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/vk/flowgraph/internal/model"
)

// Run executes the loaded flow once and prints a per-node summary.
func (a *App) Run(ctx context.Context, cfg *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	triggerInputs := map[string]any{}
	if cfg.TriggerInput != "" {
		triggerInputs["user_input"] = cfg.TriggerInput
	}

	a.logger.Info("Starting flow execution.", "flowID", a.info.ID, "name", a.info.Name)
	run, err := a.service.RunFlow(ctx, triggerInputs, coordinator.RunOptions{
		Workers: cfg.Workers,
	})
	if err != nil {
		return fmt.Errorf("flow execution failed to start: %w", err)
	}

	a.printSummary(run)
	if failed := run.Failed(); len(failed) > 0 {
		sort.Strings(failed)
		return fmt.Errorf("flow finished with failed nodes: %v", failed)
	}
	a.logger.Info("Flow execution finished.")
	return nil
}

// printSummary writes the per-node outcome table to the output writer.
func (a *App) printSummary(run *coordinator.FlowRun) {
	ids := make([]string, 0, len(run.Results))
	for id := range run.Results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Fprintln(a.outW)
	for _, id := range ids {
		res := run.Results[id]
		switch res.Status {
		case model.StatusSuccess:
			fmt.Fprintf(a.outW, "  ✅ %-20s %dms\n", id, res.ExecutionTime)
		case model.StatusSkipped:
			fmt.Fprintf(a.outW, "  ⏭️ %-20s %s\n", id, res.Error)
		default:
			fmt.Fprintf(a.outW, "  ❌ %-20s %s\n", id, res.Error)
		}
	}
	fmt.Fprintln(a.outW)
}
