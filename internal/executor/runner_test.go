package executor_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowgraph/internal/executor"
	"github.com/vk/flowgraph/internal/model"
	"github.com/vk/flowgraph/internal/remote"
	"github.com/vk/flowgraph/internal/statestore"
	"github.com/vk/flowgraph/internal/testutil"
)

func execContext(nodeID string) *executor.ExecContext {
	return &executor.ExecContext{
		FlowID: 7,
		Node:   &model.Node{ID: nodeID, TypeID: "pass-through"},
		Type:   &model.NodeType{ID: "pass-through", Name: "Pass Through"},
		Inputs: map[string]any{"in": "value"},
	}
}

func TestRunnerExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("success lands on Success with outputs", func(t *testing.T) {
		store := statestore.New(nil)
		backend := testutil.NewFakeBackend().Respond("n1", map[string]any{"out": "done"})
		runner := executor.NewRunner(executor.NewRegistry(), store, backend)

		res := runner.Execute(ctx, execContext("n1"))
		require.True(t, res.Success)
		assert.Equal(t, model.StatusSuccess, res.Status)
		assert.Equal(t, "done", res.Outputs["out"])
		assert.False(t, res.CompletedAt.Before(res.StartedAt))

		state := store.GetState("n1")
		require.NotNil(t, state)
		assert.Equal(t, model.StatusSuccess, state.Status)
		assert.Equal(t, "done", state.Outputs["out"])
	})

	t.Run("transport failure lands on Error", func(t *testing.T) {
		store := statestore.New(nil)
		backend := testutil.NewFakeBackend().Fail("n1", fmt.Errorf("connection refused"))
		runner := executor.NewRunner(executor.NewRegistry(), store, backend)

		res := runner.Execute(ctx, execContext("n1"))
		require.False(t, res.Success)
		assert.Equal(t, model.StatusError, res.Status)
		assert.Contains(t, res.Error, "connection refused")
		assert.Equal(t, model.StatusError, store.GetStatus("n1"))
	})

	t.Run("backend-reported error lands on Error", func(t *testing.T) {
		store := statestore.New(nil)
		backend := testutil.NewFakeBackend().RespondRaw("n1", &remote.Response{
			Status: "error",
			Error:  "model quota exceeded",
		})
		runner := executor.NewRunner(executor.NewRegistry(), store, backend)

		res := runner.Execute(ctx, execContext("n1"))
		require.False(t, res.Success)
		assert.Equal(t, "model quota exceeded", res.Error)
	})

	t.Run("empty outputs count as failure", func(t *testing.T) {
		store := statestore.New(nil)
		backend := testutil.NewFakeBackend().Respond("n1", map[string]any{})
		runner := executor.NewRunner(executor.NewRegistry(), store, backend)

		res := runner.Execute(ctx, execContext("n1"))
		require.False(t, res.Success)
		assert.Contains(t, res.Error, "no outputs")
	})

	t.Run("node goes Running before the backend call", func(t *testing.T) {
		store := statestore.New(nil)
		var statusDuringCall model.Status
		backend := &probeBackend{
			probe: func() { statusDuringCall = store.GetStatus("n1") },
			resp:  &remote.Response{Status: "success", Outputs: map[string]any{"out": 1}},
		}
		runner := executor.NewRunner(executor.NewRegistry(), store, backend)

		runner.Execute(ctx, execContext("n1"))
		assert.Equal(t, model.StatusRunning, statusDuringCall)
	})

	t.Run("unknown type id uses the pass-through fallback", func(t *testing.T) {
		store := statestore.New(nil)
		backend := testutil.NewFakeBackend().Respond("n1", map[string]any{"out": true})
		runner := executor.NewRunner(executor.NewRegistry(), store, backend)

		res := runner.Execute(ctx, execContext("n1"))
		require.True(t, res.Success)

		call, ok := backend.CallFor("n1")
		require.True(t, ok)
		assert.Equal(t, int64(7), call.FlowID)
		assert.Equal(t, "value", call.Inputs["in"])
	})
}

type probeBackend struct {
	probe func()
	resp  *remote.Response
}

func (p *probeBackend) Execute(ctx context.Context, req *remote.Request) (*remote.Response, error) {
	p.probe()
	return p.resp, nil
}

type rejectingStrategy struct {
	executor.Base
}

func (s *rejectingStrategy) ValidateInputs(inputs map[string]any) error {
	return fmt.Errorf("inputs are unacceptable")
}

func TestRunnerStrategyValidation(t *testing.T) {
	store := statestore.New(nil)
	backend := testutil.NewFakeBackend()
	reg := executor.NewRegistry()
	reg.Register("pass-through", &rejectingStrategy{})
	runner := executor.NewRunner(reg, store, backend)

	res := runner.Execute(context.Background(), execContext("n1"))
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "invalid inputs")
	assert.Empty(t, backend.Calls(), "a rejected node must never reach the backend")
}

func TestRegistry(t *testing.T) {
	t.Run("panics on duplicate registration", func(t *testing.T) {
		reg := executor.NewRegistry()
		reg.Register("x", &executor.Base{})
		assert.Panics(t, func() { reg.Register("x", &executor.Base{}) })
	})

	t.Run("type ids come back sorted", func(t *testing.T) {
		reg := executor.NewRegistry()
		reg.Register("b", &executor.Base{})
		reg.Register("a", &executor.Base{})
		assert.Equal(t, []string{"a", "b"}, reg.TypeIDs())
	})

	t.Run("known reports dedicated strategies only", func(t *testing.T) {
		reg := executor.NewRegistry()
		reg.Register("x", &executor.Base{})
		assert.True(t, reg.Known("x"))
		assert.False(t, reg.Known("y"))
		assert.NotNil(t, reg.Get("y"), "unknown ids still resolve to the fallback")
	})
}

func TestBaseRemembersInputs(t *testing.T) {
	b := &executor.Base{}
	ec := execContext("n1")

	_, err := b.PrepareRequest(ec)
	require.NoError(t, err)

	last := b.LastKnownInputs()
	assert.Equal(t, "value", last["in"])

	// Mutating the copy must not touch the cache.
	last["in"] = "changed"
	assert.Equal(t, "value", b.LastKnownInputs()["in"])
}
