package coordinator_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowgraph/internal/collect"
	"github.com/vk/flowgraph/internal/coordinator"
	"github.com/vk/flowgraph/internal/executor"
	"github.com/vk/flowgraph/internal/graph"
	"github.com/vk/flowgraph/internal/guard"
	"github.com/vk/flowgraph/internal/model"
	"github.com/vk/flowgraph/internal/statestore"
	"github.com/vk/flowgraph/internal/testutil"
)

// harness bundles the full pipeline over a trigger -> chat -> send chain.
type harness struct {
	doc     *graph.Document
	store   *statestore.Store
	backend *testutil.FakeBackend
	service *coordinator.Service
}

func newHarness(t *testing.T, nodes []*model.Node, edges []*model.Edge) *harness {
	t.Helper()
	cat := testutil.NewCatalog(t)
	doc := testutil.NewDocument(t, cat, nodes, edges)
	store := statestore.New(nil)
	backend := testutil.NewFakeBackend()

	g := guard.New(doc, cat, store, nil)
	c := collect.New(doc, store)
	runner := executor.NewRunner(executor.NewRegistry(), store, backend)

	return &harness{
		doc:     doc,
		store:   store,
		backend: backend,
		service: coordinator.New(42, doc, cat, store, g, c, runner),
	}
}

func chainNodes() []*model.Node {
	return []*model.Node{
		testutil.Node("trigger", "chat-input"),
		testutil.Node("chat", "simple-openai-chat"),
		testutil.Node("send", "telegram-message-action"),
	}
}

func chainEdges() []*model.Edge {
	return []*model.Edge{
		testutil.Edge("trigger", "message_data", "chat", "message_data"),
		testutil.Edge("chat", "ai_response", "send", "message_text"),
	}
}

func TestExecuteNode(t *testing.T) {
	ctx := context.Background()

	t.Run("success records result and fires callbacks", func(t *testing.T) {
		h := newHarness(t, chainNodes()[:1], nil)
		h.backend.Respond("trigger", map[string]any{"message_data": map[string]any{"input_text": "hi"}})

		var transitions []model.Status
		h.store.Subscribe("trigger", func(state *model.ExecutionState) {
			transitions = append(transitions, state.Status)
		})

		var updatedNode *model.Node
		var completed *model.ExecutionResult
		res := h.service.ExecuteNode(ctx, "trigger", coordinator.Options{
			Inputs: map[string]any{"user_input": "hi"},
			Callbacks: coordinator.Callbacks{
				OnNodeUpdate:        func(id string, n *model.Node) { updatedNode = n },
				OnExecutionComplete: func(id string, r *model.ExecutionResult) { completed = r },
			},
		})

		require.True(t, res.Success)
		assert.Equal(t, model.StatusSuccess, res.Status)
		assert.Equal(t, []model.Status{model.StatusRunning, model.StatusSuccess}, transitions)

		require.NotNil(t, updatedNode)
		require.NotNil(t, updatedNode.LastExecution)
		assert.Equal(t, model.StatusSuccess, updatedNode.LastExecution.Status)
		assert.Same(t, res, completed)
	})

	t.Run("guard failure skips without touching the backend", func(t *testing.T) {
		h := newHarness(t, chainNodes()[:2], nil) // chat has no incoming edge
		var completed *model.ExecutionResult
		res := h.service.ExecuteNode(ctx, "chat", coordinator.Options{
			Callbacks: coordinator.Callbacks{
				OnExecutionComplete: func(id string, r *model.ExecutionResult) { completed = r },
			},
		})

		assert.False(t, res.Success)
		assert.Equal(t, model.StatusSkipped, res.Status)
		assert.Equal(t, model.StatusSkipped, h.store.GetStatus("chat"))
		assert.Empty(t, h.backend.Calls())
		assert.Same(t, res, completed, "completion callback fires on skips too")
	})

	t.Run("disabled node is skipped", func(t *testing.T) {
		nodes := chainNodes()[:1]
		nodes[0].Disabled = true
		h := newHarness(t, nodes, nil)

		res := h.service.ExecuteNode(ctx, "trigger", coordinator.Options{})
		assert.Equal(t, model.StatusSkipped, res.Status)
		assert.Empty(t, h.backend.Calls())
	})

	t.Run("unknown node returns a failed result, not a panic", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		res := h.service.ExecuteNode(ctx, "ghost", coordinator.Options{})
		assert.False(t, res.Success)
		assert.Equal(t, model.StatusError, res.Status)
	})

	t.Run("collected inputs reach the backend and the node record", func(t *testing.T) {
		h := newHarness(t, chainNodes()[:2], chainEdges()[:1])
		h.store.SetOutputs("trigger", map[string]any{
			"message_data": map[string]any{"input_text": "from upstream"},
		})
		h.backend.Respond("chat", map[string]any{"ai_response": "answer"})

		res := h.service.ExecuteNode(ctx, "chat", coordinator.Options{})
		require.True(t, res.Success)

		call, ok := h.backend.CallFor("chat")
		require.True(t, ok)
		md, ok := call.Inputs["message_data"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "from upstream", md["input_text"])

		node, ok := h.doc.Node("chat")
		require.True(t, ok)
		assert.Equal(t, call.Inputs, node.Inputs, "collected inputs are published onto the node")
	})

	t.Run("backend failure is a result, never an error", func(t *testing.T) {
		h := newHarness(t, chainNodes()[:1], nil)
		h.backend.Fail("trigger", fmt.Errorf("backend down"))

		res := h.service.ExecuteNode(ctx, "trigger", coordinator.Options{
			Inputs: map[string]any{"user_input": "hi"},
		})
		require.False(t, res.Success)
		assert.Equal(t, model.StatusError, res.Status)
		assert.Contains(t, res.Error, "backend down")

		node, _ := h.doc.Node("trigger")
		require.NotNil(t, node.LastExecution)
		assert.Equal(t, model.StatusError, node.LastExecution.Status)
	})

	t.Run("settings merge defaults, stored settings and overrides", func(t *testing.T) {
		nodes := chainNodes()[:2]
		nodes[1].Settings = map[string]any{"system_prompt": "Be terse."}
		h := newHarness(t, nodes, chainEdges()[:1])
		h.store.SetOutputs("trigger", map[string]any{"message_data": map[string]any{"input_text": "x"}})
		h.backend.Respond("chat", map[string]any{"ai_response": "y"})

		h.service.ExecuteNode(ctx, "chat", coordinator.Options{
			Settings: map[string]any{"model": "gpt-4o"},
		})

		call, ok := h.backend.CallFor("chat")
		require.True(t, ok)
		assert.Equal(t, "gpt-4o", call.Settings["model"])
		assert.Equal(t, "Be terse.", call.Settings["system_prompt"])
	})
}

func TestRunFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("executes the whole chain in dependency order", func(t *testing.T) {
		h := newHarness(t, chainNodes(), chainEdges())
		h.backend.
			Respond("trigger", map[string]any{"message_data": map[string]any{"input_text": "hi"}}).
			Respond("chat", map[string]any{"ai_response": "answer"}).
			Respond("send", map[string]any{"delivery": map[string]any{"status": "sent"}})

		run, err := h.service.RunFlow(ctx, map[string]any{"user_input": "hi"}, coordinator.RunOptions{})
		require.NoError(t, err)
		assert.Equal(t, "trigger", run.TriggerID)
		require.Len(t, run.Results, 3)
		for id, res := range run.Results {
			assert.True(t, res.Success, "node %s should succeed", id)
		}
		assert.Empty(t, run.Failed())

		calls := h.backend.Calls()
		require.Len(t, calls, 3)
		assert.Equal(t, "trigger", calls[0].NodeID)
		assert.Equal(t, "chat", calls[1].NodeID)
		assert.Equal(t, "send", calls[2].NodeID)
	})

	t.Run("upstream failure skips the downstream subtree", func(t *testing.T) {
		h := newHarness(t, chainNodes(), chainEdges())
		h.backend.
			Respond("trigger", map[string]any{"message_data": map[string]any{"input_text": "hi"}}).
			Fail("chat", fmt.Errorf("model quota exceeded"))

		run, err := h.service.RunFlow(ctx, map[string]any{"user_input": "hi"}, coordinator.RunOptions{})
		require.NoError(t, err, "node failures never fail the run itself")

		assert.True(t, run.Results["trigger"].Success)
		assert.Equal(t, model.StatusError, run.Results["chat"].Status)
		assert.Equal(t, model.StatusSkipped, run.Results["send"].Status)
		assert.Contains(t, run.Results["send"].Error, `upstream failure of "chat"`)
		assert.Equal(t, []string{"chat"}, run.Failed())

		_, sendCalled := h.backend.CallFor("send")
		assert.False(t, sendCalled)
	})

	t.Run("requires exactly one trigger", func(t *testing.T) {
		h := newHarness(t, []*model.Node{testutil.Node("chat", "simple-openai-chat")}, nil)
		_, err := h.service.RunFlow(ctx, nil, coordinator.RunOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no trigger")

		h = newHarness(t, []*model.Node{
			testutil.Node("t1", "chat-input"),
			testutil.Node("t2", "chat-input"),
		}, nil)
		_, err = h.service.RunFlow(ctx, nil, coordinator.RunOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exactly one")
	})

	t.Run("disabled triggers do not count", func(t *testing.T) {
		nodes := []*model.Node{
			testutil.Node("t1", "chat-input"),
			testutil.Node("t2", "chat-input"),
		}
		nodes[1].Disabled = true
		h := newHarness(t, nodes, nil)
		h.backend.Respond("t1", map[string]any{"message_data": map[string]any{}})

		run, err := h.service.RunFlow(ctx, map[string]any{"user_input": "hi"}, coordinator.RunOptions{})
		require.NoError(t, err)
		assert.Equal(t, "t1", run.TriggerID)
	})

	t.Run("rejects cycles up front", func(t *testing.T) {
		cat := testutil.NewCatalog(t)
		doc := testutil.NewDocument(t, cat, []*model.Node{
			testutil.Node("trigger", "chat-input"),
			testutil.Node("a", "simple-openai-chat"),
			testutil.Node("b", "simple-openai-chat"),
		}, []*model.Edge{
			testutil.Edge("a", "ai_response", "b", "message_data"),
			testutil.Edge("b", "ai_response", "a", "message_data"),
		})
		store := statestore.New(nil)
		backend := testutil.NewFakeBackend()
		svc := coordinator.New(1, doc, cat, store,
			guard.New(doc, cat, store, nil),
			collect.New(doc, store),
			executor.NewRunner(executor.NewRegistry(), store, backend))

		_, err := svc.RunFlow(ctx, nil, coordinator.RunOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cycle")
	})

	t.Run("independent branches keep running after a failure", func(t *testing.T) {
		cat := testutil.NewCatalog(t)
		// trigger fans out to two independent chat nodes.
		doc := testutil.NewDocument(t, cat, []*model.Node{
			testutil.Node("trigger", "chat-input"),
			testutil.Node("left", "simple-openai-chat"),
			testutil.Node("right", "simple-openai-chat"),
		}, []*model.Edge{
			testutil.Edge("trigger", "message_data", "left", "message_data"),
			testutil.Edge("trigger", "message_data", "right", "message_data"),
		})
		store := statestore.New(nil)
		backend := testutil.NewFakeBackend().
			Respond("trigger", map[string]any{"message_data": map[string]any{"input_text": "hi"}}).
			Fail("left", fmt.Errorf("boom")).
			Respond("right", map[string]any{"ai_response": "fine"})
		svc := coordinator.New(1, doc, cat, store,
			guard.New(doc, cat, store, nil),
			collect.New(doc, store),
			executor.NewRunner(executor.NewRegistry(), store, backend))

		run, err := svc.RunFlow(ctx, map[string]any{"user_input": "hi"}, coordinator.RunOptions{Workers: 2})
		require.NoError(t, err)
		assert.Equal(t, model.StatusError, run.Results["left"].Status)
		assert.True(t, run.Results["right"].Success)
	})

	t.Run("callbacks fire for every node in the run", func(t *testing.T) {
		h := newHarness(t, chainNodes(), chainEdges())
		h.backend.
			Respond("trigger", map[string]any{"message_data": map[string]any{"input_text": "hi"}}).
			Fail("chat", fmt.Errorf("boom"))

		var mu sync.Mutex
		seen := make(map[string]model.Status)
		run, err := h.service.RunFlow(ctx, map[string]any{"user_input": "hi"}, coordinator.RunOptions{
			Callbacks: coordinator.Callbacks{
				OnExecutionComplete: func(id string, r *model.ExecutionResult) {
					mu.Lock()
					seen[id] = r.Status
					mu.Unlock()
				},
			},
		})
		require.NoError(t, err)
		require.Len(t, run.Results, 3)
		assert.Equal(t, map[string]model.Status{
			"trigger": model.StatusSuccess,
			"chat":    model.StatusError,
			"send":    model.StatusSkipped,
		}, seen)
	})
}
