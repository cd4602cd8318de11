package chatinput

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowgraph/internal/executor"
	"github.com/vk/flowgraph/internal/model"
	"github.com/vk/flowgraph/internal/remote"
)

func newContext(inputs map[string]any) *executor.ExecContext {
	return &executor.ExecContext{
		FlowID: 1,
		Node:   &model.Node{ID: "trigger", TypeID: TypeID},
		Type:   &model.NodeType{ID: TypeID, Name: "Chat Input"},
		Inputs: inputs,
	}
}

func TestValidateInputs(t *testing.T) {
	s := &Strategy{}

	t.Run("accepts user input", func(t *testing.T) {
		assert.NoError(t, s.ValidateInputs(map[string]any{"user_input": "hello"}))
	})

	t.Run("rejects missing input", func(t *testing.T) {
		assert.Error(t, s.ValidateInputs(map[string]any{}))
	})

	t.Run("rejects whitespace-only input", func(t *testing.T) {
		assert.Error(t, s.ValidateInputs(map[string]any{"user_input": "   "}))
	})
}

func TestPrepareRequest(t *testing.T) {
	s := &Strategy{}

	req, err := s.PrepareRequest(newContext(map[string]any{"user_input": "  hello  "}))
	require.NoError(t, err)
	assert.Equal(t, "hello", req.Inputs["user_input"], "input must arrive trimmed")
	assert.Equal(t, "trigger", req.NodeID)
}

func TestProcessResult(t *testing.T) {
	t.Run("passes a backend envelope through", func(t *testing.T) {
		s := &Strategy{}
		envelope := map[string]any{"session_id": "s1", "input_text": "hello"}
		got, err := s.ProcessResult(newContext(nil), &remote.Response{
			Status:  "success",
			Outputs: map[string]any{"message_data": envelope},
		})
		require.NoError(t, err)
		assert.Equal(t, envelope, got["message_data"])
	})

	t.Run("wraps a bare string answer", func(t *testing.T) {
		s := &Strategy{}
		got, err := s.ProcessResult(newContext(nil), &remote.Response{
			Status:  "success",
			Outputs: map[string]any{"message_data": "hello"},
		})
		require.NoError(t, err)

		md, ok := got["message_data"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "hello", md["input_text"])
		assert.NotEmpty(t, md["session_id"])
	})

	t.Run("rebuilds the envelope from the prepared input", func(t *testing.T) {
		s := &Strategy{}
		_, err := s.PrepareRequest(newContext(map[string]any{"user_input": "hi there"}))
		require.NoError(t, err)

		got, err := s.ProcessResult(newContext(nil), &remote.Response{Status: "success"})
		require.NoError(t, err)

		md, ok := got["message_data"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "hi there", md["input_text"])
		assert.Equal(t, "string", md["input_type"])
	})

	t.Run("keeps other backend keys when rebuilding the envelope", func(t *testing.T) {
		s := &Strategy{}
		got, err := s.ProcessResult(newContext(nil), &remote.Response{
			Status: "success",
			Outputs: map[string]any{
				"message_data": "hello",
				"logs":         []any{"trigger fired"},
			},
		})
		require.NoError(t, err)

		md, ok := got["message_data"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "hello", md["input_text"])
		assert.Equal(t, []any{"trigger fired"}, got["logs"])
	})

	t.Run("fails when nothing can be rebuilt", func(t *testing.T) {
		s := &Strategy{}
		_, err := s.ProcessResult(newContext(nil), &remote.Response{Status: "success"})
		assert.Error(t, err)
	})
}
