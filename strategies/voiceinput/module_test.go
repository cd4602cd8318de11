package voiceinput

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
		Type:   &model.NodeType{ID: TypeID, Name: "Voice Input"},
		Inputs: inputs,
	}
}

func TestValidateInputs(t *testing.T) {
	s := &Strategy{}

	t.Run("accepts an inline payload", func(t *testing.T) {
		assert.NoError(t, s.ValidateInputs(map[string]any{"voice_data": "data:audio/ogg;base64,AAAA"}))
	})

	t.Run("accepts a reference object", func(t *testing.T) {
		assert.NoError(t, s.ValidateInputs(map[string]any{"voice_data": map[string]any{"file_id": "f1"}}))
	})

	t.Run("rejects missing payload", func(t *testing.T) {
		assert.Error(t, s.ValidateInputs(map[string]any{}))
	})

	t.Run("rejects empty payload", func(t *testing.T) {
		assert.Error(t, s.ValidateInputs(map[string]any{"voice_data": ""}))
	})
}

func TestPrepareRequest(t *testing.T) {
	s := &Strategy{}

	req, err := s.PrepareRequest(newContext(map[string]any{
		"voice_data":            "data:audio/ogg;base64,AAAA",
		"content_type":          "audio/ogg",
		"send_to_transcription": true,
	}))
	require.NoError(t, err)
	assert.Equal(t, "data:audio/ogg;base64,AAAA", req.Inputs["voice_data"])
	assert.Equal(t, "audio/ogg", req.Inputs["content_type"])
	assert.Equal(t, true, req.Inputs["send_to_transcription"])
	assert.Equal(t, "trigger", req.NodeID)
}

func TestProcessResult(t *testing.T) {
	t.Run("passes a backend envelope through", func(t *testing.T) {
		s := &Strategy{}
		envelope := map[string]any{"session_id": "s1", "voice_input": "data:audio/ogg;base64,AAAA"}
		got, err := s.ProcessResult(newContext(nil), &remote.Response{
			Status:  "success",
			Outputs: map[string]any{"message_data": envelope},
		})
		require.NoError(t, err)
		assert.Equal(t, envelope, got["message_data"])
	})

	t.Run("rebuilds the envelope from the prepared input", func(t *testing.T) {
		s := &Strategy{}
		_, err := s.PrepareRequest(newContext(map[string]any{
			"voice_data":            "data:audio/ogg;base64,AAAA",
			"content_type":          "audio/ogg",
			"send_to_transcription": true,
		}))
		require.NoError(t, err)

		got, err := s.ProcessResult(newContext(nil), &remote.Response{Status: "success"})
		require.NoError(t, err)

		md, ok := got["message_data"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "data:audio/ogg;base64,AAAA", md["voice_input"])
		assert.Equal(t, "voice", md["input_type"])
		assert.Equal(t, true, md["send_to_transcription"])
		assert.NotEmpty(t, md["session_id"])

		meta, ok := md["metadata"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, len("data:audio/ogg;base64,AAAA"), meta["file_size"])
		assert.Equal(t, "audio/ogg", meta["content_type"])
	})

	t.Run("feeds a transcription node", func(t *testing.T) {
		// The rebuilt envelope must be voice-shaped enough for the
		// transcription strategy to locate the payload.
		s := &Strategy{}
		_, err := s.PrepareRequest(newContext(map[string]any{"voice_data": "data:audio/ogg;base64,AAAA"}))
		require.NoError(t, err)

		got, err := s.ProcessResult(newContext(nil), &remote.Response{Status: "success"})
		require.NoError(t, err)

		md, ok := got["message_data"].(map[string]any)
		require.True(t, ok)
		voice, ok := md["voice_input"].(string)
		require.True(t, ok)
		assert.Contains(t, voice, "data:")
	})

	t.Run("fails when nothing can be rebuilt", func(t *testing.T) {
		s := &Strategy{}
		_, err := s.ProcessResult(newContext(nil), &remote.Response{Status: "success"})
		assert.Error(t, err)
	})
}
