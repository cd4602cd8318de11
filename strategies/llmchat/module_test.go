package llmchat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowgraph/internal/executor"
	"github.com/vk/flowgraph/internal/model"
	"github.com/vk/flowgraph/internal/remote"
)

func newContext(inputs, settings map[string]any) *executor.ExecContext {
	return &executor.ExecContext{
		FlowID:   1,
		Node:     &model.Node{ID: "chat", TypeID: TypeOpenAI},
		Type:     &model.NodeType{ID: TypeOpenAI, Name: "OpenAI Chat"},
		Inputs:   inputs,
		Settings: settings,
	}
}

func TestValidateInputs(t *testing.T) {
	s := &Strategy{}

	cases := []struct {
		name   string
		inputs map[string]any
		valid  bool
	}{
		{"bare string", map[string]any{"in": "hello"}, true},
		{"envelope ai_response", map[string]any{"in": map[string]any{"ai_response": "prev answer"}}, true},
		{"envelope input_text", map[string]any{"in": map[string]any{"input_text": "hello"}}, true},
		{"any string field", map[string]any{"in": map[string]any{"note": "something"}}, true},
		{"bare number", map[string]any{"in": 42.0}, true},
		{"nothing usable", map[string]any{"in": map[string]any{"n": 1.0}}, false},
		{"empty", map[string]any{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.ValidateInputs(tc.inputs)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestPrepareRequest(t *testing.T) {
	t.Run("missing model setting is an actionable error", func(t *testing.T) {
		s := &Strategy{}
		_, err := s.PrepareRequest(newContext(map[string]any{"in": "hello"}, nil))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model")
		assert.Contains(t, err.Error(), "node settings")
	})

	t.Run("bare string input is coerced into an envelope", func(t *testing.T) {
		s := &Strategy{}
		req, err := s.PrepareRequest(newContext(
			map[string]any{"in": " hello "},
			map[string]any{"model": "gpt-4o-mini"},
		))
		require.NoError(t, err)

		md, ok := req.Inputs["in"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "hello", md["input_text"])
		assert.NotEmpty(t, md["session_id"])
	})

	t.Run("envelopes pass through untouched", func(t *testing.T) {
		s := &Strategy{}
		envelope := map[string]any{"input_text": "hello", "session_id": "s1"}
		req, err := s.PrepareRequest(newContext(
			map[string]any{"in": envelope},
			map[string]any{"model": "gpt-4o-mini"},
		))
		require.NoError(t, err)
		assert.Equal(t, envelope, req.Inputs["in"])
	})
}

func TestProcessResult(t *testing.T) {
	t.Run("envelope answer keeps its fields and gets cleaned text", func(t *testing.T) {
		s := &Strategy{}
		got, err := s.ProcessResult(newContext(nil, nil), &remote.Response{
			Status: "success",
			Outputs: map[string]any{"ai_response": map[string]any{
				"session_id":  "s1",
				"ai_response": "<p>Hello **world**</p>",
			}},
		})
		require.NoError(t, err)

		env, ok := got["ai_response"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "s1", env["session_id"])
		assert.Equal(t, "Hello world", env["ai_response"])
	})

	t.Run("bare string answer is wrapped", func(t *testing.T) {
		s := &Strategy{}
		got, err := s.ProcessResult(newContext(nil, nil), &remote.Response{
			Status:  "success",
			Outputs: map[string]any{"response": "plain answer"},
		})
		require.NoError(t, err)

		env, ok := got["ai_response"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "plain answer", env["ai_response"])
	})

	t.Run("no recognizable output fails", func(t *testing.T) {
		s := &Strategy{}
		_, err := s.ProcessResult(newContext(nil, nil), &remote.Response{
			Status:  "success",
			Outputs: map[string]any{"weird": 1.0},
		})
		assert.Error(t, err)
	})
}

func TestCleanText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"html tags", "<div>Hello <b>there</b></div>", "Hello there"},
		{"markdown emphasis", "**bold** and __underlined__ and `code`", "bold and underlined and code"},
		{"headings", "# Title\nbody text", "Title body text"},
		{"whitespace runs", "a   b\n\n c", "a b c"},
		{"plain text untouched", "just words", "just words"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanText(tc.in))
		})
	}
}

func TestRegisterServesBothModels(t *testing.T) {
	reg := executor.NewRegistry()
	(&Module{}).Register(reg)
	assert.Equal(t, []string{TypeDeepSeek, TypeOpenAI}, reg.TypeIDs())
}
