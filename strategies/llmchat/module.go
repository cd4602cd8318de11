// Package llmchat implements the execution strategy shared by the chat
// completion node types. Both OpenAI and DeepSeek nodes speak the same
// contract: text in, an ai_response envelope out; only the backend-side
// model family differs.
package llmchat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vk/flowgraph/internal/executor"
	"github.com/vk/flowgraph/internal/remote"
)

// Catalog ids this package serves.
const (
	TypeOpenAI   = "simple-openai-chat"
	TypeDeepSeek = "simple-deepseek-chat"
)

// Module implements the executor.Module interface for this package.
type Module struct{}

// Register registers one strategy instance per served type id so their
// last-known-inputs caches stay independent.
func (m *Module) Register(r *executor.Registry) {
	r.Register(TypeOpenAI, &Strategy{})
	r.Register(TypeDeepSeek, &Strategy{})
}

// Strategy executes a chat completion node.
type Strategy struct {
	executor.Base
}

// ValidateInputs requires at least one usable text among the connected
// inputs. The search order matches what upstream nodes actually emit:
// a bare string, an envelope's ai_response, its input_text, then any
// string field at all.
func (s *Strategy) ValidateInputs(inputs map[string]any) error {
	if _, ok := extractText(inputs); !ok {
		return fmt.Errorf("no valid string input found from connected nodes: connect a node that outputs text")
	}
	return nil
}

// PrepareRequest checks the model setting and coerces bare scalar inputs
// into message envelopes before forwarding.
func (s *Strategy) PrepareRequest(ec *executor.ExecContext) (*remote.Request, error) {
	if _, err := executor.RequireSetting(ec, "model"); err != nil {
		return nil, fmt.Errorf("%w: pick a model in the node settings", err)
	}

	inputs := make(map[string]any, len(ec.Inputs))
	for port, v := range ec.Inputs {
		switch val := v.(type) {
		case string:
			inputs[port] = executor.MessageData(executor.NewSessionID(), strings.TrimSpace(val))
		case int, int64, float64:
			inputs[port] = executor.MessageData(executor.NewSessionID(), fmt.Sprint(val))
		default:
			inputs[port] = v
		}
	}
	s.Remember(inputs)
	return &remote.Request{
		FlowID:   ec.FlowID,
		NodeID:   ec.Node.ID,
		Inputs:   inputs,
		Settings: ec.Settings,
	}, nil
}

// ProcessResult guarantees the ai_response key and plain text content.
// Backends have answered with a full envelope, a bare string, and a
// handful of alternate keys over time; all of them normalize here.
func (s *Strategy) ProcessResult(ec *executor.ExecContext, resp *remote.Response) (map[string]any, error) {
	text, ok := executor.FirstString(resp.Outputs,
		"ai_response.ai_response", "ai_response", "response", "text")
	if !ok {
		return nil, fmt.Errorf("backend response has no recognizable chat output")
	}
	text = CleanText(text)
	if text == "" {
		return nil, fmt.Errorf("backend chat output is empty after cleanup")
	}

	if envelope, ok := executor.AsMap(resp.Outputs["ai_response"]); ok {
		cp := make(map[string]any, len(envelope)+1)
		for k, v := range envelope {
			cp[k] = v
		}
		cp["ai_response"] = text
		return map[string]any{"ai_response": cp}, nil
	}

	envelope := executor.MessageData(sessionID(s.LastKnownInputs()), inputText(s.LastKnownInputs()))
	envelope["ai_response"] = text
	return map[string]any{"ai_response": envelope}, nil
}

// extractText finds the first usable text among the input ports.
func extractText(inputs map[string]any) (string, bool) {
	for _, v := range inputs {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), true
		}
	}
	for _, key := range []string{"ai_response", "input_text"} {
		for _, v := range inputs {
			m, ok := executor.AsMap(v)
			if !ok {
				continue
			}
			if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s), true
			}
		}
	}
	for _, v := range inputs {
		m, ok := executor.AsMap(v)
		if !ok {
			continue
		}
		for _, field := range m {
			if s, ok := field.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s), true
			}
		}
	}
	for _, v := range inputs {
		switch n := v.(type) {
		case float64:
			return strconv.FormatFloat(n, 'f', -1, 64), true
		case int:
			return strconv.Itoa(n), true
		case int64:
			return strconv.FormatInt(n, 10), true
		}
	}
	return "", false
}

func sessionID(inputs map[string]any) string {
	for _, v := range inputs {
		if m, ok := executor.AsMap(v); ok {
			if id, ok := m["session_id"].(string); ok && id != "" {
				return id
			}
		}
	}
	return executor.NewSessionID()
}

func inputText(inputs map[string]any) string {
	text, _ := extractText(inputs)
	return text
}
