// Package chatinput implements the execution strategy for the "chat-input"
// trigger node: a manual text entry point that opens a conversation session.
package chatinput

import (
	"fmt"
	"strings"

	"github.com/vk/flowgraph/internal/executor"
	"github.com/vk/flowgraph/internal/remote"
)

// TypeID is the catalog id this package serves.
const TypeID = "chat-input"

// Module implements the executor.Module interface for this package.
type Module struct{}

// Register registers the strategy with the registry.
func (m *Module) Register(r *executor.Registry) {
	r.Register(TypeID, &Strategy{})
}

// Strategy executes the chat input trigger. The user's text arrives as the
// trigger input; the backend (or this strategy, when the backend answers
// with a bare string) wraps it into the message_data envelope downstream
// chat nodes consume.
type Strategy struct {
	executor.Base
}

// ValidateInputs requires a non-empty text to trigger with.
func (s *Strategy) ValidateInputs(inputs map[string]any) error {
	if _, ok := userText(inputs); !ok {
		return fmt.Errorf("no user input provided")
	}
	return nil
}

// PrepareRequest forwards the trimmed user text.
func (s *Strategy) PrepareRequest(ec *executor.ExecContext) (*remote.Request, error) {
	text, ok := userText(ec.Inputs)
	if !ok {
		return nil, fmt.Errorf("no user input provided")
	}
	inputs := map[string]any{"user_input": text}
	s.Remember(inputs)
	return &remote.Request{
		FlowID:   ec.FlowID,
		NodeID:   ec.Node.ID,
		Inputs:   inputs,
		Settings: ec.Settings,
	}, nil
}

// ProcessResult guarantees a message_data envelope on the output, building
// one when the backend answered with a bare string or nothing structured.
func (s *Strategy) ProcessResult(ec *executor.ExecContext, resp *remote.Response) (map[string]any, error) {
	if md, ok := resp.Outputs["message_data"]; ok {
		if _, isMap := md.(map[string]any); isMap {
			return resp.Outputs, nil
		}
		if text, isStr := md.(string); isStr && text != "" {
			return withMessageData(resp.Outputs, executor.MessageData(executor.NewSessionID(), text)), nil
		}
	}

	text, ok := userText(s.LastKnownInputs())
	if !ok {
		return nil, fmt.Errorf("backend returned no message data and no input is available to rebuild it")
	}
	return withMessageData(resp.Outputs, executor.MessageData(executor.NewSessionID(), text)), nil
}

// withMessageData sets the synthesized envelope on a copy of the backend
// outputs, keeping whatever other keys the backend returned.
func withMessageData(outputs map[string]any, md map[string]any) map[string]any {
	out := make(map[string]any, len(outputs)+1)
	for k, v := range outputs {
		out[k] = v
	}
	out["message_data"] = md
	return out
}

// userText pulls the trigger text from the known input locations.
func userText(inputs map[string]any) (string, bool) {
	v, ok := executor.FirstValue(inputs, "user_input", "input", "message_data.input_text")
	if !ok {
		return "", false
	}
	text, ok := v.(string)
	if !ok {
		return "", false
	}
	text = strings.TrimSpace(text)
	return text, text != ""
}
