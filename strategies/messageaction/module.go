// Package messageaction implements the execution strategy for the
// "telegram-message-action" node: it delivers upstream text to a Telegram
// chat and reports the delivery receipt.
package messageaction

import (
	"fmt"
	"strings"

	"github.com/vk/flowgraph/internal/executor"
	"github.com/vk/flowgraph/internal/remote"
)

// TypeID is the catalog id this package serves.
const TypeID = "telegram-message-action"

// Module implements the executor.Module interface for this package.
type Module struct{}

// Register registers the strategy with the registry.
func (m *Module) Register(r *executor.Registry) {
	r.Register(TypeID, &Strategy{})
}

// Strategy executes a message delivery node.
type Strategy struct {
	executor.Base
}

// ValidateInputs requires a usable message text among the connected
// inputs: a bare string, an envelope's ai_response, or its input_text.
func (s *Strategy) ValidateInputs(inputs map[string]any) error {
	if _, ok := messageText(inputs); !ok {
		return fmt.Errorf("no message text found from connected nodes: connect a node that outputs text")
	}
	return nil
}

// PrepareRequest resolves the target chat and forwards the message. The
// chat id may come from the node settings or ride along in the envelope
// from an upstream Telegram trigger; settings win.
func (s *Strategy) PrepareRequest(ec *executor.ExecContext) (*remote.Request, error) {
	text, ok := messageText(ec.Inputs)
	if !ok {
		return nil, fmt.Errorf("no message text found from connected nodes: connect a node that outputs text")
	}

	chatID := chatIDFromSettings(ec.Settings)
	if chatID == "" {
		chatID = chatIDFromInputs(ec.Inputs)
	}
	if chatID == "" {
		return nil, fmt.Errorf("no chat id available: set one in the node settings or connect a Telegram trigger")
	}

	inputs := map[string]any{
		"message_text": text,
		"chat_id":      chatID,
	}
	s.Remember(inputs)
	return &remote.Request{
		FlowID:   ec.FlowID,
		NodeID:   ec.Node.ID,
		Inputs:   inputs,
		Settings: ec.Settings,
	}, nil
}

// ProcessResult normalizes the backend's delivery receipt.
func (s *Strategy) ProcessResult(ec *executor.ExecContext, resp *remote.Response) (map[string]any, error) {
	last := s.LastKnownInputs()

	delivery := map[string]any{
		"status":  "sent",
		"chat_id": last["chat_id"],
	}
	if id, ok := executor.FirstValue(resp.Outputs, "message_id", "result.message_id"); ok {
		delivery["message_id"] = id
	}
	if chat, ok := executor.FirstValue(resp.Outputs, "chat_id", "result.chat.id"); ok {
		delivery["chat_id"] = chat
	}

	md := executor.MessageData(executor.NewSessionID(), last["message_text"])
	return map[string]any{
		"message_data": md,
		"delivery":     delivery,
	}, nil
}

// messageText pulls the text to deliver, preferring a generated answer over
// raw input.
func messageText(inputs map[string]any) (string, bool) {
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
	return "", false
}

func chatIDFromSettings(settings map[string]any) string {
	switch v := settings["chat_id"].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strings.TrimSpace(fmt.Sprint(int64(v)))
	case int, int64:
		return fmt.Sprint(v)
	}
	return ""
}

func chatIDFromInputs(inputs map[string]any) string {
	for _, v := range inputs {
		m, ok := executor.AsMap(v)
		if !ok {
			continue
		}
		if id, ok := executor.FirstString(m, "chat_id", "metadata.chat_id"); ok {
			return id
		}
		if n, ok := executor.FirstValue(m, "chat_id", "metadata.chat_id"); ok {
			if f, ok := n.(float64); ok {
				return fmt.Sprint(int64(f))
			}
		}
	}
	return ""
}
