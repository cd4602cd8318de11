// Package voicedownload implements the execution strategy for the
// "download-telegram-voice" node: it resolves a Telegram voice file
// reference into an inline data URI inside the message envelope.
package voicedownload

import (
	"fmt"
	"strings"

	"github.com/vk/flowgraph/internal/executor"
	"github.com/vk/flowgraph/internal/remote"
)

// TypeID is the catalog id this package serves.
const TypeID = "download-telegram-voice"

// Module implements the executor.Module interface for this package.
type Module struct{}

// Register registers the strategy with the registry.
func (m *Module) Register(r *executor.Registry) {
	r.Register(TypeID, &Strategy{})
}

// Strategy executes a voice download node.
type Strategy struct {
	executor.Base
}

// ValidateInputs requires a message envelope carrying either a Telegram
// file reference or an already-inlined data URI.
func (s *Strategy) ValidateInputs(inputs map[string]any) error {
	if _, ok := voiceReference(inputs); !ok {
		return fmt.Errorf("no voice file reference found: connect a node that outputs message_data with a Telegram voice_input")
	}
	return nil
}

// PrepareRequest forwards the envelope holding the reference.
func (s *Strategy) PrepareRequest(ec *executor.ExecContext) (*remote.Request, error) {
	md, ok := voiceReference(ec.Inputs)
	if !ok {
		return nil, fmt.Errorf("no voice file reference found: connect a node that outputs message_data with a Telegram voice_input")
	}
	inputs := map[string]any{"message_data": md}
	s.Remember(inputs)
	return &remote.Request{
		FlowID:   ec.FlowID,
		NodeID:   ec.Node.ID,
		Inputs:   inputs,
		Settings: ec.Settings,
	}, nil
}

// ProcessResult remaps whatever shape the backend returned onto the
// canonical envelope: message_data.voice_input holding a data URI.
func (s *Strategy) ProcessResult(ec *executor.ExecContext, resp *remote.Response) (map[string]any, error) {
	md, _ := executor.AsMap(resp.Outputs["message_data"])

	uri, ok := dataURI(resp.Outputs, md)
	if !ok {
		return nil, fmt.Errorf("backend response has no downloadable voice payload")
	}

	out := make(map[string]any, len(md)+2)
	for k, v := range md {
		out[k] = v
	}
	if len(out) == 0 {
		if orig, ok := executor.AsMap(s.LastKnownInputs()["message_data"]); ok {
			for k, v := range orig {
				out[k] = v
			}
		}
	}
	out["voice_input"] = uri
	out["input_type"] = "voice"
	return map[string]any{"message_data": out}, nil
}

// dataURI extracts or assembles the inline audio payload. The backend has
// returned a ready data URI, a raw base64 body plus content type, and a
// plain "data"/"audio" key across versions.
func dataURI(outputs, md map[string]any) (string, bool) {
	if md != nil {
		if s, ok := md["voice_input"].(string); ok && strings.HasPrefix(s, "data:") {
			return s, true
		}
	}
	if s, ok := executor.FirstString(outputs, "voice_input", "data_uri"); ok && strings.HasPrefix(s, "data:") {
		return s, true
	}

	body, ok := executor.FirstString(outputs, "voice_data", "data", "audio", "base64")
	if !ok {
		return "", false
	}
	mime, ok := executor.FirstString(outputs, "content_type", "mime_type")
	if !ok && md != nil {
		mime, _ = md["content_type"].(string)
	}
	if mime == "" {
		mime = "audio/ogg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, body), true
}

// voiceReference finds the message envelope with a usable reference.
func voiceReference(inputs map[string]any) (map[string]any, bool) {
	for _, v := range inputs {
		m, ok := executor.AsMap(v)
		if !ok {
			continue
		}
		if usableReference(m) {
			return m, true
		}
		if nested, ok := executor.AsMap(m["message_data"]); ok && usableReference(nested) {
			return nested, true
		}
	}
	return nil, false
}

func usableReference(md map[string]any) bool {
	switch vi := md["voice_input"].(type) {
	case string:
		return strings.HasPrefix(vi, "data:") || vi != ""
	case map[string]any:
		id, ok := vi["file_id"].(string)
		return ok && id != ""
	}
	id, ok := md["file_id"].(string)
	return ok && id != ""
}
