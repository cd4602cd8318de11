// Package transcription implements the execution strategy for the
// "transcription" node: audio in, transcribed text out under ai_response.
package transcription

import (
	"fmt"
	"strings"

	"github.com/vk/flowgraph/internal/executor"
	"github.com/vk/flowgraph/internal/remote"
)

// TypeID is the catalog id this package serves.
const TypeID = "transcription"

// DefaultContentType is assumed when the voice payload carries no type of
// its own. Telegram voice notes are OGG/Opus, which is where most audio in
// these flows comes from.
const DefaultContentType = "audio/ogg"

// Module implements the executor.Module interface for this package.
type Module struct{}

// Register registers the strategy with the registry.
func (m *Module) Register(r *executor.Registry) {
	r.Register(TypeID, &Strategy{})
}

// Strategy executes a transcription node.
type Strategy struct {
	executor.Base
}

// ValidateInputs requires a voice-shaped value somewhere in the connected
// inputs: either at a port directly or one level down inside an envelope.
func (s *Strategy) ValidateInputs(inputs map[string]any) error {
	if _, _, ok := findVoice(inputs); !ok {
		return fmt.Errorf("no voice input found from connected nodes: connect a Voice Input node")
	}
	return nil
}

// PrepareRequest rebuilds the message envelope around the located voice
// payload, forcing the transcription flag and defaulting the content type.
func (s *Strategy) PrepareRequest(ec *executor.ExecContext) (*remote.Request, error) {
	voice, envelope, ok := findVoice(ec.Inputs)
	if !ok {
		return nil, fmt.Errorf("no voice input found from connected nodes: connect a Voice Input node")
	}

	md := make(map[string]any, len(envelope)+4)
	for k, v := range envelope {
		md[k] = v
	}
	md["voice_input"] = voice
	md["input_type"] = "voice"
	md["send_to_transcription"] = true
	if _, ok := md["content_type"]; !ok {
		md["content_type"] = DefaultContentType
	}
	if _, ok := md["session_id"].(string); !ok {
		md["session_id"] = executor.NewSessionID()
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

// ProcessResult lands the transcribed text under ai_response whatever key
// the backend chose for it.
func (s *Strategy) ProcessResult(ec *executor.ExecContext, resp *remote.Response) (map[string]any, error) {
	text, ok := executor.FirstString(resp.Outputs,
		"ai_response.ai_response", "ai_response", "transcription.text", "transcription", "response", "text")
	if !ok {
		return nil, fmt.Errorf("backend response has no transcription text")
	}

	if envelope, ok := executor.AsMap(resp.Outputs["ai_response"]); ok {
		cp := make(map[string]any, len(envelope)+1)
		for k, v := range envelope {
			cp[k] = v
		}
		cp["ai_response"] = text
		return map[string]any{"ai_response": cp}, nil
	}

	envelope := map[string]any{
		"session_id":  sessionID(s.LastKnownInputs()),
		"input_type":  "voice",
		"ai_response": text,
	}
	return map[string]any{"ai_response": envelope}, nil
}

// findVoice scans the inputs for a voice payload: a data-URI string, a
// file-reference object, or an envelope carrying voice_input. Envelopes are
// searched one level deep.
func findVoice(inputs map[string]any) (voice any, envelope map[string]any, ok bool) {
	for _, v := range inputs {
		if isVoicePayload(v) {
			return v, map[string]any{}, true
		}
		m, isMap := executor.AsMap(v)
		if !isMap {
			continue
		}
		if inner, found := voiceFromEnvelope(m); found {
			return inner, m, true
		}
		// One level down: a port that forwards a whole outputs map.
		for _, nested := range m {
			nm, isMap := executor.AsMap(nested)
			if !isMap {
				continue
			}
			if inner, found := voiceFromEnvelope(nm); found {
				return inner, nm, true
			}
		}
	}
	return nil, nil, false
}

func voiceFromEnvelope(m map[string]any) (any, bool) {
	if v, ok := m["voice_input"]; ok && v != nil {
		return v, true
	}
	if isFileReference(m) {
		return m, true
	}
	return nil, false
}

func isVoicePayload(v any) bool {
	if s, ok := v.(string); ok {
		return strings.HasPrefix(s, "data:")
	}
	if m, ok := executor.AsMap(v); ok {
		return isFileReference(m)
	}
	return false
}

func isFileReference(m map[string]any) bool {
	id, ok := m["file_id"].(string)
	return ok && id != ""
}

func sessionID(inputs map[string]any) string {
	if md, ok := executor.AsMap(inputs["message_data"]); ok {
		if id, ok := md["session_id"].(string); ok && id != "" {
			return id
		}
	}
	return executor.NewSessionID()
}
