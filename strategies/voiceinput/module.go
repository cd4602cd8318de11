// Package voiceinput implements the execution strategy for the
// "voice-input" trigger node: a manual voice entry point that opens a
// conversation session with the audio payload attached.
package voiceinput

import (
	"fmt"
	"time"

	"github.com/vk/flowgraph/internal/executor"
	"github.com/vk/flowgraph/internal/remote"
)

// TypeID is the catalog id this package serves.
const TypeID = "voice-input"

// Module implements the executor.Module interface for this package.
type Module struct{}

// Register registers the strategy with the registry.
func (m *Module) Register(r *executor.Registry) {
	r.Register(TypeID, &Strategy{})
}

// Strategy executes the voice input trigger. The audio payload arrives as
// the trigger input; the strategy guarantees the message_data envelope a
// downstream transcription node consumes, with the voice payload under
// voice_input rather than input_text.
type Strategy struct {
	executor.Base
}

// ValidateInputs requires a voice payload to trigger with.
func (s *Strategy) ValidateInputs(inputs map[string]any) error {
	if _, ok := voiceData(inputs); !ok {
		return fmt.Errorf("no voice data provided")
	}
	return nil
}

// PrepareRequest forwards the voice payload together with its content type
// and the transcription flag.
func (s *Strategy) PrepareRequest(ec *executor.ExecContext) (*remote.Request, error) {
	voice, ok := voiceData(ec.Inputs)
	if !ok {
		return nil, fmt.Errorf("no voice data provided")
	}

	inputs := map[string]any{
		"voice_data":            voice,
		"send_to_transcription": transcriptionFlag(ec.Inputs),
	}
	if ct, ok := executor.FirstString(ec.Inputs, "content_type", "message_data.content_type"); ok {
		inputs["content_type"] = ct
	}
	s.Remember(inputs)
	return &remote.Request{
		FlowID:   ec.FlowID,
		NodeID:   ec.Node.ID,
		Inputs:   inputs,
		Settings: ec.Settings,
	}, nil
}

// ProcessResult guarantees a message_data envelope carrying the voice
// payload, building one when the backend returned nothing structured.
func (s *Strategy) ProcessResult(ec *executor.ExecContext, resp *remote.Response) (map[string]any, error) {
	if _, ok := executor.AsMap(resp.Outputs["message_data"]); ok {
		return resp.Outputs, nil
	}

	prepared := s.LastKnownInputs()
	voice, ok := voiceData(prepared)
	if !ok {
		return nil, fmt.Errorf("backend returned no message data and no voice payload is available to rebuild it")
	}

	md := map[string]any{
		"session_id":            executor.NewSessionID(),
		"voice_input":           voice,
		"input_type":            "voice",
		"timestamp":             time.Now().UTC().Format(time.RFC3339),
		"send_to_transcription": transcriptionFlag(prepared),
		"metadata": map[string]any{
			"file_size":    voiceSize(voice),
			"content_type": prepared["content_type"],
		},
	}

	out := make(map[string]any, len(resp.Outputs)+1)
	for k, v := range resp.Outputs {
		out[k] = v
	}
	out["message_data"] = md
	return out, nil
}

// voiceData pulls the audio payload from the known input locations. A
// payload is either an inline string (data URI or base64) or a reference
// object.
func voiceData(inputs map[string]any) (any, bool) {
	v, ok := executor.FirstValue(inputs, "voice_data", "voice_input", "message_data.voice_input")
	if !ok {
		return nil, false
	}
	if s, isStr := v.(string); isStr {
		return s, s != ""
	}
	if m, isMap := executor.AsMap(v); isMap {
		return m, len(m) > 0
	}
	return nil, false
}

func transcriptionFlag(inputs map[string]any) bool {
	flag, _ := inputs["send_to_transcription"].(bool)
	return flag
}

// voiceSize reports the payload size in bytes for inline payloads; a
// reference object has no measurable size here.
func voiceSize(voice any) int {
	if s, ok := voice.(string); ok {
		return len(s)
	}
	return 0
}
