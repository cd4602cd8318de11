package executor

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vk/flowgraph/internal/model"
)

// NewSessionID mints a random conversation session id in UUIDv4 layout.
func NewSessionID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("cannot read random bytes: %v", err))
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

// Lookup resolves a possibly dotted path ("transcription.text") inside a
// loosely-typed map, descending through nested maps.
func Lookup(m map[string]any, path string) (any, bool) {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// FirstValue returns the first non-nil value among the given paths. Backend
// payloads for the same node type vary across versions, so extraction is an
// ordered chain of candidate locations.
func FirstValue(m map[string]any, paths ...string) (any, bool) {
	for _, p := range paths {
		if v, ok := Lookup(m, p); ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// FirstString returns the first non-empty string among the given paths.
func FirstString(m map[string]any, paths ...string) (string, bool) {
	for _, p := range paths {
		if v, ok := Lookup(m, p); ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// AsMap narrows a value to a string-keyed map.
func AsMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// InputType classifies a runtime value onto the port type vocabulary.
func InputType(v any) model.DataType {
	switch v.(type) {
	case string:
		return model.TypeString
	case bool:
		return model.TypeBoolean
	case int, int32, int64, float32, float64:
		return model.TypeNumber
	case map[string]any:
		return model.TypeObject
	case []any:
		return model.TypeArray
	default:
		return model.TypeAny
	}
}

// MessageData builds the canonical message envelope trigger nodes emit and
// chat nodes consume. Character and word counts ride along as metadata so
// downstream nodes never re-derive them.
func MessageData(sessionID string, input any) map[string]any {
	text, _ := input.(string)
	return map[string]any{
		"session_id": sessionID,
		"input_text": input,
		"input_type": string(InputType(input)),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"metadata": map[string]any{
			"character_count": utf8.RuneCountInString(text),
			"word_count":      len(strings.Fields(text)),
		},
	}
}
