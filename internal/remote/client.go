// Package remote is the boundary to the execution backend. The
// orchestration core treats it as an opaque RPC: prepare a request, get a
// response or an error, no retries.
package remote

import "context"

// Request is one node execution call.
type Request struct {
	FlowID   int64          `json:"flow_id"`
	NodeID   string         `json:"node_id"`
	Inputs   map[string]any `json:"inputs"`
	Settings map[string]any `json:"settings,omitempty"`
}

// Response is the backend's answer. Outputs shapes vary per node type;
// normalization is the executor's job, not the transport's.
type Response struct {
	Status  string         `json:"status"`
	Outputs map[string]any `json:"outputs"`
	Error   string         `json:"error,omitempty"`
}

// Client executes a prepared node request against the backend. A failure
// surfaces exactly once as an error; implementations must not retry on
// their own.
type Client interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// decodeResponse maps a loosely-typed payload (JSON object or socket.io
// event data) onto a Response.
func decodeResponse(data map[string]any) *Response {
	resp := &Response{}
	if s, ok := data["status"].(string); ok {
		resp.Status = s
	}
	if outputs, ok := data["outputs"].(map[string]any); ok {
		resp.Outputs = outputs
	}
	if e, ok := data["error"].(string); ok {
		resp.Error = e
	}
	return resp
}
