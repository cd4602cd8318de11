package remote

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vk/flowgraph/internal/ctxlog"
	"resty.dev/v3"
)

// HTTPClient executes nodes against the backend's REST API.
type HTTPClient struct {
	client *resty.Client
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*resty.Client)

// WithTimeout overrides the default per-request timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// WithAuthToken sends a bearer token with every request.
func WithAuthToken(token string) HTTPOption {
	return func(c *resty.Client) { c.SetAuthToken(token) }
}

// NewHTTPClient creates a client for the backend at baseURL. Retries are
// deliberately disabled: a failed execution surfaces once as an Error
// result, it is never replayed behind the user's back.
func NewHTTPClient(baseURL string, opts ...HTTPOption) *HTTPClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(60 * time.Second).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json")
	for _, opt := range opts {
		opt(client)
	}
	return &HTTPClient{client: client}
}

// Close releases the underlying transport.
func (h *HTTPClient) Close() error {
	return h.client.Close()
}

// Execute POSTs the request to the node execution endpoint and maps the
// answer onto a Response. Transport and HTTP-level failures are classified
// into actionable messages; backend-reported node failures come back as a
// Response with an error field, not as a Go error.
func (h *HTTPClient) Execute(ctx context.Context, req *Request) (*Response, error) {
	logger := ctxlog.FromContext(ctx).With("flowID", req.FlowID, "nodeID", req.NodeID)
	logger.Debug("Executing node via HTTP backend.")

	var result Response
	res, err := h.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post(fmt.Sprintf("/api/v1/flows/%d/nodes/%s/execute", req.FlowID, req.NodeID))
	if err != nil {
		return nil, fmt.Errorf("cannot reach execution backend: %w", err)
	}
	if res.IsError() {
		return nil, classifyHTTPError(res.StatusCode(), req.NodeID)
	}

	logger.Debug("Backend responded.", "status", result.Status, "outputs", len(result.Outputs))
	return &result, nil
}

// classifyHTTPError builds a human message from the HTTP status so the
// user can self-diagnose without opening developer tools.
func classifyHTTPError(code int, nodeID string) error {
	switch {
	case code == http.StatusNotFound:
		return fmt.Errorf("execution backend does not know node %q (404): save the flow before executing", nodeID)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("execution backend rejected the request (%d): check your session and sign in again", code)
	case code >= 500:
		return fmt.Errorf("execution backend is unavailable (%d): try again in a moment", code)
	default:
		return fmt.Errorf("execution backend returned an unexpected status %d for node %q", code, nodeID)
	}
}
