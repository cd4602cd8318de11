package remote

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Socket.io event names of the execution backend.
const (
	eventExecuteNode = "execute_node"
	eventNodeResult  = "node_result"
	eventNodeError   = "node_error"
)

// SocketIOClient executes nodes over the backend's socket.io channel. Each
// Execute call opens a fresh connection, emits execute_node, and waits for
// the matching node_result or node_error event.
type SocketIOClient struct {
	url       string
	namespace string
	timeout   time.Duration
}

// NewSocketIOClient creates a client for the backend at rawURL. namespace
// may be empty for the default namespace.
func NewSocketIOClient(rawURL, namespace string, timeout time.Duration) *SocketIOClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &SocketIOClient{url: rawURL, namespace: namespace, timeout: timeout}
}

// opResult passes the outcome through the done channel.
type opResult struct {
	resp *Response
	err  error
}

// Execute emits the request and waits for the backend's answer.
func (s *SocketIOClient) Execute(ctx context.Context, req *Request) (*Response, error) {
	logger := ctxlog.FromContext(ctx).With("transport", "socketio", "nodeID", req.NodeID)
	logger.Debug("Executing node via socket.io backend.")

	parsedURL, err := url.Parse(s.url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse backend URL: %w", err)
	}

	var isConnected atomic.Bool
	done := make(chan opResult, 1)
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(s.namespace, opts)
	defer func() {
		logger.Debug("Disconnecting socket client.")
		io.Disconnect()
	}()

	payload := map[string]any{
		"flow_id":  req.FlowID,
		"node_id":  req.NodeID,
		"inputs":   req.Inputs,
		"settings": req.Settings,
	}

	io.On(types.EventName("connect"), func(...any) {
		isConnected.Store(true)
		logger.Debug("Connected to execution backend.", "sid", io.Id())
		io.Emit(eventExecuteNode, payload)
	})

	io.On(types.EventName("connect_error"), func(errs ...any) {
		if len(errs) > 0 {
			if err, ok := errs[0].(error); ok {
				done <- opResult{err: fmt.Errorf("cannot reach execution backend: %w", err)}
				return
			}
		}
		done <- opResult{err: fmt.Errorf("cannot reach execution backend")}
	})

	io.On(types.EventName(eventNodeResult), func(data ...any) {
		if len(data) == 0 {
			done <- opResult{resp: &Response{}}
			return
		}
		if m, ok := data[0].(map[string]any); ok {
			done <- opResult{resp: decodeResponse(m)}
			return
		}
		done <- opResult{err: fmt.Errorf("execution backend sent an unexpected %T payload", data[0])}
	})

	io.On(types.EventName(eventNodeError), func(data ...any) {
		msg := "execution backend reported an error"
		if len(data) > 0 {
			if m, ok := data[0].(map[string]any); ok {
				if e, ok := m["error"].(string); ok && e != "" {
					msg = e
				}
			} else if s, ok := data[0].(string); ok && s != "" {
				msg = s
			}
		}
		done <- opResult{err: fmt.Errorf("%s", msg)}
	})

	io.Connect()

	select {
	case <-opCtx.Done():
		if isConnected.Load() {
			return nil, fmt.Errorf("timed out after connecting while waiting for node %q to finish", req.NodeID)
		}
		return nil, fmt.Errorf("timed out while connecting to the execution backend")
	case res := <-done:
		return res.resp, res.err
	}
}
