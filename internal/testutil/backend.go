package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/flowgraph/internal/remote"
)

// FakeBackend is a scripted remote.Client. Each node id maps to a canned
// response or error; every call is recorded for later assertions.
type FakeBackend struct {
	mu        sync.Mutex
	responses map[string]*remote.Response
	errors    map[string]error
	calls     []*remote.Request
}

// NewFakeBackend creates an empty scripted backend.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		responses: make(map[string]*remote.Response),
		errors:    make(map[string]error),
	}
}

// Respond scripts a successful response for nodeID.
func (f *FakeBackend) Respond(nodeID string, outputs map[string]any) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[nodeID] = &remote.Response{Status: "success", Outputs: outputs}
	return f
}

// RespondRaw scripts a verbatim response for nodeID.
func (f *FakeBackend) RespondRaw(nodeID string, resp *remote.Response) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[nodeID] = resp
	return f
}

// Fail scripts a transport-level error for nodeID.
func (f *FakeBackend) Fail(nodeID string, err error) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[nodeID] = err
	return f
}

// Execute implements remote.Client.
func (f *FakeBackend) Execute(ctx context.Context, req *remote.Request) (*remote.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if err, ok := f.errors[req.NodeID]; ok {
		return nil, err
	}
	if resp, ok := f.responses[req.NodeID]; ok {
		return resp, nil
	}
	return nil, fmt.Errorf("no scripted response for node %q", req.NodeID)
}

// Calls returns every request seen so far.
func (f *FakeBackend) Calls() []*remote.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*remote.Request, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallFor returns the first recorded request for nodeID.
func (f *FakeBackend) CallFor(nodeID string) (*remote.Request, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.NodeID == nodeID {
			return c, true
		}
	}
	return nil, false
}
