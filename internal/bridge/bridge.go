// Package bridge lets an external debug process invoke whitelisted
// operations on the orchestrator through a bounded request/response
// channel pair.
package bridge

import (
	"fmt"
	"sync"
	"time"

	"skirmish.ai/internal/protocol"
)

// Bridge carries at most one in-flight request at a time; Call serializes
// submitters so responses pair with their requests.
type Bridge struct {
	mu   sync.Mutex
	req  chan protocol.BridgeRequest
	resp chan any
}

func New(depth int) *Bridge {
	if depth <= 0 {
		depth = 8
	}
	return &Bridge{
		req:  make(chan protocol.BridgeRequest, depth),
		resp: make(chan any, depth),
	}
}

// Poll pops one pending request without blocking. Orchestrator side.
func (b *Bridge) Poll() (protocol.BridgeRequest, bool) {
	select {
	case r := <-b.req:
		return r, true
	default:
		return protocol.BridgeRequest{}, false
	}
}

// Reply publishes the result of the request returned by Poll.
func (b *Bridge) Reply(v any) {
	select {
	case b.resp <- v:
	default:
	}
}

// Call submits a request and waits for its response. Caller side.
func (b *Bridge) Call(req protocol.BridgeRequest, timeout time.Duration) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case b.req <- req:
	case <-time.After(timeout):
		return nil, fmt.Errorf("bridge busy")
	}
	select {
	case v := <-b.resp:
		return v, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("bridge call %q timed out", req.Attr)
	}
}

// Handler runs one whitelisted operation.
type Handler func(args []any, kwargs map[string]any) (any, error)

// Registry is the explicit operation whitelist. Unknown names are rejected
// up front instead of probing the orchestrator dynamically.
type Registry map[string]Handler

// Dispatch resolves and runs one request, mapping failures to the
// structured error response.
func (r Registry) Dispatch(req protocol.BridgeRequest) any {
	h, ok := r[req.Attr]
	if !ok {
		return protocol.BridgeError{
			Error: fmt.Sprintf("unknown operation %q", req.Attr),
			Code:  protocol.ErrUnknownOp,
		}
	}
	v, err := h(req.Args, req.Kwargs)
	if err != nil {
		return protocol.BridgeError{Error: err.Error(), Code: protocol.ErrInternal}
	}
	if v == nil {
		return map[string]string{"msg": "none"}
	}
	return v
}

// Ops lists the whitelisted operation names, for discovery.
func (r Registry) Ops() []string {
	ops := make([]string, 0, len(r))
	for name := range r {
		ops = append(ops, name)
	}
	return ops
}
