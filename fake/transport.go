// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the adapter and transport
// contracts without opening sockets.

package fake

import (
	"context"
	"sync"

	"github.com/momentics/hioload-mq/api"
	"github.com/momentics/hioload-mq/transport"
)

// Adapter is an in-memory api.Adapter. Inbound frames are queued with Inject;
// frames the channel writes are recorded and returned by Sent.
type Adapter struct {
	mu         sync.Mutex
	pattern    api.Pattern
	address    string
	inbound    []api.Frame
	sent       []api.Frame
	errs       []error
	notify     func()
	sendError  error
	blocked    bool
	closed     bool
	closeCalls int
}

var _ api.Adapter = (*Adapter)(nil)

// NewAdapter creates a fake adapter for pattern p.
func NewAdapter(p api.Pattern, address string) *Adapter {
	return &Adapter{pattern: p, address: address}
}

// Inject queues one inbound frame built from parts and signals readiness.
func (a *Adapter) Inject(parts ...[]byte) {
	a.mu.Lock()
	a.inbound = append(a.inbound, api.NewFrame(parts...))
	fn := a.notify
	a.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// InjectError queues a transport-level failure.
func (a *Adapter) InjectError(err error) {
	a.mu.Lock()
	a.errs = append(a.errs, err)
	fn := a.notify
	a.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Sent returns a copy of every frame accepted by TrySend.
func (a *Adapter) Sent() []api.Frame {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]api.Frame, len(a.sent))
	copy(out, a.sent)
	return out
}

// Pending returns the number of injected frames not yet received.
func (a *Adapter) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inbound)
}

// SetSendError makes every following TrySend fail with err.
func (a *Adapter) SetSendError(err error) {
	a.mu.Lock()
	a.sendError = err
	a.mu.Unlock()
}

// SetBlocked makes TrySend report a full write queue while b is true.
func (a *Adapter) SetBlocked(b bool) {
	a.mu.Lock()
	a.blocked = b
	fn := a.notify
	a.mu.Unlock()
	if !b && fn != nil {
		fn()
	}
}

// IsClosed reports whether Close was called.
func (a *Adapter) IsClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// CloseCalls returns how many times Close was invoked.
func (a *Adapter) CloseCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closeCalls
}

func (a *Adapter) Pattern() api.Pattern { return a.pattern }
func (a *Adapter) Address() string      { return a.address }
func (a *Adapter) ExpectsReply() bool   { return a.pattern.ExpectsReply() }
func (a *Adapter) Routed() bool         { return a.pattern.Routed() }

// TryRecv implements api.Adapter.
func (a *Adapter) TryRecv() (api.Frame, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || len(a.inbound) == 0 {
		return api.Frame{}, false
	}
	f := a.inbound[0]
	a.inbound = a.inbound[1:]
	return f, true
}

// TrySend implements api.Adapter.
func (a *Adapter) TrySend(f api.Frame) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false, api.NewError(api.ErrCodeChannelClosed, "adapter closed")
	}
	if a.sendError != nil {
		return true, a.sendError
	}
	if a.blocked {
		return false, nil
	}
	parts := make([][]byte, len(f.Parts))
	for i, p := range f.Parts {
		parts[i] = append([]byte(nil), p...)
	}
	a.sent = append(a.sent, api.Frame{Parts: parts})
	return true, nil
}

// SetNotify implements api.Adapter.
func (a *Adapter) SetNotify(fn func()) {
	a.mu.Lock()
	a.notify = fn
	a.mu.Unlock()
}

// Errors implements api.Adapter.
func (a *Adapter) Errors() []error {
	a.mu.Lock()
	defer a.mu.Unlock()
	errs := a.errs
	a.errs = nil
	return errs
}

// Close implements api.Adapter.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeCalls++
	a.closed = true
	return nil
}

// Transport is a fake transport.Transport that hands out fake adapters.
type Transport struct {
	mu        sync.Mutex
	scheme    string
	adapters  []*Adapter
	ListenErr error
	DialErr   error
	// Gate, when non-nil, is received from before Listen or Dial returns.
	Gate chan struct{}
}

var _ transport.Transport = (*Transport)(nil)

// NewTransport creates a fake transport for scheme.
func NewTransport(scheme string) *Transport {
	return &Transport{scheme: scheme}
}

// Scheme implements transport.Transport.
func (t *Transport) Scheme() string { return t.scheme }

// Listen implements transport.Transport.
func (t *Transport) Listen(ctx context.Context, p api.Pattern, addr transport.Address) (api.Adapter, error) {
	return t.open(ctx, p, addr, t.ListenErr)
}

// Dial implements transport.Transport.
func (t *Transport) Dial(ctx context.Context, p api.Pattern, addr transport.Address) (api.Adapter, error) {
	return t.open(ctx, p, addr, t.DialErr)
}

func (t *Transport) open(ctx context.Context, p api.Pattern, addr transport.Address, err error) (api.Adapter, error) {
	if t.Gate != nil {
		select {
		case <-t.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	a := NewAdapter(p, addr.String())
	t.mu.Lock()
	t.adapters = append(t.adapters, a)
	t.mu.Unlock()
	return a, nil
}

// Adapters returns every adapter created so far.
func (t *Transport) Adapters() []*Adapter {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Adapter, len(t.adapters))
	copy(out, t.adapters)
	return out
}
