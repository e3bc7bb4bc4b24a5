// File: transport/transport.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Transport registry: one Transport per address scheme, each able to produce
// bound or connected adapters for any messaging pattern.

package transport

import (
	"context"
	"sort"
	"sync"

	"github.com/momentics/hioload-mq/api"
)

// Transport creates adapters for one scheme.
type Transport interface {
	Scheme() string

	// Listen binds addr and returns an adapter for pattern p.
	Listen(ctx context.Context, p api.Pattern, addr Address) (api.Adapter, error)

	// Dial connects to addr and returns an adapter for pattern p.
	Dial(ctx context.Context, p api.Pattern, addr Address) (api.Adapter, error)
}

// Registry maps schemes to transports. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	transports map[string]Transport
}

// NewRegistry builds a registry holding ts.
func NewRegistry(ts ...Transport) *Registry {
	r := &Registry{transports: make(map[string]Transport, len(ts))}
	for _, t := range ts {
		r.Register(t)
	}
	return r
}

// Register installs t, replacing any transport with the same scheme.
func (r *Registry) Register(t Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transports[t.Scheme()] = t
}

// Lookup returns the transport for scheme.
func (r *Registry) Lookup(scheme string) (Transport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transports[scheme]
	if !ok {
		return nil, api.NewError(api.ErrCodeUnsupportedPattern, "no transport for scheme").
			WithContext("scheme", scheme)
	}
	return t, nil
}

// Has reports whether scheme is installed.
func (r *Registry) Has(scheme string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.transports[scheme]
	return ok
}

// Schemes lists installed schemes in sorted order.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.transports))
	for s := range r.transports {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
