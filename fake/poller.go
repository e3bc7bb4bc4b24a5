// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-mq/api"
)

// Poller is a manual api.Poller: nothing runs until the test calls Drive.
type Poller struct {
	// RegErr, when set, is returned by Register.
	RegErr error

	mu    sync.Mutex
	eps   []api.Pollable
	wakes atomic.Int64
}

var _ api.Poller = (*Poller)(nil)

// Register implements api.Poller.
func (p *Poller) Register(ep api.Pollable) (api.Waker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.RegErr != nil {
		return nil, p.RegErr
	}
	p.eps = append(p.eps, ep)
	return p, nil
}

// Unregister implements api.Poller.
func (p *Poller) Unregister(ep api.Pollable) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, e := range p.eps {
		if e == ep {
			p.eps = append(p.eps[:i], p.eps[i+1:]...)
			break
		}
	}
	return nil
}

// Wake implements api.Waker by counting calls.
func (p *Poller) Wake() { p.wakes.Add(1) }

// Wakes returns how many times Wake was called.
func (p *Poller) Wakes() int64 { return p.wakes.Load() }

// Registered returns the number of live endpoints.
func (p *Poller) Registered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.eps)
}

// Drive polls every endpoint until none reports work, at most rounds times,
// and returns the total work done.
func (p *Poller) Drive(rounds int) int {
	total := 0
	for i := 0; i < rounds; i++ {
		p.mu.Lock()
		eps := append([]api.Pollable(nil), p.eps...)
		p.mu.Unlock()
		work := 0
		for _, ep := range eps {
			work += ep.Poll(64)
		}
		total += work
		if work == 0 {
			break
		}
	}
	return total
}
