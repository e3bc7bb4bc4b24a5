// File: internal/concurrency/poller.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Poller is the dispatch loop: a fixed pool of workers, each owning a
// disjoint subset of endpoints. Endpoints are assigned to the least loaded
// worker when they register and never move afterwards, which keeps inbound
// ordering per endpoint trivial and guarantees that one endpoint is never
// polled by two goroutines at once.

package concurrency

import (
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/momentics/hioload-mq/api"
)

var _ api.Poller = (*Poller)(nil)

// Options configures a Poller.
type Options struct {
	Workers         int           // number of worker goroutines; <= 0 means runtime.NumCPU()
	BatchSize       int           // max frames handled per endpoint per cycle
	MaxIdleBackoff  time.Duration // ceiling of the idle park timer
	CPUAffinity     bool          // pin each worker to an OS thread and CPU
	ShutdownTimeout time.Duration // how long Close waits for workers
	Logger          *zap.Logger
}

// Poller drives registered endpoints.
type Poller struct {
	mu      sync.Mutex
	workers []*worker
	owner   map[api.Pollable]*worker
	closed  bool

	shutdownTimeout time.Duration
	log             *zap.Logger
}

// NewPoller starts the worker goroutines.
func NewPoller(opts Options) *Poller {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 16
	}
	if opts.MaxIdleBackoff <= 0 {
		opts.MaxIdleBackoff = 10 * time.Millisecond
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	p := &Poller{
		workers:         make([]*worker, opts.Workers),
		owner:           make(map[api.Pollable]*worker),
		shutdownTimeout: opts.ShutdownTimeout,
		log:             opts.Logger.Named("poller"),
	}
	for i := range p.workers {
		w := newWorker(i, opts.BatchSize, opts.MaxIdleBackoff, opts.CPUAffinity, p.log)
		p.workers[i] = w
		go w.run()
	}
	p.log.Debug("poller started", zap.Int("workers", opts.Workers), zap.Int("batch", opts.BatchSize))
	return p
}

// Register assigns ep to the least loaded worker and returns that worker's
// waker. Registering an endpoint twice returns its existing waker.
func (p *Poller) Register(ep api.Pollable) (api.Waker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPollerClosed
	}
	if w, ok := p.owner[ep]; ok {
		return w, nil
	}
	target := p.workers[0]
	for _, w := range p.workers[1:] {
		if w.load < target.load {
			target = w
		}
	}
	target.load++
	p.owner[ep] = target
	target.enqueue(workerOp{ep: ep, add: true})
	return target, nil
}

// Unregister detaches ep. The worker drops it at the start of its next cycle.
func (p *Poller) Unregister(ep api.Pollable) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.owner[ep]
	if !ok {
		return nil
	}
	delete(p.owner, ep)
	w.load--
	w.enqueue(workerOp{ep: ep})
	return nil
}

// NumWorkers returns the size of the pool.
func (p *Poller) NumWorkers() int {
	return len(p.workers)
}

// Stats returns registration and loop counters.
func (p *Poller) Stats() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	loads := make([]int, len(p.workers))
	var cycles uint64
	for i, w := range p.workers {
		loads[i] = w.load
		cycles += w.polls.Load()
	}
	return map[string]any{
		"workers":   len(p.workers),
		"endpoints": len(p.owner),
		"load":      loads,
		"cycles":    cycles,
		"closed":    p.closed,
	}
}

// Close stops every worker and waits for them, bounded by ShutdownTimeout.
// It is idempotent.
func (p *Poller) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	workers := p.workers
	p.owner = make(map[api.Pollable]*worker)
	p.mu.Unlock()

	for _, w := range workers {
		close(w.quitCh)
	}
	deadline := time.NewTimer(p.shutdownTimeout)
	defer deadline.Stop()
	for _, w := range workers {
		select {
		case <-w.doneCh:
		case <-deadline.C:
			p.log.Warn("worker did not stop in time", zap.Int("worker", w.id))
			return
		}
	}
	p.log.Debug("poller stopped")
}
