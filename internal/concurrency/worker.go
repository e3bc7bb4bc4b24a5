// File: internal/concurrency/worker.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// worker is a single dispatch loop goroutine. It owns a private list of
// endpoints that only it reads or mutates; registration changes arrive
// through a small pending-ops slice swapped in at the top of each cycle.
// When no endpoint has work the loop parks on its wake channel with an
// adaptive backoff timer.

package concurrency

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/momentics/hioload-mq/api"
)

const minBackoff = time.Microsecond

type workerOp struct {
	ep  api.Pollable
	add bool
}

type worker struct {
	id         int
	batch      int
	maxBackoff time.Duration
	pin        bool
	log        *zap.Logger

	eps []api.Pollable // owned by the run goroutine

	opsMu      sync.Mutex
	ops        []workerOp
	opsPending atomic.Bool

	load int // guarded by Poller.mu

	polls  atomic.Uint64
	wakeCh chan struct{}
	quitCh chan struct{}
	doneCh chan struct{}
}

func newWorker(id, batch int, maxBackoff time.Duration, pin bool, log *zap.Logger) *worker {
	return &worker{
		id:         id,
		batch:      batch,
		maxBackoff: maxBackoff,
		pin:        pin,
		log:        log,
		wakeCh:     make(chan struct{}, 1),
		quitCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Wake implements api.Waker.
func (w *worker) Wake() {
	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

func (w *worker) enqueue(op workerOp) {
	w.opsMu.Lock()
	w.ops = append(w.ops, op)
	w.opsPending.Store(true)
	w.opsMu.Unlock()
	w.Wake()
}

func (w *worker) applyOps() {
	if !w.opsPending.Load() {
		return
	}
	w.opsMu.Lock()
	ops := w.ops
	w.ops = nil
	w.opsPending.Store(false)
	w.opsMu.Unlock()

	for _, op := range ops {
		if op.add {
			w.eps = append(w.eps, op.ep)
			continue
		}
		for i, ep := range w.eps {
			if ep == op.ep {
				w.eps = append(w.eps[:i], w.eps[i+1:]...)
				break
			}
		}
	}
}

func (w *worker) run() {
	defer close(w.doneCh)
	if w.pin {
		cpuID, err := pinWorkerThread(w.id)
		if err != nil {
			w.log.Warn("cpu affinity not applied", zap.Int("worker", w.id), zap.Error(err))
		} else {
			w.log.Debug("worker pinned", zap.Int("worker", w.id), zap.Int("cpu", cpuID))
		}
	}

	timer := time.NewTimer(time.Hour)
	stopTimer(timer)
	backoff := minBackoff

	for {
		w.applyOps()

		work := 0
		for _, ep := range w.eps {
			work += w.poll(ep)
		}
		w.polls.Add(1)

		if work > 0 {
			backoff = minBackoff
			select {
			case <-w.quitCh:
				return
			default:
			}
			continue
		}

		timer.Reset(backoff)
		select {
		case <-w.quitCh:
			stopTimer(timer)
			return
		case <-w.wakeCh:
			stopTimer(timer)
			backoff = minBackoff
		case <-timer.C:
			backoff *= 2
			if backoff > w.maxBackoff {
				backoff = w.maxBackoff
			}
		}
	}
}

// poll drives one endpoint, keeping the worker alive if it panics.
func (w *worker) poll(ep api.Pollable) (n int) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("endpoint poll panicked", zap.Int("worker", w.id), zap.Any("panic", r))
			n = 0
		}
	}()
	return ep.Poll(w.batch)
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
