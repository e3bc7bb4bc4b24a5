// File: transport/zmq/adapter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// adapter turns one blocking zmq4 socket into the non-blocking api.Adapter
// contract. A reader goroutine moves inbound messages into a lock-free ring
// and a writer goroutine drains a bounded outbound channel. Lock-step
// patterns gate the reader on the writer through a turn channel so the
// socket never sees an out-of-order receive.

package zmq

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-zeromq/zmq4"
	"go.uber.org/zap"

	"github.com/momentics/hioload-mq/api"
	"github.com/momentics/hioload-mq/internal/concurrency"
)

const (
	minRecvBackoff = 10 * time.Millisecond
	maxRecvBackoff = time.Second
	ringFullWait   = 100 * time.Microsecond
)

type adapter struct {
	pattern api.Pattern
	address string
	sock    zmq4.Socket
	log     *zap.Logger

	ring api.Ring[api.Frame]
	out  chan api.Frame
	turn chan struct{}

	notify atomic.Pointer[func()]

	errMu sync.Mutex
	errs  []error

	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
}

var _ api.Adapter = (*adapter)(nil)

func newAdapter(p api.Pattern, address string, sock zmq4.Socket, opts Options) *adapter {
	a := &adapter{
		pattern: p,
		address: address,
		sock:    sock,
		log:     opts.Logger.With(zap.Stringer("pattern", p), zap.String("address", address)),
		ring:    concurrency.NewRingBuffer[api.Frame](uint64(opts.RingCapacity)),
		out:     make(chan api.Frame, opts.SendQueueSize),
		turn:    make(chan struct{}, 16),
		done:    make(chan struct{}),
	}
	if p.CanReceive() {
		go a.readLoop()
	}
	if p.CanSend() {
		go a.writeLoop()
	}
	return a
}

func (a *adapter) Pattern() api.Pattern { return a.pattern }
func (a *adapter) Address() string      { return a.address }
func (a *adapter) ExpectsReply() bool   { return a.pattern.ExpectsReply() }
func (a *adapter) Routed() bool         { return a.pattern.Routed() }

func (a *adapter) TryRecv() (api.Frame, bool) {
	return a.ring.Dequeue()
}

func (a *adapter) TrySend(f api.Frame) (bool, error) {
	if a.closed.Load() {
		return false, api.NewError(api.ErrCodeChannelClosed, "socket closed").WithContext("address", a.address)
	}
	select {
	case a.out <- f:
		return true, nil
	default:
		return false, nil
	}
}

func (a *adapter) SetNotify(fn func()) {
	a.notify.Store(&fn)
}

func (a *adapter) Errors() []error {
	a.errMu.Lock()
	defer a.errMu.Unlock()
	errs := a.errs
	a.errs = nil
	return errs
}

func (a *adapter) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		close(a.done)
		err = a.sock.Close()
		a.log.Debug("socket closed")
	})
	return err
}

func (a *adapter) signal() {
	if fn := a.notify.Load(); fn != nil && *fn != nil {
		(*fn)()
	}
}

func (a *adapter) pushErr(err error) {
	a.errMu.Lock()
	a.errs = append(a.errs, err)
	a.errMu.Unlock()
	a.signal()
}

// grant hands the reader one receive turn.
func (a *adapter) grant() {
	select {
	case a.turn <- struct{}{}:
	default:
	}
}

func (a *adapter) awaitTurn() bool {
	select {
	case <-a.turn:
		return true
	case <-a.done:
		return false
	}
}

func (a *adapter) readLoop() {
	backoff := minRecvBackoff
	for {
		// A REQ socket may only receive after it has sent.
		if a.pattern == api.Request && !a.awaitTurn() {
			return
		}

		msg, err := a.sock.Recv()
		if err != nil {
			if a.closed.Load() {
				return
			}
			a.log.Warn("receive failed", zap.Error(err), zap.Duration("backoff", backoff))
			a.pushErr(err)
			if !a.sleep(backoff) {
				return
			}
			backoff = min(backoff*2, maxRecvBackoff)
			continue
		}
		backoff = minRecvBackoff

		f := api.Frame{Parts: msg.Frames}
		for !a.ring.Enqueue(f) {
			a.signal()
			if !a.sleep(ringFullWait) {
				return
			}
		}
		a.signal()

		// A REP socket must answer before it reads the next request.
		if a.pattern == api.Reply && !a.awaitTurn() {
			return
		}
	}
}

func (a *adapter) writeLoop() {
	for {
		select {
		case <-a.done:
			return
		case f := <-a.out:
			err := a.send(f)
			switch {
			case err == nil:
				if a.pattern.ExpectsReply() {
					a.grant()
				}
			case a.closed.Load():
				return
			default:
				a.log.Warn("send failed", zap.Error(err), zap.Int("parts", f.Len()))
				a.pushErr(err)
			}
			// A REP socket returns to receiving whether or not the answer
			// made it out.
			if a.pattern == api.Reply {
				a.grant()
			}
			a.signal()
		}
	}
}

func (a *adapter) send(f api.Frame) error {
	if len(f.Parts) == 0 {
		return errors.New("zmq: empty frame")
	}
	msg := zmq4.NewMsgFrom(f.Parts...)
	if len(f.Parts) > 1 {
		return a.sock.SendMulti(msg)
	}
	return a.sock.Send(msg)
}

func (a *adapter) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-a.done:
		return false
	}
}
