// File: channel/channel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Channel is the reactive, codec-aware endpoint over one transport adapter.
// Callers send from any goroutine; frames are queued and written by the
// dispatch worker that owns the channel, which also reads inbound frames,
// decodes them and runs consumers in registration order.

package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/momentics/hioload-mq/api"
	"github.com/momentics/hioload-mq/control"
	"github.com/momentics/hioload-mq/reactive"
)

var nextID atomic.Uint64

// pending is the single REQUEST correlation slot. Fields other than promise
// are guarded by the channel lock.
type pending[T any] struct {
	id      uint64
	promise *reactive.Promise[T]
	stop    func()
	settled bool
}

// Channel is a pattern-bound endpoint carrying values of type T.
type Channel[T any] struct {
	id           uint64
	pattern      api.Pattern
	adapter      api.Adapter
	codec        api.Codec[T]
	poller       api.Poller
	waker        api.Waker
	log          *zap.Logger
	metrics      *control.MetricsRegistry
	replyTimeout time.Duration

	mu           sync.Mutex
	disp         dispatcher
	out          *queue.Queue
	consumers    []func(api.Envelope, T)
	errConsumers []func(error)
	pending      *pending[T]
	corr         uint64
	onClose      []func()
	closed       bool
	done         chan struct{}
}

var _ api.Pollable = (*Channel[any])(nil)

// New wraps adapter a and registers the channel with poller. On failure the
// adapter is closed.
func New[T any](a api.Adapter, codec api.Codec[T], poller api.Poller, opts ...Option) (*Channel[T], error) {
	if codec == nil {
		a.Close()
		return nil, errors.New("channel: nil codec")
	}
	disp := newDispatcher(a.Pattern())
	if disp == nil {
		a.Close()
		return nil, api.NewError(api.ErrCodeUnsupportedPattern, "no dispatcher for pattern").
			WithContext("pattern", a.Pattern().String())
	}
	o := buildOptions(opts)
	id := nextID.Add(1)
	c := &Channel[T]{
		id:           id,
		pattern:      a.Pattern(),
		adapter:      a,
		codec:        codec,
		poller:       poller,
		metrics:      o.Metrics,
		replyTimeout: o.ReplyTimeout,
		disp:         disp,
		out:          queue.New(),
		onClose:      o.OnClose,
		done:         make(chan struct{}),
	}
	c.log = o.Logger.Named("channel").With(
		zap.Uint64("channel", id),
		zap.Stringer("pattern", c.pattern),
		zap.String("address", a.Address()),
	)

	w, err := poller.Register(c)
	if err != nil {
		a.Close()
		return nil, err
	}
	c.waker = w
	a.SetNotify(w.Wake)
	c.metrics.Inc(control.MetricChannelsOpen)
	c.log.Debug("channel open")
	return c, nil
}

// ID returns a process-unique channel id.
func (c *Channel[T]) ID() uint64 { return c.id }

// Pattern returns the channel's messaging pattern.
func (c *Channel[T]) Pattern() api.Pattern { return c.pattern }

// Address returns the endpoint the channel was bound or connected to.
func (c *Channel[T]) Address() string { return c.adapter.Address() }

// Done is closed when the channel closes.
func (c *Channel[T]) Done() <-chan struct{} { return c.done }

// Closed reports whether Close has been called.
func (c *Channel[T]) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Consume registers fn for every decoded inbound value. Frames that arrive
// before the first consumer stay buffered in the adapter.
func (c *Channel[T]) Consume(fn func(T)) *Channel[T] {
	return c.ConsumeFrom(func(_ api.Envelope, v T) { fn(v) })
}

// ConsumeFrom registers fn for every decoded inbound value together with the
// peer envelope, which is empty outside ROUTER channels.
func (c *Channel[T]) ConsumeFrom(fn func(api.Envelope, T)) *Channel[T] {
	c.mu.Lock()
	c.consumers = append(c.consumers, fn)
	c.mu.Unlock()
	c.waker.Wake()
	return c
}

// OnError registers fn for per-message failures. A REPLY channel needs one:
// an undecodable request still holds the exchange open and only fn can answer
// it with Send. Without fn the channel stops reading requests.
func (c *Channel[T]) OnError(fn func(error)) *Channel[T] {
	c.mu.Lock()
	c.errConsumers = append(c.errConsumers, fn)
	c.mu.Unlock()
	return c
}

// Send encodes v and queues it according to the pattern: a request on
// REQUEST, the answer to the current exchange on REPLY, fire-and-forget on
// PUSH and DEALER.
func (c *Channel[T]) Send(v T) error {
	return c.send(opSend, nil, v, nil)
}

// SendAndForget queues v with no correlation.
func (c *Channel[T]) SendAndForget(v T) error {
	return c.send(opSendAndForget, nil, v, nil)
}

// SendTo queues v for the ROUTER peer identified by env.
func (c *Channel[T]) SendTo(env api.Envelope, v T) error {
	return c.send(opSendTo, env, v, nil)
}

// SendAndReceive sends a request and returns a promise for its reply. The
// promise fails with api.ErrReplyTimeout once ctx's deadline or the channel's
// reply timeout passes, and with ctx.Err() if ctx is canceled first. Either
// way the correlation slot is released.
func (c *Channel[T]) SendAndReceive(ctx context.Context, v T) (*reactive.Promise[T], error) {
	if err := permits(c.pattern, opSendAndReceive); err != nil {
		c.metrics.Inc(control.MetricPatternViolations)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		err = c.expiryError(err)
		if errors.Is(err, api.ErrReplyTimeout) {
			c.metrics.Inc(control.MetricReplyTimeouts)
		}
		return reactive.Failed[T](err), nil
	}

	p := &pending[T]{promise: reactive.NewPromise[T]()}
	if err := c.send(opSendAndReceive, nil, v, p); err != nil {
		return nil, err
	}

	stopCtx := context.AfterFunc(ctx, func() { c.expire(p, c.expiryError(ctx.Err())) })
	var timer *time.Timer
	if _, ok := ctx.Deadline(); !ok && c.replyTimeout > 0 {
		timer = time.AfterFunc(c.replyTimeout, func() {
			c.expire(p, c.expiryError(context.DeadlineExceeded))
		})
	}
	stop := func() {
		stopCtx()
		if timer != nil {
			timer.Stop()
		}
	}

	c.mu.Lock()
	if p.settled {
		c.mu.Unlock()
		stop()
	} else {
		p.stop = stop
		c.mu.Unlock()
	}
	return p.promise, nil
}

func (c *Channel[T]) expiryError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return api.NewError(api.ErrCodeReplyTimeout, "no reply before deadline").
			WithContext("channel", c.id).
			WithCause(err)
	}
	return err
}

func (c *Channel[T]) closedError() error {
	return api.NewError(api.ErrCodeChannelClosed, "channel closed").WithContext("channel", c.id)
}

func (c *Channel[T]) send(op sendOp, env api.Envelope, v T, p *pending[T]) error {
	if err := permits(c.pattern, op); err != nil {
		c.metrics.Inc(control.MetricPatternViolations)
		return err
	}
	data, err := c.codec.Encode(v)
	if err != nil {
		c.metrics.Inc(control.MetricCodecErrors)
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return c.closedError()
	}
	f, err := c.disp.outbound(op, env, data)
	if err != nil {
		c.mu.Unlock()
		c.metrics.Inc(control.MetricPatternViolations)
		return err
	}
	if p != nil {
		c.corr++
		p.id = c.corr
		c.pending = p
	}
	c.out.Add(f)
	c.mu.Unlock()

	c.waker.Wake()
	return nil
}

// expire settles p with err unless the reply won the race.
func (c *Channel[T]) expire(p *pending[T], err error) {
	c.mu.Lock()
	if p.settled {
		c.mu.Unlock()
		return
	}
	p.settled = true
	if c.pending == p {
		c.pending = nil
		c.disp.release()
	}
	stop := p.stop
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	if errors.Is(err, api.ErrReplyTimeout) {
		c.metrics.Inc(control.MetricReplyTimeouts)
	}
	c.log.Debug("request abandoned", zap.Uint64("correlation", p.id), zap.Error(err))
	p.promise.Fail(err)
}

// Poll implements api.Pollable. It is only called by the owning worker.
func (c *Channel[T]) Poll(budget int) int {
	work := c.flush(budget)

	for n := 0; n < budget; n++ {
		c.mu.Lock()
		readable := !c.closed && c.disp.ready() && c.listening()
		c.mu.Unlock()
		if !readable {
			break
		}
		f, ok := c.adapter.TryRecv()
		if !ok {
			break
		}
		work++
		c.dispatch(f)
	}

	for _, err := range c.adapter.Errors() {
		work++
		c.metrics.Inc(control.MetricTransportErrors)
		c.emitError(err)
	}
	return work
}

// listening reports whether an inbound value has somewhere to go. Until it
// does, frames stay buffered in the adapter. REQUEST always reads so stale
// replies are discarded while idle. Caller holds c.mu.
func (c *Channel[T]) listening() bool {
	return c.pattern == api.Request || c.pending != nil || len(c.consumers) > 0
}

// flush moves queued frames into the adapter until it pushes back.
func (c *Channel[T]) flush(budget int) int {
	n := 0
	for n < budget {
		c.mu.Lock()
		if c.closed || c.out.Length() == 0 {
			c.mu.Unlock()
			return n
		}
		f := c.out.Peek().(api.Frame)
		c.mu.Unlock()

		ok, err := c.adapter.TrySend(f)
		if !ok && err == nil {
			return n
		}
		c.mu.Lock()
		if c.out.Length() > 0 {
			c.out.Remove()
		}
		c.mu.Unlock()
		n++
		if err != nil {
			c.emitError(err)
			continue
		}
		c.metrics.Inc(control.MetricFramesOut)
	}
	return n
}

func (c *Channel[T]) dispatch(f api.Frame) {
	c.metrics.Inc(control.MetricFramesIn)

	c.mu.Lock()
	env, payload, keep := c.disp.inbound(f)
	if !keep {
		c.mu.Unlock()
		if c.pattern == api.Request {
			c.metrics.Inc(control.MetricStaleReplies)
		}
		c.log.Debug("inbound frame dropped", zap.Int("parts", f.Len()))
		return
	}
	p := c.pending
	var stop func()
	if p != nil {
		p.settled = true
		stop = p.stop
		c.pending = nil
	}
	consumers := c.consumers
	c.mu.Unlock()

	if stop != nil {
		stop()
	}

	v, err := c.codec.Decode(payload)
	if err != nil {
		c.metrics.Inc(control.MetricCodecErrors)
		c.log.Warn("decode failed", zap.Error(err))
		if p != nil {
			p.promise.Fail(err)
		}
		if c.pattern == api.Reply && !c.hasErrorConsumers() {
			c.log.Error("undecodable request left unanswered, register OnError to reply", zap.Error(err))
			return
		}
		c.emitError(err)
		return
	}
	if p != nil {
		p.promise.Resolve(v)
		return
	}
	if len(consumers) == 0 {
		c.log.Warn("inbound value dropped, no consumer")
	}
	for _, fn := range consumers {
		c.invoke(fn, env, v)
	}
}

func (c *Channel[T]) invoke(fn func(api.Envelope, T), env api.Envelope, v T) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.Inc(control.MetricConsumerPanics)
			c.log.Error("consumer panicked", zap.Any("panic", r))
			c.emitError(fmt.Errorf("channel %d: consumer panic: %v", c.id, r))
		}
	}()
	fn(env, v)
}

func (c *Channel[T]) hasErrorConsumers() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errConsumers) > 0
}

func (c *Channel[T]) emitError(err error) {
	c.mu.Lock()
	fns := c.errConsumers
	c.mu.Unlock()
	if len(fns) == 0 {
		c.log.Warn("unhandled channel error", zap.Error(err))
		return
	}
	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.log.Error("error consumer panicked", zap.Any("panic", r))
				}
			}()
			fn(err)
		}()
	}
}

// Close releases the channel. A pending request fails with
// api.ErrChannelClosed and queued frames are discarded. It is idempotent.
func (c *Channel[T]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	p := c.pending
	c.pending = nil
	var stop func()
	if p != nil {
		p.settled = true
		stop = p.stop
	}
	dropped := c.out.Length()
	c.out = queue.New()
	hooks := c.onClose
	c.onClose = nil
	close(c.done)
	c.mu.Unlock()

	if err := c.poller.Unregister(c); err != nil {
		c.log.Warn("unregister failed", zap.Error(err))
	}
	err := c.adapter.Close()
	if stop != nil {
		stop()
	}
	if p != nil {
		p.promise.Fail(c.closedError())
	}
	c.metrics.Add(control.MetricChannelsOpen, -1)
	for _, fn := range hooks {
		fn()
	}
	c.log.Debug("channel closed", zap.Int("dropped", dropped))
	return err
}
