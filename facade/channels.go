// File: facade/channels.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Generic channel construction. Validation errors settle the returned
// promise or stream immediately; the socket bind or connect runs on its own
// goroutine.

package facade

import (
	"go.uber.org/zap"

	"github.com/momentics/hioload-mq/api"
	"github.com/momentics/hioload-mq/channel"
	"github.com/momentics/hioload-mq/reactive"
	"github.com/momentics/hioload-mq/transport"
)

// Open binds or connects depending on the pattern's role. For connecting
// patterns the stream emits one channel and completes.
func Open[T any](h *HioloadMQ, p api.Pattern, address string, codec api.Codec[T], opts ...channel.Option) *reactive.Stream[*channel.Channel[T]] {
	if p.Binds() {
		return Bind(h, p, address, codec, opts...)
	}
	s := reactive.NewStream[*channel.Channel[T]]()
	Connect(h, p, address, codec, opts...).
		Consume(func(ch *channel.Channel[T]) {
			s.Emit(ch)
			s.Complete()
		}).
		OnError(func(err error) { s.Fail(err) })
	return s
}

// Bind listens on address with a REPLY, PULL or ROUTER channel. Binding an
// inproc name already bound with the same pattern and value type returns the
// existing stream; any other second bind of the same address fails with
// api.ErrAddressInUse.
func Bind[T any](h *HioloadMQ, p api.Pattern, address string, codec api.Codec[T], opts ...channel.Option) *reactive.Stream[*channel.Channel[T]] {
	if !p.Valid() || !p.Binds() {
		return reactive.FailedStream[*channel.Channel[T]](roleError(p, "bind"))
	}
	addr, t, err := h.resolve(address)
	if err != nil {
		return reactive.FailedStream[*channel.Channel[T]](err)
	}
	key := addr.Key()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return reactive.FailedStream[*channel.Channel[T]](errClosed("facade shut down"))
	}
	if b, ok := h.bound[key]; ok {
		h.mu.Unlock()
		if addr.Scheme == transport.SchemeInproc && b.pattern == p {
			if s, ok := b.stream.(*reactive.Stream[*channel.Channel[T]]); ok {
				return s
			}
		}
		return reactive.FailedStream[*channel.Channel[T]](
			api.NewError(api.ErrCodeAddressInUse, "address already bound").
				WithContext("address", addr.String()).
				WithContext("pattern", b.pattern.String()))
	}
	s := reactive.NewStream[*channel.Channel[T]]()
	h.bound[key] = &binding{pattern: p, stream: s}
	h.mu.Unlock()

	op, err := h.track(func(err error) { s.Fail(err) })
	if err != nil {
		h.unbind(key)
		s.Fail(err)
		return s
	}

	go func() {
		a, err := t.Listen(h.ctx, p, addr)
		ch, err := attach(h, op, key, a, err, codec, opts)
		if err != nil {
			h.log.Debug("bind failed", zap.String("address", address), zap.Error(err))
			s.Fail(err)
			return
		}
		if !s.Emit(ch) {
			ch.Close()
		}
	}()
	return s
}

// Connect dials address with a REQUEST, PUSH or DEALER channel.
func Connect[T any](h *HioloadMQ, p api.Pattern, address string, codec api.Codec[T], opts ...channel.Option) *reactive.Promise[*channel.Channel[T]] {
	if !p.Valid() || p.Binds() {
		return reactive.Failed[*channel.Channel[T]](roleError(p, "connect"))
	}
	addr, t, err := h.resolve(address)
	if err != nil {
		return reactive.Failed[*channel.Channel[T]](err)
	}
	if err := addr.CheckDial(); err != nil {
		return reactive.Failed[*channel.Channel[T]](err)
	}

	promise := reactive.NewPromise[*channel.Channel[T]]()
	op, err := h.track(func(err error) { promise.Fail(err) })
	if err != nil {
		return reactive.Failed[*channel.Channel[T]](err)
	}

	go func() {
		a, err := t.Dial(h.ctx, p, addr)
		ch, err := attach(h, op, "", a, err, codec, opts)
		if err != nil {
			h.log.Debug("connect failed", zap.String("address", address), zap.Error(err))
			promise.Fail(err)
			return
		}
		if !promise.Resolve(ch) {
			ch.Close()
		}
	}()
	return promise
}

// attach turns a freshly opened adapter into a registered channel.
func attach[T any](h *HioloadMQ, op uint64, key string, a api.Adapter, openErr error, codec api.Codec[T], opts []channel.Option) (*channel.Channel[T], error) {
	live := h.settle(op)
	if openErr != nil {
		if key != "" {
			h.unbind(key)
		}
		if !live {
			return nil, errClosed("facade shut down")
		}
		return nil, openErr
	}
	if !live {
		a.Close()
		return nil, errClosed("facade shut down")
	}

	var id uint64
	all := []channel.Option{
		channel.WithLogger(h.log),
		channel.WithMetrics(h.metrics),
		channel.WithReplyTimeout(h.config.ReplyTimeout),
	}
	all = append(all, opts...)
	all = append(all, channel.WithCloseHook(func() { h.forget(id, key) }))

	ch, err := channel.New(a, codec, h.poller, all...)
	if err != nil {
		if key != "" {
			h.unbind(key)
		}
		return nil, err
	}
	id = ch.ID()
	if !h.adopt(ch) {
		return nil, errClosed("facade shut down")
	}
	return ch, nil
}

func roleError(p api.Pattern, op string) error {
	return api.NewError(api.ErrCodeUnsupportedPattern, "pattern cannot "+op).
		WithContext("pattern", p.String())
}
