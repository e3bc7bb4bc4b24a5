// File: facade/patterns.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// One helper per messaging pattern.

package facade

import (
	"github.com/momentics/hioload-mq/api"
	"github.com/momentics/hioload-mq/channel"
	"github.com/momentics/hioload-mq/reactive"
)

// Request connects a REQUEST channel.
func Request[T any](h *HioloadMQ, address string, codec api.Codec[T], opts ...channel.Option) *reactive.Promise[*channel.Channel[T]] {
	return Connect(h, api.Request, address, codec, opts...)
}

// Reply binds a REPLY channel. Every request must be answered with Send,
// including ones that fail to decode, so register OnError alongside Consume.
func Reply[T any](h *HioloadMQ, address string, codec api.Codec[T], opts ...channel.Option) *reactive.Stream[*channel.Channel[T]] {
	return Bind(h, api.Reply, address, codec, opts...)
}

// Push connects a PUSH channel.
func Push[T any](h *HioloadMQ, address string, codec api.Codec[T], opts ...channel.Option) *reactive.Promise[*channel.Channel[T]] {
	return Connect(h, api.Push, address, codec, opts...)
}

// Pull binds a PULL channel.
func Pull[T any](h *HioloadMQ, address string, codec api.Codec[T], opts ...channel.Option) *reactive.Stream[*channel.Channel[T]] {
	return Bind(h, api.Pull, address, codec, opts...)
}

// Router binds a ROUTER channel.
func Router[T any](h *HioloadMQ, address string, codec api.Codec[T], opts ...channel.Option) *reactive.Stream[*channel.Channel[T]] {
	return Bind(h, api.Router, address, codec, opts...)
}

// Dealer connects a DEALER channel.
func Dealer[T any](h *HioloadMQ, address string, codec api.Codec[T], opts ...channel.Option) *reactive.Promise[*channel.Channel[T]] {
	return Connect(h, api.Dealer, address, codec, opts...)
}
