// File: channel/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package channel

import (
	"time"

	"go.uber.org/zap"

	"github.com/momentics/hioload-mq/control"
)

// Options configures a channel.
type Options struct {
	// ReplyTimeout bounds SendAndReceive when the caller's context carries no
	// deadline. Zero waits forever.
	ReplyTimeout time.Duration
	Logger       *zap.Logger
	Metrics      *control.MetricsRegistry
	// OnClose hooks run once after the channel is closed.
	OnClose []func()
}

// Option mutates Options.
type Option func(*Options)

// WithReplyTimeout sets the default reply timeout.
func WithReplyTimeout(d time.Duration) Option {
	return func(o *Options) { o.ReplyTimeout = d }
}

// WithLogger sets the channel logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithMetrics attaches a metrics registry.
func WithMetrics(m *control.MetricsRegistry) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithCloseHook adds fn to the hooks run after Close.
func WithCloseHook(fn func()) Option {
	return func(o *Options) { o.OnClose = append(o.OnClose, fn) }
}

func buildOptions(opts []Option) Options {
	o := Options{Logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}
