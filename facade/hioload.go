// File: facade/hioload.go
// Unified facade layer for hioload-mq library.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// HioloadMQ owns everything a set of channels shares: the dispatch poller,
// the scheme to transport registry, the bound-address table, metrics and the
// root context handed to sockets. Channels are created through the generic
// Open, Bind and Connect functions (and the pattern helpers in patterns.go);
// Shutdown tears all of it down.

package facade

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/momentics/hioload-mq/api"
	"github.com/momentics/hioload-mq/control"
	"github.com/momentics/hioload-mq/internal/concurrency"
	"github.com/momentics/hioload-mq/logger"
	"github.com/momentics/hioload-mq/transport"
	"github.com/momentics/hioload-mq/transport/zmq"
)

var _ api.GracefulShutdown = (*HioloadMQ)(nil)

// Option customizes New.
type Option func(*options)

type options struct {
	logger     *zap.Logger
	transports []transport.Transport
	noDefaults bool
}

// WithLogger sets the logger; otherwise one is built from Config.Log.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTransport installs t, replacing the default transport for its scheme.
func WithTransport(t transport.Transport) Option {
	return func(o *options) { o.transports = append(o.transports, t) }
}

// WithoutDefaultTransports skips the built-in tcp and inproc transports.
func WithoutDefaultTransports() Option {
	return func(o *options) { o.noDefaults = true }
}

type closer interface {
	ID() uint64
	Close() error
}

// binding is one entry of the bound-address table. stream holds the
// *reactive.Stream[*channel.Channel[T]] for the binding's value type.
type binding struct {
	pattern api.Pattern
	stream  any
}

// HioloadMQ is the main facade type.
type HioloadMQ struct {
	config   *control.Config
	log      *zap.Logger
	poller   *concurrency.Poller
	registry *transport.Registry
	metrics  *control.MetricsRegistry
	probes   *control.DebugProbes

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	nextOp   uint64
	inflight map[uint64]func(error)
	channels map[uint64]closer
	bound    map[string]*binding
}

// New constructs a facade and starts its dispatch workers.
func New(cfg *control.Config, opts ...Option) (*HioloadMQ, error) {
	if cfg == nil {
		cfg = control.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("facade: %w", err)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger
	if log == nil {
		l, err := logger.New(cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("facade: logger init failure: %w", err)
		}
		log = l
	}

	h := &HioloadMQ{
		config:   cfg,
		log:      log.Named("hioload-mq"),
		metrics:  control.NewMetricsRegistry(),
		probes:   control.NewDebugProbes(),
		inflight: make(map[uint64]func(error)),
		channels: make(map[uint64]closer),
		bound:    make(map[string]*binding),
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.poller = concurrency.NewPoller(concurrency.Options{
		Workers:        cfg.Workers,
		BatchSize:      cfg.BatchSize,
		MaxIdleBackoff: cfg.MaxIdleBackoff,
		CPUAffinity:    cfg.CPUAffinity,
		Logger:         log,
	})

	h.registry = transport.NewRegistry()
	if !o.noDefaults {
		zmq.Register(h.registry, zmq.Options{
			RingCapacity:   cfg.RingCapacity,
			SendQueueSize:  cfg.SendQueueSize,
			DialTimeout:    cfg.DialTimeout,
			DialRetry:      cfg.DialRetry,
			DialMaxRetries: cfg.DialMaxRetries,
			Logger:         log,
		})
	}
	for _, t := range o.transports {
		h.registry.Register(t)
	}

	control.RegisterPlatformProbes(h.probes)
	h.probes.RegisterProbe("poller", func() any { return h.poller.Stats() })
	h.probes.RegisterProbe("metrics", func() any { return h.metrics.GetSnapshot() })
	h.probes.RegisterProbe("transports", func() any { return h.registry.Schemes() })
	h.probes.RegisterProbe("channels", func() any { return h.Channels() })
	h.probes.RegisterProbe("bound", func() any { return h.boundKeys() })

	h.log.Debug("facade ready",
		zap.Int("workers", h.poller.NumWorkers()),
		zap.Strings("schemes", h.registry.Schemes()))
	return h, nil
}

// Config returns the configuration the facade was built with.
func (h *HioloadMQ) Config() *control.Config { return h.config }

// Logger returns the facade logger.
func (h *HioloadMQ) Logger() *zap.Logger { return h.log }

// Metrics returns the shared metrics registry.
func (h *HioloadMQ) Metrics() *control.MetricsRegistry { return h.metrics }

// Stats returns a snapshot of poller, metrics, transport and platform probes.
func (h *HioloadMQ) Stats() map[string]any { return h.probes.DumpState() }

// Channels returns the number of open channels.
func (h *HioloadMQ) Channels() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels)
}

func (h *HioloadMQ) boundKeys() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	keys := make([]string, 0, len(h.bound))
	for k := range h.bound {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Shutdown closes every channel, fails in-flight binds and connects with
// api.ErrChannelClosed and stops the dispatch workers. It is idempotent.
func (h *HioloadMQ) Shutdown() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	inflight := h.inflight
	channels := h.channels
	h.inflight = make(map[uint64]func(error))
	h.channels = make(map[uint64]closer)
	h.bound = make(map[string]*binding)
	h.mu.Unlock()

	h.cancel()
	for _, fail := range inflight {
		fail(errClosed("facade shut down"))
	}
	var errs []error
	for _, ch := range channels {
		if err := ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	h.poller.Close()
	h.log.Info("shutdown complete",
		zap.Int("channels", len(channels)),
		zap.Int("aborted", len(inflight)))
	return errors.Join(errs...)
}

func errClosed(msg string) error {
	return api.NewError(api.ErrCodeChannelClosed, msg)
}

// resolve parses address and finds its transport.
func (h *HioloadMQ) resolve(address string) (transport.Address, transport.Transport, error) {
	addr, err := transport.ParseAddress(address)
	if err != nil {
		return transport.Address{}, nil, err
	}
	t, err := h.registry.Lookup(addr.Scheme)
	if err != nil {
		return transport.Address{}, nil, err
	}
	return addr, t, nil
}

// track records an in-flight construction so Shutdown can abort it.
func (h *HioloadMQ) track(fail func(error)) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, errClosed("facade shut down")
	}
	h.nextOp++
	h.inflight[h.nextOp] = fail
	return h.nextOp, nil
}

// settle ends tracking of op. It reports false when Shutdown already
// aborted it.
func (h *HioloadMQ) settle(op uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, live := h.inflight[op]
	delete(h.inflight, op)
	return live && !h.closed
}

// adopt records an open channel, closing it if the facade shut down.
func (h *HioloadMQ) adopt(ch closer) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		ch.Close()
		return false
	}
	h.channels[ch.ID()] = ch
	h.mu.Unlock()
	return true
}

// forget drops a closed channel and, for bound channels, frees its address.
func (h *HioloadMQ) forget(id uint64, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.channels, id)
	if key != "" {
		delete(h.bound, key)
	}
}

func (h *HioloadMQ) unbind(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.bound, key)
}
