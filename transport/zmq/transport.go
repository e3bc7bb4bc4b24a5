// File: transport/zmq/transport.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ZeroMQ transport built on the pure-Go github.com/go-zeromq/zmq4 sockets.

package zmq

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"syscall"
	"time"

	"github.com/go-zeromq/zmq4"
	"go.uber.org/zap"

	"github.com/momentics/hioload-mq/api"
	"github.com/momentics/hioload-mq/transport"
)

// Options tunes sockets and adapter buffers.
type Options struct {
	RingCapacity   int           // inbound frames buffered per socket
	SendQueueSize  int           // outbound frames buffered per socket
	DialTimeout    time.Duration // per attempt
	DialRetry      time.Duration // delay between attempts
	DialMaxRetries int           // -1 retries forever
	Logger         *zap.Logger
}

// DefaultOptions returns the settings used when none are given.
func DefaultOptions() Options {
	return Options{
		RingCapacity:   1024,
		SendQueueSize:  256,
		DialTimeout:    5 * time.Second,
		DialRetry:      250 * time.Millisecond,
		DialMaxRetries: 10,
		Logger:         zap.NewNop(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RingCapacity <= 0 {
		o.RingCapacity = d.RingCapacity
	}
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = d.SendQueueSize
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = d.DialTimeout
	}
	if o.DialRetry <= 0 {
		o.DialRetry = d.DialRetry
	}
	if o.DialMaxRetries == 0 {
		o.DialMaxRetries = d.DialMaxRetries
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	return o
}

// Transport serves one scheme ("tcp" or "inproc").
type Transport struct {
	scheme string
	opts   Options
	log    *zap.Logger
}

var _ transport.Transport = (*Transport)(nil)

// New creates a transport for scheme.
func New(scheme string, opts Options) *Transport {
	opts = opts.withDefaults()
	log := opts.Logger.Named("zmq").With(zap.String("scheme", scheme))
	opts.Logger = log
	return &Transport{scheme: scheme, opts: opts, log: log}
}

// Register installs tcp and inproc transports into r.
func Register(r *transport.Registry, opts Options) {
	r.Register(New(transport.SchemeTCP, opts))
	r.Register(New(transport.SchemeInproc, opts))
}

// Scheme implements transport.Transport.
func (t *Transport) Scheme() string { return t.scheme }

// Listen binds a socket of pattern p on addr.
func (t *Transport) Listen(ctx context.Context, p api.Pattern, addr transport.Address) (api.Adapter, error) {
	sock, err := t.socket(ctx, p)
	if err != nil {
		return nil, err
	}
	ep := addr.ListenEndpoint()
	if err := sock.Listen(ep); err != nil {
		sock.Close()
		return nil, listenError(addr, err)
	}
	t.log.Debug("listening", zap.Stringer("pattern", p), zap.String("endpoint", ep))
	return newAdapter(p, addr.String(), sock, t.opts), nil
}

// Dial connects a socket of pattern p to addr.
func (t *Transport) Dial(ctx context.Context, p api.Pattern, addr transport.Address) (api.Adapter, error) {
	if err := addr.CheckDial(); err != nil {
		return nil, err
	}
	sock, err := t.socket(ctx, p)
	if err != nil {
		return nil, err
	}
	ep := addr.DialEndpoint()
	if err := sock.Dial(ep); err != nil {
		sock.Close()
		return nil, err
	}
	t.log.Debug("connected", zap.Stringer("pattern", p), zap.String("endpoint", ep))
	return newAdapter(p, addr.String(), sock, t.opts), nil
}

func (t *Transport) socket(ctx context.Context, p api.Pattern) (zmq4.Socket, error) {
	opts := []zmq4.Option{
		zmq4.WithDialerTimeout(t.opts.DialTimeout),
		zmq4.WithDialerRetry(t.opts.DialRetry),
		zmq4.WithDialerMaxRetries(t.opts.DialMaxRetries),
		zmq4.WithLogger(zap.NewStdLog(t.log)),
	}
	switch p {
	case api.Request:
		return zmq4.NewReq(ctx, append(opts, zmq4.WithID(newIdentity()))...), nil
	case api.Reply:
		return zmq4.NewRep(ctx, opts...), nil
	case api.Push:
		return zmq4.NewPush(ctx, opts...), nil
	case api.Pull:
		return zmq4.NewPull(ctx, opts...), nil
	case api.Router:
		return zmq4.NewRouter(ctx, opts...), nil
	case api.Dealer:
		return zmq4.NewDealer(ctx, append(opts, zmq4.WithID(newIdentity()))...), nil
	}
	return nil, api.NewError(api.ErrCodeUnsupportedPattern, "no socket for pattern").
		WithContext("pattern", p.String())
}

// newIdentity returns a random peer identity so ROUTER peers can address
// this socket.
func newIdentity() zmq4.SocketIdentity {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return zmq4.SocketIdentity(time.Now().Format("150405.000000000"))
	}
	return zmq4.SocketIdentity(hex.EncodeToString(b[:]))
}

func listenError(addr transport.Address, err error) error {
	if errors.Is(err, syscall.EADDRINUSE) || strings.Contains(err.Error(), "address already in use") {
		return api.NewError(api.ErrCodeAddressInUse, "listen failed").
			WithContext("address", addr.String()).
			WithCause(err)
	}
	return err
}
