package facade_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/momentics/hioload-mq/api"
	"github.com/momentics/hioload-mq/channel"
	"github.com/momentics/hioload-mq/codec"
	"github.com/momentics/hioload-mq/control"
	"github.com/momentics/hioload-mq/facade"
	"github.com/momentics/hioload-mq/fake"
	"github.com/momentics/hioload-mq/reactive"
)

func newFacade(t *testing.T, opts ...facade.Option) *facade.HioloadMQ {
	t.Helper()
	cfg := control.DefaultConfig()
	cfg.Workers = 2
	cfg.ReplyTimeout = 10 * time.Second
	opts = append([]facade.Option{facade.WithLogger(zap.NewNop())}, opts...)
	h, err := facade.New(cfg, opts...)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	t.Cleanup(func() { h.Shutdown() })
	return h
}

func freeTCP(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return fmt.Sprintf("tcp://127.0.0.1:%d", port)
}

func await[T any](t *testing.T, p *reactive.Promise[T], d time.Duration) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	v, err := p.Await(ctx)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	return v
}

func awaitErr[T any](t *testing.T, p *reactive.Promise[T], d time.Duration) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	_, err := p.Await(ctx)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
		t.Fatal("promise did not settle")
	}
	return err
}

// collector gathers consumed values across goroutines.
type collector[T any] struct {
	mu   sync.Mutex
	vals []T
	ch   chan T
}

func newCollector[T any]() *collector[T] {
	return &collector[T]{ch: make(chan T, 64)}
}

func (c *collector[T]) add(v T) {
	c.mu.Lock()
	c.vals = append(c.vals, v)
	c.mu.Unlock()
	c.ch <- v
}

func (c *collector[T]) next(t *testing.T, d time.Duration) T {
	t.Helper()
	select {
	case v := <-c.ch:
		return v
	case <-time.After(d):
		t.Fatal("no value consumed in time")
	}
	var zero T
	return zero
}

func (c *collector[T]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.vals)
}

func TestRequestReplyEchoTCP(t *testing.T) {
	h := newFacade(t)
	addr := freeTCP(t)

	rep := await(t, facade.Reply(h, addr, codec.String()).First(), 5*time.Second)
	rep.Consume(func(s string) {
		if err := rep.Send(s); err != nil {
			t.Errorf("echo: %v", err)
		}
	})

	req := await(t, facade.Request(h, addr, codec.String()), 5*time.Second)
	reply, err := req.SendAndReceive(context.Background(), "Hello World!")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := await(t, reply, 60*time.Second); got != "Hello World!" {
		t.Fatalf("reply = %q", got)
	}

	for i := 0; i < 5; i++ {
		msg := fmt.Sprintf("round-%d", i)
		p, err := req.SendAndReceive(context.Background(), msg)
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		if got := await(t, p, 5*time.Second); got != msg {
			t.Fatalf("reply %d = %q", i, got)
		}
	}
}

func TestReplyConsumerRegisteredLate(t *testing.T) {
	h := newFacade(t)
	const addr = "inproc://late-reply"

	rep := await(t, facade.Reply(h, addr, codec.String()).First(), 5*time.Second)
	req := await(t, facade.Request(h, addr, codec.String()), 5*time.Second)
	reply, err := req.SendAndReceive(context.Background(), "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	rep.Consume(func(s string) {
		if err := rep.Send(s); err != nil {
			t.Errorf("echo: %v", err)
		}
	})
	if got := await(t, reply, 5*time.Second); got != "hello" {
		t.Fatalf("reply = %q", got)
	}
}

func TestPushPullExactlyOnce(t *testing.T) {
	for _, scheme := range []string{"inproc", "tcp"} {
		t.Run(scheme, func(t *testing.T) {
			h := newFacade(t)
			addr := "inproc://push-pull"
			if scheme == "tcp" {
				addr = freeTCP(t)
			}

			got := newCollector[string]()
			pull := await(t, facade.Pull(h, addr, codec.String()).First(), 5*time.Second)
			pull.Consume(got.add)

			push := await(t, facade.Push(h, addr, codec.String()), 5*time.Second)
			if err := push.SendAndForget("Hello World!"); err != nil {
				t.Fatalf("push: %v", err)
			}
			if v := got.next(t, time.Second); v != "Hello World!" {
				t.Fatalf("pulled %q", v)
			}
			time.Sleep(50 * time.Millisecond)
			if n := got.len(); n != 1 {
				t.Fatalf("delivered %d times", n)
			}
		})
	}
}

func TestRouterDealer(t *testing.T) {
	for _, scheme := range []string{"inproc", "tcp"} {
		t.Run(scheme, func(t *testing.T) {
			h := newFacade(t)
			addr := "inproc://router-dealer"
			if scheme == "tcp" {
				addr = freeTCP(t)
			}

			router := await(t, facade.Router(h, addr, codec.String()).First(), 5*time.Second)
			router.ConsumeFrom(func(env api.Envelope, s string) {
				if err := router.SendTo(env, "ack:"+s); err != nil {
					t.Errorf("router reply: %v", err)
				}
			})

			dealer := await(t, facade.Dealer(h, addr, codec.String()), 5*time.Second)
			got := newCollector[string]()
			dealer.Consume(got.add)

			for _, s := range []string{"a", "b", "c"} {
				if err := dealer.Send(s); err != nil {
					t.Fatalf("dealer send: %v", err)
				}
			}
			for _, want := range []string{"ack:a", "ack:b", "ack:c"} {
				if v := got.next(t, 5*time.Second); v != want {
					t.Fatalf("dealer got %q, want %q", v, want)
				}
			}
		})
	}
}

func TestRouterAnswersRequestPeer(t *testing.T) {
	h := newFacade(t)
	addr := "inproc://router-req"

	router := await(t, facade.Router(h, addr, codec.String()).First(), 5*time.Second)
	router.ConsumeFrom(func(env api.Envelope, s string) {
		if err := router.SendTo(env, "re:"+s); err != nil {
			t.Errorf("router reply: %v", err)
		}
	})
	req := await(t, facade.Request(h, addr, codec.String()), 5*time.Second)
	p, err := req.SendAndReceive(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if got := await(t, p, 5*time.Second); got != "re:q" {
		t.Fatalf("reply = %q", got)
	}
}

type order struct {
	ID    int      `json:"id" cbor:"id"`
	Items []string `json:"items" cbor:"items"`
}

func roundTrip[T any](t *testing.T, h *facade.HioloadMQ, c api.Codec[T], in T) T {
	t.Helper()
	addr := freeTCP(t)
	rep := await(t, facade.Reply(h, addr, c).First(), 5*time.Second)
	rep.Consume(func(v T) { rep.Send(v) })
	req := await(t, facade.Request(h, addr, c), 5*time.Second)
	p, err := req.SendAndReceive(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	return await(t, p, 10*time.Second)
}

func TestCodecsOverTCP(t *testing.T) {
	h := newFacade(t)
	in := order{ID: 7, Items: []string{"x", "y"}}

	if out := roundTrip(t, h, codec.JSON[order](), in); out.ID != 7 || len(out.Items) != 2 {
		t.Fatalf("json = %+v", out)
	}
	cb, err := codec.CBOR[order]()
	if err != nil {
		t.Fatal(err)
	}
	if out := roundTrip(t, h, cb, in); out.ID != 7 || out.Items[1] != "y" {
		t.Fatalf("cbor = %+v", out)
	}
	if out := roundTrip(t, h, codec.Raw(), []byte{0, 1, 2, 255}); len(out) != 4 || out[3] != 255 {
		t.Fatalf("raw = %v", out)
	}
}

func TestDoubleTCPBindFails(t *testing.T) {
	h := newFacade(t)
	addr := freeTCP(t)
	await(t, facade.Pull(h, addr, codec.Raw()).First(), 5*time.Second)

	err := awaitErr(t, facade.Pull(h, addr, codec.Raw()).First(), time.Second)
	if !errors.Is(err, api.ErrAddressInUse) {
		t.Fatalf("expected ErrAddressInUse, got %v", err)
	}
	err = awaitErr(t, facade.Reply(h, addr, codec.Raw()).First(), time.Second)
	if !errors.Is(err, api.ErrAddressInUse) {
		t.Fatalf("expected ErrAddressInUse for other pattern, got %v", err)
	}
}

func TestInprocRebindSharesChannel(t *testing.T) {
	h := newFacade(t)
	first := facade.Pull(h, "inproc://shared", codec.String())
	second := facade.Pull(h, "inproc://shared", codec.String())
	if first != second {
		t.Fatal("rebinding inproc returned a new stream")
	}
	pull := await(t, second.First(), 5*time.Second)
	got := newCollector[string]()
	pull.Consume(got.add)

	for i := 0; i < 2; i++ {
		push := await(t, facade.Push(h, "inproc://shared", codec.String()), 5*time.Second)
		if err := push.Send(fmt.Sprintf("peer-%d", i)); err != nil {
			t.Fatal(err)
		}
	}
	got.next(t, 2*time.Second)
	got.next(t, 2*time.Second)

	err := awaitErr(t, facade.Router(h, "inproc://shared", codec.String()).First(), time.Second)
	if !errors.Is(err, api.ErrAddressInUse) {
		t.Fatalf("expected ErrAddressInUse for different pattern, got %v", err)
	}
}

func TestCloseReleasesAddress(t *testing.T) {
	h := newFacade(t)
	addr := freeTCP(t)
	pull := await(t, facade.Pull(h, addr, codec.Raw()).First(), 5*time.Second)
	if err := pull.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	again := await(t, facade.Pull(h, addr, codec.Raw()).First(), 5*time.Second)
	if again == pull {
		t.Fatal("closed channel returned")
	}
	if h.Channels() != 1 {
		t.Fatalf("channels = %d", h.Channels())
	}
}

func TestConstructionErrors(t *testing.T) {
	h := newFacade(t)
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"malformed", awaitErr(t, facade.Request(h, "localhost:1", codec.Raw()), time.Second), api.ErrInvalidAddress},
		{"empty inproc", awaitErr(t, facade.Pull(h, "inproc://", codec.Raw()).First(), time.Second), api.ErrInvalidAddress},
		{"wildcard connect", awaitErr(t, facade.Push(h, "tcp://*:5555", codec.Raw()), time.Second), api.ErrInvalidAddress},
		{"unknown scheme", awaitErr(t, facade.Push(h, "udp://localhost:5555", codec.Raw()), time.Second), api.ErrUnsupportedPattern},
		{"bind connect-role", awaitErr(t, facade.Bind(h, api.Request, "inproc://x", codec.Raw()).First(), time.Second), api.ErrUnsupportedPattern},
		{"connect bind-role", awaitErr(t, facade.Connect(h, api.Router, "inproc://x", codec.Raw()), time.Second), api.ErrUnsupportedPattern},
		{"invalid pattern", awaitErr(t, facade.Open(h, api.Pattern(42), "inproc://x", codec.Raw()).First(), time.Second), api.ErrUnsupportedPattern},
	}
	for _, c := range cases {
		if !errors.Is(c.err, c.want) {
			t.Errorf("%s: got %v, want %v", c.name, c.err, c.want)
		}
	}
}

func TestOpenChoosesRole(t *testing.T) {
	h := newFacade(t, facade.WithTransport(fake.NewTransport("fake")))
	bound := await(t, facade.Open(h, api.Router, "fake://svc", codec.Raw()).First(), time.Second)
	if bound.Pattern() != api.Router {
		t.Fatalf("pattern = %v", bound.Pattern())
	}
	s := facade.Open(h, api.Dealer, "fake://svc", codec.Raw())
	conn := await(t, s.First(), time.Second)
	<-s.Done()
	if conn.Pattern() != api.Dealer || len(s.Items()) != 1 || s.Err() != nil {
		t.Fatalf("connect stream: %v items, err %v", len(s.Items()), s.Err())
	}
}

func TestShutdownFailsEverything(t *testing.T) {
	gated := fake.NewTransport("gated")
	gated.Gate = make(chan struct{})
	plain := fake.NewTransport("fake")
	h := newFacade(t, facade.WithTransport(gated), facade.WithTransport(plain))

	req := await(t, facade.Request(h, "fake://svc", codec.Raw()), time.Second)
	reply, err := req.SendAndReceive(context.Background(), []byte("ping"))
	if err != nil {
		t.Fatal(err)
	}
	inflight := facade.Dealer(h, "gated://slow", codec.Raw())
	bindInflight := facade.Pull(h, "gated://slow-bind", codec.Raw())

	if err := h.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := h.Shutdown(); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}

	if err := awaitErr(t, reply, time.Second); !errors.Is(err, api.ErrChannelClosed) {
		t.Fatalf("pending reply: %v", err)
	}
	if err := awaitErr(t, inflight, time.Second); !errors.Is(err, api.ErrChannelClosed) {
		t.Fatalf("in-flight connect: %v", err)
	}
	if err := awaitErr(t, bindInflight.First(), time.Second); !errors.Is(err, api.ErrChannelClosed) {
		t.Fatalf("in-flight bind: %v", err)
	}
	if !req.Closed() {
		t.Fatal("channel left open")
	}
	if err := awaitErr(t, facade.Push(h, "fake://svc", codec.Raw()), time.Second); !errors.Is(err, api.ErrChannelClosed) {
		t.Fatalf("connect after shutdown: %v", err)
	}
	if err := req.Send([]byte("x")); !errors.Is(err, api.ErrChannelClosed) {
		t.Fatalf("send after shutdown: %v", err)
	}
	close(gated.Gate)
	for _, a := range plain.Adapters() {
		if !a.IsClosed() {
			t.Fatal("adapter left open")
		}
	}
}

func TestChannelOptionsOverrideDefaults(t *testing.T) {
	h := newFacade(t, facade.WithTransport(fake.NewTransport("fake")))
	req := await(t, facade.Request(h, "fake://svc", codec.Raw(), channel.WithReplyTimeout(20*time.Millisecond)), time.Second)
	p, err := req.SendAndReceive(context.Background(), []byte("ping"))
	if err != nil {
		t.Fatal(err)
	}
	if err := awaitErr(t, p, time.Second); !errors.Is(err, api.ErrReplyTimeout) {
		t.Fatalf("expected ReplyTimeout, got %v", err)
	}
	if h.Metrics().Counter(control.MetricReplyTimeouts) != 1 {
		t.Fatal("timeout not counted in facade metrics")
	}
}

func TestStats(t *testing.T) {
	h := newFacade(t, facade.WithTransport(fake.NewTransport("fake")))
	await(t, facade.Pull(h, "fake://stats", codec.Raw()).First(), time.Second)

	stats := h.Stats()
	for _, key := range []string{"poller", "metrics", "transports", "channels", "bound", "platform.cpus"} {
		if _, ok := stats[key]; !ok {
			t.Errorf("stats missing %q", key)
		}
	}
	if stats["channels"].(int) != 1 {
		t.Fatalf("channels = %v", stats["channels"])
	}
	if m := stats["metrics"].(map[string]any); m[control.MetricChannelsOpen].(int64) != 1 {
		t.Fatalf("channels_open = %v", m[control.MetricChannelsOpen])
	}
}
