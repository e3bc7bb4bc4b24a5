package concurrency_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/hioload-mq/api"
	"github.com/momentics/hioload-mq/internal/concurrency"
)

// counterEndpoint reports one unit of work per pending item.
type counterEndpoint struct {
	pending atomic.Int64
	handled atomic.Int64
	panics  bool
}

func (c *counterEndpoint) Poll(budget int) int {
	if c.panics {
		panic("boom")
	}
	n := 0
	for n < budget && c.pending.Load() > 0 {
		c.pending.Add(-1)
		c.handled.Add(1)
		n++
	}
	return n
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestPollerDrivesEndpoint(t *testing.T) {
	p := concurrency.NewPoller(concurrency.Options{Workers: 2, BatchSize: 4})
	defer p.Close()

	ep := &counterEndpoint{}
	w, err := p.Register(ep)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	ep.pending.Store(10)
	w.Wake()
	waitFor(t, time.Second, func() bool { return ep.handled.Load() == 10 })
}

func TestPollerBalancesEndpoints(t *testing.T) {
	p := concurrency.NewPoller(concurrency.Options{Workers: 3})
	defer p.Close()

	for i := 0; i < 6; i++ {
		if _, err := p.Register(&counterEndpoint{}); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	loads := p.Stats()["load"].([]int)
	for i, l := range loads {
		if l != 2 {
			t.Fatalf("worker %d load = %d, want 2 (%v)", i, l, loads)
		}
	}
}

func TestPollerSurvivesPanickingEndpoint(t *testing.T) {
	p := concurrency.NewPoller(concurrency.Options{Workers: 1})
	defer p.Close()

	if _, err := p.Register(&counterEndpoint{panics: true}); err != nil {
		t.Fatalf("register: %v", err)
	}
	ok := &counterEndpoint{}
	w, _ := p.Register(ok)
	ok.pending.Store(3)
	w.Wake()
	waitFor(t, time.Second, func() bool { return ok.handled.Load() == 3 })
}

func TestPollerUnregisterStopsPolling(t *testing.T) {
	p := concurrency.NewPoller(concurrency.Options{Workers: 1, MaxIdleBackoff: time.Millisecond})
	defer p.Close()

	ep := &counterEndpoint{}
	w, _ := p.Register(ep)
	if err := p.Unregister(ep); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	ep.pending.Store(5)
	w.Wake()
	time.Sleep(20 * time.Millisecond)
	if ep.handled.Load() != 0 {
		t.Fatal("unregistered endpoint was polled")
	}
	if n := p.Stats()["endpoints"].(int); n != 0 {
		t.Fatalf("endpoints = %d, want 0", n)
	}
}

func TestPollerRegisterAfterClose(t *testing.T) {
	p := concurrency.NewPoller(concurrency.Options{Workers: 1})
	p.Close()
	p.Close()
	_, err := p.Register(&counterEndpoint{})
	if !errors.Is(err, concurrency.ErrPollerClosed) || !errors.Is(err, api.ErrChannelClosed) {
		t.Fatalf("expected ErrPollerClosed, got %v", err)
	}
}
