// Package benchmarks
// Author: momentics <momentics@gmail.com>
//
// Performance benchmarks for hioload-mq components.

package benchmarks

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/momentics/hioload-mq/codec"
	"github.com/momentics/hioload-mq/control"
	"github.com/momentics/hioload-mq/facade"
	"github.com/momentics/hioload-mq/internal/concurrency"
)

type payload struct {
	ID   int    `json:"id" cbor:"id"`
	Body string `json:"body" cbor:"body"`
}

var runs atomic.Int64

func newFacade(b *testing.B) *facade.HioloadMQ {
	b.Helper()
	cfg := control.DefaultConfig()
	cfg.Workers = 2
	h, err := facade.New(cfg)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = h.Shutdown() })
	return h
}

// BenchmarkRingBufferThroughput tests lock-free ring buffer performance.
func BenchmarkRingBufferThroughput(b *testing.B) {
	ring := concurrency.NewRingBuffer[int](1024)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if !ring.Enqueue(i) {
				ring.Dequeue()
				ring.Enqueue(i)
			}
			i++
		}
	})
}

// BenchmarkCodecs compares encode+decode cost of the built-in codecs.
func BenchmarkCodecs(b *testing.B) {
	v := payload{ID: 42, Body: "Hello World!"}
	cb, err := codec.CBOR[payload]()
	if err != nil {
		b.Fatal(err)
	}
	for name, c := range map[string]interface {
		Encode(payload) ([]byte, error)
		Decode([]byte) (payload, error)
	}{"json": codec.JSON[payload](), "cbor": cb} {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				buf, err := c.Encode(v)
				if err != nil {
					b.Fatal(err)
				}
				if _, err := c.Decode(buf); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkPushPullInproc measures one-way throughput through the dispatch loop.
func BenchmarkPushPullInproc(b *testing.B) {
	h := newFacade(b)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	addr := fmt.Sprintf("inproc://bench-pipeline-%d", runs.Add(1))
	sink, err := facade.Pull(h, addr, codec.Raw()).Next(ctx)
	if err != nil {
		b.Fatal(err)
	}
	var got atomic.Int64
	done := make(chan struct{})
	target := int64(b.N)
	sink.Consume(func([]byte) {
		if got.Add(1) == target {
			close(done)
		}
	})
	src, err := facade.Push(h, addr, codec.Raw()).Await(ctx)
	if err != nil {
		b.Fatal(err)
	}

	msg := make([]byte, 256)
	b.SetBytes(int64(len(msg)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := src.SendAndForget(msg); err != nil {
			b.Fatal(err)
		}
	}
	select {
	case <-done:
	case <-ctx.Done():
		b.Fatalf("received %d of %d", got.Load(), b.N)
	}
}

// BenchmarkRequestReplyInproc measures lock-step round trips.
func BenchmarkRequestReplyInproc(b *testing.B) {
	h := newFacade(b)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	addr := fmt.Sprintf("inproc://bench-echo-%d", runs.Add(1))
	server, err := facade.Reply(h, addr, codec.String()).Next(ctx)
	if err != nil {
		b.Fatal(err)
	}
	server.Consume(func(s string) { _ = server.Send(s) })
	client, err := facade.Request(h, addr, codec.String()).Await(ctx)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p, err := client.SendAndReceive(ctx, "ping")
		if err != nil {
			b.Fatal(err)
		}
		if _, err := p.Await(ctx); err != nil {
			b.Fatal(err)
		}
	}
}
