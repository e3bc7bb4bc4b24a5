// File: internal/concurrency/ring.go
// Package concurrency implements lock-free ring buffers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// RingBuffer is a bounded MPMC queue (Vyukov sequence cells) with head and
// tail on separate cache lines. Socket reader goroutines produce into it and
// the owning dispatch worker consumes.

package concurrency

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/momentics/hioload-mq/api"
)

// Ensure compile-time interface compliance.
var _ api.Ring[any] = (*RingBuffer[any])(nil)

type slot[T any] struct {
	sequence atomic.Uint64
	data     T
}

// RingBuffer is a lock-free ring buffer (MPMC API).
type RingBuffer[T any] struct {
	head  atomic.Uint64
	_     cpu.CacheLinePad
	tail  atomic.Uint64
	_     cpu.CacheLinePad
	mask  uint64
	slots []slot[T]
}

// NewRingBuffer allocates a ring buffer rounded up to a power-of-two size.
func NewRingBuffer[T any](size uint64) *RingBuffer[T] {
	if size < 2 {
		size = 2
	}
	if size&(size-1) != 0 {
		n := size - 1
		n |= n >> 1
		n |= n >> 2
		n |= n >> 4
		n |= n >> 8
		n |= n >> 16
		n |= n >> 32
		size = n + 1
	}
	r := &RingBuffer[T]{
		mask:  size - 1,
		slots: make([]slot[T], size),
	}
	for i := range r.slots {
		r.slots[i].sequence.Store(uint64(i))
	}
	return r
}

// Enqueue adds item; returns false if full.
func (r *RingBuffer[T]) Enqueue(item T) bool {
	for {
		tail := r.tail.Load()
		s := &r.slots[tail&r.mask]
		dif := int64(s.sequence.Load()) - int64(tail)
		switch {
		case dif == 0:
			if r.tail.CompareAndSwap(tail, tail+1) {
				s.data = item
				s.sequence.Store(tail + 1)
				return true
			}
		case dif < 0:
			return false
		}
	}
}

// Dequeue removes and returns the oldest item; ok is false if empty.
func (r *RingBuffer[T]) Dequeue() (T, bool) {
	for {
		head := r.head.Load()
		s := &r.slots[head&r.mask]
		dif := int64(s.sequence.Load()) - int64(head+1)
		switch {
		case dif == 0:
			if r.head.CompareAndSwap(head, head+1) {
				item := s.data
				var zero T
				s.data = zero
				s.sequence.Store(head + r.mask + 1)
				return item, true
			}
		case dif < 0:
			var zero T
			return zero, false
		}
	}
}

// Len returns the approximate number of buffered items.
func (r *RingBuffer[T]) Len() int {
	head := r.head.Load()
	tail := r.tail.Load()
	if tail < head {
		return 0
	}
	return int(tail - head)
}

// Cap returns fixed buffer capacity.
func (r *RingBuffer[T]) Cap() int {
	return len(r.slots)
}
