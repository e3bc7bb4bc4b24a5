// File: reactive/stream.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactive

import (
	"context"
	"sync"
)

// Stream is an append-only sequence of values that replays every emitted
// value to consumers registered later. It terminates by Complete or Fail.
type Stream[T any] struct {
	mu        sync.Mutex
	items     []T
	consumers []func(T)
	onError   []func(error)
	err       error
	finished  bool
	first     *Promise[T]
	done      chan struct{}
}

// NewStream returns an open stream.
func NewStream[T any]() *Stream[T] {
	return &Stream[T]{
		first: NewPromise[T](),
		done:  make(chan struct{}),
	}
}

// FailedStream returns a stream already failed with err.
func FailedStream[T any](err error) *Stream[T] {
	s := NewStream[T]()
	s.Fail(err)
	return s
}

// Emit appends v and delivers it to the current consumers, in registration
// order. It reports false once the stream has finished.
func (s *Stream[T]) Emit(v T) bool {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return false
	}
	s.items = append(s.items, v)
	fns := append([]func(T){}, s.consumers...)
	s.mu.Unlock()

	s.first.Resolve(v)
	for _, fn := range fns {
		fn(v)
	}
	return true
}

// Fail terminates the stream with err. Items emitted before remain visible.
func (s *Stream[T]) Fail(err error) bool {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return false
	}
	s.finished = true
	s.err = err
	fns := s.onError
	s.onError = nil
	close(s.done)
	s.mu.Unlock()

	s.first.Fail(err)
	for _, fn := range fns {
		fn(err)
	}
	return true
}

// Complete terminates the stream without error.
func (s *Stream[T]) Complete() bool {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return false
	}
	s.finished = true
	s.onError = nil
	close(s.done)
	s.mu.Unlock()
	return true
}

// Consume registers fn for every past and future value.
func (s *Stream[T]) Consume(fn func(T)) *Stream[T] {
	s.mu.Lock()
	past := append([]T(nil), s.items...)
	if !s.finished {
		s.consumers = append(s.consumers, fn)
	}
	s.mu.Unlock()

	for _, v := range past {
		fn(v)
	}
	return s
}

// OnError registers fn for the terminal failure.
func (s *Stream[T]) OnError(fn func(error)) *Stream[T] {
	s.mu.Lock()
	if !s.finished {
		s.onError = append(s.onError, fn)
		s.mu.Unlock()
		return s
	}
	err := s.err
	s.mu.Unlock()
	if err != nil {
		fn(err)
	}
	return s
}

// First resolves with the first emitted value, or fails with the stream.
func (s *Stream[T]) First() *Promise[T] {
	return s.first
}

// Next blocks until the first value is available, the stream fails, or ctx
// is done.
func (s *Stream[T]) Next(ctx context.Context) (T, error) {
	return s.first.Await(ctx)
}

// Items returns a snapshot of the values emitted so far.
func (s *Stream[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]T(nil), s.items...)
}

// Err returns the terminal failure, if any.
func (s *Stream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed when the stream finishes.
func (s *Stream[T]) Done() <-chan struct{} {
	return s.done
}
