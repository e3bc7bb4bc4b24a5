// File: reactive/promise.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Single-assignment future with replay-of-one consumer semantics.

package reactive

import (
	"context"
	"sync"
)

// Promise is settled exactly once, either with a value or with an error.
// Consumers registered after settlement are invoked immediately on the
// registering goroutine; consumers registered before run on the goroutine
// that settles the promise.
type Promise[T any] struct {
	mu      sync.Mutex
	done    chan struct{}
	settled bool
	value   T
	err     error
	onValue []func(T)
	onError []func(error)
}

// NewPromise returns an unsettled promise.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Resolved returns a promise already settled with v.
func Resolved[T any](v T) *Promise[T] {
	p := NewPromise[T]()
	p.Resolve(v)
	return p
}

// Failed returns a promise already settled with err.
func Failed[T any](err error) *Promise[T] {
	p := NewPromise[T]()
	p.Fail(err)
	return p
}

// Resolve settles the promise with v. It reports false if the promise was
// already settled, in which case v is discarded.
func (p *Promise[T]) Resolve(v T) bool {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return false
	}
	p.settled = true
	p.value = v
	fns := p.onValue
	p.onValue, p.onError = nil, nil
	close(p.done)
	p.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
	return true
}

// Fail settles the promise with err.
func (p *Promise[T]) Fail(err error) bool {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return false
	}
	p.settled = true
	p.err = err
	fns := p.onError
	p.onValue, p.onError = nil, nil
	close(p.done)
	p.mu.Unlock()

	for _, fn := range fns {
		fn(err)
	}
	return true
}

// Consume registers fn to receive the value. It returns p for chaining.
func (p *Promise[T]) Consume(fn func(T)) *Promise[T] {
	p.mu.Lock()
	if !p.settled {
		p.onValue = append(p.onValue, fn)
		p.mu.Unlock()
		return p
	}
	v, err := p.value, p.err
	p.mu.Unlock()
	if err == nil {
		fn(v)
	}
	return p
}

// OnError registers fn to receive the failure. It returns p for chaining.
func (p *Promise[T]) OnError(fn func(error)) *Promise[T] {
	p.mu.Lock()
	if !p.settled {
		p.onError = append(p.onError, fn)
		p.mu.Unlock()
		return p
	}
	err := p.err
	p.mu.Unlock()
	if err != nil {
		fn(err)
	}
	return p
}

// Done is closed once the promise is settled.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// Result returns the settled value and error. ok is false while pending.
func (p *Promise[T]) Result() (v T, err error, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.err, p.settled
}

// Await blocks until the promise settles or ctx is done.
func (p *Promise[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then maps a promise value into another promise type.
func Then[T, U any](p *Promise[T], fn func(T) (U, error)) *Promise[U] {
	out := NewPromise[U]()
	p.Consume(func(v T) {
		u, err := fn(v)
		if err != nil {
			out.Fail(err)
			return
		}
		out.Resolve(u)
	})
	p.OnError(func(err error) { out.Fail(err) })
	return out
}
