// Package api
// Author: momentics@gmail.com
//
// Bounded hand-off queue between socket goroutines and dispatch workers.

package api

// Ring is a bounded multi-producer, multi-consumer queue. Adapters use it to
// buffer inbound frames until the owning worker polls them.
type Ring[T any] interface {
	// Enqueue adds item and reports false when the ring is full; the
	// producer retries after waking the consumer.
	Enqueue(item T) bool
	// Dequeue removes the oldest item and reports false when empty.
	Dequeue() (T, bool)
	// Len is approximate under concurrent use.
	Len() int
	Cap() int
}
