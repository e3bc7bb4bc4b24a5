// Package api
// Author: momentics
//
// Poll-mode dispatch contract: endpoints registered with a Poller are driven
// by exactly one worker for their whole lifetime.

package api

// Pollable is an endpoint driven by a poller worker.
type Pollable interface {
	// Poll reads up to budget inbound frames, dispatches them and flushes
	// pending writes. It returns the amount of work done; zero means idle.
	Poll(budget int) int
}

// Waker signals the worker owning an endpoint that it has work.
type Waker interface {
	Wake()
}

// Poller represents a poll-mode reactor for high-rate event processing.
type Poller interface {
	// Register assigns the endpoint to a worker and returns its waker.
	Register(p Pollable) (Waker, error)

	// Unregister removes the endpoint. It may be called from any goroutine,
	// including the worker that currently polls the endpoint.
	Unregister(p Pollable) error
}
