// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Frame I/O adapter contract: the thin, non-blocking wrapper around one raw
// transport socket that channels and the dispatch loop are built on.

package api

import "encoding/hex"

// Frame is one discrete multi-part message as delivered by the transport,
// prior to envelope handling and decoding.
type Frame struct {
	Parts [][]byte
}

// NewFrame builds a frame from parts.
func NewFrame(parts ...[]byte) Frame {
	return Frame{Parts: parts}
}

// Len returns the number of parts.
func (f Frame) Len() int {
	return len(f.Parts)
}

// Size returns the total number of payload bytes over all parts.
func (f Frame) Size() int {
	n := 0
	for _, p := range f.Parts {
		n += len(p)
	}
	return n
}

// Envelope is an opaque peer-routing identity attached to ROUTER frames.
type Envelope []byte

// String renders the envelope as hex for logs.
func (e Envelope) String() string {
	return hex.EncodeToString(e)
}

// Empty reports whether the envelope carries no identity.
func (e Envelope) Empty() bool {
	return len(e) == 0
}

// Adapter wraps one underlying transport socket.
//
// TryRecv and TrySend never block. The adapter invokes the notify callback
// installed with SetNotify whenever a frame becomes readable or a write slot
// frees up, so an idle dispatch worker can wake.
type Adapter interface {
	// Pattern is the messaging pattern of the wrapped socket.
	Pattern() Pattern

	// Address is the endpoint the socket was bound or connected to.
	Address() string

	// ExpectsReply reports whether sends must be answered (lock-step).
	ExpectsReply() bool

	// Routed reports whether inbound frames carry a routing envelope.
	Routed() bool

	// TryRecv returns the next inbound frame, if one is ready.
	TryRecv() (Frame, bool)

	// TrySend queues a frame for writing. It returns false when the write
	// queue is full; the frame was not accepted and must be retried.
	TrySend(f Frame) (bool, error)

	// SetNotify installs the readiness callback.
	SetNotify(fn func())

	// Errors drains transport-level failures observed since the last call.
	Errors() []error

	// Close releases the socket. It is idempotent.
	Close() error
}
