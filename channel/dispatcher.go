// File: channel/dispatcher.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-pattern state machines. A dispatcher decides whether an operation is
// legal in the current state, shapes outbound frames, and splits inbound
// frames into envelope and payload. All methods are called with the owning
// channel's lock held.

package channel

import (
	"bytes"

	"github.com/momentics/hioload-mq/api"
)

type sendOp int

const (
	opSend sendOp = iota
	opSendAndReceive
	opSendAndForget
	opSendTo
)

func (op sendOp) String() string {
	switch op {
	case opSend:
		return "Send"
	case opSendAndReceive:
		return "SendAndReceive"
	case opSendAndForget:
		return "SendAndForget"
	case opSendTo:
		return "SendTo"
	}
	return "unknown"
}

// permits is the static op table; state checks happen in outbound.
func permits(p api.Pattern, op sendOp) error {
	ok := false
	switch p {
	case api.Request:
		ok = op == opSend || op == opSendAndReceive
	case api.Reply:
		ok = op == opSend || op == opSendAndForget
	case api.Push, api.Dealer:
		ok = op == opSend || op == opSendAndForget
	case api.Router:
		ok = op == opSendTo
	case api.Pull:
		ok = false
	}
	if ok {
		return nil
	}
	reason := "operation not supported by pattern"
	switch {
	case p == api.Pull:
		reason = "pull channels are receive-only"
	case p == api.Router:
		reason = "router sends need an explicit envelope"
	case op == opSendAndReceive:
		reason = "pattern has no reply correlation"
	}
	return api.Violation(p, op.String(), reason)
}

type dispatcher interface {
	// outbound validates op against the current state and builds the frame.
	outbound(op sendOp, env api.Envelope, payload []byte) (api.Frame, error)
	// inbound extracts envelope and payload; keep is false to drop the frame.
	inbound(f api.Frame) (env api.Envelope, payload []byte, keep bool)
	// ready reports whether the next inbound frame may be read.
	ready() bool
	// release abandons an outstanding exchange (reply timeout or cancel).
	release()
}

func newDispatcher(p api.Pattern) dispatcher {
	switch p {
	case api.Request:
		return &requestDispatcher{}
	case api.Reply:
		return &replyDispatcher{}
	case api.Push:
		return pushDispatcher{}
	case api.Pull:
		return pullDispatcher{}
	case api.Router:
		return &routerDispatcher{delimited: make(map[string]int)}
	case api.Dealer:
		return dealerDispatcher{}
	}
	return nil
}

// body joins payload parts without copying the common single-part case.
func body(parts [][]byte) []byte {
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	}
	return bytes.Join(parts, nil)
}

// skipDelimiters drops leading empty parts.
func skipDelimiters(parts [][]byte) [][]byte {
	for len(parts) > 0 && len(parts[0]) == 0 {
		parts = parts[1:]
	}
	return parts
}

// REQUEST: idle <-> awaiting reply.
type requestDispatcher struct {
	awaiting bool
}

func (d *requestDispatcher) outbound(op sendOp, _ api.Envelope, payload []byte) (api.Frame, error) {
	if d.awaiting {
		return api.Frame{}, api.Violation(api.Request, op.String(), "previous request has not been answered")
	}
	d.awaiting = true
	return api.NewFrame(payload), nil
}

func (d *requestDispatcher) inbound(f api.Frame) (api.Envelope, []byte, bool) {
	if !d.awaiting {
		return nil, nil, false
	}
	d.awaiting = false
	return nil, body(skipDelimiters(f.Parts)), true
}

func (d *requestDispatcher) ready() bool { return true }
func (d *requestDispatcher) release()    { d.awaiting = false }

// REPLY: waiting <-> replying. No new request is read while replying.
type replyDispatcher struct {
	replying bool
}

func (d *replyDispatcher) outbound(op sendOp, _ api.Envelope, payload []byte) (api.Frame, error) {
	if !d.replying {
		return api.Frame{}, api.Violation(api.Reply, op.String(), "no request in progress")
	}
	d.replying = false
	return api.NewFrame(payload), nil
}

func (d *replyDispatcher) inbound(f api.Frame) (api.Envelope, []byte, bool) {
	d.replying = true
	return nil, body(skipDelimiters(f.Parts)), true
}

func (d *replyDispatcher) ready() bool { return !d.replying }
func (d *replyDispatcher) release()    {}

type pushDispatcher struct{}

func (pushDispatcher) outbound(_ sendOp, _ api.Envelope, payload []byte) (api.Frame, error) {
	return api.NewFrame(payload), nil
}
func (pushDispatcher) inbound(api.Frame) (api.Envelope, []byte, bool) {
	return nil, nil, false
}
func (pushDispatcher) ready() bool { return true }
func (pushDispatcher) release()    {}

type pullDispatcher struct{}

func (pullDispatcher) outbound(op sendOp, _ api.Envelope, _ []byte) (api.Frame, error) {
	return api.Frame{}, permits(api.Pull, op)
}
func (pullDispatcher) inbound(f api.Frame) (api.Envelope, []byte, bool) {
	return nil, body(f.Parts), true
}
func (pullDispatcher) ready() bool { return true }
func (pullDispatcher) release()    {}

// ROUTER: part 0 is the peer envelope. Peers that frame with an empty
// delimiter (REQ style) get it back on replies. delimited counts unanswered
// delimited requests per peer; an entry is dropped once they are answered.
type routerDispatcher struct {
	delimited map[string]int
}

func (d *routerDispatcher) outbound(op sendOp, env api.Envelope, payload []byte) (api.Frame, error) {
	if env.Empty() {
		return api.Frame{}, api.Violation(api.Router, op.String(), "empty envelope")
	}
	key := string(env)
	n, ok := d.delimited[key]
	if !ok {
		return api.NewFrame(env, payload), nil
	}
	if n <= 1 {
		delete(d.delimited, key)
	} else {
		d.delimited[key] = n - 1
	}
	return api.NewFrame(env, nil, payload), nil
}

func (d *routerDispatcher) inbound(f api.Frame) (api.Envelope, []byte, bool) {
	if len(f.Parts) < 2 || len(f.Parts[0]) == 0 {
		return nil, nil, false
	}
	env := api.Envelope(f.Parts[0])
	rest := f.Parts[1:]
	if len(rest) > 1 && len(rest[0]) == 0 {
		d.delimited[string(env)]++
		rest = rest[1:]
	} else {
		delete(d.delimited, string(env))
	}
	return env, body(rest), true
}

func (d *routerDispatcher) ready() bool { return true }
func (d *routerDispatcher) release()    {}

type dealerDispatcher struct{}

func (dealerDispatcher) outbound(_ sendOp, _ api.Envelope, payload []byte) (api.Frame, error) {
	return api.NewFrame(payload), nil
}
func (dealerDispatcher) inbound(f api.Frame) (api.Envelope, []byte, bool) {
	return nil, body(skipDelimiters(f.Parts)), true
}
func (dealerDispatcher) ready() bool { return true }
func (dealerDispatcher) release()    {}
