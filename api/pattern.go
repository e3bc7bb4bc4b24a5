// File: api/pattern.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Messaging pattern identifiers and their role metadata.

package api

import "strings"

// Pattern is a fixed messaging topology dictating delivery and correlation.
type Pattern int

const (
	Request Pattern = iota + 1
	Reply
	Push
	Pull
	Router
	Dealer
)

// Patterns lists every supported pattern in declaration order.
var Patterns = []Pattern{Request, Reply, Push, Pull, Router, Dealer}

func (p Pattern) String() string {
	switch p {
	case Request:
		return "request"
	case Reply:
		return "reply"
	case Push:
		return "push"
	case Pull:
		return "pull"
	case Router:
		return "router"
	case Dealer:
		return "dealer"
	default:
		return "unknown"
	}
}

// ParsePattern maps a pattern name ("request", "REQ", "router", ...) to a Pattern.
func ParsePattern(name string) (Pattern, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "request", "req":
		return Request, nil
	case "reply", "rep":
		return Reply, nil
	case "push":
		return Push, nil
	case "pull":
		return Pull, nil
	case "router":
		return Router, nil
	case "dealer":
		return Dealer, nil
	}
	return 0, NewError(ErrCodeUnsupportedPattern, "unknown pattern").WithContext("pattern", name)
}

// Valid reports whether p is one of the declared patterns.
func (p Pattern) Valid() bool {
	return p >= Request && p <= Dealer
}

// Binds reports whether the pattern accepts multiple independent peers and is
// therefore created by binding an address rather than connecting to one.
func (p Pattern) Binds() bool {
	return p == Reply || p == Pull || p == Router
}

// ExpectsReply reports whether every send must be followed by exactly one
// correlated receive (lock-step).
func (p Pattern) ExpectsReply() bool {
	return p == Request
}

// Routed reports whether inbound frames carry a peer envelope.
func (p Pattern) Routed() bool {
	return p == Router
}

// CanSend reports whether values may be written on a channel of this pattern.
func (p Pattern) CanSend() bool {
	return p.Valid() && p != Pull
}

// CanReceive reports whether inbound frames are delivered on this pattern.
func (p Pattern) CanReceive() bool {
	return p.Valid() && p != Push
}

// Peer returns the pattern expected on the other end of a connection.
func (p Pattern) Peer() Pattern {
	switch p {
	case Request:
		return Reply
	case Reply:
		return Request
	case Push:
		return Pull
	case Pull:
		return Push
	case Router:
		return Dealer
	case Dealer:
		return Router
	}
	return 0
}
