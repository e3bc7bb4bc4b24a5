// File: transport/address.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Endpoint address parsing for tcp:// and inproc:// style URLs.

package transport

import (
	"net"
	"strconv"
	"strings"

	"github.com/momentics/hioload-mq/api"
)

// Known schemes.
const (
	SchemeTCP    = "tcp"
	SchemeInproc = "inproc"
)

// Address is a parsed endpoint.
type Address struct {
	Raw    string
	Scheme string
	Host   string // tcp: host or "*"
	Port   int    // tcp only
	Name   string // inproc and other host-less schemes
}

// ParseAddress validates the syntax of s. Scheme support is checked later, by
// the Registry.
func ParseAddress(s string) (Address, error) {
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok || scheme == "" {
		return Address{}, invalid(s, "missing scheme separator")
	}
	a := Address{Raw: s, Scheme: strings.ToLower(scheme)}
	if rest == "" {
		return Address{}, invalid(s, "empty endpoint")
	}

	if a.Scheme != SchemeTCP {
		a.Name = rest
		return a, nil
	}

	host, port, err := net.SplitHostPort(rest)
	if err != nil {
		return Address{}, invalid(s, "malformed host:port").WithCause(err)
	}
	if host == "" {
		return Address{}, invalid(s, "empty host")
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 0 || p > 65535 {
		return Address{}, invalid(s, "bad port")
	}
	a.Host, a.Port = host, p
	return a, nil
}

// Wildcard reports whether the address binds every interface.
func (a Address) Wildcard() bool {
	return a.Scheme == SchemeTCP && (a.Host == "*" || a.Host == "0.0.0.0" || a.Host == "::")
}

// CheckDial rejects addresses that cannot be connected to.
func (a Address) CheckDial() error {
	if a.Wildcard() {
		return invalid(a.Raw, "cannot connect to a wildcard address")
	}
	return nil
}

// ListenEndpoint is the form handed to a socket's Listen.
func (a Address) ListenEndpoint() string {
	if a.Scheme != SchemeTCP {
		return a.Scheme + "://" + a.Name
	}
	host := a.Host
	if host == "*" {
		host = "0.0.0.0"
	}
	return "tcp://" + net.JoinHostPort(host, strconv.Itoa(a.Port))
}

// DialEndpoint is the form handed to a socket's Dial.
func (a Address) DialEndpoint() string {
	return a.String()
}

// Key identifies the bound resource. All wildcard spellings of one TCP port
// share a key.
func (a Address) Key() string {
	if a.Scheme == SchemeTCP {
		return "tcp:" + strconv.Itoa(a.Port)
	}
	return a.Scheme + ":" + a.Name
}

// String returns the canonical URL form.
func (a Address) String() string {
	if a.Scheme != SchemeTCP {
		return a.Scheme + "://" + a.Name
	}
	return "tcp://" + net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

func invalid(addr, reason string) *api.Error {
	return api.NewError(api.ErrCodeInvalidAddress, reason).WithContext("address", addr)
}
