package transport_test

import (
	"errors"
	"testing"

	"github.com/momentics/hioload-mq/api"
	"github.com/momentics/hioload-mq/transport"
)

func TestParseAddress(t *testing.T) {
	cases := []struct {
		in       string
		scheme   string
		host     string
		port     int
		name     string
		listen   string
		wildcard bool
	}{
		{"tcp://localhost:5555", "tcp", "localhost", 5555, "", "tcp://localhost:5555", false},
		{"tcp://*:5555", "tcp", "*", 5555, "", "tcp://0.0.0.0:5555", true},
		{"tcp://127.0.0.1:0", "tcp", "127.0.0.1", 0, "", "tcp://127.0.0.1:0", false},
		{"inproc://workers", "inproc", "", 0, "workers", "inproc://workers", false},
		{"ipc://sock", "ipc", "", 0, "sock", "ipc://sock", false},
	}
	for _, c := range cases {
		a, err := transport.ParseAddress(c.in)
		if err != nil {
			t.Fatalf("%s: %v", c.in, err)
		}
		if a.Scheme != c.scheme || a.Host != c.host || a.Port != c.port || a.Name != c.name {
			t.Errorf("%s: parsed %+v", c.in, a)
		}
		if got := a.ListenEndpoint(); got != c.listen {
			t.Errorf("%s: listen endpoint %q, want %q", c.in, got, c.listen)
		}
		if a.Wildcard() != c.wildcard {
			t.Errorf("%s: wildcard = %v", c.in, a.Wildcard())
		}
	}
}

func TestParseAddressInvalid(t *testing.T) {
	for _, in := range []string{
		"",
		"localhost:5555",
		"tcp://",
		"inproc://",
		"tcp://localhost",
		"tcp://:5555",
		"tcp://localhost:port",
		"tcp://localhost:70000",
		"://x",
	} {
		if _, err := transport.ParseAddress(in); !errors.Is(err, api.ErrInvalidAddress) {
			t.Errorf("%q: expected ErrInvalidAddress, got %v", in, err)
		}
	}
}

func TestCheckDialRejectsWildcard(t *testing.T) {
	a, err := transport.ParseAddress("tcp://*:6000")
	if err != nil {
		t.Fatal(err)
	}
	if err := a.CheckDial(); !errors.Is(err, api.ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
	b, _ := transport.ParseAddress("tcp://localhost:6000")
	if err := b.CheckDial(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAddressKeySharesWildcards(t *testing.T) {
	a, _ := transport.ParseAddress("tcp://*:7000")
	b, _ := transport.ParseAddress("tcp://127.0.0.1:7000")
	if a.Key() != b.Key() {
		t.Fatalf("keys differ: %q vs %q", a.Key(), b.Key())
	}
	c, _ := transport.ParseAddress("inproc://7000")
	if c.Key() == a.Key() {
		t.Fatal("inproc key collides with tcp key")
	}
}
