package api_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/momentics/hioload-mq/api"
)

func TestErrorMatchesSentinel(t *testing.T) {
	err := api.NewError(api.ErrCodeAddressInUse, "bind").
		WithContext("address", "tcp://*:5555").
		WithCause(io.EOF)

	if !errors.Is(err, api.ErrAddressInUse) {
		t.Fatal("does not match its sentinel")
	}
	if errors.Is(err, api.ErrInvalidAddress) {
		t.Fatal("matches a foreign sentinel")
	}
	if !errors.Is(err, io.EOF) {
		t.Fatal("cause lost")
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "address in use: bind") || !strings.Contains(msg, "tcp://*:5555") {
		t.Fatalf("message = %q", msg)
	}
}

func TestViolation(t *testing.T) {
	err := api.Violation(api.Request, "send", "reply outstanding")
	if !errors.Is(err, api.ErrPatternViolation) {
		t.Fatal("violation does not match ErrPatternViolation")
	}
	if err.Context["pattern"] != "request" || err.Context["op"] != "send" {
		t.Fatalf("context = %v", err.Context)
	}
}

func TestCodecErrorUnwrap(t *testing.T) {
	cause := errors.New("bad utf-8")
	var err error = &api.CodecError{Op: "decode", Payload: []byte{0xff}, Err: cause}
	if !errors.Is(err, api.ErrCodec) || !errors.Is(err, cause) {
		t.Fatalf("codec error chain broken: %v", err)
	}
}
