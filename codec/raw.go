package codec

import (
	"errors"
	"unicode/utf8"

	"github.com/momentics/hioload-mq/api"
)

var errInvalidUTF8 = errors.New("payload is not valid UTF-8")

type rawCodec struct{}

// Raw returns the byte passthrough codec. Decoded slices are copies, so
// consumers may retain them after the frame buffer is reused.
func Raw() api.Codec[[]byte] { return rawCodec{} }

func (rawCodec) Encode(v []byte) ([]byte, error) { return v, nil }

func (rawCodec) Decode(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

type stringCodec struct{}

// String returns a codec mapping Go strings to UTF-8 payloads.
func String() api.Codec[string] { return stringCodec{} }

func (stringCodec) Encode(v string) ([]byte, error) {
	if !utf8.ValidString(v) {
		return nil, encodeErr(v, errInvalidUTF8)
	}
	return []byte(v), nil
}

func (stringCodec) Decode(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", decodeErr(data, errInvalidUTF8)
	}
	return string(data), nil
}
