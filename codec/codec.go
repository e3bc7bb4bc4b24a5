// Package codec provides interchangeable api.Codec implementations: raw byte
// passthrough, UTF-8 strings, JSON, deterministic CBOR and protobuf.
//
// Failures are reported as *api.CodecError carrying the offending payload or
// value, so channels can route them to their error path unchanged.
package codec

import (
	"github.com/momentics/hioload-mq/api"
)

func encodeErr(v any, err error) error {
	return &api.CodecError{Op: "encode", Value: v, Err: err}
}

func decodeErr(data []byte, err error) error {
	payload := make([]byte, len(data))
	copy(payload, data)
	return &api.CodecError{Op: "decode", Payload: payload, Err: err}
}

// Funcs adapts a pair of functions to api.Codec.
type Funcs[T any] struct {
	EncodeFunc func(T) ([]byte, error)
	DecodeFunc func([]byte) (T, error)
}

func (f Funcs[T]) Encode(v T) ([]byte, error) {
	b, err := f.EncodeFunc(v)
	if err != nil {
		return nil, encodeErr(v, err)
	}
	return b, nil
}

func (f Funcs[T]) Decode(data []byte) (T, error) {
	v, err := f.DecodeFunc(data)
	if err != nil {
		var zero T
		return zero, decodeErr(data, err)
	}
	return v, nil
}
