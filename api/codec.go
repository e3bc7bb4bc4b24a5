// File: api/codec.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Codec contract converting application values to and from frame payloads.

package api

// Codec converts a value of type T to and from a byte payload.
// Implementations must be deterministic and free of side effects; they are
// selected per channel and may be shared between channels.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}
