package codec

import (
	cbor "github.com/fxamacker/cbor/v2"

	"github.com/momentics/hioload-mq/api"
)

type cborCodec[T any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// CBOR returns a deterministic CBOR codec (RFC 8949, core deterministic
// encoding) for values of type T. It is the binary object codec.
func CBOR[T any]() (api.Codec[T], error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, err
	}
	return cborCodec[T]{enc: em, dec: dm}, nil
}

func (c cborCodec[T]) Encode(v T) ([]byte, error) {
	b, err := c.enc.Marshal(v)
	if err != nil {
		return nil, encodeErr(v, err)
	}
	return b, nil
}

func (c cborCodec[T]) Decode(data []byte) (T, error) {
	var v T
	if err := c.dec.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, decodeErr(data, err)
	}
	return v, nil
}
