package codec

import (
	"encoding/json"

	"github.com/momentics/hioload-mq/api"
)

type jsonCodec[T any] struct{}

// JSON returns a JSON codec (RFC 8259) for values of type T.
func JSON[T any]() api.Codec[T] { return jsonCodec[T]{} }

func (jsonCodec[T]) Encode(v T) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, encodeErr(v, err)
	}
	return b, nil
}

func (jsonCodec[T]) Decode(data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, decodeErr(data, err)
	}
	return v, nil
}
