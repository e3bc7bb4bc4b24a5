package codec

import (
	"google.golang.org/protobuf/proto"

	"github.com/momentics/hioload-mq/api"
)

type protoCodec[T proto.Message] struct {
	newMsg func() T
	mo     proto.MarshalOptions
	uo     proto.UnmarshalOptions
}

// Proto returns a Protocol Buffers codec with deterministic marshaling.
// newMsg allocates the empty message that Decode fills in.
func Proto[T proto.Message](newMsg func() T) api.Codec[T] {
	return protoCodec[T]{
		newMsg: newMsg,
		mo:     proto.MarshalOptions{Deterministic: true},
		uo:     proto.UnmarshalOptions{},
	}
}

func (c protoCodec[T]) Encode(v T) ([]byte, error) {
	b, err := c.mo.Marshal(v)
	if err != nil {
		return nil, encodeErr(v, err)
	}
	return b, nil
}

func (c protoCodec[T]) Decode(data []byte) (T, error) {
	msg := c.newMsg()
	if err := c.uo.Unmarshal(data, msg); err != nil {
		var zero T
		return zero, decodeErr(data, err)
	}
	return msg, nil
}
