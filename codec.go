package ravel

import "github.com/cybergodev/json"

// Codec is the serialization boundary of the engine. The encode path turns
// non-scalar values into their stored text form, the decode path turns
// stored values back into typed Go values. Implementations must be safe for
// concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// jsonCodec is the default Codec, backed by github.com/cybergodev/json.
type jsonCodec struct{}

var _ Codec = jsonCodec{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
