package tiercache

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
)

// ErrNilCodec is returned when a codec is missing its Encode or Decode function.
var ErrNilCodec = errors.New("tiercache: codec requires encode and decode functions")

// Codec defines how items are encoded to and decoded from backend bytes.
type Codec[T any] struct {
	Encode func(T) ([]byte, error)
	Decode func([]byte) (T, error)
}

func (c Codec[T]) valid() bool {
	return c.Encode != nil && c.Decode != nil
}

// JSONCodec encodes items with encoding/json. It is the default codec.
func JSONCodec[T any]() Codec[T] {
	return Codec[T]{
		Encode: func(v T) ([]byte, error) { return json.Marshal(v) },
		Decode: func(b []byte) (T, error) {
			var out T
			err := json.Unmarshal(b, &out)
			return out, err
		},
	}
}

// GobCodec encodes items with encoding/gob.
func GobCodec[T any]() Codec[T] {
	return Codec[T]{
		Encode: func(v T) ([]byte, error) {
			var buf bytes.Buffer
			if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		Decode: func(b []byte) (T, error) {
			var out T
			err := gob.NewDecoder(bytes.NewReader(b)).Decode(&out)
			return out, err
		},
	}
}
