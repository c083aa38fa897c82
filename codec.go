package xsock

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// JSONCodec is the default JSON implementation.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(b []byte, v any) error {
	return json.Unmarshal(b, v)
}

func (JSONCodec) Name() string {
	return "json"
}

// ValidTimestamp reports whether s is a decimal integer of any magnitude.
func ValidTimestamp(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '-' && i == 0 && len(s) > 1 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseTimestamp parses a decimal timestamp without loss of precision.
func ParseTimestamp(s string) (*big.Int, error) {
	if !ValidTimestamp(s) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	}
	return n, nil
}

// EncodeMessage validates m and marshals it with c.
func EncodeMessage(c Codec, m *Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("xsock: encode nil message")
	}
	if !ValidTimestamp(m.Timestamp) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimestamp, m.Timestamp)
	}
	return c.Marshal(m)
}

// DecodeMessage unmarshals data with c and validates the timestamp.
func DecodeMessage(c Codec, data []byte) (*Message, error) {
	var m Message
	if err := c.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, c.Name(), err)
	}
	if !ValidTimestamp(m.Timestamp) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimestamp, m.Timestamp)
	}
	return &m, nil
}

// Decode unmarshals a raw payload into T with the provided codec.
func Decode[T any](c Codec, payload []byte) (T, error) {
	var v T
	if err := c.Unmarshal(payload, &v); err != nil {
		return v, err
	}
	return v, nil
}
