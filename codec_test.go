package xsock

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeMessage_WireFormat(t *testing.T) {
	m := &Message{
		ID:        0,
		Timestamp: "1000000000",
		Content:   "Message 0",
		Metadata:  &Metadata{Source: "publisher", Priority: 0, Tags: []string{"test", "zeromq", "msg-0"}},
	}
	b, err := EncodeMessage(JSONCodec{}, m)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 0,
		"timestamp": "1000000000",
		"content": "Message 0",
		"metadata": {"source": "publisher", "priority": 0, "tags": ["test", "zeromq", "msg-0"]}
	}`, string(b))

	got, err := DecodeMessage(JSONCodec{}, b)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestEncodeMessage_OmitsMissingMetadata(t *testing.T) {
	b, err := EncodeMessage(JSONCodec{}, &Message{ID: 3, Timestamp: "5", Content: "x"})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "metadata")
}

func TestTimestamp_ArbitraryPrecision(t *testing.T) {
	huge := "123456789012345678901234567890123456789"
	b, err := EncodeMessage(JSONCodec{}, &Message{Timestamp: huge})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"timestamp":"`+huge+`"`)

	m, err := DecodeMessage(JSONCodec{}, b)
	require.NoError(t, err)
	n, err := ParseTimestamp(m.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, huge, n.String())
}

func TestValidTimestamp(t *testing.T) {
	for s, want := range map[string]bool{
		"0":                           true,
		"1000000000":                  true,
		"-42":                         true,
		"":                            false,
		"-":                           false,
		"12a":                         false,
		"1.5":                         false,
		" 1":                          false,
		"1e9":                         false,
		"--1":                         false,
		"9" + strings.Repeat("9", 60): true,
	} {
		assert.Equal(t, want, ValidTimestamp(s), "%q", s)
	}
}

func TestEncodeMessage_RejectsBadTimestamp(t *testing.T) {
	_, err := EncodeMessage(JSONCodec{}, &Message{Timestamp: "now"})
	assert.ErrorIs(t, err, ErrInvalidTimestamp)

	_, err = EncodeMessage(JSONCodec{}, nil)
	assert.Error(t, err)
}

func TestDecodeMessage_Errors(t *testing.T) {
	_, err := DecodeMessage(JSONCodec{}, []byte(`{not json`))
	assert.ErrorIs(t, err, ErrDecode)

	// a numeric timestamp loses precision in most JSON stacks and is refused
	_, err = DecodeMessage(JSONCodec{}, []byte(`{"id":1,"timestamp":1000,"content":"x"}`))
	assert.ErrorIs(t, err, ErrDecode)

	_, err = DecodeMessage(JSONCodec{}, []byte(`{"id":1,"timestamp":"abc","content":"x"}`))
	assert.ErrorIs(t, err, ErrInvalidTimestamp)
}

func TestDecodeGeneric(t *testing.T) {
	type idOnly struct {
		ID uint64 `json:"id"`
	}
	v, err := Decode[idOnly](JSONCodec{}, []byte(`{"id":9}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(9), v.ID)
}

func TestCodecRegistry(t *testing.T) {
	c, err := NewCodec("json")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	_, err = NewCodec("xml")
	assert.Error(t, err)
}
