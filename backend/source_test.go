package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceCopyIsIndependent(t *testing.T) {
	src := Source{KeyProtocol: "HTTP", KeyBase: "http://device.local"}
	dup := src.Copy()

	dup[KeyBase] = "http://other.local"
	assert.Equal(t, "http://device.local", src[KeyBase])

	var none Source
	assert.Nil(t, none.Copy())
}

func TestSourceProtocol(t *testing.T) {
	assert.Equal(t, MQTT, Source{KeyProtocol: "MQTT"}.Protocol())
	assert.Equal(t, Protocol(""), Source{}.Protocol())
}

func TestValueDocumentRoundTrip(t *testing.T) {
	raw, err := EncodeValue("230.4")
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":"230.4"}`, string(raw))

	value, err := DecodeValue(raw)
	require.NoError(t, err)
	assert.Equal(t, "230.4", value)
}

func TestDecodeValueRejectsMalformedPayload(t *testing.T) {
	_, err := DecodeValue([]byte(`{"value":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding value document")
}
