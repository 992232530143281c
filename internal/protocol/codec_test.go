package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data, err := Encode(TypeWelcome, Welcome{ClientID: "c1", ReconnectToken: "tok"})
	require.NoError(t, err)

	env, err := DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, TypeWelcome, env.Type)

	var welcome Welcome
	require.NoError(t, DecodePayload(env, &welcome))
	assert.Equal(t, "c1", welcome.ClientID)
	assert.Equal(t, "tok", welcome.ReconnectToken)
}

func TestDecodeEnvelope_UnknownType(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"type":"not_a_real_type"}`))
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestDecodeEnvelope_Truncated(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"type":"welcome"`))
	assert.ErrorIs(t, err, ErrDecodeError)
}

func TestDecodeEnvelope_MissingType(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"payload":{}}`))
	assert.ErrorIs(t, err, ErrDecodeError)
}

func TestClientReadyZeroPayload(t *testing.T) {
	data, err := Encode(TypeClientReady, ClientReady{})
	require.NoError(t, err)

	env, err := DecodeEnvelope(data)
	require.NoError(t, err)

	var cr ClientReady
	require.NoError(t, DecodePayload(env, &cr))
	assert.Equal(t, ClientReady{}, cr)
}
