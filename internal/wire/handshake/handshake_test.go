package handshake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcceptAndConfirm(t *testing.T) {
	offer := ClientOffer(true)
	result, reply, err := Accept(offer, ServerConfig{
		ServerName:            "root",
		ServerPath:            "/root",
		EnableZLibCompression: true,
		PermitTimeRegulation:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, EncodingXDR, result.Encoding)
	assert.Equal(t, CompressionZLib, result.Compression)
	assert.True(t, result.PermitTimeRegulation)

	clientView, err := Confirm(reply)
	require.NoError(t, err)
	assert.Equal(t, result.Encoding, clientView.Encoding)
	assert.Equal(t, result.Compression, clientView.Compression)
	assert.True(t, clientView.PermitTimeRegulation)
}

func TestAcceptWithoutCompression(t *testing.T) {
	offer := ClientOffer(false)
	result, reply, err := Accept(offer, ServerConfig{EnableZLibCompression: true, PermitTimeRegulation: true})
	require.NoError(t, err)
	// Client refused compression, so even a zlib-capable server lands
	// on none.
	assert.Equal(t, CompressionNone, result.Compression)
	assert.Equal(t, []string{CompressionNone}, reply[KeyCompression])
}

func TestAcceptRejectsWrongVersion(t *testing.T) {
	offer := ClientOffer(false)
	offer[KeyVersion] = []string{"1"}
	_, reply, err := Accept(offer, ServerConfig{})
	require.Error(t, err)
	require.NotEmpty(t, reply[KeyError])

	_, err = Confirm(reply)
	assert.Error(t, err)
}

func TestAcceptDeniedTimeRegulation(t *testing.T) {
	offer := ClientOffer(false)
	result, reply, err := Accept(offer, ServerConfig{PermitTimeRegulation: false})
	require.NoError(t, err)
	assert.False(t, result.PermitTimeRegulation)
	assert.Equal(t, []string{"false"}, reply[KeyPermitTimeRegulation])

	clientView, err := Confirm(reply)
	require.NoError(t, err)
	assert.False(t, clientView.PermitTimeRegulation)
}

func TestConfirmRejectsUnknownCompression(t *testing.T) {
	_, err := Confirm(Options{
		KeyEncoding:    {EncodingXDR},
		KeyCompression: {CompressionLZMA},
	})
	assert.Error(t, err)
}
