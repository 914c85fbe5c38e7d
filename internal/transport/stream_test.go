package transport

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrti/rtinode/internal/wire"
	"github.com/openrti/rtinode/internal/wire/codec"
	"github.com/openrti/rtinode/internal/wire/handshake"
)

func TestOptionsRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	sent := handshake.Options{
		handshake.KeyVersion:  {handshake.EncodingVersion},
		handshake.KeyEncoding: {handshake.EncodingXDR},
	}
	go func() {
		_ = WriteOptions(client, sent)
	}()
	got, err := ReadOptions(server)
	require.NoError(t, err)
	assert.Equal(t, sent, got)
}

// pipeHandshake runs both handshake halves over an in-memory pipe and
// returns the negotiated message streams.
func pipeHandshake(t *testing.T, compression bool, cfg handshake.ServerConfig) (clientConn, serverConn *MessageConn) {
	t.Helper()
	client, server := net.Pipe()

	type clientResult struct {
		mc  *MessageConn
		err error
	}
	clientCh := make(chan clientResult, 1)
	go func() {
		offer := handshake.ClientOffer(compression)
		if err := WriteOptions(client, offer); err != nil {
			clientCh <- clientResult{err: err}
			return
		}
		reply, err := ReadOptions(client)
		if err != nil {
			clientCh <- clientResult{err: err}
			return
		}
		result, err := handshake.Confirm(reply)
		if err != nil {
			clientCh <- clientResult{err: err}
			return
		}
		mc, err := newMessageConn(client, result.Compression, codec.NewXDR())
		clientCh <- clientResult{mc: mc, err: err}
	}()

	serverMC, _, err := AcceptStream(server, cfg)
	require.NoError(t, err)
	cr := <-clientCh
	require.NoError(t, cr.err)
	return cr.mc, serverMC
}

func TestMessageConnRoundTrip(t *testing.T) {
	clientConn, serverConn := pipeHandshake(t, false, handshake.ServerConfig{
		ServerName:           "root",
		PermitTimeRegulation: true,
	})
	defer clientConn.Close()
	defer serverConn.Close()

	go func() {
		_ = clientConn.WriteMessage(&wire.CreateFederationExecutionRequest{FederationName: "f"})
	}()
	msg, err := serverConn.ReadMessage()
	require.NoError(t, err)
	create, ok := msg.(*wire.CreateFederationExecutionRequest)
	require.True(t, ok)
	assert.Equal(t, "f", create.FederationName)
}

func TestMessageConnCompressedRoundTrip(t *testing.T) {
	clientConn, serverConn := pipeHandshake(t, true, handshake.ServerConfig{
		ServerName:            "root",
		EnableZLibCompression: true,
		PermitTimeRegulation:  true,
	})
	defer clientConn.Close()
	defer serverConn.Close()

	go func() {
		_ = clientConn.WriteMessage(&wire.JoinFederationExecutionRequest{
			FederationName: "f",
			FederateName:   "A",
		})
		_ = clientConn.WriteMessage(&wire.ResignFederationExecutionRequest{
			FederationHandle: 1,
			FederateHandle:   2,
		})
	}()

	msg, err := serverConn.ReadMessage()
	require.NoError(t, err)
	join, ok := msg.(*wire.JoinFederationExecutionRequest)
	require.True(t, ok)
	assert.Equal(t, "A", join.FederateName)

	msg, err = serverConn.ReadMessage()
	require.NoError(t, err)
	_, ok = msg.(*wire.ResignFederationExecutionRequest)
	assert.True(t, ok)
}

func TestAcceptStreamRejectsBadVersion(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	errCh := make(chan error, 1)
	go func() {
		offer := handshake.ClientOffer(false)
		offer[handshake.KeyVersion] = []string{"99"}
		if err := WriteOptions(client, offer); err != nil {
			errCh <- err
			return
		}
		reply, err := ReadOptions(client)
		if err != nil {
			errCh <- err
			return
		}
		_, err = handshake.Confirm(reply)
		errCh <- err
	}()

	_, _, err := AcceptStream(server, handshake.ServerConfig{})
	assert.Error(t, err)
	// The client sees the error option rather than a bare close.
	assert.Error(t, <-errCh)
}
