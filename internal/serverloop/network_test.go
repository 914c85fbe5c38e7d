package serverloop

import (
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrti/rtinode/internal/dispatch"
	"github.com/openrti/rtinode/internal/logger"
	"github.com/openrti/rtinode/internal/node"
	"github.com/openrti/rtinode/internal/transport"
	"github.com/openrti/rtinode/internal/wire"
	"github.com/openrti/rtinode/internal/wire/handshake"
)

// startRootServer brings a NetworkServer up on an ephemeral port and
// returns it with the URL clients dial.
func startRootServer(t *testing.T, compression bool) (*NetworkServer, transport.URL) {
	t.Helper()
	log := logger.NewTesting(io.Discard)
	d := dispatch.New(node.New("root"), log, nil)
	s := NewNetworkServer(d, log, handshake.ServerConfig{
		ServerName:            "root",
		ServerPath:            "/root",
		EnableZLibCompression: compression,
		PermitTimeRegulation:  true,
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s.Serve(ln)
	t.Cleanup(s.Shutdown)

	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	proto := transport.ProtocolRTI
	if compression {
		proto = transport.ProtocolRTIC
	}
	u, err := transport.Parse(proto + "://127.0.0.1:" + strconv.Itoa(port))
	require.NoError(t, err)
	return s, u
}

func TestNetworkCreateDestroyOverWire(t *testing.T) {
	_, u := startRootServer(t, false)

	mc, _, err := transport.Dial(u, time.Time{})
	require.NoError(t, err)
	defer mc.Close()

	require.NoError(t, mc.WriteMessage(&wire.CreateFederationExecutionRequest{FederationName: "f"}))
	msg, err := mc.ReadMessage()
	require.NoError(t, err)
	create, ok := msg.(*wire.CreateFederationExecutionResponse)
	require.True(t, ok)
	assert.Equal(t, wire.CreateSuccess, create.Result)

	require.NoError(t, mc.WriteMessage(&wire.DestroyFederationExecutionRequest{FederationName: "f"}))
	msg, err = mc.ReadMessage()
	require.NoError(t, err)
	destroy, ok := msg.(*wire.DestroyFederationExecutionResponse)
	require.True(t, ok)
	assert.Equal(t, wire.DestroySuccess, destroy.Result)
}

func TestNetworkCompressedJoinOverWire(t *testing.T) {
	_, u := startRootServer(t, true)

	mc, _, err := transport.Dial(u, time.Time{})
	require.NoError(t, err)
	defer mc.Close()

	require.NoError(t, mc.WriteMessage(&wire.CreateFederationExecutionRequest{FederationName: "f"}))
	msg, err := mc.ReadMessage()
	require.NoError(t, err)
	require.IsType(t, &wire.CreateFederationExecutionResponse{}, msg)

	require.NoError(t, mc.WriteMessage(&wire.JoinFederationExecutionRequest{
		FederationName: "f",
		FederateName:   "A",
	}))

	// The join burst carries the federation push before the response.
	var join *wire.JoinFederationExecutionResponse
	for join == nil {
		msg, err = mc.ReadMessage()
		require.NoError(t, err)
		if j, ok := msg.(*wire.JoinFederationExecutionResponse); ok {
			join = j
		}
	}
	assert.Equal(t, wire.JoinSuccess, join.Result)
}

func TestNetworkPeerDeathRunsCleanup(t *testing.T) {
	s, u := startRootServer(t, false)

	mc, _, err := transport.Dial(u, time.Time{})
	require.NoError(t, err)

	require.NoError(t, mc.WriteMessage(&wire.CreateFederationExecutionRequest{FederationName: "f"}))
	_, err = mc.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, mc.WriteMessage(&wire.JoinFederationExecutionRequest{
		FederationName: "f",
		FederateName:   "A",
	}))
	var joined bool
	for !joined {
		msg, err := mc.ReadMessage()
		require.NoError(t, err)
		_, joined = msg.(*wire.JoinFederationExecutionResponse)
	}

	// The peer dies; the server resigns its federate.
	mc.Close()
	require.Eventually(t, func() bool {
		count := make(chan int, 1)
		s.PostOperation(func() {
			fed, ok := s.Dispatcher().Node().FederationByName("f")
			if !ok {
				count <- 0
				return
			}
			count <- fed.FederateCount()
		})
		select {
		case n := <-count:
			return n == 0
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)
}
