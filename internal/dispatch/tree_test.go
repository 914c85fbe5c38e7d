package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/wire"
	"github.com/openrti/rtinode/internal/wire/handshake"
)

// linkSender synchronously delivers into the peer dispatcher, standing
// in for a transport between two nodes.
type linkSender struct {
	peer        *Dispatcher
	peerConnect handle.ConnectHandle
	closed      bool
}

func (s *linkSender) Send(msg wire.Message) {
	if s.closed {
		return
	}
	_ = s.peer.Dispatch(s.peerConnect, msg)
}

func (s *linkSender) Close() { s.closed = true }

// linkNodes wires child under root and returns the connect handles on
// each side.
func linkNodes(t *testing.T, root, child *Dispatcher) (onRoot, onChild handle.ConnectHandle) {
	t.Helper()
	toChild := &linkSender{peer: child}
	toRoot := &linkSender{peer: root}

	onRoot = root.InsertConnect(toChild, handshake.Options{
		handshake.KeyServerName: {"child"},
	})
	var err error
	onChild, err = child.InsertParentConnect(toRoot, handshake.Options{
		handshake.KeyServerPath: {"/root"},
	})
	require.NoError(t, err)

	toChild.peerConnect = onChild
	toRoot.peerConnect = onRoot
	return
}

func TestTreeJoinThroughChild(t *testing.T) {
	root := newTestDispatcher(t, "root")
	child := newTestDispatcher(t, "child")
	linkNodes(t, root, child)

	// An ambassador on the child node.
	amb, ambConnect := attach(child)

	// Create travels up and the response back down.
	require.NoError(t, child.Dispatch(ambConnect, &wire.CreateFederationExecutionRequest{
		FederationName: "f",
		Modules:        testModules(),
	}))
	creates := byKind[*wire.CreateFederationExecutionResponse](amb.take())
	require.Len(t, creates, 1)
	require.Equal(t, wire.CreateSuccess, creates[0].Result)

	// Join pushes the federation into the child node on the way back.
	require.NoError(t, child.Dispatch(ambConnect, &wire.JoinFederationExecutionRequest{
		FederationName: "f",
		FederateName:   "A",
	}))
	burst := amb.take()
	joins := byKind[*wire.JoinFederationExecutionResponse](burst)
	require.Len(t, joins, 1)
	require.Equal(t, wire.JoinSuccess, joins[0].Result)
	require.Len(t, byKind[*wire.InsertFederationExecution](burst), 1)

	// The child now has its own replica.
	fed, ok := child.Node().FederationByName("f")
	require.True(t, ok)
	assert.Equal(t, 1, fed.FederateCount())
	_, ok = fed.FederateByName("A")
	assert.True(t, ok)

	// Resign flows up; the root erases the federate and the child
	// replica is flushed once its connect is idle.
	require.NoError(t, child.Dispatch(ambConnect, &wire.ResignFederationExecutionRequest{
		FederationHandle: joins[0].FederationHandle,
		FederateHandle:   joins[0].FederateHandle,
	}))
	rootFed, ok := root.Node().FederationByName("f")
	require.True(t, ok)
	assert.Equal(t, 0, rootFed.FederateCount())
}

func TestTreePendingInvalidation(t *testing.T) {
	root := newTestDispatcher(t, "root")
	child := newTestDispatcher(t, "child")
	linkNodes(t, root, child)

	// Park a request on the child's pending list by making the parent
	// link silent.
	silent := &recordingSender{}
	quietChild := newTestDispatcher(t, "quiet")
	onQuiet, err := quietChild.InsertParentConnect(silent, handshake.Options{})
	require.NoError(t, err)

	amb, ambConnect := attach(quietChild)
	require.NoError(t, quietChild.Dispatch(ambConnect, &wire.CreateFederationExecutionRequest{
		FederationName: "f",
	}))
	require.Len(t, quietChild.pending, 1)

	// The originating connect dies: the entry stays, originless.
	quietChild.RemoveConnect(ambConnect)
	require.Len(t, quietChild.pending, 1)
	assert.False(t, quietChild.pending[0].hasOrigin)

	// The response still consumes the entry without a crash.
	require.NoError(t, quietChild.Dispatch(onQuiet, &wire.CreateFederationExecutionResponse{
		Result: wire.CreateSuccess,
	}))
	assert.Empty(t, quietChild.pending)
	assert.Empty(t, amb.take())
}

func TestTreeParentLossReplaysPendingLocally(t *testing.T) {
	child := newTestDispatcher(t, "child")
	silent := &recordingSender{}
	parentConnect, err := child.InsertParentConnect(silent, handshake.Options{})
	require.NoError(t, err)

	amb, ambConnect := attach(child)
	require.NoError(t, child.Dispatch(ambConnect, &wire.CreateFederationExecutionRequest{
		FederationName: "f",
		Modules:        testModules(),
	}))
	require.Len(t, child.pending, 1)
	require.Empty(t, amb.take())

	// The parent dies; the node becomes the root of its subtree and
	// replays the pending create against itself.
	child.RemoveConnect(parentConnect)

	assert.True(t, child.Node().IsRootServer())
	creates := byKind[*wire.CreateFederationExecutionResponse](amb.take())
	require.Len(t, creates, 1)
	assert.Equal(t, wire.CreateSuccess, creates[0].Result)
	_, ok := child.Node().FederationByName("f")
	assert.True(t, ok)
}

func TestTreeConnectionLostFromParentBroadcasts(t *testing.T) {
	child := newTestDispatcher(t, "child")
	silent := &recordingSender{}
	parentConnect, err := child.InsertParentConnect(silent, handshake.Options{})
	require.NoError(t, err)

	amb, _ := attach(child)
	require.NoError(t, child.Dispatch(parentConnect, &wire.ConnectionLost{FaultDescription: "gone"}))
	lost := byKind[*wire.ConnectionLost](amb.take())
	require.Len(t, lost, 1)
	assert.Equal(t, "gone", lost[0].FaultDescription)
}

func TestChildConnectLossSynthesizesResign(t *testing.T) {
	d := newTestDispatcher(t, "root")
	cA, hA := attach(d)
	cB, hB := attach(d)

	createFederation(t, d, cA, hA, "f")
	rA := join(t, d, cA, hA, "f", "A")
	join(t, d, cB, hB, "f", "B")
	cA.take()

	// B's connect dies; A hears a resign for B's federate.
	d.RemoveConnect(hB)
	resigns := byKind[*wire.ResignFederateNotify](cA.take())
	require.Len(t, resigns, 1)
	assert.NotEqual(t, rA.FederateHandle, resigns[0].FederateHandle)

	fed, ok := d.Node().FederationByName("f")
	require.True(t, ok)
	assert.Equal(t, 1, fed.FederateCount())
}
