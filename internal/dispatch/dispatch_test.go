package dispatch

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/logger"
	"github.com/openrti/rtinode/internal/node"
	"github.com/openrti/rtinode/internal/routing"
	"github.com/openrti/rtinode/internal/wire"
	"github.com/openrti/rtinode/internal/wire/handshake"
)

// recordingSender captures outbound traffic for one connect.
type recordingSender struct {
	sent   []wire.Message
	closed bool
}

func (s *recordingSender) Send(msg wire.Message) { s.sent = append(s.sent, msg) }
func (s *recordingSender) Close()                { s.closed = true }

// take drains and returns the captured messages.
func (s *recordingSender) take() []wire.Message {
	out := s.sent
	s.sent = nil
	return out
}

// byKind filters the captured messages.
func byKind[M wire.Message](msgs []wire.Message) []M {
	var out []M
	for _, m := range msgs {
		if typed, ok := m.(M); ok {
			out = append(out, typed)
		}
	}
	return out
}

func newTestDispatcher(t *testing.T, name string) *Dispatcher {
	t.Helper()
	return New(node.New(name), logger.NewTesting(io.Discard), nil)
}

// attach registers a recording child connect.
func attach(d *Dispatcher) (*recordingSender, handle.ConnectHandle) {
	s := &recordingSender{}
	h := d.InsertConnect(s, handshake.Options{})
	return s, h
}

// testModules is a small FOM: object class Root with attribute X, and
// an interaction tree Base <- Mid <- Leaf with one parameter per
// level.
func testModules() []wire.FOMModule {
	return []wire.FOMModule{{
		ObjectClasses: []wire.ObjectClassDecl{
			{NamePath: "Root", Attributes: []string{"X"}},
		},
		InteractionClasses: []wire.InteractionClassDecl{
			{NamePath: "Base", Parameters: []string{"p0"}},
			{NamePath: "Base.Mid", ParentPath: "Base", Parameters: []string{"p1"}},
			{NamePath: "Base.Mid.Leaf", ParentPath: "Base.Mid", Parameters: []string{"p2"}},
		},
	}}
}

func createFederation(t *testing.T, d *Dispatcher, client *recordingSender, connect handle.ConnectHandle, name string) {
	t.Helper()
	require.NoError(t, d.Dispatch(connect, &wire.CreateFederationExecutionRequest{
		FederationName: name,
		Modules:        testModules(),
	}))
	resps := byKind[*wire.CreateFederationExecutionResponse](client.take())
	require.Len(t, resps, 1)
	require.Equal(t, wire.CreateSuccess, resps[0].Result)
}

func join(t *testing.T, d *Dispatcher, client *recordingSender, connect handle.ConnectHandle, federation, federate string) *wire.JoinFederationExecutionResponse {
	t.Helper()
	require.NoError(t, d.Dispatch(connect, &wire.JoinFederationExecutionRequest{
		FederationName: federation,
		FederateName:   federate,
		FederateType:   "test",
	}))
	resps := byKind[*wire.JoinFederationExecutionResponse](client.take())
	require.Len(t, resps, 1)
	return resps[0]
}

func TestCreateDestroyLifecycle(t *testing.T) {
	d := newTestDispatcher(t, "root")
	c1, h1 := attach(d)
	c2, h2 := attach(d)

	createFederation(t, d, c1, h1, "f")

	// Second create of the same name fails.
	require.NoError(t, d.Dispatch(h2, &wire.CreateFederationExecutionRequest{FederationName: "f"}))
	resps := byKind[*wire.CreateFederationExecutionResponse](c2.take())
	require.Len(t, resps, 1)
	assert.Equal(t, wire.CreateFederationExecutionAlreadyExists, resps[0].Result)

	// Destroy succeeds once.
	require.NoError(t, d.Dispatch(h1, &wire.DestroyFederationExecutionRequest{FederationName: "f"}))
	dresps := byKind[*wire.DestroyFederationExecutionResponse](c1.take())
	require.Len(t, dresps, 1)
	assert.Equal(t, wire.DestroySuccess, dresps[0].Result)

	// And reports DoesNotExist afterwards.
	require.NoError(t, d.Dispatch(h1, &wire.DestroyFederationExecutionRequest{FederationName: "f"}))
	dresps = byKind[*wire.DestroyFederationExecutionResponse](c1.take())
	require.Len(t, dresps, 1)
	assert.Equal(t, wire.DestroyFederationExecutionDoesNotExist, dresps[0].Result)
}

func TestDestroyWithJoinedFederates(t *testing.T) {
	d := newTestDispatcher(t, "root")
	c1, h1 := attach(d)

	createFederation(t, d, c1, h1, "f")
	resp := join(t, d, c1, h1, "f", "A")
	require.Equal(t, wire.JoinSuccess, resp.Result)

	require.NoError(t, d.Dispatch(h1, &wire.DestroyFederationExecutionRequest{FederationName: "f"}))
	dresps := byKind[*wire.DestroyFederationExecutionResponse](c1.take())
	require.Len(t, dresps, 1)
	assert.Equal(t, wire.DestroyFederatesCurrentlyJoined, dresps[0].Result)
}

func TestJoinResignTwice(t *testing.T) {
	d := newTestDispatcher(t, "root")
	cA, hA := attach(d)
	cB, hB := attach(d)

	createFederation(t, d, cA, hA, "f")

	respA := join(t, d, cA, hA, "f", "A")
	require.Equal(t, wire.JoinSuccess, respA.Result)

	respB := join(t, d, cB, hB, "f", "B")
	require.Equal(t, wire.JoinSuccess, respB.Result)
	assert.NotEqual(t, respA.FederateHandle, respB.FederateHandle)

	// A hears about B's join.
	notifies := byKind[*wire.JoinFederateNotify](cA.take())
	require.Len(t, notifies, 1)
	assert.Equal(t, respB.FederateHandle, notifies[0].FederateHandle)

	// Joining with A's name again fails.
	cDup, hDup := attach(d)
	respDup := join(t, d, cDup, hDup, "f", "A")
	assert.Equal(t, wire.JoinFederateNameAlreadyInUse, respDup.Result)

	// B resigns; A hears it.
	require.NoError(t, d.Dispatch(hB, &wire.ResignFederationExecutionRequest{
		FederationHandle: respB.FederationHandle,
		FederateHandle:   respB.FederateHandle,
	}))
	resigns := byKind[*wire.ResignFederateNotify](cA.take())
	require.Len(t, resigns, 1)
	assert.Equal(t, respB.FederateHandle, resigns[0].FederateHandle)

	// A resigns, then destroy succeeds.
	require.NoError(t, d.Dispatch(hA, &wire.ResignFederationExecutionRequest{
		FederationHandle: respA.FederationHandle,
		FederateHandle:   respA.FederateHandle,
	}))
	require.NoError(t, d.Dispatch(hA, &wire.DestroyFederationExecutionRequest{FederationName: "f"}))
	dresps := byKind[*wire.DestroyFederationExecutionResponse](cA.take())
	require.Len(t, dresps, 1)
	assert.Equal(t, wire.DestroySuccess, dresps[0].Result)
}

// setupPublishedInstance creates federation "f", joins A (publisher)
// and B, publishes Root.X from A's connect, subscribes from B's, and
// registers one instance owned by A.
func setupPublishedInstance(t *testing.T, d *Dispatcher) (
	fedHandle handle.FederationHandle,
	class handle.ObjectClassHandle, attrX handle.AttributeHandle,
	instance handle.ObjectInstanceHandle,
	cA *recordingSender, hA handle.ConnectHandle,
	cB *recordingSender, hB handle.ConnectHandle,
) {
	t.Helper()
	cA, hA = attach(d)
	cB, hB = attach(d)

	createFederation(t, d, cA, hA, "f")
	respA := join(t, d, cA, hA, "f", "A")
	respB := join(t, d, cB, hB, "f", "B")
	cA.take()
	fedHandle = respA.FederationHandle

	fed, ok := d.Node().Federation(fedHandle)
	require.True(t, ok)
	rootClass, ok := fed.Model.ObjectClassByName("Root")
	require.True(t, ok)
	class = rootClass.Handle
	xDef, ok := rootClass.AttributeByName("X")
	require.True(t, ok)
	attrX = xDef.Handle
	priv := rootClass.PrivilegeToDeleteHandle()

	// A publishes privilegeToDelete and X.
	require.NoError(t, d.Dispatch(hA, &wire.ChangeObjectClassPublication{
		FederationHandle:  fedHandle,
		ObjectClassHandle: class,
		AttributeHandles:  []handle.AttributeHandle{priv, attrX},
		PublicationType:   uint32(routing.Published),
	}))
	// B subscribes the same set.
	require.NoError(t, d.Dispatch(hB, &wire.ChangeObjectClassSubscription{
		FederationHandle:  fedHandle,
		ObjectClassHandle: class,
		AttributeHandles:  []handle.AttributeHandle{priv, attrX},
		SubscriptionType:  uint32(routing.Active),
	}))
	cA.take()
	cB.take()

	// A asks for a handle and registers the instance.
	require.NoError(t, d.Dispatch(hA, &wire.ObjectInstanceHandlesRequest{
		FederationHandle: fedHandle,
		FederateHandle:   respA.FederateHandle,
		Count:            1,
	}))
	handles := byKind[*wire.ObjectInstanceHandlesResponse](cA.take())
	require.Len(t, handles, 1)
	require.Len(t, handles[0].Pairs, 1)
	instance = handles[0].Pairs[0].Handle

	require.NoError(t, d.Dispatch(hA, &wire.InsertObjectInstance{
		FederationHandle:     fedHandle,
		ObjectInstanceHandle: instance,
		ObjectClassHandle:    class,
		Name:                 "obj-1",
		AttributeStates: []wire.AttributeState{
			{AttributeHandle: priv},
			{AttributeHandle: attrX},
		},
	}))

	// B, as subscriber, saw the insert.
	inserts := byKind[*wire.InsertObjectInstance](cB.take())
	require.Len(t, inserts, 1)
	require.Equal(t, instance, inserts[0].ObjectInstanceHandle)
	_ = respB
	return
}

func TestAttributeUpdateFanout(t *testing.T) {
	d := newTestDispatcher(t, "root")
	fedHandle, _, attrX, instance, cA, hA, cB, _ := setupPublishedInstance(t, d)

	require.NoError(t, d.Dispatch(hA, &wire.AttributeUpdate{
		FederationHandle:     fedHandle,
		ObjectInstanceHandle: instance,
		AttributeValues: []wire.AttributeValue{
			{AttributeHandle: attrX, Value: []byte{0x01}},
		},
	}))

	// B receives exactly one update carrying X=0x01; A receives
	// nothing.
	updates := byKind[*wire.AttributeUpdate](cB.take())
	require.Len(t, updates, 1)
	require.Len(t, updates[0].AttributeValues, 1)
	assert.Equal(t, attrX, updates[0].AttributeValues[0].AttributeHandle)
	assert.Equal(t, []byte{0x01}, updates[0].AttributeValues[0].Value)
	assert.Empty(t, byKind[*wire.AttributeUpdate](cA.take()))
}

func TestDeleteObjectInstanceFanout(t *testing.T) {
	d := newTestDispatcher(t, "root")
	fedHandle, _, _, instance, _, hA, cB, _ := setupPublishedInstance(t, d)

	require.NoError(t, d.Dispatch(hA, &wire.DeleteObjectInstance{
		FederationHandle:     fedHandle,
		ObjectInstanceHandle: instance,
	}))
	deletes := byKind[*wire.DeleteObjectInstance](cB.take())
	require.Len(t, deletes, 1)
	assert.Equal(t, instance, deletes[0].ObjectInstanceHandle)
}

func TestInteractionNarrowing(t *testing.T) {
	d := newTestDispatcher(t, "root")
	c1, h1 := attach(d)
	c2, h2 := attach(d)

	createFederation(t, d, c1, h1, "f")
	resp1 := join(t, d, c1, h1, "f", "F1")
	resp2 := join(t, d, c2, h2, "f", "F2")
	c1.take()

	fed, ok := d.Node().Federation(resp1.FederationHandle)
	require.True(t, ok)
	base, _ := fed.Model.InteractionClassByName("Base")
	mid, _ := fed.Model.InteractionClassByName("Base.Mid")
	leaf, _ := fed.Model.InteractionClassByName("Base.Mid.Leaf")

	p0, ok := base.ParameterByName("p0")
	require.True(t, ok)
	p2, ok := leaf.ParameterByName("p2")
	require.True(t, ok)

	// F1 subscribes Mid; F2 sends an interaction of class Leaf.
	require.NoError(t, d.Dispatch(h1, &wire.ChangeInteractionClassSubscription{
		FederationHandle:       resp1.FederationHandle,
		InteractionClassHandle: mid.Handle,
		SubscriptionType:       uint32(routing.Active),
	}))
	require.NoError(t, d.Dispatch(h2, &wire.Interaction{
		FederationHandle:       resp2.FederationHandle,
		InteractionClassHandle: leaf.Handle,
		ParameterValues: []wire.ParameterValue{
			{ParameterHandle: p0.Handle, Value: []byte("v0")},
			{ParameterHandle: p2.Handle, Value: []byte("v2")},
		},
	}))

	// F1 sees an interaction narrowed to class Mid, with Leaf's own
	// parameter stripped.
	got := byKind[*wire.Interaction](c1.take())
	require.Len(t, got, 1)
	assert.Equal(t, mid.Handle, got[0].InteractionClassHandle)
	require.Len(t, got[0].ParameterValues, 1)
	assert.Equal(t, p0.Handle, got[0].ParameterValues[0].ParameterHandle)

	// A subscriber at the exact class gets the message verbatim.
	require.NoError(t, d.Dispatch(h1, &wire.ChangeInteractionClassSubscription{
		FederationHandle:       resp1.FederationHandle,
		InteractionClassHandle: leaf.Handle,
		SubscriptionType:       uint32(routing.Active),
	}))
	require.NoError(t, d.Dispatch(h2, &wire.Interaction{
		FederationHandle:       resp2.FederationHandle,
		InteractionClassHandle: leaf.Handle,
		ParameterValues: []wire.ParameterValue{
			{ParameterHandle: p2.Handle, Value: []byte("v2")},
		},
	}))
	got = byKind[*wire.Interaction](c1.take())
	require.Len(t, got, 1)
	assert.Equal(t, leaf.Handle, got[0].InteractionClassHandle)
}

func TestSynchronizationPoint(t *testing.T) {
	d := newTestDispatcher(t, "root")
	c1, h1 := attach(d)
	c2, h2 := attach(d)
	c3, h3 := attach(d)

	createFederation(t, d, c1, h1, "f")
	r1 := join(t, d, c1, h1, "f", "F1")
	r2 := join(t, d, c2, h2, "f", "F2")
	r3 := join(t, d, c3, h3, "f", "F3")
	c1.take()
	c2.take()
	c3.take()
	fedHandle := r1.FederationHandle

	// F1 registers an auto-extending point.
	require.NoError(t, d.Dispatch(h1, &wire.RegisterFederationSynchronizationPointRequest{
		FederationHandle: fedHandle,
		FederateHandle:   r1.FederateHandle,
		Label:            "SP",
		Tag:              "tag",
	}))
	msgs := c1.take()
	regs := byKind[*wire.RegisterFederationSynchronizationPointResponse](msgs)
	require.Len(t, regs, 1)
	assert.Equal(t, wire.RegisterSyncPointSuccess, regs[0].Result)
	require.Len(t, byKind[*wire.AnnounceSynchronizationPoint](msgs), 1)
	require.Len(t, byKind[*wire.AnnounceSynchronizationPoint](c2.take()), 1)
	require.Len(t, byKind[*wire.AnnounceSynchronizationPoint](c3.take()), 1)

	// Duplicate label is rejected.
	require.NoError(t, d.Dispatch(h2, &wire.RegisterFederationSynchronizationPointRequest{
		FederationHandle: fedHandle,
		FederateHandle:   r2.FederateHandle,
		Label:            "SP",
	}))
	regs = byKind[*wire.RegisterFederationSynchronizationPointResponse](c2.take())
	require.Len(t, regs, 1)
	assert.Equal(t, wire.RegisterSyncPointLabelNotUnique, regs[0].Result)

	// F4 joins late and still receives the announce, which travels in
	// the same burst as the join response.
	c4, h4 := attach(d)
	require.NoError(t, d.Dispatch(h4, &wire.JoinFederationExecutionRequest{
		FederationName: "f",
		FederateName:   "F4",
	}))
	joinBurst := c4.take()
	r4s := byKind[*wire.JoinFederationExecutionResponse](joinBurst)
	require.Len(t, r4s, 1)
	r4 := r4s[0]
	announces := byKind[*wire.AnnounceSynchronizationPoint](joinBurst)
	require.Len(t, announces, 1)
	assert.Equal(t, []handle.FederateHandle{r4.FederateHandle}, announces[0].FederateHandles)
	c1.take()
	c2.take()
	c3.take()

	// F1..F3 achieve; F4 resigns and its achievement is synthesized
	// unsuccessfully.
	for i, pair := range []struct {
		h handle.ConnectHandle
		f handle.FederateHandle
	}{{h1, r1.FederateHandle}, {h2, r2.FederateHandle}, {h3, r3.FederateHandle}} {
		require.NoError(t, d.Dispatch(pair.h, &wire.SynchronizationPointAchieved{
			FederationHandle: fedHandle,
			Label:            "SP",
			Achieved:         []wire.FederateAchievedPair{{FederateHandle: pair.f, Successful: true}},
		}), "achieve %d", i)
	}
	require.NoError(t, d.Dispatch(h4, &wire.ResignFederationExecutionRequest{
		FederationHandle: fedHandle,
		FederateHandle:   r4.FederateHandle,
	}))

	// Completion: the remaining three connects hear
	// FederationSynchronized.
	for _, c := range []*recordingSender{c1, c2, c3} {
		done := byKind[*wire.FederationSynchronized](c.take())
		require.Len(t, done, 1)
		assert.Equal(t, "SP", done[0].Label)
	}
}

func TestTimeRegulation(t *testing.T) {
	d := newTestDispatcher(t, "root")
	c1, h1 := attach(d)
	c2, h2 := attach(d)

	createFederation(t, d, c1, h1, "f")
	r1 := join(t, d, c1, h1, "f", "F1")
	r2 := join(t, d, c2, h2, "f", "F2")
	c1.take()
	c2.take()
	fedHandle := r1.FederationHandle

	// F1 enables regulation at t=10; F2 sees the notification.
	require.NoError(t, d.Dispatch(h1, &wire.EnableTimeRegulationRequest{
		FederationHandle: fedHandle,
		FederateHandle:   r1.FederateHandle,
		TimeStamp:        10,
	}))
	enables := byKind[*wire.EnableTimeRegulationRequest](c2.take())
	require.Len(t, enables, 1)
	assert.Equal(t, uint64(10), enables[0].TimeStamp)
	// The request loops back to the requestor as well.
	require.Len(t, byKind[*wire.EnableTimeRegulationRequest](c1.take()), 1)

	// F1 commits LBTS to t=20; F2 receives the commit.
	require.NoError(t, d.Dispatch(h1, &wire.CommitLowerBoundTimeStamp{
		FederationHandle: fedHandle,
		FederateHandle:   r1.FederateHandle,
		TimeStamp:        20,
		CommitType:       2, // advance and next-message
		CommitID:         1,
	}))
	commits := byKind[*wire.CommitLowerBoundTimeStamp](c2.take())
	require.Len(t, commits, 1)
	assert.Equal(t, uint64(20), commits[0].TimeStamp)

	fed, _ := d.Node().Federation(fedHandle)
	galt, ok := fed.GALT()
	require.True(t, ok)
	assert.Equal(t, uint64(20), galt)

	// F1 resigns; F2 hears DisableTimeRegulationRequest for it.
	require.NoError(t, d.Dispatch(h1, &wire.ResignFederationExecutionRequest{
		FederationHandle: fedHandle,
		FederateHandle:   r1.FederateHandle,
	}))
	disables := byKind[*wire.DisableTimeRegulationRequest](c2.take())
	require.Len(t, disables, 1)
	assert.Equal(t, r1.FederateHandle, disables[0].FederateHandle)
	_ = r2
}

func TestUnauthorizedTimeRegulationIsFatal(t *testing.T) {
	d := newTestDispatcher(t, "root")
	d.Node().PermitTimeRegulation = false
	c1, h1 := attach(d)

	createFederation(t, d, c1, h1, "f")
	r1 := join(t, d, c1, h1, "f", "F1")
	c1.take()

	err := d.Dispatch(h1, &wire.EnableTimeRegulationRequest{
		FederationHandle: r1.FederationHandle,
		FederateHandle:   r1.FederateHandle,
		TimeStamp:        10,
	})
	assert.Error(t, err)
}

func TestReservedNameRejected(t *testing.T) {
	d := newTestDispatcher(t, "root")
	c1, h1 := attach(d)

	createFederation(t, d, c1, h1, "f")
	r1 := join(t, d, c1, h1, "f", "F1")
	c1.take()

	err := d.Dispatch(h1, &wire.ReserveObjectInstanceNameRequest{
		FederationHandle: r1.FederationHandle,
		FederateHandle:   r1.FederateHandle,
		Name:             "HLAobject",
	})
	assert.Error(t, err)

	// A regular name reserves fine and the second reservation fails.
	require.NoError(t, d.Dispatch(h1, &wire.ReserveObjectInstanceNameRequest{
		FederationHandle: r1.FederationHandle,
		FederateHandle:   r1.FederateHandle,
		Name:             "obj",
	}))
	resps := byKind[*wire.ReserveObjectInstanceNameResponse](c1.take())
	require.Len(t, resps, 1)
	assert.True(t, resps[0].Success)

	require.NoError(t, d.Dispatch(h1, &wire.ReserveObjectInstanceNameRequest{
		FederationHandle: r1.FederationHandle,
		FederateHandle:   r1.FederateHandle,
		Name:             "obj",
	}))
	resps = byKind[*wire.ReserveObjectInstanceNameResponse](c1.take())
	require.Len(t, resps, 1)
	assert.False(t, resps[0].Success)
}

func TestJoinUnknownFederation(t *testing.T) {
	d := newTestDispatcher(t, "root")
	c1, h1 := attach(d)
	resp := join(t, d, c1, h1, "missing", "A")
	assert.Equal(t, wire.JoinFederationExecutionDoesNotExist, resp.Result)
}

func TestDispatchWithTracerSet(t *testing.T) {
	d := newTestDispatcher(t, "root")
	d.SetTracer(noop.NewTracerProvider().Tracer("test"))
	c1, h1 := attach(d)

	createFederation(t, d, c1, h1, "f")
	resp := join(t, d, c1, h1, "f", "A")
	require.Equal(t, wire.JoinSuccess, resp.Result)

	// A failing dispatch still records on the span path without
	// disturbing the error contract.
	err := d.Dispatch(h1, &wire.EraseRegion{
		FederationHandle: resp.FederationHandle,
		Regions:          []handle.RegionHandle{99},
	})
	assert.Error(t, err)
}
