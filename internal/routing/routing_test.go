package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrti/rtinode/internal/handle"
)

const (
	connA = handle.ConnectHandle(1)
	connB = handle.ConnectHandle(2)
	connC = handle.ConnectHandle(3)
)

func TestInteractionPublicationPropagation(t *testing.T) {
	tbl := NewTable()
	class := handle.InteractionClassHandle(0)
	tbl.AddInteractionClass(class, 0, false)

	// First publisher: everyone else's aggregate view changes.
	d := tbl.SetInteractionPublication(class, connA, Published)
	assert.Equal(t, PropagationBroadcast, d.Kind)

	// Second publisher: only the first one's view of "someone else
	// publishes" changes.
	d = tbl.SetInteractionPublication(class, connB, Published)
	require.Equal(t, PropagationSend, d.Kind)
	assert.Equal(t, connA, d.Target)

	// Third: nobody's aggregate view changes.
	d = tbl.SetInteractionPublication(class, connC, Published)
	assert.Equal(t, PropagationNone, d.Kind)

	// Repeat is idempotent.
	d = tbl.SetInteractionPublication(class, connC, Published)
	assert.Equal(t, PropagationNone, d.Kind)

	// Removal mirrors insertion.
	d = tbl.SetInteractionPublication(class, connC, Unpublished)
	assert.Equal(t, PropagationNone, d.Kind)
	d = tbl.SetInteractionPublication(class, connB, Unpublished)
	require.Equal(t, PropagationSend, d.Kind)
	assert.Equal(t, connA, d.Target)
	d = tbl.SetInteractionPublication(class, connA, Unpublished)
	assert.Equal(t, PropagationBroadcast, d.Kind)
}

func TestCumulativeInteractionSubscription(t *testing.T) {
	tbl := NewTable()
	root := handle.InteractionClassHandle(0)
	mid := handle.InteractionClassHandle(1)
	leaf := handle.InteractionClassHandle(2)
	tbl.AddInteractionClass(root, 0, false)
	tbl.AddInteractionClass(mid, root, true)
	tbl.AddInteractionClass(leaf, mid, true)

	tbl.SetInteractionSubscription(root, connA, Active)
	tbl.SetInteractionSubscription(mid, connB, Passive)

	// A subscription flows into every class below it: an interaction
	// of the leaf class must reach both the mid and the root
	// subscriber.
	assert.ElementsMatch(t, []handle.ConnectHandle{connA}, tbl.CumulativeInteractionSubscribers(root))
	assert.ElementsMatch(t, []handle.ConnectHandle{connA, connB}, tbl.CumulativeInteractionSubscribers(mid))
	assert.ElementsMatch(t, []handle.ConnectHandle{connA, connB}, tbl.CumulativeInteractionSubscribers(leaf))

	// Recompute is idempotent: setting the same state again changes
	// nothing.
	tbl.SetInteractionSubscription(root, connA, Active)
	assert.ElementsMatch(t, []handle.ConnectHandle{connA, connB}, tbl.CumulativeInteractionSubscribers(leaf))

	tbl.SetInteractionSubscription(root, connA, Unsubscribed)
	assert.ElementsMatch(t, []handle.ConnectHandle{connB}, tbl.CumulativeInteractionSubscribers(leaf))
	assert.Empty(t, tbl.CumulativeInteractionSubscribers(root))
}

func TestAttributeSubscriptionTurnOn(t *testing.T) {
	tbl := NewTable()
	class := handle.ObjectClassHandle(0)
	attr := handle.AttributeHandle(1)
	tbl.AddObjectClass(class, 0, false, []handle.AttributeHandle{0, attr})

	d, turnedOn := tbl.SetAttributeSubscription(class, attr, connA, Active)
	assert.True(t, turnedOn)
	assert.Equal(t, PropagationBroadcast, d.Kind)

	// Active→Passive keeps the subscription on, so it is not a turn-on.
	_, turnedOn = tbl.SetAttributeSubscription(class, attr, connA, Passive)
	assert.False(t, turnedOn)

	_, turnedOn = tbl.SetAttributeSubscription(class, attr, connA, Unsubscribed)
	assert.False(t, turnedOn)
	d, turnedOn = tbl.SetAttributeSubscription(class, attr, connA, Passive)
	assert.True(t, turnedOn)
	assert.Equal(t, PropagationBroadcast, d.Kind)
}

func TestAttributeCumulativeAcrossSubclasses(t *testing.T) {
	tbl := NewTable()
	base := handle.ObjectClassHandle(0)
	derived := handle.ObjectClassHandle(1)
	attr := handle.AttributeHandle(0)
	tbl.AddObjectClass(base, 0, false, []handle.AttributeHandle{attr})
	tbl.AddObjectClass(derived, base, true, []handle.AttributeHandle{attr})

	// connB subscribes at the base class and must be in the receiving
	// set of derived-class instances.
	tbl.SetAttributeSubscription(base, attr, connB, Active)

	assert.True(t, tbl.IsCumulativeAttributeSubscriber(derived, attr, connB))
	assert.ElementsMatch(t, []handle.ConnectHandle{connB}, tbl.CumulativeAttributeSubscribers(derived, attr))
	assert.ElementsMatch(t, []handle.ConnectHandle{connB}, tbl.CumulativeAttributeSubscribers(base, attr))

	// A derived-class subscription stays invisible at the base class.
	tbl.SetAttributeSubscription(derived, attr, connA, Active)
	assert.False(t, tbl.IsCumulativeAttributeSubscriber(base, attr, connA))
	assert.True(t, tbl.IsCumulativeAttributeSubscriber(derived, attr, connA))

	cls, ok := tbl.HasAnySubscribedClassAbove(derived, attr, connA)
	require.True(t, ok)
	assert.Equal(t, derived, cls)

	// connB subscribes only at the base class; from the derived class
	// the walk lands on base.
	cls, ok = tbl.HasAnySubscribedClassAbove(derived, attr, connB)
	require.True(t, ok)
	assert.Equal(t, base, cls)
}

func TestDropConnect(t *testing.T) {
	tbl := NewTable()
	ic := handle.InteractionClassHandle(0)
	oc := handle.ObjectClassHandle(0)
	attr := handle.AttributeHandle(0)
	tbl.AddInteractionClass(ic, 0, false)
	tbl.AddObjectClass(oc, 0, false, []handle.AttributeHandle{attr})

	tbl.SetInteractionPublication(ic, connA, Published)
	tbl.SetInteractionSubscription(ic, connA, Active)
	tbl.SetAttributePublication(oc, attr, connA, Published)
	tbl.SetAttributeSubscription(oc, attr, connA, Active)

	tbl.DropConnect(connA)

	assert.Empty(t, tbl.InteractionPublishingConnects(ic))
	assert.Empty(t, tbl.CumulativeInteractionSubscribers(ic))
	assert.Empty(t, tbl.AttributePublishingConnects(oc, attr))
	assert.Empty(t, tbl.CumulativeAttributeSubscribers(oc, attr))
	assert.Empty(t, tbl.PublishedAttributes(connA))
	assert.Empty(t, tbl.SubscribedInteractionClasses(connA))
}

func TestDecisionMerge(t *testing.T) {
	send1 := Decision{Kind: PropagationSend, Target: connA}
	send2 := Decision{Kind: PropagationSend, Target: connB}
	none := Decision{}
	bcast := Decision{Kind: PropagationBroadcast}

	assert.Equal(t, send1, none.merge(send1))
	assert.Equal(t, send1, send1.merge(none))
	assert.Equal(t, bcast, send1.merge(send2))
	assert.Equal(t, send1, send1.merge(send1))
	assert.Equal(t, bcast, send1.merge(bcast))
}
