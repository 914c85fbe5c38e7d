package routing

import "github.com/openrti/rtinode/internal/handle"

// interactionState is one InteractionClass's routing entry: per-connect
// publication and subscription plus the cumulative subscriber set
// unioned over this class and all its subclasses.
type interactionState struct {
	handle    handle.InteractionClassHandle
	parent    handle.InteractionClassHandle
	hasParent bool
	children  map[handle.InteractionClassHandle]struct{}

	publishing    broadcastSet
	subscriptions map[handle.ConnectHandle]SubscriptionType
	subscribed    broadcastSet // Passive or Active
	active        broadcastSet // Active only

	cumulativeSubscribed map[handle.ConnectHandle]struct{}
}

func newInteractionState(h handle.InteractionClassHandle, parent handle.InteractionClassHandle, hasParent bool) *interactionState {
	return &interactionState{
		handle:               h,
		parent:               parent,
		hasParent:            hasParent,
		children:             make(map[handle.InteractionClassHandle]struct{}),
		publishing:           newBroadcastSet(),
		subscriptions:        make(map[handle.ConnectHandle]SubscriptionType),
		subscribed:           newBroadcastSet(),
		active:               newBroadcastSet(),
		cumulativeSubscribed: make(map[handle.ConnectHandle]struct{}),
	}
}

// AddInteractionClass registers a class in the routing table. Parent
// must already be registered when hasParent is true.
func (t *Table) AddInteractionClass(h, parent handle.InteractionClassHandle, hasParent bool) {
	if _, ok := t.interactions[h]; ok {
		return
	}
	s := newInteractionState(h, parent, hasParent)
	t.interactions[h] = s
	if hasParent {
		if p, ok := t.interactions[parent]; ok {
			p.children[h] = struct{}{}
		}
	}
	// A class joining under an already-subscribed ancestor inherits
	// its cumulative view immediately.
	t.recomputeInteractionCumulative(h)
}

// RemoveInteractionClass drops a class's routing state, e.g. when its
// last referring module is erased. Cumulative sets flow from ancestors
// into descendants, so removing a leaf changes nobody else's.
func (t *Table) RemoveInteractionClass(h handle.InteractionClassHandle) {
	s, ok := t.interactions[h]
	if !ok {
		return
	}
	if s.hasParent {
		if p, ok := t.interactions[s.parent]; ok {
			delete(p.children, h)
		}
	}
	delete(t.interactions, h)
}

// SetInteractionPublication records connect's publication state for
// class and reports how the change propagates to the other connects.
func (t *Table) SetInteractionPublication(class handle.InteractionClassHandle, connect handle.ConnectHandle, pub PublicationType) Decision {
	s, ok := t.interactions[class]
	if !ok {
		return Decision{}
	}
	if pub == Published {
		return s.publishing.insert(connect)
	}
	return s.publishing.erase(connect)
}

// InteractionPublication reports connect's publication state for class.
func (t *Table) InteractionPublication(class handle.InteractionClassHandle, connect handle.ConnectHandle) PublicationType {
	s, ok := t.interactions[class]
	if !ok || !s.publishing.contains(connect) {
		return Unpublished
	}
	return Published
}

// SetInteractionSubscription records connect's subscription state for
// class, refreshes the cumulative subscriber sets of class and its
// subclasses, and reports how the change propagates.
func (t *Table) SetInteractionSubscription(class handle.InteractionClassHandle, connect handle.ConnectHandle, sub SubscriptionType) Decision {
	s, ok := t.interactions[class]
	if !ok {
		return Decision{}
	}

	var combined, activeOnly Decision
	if sub.IsSubscribed() {
		combined = s.subscribed.insert(connect)
		if sub == Active {
			activeOnly = s.active.insert(connect)
		} else {
			activeOnly = s.active.erase(connect)
		}
		s.subscriptions[connect] = sub
	} else {
		combined = s.subscribed.erase(connect)
		activeOnly = s.active.erase(connect)
		delete(s.subscriptions, connect)
	}

	t.recomputeInteractionCumulative(class)
	return combined.merge(activeOnly)
}

// InteractionSubscription reports connect's direct subscription state
// for class.
func (t *Table) InteractionSubscription(class handle.InteractionClassHandle, connect handle.ConnectHandle) SubscriptionType {
	s, ok := t.interactions[class]
	if !ok {
		return Unsubscribed
	}
	return s.subscriptions[connect]
}

// InteractionPublishingConnects returns the connects currently
// publishing class.
func (t *Table) InteractionPublishingConnects(class handle.InteractionClassHandle) []handle.ConnectHandle {
	s, ok := t.interactions[class]
	if !ok {
		return nil
	}
	out := make([]handle.ConnectHandle, 0, s.publishing.size())
	for c := range s.publishing.connects {
		out = append(out, c)
	}
	return out
}

// CumulativeInteractionSubscribers returns the fanout set for an
// incoming interaction of class: every connect subscribed at the class
// itself or at any ancestor, since a superclass subscriber receives
// subclass interactions narrowed to its own level.
func (t *Table) CumulativeInteractionSubscribers(class handle.InteractionClassHandle) []handle.ConnectHandle {
	s, ok := t.interactions[class]
	if !ok {
		return nil
	}
	out := make([]handle.ConnectHandle, 0, len(s.cumulativeSubscribed))
	for c := range s.cumulativeSubscribed {
		out = append(out, c)
	}
	return out
}

// recomputeInteractionCumulative rebuilds the cumulative subscriber
// sets of class and its whole subtree: each level is its direct
// subscribers plus everything inherited from above, pushed down in one
// sweep.
func (t *Table) recomputeInteractionCumulative(class handle.InteractionClassHandle) {
	s, ok := t.interactions[class]
	if !ok {
		return
	}
	inherited := map[handle.ConnectHandle]struct{}{}
	if s.hasParent {
		if p, pok := t.interactions[s.parent]; pok {
			inherited = p.cumulativeSubscribed
		}
	}
	t.pushDownInteractionCumulative(s, inherited)
}

func (t *Table) pushDownInteractionCumulative(s *interactionState, inherited map[handle.ConnectHandle]struct{}) {
	cum := make(map[handle.ConnectHandle]struct{}, len(s.subscriptions)+len(inherited))
	for c := range inherited {
		cum[c] = struct{}{}
	}
	for c := range s.subscriptions {
		cum[c] = struct{}{}
	}
	s.cumulativeSubscribed = cum
	for child := range s.children {
		if cs, ok := t.interactions[child]; ok {
			t.pushDownInteractionCumulative(cs, cum)
		}
	}
}

// PublishedInteractionClasses returns every class connect currently
// publishes, for synthesizing unpublish traffic at connect teardown.
func (t *Table) PublishedInteractionClasses(connect handle.ConnectHandle) []handle.InteractionClassHandle {
	var out []handle.InteractionClassHandle
	for h, s := range t.interactions {
		if s.publishing.contains(connect) {
			out = append(out, h)
		}
	}
	return out
}

// SubscribedInteractionClasses returns every class connect currently
// subscribes to.
func (t *Table) SubscribedInteractionClasses(connect handle.ConnectHandle) []handle.InteractionClassHandle {
	var out []handle.InteractionClassHandle
	for h, s := range t.interactions {
		if s.subscriptions[connect].IsSubscribed() {
			out = append(out, h)
		}
	}
	return out
}
