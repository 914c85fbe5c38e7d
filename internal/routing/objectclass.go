package routing

import "github.com/openrti/rtinode/internal/handle"

// attributeState is the routing entry for one attribute at one class
// level. Inherited attributes keep their AttributeHandle down the
// whole subclass chain, but each class level has its own entry so each
// level can carry its own subscriber view and its own place in the
// propagation tree.
type attributeState struct {
	publishing    broadcastSet
	subscriptions map[handle.ConnectHandle]SubscriptionType
	subscribed    broadcastSet
	active        broadcastSet

	cumulativeSubscribed map[handle.ConnectHandle]struct{}
}

func newAttributeState() *attributeState {
	return &attributeState{
		publishing:           newBroadcastSet(),
		subscriptions:        make(map[handle.ConnectHandle]SubscriptionType),
		subscribed:           newBroadcastSet(),
		active:               newBroadcastSet(),
		cumulativeSubscribed: make(map[handle.ConnectHandle]struct{}),
	}
}

type objectClassState struct {
	handle    handle.ObjectClassHandle
	parent    handle.ObjectClassHandle
	hasParent bool
	children  map[handle.ObjectClassHandle]struct{}

	attributes map[handle.AttributeHandle]*attributeState
}

// AddObjectClass registers a class and its full attribute list
// (inherited attributes included). Parent must already be registered
// when hasParent is true.
func (t *Table) AddObjectClass(h, parent handle.ObjectClassHandle, hasParent bool, attrs []handle.AttributeHandle) {
	if _, ok := t.objectClasses[h]; ok {
		return
	}
	s := &objectClassState{
		handle:     h,
		parent:     parent,
		hasParent:  hasParent,
		children:   make(map[handle.ObjectClassHandle]struct{}),
		attributes: make(map[handle.AttributeHandle]*attributeState, len(attrs)),
	}
	for _, a := range attrs {
		s.attributes[a] = newAttributeState()
	}
	t.objectClasses[h] = s
	if hasParent {
		if p, ok := t.objectClasses[parent]; ok {
			p.children[h] = struct{}{}
		}
	}
	for _, a := range attrs {
		t.recomputeAttributeCumulative(h, a)
	}
}

// RemoveObjectClass drops a class's routing state. Cumulative sets
// flow from ancestors into descendants, so nothing above needs a
// recompute.
func (t *Table) RemoveObjectClass(h handle.ObjectClassHandle) {
	s, ok := t.objectClasses[h]
	if !ok {
		return
	}
	if s.hasParent {
		if p, ok := t.objectClasses[s.parent]; ok {
			delete(p.children, h)
		}
	}
	delete(t.objectClasses, h)
}

func (t *Table) attributeState(class handle.ObjectClassHandle, attr handle.AttributeHandle) (*attributeState, bool) {
	s, ok := t.objectClasses[class]
	if !ok {
		return nil, false
	}
	a, ok := s.attributes[attr]
	return a, ok
}

// SetAttributePublication records connect's publication state for one
// attribute at one class level and reports how the change propagates.
func (t *Table) SetAttributePublication(class handle.ObjectClassHandle, attr handle.AttributeHandle, connect handle.ConnectHandle, pub PublicationType) Decision {
	a, ok := t.attributeState(class, attr)
	if !ok {
		return Decision{}
	}
	if pub == Published {
		return a.publishing.insert(connect)
	}
	return a.publishing.erase(connect)
}

// AttributePublication reports connect's publication state for attr at
// class.
func (t *Table) AttributePublication(class handle.ObjectClassHandle, attr handle.AttributeHandle, connect handle.ConnectHandle) PublicationType {
	a, ok := t.attributeState(class, attr)
	if !ok || !a.publishing.contains(connect) {
		return Unpublished
	}
	return Published
}

// SetAttributeSubscription records connect's subscription state for
// one attribute, refreshes the cumulative subscriber sets of class and
// its subclasses, and reports the propagation decision plus whether this turned
// the subscription on at this level (the trigger for catching the
// connect up with InsertObjectInstance traffic).
func (t *Table) SetAttributeSubscription(class handle.ObjectClassHandle, attr handle.AttributeHandle, connect handle.ConnectHandle, sub SubscriptionType) (Decision, bool) {
	a, ok := t.attributeState(class, attr)
	if !ok {
		return Decision{}, false
	}

	wasSubscribed := a.subscriptions[connect].IsSubscribed()

	var combined, activeOnly Decision
	if sub.IsSubscribed() {
		combined = a.subscribed.insert(connect)
		if sub == Active {
			activeOnly = a.active.insert(connect)
		} else {
			activeOnly = a.active.erase(connect)
		}
		a.subscriptions[connect] = sub
	} else {
		combined = a.subscribed.erase(connect)
		activeOnly = a.active.erase(connect)
		delete(a.subscriptions, connect)
	}

	t.recomputeAttributeCumulative(class, attr)
	return combined.merge(activeOnly), !wasSubscribed && sub.IsSubscribed()
}

// AttributeSubscription reports connect's direct subscription state.
func (t *Table) AttributeSubscription(class handle.ObjectClassHandle, attr handle.AttributeHandle, connect handle.ConnectHandle) SubscriptionType {
	a, ok := t.attributeState(class, attr)
	if !ok {
		return Unsubscribed
	}
	return a.subscriptions[connect]
}

// AttributePublishingConnects returns the connects publishing attr at
// class.
func (t *Table) AttributePublishingConnects(class handle.ObjectClassHandle, attr handle.AttributeHandle) []handle.ConnectHandle {
	a, ok := t.attributeState(class, attr)
	if !ok {
		return nil
	}
	out := make([]handle.ConnectHandle, 0, a.publishing.size())
	for c := range a.publishing.connects {
		out = append(out, c)
	}
	return out
}

// CumulativeAttributeSubscribers returns the receiving set for an
// instance of class: every connect subscribed to attr at the class
// itself or at any ancestor, since a superclass subscriber discovers
// subclass instances at its own level.
func (t *Table) CumulativeAttributeSubscribers(class handle.ObjectClassHandle, attr handle.AttributeHandle) []handle.ConnectHandle {
	a, ok := t.attributeState(class, attr)
	if !ok {
		return nil
	}
	out := make([]handle.ConnectHandle, 0, len(a.cumulativeSubscribed))
	for c := range a.cumulativeSubscribed {
		out = append(out, c)
	}
	return out
}

// IsCumulativeAttributeSubscriber reports whether connect appears in
// attr's cumulative subscriber set at class.
func (t *Table) IsCumulativeAttributeSubscriber(class handle.ObjectClassHandle, attr handle.AttributeHandle, connect handle.ConnectHandle) bool {
	a, ok := t.attributeState(class, attr)
	if !ok {
		return false
	}
	_, ok = a.cumulativeSubscribed[connect]
	return ok
}

// recomputeAttributeCumulative rebuilds attr's cumulative subscriber
// sets for class and its whole subtree, pushing the inherited view
// down from the parent.
func (t *Table) recomputeAttributeCumulative(class handle.ObjectClassHandle, attr handle.AttributeHandle) {
	s, ok := t.objectClasses[class]
	if !ok {
		return
	}
	inherited := map[handle.ConnectHandle]struct{}{}
	if s.hasParent {
		if p, pok := t.objectClasses[s.parent]; pok {
			if pa, aok := p.attributes[attr]; aok {
				inherited = pa.cumulativeSubscribed
			}
		}
	}
	t.pushDownAttributeCumulative(s, attr, inherited)
}

func (t *Table) pushDownAttributeCumulative(s *objectClassState, attr handle.AttributeHandle, inherited map[handle.ConnectHandle]struct{}) {
	a, ok := s.attributes[attr]
	if !ok {
		return
	}
	cum := make(map[handle.ConnectHandle]struct{}, len(a.subscriptions)+len(inherited))
	for c := range inherited {
		cum[c] = struct{}{}
	}
	for c := range a.subscriptions {
		cum[c] = struct{}{}
	}
	a.cumulativeSubscribed = cum
	for child := range s.children {
		if cs, ok := t.objectClasses[child]; ok {
			t.pushDownAttributeCumulative(cs, attr, cum)
		}
	}
}

// PublishedAttributes returns, per class, the attributes connect
// currently publishes, for synthesizing unpublish traffic at connect
// teardown.
func (t *Table) PublishedAttributes(connect handle.ConnectHandle) map[handle.ObjectClassHandle][]handle.AttributeHandle {
	out := make(map[handle.ObjectClassHandle][]handle.AttributeHandle)
	for h, s := range t.objectClasses {
		for attr, a := range s.attributes {
			if a.publishing.contains(connect) {
				out[h] = append(out[h], attr)
			}
		}
	}
	return out
}

// SubscribedAttributes returns, per class, the attributes connect
// currently subscribes to.
func (t *Table) SubscribedAttributes(connect handle.ConnectHandle) map[handle.ObjectClassHandle][]handle.AttributeHandle {
	out := make(map[handle.ObjectClassHandle][]handle.AttributeHandle)
	for h, s := range t.objectClasses {
		for attr, a := range s.attributes {
			if a.subscriptions[connect].IsSubscribed() {
				out[h] = append(out[h], attr)
			}
		}
	}
	return out
}

// AttributePublishersInSubtree unions attr's publishers at class and
// every class below it, the target set for a class-scoped update
// request.
func (t *Table) AttributePublishersInSubtree(class handle.ObjectClassHandle, attr handle.AttributeHandle) []handle.ConnectHandle {
	seen := make(map[handle.ConnectHandle]struct{})
	var walk func(h handle.ObjectClassHandle)
	walk = func(h handle.ObjectClassHandle) {
		s, ok := t.objectClasses[h]
		if !ok {
			return
		}
		if a, ok := s.attributes[attr]; ok {
			for c := range a.publishing.connects {
				seen[c] = struct{}{}
			}
		}
		for child := range s.children {
			walk(child)
		}
	}
	walk(class)
	out := make([]handle.ConnectHandle, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	return out
}

// HasAnySubscribedClassAbove walks from class toward the root and
// reports the nearest class (class itself included) where connect
// holds a direct subscription on attr. Used to decide at which class
// level a newly matching object instance is visible to connect.
func (t *Table) HasAnySubscribedClassAbove(class handle.ObjectClassHandle, attr handle.AttributeHandle, connect handle.ConnectHandle) (handle.ObjectClassHandle, bool) {
	s, ok := t.objectClasses[class]
	for ok {
		if a, aok := s.attributes[attr]; aok && a.subscriptions[connect].IsSubscribed() {
			return s.handle, true
		}
		if !s.hasParent {
			return 0, false
		}
		s, ok = t.objectClasses[s.parent]
	}
	return 0, false
}
