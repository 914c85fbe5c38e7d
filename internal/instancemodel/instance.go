package instancemodel

import "github.com/openrti/rtinode/internal/handle"

// InstanceAttribute is the per-attribute state of one ObjectInstance:
// its owning connect (at most one) and the
// cumulative set of connects it has been delivered to.
type InstanceAttribute struct {
	Owner    handle.ConnectHandle
	HasOwner bool

	// ReceivingConnects is the cumulative set of connects this
	// attribute's updates have been routed to, tracked so a late
	// subscriber can be caught up and a departing connect can be
	// dropped from future fanout.
	ReceivingConnects map[handle.ConnectHandle]struct{}
}

func newInstanceAttribute() *InstanceAttribute {
	return &InstanceAttribute{ReceivingConnects: make(map[handle.ConnectHandle]struct{})}
}

// SetOwner assigns ownership to connect, replacing any prior owner —
// an attribute has at most one owner at a time.
func (a *InstanceAttribute) SetOwner(connect handle.ConnectHandle) {
	a.Owner, a.HasOwner = connect, true
}

func (a *InstanceAttribute) ClearOwner() {
	a.Owner, a.HasOwner = 0, false
}

// ObjectInstance is a federation-scoped, dynamically created object.
// It exists from its first InsertObjectInstance (or a
// successful name reservation) until every connect's reference to it
// is released, at which point Registry deletes it and returns its
// handle to the allocator.
type ObjectInstance struct {
	Handle handle.ObjectInstanceHandle
	Name   string
	Class  handle.ObjectClassHandle

	Attributes map[handle.AttributeHandle]*InstanceAttribute

	referencingConnects map[handle.ConnectHandle]struct{}
}

// ReferenceCount reports how many connects currently hold a reference
// to this instance.
func (o *ObjectInstance) ReferenceCount() int { return len(o.referencingConnects) }

// IsReferencedBy reports whether connect holds a reference.
func (o *ObjectInstance) IsReferencedBy(connect handle.ConnectHandle) bool {
	_, ok := o.referencingConnects[connect]
	return ok
}

// ReferencingConnects returns the connects currently holding a
// reference.
func (o *ObjectInstance) ReferencingConnects() []handle.ConnectHandle {
	out := make([]handle.ConnectHandle, 0, len(o.referencingConnects))
	for c := range o.referencingConnects {
		out = append(out, c)
	}
	return out
}

// Attribute returns (creating if absent) the per-attribute state.
func (o *ObjectInstance) Attribute(attr handle.AttributeHandle) *InstanceAttribute {
	ia, ok := o.Attributes[attr]
	if !ok {
		ia = newInstanceAttribute()
		o.Attributes[attr] = ia
	}
	return ia
}
