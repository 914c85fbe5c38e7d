package routing

import "github.com/openrti/rtinode/internal/handle"

// Table is one federation's routing state: per-class and per-attribute
// publication/subscription bookkeeping for every connect this node
// knows, mirroring the shape of the federation's class trees. The
// dispatcher registers classes as modules are inserted; it never calls
// RemoveInteractionClass or RemoveObjectClass.
type Table struct {
	interactions  map[handle.InteractionClassHandle]*interactionState
	objectClasses map[handle.ObjectClassHandle]*objectClassState
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{
		interactions:  make(map[handle.InteractionClassHandle]*interactionState),
		objectClasses: make(map[handle.ObjectClassHandle]*objectClassState),
	}
}

// DropConnect removes every trace of connect from the table without
// producing propagation traffic. Callers that need the outbound
// unpublish/unsubscribe fanout enumerate Published*/Subscribed* first
// and run the regular Set* paths; DropConnect is the final sweep that
// guarantees nothing keeps referencing a dead connect handle.
func (t *Table) DropConnect(connect handle.ConnectHandle) {
	for h, s := range t.interactions {
		s.publishing.erase(connect)
		s.subscribed.erase(connect)
		s.active.erase(connect)
		if _, ok := s.subscriptions[connect]; ok {
			delete(s.subscriptions, connect)
			t.recomputeInteractionCumulative(h)
		}
	}
	for h, s := range t.objectClasses {
		for attr, a := range s.attributes {
			a.publishing.erase(connect)
			a.subscribed.erase(connect)
			a.active.erase(connect)
			if _, ok := a.subscriptions[connect]; ok {
				delete(a.subscriptions, connect)
				t.recomputeAttributeCumulative(h, attr)
			}
		}
	}
}
