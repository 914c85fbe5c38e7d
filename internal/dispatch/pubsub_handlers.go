package dispatch

import (
	"fmt"

	"github.com/openrti/rtinode/internal/federation"
	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/objectmodel"
	"github.com/openrti/rtinode/internal/routing"
	"github.com/openrti/rtinode/internal/rtierr"
	"github.com/openrti/rtinode/internal/wire"
)

// propagate carries out one routing Decision, excluding the source.
func (d *Dispatcher) propagate(fed *federation.Federation, from handle.ConnectHandle, decision routing.Decision, msg wire.Message) {
	switch decision.Kind {
	case routing.PropagationBroadcast:
		d.fedBroadcast(fed, from, msg)
	case routing.PropagationSend:
		d.fedSend(fed, decision.Target, msg)
	}
}

func (d *Dispatcher) acceptChangeInteractionClassPublication(fed *federation.Federation, from handle.ConnectHandle, msg *wire.ChangeInteractionClassPublication) error {
	if _, ok := fed.Model.InteractionClass(msg.InteractionClassHandle); !ok {
		return nil
	}
	decision := fed.Routing.SetInteractionPublication(msg.InteractionClassHandle, from, msg.Publication())
	d.propagate(fed, from, decision, msg)

	// The new publisher immediately learns the current subscription
	// interest, so it can start sending without waiting for the next
	// subscription change.
	sub := fed.Routing.InteractionSubscription(msg.InteractionClassHandle, from)
	if sub.IsSubscribed() {
		reply := &wire.ChangeInteractionClassSubscription{
			FederationHandle:       fed.Handle,
			InteractionClassHandle: msg.InteractionClassHandle,
			SubscriptionType:       uint32(sub),
		}
		if msg.Publication() == routing.Unpublished {
			reply.SubscriptionType = uint32(routing.Unsubscribed)
		}
		d.fedSend(fed, from, reply)
	}
	return nil
}

func (d *Dispatcher) acceptChangeObjectClassPublication(fed *federation.Federation, from handle.ConnectHandle, msg *wire.ChangeObjectClassPublication) error {
	class, ok := fed.Model.ObjectClass(msg.ObjectClassHandle)
	if !ok {
		return nil
	}

	// Attributes group three ways: those whose change broadcasts,
	// those it travels to one connect for, and per subscription type
	// for the reply to the publisher itself.
	var broadcastAttrs []handle.AttributeHandle
	sendAttrs := make(map[handle.ConnectHandle][]handle.AttributeHandle)
	var passiveAttrs, activeAttrs []handle.AttributeHandle

	for _, attr := range msg.AttributeHandles {
		if _, ok := class.AttributeByHandle(attr); !ok {
			continue
		}
		decision := fed.Routing.SetAttributePublication(class.Handle, attr, from, msg.Publication())
		switch decision.Kind {
		case routing.PropagationBroadcast:
			broadcastAttrs = append(broadcastAttrs, attr)
		case routing.PropagationSend:
			sendAttrs[decision.Target] = append(sendAttrs[decision.Target], attr)
		}

		switch fed.Routing.AttributeSubscription(class.Handle, attr, from) {
		case routing.Passive:
			passiveAttrs = append(passiveAttrs, attr)
		case routing.Active:
			activeAttrs = append(activeAttrs, attr)
		}
	}

	if len(broadcastAttrs) > 0 {
		d.fedBroadcast(fed, from, &wire.ChangeObjectClassPublication{
			FederationHandle:  fed.Handle,
			ObjectClassHandle: class.Handle,
			AttributeHandles:  broadcastAttrs,
			PublicationType:   msg.PublicationType,
		})
	}
	for target, attrs := range sendAttrs {
		d.fedSend(fed, target, &wire.ChangeObjectClassPublication{
			FederationHandle:  fed.Handle,
			ObjectClassHandle: class.Handle,
			AttributeHandles:  attrs,
			PublicationType:   msg.PublicationType,
		})
	}

	// Existing subscriptions go back to the publisher, grouped by
	// subscription type; an unpublish downgrades them to unsubscribed.
	replySub := func(attrs []handle.AttributeHandle, sub routing.SubscriptionType) {
		if len(attrs) == 0 {
			return
		}
		if msg.Publication() == routing.Unpublished {
			sub = routing.Unsubscribed
		}
		d.fedSend(fed, from, &wire.ChangeObjectClassSubscription{
			FederationHandle:  fed.Handle,
			ObjectClassHandle: class.Handle,
			AttributeHandles:  attrs,
			SubscriptionType:  uint32(sub),
		})
	}
	replySub(passiveAttrs, routing.Passive)
	replySub(activeAttrs, routing.Active)
	return nil
}

func (d *Dispatcher) acceptChangeInteractionClassSubscription(fed *federation.Federation, from handle.ConnectHandle, msg *wire.ChangeInteractionClassSubscription) error {
	if _, ok := fed.Model.InteractionClass(msg.InteractionClassHandle); !ok {
		return fmt.Errorf("ChangeInteractionClassSubscription for unknown class: %w", rtierr.ErrMessage)
	}
	decision := fed.Routing.SetInteractionSubscription(msg.InteractionClassHandle, from, msg.Subscription())

	switch decision.Kind {
	case routing.PropagationBroadcast:
		// Only the publishers care about subscription interest.
		for _, pub := range fed.Routing.InteractionPublishingConnects(msg.InteractionClassHandle) {
			if pub == from {
				continue
			}
			d.fedSend(fed, pub, msg)
		}
	case routing.PropagationSend:
		d.fedSend(fed, decision.Target, msg)
	}
	return nil
}

func (d *Dispatcher) acceptChangeObjectClassSubscription(fed *federation.Federation, from handle.ConnectHandle, msg *wire.ChangeObjectClassSubscription) error {
	class, ok := fed.Model.ObjectClass(msg.ObjectClassHandle)
	if !ok {
		return nil
	}

	sendAttrs := make(map[handle.ConnectHandle][]handle.AttributeHandle)
	var turnedOn []handle.AttributeHandle

	for _, attr := range msg.AttributeHandles {
		if _, ok := class.AttributeByHandle(attr); !ok {
			continue
		}
		decision, on := fed.Routing.SetAttributeSubscription(class.Handle, attr, from, msg.Subscription())
		if on {
			turnedOn = append(turnedOn, attr)
		}
		switch decision.Kind {
		case routing.PropagationBroadcast:
			for _, pub := range fed.Routing.AttributePublishingConnects(class.Handle, attr) {
				if pub == from {
					continue
				}
				sendAttrs[pub] = append(sendAttrs[pub], attr)
			}
		case routing.PropagationSend:
			if fed.Routing.AttributePublication(class.Handle, attr, decision.Target) == routing.Published {
				sendAttrs[decision.Target] = append(sendAttrs[decision.Target], attr)
			}
		}
	}

	for target, attrs := range sendAttrs {
		d.fedSend(fed, target, &wire.ChangeObjectClassSubscription{
			FederationHandle:  fed.Handle,
			ObjectClassHandle: class.Handle,
			AttributeHandles:  attrs,
			SubscriptionType:  msg.SubscriptionType,
		})
	}

	// A subscription turning on catches the connect up on every
	// matching instance it has not seen yet.
	if msg.Subscription().IsSubscribed() && len(turnedOn) > 0 {
		d.insertMatchingInstances(fed, from, class.Handle)
	}
	return nil
}

// insertMatchingInstances sends an InsertObjectInstance for every
// instance of class (or a subclass) the connect does not reference
// yet, and records the new references.
func (d *Dispatcher) insertMatchingInstances(fed *federation.Federation, connect handle.ConnectHandle, class handle.ObjectClassHandle) {
	fc, ok := fed.ConnectIfPresent(connect)
	if !ok {
		return
	}
	for _, inst := range fed.Instances.Instances() {
		if inst.Name == "" {
			// Allocated but not yet registered; nothing to show.
			continue
		}
		if !d.classIsOrDescends(fed, inst.Class, class) {
			continue
		}
		if inst.IsReferencedBy(connect) {
			continue
		}
		instClass, ok := fed.Model.ObjectClass(inst.Class)
		if !ok {
			continue
		}
		if err := fed.Instances.AddReference(inst.Handle, connect); err != nil {
			continue
		}
		fc.KnownInstances[inst.Handle] = struct{}{}

		msg := &wire.InsertObjectInstance{
			FederationHandle:     fed.Handle,
			ObjectInstanceHandle: inst.Handle,
			ObjectClassHandle:    inst.Class,
			Name:                 inst.Name,
		}
		for _, a := range instClass.Attributes {
			ia, ok := inst.Attributes[a.Handle]
			if ok && ia.HasOwner {
				msg.AttributeStates = append(msg.AttributeStates, wire.AttributeState{AttributeHandle: a.Handle})
			}
			inst.Attribute(a.Handle).ReceivingConnects[connect] = struct{}{}
		}
		d.node.Send(connect, msg)
	}
}

// classIsOrDescends reports whether class equals ancestor or sits below
// it in the object class tree.
func (d *Dispatcher) classIsOrDescends(fed *federation.Federation, class, ancestor handle.ObjectClassHandle) bool {
	for {
		if class == ancestor {
			return true
		}
		c, ok := fed.Model.ObjectClass(class)
		if !ok || !c.Parent.Valid {
			return false
		}
		class = c.Parent.Handle
	}
}

// ---------------------------------------------------------------------------
// Regions

func (d *Dispatcher) acceptInsertRegion(fed *federation.Federation, from handle.ConnectHandle, msg *wire.InsertRegion) error {
	for _, r := range msg.Regions {
		if _, exists := fed.Region(r.RegionHandle); exists {
			// Replay from an activating push; keep the existing state.
			continue
		}
		if _, err := fed.InsertRegion(r.RegionHandle, r.FederateHandle, r.Dimensions); err != nil {
			return err
		}
	}
	d.fedBroadcast(fed, from, msg)
	return nil
}

func (d *Dispatcher) acceptCommitRegion(fed *federation.Federation, from handle.ConnectHandle, msg *wire.CommitRegion) error {
	for _, rv := range msg.Regions {
		region, ok := fed.Region(rv.RegionHandle)
		if !ok {
			return fmt.Errorf("CommitRegion for unknown region: %w", rtierr.ErrMessage)
		}
		for _, b := range rv.Bounds {
			region.SetBounds(b.Dimension, objectmodelBounds(b))
		}
		region.Commit()
	}
	d.fedBroadcast(fed, from, msg)
	return nil
}

func objectmodelBounds(b wire.DimensionBounds) objectmodel.RangeBounds {
	return objectmodel.RangeBounds{Lower: b.Lower, Upper: b.Upper}
}

func (d *Dispatcher) acceptEraseRegion(fed *federation.Federation, from handle.ConnectHandle, msg *wire.EraseRegion) error {
	for _, rh := range msg.Regions {
		if err := fed.EraseRegion(rh); err != nil {
			return err
		}
	}
	d.fedBroadcast(fed, from, msg)
	return nil
}
