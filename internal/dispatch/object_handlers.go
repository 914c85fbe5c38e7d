package dispatch

import (
	"errors"
	"fmt"

	"github.com/openrti/rtinode/internal/federation"
	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/instancemodel"
	"github.com/openrti/rtinode/internal/objectmodel"
	"github.com/openrti/rtinode/internal/rtierr"
	"github.com/openrti/rtinode/internal/wire"
)

func (d *Dispatcher) acceptObjectInstanceHandlesRequest(fed *federation.Federation, from handle.ConnectHandle, msg *wire.ObjectInstanceHandlesRequest) error {
	if !d.node.IsRootServer() {
		d.node.SendToParent(msg)
		return nil
	}

	fc, ok := fed.ConnectIfPresent(from)
	if !ok {
		return fmt.Errorf("ObjectInstanceHandlesRequest from a connect outside the federation: %w", rtierr.ErrMessage)
	}

	resp := &wire.ObjectInstanceHandlesResponse{
		FederationHandle: fed.Handle,
		FederateHandle:   msg.FederateHandle,
	}
	for _, h := range fed.Instances.AllocateHandles(int(msg.Count), from) {
		fc.KnownInstances[h] = struct{}{}
		resp.Pairs = append(resp.Pairs, wire.ObjectInstanceHandleNamePair{Handle: h})
	}
	d.fedSend(fed, from, resp)
	return nil
}

func (d *Dispatcher) acceptObjectInstanceHandlesResponse(fed *federation.Federation, from handle.ConnectHandle, msg *wire.ObjectInstanceHandlesResponse) error {
	federate, ok := fed.Federate(msg.FederateHandle)
	if !ok {
		return fmt.Errorf("ObjectInstanceHandlesResponse for unknown federate: %w", rtierr.ErrMessage)
	}
	if !federate.HasConnect || federate.ResignPending {
		// The federate went away while the response was under way; the
		// upstream server keeps the references and will release them
		// with the resign cleanup.
		return nil
	}
	fc, ok := fed.ConnectIfPresent(federate.Connect)
	if !ok {
		return nil
	}
	for _, pair := range msg.Pairs {
		if _, err := fed.Instances.InsertWithHandle(pair.Handle, pair.Name, federate.Connect); err != nil {
			return err
		}
		fc.KnownInstances[pair.Handle] = struct{}{}
	}
	d.fedSend(fed, federate.Connect, msg)
	return nil
}

func (d *Dispatcher) acceptReleaseMultipleObjectInstances(fed *federation.Federation, from handle.ConnectHandle, msg *wire.ReleaseMultipleObjectInstanceNameHandlePairs) error {
	var release []handle.ObjectInstanceHandle
	for _, h := range msg.Handles {
		inst, ok := fed.Instances.Get(h)
		if !ok {
			return fmt.Errorf("release for unknown object instance %d: %w", uint64(h), rtierr.ErrMessage)
		}
		for _, ia := range inst.Attributes {
			delete(ia.ReceivingConnects, from)
		}
		if fc, ok := fed.ConnectIfPresent(from); ok {
			delete(fc.KnownInstances, h)
		}
		deleted, err := fed.Instances.ReleaseReference(h, from)
		if err != nil {
			return err
		}
		if deleted && !d.node.IsRootServer() {
			release = append(release, h)
		}
	}
	if len(release) > 0 {
		d.node.SendToParent(&wire.ReleaseMultipleObjectInstanceNameHandlePairs{
			FederationHandle: fed.Handle,
			Handles:          release,
		})
	}
	return nil
}

func (d *Dispatcher) acceptReserveNameRequest(fed *federation.Federation, from handle.ConnectHandle, msg *wire.ReserveObjectInstanceNameRequest) error {
	// The ambassador filters HLA-prefixed names; one arriving here is
	// a protocol error regardless of where we sit in the tree.
	if err := instancemodel.ValidateClientName(msg.Name); err != nil {
		return err
	}
	if !d.node.IsRootServer() {
		d.node.SendToParent(msg)
		return nil
	}

	fc, ok := fed.ConnectIfPresent(from)
	if !ok {
		return fmt.Errorf("ReserveObjectInstanceNameRequest from a connect outside the federation: %w", rtierr.ErrMessage)
	}

	resp := &wire.ReserveObjectInstanceNameResponse{
		FederationHandle: fed.Handle,
		FederateHandle:   msg.FederateHandle,
	}
	h, err := fed.Instances.ReserveName(msg.Name, from)
	switch {
	case err == nil:
		fc.KnownInstances[h] = struct{}{}
		resp.Pair = wire.ObjectInstanceHandleNamePair{Handle: h, Name: msg.Name}
		resp.Success = true
	case errors.Is(err, rtierr.ErrNameNotUnique):
		resp.Pair = wire.ObjectInstanceHandleNamePair{Name: msg.Name}
	default:
		return err
	}
	d.fedSend(fed, from, resp)
	return nil
}

func (d *Dispatcher) acceptReserveNameResponse(fed *federation.Federation, from handle.ConnectHandle, msg *wire.ReserveObjectInstanceNameResponse) error {
	federate, ok := fed.Federate(msg.FederateHandle)
	if !ok {
		return fmt.Errorf("ReserveObjectInstanceNameResponse for unknown federate: %w", rtierr.ErrMessage)
	}
	if !federate.HasConnect || federate.ResignPending {
		return nil
	}
	if msg.Success {
		fc, ok := fed.ConnectIfPresent(federate.Connect)
		if !ok {
			return nil
		}
		if _, err := fed.Instances.InsertWithHandle(msg.Pair.Handle, msg.Pair.Name, federate.Connect); err != nil {
			return err
		}
		fc.KnownInstances[msg.Pair.Handle] = struct{}{}
	}
	d.fedSend(fed, federate.Connect, msg)
	return nil
}

func (d *Dispatcher) acceptReserveMultipleNamesRequest(fed *federation.Federation, from handle.ConnectHandle, msg *wire.ReserveMultipleObjectInstanceNameRequest) error {
	for _, name := range msg.Names {
		if err := instancemodel.ValidateClientName(name); err != nil {
			return err
		}
	}
	if !d.node.IsRootServer() {
		d.node.SendToParent(msg)
		return nil
	}

	fc, ok := fed.ConnectIfPresent(from)
	if !ok {
		return fmt.Errorf("ReserveMultipleObjectInstanceNameRequest from a connect outside the federation: %w", rtierr.ErrMessage)
	}

	resp := &wire.ReserveMultipleObjectInstanceNameResponse{
		FederationHandle: fed.Handle,
		FederateHandle:   msg.FederateHandle,
	}

	// All or nothing: any collision fails the whole set.
	available := true
	for _, name := range msg.Names {
		if _, taken := fed.Instances.ByName(name); taken {
			available = false
			break
		}
	}
	if !available {
		for _, name := range msg.Names {
			resp.Pairs = append(resp.Pairs, wire.ObjectInstanceHandleNamePair{Name: name})
		}
		d.fedSend(fed, from, resp)
		return nil
	}

	for _, name := range msg.Names {
		h, err := fed.Instances.ReserveName(name, from)
		if err != nil {
			return err
		}
		fc.KnownInstances[h] = struct{}{}
		resp.Pairs = append(resp.Pairs, wire.ObjectInstanceHandleNamePair{Handle: h, Name: name})
	}
	resp.Success = true
	d.fedSend(fed, from, resp)
	return nil
}

func (d *Dispatcher) acceptReserveMultipleNamesResponse(fed *federation.Federation, from handle.ConnectHandle, msg *wire.ReserveMultipleObjectInstanceNameResponse) error {
	federate, ok := fed.Federate(msg.FederateHandle)
	if !ok {
		return fmt.Errorf("ReserveMultipleObjectInstanceNameResponse for unknown federate: %w", rtierr.ErrMessage)
	}
	if !federate.HasConnect || federate.ResignPending {
		return nil
	}
	if msg.Success {
		fc, ok := fed.ConnectIfPresent(federate.Connect)
		if !ok {
			return nil
		}
		for _, pair := range msg.Pairs {
			if _, err := fed.Instances.InsertWithHandle(pair.Handle, pair.Name, federate.Connect); err != nil {
				return err
			}
			fc.KnownInstances[pair.Handle] = struct{}{}
		}
	}
	d.fedSend(fed, federate.Connect, msg)
	return nil
}

// ---------------------------------------------------------------------------
// Instance traffic

func (d *Dispatcher) acceptInsertObjectInstance(fed *federation.Federation, from handle.ConnectHandle, msg *wire.InsertObjectInstance) error {
	class, ok := fed.Model.ObjectClass(msg.ObjectClassHandle)
	if !ok {
		return fmt.Errorf("InsertObjectInstance for unknown object class: %w", rtierr.ErrMessage)
	}

	privAttr := class.PrivilegeToDeleteHandle()
	inst, exists := fed.Instances.Get(msg.ObjectInstanceHandle)

	// Reference the instance on every subscribed child connect other
	// than the source; those are where the insert fans out to.
	var targets []handle.ConnectHandle
	for _, sub := range fed.Routing.CumulativeAttributeSubscribers(class.Handle, privAttr) {
		if sub == from || d.node.IsParentConnect(sub) {
			continue
		}
		fc, ok := fed.ConnectIfPresent(sub)
		if !ok {
			continue
		}
		if !exists {
			newInst, err := fed.Instances.InsertWithHandle(msg.ObjectInstanceHandle, msg.Name, sub)
			if err != nil {
				return err
			}
			inst, exists = newInst, true
		} else {
			if err := fed.Instances.AddReference(msg.ObjectInstanceHandle, sub); err != nil {
				return err
			}
		}
		fc.KnownInstances[msg.ObjectInstanceHandle] = struct{}{}
		targets = append(targets, sub)
	}

	if !exists {
		// Nobody left interested: the subscription that triggered the
		// insert upstream was already taken back. Unreference in the
		// parent so the root can release the handle.
		if d.node.IsParentConnect(from) {
			d.node.SendToParent(&wire.ReleaseMultipleObjectInstanceNameHandlePairs{
				FederationHandle: fed.Handle,
				Handles:          []handle.ObjectInstanceHandle{msg.ObjectInstanceHandle},
			})
		}
		return nil
	}

	if err := fed.Instances.Insert(msg.ObjectInstanceHandle, msg.Name, class.Handle, nil, from); err != nil {
		return err
	}
	for _, st := range msg.AttributeStates {
		inst.Attribute(st.AttributeHandle).SetOwner(from)
	}
	for _, target := range targets {
		for _, a := range class.Attributes {
			if fed.Routing.IsCumulativeAttributeSubscriber(class.Handle, a.Handle, target) {
				inst.Attribute(a.Handle).ReceivingConnects[target] = struct{}{}
			}
		}
		// The delete fanout follows privilegeToDelete regardless of
		// individual attribute interest.
		inst.Attribute(privAttr).ReceivingConnects[target] = struct{}{}
		d.node.Send(target, msg)
	}
	return nil
}

// deleteFanout delivers a delete to every connect that ever saw the
// instance.
func (d *Dispatcher) deleteFanout(fed *federation.Federation, from handle.ConnectHandle, instHandle handle.ObjectInstanceHandle, msg wire.Message) {
	inst, ok := fed.Instances.Get(instHandle)
	if !ok {
		// Updates and deletes may legally race an unsubscribe; not an
		// error.
		return
	}
	class, haveClass := fed.Model.ObjectClass(inst.Class)
	if !haveClass {
		return
	}
	priv := inst.Attribute(class.PrivilegeToDeleteHandle())
	for connect := range priv.ReceivingConnects {
		if connect == from {
			continue
		}
		d.fedSend(fed, connect, msg)
	}
}

func (d *Dispatcher) acceptDeleteObjectInstance(fed *federation.Federation, from handle.ConnectHandle, msg *wire.DeleteObjectInstance) error {
	d.deleteFanout(fed, from, msg.ObjectInstanceHandle, msg)
	return nil
}

func (d *Dispatcher) acceptTimeStampedDeleteObjectInstance(fed *federation.Federation, from handle.ConnectHandle, msg *wire.TimeStampedDeleteObjectInstance) error {
	d.deleteFanout(fed, from, msg.ObjectInstanceHandle, msg)
	return nil
}

func (d *Dispatcher) acceptAttributeUpdate(fed *federation.Federation, from handle.ConnectHandle, msg *wire.AttributeUpdate) error {
	inst, ok := fed.Instances.Get(msg.ObjectInstanceHandle)
	if !ok {
		return nil
	}

	// Bucket the attribute values by receiving connect; each target
	// gets one update carrying only the subset it subscribed to.
	perConnect := make(map[handle.ConnectHandle][]wire.AttributeValue)
	for _, av := range msg.AttributeValues {
		ia, ok := inst.Attributes[av.AttributeHandle]
		if !ok {
			continue
		}
		for connect := range ia.ReceivingConnects {
			if connect == from {
				continue
			}
			perConnect[connect] = append(perConnect[connect], av)
		}
	}

	for connect, values := range perConnect {
		d.fedSend(fed, connect, &wire.AttributeUpdate{
			FederationHandle:     fed.Handle,
			FederateHandle:       msg.FederateHandle,
			ObjectInstanceHandle: msg.ObjectInstanceHandle,
			Tag:                  msg.Tag,
			TransportationType:   msg.TransportationType,
			AttributeValues:      values,
		})
	}
	return nil
}

func (d *Dispatcher) acceptTimeStampedAttributeUpdate(fed *federation.Federation, from handle.ConnectHandle, msg *wire.TimeStampedAttributeUpdate) error {
	inst, ok := fed.Instances.Get(msg.ObjectInstanceHandle)
	if !ok {
		return nil
	}

	perConnect := make(map[handle.ConnectHandle][]wire.AttributeValue)
	for _, av := range msg.AttributeValues {
		ia, ok := inst.Attributes[av.AttributeHandle]
		if !ok {
			continue
		}
		for connect := range ia.ReceivingConnects {
			if connect == from {
				continue
			}
			perConnect[connect] = append(perConnect[connect], av)
		}
	}

	for connect, values := range perConnect {
		d.fedSend(fed, connect, &wire.TimeStampedAttributeUpdate{
			FederationHandle:        fed.Handle,
			FederateHandle:          msg.FederateHandle,
			ObjectInstanceHandle:    msg.ObjectInstanceHandle,
			Tag:                     msg.Tag,
			TransportationType:      msg.TransportationType,
			AttributeValues:         values,
			TimeStamp:               msg.TimeStamp,
			OrderType:               msg.OrderType,
			MessageRetractionHandle: msg.MessageRetractionHandle,
		})
	}
	return nil
}

// interactionFanout walks each cumulative subscriber up the class tree
// to its nearest subscribed class; the message forwards verbatim when
// that class is the message's own, and narrows to the subscribed
// class's parameter set otherwise.
func (d *Dispatcher) interactionFanout(
	fed *federation.Federation,
	from handle.ConnectHandle,
	classHandle handle.InteractionClassHandle,
	params []wire.ParameterValue,
	forward func(to handle.ConnectHandle),
	narrowed func(to handle.ConnectHandle, class handle.InteractionClassHandle, params []wire.ParameterValue),
) error {
	class, ok := fed.Model.InteractionClass(classHandle)
	if !ok {
		return fmt.Errorf("interaction for unknown class: %w", rtierr.ErrMessage)
	}

	for _, connect := range fed.Routing.CumulativeInteractionSubscribers(classHandle) {
		if connect == from {
			continue
		}
		current := class
		for current != nil {
			if fed.Routing.InteractionSubscription(current.Handle, connect).IsSubscribed() {
				if current.Handle == classHandle {
					forward(connect)
				} else {
					kept := make([]wire.ParameterValue, 0, len(params))
					for _, pv := range params {
						if _, known := parameterOf(current, pv.ParameterHandle); known {
							kept = append(kept, pv)
						}
					}
					narrowed(connect, current.Handle, kept)
				}
				break
			}
			if !current.Parent.Valid {
				break
			}
			parent, ok := fed.Model.InteractionClass(current.Parent.Handle)
			if !ok {
				break
			}
			current = parent
		}
	}
	return nil
}

// parameterOf reports whether class carries the parameter.
func parameterOf(class *objectmodel.InteractionClass, h handle.ParameterHandle) (string, bool) {
	for _, p := range class.Parameters {
		if p.Handle == h {
			return p.Name, true
		}
	}
	return "", false
}

func (d *Dispatcher) acceptInteraction(fed *federation.Federation, from handle.ConnectHandle, msg *wire.Interaction) error {
	return d.interactionFanout(fed, from, msg.InteractionClassHandle, msg.ParameterValues,
		func(to handle.ConnectHandle) {
			d.fedSend(fed, to, msg)
		},
		func(to handle.ConnectHandle, class handle.InteractionClassHandle, params []wire.ParameterValue) {
			d.fedSend(fed, to, &wire.Interaction{
				FederationHandle:       fed.Handle,
				FederateHandle:         msg.FederateHandle,
				InteractionClassHandle: class,
				Tag:                    msg.Tag,
				TransportationType:     msg.TransportationType,
				ParameterValues:        params,
			})
		})
}

func (d *Dispatcher) acceptTimeStampedInteraction(fed *federation.Federation, from handle.ConnectHandle, msg *wire.TimeStampedInteraction) error {
	return d.interactionFanout(fed, from, msg.InteractionClassHandle, msg.ParameterValues,
		func(to handle.ConnectHandle) {
			d.fedSend(fed, to, msg)
		},
		func(to handle.ConnectHandle, class handle.InteractionClassHandle, params []wire.ParameterValue) {
			d.fedSend(fed, to, &wire.TimeStampedInteraction{
				FederationHandle:        fed.Handle,
				FederateHandle:          msg.FederateHandle,
				InteractionClassHandle:  class,
				Tag:                     msg.Tag,
				TransportationType:      msg.TransportationType,
				ParameterValues:         params,
				TimeStamp:               msg.TimeStamp,
				OrderType:               msg.OrderType,
				MessageRetractionHandle: msg.MessageRetractionHandle,
			})
		})
}

func (d *Dispatcher) acceptRequestAttributeUpdate(fed *federation.Federation, from handle.ConnectHandle, msg *wire.RequestAttributeUpdate) error {
	inst, ok := fed.Instances.Get(msg.ObjectInstanceHandle)
	if !ok {
		return nil
	}

	// One request per owning connect, carrying the attributes it owns.
	perOwner := make(map[handle.ConnectHandle][]handle.AttributeHandle)
	for _, attr := range msg.AttributeHandles {
		ia, ok := inst.Attributes[attr]
		if !ok || !ia.HasOwner {
			continue
		}
		perOwner[ia.Owner] = append(perOwner[ia.Owner], attr)
	}
	for owner, attrs := range perOwner {
		d.fedSend(fed, owner, &wire.RequestAttributeUpdate{
			FederationHandle:     fed.Handle,
			ObjectInstanceHandle: msg.ObjectInstanceHandle,
			AttributeHandles:     attrs,
			Tag:                  msg.Tag,
		})
	}
	return nil
}

func (d *Dispatcher) acceptRequestClassAttributeUpdate(fed *federation.Federation, from handle.ConnectHandle, msg *wire.RequestClassAttributeUpdate) error {
	class, ok := fed.Model.ObjectClass(msg.ObjectClassHandle)
	if !ok {
		return fmt.Errorf("RequestClassAttributeUpdate for unknown object class: %w", rtierr.ErrMessage)
	}

	// Every publisher across the class subtree gets the request.
	targets := make(map[handle.ConnectHandle]struct{})
	for _, attr := range msg.AttributeHandles {
		for _, pub := range fed.Routing.AttributePublishersInSubtree(class.Handle, attr) {
			targets[pub] = struct{}{}
		}
	}
	for target := range targets {
		if target == from {
			continue
		}
		d.fedSend(fed, target, msg)
	}
	return nil
}
