package dispatch

import (
	"github.com/openrti/rtinode/internal/federation"
	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/routing"
	"github.com/openrti/rtinode/internal/wire"
)

// removeConnectFromFederation runs the per-federation half of a
// connect's teardown: synthesized resigns for its federates, deletion
// of the instances it owned, release of its object references,
// withdrawal of its publications and subscriptions, and finally the
// FederationConnect erase.
func (d *Dispatcher) removeConnectFromFederation(fed *federation.Federation, connect handle.ConnectHandle) {
	fc, ok := fed.ConnectIfPresent(connect)
	if !ok {
		return
	}

	d.resignConnect(fed, connect, fc)
	fed.EraseConnect(connect)
}

func (d *Dispatcher) resignConnect(fed *federation.Federation, connect handle.ConnectHandle, fc *federation.FederationConnect) {
	// Federates living behind this connect resign through the full
	// path, so the rest of the tree sees ordinary resign traffic.
	for _, fh := range fc.Federates() {
		resign := &wire.ResignFederationExecutionRequest{
			FederationHandle: fed.Handle,
			FederateHandle:   fh,
			ResignAction:     uint32(federation.ResignDeleteObjectsThenDivest),
		}
		if err := d.acceptResignRequest(fed, connect, resign); err != nil {
			d.log.Warn("synthesized resign failed",
				"server", d.node.ServerPath,
				"federation", fed.Name,
				"federate", uint64(fh),
				"error", err)
		}
	}

	// Withdraw subscriptions first so nobody keeps fanning out to the
	// dead connect, then publications so interested parties see the
	// publisher disappear.
	for _, class := range fed.Routing.SubscribedInteractionClasses(connect) {
		unsub := &wire.ChangeInteractionClassSubscription{
			FederationHandle:       fed.Handle,
			InteractionClassHandle: class,
			SubscriptionType:       uint32(routing.Unsubscribed),
		}
		if err := d.acceptChangeInteractionClassSubscription(fed, connect, unsub); err != nil {
			d.log.Warn("teardown unsubscribe failed", "server", d.node.ServerPath, "error", err)
		}
	}
	for class, attrs := range fed.Routing.SubscribedAttributes(connect) {
		unsub := &wire.ChangeObjectClassSubscription{
			FederationHandle:  fed.Handle,
			ObjectClassHandle: class,
			AttributeHandles:  attrs,
			SubscriptionType:  uint32(routing.Unsubscribed),
		}
		if err := d.acceptChangeObjectClassSubscription(fed, connect, unsub); err != nil {
			d.log.Warn("teardown unsubscribe failed", "server", d.node.ServerPath, "error", err)
		}
	}
	for _, class := range fed.Routing.PublishedInteractionClasses(connect) {
		unpub := &wire.ChangeInteractionClassPublication{
			FederationHandle:       fed.Handle,
			InteractionClassHandle: class,
			PublicationType:        uint32(routing.Unpublished),
		}
		if err := d.acceptChangeInteractionClassPublication(fed, connect, unpub); err != nil {
			d.log.Warn("teardown unpublish failed", "server", d.node.ServerPath, "error", err)
		}
	}
	for class, attrs := range fed.Routing.PublishedAttributes(connect) {
		unpub := &wire.ChangeObjectClassPublication{
			FederationHandle:  fed.Handle,
			ObjectClassHandle: class,
			AttributeHandles:  attrs,
			PublicationType:   uint32(routing.Unpublished),
		}
		if err := d.acceptChangeObjectClassPublication(fed, connect, unpub); err != nil {
			d.log.Warn("teardown unpublish failed", "server", d.node.ServerPath, "error", err)
		}
	}
	fed.Routing.DropConnect(connect)

	// Without negotiated ownership transfer, an owner dying means its
	// instances die with it.
	for _, inst := range fed.Instances.Instances() {
		owned := false
		for _, ia := range inst.Attributes {
			if ia.HasOwner && ia.Owner == connect {
				owned = true
				break
			}
		}
		if !owned {
			continue
		}
		del := &wire.DeleteObjectInstance{
			FederationHandle:     fed.Handle,
			ObjectInstanceHandle: inst.Handle,
		}
		if err := d.acceptDeleteObjectInstance(fed, connect, del); err != nil {
			d.log.Warn("teardown object delete failed", "server", d.node.ServerPath, "error", err)
		}
	}

	// Release every reference the connect held; whatever it alone kept
	// alive unwinds upstream.
	if !fc.IsParent {
		known := make([]handle.ObjectInstanceHandle, 0, len(fc.KnownInstances))
		for h := range fc.KnownInstances {
			known = append(known, h)
		}
		if len(known) > 0 {
			release := &wire.ReleaseMultipleObjectInstanceNameHandlePairs{
				FederationHandle: fed.Handle,
				Handles:          known,
			}
			if err := d.acceptReleaseMultipleObjectInstances(fed, connect, release); err != nil {
				d.log.Warn("teardown reference release failed", "server", d.node.ServerPath, "error", err)
			}
		}
	}
}
