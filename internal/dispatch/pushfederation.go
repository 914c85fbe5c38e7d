package dispatch

import (
	"github.com/openrti/rtinode/internal/federation"
	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/routing"
	"github.com/openrti/rtinode/internal/wire"
	"github.com/openrti/rtinode/internal/wire/handshake"
)

// syncRouting registers fed's object model classes in its routing
// table after a module insert. Classes are registered parents-first
// (handle order guarantees that); classes that already have routing
// entries keep them, and no entry is removed here.
func (d *Dispatcher) syncRouting(fed *federation.Federation) {
	for _, c := range fed.Model.InteractionClasses() {
		fed.Routing.AddInteractionClass(c.Handle, c.Parent.Handle, c.Parent.Valid)
	}
	for _, c := range fed.Model.ObjectClasses() {
		attrs := make([]handle.AttributeHandle, 0, len(c.Attributes))
		for _, a := range c.Attributes {
			attrs = append(attrs, a.Handle)
		}
		fed.Routing.AddObjectClass(c.Handle, c.Parent.Handle, c.Parent.Valid, attrs)
	}
}

// pushFederation activates a child connect's view of fed by replaying
// the complete resume state: the federation itself, its modules, the
// joined federates, the time-regulation state, the active
// publications, and the extant regions. Idempotent: an already-active
// connect is left alone.
func (d *Dispatcher) pushFederation(fed *federation.Federation, connect handle.ConnectHandle) {
	fc, ok := fed.ConnectIfPresent(connect)
	if !ok || fc.IsParent || fc.Active {
		return
	}
	fc.Active = true

	permit := fed.ParentPermitTimeRegulation && d.node.PermitTimeRegulation
	fc.TimeRegulationPermitted = permit

	insert := &wire.InsertFederationExecution{
		FederationHandle:       fed.Handle,
		FederationName:         fed.Name,
		LogicalTimeFactoryName: fed.LogicalTimeFactoryName,
	}
	if !permit {
		insert.Options = append(insert.Options, wire.Option{
			Name:   handshake.KeyPermitTimeRegulation,
			Values: []string{"false"},
		})
	}
	d.node.Send(connect, insert)

	if descs := fed.Model.Describe(fed.Model.ModuleHandles()); len(descs) > 0 {
		modules := make([]wire.FOMModule, 0, len(descs))
		for _, desc := range descs {
			modules = append(modules, wire.ModuleFromDescription(desc))
		}
		d.node.Send(connect, &wire.InsertModules{
			FederationHandle: fed.Handle,
			Modules:          modules,
		})
	}

	for _, f := range fed.Federates() {
		if f.HasConnect && f.Connect == connect {
			continue
		}
		d.node.Send(connect, &wire.JoinFederateNotify{
			FederationHandle: fed.Handle,
			FederateHandle:   f.Handle,
			FederateName:     f.Name,
			FederateType:     f.Type,
		})
	}

	for _, f := range fed.TimeRegulatingFederates() {
		advance, nextMessage, commitID, _ := f.TimeState()
		d.node.Send(connect, &wire.EnableTimeRegulationRequest{
			FederationHandle: fed.Handle,
			FederateHandle:   f.Handle,
			TimeStamp:        advance,
			CommitID:         commitID,
		})
		d.node.Send(connect, &wire.CommitLowerBoundTimeStamp{
			FederationHandle: fed.Handle,
			FederateHandle:   f.Handle,
			TimeStamp:        nextMessage,
			CommitType:       uint32(federation.NextMessageCommit),
			CommitID:         commitID,
		})
	}

	d.pushPublications(fed, connect)

	for _, region := range fed.Regions() {
		dims := make([]handle.DimensionHandle, 0, len(region.Committed))
		bounds := make([]wire.DimensionBounds, 0, len(region.Committed))
		for dim, rb := range region.Committed {
			dims = append(dims, dim)
			bounds = append(bounds, wire.DimensionBounds{Dimension: dim, Lower: rb.Lower, Upper: rb.Upper})
		}
		d.node.Send(connect, &wire.InsertRegion{
			FederationHandle: fed.Handle,
			Regions: []wire.RegionDimensions{{
				RegionHandle:   region.Handle,
				FederateHandle: region.Federate,
				Dimensions:     dims,
			}},
		})
		d.node.Send(connect, &wire.CommitRegion{
			FederationHandle: fed.Handle,
			Regions: []wire.RegionValue{{
				RegionHandle: region.Handle,
				Bounds:       bounds,
			}},
		})
	}
}

// pushPublications replays every active publication so the freshly
// activated connect knows where interest already exists.
func (d *Dispatcher) pushPublications(fed *federation.Federation, connect handle.ConnectHandle) {
	for _, c := range fed.Model.InteractionClasses() {
		if len(fed.Routing.InteractionPublishingConnects(c.Handle)) == 0 {
			continue
		}
		d.node.Send(connect, &wire.ChangeInteractionClassPublication{
			FederationHandle:       fed.Handle,
			InteractionClassHandle: c.Handle,
			PublicationType:        uint32(routing.Published),
		})
	}

	for _, c := range fed.Model.ObjectClasses() {
		var published []handle.AttributeHandle
		for _, a := range c.Attributes {
			if len(fed.Routing.AttributePublishingConnects(c.Handle, a.Handle)) > 0 {
				published = append(published, a.Handle)
			}
		}
		if len(published) == 0 {
			continue
		}
		d.node.Send(connect, &wire.ChangeObjectClassPublication{
			FederationHandle:  fed.Handle,
			ObjectClassHandle: c.Handle,
			AttributeHandles:  published,
			PublicationType:   uint32(routing.Published),
		})
	}
}
