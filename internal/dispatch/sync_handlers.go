package dispatch

import (
	"fmt"

	"github.com/openrti/rtinode/internal/federation"
	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/rtierr"
	"github.com/openrti/rtinode/internal/wire"
)

func (d *Dispatcher) acceptRegisterSyncPoint(fed *federation.Federation, from handle.ConnectHandle, msg *wire.RegisterFederationSynchronizationPointRequest) error {
	// The ambassador validates labels; an empty one here is a broken
	// peer.
	if msg.Label == "" {
		return fmt.Errorf("empty label in RegisterFederationSynchronizationPointRequest: %w", rtierr.ErrMessage)
	}

	if !d.node.IsRootServer() {
		d.pushPending(from, msg)
		d.node.SendToParent(msg)
		return nil
	}

	var explicit []handle.FederateHandle
	addJoining := len(msg.FederateHandles) == 0
	if !addJoining {
		explicit = make([]handle.FederateHandle, 0, len(msg.FederateHandles))
		for _, f := range msg.FederateHandles {
			if _, ok := fed.Federate(f); ok {
				explicit = append(explicit, f)
			}
		}
	}

	sync, err := fed.RegisterSynchronizationPoint(msg.Label, msg.Tag, addJoining, explicit)
	if err != nil {
		d.fedSend(fed, from, &wire.RegisterFederationSynchronizationPointResponse{
			FederationHandle: fed.Handle,
			FederateHandle:   msg.FederateHandle,
			Label:            msg.Label,
			Result:           wire.RegisterSyncPointLabelNotUnique,
		})
		return nil
	}

	d.fedSend(fed, from, &wire.RegisterFederationSynchronizationPointResponse{
		FederationHandle: fed.Handle,
		FederateHandle:   msg.FederateHandle,
		Label:            msg.Label,
		Result:           wire.RegisterSyncPointSuccess,
	})

	d.announceSyncPointPerConnect(fed, sync, sync.Waiting())
	return nil
}

// announceSyncPointPerConnect routes one announce per connect, each
// carrying only the federates living behind that connect.
func (d *Dispatcher) announceSyncPointPerConnect(fed *federation.Federation, sync *federation.Synchronization, federates []handle.FederateHandle) {
	perConnect := d.groupFederatesByConnect(fed, federates)
	for connect, handles := range perConnect {
		d.fedSend(fed, connect, &wire.AnnounceSynchronizationPoint{
			FederationHandle:    fed.Handle,
			Label:               sync.Label,
			Tag:                 sync.Tag,
			AddJoiningFederates: sync.AddJoiningFederates,
			FederateHandles:     handles,
		})
	}
}

// groupFederatesByConnect buckets federates by the connect they sit
// behind; federates without a connect (already resigning) drop out.
func (d *Dispatcher) groupFederatesByConnect(fed *federation.Federation, federates []handle.FederateHandle) map[handle.ConnectHandle][]handle.FederateHandle {
	out := make(map[handle.ConnectHandle][]handle.FederateHandle)
	for _, fh := range federates {
		f, ok := fed.Federate(fh)
		if !ok || !f.HasConnect {
			continue
		}
		out[f.Connect] = append(out[f.Connect], fh)
	}
	return out
}

func (d *Dispatcher) acceptRegisterSyncPointResponse(fed *federation.Federation, _ handle.ConnectHandle, msg *wire.RegisterFederationSynchronizationPointResponse) error {
	// Deliver to the registering federate, wherever it sits below us.
	d.sendToFederate(fed, msg.FederateHandle, msg)
	return nil
}

func (d *Dispatcher) acceptAnnounceSyncPoint(fed *federation.Federation, from handle.ConnectHandle, msg *wire.AnnounceSynchronizationPoint) error {
	sync, created := fed.AnnounceSynchronizationPoint(msg.Label, msg.Tag, msg.AddJoiningFederates, msg.FederateHandles)
	if !created {
		// Incremental extension is only legal on an auto-extending
		// point.
		if !sync.AddJoiningFederates {
			return fmt.Errorf("announce extends fixed synchronization point %q: %w", msg.Label, rtierr.ErrMessage)
		}
		for _, f := range msg.FederateHandles {
			sync.AddWaitingFederate(f)
		}
	}
	d.announceSyncPointPerConnect(fed, sync, msg.FederateHandles)
	return nil
}

func (d *Dispatcher) acceptSyncPointAchieved(fed *federation.Federation, from handle.ConnectHandle, msg *wire.SynchronizationPointAchieved) error {
	sync, ok := fed.SynchronizationPoint(msg.Label)
	if !ok {
		return fmt.Errorf("SynchronizationPointAchieved for unknown label %q: %w", msg.Label, rtierr.ErrMessage)
	}

	if !d.node.IsRootServer() {
		for _, pair := range msg.Achieved {
			sync.Achieve(pair.FederateHandle, pair.Successful)
		}
		d.node.SendToParent(msg)
		if sync.IsComplete() {
			// The FederationSynchronized travelling back down will
			// recreate nothing; local bookkeeping is done.
			fed.EraseSynchronizationPoint(msg.Label)
		}
		return nil
	}

	complete := false
	for _, pair := range msg.Achieved {
		complete = sync.Achieve(pair.FederateHandle, pair.Successful)
	}
	if !complete {
		return nil
	}

	d.broadcastFederationSynchronized(fed, sync)
	fed.EraseSynchronizationPoint(msg.Label)
	return nil
}

// broadcastFederationSynchronized tells every connect that had any
// achieving federate that the point completed, each message carrying
// that connect's federates.
func (d *Dispatcher) broadcastFederationSynchronized(fed *federation.Federation, sync *federation.Synchronization) {
	achieved := sync.Achieved()
	all := make([]handle.FederateHandle, 0, len(achieved))
	for f := range achieved {
		all = append(all, f)
	}
	perConnect := d.groupFederatesByConnect(fed, all)
	for connect, handles := range perConnect {
		pairs := make([]wire.FederateAchievedPair, 0, len(handles))
		for _, f := range handles {
			pairs = append(pairs, wire.FederateAchievedPair{FederateHandle: f, Successful: achieved[f]})
		}
		d.fedSend(fed, connect, &wire.FederationSynchronized{
			FederationHandle: fed.Handle,
			Label:            sync.Label,
			Achieved:         pairs,
		})
	}
}

func (d *Dispatcher) acceptFederationSynchronized(fed *federation.Federation, from handle.ConnectHandle, msg *wire.FederationSynchronized) error {
	all := make([]handle.FederateHandle, 0, len(msg.Achieved))
	success := make(map[handle.FederateHandle]bool, len(msg.Achieved))
	for _, pair := range msg.Achieved {
		all = append(all, pair.FederateHandle)
		success[pair.FederateHandle] = pair.Successful
	}

	perConnect := d.groupFederatesByConnect(fed, all)
	for connect, handles := range perConnect {
		pairs := make([]wire.FederateAchievedPair, 0, len(handles))
		for _, f := range handles {
			pairs = append(pairs, wire.FederateAchievedPair{FederateHandle: f, Successful: success[f]})
		}
		d.fedSend(fed, connect, &wire.FederationSynchronized{
			FederationHandle: fed.Handle,
			Label:            msg.Label,
			Achieved:         pairs,
		})
	}
	fed.EraseSynchronizationPoint(msg.Label)
	return nil
}
