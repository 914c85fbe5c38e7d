package dispatch

import (
	"errors"
	"fmt"

	"github.com/openrti/rtinode/internal/federation"
	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/rtierr"
	"github.com/openrti/rtinode/internal/wire"
	"github.com/openrti/rtinode/internal/wire/handshake"
)

// fedSend delivers msg to one connect participating in fed.
func (d *Dispatcher) fedSend(fed *federation.Federation, to handle.ConnectHandle, msg wire.Message) {
	if fc, ok := fed.ConnectIfPresent(to); ok && fc.Active {
		d.node.Send(to, msg)
	}
}

// fedBroadcast sends msg to every active federation connect except
// the originator.
func (d *Dispatcher) fedBroadcast(fed *federation.Federation, except handle.ConnectHandle, msg wire.Message) {
	for _, fc := range fed.Connects() {
		if fc.Connect == except || !fc.Active {
			continue
		}
		d.node.Send(fc.Connect, msg)
	}
}

// fedBroadcastToChildren sends msg to every active non-parent
// federation connect except the originator.
func (d *Dispatcher) fedBroadcastToChildren(fed *federation.Federation, except handle.ConnectHandle, msg wire.Message) {
	for _, fc := range fed.Connects() {
		if fc.Connect == except || fc.IsParent || !fc.Active {
			continue
		}
		d.node.Send(fc.Connect, msg)
	}
}

// sendToFederate routes msg toward the connect a federate sits behind.
func (d *Dispatcher) sendToFederate(fed *federation.Federation, f handle.FederateHandle, msg wire.Message) {
	federate, ok := fed.Federate(f)
	if !ok || !federate.HasConnect {
		return
	}
	d.fedSend(fed, federate.Connect, msg)
}

// ---------------------------------------------------------------------------
// Create / destroy / enumerate (root-authoritative)

func (d *Dispatcher) acceptCreateAsRoot(from handle.ConnectHandle, msg *wire.CreateFederationExecutionRequest) error {
	if _, exists := d.node.FederationByName(msg.FederationName); exists {
		d.node.Send(from, &wire.CreateFederationExecutionResponse{
			Result: wire.CreateFederationExecutionAlreadyExists,
		})
		return nil
	}

	fed, err := d.node.InsertFederation(msg.FederationName)
	if err != nil {
		d.node.Send(from, &wire.CreateFederationExecutionResponse{
			Result:          wire.CreateRTIinternalError,
			ExceptionString: err.Error(),
		})
		return nil
	}
	fed.LogicalTimeFactoryName = msg.LogicalTimeFactoryName

	for _, mod := range msg.Modules {
		if _, err := fed.Model.Insert(mod.Description()); err != nil {
			d.node.EraseFederation(fed)
			result := wire.CreateRTIinternalError
			if errors.Is(err, rtierr.ErrInconsistentFDD) {
				result = wire.CreateInconsistentFDD
			}
			d.log.Info("create federation execution failed",
				"server", d.node.ServerPath, "federation", msg.FederationName, "error", err)
			d.node.Send(from, &wire.CreateFederationExecutionResponse{
				Result:          result,
				ExceptionString: err.Error(),
			})
			return nil
		}
	}
	d.syncRouting(fed)

	d.log.Info("create federation execution",
		"server", d.node.ServerPath, "federation", msg.FederationName)
	d.metrics.SetFederationsAlive(len(d.node.Federations()))
	d.node.Send(from, &wire.CreateFederationExecutionResponse{Result: wire.CreateSuccess})
	return nil
}

func (d *Dispatcher) acceptDestroyAsRoot(from handle.ConnectHandle, msg *wire.DestroyFederationExecutionRequest) error {
	fed, ok := d.node.FederationByName(msg.FederationName)
	if !ok {
		d.node.Send(from, &wire.DestroyFederationExecutionResponse{
			Result: wire.DestroyFederationExecutionDoesNotExist,
		})
		return nil
	}
	if fed.HasJoinedFederates() {
		d.node.Send(from, &wire.DestroyFederationExecutionResponse{
			Result: wire.DestroyFederatesCurrentlyJoined,
		})
		return nil
	}

	if fed.HasChildConnects() {
		// Children still know the federation; flush them and keep the
		// handle entry until they acknowledge.
		d.broadcastEraseFederationExecution(fed)
		d.node.EraseFederationName(fed)
	} else {
		d.node.EraseFederation(fed)
	}
	d.metrics.SetFederationsAlive(len(d.node.Federations()))

	d.log.Info("destroy federation execution",
		"server", d.node.ServerPath, "federation", msg.FederationName)
	d.node.Send(from, &wire.DestroyFederationExecutionResponse{Result: wire.DestroySuccess})
	return nil
}

func (d *Dispatcher) acceptEnumerateAsRoot(from handle.ConnectHandle, _ *wire.EnumerateFederationExecutionsRequest) error {
	resp := &wire.EnumerateFederationExecutionsResponse{}
	for _, fed := range d.node.Federations() {
		if !d.node.HasFederationName(fed) {
			continue
		}
		resp.Federations = append(resp.Federations, wire.FederationExecutionInformation{
			FederationName:         fed.Name,
			LogicalTimeFactoryName: fed.LogicalTimeFactoryName,
		})
	}
	d.node.Send(from, resp)
	return nil
}

// ---------------------------------------------------------------------------
// Federation replication down the tree

func (d *Dispatcher) acceptInsertFederationExecution(from handle.ConnectHandle, msg *wire.InsertFederationExecution) error {
	if !d.node.IsParentConnect(from) {
		return fmt.Errorf("received InsertFederationExecution through a child connect: %w", rtierr.ErrMessage)
	}
	if fed, ok := d.node.Federation(msg.FederationHandle); ok {
		// Already known. If a destroy dropped the name entry while the
		// handle entry waits for the children's release, a reinsert is
		// a protocol error; otherwise the duplicate is ignored.
		if !d.node.HasFederationName(fed) {
			return fmt.Errorf("reinserting federation %q while erase still pending: %w", msg.FederationName, rtierr.ErrMessage)
		}
		return nil
	}

	fed, err := d.node.InsertFederationWithHandle(msg.FederationHandle, msg.FederationName)
	if err != nil {
		return err
	}
	fed.LogicalTimeFactoryName = msg.LogicalTimeFactoryName
	if v, ok := wire.OptionValue(msg.Options, handshake.KeyPermitTimeRegulation); ok && v == "false" {
		fed.ParentPermitTimeRegulation = false
	}
	fed.Connect(from, true)
	d.metrics.SetFederationsAlive(len(d.node.Federations()))
	d.log.Debug("federation inserted from parent",
		"server", d.node.ServerPath, "federation", msg.FederationName)
	return nil
}

func (d *Dispatcher) acceptShutdownFederationExecution(from handle.ConnectHandle, msg *wire.ShutdownFederationExecution) error {
	if d.node.IsParentConnect(from) {
		return fmt.Errorf("received ShutdownFederationExecution through the parent connect: %w", rtierr.ErrMessage)
	}
	fed, ok := d.node.Federation(msg.FederationHandle)
	if !ok {
		return fmt.Errorf("ShutdownFederationExecution for unknown federation: %w", rtierr.ErrMessage)
	}
	fc, ok := fed.ConnectIfPresent(from)
	if !ok {
		return fmt.Errorf("ShutdownFederationExecution from a connect the federation does not know: %w", rtierr.ErrMessage)
	}
	// The connect may have gained a federate again, or the erase may
	// already be under way.
	if fc.HasFederates() || !fc.Active {
		return nil
	}
	d.eraseFederationExecutionAtConnect(fed, from)
	return nil
}

func (d *Dispatcher) acceptEraseFederationExecution(from handle.ConnectHandle, msg *wire.EraseFederationExecution) error {
	if !d.node.IsParentConnect(from) {
		return fmt.Errorf("received EraseFederationExecution through a child connect: %w", rtierr.ErrMessage)
	}
	fed, ok := d.node.Federation(msg.FederationHandle)
	if !ok {
		return fmt.Errorf("EraseFederationExecution for unknown federation: %w", rtierr.ErrMessage)
	}

	if fed.HasChildConnects() {
		d.broadcastEraseFederationExecution(fed)
		d.node.EraseFederationName(fed)
	} else {
		d.node.SendToParent(&wire.ReleaseFederationHandle{FederationHandle: fed.Handle})
		d.node.EraseFederation(fed)
	}
	d.metrics.SetFederationsAlive(len(d.node.Federations()))
	return nil
}

func (d *Dispatcher) acceptReleaseFederationHandle(from handle.ConnectHandle, msg *wire.ReleaseFederationHandle) error {
	if d.node.IsParentConnect(from) {
		return fmt.Errorf("received ReleaseFederationHandle through the parent connect: %w", rtierr.ErrMessage)
	}
	fed, ok := d.node.Federation(msg.FederationHandle)
	if !ok {
		return fmt.Errorf("ReleaseFederationHandle for unknown federation: %w", rtierr.ErrMessage)
	}
	d.log.Info("release federation handle",
		"server", d.node.ServerPath, "federation", fed.Name)

	fc, ok := fed.ConnectIfPresent(from)
	if !ok || fc.Active {
		// Not waiting on this connect.
		return nil
	}
	fed.EraseConnect(from)
	if fed.HasChildConnects() {
		return nil
	}
	// Only federations we were asked to flush are released; one still
	// in the name index is merely between federates.
	if d.node.HasFederationName(fed) {
		return nil
	}
	if d.node.IsRootServer() {
		d.node.EraseFederation(fed)
		d.metrics.SetFederationsAlive(len(d.node.Federations()))
		return nil
	}
	d.node.SendToParent(msg)
	d.node.EraseFederation(fed)
	d.metrics.SetFederationsAlive(len(d.node.Federations()))
	return nil
}

// eraseFederationExecutionAtConnect deactivates a child connect's view
// of fed: resign notifies for every remaining federate, then the erase
// message. The FederationConnect stays, inactive, until the child
// acknowledges with ReleaseFederationHandle.
func (d *Dispatcher) eraseFederationExecutionAtConnect(fed *federation.Federation, connect handle.ConnectHandle) {
	fc, ok := fed.ConnectIfPresent(connect)
	if !ok || fc.IsParent || !fc.Active {
		return
	}
	for _, f := range fed.Federates() {
		d.node.Send(connect, &wire.ResignFederateNotify{
			FederationHandle: fed.Handle,
			FederateHandle:   f.Handle,
		})
	}
	d.node.Send(connect, &wire.EraseFederationExecution{FederationHandle: fed.Handle})
	fc.Active = false
}

// broadcastEraseFederationExecution flushes fed from every child
// connect.
func (d *Dispatcher) broadcastEraseFederationExecution(fed *federation.Federation) {
	for _, fc := range fed.Connects() {
		if fc.IsParent {
			continue
		}
		d.eraseFederationExecutionAtConnect(fed, fc.Connect)
	}
}

// ---------------------------------------------------------------------------
// Join

func (d *Dispatcher) acceptJoinAsRoot(from handle.ConnectHandle, msg *wire.JoinFederationExecutionRequest) error {
	// The ambassador filters RTI-reserved names; seeing one here means
	// a broken or hostile peer.
	if err := validateJoinName(msg.FederateName); err != nil {
		return err
	}

	fed, ok := d.node.FederationByName(msg.FederationName)
	if !ok {
		d.log.Info("join failed for unknown federation",
			"server", d.node.ServerPath, "federation", msg.FederationName)
		d.node.Send(from, &wire.JoinFederationExecutionResponse{
			Result:          wire.JoinFederationExecutionDoesNotExist,
			ExceptionString: msg.FederationName,
		})
		return nil
	}
	return d.joinFederation(fed, from, msg)
}

func (d *Dispatcher) joinFederation(fed *federation.Federation, from handle.ConnectHandle, msg *wire.JoinFederationExecutionRequest) error {
	if msg.FederateName != "" {
		if _, exists := fed.FederateByName(msg.FederateName); exists {
			d.node.Send(from, &wire.JoinFederationExecutionResponse{
				Result:          wire.JoinFederateNameAlreadyInUse,
				ExceptionString: msg.FederateName,
			})
			return nil
		}
	}

	// Try to extend the object model first; nothing else happened yet,
	// so a module conflict leaves no state to unwind.
	var newModules []wire.FOMModule
	for _, mod := range msg.Modules {
		before := fed.Model.ModuleCount()
		if _, err := fed.Model.Insert(mod.Description()); err != nil {
			d.node.Send(from, &wire.JoinFederationExecutionResponse{
				Result:          wire.JoinInconsistentFDD,
				ExceptionString: err.Error(),
			})
			return nil
		}
		if fed.Model.ModuleCount() > before {
			newModules = append(newModules, mod)
		}
	}
	d.syncRouting(fed)

	if len(newModules) > 0 {
		d.fedBroadcastToChildren(fed, from, &wire.InsertModules{
			FederationHandle: fed.Handle,
			Modules:          newModules,
		})
	}

	federate, err := fed.Join(msg.FederateName, msg.FederateType, federation.ResignCallbacksThenNothing, from)
	if err != nil {
		d.node.Send(from, &wire.JoinFederationExecutionResponse{
			Result:          wire.JoinFederateNameAlreadyInUse,
			ExceptionString: msg.FederateName,
		})
		return nil
	}
	d.metrics.SetFederatesJoined(d.totalFederates())

	d.pushFederation(fed, from)

	d.fedSend(fed, from, &wire.JoinFederationExecutionResponse{
		FederationHandle: fed.Handle,
		FederateHandle:   federate.Handle,
		FederateName:     federate.Name,
		FederateType:     federate.Type,
		Result:           wire.JoinSuccess,
	})

	notify := &wire.JoinFederateNotify{
		FederationHandle: fed.Handle,
		FederateHandle:   federate.Handle,
		FederateName:     federate.Name,
		FederateType:     federate.Type,
	}
	d.fedBroadcastToChildren(fed, from, notify)

	// Auto-extending synchronization points pick up the newcomer.
	for _, sync := range fed.SynchronizationPoints() {
		if !sync.AddJoiningFederates {
			continue
		}
		d.fedBroadcastToChildren(fed, noConnect, &wire.AnnounceSynchronizationPoint{
			FederationHandle:    fed.Handle,
			Label:               sync.Label,
			Tag:                 sync.Tag,
			AddJoiningFederates: true,
			FederateHandles:     []handle.FederateHandle{federate.Handle},
		})
	}
	return nil
}

func (d *Dispatcher) acceptJoinResponse(from handle.ConnectHandle, msg *wire.JoinFederationExecutionResponse) error {
	if !d.node.IsParentConnect(from) {
		return fmt.Errorf("received JoinFederationExecutionResponse through a child connect: %w", rtierr.ErrMessage)
	}
	if len(d.pending) == 0 {
		return fmt.Errorf("no pending JoinFederationExecutionResponse: %w", rtierr.ErrMessage)
	}
	origin := d.pending[0]

	if msg.Result == wire.JoinSuccess {
		fed, ok := d.node.Federation(msg.FederationHandle)
		if !ok {
			return fmt.Errorf("successful join response for unknown federation handle: %w", rtierr.ErrMessage)
		}
		if origin.hasOrigin {
			fed.Connect(origin.origin, false)
			d.pushFederation(fed, origin.origin)
			if _, err := fed.InsertFederate(msg.FederateHandle, msg.FederateName, msg.FederateType, origin.origin); err != nil {
				return err
			}
			d.metrics.SetFederatesJoined(d.totalFederates())
			d.fedBroadcastToChildren(fed, origin.origin, &wire.JoinFederateNotify{
				FederationHandle: msg.FederationHandle,
				FederateHandle:   msg.FederateHandle,
				FederateName:     msg.FederateName,
				FederateType:     msg.FederateType,
			})
		}
	}

	if err := d.respondDownstream(from, msg); err != nil {
		return err
	}

	if msg.Result == wire.JoinSuccess && !origin.hasOrigin {
		// The originating connect died while the join was in flight;
		// take the federate out again.
		return d.dispatch(from, &wire.ResignFederationExecutionRequest{
			FederationHandle: msg.FederationHandle,
			FederateHandle:   msg.FederateHandle,
			ResignAction:     uint32(federation.ResignDeleteObjectsThenDivest),
		})
	}
	return nil
}

func (d *Dispatcher) acceptJoinFederateNotify(fed *federation.Federation, from handle.ConnectHandle, msg *wire.JoinFederateNotify) error {
	if _, exists := fed.Federate(msg.FederateHandle); exists {
		return fmt.Errorf("JoinFederateNotify for already known federate: %w", rtierr.ErrMessage)
	}
	if _, err := fed.InsertFederate(msg.FederateHandle, msg.FederateName, msg.FederateType, from); err != nil {
		return err
	}
	d.metrics.SetFederatesJoined(d.totalFederates())
	d.fedBroadcastToChildren(fed, from, msg)
	return nil
}

// ---------------------------------------------------------------------------
// Resign

func (d *Dispatcher) acceptResignRequest(fed *federation.Federation, from handle.ConnectHandle, msg *wire.ResignFederationExecutionRequest) error {
	federate, ok := fed.Federate(msg.FederateHandle)
	if !ok {
		return fmt.Errorf("ResignFederationExecutionRequest for unknown federate: %w", rtierr.ErrMessage)
	}
	if federate.ResignPending {
		// Already resigning, just waiting for the notifies.
		return nil
	}
	federate.ResignPending = true
	federate.ResignAction = msg.Action()

	if federate.IsTimeRegulating() {
		if err := fed.DisableTimeRegulation(federate.Handle); err == nil {
			d.fedBroadcast(fed, from, &wire.DisableTimeRegulationRequest{
				FederationHandle: fed.Handle,
				FederateHandle:   federate.Handle,
			})
		}
	}

	// Outstanding synchronization points get an unsuccessful
	// achievement on the federate's behalf.
	for _, sync := range fed.SynchronizationPoints() {
		if !sync.IsWaitingOn(federate.Handle) {
			continue
		}
		achieved := &wire.SynchronizationPointAchieved{
			FederationHandle: fed.Handle,
			Label:            sync.Label,
			Achieved: []wire.FederateAchievedPair{
				{FederateHandle: federate.Handle, Successful: false},
			},
		}
		if err := d.acceptSyncPointAchieved(fed, from, achieved); err != nil {
			return err
		}
	}

	if !d.node.IsRootServer() {
		d.node.SendToParent(msg)
		return nil
	}

	d.applyResignAction(fed, federate)

	d.fedBroadcastToChildren(fed, noConnect, &wire.ResignFederateNotify{
		FederationHandle: fed.Handle,
		FederateHandle:   federate.Handle,
	})

	originConnect := federate.Connect
	hadConnect := federate.HasConnect
	if err := fed.Resign(federate.Handle); err != nil {
		return err
	}
	d.metrics.SetFederatesJoined(d.totalFederates())

	if hadConnect {
		if fc, ok := fed.ConnectIfPresent(originConnect); ok && !fc.IsParent && !fc.HasFederates() {
			d.eraseFederationExecutionAtConnect(fed, originConnect)
		}
	}
	return nil
}

// applyResignAction runs the federate's resign policy against the
// instances its connect owns. Without full ownership management, the
// owner is tracked per connect; the policy only applies when the
// resigning federate is the last one on its connect, otherwise the
// siblings keep the connect's objects alive.
func (d *Dispatcher) applyResignAction(fed *federation.Federation, federate *federation.Federate) {
	if !federate.HasConnect {
		return
	}
	fc, ok := fed.ConnectIfPresent(federate.Connect)
	if !ok {
		return
	}
	federates := fc.Federates()
	if len(federates) != 1 || federates[0] != federate.Handle {
		return
	}

	action := federate.ResignAction
	for _, inst := range fed.Instances.Instances() {
		class, ok := fed.Model.ObjectClass(inst.Class)
		if !ok {
			continue
		}
		priv := inst.Attribute(class.PrivilegeToDeleteHandle())
		if !priv.HasOwner || priv.Owner != federate.Connect {
			continue
		}
		if action.DeletesOwnedObjects() {
			del := &wire.DeleteObjectInstance{
				FederationHandle:     fed.Handle,
				FederateHandle:       federate.Handle,
				ObjectInstanceHandle: inst.Handle,
			}
			if err := d.acceptDeleteObjectInstance(fed, federate.Connect, del); err != nil {
				d.log.Warn("resign-time object deletion failed",
					"server", d.node.ServerPath, "error", err)
			}
			continue
		}
		if action.DivestsAttributes() {
			for _, ia := range inst.Attributes {
				if ia.HasOwner && ia.Owner == federate.Connect {
					ia.ClearOwner()
				}
			}
		}
	}

	for _, region := range fed.RegionsOfFederate(federate.Handle) {
		erase := &wire.EraseRegion{
			FederationHandle: fed.Handle,
			Regions:          []handle.RegionHandle{region.Handle},
		}
		if err := d.acceptEraseRegion(fed, federate.Connect, erase); err != nil {
			d.log.Warn("resign-time region erase failed",
				"server", d.node.ServerPath, "error", err)
		}
	}
}

func (d *Dispatcher) acceptResignFederateNotify(fed *federation.Federation, from handle.ConnectHandle, msg *wire.ResignFederateNotify) error {
	federate, ok := fed.Federate(msg.FederateHandle)
	if !ok {
		return fmt.Errorf("ResignFederateNotify for unknown federate: %w", rtierr.ErrMessage)
	}
	d.fedBroadcastToChildren(fed, from, msg)

	originConnect := federate.Connect
	hadConnect := federate.HasConnect
	if err := fed.Resign(federate.Handle); err != nil {
		return err
	}
	d.metrics.SetFederatesJoined(d.totalFederates())

	if !hadConnect {
		return nil
	}
	fc, ok := fed.ConnectIfPresent(originConnect)
	if !ok || fc.IsParent || !fc.Active || fc.HasFederates() {
		return nil
	}
	d.eraseFederationExecutionAtConnect(fed, originConnect)
	return nil
}

func (d *Dispatcher) acceptChangeAutomaticResignDirective(fed *federation.Federation, from handle.ConnectHandle, msg *wire.ChangeAutomaticResignDirective) error {
	federate, ok := fed.Federate(msg.FederateHandle)
	if !ok {
		return fmt.Errorf("ChangeAutomaticResignDirective for unknown federate: %w", rtierr.ErrMessage)
	}
	federate.ResignAction = federation.ResignAction(msg.ResignAction)
	d.fedBroadcast(fed, from, msg)
	return nil
}

// ---------------------------------------------------------------------------
// Modules

func (d *Dispatcher) acceptInsertModules(fed *federation.Federation, from handle.ConnectHandle, msg *wire.InsertModules) error {
	d.fedBroadcastToChildren(fed, from, msg)
	for _, mod := range msg.Modules {
		if _, err := fed.Model.Insert(mod.Description()); err != nil {
			// The root already vetted these modules; a conflict here
			// means the tree diverged.
			return fmt.Errorf("replicated module insert failed: %v: %w", err, rtierr.ErrMessage)
		}
	}
	d.syncRouting(fed)
	return nil
}

// totalFederates sums joined federates over every federation.
func (d *Dispatcher) totalFederates() int {
	total := 0
	for _, fed := range d.node.Federations() {
		total += fed.FederateCount()
	}
	return total
}

// validateJoinName rejects RTI-reserved federate names from clients.
func validateJoinName(name string) error {
	if len(name) >= 3 && name[:3] == "HLA" {
		return fmt.Errorf("federate name %q uses the reserved HLA prefix: %w", name, rtierr.ErrMessage)
	}
	return nil
}
