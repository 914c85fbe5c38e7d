package dispatch

import (
	"fmt"

	"github.com/openrti/rtinode/internal/federation"
	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/rtierr"
	"github.com/openrti/rtinode/internal/wire"
)

func (d *Dispatcher) acceptEnableTimeRegulationRequest(fed *federation.Federation, from handle.ConnectHandle, msg *wire.EnableTimeRegulationRequest) error {
	federate, ok := fed.Federate(msg.FederateHandle)
	if !ok {
		return fmt.Errorf("EnableTimeRegulationRequest from unknown federate: %w", rtierr.ErrMessage)
	}

	fc, ok := fed.ConnectIfPresent(from)
	if !ok {
		return fmt.Errorf("EnableTimeRegulationRequest from a connect outside the federation: %w", rtierr.ErrMessage)
	}

	// A correctly programmed ambassador already denies the request
	// under a permitTimeRegulation=false policy; asking anyway
	// terminates the connection.
	if !fc.IsParent && !fc.TimeRegulationPermitted {
		return fmt.Errorf("EnableTimeRegulationRequest from unauthorized connect: %w", rtierr.ErrMessage)
	}

	if d.node.IsRootServer() || fc.IsParent {
		// The request loops back to the requestor too: every federate,
		// the new regulator included, needs to know whom to wait for.
		if federate.IsTimeRegulating() {
			return fmt.Errorf("EnableTimeRegulationRequest for already regulating federate: %w", rtierr.ErrMessage)
		}
		if err := fed.EnableTimeRegulation(federate.Handle, msg.TimeStamp, msg.CommitID); err != nil {
			return err
		}
		d.fedBroadcastToChildren(fed, noConnect, msg)
	} else {
		d.node.SendToParent(msg)
	}
	return nil
}

func (d *Dispatcher) acceptEnableTimeRegulationResponse(fed *federation.Federation, _ handle.ConnectHandle, msg *wire.EnableTimeRegulationResponse) error {
	d.sendToFederate(fed, msg.FederateHandle, msg)
	return nil
}

func (d *Dispatcher) acceptDisableTimeRegulationRequest(fed *federation.Federation, from handle.ConnectHandle, msg *wire.DisableTimeRegulationRequest) error {
	federate, ok := fed.Federate(msg.FederateHandle)
	if !ok {
		return fmt.Errorf("DisableTimeRegulationRequest from unknown federate: %w", rtierr.ErrMessage)
	}
	if !federate.IsTimeRegulating() {
		return fmt.Errorf("DisableTimeRegulationRequest for non regulating federate: %w", rtierr.ErrMessage)
	}
	// Keep going regardless of partial failures; a dying federate must
	// not leave the regulating set wedged.
	d.fedBroadcast(fed, from, msg)
	return fed.DisableTimeRegulation(federate.Handle)
}

func (d *Dispatcher) acceptCommitLowerBoundTimeStamp(fed *federation.Federation, from handle.ConnectHandle, msg *wire.CommitLowerBoundTimeStamp) error {
	federate, ok := fed.Federate(msg.FederateHandle)
	if !ok {
		return fmt.Errorf("CommitLowerBoundTimeStamp from unknown federate: %w", rtierr.ErrMessage)
	}
	if !federate.IsTimeRegulating() {
		return fmt.Errorf("CommitLowerBoundTimeStamp for non regulating federate: %w", rtierr.ErrMessage)
	}
	federate.CommitLowerBoundTimeStamp(msg.Kind(), msg.TimeStamp, msg.CommitID)

	// Broadcast to everyone, not only time-constrained connects: a
	// non-constrained federate must still be able to compute its own
	// GALT from the regulating federates' commits.
	d.fedBroadcast(fed, from, msg)
	return nil
}

func (d *Dispatcher) acceptCommitLowerBoundTimeStampResponse(fed *federation.Federation, _ handle.ConnectHandle, msg *wire.CommitLowerBoundTimeStampResponse) error {
	d.sendToFederate(fed, msg.FederateHandle, msg)
	return nil
}

func (d *Dispatcher) acceptLockedByNextMessageRequest(fed *federation.Federation, from handle.ConnectHandle, msg *wire.LockedByNextMessageRequest) error {
	// Only connects with regulating federates care.
	for _, connect := range fed.TimeRegulatingConnects() {
		if connect == from {
			continue
		}
		d.fedSend(fed, connect, msg)
	}
	return nil
}

// acceptRequestFederationSave answers the save handshake without
// implementing persistence: the reply is a definite "not saved" so the
// asking ambassador never hangs.
func (d *Dispatcher) acceptRequestFederationSave(fed *federation.Federation, from handle.ConnectHandle, msg *wire.RequestFederationSave) error {
	d.fedSend(fed, from, &wire.FederationSaved{
		FederationHandle: fed.Handle,
		Label:            msg.Label,
		Success:          false,
	})
	return nil
}
