package federation

import (
	"fmt"

	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/rtierr"
)

// Time-management bookkeeping: which connects carry time-regulating
// federates, plus the per-federate timestamps and commit ids tracked
// on Federate. The regulating set lives on the FederationConnect so
// connect teardown and resign drain it in one place.

// EnableTimeRegulation marks federate as time regulating, seeds its
// timestamps from the request's initial value, and records its connect
// in the regulating set. A federate that is already regulating is a
// protocol error from the peer.
func (fed *Federation) EnableTimeRegulation(f handle.FederateHandle, initial, commitID uint64) error {
	federate, ok := fed.federates[f]
	if !ok {
		return fmt.Errorf("enable time regulation: federate %d: %w", uint64(f), rtierr.ErrFederateNotFound)
	}
	if federate.IsTimeRegulating() {
		return fmt.Errorf("enable time regulation: federate %d already regulating: %w", uint64(f), rtierr.ErrMessage)
	}
	federate.EnableTimeRegulation(initial)
	federate.commitID = commitID
	if federate.HasConnect {
		if fc, ok := fed.connects[federate.Connect]; ok {
			fc.addTimeRegulating(f)
		}
	}
	return nil
}

// DisableTimeRegulation clears federate's regulating state.
func (fed *Federation) DisableTimeRegulation(f handle.FederateHandle) error {
	federate, ok := fed.federates[f]
	if !ok {
		return fmt.Errorf("disable time regulation: federate %d: %w", uint64(f), rtierr.ErrFederateNotFound)
	}
	if !federate.IsTimeRegulating() {
		return fmt.Errorf("disable time regulation: federate %d not regulating: %w", uint64(f), rtierr.ErrMessage)
	}
	federate.DisableTimeRegulation()
	if federate.HasConnect {
		if fc, ok := fed.connects[federate.Connect]; ok {
			fc.removeTimeRegulating(f)
		}
	}
	return nil
}

// TimeRegulatingConnects returns the connects with at least one
// time-regulating federate, the target set for
// LockedByNextMessageRequest fanout.
func (fed *Federation) TimeRegulatingConnects() []handle.ConnectHandle {
	var out []handle.ConnectHandle
	for h, fc := range fed.connects {
		if fc.IsTimeRegulating() {
			out = append(out, h)
		}
	}
	return out
}

// TimeRegulatingFederates returns every regulating federate, for
// replaying EnableTimeRegulation and CommitLowerBoundTimeStamp state
// to a connect that is being brought up to date.
func (fed *Federation) TimeRegulatingFederates() []*Federate {
	var out []*Federate
	for _, f := range fed.federates {
		if f.IsTimeRegulating() {
			out = append(out, f)
		}
	}
	return out
}

// GALT derives the greatest available logical time from the regulating
// federates' committed lower bounds: the minimum over their
// time-advance timestamps. ok is false when no federate regulates.
func (fed *Federation) GALT() (uint64, bool) {
	var galt uint64
	found := false
	for _, f := range fed.federates {
		advance, _, _, regulating := f.TimeState()
		if !regulating {
			continue
		}
		if !found || advance < galt {
			galt = advance
		}
		found = true
	}
	return galt, found
}
