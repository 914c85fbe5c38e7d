package federation

import "github.com/openrti/rtinode/internal/handle"

// Synchronization is a registered synchronization point. Complete once Waiting is empty.
type Synchronization struct {
	Label               string
	Tag                 string
	AddJoiningFederates bool

	waiting  map[handle.FederateHandle]struct{}
	achieved map[handle.FederateHandle]bool // value: successful?
}

func newSynchronization(label, tag string, addJoining bool, initialWaiting []handle.FederateHandle) *Synchronization {
	waiting := make(map[handle.FederateHandle]struct{}, len(initialWaiting))
	for _, f := range initialWaiting {
		waiting[f] = struct{}{}
	}
	return &Synchronization{
		Label:               label,
		Tag:                 tag,
		AddJoiningFederates: addJoining,
		waiting:             waiting,
		achieved:            make(map[handle.FederateHandle]bool),
	}
}

// AddWaitingFederate adds f to the waiting set — used both at
// registration time for an explicit federate list and, for an
// auto-extending point, whenever a new federate joins the federation.
func (s *Synchronization) AddWaitingFederate(f handle.FederateHandle) {
	s.waiting[f] = struct{}{}
}

// Achieve moves f from waiting to achieved. Reports whether the
// synchronization point is now complete (waiting empty).
func (s *Synchronization) Achieve(f handle.FederateHandle, successful bool) (complete bool) {
	delete(s.waiting, f)
	s.achieved[f] = successful
	return len(s.waiting) == 0
}

// IsComplete reports whether every waiting federate has achieved.
func (s *Synchronization) IsComplete() bool { return len(s.waiting) == 0 }

// Waiting returns the federates still pending.
func (s *Synchronization) Waiting() []handle.FederateHandle {
	out := make([]handle.FederateHandle, 0, len(s.waiting))
	for f := range s.waiting {
		out = append(out, f)
	}
	return out
}

// Achieved returns the achieved set, federate→successful.
func (s *Synchronization) Achieved() map[handle.FederateHandle]bool {
	return s.achieved
}

// IsWaitingOn reports whether f has not yet achieved this point — the
// check used at resign time to synthesize an unsuccessful achievement
// for a departing federate.
func (s *Synchronization) IsWaitingOn(f handle.FederateHandle) bool {
	_, ok := s.waiting[f]
	return ok
}
