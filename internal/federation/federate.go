package federation

import "github.com/openrti/rtinode/internal/handle"

// Federate is one joined federate.
type Federate struct {
	Handle       handle.FederateHandle
	Name         string
	Type         string
	ResignAction ResignAction

	// ResignPending is set the moment a ResignFederationExecutionRequest
	// is accepted; it stops further allocations (object instance
	// handles, region creation, ...) on the federate's behalf while the
	// resign is still propagating.
	ResignPending bool

	Connect    handle.ConnectHandle
	HasConnect bool

	timeAdvanceTimestamp uint64
	nextMessageTimestamp uint64
	commitID             uint64
	hasTimeState         bool

	Regions map[handle.RegionHandle]struct{}
}

func newFederate(h handle.FederateHandle, name, typ string, action ResignAction, connect handle.ConnectHandle) *Federate {
	return &Federate{
		Handle:       h,
		Name:         name,
		Type:         typ,
		ResignAction: action,
		Connect:      connect,
		HasConnect:   true,
		Regions:      make(map[handle.RegionHandle]struct{}),
	}
}

// IsTimeRegulating reports whether the federate currently regulates:
// set by EnableTimeRegulation or a commit, cleared by
// DisableTimeRegulation.
func (f *Federate) IsTimeRegulating() bool { return f.hasTimeState }

// TimeState returns the federate's tracked timestamps and commit id.
// ok is false if EnableTimeRegulation has never been processed.
func (f *Federate) TimeState() (advance, nextMessage uint64, commitID uint64, ok bool) {
	return f.timeAdvanceTimestamp, f.nextMessageTimestamp, f.commitID, f.hasTimeState
}

// TimeRegulationKind selects which timestamp(s) a
// CommitLowerBoundTimeStamp message updates.
type TimeRegulationKind int

const (
	TimeAdvanceCommit TimeRegulationKind = iota
	NextMessageCommit
	TimeAdvanceAndNextMessageCommit
)

// EnableTimeRegulation seeds the federate's initial timestamps from an
// EnableTimeRegulationRequest.
func (f *Federate) EnableTimeRegulation(initial uint64) {
	f.timeAdvanceTimestamp = initial
	f.nextMessageTimestamp = initial
	f.hasTimeState = true
}

// CommitLowerBoundTimeStamp applies a commit, bumping commitID.
func (f *Federate) CommitLowerBoundTimeStamp(kind TimeRegulationKind, ts uint64, commitID uint64) {
	switch kind {
	case TimeAdvanceCommit:
		f.timeAdvanceTimestamp = ts
	case NextMessageCommit:
		f.nextMessageTimestamp = ts
	case TimeAdvanceAndNextMessageCommit:
		f.timeAdvanceTimestamp = ts
		f.nextMessageTimestamp = ts
	}
	f.commitID = commitID
	f.hasTimeState = true
}

// DisableTimeRegulation clears regulating state on resign or explicit
// DisableTimeRegulationRequest.
func (f *Federate) DisableTimeRegulation() {
	f.hasTimeState = false
	f.timeAdvanceTimestamp = 0
	f.nextMessageTimestamp = 0
	f.commitID = 0
}
