package federation

import (
	"fmt"

	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/instancemodel"
	"github.com/openrti/rtinode/internal/objectmodel"
	"github.com/openrti/rtinode/internal/routing"
	"github.com/openrti/rtinode/internal/rtierr"
)

// Federation aggregates everything scoped to one federation execution
// on this node: its object model, its object instance registry, its
// joined federates, its per-connect bookkeeping, and its
// synchronization points.
type Federation struct {
	Handle handle.FederationHandle
	Name   string

	Model     *objectmodel.Model
	Instances *instancemodel.Registry
	Routing   *routing.Table

	// LogicalTimeFactoryName identifies the pluggable logical-time
	// implementation the federates agreed on at create time. The
	// server never interprets timestamps beyond ordering; it only
	// carries the name so late joiners can instantiate the same
	// factory.
	LogicalTimeFactoryName string

	// ParentPermitTimeRegulation is the time-regulation policy handed
	// down with InsertFederationExecution; it combines with the node's
	// own policy to decide what each child connect is permitted.
	ParentPermitTimeRegulation bool

	federateAlloc   *handle.Allocator[handle.FederateHandle]
	federates       map[handle.FederateHandle]*Federate
	federatesByName map[string]handle.FederateHandle

	connects map[handle.ConnectHandle]*FederationConnect

	regions map[handle.RegionHandle]*objectmodel.Region

	synchronizations map[string]*Synchronization
}

// New creates an empty Federation, ready to accept joins.
func New(h handle.FederationHandle, name string) *Federation {
	return &Federation{
		Handle:                     h,
		Name:                       name,
		ParentPermitTimeRegulation: true,
		Model:                      objectmodel.NewModel(),
		Instances:                  instancemodel.NewRegistry(),
		Routing:                    routing.NewTable(),
		federateAlloc:              handle.NewAllocator[handle.FederateHandle](),
		federates:                  make(map[handle.FederateHandle]*Federate),
		federatesByName:            make(map[string]handle.FederateHandle),
		connects:                   make(map[handle.ConnectHandle]*FederationConnect),
		regions:                    make(map[handle.RegionHandle]*objectmodel.Region),
		synchronizations:           make(map[string]*Synchronization),
	}
}

// Connect returns (creating if absent) the FederationConnect for c.
func (fed *Federation) Connect(c handle.ConnectHandle, isParent bool) *FederationConnect {
	fc, ok := fed.connects[c]
	if !ok {
		fc = newFederationConnect(c, isParent)
		fed.connects[c] = fc
	}
	return fc
}

// ConnectIfPresent looks up an existing FederationConnect without
// creating one.
func (fed *Federation) ConnectIfPresent(c handle.ConnectHandle) (*FederationConnect, bool) {
	fc, ok := fed.connects[c]
	return fc, ok
}

// EraseConnect drops all bookkeeping for c, e.g. once its last
// federate has resigned and EraseFederationExecution has been sent.
func (fed *Federation) EraseConnect(c handle.ConnectHandle) {
	delete(fed.connects, c)
}

func (fed *Federation) Federate(h handle.FederateHandle) (*Federate, bool) {
	f, ok := fed.federates[h]
	return f, ok
}

func (fed *Federation) FederateByName(name string) (*Federate, bool) {
	h, ok := fed.federatesByName[name]
	if !ok {
		return nil, false
	}
	return fed.federates[h], true
}

// Federates returns every joined federate, for broadcast fanout.
func (fed *Federation) Federates() []*Federate {
	out := make([]*Federate, 0, len(fed.federates))
	for _, f := range fed.federates {
		out = append(out, f)
	}
	return out
}

// Join admits a new federate on connect, failing with
// ErrFederateNameInUse if the name collides. The
// federate is also added to the waiting set of every auto-extending
// synchronization point already registered.
func (fed *Federation) Join(name, typ string, action ResignAction, connect handle.ConnectHandle) (*Federate, error) {
	if name != "" {
		if _, exists := fed.federatesByName[name]; exists {
			return nil, fmt.Errorf("federate %q: %w", name, rtierr.ErrFederateNameInUse)
		}
	}

	h := fed.federateAlloc.Allocate()
	if name == "" {
		// An anonymous join gets an RTI-assigned name; the HLA prefix
		// is reserved, so it can never collide with a client name.
		name = fmt.Sprintf("HLAfederate%05d", uint64(h))
	}
	f := newFederate(h, name, typ, action, connect)
	fed.federates[h] = f
	fed.federatesByName[name] = h

	fc := fed.Connect(connect, false)
	fc.addFederate(h)

	for _, sync := range fed.synchronizations {
		if sync.AddJoiningFederates {
			sync.AddWaitingFederate(h)
		}
	}

	return f, nil
}

// InsertFederate records a federate whose handle was already allocated
// at the root, learned from a JoinFederationExecutionResponse or a
// JoinFederateNotify travelling down the tree. Fails if the handle is
// already known.
func (fed *Federation) InsertFederate(h handle.FederateHandle, name, typ string, connect handle.ConnectHandle) (*Federate, error) {
	if _, exists := fed.federates[h]; exists {
		return nil, fmt.Errorf("federate handle %d already joined: %w", uint64(h), rtierr.ErrMessage)
	}
	if _, exists := fed.federatesByName[name]; exists {
		return nil, fmt.Errorf("federate %q: %w", name, rtierr.ErrFederateNameInUse)
	}
	if err := fed.federateAlloc.AllocateSpecific(h); err != nil {
		return nil, fmt.Errorf("federate handle %d: %v: %w", uint64(h), err, rtierr.ErrMessage)
	}
	f := newFederate(h, name, typ, ResignCallbacksThenNothing, connect)
	fed.federates[h] = f
	fed.federatesByName[name] = h

	fc := fed.Connect(connect, false)
	fc.addFederate(h)

	for _, sync := range fed.synchronizations {
		if sync.AddJoiningFederates {
			sync.AddWaitingFederate(h)
		}
	}
	return f, nil
}

// HasJoinedFederates reports whether any federate is still joined, the
// FederatesCurrentlyJoined check on destroy.
func (fed *Federation) HasJoinedFederates() bool { return len(fed.federates) > 0 }

// FederateCount reports the number of joined federates.
func (fed *Federation) FederateCount() int { return len(fed.federates) }

// Connects returns every FederationConnect, for broadcast fanout.
func (fed *Federation) Connects() []*FederationConnect {
	out := make([]*FederationConnect, 0, len(fed.connects))
	for _, fc := range fed.connects {
		out = append(out, fc)
	}
	return out
}

// HasChildConnects reports whether any non-parent FederationConnect is
// still recorded, the test for whether an erase must fan out before
// the handle can be released.
func (fed *Federation) HasChildConnects() bool {
	for _, fc := range fed.connects {
		if !fc.IsParent {
			return true
		}
	}
	return false
}

// SynchronizationPoints returns every registered synchronization point.
func (fed *Federation) SynchronizationPoints() []*Synchronization {
	out := make([]*Synchronization, 0, len(fed.synchronizations))
	for _, s := range fed.synchronizations {
		out = append(out, s)
	}
	return out
}

// Resign removes a federate's bookkeeping: its connect linkage, its
// regulating-set membership, and its federate-name reservation. It
// does not itself perform attribute divestiture or object deletion —
// that requires instancemodel and is orchestrated by the dispatcher,
// which consults f.ResignAction before calling Resign.
func (fed *Federation) Resign(h handle.FederateHandle) error {
	f, ok := fed.federates[h]
	if !ok {
		return fmt.Errorf("federate handle %d: %w", uint64(h), rtierr.ErrFederateNotFound)
	}

	if f.HasConnect {
		if fc, ok := fed.connects[f.Connect]; ok {
			fc.removeFederate(h)
			fc.removeTimeRegulating(h)
		}
	}

	for _, sync := range fed.synchronizations {
		if sync.IsWaitingOn(h) {
			sync.Achieve(h, false)
		}
	}

	delete(fed.federates, h)
	delete(fed.federatesByName, f.Name)
	fed.federateAlloc.Release(h)
	return nil
}

// RegisterSynchronizationPoint creates a new Synchronization, failing
// with ErrLabelNotUnique if the label is already registered.
func (fed *Federation) RegisterSynchronizationPoint(label, tag string, addJoining bool, explicit []handle.FederateHandle) (*Synchronization, error) {
	if _, exists := fed.synchronizations[label]; exists {
		return nil, fmt.Errorf("synchronization label %q: %w", label, rtierr.ErrLabelNotUnique)
	}

	// A nil explicit list means "all current federates";
	// a non-nil, possibly empty, list is used as given.
	waiting := explicit
	if explicit == nil {
		waiting = make([]handle.FederateHandle, 0, len(fed.federates))
		for h := range fed.federates {
			waiting = append(waiting, h)
		}
	}

	sync := newSynchronization(label, tag, addJoining, waiting)
	fed.synchronizations[label] = sync
	return sync, nil
}

// AnnounceSynchronizationPoint registers a Synchronization learned
// from a parent's Announce message rather than a local Register.
func (fed *Federation) AnnounceSynchronizationPoint(label, tag string, addJoining bool, waiting []handle.FederateHandle) (*Synchronization, bool) {
	if sync, exists := fed.synchronizations[label]; exists {
		return sync, false
	}
	sync := newSynchronization(label, tag, addJoining, waiting)
	fed.synchronizations[label] = sync
	return sync, true
}

func (fed *Federation) SynchronizationPoint(label string) (*Synchronization, bool) {
	sync, ok := fed.synchronizations[label]
	return sync, ok
}

// EraseSynchronizationPoint drops a completed point's bookkeeping.
func (fed *Federation) EraseSynchronizationPoint(label string) {
	delete(fed.synchronizations, label)
}
