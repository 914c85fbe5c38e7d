package objectmodel

import "github.com/openrti/rtinode/internal/handle"

// OrderType is the delivery ordering requested for an interaction class
// or carried by a TimeStamped/Receive-order message.
type OrderType int

const (
	OrderReceive OrderType = iota
	OrderTimeStamp
)

func (o OrderType) String() string {
	if o == OrderTimeStamp {
		return "TimeStamp"
	}
	return "Receive"
}

// TransportType is the requested transport reliability for an
// interaction class.
type TransportType int

const (
	TransportReliable TransportType = iota
	TransportBestEffort
)

func (t TransportType) String() string {
	if t == TransportBestEffort {
		return "BestEffort"
	}
	return "Reliable"
}

// OptionalClass names a possibly-absent parent class handle, since 0
// is itself a valid handle and cannot double as "no parent".
type OptionalClass[H ~uint64] struct {
	Handle H
	Valid  bool
}

// NoParent is the zero value of OptionalClass: Valid is false.
func NoParent[H ~uint64]() OptionalClass[H] { return OptionalClass[H]{} }

// ParentOf wraps h as a present parent.
func ParentOf[H ~uint64](h H) OptionalClass[H] { return OptionalClass[H]{Handle: h, Valid: true} }

// moduleSet is the set of Modules referencing one entity — the basis
// of the module-refcount-monotonicity invariant.
type moduleSet map[handle.ModuleHandle]struct{}

func (s moduleSet) add(m handle.ModuleHandle)     { s[m] = struct{}{} }
func (s moduleSet) remove(m handle.ModuleHandle)  { delete(s, m) }
func (s moduleSet) isReferencedByAnyModule() bool { return len(s) > 0 }
func (s moduleSet) contains(m handle.ModuleHandle) bool {
	_, ok := s[m]
	return ok
}
