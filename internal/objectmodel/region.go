package objectmodel

import "github.com/openrti/rtinode/internal/handle"

// RangeBounds is the [Lower, Upper) extent a Region occupies along one
// dimension.
type RangeBounds struct {
	Lower uint64
	Upper uint64
}

// Region is a federate-local DDM region: an identifier plus a bound
// set per dimension, distinguishing a locally in-progress modification
// from the last value actually committed to the federation.
type Region struct {
	Handle   handle.RegionHandle
	Federate handle.FederateHandle

	// Committed is the bound set other federates' routing decisions
	// are computed against; it only changes via Commit.
	Committed map[handle.DimensionHandle]RangeBounds

	// Pending is the federate's in-progress edit, applied locally with
	// SetBounds and not visible to anyone else until Commit copies it
	// into Committed.
	Pending map[handle.DimensionHandle]RangeBounds
}

// NewRegion creates a Region with empty bounds on both sides.
func NewRegion(h handle.RegionHandle, federate handle.FederateHandle, dims []handle.DimensionHandle) *Region {
	committed := make(map[handle.DimensionHandle]RangeBounds, len(dims))
	pending := make(map[handle.DimensionHandle]RangeBounds, len(dims))
	for _, d := range dims {
		committed[d] = RangeBounds{}
		pending[d] = RangeBounds{}
	}
	return &Region{Handle: h, Federate: federate, Committed: committed, Pending: pending}
}

// SetBounds stages a new bound for dimension d into Pending. It takes
// effect for other federates only once Commit is called.
func (r *Region) SetBounds(d handle.DimensionHandle, bounds RangeBounds) {
	r.Pending[d] = bounds
}

// Commit copies Pending into Committed, the point at which other
// federates' cumulative-subscription routing (internal/routing) may
// start honoring the new extent.
func (r *Region) Commit() {
	for d, b := range r.Pending {
		r.Committed[d] = b
	}
}
