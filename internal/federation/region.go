package federation

import (
	"fmt"

	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/objectmodel"
	"github.com/openrti/rtinode/internal/rtierr"
)

// Region bookkeeping. Region handles are allocated by the owning
// federate's ambassador; the server tree only records and relays them,
// so there is no allocator here, just the table.

// InsertRegion records a new region owned by federate, spanning dims.
func (fed *Federation) InsertRegion(h handle.RegionHandle, f handle.FederateHandle, dims []handle.DimensionHandle) (*objectmodel.Region, error) {
	if _, exists := fed.regions[h]; exists {
		return nil, fmt.Errorf("region %d already inserted: %w", uint64(h), rtierr.ErrMessage)
	}
	region := objectmodel.NewRegion(h, f, dims)
	fed.regions[h] = region
	if federate, ok := fed.federates[f]; ok {
		federate.Regions[h] = struct{}{}
	}
	return region, nil
}

// Region looks up a region by handle.
func (fed *Federation) Region(h handle.RegionHandle) (*objectmodel.Region, bool) {
	r, ok := fed.regions[h]
	return r, ok
}

// EraseRegion drops a region and its owner's back reference.
func (fed *Federation) EraseRegion(h handle.RegionHandle) error {
	region, ok := fed.regions[h]
	if !ok {
		return fmt.Errorf("region %d unknown: %w", uint64(h), rtierr.ErrMessage)
	}
	if federate, ok := fed.federates[region.Federate]; ok {
		delete(federate.Regions, h)
	}
	delete(fed.regions, h)
	return nil
}

// RegionsOfFederate returns every region a federate owns, drained on
// its resign.
func (fed *Federation) RegionsOfFederate(f handle.FederateHandle) []*objectmodel.Region {
	federate, ok := fed.federates[f]
	if !ok {
		return nil
	}
	out := make([]*objectmodel.Region, 0, len(federate.Regions))
	for h := range federate.Regions {
		if r, ok := fed.regions[h]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Regions returns all extant regions, replayed to a freshly activated
// connect as part of the resume state.
func (fed *Federation) Regions() []*objectmodel.Region {
	out := make([]*objectmodel.Region, 0, len(fed.regions))
	for _, r := range fed.regions {
		out = append(out, r)
	}
	return out
}
