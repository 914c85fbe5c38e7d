package objectmodel

import "github.com/openrti/rtinode/internal/handle"

// Dimension is a named, bounded DDM dimension. Name is
// unique within a federation's object model.
type Dimension struct {
	Handle     handle.DimensionHandle
	Name       string
	UpperBound uint64
	modules    moduleSet
}

// IsReferencedByAnyModule reports whether ≥1 Module still lists this
// Dimension.
func (d *Dimension) IsReferencedByAnyModule() bool { return d.modules.isReferencedByAnyModule() }

// matches reports whether decl describes the same dimension already
// recorded as d — the check run on a name collision during Insert.
func (d *Dimension) matches(decl DimensionDecl) bool {
	return d.UpperBound == decl.UpperBound
}

// UpdateRate is a named update-rate definition.
type UpdateRate struct {
	Handle  handle.UpdateRateHandle
	Name    string
	Rate    float64
	modules moduleSet
}

func (u *UpdateRate) IsReferencedByAnyModule() bool { return u.modules.isReferencedByAnyModule() }

func (u *UpdateRate) matches(decl UpdateRateDecl) bool {
	return u.Rate == decl.Rate
}
