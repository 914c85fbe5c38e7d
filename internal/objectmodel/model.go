package objectmodel

import (
	"sort"

	"github.com/openrti/rtinode/internal/handle"
)

// sortByHandle orders xs ascending by the handle key derives.
func sortByHandle[T any](xs []T, key func(T) uint64) {
	sort.Slice(xs, func(i, j int) bool { return key(xs[i]) < key(xs[j]) })
}

// Model is the federation-global FOM state: the Dimension, UpdateRate,
// InteractionClass and ObjectClass trees built up incrementally by
// Insert, plus the Modules that contributed to them.
// One Model exists per federation execution.
type Model struct {
	dimAlloc      *handle.Allocator[handle.DimensionHandle]
	rateAlloc     *handle.Allocator[handle.UpdateRateHandle]
	intClassAlloc *handle.Allocator[handle.InteractionClassHandle]
	paramAlloc    *handle.Allocator[handle.ParameterHandle]
	objClassAlloc *handle.Allocator[handle.ObjectClassHandle]
	attrAlloc     *handle.Allocator[handle.AttributeHandle]
	moduleAlloc   *handle.Allocator[handle.ModuleHandle]

	dimensions               map[handle.DimensionHandle]*Dimension
	dimensionsByName         map[string]handle.DimensionHandle
	updateRates              map[handle.UpdateRateHandle]*UpdateRate
	updateRatesByName        map[string]handle.UpdateRateHandle
	interactionClasses       map[handle.InteractionClassHandle]*InteractionClass
	interactionClassesByName map[string]handle.InteractionClassHandle
	objectClasses            map[handle.ObjectClassHandle]*ObjectClass
	objectClassesByName      map[string]handle.ObjectClassHandle
	modules                  map[handle.ModuleHandle]*Module
}

// NewModel returns an empty Model, ready to accept Insert calls.
func NewModel() *Model {
	return &Model{
		dimAlloc:      handle.NewAllocator[handle.DimensionHandle](),
		rateAlloc:     handle.NewAllocator[handle.UpdateRateHandle](),
		intClassAlloc: handle.NewAllocator[handle.InteractionClassHandle](),
		paramAlloc:    handle.NewAllocator[handle.ParameterHandle](),
		objClassAlloc: handle.NewAllocator[handle.ObjectClassHandle](),
		attrAlloc:     handle.NewAllocator[handle.AttributeHandle](),
		moduleAlloc:   handle.NewAllocator[handle.ModuleHandle](),

		dimensions:               make(map[handle.DimensionHandle]*Dimension),
		dimensionsByName:         make(map[string]handle.DimensionHandle),
		updateRates:              make(map[handle.UpdateRateHandle]*UpdateRate),
		updateRatesByName:        make(map[string]handle.UpdateRateHandle),
		interactionClasses:       make(map[handle.InteractionClassHandle]*InteractionClass),
		interactionClassesByName: make(map[string]handle.InteractionClassHandle),
		objectClasses:            make(map[handle.ObjectClassHandle]*ObjectClass),
		objectClassesByName:      make(map[string]handle.ObjectClassHandle),
		modules:                  make(map[handle.ModuleHandle]*Module),
	}
}

func (m *Model) Dimension(h handle.DimensionHandle) (*Dimension, bool) {
	d, ok := m.dimensions[h]
	return d, ok
}

func (m *Model) DimensionByName(name string) (*Dimension, bool) {
	h, ok := m.dimensionsByName[name]
	if !ok {
		return nil, false
	}
	return m.dimensions[h], true
}

func (m *Model) UpdateRate(h handle.UpdateRateHandle) (*UpdateRate, bool) {
	u, ok := m.updateRates[h]
	return u, ok
}

func (m *Model) InteractionClass(h handle.InteractionClassHandle) (*InteractionClass, bool) {
	c, ok := m.interactionClasses[h]
	return c, ok
}

func (m *Model) InteractionClassByName(name string) (*InteractionClass, bool) {
	h, ok := m.interactionClassesByName[name]
	if !ok {
		return nil, false
	}
	return m.interactionClasses[h], true
}

func (m *Model) ObjectClass(h handle.ObjectClassHandle) (*ObjectClass, bool) {
	c, ok := m.objectClasses[h]
	return c, ok
}

func (m *Model) ObjectClassByName(name string) (*ObjectClass, bool) {
	h, ok := m.objectClassesByName[name]
	if !ok {
		return nil, false
	}
	return m.objectClasses[h], true
}

// InteractionClasses returns every interaction class, ordered by
// handle. That puts parents before children as long as no class took
// a handle released by Erase; a child that reused a lower handle comes
// before its parent.
func (m *Model) InteractionClasses() []*InteractionClass {
	out := make([]*InteractionClass, 0, len(m.interactionClasses))
	for _, c := range m.interactionClasses {
		out = append(out, c)
	}
	sortByHandle(out, func(c *InteractionClass) uint64 { return uint64(c.Handle) })
	return out
}

// ObjectClasses returns every object class, ordered by handle, with the
// same parent-before-child caveat as InteractionClasses.
func (m *Model) ObjectClasses() []*ObjectClass {
	out := make([]*ObjectClass, 0, len(m.objectClasses))
	for _, c := range m.objectClasses {
		out = append(out, c)
	}
	sortByHandle(out, func(c *ObjectClass) uint64 { return uint64(c.Handle) })
	return out
}

// ModuleHandles returns the handle of every inserted module, ordered by
// handle. This is insertion order unless a module took a handle that
// Erase released.
func (m *Model) ModuleHandles() []handle.ModuleHandle {
	out := make([]handle.ModuleHandle, 0, len(m.modules))
	for h := range m.modules {
		out = append(out, h)
	}
	sortByHandle(out, func(h handle.ModuleHandle) uint64 { return uint64(h) })
	return out
}

// Describe reconstructs the module descriptions for hs, used to
// replicate already-inserted modules into a child subtree. Elements a
// module merely re-referenced are described with their full current
// definition, which by the merge rules is identical to what any
// declaring module carried.
func (m *Model) Describe(hs []handle.ModuleHandle) []ModuleDescription {
	out := make([]ModuleDescription, 0, len(hs))
	for _, h := range hs {
		mod, ok := m.modules[h]
		if !ok {
			continue
		}
		var desc ModuleDescription
		for dh := range mod.dimensions {
			d := m.dimensions[dh]
			desc.Dimensions = append(desc.Dimensions, DimensionDecl{Name: d.Name, UpperBound: d.UpperBound})
		}
		for rh := range mod.updateRates {
			u := m.updateRates[rh]
			desc.UpdateRates = append(desc.UpdateRates, UpdateRateDecl{Name: u.Name, Rate: u.Rate})
		}
		for _, c := range m.InteractionClasses() {
			if _, ok := mod.interactionClasses[c.Handle]; !ok {
				continue
			}
			decl := InteractionClassDecl{
				NamePath:      c.NamePath,
				OrderType:     c.OrderType,
				TransportType: c.TransportType,
				Parameters:    c.OwnParameterNames(),
			}
			if c.Parent.Valid {
				decl.ParentPath = m.interactionClasses[c.Parent.Handle].NamePath
			}
			for dh := range c.Dimensions {
				decl.Dimensions = append(decl.Dimensions, m.dimensions[dh].Name)
			}
			desc.InteractionClasses = append(desc.InteractionClasses, decl)
		}
		for _, c := range m.ObjectClasses() {
			if _, ok := mod.objectClasses[c.Handle]; !ok {
				continue
			}
			decl := ObjectClassDecl{
				NamePath:   c.NamePath,
				Attributes: c.OwnAttributeNames(),
			}
			if c.Parent.Valid {
				decl.ParentPath = m.objectClasses[c.Parent.Handle].NamePath
			}
			// A root class's implicit privilegeToDelete is recreated,
			// not redeclared.
			if !c.Parent.Valid && len(decl.Attributes) > 0 && decl.Attributes[0] == PrivilegeToDeleteAttribute {
				decl.Attributes = decl.Attributes[1:]
			}
			desc.ObjectClasses = append(desc.ObjectClasses, decl)
		}
		out = append(out, desc)
	}
	return out
}

// ObjectClassCount, InteractionClassCount etc. back the admin/metrics
// surface without leaking the underlying maps.
func (m *Model) ObjectClassCount() int      { return len(m.objectClasses) }
func (m *Model) InteractionClassCount() int { return len(m.interactionClasses) }
func (m *Model) DimensionCount() int        { return len(m.dimensions) }
func (m *Model) ModuleCount() int           { return len(m.modules) }
