package objectmodel

import (
	"fmt"

	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/rtierr"
)

// DimensionDecl, UpdateRateDecl, InteractionClassDecl and
// ObjectClassDecl together make up a ModuleDescription: the parsed
// form of an FDD/module fragment, handed to Model.Insert by whatever
// parses the XML FDD.
type DimensionDecl struct {
	Name       string
	UpperBound uint64
}

type UpdateRateDecl struct {
	Name string
	Rate float64
}

type InteractionClassDecl struct {
	NamePath      string
	ParentPath    string // "" for a root class
	OrderType     OrderType
	TransportType TransportType
	Dimensions    []string
	Parameters    []string // own parameters only
}

type ObjectClassDecl struct {
	NamePath   string
	ParentPath string // "" for a root class
	Attributes []string
}

// ModuleDescription is one Module's worth of FDD contributions,
// processed in this order: Dimensions, UpdateRates, InteractionClasses,
// ObjectClasses — each list resolved top-down, so a class's ParentPath
// must already be known to the model (either from an earlier Module or
// an earlier entry in the same list) by the time it is reached.
type ModuleDescription struct {
	Dimensions         []DimensionDecl
	UpdateRates        []UpdateRateDecl
	InteractionClasses []InteractionClassDecl
	ObjectClasses      []ObjectClassDecl
}

// Module is an incremental FOM contribution. Every element it
// introduces or references is tracked so that erasing the Module can
// release whatever is no longer referenced by any other Module.
type Module struct {
	Handle handle.ModuleHandle

	dimensions         map[handle.DimensionHandle]struct{}
	updateRates        map[handle.UpdateRateHandle]struct{}
	interactionClasses map[handle.InteractionClassHandle]struct{}
	objectClasses      map[handle.ObjectClassHandle]struct{}
}

func newModule(h handle.ModuleHandle) *Module {
	return &Module{
		Handle:             h,
		dimensions:         make(map[handle.DimensionHandle]struct{}),
		updateRates:        make(map[handle.UpdateRateHandle]struct{}),
		interactionClasses: make(map[handle.InteractionClassHandle]struct{}),
		objectClasses:      make(map[handle.ObjectClassHandle]struct{}),
	}
}

// acceptedItem records one element this Insert call successfully
// attached the Module to, so a later failure in the same call can roll
// everything back in reverse order.
type acceptedItem struct {
	undo func()
}

// Insert processes desc and either commits a new Module referencing
// every element it introduced or matched, or fails with
// rtierr.ErrInconsistentFDD and leaves the model exactly as it was.
func (m *Model) Insert(desc ModuleDescription) (handle.ModuleHandle, error) {
	moduleHandle := m.moduleAlloc.Allocate()
	mod := newModule(moduleHandle)
	var accepted []acceptedItem

	rollback := func() {
		for i := len(accepted) - 1; i >= 0; i-- {
			accepted[i].undo()
		}
		m.moduleAlloc.Release(moduleHandle)
	}

	for _, d := range desc.Dimensions {
		item, err := m.insertDimension(mod, d)
		if err != nil {
			rollback()
			return 0, err
		}
		accepted = append(accepted, item)
	}

	for _, r := range desc.UpdateRates {
		item, err := m.insertUpdateRate(mod, r)
		if err != nil {
			rollback()
			return 0, err
		}
		accepted = append(accepted, item)
	}

	for _, ic := range desc.InteractionClasses {
		item, err := m.insertInteractionClass(mod, ic)
		if err != nil {
			rollback()
			return 0, err
		}
		accepted = append(accepted, item)
	}

	for _, oc := range desc.ObjectClasses {
		item, err := m.insertObjectClass(mod, oc)
		if err != nil {
			rollback()
			return 0, err
		}
		accepted = append(accepted, item)
	}

	m.modules[moduleHandle] = mod
	return moduleHandle, nil
}

func (m *Model) insertDimension(mod *Module, decl DimensionDecl) (acceptedItem, error) {
	if h, ok := m.dimensionsByName[decl.Name]; ok {
		d := m.dimensions[h]
		if !d.matches(decl) {
			return acceptedItem{}, fmt.Errorf("dimension %q: upper bound mismatch: %w", decl.Name, rtierr.ErrInconsistentFDD)
		}
		d.modules.add(mod.Handle)
		mod.dimensions[h] = struct{}{}
		return acceptedItem{undo: func() {
			d.modules.remove(mod.Handle)
		}}, nil
	}

	h := m.dimAlloc.Allocate()
	d := &Dimension{Handle: h, Name: decl.Name, UpperBound: decl.UpperBound, modules: moduleSet{}}
	d.modules.add(mod.Handle)
	m.dimensions[h] = d
	m.dimensionsByName[decl.Name] = h
	mod.dimensions[h] = struct{}{}
	return acceptedItem{undo: func() {
		delete(m.dimensionsByName, decl.Name)
		delete(m.dimensions, h)
		m.dimAlloc.Release(h)
	}}, nil
}

func (m *Model) insertUpdateRate(mod *Module, decl UpdateRateDecl) (acceptedItem, error) {
	if h, ok := m.updateRatesByName[decl.Name]; ok {
		u := m.updateRates[h]
		if !u.matches(decl) {
			return acceptedItem{}, fmt.Errorf("update rate %q: rate mismatch: %w", decl.Name, rtierr.ErrInconsistentFDD)
		}
		u.modules.add(mod.Handle)
		mod.updateRates[h] = struct{}{}
		return acceptedItem{undo: func() {
			u.modules.remove(mod.Handle)
		}}, nil
	}

	h := m.rateAlloc.Allocate()
	u := &UpdateRate{Handle: h, Name: decl.Name, Rate: decl.Rate, modules: moduleSet{}}
	u.modules.add(mod.Handle)
	m.updateRates[h] = u
	m.updateRatesByName[decl.Name] = h
	mod.updateRates[h] = struct{}{}
	return acceptedItem{undo: func() {
		delete(m.updateRatesByName, decl.Name)
		delete(m.updateRates, h)
		m.rateAlloc.Release(h)
	}}, nil
}

func (m *Model) resolveDimensions(names []string) ([]handle.DimensionHandle, error) {
	out := make([]handle.DimensionHandle, 0, len(names))
	for _, n := range names {
		h, ok := m.dimensionsByName[n]
		if !ok {
			return nil, fmt.Errorf("unknown dimension %q: %w", n, rtierr.ErrInconsistentFDD)
		}
		out = append(out, h)
	}
	return out, nil
}

func (m *Model) insertInteractionClass(mod *Module, decl InteractionClassDecl) (acceptedItem, error) {
	dimHandles, err := m.resolveDimensions(decl.Dimensions)
	if err != nil {
		return acceptedItem{}, err
	}

	if h, ok := m.interactionClassesByName[decl.NamePath]; ok {
		c := m.interactionClasses[h]
		ok, reason := c.matches(decl, dimHandles)
		if !ok {
			return acceptedItem{}, fmt.Errorf("interaction class %q: %s: %w", decl.NamePath, reason, rtierr.ErrInconsistentFDD)
		}
		c.modules.add(mod.Handle)
		mod.interactionClasses[h] = struct{}{}
		return acceptedItem{undo: func() { c.modules.remove(mod.Handle) }}, nil
	}

	var parent OptionalClass[handle.InteractionClassHandle]
	var inherited []ParameterDef
	if decl.ParentPath != "" {
		ph, ok := m.interactionClassesByName[decl.ParentPath]
		if !ok {
			return acceptedItem{}, fmt.Errorf("interaction class %q: unknown parent %q: %w", decl.NamePath, decl.ParentPath, rtierr.ErrInconsistentFDD)
		}
		parent = ParentOf(ph)
		inherited = append(inherited, m.interactionClasses[ph].Parameters...)
	}

	dimSet := make(map[handle.DimensionHandle]struct{}, len(dimHandles))
	for _, d := range dimHandles {
		dimSet[d] = struct{}{}
	}

	h := m.intClassAlloc.Allocate()
	params := append([]ParameterDef{}, inherited...)
	for _, pn := range decl.Parameters {
		ph := m.paramAlloc.Allocate()
		params = append(params, ParameterDef{Handle: ph, Name: pn, DefinedInClass: h})
	}

	c := &InteractionClass{
		Handle:        h,
		NamePath:      decl.NamePath,
		Parent:        parent,
		OrderType:     decl.OrderType,
		TransportType: decl.TransportType,
		Dimensions:    dimSet,
		Parameters:    params,
		modules:       moduleSet{},
	}
	c.modules.add(mod.Handle)
	m.interactionClasses[h] = c
	m.interactionClassesByName[decl.NamePath] = h
	mod.interactionClasses[h] = struct{}{}

	return acceptedItem{undo: func() {
		delete(m.interactionClassesByName, decl.NamePath)
		delete(m.interactionClasses, h)
		m.intClassAlloc.Release(h)
		for _, p := range params {
			if p.DefinedInClass == h {
				m.paramAlloc.Release(p.Handle)
			}
		}
	}}, nil
}

func (m *Model) insertObjectClass(mod *Module, decl ObjectClassDecl) (acceptedItem, error) {
	if h, ok := m.objectClassesByName[decl.NamePath]; ok {
		c := m.objectClasses[h]
		ok, reason := c.matches(decl)
		if !ok {
			return acceptedItem{}, fmt.Errorf("object class %q: %s: %w", decl.NamePath, reason, rtierr.ErrInconsistentFDD)
		}
		c.modules.add(mod.Handle)
		mod.objectClasses[h] = struct{}{}
		return acceptedItem{undo: func() { c.modules.remove(mod.Handle) }}, nil
	}

	var parent OptionalClass[handle.ObjectClassHandle]
	var inherited []AttributeDef
	if decl.ParentPath != "" {
		ph, ok := m.objectClassesByName[decl.ParentPath]
		if !ok {
			return acceptedItem{}, fmt.Errorf("object class %q: unknown parent %q: %w", decl.NamePath, decl.ParentPath, rtierr.ErrInconsistentFDD)
		}
		parent = ParentOf(ph)
		inherited = append(inherited, m.objectClasses[ph].Attributes...)
	}

	h := m.objClassAlloc.Allocate()
	attrs := append([]AttributeDef{}, inherited...)

	if len(attrs) == 0 {
		// Root class: attribute 0 is always privilegeToDelete.
		pd := m.attrAlloc.Allocate()
		attrs = append(attrs, AttributeDef{Handle: pd, Name: PrivilegeToDeleteAttribute, DefinedInClass: h})
	}
	for _, an := range decl.Attributes {
		ah := m.attrAlloc.Allocate()
		attrs = append(attrs, AttributeDef{Handle: ah, Name: an, DefinedInClass: h})
	}

	c := &ObjectClass{
		Handle:     h,
		NamePath:   decl.NamePath,
		Parent:     parent,
		Attributes: attrs,
		modules:    moduleSet{},
	}
	c.modules.add(mod.Handle)
	m.objectClasses[h] = c
	m.objectClassesByName[decl.NamePath] = h
	mod.objectClasses[h] = struct{}{}

	return acceptedItem{undo: func() {
		delete(m.objectClassesByName, decl.NamePath)
		delete(m.objectClasses, h)
		m.objClassAlloc.Release(h)
		for _, a := range attrs {
			if a.DefinedInClass == h {
				m.attrAlloc.Release(a.Handle)
			}
		}
	}}, nil
}

// Erase removes moduleHandle's contribution, releasing any element
// whose referring-Module set becomes empty as a result.
func (m *Model) Erase(moduleHandle handle.ModuleHandle) {
	mod, ok := m.modules[moduleHandle]
	if !ok {
		return
	}
	delete(m.modules, moduleHandle)

	for h := range mod.dimensions {
		d := m.dimensions[h]
		d.modules.remove(moduleHandle)
		if !d.IsReferencedByAnyModule() {
			delete(m.dimensions, h)
			delete(m.dimensionsByName, d.Name)
			m.dimAlloc.Release(h)
		}
	}
	for h := range mod.updateRates {
		u := m.updateRates[h]
		u.modules.remove(moduleHandle)
		if !u.IsReferencedByAnyModule() {
			delete(m.updateRates, h)
			delete(m.updateRatesByName, u.Name)
			m.rateAlloc.Release(h)
		}
	}
	for h := range mod.interactionClasses {
		c := m.interactionClasses[h]
		c.modules.remove(moduleHandle)
		if !c.IsReferencedByAnyModule() {
			delete(m.interactionClasses, h)
			delete(m.interactionClassesByName, c.NamePath)
			m.intClassAlloc.Release(h)
			for _, p := range c.Parameters {
				if p.DefinedInClass == h {
					m.paramAlloc.Release(p.Handle)
				}
			}
		}
	}
	for h := range mod.objectClasses {
		c := m.objectClasses[h]
		c.modules.remove(moduleHandle)
		if !c.IsReferencedByAnyModule() {
			delete(m.objectClasses, h)
			delete(m.objectClassesByName, c.NamePath)
			m.objClassAlloc.Release(h)
			for _, a := range c.Attributes {
				if a.DefinedInClass == h {
					m.attrAlloc.Release(a.Handle)
				}
			}
		}
	}
}
