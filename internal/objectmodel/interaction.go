package objectmodel

import "github.com/openrti/rtinode/internal/handle"

// ParameterDef is one parameter slot of an InteractionClass, attached
// at the class that defines it; subclasses inherit it by reference
// (same ParameterHandle) rather than by copy.
type ParameterDef struct {
	Handle         handle.ParameterHandle
	Name           string
	DefinedInClass handle.InteractionClassHandle
}

// InteractionClass is a node of the interaction class tree. NamePath is the dot-joined full path ("Root.Foo.Bar") and is
// unique within the federation.
type InteractionClass struct {
	Handle        handle.InteractionClassHandle
	NamePath      string
	Parent        OptionalClass[handle.InteractionClassHandle]
	OrderType     OrderType
	TransportType TransportType
	Dimensions    map[handle.DimensionHandle]struct{}

	// Parameters holds the class's full effective parameter list:
	// inherited definitions (mirrored from the parent, same handles)
	// followed by this class's own new parameters, in declaration
	// order. Children inherit parameters.
	Parameters []ParameterDef

	modules moduleSet
}

func (c *InteractionClass) IsReferencedByAnyModule() bool { return c.modules.isReferencedByAnyModule() }

// OwnParameterNames returns the names declared directly on this class
// (excluding inherited ones), in declaration order.
func (c *InteractionClass) OwnParameterNames() []string {
	var names []string
	for _, p := range c.Parameters {
		if p.DefinedInClass == c.Handle {
			names = append(names, p.Name)
		}
	}
	return names
}

// ParameterByName looks up a parameter (inherited or own) by name.
func (c *InteractionClass) ParameterByName(name string) (ParameterDef, bool) {
	for _, p := range c.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterDef{}, false
}

// sameDimensionSet reports whether the dimension handle set matches.
func sameDimensionSet(a map[handle.DimensionHandle]struct{}, b []handle.DimensionHandle) bool {
	if len(a) != len(b) {
		return false
	}
	for _, h := range b {
		if _, ok := a[h]; !ok {
			return false
		}
	}
	return true
}

// matches verifies decl is semantically identical to this already-known
// class: same order type, transport, dimensions, and own-parameter
// name set.
func (c *InteractionClass) matches(decl InteractionClassDecl, dims []handle.DimensionHandle) (bool, string) {
	if c.OrderType != decl.OrderType {
		return false, "order type mismatch"
	}
	if c.TransportType != decl.TransportType {
		return false, "transport type mismatch"
	}
	if !sameDimensionSet(c.Dimensions, dims) {
		return false, "dimension set mismatch"
	}
	own := c.OwnParameterNames()
	if len(own) != len(decl.Parameters) {
		return false, "parameter set mismatch"
	}
	seen := make(map[string]bool, len(own))
	for _, n := range own {
		seen[n] = true
	}
	for _, n := range decl.Parameters {
		if !seen[n] {
			return false, "parameter set mismatch"
		}
	}
	return true, ""
}
