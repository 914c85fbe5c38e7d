package objectmodel

import "github.com/openrti/rtinode/internal/handle"

// PrivilegeToDeleteAttribute is the name convention for attribute 0 of
// every root ObjectClass.
const PrivilegeToDeleteAttribute = "privilegeToDelete"

// AttributeDef is one attribute slot of an ObjectClass, attached at
// the class that defines it. Subclasses inherit it by reference (same
// AttributeHandle), matching real HLA attribute-handle semantics: an
// attribute keeps one handle all the way down the class tree.
type AttributeDef struct {
	Handle         handle.AttributeHandle
	Name           string
	DefinedInClass handle.ObjectClassHandle
}

// ObjectClass is a node of the object class tree.
type ObjectClass struct {
	Handle   handle.ObjectClassHandle
	NamePath string
	Parent   OptionalClass[handle.ObjectClassHandle]

	// Attributes holds the class's full effective attribute list:
	// inherited definitions followed by this class's own new
	// attributes, in declaration order. Attribute 0 of every root
	// class is privilegeToDelete.
	Attributes []AttributeDef

	modules moduleSet
}

func (c *ObjectClass) IsReferencedByAnyModule() bool { return c.modules.isReferencedByAnyModule() }

// OwnAttributeNames returns the names declared directly on this class.
func (c *ObjectClass) OwnAttributeNames() []string {
	var names []string
	for _, a := range c.Attributes {
		if a.DefinedInClass == c.Handle {
			names = append(names, a.Name)
		}
	}
	return names
}

// AttributeByName looks up an attribute (inherited or own) by name.
func (c *ObjectClass) AttributeByName(name string) (AttributeDef, bool) {
	for _, a := range c.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return AttributeDef{}, false
}

// AttributeByHandle looks up an attribute by handle.
func (c *ObjectClass) AttributeByHandle(h handle.AttributeHandle) (AttributeDef, bool) {
	for _, a := range c.Attributes {
		if a.Handle == h {
			return a, true
		}
	}
	return AttributeDef{}, false
}

// PrivilegeToDeleteHandle returns attribute 0's handle.
func (c *ObjectClass) PrivilegeToDeleteHandle() handle.AttributeHandle {
	return c.Attributes[0].Handle
}

func (c *ObjectClass) matches(decl ObjectClassDecl) (bool, string) {
	own := c.OwnAttributeNames()
	// A root class's implicit privilegeToDelete is never redeclared.
	if !c.Parent.Valid && len(own) > 0 && own[0] == PrivilegeToDeleteAttribute {
		own = own[1:]
	}
	if len(own) != len(decl.Attributes) {
		return false, "attribute set mismatch"
	}
	seen := make(map[string]bool, len(own))
	for _, n := range own {
		seen[n] = true
	}
	for _, n := range decl.Attributes {
		if !seen[n] {
			return false, "attribute set mismatch"
		}
	}
	return true, ""
}
