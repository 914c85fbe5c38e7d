package objectmodel

import (
	"errors"
	"testing"

	"github.com/openrti/rtinode/internal/rtierr"
	"github.com/stretchr/testify/require"
)

func TestInsertCreatesNewEntities(t *testing.T) {
	m := NewModel()

	modHandle, err := m.Insert(ModuleDescription{
		Dimensions: []DimensionDecl{{Name: "X", UpperBound: 1000}},
		ObjectClasses: []ObjectClassDecl{
			{NamePath: "Root.Platform", Attributes: []string{"position"}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, m.ModuleCount())

	dim, ok := m.DimensionByName("X")
	require.True(t, ok)
	require.Equal(t, uint64(1000), dim.UpperBound)
	require.True(t, dim.IsReferencedByAnyModule())

	oc, ok := m.ObjectClassByName("Root.Platform")
	require.True(t, ok)
	require.Len(t, oc.Attributes, 2) // privilegeToDelete + position
	require.Equal(t, PrivilegeToDeleteAttribute, oc.Attributes[0].Name)

	mod := m.modules[modHandle]
	require.NotNil(t, mod)
}

func TestInsertSecondModuleSharesMatchingDimension(t *testing.T) {
	m := NewModel()

	_, err := m.Insert(ModuleDescription{Dimensions: []DimensionDecl{{Name: "X", UpperBound: 1000}}})
	require.NoError(t, err)

	_, err = m.Insert(ModuleDescription{Dimensions: []DimensionDecl{{Name: "X", UpperBound: 1000}}})
	require.NoError(t, err)

	require.Equal(t, 1, m.DimensionCount())
	dim, _ := m.DimensionByName("X")
	require.Len(t, dim.modules, 2)
}

func TestInsertConflictingDimensionFailsInconsistentFDD(t *testing.T) {
	m := NewModel()

	_, err := m.Insert(ModuleDescription{Dimensions: []DimensionDecl{{Name: "X", UpperBound: 1000}}})
	require.NoError(t, err)

	_, err = m.Insert(ModuleDescription{Dimensions: []DimensionDecl{{Name: "X", UpperBound: 2000}}})
	require.Error(t, err)
	require.True(t, errors.Is(err, rtierr.ErrInconsistentFDD))

	require.Equal(t, 1, m.DimensionCount())
	dim, _ := m.DimensionByName("X")
	require.Equal(t, uint64(1000), dim.UpperBound)
}

func TestInsertRollsBackPartiallyAcceptedModule(t *testing.T) {
	m := NewModel()

	_, err := m.Insert(ModuleDescription{
		Dimensions: []DimensionDecl{
			{Name: "A", UpperBound: 100},
			{Name: "B", UpperBound: 200},
		},
		UpdateRates: []UpdateRateDecl{{Name: "Fast", Rate: 60}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, m.DimensionCount())

	_, err = m.Insert(ModuleDescription{
		Dimensions: []DimensionDecl{
			{Name: "A", UpperBound: 100},  // matches, accepted
			{Name: "C", UpperBound: 300},  // new, accepted
			{Name: "B", UpperBound: 9999}, // conflicts, fails
		},
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, rtierr.ErrInconsistentFDD))

	// "C" must have been rolled back entirely.
	_, ok := m.DimensionByName("C")
	require.False(t, ok, "partially accepted dimension C must be rolled back")
	require.Equal(t, 2, m.DimensionCount())

	// "A" must no longer be referenced by the failed module.
	dimA, _ := m.DimensionByName("A")
	require.Len(t, dimA.modules, 1, "module rollback must undo the second module's reference to A")
}

func TestInsertObjectClassInheritsParentAttributes(t *testing.T) {
	m := NewModel()

	_, err := m.Insert(ModuleDescription{
		ObjectClasses: []ObjectClassDecl{
			{NamePath: "Root.Platform", Attributes: []string{"position"}},
			{NamePath: "Root.Platform.Aircraft", ParentPath: "Root.Platform", Attributes: []string{"altitude"}},
		},
	})
	require.NoError(t, err)

	child, ok := m.ObjectClassByName("Root.Platform.Aircraft")
	require.True(t, ok)
	require.Len(t, child.Attributes, 3) // privilegeToDelete, position, altitude
	require.Equal(t, []string{"altitude"}, child.OwnAttributeNames())

	parent, _ := m.ObjectClassByName("Root.Platform")
	posAttr, ok := parent.AttributeByName("position")
	require.True(t, ok)
	childPosAttr, ok := child.AttributeByName("position")
	require.True(t, ok)
	require.Equal(t, posAttr.Handle, childPosAttr.Handle, "inherited attribute keeps its parent's handle")
}

func TestInsertObjectClassUnknownParentFails(t *testing.T) {
	m := NewModel()
	_, err := m.Insert(ModuleDescription{
		ObjectClasses: []ObjectClassDecl{
			{NamePath: "Root.Foo", ParentPath: "Root.DoesNotExist"},
		},
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, rtierr.ErrInconsistentFDD))
	require.Equal(t, 0, m.ObjectClassCount())
}

func TestInsertInteractionClassDimensionMismatchFails(t *testing.T) {
	m := NewModel()

	_, err := m.Insert(ModuleDescription{
		Dimensions: []DimensionDecl{{Name: "X", UpperBound: 1000}},
		InteractionClasses: []InteractionClassDecl{
			{NamePath: "Root.Fire", Dimensions: []string{"X"}, Parameters: []string{"munition"}},
		},
	})
	require.NoError(t, err)

	_, err = m.Insert(ModuleDescription{
		Dimensions: []DimensionDecl{{Name: "X", UpperBound: 1000}},
		InteractionClasses: []InteractionClassDecl{
			{NamePath: "Root.Fire", Parameters: []string{"munition"}}, // no dimensions this time
		},
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, rtierr.ErrInconsistentFDD))
}

func TestEraseReleasesUnreferencedEntities(t *testing.T) {
	m := NewModel()

	mod1, err := m.Insert(ModuleDescription{Dimensions: []DimensionDecl{{Name: "X", UpperBound: 1000}}})
	require.NoError(t, err)

	mod2, err := m.Insert(ModuleDescription{Dimensions: []DimensionDecl{{Name: "X", UpperBound: 1000}}})
	require.NoError(t, err)

	m.Erase(mod1)
	require.Equal(t, 1, m.DimensionCount(), "shared dimension must survive while mod2 still refers to it")

	m.Erase(mod2)
	require.Equal(t, 0, m.DimensionCount(), "dimension must be released once no module refers to it")
	require.Equal(t, 0, m.ModuleCount())
}

func TestEraseKeepsReferencedObjectClassAttributesIntact(t *testing.T) {
	m := NewModel()

	mod1, err := m.Insert(ModuleDescription{
		ObjectClasses: []ObjectClassDecl{{NamePath: "Root.Platform", Attributes: []string{"position"}}},
	})
	require.NoError(t, err)

	_, err = m.Insert(ModuleDescription{
		ObjectClasses: []ObjectClassDecl{{NamePath: "Root.Platform", Attributes: []string{"position"}}},
	})
	require.NoError(t, err)

	m.Erase(mod1)
	oc, ok := m.ObjectClassByName("Root.Platform")
	require.True(t, ok, "class referenced by the second module must survive mod1's erase")
	require.Len(t, oc.Attributes, 2)
}
