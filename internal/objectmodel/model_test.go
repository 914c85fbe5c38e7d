package objectmodel

import "testing"

import "github.com/stretchr/testify/require"

func TestModelReusesHandleAfterErase(t *testing.T) {
	m := NewModel()

	mod1, err := m.Insert(ModuleDescription{Dimensions: []DimensionDecl{{Name: "A", UpperBound: 1}}})
	require.NoError(t, err)
	first, _ := m.DimensionByName("A")
	firstHandle := first.Handle

	m.Erase(mod1)
	require.Equal(t, 0, m.DimensionCount())

	_, err = m.Insert(ModuleDescription{Dimensions: []DimensionDecl{{Name: "B", UpperBound: 2}}})
	require.NoError(t, err)
	second, _ := m.DimensionByName("B")
	require.Equal(t, firstHandle, second.Handle, "released dimension handle must be reissued")
}

func TestModelNewAndOldInteractionClassParametersKeepDistinctHandles(t *testing.T) {
	m := NewModel()

	_, err := m.Insert(ModuleDescription{
		InteractionClasses: []InteractionClassDecl{
			{NamePath: "Root.Fire", Parameters: []string{"a", "b"}},
		},
	})
	require.NoError(t, err)

	ic, ok := m.InteractionClassByName("Root.Fire")
	require.True(t, ok)
	pa, _ := ic.ParameterByName("a")
	pb, _ := ic.ParameterByName("b")
	require.NotEqual(t, pa.Handle, pb.Handle)
}
