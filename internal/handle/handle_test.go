package handle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testHandle uint64

func TestAllocateReusesSmallestFreed(t *testing.T) {
	a := NewAllocator[testHandle]()

	h0 := a.Allocate()
	h1 := a.Allocate()
	h2 := a.Allocate()
	require.Equal(t, testHandle(0), h0)
	require.Equal(t, testHandle(1), h1)
	require.Equal(t, testHandle(2), h2)

	a.Release(h1)
	require.False(t, a.IsLive(h1))

	reused := a.Allocate()
	require.Equal(t, h1, reused, "smallest released handle must be reissued first")

	h3 := a.Allocate()
	require.Equal(t, testHandle(3), h3)
}

func TestAllocateSpecificRejectsLive(t *testing.T) {
	a := NewAllocator[testHandle]()
	require.NoError(t, a.AllocateSpecific(5))
	require.Error(t, a.AllocateSpecific(5))

	a.Release(5)
	require.NoError(t, a.AllocateSpecific(5))
}

func TestReleaseIsIdempotent(t *testing.T) {
	a := NewAllocator[testHandle]()
	h := a.Allocate()
	a.Release(h)
	require.NotPanics(t, func() { a.Release(h) })
	require.Equal(t, 0, a.Len())
}

func TestAllocateAfterReleaseDoesNotCollideWithSpecific(t *testing.T) {
	a := NewAllocator[testHandle]()
	require.NoError(t, a.AllocateSpecific(0))
	require.NoError(t, a.AllocateSpecific(1))
	h := a.Allocate()
	require.Equal(t, testHandle(2), h)
}
