package instancemodel

import (
	"errors"
	"testing"

	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/rtierr"
	"github.com/stretchr/testify/require"
)

func TestAllocateHandlesReferencesRequestingConnect(t *testing.T) {
	r := NewRegistry()
	handles := r.AllocateHandles(3, handle.ConnectHandle(7))
	require.Len(t, handles, 3)
	for _, h := range handles {
		inst, ok := r.Get(h)
		require.True(t, ok)
		require.True(t, inst.IsReferencedBy(7))
		require.Equal(t, "", inst.Name)
	}
}

func TestReserveNameRejectsHLAPrefix(t *testing.T) {
	r := NewRegistry()
	_, err := r.ReserveName("HLAfoo", handle.ConnectHandle(1))
	require.Error(t, err)
	require.True(t, errors.Is(err, rtierr.ErrMessage))
}

func TestReserveNameRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	_, err := r.ReserveName("Tank1", handle.ConnectHandle(1))
	require.NoError(t, err)

	_, err = r.ReserveName("Tank1", handle.ConnectHandle(2))
	require.Error(t, err)
	require.True(t, errors.Is(err, rtierr.ErrNameNotUnique))
}

func TestReleaseReferenceDeletesOnLastRef(t *testing.T) {
	r := NewRegistry()
	handles := r.AllocateHandles(1, handle.ConnectHandle(1))
	h := handles[0]
	require.NoError(t, r.AddReference(h, handle.ConnectHandle(2)))

	deleted, err := r.ReleaseReference(h, handle.ConnectHandle(1))
	require.NoError(t, err)
	require.False(t, deleted, "instance must survive while connect 2 still refers to it")

	deleted, err = r.ReleaseReference(h, handle.ConnectHandle(2))
	require.NoError(t, err)
	require.True(t, deleted)

	_, ok := r.Get(h)
	require.False(t, ok)
}

func TestReleaseReferenceReleasesNameAndHandleForReuse(t *testing.T) {
	r := NewRegistry()
	h, err := r.ReserveName("Tank1", handle.ConnectHandle(1))
	require.NoError(t, err)

	deleted, err := r.ReleaseReference(h, handle.ConnectHandle(1))
	require.NoError(t, err)
	require.True(t, deleted)

	_, ok := r.ByName("Tank1")
	require.False(t, ok)

	// Name and handle must both be free for reuse.
	h2, err := r.ReserveName("Tank1", handle.ConnectHandle(3))
	require.NoError(t, err)
	require.Equal(t, h, h2)
}

func TestInsertSetsOwnerPerAttribute(t *testing.T) {
	r := NewRegistry()
	handles := r.AllocateHandles(1, handle.ConnectHandle(1))
	h := handles[0]

	err := r.Insert(h, "Tank1", handle.ObjectClassHandle(5), []handle.AttributeHandle{0, 1}, handle.ConnectHandle(1))
	require.NoError(t, err)

	inst, ok := r.Get(h)
	require.True(t, ok)
	require.Equal(t, "Tank1", inst.Name)
	require.True(t, inst.Attributes[0].HasOwner)
	require.Equal(t, handle.ConnectHandle(1), inst.Attributes[0].Owner)

	byName, ok := r.ByName("Tank1")
	require.True(t, ok)
	require.Equal(t, h, byName.Handle)
}
