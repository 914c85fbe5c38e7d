package federation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/objectmodel"
	"github.com/openrti/rtinode/internal/rtierr"
)

func TestEnableTimeRegulationTracksRegulatingConnects(t *testing.T) {
	fed := New(handle.FederationHandle(1), "Exercise")
	f1, _ := fed.Join("Tank1", "tank", ResignCallbacksThenNothing, handle.ConnectHandle(1))
	f2, _ := fed.Join("Tank2", "tank", ResignCallbacksThenNothing, handle.ConnectHandle(2))

	require.NoError(t, fed.EnableTimeRegulation(f1.Handle, 10, 1))
	assert.True(t, f1.IsTimeRegulating())
	assert.ElementsMatch(t, []handle.ConnectHandle{1}, fed.TimeRegulatingConnects())

	// Re-enabling is a protocol error.
	err := fed.EnableTimeRegulation(f1.Handle, 10, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rtierr.ErrMessage))

	require.NoError(t, fed.EnableTimeRegulation(f2.Handle, 20, 1))
	assert.Len(t, fed.TimeRegulatingConnects(), 2)
	assert.Len(t, fed.TimeRegulatingFederates(), 2)

	require.NoError(t, fed.DisableTimeRegulation(f1.Handle))
	assert.ElementsMatch(t, []handle.ConnectHandle{2}, fed.TimeRegulatingConnects())
}

func TestGALTIsMinimumOverRegulatingFederates(t *testing.T) {
	fed := New(handle.FederationHandle(1), "Exercise")
	f1, _ := fed.Join("Tank1", "tank", ResignCallbacksThenNothing, handle.ConnectHandle(1))
	f2, _ := fed.Join("Tank2", "tank", ResignCallbacksThenNothing, handle.ConnectHandle(2))

	_, ok := fed.GALT()
	assert.False(t, ok, "no regulating federates, no GALT")

	require.NoError(t, fed.EnableTimeRegulation(f1.Handle, 10, 1))
	require.NoError(t, fed.EnableTimeRegulation(f2.Handle, 30, 1))

	galt, ok := fed.GALT()
	require.True(t, ok)
	assert.Equal(t, uint64(10), galt)

	f1.CommitLowerBoundTimeStamp(TimeAdvanceCommit, 50, 2)
	galt, _ = fed.GALT()
	assert.Equal(t, uint64(30), galt)
}

func TestCommitKindsUpdateTheRightTimestamps(t *testing.T) {
	fed := New(handle.FederationHandle(1), "Exercise")
	f1, _ := fed.Join("Tank1", "tank", ResignCallbacksThenNothing, handle.ConnectHandle(1))
	require.NoError(t, fed.EnableTimeRegulation(f1.Handle, 5, 1))

	f1.CommitLowerBoundTimeStamp(TimeAdvanceCommit, 10, 2)
	advance, nextMessage, commitID, _ := f1.TimeState()
	assert.Equal(t, uint64(10), advance)
	assert.Equal(t, uint64(5), nextMessage)
	assert.Equal(t, uint64(2), commitID)

	f1.CommitLowerBoundTimeStamp(NextMessageCommit, 12, 3)
	advance, nextMessage, _, _ = f1.TimeState()
	assert.Equal(t, uint64(10), advance)
	assert.Equal(t, uint64(12), nextMessage)

	f1.CommitLowerBoundTimeStamp(TimeAdvanceAndNextMessageCommit, 20, 4)
	advance, nextMessage, _, _ = f1.TimeState()
	assert.Equal(t, uint64(20), advance)
	assert.Equal(t, uint64(20), nextMessage)
}

func TestResignDropsRegulatingMembership(t *testing.T) {
	fed := New(handle.FederationHandle(1), "Exercise")
	f1, _ := fed.Join("Tank1", "tank", ResignCallbacksThenNothing, handle.ConnectHandle(1))
	require.NoError(t, fed.EnableTimeRegulation(f1.Handle, 10, 1))

	require.NoError(t, fed.Resign(f1.Handle))
	assert.Empty(t, fed.TimeRegulatingConnects())
}

func TestRegionLifecycle(t *testing.T) {
	fed := New(handle.FederationHandle(1), "Exercise")
	f1, _ := fed.Join("Tank1", "tank", ResignCallbacksThenNothing, handle.ConnectHandle(1))

	dims := []handle.DimensionHandle{0, 1}
	region, err := fed.InsertRegion(handle.RegionHandle(7), f1.Handle, dims)
	require.NoError(t, err)

	// Duplicate insert fails.
	_, err = fed.InsertRegion(handle.RegionHandle(7), f1.Handle, dims)
	require.Error(t, err)

	// Pending edits become visible only on commit.
	region.SetBounds(0, objectmodel.RangeBounds{Lower: 5, Upper: 10})
	assert.Equal(t, uint64(0), region.Committed[0].Upper)
	region.Commit()
	assert.Equal(t, uint64(10), region.Committed[0].Upper)

	assert.Len(t, fed.RegionsOfFederate(f1.Handle), 1)
	assert.Len(t, fed.Regions(), 1)

	require.NoError(t, fed.EraseRegion(handle.RegionHandle(7)))
	assert.Empty(t, fed.Regions())
	assert.Empty(t, fed.RegionsOfFederate(f1.Handle))
}

func TestAnonymousJoinGetsReservedName(t *testing.T) {
	fed := New(handle.FederationHandle(1), "Exercise")
	f1, err := fed.Join("", "tank", ResignCallbacksThenNothing, handle.ConnectHandle(1))
	require.NoError(t, err)
	assert.Contains(t, f1.Name, "HLAfederate")

	f2, err := fed.Join("", "tank", ResignCallbacksThenNothing, handle.ConnectHandle(1))
	require.NoError(t, err)
	assert.NotEqual(t, f1.Name, f2.Name)
}

func TestInsertFederateWithSpecificHandle(t *testing.T) {
	fed := New(handle.FederationHandle(1), "Exercise")
	f, err := fed.InsertFederate(handle.FederateHandle(9), "Remote", "tank", handle.ConnectHandle(3))
	require.NoError(t, err)
	assert.Equal(t, handle.FederateHandle(9), f.Handle)

	_, err = fed.InsertFederate(handle.FederateHandle(9), "Other", "tank", handle.ConnectHandle(3))
	require.Error(t, err)
}
