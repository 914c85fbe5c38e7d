package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/wire"
)

func roundTrip(t *testing.T, msg wire.Message) wire.Message {
	t.Helper()
	c := NewXDR()
	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf, msg))
	got, err := c.Decode(&buf)
	require.NoError(t, err)
	return got
}

func TestRoundTripJoinRequest(t *testing.T) {
	msg := &wire.JoinFederationExecutionRequest{
		FederationName: "fed",
		FederateName:   "A",
		FederateType:   "test",
		Modules: []wire.FOMModule{{
			Dimensions:  []wire.DimensionDecl{{Name: "dim", UpperBound: 100}},
			UpdateRates: []wire.UpdateRateDecl{{Name: "fast", Rate: 60.0}},
			InteractionClasses: []wire.InteractionClassDecl{{
				NamePath:   "Root.Msg",
				ParentPath: "Root",
				Dimensions: []string{"dim"},
				Parameters: []string{"p0", "p1"},
			}},
			ObjectClasses: []wire.ObjectClassDecl{{
				NamePath:   "Root",
				Attributes: []string{"X"},
			}},
		}},
	}
	got := roundTrip(t, msg)
	assert.Equal(t, msg, got)
}

func TestRoundTripAttributeUpdate(t *testing.T) {
	msg := &wire.AttributeUpdate{
		FederationHandle:     3,
		FederateHandle:       7,
		ObjectInstanceHandle: 11,
		Tag:                  []byte{0xde, 0xad},
		AttributeValues: []wire.AttributeValue{
			{AttributeHandle: 0, Value: []byte{0x01}},
			{AttributeHandle: 2, Value: []byte{0x02, 0x03}},
		},
	}
	got := roundTrip(t, msg)
	assert.Equal(t, msg, got)
}

func TestRoundTripTimeStampedInteraction(t *testing.T) {
	msg := &wire.TimeStampedInteraction{
		FederationHandle:       1,
		FederateHandle:         2,
		InteractionClassHandle: 5,
		Tag:                    []byte("tag"),
		ParameterValues: []wire.ParameterValue{
			{ParameterHandle: 1, Value: []byte("v")},
		},
		TimeStamp:               42,
		OrderType:               1,
		MessageRetractionHandle: 99,
	}
	got := roundTrip(t, msg)
	assert.Equal(t, msg, got)
}

func TestRoundTripEveryKindHeader(t *testing.T) {
	// Each catalogue entry must decode back to its own concrete type.
	msgs := []wire.Message{
		&wire.ConnectionLost{FaultDescription: "gone"},
		&wire.CreateFederationExecutionRequest{FederationName: "f"},
		&wire.CreateFederationExecutionResponse{Result: wire.CreateFederationExecutionAlreadyExists},
		&wire.DestroyFederationExecutionRequest{FederationName: "f"},
		&wire.DestroyFederationExecutionResponse{Result: wire.DestroySuccess},
		&wire.EnumerateFederationExecutionsRequest{},
		&wire.EnumerateFederationExecutionsResponse{Federations: []wire.FederationExecutionInformation{{FederationName: "f"}}},
		&wire.InsertFederationExecution{FederationHandle: 1, FederationName: "f"},
		&wire.ShutdownFederationExecution{FederationHandle: 1},
		&wire.EraseFederationExecution{FederationHandle: 1},
		&wire.ReleaseFederationHandle{FederationHandle: 1},
		&wire.InsertModules{FederationHandle: 1},
		&wire.JoinFederationExecutionRequest{FederationName: "f", FederateName: "A"},
		&wire.JoinFederationExecutionResponse{FederationHandle: 1, FederateHandle: 2, Result: wire.JoinSuccess},
		&wire.JoinFederateNotify{FederationHandle: 1, FederateHandle: 2, FederateName: "A"},
		&wire.ResignFederationExecutionRequest{FederationHandle: 1, FederateHandle: 2},
		&wire.ResignFederateNotify{FederationHandle: 1, FederateHandle: 2},
		&wire.ChangeAutomaticResignDirective{FederationHandle: 1, FederateHandle: 2, ResignAction: 3},
		&wire.RegisterFederationSynchronizationPointRequest{FederationHandle: 1, Label: "sp"},
		&wire.RegisterFederationSynchronizationPointResponse{FederationHandle: 1, Label: "sp"},
		&wire.AnnounceSynchronizationPoint{FederationHandle: 1, Label: "sp", AddJoiningFederates: true},
		&wire.SynchronizationPointAchieved{FederationHandle: 1, Label: "sp", Achieved: []wire.FederateAchievedPair{{FederateHandle: 2, Successful: true}}},
		&wire.FederationSynchronized{FederationHandle: 1, Label: "sp"},
		&wire.EnableTimeRegulationRequest{FederationHandle: 1, FederateHandle: 2, TimeStamp: 10},
		&wire.EnableTimeRegulationResponse{FederationHandle: 1, FederateHandle: 2, TimeStampValid: true, TimeStamp: 10},
		&wire.DisableTimeRegulationRequest{FederationHandle: 1, FederateHandle: 2},
		&wire.CommitLowerBoundTimeStamp{FederationHandle: 1, FederateHandle: 2, TimeStamp: 20, CommitID: 1},
		&wire.CommitLowerBoundTimeStampResponse{FederationHandle: 1, FederateHandle: 2, CommitID: 1},
		&wire.LockedByNextMessageRequest{FederationHandle: 1, FederateHandle: 2, TimeStamp: 30},
		&wire.InsertRegion{FederationHandle: 1, Regions: []wire.RegionDimensions{{RegionHandle: 1, FederateHandle: 2, Dimensions: []handle.DimensionHandle{3}}}},
		&wire.CommitRegion{FederationHandle: 1, Regions: []wire.RegionValue{{RegionHandle: 1, Bounds: []wire.DimensionBounds{{Dimension: 3, Lower: 0, Upper: 10}}}}},
		&wire.EraseRegion{FederationHandle: 1, Regions: []handle.RegionHandle{1}},
		&wire.ChangeInteractionClassPublication{FederationHandle: 1, InteractionClassHandle: 2, PublicationType: 1},
		&wire.ChangeObjectClassPublication{FederationHandle: 1, ObjectClassHandle: 2, AttributeHandles: []handle.AttributeHandle{0, 1}, PublicationType: 1},
		&wire.ChangeInteractionClassSubscription{FederationHandle: 1, InteractionClassHandle: 2, SubscriptionType: 2},
		&wire.ChangeObjectClassSubscription{FederationHandle: 1, ObjectClassHandle: 2, AttributeHandles: []handle.AttributeHandle{0}, SubscriptionType: 2},
		&wire.ObjectInstanceHandlesRequest{FederationHandle: 1, FederateHandle: 2, Count: 8},
		&wire.ObjectInstanceHandlesResponse{FederationHandle: 1, FederateHandle: 2, Pairs: []wire.ObjectInstanceHandleNamePair{{Handle: 3}}},
		&wire.ReleaseMultipleObjectInstanceNameHandlePairs{FederationHandle: 1, Handles: []handle.ObjectInstanceHandle{3}},
		&wire.ReserveObjectInstanceNameRequest{FederationHandle: 1, FederateHandle: 2, Name: "obj"},
		&wire.ReserveObjectInstanceNameResponse{FederationHandle: 1, FederateHandle: 2, Pair: wire.ObjectInstanceHandleNamePair{Handle: 3, Name: "obj"}, Success: true},
		&wire.ReserveMultipleObjectInstanceNameRequest{FederationHandle: 1, FederateHandle: 2, Names: []string{"a", "b"}},
		&wire.ReserveMultipleObjectInstanceNameResponse{FederationHandle: 1, FederateHandle: 2, Success: false},
		&wire.InsertObjectInstance{FederationHandle: 1, ObjectInstanceHandle: 3, ObjectClassHandle: 2, Name: "obj", AttributeStates: []wire.AttributeState{{AttributeHandle: 0}}},
		&wire.DeleteObjectInstance{FederationHandle: 1, FederateHandle: 2, ObjectInstanceHandle: 3},
		&wire.TimeStampedDeleteObjectInstance{FederationHandle: 1, ObjectInstanceHandle: 3, TimeStamp: 5},
		&wire.AttributeUpdate{FederationHandle: 1, ObjectInstanceHandle: 3, AttributeValues: []wire.AttributeValue{{AttributeHandle: 1, Value: []byte{0x01}}}},
		&wire.TimeStampedAttributeUpdate{FederationHandle: 1, ObjectInstanceHandle: 3, TimeStamp: 6},
		&wire.Interaction{FederationHandle: 1, InteractionClassHandle: 2, ParameterValues: []wire.ParameterValue{{ParameterHandle: 1, Value: []byte("v")}}},
		&wire.TimeStampedInteraction{FederationHandle: 1, InteractionClassHandle: 2, TimeStamp: 7},
		&wire.RequestAttributeUpdate{FederationHandle: 1, ObjectInstanceHandle: 3, AttributeHandles: []handle.AttributeHandle{1}},
		&wire.RequestClassAttributeUpdate{FederationHandle: 1, ObjectClassHandle: 2, AttributeHandles: []handle.AttributeHandle{1}},
		&wire.RequestFederationSave{FederationHandle: 1, Label: "save"},
		&wire.FederationSaved{FederationHandle: 1, Label: "save", Success: false},
	}
	c := NewXDR()
	for _, msg := range msgs {
		got := roundTrip(t, msg)
		require.Equal(t, msg.MessageKind(), got.MessageKind())

		// Nil and empty slices are indistinguishable on the wire, so
		// equality is judged on the re-encoded bytes.
		var want, have bytes.Buffer
		require.NoError(t, c.Encode(&want, msg))
		require.NoError(t, c.Encode(&have, got))
		assert.Equal(t, want.Bytes(), have.Bytes(), "kind %s", msg.MessageKind())
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	buf := []byte{0, 0, 0, 0, 0xff, 0xff, 0xff, 0xff}
	_, err := NewXDR().Decode(bytes.NewReader(buf))
	assert.Error(t, err)
}
