package wire

// Kind discriminates the concrete message type on the wire and in the
// dispatcher's metrics labels.
type Kind uint32

const (
	KindInvalid Kind = iota

	KindConnectionLost

	KindCreateFederationExecutionRequest
	KindCreateFederationExecutionResponse
	KindDestroyFederationExecutionRequest
	KindDestroyFederationExecutionResponse
	KindEnumerateFederationExecutionsRequest
	KindEnumerateFederationExecutionsResponse

	KindInsertFederationExecution
	KindShutdownFederationExecution
	KindEraseFederationExecution
	KindReleaseFederationHandle
	KindInsertModules

	KindJoinFederationExecutionRequest
	KindJoinFederationExecutionResponse
	KindJoinFederateNotify
	KindResignFederationExecutionRequest
	KindResignFederateNotify
	KindChangeAutomaticResignDirective

	KindRegisterFederationSynchronizationPointRequest
	KindRegisterFederationSynchronizationPointResponse
	KindAnnounceSynchronizationPoint
	KindSynchronizationPointAchieved
	KindFederationSynchronized

	KindEnableTimeRegulationRequest
	KindEnableTimeRegulationResponse
	KindDisableTimeRegulationRequest
	KindCommitLowerBoundTimeStamp
	KindCommitLowerBoundTimeStampResponse
	KindLockedByNextMessageRequest

	KindInsertRegion
	KindCommitRegion
	KindEraseRegion

	KindChangeInteractionClassPublication
	KindChangeObjectClassPublication
	KindChangeInteractionClassSubscription
	KindChangeObjectClassSubscription

	KindObjectInstanceHandlesRequest
	KindObjectInstanceHandlesResponse
	KindReleaseMultipleObjectInstanceNameHandlePairs
	KindReserveObjectInstanceNameRequest
	KindReserveObjectInstanceNameResponse
	KindReserveMultipleObjectInstanceNameRequest
	KindReserveMultipleObjectInstanceNameResponse

	KindInsertObjectInstance
	KindDeleteObjectInstance
	KindTimeStampedDeleteObjectInstance
	KindAttributeUpdate
	KindTimeStampedAttributeUpdate
	KindInteraction
	KindTimeStampedInteraction
	KindRequestAttributeUpdate
	KindRequestClassAttributeUpdate

	KindRequestFederationSave
	KindFederationSaved

	kindSentinel // keep last
)

var kindNames = map[Kind]string{
	KindConnectionLost:                                 "ConnectionLost",
	KindCreateFederationExecutionRequest:               "CreateFederationExecutionRequest",
	KindCreateFederationExecutionResponse:              "CreateFederationExecutionResponse",
	KindDestroyFederationExecutionRequest:              "DestroyFederationExecutionRequest",
	KindDestroyFederationExecutionResponse:             "DestroyFederationExecutionResponse",
	KindEnumerateFederationExecutionsRequest:           "EnumerateFederationExecutionsRequest",
	KindEnumerateFederationExecutionsResponse:          "EnumerateFederationExecutionsResponse",
	KindInsertFederationExecution:                      "InsertFederationExecution",
	KindShutdownFederationExecution:                    "ShutdownFederationExecution",
	KindEraseFederationExecution:                       "EraseFederationExecution",
	KindReleaseFederationHandle:                        "ReleaseFederationHandle",
	KindInsertModules:                                  "InsertModules",
	KindJoinFederationExecutionRequest:                 "JoinFederationExecutionRequest",
	KindJoinFederationExecutionResponse:                "JoinFederationExecutionResponse",
	KindJoinFederateNotify:                             "JoinFederateNotify",
	KindResignFederationExecutionRequest:               "ResignFederationExecutionRequest",
	KindResignFederateNotify:                           "ResignFederateNotify",
	KindChangeAutomaticResignDirective:                 "ChangeAutomaticResignDirective",
	KindRegisterFederationSynchronizationPointRequest:  "RegisterFederationSynchronizationPointRequest",
	KindRegisterFederationSynchronizationPointResponse: "RegisterFederationSynchronizationPointResponse",
	KindAnnounceSynchronizationPoint:                   "AnnounceSynchronizationPoint",
	KindSynchronizationPointAchieved:                   "SynchronizationPointAchieved",
	KindFederationSynchronized:                         "FederationSynchronized",
	KindEnableTimeRegulationRequest:                    "EnableTimeRegulationRequest",
	KindEnableTimeRegulationResponse:                   "EnableTimeRegulationResponse",
	KindDisableTimeRegulationRequest:                   "DisableTimeRegulationRequest",
	KindCommitLowerBoundTimeStamp:                      "CommitLowerBoundTimeStamp",
	KindCommitLowerBoundTimeStampResponse:              "CommitLowerBoundTimeStampResponse",
	KindLockedByNextMessageRequest:                     "LockedByNextMessageRequest",
	KindInsertRegion:                                   "InsertRegion",
	KindCommitRegion:                                   "CommitRegion",
	KindEraseRegion:                                    "EraseRegion",
	KindChangeInteractionClassPublication:              "ChangeInteractionClassPublication",
	KindChangeObjectClassPublication:                   "ChangeObjectClassPublication",
	KindChangeInteractionClassSubscription:             "ChangeInteractionClassSubscription",
	KindChangeObjectClassSubscription:                  "ChangeObjectClassSubscription",
	KindObjectInstanceHandlesRequest:                   "ObjectInstanceHandlesRequest",
	KindObjectInstanceHandlesResponse:                  "ObjectInstanceHandlesResponse",
	KindReleaseMultipleObjectInstanceNameHandlePairs:   "ReleaseMultipleObjectInstanceNameHandlePairs",
	KindReserveObjectInstanceNameRequest:               "ReserveObjectInstanceNameRequest",
	KindReserveObjectInstanceNameResponse:              "ReserveObjectInstanceNameResponse",
	KindReserveMultipleObjectInstanceNameRequest:       "ReserveMultipleObjectInstanceNameRequest",
	KindReserveMultipleObjectInstanceNameResponse:      "ReserveMultipleObjectInstanceNameResponse",
	KindInsertObjectInstance:                           "InsertObjectInstance",
	KindDeleteObjectInstance:                           "DeleteObjectInstance",
	KindTimeStampedDeleteObjectInstance:                "TimeStampedDeleteObjectInstance",
	KindAttributeUpdate:                                "AttributeUpdate",
	KindTimeStampedAttributeUpdate:                     "TimeStampedAttributeUpdate",
	KindInteraction:                                    "Interaction",
	KindTimeStampedInteraction:                         "TimeStampedInteraction",
	KindRequestAttributeUpdate:                         "RequestAttributeUpdate",
	KindRequestClassAttributeUpdate:                    "RequestClassAttributeUpdate",
	KindRequestFederationSave:                          "RequestFederationSave",
	KindFederationSaved:                                "FederationSaved",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "Invalid"
}
