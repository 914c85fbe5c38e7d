package wire

import (
	"github.com/openrti/rtinode/internal/federation"
	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/objectmodel"
	"github.com/openrti/rtinode/internal/routing"
)

// Message is implemented by every catalogue entry.
type Message interface {
	MessageKind() Kind
}

// FederationMessage is implemented by every message scoped to one
// federation execution.
type FederationMessage interface {
	Message
	Federation() handle.FederationHandle
}

// FOMModule is the wire form of one FDD module contribution. It maps
// one to one onto objectmodel.ModuleDescription; the conversion lives
// here so the object model stays independent of wire types.
type FOMModule struct {
	Dimensions         []DimensionDecl
	UpdateRates        []UpdateRateDecl
	InteractionClasses []InteractionClassDecl
	ObjectClasses      []ObjectClassDecl
}

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
	ParentPath    string
	OrderType     uint32
	TransportType uint32
	Dimensions    []string
	Parameters    []string
}

type ObjectClassDecl struct {
	NamePath   string
	ParentPath string
	Attributes []string
}

// Description converts the wire module into the object model's insert
// input.
func (m FOMModule) Description() objectmodel.ModuleDescription {
	desc := objectmodel.ModuleDescription{}
	for _, d := range m.Dimensions {
		desc.Dimensions = append(desc.Dimensions, objectmodel.DimensionDecl{Name: d.Name, UpperBound: d.UpperBound})
	}
	for _, r := range m.UpdateRates {
		desc.UpdateRates = append(desc.UpdateRates, objectmodel.UpdateRateDecl{Name: r.Name, Rate: r.Rate})
	}
	for _, ic := range m.InteractionClasses {
		desc.InteractionClasses = append(desc.InteractionClasses, objectmodel.InteractionClassDecl{
			NamePath:      ic.NamePath,
			ParentPath:    ic.ParentPath,
			OrderType:     objectmodel.OrderType(ic.OrderType),
			TransportType: objectmodel.TransportType(ic.TransportType),
			Dimensions:    ic.Dimensions,
			Parameters:    ic.Parameters,
		})
	}
	for _, oc := range m.ObjectClasses {
		desc.ObjectClasses = append(desc.ObjectClasses, objectmodel.ObjectClassDecl{
			NamePath:   oc.NamePath,
			ParentPath: oc.ParentPath,
			Attributes: oc.Attributes,
		})
	}
	return desc
}

// ModuleFromDescription converts back for replication downstream.
func ModuleFromDescription(desc objectmodel.ModuleDescription) FOMModule {
	m := FOMModule{}
	for _, d := range desc.Dimensions {
		m.Dimensions = append(m.Dimensions, DimensionDecl{Name: d.Name, UpperBound: d.UpperBound})
	}
	for _, r := range desc.UpdateRates {
		m.UpdateRates = append(m.UpdateRates, UpdateRateDecl{Name: r.Name, Rate: r.Rate})
	}
	for _, ic := range desc.InteractionClasses {
		m.InteractionClasses = append(m.InteractionClasses, InteractionClassDecl{
			NamePath:      ic.NamePath,
			ParentPath:    ic.ParentPath,
			OrderType:     uint32(ic.OrderType),
			TransportType: uint32(ic.TransportType),
			Dimensions:    ic.Dimensions,
			Parameters:    ic.Parameters,
		})
	}
	for _, oc := range desc.ObjectClasses {
		m.ObjectClasses = append(m.ObjectClasses, ObjectClassDecl{
			NamePath:   oc.NamePath,
			ParentPath: oc.ParentPath,
			Attributes: oc.Attributes,
		})
	}
	return m
}

// ---------------------------------------------------------------------------
// Connection level

// ConnectionLost is synthesized by a transport when its peer dies; the
// dispatcher runs the full connection-loss cleanup path on it.
type ConnectionLost struct {
	FaultDescription string
}

func (*ConnectionLost) MessageKind() Kind { return KindConnectionLost }

// ---------------------------------------------------------------------------
// Federation execution lifecycle

type CreateFederationExecutionRequest struct {
	FederationName         string
	LogicalTimeFactoryName string
	Modules                []FOMModule
}

func (*CreateFederationExecutionRequest) MessageKind() Kind {
	return KindCreateFederationExecutionRequest
}

// CreateResult is the typed outcome of a create request.
type CreateResult uint32

const (
	CreateSuccess CreateResult = iota
	CreateFederationExecutionAlreadyExists
	CreateInconsistentFDD
	CreateRTIinternalError
)

type CreateFederationExecutionResponse struct {
	Result          CreateResult
	ExceptionString string
}

func (*CreateFederationExecutionResponse) MessageKind() Kind {
	return KindCreateFederationExecutionResponse
}

type DestroyFederationExecutionRequest struct {
	FederationName string
}

func (*DestroyFederationExecutionRequest) MessageKind() Kind {
	return KindDestroyFederationExecutionRequest
}

type DestroyResult uint32

const (
	DestroySuccess DestroyResult = iota
	DestroyFederationExecutionDoesNotExist
	DestroyFederatesCurrentlyJoined
)

type DestroyFederationExecutionResponse struct {
	Result DestroyResult
}

func (*DestroyFederationExecutionResponse) MessageKind() Kind {
	return KindDestroyFederationExecutionResponse
}

type EnumerateFederationExecutionsRequest struct{}

func (*EnumerateFederationExecutionsRequest) MessageKind() Kind {
	return KindEnumerateFederationExecutionsRequest
}

type FederationExecutionInformation struct {
	FederationName         string
	LogicalTimeFactoryName string
}

type EnumerateFederationExecutionsResponse struct {
	Federations []FederationExecutionInformation
}

func (*EnumerateFederationExecutionsResponse) MessageKind() Kind {
	return KindEnumerateFederationExecutionsResponse
}

// InsertFederationExecution replicates a federation into a child
// subtree when the first federate there joins.
type InsertFederationExecution struct {
	FederationHandle       handle.FederationHandle
	FederationName         string
	LogicalTimeFactoryName string
	// Options carries parent→child policy such as
	// permitTimeRegulation=false.
	Options []Option
}

func (*InsertFederationExecution) MessageKind() Kind { return KindInsertFederationExecution }
func (m *InsertFederationExecution) Federation() handle.FederationHandle {
	return m.FederationHandle
}

// ShutdownFederationExecution asks the parent to flush this node's
// now-idle view of the federation.
type ShutdownFederationExecution struct {
	FederationHandle handle.FederationHandle
}

func (*ShutdownFederationExecution) MessageKind() Kind { return KindShutdownFederationExecution }
func (m *ShutdownFederationExecution) Federation() handle.FederationHandle {
	return m.FederationHandle
}

// EraseFederationExecution flushes a federation from a child subtree.
type EraseFederationExecution struct {
	FederationHandle handle.FederationHandle
}

func (*EraseFederationExecution) MessageKind() Kind { return KindEraseFederationExecution }
func (m *EraseFederationExecution) Federation() handle.FederationHandle {
	return m.FederationHandle
}

// ReleaseFederationHandle acknowledges an erase from the leaf upward,
// completing the two-way shutdown.
type ReleaseFederationHandle struct {
	FederationHandle handle.FederationHandle
}

func (*ReleaseFederationHandle) MessageKind() Kind { return KindReleaseFederationHandle }
func (m *ReleaseFederationHandle) Federation() handle.FederationHandle {
	return m.FederationHandle
}

type InsertModules struct {
	FederationHandle handle.FederationHandle
	Modules          []FOMModule
}

func (*InsertModules) MessageKind() Kind                     { return KindInsertModules }
func (m *InsertModules) Federation() handle.FederationHandle { return m.FederationHandle }

// ---------------------------------------------------------------------------
// Join / resign

type JoinFederationExecutionRequest struct {
	FederationName string
	FederateName   string
	FederateType   string
	Modules        []FOMModule
}

func (*JoinFederationExecutionRequest) MessageKind() Kind {
	return KindJoinFederationExecutionRequest
}

type JoinResult uint32

const (
	JoinSuccess JoinResult = iota
	JoinFederationExecutionDoesNotExist
	JoinFederateNameAlreadyInUse
	JoinInconsistentFDD
)

type JoinFederationExecutionResponse struct {
	FederationHandle handle.FederationHandle
	FederateHandle   handle.FederateHandle
	FederateName     string
	FederateType     string
	Result           JoinResult
	ExceptionString  string
}

func (*JoinFederationExecutionResponse) MessageKind() Kind {
	return KindJoinFederationExecutionResponse
}
func (m *JoinFederationExecutionResponse) Federation() handle.FederationHandle {
	return m.FederationHandle
}

type JoinFederateNotify struct {
	FederationHandle handle.FederationHandle
	FederateHandle   handle.FederateHandle
	FederateName     string
	FederateType     string
}

func (*JoinFederateNotify) MessageKind() Kind                     { return KindJoinFederateNotify }
func (m *JoinFederateNotify) Federation() handle.FederationHandle { return m.FederationHandle }

type ResignFederationExecutionRequest struct {
	FederationHandle handle.FederationHandle
	FederateHandle   handle.FederateHandle
	ResignAction     uint32
}

func (*ResignFederationExecutionRequest) MessageKind() Kind {
	return KindResignFederationExecutionRequest
}
func (m *ResignFederationExecutionRequest) Federation() handle.FederationHandle {
	return m.FederationHandle
}

// Action returns the carried resign policy.
func (m *ResignFederationExecutionRequest) Action() federation.ResignAction {
	return federation.ResignAction(m.ResignAction)
}

type ResignFederateNotify struct {
	FederationHandle handle.FederationHandle
	FederateHandle   handle.FederateHandle
}

func (*ResignFederateNotify) MessageKind() Kind                     { return KindResignFederateNotify }
func (m *ResignFederateNotify) Federation() handle.FederationHandle { return m.FederationHandle }

type ChangeAutomaticResignDirective struct {
	FederationHandle handle.FederationHandle
	FederateHandle   handle.FederateHandle
	ResignAction     uint32
}

func (*ChangeAutomaticResignDirective) MessageKind() Kind {
	return KindChangeAutomaticResignDirective
}
func (m *ChangeAutomaticResignDirective) Federation() handle.FederationHandle {
	return m.FederationHandle
}

// ---------------------------------------------------------------------------
// Synchronization points

type RegisterFederationSynchronizationPointRequest struct {
	FederationHandle handle.FederationHandle
	FederateHandle   handle.FederateHandle
	Label            string
	Tag              string
	// FederateHandles empty means all current federates plus joiners.
	FederateHandles []handle.FederateHandle
}

func (*RegisterFederationSynchronizationPointRequest) MessageKind() Kind {
	return KindRegisterFederationSynchronizationPointRequest
}
func (m *RegisterFederationSynchronizationPointRequest) Federation() handle.FederationHandle {
	return m.FederationHandle
}

type RegisterSyncPointResult uint32

const (
	RegisterSyncPointSuccess RegisterSyncPointResult = iota
	RegisterSyncPointLabelNotUnique
)

type RegisterFederationSynchronizationPointResponse struct {
	FederationHandle handle.FederationHandle
	FederateHandle   handle.FederateHandle
	Label            string
	Result           RegisterSyncPointResult
}

func (*RegisterFederationSynchronizationPointResponse) MessageKind() Kind {
	return KindRegisterFederationSynchronizationPointResponse
}
func (m *RegisterFederationSynchronizationPointResponse) Federation() handle.FederationHandle {
	return m.FederationHandle
}

type AnnounceSynchronizationPoint struct {
	FederationHandle    handle.FederationHandle
	Label               string
	Tag                 string
	AddJoiningFederates bool
	FederateHandles     []handle.FederateHandle
}

func (*AnnounceSynchronizationPoint) MessageKind() Kind {
	return KindAnnounceSynchronizationPoint
}
func (m *AnnounceSynchronizationPoint) Federation() handle.FederationHandle {
	return m.FederationHandle
}

// FederateAchievedPair marks one federate's achievement with its
// success bit; a resigned federate's synthesized achievement carries
// Successful=false.
type FederateAchievedPair struct {
	FederateHandle handle.FederateHandle
	Successful     bool
}

type SynchronizationPointAchieved struct {
	FederationHandle handle.FederationHandle
	Label            string
	Achieved         []FederateAchievedPair
}

func (*SynchronizationPointAchieved) MessageKind() Kind {
	return KindSynchronizationPointAchieved
}
func (m *SynchronizationPointAchieved) Federation() handle.FederationHandle {
	return m.FederationHandle
}

type FederationSynchronized struct {
	FederationHandle handle.FederationHandle
	Label            string
	Achieved         []FederateAchievedPair
}

func (*FederationSynchronized) MessageKind() Kind                     { return KindFederationSynchronized }
func (m *FederationSynchronized) Federation() handle.FederationHandle { return m.FederationHandle }

// ---------------------------------------------------------------------------
// Time management

type EnableTimeRegulationRequest struct {
	FederationHandle handle.FederationHandle
	FederateHandle   handle.FederateHandle
	TimeStamp        uint64
	CommitID         uint64
}

func (*EnableTimeRegulationRequest) MessageKind() Kind { return KindEnableTimeRegulationRequest }
func (m *EnableTimeRegulationRequest) Federation() handle.FederationHandle {
	return m.FederationHandle
}

type EnableTimeRegulationResponse struct {
	FederationHandle handle.FederationHandle
	FederateHandle   handle.FederateHandle
	TimeStampValid   bool
	TimeStamp        uint64
}

func (*EnableTimeRegulationResponse) MessageKind() Kind { return KindEnableTimeRegulationResponse }
func (m *EnableTimeRegulationResponse) Federation() handle.FederationHandle {
	return m.FederationHandle
}

type DisableTimeRegulationRequest struct {
	FederationHandle handle.FederationHandle
	FederateHandle   handle.FederateHandle
}

func (*DisableTimeRegulationRequest) MessageKind() Kind { return KindDisableTimeRegulationRequest }
func (m *DisableTimeRegulationRequest) Federation() handle.FederationHandle {
	return m.FederationHandle
}

type CommitLowerBoundTimeStamp struct {
	FederationHandle handle.FederationHandle
	FederateHandle   handle.FederateHandle
	TimeStamp        uint64
	CommitType       uint32
	CommitID         uint64
}

func (*CommitLowerBoundTimeStamp) MessageKind() Kind { return KindCommitLowerBoundTimeStamp }
func (m *CommitLowerBoundTimeStamp) Federation() handle.FederationHandle {
	return m.FederationHandle
}

// Kind returns the carried commit selector.
func (m *CommitLowerBoundTimeStamp) Kind() federation.TimeRegulationKind {
	return federation.TimeRegulationKind(m.CommitType)
}

type CommitLowerBoundTimeStampResponse struct {
	FederationHandle handle.FederationHandle
	FederateHandle   handle.FederateHandle
	CommitID         uint64
}

func (*CommitLowerBoundTimeStampResponse) MessageKind() Kind {
	return KindCommitLowerBoundTimeStampResponse
}
func (m *CommitLowerBoundTimeStampResponse) Federation() handle.FederationHandle {
	return m.FederationHandle
}

type LockedByNextMessageRequest struct {
	FederationHandle handle.FederationHandle
	FederateHandle   handle.FederateHandle
	TimeStamp        uint64
}

func (*LockedByNextMessageRequest) MessageKind() Kind { return KindLockedByNextMessageRequest }
func (m *LockedByNextMessageRequest) Federation() handle.FederationHandle {
	return m.FederationHandle
}

// ---------------------------------------------------------------------------
// Regions

type RegionDimensions struct {
	RegionHandle   handle.RegionHandle
	FederateHandle handle.FederateHandle
	Dimensions     []handle.DimensionHandle
}

type InsertRegion struct {
	FederationHandle handle.FederationHandle
	Regions          []RegionDimensions
}

func (*InsertRegion) MessageKind() Kind                     { return KindInsertRegion }
func (m *InsertRegion) Federation() handle.FederationHandle { return m.FederationHandle }

type DimensionBounds struct {
	Dimension handle.DimensionHandle
	Lower     uint64
	Upper     uint64
}

type RegionValue struct {
	RegionHandle handle.RegionHandle
	Bounds       []DimensionBounds
}

type CommitRegion struct {
	FederationHandle handle.FederationHandle
	Regions          []RegionValue
}

func (*CommitRegion) MessageKind() Kind                     { return KindCommitRegion }
func (m *CommitRegion) Federation() handle.FederationHandle { return m.FederationHandle }

type EraseRegion struct {
	FederationHandle handle.FederationHandle
	Regions          []handle.RegionHandle
}

func (*EraseRegion) MessageKind() Kind                     { return KindEraseRegion }
func (m *EraseRegion) Federation() handle.FederationHandle { return m.FederationHandle }

// ---------------------------------------------------------------------------
// Publication / subscription

type ChangeInteractionClassPublication struct {
	FederationHandle       handle.FederationHandle
	InteractionClassHandle handle.InteractionClassHandle
	PublicationType        uint32
}

func (*ChangeInteractionClassPublication) MessageKind() Kind {
	return KindChangeInteractionClassPublication
}
func (m *ChangeInteractionClassPublication) Federation() handle.FederationHandle {
	return m.FederationHandle
}

// Publication returns the typed publication state.
func (m *ChangeInteractionClassPublication) Publication() routing.PublicationType {
	return routing.PublicationType(m.PublicationType)
}

type ChangeObjectClassPublication struct {
	FederationHandle  handle.FederationHandle
	ObjectClassHandle handle.ObjectClassHandle
	AttributeHandles  []handle.AttributeHandle
	PublicationType   uint32
}

func (*ChangeObjectClassPublication) MessageKind() Kind {
	return KindChangeObjectClassPublication
}
func (m *ChangeObjectClassPublication) Federation() handle.FederationHandle {
	return m.FederationHandle
}

func (m *ChangeObjectClassPublication) Publication() routing.PublicationType {
	return routing.PublicationType(m.PublicationType)
}

type ChangeInteractionClassSubscription struct {
	FederationHandle       handle.FederationHandle
	InteractionClassHandle handle.InteractionClassHandle
	SubscriptionType       uint32
}

func (*ChangeInteractionClassSubscription) MessageKind() Kind {
	return KindChangeInteractionClassSubscription
}
func (m *ChangeInteractionClassSubscription) Federation() handle.FederationHandle {
	return m.FederationHandle
}

func (m *ChangeInteractionClassSubscription) Subscription() routing.SubscriptionType {
	return routing.SubscriptionType(m.SubscriptionType)
}

type ChangeObjectClassSubscription struct {
	FederationHandle  handle.FederationHandle
	ObjectClassHandle handle.ObjectClassHandle
	AttributeHandles  []handle.AttributeHandle
	SubscriptionType  uint32
}

func (*ChangeObjectClassSubscription) MessageKind() Kind {
	return KindChangeObjectClassSubscription
}
func (m *ChangeObjectClassSubscription) Federation() handle.FederationHandle {
	return m.FederationHandle
}

func (m *ChangeObjectClassSubscription) Subscription() routing.SubscriptionType {
	return routing.SubscriptionType(m.SubscriptionType)
}

// ---------------------------------------------------------------------------
// Object instance handles and names

type ObjectInstanceHandlesRequest struct {
	FederationHandle handle.FederationHandle
	FederateHandle   handle.FederateHandle
	Count            uint32
}

func (*ObjectInstanceHandlesRequest) MessageKind() Kind { return KindObjectInstanceHandlesRequest }
func (m *ObjectInstanceHandlesRequest) Federation() handle.FederationHandle {
	return m.FederationHandle
}

type ObjectInstanceHandleNamePair struct {
	Handle handle.ObjectInstanceHandle
	Name   string
}

type ObjectInstanceHandlesResponse struct {
	FederationHandle handle.FederationHandle
	FederateHandle   handle.FederateHandle
	Pairs            []ObjectInstanceHandleNamePair
}

func (*ObjectInstanceHandlesResponse) MessageKind() Kind {
	return KindObjectInstanceHandlesResponse
}
func (m *ObjectInstanceHandlesResponse) Federation() handle.FederationHandle {
	return m.FederationHandle
}

type ReleaseMultipleObjectInstanceNameHandlePairs struct {
	FederationHandle handle.FederationHandle
	Handles          []handle.ObjectInstanceHandle
}

func (*ReleaseMultipleObjectInstanceNameHandlePairs) MessageKind() Kind {
	return KindReleaseMultipleObjectInstanceNameHandlePairs
}
func (m *ReleaseMultipleObjectInstanceNameHandlePairs) Federation() handle.FederationHandle {
	return m.FederationHandle
}

type ReserveObjectInstanceNameRequest struct {
	FederationHandle handle.FederationHandle
	FederateHandle   handle.FederateHandle
	Name             string
}

func (*ReserveObjectInstanceNameRequest) MessageKind() Kind {
	return KindReserveObjectInstanceNameRequest
}
func (m *ReserveObjectInstanceNameRequest) Federation() handle.FederationHandle {
	return m.FederationHandle
}

type ReserveObjectInstanceNameResponse struct {
	FederationHandle handle.FederationHandle
	FederateHandle   handle.FederateHandle
	Pair             ObjectInstanceHandleNamePair
	Success          bool
}

func (*ReserveObjectInstanceNameResponse) MessageKind() Kind {
	return KindReserveObjectInstanceNameResponse
}
func (m *ReserveObjectInstanceNameResponse) Federation() handle.FederationHandle {
	return m.FederationHandle
}

type ReserveMultipleObjectInstanceNameRequest struct {
	FederationHandle handle.FederationHandle
	FederateHandle   handle.FederateHandle
	Names            []string
}

func (*ReserveMultipleObjectInstanceNameRequest) MessageKind() Kind {
	return KindReserveMultipleObjectInstanceNameRequest
}
func (m *ReserveMultipleObjectInstanceNameRequest) Federation() handle.FederationHandle {
	return m.FederationHandle
}

type ReserveMultipleObjectInstanceNameResponse struct {
	FederationHandle handle.FederationHandle
	FederateHandle   handle.FederateHandle
	Pairs            []ObjectInstanceHandleNamePair
	Success          bool
}

func (*ReserveMultipleObjectInstanceNameResponse) MessageKind() Kind {
	return KindReserveMultipleObjectInstanceNameResponse
}
func (m *ReserveMultipleObjectInstanceNameResponse) Federation() handle.FederationHandle {
	return m.FederationHandle
}

// ---------------------------------------------------------------------------
// Object instance traffic

// AttributeState marks one attribute the inserting connect owns.
type AttributeState struct {
	AttributeHandle handle.AttributeHandle
}

type InsertObjectInstance struct {
	FederationHandle     handle.FederationHandle
	ObjectInstanceHandle handle.ObjectInstanceHandle
	ObjectClassHandle    handle.ObjectClassHandle
	Name                 string
	AttributeStates      []AttributeState
}

func (*InsertObjectInstance) MessageKind() Kind                     { return KindInsertObjectInstance }
func (m *InsertObjectInstance) Federation() handle.FederationHandle { return m.FederationHandle }

type DeleteObjectInstance struct {
	FederationHandle     handle.FederationHandle
	FederateHandle       handle.FederateHandle
	ObjectInstanceHandle handle.ObjectInstanceHandle
	Tag                  []byte
}

func (*DeleteObjectInstance) MessageKind() Kind                     { return KindDeleteObjectInstance }
func (m *DeleteObjectInstance) Federation() handle.FederationHandle { return m.FederationHandle }

type TimeStampedDeleteObjectInstance struct {
	FederationHandle        handle.FederationHandle
	FederateHandle          handle.FederateHandle
	ObjectInstanceHandle    handle.ObjectInstanceHandle
	Tag                     []byte
	TimeStamp               uint64
	OrderType               uint32
	MessageRetractionHandle uint64
}

func (*TimeStampedDeleteObjectInstance) MessageKind() Kind {
	return KindTimeStampedDeleteObjectInstance
}
func (m *TimeStampedDeleteObjectInstance) Federation() handle.FederationHandle {
	return m.FederationHandle
}

type AttributeValue struct {
	AttributeHandle handle.AttributeHandle
	Value           []byte
}

type AttributeUpdate struct {
	FederationHandle     handle.FederationHandle
	FederateHandle       handle.FederateHandle
	ObjectInstanceHandle handle.ObjectInstanceHandle
	Tag                  []byte
	TransportationType   uint32
	AttributeValues      []AttributeValue
}

func (*AttributeUpdate) MessageKind() Kind                     { return KindAttributeUpdate }
func (m *AttributeUpdate) Federation() handle.FederationHandle { return m.FederationHandle }

type TimeStampedAttributeUpdate struct {
	FederationHandle        handle.FederationHandle
	FederateHandle          handle.FederateHandle
	ObjectInstanceHandle    handle.ObjectInstanceHandle
	Tag                     []byte
	TransportationType      uint32
	AttributeValues         []AttributeValue
	TimeStamp               uint64
	OrderType               uint32
	MessageRetractionHandle uint64
}

func (*TimeStampedAttributeUpdate) MessageKind() Kind { return KindTimeStampedAttributeUpdate }
func (m *TimeStampedAttributeUpdate) Federation() handle.FederationHandle {
	return m.FederationHandle
}

type ParameterValue struct {
	ParameterHandle handle.ParameterHandle
	Value           []byte
}

type Interaction struct {
	FederationHandle       handle.FederationHandle
	FederateHandle         handle.FederateHandle
	InteractionClassHandle handle.InteractionClassHandle
	Tag                    []byte
	TransportationType     uint32
	ParameterValues        []ParameterValue
}

func (*Interaction) MessageKind() Kind                     { return KindInteraction }
func (m *Interaction) Federation() handle.FederationHandle { return m.FederationHandle }

type TimeStampedInteraction struct {
	FederationHandle        handle.FederationHandle
	FederateHandle          handle.FederateHandle
	InteractionClassHandle  handle.InteractionClassHandle
	Tag                     []byte
	TransportationType      uint32
	ParameterValues         []ParameterValue
	TimeStamp               uint64
	OrderType               uint32
	MessageRetractionHandle uint64
}

func (*TimeStampedInteraction) MessageKind() Kind                     { return KindTimeStampedInteraction }
func (m *TimeStampedInteraction) Federation() handle.FederationHandle { return m.FederationHandle }

type RequestAttributeUpdate struct {
	FederationHandle     handle.FederationHandle
	ObjectInstanceHandle handle.ObjectInstanceHandle
	AttributeHandles     []handle.AttributeHandle
	Tag                  []byte
}

func (*RequestAttributeUpdate) MessageKind() Kind                     { return KindRequestAttributeUpdate }
func (m *RequestAttributeUpdate) Federation() handle.FederationHandle { return m.FederationHandle }

type RequestClassAttributeUpdate struct {
	FederationHandle  handle.FederationHandle
	ObjectClassHandle handle.ObjectClassHandle
	AttributeHandles  []handle.AttributeHandle
	Tag               []byte
}

func (*RequestClassAttributeUpdate) MessageKind() Kind {
	return KindRequestClassAttributeUpdate
}
func (m *RequestClassAttributeUpdate) Federation() handle.FederationHandle {
	return m.FederationHandle
}

// ---------------------------------------------------------------------------
// Save / restore handshake

// RequestFederationSave is answered not-supported by policy; the shape
// exists so an ambassador asking for a save gets a definite reply
// instead of hanging.
type RequestFederationSave struct {
	FederationHandle handle.FederationHandle
	Label            string
}

func (*RequestFederationSave) MessageKind() Kind                     { return KindRequestFederationSave }
func (m *RequestFederationSave) Federation() handle.FederationHandle { return m.FederationHandle }

type FederationSaved struct {
	FederationHandle handle.FederationHandle
	Label            string
	Success          bool
}

func (*FederationSaved) MessageKind() Kind                     { return KindFederationSaved }
func (m *FederationSaved) Federation() handle.FederationHandle { return m.FederationHandle }

// Option is one negotiated name/values pair from the connect
// handshake's option map.
type Option struct {
	Name   string
	Values []string
}

// OptionValue returns the first value recorded for name.
func OptionValue(options []Option, name string) (string, bool) {
	for _, o := range options {
		if o.Name == name && len(o.Values) > 0 {
			return o.Values[0], true
		}
	}
	return "", false
}
