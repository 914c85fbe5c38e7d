// Package codec frames wire messages onto byte streams. The frame is
// [length:uint32][kind:uint32][XDR body], everything big endian; the
// body is the message struct XDR-marshalled per RFC 4506. The server
// core only depends on the Codec interface, never on the framing.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/openrti/rtinode/internal/rtierr"
	"github.com/openrti/rtinode/internal/wire"
)

// maxFrameLength bounds a single message frame so a corrupted or
// hostile peer cannot make us allocate unbounded memory.
const maxFrameLength = 16 * 1024 * 1024

// Codec marshals typed messages to and from a byte stream.
type Codec interface {
	Encode(w io.Writer, msg wire.Message) error
	Decode(r io.Reader) (wire.Message, error)
}

// XDR is the reference Codec. It is stateless and safe for concurrent
// use on distinct streams.
type XDR struct{}

// NewXDR returns the reference codec.
func NewXDR() *XDR { return &XDR{} }

func (c *XDR) Encode(w io.Writer, msg wire.Message) error {
	var body bytes.Buffer
	if _, err := xdr.Marshal(&body, msg); err != nil {
		return fmt.Errorf("marshal %s: %w", msg.MessageKind(), err)
	}

	var header [8]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(body.Len()))
	binary.BigEndian.PutUint32(header[4:8], uint32(msg.MessageKind()))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

func (c *XDR) Decode(r io.Reader) (wire.Message, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(header[0:4])
	kind := wire.Kind(binary.BigEndian.Uint32(header[4:8]))

	if length > maxFrameLength {
		return nil, fmt.Errorf("frame length %d exceeds maximum: %w", length, rtierr.ErrMessage)
	}
	msg := newMessage(kind)
	if msg == nil {
		return nil, fmt.Errorf("unknown message kind %d: %w", uint32(kind), rtierr.ErrMessage)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	if _, err := xdr.Unmarshal(bytes.NewReader(body), msg); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %v: %w", kind, err, rtierr.ErrMessage)
	}
	return msg, nil
}

// newMessage returns a fresh zero message for kind, or nil if the kind
// is not in the catalogue.
func newMessage(kind wire.Kind) wire.Message {
	switch kind {
	case wire.KindConnectionLost:
		return &wire.ConnectionLost{}
	case wire.KindCreateFederationExecutionRequest:
		return &wire.CreateFederationExecutionRequest{}
	case wire.KindCreateFederationExecutionResponse:
		return &wire.CreateFederationExecutionResponse{}
	case wire.KindDestroyFederationExecutionRequest:
		return &wire.DestroyFederationExecutionRequest{}
	case wire.KindDestroyFederationExecutionResponse:
		return &wire.DestroyFederationExecutionResponse{}
	case wire.KindEnumerateFederationExecutionsRequest:
		return &wire.EnumerateFederationExecutionsRequest{}
	case wire.KindEnumerateFederationExecutionsResponse:
		return &wire.EnumerateFederationExecutionsResponse{}
	case wire.KindInsertFederationExecution:
		return &wire.InsertFederationExecution{}
	case wire.KindShutdownFederationExecution:
		return &wire.ShutdownFederationExecution{}
	case wire.KindEraseFederationExecution:
		return &wire.EraseFederationExecution{}
	case wire.KindReleaseFederationHandle:
		return &wire.ReleaseFederationHandle{}
	case wire.KindInsertModules:
		return &wire.InsertModules{}
	case wire.KindJoinFederationExecutionRequest:
		return &wire.JoinFederationExecutionRequest{}
	case wire.KindJoinFederationExecutionResponse:
		return &wire.JoinFederationExecutionResponse{}
	case wire.KindJoinFederateNotify:
		return &wire.JoinFederateNotify{}
	case wire.KindResignFederationExecutionRequest:
		return &wire.ResignFederationExecutionRequest{}
	case wire.KindResignFederateNotify:
		return &wire.ResignFederateNotify{}
	case wire.KindChangeAutomaticResignDirective:
		return &wire.ChangeAutomaticResignDirective{}
	case wire.KindRegisterFederationSynchronizationPointRequest:
		return &wire.RegisterFederationSynchronizationPointRequest{}
	case wire.KindRegisterFederationSynchronizationPointResponse:
		return &wire.RegisterFederationSynchronizationPointResponse{}
	case wire.KindAnnounceSynchronizationPoint:
		return &wire.AnnounceSynchronizationPoint{}
	case wire.KindSynchronizationPointAchieved:
		return &wire.SynchronizationPointAchieved{}
	case wire.KindFederationSynchronized:
		return &wire.FederationSynchronized{}
	case wire.KindEnableTimeRegulationRequest:
		return &wire.EnableTimeRegulationRequest{}
	case wire.KindEnableTimeRegulationResponse:
		return &wire.EnableTimeRegulationResponse{}
	case wire.KindDisableTimeRegulationRequest:
		return &wire.DisableTimeRegulationRequest{}
	case wire.KindCommitLowerBoundTimeStamp:
		return &wire.CommitLowerBoundTimeStamp{}
	case wire.KindCommitLowerBoundTimeStampResponse:
		return &wire.CommitLowerBoundTimeStampResponse{}
	case wire.KindLockedByNextMessageRequest:
		return &wire.LockedByNextMessageRequest{}
	case wire.KindInsertRegion:
		return &wire.InsertRegion{}
	case wire.KindCommitRegion:
		return &wire.CommitRegion{}
	case wire.KindEraseRegion:
		return &wire.EraseRegion{}
	case wire.KindChangeInteractionClassPublication:
		return &wire.ChangeInteractionClassPublication{}
	case wire.KindChangeObjectClassPublication:
		return &wire.ChangeObjectClassPublication{}
	case wire.KindChangeInteractionClassSubscription:
		return &wire.ChangeInteractionClassSubscription{}
	case wire.KindChangeObjectClassSubscription:
		return &wire.ChangeObjectClassSubscription{}
	case wire.KindObjectInstanceHandlesRequest:
		return &wire.ObjectInstanceHandlesRequest{}
	case wire.KindObjectInstanceHandlesResponse:
		return &wire.ObjectInstanceHandlesResponse{}
	case wire.KindReleaseMultipleObjectInstanceNameHandlePairs:
		return &wire.ReleaseMultipleObjectInstanceNameHandlePairs{}
	case wire.KindReserveObjectInstanceNameRequest:
		return &wire.ReserveObjectInstanceNameRequest{}
	case wire.KindReserveObjectInstanceNameResponse:
		return &wire.ReserveObjectInstanceNameResponse{}
	case wire.KindReserveMultipleObjectInstanceNameRequest:
		return &wire.ReserveMultipleObjectInstanceNameRequest{}
	case wire.KindReserveMultipleObjectInstanceNameResponse:
		return &wire.ReserveMultipleObjectInstanceNameResponse{}
	case wire.KindInsertObjectInstance:
		return &wire.InsertObjectInstance{}
	case wire.KindDeleteObjectInstance:
		return &wire.DeleteObjectInstance{}
	case wire.KindTimeStampedDeleteObjectInstance:
		return &wire.TimeStampedDeleteObjectInstance{}
	case wire.KindAttributeUpdate:
		return &wire.AttributeUpdate{}
	case wire.KindTimeStampedAttributeUpdate:
		return &wire.TimeStampedAttributeUpdate{}
	case wire.KindInteraction:
		return &wire.Interaction{}
	case wire.KindTimeStampedInteraction:
		return &wire.TimeStampedInteraction{}
	case wire.KindRequestAttributeUpdate:
		return &wire.RequestAttributeUpdate{}
	case wire.KindRequestClassAttributeUpdate:
		return &wire.RequestClassAttributeUpdate{}
	case wire.KindRequestFederationSave:
		return &wire.RequestFederationSave{}
	case wire.KindFederationSaved:
		return &wire.FederationSaved{}
	default:
		return nil
	}
}
