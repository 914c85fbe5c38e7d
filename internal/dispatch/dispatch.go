// Package dispatch is the server node's message dispatcher: the typed
// handlers behind every catalogue message, the parent/child forwarding
// with its invalidation-safe pending list, and the cascading cleanup
// when a connect dies. All of it runs on the owning server's single
// dispatch goroutine; nothing here locks.
package dispatch

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openrti/rtinode/internal/federation"
	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/logger"
	"github.com/openrti/rtinode/internal/metrics"
	"github.com/openrti/rtinode/internal/node"
	"github.com/openrti/rtinode/internal/rtierr"
	"github.com/openrti/rtinode/internal/wire"
	"github.com/openrti/rtinode/internal/wire/handshake"
)

// noConnect is the "exclude nobody" sentinel for broadcast helpers;
// connect handle 0 is a real handle and cannot serve.
const noConnect = handle.ConnectHandle(handle.Invalid)

// pendingEntry remembers a request forwarded to the parent so the
// response can travel back to its originator. When the originating
// connect dies the entry stays but loses its origin, so the eventual
// response is still consumed in order and then discarded.
type pendingEntry struct {
	origin    handle.ConnectHandle
	hasOrigin bool
	msg       wire.Message
}

// Dispatcher routes messages through one server node.
type Dispatcher struct {
	node    *node.Node
	log     *logger.Logger
	metrics *metrics.ServerMetrics
	tracer  trace.Tracer

	pending []pendingEntry
}

// New builds a Dispatcher over n. metrics may be nil.
func New(n *node.Node, log *logger.Logger, m *metrics.ServerMetrics) *Dispatcher {
	return &Dispatcher{node: n, log: log, metrics: m}
}

// Node exposes the underlying node for the harness and admin surface.
func (d *Dispatcher) Node() *node.Node { return d.node }

// SetTracer attaches a span factory; every dispatched message then
// opens one span, so a request hopping leaf to root and back reads as
// one trace. A nil tracer keeps dispatch span-free.
func (d *Dispatcher) SetTracer(t trace.Tracer) { d.tracer = t }

// InsertConnect registers a child connect, as negotiated by the
// handshake, and returns its handle.
func (d *Dispatcher) InsertConnect(sender node.MessageSender, options handshake.Options) handle.ConnectHandle {
	c := d.node.InsertConnect(sender, options)
	d.metrics.SetConnectsAlive(d.node.ConnectCount())
	d.log.Debug("connect inserted", "server", d.node.ServerPath, "connect", uint64(c.Handle))
	return c.Handle
}

// InsertParentConnect registers the connect toward the parent server.
func (d *Dispatcher) InsertParentConnect(sender node.MessageSender, options handshake.Options) (handle.ConnectHandle, error) {
	c, err := d.node.InsertParentConnect(sender, options)
	if err != nil {
		return 0, err
	}
	d.metrics.SetConnectsAlive(d.node.ConnectCount())
	d.log.Debug("parent connect inserted", "server", d.node.ServerPath, "connect", uint64(c.Handle))
	return c.Handle, nil
}

// Dispatch routes one decoded message arriving on connect. A returned
// error wrapping rtierr.ErrMessage is fatal to the connect; the
// transport layer logs and drops it.
func (d *Dispatcher) Dispatch(from handle.ConnectHandle, msg wire.Message) error {
	d.metrics.RecordDispatch(msg.MessageKind().String())

	var span trace.Span
	if d.tracer != nil {
		attrs := []attribute.KeyValue{
			attribute.String("rti.server_path", d.node.ServerPath),
			attribute.Int64("rti.connect", int64(from)),
		}
		if fm, ok := msg.(wire.FederationMessage); ok {
			attrs = append(attrs, attribute.Int64("rti.federation", int64(fm.Federation())))
		}
		_, span = d.tracer.Start(context.Background(),
			"dispatch/"+msg.MessageKind().String(),
			trace.WithAttributes(attrs...))
		defer span.End()
	}

	err := d.dispatch(from, msg)
	if err != nil {
		d.metrics.RecordDispatchError(msg.MessageKind().String())
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		d.log.Warn("dispatch failed",
			"server", d.node.ServerPath,
			"kind", msg.MessageKind().String(),
			"connect", uint64(from),
			"error", err)
	}
	return err
}

func (d *Dispatcher) dispatch(from handle.ConnectHandle, msg wire.Message) error {
	switch m := msg.(type) {
	case *wire.ConnectionLost:
		return d.acceptConnectionLost(from, m)

	case *wire.CreateFederationExecutionRequest:
		return d.forwardUpstream(from, m, func() error { return d.acceptCreateAsRoot(from, m) })
	case *wire.CreateFederationExecutionResponse:
		return d.respondDownstream(from, m)
	case *wire.DestroyFederationExecutionRequest:
		return d.forwardUpstream(from, m, func() error { return d.acceptDestroyAsRoot(from, m) })
	case *wire.DestroyFederationExecutionResponse:
		return d.respondDownstream(from, m)
	case *wire.EnumerateFederationExecutionsRequest:
		return d.forwardUpstream(from, m, func() error { return d.acceptEnumerateAsRoot(from, m) })
	case *wire.EnumerateFederationExecutionsResponse:
		return d.respondDownstream(from, m)

	case *wire.InsertFederationExecution:
		return d.acceptInsertFederationExecution(from, m)
	case *wire.ShutdownFederationExecution:
		return d.acceptShutdownFederationExecution(from, m)
	case *wire.EraseFederationExecution:
		return d.acceptEraseFederationExecution(from, m)
	case *wire.ReleaseFederationHandle:
		return d.acceptReleaseFederationHandle(from, m)

	case *wire.JoinFederationExecutionRequest:
		return d.forwardUpstream(from, m, func() error { return d.acceptJoinAsRoot(from, m) })
	case *wire.JoinFederationExecutionResponse:
		return d.acceptJoinResponse(from, m)
	case *wire.JoinFederateNotify:
		return downstreamFed(d, from, m, d.acceptJoinFederateNotify)
	case *wire.ResignFederationExecutionRequest:
		return upstreamFed(d, from, m, d.acceptResignRequest)
	case *wire.ResignFederateNotify:
		return downstreamFed(d, from, m, d.acceptResignFederateNotify)
	case *wire.ChangeAutomaticResignDirective:
		return anyFed(d, from, m, d.acceptChangeAutomaticResignDirective)
	case *wire.InsertModules:
		return downstreamFed(d, from, m, d.acceptInsertModules)

	case *wire.RegisterFederationSynchronizationPointRequest:
		return upstreamFed(d, from, m, d.acceptRegisterSyncPoint)
	case *wire.RegisterFederationSynchronizationPointResponse:
		return downstreamFed(d, from, m, d.acceptRegisterSyncPointResponse)
	case *wire.AnnounceSynchronizationPoint:
		return downstreamFed(d, from, m, d.acceptAnnounceSyncPoint)
	case *wire.SynchronizationPointAchieved:
		return upstreamFed(d, from, m, d.acceptSyncPointAchieved)
	case *wire.FederationSynchronized:
		return downstreamFed(d, from, m, d.acceptFederationSynchronized)

	case *wire.EnableTimeRegulationRequest:
		return anyFed(d, from, m, d.acceptEnableTimeRegulationRequest)
	case *wire.EnableTimeRegulationResponse:
		return anyFed(d, from, m, d.acceptEnableTimeRegulationResponse)
	case *wire.DisableTimeRegulationRequest:
		return anyFed(d, from, m, d.acceptDisableTimeRegulationRequest)
	case *wire.CommitLowerBoundTimeStamp:
		return anyFed(d, from, m, d.acceptCommitLowerBoundTimeStamp)
	case *wire.CommitLowerBoundTimeStampResponse:
		return anyFed(d, from, m, d.acceptCommitLowerBoundTimeStampResponse)
	case *wire.LockedByNextMessageRequest:
		return anyFed(d, from, m, d.acceptLockedByNextMessageRequest)

	case *wire.InsertRegion:
		return anyFed(d, from, m, d.acceptInsertRegion)
	case *wire.CommitRegion:
		return anyFed(d, from, m, d.acceptCommitRegion)
	case *wire.EraseRegion:
		return anyFed(d, from, m, d.acceptEraseRegion)

	case *wire.ChangeInteractionClassPublication:
		return anyFed(d, from, m, d.acceptChangeInteractionClassPublication)
	case *wire.ChangeObjectClassPublication:
		return anyFed(d, from, m, d.acceptChangeObjectClassPublication)
	case *wire.ChangeInteractionClassSubscription:
		return anyFed(d, from, m, d.acceptChangeInteractionClassSubscription)
	case *wire.ChangeObjectClassSubscription:
		return anyFed(d, from, m, d.acceptChangeObjectClassSubscription)

	case *wire.ObjectInstanceHandlesRequest:
		return upstreamFed(d, from, m, d.acceptObjectInstanceHandlesRequest)
	case *wire.ObjectInstanceHandlesResponse:
		return downstreamFed(d, from, m, d.acceptObjectInstanceHandlesResponse)
	case *wire.ReleaseMultipleObjectInstanceNameHandlePairs:
		return upstreamFed(d, from, m, d.acceptReleaseMultipleObjectInstances)
	case *wire.ReserveObjectInstanceNameRequest:
		return upstreamFed(d, from, m, d.acceptReserveNameRequest)
	case *wire.ReserveObjectInstanceNameResponse:
		return downstreamFed(d, from, m, d.acceptReserveNameResponse)
	case *wire.ReserveMultipleObjectInstanceNameRequest:
		return upstreamFed(d, from, m, d.acceptReserveMultipleNamesRequest)
	case *wire.ReserveMultipleObjectInstanceNameResponse:
		return downstreamFed(d, from, m, d.acceptReserveMultipleNamesResponse)

	case *wire.InsertObjectInstance:
		return anyFed(d, from, m, d.acceptInsertObjectInstance)
	case *wire.DeleteObjectInstance:
		return anyFed(d, from, m, d.acceptDeleteObjectInstance)
	case *wire.TimeStampedDeleteObjectInstance:
		return anyFed(d, from, m, d.acceptTimeStampedDeleteObjectInstance)
	case *wire.AttributeUpdate:
		return anyFed(d, from, m, d.acceptAttributeUpdate)
	case *wire.TimeStampedAttributeUpdate:
		return anyFed(d, from, m, d.acceptTimeStampedAttributeUpdate)
	case *wire.Interaction:
		return anyFed(d, from, m, d.acceptInteraction)
	case *wire.TimeStampedInteraction:
		return anyFed(d, from, m, d.acceptTimeStampedInteraction)
	case *wire.RequestAttributeUpdate:
		return anyFed(d, from, m, d.acceptRequestAttributeUpdate)
	case *wire.RequestClassAttributeUpdate:
		return anyFed(d, from, m, d.acceptRequestClassAttributeUpdate)

	case *wire.RequestFederationSave:
		return anyFed(d, from, m, d.acceptRequestFederationSave)

	default:
		return fmt.Errorf("unexpected message kind %s: %w", msg.MessageKind(), rtierr.ErrMessage)
	}
}

// forwardUpstream handles the stateless root-answered requests: at a
// non-root node the message is remembered on the pending list and sent
// to the parent; at the root the authoritative handler runs.
func (d *Dispatcher) forwardUpstream(from handle.ConnectHandle, msg wire.Message, asRoot func() error) error {
	if d.node.IsParentConnect(from) {
		return fmt.Errorf("received %s through the parent connect: %w", msg.MessageKind(), rtierr.ErrMessage)
	}
	if d.node.IsRootServer() {
		return asRoot()
	}
	d.pushPending(from, msg)
	d.node.SendToParent(msg)
	return nil
}

// respondDownstream consumes the oldest pending entry and relays the
// response to its originator, if that connect is still alive.
func (d *Dispatcher) respondDownstream(from handle.ConnectHandle, msg wire.Message) error {
	if !d.node.IsParentConnect(from) {
		return fmt.Errorf("received %s through a child connect: %w", msg.MessageKind(), rtierr.ErrMessage)
	}
	entry, ok := d.popPending()
	if !ok {
		return fmt.Errorf("no pending request for %s: %w", msg.MessageKind(), rtierr.ErrMessage)
	}
	if entry.hasOrigin {
		d.node.Send(entry.origin, msg)
	}
	return nil
}

func (d *Dispatcher) pushPending(origin handle.ConnectHandle, msg wire.Message) {
	d.pending = append(d.pending, pendingEntry{origin: origin, hasOrigin: true, msg: msg})
	d.metrics.SetPendingDepth(len(d.pending))
}

func (d *Dispatcher) popPending() (pendingEntry, bool) {
	if len(d.pending) == 0 {
		return pendingEntry{}, false
	}
	entry := d.pending[0]
	d.pending = d.pending[1:]
	d.metrics.SetPendingDepth(len(d.pending))
	return entry, true
}

// fedAny resolves the federation a message is scoped to.
func (d *Dispatcher) fedAny(msg wire.FederationMessage) (*federation.Federation, error) {
	fed, ok := d.node.Federation(msg.Federation())
	if !ok {
		return nil, fmt.Errorf("%s for unknown federation handle %d: %w",
			msg.MessageKind(), uint64(msg.Federation()), rtierr.ErrMessage)
	}
	return fed, nil
}

// fedUpstream additionally requires the message to arrive from a child
// connect.
func (d *Dispatcher) fedUpstream(from handle.ConnectHandle, msg wire.FederationMessage) (*federation.Federation, error) {
	if d.node.IsParentConnect(from) {
		return nil, fmt.Errorf("received %s through the parent connect: %w", msg.MessageKind(), rtierr.ErrMessage)
	}
	return d.fedAny(msg)
}

// fedDownstream additionally requires the message to arrive from the
// parent connect.
func (d *Dispatcher) fedDownstream(from handle.ConnectHandle, msg wire.FederationMessage) (*federation.Federation, error) {
	if !d.node.IsParentConnect(from) {
		return nil, fmt.Errorf("received %s through a child connect: %w", msg.MessageKind(), rtierr.ErrMessage)
	}
	return d.fedAny(msg)
}

// anyFed resolves the federation and runs the typed handler.
func anyFed[M wire.FederationMessage](d *Dispatcher, from handle.ConnectHandle, m M, h func(*federation.Federation, handle.ConnectHandle, M) error) error {
	fed, err := d.fedAny(m)
	if err != nil {
		return err
	}
	return h(fed, from, m)
}

// upstreamFed is anyFed for messages that must arrive from a child.
func upstreamFed[M wire.FederationMessage](d *Dispatcher, from handle.ConnectHandle, m M, h func(*federation.Federation, handle.ConnectHandle, M) error) error {
	fed, err := d.fedUpstream(from, m)
	if err != nil {
		return err
	}
	return h(fed, from, m)
}

// downstreamFed is anyFed for messages that must arrive from the
// parent.
func downstreamFed[M wire.FederationMessage](d *Dispatcher, from handle.ConnectHandle, m M, h func(*federation.Federation, handle.ConnectHandle, M) error) error {
	fed, err := d.fedDownstream(from, m)
	if err != nil {
		return err
	}
	return h(fed, from, m)
}

// acceptConnectionLost reacts to a transport-reported fault. A child's
// fault report is ignored here (the transport follows up by removing
// the connect); the parent's fault is relayed to the whole subtree.
func (d *Dispatcher) acceptConnectionLost(from handle.ConnectHandle, msg *wire.ConnectionLost) error {
	if !d.node.IsParentConnect(from) {
		return nil
	}
	d.node.BroadcastToChildren(from, msg)
	return nil
}

// RemoveConnect runs the full connection-loss cleanup for a dead (or
// deliberately disconnected) connect: synthesized resigns, reference
// release, unpublish/unsubscribe, region teardown, and finally the
// connect-table erase. If the parent died, the pending upstream
// requests are re-dispatched locally with this node acting as the new
// root.
func (d *Dispatcher) RemoveConnect(connect handle.ConnectHandle) {
	if d.tracer != nil {
		_, span := d.tracer.Start(context.Background(), "dispatch/RemoveConnect",
			trace.WithAttributes(
				attribute.String("rti.server_path", d.node.ServerPath),
				attribute.Int64("rti.connect", int64(connect)),
			))
		defer span.End()
	}
	wasParent := d.node.IsParentConnect(connect)
	if wasParent && !d.node.IsIdle() {
		d.log.Error("removing parent connect while still serving children", "server", d.node.ServerPath)
	}

	for _, fed := range d.node.Federations() {
		d.removeConnectFromFederation(fed, connect)
	}
	d.node.EraseConnect(connect)
	d.metrics.SetConnectsAlive(d.node.ConnectCount())

	if wasParent {
		// We are the root of whatever subtree remains: replay the
		// requests we had forwarded upward as if they had just
		// arrived.
		replay := d.pending
		d.pending = nil
		d.metrics.SetPendingDepth(0)
		for _, entry := range replay {
			if !entry.hasOrigin {
				continue
			}
			if err := d.dispatch(entry.origin, entry.msg); err != nil {
				d.log.Error("replaying pending request after parent loss",
					"server", d.node.ServerPath,
					"kind", entry.msg.MessageKind().String(),
					"error", err)
			}
		}
	} else {
		// Keep the entries so responses still consume in order, but
		// forget where they came from.
		for i := range d.pending {
			if d.pending[i].hasOrigin && d.pending[i].origin == connect {
				d.pending[i].hasOrigin = false
			}
		}
	}
}
