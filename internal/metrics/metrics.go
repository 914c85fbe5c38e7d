// Package metrics exposes the server node's Prometheus instrumentation.
// Every recorder is nil-safe: construct with New(registry) to enable
// collection, or keep the nil zero value for zero overhead.
// New also takes a ULID that becomes the instance_id label of every series.
package metrics

import (
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ServerMetrics instruments one server node.
type ServerMetrics struct {
	messagesDispatched *prometheus.CounterVec
	dispatchErrors     *prometheus.CounterVec
	connectsAlive      prometheus.Gauge
	federationsAlive   prometheus.Gauge
	federatesJoined    prometheus.Gauge
	pendingDepth       prometheus.Gauge

	// instanceID distinguishes this node's series when several nodes
	// of one tree scrape into the same aggregation layer.
	instanceID string
}

// New creates Prometheus-backed server metrics registered on reg.
func New(reg prometheus.Registerer, entropy ulid.ULID) *ServerMetrics {
	constLabels := prometheus.Labels{"instance_id": entropy.String()}
	return &ServerMetrics{
		instanceID: entropy.String(),
		messagesDispatched: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name:        "rtinode_messages_dispatched_total",
				Help:        "Messages dispatched by the server node, by message kind",
				ConstLabels: constLabels,
			},
			[]string{"kind"},
		),
		dispatchErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name:        "rtinode_dispatch_errors_total",
				Help:        "Dispatch failures, by message kind",
				ConstLabels: constLabels,
			},
			[]string{"kind"},
		),
		connectsAlive: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name:        "rtinode_connects_alive",
				Help:        "Transport connects currently registered on the node",
				ConstLabels: constLabels,
			},
		),
		federationsAlive: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name:        "rtinode_federations_alive",
				Help:        "Federation executions currently known to the node",
				ConstLabels: constLabels,
			},
		),
		federatesJoined: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name:        "rtinode_federates_joined",
				Help:        "Federates currently joined across all federations",
				ConstLabels: constLabels,
			},
		),
		pendingDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name:        "rtinode_pending_requests",
				Help:        "Requests forwarded upstream and still awaiting a response",
				ConstLabels: constLabels,
			},
		),
	}
}

// InstanceID returns the node's metrics correlation id.
func (m *ServerMetrics) InstanceID() string {
	if m == nil {
		return ""
	}
	return m.instanceID
}

// RecordDispatch counts one dispatched message.
func (m *ServerMetrics) RecordDispatch(kind string) {
	if m == nil {
		return
	}
	m.messagesDispatched.WithLabelValues(kind).Inc()
}

// RecordDispatchError counts one failed dispatch.
func (m *ServerMetrics) RecordDispatchError(kind string) {
	if m == nil {
		return
	}
	m.dispatchErrors.WithLabelValues(kind).Inc()
}

// SetConnectsAlive tracks the connect table size.
func (m *ServerMetrics) SetConnectsAlive(n int) {
	if m == nil {
		return
	}
	m.connectsAlive.Set(float64(n))
}

// SetFederationsAlive tracks the federation table size.
func (m *ServerMetrics) SetFederationsAlive(n int) {
	if m == nil {
		return
	}
	m.federationsAlive.Set(float64(n))
}

// SetFederatesJoined tracks the total joined federate count.
func (m *ServerMetrics) SetFederatesJoined(n int) {
	if m == nil {
		return
	}
	m.federatesJoined.Set(float64(n))
}

// SetPendingDepth tracks the pending-response list depth.
func (m *ServerMetrics) SetPendingDepth(n int) {
	if m == nil {
		return
	}
	m.pendingDepth.Set(float64(n))
}
