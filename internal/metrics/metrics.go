// Package metrics exposes Prometheus instrumentation for the prober.
//
// All collectors live in a private registry owned by Metrics so that tests
// and repeated runs in one process never collide on the global registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ipfsprobe"

// Gateway operation labels.
const (
	OpFetch         = "fetch"
	OpFindProviders = "find_providers"
	OpFindPeer      = "find_peer"
)

// Call outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the collectors used by the gateway decorator and the run
// orchestration. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	gatewayCalls    *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
	items           *prometheus.CounterVec
	peers           *prometheus.CounterVec
	runs            *prometheus.CounterVec
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		gatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "External lookups by operation and outcome.",
		}, []string{"op", "outcome"}),
		gatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "call_duration_seconds",
			Help:      "Latency of external lookups.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 15, 30},
		}, []string{"op"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Probed items by website reachability and provider discovery.",
		}, []string{"website", "providers"}),
		peers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peers_total",
			Help:      "Probed providers by reachability.",
		}, []string{"reachable"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Measurement runs by final status.",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		m.gatewayCalls,
		m.gatewayDuration,
		m.items,
		m.peers,
		m.runs,
	)
	return m
}

// ObserveCall records one gateway call.
func (m *Metrics) ObserveCall(op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.gatewayCalls.WithLabelValues(op, outcome).Inc()
	m.gatewayDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveItem records one stage-1 result.
func (m *Metrics) ObserveItem(websiteReachable, hadProviders bool) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(strconv.FormatBool(websiteReachable), strconv.FormatBool(hadProviders)).Inc()
}

// ObservePeer records one stage-2 result.
func (m *Metrics) ObservePeer(reachable bool) {
	if m == nil {
		return
	}
	m.peers.WithLabelValues(strconv.FormatBool(reachable)).Inc()
}

// ObserveRun records the final status of a run ("ok", "failed", "replayed").
func (m *Metrics) ObserveRun(status string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
}

// Registry returns the registry holding all collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler that serves the metrics in the
// Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GatewayCalls returns the call counter for one operation and outcome.
func (m *Metrics) GatewayCalls(op, outcome string) prometheus.Counter {
	return m.gatewayCalls.WithLabelValues(op, outcome)
}

// RunCounter returns the run counter for one status.
func (m *Metrics) RunCounter(status string) prometheus.Counter {
	return m.runs.WithLabelValues(status)
}
