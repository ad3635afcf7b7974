// Package metrics provides Prometheus metrics for pathproxy.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pathproxy"

// Pipeline outcomes, used as the "outcome" label.
const (
	OutcomeRelayed       = "relayed"
	OutcomeIncomplete    = "incomplete"
	OutcomeBadTarget     = "bad_target"
	OutcomeEmptyHost     = "empty_host"
	OutcomeConnectFailed = "connect_failed"
	OutcomeForwardFailed = "forward_failed"
	OutcomeRelayError    = "relay_error"
	OutcomePanic         = "panic"
	OutcomeGateCanceled  = "gate_canceled"
)

var (
	// PipelinesActive tracks pipelines currently holding a gate slot.
	PipelinesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipelines_active",
			Help:      "Number of proxy pipelines currently holding a concurrency slot",
		},
	)

	// GateCeiling exposes the configured concurrency ceiling.
	GateCeiling = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gate_ceiling",
			Help:      "Configured maximum number of concurrent pipelines",
		},
	)

	// GateWaitDuration measures how long accepted connections wait for a slot.
	GateWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gate_wait_seconds",
			Help:      "Time spent waiting for a concurrency slot",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1, 10, 60},
		},
	)

	// PipelinesTotal counts finished pipelines by outcome.
	PipelinesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipelines_total",
			Help:      "Total number of finished proxy pipelines",
		},
		[]string{"outcome"},
	)

	// RequestsTotal counts forwarded requests by scheme and rewrite mode.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of requests forwarded to a target",
		},
		[]string{"scheme", "mode"},
	)

	// ConnectDuration measures target resolution plus connect time.
	ConnectDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connect_duration_seconds",
			Help:      "Duration of target resolution and connect in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	// RelayBytes counts relayed bytes by direction.
	RelayBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_bytes_total",
			Help:      "Total bytes relayed between clients and targets",
		},
		[]string{"direction"},
	)
)

// RecordPipeline records a finished pipeline.
func RecordPipeline(outcome string) {
	PipelinesTotal.WithLabelValues(outcome).Inc()
}

// RecordConnect records a connect attempt.
func RecordConnect(ok bool, seconds float64) {
	status := "ok"
	if !ok {
		status = "error"
	}
	ConnectDuration.WithLabelValues(status).Observe(seconds)
}

// RecordRelay records bytes moved by one relay.
func RecordRelay(clientToTarget, targetToClient int64) {
	RelayBytes.WithLabelValues("client_to_target").Add(float64(clientToTarget))
	RelayBytes.WithLabelValues("target_to_client").Add(float64(targetToClient))
}

// RecordRequest records a request forwarded to a target.
func RecordRequest(scheme, mode string) {
	RequestsTotal.WithLabelValues(scheme, mode).Inc()
}
