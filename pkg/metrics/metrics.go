// Package metrics provides Prometheus instrumentation for the in-process
// sandbox host.
//
// All methods are nil-safe: a nil *DispatchMetrics records nothing, so
// hosts that do not care about metrics pass nil and pay no overhead.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics tracks guest dispatches, outbound host calls, and aborts
// for one or more sandboxes.
type DispatchMetrics struct {
	dispatches *prometheus.CounterVec
	hostCalls  *prometheus.CounterVec
	aborts     prometheus.Counter
	duration   *prometheus.HistogramVec
}

// Dispatch outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomeAbort = "abort"
)

// NewDispatchMetrics creates and registers the sandbox metric set.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	m := &DispatchMetrics{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hyperlight",
			Subsystem: "sandbox",
			Name:      "dispatch_total",
			Help:      "Guest function dispatches by function and outcome.",
		}, []string{"function", "outcome"}),
		hostCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hyperlight",
			Subsystem: "sandbox",
			Name:      "host_call_total",
			Help:      "Outbound host function calls by function.",
		}, []string{"function"}),
		aborts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hyperlight",
			Subsystem: "sandbox",
			Name:      "abort_total",
			Help:      "Unstructured guest aborts.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hyperlight",
			Subsystem: "sandbox",
			Name:      "dispatch_duration_seconds",
			Help:      "Guest dispatch wall time by function.",
			Buckets:   prometheus.ExponentialBuckets(10e-6, 4, 10),
		}, []string{"function"}),
	}
	reg.MustRegister(m.dispatches, m.hostCalls, m.aborts, m.duration)
	return m
}

// ObserveDispatch records one completed dispatch.
func (m *DispatchMetrics) ObserveDispatch(function, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(function, outcome).Inc()
	m.duration.WithLabelValues(function).Observe(d.Seconds())
}

// ObserveHostCall records one serviced outbound call.
func (m *DispatchMetrics) ObserveHostCall(function string) {
	if m == nil {
		return
	}
	m.hostCalls.WithLabelValues(function).Inc()
}

// ObserveAbort records one unstructured abort.
func (m *DispatchMetrics) ObserveAbort() {
	if m == nil {
		return
	}
	m.aborts.Inc()
}
