// Package telemetry registers the Prometheus instruments shared across
// the scheduler, adapters, and dispatcher.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CycleDuration observes wall time per scheduler cycle.
	CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "seatsniper_cycle_duration_seconds",
		Help:    "Wall-clock duration of scheduler cycles.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"cycle"})

	// AdapterRequests counts outbound adapter calls by outcome.
	AdapterRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seatsniper_adapter_requests_total",
		Help: "Adapter calls by adapter and outcome.",
	}, []string{"adapter", "outcome"})

	// AlertsSent counts dispatched alerts by channel and outcome.
	AlertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seatsniper_alerts_sent_total",
		Help: "Alerts dispatched by channel and outcome.",
	}, []string{"channel", "outcome"})

	// TrackedEvents gauges the tracked-events map size.
	TrackedEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "seatsniper_tracked_events",
		Help: "Events currently tracked by the scheduler.",
	})
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)
