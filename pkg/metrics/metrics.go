// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_http_requests_total",
			Help: "Total HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes request latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// TransfersStarted counts accepted transfer requests by route.
	TransfersStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_transfers_started_total",
			Help: "Transfers accepted by source and target domain",
		},
		[]string{"source", "target"},
	)

	// TransfersFinished counts terminal outcomes.
	TransfersFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_transfers_finished_total",
			Help: "Transfers reaching a terminal state",
		},
		[]string{"status", "recoverable"},
	)

	// TransferStageDuration observes time spent per state machine stage.
	TransferStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_transfer_stage_duration_seconds",
			Help:    "Time spent in each transfer stage",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"stage"},
	)

	// AttestationAttempts observes how many polls an attestation took.
	AttestationAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bridge_attestation_attempts",
			Help:    "Attestation polls until completion",
			Buckets: []float64{1, 2, 3, 5, 8, 12, 16, 20},
		},
	)
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
