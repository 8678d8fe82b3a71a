// Package metrics defines Prometheus metrics for PriceSentinel.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pricesentinel"

// Fetch metrics.
var (
	FetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_requests_total",
		Help:      "Total number of page fetches by source and result.",
	}, []string{"source", "result"})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_duration_seconds",
		Help:      "Duration of page fetches in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"source"})
)

// Extraction metrics.
var (
	ObservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "observations_total",
		Help:      "Total number of price observations by source and status.",
	}, []string{"source", "status"})

	ExtractionMethodHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extraction_method_hits_total",
		Help:      "Total number of prices produced by each extraction method.",
	}, []string{"source", "method"})
)

// Alert metrics.
var (
	AlertsEmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_emitted_total",
		Help:      "Total number of alert events by kind.",
	}, []string{"kind"})

	NotificationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_failures_total",
		Help:      "Total number of messages the chat transport failed to deliver.",
	})
)

// Cycle metrics.
var (
	CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Duration of monitoring cycles in seconds.",
		Buckets:   []float64{5, 15, 30, 60, 120, 300, 600},
	}, []string{"trigger"})

	CyclesRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cycles_rejected_total",
		Help:      "Total number of manual cycles rejected because another cycle was running.",
	})

	HistorySaveFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "history_save_failures_total",
		Help:      "Total number of failed history saves.",
	})

	LastCycleTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_cycle_timestamp_seconds",
		Help:      "Unix timestamp of the last completed cycle.",
	})
)
