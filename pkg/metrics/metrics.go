// Package metrics provides Prometheus metrics for the association import service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "medlemsregistret"

var (
	// ImportRunsTotal tracks finished import runs by mode and final status
	ImportRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "runs_total",
			Help:      "Total number of import runs by mode and status",
		},
		[]string{"mode", "status"},
	)

	// ImportRunDuration tracks how long import runs take in seconds
	ImportRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "run_duration_seconds",
			Help:      "Duration of import runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"mode"},
	)

	// ImportRecordsTotal tracks per-record outcomes
	ImportRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "records_total",
			Help:      "Total number of imported records by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	// ImportDeletedTotal tracks associations removed by replace imports
	ImportDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "deleted_associations_total",
			Help:      "Total number of associations deleted by replace imports",
		},
	)

	// ImportsInFlight tracks runs currently processing
	ImportsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "runs_in_flight",
			Help:      "Number of import runs currently processing",
		},
	)

	// ImportEventsPublished tracks import lifecycle events sent to Kafka
	ImportEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of import events published to Kafka",
		},
		[]string{"topic", "status"},
	)
)

// RecordImportRun records a finished run
func RecordImportRun(mode, status string, durationSeconds float64) {
	ImportRunsTotal.WithLabelValues(mode, status).Inc()
	ImportRunDuration.WithLabelValues(mode).Observe(durationSeconds)
}

// RecordImportRecord records one record's outcome
func RecordImportRecord(mode, outcome string) {
	ImportRecordsTotal.WithLabelValues(mode, outcome).Inc()
}

// RecordDeleted records associations removed up front by a replace import
func RecordDeleted(count int) {
	if count > 0 {
		ImportDeletedTotal.Add(float64(count))
	}
}

// RecordEventPublished records a Kafka publish attempt
func RecordEventPublished(topic, status string) {
	ImportEventsPublished.WithLabelValues(topic, status).Inc()
}
