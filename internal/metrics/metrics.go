// Package metrics implements Prometheus metrics for an analysis job, and
// the consumer-contract CSV aggregation of PAG edges (csv.go), grounded on
// the teacher's internal/metrics package (prometheus/client_golang,
// promauto) with the capture-pipeline instrument set replaced by PAG
// pipeline instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsAdmittedTotal counts LogRecords admitted by the throttled
	// replayer, per analysis worker.
	RecordsAdmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "st2_records_admitted_total",
			Help: "Total number of trace records admitted by the replayer",
		},
		[]string{"job", "worker"},
	)

	// EdgesEmittedTotal counts PAG edges produced, split local vs remote.
	EdgesEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "st2_edges_emitted_total",
			Help: "Total number of PAG edges emitted",
		},
		[]string{"job", "worker", "kind"}, // kind: local, remote
	)

	// EdgeDurationSeconds measures PAG edge duration.
	EdgeDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "st2_edge_duration_seconds",
			Help:    "Duration of PAG edges in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20), // 1us to ~1s
		},
		[]string{"job", "worker", "activity_type"},
	)

	// JobStatus tracks the current AnalysisJob status.
	JobStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "st2_job_status",
			Help: "Current status of analysis jobs (0=stopped, 1=running, 2=error)",
		},
		[]string{"job", "status"},
	)

	// InputFrontierEpoch tracks each worker's current minimum input epoch.
	InputFrontierEpoch = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "st2_input_frontier_epoch",
			Help: "Current minimum epoch in the replayer's input frontier",
		},
		[]string{"job", "worker"},
	)

	// RemoteJoinPendingTotal tracks unmatched halves held in the remote-edge
	// join's correlation maps.
	RemoteJoinPendingTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "st2_remote_join_pending_total",
			Help: "Number of unmatched send/receive halves buffered in the remote-edge join",
		},
		[]string{"job", "worker", "side"}, // side: send, recv
	)

	// AssertionViolationsTotal counts AssertionViolation errors surfaced by
	// any pipeline stage.
	AssertionViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "st2_assertion_violations_total",
			Help: "Total number of AssertionViolation errors surfaced by the pipeline",
		},
		[]string{"job", "worker", "stage"},
	)

	// SinkErrorsTotal counts errors returned by a PagSink's Write/Flush/Stop.
	SinkErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "st2_sink_errors_total",
			Help: "Total number of errors returned by a configured PagSink",
		},
		[]string{"job", "sink", "op"}, // op: write, flush, stop
	)

	// SourceErrorsTotal counts fatal decode/IO errors surfaced by an
	// EventSource and released by the replayer (spec §4.1 Failure semantics).
	SourceErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "st2_source_errors_total",
			Help: "Total number of fatal decode/IO errors surfaced by an EventSource",
		},
		[]string{"job", "worker", "source"},
	)
)

// JobStatusValue represents job status as a numeric value for Prometheus gauge.
const (
	JobStatusStopped = 0
	JobStatusRunning = 1
	JobStatusError   = 2
)
