package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SegmentWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "segment_writes_total",
		Help: "Total number of records physically written to segment files",
	})

	SegmentWriteBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "segment_write_bytes_total",
		Help: "Total number of framed bytes written to segment files",
	})

	SegmentWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "segment_write_failures_total",
		Help: "Total number of physical segment writes that failed",
	})

	SegmentWritesRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "segment_writes_rejected_total",
		Help: "Total number of segment writes rejected by the write pool",
	})

	SegmentSyncs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "segment_syncs_total",
		Help: "Total number of segment syncs by result",
	}, []string{"result"})

	SegmentSyncLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "segment_sync_latency_seconds",
		Help:    "Time spent waiting for in-flight writes and flushing a segment",
		Buckets: prometheus.DefBuckets,
	})

	RecoveryTruncatedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "segment_recovery_truncated_bytes_total",
		Help: "Bytes discarded past the last valid record during segment recovery",
	})

	SegmentCorruptions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "segment_corruptions_total",
		Help: "Invalid records found inside the committed region of a segment",
	})

	OpenSegments = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "segment_open_segments",
		Help: "Number of segment files currently open",
	})
)
