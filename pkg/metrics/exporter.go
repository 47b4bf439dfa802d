package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/downfa11-org/segmentlog/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func init() {
	prometheus.MustRegister(SegmentWrites, SegmentWriteBytes, SegmentWriteFailures, SegmentWritesRejected)
	prometheus.MustRegister(SegmentSyncs, SegmentSyncLatency, RecoveryTruncatedBytes, SegmentCorruptions, OpenSegments)
}

// StartMetricsServer serves /metrics on the given port in the background.
func StartMetricsServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		util.Info("prometheus exporter listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			util.Error("metrics server failed: %v", err)
		}
	}()
	return srv
}

// ObserveWrite records one physical write of n framed bytes.
func ObserveWrite(n int64, err error) {
	if err != nil {
		SegmentWriteFailures.Inc()
		return
	}
	SegmentWrites.Inc()
	SegmentWriteBytes.Add(float64(n))
}

// ObserveSync records a sync attempt and how long it took.
func ObserveSync(elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	SegmentSyncs.WithLabelValues(result).Inc()
	SegmentSyncLatency.Observe(elapsed.Seconds())
}
