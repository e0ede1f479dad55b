package etp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type serverMetrics struct {
	sessions prometheus.Gauge
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	bytes    *prometheus.CounterVec
}

// newServerMetrics creates the server's collectors and registers them with
// reg. A nil reg leaves them unregistered.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	f := promauto.With(reg)
	return &serverMetrics{
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "hdfproxy",
			Subsystem: "etp",
			Name:      "open_sessions",
			Help:      "Number of open protocol sessions",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hdfproxy",
			Subsystem: "etp",
			Name:      "requests_total",
			Help:      "Requests handled, by message and outcome",
		}, []string{"message", "outcome"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hdfproxy",
			Subsystem: "etp",
			Name:      "request_duration_seconds",
			Help:      "Time spent handling a request",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"message"}),
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hdfproxy",
			Subsystem: "etp",
			Name:      "frame_bytes_total",
			Help:      "Frame bytes received and sent",
		}, []string{"direction"}),
	}
}
