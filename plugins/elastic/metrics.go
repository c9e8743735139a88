package plugins

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection metrics are shared across targets and registered once; each
// ElasticMetrics instance only contributes its target label.
var (
	metricsOnce sync.Once

	connectErrors *prometheus.CounterVec
	connectionUp  *prometheus.GaugeVec
	pingDuration  *prometheus.HistogramVec
)

func initMetrics() {
	metricsOnce.Do(func() {
		connectErrors = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eshealth_connection_errors_total",
				Help: "Total number of failed cluster connection attempts",
			},
			[]string{"target"},
		)

		connectionUp = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eshealth_connection_up",
				Help: "Whether the cluster connection is established (1) or not (0)",
			},
			[]string{"target"},
		)

		pingDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eshealth_connection_ping_duration_seconds",
				Help:    "Duration of cluster ping requests in seconds",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.5s
			},
			[]string{"target"},
		)
	})
}

// ElasticMetrics records connection metrics for one target cluster
type ElasticMetrics struct {
	target string
}

// NewElasticMetrics sets up connection metrics for a target
func NewElasticMetrics(target string) *ElasticMetrics {
	initMetrics()

	connectErrors.WithLabelValues(target).Add(0)
	connectionUp.WithLabelValues(target).Set(0)

	return &ElasticMetrics{target: target}
}

// RecordConnectError counts a failed connection attempt
func (m *ElasticMetrics) RecordConnectError() {
	connectErrors.WithLabelValues(m.target).Inc()
}

// RecordConnected tracks the connection state
func (m *ElasticMetrics) RecordConnected(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	connectionUp.WithLabelValues(m.target).Set(value)
}

// RecordPing observes one ping round trip
func (m *ElasticMetrics) RecordPing(d time.Duration) {
	pingDuration.WithLabelValues(m.target).Observe(d.Seconds())
}
