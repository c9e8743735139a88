package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/elastic-ops/eshealth/internal/config"
)

// ClusterSample carries the numeric slice of a health document that is
// exported as gauges. StatusOrdinal ranks red=0, yellow=1, green=2.
type ClusterSample struct {
	StatusOrdinal       int
	Nodes               int64
	DataNodes           int64
	ActivePrimaryShards int64
	ActiveShards        int64
	RelocatingShards    int64
	InitializingShards  int64
	UnassignedShards    int64
	PendingTasks        int64
	ActiveShardsPercent float64
}

// Metric vectors are process-wide and registered once, so multiple clients
// (or repeated setup in tests) cannot trip duplicate registration.
var (
	registerOnce sync.Once

	checksTotal   *prometheus.CounterVec
	checksFailed  *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec

	clusterStatus       *prometheus.GaugeVec
	clusterNodes        *prometheus.GaugeVec
	clusterDataNodes    *prometheus.GaugeVec
	activePrimaryShards *prometheus.GaugeVec
	activeShards        *prometheus.GaugeVec
	relocatingShards    *prometheus.GaugeVec
	initializingShards  *prometheus.GaugeVec
	unassignedShards    *prometheus.GaugeVec
	pendingTasks        *prometheus.GaugeVec
	activeShardsPercent *prometheus.GaugeVec
)

// Client manages metrics collection and reporting
type Client struct {
	// Configuration
	config *config.MetricsConfig

	prometheusEnabled bool
}

// NewClient creates a new metrics client
func NewClient(cfg *config.MetricsConfig) *Client {
	c := &Client{
		config: cfg,
	}

	// Initialize Prometheus if enabled
	if cfg.Prometheus != nil && cfg.Prometheus.Enabled {
		c.prometheusEnabled = true
		initPrometheus()
	}

	return c
}

// initPrometheus initializes Prometheus metrics
func initPrometheus() {
	registerOnce.Do(func() {
		checksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eshealth_checks_total",
				Help: "Total number of cluster health checks",
			},
			[]string{"target", "outcome"},
		)

		checksFailed = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eshealth_checks_failed_total",
				Help: "Total number of failed cluster health checks",
			},
			[]string{"target"},
		)

		checkDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eshealth_check_duration_seconds",
				Help:    "Duration of cluster health checks in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 11), // 50ms to ~51s
			},
			[]string{"target", "outcome"},
		)

		clusterStatus = newClusterGauge("eshealth_cluster_status",
			"Cluster status ordinal: 0 red, 1 yellow, 2 green")
		clusterNodes = newClusterGauge("eshealth_cluster_number_of_nodes",
			"Number of nodes in the cluster")
		clusterDataNodes = newClusterGauge("eshealth_cluster_number_of_data_nodes",
			"Number of dedicated data nodes in the cluster")
		activePrimaryShards = newClusterGauge("eshealth_cluster_active_primary_shards",
			"Number of active primary shards")
		activeShards = newClusterGauge("eshealth_cluster_active_shards",
			"Total number of active shards")
		relocatingShards = newClusterGauge("eshealth_cluster_relocating_shards",
			"Number of shards under relocation")
		initializingShards = newClusterGauge("eshealth_cluster_initializing_shards",
			"Number of shards under initialization")
		unassignedShards = newClusterGauge("eshealth_cluster_unassigned_shards",
			"Number of unassigned shards")
		pendingTasks = newClusterGauge("eshealth_cluster_pending_tasks",
			"Number of cluster-level changes not yet executed")
		activeShardsPercent = newClusterGauge("eshealth_cluster_active_shards_percent",
			"Ratio of active shards in the cluster as a percentage")

		log.Debug().Msg("Prometheus metrics initialized")
	})
}

func newClusterGauge(name, help string) *prometheus.GaugeVec {
	return promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		[]string{"target"},
	)
}

// RegisterTarget initializes counters with 0 values so each target appears
// in Prometheus before its first check completes
func (c *Client) RegisterTarget(target string) {
	if !c.prometheusEnabled {
		return
	}

	checksTotal.WithLabelValues(target, "success").Add(0)
	checksTotal.WithLabelValues(target, "failure").Add(0)
	checksFailed.WithLabelValues(target).Add(0)

	log.Debug().Str("target", target).Msg("Target metrics registered")
}

// RecordCheckSuccess records a successful cluster health check
func (c *Client) RecordCheckSuccess(target string, duration time.Duration) {
	if !c.config.Enabled || !c.prometheusEnabled {
		return
	}

	checksTotal.WithLabelValues(target, "success").Inc()
	checkDuration.WithLabelValues(target, "success").Observe(duration.Seconds())
}

// RecordCheckFailure records a failed cluster health check
func (c *Client) RecordCheckFailure(target string, duration time.Duration) {
	if !c.config.Enabled || !c.prometheusEnabled {
		return
	}

	checksTotal.WithLabelValues(target, "failure").Inc()
	checksFailed.WithLabelValues(target).Inc()
	checkDuration.WithLabelValues(target, "failure").Observe(duration.Seconds())
}

// RecordClusterHealth exports the numeric fields of a health document
func (c *Client) RecordClusterHealth(target string, sample ClusterSample) {
	if !c.config.Enabled || !c.prometheusEnabled {
		return
	}

	clusterStatus.WithLabelValues(target).Set(float64(sample.StatusOrdinal))
	clusterNodes.WithLabelValues(target).Set(float64(sample.Nodes))
	clusterDataNodes.WithLabelValues(target).Set(float64(sample.DataNodes))
	activePrimaryShards.WithLabelValues(target).Set(float64(sample.ActivePrimaryShards))
	activeShards.WithLabelValues(target).Set(float64(sample.ActiveShards))
	relocatingShards.WithLabelValues(target).Set(float64(sample.RelocatingShards))
	initializingShards.WithLabelValues(target).Set(float64(sample.InitializingShards))
	unassignedShards.WithLabelValues(target).Set(float64(sample.UnassignedShards))
	pendingTasks.WithLabelValues(target).Set(float64(sample.PendingTasks))
	activeShardsPercent.WithLabelValues(target).Set(sample.ActiveShardsPercent)
}
