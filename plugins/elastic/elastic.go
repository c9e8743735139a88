package plugins

import (
	"context"
	"fmt"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/rs/zerolog/log"

	"github.com/elastic-ops/eshealth/pkg/elastic"
	"github.com/elastic-ops/eshealth/pkg/plugin"
)

// ElasticPlugin owns the connection to one target cluster and implements
// the plugin lifecycle around it
type ElasticPlugin struct {
	// Configuration
	config *ElasticPluginConfig
	client *opensearch.Client

	// State
	connected bool

	// Metrics
	metrics *ElasticMetrics
}

type ElasticPluginConfig struct {
	// Target is the configured cluster name, used in logs and metric labels
	Target string `json:"target"`

	// Connection holds the cluster address, credentials and TLS settings
	Connection *elastic.Config `json:"connection"`

	// MaxRetries and RetryDelay control connect-time retries. The health
	// check itself is never retried here.
	MaxRetries int           `json:"maxRetries"`
	RetryDelay time.Duration `json:"retryDelay"`

	// EnableMetrics turns on Prometheus connection metrics
	EnableMetrics bool `json:"enableMetrics"`
}

func (c *ElasticPluginConfig) validate() error {
	if c.Target == "" {
		return fmt.Errorf("target is required")
	}

	if c.Connection == nil {
		return fmt.Errorf("connection is required")
	}

	if err := c.Connection.Validate(); err != nil {
		return fmt.Errorf("connection: %w", err)
	}

	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}

	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}

	return nil
}

// NewElasticPlugin creates a connection plugin for one target cluster
func NewElasticPlugin(config *ElasticPluginConfig) (*ElasticPlugin, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	p := &ElasticPlugin{
		config: config,
	}

	if config.EnableMetrics {
		p.metrics = NewElasticMetrics(config.Target)
	}

	return p, nil
}

// Name returns the plugin name
func (p *ElasticPlugin) Name() string {
	return "elastic-" + p.config.Target
}

// Initialize sets up the plugin
func (p *ElasticPlugin) Initialize(ctx context.Context) error {
	log.Info().Str("target", p.config.Target).Msg("Initializing cluster connection")
	return p.Connect(ctx)
}

// Connect builds the client and verifies the cluster answers, retrying with
// a fixed delay. A failure here is surfaced before any health check runs.
func (p *ElasticPlugin) Connect(ctx context.Context) error {
	if p.connected && p.client != nil {
		return nil // Already connected
	}

	client, err := elastic.Connect(p.config.Connection)
	if err != nil {
		p.recordConnectError()
		return fmt.Errorf("connecting to cluster %s: %w", p.config.Target, err)
	}

	for attempt := 1; attempt <= p.config.MaxRetries; attempt++ {
		start := time.Now()
		err = elastic.Ping(ctx, client)
		p.recordPing(time.Since(start))
		if err == nil {
			break
		}

		p.recordConnectError()
		log.Error().
			Err(err).
			Str("target", p.config.Target).
			Int("attempt", attempt).
			Msg("Failed to reach cluster")

		if attempt == p.config.MaxRetries {
			break
		}

		select {
		case <-time.After(p.config.RetryDelay):
			// Retry after delay
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while connecting to cluster %s: %w", p.config.Target, ctx.Err())
		}
	}

	if err != nil {
		return fmt.Errorf("failed to reach cluster %s after %d attempts: %w", p.config.Target, p.config.MaxRetries, err)
	}

	p.client = client
	p.connected = true
	p.recordConnected(true)
	log.Info().Str("target", p.config.Target).Msg("Successfully connected to cluster")
	return nil
}

// Disconnect drops the client. The underlying transport keeps no persistent
// connection that needs closing.
func (p *ElasticPlugin) Disconnect(ctx context.Context) error {
	p.client = nil
	p.connected = false
	p.recordConnected(false)
	return nil
}

// Ping verifies the cluster connection is alive
func (p *ElasticPlugin) Ping(ctx context.Context) error {
	if p.client == nil {
		return fmt.Errorf("not connected to cluster %s", p.config.Target)
	}

	start := time.Now()
	err := elastic.Ping(ctx, p.client)
	p.recordPing(time.Since(start))
	return err
}

// Client returns the underlying cluster client
func (p *ElasticPlugin) Client() *opensearch.Client {
	return p.client
}

// Terminate cleans up resources
func (p *ElasticPlugin) Terminate(ctx context.Context) error {
	log.Info().Str("target", p.config.Target).Msg("Terminating cluster connection")
	return p.Disconnect(ctx)
}

// --- Health Checker ---

// HealthCheck reports connection health for the API server
func (p *ElasticPlugin) HealthCheck(ctx context.Context) error {
	return p.Ping(ctx)
}

func (p *ElasticPlugin) recordPing(d time.Duration) {
	if p.metrics != nil {
		p.metrics.RecordPing(d)
	}
}

func (p *ElasticPlugin) recordConnectError() {
	if p.metrics != nil {
		p.metrics.RecordConnectError()
	}
}

func (p *ElasticPlugin) recordConnected(connected bool) {
	if p.metrics != nil {
		p.metrics.RecordConnected(connected)
	}
}

var _ plugin.ConnectionPlugin = (*ElasticPlugin)(nil)
