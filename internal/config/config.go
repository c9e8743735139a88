package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/elastic-ops/eshealth/pkg/elastic"
)

// envKeyReplacer maps nested config keys onto environment variable names,
// e.g. connection.caFile becomes ESHEALTH_CONNECTION_CAFILE.
var envKeyReplacer = strings.NewReplacer(".", "_")

// Config represents the complete configuration for eshealth
type Config struct {
	Tool       *ToolConfig      `mapstructure:"tool"`
	Connection *elastic.Config  `mapstructure:"connection"`
	Check      *CheckConfig     `mapstructure:"check"`
	Targets    []*TargetConfig  `mapstructure:"targets"`
	Execution  *ExecutionConfig `mapstructure:"execution"`
	API        *APIConfig       `mapstructure:"api"`
	Logging    *LoggingConfig   `mapstructure:"logging"`
	Metrics    *MetricsConfig   `mapstructure:"metrics"`
	Health     *HealthConfig    `mapstructure:"health"`
}

// ToolConfig contains tool-level metadata
type ToolConfig struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
}

// CheckConfig mirrors the cluster health API query parameters
type CheckConfig struct {
	// Indices limits the health report to the given indices or aliases
	Indices []string `mapstructure:"indices"`

	// Level of detail: cluster, indices or shards
	Level string `mapstructure:"level"`

	// Local reads from the local node instead of the master
	Local bool `mapstructure:"local"`

	// MasterTimeout is the period to wait for a master connection
	MasterTimeout string `mapstructure:"masterTimeout"`

	// Timeout is the period the cluster may block before answering
	Timeout string `mapstructure:"timeout"`

	// WaitForActiveShards is a shard count or "all"
	WaitForActiveShards string `mapstructure:"waitForActiveShards"`

	// WaitForEvents drains queued events of the given priority
	WaitForEvents string `mapstructure:"waitForEvents"`

	WaitForNoInitializingShards bool `mapstructure:"waitForNoInitializingShards"`
	WaitForNoRelocatingShards   bool `mapstructure:"waitForNoRelocatingShards"`

	// WaitForNodes is a node count or comparison expression (">=10")
	WaitForNodes string `mapstructure:"waitForNodes"`

	// WaitForStatus blocks until the cluster reaches this status or better
	WaitForStatus string `mapstructure:"waitForStatus"`
}

// TargetConfig names one cluster to check. Connection and Check fall back to
// the top-level sections when nil.
type TargetConfig struct {
	Name       string          `mapstructure:"name"`
	Connection *elastic.Config `mapstructure:"connection"`
	Check      *CheckConfig    `mapstructure:"check"`
}

// ExecutionConfig controls how checks are executed
type ExecutionConfig struct {
	// Schedule using cron expression (takes precedence over Interval if set)
	Schedule string `mapstructure:"schedule"`

	// Simple interval for periodic execution
	Interval time.Duration `mapstructure:"interval"`

	// RunOnce executes the checks once and then stops
	RunOnce bool `mapstructure:"runOnce"`

	// WaitAfterCompletion keeps the process running after completion
	WaitAfterCompletion bool `mapstructure:"waitAfterCompletion"`

	// Parallel execution settings
	Parallel *ParallelConfig `mapstructure:"parallel"`

	// Timeout for each full check run across all targets
	Timeout time.Duration `mapstructure:"timeout"`
}

// ParallelConfig controls parallel execution settings
type ParallelConfig struct {
	Workers    int `mapstructure:"workers"`
	BufferSize int `mapstructure:"bufferSize"`
}

// APIConfig controls the HTTP API server
type APIConfig struct {
	Enabled   bool       `mapstructure:"enabled"`
	Port      int        `mapstructure:"port"`
	DebugMode bool       `mapstructure:"debugMode"`
	TLS       *TLSConfig `mapstructure:"tls"`
}

// TLSConfig contains TLS configuration for the API server
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, console
}

// MetricsConfig controls metrics collection
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	Prometheus *PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig controls Prometheus metrics
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// HealthConfig controls how check outcomes feed the API health report
type HealthConfig struct {
	// MaxConsecutiveFailures is the number of consecutive failed runs
	// tolerated before the runner reports itself unhealthy
	MaxConsecutiveFailures int `mapstructure:"maxConsecutiveFailures"`
}

// Default returns a configuration with every section at its default value,
// equivalent to loading with no config file and no environment set.
func Default() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Use config file if specified
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Search for config in standard locations
		v.SetConfigName("eshealth")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/eshealth")
	}

	// Read environment variables prefixed with ESHEALTH_
	v.SetEnvPrefix("ESHEALTH")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	// Attempt to read config file (non-fatal if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Parse config into struct
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Normalize()

	return &config, nil
}

// Normalize ensures required structures exist
func (c *Config) Normalize() {
	if c.Tool == nil {
		c.Tool = &ToolConfig{
			Name: "eshealth",
		}
	}

	if c.Connection == nil {
		c.Connection = elastic.DefaultConfig()
	}

	if c.Check == nil {
		c.Check = &CheckConfig{
			Level:               "cluster",
			MasterTimeout:       "30s",
			Timeout:             "30s",
			WaitForActiveShards: "0",
		}
	}

	// A bare config checks a single cluster named "default"
	if len(c.Targets) == 0 {
		c.Targets = []*TargetConfig{{Name: "default"}}
	}
	for _, target := range c.Targets {
		if target.Connection == nil {
			target.Connection = c.Connection
		}
		if target.Check == nil {
			target.Check = c.Check
		}
	}

	if c.Execution == nil {
		c.Execution = &ExecutionConfig{
			RunOnce: true,
		}
	}

	if c.Execution.Parallel == nil {
		c.Execution.Parallel = &ParallelConfig{
			Workers:    4,
			BufferSize: 16,
		}
	}

	if c.API == nil {
		c.API = &APIConfig{
			Enabled: false,
			Port:    12911,
		}
	}

	if c.Logging == nil {
		c.Logging = &LoggingConfig{
			Level:  "info",
			Format: "console",
		}
	}

	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{
			Enabled: true,
		}
	}
	if c.Metrics.Prometheus == nil {
		c.Metrics.Prometheus = &PrometheusConfig{
			Enabled: true,
			Path:    "/metrics",
		}
	}

	if c.Health == nil {
		c.Health = &HealthConfig{
			MaxConsecutiveFailures: 3,
		}
	}
}

// setDefaults sets sensible default values for configuration
func setDefaults(v *viper.Viper) {
	// Tool defaults
	v.SetDefault("tool.name", "eshealth")

	// Connection defaults mirror a local unauthenticated node
	v.SetDefault("connection.scheme", "http")
	v.SetDefault("connection.hosts", []string{"localhost"})
	v.SetDefault("connection.port", 9200)
	v.SetDefault("connection.timeout", "30s")

	// Check defaults follow the cluster health API
	v.SetDefault("check.level", "cluster")
	v.SetDefault("check.local", false)
	v.SetDefault("check.masterTimeout", "30s")
	v.SetDefault("check.timeout", "30s")
	v.SetDefault("check.waitForActiveShards", "0")
	v.SetDefault("check.waitForNoInitializingShards", false)
	v.SetDefault("check.waitForNoRelocatingShards", false)

	// Execution defaults
	v.SetDefault("execution.runOnce", true)
	v.SetDefault("execution.waitAfterCompletion", false)
	v.SetDefault("execution.parallel.workers", 4)
	v.SetDefault("execution.parallel.bufferSize", 16)
	v.SetDefault("execution.timeout", "5m")

	// API defaults
	v.SetDefault("api.enabled", false)
	v.SetDefault("api.port", 12911)
	v.SetDefault("api.tls.enabled", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.prometheus.enabled", true)
	v.SetDefault("metrics.prometheus.path", "/metrics")

	// Health defaults
	v.SetDefault("health.maxConsecutiveFailures", 3)
}
