package elastic

import (
	"fmt"
	"time"
)

// Config describes how to reach a cluster. Credentials and TLS material are
// owned here, away from the health check itself.
type Config struct {
	// Scheme is http or https.
	Scheme string `mapstructure:"scheme"`

	// Hosts are the node hostnames to connect to.
	Hosts []string `mapstructure:"hosts"`

	// Port is the HTTP port shared by all hosts.
	Port int `mapstructure:"port"`

	// Username and Password enable basic authentication when both are set.
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// CAFile points at a PEM bundle used to verify the cluster certificate.
	CAFile string `mapstructure:"caFile"`

	// Timeout bounds each request issued through the client.
	Timeout time.Duration `mapstructure:"timeout"`

	// MaxRetries and DisableRetry map directly onto the opensearch-go
	// transport retry behaviour.
	MaxRetries   int  `mapstructure:"maxRetries"`
	DisableRetry bool `mapstructure:"disableRetry"`
}

// DefaultConfig returns a config pointing at an unauthenticated local node.
func DefaultConfig() *Config {
	return &Config{
		Scheme:  "http",
		Hosts:   []string{"localhost"},
		Port:    9200,
		Timeout: 30 * time.Second,
	}
}

// Validate checks the scheme and host list before a client is built.
func (c *Config) Validate() error {
	switch c.scheme() {
	case "http", "https":
	default:
		return fmt.Errorf("invalid scheme %q: must be http or https", c.Scheme)
	}
	if len(c.hosts()) == 0 {
		return fmt.Errorf("at least one host is required")
	}
	return nil
}

// Addresses renders the host list as full node URLs.
func (c *Config) Addresses() []string {
	hosts := c.hosts()
	addresses := make([]string, 0, len(hosts))
	for _, host := range hosts {
		addresses = append(addresses, fmt.Sprintf("%s://%s:%d", c.scheme(), host, c.port()))
	}
	return addresses
}

func (c *Config) scheme() string {
	if c.Scheme == "" {
		return "http"
	}
	return c.Scheme
}

func (c *Config) hosts() []string {
	if len(c.Hosts) == 0 {
		return []string{"localhost"}
	}
	return c.Hosts
}

func (c *Config) port() int {
	if c.Port == 0 {
		return 9200
	}
	return c.Port
}
