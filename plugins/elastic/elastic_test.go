package plugins

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elastic-ops/eshealth/pkg/elastic"
)

func connectionFor(t *testing.T, ts *httptest.Server) *elastic.Config {
	t.Helper()

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	// Retries are exercised through the plugin's own loop, not the transport
	return &elastic.Config{Scheme: u.Scheme, Hosts: []string{host}, Port: port, DisableRetry: true}
}

func TestNewElasticPluginValidation(t *testing.T) {
	_, err := NewElasticPlugin(nil)
	assert.Error(t, err)

	_, err = NewElasticPlugin(&ElasticPluginConfig{Connection: elastic.DefaultConfig()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target is required")

	_, err = NewElasticPlugin(&ElasticPluginConfig{Target: "prod"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection is required")

	_, err = NewElasticPlugin(&ElasticPluginConfig{
		Target:     "prod",
		Connection: &elastic.Config{Scheme: "gopher"},
	})
	assert.Error(t, err)
}

func TestElasticPluginDefaults(t *testing.T) {
	cfg := &ElasticPluginConfig{Target: "prod", Connection: elastic.DefaultConfig()}
	p, err := NewElasticPlugin(cfg)
	require.NoError(t, err)

	assert.Equal(t, "elastic-prod", p.Name())
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.RetryDelay)
}

func TestElasticPluginLifecycle(t *testing.T) {
	var pings int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			pings++
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	p, err := NewElasticPlugin(&ElasticPluginConfig{
		Target:     "test",
		Connection: connectionFor(t, ts),
		RetryDelay: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx := context.Background()

	// Ping before connecting reports the missing connection
	err = p.Ping(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
	assert.Nil(t, p.Client())

	require.NoError(t, p.Initialize(ctx))
	assert.NotNil(t, p.Client())
	assert.GreaterOrEqual(t, pings, 1)

	// Connecting twice is a no-op
	before := pings
	require.NoError(t, p.Connect(ctx))
	assert.Equal(t, before, pings)

	assert.NoError(t, p.Ping(ctx))
	assert.NoError(t, p.HealthCheck(ctx))

	require.NoError(t, p.Terminate(ctx))
	assert.Nil(t, p.Client())
	assert.Error(t, p.Ping(ctx))
}

func TestElasticPluginConnectRetries(t *testing.T) {
	var attempts int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	p, err := NewElasticPlugin(&ElasticPluginConfig{
		Target:     "flaky",
		Connection: connectionFor(t, ts),
		MaxRetries: 5,
		RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)

	require.NoError(t, p.Connect(context.Background()))
	assert.Equal(t, 3, attempts)
}

func TestElasticPluginConnectExhaustsRetries(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	p, err := NewElasticPlugin(&ElasticPluginConfig{
		Target:     "down",
		Connection: connectionFor(t, ts),
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)

	err = p.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestElasticPluginConnectCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	p, err := NewElasticPlugin(&ElasticPluginConfig{
		Target:     "cancelled",
		Connection: connectionFor(t, ts),
		MaxRetries: 10,
		RetryDelay: time.Minute,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = p.Connect(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}
