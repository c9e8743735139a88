package elastic

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
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "http", cfg.Scheme)
	assert.Equal(t, []string{"localhost"}, cfg.Hosts)
	assert.Equal(t, 9200, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, (&Config{}).Validate())
	assert.NoError(t, (&Config{Scheme: "https"}).Validate())

	err := (&Config{Scheme: "ftp"}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scheme")
}

func TestConfigAddresses(t *testing.T) {
	// Zero values fall back to a local unauthenticated node
	assert.Equal(t, []string{"http://localhost:9200"}, (&Config{}).Addresses())

	cfg := &Config{
		Scheme: "https",
		Hosts:  []string{"es-a.internal", "es-b.internal"},
		Port:   9243,
	}
	assert.Equal(t,
		[]string{"https://es-a.internal:9243", "https://es-b.internal:9243"},
		cfg.Addresses())
}

func TestConnect(t *testing.T) {
	client, err := Connect(nil)
	require.NoError(t, err)
	assert.NotNil(t, client)

	client, err = Connect(&Config{Scheme: "https", Hosts: []string{"example.com"}})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestConnectInvalidConfig(t *testing.T) {
	_, err := Connect(&Config{Scheme: "gopher"})
	assert.Error(t, err)
}

func TestConnectMissingCAFile(t *testing.T) {
	_, err := Connect(&Config{CAFile: "/nonexistent/ca.pem"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading CA file")
}

// configForServer derives a Config pointing at a test server.
func configForServer(t *testing.T, ts *httptest.Server) *Config {
	t.Helper()

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return &Config{
		Scheme:  u.Scheme,
		Hosts:   []string{host},
		Port:    port,
		Timeout: 5 * time.Second,
	}
}

func TestPing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client, err := Connect(configForServer(t, ts))
	require.NoError(t, err)
	assert.NoError(t, Ping(context.Background(), client))
}

func TestPingUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	cfg := configForServer(t, ts)
	ts.Close()

	client, err := Connect(cfg)
	require.NoError(t, err)
	assert.Error(t, Ping(context.Background(), client))
}

func TestInfo(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"cluster_name":"testcluster","version":{"number":"2.11.0"}}`))
	}))
	defer ts.Close()

	client, err := Connect(configForServer(t, ts))
	require.NoError(t, err)

	info, err := Info(context.Background(), client)
	require.NoError(t, err)
	assert.Equal(t, "testcluster", info["cluster_name"])
}
