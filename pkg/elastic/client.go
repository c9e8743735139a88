// Package elastic builds opensearch-go clients from declarative connection
// settings, keeping credentials and TLS handling out of the check logic.
package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// Connect builds a client for the configured cluster. No request is issued
// here; reachability is probed separately via Ping so that connection
// problems surface before any health call is attempted.
func Connect(cfg *Config) (*opensearch.Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	occfg := opensearch.Config{
		Addresses:    cfg.Addresses(),
		Username:     cfg.Username,
		Password:     cfg.Password,
		MaxRetries:   cfg.MaxRetries,
		DisableRetry: cfg.DisableRetry,
	}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA file %s: %w", cfg.CAFile, err)
		}
		occfg.CACert = pem
	}

	if cfg.Timeout > 0 {
		occfg.Transport = &http.Transport{
			DialContext:           (&net.Dialer{Timeout: cfg.Timeout}).DialContext,
			ResponseHeaderTimeout: cfg.Timeout,
		}
	}

	client, err := opensearch.NewClient(occfg)
	if err != nil {
		return nil, fmt.Errorf("creating cluster client: %w", err)
	}
	return client, nil
}

// Ping verifies the cluster answers at all.
func Ping(ctx context.Context, client *opensearch.Client) error {
	req := opensearchapi.PingRequest{}
	res, err := req.Do(ctx, client)
	if err != nil {
		return fmt.Errorf("pinging cluster: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("cluster ping returned %s", res.Status())
	}
	return nil
}

// Info fetches the root document, useful as a lightweight liveness probe
// that also reports the server distribution and version.
func Info(ctx context.Context, client *opensearch.Client) (map[string]any, error) {
	req := opensearchapi.InfoRequest{}
	res, err := req.Do(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("fetching cluster info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("cluster info returned %s", res.Status())
	}

	var info map[string]any
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding cluster info: %w", err)
	}
	return info, nil
}
