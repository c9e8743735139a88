package eshealth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrMissingStatus is returned when the health endpoint answers without a
// status field in the response document.
var ErrMissingStatus = errors.New("health endpoint did not supply a status field")

var (
	validLevels = map[string]bool{
		"cluster": true,
		"indices": true,
		"shards":  true,
	}

	validEventPriorities = map[string]bool{
		"immediate": true,
		"urgent":    true,
		"high":      true,
		"normal":    true,
		"low":       true,
		"languid":   true,
	}
)

// CheckOptions describes a single cluster health request. Optional fields
// left at their zero value are omitted from the outbound query; the cluster
// evaluates all wait_for_* conditions server-side before responding.
type CheckOptions struct {
	// Indices restricts the health report to the given indices, data streams
	// or aliases. Empty means the whole cluster.
	Indices []string

	// Level controls the detail level of the response: cluster, indices or
	// shards. Defaults to cluster.
	Level string

	// Local reads cluster state from the local node instead of the master.
	Local bool

	// MasterTimeout is how long to wait for a connection to the master node.
	MasterTimeout string

	// Timeout is how long the cluster may block before answering, which
	// bounds every wait_for_* condition below.
	Timeout string

	// WaitForActiveShards blocks until the given number of shards is active,
	// or all of them when set to "all". "0" does not wait.
	WaitForActiveShards string

	// WaitForEvents blocks until all queued events of the given priority
	// have been processed.
	WaitForEvents string

	// WaitForNoInitializingShards blocks until no shard is initializing.
	WaitForNoInitializingShards bool

	// WaitForNoRelocatingShards blocks until no shard is relocating.
	WaitForNoRelocatingShards bool

	// WaitForNodes blocks until the given number of nodes is available.
	// Accepts a bare count or a comparison expression such as ">=10" or
	// "le(3)".
	WaitForNodes string

	// WaitForStatus blocks until the cluster reaches the given status or
	// better.
	WaitForStatus string
}

// DefaultCheckOptions returns options matching the cluster health API
// defaults: cluster-level detail, 30s timeouts, no waiting.
func DefaultCheckOptions() CheckOptions {
	return CheckOptions{
		Level:               "cluster",
		MasterTimeout:       "30s",
		Timeout:             "30s",
		WaitForActiveShards: "0",
	}
}

// Validate checks the enum-valued and numeric fields before a request is
// built from the options.
func (o CheckOptions) Validate() error {
	if o.Level != "" && !validLevels[o.Level] {
		return fmt.Errorf("invalid level %q: must be one of cluster, indices, shards", o.Level)
	}
	if o.WaitForEvents != "" && !validEventPriorities[o.WaitForEvents] {
		return fmt.Errorf("invalid wait_for_events priority %q", o.WaitForEvents)
	}
	if o.WaitForStatus != "" {
		if _, err := ParseStatus(o.WaitForStatus); err != nil {
			return fmt.Errorf("invalid wait_for_status: %w", err)
		}
	}
	if o.WaitForNodes != "" {
		if n, ok := CoerceCount(o.WaitForNodes).(int); ok && n < 0 {
			return fmt.Errorf("invalid wait_for_nodes %q: node count cannot be negative", o.WaitForNodes)
		}
	}
	return nil
}

// Query builds the outbound parameter map. Booleans are rendered as the
// literal strings "true"/"false"; optional fields that were not supplied are
// omitted rather than sent empty.
func (o CheckOptions) Query() url.Values {
	params := url.Values{}

	level := o.Level
	if level == "" {
		level = "cluster"
	}
	params.Set("level", level)
	params.Set("local", strconv.FormatBool(o.Local))

	masterTimeout := o.MasterTimeout
	if masterTimeout == "" {
		masterTimeout = "30s"
	}
	params.Set("master_timeout", masterTimeout)

	timeout := o.Timeout
	if timeout == "" {
		timeout = "30s"
	}
	params.Set("timeout", timeout)

	activeShards := o.WaitForActiveShards
	if activeShards == "" {
		activeShards = "0"
	}
	params.Set("wait_for_active_shards", activeShards)

	if o.WaitForEvents != "" {
		params.Set("wait_for_events", o.WaitForEvents)
	}
	params.Set("wait_for_no_initializing_shards", strconv.FormatBool(o.WaitForNoInitializingShards))
	params.Set("wait_for_no_relocating_shards", strconv.FormatBool(o.WaitForNoRelocatingShards))
	if o.WaitForNodes != "" {
		params.Set("wait_for_nodes", o.WaitForNodes)
	}
	if o.WaitForStatus != "" {
		params.Set("wait_for_status", o.WaitForStatus)
	}

	return params
}

// path returns the request path, including the optional index target segment.
func (o CheckOptions) path() string {
	if len(o.Indices) == 0 {
		return "/_cluster/health"
	}
	return "/_cluster/health/" + strings.Join(o.Indices, ",")
}

// ClusterHealth is the typed view of the health document. The struct is not
// exhaustive; the full document is passed through untouched in Result.Raw.
type ClusterHealth struct {
	ClusterName         string  `json:"cluster_name"`
	Status              Status  `json:"status"`
	TimedOut            bool    `json:"timed_out"`
	NumberOfNodes       int64   `json:"number_of_nodes"`
	NumberOfDataNodes   int64   `json:"number_of_data_nodes"`
	ActivePrimaryShards int64   `json:"active_primary_shards"`
	ActiveShards        int64   `json:"active_shards"`
	RelocatingShards    int64   `json:"relocating_shards"`
	InitializingShards  int64   `json:"initializing_shards"`
	UnassignedShards    int64   `json:"unassigned_shards"`
	PendingTasks        int64   `json:"number_of_pending_tasks"`
	ActiveShardsPercent float64 `json:"active_shards_percent_as_number"`
}

// Result is the verdict of a single health check. Changed is always false:
// the check is read-only against the cluster.
type Result struct {
	Changed bool           `json:"changed"`
	Msg     string         `json:"msg"`
	Health  ClusterHealth  `json:"health"`
	Raw     map[string]any `json:"raw,omitempty"`
}

// Checker issues cluster health requests over an established client.
type Checker struct {
	client *opensearch.Client
	logger zerolog.Logger
}

// NewChecker creates a Checker on top of a connected client.
func NewChecker(client *opensearch.Client) *Checker {
	return &Checker{
		client: client,
		logger: log.With().Str("component", "checker").Logger(),
	}
}

// Run performs exactly one health request with the given options and
// interprets the response. It fails on transport errors (the underlying
// error text is attached) and on responses without a status field; any
// blocking is done server-side, so no retry or polling happens here.
func (c *Checker) Run(ctx context.Context, opts CheckOptions) (Result, error) {
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.path(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("building health request: %w", err)
	}
	req.URL.RawQuery = opts.Query().Encode()

	c.logger.Debug().
		Str("path", opts.path()).
		Str("query", req.URL.RawQuery).
		Msg("Requesting cluster health")

	res, err := c.client.Perform(req)
	if err != nil {
		return Result{}, fmt.Errorf("cluster health request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Result{}, fmt.Errorf("reading health response: %w", err)
	}

	// 408 means a wait_for_* condition did not hold within the timeout; the
	// body still carries a full health document.
	if res.StatusCode >= http.StatusMultipleChoices && res.StatusCode != http.StatusRequestTimeout {
		return Result{}, fmt.Errorf("cluster health request returned %s: %s", res.Status, strings.TrimSpace(string(body)))
	}

	raw := map[string]any{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Result{}, fmt.Errorf("decoding health response: %w", err)
	}
	if _, ok := raw["status"]; !ok {
		return Result{}, ErrMissingStatus
	}

	var health ClusterHealth
	if err := json.Unmarshal(body, &health); err != nil {
		return Result{}, fmt.Errorf("decoding health response: %w", err)
	}

	msg := fmt.Sprintf("cluster %s health is %s", health.ClusterName, health.Status)
	if health.TimedOut {
		msg += " (timed out waiting for the requested conditions)"
	}

	c.logger.Debug().
		Str("cluster", health.ClusterName).
		Str("status", string(health.Status)).
		Bool("timed_out", health.TimedOut).
		Msg("Cluster health received")

	return Result{Changed: false, Msg: msg, Health: health, Raw: raw}, nil
}
