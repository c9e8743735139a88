package eshealth

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elastic-ops/eshealth/pkg/elastic"
	"github.com/elastic-ops/eshealth/pkg/enums"
)

// fakeCluster stands in for a node: it answers pings and serves a fixed
// health document.
func fakeCluster(t *testing.T, healthBody string) *elastic.Config {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(healthBody))
	}))
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return &elastic.Config{Scheme: u.Scheme, Hosts: []string{host}, Port: port}
}

func TestRunnerRunOnceSatisfied(t *testing.T) {
	conn := fakeCluster(t, `{"cluster_name":"testcluster","status":"green","number_of_nodes":3}`)

	opts := DefaultCheckOptions()
	opts.WaitForStatus = "yellow"

	runner, err := New(
		WithVersion("test"),
		WithConnection(conn),
		WithCheck(opts),
		WithMetrics(false),
	)
	require.NoError(t, err)

	require.NoError(t, runner.Run(context.Background()))

	assert.Equal(t, 1, runner.GetRunCount())
	assert.False(t, runner.GetLastRunTime().IsZero())

	run := runner.GetCurrentRun()
	require.NotNil(t, run)
	assert.Equal(t, enums.RunStatusCompleted, run.Status)

	state, ok := runner.Tracker().State("default")
	require.True(t, ok)
	assert.True(t, state.Satisfied)
	require.NotNil(t, state.Result)
	assert.False(t, state.Result.Changed)
	assert.Equal(t, StatusGreen, state.Result.Health.Status)
	assert.NoError(t, runner.Tracker().Healthy())
}

func TestRunnerRunOnceUnsatisfiedStatus(t *testing.T) {
	conn := fakeCluster(t, `{"cluster_name":"testcluster","status":"yellow"}`)

	opts := DefaultCheckOptions()
	opts.WaitForStatus = "green"

	runner, err := New(
		WithVersion("test"),
		WithConnection(conn),
		WithCheck(opts),
		WithMetrics(false),
	)
	require.NoError(t, err)

	err = runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not satisfy green")

	run := runner.GetCurrentRun()
	require.NotNil(t, run)
	assert.Equal(t, enums.RunStatusFailed, run.Status)

	state, _ := runner.Tracker().State("default")
	assert.False(t, state.Satisfied)
}

func TestRunnerRunOnceMissingStatus(t *testing.T) {
	conn := fakeCluster(t, `{"cluster_name":"testcluster"}`)

	runner, err := New(
		WithVersion("test"),
		WithConnection(conn),
		WithMetrics(false),
	)
	require.NoError(t, err)

	err = runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingStatus)
}

func TestRunnerMultipleTargets(t *testing.T) {
	green := fakeCluster(t, `{"cluster_name":"green-cluster","status":"green"}`)
	red := fakeCluster(t, `{"cluster_name":"red-cluster","status":"red"}`)

	opts := DefaultCheckOptions()
	opts.WaitForStatus = "yellow"

	runner, err := New(
		WithVersion("test"),
		WithMetrics(false),
		WithTarget("healthy", green, opts),
		WithTarget("degraded", red, opts),
	)
	require.NoError(t, err)

	err = runner.Run(context.Background())
	require.Error(t, err)

	// The degraded cluster does not mask the healthy one: both verdicts land
	healthyState, ok := runner.Tracker().State("healthy")
	require.True(t, ok)
	assert.True(t, healthyState.Satisfied)

	degradedState, ok := runner.Tracker().State("degraded")
	require.True(t, ok)
	assert.False(t, degradedState.Satisfied)
	assert.Contains(t, err.Error(), "degraded")
	assert.NotContains(t, err.Error(), "target healthy")
}

func TestRunnerHealthCheck(t *testing.T) {
	conn := fakeCluster(t, `{"cluster_name":"testcluster","status":"green"}`)

	runner, err := New(
		WithConnection(conn),
		WithMetrics(false),
		WithMaxConsecutiveFailures(1),
	)
	require.NoError(t, err)

	assert.Equal(t, "eshealth-core", runner.Name())
	assert.NoError(t, runner.HealthCheck(context.Background()))
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	_, err := New(WithWaitForStatus("blue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cluster status")

	_, err = New(WithTarget("", nil, DefaultCheckOptions()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target name is required")

	_, err = New(WithLogLevel("loud"))
	assert.Error(t, err)
}

func TestNewRejectsInvalidCheckConfig(t *testing.T) {
	opts := DefaultCheckOptions()
	opts.Level = "bogus"

	_, err := New(WithCheck(opts), WithMetrics(false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid level")
}

func TestWithTargetReplacesImplicitDefault(t *testing.T) {
	conn := fakeCluster(t, `{"cluster_name":"c","status":"green"}`)

	runner, err := New(
		WithMetrics(false),
		WithTarget("only", conn, DefaultCheckOptions()),
	)
	require.NoError(t, err)

	_, ok := runner.Tracker().State("default")
	assert.False(t, ok)
	_, ok = runner.Tracker().State("only")
	assert.True(t, ok)
}
