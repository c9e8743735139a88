package eshealth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func yellowResult(cluster string) *Result {
	return &Result{
		Msg: "cluster " + cluster + " health is yellow",
		Health: ClusterHealth{
			ClusterName: cluster,
			Status:      StatusYellow,
		},
		Raw: map[string]any{"cluster_name": cluster, "status": "yellow"},
	}
}

func TestTrackerRecordSuccess(t *testing.T) {
	tracker := NewTracker("test")
	tracker.SetDesired("primary", StatusYellow)

	tracker.Record("primary", yellowResult("primary"), nil)

	state, ok := tracker.State("primary")
	require.True(t, ok)
	assert.True(t, state.Satisfied)
	assert.Empty(t, state.Message)
	assert.False(t, state.CheckedAt.IsZero())
	assert.NoError(t, tracker.Healthy())
}

func TestTrackerRecordUnsatisfied(t *testing.T) {
	tracker := NewTracker("test")
	tracker.SetDesired("primary", StatusGreen)

	tracker.Record("primary", yellowResult("primary"), nil)

	state, ok := tracker.State("primary")
	require.True(t, ok)
	assert.False(t, state.Satisfied)
	assert.Contains(t, state.Message, "does not satisfy green")

	err := tracker.Healthy()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary")
}

func TestTrackerRecordNoDesiredStatus(t *testing.T) {
	tracker := NewTracker("test")
	tracker.SetDesired("primary", "")

	// Without a desired status any returned colour is acceptable, even red
	red := yellowResult("primary")
	red.Health.Status = StatusRed
	tracker.Record("primary", red, nil)

	state, _ := tracker.State("primary")
	assert.True(t, state.Satisfied)
	assert.NoError(t, tracker.Healthy())
}

func TestTrackerRecordError(t *testing.T) {
	tracker := NewTracker("test")
	tracker.SetDesired("primary", StatusYellow)

	tracker.Record("primary", nil, errors.New("connection refused"))

	state, _ := tracker.State("primary")
	assert.False(t, state.Satisfied)
	assert.Equal(t, "connection refused", state.Message)
	assert.Error(t, tracker.Healthy())
}

func TestTrackerUncheckedTarget(t *testing.T) {
	tracker := NewTracker("test")
	tracker.SetDesired("primary", StatusYellow)

	err := tracker.Healthy()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not checked yet")

	_, ok := tracker.State("unknown")
	assert.False(t, ok)
}

func TestTrackerHealthyNamesAllFailingTargets(t *testing.T) {
	tracker := NewTracker("test")
	tracker.SetDesired("alpha", StatusGreen)
	tracker.SetDesired("beta", StatusGreen)

	tracker.Record("alpha", yellowResult("alpha"), nil)
	tracker.Record("beta", nil, errors.New("timeout"))

	err := tracker.Healthy()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alpha")
	assert.Contains(t, err.Error(), "beta")
}

func TestTrackerHealthCheckInterface(t *testing.T) {
	tracker := NewTracker("test")
	assert.Equal(t, "cluster-health", tracker.Name())

	tracker.SetDesired("primary", "")
	tracker.Record("primary", yellowResult("primary"), nil)
	assert.NoError(t, tracker.HealthCheck(context.Background()))
}

func TestTrackerStatusSnapshot(t *testing.T) {
	tracker := NewTracker("1.2.3")
	tracker.SetDesired("primary", StatusYellow)
	tracker.Record("primary", yellowResult("primary"), nil)

	snapshot := tracker.StatusSnapshot()
	assert.Equal(t, "1.2.3", snapshot["version"])
	assert.NotEmpty(t, snapshot["uptime"])

	targets, ok := snapshot["targets"].(map[string]any)
	require.True(t, ok)
	entry, ok := targets["primary"].(map[string]any)
	require.True(t, ok)

	assert.Equal(t, true, entry["satisfied"])
	assert.Equal(t, false, entry["changed"])

	// The raw health document is passed through verbatim
	doc, ok := entry["health"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "yellow", doc["status"])
}
