package eshealth

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// TargetState is the latest verdict recorded for one target cluster.
type TargetState struct {
	// Target is the configured cluster name
	Target string `json:"target"`

	// Result is the last successful check outcome, nil until one succeeds
	Result *Result `json:"result,omitempty"`

	// Err holds the last check error, nil when the check passed
	Err error `json:"-"`

	// Message mirrors Err for serialization
	Message string `json:"message,omitempty"`

	// Satisfied reports whether the last check passed and, when a desired
	// status is configured, whether the returned status satisfies it
	Satisfied bool `json:"satisfied"`

	// CheckedAt is when the target was last checked
	CheckedAt time.Time `json:"checkedAt"`
}

// Tracker maintains the latest verdict per target and feeds the API server's
// health and status endpoints.
type Tracker struct {
	mu      sync.RWMutex
	states  map[string]*TargetState
	desired map[string]Status

	// Metadata
	version   string
	startTime time.Time
}

// NewTracker creates an empty tracker.
func NewTracker(version string) *Tracker {
	return &Tracker{
		states:    make(map[string]*TargetState),
		desired:   make(map[string]Status),
		version:   version,
		startTime: time.Now(),
	}
}

// SetDesired registers the status a target is expected to reach. An empty
// desired status means any returned status is acceptable.
func (t *Tracker) SetDesired(target string, desired Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.desired[target] = desired
	if _, ok := t.states[target]; !ok {
		t.states[target] = &TargetState{Target: target}
	}
}

// Record stores the outcome of one check run for a target.
func (t *Tracker) Record(target string, result *Result, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := &TargetState{
		Target:    target,
		Result:    result,
		Err:       err,
		CheckedAt: time.Now(),
	}

	if err != nil {
		state.Message = err.Error()
	} else if result != nil {
		desired := t.desired[target]
		state.Satisfied = desired == "" || result.Health.Status.Satisfies(desired)
		if !state.Satisfied {
			state.Message = fmt.Sprintf("cluster status %s does not satisfy %s", result.Health.Status, desired)
		}
	}

	t.states[target] = state
}

// State returns a copy of the latest state for a target.
func (t *Tracker) State(target string) (TargetState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	state, ok := t.states[target]
	if !ok {
		return TargetState{}, false
	}
	return *state, true
}

// Healthy returns nil when every tracked target's last check passed and
// satisfied its desired status, or an error naming the failing targets.
func (t *Tracker) Healthy() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var failing []string
	for name, state := range t.states {
		if state.CheckedAt.IsZero() {
			failing = append(failing, name+" (not checked yet)")
			continue
		}
		if !state.Satisfied {
			failing = append(failing, name)
		}
	}

	if len(failing) == 0 {
		return nil
	}

	sort.Strings(failing)
	return fmt.Errorf("unhealthy targets: %s", strings.Join(failing, ", "))
}

// Uptime reports how long the tracker has existed.
func (t *Tracker) Uptime() time.Duration {
	return time.Since(t.startTime)
}

// --- API server integration ---

// Name implements the health check interface.
func (t *Tracker) Name() string {
	return "cluster-health"
}

// HealthCheck implements the health check interface.
func (t *Tracker) HealthCheck(ctx context.Context) error {
	return t.Healthy()
}

// StatusSnapshot returns the latest raw health document per target along
// with verdict metadata, for the /status endpoint. Documents are passed
// through verbatim, nothing is recomputed.
func (t *Tracker) StatusSnapshot() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot := make(map[string]any, len(t.states)+2)
	targets := make(map[string]any, len(t.states))

	for name, state := range t.states {
		entry := map[string]any{
			"satisfied": state.Satisfied,
			"checkedAt": state.CheckedAt,
		}
		if state.Message != "" {
			entry["message"] = state.Message
		}
		if state.Result != nil {
			entry["changed"] = state.Result.Changed
			entry["msg"] = state.Result.Msg
			entry["health"] = state.Result.Raw
		}
		targets[name] = entry
	}

	snapshot["targets"] = targets
	snapshot["version"] = t.version
	snapshot["uptime"] = time.Since(t.startTime).String()
	return snapshot
}
