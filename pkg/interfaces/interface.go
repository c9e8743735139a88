package interfaces

import (
	"context"
	"time"

	"github.com/elastic-ops/eshealth/pkg/enums"
)

// HealthCheck is an optional interface components can implement
// to surface their health through the API server
type HealthCheck interface {
	// Name returns the name of this health check component
	Name() string

	// HealthCheck reports on the health status of the component
	// Returns nil if healthy, or an error describing the issue
	HealthCheck(ctx context.Context) error
}

// RunInfo provides information about a check run
type RunInfo struct {
	// RunID is a unique identifier for this execution
	RunID string

	// StartTime is when the execution began
	StartTime time.Time

	// Duration is how long the execution took (or has been running)
	Duration time.Duration

	// Status indicates the current state of the execution
	Status enums.RunStatus

	Error error
}
