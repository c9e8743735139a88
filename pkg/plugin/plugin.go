package plugin

import (
	"context"
)

// Plugin is the interface that all eshealth plugins must implement
type Plugin interface {
	// Name returns the name of the plugin
	Name() string

	// Initialize is called during runner initialization
	Initialize(ctx context.Context) error

	// Terminate is called during runner shutdown
	Terminate(ctx context.Context) error
}

// ConnectionPlugin is an interface for plugins that own a connection
// to an external system
type ConnectionPlugin interface {
	Plugin

	// Connect establishes the connection
	Connect(ctx context.Context) error

	// Disconnect closes the connection
	Disconnect(ctx context.Context) error

	// Ping verifies the connection is alive
	Ping(ctx context.Context) error
}
