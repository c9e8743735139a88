// Package eshealth validates the health of Elasticsearch/OpenSearch clusters
// by querying the cluster health API and turning the response into a
// pass/fail verdict. Any waiting (for a status, a node count, shard
// movement) is delegated to the cluster via the API's own wait_for_*
// parameters; this package never polls.
package eshealth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/elastic-ops/eshealth/internal/api"
	"github.com/elastic-ops/eshealth/internal/config"
	"github.com/elastic-ops/eshealth/internal/metrics"
	"github.com/elastic-ops/eshealth/internal/parallel"
	"github.com/elastic-ops/eshealth/pkg/enums"
	"github.com/elastic-ops/eshealth/pkg/interfaces"
	"github.com/elastic-ops/eshealth/pkg/plugin"
	elasticplugin "github.com/elastic-ops/eshealth/plugins/elastic"
)

// Runner orchestrates cluster health checks across the configured targets
type Runner struct {
	// Configuration
	config *config.Config

	// Components
	apiServer     *api.Server
	metricsClient *metrics.Client

	// Execution
	cron        *cron.Cron
	workerPool  *parallel.Pool
	runCount    int
	lastRunTime time.Time

	// Run state tracking
	currentRun       *interfaces.RunInfo
	consecutiveFails int

	// Targets and their latest verdicts
	targets []*target
	tracker *Tracker

	// Metadata
	version   string
	startTime time.Time

	// State
	mu           sync.RWMutex
	shutdownOnce sync.Once
	stopping     bool

	// Plugins
	plugins []plugin.Plugin

	// Logging
	logger zerolog.Logger
}

// target binds one configured cluster to its connection plugin and check
// options. The checker is built after the plugin has connected.
type target struct {
	name    string
	conn    *elasticplugin.ElasticPlugin
	opts    CheckOptions
	checker *Checker
}

// New creates a new Runner instance with the provided options
func New(options ...Option) (*Runner, error) {
	// Create with defaults
	r := &Runner{
		config:    config.Default(),
		startTime: time.Now(),
		version:   "dev",
		plugins:   make([]plugin.Plugin, 0),
	}

	// Apply options
	for _, option := range options {
		if err := option(r); err != nil {
			return nil, err
		}
	}

	r.config.Normalize()
	r.logger = log.With().Str("component", "eshealth-core").Str("tool", r.config.Tool.Name).Logger()

	// Validate and initialize components
	if err := r.initialize(); err != nil {
		return nil, err
	}

	return r, nil
}

// initialize performs internal initialization for the Runner
func (r *Runner) initialize() error {
	// Set up worker pool for checking targets in parallel
	r.workerPool = parallel.NewPool(
		r.config.Execution.Parallel.Workers,
		r.config.Execution.Parallel.BufferSize,
	)

	// Set up scheduler for periodic execution
	r.cron = cron.New(cron.WithSeconds())

	// Set up metrics client
	if r.config.Metrics.Enabled {
		r.metricsClient = metrics.NewClient(r.config.Metrics)
	}

	// Tracker holds the latest verdict per target
	r.tracker = NewTracker(r.version)

	// Build targets from configuration
	if err := r.buildTargets(); err != nil {
		return err
	}

	// Set up API server for health checks
	if r.config.API.Enabled {
		r.apiServer = api.NewServer(r.config.API, r.version)
		r.apiServer.RegisterHealthChecker(r)
		r.apiServer.RegisterHealthChecker(r.tracker)
		r.apiServer.SetStatusProvider(r.tracker)
	}

	return nil
}

// buildTargets turns the configured target list into connection plugins and
// check options, validating the options up front.
func (r *Runner) buildTargets() error {
	for _, tc := range r.config.Targets {
		opts := checkOptionsFromConfig(tc.Check)
		if err := opts.Validate(); err != nil {
			return fmt.Errorf("target %s: %w", tc.Name, err)
		}

		conn, err := elasticplugin.NewElasticPlugin(&elasticplugin.ElasticPluginConfig{
			Target:        tc.Name,
			Connection:    tc.Connection,
			EnableMetrics: r.config.Metrics.Enabled,
		})
		if err != nil {
			return fmt.Errorf("target %s: %w", tc.Name, err)
		}

		r.targets = append(r.targets, &target{
			name: tc.Name,
			conn: conn,
			opts: opts,
		})
		r.plugins = append(r.plugins, conn)

		r.tracker.SetDesired(tc.Name, Status(opts.WaitForStatus))
		if r.metricsClient != nil {
			r.metricsClient.RegisterTarget(tc.Name)
		}
	}

	if len(r.targets) == 0 {
		return fmt.Errorf("no targets configured")
	}
	return nil
}

// checkOptionsFromConfig converts the config section into CheckOptions.
func checkOptionsFromConfig(cc *config.CheckConfig) CheckOptions {
	if cc == nil {
		return DefaultCheckOptions()
	}
	return CheckOptions{
		Indices:                     cc.Indices,
		Level:                       cc.Level,
		Local:                       cc.Local,
		MasterTimeout:               cc.MasterTimeout,
		Timeout:                     cc.Timeout,
		WaitForActiveShards:         cc.WaitForActiveShards,
		WaitForEvents:               cc.WaitForEvents,
		WaitForNoInitializingShards: cc.WaitForNoInitializingShards,
		WaitForNoRelocatingShards:   cc.WaitForNoRelocatingShards,
		WaitForNodes:                cc.WaitForNodes,
		WaitForStatus:               cc.WaitForStatus,
	}
}

// RegisterPlugin adds a plugin to the runner lifecycle
func (r *Runner) RegisterPlugin(p plugin.Plugin) {
	r.plugins = append(r.plugins, p)
}

// Run connects to the configured clusters and executes the checks according
// to the execution configuration: once, on an interval, or on a cron
// schedule. In run-once mode the returned error is the aggregated verdict.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info().
		Str("version", r.version).
		Int("targets", len(r.targets)).
		Msg("Starting cluster health checks")

	// Create a cancellation context
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Handle signals in a separate goroutine
	go func() {
		select {
		case <-sigChan:
			r.logger.Info().Msg("Received shutdown signal, shutting down ...")
			r.Shutdown(ctx)
			cancel()
		case <-ctx.Done():
			// Context cancelled, clean shutdown
		}
	}()

	// Connect to the clusters; a connection failure is fatal before any
	// health request is attempted
	if err := r.initializePlugins(ctx); err != nil {
		return fmt.Errorf("plugin initialization failed: %w", err)
	}
	defer r.terminatePlugins(ctx)

	// Checkers reuse the plugin-owned clients
	for _, tgt := range r.targets {
		tgt.checker = NewChecker(tgt.conn.Client())
	}

	// Start API server if enabled
	if r.apiServer != nil {
		go func() {
			if err := r.apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				r.logger.Error().Err(err).Msg("API server error")
			}
		}()
	}

	// Execute based on configuration
	if r.config.Execution.RunOnce {
		// Run once and exit (unless WaitAfterCompletion is true)
		err := r.executeRun(ctx)

		if !r.config.Execution.WaitAfterCompletion {
			r.Shutdown(ctx)
			return err
		}

		// Wait for shutdown signal
		<-ctx.Done()
		return err
	} else if r.config.Execution.Schedule != "" {
		// Use cron scheduler
		_, err := r.cron.AddFunc(r.config.Execution.Schedule, func() {
			if err := r.executeRun(ctx); err != nil {
				r.logger.Error().Err(err).Msg("Scheduled run failed")
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule run: %w", err)
		}

		r.cron.Start()
	} else if r.config.Execution.Interval > 0 {
		// Use interval-based execution
		go func() {
			ticker := time.NewTicker(r.config.Execution.Interval)
			defer ticker.Stop()

			// Execute immediately on start
			if err := r.executeRun(ctx); err != nil {
				r.logger.Error().Err(err).Msg("Initial run failed")
			}

			for {
				select {
				case <-ticker.C:
					if err := r.executeRun(ctx); err != nil {
						r.logger.Error().Err(err).Msg("Periodic run failed")
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		return fmt.Errorf("invalid execution configuration: must specify RunOnce, Schedule, or Interval")
	}

	// Wait for context cancellation
	<-ctx.Done()
	return nil
}

// executeRun performs a single check run across all targets
func (r *Runner) executeRun(ctx context.Context) error {
	startTime := time.Now()
	r.mu.Lock()
	r.runCount++
	currentRun := r.runCount

	// Create run info
	runID := uuid.New().String()
	r.currentRun = &interfaces.RunInfo{
		RunID:     runID,
		StartTime: startTime,
		Status:    enums.RunStatusRunning,
	}
	r.mu.Unlock()

	// Create run context with timeout if configured
	runCtx := ctx
	if r.config.Execution.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.config.Execution.Timeout)
		defer cancel()
	}

	r.logger.Info().
		Int("run", currentRun).
		Str("run_id", runID).
		Time("start_time", startTime).
		Msg("Starting check run")

	// Fan the targets out across the worker pool; every target is checked
	// even when another one already failed
	fns := make([]func(context.Context) error, 0, len(r.targets))
	for _, tgt := range r.targets {
		tgt := tgt
		fns = append(fns, func(ctx context.Context) error {
			return r.checkTarget(ctx, tgt)
		})
	}

	err := errors.Join(r.workerPool.ExecuteAll(runCtx, fns)...)

	// Update run info
	duration := time.Since(startTime)

	r.mu.Lock()
	if r.currentRun != nil && r.currentRun.RunID == runID {
		r.currentRun.Duration = duration
		r.lastRunTime = startTime

		if err != nil {
			r.currentRun.Status = enums.RunStatusFailed
			r.currentRun.Error = err
			r.consecutiveFails++
		} else {
			r.currentRun.Status = enums.RunStatusCompleted
			r.consecutiveFails = 0
		}
	}
	r.mu.Unlock()

	// Log completion
	logEvent := r.logger.Info()
	if err != nil {
		logEvent = r.logger.Error().Err(err)
	}

	logEvent.
		Int("run", currentRun).
		Str("run_id", runID).
		Dur("duration", duration).
		Time("end_time", time.Now()).
		Msg("Check run completed")

	return err
}

// checkTarget runs the health check for one target, records the verdict and
// returns an error when the check failed or the returned status does not
// satisfy the configured wait_for_status.
func (r *Runner) checkTarget(ctx context.Context, tgt *target) error {
	start := time.Now()
	result, err := tgt.checker.Run(ctx, tgt.opts)
	duration := time.Since(start)

	if err != nil {
		r.tracker.Record(tgt.name, nil, err)
		if r.metricsClient != nil {
			r.metricsClient.RecordCheckFailure(tgt.name, duration)
		}
		r.logger.Error().
			Err(err).
			Str("target", tgt.name).
			Dur("duration", duration).
			Msg("Cluster health check failed")
		return fmt.Errorf("target %s: %w", tgt.name, err)
	}

	r.tracker.Record(tgt.name, &result, nil)
	if r.metricsClient != nil {
		r.metricsClient.RecordCheckSuccess(tgt.name, duration)
		r.metricsClient.RecordClusterHealth(tgt.name, clusterSample(result.Health))
	}

	r.logger.Info().
		Str("target", tgt.name).
		Str("status", string(result.Health.Status)).
		Bool("changed", result.Changed).
		Dur("duration", duration).
		Msg(result.Msg)

	// Independently validate the returned status against the expectation,
	// beyond what the server-side wait already enforced
	if state, ok := r.tracker.State(tgt.name); ok && !state.Satisfied {
		return fmt.Errorf("target %s: %s", tgt.name, state.Message)
	}

	return nil
}

// clusterSample converts a health document into the gauge sample exported
// by the metrics client.
func clusterSample(h ClusterHealth) metrics.ClusterSample {
	return metrics.ClusterSample{
		StatusOrdinal:       h.Status.Ordinal(),
		Nodes:               h.NumberOfNodes,
		DataNodes:           h.NumberOfDataNodes,
		ActivePrimaryShards: h.ActivePrimaryShards,
		ActiveShards:        h.ActiveShards,
		RelocatingShards:    h.RelocatingShards,
		InitializingShards:  h.InitializingShards,
		UnassignedShards:    h.UnassignedShards,
		PendingTasks:        h.PendingTasks,
		ActiveShardsPercent: h.ActiveShardsPercent,
	}
}

// initializePlugins initializes all registered plugins
func (r *Runner) initializePlugins(ctx context.Context) error {
	for _, p := range r.plugins {
		r.logger.Debug().Str("plugin", p.Name()).Msg("Initializing plugin")
		if err := p.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to initialize plugin %s: %w", p.Name(), err)
		}

		// Register health check if plugin implements the HealthCheck interface
		if healthChecker, ok := p.(api.HealthCheck); ok && r.apiServer != nil {
			r.apiServer.RegisterHealthChecker(healthChecker)
		}
	}

	return nil
}

// terminatePlugins terminates all registered plugins
func (r *Runner) terminatePlugins(ctx context.Context) {
	for _, p := range r.plugins {
		r.logger.Debug().Str("plugin", p.Name()).Msg("Terminating plugin")
		if err := p.Terminate(ctx); err != nil {
			r.logger.Error().Err(err).Str("plugin", p.Name()).Msg("Failed to terminate plugin")
		}
	}
}

// Shutdown initiates a graceful shutdown of the Runner
func (r *Runner) Shutdown(ctx context.Context) {
	r.shutdownOnce.Do(func() {
		r.mu.Lock()
		r.stopping = true
		r.mu.Unlock()

		r.logger.Info().Msg("Shutting down")

		// Stop the scheduler if running
		if r.cron != nil {
			r.cron.Stop()
		}

		// Stop the API server
		if r.apiServer != nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			if err := r.apiServer.Stop(shutdownCtx); err != nil {
				r.logger.Error().Err(err).Msg("Failed to stop API server gracefully")
			}
		}

		// Clean up worker pool
		if r.workerPool != nil {
			r.workerPool.Stop()
		}
	})
}

// Tracker exposes the latest per-target verdicts
func (r *Runner) Tracker() *Tracker {
	return r.tracker
}

// GetCurrentRun returns information about the current run
func (r *Runner) GetCurrentRun() *interfaces.RunInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.currentRun == nil {
		return nil
	}

	// Return a copy to avoid race conditions
	run := *r.currentRun
	return &run
}

// GetRunCount returns the total number of runs executed
func (r *Runner) GetRunCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.runCount
}

// GetLastRunTime returns the time of the last run
func (r *Runner) GetLastRunTime() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRunTime
}

// GetUptime returns the uptime of the Runner
func (r *Runner) GetUptime() time.Duration {
	return time.Since(r.startTime)
}

// --- Health Checker ---
var _ api.HealthCheck = (*Runner)(nil)

func (r *Runner) Name() string {
	return "eshealth-core"
}

func (r *Runner) HealthCheck(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Report unhealthy if we're shutting down
	if r.stopping {
		return fmt.Errorf("shutting down")
	}

	// Report unhealthy if too many consecutive failures
	maxFails := r.config.Health.MaxConsecutiveFailures
	if maxFails > 0 && r.consecutiveFails >= maxFails {
		return fmt.Errorf("too many consecutive failures: %d", r.consecutiveFails)
	}

	return nil
}
