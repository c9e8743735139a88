package eshealth

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/elastic-ops/eshealth/internal/config"
	"github.com/elastic-ops/eshealth/pkg/elastic"
	"github.com/elastic-ops/eshealth/pkg/enums"
	"github.com/elastic-ops/eshealth/pkg/logging"
	"github.com/elastic-ops/eshealth/pkg/plugin"
)

// Option is a functional option for configuring the Runner
type Option func(*Runner) error

// WithConfigPath loads configuration from the specified path
func WithConfigPath(path string) Option {
	return func(r *Runner) error {
		cfg, err := config.LoadConfig(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		r.config = cfg
		return nil
	}
}

// WithConfig directly sets the configuration
func WithConfig(cfg *config.Config) Option {
	return func(r *Runner) error {
		r.config = cfg
		return nil
	}
}

// WithName sets the tool name
func WithName(name string) Option {
	return func(r *Runner) error {
		if r.config.Tool == nil {
			r.config.Tool = &config.ToolConfig{}
		}
		r.config.Tool.Name = name
		return nil
	}
}

// WithDescription sets the tool description
func WithDescription(description string) Option {
	return func(r *Runner) error {
		if r.config.Tool == nil {
			r.config.Tool = &config.ToolConfig{}
		}
		r.config.Tool.Description = description
		return nil
	}
}

// WithVersion sets the version information
func WithVersion(version string) Option {
	return func(r *Runner) error {
		r.version = version
		return nil
	}
}

// WithConnection sets the default cluster connection settings
func WithConnection(conn *elastic.Config) Option {
	return func(r *Runner) error {
		old := r.config.Connection
		r.config.Connection = conn
		for _, target := range r.config.Targets {
			if target.Connection == nil || target.Connection == old {
				target.Connection = conn
			}
		}
		return nil
	}
}

// WithCheck sets the default check options applied to every target that does
// not override them
func WithCheck(opts CheckOptions) Option {
	return func(r *Runner) error {
		cc := checkConfigFromOptions(opts)
		old := r.config.Check
		r.config.Check = cc
		for _, target := range r.config.Targets {
			if target.Check == nil || target.Check == old {
				target.Check = cc
			}
		}
		return nil
	}
}

// WithTarget adds a named cluster to check
func WithTarget(name string, conn *elastic.Config, opts CheckOptions) Option {
	return func(r *Runner) error {
		if name == "" {
			return fmt.Errorf("target name is required")
		}
		// The implicit default target is replaced by the first explicit one
		if len(r.config.Targets) == 1 && r.config.Targets[0].Name == "default" && r.config.Targets[0].Connection == r.config.Connection {
			r.config.Targets = nil
		}
		r.config.Targets = append(r.config.Targets, &config.TargetConfig{
			Name:       name,
			Connection: conn,
			Check:      checkConfigFromOptions(opts),
		})
		return nil
	}
}

// WithWaitForStatus sets the desired terminal status on the default check
func WithWaitForStatus(status string) Option {
	return func(r *Runner) error {
		if status == "" {
			return nil
		}
		if _, err := ParseStatus(status); err != nil {
			return err
		}
		if r.config.Check == nil {
			r.config.Check = &config.CheckConfig{}
		}
		r.config.Check.WaitForStatus = status
		return nil
	}
}

// WithWaitForNodes sets the desired node count expression on the default check
func WithWaitForNodes(expr string) Option {
	return func(r *Runner) error {
		if r.config.Check == nil {
			r.config.Check = &config.CheckConfig{}
		}
		r.config.Check.WaitForNodes = expr
		return nil
	}
}

// WithCheckTimeout sets how long the cluster may block before answering
func WithCheckTimeout(timeout string) Option {
	return func(r *Runner) error {
		if r.config.Check == nil {
			r.config.Check = &config.CheckConfig{}
		}
		r.config.Check.Timeout = timeout
		return nil
	}
}

// WithRunOnce configures the Runner to execute the checks once and exit
func WithRunOnce(waitAfterCompletion bool) Option {
	return func(r *Runner) error {
		if r.config.Execution == nil {
			r.config.Execution = &config.ExecutionConfig{}
		}
		r.config.Execution.RunOnce = true
		r.config.Execution.WaitAfterCompletion = waitAfterCompletion
		return nil
	}
}

// WithSchedule sets a cron schedule for periodic execution
func WithSchedule(cronExpr string) Option {
	return func(r *Runner) error {
		if r.config.Execution == nil {
			r.config.Execution = &config.ExecutionConfig{}
		}
		r.config.Execution.RunOnce = false
		r.config.Execution.Schedule = cronExpr
		return nil
	}
}

// WithInterval sets a time interval for periodic execution
func WithInterval(interval time.Duration) Option {
	return func(r *Runner) error {
		if r.config.Execution == nil {
			r.config.Execution = &config.ExecutionConfig{}
		}
		r.config.Execution.RunOnce = false
		r.config.Execution.Interval = interval
		return nil
	}
}

// WithTimeout sets the maximum execution time for each check run
func WithTimeout(timeout time.Duration) Option {
	return func(r *Runner) error {
		if r.config.Execution == nil {
			r.config.Execution = &config.ExecutionConfig{}
		}
		r.config.Execution.Timeout = timeout
		return nil
	}
}

// WithParallelism configures the parallel execution settings
func WithParallelism(workers, bufferSize int) Option {
	return func(r *Runner) error {
		if r.config.Execution == nil {
			r.config.Execution = &config.ExecutionConfig{}
		}
		if r.config.Execution.Parallel == nil {
			r.config.Execution.Parallel = &config.ParallelConfig{}
		}
		r.config.Execution.Parallel.Workers = workers
		r.config.Execution.Parallel.BufferSize = bufferSize
		return nil
	}
}

// WithAPI enables or disables the API server
func WithAPI(enabled bool, port int) Option {
	return func(r *Runner) error {
		if r.config.API == nil {
			r.config.API = &config.APIConfig{}
		}
		r.config.API.Enabled = enabled
		if port > 0 {
			r.config.API.Port = port
		}
		return nil
	}
}

// WithMetrics enables or disables metrics collection
func WithMetrics(enabled bool) Option {
	return func(r *Runner) error {
		if r.config.Metrics == nil {
			r.config.Metrics = &config.MetricsConfig{}
		}
		r.config.Metrics.Enabled = enabled
		return nil
	}
}

// WithLogLevel sets the logging level
func WithLogLevel(level string) Option {
	return func(r *Runner) error {
		lvl, err := zerolog.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}

		if r.config.Logging == nil {
			r.config.Logging = &config.LoggingConfig{}
		}
		r.config.Logging.Level = level

		// Apply the log level
		zerolog.SetGlobalLevel(lvl)
		return nil
	}
}

// WithLogFormat sets the logging format
func WithLogFormat(format string) Option {
	return func(r *Runner) error {
		if r.config.Logging == nil {
			r.config.Logging = &config.LoggingConfig{}
		}
		r.config.Logging.Format = format

		// Apply the log format
		switch format {
		case enums.LogFormatJSON:
			// JSON is the default for zerolog
		case enums.LogFormatConsole:
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: logging.DefaultOutput})
		default:
			return fmt.Errorf("unsupported log format: %s", format)
		}

		return nil
	}
}

// WithLogger sets a custom logger
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) error {
		r.logger = logger
		return nil
	}
}

// WithMaxConsecutiveFailures sets the maximum allowed consecutive failures
func WithMaxConsecutiveFailures(max int) Option {
	return func(r *Runner) error {
		if r.config.Health == nil {
			r.config.Health = &config.HealthConfig{}
		}
		r.config.Health.MaxConsecutiveFailures = max
		return nil
	}
}

// WithPlugin adds a plugin to the Runner
func WithPlugin(p plugin.Plugin) Option {
	return func(r *Runner) error {
		r.plugins = append(r.plugins, p)
		return nil
	}
}

// checkConfigFromOptions converts typed check options into the config form.
func checkConfigFromOptions(opts CheckOptions) *config.CheckConfig {
	return &config.CheckConfig{
		Indices:                     opts.Indices,
		Level:                       opts.Level,
		Local:                       opts.Local,
		MasterTimeout:               opts.MasterTimeout,
		Timeout:                     opts.Timeout,
		WaitForActiveShards:         opts.WaitForActiveShards,
		WaitForEvents:               opts.WaitForEvents,
		WaitForNoInitializingShards: opts.WaitForNoInitializingShards,
		WaitForNoRelocatingShards:   opts.WaitForNoRelocatingShards,
		WaitForNodes:                opts.WaitForNodes,
		WaitForStatus:               opts.WaitForStatus,
	}
}
