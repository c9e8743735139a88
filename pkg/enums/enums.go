package enums

// RunStatus tracks the state of a single check run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Log output formats supported by the logging setup.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)
