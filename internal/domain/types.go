package domain

// JobStatus tracks the lifecycle of a single collection job.
type JobStatus string

const (
	JobStatusIdle      JobStatus = "idle"
	JobStatusLaunching JobStatus = "launching"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether a job in this status is finished for good.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	CollectorPath string `json:"collectorPath"`
	OutputDir     string `json:"outputDir"`
	PlatformURL   string `json:"platformUrl"`
}

// Job stores identity, inputs, and lifecycle state for one collector run.
// ExitCode is set only once a terminal status is reached.
type Job struct {
	ID       string    `json:"id"`
	Inputs   []string  `json:"inputs"`
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`
	ExitCode *int      `json:"exitCode,omitempty"`
}
