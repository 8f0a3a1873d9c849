package jobs

import (
	"errors"
	"fmt"
	"sync"

	"record-harvester/internal/domain"
)

// ErrJobAlreadyRunning is returned when submitting while a job is active.
var ErrJobAlreadyRunning = errors.New("job already running")

// ErrNoActiveJob is returned for operations that need a launched job.
var ErrNoActiveJob = errors.New("no active job")

// Manager tracks the single allowed active job and its transitions.
// Exactly one job may be launching or running at a time; a submission
// during that window is rejected rather than clobbering the active job.
type Manager struct {
	mu      sync.RWMutex
	current domain.Job
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Job{
			Status: domain.JobStatusIdle,
		},
	}
}

// Start creates a fresh job over the given inputs and moves it to
// launching state. Valid from idle or a prior terminal state.
func (m *Manager) Start(jobID string, inputs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isActive(m.current.Status) {
		return ErrJobAlreadyRunning
	}

	m.current = domain.Job{
		ID:     jobID,
		Inputs: append([]string(nil), inputs...),
		Status: domain.JobStatusLaunching,
	}
	return nil
}

// Transition validates and applies state transitions for the current job.
func (m *Manager) Transition(status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" && status != domain.JobStatusIdle {
		return ErrNoActiveJob
	}
	if status == m.current.Status {
		return nil
	}
	if !isValidTransition(m.current.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, status)
	}

	m.current.Status = status
	return nil
}

// SetProgress records a percent update for the running job.
func (m *Manager) SetProgress(percent int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Status != domain.JobStatusRunning {
		return ErrNoActiveJob
	}
	m.current.Progress = percent
	return nil
}

// Finish moves the running job to its terminal state derived from the
// collector's exit code and records that code on the job.
func (m *Manager) Finish(exitCode int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Status != domain.JobStatusRunning {
		return ErrNoActiveJob
	}

	code := exitCode
	m.current.ExitCode = &code
	if exitCode == 0 {
		m.current.Status = domain.JobStatusCompleted
	} else {
		m.current.Status = domain.JobStatusFailed
	}
	return nil
}

// Current returns a snapshot of the current job.
func (m *Manager) Current() domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return snapshot(m.current)
}

// Reset clears job metadata and returns the manager to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.Job{Status: domain.JobStatusIdle}
}

// IsActive reports whether a job is currently launching or running.
func (m *Manager) IsActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isActive(m.current.Status)
}

// snapshot copies the job so callers cannot alias manager-owned slices.
func snapshot(job domain.Job) domain.Job {
	job.Inputs = append([]string(nil), job.Inputs...)
	if job.ExitCode != nil {
		code := *job.ExitCode
		job.ExitCode = &code
	}
	return job
}

// isActive checks if a status occupies the exclusive collector slot.
func isActive(status domain.JobStatus) bool {
	switch status {
	case domain.JobStatusLaunching, domain.JobStatusRunning:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the allowed job state machine edges.
func isValidTransition(from, to domain.JobStatus) bool {
	switch from {
	case domain.JobStatusIdle:
		return to == domain.JobStatusLaunching
	case domain.JobStatusLaunching:
		return to == domain.JobStatusRunning || to == domain.JobStatusFailed
	case domain.JobStatusRunning:
		return to == domain.JobStatusCompleted || to == domain.JobStatusFailed
	case domain.JobStatusCompleted, domain.JobStatusFailed:
		return to == domain.JobStatusLaunching || to == domain.JobStatusIdle
	default:
		return false
	}
}
