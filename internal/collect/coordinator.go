// Package collect orchestrates one collector run end to end: it guards
// the single-job invariant, launches the collector over a batch of
// identifiers, streams its stdout through the progress scanner, and
// publishes an ordered event stream ending in exactly one done event.
package collect

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"record-harvester/internal/domain"
	"record-harvester/internal/jobs"
	"record-harvester/internal/launcher"
	"record-harvester/internal/progress"
)

// ErrNoInputs is returned when a submission carries no identifiers.
var ErrNoInputs = errors.New("no identifiers submitted")

// Handle is the running-process surface the coordinator consumes.
type Handle interface {
	Stdout() io.Reader
	Wait() (int, error)
}

// Starter abstracts collector launch so the coordinator is testable
// without spawning real processes.
type Starter interface {
	Start(path string, args []string, workDir string, extraEnv []string) (Handle, error)
}

// execStarter adapts the production launcher to the Starter interface.
type execStarter struct {
	launcher *launcher.Launcher
}

// Start launches via os/exec and returns the process handle.
func (s execStarter) Start(path string, args []string, workDir string, extraEnv []string) (Handle, error) {
	handle, err := s.launcher.Start(path, args, workDir, extraEnv)
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// Request describes one submission: the identifier batch plus the
// resolved collector location and environment.
type Request struct {
	Inputs        []string
	CollectorPath string
	ExtraEnv      []string
}

// Coordinator owns the current job's mutable state and sequences
// launcher, scanner, and completion. One coordinator serves the whole
// application lifetime; each submission creates a fresh job.
type Coordinator struct {
	jobs    *jobs.Manager
	events  *jobs.EventBus
	starter Starter
	logger  *slog.Logger
	notify  func(jobs.Event)
}

// New constructs the production coordinator. notify, when non-nil, is
// invoked synchronously for every published event in sequence order.
func New(logger *slog.Logger, notify func(jobs.Event)) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		jobs:    jobs.NewManager(),
		events:  jobs.NewEventBus(1000),
		starter: execStarter{launcher: launcher.New(logger)},
		logger:  logger,
		notify:  notify,
	}
}

// NewForTests constructs a coordinator with an injectable starter.
func NewForTests(starter Starter, logger *slog.Logger, notify func(jobs.Event)) *Coordinator {
	c := New(logger, notify)
	c.starter = starter
	return c
}

// Submit launches the collector over the given identifier batch.
//
// The batch is passed as one positional argument, comma-joined in
// submission order; an identifier containing the separator would be
// mis-split by the collector (collaborator precondition, deliberately
// not enforced here). The working directory is the collector's own
// directory because it depends on co-located resources.
//
// Returns the job in launching/running state on success. Launch
// failures are synchronous: the job is marked failed, a status event
// records it, and no done event is ever published for it.
func (c *Coordinator) Submit(req Request) (domain.Job, error) {
	if len(req.Inputs) == 0 {
		return domain.Job{}, ErrNoInputs
	}

	jobID := uuid.NewString()
	if err := c.jobs.Start(jobID, req.Inputs); err != nil {
		return c.jobs.Current(), err
	}
	c.publish(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeStatus,
		Status:  domain.JobStatusLaunching,
		Message: "Launching collector",
	})

	batch := strings.Join(req.Inputs, ",")
	workDir := filepath.Dir(req.CollectorPath)
	handle, err := c.starter.Start(req.CollectorPath, []string{batch}, workDir, req.ExtraEnv)
	if err != nil {
		_ = c.jobs.Transition(domain.JobStatusFailed)
		c.publish(jobs.Event{
			JobID:   jobID,
			Type:    jobs.EventTypeStatus,
			Status:  domain.JobStatusFailed,
			Message: err.Error(),
		})
		c.logger.Error("collector launch failed", "job", jobID, "error", err)
		return c.jobs.Current(), err
	}

	_ = c.jobs.Transition(domain.JobStatusRunning)
	c.publish(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeStatus,
		Status:  domain.JobStatusRunning,
		Message: "Collector running",
	})

	go c.stream(jobID, handle)
	return c.jobs.Current(), nil
}

// Current returns a snapshot of the current job.
func (c *Coordinator) Current() domain.Job {
	return c.jobs.Current()
}

// Events returns all events with sequence greater than sinceSeq.
func (c *Coordinator) Events(sinceSeq int64) []jobs.Event {
	return c.events.Since(sinceSeq)
}

// stream pumps collector stdout through the scanner until EOF, then
// reaps the process and publishes the terminal done event. Reading to
// EOF before Wait guarantees every progress line produced before exit
// is published ahead of the done event.
func (c *Coordinator) stream(jobID string, handle Handle) {
	scanner := progress.NewScanner()
	reader := handle.Stdout()
	buf := make([]byte, 4096)

	for {
		n, err := reader.Read(buf)
		if n > 0 {
			for _, pct := range scanner.Feed(buf[:n]) {
				if setErr := c.jobs.SetProgress(pct); setErr != nil {
					continue
				}
				c.publish(jobs.Event{
					JobID:   jobID,
					Type:    jobs.EventTypeProgress,
					Status:  domain.JobStatusRunning,
					Percent: pct,
				})
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Warn("collector stdout read failed", "job", jobID, "error", err)
			}
			break
		}
	}
	if pending := scanner.Pending(); pending > 0 {
		c.logger.Debug("discarding unterminated trailing output", "job", jobID, "bytes", pending)
	}

	exitCode, waitErr := handle.Wait()
	if waitErr != nil {
		c.logger.Error("collector wait failed", "job", jobID, "error", waitErr)
		exitCode = -1
	}

	_ = c.jobs.Finish(exitCode)
	current := c.jobs.Current()
	success := exitCode == 0

	message := "Collection completed"
	if !success {
		message = "Collector exited with failure"
	}
	c.publish(jobs.Event{
		JobID:    jobID,
		Type:     jobs.EventTypeDone,
		Status:   current.Status,
		Success:  success,
		ExitCode: exitCode,
		Message:  message,
	})
	c.logger.Info("collector finished", "job", jobID, "exitCode", exitCode, "success", success)
}

// publish stores event history and forwards to the UI notifier.
func (c *Coordinator) publish(event jobs.Event) {
	published := c.events.Publish(event)
	if c.notify != nil {
		c.notify(published)
	}
}
