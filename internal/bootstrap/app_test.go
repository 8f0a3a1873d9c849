package bootstrap

import (
	"archive/zip"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"record-harvester/internal/collect"
	"record-harvester/internal/diagnostics"
	"record-harvester/internal/domain"
	"record-harvester/internal/jobs"
	"record-harvester/internal/launcher"
)

// fakeStore returns deterministic settings for App tests.
type fakeStore struct {
	settings domain.Settings
	saved    *domain.Settings
}

// Load returns preconfigured settings.
func (s *fakeStore) Load() (domain.Settings, error) {
	return s.settings, nil
}

// Save records the last persisted settings.
func (s *fakeStore) Save(settings domain.Settings) error {
	s.saved = &settings
	return nil
}

// fakeHandle is a scripted process handle.
type fakeHandle struct {
	stdout io.Reader
	exit   int
}

// Stdout returns the scripted output stream.
func (h *fakeHandle) Stdout() io.Reader { return h.stdout }

// Wait returns the scripted exit status.
func (h *fakeHandle) Wait() (int, error) { return h.exit, nil }

// fakeStarter allows injecting custom launch behavior per test.
type fakeStarter struct {
	start func(path string, args []string, workDir string, extraEnv []string) (collect.Handle, error)
}

// Start delegates to injected function.
func (s *fakeStarter) Start(path string, args []string, workDir string, extraEnv []string) (collect.Handle, error) {
	if s.start == nil {
		return &fakeHandle{stdout: strings.NewReader("")}, nil
	}
	return s.start(path, args, workDir, extraEnv)
}

// newTestApp builds an App with injected store and starter.
func newTestApp(store *fakeStore, starter collect.Starter) *App {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := &App{
		Store:   store,
		checker: diagnostics.NewChecker(),
		logger:  logger,
	}
	app.Coordinator = collect.NewForTests(starter, logger, app.pushEvent)
	return app
}

// TestSubmitJobEnforcesSingleActiveJob checks the single-job guard.
func TestSubmitJobEnforcesSingleActiveJob(t *testing.T) {
	blocker, release := io.Pipe()
	store := &fakeStore{
		settings: domain.Settings{
			CollectorPath: "/opt/collector/collector",
			OutputDir:     t.TempDir(),
		},
	}
	app := newTestApp(store, &fakeStarter{
		start: func(string, []string, string, []string) (collect.Handle, error) {
			return &fakeHandle{stdout: blocker}, nil
		},
	})

	if _, err := app.SubmitJob([]string{"111"}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := app.SubmitJob([]string{"222"}); !errors.Is(err, jobs.ErrJobAlreadyRunning) {
		t.Fatalf("second submit error = %v, want %v", err, jobs.ErrJobAlreadyRunning)
	}

	if err := release.Close(); err != nil {
		t.Fatalf("close pipe: %v", err)
	}
	waitForStatus(t, app, domain.JobStatusCompleted)
}

// TestSubmitJobPublishesProgressAndDoneEvents checks event flow and
// that the collector receives the comma-joined batch.
func TestSubmitJobPublishesProgressAndDoneEvents(t *testing.T) {
	store := &fakeStore{
		settings: domain.Settings{
			CollectorPath: "/opt/collector/collector",
			OutputDir:     t.TempDir(),
		},
	}

	var gotArgs []string
	app := newTestApp(store, &fakeStarter{
		start: func(path string, args []string, workDir string, extraEnv []string) (collect.Handle, error) {
			gotArgs = args
			return &fakeHandle{
				stdout: strings.NewReader("PROGRESS:0%\nPROGRESS:50%\nPROGRESS:100%\n"),
				exit:   0,
			}, nil
		},
	})

	if _, err := app.SubmitJob([]string{"111", "222"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForStatus(t, app, domain.JobStatusCompleted)

	if len(gotArgs) != 1 || gotArgs[0] != "111,222" {
		t.Fatalf("collector args = %v, want one comma-joined batch", gotArgs)
	}

	events := app.JobEvents(0)
	if len(events) == 0 {
		t.Fatal("expected events")
	}
	assertEventTypeExists(t, events, jobs.EventTypeStatus)
	assertEventTypeExists(t, events, jobs.EventTypeProgress)
	assertEventTypeExists(t, events, jobs.EventTypeDone)
	if last := events[len(events)-1]; last.Type != jobs.EventTypeDone || !last.Success {
		t.Fatalf("last event = %+v, want done(true)", last)
	}
}

// TestSubmitJobLaunchFailureIsSynchronous checks the error path.
func TestSubmitJobLaunchFailureIsSynchronous(t *testing.T) {
	store := &fakeStore{
		settings: domain.Settings{
			CollectorPath: "/missing/collector",
			OutputDir:     t.TempDir(),
		},
	}
	app := newTestApp(store, &fakeStarter{
		start: func(string, []string, string, []string) (collect.Handle, error) {
			return nil, &launcher.StartError{Path: "/missing/collector", Err: errors.New("no such file")}
		},
	})

	_, err := app.SubmitJob([]string{"111"})
	var startErr *launcher.StartError
	if !errors.As(err, &startErr) {
		t.Fatalf("error = %v, want *launcher.StartError", err)
	}
	if status := app.CurrentJob().Status; status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed", status)
	}
	for _, event := range app.JobEvents(0) {
		if event.Type == jobs.EventTypeDone {
			t.Fatal("done event published for launch failure")
		}
	}
}

// TestSubmitJobRejectsEmptyBatch checks validation before spawn.
func TestSubmitJobRejectsEmptyBatch(t *testing.T) {
	store := &fakeStore{
		settings: domain.Settings{CollectorPath: "/opt/collector/collector"},
	}
	called := false
	app := newTestApp(store, &fakeStarter{
		start: func(string, []string, string, []string) (collect.Handle, error) {
			called = true
			return &fakeHandle{stdout: strings.NewReader("")}, nil
		},
	})

	if _, err := app.SubmitJob(nil); !errors.Is(err, collect.ErrNoInputs) {
		t.Fatalf("error = %v, want %v", err, collect.ErrNoInputs)
	}
	if called {
		t.Fatal("starter invoked for empty batch")
	}
}

// TestArchiveResultsFallsBackToOutputDir checks the default-source path
// and that the archive is a readable zip.
func TestArchiveResultsFallsBackToOutputDir(t *testing.T) {
	root := t.TempDir()
	outputDir := filepath.Join(root, "out")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(outputDir, "a.txt"), []byte("alpha"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := &fakeStore{settings: domain.Settings{OutputDir: outputDir}}
	app := newTestApp(store, &fakeStarter{})

	dest := filepath.Join(root, "delivery.zip")
	got, err := app.ArchiveResults("", dest)
	if err != nil {
		t.Fatalf("ArchiveResults() error = %v", err)
	}
	if got != dest {
		t.Fatalf("path = %q, want %q", got, dest)
	}

	r, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer r.Close()
	if len(r.File) != 1 || r.File[0].Name != "a.txt" {
		t.Fatalf("unexpected archive contents: %+v", r.File)
	}
}

// TestArchiveResultsRequiresDestination checks destination validation.
func TestArchiveResultsRequiresDestination(t *testing.T) {
	store := &fakeStore{settings: domain.Settings{OutputDir: t.TempDir()}}
	app := newTestApp(store, &fakeStarter{})

	if _, err := app.ArchiveResults("", ""); err == nil {
		t.Fatal("expected error for empty destination")
	}
}

// TestInstallOrFixDiagnosticCreatesOutputDir checks the one automatic
// remediation.
func TestInstallOrFixDiagnosticCreatesOutputDir(t *testing.T) {
	root := t.TempDir()
	outputDir := filepath.Join(root, "nested", "out")
	store := &fakeStore{settings: domain.Settings{OutputDir: outputDir}}
	app := newTestApp(store, &fakeStarter{})

	report, err := app.InstallOrFixDiagnostic("output_dir")
	if err != nil {
		t.Fatalf("fix: %v", err)
	}
	if _, statErr := os.Stat(outputDir); statErr != nil {
		t.Fatalf("output dir not created: %v", statErr)
	}
	assertItemStatus(t, report, "output_dir", domain.DiagnosticStatusPass)
}

// TestInstallOrFixDiagnosticCollectorIsManual checks guidance for
// operator-provided items.
func TestInstallOrFixDiagnosticCollectorIsManual(t *testing.T) {
	store := &fakeStore{settings: domain.Settings{OutputDir: t.TempDir()}}
	app := newTestApp(store, &fakeStarter{})

	if _, err := app.InstallOrFixDiagnostic("collector_path"); err == nil {
		t.Fatal("expected guidance error for collector_path")
	}
	if _, err := app.InstallOrFixDiagnostic("bogus"); err == nil {
		t.Fatal("expected error for unknown item")
	}
}

// waitForStatus polls until job reaches desired status or times out.
func waitForStatus(t *testing.T, app *App, want domain.JobStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if app.CurrentJob().Status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("status = %s, want %s", app.CurrentJob().Status, want)
}

// assertEventTypeExists verifies at least one event of given type exists.
func assertEventTypeExists(t *testing.T, events []jobs.Event, want jobs.EventType) {
	t.Helper()
	for _, event := range events {
		if event.Type == want {
			return
		}
	}
	t.Fatalf("event type %s not found", want)
}

// assertItemStatus checks one diagnostic item's status by ID.
func assertItemStatus(t *testing.T, report domain.DiagnosticReport, id string, want domain.DiagnosticStatus) {
	t.Helper()
	for _, item := range report.Items {
		if item.ID == id {
			if item.Status != want {
				t.Fatalf("item %s status = %s, want %s", id, item.Status, want)
			}
			return
		}
	}
	t.Fatalf("diagnostic item not found: %s", id)
}
