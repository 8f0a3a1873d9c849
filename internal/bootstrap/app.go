package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"record-harvester/internal/archive"
	"record-harvester/internal/collect"
	"record-harvester/internal/config"
	"record-harvester/internal/diagnostics"
	"record-harvester/internal/domain"
	"record-harvester/internal/jobs"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var executableDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

var archiveDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Zip archives",
		Pattern:     "*.zip",
	},
}

// App wires configuration, the job coordinator, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Coordinator *collect.Coordinator
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	checker     *diagnostics.Checker
	logger      *slog.Logger

	mu         sync.Mutex
	runtimeCtx context.Context
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	// Optional; overrides settings and carries platform credentials.
	_ = godotenv.Load()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}

	store := config.NewJSONStore(filepath.Join(homeDir, ".record-harvester", "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	settings = config.ApplyEnvOverrides(settings)

	checker := diagnostics.NewChecker()
	report := checker.Run(settings)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))
	app := &App{
		Settings:    settings,
		Store:       store,
		Diagnostics: report,
		assets:      assets,
		checker:     checker,
		logger:      logger,
	}
	app.Coordinator = collect.New(logger, app.pushEvent)
	return app, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Record Harvester",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings with
// environment overrides applied.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.loadSettings()
	if err != nil {
		return domain.Settings{}, err
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = normalized
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(normalized)
	}
	a.mu.Unlock()

	return normalized, nil
}

// PickCollectorExecutable opens a native file dialog for the collector binary.
func (a *App) PickCollectorExecutable() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select collector executable",
		Filters: executableDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickOutputDirectory opens a native directory picker for collection results.
func (a *App) PickOutputDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select output directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickArchiveDestination opens a native save dialog for the delivery archive.
func (a *App) PickArchiveDestination() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.SaveFileDialog(ctx, wailsruntime.SaveDialogOptions{
		Title:           "Save results archive",
		DefaultFilename: "resultados.zip",
		Filters:         archiveDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// SubmitJob launches the collector over the given identifier batch and
// returns the created job. Exactly one job may be active at a time.
func (a *App) SubmitJob(inputs []string) (domain.Job, error) {
	settings, err := a.loadSettings()
	if err != nil {
		return domain.Job{}, err
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return a.Coordinator.Submit(collect.Request{
		Inputs:        inputs,
		CollectorPath: settings.CollectorPath,
		ExtraEnv:      config.CollectorEnv(settings),
	})
}

// CurrentJob returns current job metadata and status.
func (a *App) CurrentJob() domain.Job {
	return a.Coordinator.Current()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.Coordinator.Events(sinceSeq)
}

// ArchiveResults packages a results directory into a single zip at
// destPath. An empty sourceDir falls back to the configured output
// directory. Independent of job state; callers normally invoke it
// after observing a successful done event.
func (a *App) ArchiveResults(sourceDir, destPath string) (string, error) {
	source := strings.TrimSpace(sourceDir)
	if source == "" {
		settings, err := a.loadSettings()
		if err != nil {
			return "", err
		}
		source = settings.OutputDir
	}

	dest := strings.TrimSpace(destPath)
	if dest == "" {
		return "", fmt.Errorf("archive destination is required")
	}

	path, err := archive.Build(source, dest)
	if err != nil {
		a.logger.Error("archive failed", "source", source, "dest", dest, "error", err)
		return "", err
	}

	a.logger.Info("archive written", "source", source, "dest", dest)
	return path, nil
}

// OpenOutputFolder opens the given path (or configured output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.Settings.OutputDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.loadSettings()
	if err != nil {
		return domain.DiagnosticReport{}, err
	}

	a.mu.Lock()
	a.Settings = settings
	a.Diagnostics = a.checker.Run(settings)
	report := a.Diagnostics
	a.mu.Unlock()
	return report, nil
}

// loadSettings reads persisted settings and applies environment overrides.
func (a *App) loadSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return config.ApplyEnvOverrides(settings), nil
}

// pushEvent forwards coordinator events to the frontend when running.
func (a *App) pushEvent(event jobs.Event) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "job:event", event)
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// normalizeSettings trims user inputs.
func normalizeSettings(settings domain.Settings) domain.Settings {
	settings.CollectorPath = strings.TrimSpace(settings.CollectorPath)
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	settings.PlatformURL = strings.TrimSpace(settings.PlatformURL)
	return settings
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
