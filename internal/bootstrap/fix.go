package bootstrap

import (
	"fmt"
	"os"
	"strings"

	"record-harvester/internal/config"
	"record-harvester/internal/domain"
)

// InstallOrFixDiagnostic applies a remediation for one failed diagnostic
// item and returns the refreshed report. Only the output directory can
// be fixed automatically; the collector binary and its chromedriver are
// operator-provided, so those items return guidance instead.
func (a *App) InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	if a.Store == nil {
		return domain.DiagnosticReport{}, fmt.Errorf("settings store is not configured")
	}

	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	settings, err := a.loadSettings()
	if err != nil {
		return domain.DiagnosticReport{}, err
	}
	settings = normalizeSettings(settings)

	settingsChanged := false
	var fixErr error

	switch id {
	case "output_dir":
		if settings.OutputDir == "" {
			settings.OutputDir = config.DefaultSettings().OutputDir
			settingsChanged = true
		}
		fixErr = os.MkdirAll(settings.OutputDir, 0o755)
	case "collector_path":
		fixErr = fmt.Errorf("the collector must be installed manually; pick its executable in settings")
	case "chromedriver":
		fixErr = fmt.Errorf("place a chromedriver matching the installed Chrome in the collector's utils directory")
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	if settingsChanged {
		if saveErr := a.Store.Save(settings); saveErr != nil {
			report := a.refreshDiagnosticsFromSettings(settings)
			return report, fmt.Errorf("save settings after fix: %w", saveErr)
		}
	}

	report := a.refreshDiagnosticsFromSettings(settings)
	if fixErr != nil {
		return report, fixErr
	}
	return report, nil
}

// refreshDiagnosticsFromSettings reruns checks and caches the report.
func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(settings)
	}
	return a.Diagnostics
}
