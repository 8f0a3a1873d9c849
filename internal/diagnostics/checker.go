// Package diagnostics validates the collector's runtime environment at
// startup: the executable itself, the chromedriver it expects next to
// its binary, and a writable output directory.
package diagnostics

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"record-harvester/internal/domain"
)

// Checker validates the collector executable and required paths.
type Checker struct {
	stat       func(string) (os.FileInfo, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		stat:       os.Stat,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkCollector(settings.CollectorPath),
		c.checkChromedriver(settings.CollectorPath),
		c.checkOutputDir(settings.OutputDir),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkCollector validates the configured collector executable.
func (c *Checker) checkCollector(path string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "collector_path",
		Name: "Collector executable",
	}

	if strings.TrimSpace(path) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Collector path is empty."
		item.Hint = "Pick the collector executable in settings before submitting a batch."
		return item
	}

	info, err := c.stat(path)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		if errors.Is(err, os.ErrNotExist) {
			item.Message = fmt.Sprintf("Collector executable does not exist: %s", path)
		} else {
			item.Message = fmt.Sprintf("Cannot access collector executable: %s", path)
		}
		item.Hint = "Install the collector and point settings at its binary."
		return item
	}

	if info.IsDir() {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Collector path is a directory: %s", path)
		item.Hint = "Select the executable file itself, not its folder."
		return item
	}

	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Collector file is not executable: %s", path)
		item.Hint = "Grant execute permission (chmod +x) to the collector binary."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Collector found: %s", path)
	return item
}

// checkChromedriver verifies the browser driver the collector expects
// in utils/ next to its own binary.
func (c *Checker) checkChromedriver(collectorPath string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "chromedriver",
		Name: "Browser driver",
	}

	if strings.TrimSpace(collectorPath) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Cannot locate the browser driver without a collector path."
		item.Hint = "Configure the collector executable first."
		return item
	}

	driverPath := filepath.Join(filepath.Dir(collectorPath), "utils", "chromedriver")
	if runtime.GOOS == "windows" {
		driverPath += ".exe"
	}

	if _, err := c.stat(driverPath); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Browser driver not found: %s", driverPath)
		item.Hint = "Place a chromedriver matching the installed Chrome in the collector's utils directory."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Found at %s", driverPath)
	return item
}

// checkOutputDir validates output directory existence and write access.
func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "output_dir",
		Name: "Output directory",
	}

	if strings.TrimSpace(outputDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Output directory is empty."
		item.Hint = "Set an output directory where the collector's results can be written."
		return item
	}

	if err := c.mkdirAll(outputDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create output directory: %s", outputDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output directory is not writable: %s", outputDir)
		item.Hint = "Choose a writable directory for collection results."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", outputDir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	stat func(string) (os.FileInfo, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		stat:       stat,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}

// IsNotExist reports whether error represents file-not-found.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
