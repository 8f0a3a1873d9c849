package config

import (
	"os"
	"path/filepath"
	"strings"

	"record-harvester/internal/domain"
)

// Environment variable names recognized for overrides. The collector's
// own script reads the FASTCLINICA_* variables from its .env; keeping
// the same names lets one file drive both sides.
const (
	EnvCollectorPath = "HARVESTER_COLLECTOR_PATH"
	EnvOutputDir     = "HARVESTER_OUTPUT_DIR"
	EnvPlatformURL   = "FASTCLINICA_URL"
	EnvPlatformUser  = "FASTCLINICA_USER"
	EnvPlatformPass  = "FASTCLINICA_PASS"
)

// DefaultSettings returns baseline local configuration for first launch.
// The collector path is empty until the operator picks the executable;
// diagnostics flag it until then.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		CollectorPath: "",
		OutputDir:     filepath.Join(homeDir, "Documents", "Recolecciones"),
		PlatformURL:   "",
	}
}

// ApplyEnvOverrides layers process environment values over stored
// settings. Values typically arrive via a .env file loaded at startup.
func ApplyEnvOverrides(settings domain.Settings) domain.Settings {
	if v := strings.TrimSpace(os.Getenv(EnvCollectorPath)); v != "" {
		settings.CollectorPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvOutputDir)); v != "" {
		settings.OutputDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPlatformURL)); v != "" {
		settings.PlatformURL = v
	}
	return settings
}

// CollectorEnv builds the extra environment passed to the collector
// process. Credentials come from the process environment only and are
// never persisted with settings.
func CollectorEnv(settings domain.Settings) []string {
	var env []string
	if settings.PlatformURL != "" {
		env = append(env, EnvPlatformURL+"="+settings.PlatformURL)
	}
	for _, key := range []string{EnvPlatformUser, EnvPlatformPass} {
		if v := os.Getenv(key); v != "" {
			env = append(env, key+"="+v)
		}
	}
	return env
}
