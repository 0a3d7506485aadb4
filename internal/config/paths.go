// Package config provides configuration management for mongohaul.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// LogDirectory returns the directory for mongohaul log files. The TUI routes
// its log output here so the alternate screen stays clean.
//
// Locations:
//   - Windows: %LOCALAPPDATA%\mongohaul\logs
//   - Unix: ~/.config/mongohaul/logs
func LogDirectory() string {
	if runtime.GOOS == "windows" {
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), "mongohaul-logs")
			}
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, "mongohaul", "logs")
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "mongohaul-logs")
		}
		return filepath.Join(homeDir, ".config", "mongohaul", "logs")
	}
	return filepath.Join(configDir, "mongohaul", "logs")
}

// EnsureLogDirectory creates the log directory if it doesn't exist.
func EnsureLogDirectory() error {
	return os.MkdirAll(LogDirectory(), 0700)
}
