package config

import (
	"os"
	"path/filepath"
)

// UserConfigDir returns ~/.agentd, creating it if necessary.
func UserConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(homeDir, ".agentd")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// DefaultPath returns the default config document path, ~/.agentd/config.yaml.
func DefaultPath() string {
	dir, err := UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "config.yaml")
}
