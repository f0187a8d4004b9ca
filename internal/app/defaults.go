package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults are the paths used when the CLI is given no explicit config.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - HAWK_CONFIG_PATH: config file location (default: ~/.config/hawk.toml)
//   - HAWK_HOME: base directory for hawk data (default: ~/.local/share/hawk)
func GetDefaults() (*Defaults, error) {
	configPath := os.Getenv("HAWK_CONFIG_PATH")
	baseDir := os.Getenv("HAWK_HOME")

	if configPath == "" || baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		if configPath == "" {
			configPath = filepath.Join(homeDir, ".config", "hawk.toml")
		}
		if baseDir == "" {
			baseDir = filepath.Join(homeDir, ".local", "share", "hawk")
		}
	}

	return &Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}
