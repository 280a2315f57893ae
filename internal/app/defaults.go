package app

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	envConfigPath = "RENTCAT_CONFIG_PATH"
	envHome       = "RENTCAT_HOME"
)

// Defaults are the paths used when no flag overrides them.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - RENTCAT_CONFIG_PATH: config file location (default: ~/.config/rentcat.toml)
//   - RENTCAT_HOME: base directory for the catalog, backups and logs (default: ~/.local/share/rentcat)
func GetDefaults() (Defaults, error) {
	configPath, err := fromEnvOrHome(envConfigPath, ".config", "rentcat.toml")
	if err != nil {
		return Defaults{}, err
	}

	baseDir, err := fromEnvOrHome(envHome, ".local", "share", "rentcat")
	if err != nil {
		return Defaults{}, err
	}

	return Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}

// fromEnvOrHome returns the value of env, or the home directory joined with elem.
func fromEnvOrHome(env string, elem ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elem...)...), nil
}
