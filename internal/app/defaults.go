package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// GetDefaults returns application default paths, checking environment variables first.
// A .env file in the working directory is loaded before the environment is read.
// Environment variables:
//   - TIKTOKDL_CONFIG_PATH: config file location (default: ~/.config/tiktok-dl.toml)
//   - TIKTOKDL_HOME: base directory for tiktok-dl data (default: ~/.local/share/tiktok-dl)
func GetDefaults() (map[string]string, error) {
	// Explicit environment always wins because godotenv never overrides
	// variables that are already set. A missing .env file is fine.
	_ = godotenv.Load()

	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking TIKTOKDL_CONFIG_PATH env var first,
// then falling back to the default ~/.config/tiktok-dl.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("TIKTOKDL_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "tiktok-dl.toml"), nil
}

// getBaseDir returns the base directory for tiktok-dl data, checking TIKTOKDL_HOME
// env var first, then falling back to the XDG default ~/.local/share/tiktok-dl.
func getBaseDir() (string, error) {
	if path := os.Getenv("TIKTOKDL_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "tiktok-dl"), nil
}
