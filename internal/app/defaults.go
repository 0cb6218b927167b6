package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadEnv reads .env files from the working directory into the process
// environment. Variables already set win, and missing files are ignored.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env", ".env.local"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - GV_CONFIG_PATH: config file location (default: ~/.config/gv.toml)
//   - GV_HOME: base directory for gv data (default: ~/.local/share/gv)
//   - GV_API_URL: API base url (default: http://localhost:8000/api)
func GetDefaults() (map[string]string, error) {
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
		"api_url":     getAPIURL(),
	}, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv("GV_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "gv.toml"), nil
}

func getBaseDir() (string, error) {
	if path := os.Getenv("GV_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "gv"), nil
}

const defaultAPIURL = "http://localhost:8000/api"

func getAPIURL() string {
	if u := os.Getenv("GV_API_URL"); u != "" {
		return u
	}
	return defaultAPIURL
}
