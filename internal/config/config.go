package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for gv.
type Config struct {
	BaseDir     string            `toml:"base_dir"`
	API         APIConfig         `toml:"api"`
	Session     SessionConfig     `toml:"session"`
	Cache       CacheConfig       `toml:"cache"`
	Encryption  EncryptionConfig  `toml:"encryption"`
	Attachments AttachmentsConfig `toml:"attachments"`
	Log         LogConfig         `toml:"log"`
}

// APIConfig points the client at the backend.
type APIConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds,omitempty"` // defaults to 30
}

// SessionConfig represents where the bearer credential is kept between runs.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type SessionConfig struct {
	Type string `toml:"type"`           // "file" or "memory"
	Path string `toml:"path,omitempty"` // only used for type=file
}

// CacheConfig represents configuration for the offline snapshot cache.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type CacheConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// EncryptionConfig holds paths to the age key pair protecting the stored session.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// AttachmentsConfig restricts which local files may be uploaded.
type AttachmentsConfig struct {
	Allow   []string `toml:"allow"`
	MaxSize int64    `toml:"max_size"` // bytes; 0 means the default of 5MB
}

// LogConfig controls the application log.
type LogConfig struct {
	Dir    string `toml:"dir"`
	Format string `toml:"format"` // "text" (default) or "json"
	Level  string `toml:"level"`  // "debug", "info" (default), "warn", "error"
}

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(baseURL, baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		API: APIConfig{
			BaseURL:        baseURL,
			TimeoutSeconds: 30,
		},
		Session: SessionConfig{
			Type: "file",
			Path: filepath.Join(baseDir, "session.age"),
		},
		Cache: CacheConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "gv.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "gv.key"),
		},
		Attachments: AttachmentsConfig{
			Allow: []string{"*.jpg", "*.jpeg", "*.png", "*.pdf"},
		},
		Log: LogConfig{
			Dir:    filepath.Join(baseDir, "log"),
			Format: "text",
			Level:  "info",
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
