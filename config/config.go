package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	CacheDir string       `yaml:"cache_dir"`
	Scan     ScanConfig   `yaml:"scan"`
	Server   ServerConfig `yaml:"server"`
	Log      LogConfig    `yaml:"log"`
	Trace    TraceConfig  `yaml:"trace"`
}

// ScanConfig tunes the directory walker and its progress stream
type ScanConfig struct {
	Workers          int           `yaml:"workers"` // 0 means one per CPU
	ProgressInterval time.Duration `yaml:"progress_interval"`
	ProgressBuffer   int           `yaml:"progress_buffer"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "text", "json"
}

type TraceConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load loads configuration from a file. Keys missing from the file keep
// their default values.
func Load(configPath string) (*Config, error) {
	config := GetDefault()

	// If config doesn't exist, return default config
	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.CacheDir, err = expandHome(config.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache_dir: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save saves configuration to a file
func Save(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir must be set")
	}
	if c.Scan.Workers < 0 {
		return fmt.Errorf("scan.workers must be >= 0")
	}
	if c.Scan.ProgressInterval < 0 {
		return fmt.Errorf("scan.progress_interval must be >= 0")
	}
	if c.Scan.ProgressBuffer < 0 {
		return fmt.Errorf("scan.progress_buffer must be >= 0")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must be set")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level '%s'", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format '%s'", c.Log.Format)
	}

	return nil
}

// GetConfigPath returns the default config path
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	configDir := filepath.Join(homeDir, ".config", "disktree")
	return filepath.Join(configDir, "config.yaml"), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~")), nil
}
