package config

import (
	"os"
	"path/filepath"
	"time"
)

// GetDefault returns the default configuration
func GetDefault() *Config {
	return &Config{
		CacheDir: DefaultCacheDir(),
		Scan: ScanConfig{
			Workers:          0,
			ProgressInterval: 100 * time.Millisecond,
			ProgressBuffer:   16,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultCacheDir is ~/.cache/disktree, or a directory under the system
// temp dir when there is no home directory.
func DefaultCacheDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "disktree")
	}
	return filepath.Join(homeDir, ".cache", "disktree")
}
