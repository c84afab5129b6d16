package models

import (
	"path/filepath"
)

// NormalizeRoot returns the canonical form of a root path: absolute, clean
// and with symlinks resolved when the path exists. Scan results, cache keys
// and indexes are all addressed by this form.
func NormalizeRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return filepath.Clean(abs), nil
}
