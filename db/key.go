package db

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/nrtkbb/disktree/models"
)

const fileExt = ".db"

// Key derives the cache key of a normalized root path.
func Key(root string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(root))
}

// KeyFor normalizes root and derives its cache key.
func KeyFor(root string) (normalized, key string, err error) {
	normalized, err = models.NormalizeRoot(root)
	if err != nil {
		return "", "", err
	}
	return normalized, Key(normalized), nil
}
