package db

import (
	"errors"
	"fmt"
)

var (
	// ErrCacheMiss means no record exists for the root.
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheCorrupt means a record exists but cannot be used: it does not
	// parse, is at an unknown schema version, or is internally inconsistent.
	ErrCacheCorrupt = errors.New("cache record corrupt")
)

type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Path, ErrCacheCorrupt, e.Err)
}

func (e *CorruptError) Is(target error) bool {
	return target == ErrCacheCorrupt
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}
