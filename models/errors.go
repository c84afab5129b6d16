package models

import (
	"errors"
	"fmt"
)

var (
	// ErrRootUnreadable is fatal for a scan: the root does not exist, is not
	// a directory, or cannot be listed.
	ErrRootUnreadable = errors.New("root unreadable")

	// ErrIndexUnavailable is returned by searches against a root that has
	// neither an active index nor a usable cache record.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrCancelled reports a scan that was stopped before completion. It is
	// not a failure and no result accompanies it.
	ErrCancelled = errors.New("scan cancelled")
)

// RootError carries the root path alongside ErrRootUnreadable.
type RootError struct {
	Path string
	Err  error
}

func (e *RootError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Path, ErrRootUnreadable)
	}
	return fmt.Sprintf("%s: %v: %v", e.Path, ErrRootUnreadable, e.Err)
}

func (e *RootError) Is(target error) bool {
	return target == ErrRootUnreadable
}

func (e *RootError) Unwrap() error {
	return e.Err
}

// IndexError carries the root whose index was requested.
type IndexError struct {
	Root string
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s: %v", e.Root, ErrIndexUnavailable)
}

func (e *IndexError) Unwrap() error {
	return ErrIndexUnavailable
}
