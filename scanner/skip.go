package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
)

// ErrIdentityUnavailable is reported for entries whose filesystem exposes no
// stable (device, inode) pair.
var ErrIdentityUnavailable = errors.New("file identity unavailable")

var errUnsupportedType = errors.New("unsupported entry type")

// SkipReason categorizes why an entry was left out of a scan.
type SkipReason int

const (
	SkipPermissionDenied SkipReason = iota
	SkipVanished
	SkipUnsupportedType
	SkipIdentityUnavailable
	SkipIOError
)

func (r SkipReason) String() string {
	switch r {
	case SkipPermissionDenied:
		return "permission-denied"
	case SkipVanished:
		return "vanished"
	case SkipUnsupportedType:
		return "unsupported-type"
	case SkipIdentityUnavailable:
		return "identity-unavailable"
	case SkipIOError:
		return "io-error"
	default:
		return "unknown"
	}
}

// EntrySkipped is a recovered, per-entry walk error.
type EntrySkipped struct {
	Path   string
	Reason SkipReason
	Err    error
}

func (e *EntrySkipped) Error() string {
	return fmt.Sprintf("%s: skipped (%s): %v", e.Path, e.Reason, e.Err)
}

func (e *EntrySkipped) Unwrap() error {
	return e.Err
}

// ClassifySkip wraps err into an EntrySkipped with the matching reason.
func ClassifySkip(path string, err error) *EntrySkipped {
	if err == nil {
		return nil
	}

	skip := &EntrySkipped{Path: path, Err: err, Reason: SkipIOError}

	switch {
	case errors.Is(err, ErrIdentityUnavailable):
		skip.Reason = SkipIdentityUnavailable
	case errors.Is(err, errUnsupportedType):
		skip.Reason = SkipUnsupportedType
	case os.IsNotExist(err) || errors.Is(err, fs.ErrNotExist):
		skip.Reason = SkipVanished
	case os.IsPermission(err) || errors.Is(err, fs.ErrPermission):
		skip.Reason = SkipPermissionDenied
	default:
		// A path component replaced by a file mid-scan.
		var errno syscall.Errno
		if errors.As(err, &errno) && errno == syscall.ENOTDIR {
			skip.Reason = SkipVanished
		}
	}
	return skip
}

func unsupportedType(path string, mode fs.FileMode) error {
	return &fs.PathError{Op: "walk", Path: path, Err: fmt.Errorf("%w: %s", errUnsupportedType, mode.Type())}
}
