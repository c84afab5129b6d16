//go:build !unix && !windows

package scanner

import (
	"io/fs"
	"os"
)

// statEntry has no stable file identity on this platform. Size and type are
// still reported so the caller can describe the skipped entry.
func statEntry(path string) (entryStat, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return entryStat{}, err
	}

	es := entryStat{size: fi.Size()}
	switch mode := fi.Mode(); {
	case mode.IsRegular():
		es.kind = kindRegular
	case mode.IsDir():
		es.kind = kindDir
	case mode&fs.ModeSymlink != 0:
		es.kind = kindSymlink
	default:
		es.kind = kindOther
	}
	return es, &fs.PathError{Op: "lstat", Path: path, Err: ErrIdentityUnavailable}
}
