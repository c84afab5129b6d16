//go:build unix

package scanner

import (
	"io/fs"

	"github.com/nrtkbb/disktree/models"
	"golang.org/x/sys/unix"
)

func statEntry(path string) (entryStat, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return entryStat{}, &fs.PathError{Op: "lstat", Path: path, Err: err}
	}

	es := entryStat{
		size: st.Size,
		key: models.FileKey{
			Dev: uint64(st.Dev),
			Ino: uint64(st.Ino),
		},
	}
	switch uint32(st.Mode) & unix.S_IFMT {
	case unix.S_IFREG:
		es.kind = kindRegular
	case unix.S_IFDIR:
		es.kind = kindDir
	case unix.S_IFLNK:
		es.kind = kindSymlink
	default:
		es.kind = kindOther
	}

	// Some FUSE and network filesystems report no inode at all.
	if es.key.Ino == 0 {
		return es, &fs.PathError{Op: "lstat", Path: path, Err: ErrIdentityUnavailable}
	}
	return es, nil
}
