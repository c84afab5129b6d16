//go:build windows

package scanner

import (
	"io/fs"

	"github.com/nrtkbb/disktree/models"
	"golang.org/x/sys/windows"
)

func statEntry(path string) (entryStat, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return entryStat{}, &fs.PathError{Op: "lstat", Path: path, Err: err}
	}

	// Backup semantics opens directories, reparse point opens the link itself.
	h, err := windows.CreateFile(
		p,
		0,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS|windows.FILE_FLAG_OPEN_REPARSE_POINT,
		0,
	)
	if err != nil {
		return entryStat{}, &fs.PathError{Op: "lstat", Path: path, Err: err}
	}
	defer windows.CloseHandle(h)

	var info windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(h, &info); err != nil {
		return entryStat{}, &fs.PathError{Op: "lstat", Path: path, Err: err}
	}

	es := entryStat{
		size: int64(info.FileSizeHigh)<<32 | int64(info.FileSizeLow),
		key: models.FileKey{
			Dev: uint64(info.VolumeSerialNumber),
			Ino: uint64(info.FileIndexHigh)<<32 | uint64(info.FileIndexLow),
		},
	}
	switch {
	case info.FileAttributes&windows.FILE_ATTRIBUTE_REPARSE_POINT != 0:
		es.kind = kindSymlink
	case info.FileAttributes&windows.FILE_ATTRIBUTE_DIRECTORY != 0:
		es.kind = kindDir
	case info.FileAttributes&windows.FILE_ATTRIBUTE_DEVICE != 0:
		es.kind = kindOther
	default:
		es.kind = kindRegular
	}

	if es.key.Ino == 0 {
		return es, &fs.PathError{Op: "lstat", Path: path, Err: ErrIdentityUnavailable}
	}
	return es, nil
}
