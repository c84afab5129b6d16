package models

import (
	"time"
)

// FileKey identifies the storage object behind a path. Hardlinked paths
// share the same key.
type FileKey struct {
	Dev uint64 `json:"dev"`
	Ino uint64 `json:"ino"`
}

type FileEntry struct {
	Path    string  `json:"path"`
	Size    int64   `json:"size"`
	FileKey FileKey `json:"file_key"`
}

type ScanProgress struct {
	FilesCount  int64  `json:"files_count"`
	CurrentPath string `json:"current_path,omitempty"`
	Status      string `json:"status,omitempty"`
}

// ScanResult is the unit of persistence and of index construction.
// Files are kept in traversal order. FolderSizes has an entry for every
// visited directory, the root and empty directories included.
type ScanResult struct {
	Root        string           `json:"root"`
	Files       []FileEntry      `json:"files"`
	FolderSizes map[string]int64 `json:"folder_sizes"`
}

// TotalSize is the apparent size of the tree, hardlinks counted per path.
func (r *ScanResult) TotalSize() int64 {
	if size, ok := r.FolderSizes[r.Root]; ok {
		return size
	}
	var total int64
	for _, f := range r.Files {
		total += f.Size
	}
	return total
}

type CacheRecord struct {
	Result     *ScanResult `json:"result"`
	CapturedAt time.Time   `json:"captured_at"`
	CacheKey   string      `json:"cache_key"`
}

type SearchQuery struct {
	Root         string   `json:"root"`
	NameFragment string   `json:"query"`
	Extensions   []string `json:"extensions,omitempty"`
	Limit        int      `json:"limit,omitempty"`
}

// FolderSize is one row of a top-folders listing.
type FolderSize struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Summary is the consumer-side view of a scan: apparent and unique totals
// plus the largest folders and files.
type Summary struct {
	Root         string       `json:"root"`
	FileCount    int          `json:"file_count"`
	FolderCount  int          `json:"folder_count"`
	TotalSize    int64        `json:"total_size"`
	UniqueFiles  int          `json:"unique_files"`
	UniqueSize   int64        `json:"unique_size"`
	TopFolders   []FolderSize `json:"top_folders"`
	LargestFiles []FileEntry  `json:"largest_files"`
	CapturedAt   *time.Time   `json:"captured_at,omitempty"`
	HumanTotal   string       `json:"human_total"`
	HumanUnique  string       `json:"human_unique"`
}
