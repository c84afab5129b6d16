package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nrtkbb/disktree/models"
)

const (
	tempPattern  = "*.tmp"
	staleTempAge = time.Hour
	ctxCheckRows = 1024
)

// RecordInfo describes a cache file without loading its rows.
type RecordInfo struct {
	Root        string
	CacheKey    string
	CapturedAt  time.Time
	FileCount   int
	FolderCount int
	TotalSize   int64
	Path        string
}

// Store keeps one SQLite file per scanned root under a single directory.
//
// Writes go to a scratch file that is renamed over the canonical one, so a
// crash mid-write leaves the previous record intact. Writes for the same
// root are serialized; different roots proceed independently.
//
// The store never invalidates a record on its own. Callers get CapturedAt
// and decide whether a record is fresh enough.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time

	locks sync.Map // cache key -> *sync.Mutex
}

// OpenStore prepares dir and removes scratch files abandoned by earlier
// crashed writes.
func OpenStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	s := &Store{dir: dir, logger: logger, now: time.Now}
	s.sweepTemps()
	return s, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// PathFor returns the canonical cache file of root.
func (s *Store) PathFor(root string) (string, error) {
	_, key, err := KeyFor(root)
	if err != nil {
		return "", err
	}
	return s.pathForKey(key), nil
}

func (s *Store) pathForKey(key string) string {
	return filepath.Join(s.dir, key+fileExt)
}

func (s *Store) lock(key string) func() {
	v, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Save persists result, replacing any prior record for the same root.
func (s *Store) Save(ctx context.Context, result *models.ScanResult) (*models.CacheRecord, error) {
	_, key, err := KeyFor(result.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to derive cache key: %w", err)
	}

	unlock := s.lock(key)
	defer unlock()

	tmp, err := os.CreateTemp(s.dir, key+"-"+tempPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	capturedAt := s.now().UTC()
	if err := writeRecord(ctx, tmpPath, key, capturedAt, result); err != nil {
		return nil, err
	}
	if err := syncFile(tmpPath); err != nil {
		return nil, fmt.Errorf("failed to sync scratch file: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	final := s.pathForKey(key)
	if err := os.Rename(tmpPath, final); err != nil {
		return nil, fmt.Errorf("failed to replace cache record: %w", err)
	}
	committed = true
	syncDir(s.dir)

	s.logger.Debug("cache record saved",
		"root", result.Root,
		"key", key,
		"files", len(result.Files),
		"folders", len(result.FolderSizes),
	)
	return &models.CacheRecord{Result: result, CapturedAt: capturedAt, CacheKey: key}, nil
}

func writeRecord(ctx context.Context, path, key string, capturedAt time.Time, result *models.ScanResult) error {
	database, err := SetupDatabase(path)
	if err != nil {
		return err
	}
	defer database.Close()

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scan_meta (
			id, root, cache_key, captured_at, file_count, folder_count, total_size
		) VALUES (1, ?, ?, ?, ?, ?, ?)
	`, result.Root, key, capturedAt.UnixNano(), len(result.Files), len(result.FolderSizes), result.TotalSize())
	if err != nil {
		return fmt.Errorf("failed to insert scan metadata: %w", err)
	}

	fileStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO files (seq, path, size, dev, ino, name, type)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare file statement: %w", err)
	}
	defer fileStmt.Close()

	for i, f := range result.Files {
		if i%ctxCheckRows == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		name := filepath.Base(f.Path)
		// SQLite integers are signed; keys round-trip through the bit pattern.
		_, err := fileStmt.ExecContext(ctx,
			i,
			f.Path,
			f.Size,
			int64(f.FileKey.Dev),
			int64(f.FileKey.Ino),
			name,
			strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")),
		)
		if err != nil {
			return fmt.Errorf("failed to insert file %s: %w", f.Path, err)
		}
	}

	folderStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO folders (path, recursive_size, name) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare folder statement: %w", err)
	}
	defer folderStmt.Close()

	for path, size := range result.FolderSizes {
		if _, err := folderStmt.ExecContext(ctx, path, size, filepath.Base(path)); err != nil {
			return fmt.Errorf("failed to insert folder %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cache record: %w", err)
	}
	if err := database.Close(); err != nil {
		return fmt.Errorf("failed to close cache record: %w", err)
	}
	return nil
}

// Load returns the record for root. A missing record yields ErrCacheMiss;
// an unusable one yields ErrCacheCorrupt. Records at an older schema
// version are upgraded in place first.
func (s *Store) Load(ctx context.Context, root string) (*models.CacheRecord, error) {
	normalized, key, err := KeyFor(root)
	if err != nil {
		return nil, fmt.Errorf("failed to derive cache key: %w", err)
	}
	path := s.pathForKey(key)

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", normalized, ErrCacheMiss)
		}
		return nil, &CorruptError{Path: path, Err: err}
	}

	if err := s.upgrade(key, path); err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}

	database, err := OpenReadOnly(path)
	if err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	defer database.Close()

	record, err := readRecord(ctx, database)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &CorruptError{Path: path, Err: err}
	}

	stored, err := models.NormalizeRoot(record.Result.Root)
	if err != nil || stored != normalized {
		return nil, &CorruptError{Path: path, Err: fmt.Errorf("record is for %q, not %q", record.Result.Root, normalized)}
	}
	if record.CacheKey != key {
		return nil, &CorruptError{Path: path, Err: fmt.Errorf("record key %q, want %q", record.CacheKey, key)}
	}
	return record, nil
}

// upgrade migrates an older, clean record to SchemaVersion. The migration
// runs on a copy that replaces the record only once it is complete.
func (s *Store) upgrade(key, path string) error {
	version, err := cleanVersion(path)
	if err != nil || version == SchemaVersion {
		return err
	}

	unlock := s.lock(key)
	defer unlock()

	// A writer may have replaced the record while we waited.
	if version, err = cleanVersion(path); err != nil || version == SchemaVersion {
		return err
	}

	s.logger.Info("upgrading cache record", "path", path, "from", version, "to", SchemaVersion)

	tmp, err := os.CreateTemp(s.dir, key+"-"+tempPattern)
	if err != nil {
		return fmt.Errorf("failed to create scratch file: %w", err)
	}
	tmpPath := tmp.Name()

	replaced := false
	defer func() {
		if !replaced {
			os.Remove(tmpPath)
		}
	}()

	src, err := os.Open(path)
	if err != nil {
		tmp.Close()
		return err
	}
	_, err = io.Copy(tmp, src)
	src.Close()
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to copy cache record: %w", err)
	}

	if err := RunMigrations(tmpPath); err != nil {
		return err
	}
	if err := syncFile(tmpPath); err != nil {
		return fmt.Errorf("failed to sync scratch file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace cache record: %w", err)
	}
	replaced = true
	syncDir(s.dir)
	return nil
}

// cleanVersion returns the schema version of the record at path, failing
// for dirty or newer schemas.
func cleanVersion(path string) (uint, error) {
	database, err := OpenReadOnly(path)
	if err != nil {
		return 0, err
	}
	version, dirty, err := ReadSchemaVersion(database)
	database.Close()
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	switch {
	case dirty:
		return 0, fmt.Errorf("schema version %d is dirty", version)
	case version > SchemaVersion:
		return 0, fmt.Errorf("schema version %d is newer than %d", version, SchemaVersion)
	}
	return version, nil
}

func readRecord(ctx context.Context, database *sql.DB) (*models.CacheRecord, error) {
	version, dirty, err := ReadSchemaVersion(database)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty || version != SchemaVersion {
		return nil, fmt.Errorf("schema version %d (dirty=%t), want %d", version, dirty, SchemaVersion)
	}

	info, err := readMeta(ctx, database)
	if err != nil {
		return nil, err
	}

	files := make([]models.FileEntry, 0, info.FileCount)
	rows, err := database.QueryContext(ctx, `SELECT path, size, dev, ino FROM files ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	for rows.Next() {
		var f models.FileEntry
		var dev, ino int64
		if err := rows.Scan(&f.Path, &f.Size, &dev, &ino); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		f.FileKey = models.FileKey{Dev: uint64(dev), Ino: uint64(ino)}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read files: %w", err)
	}
	rows.Close()

	folders := make(map[string]int64, info.FolderCount)
	rows, err = database.QueryContext(ctx, `SELECT path, recursive_size FROM folders`)
	if err != nil {
		return nil, fmt.Errorf("failed to query folders: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var path string
		var size int64
		if err := rows.Scan(&path, &size); err != nil {
			return nil, fmt.Errorf("failed to scan folder row: %w", err)
		}
		folders[path] = size
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read folders: %w", err)
	}

	if len(files) != info.FileCount || len(folders) != info.FolderCount {
		return nil, fmt.Errorf("record holds %d files and %d folders, metadata says %d and %d",
			len(files), len(folders), info.FileCount, info.FolderCount)
	}

	return &models.CacheRecord{
		Result: &models.ScanResult{
			Root:        info.Root,
			Files:       files,
			FolderSizes: folders,
		},
		CapturedAt: info.CapturedAt,
		CacheKey:   info.CacheKey,
	}, nil
}

func readMeta(ctx context.Context, database *sql.DB) (*RecordInfo, error) {
	var info RecordInfo
	var captured int64
	err := database.QueryRowContext(ctx, `
		SELECT root, cache_key, captured_at, file_count, folder_count, total_size
		FROM scan_meta
		WHERE id = 1
	`).Scan(&info.Root, &info.CacheKey, &captured, &info.FileCount, &info.FolderCount, &info.TotalSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read scan metadata: %w", err)
	}
	info.CapturedAt = time.Unix(0, captured).UTC()
	return &info, nil
}

// ListRecords describes every usable record, most recent first. Files that
// cannot be read are skipped.
func (s *Store) ListRecords(ctx context.Context) ([]RecordInfo, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*"+fileExt))
	if err != nil {
		return nil, fmt.Errorf("failed to list cache directory: %w", err)
	}

	records := make([]RecordInfo, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := s.describe(ctx, path)
		if err != nil {
			s.logger.Warn("skipping unreadable cache record", "path", path, "error", err)
			continue
		}
		records = append(records, *info)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CapturedAt.After(records[j].CapturedAt)
	})
	return records, nil
}

func (s *Store) describe(ctx context.Context, path string) (*RecordInfo, error) {
	database, err := OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer database.Close()

	version, dirty, err := ReadSchemaVersion(database)
	if err != nil {
		return nil, err
	}
	if dirty || version == 0 || version > SchemaVersion {
		return nil, fmt.Errorf("schema version %d (dirty=%t) unsupported", version, dirty)
	}

	info, err := readMeta(ctx, database)
	if err != nil {
		return nil, err
	}
	if want := strings.TrimSuffix(filepath.Base(path), fileExt); info.CacheKey != want {
		return nil, fmt.Errorf("record key %q stored under %q", info.CacheKey, want)
	}
	info.Path = path
	return info, nil
}

// ListRoots returns the roots that have a usable record, most recent first.
func (s *Store) ListRoots(ctx context.Context) ([]string, error) {
	records, err := s.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	roots := make([]string, 0, len(records))
	for _, r := range records {
		roots = append(roots, r.Root)
	}
	return roots, nil
}

// Delete removes the record for root. A missing record is not an error.
func (s *Store) Delete(ctx context.Context, root string) error {
	_, key, err := KeyFor(root)
	if err != nil {
		return fmt.Errorf("failed to derive cache key: %w", err)
	}

	unlock := s.lock(key)
	defer unlock()

	if err := os.Remove(s.pathForKey(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete cache record: %w", err)
	}
	return nil
}

// Migrate brings every record in the store to SchemaVersion and returns how
// many were upgraded. Records that cannot be upgraded are reported together
// after the rest have been processed.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*"+fileExt))
	if err != nil {
		return 0, fmt.Errorf("failed to list cache directory: %w", err)
	}

	upgraded := 0
	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return upgraded, err
		}
		key := strings.TrimSuffix(filepath.Base(path), fileExt)

		database, err := OpenReadOnly(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		needs := NeedsMigration(database)
		database.Close()
		if !needs {
			continue
		}

		if err := s.upgrade(key, path); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		upgraded++
	}
	return upgraded, errors.Join(errs...)
}

func (s *Store) sweepTemps() {
	paths, err := filepath.Glob(filepath.Join(s.dir, tempPattern))
	if err != nil {
		return
	}
	for _, path := range paths {
		fi, err := os.Stat(path)
		if err != nil || s.now().Sub(fi.ModTime()) < staleTempAge {
			continue
		}
		if err := os.Remove(path); err == nil {
			s.logger.Debug("removed abandoned scratch file", "path", path)
		}
	}
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// syncDir makes a rename durable. Not every platform can open a directory
// for syncing, so failures are ignored.
func syncDir(dir string) {
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	f.Sync()
	f.Close()
}
