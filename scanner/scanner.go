package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/nrtkbb/disktree/models"
)

// DefaultMaxSkipSamples bounds how many skipped entries a Report keeps.
const DefaultMaxSkipSamples = 100

type entryKind int

const (
	kindRegular entryKind = iota
	kindDir
	kindSymlink
	kindOther
)

type entryStat struct {
	kind entryKind
	size int64
	key  models.FileKey
}

// Observer receives walk activity. Implementations must not block the
// calling worker.
type Observer interface {
	FileVisited(path string)
	EntrySkipped(path string)
}

type nopObserver struct{}

func (nopObserver) FileVisited(string)  {}
func (nopObserver) EntrySkipped(string) {}

// Report describes the non-fatal side of a finished walk.
type Report struct {
	Root         string
	Skipped      []*EntrySkipped
	SkippedCount int64
	Symlinks     int64
	Duration     time.Duration
}

// Walker traverses a root with a bounded pool of fastwalk workers.
// Symlinks are neither followed nor counted.
type Walker struct {
	Workers        int
	MaxSkipSamples int
	Logger         *slog.Logger
}

func (w *Walker) workers() int {
	if w.Workers > 0 {
		return w.Workers
	}
	return runtime.NumCPU()
}

func (w *Walker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

// ResolveRoot normalizes path and checks it is a listable directory.
func ResolveRoot(path string) (string, error) {
	if path == "" {
		return "", &models.RootError{Path: path, Err: errors.New("empty path")}
	}

	root, err := models.NormalizeRoot(path)
	if err != nil {
		return "", &models.RootError{Path: path, Err: err}
	}

	fi, err := os.Stat(root)
	if err != nil {
		return "", &models.RootError{Path: root, Err: err}
	}
	if !fi.IsDir() {
		return "", &models.RootError{Path: root, Err: errors.New("not a directory")}
	}

	f, err := os.Open(root)
	if err != nil {
		return "", &models.RootError{Path: root, Err: err}
	}
	defer f.Close()
	if _, err := f.Readdirnames(1); err != nil && err != io.EOF {
		return "", &models.RootError{Path: root, Err: err}
	}

	return root, nil
}

type walkState struct {
	mu    sync.Mutex
	files []models.FileEntry

	skipMu   sync.Mutex
	skipped  []*EntrySkipped
	skipCap  int
	skips    atomic.Int64
	symlinks atomic.Int64
}

func (s *walkState) add(entry models.FileEntry) {
	s.mu.Lock()
	s.files = append(s.files, entry)
	s.mu.Unlock()
}

func (s *walkState) skip(e *EntrySkipped) {
	s.skips.Add(1)
	s.skipMu.Lock()
	if len(s.skipped) < s.skipCap {
		s.skipped = append(s.skipped, e)
	}
	s.skipMu.Unlock()
}

// Walk scans root and returns its file inventory with cumulative folder
// sizes. A root that cannot be read fails with models.ErrRootUnreadable.
// Cancellation is observed at every entry and yields models.ErrCancelled
// with no result.
func (w *Walker) Walk(ctx context.Context, root string, obs Observer) (*models.ScanResult, *Report, error) {
	root, err := ResolveRoot(root)
	if err != nil {
		return nil, nil, err
	}
	if obs == nil {
		obs = nopObserver{}
	}
	if ctx.Err() != nil {
		return nil, nil, models.ErrCancelled
	}

	log := w.logger()
	start := time.Now()
	tree := NewTree(root)

	maxSkips := w.MaxSkipSamples
	if maxSkips <= 0 {
		maxSkips = DefaultMaxSkipSamples
	}
	state := &walkState{skipCap: maxSkips}

	recordSkip := func(path string, err error) {
		skip := ClassifySkip(path, err)
		state.skip(skip)
		obs.EntrySkipped(path)
		log.Debug("entry skipped", "path", path, "reason", skip.Reason.String(), "error", err)
	}

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return fs.SkipAll
		}

		// Second callback for a directory that could not be read. The
		// directory stays in the tree with whatever was counted so far.
		if err != nil {
			recordSkip(path, err)
			return nil
		}

		typ := d.Type()
		switch {
		case typ&fs.ModeSymlink != 0:
			state.symlinks.Add(1)
			return nil
		case d.IsDir():
			tree.AddDir(path)
			return nil
		case !typ.IsRegular():
			recordSkip(path, unsupportedType(path, typ))
			return nil
		}

		st, err := statEntry(path)
		if err != nil {
			recordSkip(path, err)
			return nil
		}
		if st.kind != kindRegular {
			// Replaced by something else between readdir and lstat.
			recordSkip(path, unsupportedType(path, typ))
			return nil
		}

		state.add(models.FileEntry{Path: path, Size: st.size, FileKey: st.key})
		tree.Record(path, st.size)
		obs.FileVisited(path)
		return nil
	}

	conf := fastwalk.Config{Follow: false, NumWorkers: w.workers()}
	err = fastwalk.Walk(&conf, root, walkFn)
	if ctx.Err() != nil {
		log.Info("scan cancelled", "root", root, "files", len(state.files))
		return nil, nil, models.ErrCancelled
	}
	if err != nil && !errors.Is(err, fs.SkipAll) {
		return nil, nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	files := state.files
	if files == nil {
		files = []models.FileEntry{}
	}

	result := &models.ScanResult{
		Root:        root,
		Files:       files,
		FolderSizes: tree.Sizes(),
	}
	report := &Report{
		Root:         root,
		Skipped:      state.skipped,
		SkippedCount: state.skips.Load(),
		Symlinks:     state.symlinks.Load(),
		Duration:     time.Since(start),
	}

	log.Info("scan completed",
		"root", root,
		"files", len(result.Files),
		"folders", len(result.FolderSizes),
		"skipped", report.SkippedCount,
		"duration", report.Duration,
	)
	return result, report, nil
}
