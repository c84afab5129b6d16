package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/nrtkbb/disktree/db"
	"github.com/nrtkbb/disktree/models"
	"github.com/nrtkbb/disktree/testutil"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestEngine(t *testing.T, dir string) *Engine {
	t.Helper()
	store, err := db.OpenStore(dir, quiet)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	e := New(store, WithLogger(quiet), WithWorkers(4))
	t.Cleanup(func() { e.Close() })
	return e
}

func basenames(entries []models.FileEntry) []string {
	out := make([]string, len(entries))
	for i, f := range entries {
		out[i] = filepath.Base(f.Path)
	}
	sort.Strings(out)
	return out
}

func TestScanDirectoryEndToEnd(t *testing.T) {
	tr := testutil.NewTree(t)
	tr.Sample()
	e := newTestEngine(t, t.TempDir())
	ctx := context.Background()

	var events int
	result, err := e.ScanDirectory(ctx, tr.Root, func(models.ScanProgress) { events++ })
	if err != nil {
		t.Fatalf("ScanDirectory() error = %v", err)
	}
	if events == 0 {
		t.Error("no progress events delivered")
	}

	want := tr.SampleResult()
	if !reflect.DeepEqual(result.FolderSizes, want.FolderSizes) {
		t.Errorf("FolderSizes = %v, want %v", result.FolderSizes, want.FolderSizes)
	}
	if got := result.TotalSize(); got != 375 {
		t.Errorf("TotalSize() = %d, want 375", got)
	}

	logs, err := e.FindFiles(ctx, tr.Root, "", "log")
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}
	if got, want := basenames(logs), []string{"D.LOG", "c.log"}; !reflect.DeepEqual(got, want) {
		t.Errorf("FindFiles(ext=log) = %v, want %v", got, want)
	}

	all, err := e.FindFiles(ctx, tr.Root, "", "")
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}
	if len(all) != 4 {
		t.Errorf("FindFiles(\"\") returned %d files, want 4", len(all))
	}

	roots, err := e.ListCachedRoots(ctx)
	if err != nil {
		t.Fatalf("ListCachedRoots() error = %v", err)
	}
	if !reflect.DeepEqual(roots, []string{tr.Root}) {
		t.Errorf("ListCachedRoots() = %v, want [%s]", roots, tr.Root)
	}
}

func TestStartScanUnreadableRoot(t *testing.T) {
	e := newTestEngine(t, t.TempDir())

	_, err := e.StartScan(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, models.ErrRootUnreadable) {
		t.Errorf("StartScan() error = %v, want ErrRootUnreadable", err)
	}
}

func TestLoadCachedScanAcrossEngines(t *testing.T) {
	tr := testutil.NewTree(t)
	tr.Sample()
	cacheDir := t.TempDir()
	ctx := context.Background()

	first := newTestEngine(t, cacheDir)
	scanned, err := first.ScanDirectory(ctx, tr.Root, nil)
	if err != nil {
		t.Fatalf("ScanDirectory() error = %v", err)
	}

	second := newTestEngine(t, cacheDir)
	loaded, ok := second.LoadCachedScan(ctx, tr.Root)
	if !ok {
		t.Fatal("LoadCachedScan() found nothing")
	}
	if !reflect.DeepEqual(testutil.SortedPaths(loaded), testutil.SortedPaths(scanned)) {
		t.Errorf("loaded files = %v, want %v", testutil.SortedPaths(loaded), testutil.SortedPaths(scanned))
	}
	if !reflect.DeepEqual(loaded.FolderSizes, scanned.FolderSizes) {
		t.Errorf("loaded folders = %v, want %v", loaded.FolderSizes, scanned.FolderSizes)
	}

	// A third engine finds files without an explicit load.
	third := newTestEngine(t, cacheDir)
	got, err := third.FindFiles(ctx, tr.Root, "b", "txt")
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}
	if names := basenames(got); !reflect.DeepEqual(names, []string{"b.txt"}) {
		t.Errorf("FindFiles(b, txt) = %v, want [b.txt]", names)
	}
}

func TestFindFilesWithoutIndex(t *testing.T) {
	e := newTestEngine(t, t.TempDir())

	_, err := e.FindFiles(context.Background(), t.TempDir(), "x", "")
	if !errors.Is(err, models.ErrIndexUnavailable) {
		t.Errorf("FindFiles() error = %v, want ErrIndexUnavailable", err)
	}
	if _, ok := e.LoadCachedScan(context.Background(), t.TempDir()); ok {
		t.Error("LoadCachedScan() reported a record for an unscanned root")
	}
}

func TestCancelledScanKeepsPriorCache(t *testing.T) {
	tr := testutil.NewTree(t)
	tr.Sample()
	cacheDir := t.TempDir()
	e := newTestEngine(t, cacheDir)

	if _, err := e.ScanDirectory(context.Background(), tr.Root, nil); err != nil {
		t.Fatalf("ScanDirectory() error = %v", err)
	}

	tr.File("new.txt", 1000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := e.ScanDirectory(ctx, tr.Root, nil)
	if !errors.Is(err, models.ErrCancelled) {
		t.Fatalf("ScanDirectory() error = %v, want ErrCancelled", err)
	}
	if result != nil {
		t.Errorf("cancelled scan returned a result")
	}

	// The in-memory index is untouched.
	files, err := e.FindFiles(context.Background(), tr.Root, "new", "")
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}
	if len(files) != 0 {
		t.Errorf("index contains files from the cancelled scan: %v", basenames(files))
	}

	// So is the cache.
	fresh := newTestEngine(t, cacheDir)
	cached, ok := fresh.LoadCachedScan(context.Background(), tr.Root)
	if !ok {
		t.Fatal("prior cache record is gone")
	}
	if got := cached.TotalSize(); got != 375 {
		t.Errorf("cached TotalSize() = %d, want 375", got)
	}
}

func TestCorruptCacheIsAbsent(t *testing.T) {
	tr := testutil.NewTree(t)
	tr.Sample()
	e := newTestEngine(t, t.TempDir())

	path, err := e.Store().PathFor(tr.Root)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte("not a database "), 512), 0644); err != nil {
		t.Fatal(err)
	}

	if _, ok := e.LoadCachedScan(context.Background(), tr.Root); ok {
		t.Error("LoadCachedScan() accepted a corrupt record")
	}
	_, err = e.FindFiles(context.Background(), tr.Root, "", "")
	if !errors.Is(err, models.ErrIndexUnavailable) {
		t.Errorf("FindFiles() error = %v, want ErrIndexUnavailable", err)
	}

	// A new scan replaces the corrupt record.
	if _, err := e.ScanDirectory(context.Background(), tr.Root, nil); err != nil {
		t.Fatalf("ScanDirectory() error = %v", err)
	}
	fresh := newTestEngine(t, e.Store().Dir())
	if _, ok := fresh.LoadCachedScan(context.Background(), tr.Root); !ok {
		t.Error("record was not rewritten by the new scan")
	}
}

func TestRestartSupersedesInFlightScan(t *testing.T) {
	tr := testutil.NewTree(t)
	for i := 0; i < 40; i++ {
		for j := 0; j < 25; j++ {
			tr.File(fmt.Sprintf("d%02d/f%02d.bin", i, j), 10)
		}
	}
	e := newTestEngine(t, t.TempDir())
	ctx := context.Background()

	first, err := e.StartScan(ctx, tr.Root)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.StartScan(ctx, tr.Root)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := first.Wait(); err != nil && !errors.Is(err, models.ErrCancelled) {
		t.Errorf("superseded scan error = %v, want nil or ErrCancelled", err)
	}
	result, err := second.Wait()
	if err != nil {
		t.Fatalf("second scan error = %v", err)
	}
	if got := result.TotalSize(); got != 40*25*10 {
		t.Errorf("TotalSize() = %d, want %d", got, 40*25*10)
	}
	if second.Report() == nil {
		t.Error("completed scan has no report")
	}
	if e.Scanning(tr.Root) {
		t.Error("Scanning() still true after both scans finished")
	}
}

func TestSummary(t *testing.T) {
	tr := testutil.NewTree(t)
	tr.Sample()
	e := newTestEngine(t, t.TempDir())
	ctx := context.Background()

	if _, err := e.Summary(ctx, tr.Root, 0); !errors.Is(err, models.ErrIndexUnavailable) {
		t.Fatalf("Summary() before scan error = %v, want ErrIndexUnavailable", err)
	}
	if _, err := e.ScanDirectory(ctx, tr.Root, nil); err != nil {
		t.Fatal(err)
	}

	s, err := e.Summary(ctx, tr.Root, 2)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if s.TotalSize != 375 || s.UniqueSize != 375 || s.FileCount != 4 || s.FolderCount != 4 {
		t.Errorf("Summary() totals = %+v", s)
	}
	wantFolders := []models.FolderSize{{Path: tr.Path("sub"), Size: 275}, {Path: tr.Path("sub/deep"), Size: 25}}
	if !reflect.DeepEqual(s.TopFolders, wantFolders) {
		t.Errorf("TopFolders = %v, want %v", s.TopFolders, wantFolders)
	}
	if len(s.LargestFiles) != 2 || s.LargestFiles[0].Size != 200 || s.LargestFiles[1].Size != 100 {
		t.Errorf("LargestFiles = %v", s.LargestFiles)
	}
	if s.HumanTotal != "375 B" {
		t.Errorf("HumanTotal = %q, want %q", s.HumanTotal, "375 B")
	}
	if s.CapturedAt == nil || s.CapturedAt.IsZero() {
		t.Error("CapturedAt not set")
	}
}

func TestDuplicatesReportsHardlinks(t *testing.T) {
	tr := testutil.NewTree(t)
	tr.File("a.bin", 300)
	tr.Hardlink("a.bin", "sub/a-link.bin")
	tr.File("b.bin", 10)
	e := newTestEngine(t, t.TempDir())
	ctx := context.Background()

	if _, err := e.ScanDirectory(ctx, tr.Root, nil); err != nil {
		t.Fatal(err)
	}

	report, err := e.Duplicates(ctx, tr.Root)
	if err != nil {
		t.Fatalf("Duplicates() error = %v", err)
	}
	if len(report.Hardlinks) != 1 || len(report.Hardlinks[0].Entries) != 2 {
		t.Fatalf("Hardlinks = %+v, want one set of two paths", report.Hardlinks)
	}
	if len(report.Content) != 0 {
		t.Errorf("Content = %v, want empty with the default grouper", report.Content)
	}

	s, err := e.Summary(ctx, tr.Root, 0)
	if err != nil {
		t.Fatal(err)
	}
	if s.TotalSize != 610 || s.UniqueSize != 310 || s.UniqueFiles != 2 {
		t.Errorf("Summary() total=%d unique=%d files=%d, want 610 310 2", s.TotalSize, s.UniqueSize, s.UniqueFiles)
	}
}

func TestForget(t *testing.T) {
	tr := testutil.NewTree(t)
	tr.Sample()
	e := newTestEngine(t, t.TempDir())
	ctx := context.Background()

	if _, err := e.ScanDirectory(ctx, tr.Root, nil); err != nil {
		t.Fatal(err)
	}
	if err := e.Forget(ctx, tr.Root); err != nil {
		t.Fatalf("Forget() error = %v", err)
	}
	if _, err := e.FindFiles(ctx, tr.Root, "", ""); !errors.Is(err, models.ErrIndexUnavailable) {
		t.Errorf("FindFiles() after Forget error = %v, want ErrIndexUnavailable", err)
	}
	roots, err := e.ListCachedRoots(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(roots) != 0 {
		t.Errorf("ListCachedRoots() = %v, want none", roots)
	}
}

func TestStartScanAfterClose(t *testing.T) {
	tr := testutil.NewTree(t)
	e := newTestEngine(t, t.TempDir())
	e.Close()

	if _, err := e.StartScan(context.Background(), tr.Root); !errors.Is(err, ErrEngineClosed) {
		t.Errorf("StartScan() error = %v, want ErrEngineClosed", err)
	}
}

// cancelOnMessage is a slog handler that calls cancel once a record with
// the given message is logged.
type cancelOnMessage struct {
	message string

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (h *cancelOnMessage) arm(cancel context.CancelFunc) {
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()
}

func (h *cancelOnMessage) Enabled(context.Context, slog.Level) bool { return true }

func (h *cancelOnMessage) Handle(_ context.Context, r slog.Record) error {
	if r.Message != h.message {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
	}
	return nil
}

func (h *cancelOnMessage) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *cancelOnMessage) WithGroup(string) slog.Handler      { return h }

func TestCancelAfterSaveCompletesScan(t *testing.T) {
	tr := testutil.NewTree(t)
	tr.Sample()
	cacheDir := t.TempDir()

	hook := &cancelOnMessage{message: "cache record saved"}
	store, err := db.OpenStore(cacheDir, slog.New(hook))
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	e := New(store, WithLogger(quiet), WithWorkers(4))
	t.Cleanup(func() { e.Close() })

	if _, err := e.ScanDirectory(context.Background(), tr.Root, nil); err != nil {
		t.Fatalf("ScanDirectory() error = %v", err)
	}

	tr.File("late.txt", 1000)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hook.arm(cancel)

	result, err := e.ScanDirectory(ctx, tr.Root, nil)
	if err != nil {
		t.Fatalf("ScanDirectory() error = %v, want the saved scan", err)
	}
	if ctx.Err() == nil {
		t.Fatal("context was not cancelled after the record was saved")
	}
	if got := result.TotalSize(); got != 1375 {
		t.Errorf("TotalSize() = %d, want 1375", got)
	}

	files, err := e.FindFiles(context.Background(), tr.Root, "late", "")
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}
	if got := basenames(files); !reflect.DeepEqual(got, []string{"late.txt"}) {
		t.Errorf("FindFiles() = %v, want [late.txt]", got)
	}

	// The index and the cache hold the same scan.
	fresh := newTestEngine(t, cacheDir)
	cached, ok := fresh.LoadCachedScan(context.Background(), tr.Root)
	if !ok {
		t.Fatal("saved record is missing")
	}
	if got := cached.TotalSize(); got != 1375 {
		t.Errorf("cached TotalSize() = %d, want 1375", got)
	}
}

func TestCancelMidScanKeepsPriorCache(t *testing.T) {
	tr := testutil.NewTree(t)
	tr.Sample()
	cacheDir := t.TempDir()
	e := newTestEngine(t, cacheDir)

	if _, err := e.ScanDirectory(context.Background(), tr.Root, nil); err != nil {
		t.Fatalf("ScanDirectory() error = %v", err)
	}

	for d := 0; d < 50; d++ {
		for f := 0; f < 100; f++ {
			tr.File(fmt.Sprintf("bulk/d%02d/extra%03d.bin", d, f), 1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var events int
	result, err := e.ScanDirectory(ctx, tr.Root, func(models.ScanProgress) {
		events++
		cancel()
	})
	if err == nil {
		t.Skip("scan finished before the cancellation reached it")
	}
	if !errors.Is(err, models.ErrCancelled) {
		t.Fatalf("ScanDirectory() error = %v, want ErrCancelled", err)
	}
	if events == 0 {
		t.Error("cancelled without a progress event")
	}
	if result != nil {
		t.Errorf("cancelled scan returned a result")
	}

	files, err := e.FindFiles(context.Background(), tr.Root, "extra", "")
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}
	if len(files) != 0 {
		t.Errorf("index contains %d files from the cancelled scan", len(files))
	}

	fresh := newTestEngine(t, cacheDir)
	cached, ok := fresh.LoadCachedScan(context.Background(), tr.Root)
	if !ok {
		t.Fatal("prior cache record is gone")
	}
	if got := cached.TotalSize(); got != 375 {
		t.Errorf("cached TotalSize() = %d, want 375", got)
	}
}

func TestSharedLoadOutlivesCancelledCaller(t *testing.T) {
	tr := testutil.NewTree(t)
	tr.Sample()
	cacheDir := t.TempDir()

	if _, err := newTestEngine(t, cacheDir).ScanDirectory(context.Background(), tr.Root, nil); err != nil {
		t.Fatalf("ScanDirectory() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fresh := newTestEngine(t, cacheDir)
	files, err := fresh.FindFiles(ctx, tr.Root, "", "log")
	if err != nil {
		t.Fatalf("FindFiles() with a cancelled context error = %v", err)
	}
	if got := basenames(files); !reflect.DeepEqual(got, []string{"D.LOG", "c.log"}) {
		t.Errorf("FindFiles() = %v, want [D.LOG c.log]", got)
	}
}
