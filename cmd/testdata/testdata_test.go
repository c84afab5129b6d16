package testdata

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nrtkbb/disktree/dupes"
	"github.com/nrtkbb/disktree/scanner"
)

func TestGenerateIsScannable(t *testing.T) {
	out := filepath.Join(t.TempDir(), "tree")

	stats, err := Generate(out)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if stats.Dirs != len(dirs) {
		t.Errorf("Dirs = %d, want %d", stats.Dirs, len(dirs))
	}
	if stats.Files < 32 {
		t.Errorf("Files = %d, want at least 32", stats.Files)
	}

	entries, err := os.ReadDir(filepath.Join(out, "empty"))
	if err != nil || len(entries) != 0 {
		t.Errorf("empty dir has %d entries (err %v)", len(entries), err)
	}

	root, err := scanner.ResolveRoot(out)
	if err != nil {
		t.Fatal(err)
	}
	result, report, err := (&scanner.Walker{}).Walk(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(result.Files) != stats.Files {
		t.Errorf("scanned %d files, generated %d", len(result.Files), stats.Files)
	}
	if got := result.TotalSize(); got != stats.Bytes {
		t.Errorf("TotalSize() = %d, want %d", got, stats.Bytes)
	}
	if report.Symlinks != int64(stats.Symlinks) {
		t.Errorf("Symlinks = %d, want %d", report.Symlinks, stats.Symlinks)
	}
	if got := len(dupes.Hardlinks(result.Files)); got != stats.Hardlinks {
		t.Errorf("hardlink sets = %d, want %d", got, stats.Hardlinks)
	}
}
