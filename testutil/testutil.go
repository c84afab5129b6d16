// Package testutil provides directory-tree fixtures for disktree tests.
// Every fixture lives under t.TempDir() and is removed with the test.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/nrtkbb/disktree/models"
)

// Tree is a scratch directory tree rooted at a normalized path.
type Tree struct {
	T    *testing.T
	Root string
}

// NewTree creates an empty tree. Root is normalized the same way the scanner
// normalizes roots, so expected paths compare equal to scanned ones.
func NewTree(t *testing.T) *Tree {
	t.Helper()

	root, err := models.NormalizeRoot(t.TempDir())
	if err != nil {
		t.Fatalf("failed to normalize temp dir: %v", err)
	}
	return &Tree{T: t, Root: root}
}

// Path joins rel onto the tree root.
func (tr *Tree) Path(rel string) string {
	return filepath.Join(tr.Root, filepath.FromSlash(rel))
}

// File creates a file of exactly size bytes and returns its path.
func (tr *Tree) File(rel string, size int) string {
	tr.T.Helper()

	full := tr.Path(rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		tr.T.Fatalf("failed to create directory for %s: %v", full, err)
	}
	if err := os.WriteFile(full, make([]byte, size), 0644); err != nil {
		tr.T.Fatalf("failed to create file %s: %v", full, err)
	}
	return full
}

// Dir creates a directory and returns its path.
func (tr *Tree) Dir(rel string) string {
	tr.T.Helper()

	full := tr.Path(rel)
	if err := os.MkdirAll(full, 0755); err != nil {
		tr.T.Fatalf("failed to create directory %s: %v", full, err)
	}
	return full
}

// Hardlink links rel to an existing file. The test is skipped when the
// filesystem does not support hardlinks.
func (tr *Tree) Hardlink(existing, rel string) string {
	tr.T.Helper()

	full := tr.Path(rel)
	if err := os.Link(tr.Path(existing), full); err != nil {
		tr.T.Skipf("hardlinks not supported: %v", err)
	}
	return full
}

// Symlink creates a symbolic link at rel pointing to target. The test is
// skipped when symlinks cannot be created.
func (tr *Tree) Symlink(target, rel string) string {
	tr.T.Helper()

	full := tr.Path(rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		tr.T.Fatalf("failed to create directory for %s: %v", full, err)
	}
	if err := os.Symlink(target, full); err != nil {
		tr.T.Skipf("symlinks not supported: %v", err)
	}
	return full
}

// Unreadable removes all permissions from rel and restores them on cleanup.
// The test is skipped where permissions are not enforced.
func (tr *Tree) Unreadable(rel string) string {
	tr.T.Helper()

	if runtime.GOOS == "windows" {
		tr.T.Skip("permission bits are not enforced on windows")
	}
	if os.Geteuid() == 0 {
		tr.T.Skip("permission checks are bypassed when running as root")
	}

	full := tr.Path(rel)
	if err := os.Chmod(full, 0); err != nil {
		tr.T.Fatalf("failed to chmod %s: %v", full, err)
	}
	tr.T.Cleanup(func() { os.Chmod(full, 0755) })
	return full
}

// Sample builds the small tree used across packages:
//
//	a.txt            100 bytes
//	sub/b.txt        200 bytes
//	sub/c.log         50 bytes
//	sub/deep/D.LOG    25 bytes
//	empty/
func (tr *Tree) Sample() {
	tr.T.Helper()

	tr.File("a.txt", 100)
	tr.File("sub/b.txt", 200)
	tr.File("sub/c.log", 50)
	tr.File("sub/deep/D.LOG", 25)
	tr.Dir("empty")
}

// SampleResult is the ScanResult a walk over Sample must produce, with
// files in lexical order and zero file keys.
func (tr *Tree) SampleResult() *models.ScanResult {
	return &models.ScanResult{
		Root: tr.Root,
		Files: []models.FileEntry{
			{Path: tr.Path("a.txt"), Size: 100},
			{Path: tr.Path("sub/b.txt"), Size: 200},
			{Path: tr.Path("sub/c.log"), Size: 50},
			{Path: tr.Path("sub/deep/D.LOG"), Size: 25},
		},
		FolderSizes: map[string]int64{
			tr.Root:             375,
			tr.Path("sub"):      275,
			tr.Path("sub/deep"): 25,
			tr.Path("empty"):    0,
		},
	}
}

// SortedPaths returns the file paths of r in lexical order.
func SortedPaths(r *models.ScanResult) []string {
	paths := make([]string, 0, len(r.Files))
	for _, f := range r.Files {
		paths = append(paths, f.Path)
	}
	sort.Strings(paths)
	return paths
}

// CheckRollup verifies every folder size equals the files directly inside it
// plus the sizes of its direct subfolders.
func CheckRollup(t *testing.T, r *models.ScanResult) {
	t.Helper()

	want := make(map[string]int64, len(r.FolderSizes))
	for dir := range r.FolderSizes {
		want[dir] = 0
	}
	for _, f := range r.Files {
		want[filepath.Dir(f.Path)] += f.Size
	}
	for dir, size := range r.FolderSizes {
		if dir == r.Root {
			continue
		}
		parent := filepath.Dir(dir)
		if _, ok := r.FolderSizes[parent]; !ok {
			t.Errorf("folder %s has no parent entry", dir)
			continue
		}
		want[parent] += size
	}

	for dir, size := range r.FolderSizes {
		if want[dir] != size {
			t.Errorf("folder_sizes[%s] = %d, want %d", strings.TrimPrefix(dir, r.Root), size, want[dir])
		}
	}
}
