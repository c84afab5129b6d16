package scanner

import (
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

// Tree accumulates cumulative folder sizes while a walk is in progress.
// Contributions to the same directory are atomic adds, so no lock spans
// the whole tree.
type Tree struct {
	root  string
	sizes sync.Map // directory path -> *atomic.Int64
}

func NewTree(root string) *Tree {
	t := &Tree{root: filepath.Clean(root)}
	t.AddDir(t.root)
	return t
}

// AddDir registers a visited directory so it is reported even when it holds
// no files.
func (t *Tree) AddDir(path string) {
	t.counter(path)
}

// Record adds size to every ancestor of path up to and including the root.
// Paths outside the root are ignored.
func (t *Tree) Record(path string, size int64) {
	if !t.contains(path) || path == t.root {
		return
	}

	dir := filepath.Dir(path)
	for {
		t.counter(dir).Add(size)
		if dir == t.root {
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

// Sizes snapshots the running totals.
func (t *Tree) Sizes() map[string]int64 {
	out := make(map[string]int64)
	t.sizes.Range(func(k, v any) bool {
		out[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})
	return out
}

func (t *Tree) counter(path string) *atomic.Int64 {
	if v, ok := t.sizes.Load(path); ok {
		return v.(*atomic.Int64)
	}
	v, _ := t.sizes.LoadOrStore(path, new(atomic.Int64))
	return v.(*atomic.Int64)
}

func (t *Tree) contains(path string) bool {
	if path == t.root {
		return true
	}
	prefix := t.root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
