package search

import (
	"path/filepath"
	"sort"
	"unicode"

	"github.com/nrtkbb/disktree/models"
)

// Index is an immutable, query-ready snapshot of one scan. A new scan or
// cache load builds a new Index rather than updating an old one.
type Index struct {
	root    string
	entries []models.FileEntry
	names   [][]rune
	lower   [][]rune
	exts    []string
}

func NewIndex(result *models.ScanResult) *Index {
	ix := &Index{
		root:    result.Root,
		entries: make([]models.FileEntry, len(result.Files)),
		names:   make([][]rune, len(result.Files)),
		lower:   make([][]rune, len(result.Files)),
		exts:    make([]string, len(result.Files)),
	}
	copy(ix.entries, result.Files)

	for i, f := range result.Files {
		name := filepath.Base(f.Path)
		runes := []rune(name)
		lower := make([]rune, len(runes))
		for j, r := range runes {
			lower[j] = unicode.ToLower(r)
		}
		ix.names[i] = runes
		ix.lower[i] = lower
		ix.exts[i] = Extension(name)
	}
	return ix
}

func (ix *Index) Root() string {
	return ix.root
}

func (ix *Index) Len() int {
	return len(ix.entries)
}

// Files returns the indexed entries in scan order.
func (ix *Index) Files() []models.FileEntry {
	out := make([]models.FileEntry, len(ix.entries))
	copy(out, ix.entries)
	return out
}

type hit struct {
	idx   int
	score int
}

// Query returns entries whose extension is in extensions (any extension
// when empty) and whose file name fuzzily matches fragment. Results are
// ordered by descending score, ties kept in scan order. A positive limit
// caps the number of results.
func (ix *Index) Query(fragment string, extensions []string, limit int) []models.FileEntry {
	pattern := lowerRunes(fragment)

	var allowed map[string]bool
	if exts := NormalizeExtensions(extensions); len(exts) > 0 {
		allowed = make(map[string]bool, len(exts))
		for _, e := range exts {
			allowed[e] = true
		}
	}

	hits := make([]hit, 0, 64)
	for i := range ix.entries {
		if allowed != nil && !allowed[ix.exts[i]] {
			continue
		}
		score, ok := matchPrepared(pattern, ix.names[i], ix.lower[i])
		if !ok {
			continue
		}
		hits = append(hits, hit{idx: i, score: score})
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].score > hits[b].score
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]models.FileEntry, len(hits))
	for i, h := range hits {
		out[i] = ix.entries[h.idx]
	}
	return out
}

// Search runs q against the index. q.Root is not consulted.
func (ix *Index) Search(q models.SearchQuery) []models.FileEntry {
	return ix.Query(q.NameFragment, q.Extensions, q.Limit)
}
