// Package dupes holds the duplicate-grouping extension point.
//
// Paths that share a FileKey are the same storage object and need no
// content comparison. A content Grouper only has to hash one representative
// per identity and then fan the result out to every path in that identity.
package dupes

import (
	"context"
	"sort"

	"github.com/nrtkbb/disktree/models"
)

// Groups maps a content hash to the entries that share it.
type Groups map[string][]models.FileEntry

// Grouper groups files by content.
type Grouper interface {
	Group(ctx context.Context, files []models.FileEntry) (Groups, error)
}

// NopGrouper is the default Grouper. It never groups anything.
type NopGrouper struct{}

func (NopGrouper) Group(context.Context, []models.FileEntry) (Groups, error) {
	return Groups{}, nil
}

// IdentitySet is every path that refers to one storage object.
type IdentitySet struct {
	Key     models.FileKey     `json:"file_key"`
	Size    int64              `json:"size"`
	Entries []models.FileEntry `json:"entries"`
}

// ByIdentity groups files by FileKey, in order of first appearance.
func ByIdentity(files []models.FileEntry) []IdentitySet {
	index := make(map[models.FileKey]int, len(files))
	sets := make([]IdentitySet, 0, len(files))
	for _, f := range files {
		i, ok := index[f.FileKey]
		if !ok {
			i = len(sets)
			index[f.FileKey] = i
			sets = append(sets, IdentitySet{Key: f.FileKey, Size: f.Size})
		}
		sets[i].Entries = append(sets[i].Entries, f)
	}
	return sets
}

// Hardlinks returns the identity sets reachable through more than one path,
// largest first.
func Hardlinks(files []models.FileEntry) []IdentitySet {
	var linked []IdentitySet
	for _, s := range ByIdentity(files) {
		if len(s.Entries) > 1 {
			linked = append(linked, s)
		}
	}
	sort.SliceStable(linked, func(i, j int) bool {
		return linked[i].Size > linked[j].Size
	})
	if linked == nil {
		linked = []IdentitySet{}
	}
	return linked
}

// UniqueSize counts each storage object once, however many paths reach it.
func UniqueSize(files []models.FileEntry) (count int, size int64) {
	seen := make(map[models.FileKey]struct{}, len(files))
	for _, f := range files {
		if _, ok := seen[f.FileKey]; ok {
			continue
		}
		seen[f.FileKey] = struct{}{}
		count++
		size += f.Size
	}
	return count, size
}
