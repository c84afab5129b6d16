package app

import (
	"context"
	"errors"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/nrtkbb/disktree/db"
	"github.com/nrtkbb/disktree/dupes"
	"github.com/nrtkbb/disktree/models"
	"github.com/nrtkbb/disktree/search"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultTop = 10

// ListCachedRoots returns every root with a usable cache record, most
// recently captured first.
func (e *Engine) ListCachedRoots(ctx context.Context) ([]string, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.ListCachedRoots")
	defer span.End()

	roots, err := e.store.ListRoots(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("roots", len(roots)))
	return roots, nil
}

// LoadCachedScan returns the cached result for root and makes it the
// searchable index, unless a newer one is already installed. A missing,
// corrupt or unreadable record is reported as absent.
func (e *Engine) LoadCachedScan(ctx context.Context, root string) (*models.ScanResult, bool) {
	ctx, span := e.tracer.Start(ctx, "Engine.LoadCachedScan")
	defer span.End()
	span.SetAttributes(attribute.String("root", root))

	snap, err := e.loadRecord(ctx, root)
	if err != nil {
		span.SetAttributes(attribute.Bool("hit", false))
		return nil, false
	}
	span.SetAttributes(attribute.Bool("hit", true))
	return snap.result, true
}

// loadRecord reads root's record and installs it. Concurrent loads of the
// same root share one read.
func (e *Engine) loadRecord(ctx context.Context, root string) (*snapshot, error) {
	normalized, err := models.NormalizeRoot(root)
	if err != nil {
		e.logger.Warn("failed to normalize root", "root", root, "error", err)
		return nil, err
	}

	v, err, _ := e.loads.Do(normalized, func() (interface{}, error) {
		// Other callers wait on this load, so it outlives the caller
		// that started it.
		record, err := e.store.Load(context.WithoutCancel(ctx), normalized)
		if err != nil {
			return nil, err
		}
		snap := &snapshot{
			result:     record.Result,
			index:      search.NewIndex(record.Result),
			capturedAt: record.CapturedAt,
		}
		e.install(normalized, snap)
		return snap, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, db.ErrCacheMiss):
		case errors.Is(err, db.ErrCacheCorrupt):
			e.logger.Warn("ignoring unusable cache record", "root", normalized, "error", err)
		default:
			e.logger.Warn("failed to load cache record", "root", normalized, "error", err)
		}
		return nil, err
	}
	return v.(*snapshot), nil
}

// current returns root's installed snapshot, loading it from the cache when
// nothing is installed yet.
func (e *Engine) current(ctx context.Context, root string) (*snapshot, error) {
	normalized, err := models.NormalizeRoot(root)
	if err != nil {
		return nil, &models.IndexError{Root: root}
	}
	if snap := e.installed(normalized); snap != nil {
		return snap, nil
	}
	if snap, err := e.loadRecord(ctx, normalized); err == nil {
		return snap, nil
	}
	return nil, &models.IndexError{Root: normalized}
}

// FindFiles searches root's index for file names matching query, restricted
// to the comma separated extensions when any are given.
func (e *Engine) FindFiles(ctx context.Context, root, query, extensions string) ([]models.FileEntry, error) {
	return e.Search(ctx, models.SearchQuery{
		Root:         root,
		NameFragment: query,
		Extensions:   search.ParseExtensions(extensions),
	})
}

// Search runs q against the current index of q.Root. It fails with
// models.ErrIndexUnavailable when the root has neither an index nor a cache
// record.
func (e *Engine) Search(ctx context.Context, q models.SearchQuery) ([]models.FileEntry, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("root", q.Root),
		attribute.String("query", q.NameFragment),
		attribute.StringSlice("extensions", q.Extensions),
	)

	snap, err := e.current(ctx, q.Root)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	results := snap.index.Search(q)
	span.SetAttributes(attribute.Int("results", len(results)))
	return results, nil
}

// Summary describes root's current scan: apparent and unique totals, the
// top largest folders below the root and the top largest files.
func (e *Engine) Summary(ctx context.Context, root string, top int) (*models.Summary, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Summary")
	defer span.End()
	span.SetAttributes(attribute.String("root", root))

	snap, err := e.current(ctx, root)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if top <= 0 {
		top = DefaultTop
	}
	return summarize(snap, top), nil
}

func summarize(snap *snapshot, top int) *models.Summary {
	result := snap.result
	uniqueFiles, uniqueSize := dupes.UniqueSize(result.Files)
	total := result.TotalSize()

	folders := make([]models.FolderSize, 0, len(result.FolderSizes))
	for path, size := range result.FolderSizes {
		if path == result.Root {
			continue
		}
		folders = append(folders, models.FolderSize{Path: path, Size: size})
	}
	sort.Slice(folders, func(i, j int) bool {
		if folders[i].Size != folders[j].Size {
			return folders[i].Size > folders[j].Size
		}
		return folders[i].Path < folders[j].Path
	})
	if len(folders) > top {
		folders = folders[:top]
	}

	files := make([]models.FileEntry, len(result.Files))
	copy(files, result.Files)
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Size > files[j].Size
	})
	if len(files) > top {
		files = files[:top]
	}

	capturedAt := snap.capturedAt
	return &models.Summary{
		Root:         result.Root,
		FileCount:    len(result.Files),
		FolderCount:  len(result.FolderSizes),
		TotalSize:    total,
		UniqueFiles:  uniqueFiles,
		UniqueSize:   uniqueSize,
		TopFolders:   folders,
		LargestFiles: files,
		CapturedAt:   &capturedAt,
		HumanTotal:   humanize.IBytes(uint64(total)),
		HumanUnique:  humanize.IBytes(uint64(uniqueSize)),
	}
}

// DuplicateReport lists paths that share storage and, when a content
// grouper is configured, files with identical content.
type DuplicateReport struct {
	Root      string              `json:"root"`
	Hardlinks []dupes.IdentitySet `json:"hardlinks"`
	Content   dupes.Groups        `json:"content"`
}

func (e *Engine) Duplicates(ctx context.Context, root string) (*DuplicateReport, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Duplicates")
	defer span.End()
	span.SetAttributes(attribute.String("root", root))

	snap, err := e.current(ctx, root)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	groups, err := e.grouper.Group(ctx, snap.result.Files)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &DuplicateReport{
		Root:      snap.result.Root,
		Hardlinks: dupes.Hardlinks(snap.result.Files),
		Content:   groups,
	}, nil
}

// Forget drops root's cache record and its in-memory index. A scan in
// flight for root is not affected.
func (e *Engine) Forget(ctx context.Context, root string) error {
	ctx, span := e.tracer.Start(ctx, "Engine.Forget")
	defer span.End()
	span.SetAttributes(attribute.String("root", root))

	normalized, err := models.NormalizeRoot(root)
	if err != nil {
		return err
	}
	if err := e.store.Delete(ctx, normalized); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	e.indexes.Delete(normalized)
	e.logger.Info("forgot root", "root", normalized)
	return nil
}
