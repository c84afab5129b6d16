package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nrtkbb/disktree/db"
	"github.com/nrtkbb/disktree/dupes"
	"github.com/nrtkbb/disktree/models"
	"github.com/nrtkbb/disktree/progress"
	"github.com/nrtkbb/disktree/scanner"
	"github.com/nrtkbb/disktree/search"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var ErrEngineClosed = errors.New("engine closed")

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithWorkers bounds the number of concurrent directory readers per scan.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

func WithProgress(opts progress.Options) Option {
	return func(e *Engine) { e.progress = opts }
}

func WithGrouper(g dupes.Grouper) Option {
	return func(e *Engine) { e.grouper = g }
}

// snapshot is what a root's current index points at.
type snapshot struct {
	result     *models.ScanResult
	index      *search.Index
	capturedAt time.Time
}

// Engine owns everything a disk-usage session needs: the cache store, the
// scans in flight (one per root), and the current search index of every
// root that has been scanned or loaded.
type Engine struct {
	store    *db.Store
	logger   *slog.Logger
	tracer   trace.Tracer
	grouper  dupes.Grouper
	workers  int
	progress progress.Options

	mu     sync.Mutex
	scans  map[string]*Scan
	closed bool
	wg     sync.WaitGroup

	indexes sync.Map // root -> *atomic.Pointer[snapshot]
	loads   singleflight.Group
}

func New(store *db.Store, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		logger:  slog.Default(),
		tracer:  otel.Tracer("app/engine"),
		grouper: dupes.NopGrouper{},
		scans:   make(map[string]*Scan),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Store() *db.Store {
	return e.store
}

// StartScan begins scanning path in the background. An unreadable root
// fails immediately with models.ErrRootUnreadable. A scan already running
// for the same root is cancelled, and the new one starts once it has fully
// stopped.
func (e *Engine) StartScan(ctx context.Context, path string) (*Scan, error) {
	root, err := scanner.ResolveRoot(path)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	scanCtx, cancel := context.WithCancel(ctx)
	s := &Scan{
		root:     root,
		cancel:   cancel,
		reporter: progress.New(scanCtx, e.progress),
		done:     make(chan struct{}),
	}
	prev := e.scans[root]
	e.scans[root] = s
	e.wg.Add(1)
	e.mu.Unlock()

	if prev != nil {
		e.logger.Info("superseding in-flight scan", "root", root)
		prev.Cancel()
	}

	go e.run(scanCtx, s, prev)
	return s, nil
}

// ScanDirectory scans path and blocks until the result is ready, passing
// every progress event to onProgress.
func (e *Engine) ScanDirectory(ctx context.Context, path string, onProgress func(models.ScanProgress)) (*models.ScanResult, error) {
	s, err := e.StartScan(ctx, path)
	if err != nil {
		return nil, err
	}
	for p := range s.Progress() {
		if onProgress != nil {
			onProgress(p)
		}
	}
	return s.Wait()
}

func (e *Engine) run(ctx context.Context, s *Scan, prev *Scan) {
	defer e.wg.Done()
	defer close(s.done)
	defer s.cancel()

	if prev != nil {
		<-prev.done
	}

	ctx, span := e.tracer.Start(ctx, "Engine.Scan")
	defer span.End()
	span.SetAttributes(attribute.String("root", s.root))

	walker := &scanner.Walker{Workers: e.workers, Logger: e.logger}
	result, report, err := walker.Walk(ctx, s.root, s.reporter)

	capturedAt := time.Now().UTC()
	committed := false
	if err == nil && ctx.Err() == nil {
		s.reporter.SetPhase(progress.PhaseSaving)
		record, saveErr := e.store.Save(ctx, result)
		switch {
		case saveErr == nil:
			// A committed record completes the scan even if ctx is
			// cancelled from here on.
			capturedAt = record.CapturedAt
			committed = true
		case ctx.Err() == nil:
			// The scan is still good without a cache record.
			e.logger.Warn("failed to persist scan", "root", s.root, "error", saveErr)
			span.RecordError(saveErr)
		}
	}
	if err == nil && !committed && ctx.Err() != nil {
		err = models.ErrCancelled
	}

	if err == nil {
		s.reporter.SetPhase(progress.PhaseIndexing)
		e.install(s.root, &snapshot{
			result:     result,
			index:      search.NewIndex(result),
			capturedAt: capturedAt,
		})
		span.SetAttributes(
			attribute.Int("files", len(result.Files)),
			attribute.Int("folders", len(result.FolderSizes)),
			attribute.Int64("skipped", report.SkippedCount),
		)
	} else {
		result, report = nil, nil
		if !errors.Is(err, models.ErrCancelled) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}

	s.result, s.report, s.err = result, report, err
	s.reporter.Close()

	e.mu.Lock()
	if e.scans[s.root] == s {
		delete(e.scans, s.root)
	}
	e.mu.Unlock()
}

// Scanning reports whether a scan for root is in flight.
func (e *Engine) Scanning(root string) bool {
	normalized, err := models.NormalizeRoot(root)
	if err != nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.scans[normalized]
	return ok
}

func (e *Engine) slot(root string) *atomic.Pointer[snapshot] {
	if v, ok := e.indexes.Load(root); ok {
		return v.(*atomic.Pointer[snapshot])
	}
	v, _ := e.indexes.LoadOrStore(root, new(atomic.Pointer[snapshot]))
	return v.(*atomic.Pointer[snapshot])
}

// install swaps in snap unless a newer snapshot is already current.
func (e *Engine) install(root string, snap *snapshot) {
	p := e.slot(root)
	for {
		old := p.Load()
		if old != nil && old.capturedAt.After(snap.capturedAt) {
			return
		}
		if p.CompareAndSwap(old, snap) {
			return
		}
	}
}

func (e *Engine) installed(root string) *snapshot {
	if v, ok := e.indexes.Load(root); ok {
		return v.(*atomic.Pointer[snapshot]).Load()
	}
	return nil
}

// Close cancels every scan in flight and waits for them to stop.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	for _, s := range e.scans {
		s.Cancel()
	}
	e.mu.Unlock()

	e.wg.Wait()
	return nil
}
