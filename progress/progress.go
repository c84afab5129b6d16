package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nrtkbb/disktree/models"
)

const (
	DefaultInterval = 100 * time.Millisecond
	DefaultBuffer   = 16
)

// Phase names the stage a scan is in. It is carried as the status of a
// progress event.
type Phase string

const (
	PhaseScanning Phase = "scanning"
	PhaseSaving   Phase = "saving"
	PhaseIndexing Phase = "indexing"
)

type Options struct {
	// Interval is the minimum time between two throttled emissions.
	Interval time.Duration
	// Buffer is the capacity of the event channel. When it is full the
	// oldest event is dropped.
	Buffer int
}

// Reporter turns walker activity into rate-limited ScanProgress events.
// Producers never block: a full channel loses its oldest event. Once the
// context is done nothing more is emitted.
type Reporter struct {
	ctx      context.Context
	interval time.Duration
	now      func() time.Time

	files    atomic.Int64
	skipped  atomic.Int64
	lastEmit atomic.Int64

	mu     sync.Mutex
	out    chan models.ScanProgress
	phase  Phase
	closed bool
}

func New(ctx context.Context, opts Options) *Reporter {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	return &Reporter{
		ctx:      ctx,
		interval: opts.Interval,
		now:      time.Now,
		out:      make(chan models.ScanProgress, opts.Buffer),
		phase:    PhaseScanning,
	}
}

// Events is closed by Close.
func (r *Reporter) Events() <-chan models.ScanProgress {
	return r.out
}

func (r *Reporter) Count() int64 {
	return r.files.Load()
}

func (r *Reporter) Skipped() int64 {
	return r.skipped.Load()
}

// FileVisited counts one file and emits an event if the interval since the
// last emission has passed. The first call always emits.
func (r *Reporter) FileVisited(path string) {
	n := r.files.Add(1)

	now := r.now().UnixNano()
	last := r.lastEmit.Load()
	if last != 0 && now-last < int64(r.interval) {
		return
	}
	if !r.lastEmit.CompareAndSwap(last, now) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sendLocked(models.ScanProgress{
		FilesCount:  n,
		CurrentPath: path,
		Status:      r.statusLocked(),
	})
}

func (r *Reporter) EntrySkipped(string) {
	r.skipped.Add(1)
}

// SetPhase records a phase change and emits it regardless of throttling.
func (r *Reporter) SetPhase(phase Phase) {
	r.lastEmit.Store(r.now().UnixNano())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.phase = phase
	r.sendLocked(models.ScanProgress{
		FilesCount: r.files.Load(),
		Status:     r.statusLocked(),
	})
}

// Close stops emission and closes the event channel. It is safe to call
// more than once and concurrently with producers.
func (r *Reporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.out)
}

func (r *Reporter) statusLocked() string {
	if n := r.skipped.Load(); n > 0 {
		return fmt.Sprintf("%s (%d skipped)", r.phase, n)
	}
	return string(r.phase)
}

func (r *Reporter) sendLocked(p models.ScanProgress) {
	if r.closed || r.ctx.Err() != nil {
		return
	}
	for {
		select {
		case r.out <- p:
			return
		default:
		}
		// Full: drop the oldest event and retry. Only the consumer can
		// race us here, and it only makes room.
		select {
		case <-r.out:
		default:
		}
	}
}
