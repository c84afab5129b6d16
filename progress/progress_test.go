package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nrtkbb/disktree/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestReporter(ctx context.Context, opts Options) (*Reporter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	r := New(ctx, opts)
	r.now = clock.Now
	return r, clock
}

func drain(r *Reporter) []models.ScanProgress {
	var out []models.ScanProgress
	for {
		select {
		case p, ok := <-r.Events():
			if !ok {
				return out
			}
			out = append(out, p)
		default:
			return out
		}
	}
}

func TestFileVisitedThrottles(t *testing.T) {
	r, clock := newTestReporter(context.Background(), Options{Interval: 100 * time.Millisecond})

	r.FileVisited("/data/a")
	for i := 0; i < 50; i++ {
		clock.Advance(time.Millisecond)
		r.FileVisited("/data/b")
	}

	events := drain(r)
	if len(events) != 1 {
		t.Fatalf("got %d events within one interval, want 1", len(events))
	}
	if events[0].FilesCount != 1 || events[0].CurrentPath != "/data/a" {
		t.Errorf("first event = %+v, want count 1 at /data/a", events[0])
	}

	clock.Advance(100 * time.Millisecond)
	r.FileVisited("/data/c")

	events = drain(r)
	if len(events) != 1 {
		t.Fatalf("got %d events after interval, want 1", len(events))
	}
	if events[0].FilesCount != 52 || events[0].CurrentPath != "/data/c" {
		t.Errorf("event = %+v, want count 52 at /data/c", events[0])
	}
	if r.Count() != 52 {
		t.Errorf("Count() = %d, want 52", r.Count())
	}
}

func TestRateBound(t *testing.T) {
	r, clock := newTestReporter(context.Background(), Options{Interval: 100 * time.Millisecond, Buffer: 1000})

	// One simulated second at one file per millisecond.
	for i := 0; i < 1000; i++ {
		r.FileVisited("/data/f")
		clock.Advance(time.Millisecond)
	}

	if n := len(drain(r)); n > 10 {
		t.Errorf("got %d events in one second, want at most 10", n)
	}
}

func TestDropOldest(t *testing.T) {
	r, _ := newTestReporter(context.Background(), Options{Buffer: 2})

	r.FileVisited("/data/a")
	r.SetPhase(PhaseSaving)
	r.SetPhase(PhaseIndexing)

	events := drain(r)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Status != string(PhaseSaving) || events[1].Status != string(PhaseIndexing) {
		t.Errorf("statuses = %q, %q, want newest two", events[0].Status, events[1].Status)
	}
}

func TestSkippedInStatus(t *testing.T) {
	r, _ := newTestReporter(context.Background(), Options{})

	r.EntrySkipped("/data/locked")
	r.EntrySkipped("/data/gone")
	r.FileVisited("/data/a")

	events := drain(r)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if want := "scanning (2 skipped)"; events[0].Status != want {
		t.Errorf("Status = %q, want %q", events[0].Status, want)
	}
	if r.Skipped() != 2 {
		t.Errorf("Skipped() = %d, want 2", r.Skipped())
	}
}

func TestNoEventsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r, clock := newTestReporter(ctx, Options{})

	r.FileVisited("/data/a")
	drain(r)

	cancel()
	clock.Advance(time.Second)
	r.FileVisited("/data/b")
	r.SetPhase(PhaseSaving)

	if events := drain(r); len(events) != 0 {
		t.Errorf("got %d events after cancel, want 0", len(events))
	}
	if r.Count() != 2 {
		t.Errorf("Count() = %d, want 2", r.Count())
	}
}

func TestClose(t *testing.T) {
	r, clock := newTestReporter(context.Background(), Options{})
	r.FileVisited("/data/a")
	r.Close()
	r.Close()

	clock.Advance(time.Second)
	r.FileVisited("/data/b")
	r.SetPhase(PhaseIndexing)

	var got []models.ScanProgress
	for p := range r.Events() {
		got = append(got, p)
	}
	if len(got) != 1 {
		t.Errorf("got %d events, want the one sent before Close", len(got))
	}
}

func TestConcurrentProducersNeverBlock(t *testing.T) {
	r := New(context.Background(), Options{Interval: time.Nanosecond, Buffer: 4})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				r.FileVisited("/data/f")
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("producers blocked on a consumer that never reads")
	}

	if r.Count() != 8000 {
		t.Errorf("Count() = %d, want 8000", r.Count())
	}
	if n := len(r.Events()); n > 4 {
		t.Errorf("channel holds %d events, want at most 4", n)
	}
	r.Close()
}
