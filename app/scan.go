package app

import (
	"context"

	"github.com/nrtkbb/disktree/models"
	"github.com/nrtkbb/disktree/progress"
	"github.com/nrtkbb/disktree/scanner"
)

// Scan is a handle on one background scan.
type Scan struct {
	root     string
	cancel   context.CancelFunc
	reporter *progress.Reporter
	done     chan struct{}

	// Set before done is closed.
	result *models.ScanResult
	report *scanner.Report
	err    error
}

func (s *Scan) Root() string {
	return s.root
}

// Progress delivers throttled progress events and is closed when the scan
// ends. Consumers that fall behind lose the oldest events.
func (s *Scan) Progress() <-chan models.ScanProgress {
	return s.reporter.Events()
}

func (s *Scan) Cancel() {
	s.cancel()
}

func (s *Scan) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the scan ends. A cancelled scan returns
// models.ErrCancelled and no result.
func (s *Scan) Wait() (*models.ScanResult, error) {
	<-s.done
	return s.result, s.err
}

// Report is nil until the scan has completed successfully.
func (s *Scan) Report() *scanner.Report {
	select {
	case <-s.done:
		return s.report
	default:
		return nil
	}
}

// FilesCount is the number of files visited so far.
func (s *Scan) FilesCount() int64 {
	return s.reporter.Count()
}
