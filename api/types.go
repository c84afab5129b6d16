package api

// Server-sent event names of the scan stream.
const (
	EventProgress  = "scan-progress"
	EventResult    = "scan-result"
	EventError     = "scan-error"
	EventCancelled = "scan-cancelled"
)

// ScanErrorEvent is the payload of a scan-error event.
type ScanErrorEvent struct {
	Root  string `json:"root"`
	Error string `json:"error"`
}

// ScanCancelledEvent is the payload of a scan-cancelled event.
type ScanCancelledEvent struct {
	Root       string `json:"root"`
	FilesCount int64  `json:"files_count"`
}
