// Package metrics provides monitoring and metrics collection for portscope.
// Scan, probe, and HTTP activity is exported in Prometheus format; a no-op
// recorder is available for callers that do not collect metrics.
package metrics

import "time"

// Scan status label values.
const (
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Common label keys.
const (
	LabelScanType = "scan_type"
	LabelStatus   = "status"
	LabelProtocol = "protocol"
	LabelMethod   = "method"
	LabelPath     = "path"
)

// Nop is a Recorder that discards everything.
type Nop struct{}

// ScanStarted implements Recorder.
func (Nop) ScanStarted(string) {}

// ScanFinished implements Recorder.
func (Nop) ScanFinished(string, string, time.Duration) {}

// PortProbed implements Recorder.
func (Nop) PortProbed(string, string, time.Duration) {}

// HTTPRequest implements Recorder.
func (Nop) HTTPRequest(string, string, int, time.Duration, int) {}

// Timer provides a simple way to measure execution time.
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the time since the timer was started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// ObserveScan reports the elapsed time as a finished scan on r.
func (t *Timer) ObserveScan(r Recorder, scanType, status string) time.Duration {
	elapsed := t.Elapsed()
	r.ScanFinished(scanType, status, elapsed)
	return elapsed
}
