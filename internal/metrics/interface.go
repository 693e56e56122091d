package metrics

//go:generate mockgen -destination=mocks/mock_recorder.go -package=mocks . Recorder

import "time"

// Recorder is the metrics surface used by the scan engine and the HTTP
// middleware. It is satisfied by PrometheusMetrics and Nop.
type Recorder interface {
	// ScanStarted marks a scan as running.
	ScanStarted(scanType string)

	// ScanFinished records the terminal status and wall time of a scan.
	ScanFinished(scanType, status string, duration time.Duration)

	// PortProbed records one per-port outcome.
	PortProbed(protocol, status string, latency time.Duration)

	// HTTPRequest records a served HTTP request.
	HTTPRequest(method, path string, status int, duration time.Duration, size int)
}

// Ensure that both implementations satisfy Recorder.
var (
	_ Recorder = (*PrometheusMetrics)(nil)
	_ Recorder = Nop{}
)
