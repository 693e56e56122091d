//go:generate mockgen -destination=mocks/mock_prober.go -package=mocks . Prober

// Package probe implements the per-port detection strategies: a TCP connect
// probe, a UDP send/receive probe, and a fallback for unsupported protocols.
//
// Every probe produces exactly one Outcome and one LogEntry. Probes never
// return errors; failures are reported as outcomes with StatusError.
package probe

import (
	"context"
	"math"
	"strconv"
	"time"
)

// Status is the reachability classification of a single port.
type Status string

const (
	StatusOpen     Status = "open"
	StatusClosed   Status = "closed"
	StatusFiltered Status = "filtered"
	StatusError    Status = "error"
)

// Level is the severity of a scan log entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelOK    Level = "OK"
	LevelError Level = "ERROR"
)

// Protocol selectors.
const (
	ProtocolTCP = "TCP"
	ProtocolUDP = "UDP"
)

// Detection methods reported with each outcome.
const (
	MethodTCPConnect = "TCP Connect"
	MethodUDPSend    = "UDP Send"
)

// ScanLevelPort is the port number used for log entries about the whole scan.
const ScanLevelPort = 0

// Outcome is the result for one probed port.
type Outcome struct {
	Port            int      `json:"port"`
	Status          Status   `json:"status"`
	Latency         *float64 `json:"latency"`
	Protocol        string   `json:"protocol"`
	DetectionMethod string   `json:"detectionMethod"`
	Service         string   `json:"service"`
	Banner          string   `json:"banner"`
	TTL             *int     `json:"ttl"`
}

// LogEntry is a diagnostic line attached to a scan report.
type LogEntry struct {
	Time    time.Time
	Level   Level
	Port    int
	Message string
}

// NewLog creates a log entry stamped with the current time.
func NewLog(level Level, port int, message string) LogEntry {
	return LogEntry{
		Time:    time.Now(),
		Level:   level,
		Port:    port,
		Message: message,
	}
}

// Result pairs the outcome of a probe with its log entry. The two are always
// recorded together.
type Result struct {
	Outcome Outcome
	Log     LogEntry
}

// Prober probes a single port of an already resolved target.
type Prober interface {
	Probe(ctx context.Context, target string, port int, timeout time.Duration) Result
}

// ServiceDetector looks up the service name and banner of an open TCP port.
// Implementations must not panic and return empty strings on failure.
type ServiceDetector interface {
	Detect(ctx context.Context, target string, port int, timeout time.Duration) (service, banner string)
}

// roundMillis converts d to milliseconds rounded to two decimals.
func roundMillis(d time.Duration) float64 {
	ms := float64(d) / float64(time.Millisecond)
	return math.Round(ms*100) / 100
}

// FormatLatency renders a latency in milliseconds without trailing zeros.
func FormatLatency(ms float64) string {
	return strconv.FormatFloat(ms, 'f', -1, 64)
}

func methodFor(protocol string) string {
	if protocol == ProtocolTCP {
		return MethodTCPConnect
	}
	return MethodUDPSend
}
