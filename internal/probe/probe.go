package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anstrom/portscope/internal/errors"
)

// ForProtocol returns the probe strategy for protocol, matched without
// regard to case. Unknown protocols get a prober that reports every port as
// an error.
func ForProtocol(protocol string, detector ServiceDetector) Prober {
	switch strings.ToUpper(strings.TrimSpace(protocol)) {
	case ProtocolTCP:
		return &TCPProber{Detector: detector}
	case ProtocolUDP:
		return &UDPProber{}
	default:
		return &UnsupportedProber{Protocol: protocol}
	}
}

// Normalize returns the canonical spelling of a supported protocol, or
// protocol unchanged when it is not supported.
func Normalize(protocol string) string {
	switch p := strings.ToUpper(strings.TrimSpace(protocol)); p {
	case ProtocolTCP, ProtocolUDP:
		return p
	default:
		return protocol
	}
}

// UnsupportedProber reports an error outcome for every port.
type UnsupportedProber struct {
	Protocol string
}

// Probe implements Prober.
func (p *UnsupportedProber) Probe(_ context.Context, _ string, port int, _ time.Duration) Result {
	err := errors.ErrUnsupportedProtocol(p.Protocol)
	return Result{
		Outcome: Outcome{
			Port:            port,
			Status:          StatusError,
			Protocol:        p.Protocol,
			DetectionMethod: methodFor(p.Protocol),
		},
		Log: NewLog(LevelError, port, err.Message),
	}
}

// failure builds the error outcome shared by the TCP and UDP strategies.
func failure(protocol string, port int, cause error) Result {
	return Result{
		Outcome: Outcome{
			Port:            port,
			Status:          StatusError,
			Protocol:        protocol,
			DetectionMethod: methodFor(protocol),
		},
		Log: NewLog(LevelError, port, fmt.Sprintf("Error scanning port %d: %v", port, cause)),
	}
}

// recoverProbe converts a panic inside a probe into an error outcome.
func recoverProbe(protocol string, port int, res *Result) {
	if r := recover(); r != nil {
		*res = failure(protocol, port,
			errors.NewScanError(errors.CodeProbeFailure, fmt.Sprintf("panic: %v", r)))
	}
}
