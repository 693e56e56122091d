package probe

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// DialFunc opens a network connection. It matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// TCPProber classifies ports with a full TCP connect.
type TCPProber struct {
	// Detector enriches open ports. Nil disables service detection.
	Detector ServiceDetector
	// Dial overrides the dialer, mainly for tests.
	Dial DialFunc
}

// Probe implements Prober. A completed handshake is open; any dial error
// (refused, timed out, unreachable) is closed.
func (p *TCPProber) Probe(ctx context.Context, target string, port int, timeout time.Duration) (res Result) {
	defer recoverProbe(ProtocolTCP, port, &res)

	dial := p.Dial
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(target, strconv.Itoa(port))
	start := time.Now()
	conn, err := dial(dialCtx, "tcp", addr)
	latency := roundMillis(time.Since(start))

	if err != nil {
		var opErr *net.OpError
		if !stderrors.As(err, &opErr) || ctx.Err() != nil {
			return failure(ProtocolTCP, port, err)
		}
		return Result{
			Outcome: Outcome{
				Port:            port,
				Status:          StatusClosed,
				Latency:         &latency,
				Protocol:        ProtocolTCP,
				DetectionMethod: MethodTCPConnect,
			},
			Log: NewLog(LevelInfo, port,
				fmt.Sprintf("Port %d/TCP is closed. (%s ms)", port, FormatLatency(latency))),
		}
	}
	_ = conn.Close()

	var service, banner string
	if p.Detector != nil {
		service, banner = p.Detector.Detect(ctx, target, port, timeout)
	}

	return Result{
		Outcome: Outcome{
			Port:            port,
			Status:          StatusOpen,
			Latency:         &latency,
			Protocol:        ProtocolTCP,
			DetectionMethod: MethodTCPConnect,
			Service:         service,
			Banner:          banner,
		},
		Log: NewLog(LevelOK, port,
			fmt.Sprintf("Port %d/TCP is open. (%s ms)", port, FormatLatency(latency))),
	}
}
