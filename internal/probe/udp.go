package probe

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// DefaultUDPWait caps how long a UDP probe waits for a reply.
const DefaultUDPWait = 300 * time.Millisecond

const udpReadBufferSize = 1024

// UDPProber sends an empty datagram and waits briefly for any reply.
//
// The socket is unconnected, so ICMP port-unreachable messages are not
// reported and a closed port looks the same as a silent open one. Both are
// classified as filtered.
type UDPProber struct {
	// MaxWait lowers the reply wait. Zero or values above DefaultUDPWait
	// mean DefaultUDPWait.
	MaxWait time.Duration
}

// Probe implements Prober.
func (p *UDPProber) Probe(ctx context.Context, target string, port int, timeout time.Duration) (res Result) {
	defer recoverProbe(ProtocolUDP, port, &res)

	wait := DefaultUDPWait
	if p.MaxWait > 0 && p.MaxWait < wait {
		wait = p.MaxWait
	}
	if timeout > 0 && timeout < wait {
		wait = timeout
	}

	start := time.Now()
	status, err := p.exchange(ctx, target, port, wait)
	if err != nil {
		return failure(ProtocolUDP, port, err)
	}
	latency := roundMillis(time.Since(start))

	return Result{
		Outcome: Outcome{
			Port:            port,
			Status:          status,
			Latency:         &latency,
			Protocol:        ProtocolUDP,
			DetectionMethod: MethodUDPSend,
		},
		Log: NewLog(LevelInfo, port,
			fmt.Sprintf("Port %d/UDP is %s. (%s ms)", port, status, FormatLatency(latency))),
	}
}

func (p *UDPProber) exchange(ctx context.Context, target string, port int, wait time.Duration) (Status, error) {
	raddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(target, strconv.Itoa(port)))
	if err != nil {
		return "", err
	}

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", ":0")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if _, err := conn.WriteTo(nil, raddr); err != nil {
		return "", err
	}
	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return "", err
	}

	// Datagrams from other sources are ignored until the deadline.
	buf := make([]byte, udpReadBufferSize)
	for {
		_, from, err := conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if stderrors.As(err, &netErr) && netErr.Timeout() {
				return StatusFiltered, nil
			}
			return "", err
		}
		if sameUDPAddr(from, raddr) {
			return StatusOpen, nil
		}
	}
}

func sameUDPAddr(from net.Addr, want *net.UDPAddr) bool {
	got, ok := from.(*net.UDPAddr)
	if !ok {
		return false
	}
	return got.Port == want.Port && got.IP.Equal(want.IP)
}
