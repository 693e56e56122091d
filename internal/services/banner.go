package services

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBannerTimeout bounds both the banner connect and the read.
	DefaultBannerTimeout = time.Second
	// MaxBannerBytes is the most a banner read will consume.
	MaxBannerBytes = 1024
)

// BannerGrabber reads the greeting a TCP service sends on connect.
type BannerGrabber struct {
	// Timeout caps the connect and read. Zero means DefaultBannerTimeout.
	Timeout time.Duration
	// Dial overrides the dialer, mainly for tests.
	Dial func(ctx context.Context, network, address string) (net.Conn, error)
}

// Grab opens a new connection to target:port and performs a single read of
// up to MaxBannerBytes. Invalid UTF-8 is replaced and surrounding whitespace
// trimmed. Any failure yields "".
func (g *BannerGrabber) Grab(ctx context.Context, target string, port int, probeTimeout time.Duration) string {
	limit := g.Timeout
	if limit <= 0 {
		limit = DefaultBannerTimeout
	}
	connectTimeout := limit
	if probeTimeout > 0 && probeTimeout < connectTimeout {
		connectTimeout = probeTimeout
	}

	dial := g.Dial
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, err := dial(dialCtx, "tcp", net.JoinHostPort(target, strconv.Itoa(port)))
	if err != nil {
		return ""
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(limit)); err != nil {
		return ""
	}

	buf := make([]byte, MaxBannerBytes)
	n, _ := conn.Read(buf)
	if n == 0 {
		return ""
	}
	return cleanBanner(buf[:n])
}

func cleanBanner(raw []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(raw), "\uFFFD"))
}
