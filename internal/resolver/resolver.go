// Package resolver turns scan targets into a single IP address. Targets are
// resolved once per scan, before any probe is dispatched.
package resolver

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// DefaultTimeout bounds a single lookup.
const DefaultTimeout = 5 * time.Second

// Resolver resolves a host name or address literal to an IP address.
type Resolver interface {
	Resolve(ctx context.Context, host string) (string, error)
}

// New returns a DNSResolver for server when it is set and a SystemResolver
// otherwise.
func New(server string, timeout time.Duration) Resolver {
	if strings.TrimSpace(server) == "" {
		return &SystemResolver{Timeout: timeout}
	}
	return NewDNSResolver(server, timeout)
}

// SystemResolver uses the operating system's resolver configuration.
type SystemResolver struct {
	Timeout  time.Duration
	Resolver *net.Resolver
}

// Resolve implements Resolver. IPv4 addresses are preferred.
func (r *SystemResolver) Resolve(ctx context.Context, host string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", fmt.Errorf("empty host")
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(r.Timeout))
	defer cancel()

	res := r.Resolver
	if res == nil {
		res = net.DefaultResolver
	}
	addrs, err := res.LookupIPAddr(ctx, host)
	if err != nil {
		return "", err
	}
	return pick(addrs)
}

// DNSResolver queries a specific DNS server for A, then AAAA records.
type DNSResolver struct {
	Server string
	client *dns.Client
}

// NewDNSResolver creates a resolver for server. A server without a port
// uses 53.
func NewDNSResolver(server string, timeout time.Duration) *DNSResolver {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &DNSResolver{
		Server: server,
		client: &dns.Client{Net: "udp", Timeout: timeoutOrDefault(timeout)},
	}
}

// Resolve implements Resolver.
func (r *DNSResolver) Resolve(ctx context.Context, host string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", fmt.Errorf("empty host")
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}

	var lastErr error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		ip, err := r.query(ctx, host, qtype)
		if err == nil {
			return ip, nil
		}
		lastErr = err
	}
	return "", lastErr
}

func (r *DNSResolver) query(ctx context.Context, host string, qtype uint16) (string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	in, _, err := r.client.ExchangeContext(ctx, msg, r.Server)
	if err != nil {
		return "", fmt.Errorf("dns query to %s failed: %w", r.Server, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return "", fmt.Errorf("dns query for %s returned %s", host, dns.RcodeToString[in.Rcode])
	}

	for _, rr := range in.Answer {
		switch rec := rr.(type) {
		case *dns.A:
			return rec.A.String(), nil
		case *dns.AAAA:
			return rec.AAAA.String(), nil
		}
	}
	return "", fmt.Errorf("no %s records for %s", dns.TypeToString[qtype], host)
}

func pick(addrs []net.IPAddr) (string, error) {
	if len(addrs) == 0 {
		return "", fmt.Errorf("no addresses found")
	}
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return addrs[0].IP.String(), nil
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	return d
}
