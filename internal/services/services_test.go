package services

import (
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleServices = `
# Network services, Internet style
tcpmux		1/tcp				# TCP port service multiplexer
ssh		22/tcp				# SSH Remote Login Protocol
smtp		25/tcp		mail
domain		53/tcp				# Domain Name Server
domain		53/udp
www		80/tcp		http
alt-www		80/tcp
broken-line
nonsense	abc/tcp
missing-proto	99
`

func TestParse(t *testing.T) {
	entries, err := Parse(strings.NewReader(sampleServices))
	require.NoError(t, err)

	assert.Equal(t, "tcpmux", entries["1/tcp"])
	assert.Equal(t, "smtp", entries["25/tcp"])
	assert.Equal(t, "domain", entries["53/udp"])
	assert.Equal(t, "www", entries["80/tcp"], "first name for a pair wins")
	assert.Len(t, entries, 6)
}

func TestTable(t *testing.T) {
	table := NewTable()

	assert.Equal(t, "ssh", table.Lookup(22, "tcp"))
	assert.Equal(t, "ssh", table.Lookup(22, "TCP"))
	assert.Equal(t, "", table.Lookup(22, "udp"))
	assert.Equal(t, "", table.Lookup(1, "tcp"))

	n, err := table.Merge(strings.NewReader(sampleServices))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	assert.Equal(t, "tcpmux", table.Lookup(1, "tcp"))
	assert.Equal(t, "www", table.Lookup(80, "tcp"), "merged names replace built-ins")
	assert.Equal(t, "domain", table.Lookup(53, "udp"))
	assert.Greater(t, table.Len(), len(wellKnownTCP))
}

func TestTable_MergeFileMissing(t *testing.T) {
	table := NewTable()
	_, err := table.MergeFile("/nonexistent/services")
	assert.Error(t, err)
	assert.Equal(t, "http", table.Lookup(80, "tcp"))
}

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()
	assert.Same(t, table, DefaultTable())
	assert.NotEmpty(t, table.Lookup(22, "tcp"))
}

// serveBanner accepts one connection per call and writes payload to it.
func serveBanner(t *testing.T, payload []byte) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			if payload != nil {
				_, _ = conn.Write(payload)
			}
			// Hold the connection so silent services exercise the read deadline.
			time.Sleep(200 * time.Millisecond)
			conn.Close()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestBannerGrabber(t *testing.T) {
	t.Run("reads and trims greeting", func(t *testing.T) {
		port := serveBanner(t, []byte("  SSH-2.0-OpenSSH_9.6\r\n"))
		g := &BannerGrabber{}

		assert.Equal(t, "SSH-2.0-OpenSSH_9.6", g.Grab(context.Background(), "127.0.0.1", port, time.Second))
	})

	t.Run("replaces invalid utf-8", func(t *testing.T) {
		port := serveBanner(t, []byte{'o', 'k', 0xff, '!'})
		g := &BannerGrabber{}

		assert.Equal(t, "ok\uFFFD!", g.Grab(context.Background(), "127.0.0.1", port, time.Second))
	})

	t.Run("caps banner size", func(t *testing.T) {
		port := serveBanner(t, []byte(strings.Repeat("A", 4096)))
		g := &BannerGrabber{}

		banner := g.Grab(context.Background(), "127.0.0.1", port, time.Second)
		assert.LessOrEqual(t, len(banner), MaxBannerBytes)
		assert.NotEmpty(t, banner)
	})

	t.Run("silent service yields empty banner", func(t *testing.T) {
		port := serveBanner(t, nil)
		g := &BannerGrabber{Timeout: 50 * time.Millisecond}

		start := time.Now()
		assert.Equal(t, "", g.Grab(context.Background(), "127.0.0.1", port, time.Second))
		assert.Less(t, time.Since(start), 150*time.Millisecond)
	})

	t.Run("connect failure yields empty banner", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		port := ln.Addr().(*net.TCPAddr).Port
		ln.Close()

		g := &BannerGrabber{}
		assert.Equal(t, "", g.Grab(context.Background(), "127.0.0.1", port, time.Second))
	})
}

func TestDetector(t *testing.T) {
	t.Run("service and banner", func(t *testing.T) {
		port := serveBanner(t, []byte("220 ready\n"))
		table := NewTable()
		_, err := table.Merge(strings.NewReader("custom-svc " + strconv.Itoa(port) + "/tcp\n"))
		require.NoError(t, err)

		d := NewDetector(table, nil)
		service, banner := d.Detect(context.Background(), "127.0.0.1", port, time.Second)

		assert.Equal(t, "custom-svc", service)
		assert.Equal(t, "220 ready", banner)
	})

	t.Run("panicking banner step keeps service name", func(t *testing.T) {
		d := NewDetector(NewTable(), &BannerGrabber{
			Dial: func(context.Context, string, string) (net.Conn, error) {
				panic("dial exploded")
			},
		})

		service, banner := d.Detect(context.Background(), "127.0.0.1", 22, time.Second)

		assert.Equal(t, "ssh", service)
		assert.Equal(t, "", banner)
	})

	t.Run("defaults", func(t *testing.T) {
		d := NewDetector(nil, nil)
		assert.Same(t, DefaultTable(), d.Table)
		assert.NotNil(t, d.Banners)
	})
}
