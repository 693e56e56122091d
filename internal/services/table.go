// Package services resolves well-known service names for ports and grabs
// greeting banners from open TCP services.
package services

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// DefaultServicesFile is the system services database consulted by
// DefaultTable.
const DefaultServicesFile = "/etc/services"

// wellKnownTCP is used when the system services database is missing and
// fills gaps in it.
var wellKnownTCP = map[int]string{
	20:    "ftp-data",
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	53:    "domain",
	67:    "bootps",
	69:    "tftp",
	79:    "finger",
	80:    "http",
	88:    "kerberos",
	110:   "pop3",
	111:   "sunrpc",
	119:   "nntp",
	123:   "ntp",
	135:   "epmap",
	137:   "netbios-ns",
	139:   "netbios-ssn",
	143:   "imap2",
	161:   "snmp",
	179:   "bgp",
	389:   "ldap",
	443:   "https",
	445:   "microsoft-ds",
	465:   "submissions",
	514:   "shell",
	515:   "printer",
	587:   "submission",
	631:   "ipp",
	636:   "ldaps",
	873:   "rsync",
	993:   "imaps",
	995:   "pop3s",
	1080:  "socks",
	1433:  "ms-sql-s",
	1521:  "ncube-lm",
	1723:  "pptp",
	2049:  "nfs",
	3306:  "mysql",
	3389:  "ms-wbt-server",
	5060:  "sip",
	5432:  "postgresql",
	5672:  "amqp",
	5900:  "rfb",
	6379:  "redis",
	6667:  "ircd",
	8080:  "http-alt",
	9418:  "git",
	11211: "memcache",
	27017: "mongodb",
}

// Table maps (port, protocol) pairs to service names.
type Table struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewTable returns a table seeded with the built-in well-known TCP names.
func NewTable() *Table {
	t := &Table{entries: make(map[string]string, len(wellKnownTCP))}
	for port, name := range wellKnownTCP {
		t.entries[key(port, "tcp")] = name
	}
	return t
}

// Lookup returns the service name for port and protocol, or "" when unknown.
func (t *Table) Lookup(port int, protocol string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.entries[key(port, protocol)]
}

// Len reports the number of known (port, protocol) pairs.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Merge reads a services(5) formatted database and adds its entries,
// replacing built-in names for the same port and protocol. The first name
// listed for a pair wins, matching getservbyport.
func (t *Table) Merge(r io.Reader) (int, error) {
	parsed, err := Parse(r)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for k, name := range parsed {
		t.entries[k] = name
	}
	return len(parsed), nil
}

// MergeFile merges the services database at path.
func (t *Table) MergeFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return t.Merge(f)
}

// Parse reads services(5) lines of the form "name port/proto [aliases] [# comment]".
// Malformed lines are ignored.
func Parse(r io.Reader) (map[string]string, error) {
	entries := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		portStr, proto, ok := strings.Cut(fields[1], "/")
		if !ok {
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 0 || port > 65535 {
			continue
		}

		k := key(port, proto)
		if _, exists := entries[k]; !exists {
			entries[k] = fields[0]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read services database: %w", err)
	}
	return entries, nil
}

func key(port int, protocol string) string {
	return strconv.Itoa(port) + "/" + strings.ToLower(protocol)
}

var (
	defaultTable     *Table
	defaultTableOnce sync.Once
)

// DefaultTable returns a process-wide table built from the built-in names
// and, when readable, DefaultServicesFile.
func DefaultTable() *Table {
	defaultTableOnce.Do(func() {
		defaultTable = NewTable()
		_, _ = defaultTable.MergeFile(DefaultServicesFile)
	})
	return defaultTable
}
