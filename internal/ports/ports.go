// Package ports turns user supplied port expressions into ordered lists
// of port numbers and applies the scan-type presets.
//
// An expression is a comma separated list of tokens. Each token is either
// a decimal port ("443") or an inclusive range ("8000-8010"). Output keeps
// token order and multiplicity, so "80,80-81" expands to [80 80 81].
package ports

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/anstrom/portscope/internal/errors"
)

const (
	// MinPort is the lowest port number that can be probed.
	MinPort = 1
	// MaxPort is the highest port number that can be probed.
	MaxPort = 65535

	expectedPortRangeParts = 2
)

// Expansion is the result of expanding a port expression.
type Expansion struct {
	// Ports lists the ports to probe in expression order.
	Ports []int
	// Skipped lists non-empty tokens that were neither a port nor a range.
	Skipped []string
}

// Expand parses spec into a list of ports. Tokens that are not numeric are
// skipped and reported in Expansion.Skipped. A reversed range or a numeric
// port outside MinPort..MaxPort fails the whole expression with an
// INVALID_PORT_RANGE error.
func Expand(spec string) (Expansion, error) {
	var exp Expansion
	if strings.TrimSpace(spec) == "" {
		return exp, nil
	}

	for _, raw := range strings.Split(spec, ",") {
		token := strings.TrimSpace(raw)
		if token == "" {
			continue
		}

		if strings.Contains(token, "-") {
			startStr, endStr, ok := splitRange(token)
			if !ok {
				exp.Skipped = append(exp.Skipped, token)
				continue
			}
			start, end, err := validateRange(token, startStr, endStr)
			if err != nil {
				return Expansion{}, err
			}
			for p := start; p <= end; p++ {
				exp.Ports = append(exp.Ports, p)
			}
			continue
		}

		if !isDigits(token) {
			exp.Skipped = append(exp.Skipped, token)
			continue
		}
		port, err := parsePort(token)
		if err != nil {
			return Expansion{}, err
		}
		exp.Ports = append(exp.Ports, port)
	}

	return exp, nil
}

// MustExpand is like Expand but panics on error. It is meant for constant
// expressions.
func MustExpand(spec string) []int {
	exp, err := Expand(spec)
	if err != nil {
		panic(err)
	}
	return exp.Ports
}

// splitRange splits "a-b" into its numeric bounds. ok is false when the
// token is not exactly two digit strings joined by a dash.
func splitRange(token string) (start, end string, ok bool) {
	parts := strings.Split(token, "-")
	if len(parts) != expectedPortRangeParts {
		return "", "", false
	}
	start = strings.TrimSpace(parts[0])
	end = strings.TrimSpace(parts[1])
	if !isDigits(start) || !isDigits(end) {
		return "", "", false
	}
	return start, end, true
}

func validateRange(token, startStr, endStr string) (int, int, error) {
	start, err := parsePortIn(token, startStr)
	if err != nil {
		return 0, 0, err
	}
	end, err := parsePortIn(token, endStr)
	if err != nil {
		return 0, 0, err
	}
	if start > end {
		return 0, 0, errors.ErrInvalidPortRange(token, "start port is greater than end port")
	}
	return start, end, nil
}

func parsePort(token string) (int, error) {
	return parsePortIn(token, token)
}

// parsePortIn parses digits as a port number, attributing failures to token.
func parsePortIn(token, digits string) (int, error) {
	n, err := strconv.Atoi(digits)
	if err != nil || n < MinPort || n > MaxPort {
		return 0, errors.ErrInvalidPortRange(token,
			fmt.Sprintf("port %s is outside %d-%d", digits, MinPort, MaxPort))
	}
	return n, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
