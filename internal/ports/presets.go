package ports

import (
	"fmt"
	"strings"
)

// ScanType selects a port preset.
type ScanType string

const (
	ScanQuick   ScanType = "Quick"
	ScanFull    ScanType = "Full"
	ScanStealth ScanType = "Stealth"
	ScanCustom  ScanType = "Custom"
)

// QuickPorts is the default port expression for Quick scans.
const QuickPorts = "21,22,23,25,53,80,110,139,143,443,993,995,3389,5432,3306"

// FullRange covers every probeable port.
const FullRange = "1-65535"

// ScanTypes lists the accepted scan types in display order.
var ScanTypes = []ScanType{ScanQuick, ScanFull, ScanStealth, ScanCustom}

// ParseScanType matches s against the known scan types, ignoring case. An
// empty string selects Quick.
func ParseScanType(s string) (ScanType, error) {
	if strings.TrimSpace(s) == "" {
		return ScanQuick, nil
	}
	for _, t := range ScanTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown scan type %q", s)
}

// Apply returns the port expression a scan of this type should use.
// Quick substitutes QuickPorts when spec is blank, Full always scans
// FullRange, and Stealth and Custom use spec unchanged.
func (t ScanType) Apply(spec string) string {
	switch t {
	case ScanQuick:
		if strings.TrimSpace(spec) == "" {
			return QuickPorts
		}
		return spec
	case ScanFull:
		return FullRange
	default:
		return spec
	}
}

// String implements fmt.Stringer.
func (t ScanType) String() string {
	return string(t)
}
