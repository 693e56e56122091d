package scanning

import (
	"math"
	"sort"

	"github.com/anstrom/portscope/internal/probe"
)

// TimestampLayout is how log timestamps are rendered in reports.
const TimestampLayout = "15:04:05"

// LogLine is a log entry as it appears in a report.
type LogLine struct {
	Timestamp string      `json:"timestamp"`
	Level     probe.Level `json:"level"`
	Port      int         `json:"port"`
	Message   string      `json:"message"`
}

// Summary holds the derived statistics of a scan.
type Summary struct {
	ScanID         string  `json:"scanId"`
	Target         string  `json:"target"`
	Duration       float64 `json:"duration"`
	OpenPorts      int     `json:"openPorts"`
	PortsScanned   int     `json:"portsScanned"`
	PortsCompleted int     `json:"portsCompleted"`
	ScanType       string  `json:"scanType"`
	AggressiveMode bool    `json:"aggressiveMode"`
	VerboseLevel   string  `json:"verboseLevel"`
	Cancelled      bool    `json:"cancelled"`
}

// Report is the final artifact of a scan.
type Report struct {
	Results []probe.Outcome `json:"results"`
	Logs    []LogLine       `json:"logs"`
	Summary Summary         `json:"summary"`
}

// Aggregate sorts the outcomes and logs of run by port and computes the
// summary. Entries with the same port keep their relative order, so
// scan-level logs (port 0) come first in the order they were emitted.
func Aggregate(req Request, run *Run) *Report {
	outcomes := make([]probe.Outcome, len(run.Outcomes))
	copy(outcomes, run.Outcomes)
	sort.SliceStable(outcomes, func(i, j int) bool {
		return outcomes[i].Port < outcomes[j].Port
	})

	entries := make([]probe.LogEntry, len(run.Logs))
	copy(entries, run.Logs)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Port < entries[j].Port
	})

	logs := make([]LogLine, 0, len(entries))
	for _, e := range entries {
		logs = append(logs, LogLine{
			Timestamp: e.Time.Format(TimestampLayout),
			Level:     e.Level,
			Port:      e.Port,
			Message:   e.Message,
		})
	}

	open := 0
	for _, o := range outcomes {
		if o.Status == probe.StatusOpen {
			open++
		}
	}

	return &Report{
		Results: outcomes,
		Logs:    logs,
		Summary: Summary{
			ScanID:         run.ScanID,
			Target:         req.Target,
			Duration:       math.Round(run.Duration.Seconds()*100) / 100,
			OpenPorts:      open,
			PortsScanned:   run.Dispatched,
			PortsCompleted: len(outcomes),
			ScanType:       req.ScanType.String(),
			AggressiveMode: req.AggressiveMode,
			VerboseLevel:   req.VerboseLevel,
			Cancelled:      run.Cancelled,
		},
	}
}

// Open returns the open outcomes of the report in port order.
func (r *Report) Open() []probe.Outcome {
	var open []probe.Outcome
	for _, o := range r.Results {
		if o.Status == probe.StatusOpen {
			open = append(open, o)
		}
	}
	return open
}

// Skipped returns how many dispatched ports were skipped by cancellation.
func (r *Report) Skipped() int {
	return r.Summary.PortsScanned - r.Summary.PortsCompleted
}
