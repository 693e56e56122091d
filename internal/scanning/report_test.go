package scanning

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/portscope/internal/ports"
	"github.com/anstrom/portscope/internal/probe"
)

func outcome(port int, status probe.Status) probe.Outcome {
	return probe.Outcome{
		Port:            port,
		Status:          status,
		Protocol:        probe.ProtocolTCP,
		DetectionMethod: probe.MethodTCPConnect,
	}
}

func logAt(ts time.Time, level probe.Level, port int, msg string) probe.LogEntry {
	return probe.LogEntry{Time: ts, Level: level, Port: port, Message: msg}
}

func TestAggregate(t *testing.T) {
	ts := time.Date(2026, 3, 1, 14, 5, 9, 0, time.UTC)
	run := &Run{
		ScanID: "scan-1",
		Outcomes: []probe.Outcome{
			outcome(443, probe.StatusOpen),
			outcome(22, probe.StatusClosed),
			outcome(80, probe.StatusOpen),
			outcome(22, probe.StatusError),
		},
		Logs: []probe.LogEntry{
			logAt(ts, probe.LevelInfo, 0, "Scan type: Custom"),
			logAt(ts, probe.LevelOK, 443, "Port 443/TCP is open. (1.2 ms)"),
			logAt(ts, probe.LevelInfo, 22, "first 22"),
			logAt(ts, probe.LevelWarn, 0, "Scan cancelled by user."),
			logAt(ts, probe.LevelError, 22, "second 22"),
		},
		Dispatched: 6,
		Cancelled:  true,
		Duration:   1234567 * time.Microsecond,
	}
	req := Request{
		Target:         "example.test",
		ScanType:       ports.ScanCustom,
		AggressiveMode: true,
		VerboseLevel:   "Normal",
	}

	report := Aggregate(req, run)

	var gotPorts []int
	for _, o := range report.Results {
		gotPorts = append(gotPorts, o.Port)
	}
	assert.Equal(t, []int{22, 22, 80, 443}, gotPorts)
	assert.Equal(t, probe.StatusClosed, report.Results[0].Status, "stable for equal ports")
	assert.Equal(t, probe.StatusError, report.Results[1].Status)

	var gotMessages []string
	for _, l := range report.Logs {
		gotMessages = append(gotMessages, l.Message)
		assert.Equal(t, "14:05:09", l.Timestamp)
	}
	assert.Equal(t, []string{
		"Scan type: Custom",
		"Scan cancelled by user.",
		"first 22",
		"second 22",
		"Port 443/TCP is open. (1.2 ms)",
	}, gotMessages)

	assert.Equal(t, Summary{
		ScanID:         "scan-1",
		Target:         "example.test",
		Duration:       1.23,
		OpenPorts:      2,
		PortsScanned:   6,
		PortsCompleted: 4,
		ScanType:       "Custom",
		AggressiveMode: true,
		VerboseLevel:   "Normal",
		Cancelled:      true,
	}, report.Summary)

	assert.Equal(t, 2, report.Skipped())
	assert.Len(t, report.Open(), 2)

	// The run itself is left untouched.
	assert.Equal(t, 443, run.Outcomes[0].Port)
}

func TestAggregate_JSONShape(t *testing.T) {
	latency := 0.42
	o := outcome(80, probe.StatusOpen)
	o.Latency = &latency
	o.Service = "http"

	report := Aggregate(Request{Target: "t", ScanType: ports.ScanQuick, VerboseLevel: "Normal"}, &Run{
		Outcomes:   []probe.Outcome{o, outcome(81, probe.StatusError)},
		Dispatched: 2,
	})

	raw, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	results := decoded["results"].([]any)
	first := results[0].(map[string]any)
	assert.Equal(t, 0.42, first["latency"])
	assert.Equal(t, "TCP Connect", first["detectionMethod"])
	assert.Equal(t, "http", first["service"])
	assert.Nil(t, first["ttl"])
	assert.Contains(t, first, "ttl")

	second := results[1].(map[string]any)
	assert.Nil(t, second["latency"])

	assert.Equal(t, []any{}, decoded["logs"])
	summary := decoded["summary"].(map[string]any)
	assert.Equal(t, "Quick", summary["scanType"])
	assert.Equal(t, float64(1), summary["openPorts"])
	assert.Equal(t, float64(2), summary["portsScanned"])
}

func TestAggregate_Empty(t *testing.T) {
	report := Aggregate(Request{ScanType: ports.ScanCustom}, &Run{})

	assert.NotNil(t, report.Results)
	assert.NotNil(t, report.Logs)
	assert.Zero(t, report.Summary.OpenPorts)
	assert.Empty(t, report.Open())
}
