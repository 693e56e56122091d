// Package docs provides Swagger documentation for the portscope API.
//
// This file contains the API endpoint documentation using swaggo annotations.
// Run `swag init` to regenerate the OpenAPI documents.
//
//go:generate swag init -g swagger_docs.go -o ./swagger --parseDependency --parseInternal
package docs

import (
	"net/http"
	"time"
)

// @title portscope API
// @version 0.1.0
// @description TCP and UDP port scanning service.
// @description
// @description ## Features
// @description - **Port ranges**: lists and ranges such as `22,80,8000-8010`, or the Quick and Full presets
// @description - **Probe strategies**: TCP connect and UDP datagram probes
// @description - **Service detection**: well-known port table plus banner grabbing
// @description - **Cancellation**: running scans can be cancelled by ID from any replica sharing a Redis registry
// @description - **Observability**: Prometheus metrics and structured logging
//
// @contact.name portscope maintainers
// @contact.url https://github.com/anstrom/portscope
//
// @license.name MIT
// @license.url https://github.com/anstrom/portscope/blob/main/LICENSE
//
// @host localhost:8080
// @BasePath /

// ScanRequest is the body of POST /api/scan.
type ScanRequest struct {
	Target         string   `json:"target" example:"scanme.nmap.org"`
	PortRange      string   `json:"portRange,omitempty" example:"22,80,8000-8010"`
	Protocol       string   `json:"protocol,omitempty" example:"TCP" enums:"TCP,UDP"`
	Timeout        *float64 `json:"timeout,omitempty" example:"1"`
	Threads        *int     `json:"threads,omitempty" example:"50"`
	ScanType       string   `json:"scanType,omitempty" example:"Quick" enums:"Quick,Full,Stealth,Custom"`
	AggressiveMode bool     `json:"aggressiveMode,omitempty" example:"false"`
	VerboseLevel   string   `json:"verboseLevel,omitempty" example:"Normal"`
	ScanID         string   `json:"scanId,omitempty" example:"5f0c6a4e-2b1d-4d38-9a0e-0b6f7c1e2d3a"`
}

// PortResult is the outcome of probing one port.
type PortResult struct {
	Port            int      `json:"port" example:"22"`
	Status          string   `json:"status" example:"open" enums:"open,closed,filtered,error"`
	Latency         *float64 `json:"latency" example:"1.25"`
	Protocol        string   `json:"protocol" example:"TCP"`
	DetectionMethod string   `json:"detectionMethod" example:"TCP Connect"`
	Service         string   `json:"service" example:"SSH"`
	Banner          string   `json:"banner" example:"SSH-2.0-OpenSSH_9.6"`
	TTL             *int     `json:"ttl"`
}

// LogLine is one scan log entry.
type LogLine struct {
	Timestamp string `json:"timestamp" example:"2026-10-19T12:00:00Z"`
	Level     string `json:"level" example:"OK" enums:"INFO,WARN,OK,ERROR"`
	Port      int    `json:"port" example:"22"`
	Message   string `json:"message" example:"Port 22/TCP open (SSH)"`
}

// ScanSummary holds the derived statistics of a scan.
type ScanSummary struct {
	ScanID         string  `json:"scanId" example:"5f0c6a4e-2b1d-4d38-9a0e-0b6f7c1e2d3a"`
	Target         string  `json:"target" example:"scanme.nmap.org"`
	Duration       float64 `json:"duration" example:"2.4"`
	OpenPorts      int     `json:"openPorts" example:"2"`
	PortsScanned   int     `json:"portsScanned" example:"13"`
	PortsCompleted int     `json:"portsCompleted" example:"13"`
	ScanType       string  `json:"scanType" example:"Quick"`
	AggressiveMode bool    `json:"aggressiveMode" example:"false"`
	VerboseLevel   string  `json:"verboseLevel" example:"Normal"`
	Cancelled      bool    `json:"cancelled" example:"false"`
}

// ScanReport is the body returned by POST /api/scan.
type ScanReport struct {
	Results []PortResult `json:"results"`
	Logs    []LogLine    `json:"logs"`
	Summary ScanSummary  `json:"summary"`
}

// CancelRequest is the body of POST /api/scan/cancel.
type CancelRequest struct {
	ScanID string `json:"scanId" example:"5f0c6a4e-2b1d-4d38-9a0e-0b6f7c1e2d3a"`
}

// CancelResponse acknowledges a cancellation.
type CancelResponse struct {
	Status string `json:"status" example:"cancelled"`
}

// ActiveScansResponse lists running scans.
type ActiveScansResponse struct {
	Scans []string `json:"scans"`
	Count int      `json:"count" example:"1"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string `json:"error" example:"Could not resolve host: nope.invalid"`
	Code      string `json:"code,omitempty" example:"HOST_UNRESOLVED"`
	RequestID string `json:"request_id,omitempty" example:"req_3f2a9c0d1b7e4a56"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string            `json:"status" example:"healthy"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime" example:"2h30m45s"`
	Checks    map[string]string `json:"checks"`
}

// VersionResponse represents version information
type VersionResponse struct {
	Version   string    `json:"version" example:"0.1.0"`
	Commit    string    `json:"commit" example:"abc1234"`
	BuildTime string    `json:"build_time"`
	GoVersion string    `json:"go_version" example:"go1.26.2"`
	Timestamp time.Time `json:"timestamp"`
}

// StartScan godoc
// @Summary Run a scan
// @Description Resolves the target, probes every port in the range and returns the aggregated report.
// @Description The request blocks until the scan finishes or is cancelled.
// @Tags Scans
// @Accept json
// @Produce json
// @Param request body ScanRequest true "Scan parameters"
// @Success 200 {object} ScanReport
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 415 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/scan [post]
// @ID startScan
func StartScan(_ http.ResponseWriter, _ *http.Request) {}

// CancelScan godoc
// @Summary Cancel a scan
// @Description Marks a scan as cancelled. Workers stop taking new ports and the scan returns a partial report.
// @Description Always acknowledged, including for unknown scan IDs.
// @Tags Scans
// @Accept json
// @Produce json
// @Param request body CancelRequest true "Scan to cancel"
// @Success 200 {object} CancelResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/scan/cancel [post]
// @ID cancelScan
func CancelScan(_ http.ResponseWriter, _ *http.Request) {}

// ActiveScans godoc
// @Summary List running scans
// @Tags Scans
// @Produce json
// @Success 200 {object} ActiveScansResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/scan/active [get]
// @ID listActiveScans
func ActiveScans(_ http.ResponseWriter, _ *http.Request) {}

// Health godoc
// @Summary Health check
// @Description Returns service health including cancellation registry connectivity
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Success 503 {object} HealthResponse
// @Router /api/v1/health [get]
// @ID getHealth
func Health(_ http.ResponseWriter, _ *http.Request) {}

// Version godoc
// @Summary Version information
// @Tags System
// @Produce json
// @Success 200 {object} VersionResponse
// @Router /api/v1/version [get]
// @ID getVersion
func Version(_ http.ResponseWriter, _ *http.Request) {}

// Metrics godoc
// @Summary Prometheus metrics
// @Tags System
// @Produce plain
// @Success 200 {string} string "Prometheus text exposition"
// @Router /metrics [get]
// @ID getMetrics
func Metrics(_ http.ResponseWriter, _ *http.Request) {}
