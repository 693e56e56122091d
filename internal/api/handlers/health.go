// Package handlers provides HTTP request handlers for the portscope API.
// This file implements health check and system status endpoints.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"
)

// Pinger is implemented by dependencies that can report their health, such
// as the Redis cancellation registry.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ActiveLister reports the scans currently running.
type ActiveLister interface {
	Active(ctx context.Context) ([]string, error)
}

// Timeout constants.
const (
	healthCheckTimeout = 5 * time.Second
	statusTimeout      = 10 * time.Second
)

// Status constants.
const (
	StatusHealthy       = "healthy"
	StatusUnhealthy     = "unhealthy"
	StatusDegraded      = "degraded"
	StatusNotConfigured = "not configured"
)

// HealthHandler handles health check and status endpoints.
type HealthHandler struct {
	registry  Pinger
	scans     ActiveLister
	logger    *slog.Logger
	startTime time.Time
}

// NewHealthHandler creates a new health handler. registry and scans may be
// nil; an in-memory registry has nothing to ping.
func NewHealthHandler(registry Pinger, scans ActiveLister, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		registry:  registry,
		scans:     scans,
		logger:    logger.With("handler", "health"),
		startTime: time.Now(),
	}
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string            `json:"status" example:"healthy"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime" example:"2h30m45s"`
	Checks    map[string]string `json:"checks"`
}

// LivenessResponse represents a simple liveness check response.
type LivenessResponse struct {
	Status    string    `json:"status" example:"alive"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

// StatusResponse represents a detailed status response.
type StatusResponse struct {
	Service     ServiceInfo    `json:"service"`
	System      SystemInfo     `json:"system"`
	ActiveScans int            `json:"active_scans"`
	Health      HealthResponse `json:"health"`
	Timestamp   time.Time      `json:"timestamp"`
}

// ServiceInfo contains service-related information.
type ServiceInfo struct {
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	StartTime time.Time `json:"start_time"`
	Uptime    string    `json:"uptime"`
	PID       int       `json:"pid"`
}

// SystemInfo contains system-related information.
type SystemInfo struct {
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	CPUs         int    `json:"cpus"`
	GoVersion    string `json:"go_version"`
	Goroutines   int    `json:"goroutines"`
	HeapAlloc    uint64 `json:"heap_alloc_bytes"`
}

// VersionResponse represents version information.
type VersionResponse struct {
	Version   string    `json:"version" example:"0.3.0"`
	Commit    string    `json:"commit"`
	BuildTime string    `json:"build_time"`
	GoVersion string    `json:"go_version"`
	Timestamp time.Time `json:"timestamp"`
}

// Health performs a health check of the registry backend.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	h.logger.Debug("Health check requested", "remote_addr", r.RemoteAddr)

	response := h.checkHealth(ctx)

	statusCode := http.StatusOK
	if response.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, r, statusCode, response)
}

// Liveness performs a simple liveness check without dependencies.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Liveness check requested", "remote_addr", r.RemoteAddr)

	writeJSON(w, r, http.StatusOK, LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).String(),
	})
}

// Status provides service, runtime and scan information.
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
	defer cancel()

	h.logger.Debug("Status check requested", "remote_addr", r.RemoteAddr)

	response := StatusResponse{
		Service: ServiceInfo{
			Name:      "portscope",
			Version:   getVersion(),
			StartTime: h.startTime,
			Uptime:    time.Since(h.startTime).String(),
			PID:       os.Getpid(),
		},
		System:    getSystemInfo(),
		Health:    h.checkHealth(ctx),
		Timestamp: time.Now().UTC(),
	}

	if h.scans != nil {
		if ids, err := h.scans.Active(ctx); err == nil {
			response.ActiveScans = len(ids)
		} else {
			h.logger.Warn("Failed to count active scans", "error", err)
		}
	}

	writeJSON(w, r, http.StatusOK, response)
}

// Version provides version information.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Version requested", "remote_addr", r.RemoteAddr)

	writeJSON(w, r, http.StatusOK, VersionResponse{
		Version:   getVersion(),
		Commit:    getCommit(),
		BuildTime: getBuildTime(),
		GoVersion: runtime.Version(),
		Timestamp: time.Now().UTC(),
	})
}

// checkHealth pings the registry and inspects the runtime.
func (h *HealthHandler) checkHealth(ctx context.Context) HealthResponse {
	response := HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).String(),
		Checks:    make(map[string]string),
	}

	if h.registry != nil {
		if err := h.registry.Ping(ctx); err != nil {
			response.Status = StatusUnhealthy
			response.Checks["registry"] = "failed: " + err.Error()
			h.logger.Warn("Registry health check failed", "error", err)
		} else {
			response.Checks["registry"] = "ok"
		}
	} else {
		response.Checks["registry"] = StatusNotConfigured
	}

	// Each running scan may hold up to max_threads worker goroutines.
	const maxGoroutines = 10000
	if runtime.NumGoroutine() > maxGoroutines {
		if response.Status == StatusHealthy {
			response.Status = StatusDegraded
		}
		response.Checks["goroutines"] = "high count"
	} else {
		response.Checks["goroutines"] = "ok"
	}

	return response
}

// getSystemInfo gathers runtime information.
func getSystemInfo() SystemInfo {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return SystemInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		CPUs:         runtime.NumCPU(),
		GoVersion:    runtime.Version(),
		Goroutines:   runtime.NumGoroutine(),
		HeapAlloc:    memStats.HeapAlloc,
	}
}

// Build information, set via ldflags through SetBuildInfo.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func getVersion() string {
	return version
}

func getCommit() string {
	return commit
}

func getBuildTime() string {
	return buildTime
}

// SetBuildInfo sets build information (called by main package).
func SetBuildInfo(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
}
