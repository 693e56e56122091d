// Package handlers provides HTTP request handlers for the portscope API.
// This file implements the scan endpoints: starting a synchronous scan,
// cancelling a running scan and listing running scans.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/anstrom/portscope/internal/api/middleware"
	"github.com/anstrom/portscope/internal/errors"
	"github.com/anstrom/portscope/internal/ports"
	"github.com/anstrom/portscope/internal/scanning"
)

// defaultMaxThreads caps the worker count when no limit is configured.
const defaultMaxThreads = 1000

// ScanService runs and cancels scans. It is satisfied by
// *scanning.Orchestrator.
type ScanService interface {
	Scan(ctx context.Context, req scanning.Request) (*scanning.Report, error)
	Cancel(ctx context.Context, scanID string) error
	Active(ctx context.Context) ([]string, error)
}

var _ ScanService = (*scanning.Orchestrator)(nil)

// ScanHandlerConfig bounds what clients may request and supplies the
// values used when a request omits them.
type ScanHandlerConfig struct {
	MaxThreads     int
	MaxRequestSize int64
	// DefaultTimeout and DefaultThreads apply when the request omits
	// timeout or threads. Zero leaves the orchestrator defaults.
	DefaultTimeout time.Duration
	DefaultThreads int
}

// ScanHandler handles scan-related API endpoints.
type ScanHandler struct {
	scanner   ScanService
	logger    *slog.Logger
	validator *validator.Validate
	config    ScanHandlerConfig
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(scanner ScanService, logger *slog.Logger, cfg ScanHandlerConfig) *ScanHandler {
	if cfg.MaxThreads <= 0 {
		cfg.MaxThreads = defaultMaxThreads
	}
	if cfg.MaxRequestSize <= 0 {
		cfg.MaxRequestSize = DefaultMaxRequestSize
	}
	return &ScanHandler{
		scanner:   scanner,
		logger:    logger.With("handler", "scan"),
		validator: validator.New(),
		config:    cfg,
	}
}

// ScanRequest is the body of POST /api/scan. Optional fields are pointers
// so an absent field can be told apart from a zero value.
type ScanRequest struct {
	Target         string   `json:"target" validate:"required,max=255" example:"scanme.nmap.org"`
	PortRange      string   `json:"portRange,omitempty" validate:"max=8192" example:"22,80,8000-8010"`
	Protocol       string   `json:"protocol,omitempty" example:"TCP"`
	Timeout        *float64 `json:"timeout,omitempty" validate:"omitempty,gt=0,lte=300" example:"1"`
	Threads        *int     `json:"threads,omitempty" validate:"omitempty,min=1" example:"50"`
	ScanType       string   `json:"scanType,omitempty" example:"Quick"`
	AggressiveMode bool     `json:"aggressiveMode,omitempty"`
	VerboseLevel   string   `json:"verboseLevel,omitempty" validate:"max=64" example:"Normal"`
	ScanID         string   `json:"scanId,omitempty" validate:"max=128"`
}

// CancelRequest is the body of POST /api/scan/cancel.
type CancelRequest struct {
	ScanID string `json:"scanId" example:"5f0c6a4e-2b1d-4d38-9a0e-0b6f7c1e2d3a"`
}

// CancelResponse acknowledges a cancel request.
type CancelResponse struct {
	Status string `json:"status" example:"cancelled"`
}

// ActiveScansResponse lists running scans.
type ActiveScansResponse struct {
	Scans []string `json:"scans"`
	Count int      `json:"count"`
}

// StartScan handles POST /api/scan. The scan runs for the lifetime of the
// request; a client that disconnects cancels it.
func (h *ScanHandler) StartScan(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r)

	var req ScanRequest
	if err := parseJSON(w, r, &req, h.config.MaxRequestSize); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	scanReq, err := h.toScanRequest(&req)
	if err != nil {
		writeError(w, r, statusForError(err), err)
		return
	}

	h.logger.Info("Starting scan",
		"request_id", requestID,
		"scan_id", scanReq.ScanID,
		"target", scanReq.Target,
		"scan_type", scanReq.ScanType,
		"protocol", scanReq.Protocol)

	report, err := h.scanner.Scan(r.Context(), scanReq)
	if err != nil {
		status := statusForError(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("Scan failed", "request_id", requestID, "target", scanReq.Target, "error", err)
		} else {
			h.logger.Warn("Scan rejected", "request_id", requestID, "target", scanReq.Target, "error", err)
		}
		writeError(w, r, status, err)
		return
	}

	h.logger.Info("Scan finished",
		"request_id", requestID,
		"scan_id", report.Summary.ScanID,
		"open_ports", report.Summary.OpenPorts,
		"ports_completed", report.Summary.PortsCompleted,
		"cancelled", report.Summary.Cancelled,
		"duration_s", report.Summary.Duration)

	writeJSON(w, r, http.StatusOK, report)
}

// CancelScan handles POST /api/scan/cancel. It acknowledges every
// well-formed request, including unknown and finished scan ids.
func (h *ScanHandler) CancelScan(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r)

	var req CancelRequest
	if err := parseJSON(w, r, &req, h.config.MaxRequestSize); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	scanID := strings.TrimSpace(req.ScanID)
	if scanID != "" {
		if err := h.scanner.Cancel(r.Context(), scanID); err != nil {
			h.logger.Warn("Failed to record scan cancellation",
				"request_id", requestID,
				"scan_id", scanID,
				"error", err)
		} else {
			h.logger.Info("Scan cancellation requested", "request_id", requestID, "scan_id", scanID)
		}
	}

	writeJSON(w, r, http.StatusOK, CancelResponse{Status: "cancelled"})
}

// ActiveScans handles GET /api/scan/active.
func (h *ScanHandler) ActiveScans(w http.ResponseWriter, r *http.Request) {
	ids, err := h.scanner.Active(r.Context())
	if err != nil {
		h.logger.Error("Failed to list active scans",
			"request_id", middleware.GetRequestID(r),
			"error", err)
		writeError(w, r, statusForError(err), err)
		return
	}
	if ids == nil {
		ids = []string{}
	}

	writeJSON(w, r, http.StatusOK, ActiveScansResponse{Scans: ids, Count: len(ids)})
}

// toScanRequest validates req and converts it for the orchestrator.
func (h *ScanHandler) toScanRequest(req *ScanRequest) (scanning.Request, error) {
	req.Target = strings.TrimSpace(req.Target)

	if err := h.validator.Struct(req); err != nil {
		return scanning.Request{}, errors.WrapScanError(errors.CodeValidation,
			fmt.Sprintf("request validation failed: %s", describeValidation(err)), err)
	}

	scanType, err := ports.ParseScanType(req.ScanType)
	if err != nil {
		return scanning.Request{}, errors.WrapScanError(errors.CodeValidation,
			fmt.Sprintf("invalid scanType %q: must be one of Quick, Full, Stealth, Custom", req.ScanType), err)
	}

	scanID := strings.TrimSpace(req.ScanID)
	if scanID == "" {
		scanID = uuid.NewString()
	}

	out := scanning.Request{
		ScanID:         scanID,
		Target:         req.Target,
		PortRange:      req.PortRange,
		Protocol:       req.Protocol,
		ScanType:       scanType,
		AggressiveMode: req.AggressiveMode,
		VerboseLevel:   req.VerboseLevel,
		Timeout:        h.config.DefaultTimeout,
		Threads:        h.config.DefaultThreads,
	}
	if req.Timeout != nil {
		out.Timeout = time.Duration(*req.Timeout * float64(time.Second))
	}
	if req.Threads != nil {
		if *req.Threads > h.config.MaxThreads {
			return scanning.Request{}, errors.NewScanError(errors.CodeValidation,
				fmt.Sprintf("threads must not exceed %d", h.config.MaxThreads))
		}
		out.Threads = *req.Threads
	}

	return out, nil
}

// describeValidation lists the failed field rules of a validator error.
func describeValidation(err error) string {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	parts := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, ", ")
}
