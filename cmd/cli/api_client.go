// This file implements the HTTP client used by CLI commands that talk to a
// running portscope server.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/anstrom/portscope/internal/api/handlers"
	"github.com/anstrom/portscope/internal/scanning"
)

const (
	defaultClientTimeout = 30 * time.Second
	userAgent            = "portscope-cli/1.0"
)

// APIClient calls the portscope HTTP API.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// APIError represents an API error response
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	RequestID  string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("API error (status %d, request %s): %s", e.StatusCode, e.RequestID, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// NewAPIClient creates a client for the server at baseURL. A bare host:port
// is treated as plain HTTP. A zero timeout means no client-side limit,
// which suits long scans.
func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}

	return &APIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		userAgent: userAgent,
	}
}

// StartScan submits req and blocks until the server returns the report.
// Cancelling ctx drops the connection, which cancels the scan server-side.
func (c *APIClient) StartScan(ctx context.Context, req handlers.ScanRequest) (*scanning.Report, error) {
	var report scanning.Report
	if err := c.request(ctx, "POST", "/api/scan", req, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// CancelScan asks the server to cancel scanID.
func (c *APIClient) CancelScan(ctx context.Context, scanID string) error {
	var resp handlers.CancelResponse
	return c.request(ctx, "POST", "/api/scan/cancel", handlers.CancelRequest{ScanID: scanID}, &resp)
}

// ActiveScans lists the scans running on the server.
func (c *APIClient) ActiveScans(ctx context.Context) ([]string, error) {
	var resp handlers.ActiveScansResponse
	if err := c.request(ctx, "GET", "/api/scan/active", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Scans, nil
}

// TestConnection checks that the server is alive.
func (c *APIClient) TestConnection(ctx context.Context) error {
	var resp handlers.LivenessResponse
	if err := c.request(ctx, "GET", "/api/v1/liveness", nil, &resp); err != nil {
		return fmt.Errorf("API connection test failed: %w", err)
	}
	return nil
}

// request performs the HTTP request and decodes a successful body into out.
func (c *APIClient) request(ctx context.Context, method, endpoint string, payload, out interface{}) error {
	url := c.baseURL + endpoint

	// Prepare request body
	var requestBody io.Reader = http.NoBody
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request payload: %w", err)
		}
		requestBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, requestBody)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp handlers.ErrorResponse
		if len(bodyBytes) > 0 {
			if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
				// If JSON parsing fails, treat as plain text error
				errResp.Error = strings.TrimSpace(string(bodyBytes))
			}
		}
		if errResp.Error == "" {
			errResp.Error = fmt.Sprintf("HTTP %d error", resp.StatusCode)
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    errResp.Error,
			Code:       errResp.Code,
			RequestID:  errResp.RequestID,
		}
	}

	if out == nil || len(bodyBytes) == 0 {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// handleAPIError provides user-friendly error handling for API errors
func handleAPIError(err error, operation string) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		fmt.Fprintf(os.Stderr, "Error: %s failed: %v\n", operation, err)
		return
	}

	switch apiErr.StatusCode {
	case http.StatusBadRequest:
		fmt.Fprintf(os.Stderr, "Error: %s\n", apiErr.Message)
	case http.StatusConflict:
		fmt.Fprintf(os.Stderr, "Error: %s\n", apiErr.Message)
		fmt.Fprintf(os.Stderr, "Choose another --scan-id or cancel the running scan first.\n")
	case http.StatusServiceUnavailable:
		fmt.Fprintf(os.Stderr, "Error: server unavailable during %s: %s\n", operation, apiErr.Message)
	case http.StatusInternalServerError:
		fmt.Fprintf(os.Stderr, "Error: Server error during %s\n", operation)
		if apiErr.RequestID != "" {
			fmt.Fprintf(os.Stderr, "Please report this issue with request ID: %s\n", apiErr.RequestID)
		}
	default:
		fmt.Fprintf(os.Stderr, "Error: %s failed: %s\n", operation, apiErr.Message)
	}
}
