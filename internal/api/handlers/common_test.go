package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/portscope/internal/api/middleware"
	apierrors "github.com/anstrom/portscope/internal/errors"
)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func requestWithID(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "test-req-123"))
}

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		data       interface{}
		expected   string
	}{
		{"simple map", http.StatusOK, map[string]string{"status": "cancelled"}, `{"status":"cancelled"}`},
		{"created status", http.StatusCreated, []int{1, 2}, `[1,2]`},
		{"nil data", http.StatusOK, nil, `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeJSON(w, requestWithID("GET", "/", ""), tt.statusCode, tt.data)

			assert.Equal(t, tt.statusCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.expected, w.Body.String())
		})
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		expectedError string
		expectedCode  string
	}{
		{
			name:          "plain error",
			err:           fmt.Errorf("something broke"),
			expectedError: "something broke",
		},
		{
			name:          "unresolved host uses bare message",
			err:           apierrors.ErrHostUnresolved("nope.invalid", fmt.Errorf("no such host")),
			expectedError: "Could not resolve host: nope.invalid",
			expectedCode:  "HOST_UNRESOLVED",
		},
		{
			name:          "wrapped coded error",
			err:           fmt.Errorf("scan: %w", apierrors.ErrScanConflict("abc")),
			expectedError: "Scan abc is already running",
			expectedCode:  "CONFLICT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, requestWithID("POST", "/api/scan", ""), http.StatusBadRequest, tt.err)

			assert.Equal(t, http.StatusBadRequest, w.Code)

			var response ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.expectedError, response.Error)
			assert.Equal(t, tt.expectedCode, response.Code)
			assert.Equal(t, "test-req-123", response.RequestID)
		})
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{apierrors.NewScanError(apierrors.CodeValidation, "bad"), http.StatusBadRequest},
		{apierrors.ErrInvalidPortRange("10-1", "start greater than end"), http.StatusBadRequest},
		{apierrors.ErrHostUnresolved("x", nil), http.StatusBadRequest},
		{apierrors.ErrUnsupportedProtocol("SCTP"), http.StatusBadRequest},
		{apierrors.ErrScanConflict("abc"), http.StatusConflict},
		{apierrors.NewScanError(apierrors.CodeRegistryUnavailable, "down"), http.StatusServiceUnavailable},
		{apierrors.NewScanError(apierrors.CodeNotFound, "missing"), http.StatusNotFound},
		{apierrors.NewScanError(apierrors.CodeTimeout, "slow"), http.StatusGatewayTimeout},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(apierrors.GetCode(tt.err)), func(t *testing.T) {
			assert.Equal(t, tt.expected, statusForError(tt.err))
		})
	}
}

func TestParseJSON(t *testing.T) {
	type payload struct {
		Target string `json:"target"`
		Port   int    `json:"port"`
	}

	tests := []struct {
		name        string
		body        string
		maxSize     int64
		expectError string
		expected    payload
	}{
		{
			name:     "valid body",
			body:     `{"target":"localhost","port":80}`,
			expected: payload{Target: "localhost", Port: 80},
		},
		{
			name:     "unknown fields are ignored",
			body:     `{"target":"localhost","extra":true}`,
			expected: payload{Target: "localhost"},
		},
		{
			name:        "empty body",
			body:        "",
			expectError: "request body is empty",
		},
		{
			name:        "malformed JSON",
			body:        `{"target":`,
			expectError: "invalid JSON",
		},
		{
			name:        "wrong type",
			body:        `{"port":"eighty"}`,
			expectError: "invalid JSON",
		},
		{
			name:        "too large",
			body:        `{"target":"` + strings.Repeat("a", 200) + `"}`,
			maxSize:     64,
			expectError: "request body too large (max 64 bytes)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dest payload
			err := parseJSON(httptest.NewRecorder(), requestWithID("POST", "/api/scan", tt.body), &dest, tt.maxSize)

			if tt.expectError != "" {
				require.Error(t, err)
				assert.True(t, apierrors.IsCode(err, apierrors.CodeValidation))
				assert.Contains(t, err.Error(), tt.expectError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, dest)
		})
	}
}
