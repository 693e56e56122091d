package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "github.com/anstrom/portscope/internal/errors"
	"github.com/anstrom/portscope/internal/ports"
	"github.com/anstrom/portscope/internal/probe"
	"github.com/anstrom/portscope/internal/scanning"
)

// MockScanService is a mock implementation of ScanService.
type MockScanService struct {
	mock.Mock
}

func (m *MockScanService) Scan(ctx context.Context, req scanning.Request) (*scanning.Report, error) {
	args := m.Called(ctx, req)
	if report, ok := args.Get(0).(*scanning.Report); ok {
		return report, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockScanService) Cancel(ctx context.Context, scanID string) error {
	args := m.Called(ctx, scanID)
	return args.Error(0)
}

func (m *MockScanService) Active(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if ids, ok := args.Get(0).([]string); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestScanHandler(svc ScanService) *ScanHandler {
	return NewScanHandler(svc, createTestLogger(), ScanHandlerConfig{MaxThreads: 200})
}

func sampleReport(scanID string) *scanning.Report {
	return scanning.Aggregate(scanning.Request{
		ScanID:       scanID,
		Target:       "localhost",
		ScanType:     ports.ScanQuick,
		VerboseLevel: "Normal",
	}, &scanning.Run{
		ScanID: scanID,
		Outcomes: []probe.Outcome{
			{Port: 80, Status: probe.StatusOpen, Protocol: "TCP", DetectionMethod: probe.MethodTCPConnect},
			{Port: 22, Status: probe.StatusClosed, Protocol: "TCP", DetectionMethod: probe.MethodTCPConnect},
		},
		Dispatched: 2,
		Duration:   150 * time.Millisecond,
	})
}

func TestNewScanHandler_Defaults(t *testing.T) {
	handler := NewScanHandler(&MockScanService{}, createTestLogger(), ScanHandlerConfig{})

	assert.Equal(t, defaultMaxThreads, handler.config.MaxThreads)
	assert.Equal(t, int64(DefaultMaxRequestSize), handler.config.MaxRequestSize)
	assert.NotNil(t, handler.validator)
}

func TestScanHandler_StartScan(t *testing.T) {
	svc := &MockScanService{}
	svc.On("Scan", mock.Anything, mock.MatchedBy(func(req scanning.Request) bool {
		return req.ScanID == "scan-1" &&
			req.Target == "localhost" &&
			req.PortRange == "22,80" &&
			req.Protocol == "TCP" &&
			req.Timeout == 500*time.Millisecond &&
			req.Threads == 10 &&
			req.ScanType == ports.ScanCustom &&
			req.AggressiveMode &&
			req.VerboseLevel == "Debug"
	})).Return(sampleReport("scan-1"), nil)

	body := `{"target":" localhost ","portRange":"22,80","protocol":"TCP","timeout":0.5,"threads":10,` +
		`"scanType":"custom","aggressiveMode":true,"verboseLevel":"Debug","scanId":"scan-1","extra":"ignored"}`

	w := httptest.NewRecorder()
	newTestScanHandler(svc).StartScan(w, requestWithID("POST", "/api/scan", body))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	svc.AssertExpectations(t)

	var report scanning.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.Len(t, report.Results, 2)
	assert.Equal(t, 22, report.Results[0].Port)
	assert.Equal(t, 80, report.Results[1].Port)
	assert.Equal(t, 1, report.Summary.OpenPorts)
	assert.Equal(t, "scan-1", report.Summary.ScanID)
}

func TestScanHandler_StartScan_Defaults(t *testing.T) {
	svc := &MockScanService{}
	svc.On("Scan", mock.Anything, mock.MatchedBy(func(req scanning.Request) bool {
		return req.ScanID != "" &&
			req.Target == "example.test" &&
			req.Timeout == 0 &&
			req.Threads == 0 &&
			req.ScanType == ports.ScanQuick
	})).Return(sampleReport("generated"), nil)

	w := httptest.NewRecorder()
	newTestScanHandler(svc).StartScan(w, requestWithID("POST", "/api/scan", `{"target":"example.test"}`))

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestScanHandler_StartScan_ConfiguredDefaults(t *testing.T) {
	cfg := ScanHandlerConfig{MaxThreads: 200, DefaultTimeout: 3 * time.Second, DefaultThreads: 7}

	tests := []struct {
		name            string
		body            string
		expectedTimeout time.Duration
		expectedThreads int
	}{
		{
			name:            "omitted fields use configured defaults",
			body:            `{"target":"example.test"}`,
			expectedTimeout: 3 * time.Second,
			expectedThreads: 7,
		},
		{
			name:            "explicit fields win",
			body:            `{"target":"example.test","timeout":0.5,"threads":20}`,
			expectedTimeout: 500 * time.Millisecond,
			expectedThreads: 20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockScanService{}
			svc.On("Scan", mock.Anything, mock.MatchedBy(func(req scanning.Request) bool {
				return req.Timeout == tt.expectedTimeout && req.Threads == tt.expectedThreads
			})).Return(sampleReport("configured"), nil)

			w := httptest.NewRecorder()
			NewScanHandler(svc, createTestLogger(), cfg).StartScan(w, requestWithID("POST", "/api/scan", tt.body))

			assert.Equal(t, http.StatusOK, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestScanHandler_StartScan_ValidationErrors(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		errorContains string
	}{
		{"missing target", `{"portRange":"80"}`, "Target failed required"},
		{"blank target", `{"target":"   "}`, "Target failed required"},
		{"negative timeout", `{"target":"h","timeout":-1}`, "Timeout failed gt"},
		{"timeout too large", `{"target":"h","timeout":301}`, "Timeout failed lte"},
		{"negative threads", `{"target":"h","threads":-4}`, "Threads failed min"},
		{"threads above limit", `{"target":"h","threads":201}`, "threads must not exceed 200"},
		{"unknown scan type", `{"target":"h","scanType":"Ninja"}`, `invalid scanType "Ninja"`},
		{"malformed JSON", `{"target":`, "invalid JSON"},
		{"empty body", ``, "request body is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockScanService{}

			w := httptest.NewRecorder()
			newTestScanHandler(svc).StartScan(w, requestWithID("POST", "/api/scan", tt.body))

			assert.Equal(t, http.StatusBadRequest, w.Code)

			var response ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Contains(t, response.Error, tt.errorContains)
			assert.Equal(t, string(apierrors.CodeValidation), response.Code)

			svc.AssertNotCalled(t, "Scan", mock.Anything, mock.Anything)
		})
	}
}

func TestScanHandler_StartScan_ServiceErrors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "unresolved host",
			err:            apierrors.ErrHostUnresolved("nope.invalid", fmt.Errorf("no such host")),
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Could not resolve host: nope.invalid",
		},
		{
			name:           "invalid port range",
			err:            apierrors.ErrInvalidPortRange("100-1", "start is greater than end"),
			expectedStatus: http.StatusBadRequest,
			expectedError:  `Invalid port range "100-1": start is greater than end`,
		},
		{
			name:           "duplicate scan id",
			err:            apierrors.ErrScanConflict("dup"),
			expectedStatus: http.StatusConflict,
			expectedError:  "Scan dup is already running",
		},
		{
			name:           "registry down",
			err:            apierrors.NewScanError(apierrors.CodeRegistryUnavailable, "registry unavailable"),
			expectedStatus: http.StatusServiceUnavailable,
			expectedError:  "registry unavailable",
		},
		{
			name:           "unexpected failure",
			err:            fmt.Errorf("boom"),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockScanService{}
			svc.On("Scan", mock.Anything, mock.Anything).Return(nil, tt.err)

			w := httptest.NewRecorder()
			newTestScanHandler(svc).StartScan(w, requestWithID("POST", "/api/scan", `{"target":"h"}`))

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.expectedError, response.Error)
		})
	}
}

func TestScanHandler_CancelScan(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(*MockScanService)
		expectCall bool
	}{
		{
			name: "known scan",
			body: `{"scanId":"scan-1"}`,
			setup: func(m *MockScanService) {
				m.On("Cancel", mock.Anything, "scan-1").Return(nil)
			},
			expectCall: true,
		},
		{
			name: "unknown scan",
			body: `{"scanId":"never-started"}`,
			setup: func(m *MockScanService) {
				m.On("Cancel", mock.Anything, "never-started").Return(nil)
			},
			expectCall: true,
		},
		{
			name: "registry failure still acknowledged",
			body: `{"scanId":"scan-2"}`,
			setup: func(m *MockScanService) {
				m.On("Cancel", mock.Anything, "scan-2").
					Return(apierrors.NewScanError(apierrors.CodeRegistryUnavailable, "down"))
			},
			expectCall: true,
		},
		{
			name:  "missing scan id",
			body:  `{}`,
			setup: func(*MockScanService) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockScanService{}
			tt.setup(svc)

			w := httptest.NewRecorder()
			newTestScanHandler(svc).CancelScan(w, requestWithID("POST", "/api/scan/cancel", tt.body))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"status":"cancelled"}`, w.Body.String())

			if tt.expectCall {
				svc.AssertExpectations(t)
			} else {
				svc.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestScanHandler_CancelScan_MalformedBody(t *testing.T) {
	svc := &MockScanService{}

	w := httptest.NewRecorder()
	newTestScanHandler(svc).CancelScan(w, requestWithID("POST", "/api/scan/cancel", `not json`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
}

func TestScanHandler_ActiveScans(t *testing.T) {
	t.Run("lists running scans", func(t *testing.T) {
		svc := &MockScanService{}
		svc.On("Active", mock.Anything).Return([]string{"a", "b"}, nil)

		w := httptest.NewRecorder()
		newTestScanHandler(svc).ActiveScans(w, requestWithID("GET", "/api/scan/active", ""))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"scans":["a","b"],"count":2}`, w.Body.String())
	})

	t.Run("empty list", func(t *testing.T) {
		svc := &MockScanService{}
		svc.On("Active", mock.Anything).Return(nil, nil)

		w := httptest.NewRecorder()
		newTestScanHandler(svc).ActiveScans(w, requestWithID("GET", "/api/scan/active", ""))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"scans":[],"count":0}`, w.Body.String())
	})

	t.Run("registry failure", func(t *testing.T) {
		svc := &MockScanService{}
		svc.On("Active", mock.Anything).
			Return(nil, apierrors.NewScanError(apierrors.CodeRegistryUnavailable, "down"))

		w := httptest.NewRecorder()
		newTestScanHandler(svc).ActiveScans(w, requestWithID("GET", "/api/scan/active", ""))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestScanHandler_StartScan_Integration(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	openPort := listener.Addr().(*net.TCPAddr).Port

	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := closed.Addr().(*net.TCPAddr).Port
	require.NoError(t, closed.Close())

	orchestrator := scanning.NewOrchestrator(scanning.NewMemoryRegistry())
	handler := newTestScanHandler(orchestrator)

	body := fmt.Sprintf(`{"target":"127.0.0.1","portRange":"%d,%d","scanType":"Custom","timeout":1,"threads":2}`,
		closedPort, openPort)

	w := httptest.NewRecorder()
	handler.StartScan(w, requestWithID("POST", "/api/scan", body))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report scanning.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))

	statuses := make(map[int]probe.Status)
	for _, o := range report.Results {
		statuses[o.Port] = o.Status
	}
	assert.Equal(t, probe.StatusOpen, statuses[openPort], "port "+strconv.Itoa(openPort))
	assert.Equal(t, probe.StatusClosed, statuses[closedPort], "port "+strconv.Itoa(closedPort))
	assert.Equal(t, 1, report.Summary.OpenPorts)
	assert.Equal(t, 2, report.Summary.PortsScanned)
	assert.False(t, report.Summary.Cancelled)

	require.NotEmpty(t, report.Logs)
	assert.Equal(t, "Scan type: Custom", report.Logs[0].Message)

	ids, err := orchestrator.Active(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
