package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/portscope/internal/api/handlers"
	"github.com/anstrom/portscope/internal/config"
	"github.com/anstrom/portscope/internal/metrics"
	"github.com/anstrom/portscope/internal/probe"
	"github.com/anstrom/portscope/internal/scanning"
)

// MockScanner is a testify mock of the scan service.
type MockScanner struct {
	mock.Mock
}

func (m *MockScanner) Scan(ctx context.Context, req scanning.Request) (*scanning.Report, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*scanning.Report), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockScanner) Cancel(ctx context.Context, scanID string) error {
	args := m.Called(ctx, scanID)
	return args.Error(0)
}

func (m *MockScanner) Active(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if ids := args.Get(0); ids != nil {
		return ids.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func createTestConfig() *config.Config {
	cfg := config.Default()
	cfg.API.ListenAddr = "127.0.0.1"
	cfg.API.Port = 0
	cfg.API.ShutdownTimeout = 5 * time.Second
	cfg.Logging.RequestLogging = false
	return cfg
}

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newTestServer(t *testing.T, scanner *MockScanner, pm *metrics.PrometheusMetrics) *Server {
	t.Helper()
	server, err := New(createTestConfig(), Dependencies{
		Scanner: scanner,
		Metrics: pm,
		Logger:  createTestLogger(),
	})
	require.NoError(t, err)
	return server
}

func TestNewServer(t *testing.T) {
	t.Run("requires config", func(t *testing.T) {
		_, err := New(nil, Dependencies{Scanner: &MockScanner{}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config is required")
	})

	t.Run("requires scanner", func(t *testing.T) {
		_, err := New(createTestConfig(), Dependencies{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scanner is required")
	})

	t.Run("uses configured address and timeouts", func(t *testing.T) {
		cfg := createTestConfig()
		cfg.API.Port = 9191
		cfg.API.ReadTimeout = 7 * time.Second

		server, err := New(cfg, Dependencies{Scanner: &MockScanner{}})
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1:9191", server.GetAddress())
		assert.Equal(t, 7*time.Second, server.httpServer.ReadTimeout)
		assert.NotNil(t, server.GetRouter())
		assert.NotNil(t, server.Handler())
		assert.False(t, server.IsRunning())
	})
}

func TestServerRoutes(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{"liveness", "GET", "/api/v1/liveness", http.StatusOK},
		{"health", "GET", "/api/v1/health", http.StatusOK},
		{"status", "GET", "/api/v1/status", http.StatusOK},
		{"version", "GET", "/api/v1/version", http.StatusOK},
		{"active scans", "GET", "/api/scan/active", http.StatusOK},
		{"index", "GET", "/", http.StatusOK},
		{"docs redirect", "GET", "/docs", http.StatusMovedPermanently},
		{"unknown route", "GET", "/api/v2/nothing", http.StatusNotFound},
		{"wrong method", "GET", "/api/scan", http.StatusMethodNotAllowed},
	}

	scanner := &MockScanner{}
	scanner.On("Active", mock.Anything).Return([]string{"scan-1"}, nil)
	server := newTestServer(t, scanner, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			server.Handler().ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, http.NoBody))
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestServerScanEndpoint(t *testing.T) {
	report := &scanning.Report{
		Results: []probe.Outcome{{Port: 22, Status: probe.StatusOpen, Protocol: probe.ProtocolTCP, Service: "SSH"}},
		Logs:    []scanning.LogLine{},
		Summary: scanning.Summary{ScanID: "abc", Target: "localhost", OpenPorts: 1, PortsScanned: 1, PortsCompleted: 1},
	}

	scanner := &MockScanner{}
	scanner.On("Scan", mock.Anything, mock.MatchedBy(func(req scanning.Request) bool {
		return req.Target == "localhost" && req.PortRange == "22" && req.ScanID == "abc"
	})).Return(report, nil)
	server := newTestServer(t, scanner, nil)

	body := `{"target":"localhost","portRange":"22","scanId":"abc"}`
	req := httptest.NewRequest("POST", "/api/scan", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	var got scanning.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "abc", got.Summary.ScanID)
	require.Len(t, got.Results, 1)
	assert.Equal(t, 22, got.Results[0].Port)
	scanner.AssertExpectations(t)
}

func TestServerErrorCarriesRequestID(t *testing.T) {
	server := newTestServer(t, &MockScanner{}, nil)

	req := httptest.NewRequest("POST", "/api/scan", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	requestID := w.Header().Get("X-Request-ID")
	require.NotEmpty(t, requestID)

	var body handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, requestID, body.RequestID)
}

func TestServerAppliesConfiguredScanDefaults(t *testing.T) {
	cfg := createTestConfig()
	cfg.Scanning.DefaultTimeout = 3 * time.Second
	cfg.Scanning.DefaultThreads = 7

	scanner := &MockScanner{}
	scanner.On("Scan", mock.Anything, mock.MatchedBy(func(req scanning.Request) bool {
		return req.Timeout == 3*time.Second && req.Threads == 7
	})).Return(&scanning.Report{}, nil)

	server, err := New(cfg, Dependencies{Scanner: scanner, Logger: createTestLogger()})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/scan", strings.NewReader(`{"target":"localhost"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	scanner.AssertExpectations(t)
}

func TestServerCancelEndpoint(t *testing.T) {
	scanner := &MockScanner{}
	scanner.On("Cancel", mock.Anything, "abc").Return(nil)
	server := newTestServer(t, scanner, nil)

	req := httptest.NewRequest("POST", "/api/scan/cancel", strings.NewReader(`{"scanId":"abc"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"cancelled"}`, w.Body.String())
	scanner.AssertExpectations(t)
}

func TestServerRejectsNonJSONBody(t *testing.T) {
	scanner := &MockScanner{}
	server := newTestServer(t, scanner, nil)

	req := httptest.NewRequest("POST", "/api/scan", strings.NewReader("target=localhost"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	scanner.AssertNotCalled(t, "Scan", mock.Anything, mock.Anything)
}

func TestServerCORSPreflight(t *testing.T) {
	server := newTestServer(t, &MockScanner{}, nil)

	req := httptest.NewRequest("OPTIONS", "/api/scan", http.NoBody)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServerCORSDisabled(t *testing.T) {
	cfg := createTestConfig()
	cfg.API.CORS.Enabled = false
	server, err := New(cfg, Dependencies{Scanner: &MockScanner{}, Logger: createTestLogger()})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/v1/liveness", http.NoBody)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServerMetricsEndpoint(t *testing.T) {
	t.Run("served when metrics are configured", func(t *testing.T) {
		pm := metrics.NewPrometheusMetrics()
		server := newTestServer(t, &MockScanner{}, pm)

		// Generate one request so the API counters have a sample.
		server.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/liveness", http.NoBody))

		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", http.NoBody))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "portscope_api_requests_total")
		assert.Contains(t, w.Body.String(), `path="/api/v1/liveness"`)
	})

	t.Run("absent without metrics", func(t *testing.T) {
		server := newTestServer(t, &MockScanner{}, nil)

		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", http.NoBody))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestServerIndex(t *testing.T) {
	server := newTestServer(t, &MockScanner{}, metrics.NewPrometheusMetrics())

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/", http.NoBody))

	require.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "portscope", response["service"])

	endpoints, ok := response["endpoints"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "POST /api/scan", endpoints["scan"])
	assert.Equal(t, "GET /metrics", endpoints["metrics"])
}

func TestServerStartStop(t *testing.T) {
	t.Run("start and stop server", func(t *testing.T) {
		server := newTestServer(t, &MockScanner{}, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		errChan := make(chan error, 1)
		go func() {
			errChan <- server.Start(ctx)
		}()

		require.Eventually(t, server.IsRunning, 2*time.Second, 10*time.Millisecond)

		resp, err := http.Get(fmt.Sprintf("http://%s/api/v1/liveness", server.GetAddress()))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		cancel()
		select {
		case err := <-errChan:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
		}
		assert.False(t, server.IsRunning())
	})

	t.Run("stop server that was never started", func(t *testing.T) {
		server := newTestServer(t, &MockScanner{}, nil)
		assert.NoError(t, server.Stop())
	})

	t.Run("multiple stop calls", func(t *testing.T) {
		server := newTestServer(t, &MockScanner{}, nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = server.Start(ctx) }()
		require.Eventually(t, server.IsRunning, 2*time.Second, 10*time.Millisecond)

		assert.NoError(t, server.Stop())
		assert.NoError(t, server.Stop())
	})

	t.Run("address in use", func(t *testing.T) {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer listener.Close()

		cfg := createTestConfig()
		cfg.API.Port = listener.Addr().(*net.TCPAddr).Port
		server, err := New(cfg, Dependencies{Scanner: &MockScanner{}, Logger: createTestLogger()})
		require.NoError(t, err)

		err = server.Start(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to listen")
		assert.False(t, server.IsRunning())
	})
}

func TestServerScanIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

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
	port := listener.Addr().(*net.TCPAddr).Port

	pm := metrics.NewPrometheusMetrics()
	orchestrator := scanning.NewOrchestrator(scanning.NewMemoryRegistry(), scanning.WithRecorder(pm))
	server, err := New(createTestConfig(), Dependencies{
		Scanner: orchestrator,
		Metrics: pm,
		Logger:  createTestLogger(),
	})
	require.NoError(t, err)

	body := fmt.Sprintf(`{"target":"127.0.0.1","portRange":"%d","timeout":1,"scanType":"Custom"}`, port)
	req := httptest.NewRequest("POST", "/api/scan", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report scanning.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	require.Len(t, report.Results, 1)
	assert.Equal(t, port, report.Results[0].Port)
	assert.Equal(t, probe.StatusOpen, report.Results[0].Status)
	assert.Equal(t, 1, report.Summary.OpenPorts)
	assert.False(t, report.Summary.Cancelled)

	active, err := orchestrator.Active(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)
}
