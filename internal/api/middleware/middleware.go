// Package middleware provides HTTP middleware functions for the portscope API
// server: request logging, metrics, panic recovery, and content-type and
// header handling.
package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/anstrom/portscope/internal/metrics"
)

// HTTP method constants
const (
	methodGET     = "GET"
	methodPOST    = "POST"
	methodPUT     = "PUT"
	methodDELETE  = "DELETE"
	methodOPTIONS = "OPTIONS"
)

// ContextKey represents a context key type.
type ContextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey ContextKey = "request_id"
	// StartTimeKey is the context key for request start time.
	StartTimeKey ContextKey = "start_time"
	// RequestIDHeader carries the request ID in requests and responses.
	RequestIDHeader = "X-Request-ID"
)

// RequestID assigns every request an ID, stores it in the request context
// and echoes it in the X-Request-ID response header. An incoming
// X-Request-ID header is reused.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, _ = withRequestID(w, r)
			next.ServeHTTP(w, r)
		})
	}
}

// withRequestID attaches a request ID to r unless one is already present.
func withRequestID(w http.ResponseWriter, r *http.Request) (*http.Request, string) {
	if requestID, ok := r.Context().Value(RequestIDKey).(string); ok && requestID != "" {
		return r, requestID
	}

	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = generateRequestID()
	}
	w.Header().Set(RequestIDHeader, requestID)
	return r.WithContext(context.WithValue(r.Context(), RequestIDKey, requestID)), requestID
}

// Logging creates a logging middleware that logs HTTP requests and responses.
// It reuses the ID set by RequestID and assigns one itself when used alone.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			r, requestID := withRequestID(w, r)
			r = r.WithContext(context.WithValue(r.Context(), StartTimeKey, start))

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			if logger != nil {
				logger.Info("HTTP request started",
					"request_id", requestID,
					"method", r.Method,
					"path", r.URL.Path,
					"query", r.URL.RawQuery,
					"remote_addr", getClientIP(r),
					"user_agent", r.UserAgent(),
					"content_length", r.ContentLength)
			}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			if logger != nil {
				logger.Info("HTTP request completed",
					"request_id", requestID,
					"method", r.Method,
					"path", r.URL.Path,
					"status_code", wrapped.statusCode,
					"response_size", wrapped.size,
					"duration_ms", duration.Milliseconds(),
					"remote_addr", getClientIP(r))
			}
		})
	}
}

// Metrics creates a metrics middleware that records every request on
// recorder. Requests are labelled with the route template rather than the
// raw path to keep label cardinality bounded.
func Metrics(recorder metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			if recorder != nil {
				recorder.HTTPRequest(r.Method, routePath(r), wrapped.statusCode,
					time.Since(start), wrapped.size)
			}
		})
	}
}

// routePath returns the matched mux route template, or the request path if
// no route is attached to the request.
func routePath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// Recovery creates a recovery middleware that catches panics.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					requestID := GetRequestID(r)
					stack := debug.Stack()

					logger.Error("HTTP request panic recovered",
						"request_id", requestID,
						"method", r.Method,
						"path", r.URL.Path,
						"panic", err,
						"stack", string(stack),
						"remote_addr", getClientIP(r))

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)

					response := map[string]interface{}{
						"error":      "Internal server error",
						"request_id": requestID,
						"timestamp":  time.Now().UTC(),
					}

					if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
						logger.Error("Failed to encode panic response", "error", encodeErr)
					}
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// ContentType creates a content type middleware that validates request content types.
func ContentType() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip content type validation for GET, DELETE, and OPTIONS requests
			if r.Method == methodGET || r.Method == methodDELETE || r.Method == methodOPTIONS {
				next.ServeHTTP(w, r)
				return
			}

			if r.Method == methodPOST || r.Method == methodPUT {
				contentType := r.Header.Get("Content-Type")
				if contentType != "" && !strings.HasPrefix(contentType, "application/json") {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnsupportedMediaType)

					response := map[string]interface{}{
						"error":      "Unsupported media type",
						"message":    "Content-Type must be application/json",
						"expected":   "application/json",
						"received":   contentType,
						"request_id": GetRequestID(r),
						"timestamp":  time.Now().UTC(),
					}
					_ = json.NewEncoder(w).Encode(response)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CORS creates a CORS middleware from the given origins, headers and
// methods using gorilla/handlers.
func CORS(origins, headers, methods []string) func(http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders(headers),
		handlers.AllowedMethods(methods),
		handlers.ExposedHeaders([]string{RequestIDHeader}),
		handlers.MaxAge(600),
	)
}

// Compression gzip-encodes responses for clients that accept it. Full-range
// scan reports are large and compress well.
func Compression() func(http.Handler) http.Handler {
	return handlers.CompressHandler
}

// RequestTimeout creates a request timeout middleware. A zero timeout
// disables it.
func RequestTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			r = r.WithContext(ctx)
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders adds common security headers.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture response information.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

// WriteHeader captures the status code.
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size.
func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// generateRequestID generates a unique request ID.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// GetRequestID extracts the request ID from context.
func GetRequestID(r *http.Request) string {
	return RequestIDFromContext(r.Context())
}

// RequestIDFromContext extracts the request ID stored by Logging.
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return "unknown"
}

// getClientIP extracts the real client IP address from the request.
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header first (for load balancers/proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ips := strings.Split(xff, ","); len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}

	return "unknown"
}
