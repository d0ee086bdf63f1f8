package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/railmap/pkg/monitoring"
	"github.com/NERVsystems/railmap/pkg/tools"
	"github.com/NERVsystems/railmap/pkg/tracing"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// NewHandler returns the monitoring HTTP handler: Prometheus metrics, health
// probes and a read-only view of the map state.
func NewHandler(logger *slog.Logger, health *monitoring.HealthChecker, registry *tools.Registry) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &stateHandler{logger: logger, registry: registry}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", health.HealthHandler())
	mux.HandleFunc("/ready", health.ReadinessHandler())
	mux.HandleFunc("/live", health.LivenessHandler())
	mux.HandleFunc("/state", h.handleState)

	return SecurityHeaders(TracingMiddleware()(LoggingMiddleware(logger)(mux)))
}

type stateHandler struct {
	logger   *slog.Logger
	registry *tools.Registry
}

// handleState serves the get_map_state tool result as JSON
func (h *stateHandler) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	handler, ok := h.registry.Lookup("get_map_state")
	if !ok {
		http.Error(w, "map state unavailable", http.StatusServiceUnavailable)
		return
	}

	var req mcp.CallToolRequest
	req.Params.Name = "get_map_state"
	result, err := handler(r.Context(), req)
	if err != nil {
		h.logger.Error("map state failed", "error", err)
		http.Error(w, "map state failed", http.StatusInternalServerError)
		return
	}

	var content string
	for _, c := range result.Content {
		if t, ok := c.(mcp.TextContent); ok {
			content = t.Text
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	status := http.StatusOK
	if result.IsError {
		status = http.StatusInternalServerError
	}
	w.WriteHeader(status)
	if _, err := w.Write([]byte(content)); err != nil {
		h.logger.Error("failed to write state response", "error", err)
	}
}

// SecurityHeaders sets conservative response headers
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newResponseWriter(w)

			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = generateRequestID()
			}
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey, reqID))

			next.ServeHTTP(wrapped, r)

			// Only map state requests are logged at info level
			level := slog.LevelInfo
			if r.URL.Path != "/state" {
				level = slog.LevelDebug
			}
			logger.Log(r.Context(), level, "http request",
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration", time.Since(start),
				"bytes", wrapped.bytesWritten)
		})
	}
}

// TracingMiddleware adds OpenTelemetry tracing to HTTP requests
func TracingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.StartSpan(r.Context(), r.Method+" "+r.URL.Path,
				trace.WithAttributes(
					attribute.String(tracing.AttrHTTPMethod, r.Method),
					attribute.String(tracing.AttrHTTPPath, r.URL.Path),
				),
			)
			defer span.End()

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			span.SetAttributes(
				attribute.Int(tracing.AttrHTTPStatusCode, wrapped.statusCode),
				attribute.Int64("http.response.size", wrapped.bytesWritten),
			)
			if wrapped.statusCode >= 400 {
				span.SetStatus(codes.Error, http.StatusText(wrapped.statusCode))
			} else {
				span.SetStatus(codes.Ok, "")
			}
		})
	}
}

// responseWriter captures the status code and bytes written
type responseWriter struct {
	http.ResponseWriter
	statusCode    int
	bytesWritten  int64
	headerWritten bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.headerWritten {
		rw.statusCode = code
		rw.headerWritten = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.headerWritten {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Flush implements the http.Flusher interface
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// generateRequestID generates a time-based request ID
func generateRequestID() string {
	return time.Now().Format("20060102150405.000000000")
}
