package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// ServiceName is the name used for health reporting
	ServiceName = "railmap"
)

var (
	// Map synchronisation metrics
	SyncsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "railmap_syncs_total",
			Help: "Total number of viewport synchronisations started",
		},
	)

	ViewportChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "railmap_viewport_checks_total",
			Help: "Viewport change checks by outcome (changed, unchanged)",
		},
		[]string{"outcome"},
	)

	LayerInstallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "railmap_layer_installs_total",
			Help: "Total number of overlay layers installed",
		},
		[]string{"kind"},
	)

	LayerFeatures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "railmap_layer_features",
			Help: "Number of features in the currently attached overlay",
		},
		[]string{"kind"},
	)

	LayerFetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "railmap_layer_fetch_failures_total",
			Help: "Layer fetches that failed, by kind and error kind",
		},
		[]string{"kind", "error_kind"},
	)

	StaleResponsesDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "railmap_stale_responses_discarded_total",
			Help: "Layer responses discarded because a newer sync was issued",
		},
		[]string{"kind"},
	)

	// Correction metrics
	CorrectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "railmap_corrections_total",
			Help: "Correction workflow outcomes (confirmed, failed, cancelled, invalid)",
		},
		[]string{"outcome"},
	)

	ActiveDrafts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "railmap_active_drafts",
			Help: "Number of correction drafts awaiting input or submitting",
		},
	)

	// MCP request metrics
	MCPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "railmap_mcp_requests_total",
			Help: "Total number of MCP requests processed",
		},
		[]string{"tool", "status"},
	)

	MCPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "railmap_mcp_request_duration_seconds",
			Help:    "MCP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"tool"},
	)

	// External service metrics
	ExternalServiceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "railmap_external_service_requests_total",
			Help: "Total number of geo server requests",
		},
		[]string{"service", "operation", "status"},
	)

	ExternalServiceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "railmap_external_service_request_duration_seconds",
			Help:    "Geo server request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"service", "operation"},
	)

	RateLimitWaitTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "railmap_rate_limit_wait_duration_seconds",
			Help:    "Time spent waiting for the outbound rate limiter",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"service"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "railmap_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "railmap_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "railmap_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "railmap_system_info",
			Help: "System information",
		},
		[]string{"version", "go_version", "build_commit", "build_date"},
	)

	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "railmap_goroutines",
			Help: "Number of goroutines",
		},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "railmap_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)
)

// ServiceHealth is the body served by the health endpoint
type ServiceHealth struct {
	Service       string                 `json:"service"`
	Version       string                 `json:"version"`
	Status        string                 `json:"status"` // "healthy", "degraded", "unhealthy"
	UptimeSeconds int64                  `json:"uptime_seconds"`
	StartTime     time.Time              `json:"start_time"`
	Connections   map[string]ConnStatus  `json:"connections"`
	Metrics       map[string]interface{} `json:"metrics,omitempty"`
}

// ConnStatus is the last observed state of an upstream connection
type ConnStatus struct {
	Status    string `json:"status"` // "connected", "degraded", "error"
	Latency   int64  `json:"latency_ms,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordViewportCheck counts a change-detector decision
func RecordViewportCheck(changed bool) {
	if changed {
		ViewportChecksTotal.WithLabelValues("changed").Inc()
		return
	}
	ViewportChecksTotal.WithLabelValues("unchanged").Inc()
}

// RecordLayerInstall counts an installed overlay and records its size
func RecordLayerInstall(kind string, features int) {
	LayerInstallsTotal.WithLabelValues(kind).Inc()
	LayerFeatures.WithLabelValues(kind).Set(float64(features))
}

// RecordLayerFetchFailure counts a failed layer fetch
func RecordLayerFetchFailure(kind, errorKind string) {
	LayerFetchFailures.WithLabelValues(kind, errorKind).Inc()
}

// RecordStaleResponse counts a discarded out-of-date layer response
func RecordStaleResponse(kind string) {
	StaleResponsesDiscarded.WithLabelValues(kind).Inc()
}

// RecordCorrection counts a correction workflow outcome
func RecordCorrection(outcome string) {
	CorrectionsTotal.WithLabelValues(outcome).Inc()
}

// RecordMCPRequest records a tool call
func RecordMCPRequest(tool string, duration time.Duration, success bool) {
	MCPRequestsTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	MCPRequestDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordExternalServiceRequest records a completed geo server request
func RecordExternalServiceRequest(service, operation string, duration time.Duration, success bool) {
	ExternalServiceRequestsTotal.WithLabelValues(service, operation, statusLabel(success)).Inc()
	ExternalServiceRequestDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordRateLimitWait records time spent blocked on the rate limiter
func RecordRateLimitWait(service string, duration time.Duration) {
	RateLimitWaitTime.WithLabelValues(service).Observe(duration.Seconds())
}

func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
