package monitoring

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/NERVsystems/railmap/pkg/version"
)

// Health states
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthChecker tracks the state of upstream connections
type HealthChecker struct {
	serviceName string
	version     string
	startTime   time.Time
	mu          sync.RWMutex
	connections map[string]ConnStatus
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewHealthChecker creates a new health checker instance and starts
// collecting runtime metrics in the background
func NewHealthChecker(serviceName, version string) *HealthChecker {
	ctx, cancel := context.WithCancel(context.Background())

	hc := &HealthChecker{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		connections: make(map[string]ConnStatus),
		ctx:         ctx,
		cancel:      cancel,
	}

	go hc.collectSystemMetrics()

	return hc
}

// UpdateConnection records the outcome of the latest check of a connection
func (h *HealthChecker) UpdateConnection(name, status string, latencyMs int64, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cs := ConnStatus{Status: status, Latency: latencyMs}
	if err != nil {
		cs.LastError = err.Error()
	}
	h.connections[name] = cs
}

// GetHealth returns the current health status
func (h *HealthChecker) GetHealth() ServiceHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	errorCount := 0
	degradedCount := 0
	connections := make(map[string]ConnStatus, len(h.connections))
	for name, conn := range h.connections {
		connections[name] = conn
		switch conn.Status {
		case "error", "disconnected":
			errorCount++
		case "degraded":
			degradedCount++
		}
	}

	// The geo server is the only hard dependency, so any failing
	// connection makes the client unable to sync
	status := StatusHealthy
	switch {
	case errorCount > 0:
		status = StatusUnhealthy
	case degradedCount > 0:
		status = StatusDegraded
	}

	return ServiceHealth{
		Service:       h.serviceName,
		Version:       h.version,
		Status:        status,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		StartTime:     h.startTime,
		Connections:   connections,
		Metrics: map[string]interface{}{
			"goroutines":   runtime.NumGoroutine(),
			"version_info": version.Info(),
		},
	}
}

// HealthHandler returns an HTTP handler for health checks
func (h *HealthChecker) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()

		w.Header().Set("Content-Type", "application/json")
		if health.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		if err := json.NewEncoder(w).Encode(health); err != nil {
			slog.Default().Error("failed to encode health response", "error", err)
		}
	}
}

// ReadinessHandler reports whether the client can currently reach the geo server
func (h *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()
		ready := health.Status != StatusUnhealthy

		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"ready":  ready,
			"status": health.Status,
		})
	}
}

// LivenessHandler always answers while the process runs
func (h *HealthChecker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).String(),
		})
	}
}

// collectSystemMetrics periodically updates runtime gauges
func (h *HealthChecker) collectSystemMetrics() {
	h.updateSystemMetrics()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.updateSystemMetrics()
		}
	}
}

func (h *HealthChecker) updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	GoRoutines.Set(float64(runtime.NumGoroutine()))
	MemoryUsage.Set(float64(m.Alloc))

	info := version.Info()
	SystemInfo.WithLabelValues(info["version"], info["go_version"], info["commit"], info["build_date"]).Set(1)
}

// Shutdown stops background collection
func (h *HealthChecker) Shutdown() {
	h.cancel()
}

// ConnectionMonitor periodically probes an upstream and reports to a HealthChecker
type ConnectionMonitor struct {
	name          string
	healthChecker *HealthChecker
	checkFunc     func(ctx context.Context) error
	interval      time.Duration
	timeout       time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
	done          chan struct{}
}

// NewConnectionMonitor creates a new connection monitor
func NewConnectionMonitor(name string, hc *HealthChecker, checkFunc func(ctx context.Context) error, interval time.Duration) *ConnectionMonitor {
	ctx, cancel := context.WithCancel(context.Background())

	return &ConnectionMonitor{
		name:          name,
		healthChecker: hc,
		checkFunc:     checkFunc,
		interval:      interval,
		timeout:       10 * time.Second,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
}

// Start begins monitoring the connection
func (cm *ConnectionMonitor) Start() {
	go cm.monitor()
}

// Stop stops monitoring and waits for the loop to exit
func (cm *ConnectionMonitor) Stop() {
	cm.cancel()
	<-cm.done
}

func (cm *ConnectionMonitor) monitor() {
	defer close(cm.done)

	cm.performCheck()

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-cm.ctx.Done():
			return
		case <-ticker.C:
			cm.performCheck()
		}
	}
}

func (cm *ConnectionMonitor) performCheck() {
	ctx, cancel := context.WithTimeout(cm.ctx, cm.timeout)
	defer cancel()

	start := time.Now()
	err := cm.checkFunc(ctx)
	latency := time.Since(start).Milliseconds()

	status := "connected"
	if err != nil {
		status = "error"
		RecordError(cm.name, "health_check")
	}

	cm.healthChecker.UpdateConnection(cm.name, status, latency, err)
}
