package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NERVsystems/railmap/pkg/geo"
	"github.com/NERVsystems/railmap/pkg/geoapi"
	"github.com/NERVsystems/railmap/pkg/mapview"
	"github.com/NERVsystems/railmap/pkg/monitoring"
	"github.com/NERVsystems/railmap/pkg/server"
	"github.com/NERVsystems/railmap/pkg/session"
	"github.com/NERVsystems/railmap/pkg/tools"
	"github.com/NERVsystems/railmap/pkg/tracing"
	ver "github.com/NERVsystems/railmap/pkg/version"
)

var (
	showVersionFlag bool
	debug           bool
	baseURL         string
	userAgent       string

	// Rate limit for the geo server
	geoRPS   float64
	geoBurst int

	// Feature cap per layer request, zero leaves it to the server
	layerLimit int

	// Initial viewport
	north, south, east, west float64

	// Monitoring flags
	enableMonitoring bool
	monitoringAddr   string
	healthInterval   time.Duration
)

func init() {
	flag.BoolVar(&showVersionFlag, "version", false, "Display version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.StringVar(&baseURL, "base-url", envOr("RAILMAP_BASE_URL", "http://localhost:8000"), "Geo server root URL")
	flag.StringVar(&userAgent, "user-agent", geoapi.DefaultUserAgent, "User-Agent string for geo server requests")

	flag.Float64Var(&geoRPS, "rps", 5.0, "Geo server rate limit in requests per second (0 disables)")
	flag.IntVar(&geoBurst, "burst", 5, "Geo server rate limit burst size")
	flag.IntVar(&layerLimit, "layer-limit", 0, "Maximum features requested per layer (0 for server default)")

	// Great Britain
	flag.Float64Var(&north, "north", 58.7, "Initial viewport north edge")
	flag.Float64Var(&south, "south", 49.9, "Initial viewport south edge")
	flag.Float64Var(&east, "east", 1.8, "Initial viewport east edge")
	flag.Float64Var(&west, "west", -8.2, "Initial viewport west edge")

	flag.BoolVar(&enableMonitoring, "enable-monitoring", true, "Enable Prometheus metrics, health and state endpoints")
	flag.StringVar(&monitoringAddr, "monitoring-addr", ":9090", "Monitoring server address")
	flag.DurationVar(&healthInterval, "health-interval", 30*time.Second, "Geo server health check interval")
}

func main() {
	flag.Parse()

	if showVersionFlag {
		fmt.Println(ver.String())
		return
	}

	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	// stdout carries the MCP protocol, so logs go to stderr
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("railmap stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.InitTracing(ctx, ver.BuildVersion)
	if err != nil {
		// Tracing is optional
		logger.Error("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()
		if endpoint := os.Getenv("OTLP_ENDPOINT"); endpoint != "" {
			logger.Info("OpenTelemetry tracing enabled", "endpoint", endpoint)
		}
	}

	initial := geo.Viewport{North: north, South: south, East: east, West: west}
	if err := initial.Validate(); err != nil {
		return fmt.Errorf("initial viewport: %w", err)
	}

	client, err := geoapi.NewClient(geoapi.Options{
		BaseURL:   baseURL,
		UserAgent: userAgent,
		RateLimit: geoRPS,
		RateBurst: geoBurst,
		Hooks:     monitoringHooks(enableMonitoring),
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("create geo client: %w", err)
	}

	logger.Info("starting railway map MCP server",
		"version", ver.BuildVersion,
		"base_url", client.BaseURL(),
		"user_agent", userAgent,
		"rps", geoRPS,
		"burst", geoBurst,
		"layer_limit", layerLimit,
		"viewport", initial.String(),
		"monitoring_enabled", enableMonitoring,
		"monitoring_addr", monitoringAddr)

	m := mapview.NewHeadless(initial, logger)
	sess := session.New(m, client, layerLimit, logger)
	defer sess.Close()
	sess.Start(ctx)

	registry := tools.NewRegistry(logger, sess, client)

	if enableMonitoring {
		stopMonitoring := startMonitoring(ctx, logger, registry, client)
		defer stopMonitoring()
	}

	s := server.NewServer(registry, logger)
	if err := s.RunWithContext(ctx); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// monitoringHooks forwards geo client events to Prometheus. It returns nil
// when monitoring is disabled.
func monitoringHooks(enabled bool) *geoapi.MonitoringHooks {
	if !enabled {
		return nil
	}
	return &geoapi.MonitoringHooks{
		OnResponse: func(service, operation string, duration time.Duration, success bool) {
			monitoring.RecordExternalServiceRequest(service, operation, duration, success)
		},
		OnRateLimit: func(service string, waitTime time.Duration) {
			monitoring.RecordRateLimitWait(service, waitTime)
		},
		OnError: func(service, errorType string) {
			monitoring.RecordError(service, errorType)
		},
		OnCache: func(cacheType string, hit bool) {
			if hit {
				monitoring.RecordCacheHit(cacheType)
			} else {
				monitoring.RecordCacheMiss(cacheType)
			}
		},
	}
}

// startMonitoring serves metrics, probes and map state, and polls the geo
// server health. The returned func stops everything it started.
func startMonitoring(ctx context.Context, logger *slog.Logger, registry *tools.Registry, client *geoapi.Client) func() {
	healthChecker := monitoring.NewHealthChecker(monitoring.ServiceName, ver.BuildVersion)

	geoMonitor := monitoring.NewConnectionMonitor("geo_server", healthChecker, client.CheckHealth, healthInterval)
	geoMonitor.Start()

	monitoringServer := &http.Server{
		Addr:              monitoringAddr,
		Handler:           server.NewHandler(logger, healthChecker, registry),
		ReadHeaderTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting monitoring server", "addr", monitoringAddr)
		if err := monitoringServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("monitoring server error", "error", err)
		}
	}()

	logger.Info("started geo server monitoring",
		"url", client.BaseURL(),
		"check_interval", healthInterval.String())

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := monitoringServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown monitoring server", "error", err)
		}
		geoMonitor.Stop()
		healthChecker.Shutdown()
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
