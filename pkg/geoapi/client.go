// Package geoapi is the client for the railway geo server: layer fetches,
// station corrections and station suggestions.
package geoapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/railmap/pkg/core"
	"github.com/NERVsystems/railmap/pkg/tracing"
)

const (
	// DefaultUserAgent is the default User-Agent string
	DefaultUserAgent = "railmap/0.1.0"

	// DefaultSuggestionCacheSize bounds the number of cached suggestion queries
	DefaultSuggestionCacheSize = 256

	// DefaultSuggestionCacheTTL is how long suggestions stay cached
	DefaultSuggestionCacheTTL = 10 * time.Minute
)

// Options configures a Client
type Options struct {
	// BaseURL is the geo server root, e.g. https://trains.example.org
	BaseURL   string
	UserAgent string

	// HTTPClient defaults to core.DefaultClient
	HTTPClient *http.Client

	// RateLimit is requests per second; zero disables limiting
	RateLimit float64
	RateBurst int

	// Retry applies to GET requests only
	Retry core.RetryOptions

	SuggestionCacheSize int
	SuggestionCacheTTL  time.Duration

	Hooks  *MonitoringHooks
	Logger *slog.Logger
}

// Client talks to the geo server
type Client struct {
	baseURL    *url.URL
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      core.RetryOptions
	hooks      *MonitoringHooks
	logger     *slog.Logger

	suggestions *expirable.LRU[string, []Suggestion]
}

// NewClient creates a geo server client
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", opts.BaseURL)
	}

	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = core.DefaultClient
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = core.DefaultRetryOptions
	}
	if opts.SuggestionCacheSize <= 0 {
		opts.SuggestionCacheSize = DefaultSuggestionCacheSize
	}
	if opts.SuggestionCacheTTL <= 0 {
		opts.SuggestionCacheTTL = DefaultSuggestionCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		baseURL:     base,
		userAgent:   opts.UserAgent,
		httpClient:  opts.HTTPClient,
		limiter:     limiter,
		retry:       opts.Retry,
		hooks:       opts.Hooks,
		logger:      opts.Logger.With("component", "geoapi"),
		suggestions: expirable.NewLRU[string, []Suggestion](opts.SuggestionCacheSize, nil, opts.SuggestionCacheTTL),
	}, nil
}

// BaseURL returns the configured server root
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// endpoint resolves a path against the base URL
func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// newRequest creates a request carrying the client's User-Agent
func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, core.NewError(core.ErrInternalError, core.KindInternal, "failed to create request").WithCause(err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// waitForRateLimit blocks until the limiter admits one request
func (c *Client) waitForRateLimit(ctx context.Context) error {
	if c.limiter == nil || c.limiter.Allow() {
		return nil
	}

	start := time.Now()
	tracing.AddEvent(ctx, "rate_limit_wait",
		trace.WithAttributes(attribute.String(tracing.AttrRateLimitService, tracing.ServiceGeo)),
	)

	err := c.limiter.Wait(ctx)

	wait := time.Since(start)
	tracing.SetAttributes(ctx,
		attribute.String(tracing.AttrRateLimitService, tracing.ServiceGeo),
		attribute.Int64(tracing.AttrRateLimitWaitMs, wait.Milliseconds()),
	)
	c.hooks.rateLimit(tracing.ServiceGeo, wait)

	if err != nil {
		return core.NetworkError(err)
	}
	return nil
}

// do performs a request under the rate limiter with the given retry policy
func (c *Client) do(ctx context.Context, req *http.Request, operation string, retry core.RetryOptions) (*http.Response, error) {
	c.hooks.request(tracing.ServiceGeo, operation)

	if err := c.waitForRateLimit(ctx); err != nil {
		c.hooks.failure(tracing.ServiceGeo, "rate_limit_wait_error")
		return nil, err
	}

	start := time.Now()
	resp, err := core.WithRetry(ctx, req, c.httpClient, retry, c.logger)
	c.hooks.response(tracing.ServiceGeo, operation, time.Since(start), err == nil)
	if err != nil {
		c.hooks.failure(tracing.ServiceGeo, string(core.KindOf(err)))
		return nil, err
	}
	return resp, nil
}
