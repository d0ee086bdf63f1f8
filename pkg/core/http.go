package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/railmap/pkg/tracing"
)

// maxErrorBody bounds how much of a failed response body is kept as the error message
const maxErrorBody = 4096

// RetryOptions configures retry behavior for HTTP requests
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryOptions provides sensible defaults for retries
var DefaultRetryOptions = RetryOptions{
	MaxAttempts:  3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
	Multiplier:   2.0,
}

// NoRetry performs a single attempt
var NoRetry = RetryOptions{MaxAttempts: 1}

// DefaultClient provides a pre-configured HTTP client
var DefaultClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
}

// IsSuccess reports whether an HTTP status code is 2xx
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

// retryable reports whether a failed status is worth another attempt
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// ReadErrorBody drains up to maxErrorBody bytes of a failed response as text
func ReadErrorBody(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Sprintf("HTTP status %d", resp.StatusCode)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return fmt.Sprintf("HTTP status %d", resp.StatusCode)
	}
	return text
}

// WithRetry performs a body-less HTTP request with exponential backoff.
// Network errors, 429 and 5xx responses are retried; other non-2xx responses
// fail immediately. On success the caller owns the response body. On failure
// the returned error is an *Error whose Kind distinguishes network failures
// from server rejections.
func WithRetry(ctx context.Context, req *http.Request, client *http.Client, options RetryOptions, logger *slog.Logger) (*http.Response, error) {
	if client == nil {
		client = DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	if options.MaxAttempts < 1 {
		options.MaxAttempts = 1
	}
	if req.Body != nil && req.Body != http.NoBody && options.MaxAttempts > 1 {
		return nil, NewError(ErrInternalError, KindInternal, "cannot retry request with non-nil body")
	}

	spanName := fmt.Sprintf("http.request %s %s", req.Method, req.URL.Path)
	ctx, span := tracing.StartSpan(ctx, spanName,
		trace.WithAttributes(
			attribute.String(tracing.AttrHTTPMethod, req.Method),
			attribute.String(tracing.AttrHTTPPath, req.URL.Path),
			attribute.String("http.host", req.URL.Host),
			attribute.Int("http.retry.max_attempts", options.MaxAttempts),
		),
	)
	defer span.End()

	logger = logger.With(
		"url", req.URL.String(),
		"method", req.Method,
	)

	var lastErr *Error
	delay := options.InitialDelay

	for attempt := 0; attempt < options.MaxAttempts; attempt++ {
		if attempt > 0 {
			tracing.AddEvent(ctx, "retry_attempt",
				trace.WithAttributes(
					attribute.Int("attempt", attempt+1),
					attribute.Int64("delay_ms", delay.Milliseconds()),
					attribute.String("error", lastErr.Error()),
				),
			)

			logger.Info("retrying request",
				"attempt", attempt+1,
				"max_attempts", options.MaxAttempts,
				"delay", delay,
				"last_error", lastErr,
			)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				span.SetStatus(codes.Error, "request cancelled")
				return nil, NetworkError(ctx.Err())
			}

			delay = time.Duration(float64(delay) * options.Multiplier)
			if options.MaxDelay > 0 && delay > options.MaxDelay {
				delay = options.MaxDelay
			}
		}

		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			lastErr = NetworkError(err)
			logger.Error("request failed",
				"error", err,
				"attempt", attempt+1,
			)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if IsSuccess(resp.StatusCode) {
			span.SetAttributes(
				attribute.Int(tracing.AttrHTTPStatusCode, resp.StatusCode),
				attribute.Int("http.response.content_length", int(resp.ContentLength)),
				attribute.Int("http.retry.attempts", attempt+1),
			)
			span.SetStatus(codes.Ok, "")

			logger.Debug("request successful",
				"status", resp.StatusCode,
				"content_length", resp.ContentLength,
				"content_type", resp.Header.Get("Content-Type"),
			)
			return resp, nil
		}

		lastErr = ServiceError(resp.StatusCode, ReadErrorBody(resp))
		if err := resp.Body.Close(); err != nil {
			logger.Warn("failed to close response body", "error", err)
		}
		logger.Error("request returned error status",
			"status", resp.StatusCode,
			"attempt", attempt+1,
		)
		if !retryable(resp.StatusCode) {
			break
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Message)
	span.SetAttributes(attribute.String("http.retry.final_error", lastErr.Error()))
	return nil, lastErr
}
