package geoapi

import "time"

// MonitoringHooks receives request lifecycle events. Any field may be nil.
type MonitoringHooks struct {
	// OnRequest is called before making an HTTP request
	OnRequest func(service, operation string)

	// OnResponse is called after the request and its retries finish
	OnResponse func(service, operation string, duration time.Duration, success bool)

	// OnRateLimit is called after waiting on the rate limiter
	OnRateLimit func(service string, waitTime time.Duration)

	// OnError is called when a request fails
	OnError func(service, errorType string)

	// OnCache is called for every suggestion cache lookup
	OnCache func(cacheType string, hit bool)
}

func (h *MonitoringHooks) request(service, operation string) {
	if h != nil && h.OnRequest != nil {
		h.OnRequest(service, operation)
	}
}

func (h *MonitoringHooks) response(service, operation string, d time.Duration, success bool) {
	if h != nil && h.OnResponse != nil {
		h.OnResponse(service, operation, d, success)
	}
}

func (h *MonitoringHooks) rateLimit(service string, wait time.Duration) {
	if h != nil && h.OnRateLimit != nil {
		h.OnRateLimit(service, wait)
	}
}

func (h *MonitoringHooks) failure(service, errorType string) {
	if h != nil && h.OnError != nil {
		h.OnError(service, errorType)
	}
}

func (h *MonitoringHooks) cache(cacheType string, hit bool) {
	if h != nil && h.OnCache != nil {
		h.OnCache(cacheType, hit)
	}
}
