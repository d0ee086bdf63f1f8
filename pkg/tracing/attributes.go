package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for railmap operations
const (
	// MCP tool attributes
	AttrMCPToolName     = "mcp.tool.name"
	AttrMCPToolStatus   = "mcp.tool.status"
	AttrMCPToolDuration = "mcp.tool.duration_ms"
	AttrMCPResultSize   = "mcp.tool.result_size"

	// Map synchronisation attributes
	AttrLayerKind     = "railmap.layer.kind"
	AttrLayerSeq      = "railmap.layer.seq"
	AttrLayerFeatures = "railmap.layer.features"
	AttrLayerStale    = "railmap.layer.stale"
	AttrViewport      = "railmap.viewport"

	// Correction attributes
	AttrCorrectionName    = "railmap.correction.name"
	AttrCorrectionOutcome = "railmap.correction.outcome"

	// External service attributes
	AttrServiceName      = "railmap.service.name"
	AttrServiceOperation = "railmap.service.operation"

	// Cache attributes
	AttrCacheType = "railmap.cache.type"
	AttrCacheHit  = "railmap.cache.hit"

	// Rate limiting attributes
	AttrRateLimitService = "railmap.ratelimit.service"
	AttrRateLimitWaitMs  = "railmap.ratelimit.wait_ms"

	// HTTP attributes
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
	AttrHTTPPath       = "http.path"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Service names
const (
	ServiceGeo = "geo"
)

// Cache types
const (
	CacheTypeSuggestions = "suggestions"
)

// MCPToolAttributes returns attributes for MCP tool execution
func MCPToolAttributes(toolName string, status string, durationMs int64, resultSize int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrMCPToolName, toolName),
		attribute.String(AttrMCPToolStatus, status),
		attribute.Int64(AttrMCPToolDuration, durationMs),
		attribute.Int(AttrMCPResultSize, resultSize),
	}
}

// LayerAttributes returns attributes for a layer fetch
func LayerAttributes(kind string, seq uint64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrLayerKind, kind),
		attribute.Int64(AttrLayerSeq, int64(seq)),
	}
}

// ServiceAttributes returns attributes for external service calls
func ServiceAttributes(service, operation string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrServiceName, service),
		attribute.String(AttrServiceOperation, operation),
	}
}

// CacheAttributes returns attributes for cache operations
func CacheAttributes(cacheType string, hit bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCacheType, cacheType),
		attribute.Bool(AttrCacheHit, hit),
	}
}

// ErrorAttributes returns attributes for errors
func ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, "error"),
		attribute.String(AttrErrorMessage, err.Error()),
	}
}
