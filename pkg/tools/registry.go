// Package tools exposes the railway map session as MCP tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/codes"

	"github.com/NERVsystems/railmap/pkg/monitoring"
	"github.com/NERVsystems/railmap/pkg/session"
	"github.com/NERVsystems/railmap/pkg/tracing"
)

// Handler is the signature of every tool handler
type Handler func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Registry contains all tool definitions and handlers
type Registry struct {
	logger    *slog.Logger
	session   *session.Session
	suggester Suggester
}

// NewRegistry creates a tool registry driving sess
func NewRegistry(logger *slog.Logger, sess *session.Session, suggester Suggester) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:    logger.With("component", "tools"),
		session:   sess,
		suggester: suggester,
	}
}

// ToolDefinition represents a railway map MCP tool definition.
type ToolDefinition struct {
	Name        string
	Description string
	Tool        mcp.Tool
	Handler     Handler
}

// GetToolDefinitions returns the list of all available tools.
func (r *Registry) GetToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "get_version",
			Description: "Get the version information for this railway map client",
			Tool:        GetVersionTool(),
			Handler:     HandleGetVersion,
		},

		// Navigation
		{
			Name:        "set_viewport",
			Description: "Move the map to a bounding box. Parameters: north, south, east, west (numbers)",
			Tool:        SetViewportTool(),
			Handler:     r.HandleSetViewport,
		},
		{
			Name:        "pan_map",
			Description: "Pan the map. Parameters: d_lat (number), d_lon (number)",
			Tool:        PanMapTool(),
			Handler:     r.HandlePanMap,
		},
		{
			Name:        "zoom_map",
			Description: "Zoom the map. Parameters: factor (number)",
			Tool:        ZoomMapTool(),
			Handler:     r.HandleZoomMap,
		},
		{
			Name:        "get_map_state",
			Description: "Get the viewport, overlays, open correction and pending messages",
			Tool:        GetMapStateTool(),
			Handler:     r.HandleGetMapState,
		},

		// Station corrections
		{
			Name:        "draw_correction",
			Description: "Draw a station polygon. Parameters: geometry (GeoJSON Polygon)",
			Tool:        DrawCorrectionTool(),
			Handler:     r.HandleDrawCorrection,
		},
		{
			Name:        "set_correction_label",
			Description: "Label the open correction. Parameters: label (string)",
			Tool:        SetCorrectionLabelTool(),
			Handler:     r.HandleSetCorrectionLabel,
		},
		{
			Name:        "confirm_correction",
			Description: "Submit the open correction. Parameters: label (optional string)",
			Tool:        ConfirmCorrectionTool(),
			Handler:     r.HandleConfirmCorrection,
		},
		{
			Name:        "cancel_correction",
			Description: "Discard the open correction",
			Tool:        CancelCorrectionTool(),
			Handler:     r.HandleCancelCorrection,
		},
		{
			Name:        "station_suggestions",
			Description: "Look up stations by partial name. Parameters: query (string, at least 3 characters)",
			Tool:        StationSuggestionsTool(),
			Handler:     r.HandleStationSuggestions,
		},
	}
}

// Lookup returns the traced handler for a tool name
func (r *Registry) Lookup(name string) (Handler, bool) {
	for _, def := range r.GetToolDefinitions() {
		if def.Name == name {
			return r.wrapWithTracing(def.Name, def.Handler), true
		}
	}
	return nil, false
}

// RegisterTools registers all tools with the MCP server.
func (r *Registry) RegisterTools(mcpServer *server.MCPServer) {
	for _, def := range r.GetToolDefinitions() {
		r.logger.Info("registering tool", "name", def.Name)
		mcpServer.AddTool(def.Tool, server.ToolHandlerFunc(r.wrapWithTracing(def.Name, def.Handler)))
	}
}

// wrapWithTracing wraps a tool handler with OpenTelemetry tracing and metrics
func (r *Registry) wrapWithTracing(toolName string, handler Handler) Handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		spanName := fmt.Sprintf("mcp.tool.%s", toolName)
		ctx, span := tracing.StartSpan(ctx, spanName)
		defer span.End()

		startTime := time.Now()
		result, err := handler(ctx, req)
		duration := time.Since(startTime)

		status := tracing.StatusSuccess
		switch {
		case err != nil:
			status = tracing.StatusError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case result != nil && result.IsError:
			status = tracing.StatusError
			span.SetStatus(codes.Error, "tool returned an error result")
		default:
			span.SetStatus(codes.Ok, "")
		}

		resultSize := 0
		if result != nil && result.Content != nil {
			if data, marshalErr := json.Marshal(result.Content); marshalErr == nil {
				resultSize = len(data)
			}
		}

		span.SetAttributes(tracing.MCPToolAttributes(toolName, status, duration.Milliseconds(), resultSize)...)
		monitoring.RecordMCPRequest(toolName, duration, status == tracing.StatusSuccess)

		r.logger.Debug("tool execution traced",
			"tool", toolName,
			"duration_ms", duration.Milliseconds(),
			"status", status,
			"result_size", resultSize,
		)

		return result, err
	}
}

// GetToolNames returns a list of all tool names.
func (r *Registry) GetToolNames() []string {
	defs := r.GetToolDefinitions()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return names
}
