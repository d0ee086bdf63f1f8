package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/railmap/pkg/core"
	"github.com/NERVsystems/railmap/pkg/correction"
	"github.com/NERVsystems/railmap/pkg/geo"
	"github.com/NERVsystems/railmap/pkg/layers"
	"github.com/NERVsystems/railmap/pkg/mapview"
)

// MapStateOutput is what the map shows plus the open correction, if any
type MapStateOutput struct {
	mapview.State
	Draft          *correction.Draft `json:"draft,omitempty"`
	SyncedViewport *geo.Viewport     `json:"synced_viewport,omitempty"`
	LayerSeq       map[string]uint64 `json:"layer_seq"`
}

// PanInput shifts the map in degrees
type PanInput struct {
	DLat float64 `json:"d_lat"`
	DLon float64 `json:"d_lon"`
}

// ZoomInput scales the visible area
type ZoomInput struct {
	Factor float64 `json:"factor"`
}

// SetViewportTool returns a tool definition for moving the map
func SetViewportTool() mcp.Tool {
	return mcp.NewTool("set_viewport",
		mcp.WithDescription("Move the map to a bounding box and load railway ways and stations inside it"),
		mcp.WithNumber("north", mcp.Required(), mcp.Description("Northern latitude bound")),
		mcp.WithNumber("south", mcp.Required(), mcp.Description("Southern latitude bound")),
		mcp.WithNumber("east", mcp.Required(), mcp.Description("Eastern longitude bound")),
		mcp.WithNumber("west", mcp.Required(), mcp.Description("Western longitude bound")),
	)
}

// PanMapTool returns a tool definition for panning the map
func PanMapTool() mcp.Tool {
	return mcp.NewTool("pan_map",
		mcp.WithDescription("Pan the map by a number of degrees"),
		mcp.WithNumber("d_lat", mcp.Description("Degrees to move north (negative moves south)")),
		mcp.WithNumber("d_lon", mcp.Description("Degrees to move east (negative moves west)")),
	)
}

// ZoomMapTool returns a tool definition for zooming the map
func ZoomMapTool() mcp.Tool {
	return mcp.NewTool("zoom_map",
		mcp.WithDescription("Zoom the map around its center. Factors above 1 zoom in, below 1 zoom out"),
		mcp.WithNumber("factor", mcp.Required(), mcp.Description("Zoom factor, e.g. 2 or 0.5")),
	)
}

// GetMapStateTool returns a tool definition for reading the map
func GetMapStateTool() mcp.Tool {
	return mcp.NewTool("get_map_state",
		mcp.WithDescription("Get the current viewport, attached overlays with their popups, the open correction and any pending user messages"),
	)
}

// HandleSetViewport moves the map and waits for the resulting sync
func (r *Registry) HandleSetViewport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("set_viewport", func(ctx context.Context, v geo.Viewport, logger *slog.Logger) (any, error) {
		if err := r.session.Map.SetViewport(v); err != nil {
			return nil, core.NewValidationError(core.ErrInvalidInput, err.Error()).
				WithGuidance("Latitudes must be within [-90, 90] and longitudes within [-180, 180]")
		}
		r.session.Wait()
		return r.mapState(), nil
	})(ctx, req)
}

// HandlePanMap pans the map and waits for the resulting sync
func (r *Registry) HandlePanMap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("pan_map", func(ctx context.Context, in PanInput, logger *slog.Logger) (any, error) {
		if err := r.session.Map.Pan(in.DLat, in.DLon); err != nil {
			return nil, core.NewValidationError(core.ErrInvalidInput, err.Error()).
				WithGuidance("Pan by a smaller amount")
		}
		r.session.Wait()
		return r.mapState(), nil
	})(ctx, req)
}

// HandleZoomMap zooms the map and waits for the resulting sync
func (r *Registry) HandleZoomMap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("zoom_map", func(ctx context.Context, in ZoomInput, logger *slog.Logger) (any, error) {
		if in.Factor <= 0 {
			return nil, core.NewValidationError(core.ErrInvalidInput, fmt.Sprintf("zoom factor must be positive, got %g", in.Factor))
		}
		if err := r.session.Map.Zoom(in.Factor); err != nil {
			return nil, core.NewValidationError(core.ErrInvalidInput, err.Error()).
				WithGuidance("Zoom in before zooming out this far")
		}
		r.session.Wait()
		return r.mapState(), nil
	})(ctx, req)
}

// HandleGetMapState reports the map and drains pending user messages
func (r *Registry) HandleGetMapState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return JSONResponse(r.mapState())
}

// mapState snapshots the session. Pending user messages are consumed.
func (r *Registry) mapState() MapStateOutput {
	out := MapStateOutput{
		State:    r.session.Map.Snapshot(),
		LayerSeq: make(map[string]uint64, len(layers.Kinds)),
	}
	out.Messages = r.session.Map.TakeMessages()

	if d, ok := r.session.Corrections.Current(); ok {
		out.Draft = &d
	}
	if v, ok := r.session.Detector.Previous(); ok {
		out.SyncedViewport = &v
	}
	for _, kind := range layers.Kinds {
		out.LayerSeq[string(kind)] = r.session.Sync.Latest(kind)
	}
	return out
}
