package tools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/NERVsystems/railmap/pkg/core"
	"github.com/NERVsystems/railmap/pkg/correction"
	"github.com/NERVsystems/railmap/pkg/mapview"
)

// DrawInput carries a GeoJSON geometry drawn on the map
type DrawInput struct {
	Geometry json.RawMessage `json:"geometry"`
}

// LabelInput carries the station identifier for the open correction
type LabelInput struct {
	Label string `json:"label"`
}

// ConfirmInput optionally sets the label before confirming
type ConfirmInput struct {
	Label *string `json:"label,omitempty"`
}

// DraftOutput describes the open correction
type DraftOutput struct {
	correction.Draft
	Prompt string `json:"prompt,omitempty"`
}

// CorrectionOutput is the result of confirming or cancelling a correction
type CorrectionOutput struct {
	Status string         `json:"status"`
	Map    MapStateOutput `json:"map"`
}

// DrawCorrectionTool returns a tool definition for drawing a correction polygon
func DrawCorrectionTool() mcp.Tool {
	return mcp.NewTool("draw_correction",
		mcp.WithDescription("Draw a polygon around a misplaced station to start a correction. Only one correction can be open at a time"),
		mcp.WithObject("geometry",
			mcp.Required(),
			mcp.Description("GeoJSON Polygon geometry, e.g. {\"type\":\"Polygon\",\"coordinates\":[[[lon,lat],...]]}"),
		),
	)
}

// SetCorrectionLabelTool returns a tool definition for labelling the open correction
func SetCorrectionLabelTool() mcp.Tool {
	return mcp.NewTool("set_correction_label",
		mcp.WithDescription("Enter the STANOX of the station drawn in the open correction"),
		mcp.WithString("label", mcp.Required(), mcp.Description("Station identifier (STANOX)")),
	)
}

// ConfirmCorrectionTool returns a tool definition for submitting the open correction
func ConfirmCorrectionTool() mcp.Tool {
	return mcp.NewTool("confirm_correction",
		mcp.WithDescription("Submit the open correction to the server. The map is refreshed afterwards whether or not the server accepts it"),
		mcp.WithString("label", mcp.Description("Optional station identifier to set before submitting")),
	)
}

// CancelCorrectionTool returns a tool definition for discarding the open correction
func CancelCorrectionTool() mcp.Tool {
	return mcp.NewTool("cancel_correction",
		mcp.WithDescription("Discard the open correction without contacting the server"),
	)
}

// HandleDrawCorrection draws a shape on the map, which opens a correction
// when it is a polygon and none is open
func (r *Registry) HandleDrawCorrection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := slog.Default().With("tool", "draw_correction")

	input, errResult, err := InputParser[DrawInput](req)
	if err != nil {
		return errResult, nil
	}
	if len(input.Geometry) == 0 {
		return ErrorResponse("Missing 'geometry' parameter"), nil
	}

	g, err := geojson.UnmarshalGeometry(input.Geometry)
	if err != nil || g.Geometry() == nil {
		logger.Warn("invalid geometry", "error", err)
		return ErrorResponse("Invalid GeoJSON geometry"), nil
	}
	shape := g.Geometry()

	if _, ok := shape.(orb.Polygon); !ok {
		r.session.Map.Draw(mapview.NewShape(shape))
		return ErrorResponse(correction.ErrNotPolygon.Error()), nil
	}
	if _, open := r.session.Corrections.Current(); open {
		r.session.Map.Draw(mapview.NewShape(shape))
		return ErrorResponse(correction.DraftActiveNotice), nil
	}

	r.session.Map.Draw(mapview.NewShape(shape))

	d, ok := r.session.Corrections.Current()
	if !ok {
		return ErrorResponse("The shape was not accepted as a correction"), nil
	}
	return JSONResponse(DraftOutput{Draft: d, Prompt: correction.FormPrompt})
}

// HandleSetCorrectionLabel sets the label of the open correction
func (r *Registry) HandleSetCorrectionLabel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return WithParsedInput("set_correction_label", func(ctx context.Context, in LabelInput, logger *slog.Logger) (any, error) {
		if err := r.session.Corrections.SetLabel(in.Label); err != nil {
			return nil, workflowError(err)
		}
		d, _ := r.session.Corrections.Current()
		return d, nil
	})(ctx, req)
}

// HandleConfirmCorrection submits the open correction
func (r *Registry) HandleConfirmCorrection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := slog.Default().With("tool", "confirm_correction")

	input, errResult, err := InputParser[ConfirmInput](req)
	if err != nil {
		return errResult, nil
	}

	if input.Label != nil {
		if err := r.session.Corrections.SetLabel(*input.Label); err != nil {
			return ErrorWithGuidance(workflowError(err)), nil
		}
	}

	if err := r.session.Corrections.Confirm(ctx); err != nil {
		if errors.Is(err, correction.ErrValidation) {
			r.session.Map.TakeMessages()
			return ErrorResponse(correction.ValidationMessage), nil
		}
		if core.IsKind(err, core.KindServerRejection) || core.IsKind(err, core.KindNetworkFailure) {
			logger.Info("correction failed", "error", err)
			r.session.Map.TakeMessages()
			return ErrorResponse(correction.FailurePrefix + core.UserMessage(err)), nil
		}
		return ErrorWithGuidance(workflowError(err)), nil
	}

	return JSONResponse(CorrectionOutput{Status: correction.Confirmed.String(), Map: r.mapState()})
}

// HandleCancelCorrection discards the open correction
func (r *Registry) HandleCancelCorrection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := r.session.Corrections.Cancel(); err != nil {
		return ErrorWithGuidance(workflowError(err)), nil
	}
	return JSONResponse(CorrectionOutput{Status: correction.Cancelled.String(), Map: r.mapState()})
}

// workflowError adds guidance to workflow state errors
func workflowError(err error) error {
	switch {
	case errors.Is(err, correction.ErrNoDraft):
		return core.NewError(core.ErrInvalidInput, core.KindValidationFailure, err.Error()).
			WithGuidance("Draw a polygon with draw_correction first").WithCause(err)
	case errors.Is(err, correction.ErrSubmitting):
		return core.NewError(core.ErrInvalidInput, core.KindValidationFailure, err.Error()).
			WithGuidance("Wait for the submission to finish").WithCause(err)
	}
	return err
}
