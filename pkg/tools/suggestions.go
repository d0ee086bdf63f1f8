package tools

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/railmap/pkg/geoapi"
)

// Suggester looks up stations by partial name or code
type Suggester interface {
	StationSuggestions(ctx context.Context, query string) ([]geoapi.Suggestion, error)
}

// SuggestionsInput is a partial station name or code
type SuggestionsInput struct {
	Query string `json:"query"`
}

// SuggestionsOutput lists matching stations
type SuggestionsOutput struct {
	Query       string              `json:"query"`
	Suggestions []geoapi.Suggestion `json:"suggestions"`
}

// StationSuggestionsTool returns a tool definition for station lookup
func StationSuggestionsTool() mcp.Tool {
	return mcp.NewTool("station_suggestions",
		mcp.WithDescription("Find stations and their STANOX/TIPLOC/CRS codes by partial name. Queries need at least 3 characters"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Partial station name or code")),
	)
}

// HandleStationSuggestions looks up stations matching the query
func (r *Registry) HandleStationSuggestions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if r.suggester == nil {
		return ErrorResponse("station suggestions are not configured"), nil
	}
	return WithParsedInput("station_suggestions", func(ctx context.Context, in SuggestionsInput, logger *slog.Logger) (any, error) {
		found, err := r.suggester.StationSuggestions(ctx, in.Query)
		if err != nil {
			return nil, err
		}
		if found == nil {
			found = []geoapi.Suggestion{}
		}
		logger.Debug("station suggestions", "query", in.Query, "count", len(found))
		return SuggestionsOutput{Query: in.Query, Suggestions: found}, nil
	})(ctx, req)
}
