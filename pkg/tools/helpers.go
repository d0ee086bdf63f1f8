package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/railmap/pkg/core"
)

// ErrorResponse returns a tool error result with the given text
func ErrorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

// ErrorWithGuidance renders err for the caller, adding recovery guidance
// when the error carries any
func ErrorWithGuidance(err error) *mcp.CallToolResult {
	var e *core.Error
	if errors.As(err, &e) && e.Guidance != "" {
		return mcp.NewToolResultError(fmt.Sprintf("Error: %s\n\nGuidance: %s", e.Message, e.Guidance))
	}
	return mcp.NewToolResultError(fmt.Sprintf("Error: %s", core.UserMessage(err)))
}

// JSONResponse marshals v into a text result
func JSONResponse(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return ErrorResponse("Failed to generate result"), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// InputParser is a generic function to parse request arguments into a strongly typed struct
func InputParser[T any](req mcp.CallToolRequest) (T, *mcp.CallToolResult, error) {
	var input T

	inputJSON, err := json.Marshal(req.GetArguments())
	if err != nil {
		return input, ErrorResponse(fmt.Sprintf("Invalid input format: %v", err)), err
	}

	if err := json.Unmarshal(inputJSON, &input); err != nil {
		return input, ErrorResponse(fmt.Sprintf("Failed to parse input: %v", err)), err
	}

	return input, nil, nil
}

// WithParsedInput is a higher-order function that handles request parsing and error handling
func WithParsedInput[T any](
	handlerName string,
	handler func(ctx context.Context, input T, logger *slog.Logger) (any, error),
) func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := slog.Default().With("tool", handlerName)

		input, errResult, err := InputParser[T](req)
		if err != nil {
			logger.Error("failed to parse input", "error", err)
			return errResult, nil
		}

		result, err := handler(ctx, input, logger)
		if err != nil {
			logger.Warn("handler error", "error", err)
			return ErrorWithGuidance(err), nil
		}

		return JSONResponse(result)
	}
}
