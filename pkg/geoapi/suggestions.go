package geoapi

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/railmap/pkg/core"
	"github.com/NERVsystems/railmap/pkg/tracing"
)

// MinSuggestionQuery is the shortest query sent to the server
const MinSuggestionQuery = 3

// Suggestion is a station the user may mean
type Suggestion struct {
	Name     string `json:"name"`
	Code     string `json:"code"`
	CodeType string `json:"code_type"`
}

type suggestionsResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// StationSuggestions returns stations matching query. Queries shorter than
// MinSuggestionQuery runes return nothing without contacting the server.
func (c *Client) StationSuggestions(ctx context.Context, query string) ([]Suggestion, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinSuggestionQuery {
		return nil, nil
	}

	ctx, span := tracing.StartSpan(ctx, "geoapi.StationSuggestions",
		trace.WithAttributes(tracing.ServiceAttributes(tracing.ServiceGeo, "station_suggestions")...),
	)
	defer span.End()

	if cached, ok := c.suggestions.Get(query); ok {
		span.SetAttributes(tracing.CacheAttributes(tracing.CacheTypeSuggestions, true)...)
		c.hooks.cache(tracing.CacheTypeSuggestions, true)
		return cached, nil
	}
	span.SetAttributes(tracing.CacheAttributes(tracing.CacheTypeSuggestions, false)...)
	c.hooks.cache(tracing.CacheTypeSuggestions, false)

	req, err := c.newRequest(ctx, "GET", c.endpoint("/station_suggestions", url.Values{"query": {query}}), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, req, "station_suggestions", c.retry)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	defer resp.Body.Close()

	var out suggestionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		perr := core.NewError(core.ErrParseError, core.KindParseFailure, "invalid suggestions response").WithCause(err)
		tracing.RecordError(ctx, perr)
		return nil, perr
	}

	span.SetAttributes(attribute.Int("railmap.suggestions.count", len(out.Suggestions)))
	c.suggestions.Add(query, out.Suggestions)
	return out.Suggestions, nil
}
