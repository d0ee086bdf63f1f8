package geoapi

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/railmap/pkg/core"
	"github.com/NERVsystems/railmap/pkg/geo"
	"github.com/NERVsystems/railmap/pkg/layers"
	"github.com/NERVsystems/railmap/pkg/tracing"
)

// maxLayerBody bounds a single layer response
const maxLayerBody = 64 << 20

// FetchLayer retrieves the features of one layer inside the query's box.
// A non-2xx answer is a server rejection, a transport failure is a network
// failure and an undecodable body is a parse failure.
func (c *Client) FetchLayer(ctx context.Context, kind layers.Kind, q geo.Query) (*geojson.FeatureCollection, error) {
	if _, err := layers.ParseKind(string(kind)); err != nil {
		return nil, core.NewError(core.ErrInvalidInput, core.KindInternal, err.Error())
	}

	operation := "fetch_" + string(kind)
	ctx, span := tracing.StartSpan(ctx, "geoapi.FetchLayer",
		trace.WithAttributes(append(
			tracing.ServiceAttributes(tracing.ServiceGeo, operation),
			attribute.String(tracing.AttrLayerKind, string(kind)),
		)...),
	)
	defer span.End()

	req, err := c.newRequest(ctx, "GET", c.endpoint("/geo/"+string(kind), q.Values()), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, req, operation, c.retry)
	if err != nil {
		tracing.RecordError(ctx, err)
		if core.IsKind(err, core.KindServerRejection) {
			// The body of a failed layer fetch carries nothing the user needs.
			var e *core.Error
			if errors.As(err, &e) {
				return nil, core.ServiceError(e.Status, fmt.Sprintf("HTTP status %d", e.Status)).WithCause(err)
			}
		}
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxLayerBody))
	if err != nil {
		nerr := core.NetworkError(err)
		tracing.RecordError(ctx, nerr)
		return nil, nerr
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		perr := core.NewError(core.ErrParseError, core.KindParseFailure,
			fmt.Sprintf("invalid %s response: %v", kind, err)).WithCause(err)
		tracing.RecordError(ctx, perr)
		return nil, perr
	}

	span.SetAttributes(attribute.Int(tracing.AttrLayerFeatures, len(fc.Features)))
	c.logger.Debug("fetched layer", "kind", kind, "features", len(fc.Features))
	return fc, nil
}
