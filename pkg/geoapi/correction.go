package geoapi

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/railmap/pkg/core"
	"github.com/NERVsystems/railmap/pkg/tracing"
)

// correctionRequest is the body of a station correction
type correctionRequest struct {
	Poly *geojson.Geometry `json:"poly"`
	Name string            `json:"name"`
}

// SubmitCorrection asks the server to record poly as the area of the station
// identified by name. The request is sent exactly once. A non-2xx answer is
// returned as a server rejection whose message is the response body.
func (c *Client) SubmitCorrection(ctx context.Context, poly orb.Polygon, name string) error {
	ctx, span := tracing.StartSpan(ctx, "geoapi.SubmitCorrection",
		trace.WithAttributes(append(
			tracing.ServiceAttributes(tracing.ServiceGeo, "correct_station"),
			attribute.String(tracing.AttrCorrectionName, name),
		)...),
	)
	defer span.End()

	body, err := json.Marshal(correctionRequest{
		Poly: geojson.NewGeometry(poly),
		Name: name,
	})
	if err != nil {
		return core.NewError(core.ErrInternalError, core.KindInternal, "failed to encode correction").WithCause(err)
	}

	req, err := c.newRequest(ctx, "POST", c.endpoint("/geo/correct_station", nil), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(ctx, req, "correct_station", core.NoRetry)
	if err != nil {
		tracing.RecordError(ctx, err)
		c.logger.Warn("correction rejected", "name", name, "error", err)
		return err
	}
	resp.Body.Close()

	c.logger.Info("correction accepted", "name", name)
	return nil
}
