package geoapi

import (
	"context"
	"time"

	"github.com/NERVsystems/railmap/pkg/core"
	"github.com/NERVsystems/railmap/pkg/geo"
	"github.com/NERVsystems/railmap/pkg/layers"
)

// healthTimeout bounds a single health probe
const healthTimeout = 10 * time.Second

// healthProbe is a tiny box that keeps the probe cheap for the server
var healthProbe = geo.NewQuery(geo.Viewport{North: 0.001, South: 0, East: 0.001, West: 0}).WithLimit(1)

// CheckHealth reports whether the geo server answers a minimal layer query
func (c *Client) CheckHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, "GET", c.endpoint("/geo/"+string(layers.Stations), healthProbe.Values()), nil)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, req, "health_check", core.NoRetry)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
