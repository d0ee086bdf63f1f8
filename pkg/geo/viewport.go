// Package geo provides the viewport and bounding-box query types shared by
// the map synchronisation components.
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Viewport is the geographic rectangle currently visible on the map.
// It is a plain value: two viewports are the same when all four bounds are equal.
type Viewport struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Equal reports whether v and o describe the same rectangle
func (v Viewport) Equal(o Viewport) bool {
	return v == o
}

// String returns a compact representation for logs
func (v Viewport) String() string {
	return fmt.Sprintf("[N %g S %g E %g W %g]", v.North, v.South, v.East, v.West)
}

// Validate checks that the bounds are valid WGS84 coordinates
func (v Viewport) Validate() error {
	for _, lat := range []float64{v.North, v.South} {
		if math.IsNaN(lat) || lat < -90 || lat > 90 {
			return fmt.Errorf("invalid latitude: %f (must be between -90 and 90)", lat)
		}
	}
	for _, lon := range []float64{v.East, v.West} {
		if math.IsNaN(lon) || lon < -180 || lon > 180 {
			return fmt.Errorf("invalid longitude: %f (must be between -180 and 180)", lon)
		}
	}
	return nil
}

// Center returns the midpoint of the viewport as (lat, lon)
func (v Viewport) Center() (lat, lon float64) {
	return (v.North + v.South) / 2, (v.East + v.West) / 2
}

// Pan shifts the viewport by the given deltas in degrees
func (v Viewport) Pan(dLat, dLon float64) Viewport {
	return Viewport{
		North: v.North + dLat,
		South: v.South + dLat,
		East:  v.East + dLon,
		West:  v.West + dLon,
	}
}

// Zoom scales the viewport around its center. A factor above 1 zooms in
// (smaller rectangle), below 1 zooms out. Non-positive factors are ignored.
func (v Viewport) Zoom(factor float64) Viewport {
	if factor <= 0 {
		return v
	}
	lat, lon := v.Center()
	halfH := (v.North - v.South) / 2 / factor
	halfW := (v.East - v.West) / 2 / factor
	return Viewport{
		North: lat + halfH,
		South: lat - halfH,
		East:  lon + halfW,
		West:  lon - halfW,
	}
}

// Bound converts the viewport to an orb.Bound (points are lon, lat)
func (v Viewport) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{math.Min(v.West, v.East), math.Min(v.South, v.North)},
		Max: orb.Point{math.Max(v.West, v.East), math.Max(v.South, v.North)},
	}
}

// FromBound builds a viewport from an orb.Bound
func FromBound(b orb.Bound) Viewport {
	return Viewport{
		North: b.Top(),
		South: b.Bottom(),
		East:  b.Right(),
		West:  b.Left(),
	}
}
