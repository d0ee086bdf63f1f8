package geo

import (
	"math"
	"net/url"
	"strconv"
)

const (
	// DefaultLimit is the number of features the geo server returns when no limit is given
	DefaultLimit = 500

	// MaxLimit is the largest limit the geo server honours
	MaxLimit = 1000
)

// Query is the bounding-box query sent to the geo endpoints.
// It has no identity of its own and is recomputed from a Viewport each time.
type Query struct {
	XMin float64 `json:"xmin"`
	XMax float64 `json:"xmax"`
	YMin float64 `json:"ymin"`
	YMax float64 `json:"ymax"`

	// Limit caps the number of returned features; zero leaves it to the server
	Limit int `json:"limit,omitempty"`
}

// NewQuery derives a query from the corners of a viewport.
// Min and max come from the corners rather than the field names, so a
// viewport with swapped edges still yields a well-formed box.
func NewQuery(v Viewport) Query {
	return Query{
		XMin: math.Min(v.West, v.East),
		XMax: math.Max(v.West, v.East),
		YMin: math.Min(v.South, v.North),
		YMax: math.Max(v.South, v.North),
	}
}

// WithLimit returns a copy of q with the limit clamped to [0, MaxLimit]
func (q Query) WithLimit(limit int) Query {
	switch {
	case limit < 0:
		limit = 0
	case limit > MaxLimit:
		limit = MaxLimit
	}
	q.Limit = limit
	return q
}

// Values returns the query parameters. Numbers are formatted with
// strconv so the output never depends on the process locale.
func (q Query) Values() url.Values {
	vals := url.Values{}
	vals.Set("xmin", formatCoord(q.XMin))
	vals.Set("xmax", formatCoord(q.XMax))
	vals.Set("ymin", formatCoord(q.YMin))
	vals.Set("ymax", formatCoord(q.YMax))
	if q.Limit > 0 {
		vals.Set("limit", strconv.Itoa(q.Limit))
	}
	return vals
}

// Encode returns the URL-encoded query string without a leading '?'
func (q Query) Encode() string {
	return q.Values().Encode()
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
