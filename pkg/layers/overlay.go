// Package layers owns the overlay layers drawn on top of the base map and
// guarantees that at most one overlay of each kind is attached at a time.
package layers

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb/geojson"
)

// Kind names an overlay layer
type Kind string

const (
	// Ways is the railway track layer
	Ways Kind = "ways"
	// Stations is the station area layer
	Stations Kind = "stations"
)

// Kinds lists every overlay kind in a stable order
var Kinds = []Kind{Ways, Stations}

// ParseKind converts a string into a Kind
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Ways, Stations:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown layer kind %q", s)
}

// Style is the fill and stroke applied to every feature of an overlay
type Style struct {
	Color       string  `json:"color"`
	FillColor   string  `json:"fillColor"`
	FillOpacity float64 `json:"fillOpacity"`
}

// StationStyle distinguishes station areas from track
var StationStyle = Style{Color: "red", FillColor: "#f03", FillOpacity: 0.5}

// RenderedFeature is a feature together with its interaction binding
type RenderedFeature struct {
	Feature *geojson.Feature
	// Popup is empty when the feature has no interactive popup
	Popup string
}

// Overlay is one rendered instance of a layer kind
type Overlay struct {
	Kind Kind
	// Generation increases with every overlay built by a Manager
	Generation uint64
	Style      *Style

	features []RenderedFeature
	disposed bool
}

// Features returns the rendered features. A disposed overlay has none.
func (o *Overlay) Features() []RenderedFeature {
	return o.features
}

// Len returns the number of rendered features
func (o *Overlay) Len() int {
	return len(o.features)
}

// Popups returns the popup text of every feature that has one
func (o *Overlay) Popups() []string {
	var popups []string
	for _, f := range o.features {
		if f.Popup != "" {
			popups = append(popups, f.Popup)
		}
	}
	return popups
}

// Disposed reports whether the overlay has been released
func (o *Overlay) Disposed() bool {
	return o.disposed
}

// Dispose drops the overlay's features and bindings
func (o *Overlay) Dispose() {
	o.features = nil
	o.disposed = true
}

// newOverlay renders a feature collection for kind
func newOverlay(kind Kind, generation uint64, fc *geojson.FeatureCollection) *Overlay {
	o := &Overlay{Kind: kind, Generation: generation}
	if kind == Stations {
		style := StationStyle
		o.Style = &style
	}
	if fc == nil {
		return o
	}

	o.features = make([]RenderedFeature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		o.features = append(o.features, RenderedFeature{
			Feature: f,
			Popup:   popupFor(kind, f),
		})
	}
	return o
}

// popupFor returns the popup bound to a feature, or "" when the feature
// lacks the properties its kind expects
func popupFor(kind Kind, f *geojson.Feature) string {
	switch kind {
	case Ways:
		p1, ok1 := property(f, "p1")
		p2, ok2 := property(f, "p2")
		if ok1 && ok2 {
			return fmt.Sprintf("Link %s <-> %s", p1, p2)
		}
	case Stations:
		if ref, ok := property(f, "nr_ref"); ok {
			return "Station " + ref
		}
	}
	return ""
}

// property returns a non-empty property as text
func property(f *geojson.Feature, key string) (string, bool) {
	if f.Properties == nil {
		return "", false
	}
	v, ok := f.Properties[key]
	if !ok || v == nil {
		return "", false
	}
	var s string
	switch n := v.(type) {
	case float64:
		// GeoJSON numbers decode as float64; node ids print as plain integers
		s = strconv.FormatFloat(n, 'f', -1, 64)
	default:
		s = fmt.Sprint(v)
	}
	if s == "" {
		return "", false
	}
	return s, true
}
