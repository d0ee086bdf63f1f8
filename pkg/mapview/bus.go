// Package mapview is the map abstraction the synchronisation and correction
// components run against: navigation and drawing events, overlays, drawn
// shapes and user messages.
package mapview

import (
	"strings"
	"sync"

	"github.com/paulmach/orb"
)

// Shape is the output of the drawing tool
type Shape struct {
	Type     string
	Geometry orb.Geometry
}

// NewShape wraps a geometry, naming it by its GeoJSON type
func NewShape(g orb.Geometry) Shape {
	s := Shape{Geometry: g}
	if g != nil {
		s.Type = strings.ToLower(g.GeoJSONType())
	}
	return s
}

// Bus fans map events out to subscribers. Handlers run synchronously on the
// emitting goroutine in subscription order.
type Bus struct {
	mu       sync.RWMutex
	viewport []func()
	shapes   []func(Shape)
}

// OnViewportChanged subscribes to pan end, zoom end and resize events
func (b *Bus) OnViewportChanged(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.viewport = append(b.viewport, fn)
}

// OnShapeDrawn subscribes to completed drawings
func (b *Bus) OnShapeDrawn(fn func(Shape)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shapes = append(b.shapes, fn)
}

// EmitViewportChanged notifies viewport subscribers
func (b *Bus) EmitViewportChanged() {
	b.mu.RLock()
	handlers := append([]func(){}, b.viewport...)
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn()
	}
}

// EmitShapeDrawn notifies shape subscribers
func (b *Bus) EmitShapeDrawn(s Shape) {
	b.mu.RLock()
	handlers := append([]func(Shape){}, b.shapes...)
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(s)
	}
}
