package mapview

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/paulmach/orb"

	"github.com/NERVsystems/railmap/pkg/geo"
	"github.com/NERVsystems/railmap/pkg/layers"
)

// maxMessages bounds the pending user message queue
const maxMessages = 100

// Headless is an in-memory map with no rendering. It holds the state a
// browser map would show and emits the same events.
type Headless struct {
	bus    *Bus
	logger *slog.Logger

	mu       sync.RWMutex
	viewport geo.Viewport
	width    int
	height   int
	overlays []*layers.Overlay
	shapes   map[string]orb.Polygon
	forms    map[string]string
	messages []string
}

// NewHeadless creates a map showing initial
func NewHeadless(initial geo.Viewport, logger *slog.Logger) *Headless {
	if logger == nil {
		logger = slog.Default()
	}
	return &Headless{
		bus:      &Bus{},
		logger:   logger.With("component", "mapview"),
		viewport: initial,
		shapes:   make(map[string]orb.Polygon),
		forms:    make(map[string]string),
	}
}

// Bus returns the map's event bus
func (h *Headless) Bus() *Bus {
	return h.bus
}

// Viewport returns the visible area
func (h *Headless) Viewport() geo.Viewport {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.viewport
}

// SetViewport moves the map to v
func (h *Headless) SetViewport(v geo.Viewport) error {
	if err := v.Validate(); err != nil {
		return err
	}
	h.mu.Lock()
	h.viewport = v
	h.mu.Unlock()

	h.logger.Debug("moveend", "viewport", v)
	h.bus.EmitViewportChanged()
	return nil
}

// Pan shifts the map by the given degrees
func (h *Headless) Pan(dLat, dLon float64) error {
	return h.SetViewport(h.Viewport().Pan(dLat, dLon))
}

// Zoom scales the visible area around its center
func (h *Headless) Zoom(factor float64) error {
	return h.SetViewport(h.Viewport().Zoom(factor))
}

// Resize changes the map's pixel size. The geographic extent is kept, so the
// event only reaches the change detector.
func (h *Headless) Resize(width, height int) {
	h.mu.Lock()
	h.width, h.height = width, height
	h.mu.Unlock()

	h.logger.Debug("resize", "width", width, "height", height)
	h.bus.EmitViewportChanged()
}

// Draw completes a drawing with the given shape
func (h *Headless) Draw(s Shape) {
	h.logger.Debug("draw:created", "type", s.Type)
	h.bus.EmitShapeDrawn(s)
}

// AttachLayer adds an overlay to the map
func (h *Headless) AttachLayer(o *layers.Overlay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.overlays = append(h.overlays, o)
}

// DetachLayer removes an overlay from the map
func (h *Headless) DetachLayer(o *layers.Overlay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, a := range h.overlays {
		if a == o {
			h.overlays = append(h.overlays[:i], h.overlays[i+1:]...)
			return
		}
	}
}

// AddShape draws a correction polygon
func (h *Headless) AddShape(id string, poly orb.Polygon) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shapes[id] = poly
}

// RemoveShape erases a correction polygon
func (h *Headless) RemoveShape(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.shapes, id)
}

// ShowForm puts a correction form in the notifications area
func (h *Headless) ShowForm(id, prompt string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.forms[id] = prompt
}

// RemoveForm takes a correction form out of the notifications area
func (h *Headless) RemoveForm(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.forms, id)
}

// Notify queues a message for the user
func (h *Headless) Notify(message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.messages) >= maxMessages {
		h.messages = h.messages[1:]
	}
	h.messages = append(h.messages, message)
	h.logger.Info("user message", "message", message)
}

// TakeMessages returns and clears the pending user messages
func (h *Headless) TakeMessages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	msgs := h.messages
	h.messages = nil
	return msgs
}

// AttachedCount returns how many overlays of kind are on the map
func (h *Headless) AttachedCount(kind layers.Kind) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, o := range h.overlays {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

// OverlayState summarises one attached overlay
type OverlayState struct {
	Kind       layers.Kind   `json:"kind"`
	Generation uint64        `json:"generation"`
	Features   int           `json:"features"`
	Popups     []string      `json:"popups,omitempty"`
	Style      *layers.Style `json:"style,omitempty"`
}

// State is a point-in-time copy of what the map shows
type State struct {
	Viewport geo.Viewport      `json:"viewport"`
	Width    int               `json:"width,omitempty"`
	Height   int               `json:"height,omitempty"`
	Overlays []OverlayState    `json:"overlays"`
	Shapes   []string          `json:"shapes"`
	Forms    map[string]string `json:"forms"`
	Messages []string          `json:"messages,omitempty"`
}

// Snapshot copies the map state. Pending messages are included but not cleared.
func (h *Headless) Snapshot() State {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := State{
		Viewport: h.viewport,
		Width:    h.width,
		Height:   h.height,
		Overlays: make([]OverlayState, 0, len(h.overlays)),
		Shapes:   make([]string, 0, len(h.shapes)),
		Forms:    make(map[string]string, len(h.forms)),
		Messages: append([]string(nil), h.messages...),
	}
	for _, o := range h.overlays {
		s.Overlays = append(s.Overlays, OverlayState{
			Kind:       o.Kind,
			Generation: o.Generation,
			Features:   o.Len(),
			Popups:     o.Popups(),
			Style:      o.Style,
		})
	}
	for id := range h.shapes {
		s.Shapes = append(s.Shapes, id)
	}
	sort.Strings(s.Shapes)
	for id, prompt := range h.forms {
		s.Forms[id] = prompt
	}
	return s
}
