package layers

import (
	"log/slog"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/NERVsystems/railmap/pkg/monitoring"
)

// Host is the map surface overlays are attached to
type Host interface {
	AttachLayer(o *Overlay)
	DetachLayer(o *Overlay)
}

// Manager owns at most one attached overlay per kind
type Manager struct {
	mu         sync.Mutex
	host       Host
	current    map[Kind]*Overlay
	generation uint64
	logger     *slog.Logger
}

// NewManager creates a layer manager attaching overlays to host
func NewManager(host Host, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		host:    host,
		current: make(map[Kind]*Overlay),
		logger:  logger.With("component", "layers"),
	}
}

// InstallLayer replaces the overlay of kind with one built from fc.
// The previous overlay is detached and disposed before the new one is
// built and attached, so the two are never on the map together.
func (m *Manager) InstallLayer(kind Kind, fc *geojson.FeatureCollection) (*Overlay, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if old := m.current[kind]; old != nil {
		m.host.DetachLayer(old)
		old.Dispose()
		delete(m.current, kind)
		m.logger.Debug("removed overlay", "kind", kind, "generation", old.Generation)
	}

	m.generation++
	o := newOverlay(kind, m.generation, fc)
	m.host.AttachLayer(o)
	m.current[kind] = o

	monitoring.RecordLayerInstall(string(kind), o.Len())
	m.logger.Debug("installed overlay",
		"kind", kind,
		"generation", o.Generation,
		"features", o.Len(),
		"popups", len(o.Popups()))

	return o, nil
}

// Current returns the attached overlay of kind, or nil
func (m *Manager) Current(kind Kind) *Overlay {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current[kind]
}

// Clear detaches and disposes every overlay
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for kind, o := range m.current {
		m.host.DetachLayer(o)
		o.Dispose()
		delete(m.current, kind)
	}
}
