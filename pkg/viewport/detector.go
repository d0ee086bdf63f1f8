// Package viewport decides when a change of the visible map area warrants
// fetching fresh layer data.
package viewport

import (
	"context"
	"log/slog"
	"sync"

	"github.com/NERVsystems/railmap/pkg/geo"
	"github.com/NERVsystems/railmap/pkg/monitoring"
)

// Source reports the currently visible map area
type Source interface {
	Viewport() geo.Viewport
}

// Syncer loads layer data for a viewport. Begin is called with the
// detector's lock held and must not block. The returned func does the
// loading.
type Syncer interface {
	Begin(v geo.Viewport) func(ctx context.Context)
}

// Detector remembers the last viewport that triggered a sync and suppresses
// syncs for navigation that leaves the viewport unchanged
type Detector struct {
	source Source
	syncer Syncer
	logger *slog.Logger

	mu       sync.Mutex
	previous geo.Viewport
	seen     bool
}

// NewDetector creates a detector with no previous viewport
func NewDetector(source Source, syncer Syncer, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		source: source,
		syncer: syncer,
		logger: logger.With("component", "viewport"),
	}
}

// CheckAndMaybeSync syncs the current viewport if it differs by value from
// the previous one, or if no sync has happened yet. It reports whether a
// sync was triggered.
func (d *Detector) CheckAndMaybeSync(ctx context.Context) bool {
	run := d.Check()
	if run == nil {
		return false
	}
	run(ctx)
	return true
}

// Check is the non-blocking half of CheckAndMaybeSync. When the viewport
// changed it records it, begins a sync and returns the pending load;
// otherwise it returns nil. The source read, the comparison and Begin happen
// under one lock, so syncs begin in the order viewports were read and the
// newest viewport always holds the newest sequence numbers.
func (d *Detector) Check() func(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	current := d.source.Viewport()
	changed := !d.seen || !current.Equal(d.previous)
	monitoring.RecordViewportCheck(changed)
	if !changed {
		d.logger.Debug("viewport unchanged", "viewport", current)
		return nil
	}

	d.previous = current
	d.seen = true
	d.logger.Debug("viewport changed", "viewport", current)
	return d.syncer.Begin(current)
}

// Refresh syncs the current viewport whether or not it changed
func (d *Detector) Refresh(ctx context.Context) {
	d.mu.Lock()
	current := d.source.Viewport()
	d.previous = current
	d.seen = true
	run := d.syncer.Begin(current)
	d.mu.Unlock()

	d.logger.Debug("refreshing viewport", "viewport", current)
	run(ctx)
}

// Previous returns the last synced viewport, if any
func (d *Detector) Previous() (geo.Viewport, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.previous, d.seen
}
