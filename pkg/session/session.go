// Package session wires the map, change detector, sync controller, layer
// manager and correction workflow into one running map client.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/NERVsystems/railmap/pkg/correction"
	"github.com/NERVsystems/railmap/pkg/datasync"
	"github.com/NERVsystems/railmap/pkg/layers"
	"github.com/NERVsystems/railmap/pkg/mapview"
	"github.com/NERVsystems/railmap/pkg/viewport"
)

// API is the remote geo server as seen by a session
type API interface {
	datasync.Fetcher
	correction.Submitter
}

// Session is one map with its overlays and correction workflow
type Session struct {
	Map         *mapview.Headless
	Layers      *layers.Manager
	Sync        *datasync.Controller
	Detector    *viewport.Detector
	Corrections *correction.Workflow

	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New builds a session around m. limit caps the features per layer request.
func New(m *mapview.Headless, api API, limit int, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		Map:    m,
		logger: logger.With("component", "session"),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.Layers = layers.NewManager(m, logger)
	s.Sync = datasync.NewController(api, s.Layers, m, limit, logger)
	s.Detector = viewport.NewDetector(m, s.Sync, logger)
	s.Corrections = correction.NewWorkflow(m, api, s.Detector, logger)

	m.Bus().OnViewportChanged(s.handleViewportChanged)
	m.Bus().OnShapeDrawn(s.handleShapeDrawn)

	return s
}

// Start performs the startup viewport check and returns once the initial
// layers have been fetched
func (s *Session) Start(ctx context.Context) {
	s.logger.Info("starting map session", "viewport", s.Map.Viewport())
	s.Detector.CheckAndMaybeSync(ctx)
}

// handleViewportChanged runs the change detector on the emitting goroutine so
// syncs begin in event order, then loads the layers without blocking the map
func (s *Session) handleViewportChanged() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	run := s.Detector.Check()
	if run == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		run(s.ctx)
	}()
}

// handleShapeDrawn opens a correction draft for a drawn shape
func (s *Session) handleShapeDrawn(shape mapview.Shape) {
	if _, err := s.Corrections.Begin(shape.Geometry); err != nil {
		if errors.Is(err, correction.ErrNotPolygon) {
			s.logger.Debug("ignoring drawn shape", "type", shape.Type)
			return
		}
		s.logger.Info("shape not accepted", "type", shape.Type, "error", err)
	}
}

// Wait blocks until all in-flight event work has finished
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close stops accepting events, cancels in-flight fetches, waits for them to
// finish and removes all overlays from the map
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.Layers.Clear()
	s.logger.Info("map session closed")
}
