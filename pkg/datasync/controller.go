// Package datasync fetches the overlay layers for a viewport and installs
// them, discarding responses that a newer sync has superseded.
package datasync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/NERVsystems/railmap/pkg/core"
	"github.com/NERVsystems/railmap/pkg/geo"
	"github.com/NERVsystems/railmap/pkg/layers"
	"github.com/NERVsystems/railmap/pkg/monitoring"
	"github.com/NERVsystems/railmap/pkg/tracing"
)

// Fetcher retrieves one layer for a query
type Fetcher interface {
	FetchLayer(ctx context.Context, kind layers.Kind, q geo.Query) (*geojson.FeatureCollection, error)
}

// Installer swaps the attached overlay of a kind
type Installer interface {
	InstallLayer(kind layers.Kind, fc *geojson.FeatureCollection) (*layers.Overlay, error)
}

// Notifier shows a message to the user
type Notifier interface {
	Notify(message string)
}

// Controller synchronises both overlay layers with the visible viewport
type Controller struct {
	fetcher   Fetcher
	installer Installer
	notifier  Notifier
	limit     int
	logger    *slog.Logger

	// mu guards latest and serialises installs against the sequence check
	mu     sync.Mutex
	latest map[layers.Kind]uint64
}

// NewController creates a controller. limit is the per-layer feature cap
// sent to the server; zero leaves it to the server default.
func NewController(fetcher Fetcher, installer Installer, notifier Notifier, limit int, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		fetcher:   fetcher,
		installer: installer,
		notifier:  notifier,
		limit:     limit,
		logger:    logger.With("component", "datasync"),
		latest:    make(map[layers.Kind]uint64),
	}
}

// Sync fetches both layers for v concurrently and installs each result that
// is still the newest for its kind. Failures are logged and reported to the
// user unless a newer sync has superseded them. They never affect the other
// layer or later syncs. Sync returns once both fetches have finished.
func (c *Controller) Sync(ctx context.Context, v geo.Viewport) {
	c.Begin(v)(ctx)
}

// Begin issues the sequence numbers for a sync of v and returns the fetch
// step. Begin does not block on the network. The sync begun last wins,
// whatever order the returned funcs run in.
func (c *Controller) Begin(v geo.Viewport) func(ctx context.Context) {
	q := geo.NewQuery(v).WithLimit(c.limit)

	seqs := make(map[layers.Kind]uint64, len(layers.Kinds))
	c.mu.Lock()
	for _, kind := range layers.Kinds {
		c.latest[kind]++
		seqs[kind] = c.latest[kind]
	}
	c.mu.Unlock()
	monitoring.SyncsTotal.Inc()

	return func(ctx context.Context) {
		c.run(ctx, v, q, seqs)
	}
}

func (c *Controller) run(ctx context.Context, v geo.Viewport, q geo.Query, seqs map[layers.Kind]uint64) {
	ctx, span := tracing.StartSpan(ctx, "datasync.Sync",
		trace.WithAttributes(attribute.String(tracing.AttrViewport, v.String())),
	)
	defer span.End()

	var g errgroup.Group
	for _, kind := range layers.Kinds {
		seq := seqs[kind]
		g.Go(func() error {
			c.syncLayer(ctx, kind, seq, q)
			return nil
		})
	}
	_ = g.Wait()
}

// Latest returns the newest sequence number issued for kind
func (c *Controller) Latest(kind layers.Kind) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest[kind]
}

func (c *Controller) syncLayer(ctx context.Context, kind layers.Kind, seq uint64, q geo.Query) {
	ctx, span := tracing.StartSpan(ctx, "datasync.syncLayer",
		trace.WithAttributes(tracing.LayerAttributes(string(kind), seq)...),
	)
	defer span.End()

	logger := c.logger.With("kind", kind, "seq", seq)

	fc, err := c.fetcher.FetchLayer(ctx, kind, q)
	if err != nil {
		tracing.RecordError(ctx, err)
		errKind := core.KindOf(err)
		monitoring.RecordLayerFetchFailure(string(kind), string(errKind))
		logger.Error("failed to fetch layer", "error", err, "error_kind", errKind)
		if c.notifier != nil && c.Latest(kind) == seq {
			c.notifier.Notify(fmt.Sprintf("Failed to load %s: %s", kind, core.UserMessage(err)))
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if latest := c.latest[kind]; seq != latest {
		span.SetAttributes(attribute.Bool(tracing.AttrLayerStale, true))
		monitoring.RecordStaleResponse(string(kind))
		logger.Debug("discarding stale layer response", "latest", latest)
		return
	}

	if _, err := c.installer.InstallLayer(kind, fc); err != nil {
		tracing.RecordError(ctx, err)
		logger.Error("failed to install layer", "error", err)
		return
	}
	span.SetAttributes(attribute.Int(tracing.AttrLayerFeatures, len(fc.Features)))
}
