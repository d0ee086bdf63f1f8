// Package correction implements the lifecycle of a user-drawn station
// correction, from the drawn polygon through confirm or cancel.
package correction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/railmap/pkg/core"
	"github.com/NERVsystems/railmap/pkg/monitoring"
	"github.com/NERVsystems/railmap/pkg/tracing"
)

// User-facing text
const (
	FormPrompt        = "Which station did you just draw?"
	ValidationMessage = "Please input a STANOX."
	FailurePrefix     = "Correction failed: "
	DraftActiveNotice = "Finish or cancel the current correction before drawing another."
)

var (
	// ErrNotPolygon is returned for drawn shapes that are not polygons
	ErrNotPolygon = errors.New("only polygons can be submitted as corrections")
	// ErrDraftActive is returned when a shape is drawn while another draft is open
	ErrDraftActive = errors.New("a correction is already in progress")
	// ErrNoDraft is returned when there is no open draft to act on
	ErrNoDraft = errors.New("no correction in progress")
	// ErrSubmitting is returned for actions not allowed while a submission is in flight
	ErrSubmitting = errors.New("correction is being submitted")
	// ErrValidation is returned when Confirm is called without a label
	ErrValidation = core.NewValidationError(core.ErrEmptyParameter, ValidationMessage)
)

// Surface is the part of the map the workflow draws on
type Surface interface {
	AddShape(id string, poly orb.Polygon)
	RemoveShape(id string)
	ShowForm(id, prompt string)
	RemoveForm(id string)
	Notify(message string)
}

// Submitter sends a correction to the server
type Submitter interface {
	SubmitCorrection(ctx context.Context, poly orb.Polygon, name string) error
}

// Refresher re-syncs the current viewport
type Refresher interface {
	Refresh(ctx context.Context)
}

// Draft is a snapshot of the open correction
type Draft struct {
	ID       string      `json:"id"`
	Geometry orb.Polygon `json:"-"`
	Label    string      `json:"label"`
	State    State       `json:"state"`
}

// Workflow holds at most one open draft at a time
type Workflow struct {
	surface   Surface
	submitter Submitter
	refresher Refresher
	logger    *slog.Logger

	mu     sync.Mutex
	draft  *Draft
	nextID int
	last   State
}

// NewWorkflow creates a workflow with no open draft
func NewWorkflow(surface Surface, submitter Submitter, refresher Refresher, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		surface:   surface,
		submitter: submitter,
		refresher: refresher,
		logger:    logger.With("component", "correction"),
	}
}

// Begin opens a draft for a drawn shape: the shape is put on the map and the
// label form shown. Non-polygon shapes are ignored. While another draft is
// open the new shape is discarded and the user told to finish the first.
func (w *Workflow) Begin(shape orb.Geometry) (Draft, error) {
	poly, ok := shape.(orb.Polygon)
	if !ok || len(poly) == 0 {
		w.logger.Debug("ignoring non-polygon shape", "type", geometryType(shape))
		return Draft{}, ErrNotPolygon
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.draft != nil {
		w.surface.Notify(DraftActiveNotice)
		monitoring.RecordCorrection("rejected_concurrent")
		w.logger.Info("discarding shape drawn during open correction", "draft", w.draft.ID)
		return Draft{}, ErrDraftActive
	}

	w.nextID++
	d := &Draft{
		ID:       fmt.Sprintf("draft-%d", w.nextID),
		Geometry: poly,
		State:    Drawn,
	}
	w.draft = d
	w.setState(d, Drawn)

	w.surface.AddShape(d.ID, poly)
	w.surface.ShowForm(d.ID, FormPrompt)
	w.setState(d, AwaitingInput)
	monitoring.ActiveDrafts.Inc()

	return *d, nil
}

// SetLabel updates the station identifier of the open draft
func (w *Workflow) SetLabel(label string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.draft == nil {
		return ErrNoDraft
	}
	if w.draft.State == Submitting {
		return ErrSubmitting
	}
	w.draft.Label = label
	return nil
}

// Cancel discards the open draft without contacting the server
func (w *Workflow) Cancel() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	d := w.draft
	if d == nil {
		return ErrNoDraft
	}
	if d.State == Submitting {
		return ErrSubmitting
	}

	w.close(d, Cancelled)
	monitoring.RecordCorrection("cancelled")
	return nil
}

// Confirm submits the open draft. An empty label shows a validation message
// and sends nothing. On success the draft is closed; on failure the server's
// reason is shown and the draft stays open for another attempt. Either way
// the current viewport is refreshed once the server has answered.
func (w *Workflow) Confirm(ctx context.Context) error {
	w.mu.Lock()
	d := w.draft
	if d == nil {
		w.mu.Unlock()
		return ErrNoDraft
	}
	if d.State == Submitting {
		w.mu.Unlock()
		return ErrSubmitting
	}

	label := strings.TrimSpace(d.Label)
	if label == "" {
		w.surface.Notify(ValidationMessage)
		w.mu.Unlock()
		monitoring.RecordCorrection("invalid")
		return ErrValidation
	}

	w.setState(d, Submitting)
	poly := d.Geometry
	w.mu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "correction.Confirm",
		trace.WithAttributes(attribute.String(tracing.AttrCorrectionName, label)),
	)
	defer span.End()

	err := w.submitter.SubmitCorrection(ctx, poly, label)

	w.mu.Lock()
	if err == nil {
		w.close(d, Confirmed)
	} else {
		w.surface.Notify(FailurePrefix + core.UserMessage(err))
		w.setState(d, SubmitFailed)
		w.setState(d, AwaitingInput)
	}
	w.mu.Unlock()

	if err == nil {
		span.SetAttributes(attribute.String(tracing.AttrCorrectionOutcome, tracing.StatusSuccess))
		monitoring.RecordCorrection("confirmed")
		w.logger.Info("correction confirmed", "draft", d.ID, "name", label)
	} else {
		tracing.RecordError(ctx, err)
		span.SetAttributes(attribute.String(tracing.AttrCorrectionOutcome, tracing.StatusError))
		monitoring.RecordCorrection("failed")
		w.logger.Warn("correction failed", "draft", d.ID, "name", label, "error", err)
	}

	if w.refresher != nil {
		w.refresher.Refresh(ctx)
	}

	if err != nil {
		return fmt.Errorf("submit correction: %w", err)
	}
	return nil
}

// Current returns a snapshot of the open draft
func (w *Workflow) Current() (Draft, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.draft == nil {
		return Draft{}, false
	}
	return *w.draft, true
}

// LastState returns the state most recently entered by any draft
func (w *Workflow) LastState() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// close removes the draft's shape and form and ends it in a terminal state.
// w.mu must be held.
func (w *Workflow) close(d *Draft, terminal State) {
	w.surface.RemoveShape(d.ID)
	w.surface.RemoveForm(d.ID)
	w.setState(d, terminal)
	w.draft = nil
	monitoring.ActiveDrafts.Dec()
}

// setState moves d to s. w.mu must be held.
func (w *Workflow) setState(d *Draft, s State) {
	if d.State != s {
		w.logger.Debug("correction state", "draft", d.ID, "from", d.State, "to", s)
	}
	d.State = s
	w.last = s
}

func geometryType(g orb.Geometry) string {
	if g == nil {
		return "none"
	}
	return g.GeoJSONType()
}
