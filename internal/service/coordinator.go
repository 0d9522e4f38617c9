// Package service implements the scheduling coordinator: the engine facade
// that ties the forecast, window finder, risk model, and both lifecycle
// state machines together over persisted records.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/futonlab/miteguard/internal/db"
	"github.com/futonlab/miteguard/internal/forecast"
	"github.com/futonlab/miteguard/internal/lifecycle"
	"github.com/futonlab/miteguard/internal/metrics"
	"github.com/futonlab/miteguard/internal/models"
	"github.com/futonlab/miteguard/internal/notify"
	"github.com/futonlab/miteguard/internal/predictor"
	"github.com/futonlab/miteguard/internal/window"
)

// Sentinel errors surfaced to callers.
var (
	// ErrConflict indicates the operation's precondition no longer holds
	// against the persisted state. The message carries the authoritative
	// state so the caller can present a specific conflict.
	ErrConflict = errors.New("conflict with current state")

	// ErrInvariant indicates a state that must never be persisted (double
	// open session, score out of range). The operation is rejected whole.
	ErrInvariant = errors.New("invariant violation")

	// ErrNoLocation indicates the item has no usable location for a
	// forecast-dependent operation.
	ErrNoLocation = errors.New("item has no resolvable location")
)

// Deps bundles the coordinator's collaborators.
type Deps struct {
	Store     Store
	Forecast  forecast.Provider
	Predictor predictor.Predictor
	Notifier  notify.Notifier
	Finder    *window.Finder
	Metrics   *metrics.Collector
	Logger    *slog.Logger

	// Now is the injected clock; defaults to time.Now. Every time-triggered
	// decision goes through it so tests can drive the wall clock.
	Now func() time.Time

	// RadiusKm is the default discovery radius when the caller passes none.
	RadiusKm float64
}

// Coordinator sequences item and order transitions. The two state machines
// each own only their own status field; the coordinator is the only place
// that updates both, always through conditional writes.
type Coordinator struct {
	store     Store
	forecast  forecast.Provider
	predictor predictor.Predictor
	notifier  notify.Notifier
	finder    *window.Finder
	metrics   *metrics.Collector
	logger    *slog.Logger
	now       func() time.Time
	radiusKm  float64
}

// NewCoordinator wires a coordinator, filling optional dependencies with
// working defaults.
func NewCoordinator(d Deps) *Coordinator {
	if d.Predictor == nil {
		d.Predictor = predictor.Fallback{}
	}
	if d.Notifier == nil {
		d.Notifier = notify.NewLogNotifier(d.Logger)
	}
	if d.Finder == nil {
		d.Finder = window.NewFinder(window.Tuning{})
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewCollector()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.RadiusKm <= 0 {
		d.RadiusKm = 10
	}
	return &Coordinator{
		store:     d.Store,
		forecast:  d.Forecast,
		predictor: d.Predictor,
		notifier:  d.Notifier,
		finder:    d.Finder,
		metrics:   d.Metrics,
		logger:    d.Logger,
		now:       d.Now,
		radiusKm:  d.RadiusKm,
	}
}

// SelectWindow fetches the forecast for an item's location and returns the
// best drying window plus the full assessment. A forecast fetch failure is
// returned as an error wrapping forecast.ErrUnavailable; "no suitable
// window" is a successful call with a nil window and a reason.
func (c *Coordinator) SelectWindow(ctx context.Context, itemID string) (*models.OptimalWindow, window.Assessment, error) {
	item, err := c.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, window.Assessment{}, err
	}

	coord, err := c.itemCoord(ctx, item)
	if err != nil {
		return nil, window.Assessment{}, err
	}

	start := c.now()
	intervals, err := c.forecast.Forecast(ctx, coord.Latitude, coord.Longitude)
	c.metrics.RecordTiming(metrics.OpForecastFetch, time.Since(start))
	if err != nil {
		c.metrics.RecordFailure(metrics.OpForecastFetch)
		return nil, window.Assessment{}, fmt.Errorf("fetch forecast for item %s: %w", itemID, err)
	}

	assessment := c.finder.Assess(intervals)
	if len(assessment.Windows) == 0 {
		return nil, assessment, nil
	}
	best := assessment.Windows[0]
	return &best, assessment, nil
}

// ConfirmIntervention records a user's commitment to a self-service drying
// window: it creates the session (the audit record) and moves the item to
// waitingOptimalTime. If outcome is nil, the predictor supplies one.
func (c *Coordinator) ConfirmIntervention(ctx context.Context, itemID, initiatorID string, win models.OptimalWindow, outcome *predictor.Outcome) (*models.DryingSession, error) {
	item, err := c.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !lifecycle.ItemIdle(item.Status) {
		return nil, fmt.Errorf("item %s is %s: %w", itemID, item.Status, ErrConflict)
	}
	if err := c.requireNoOpenIntervention(ctx, itemID); err != nil {
		return nil, err
	}

	if outcome == nil {
		predicted, err := c.predict(ctx, predictor.Request{
			BeforeScore: item.RiskScore,
			Window:      win,
		})
		if err != nil {
			return nil, err
		}
		outcome = &predicted
	}

	session, err := c.store.CreateSession(ctx, &models.DryingSession{
		ItemID:         item.ID,
		InitiatorID:    initiatorID,
		StartTime:      &win.StartTime,
		EndTime:        &win.EndTime,
		IsSelfService:  true,
		BeforeScore:    item.RiskScore,
		PredictedAfter: &outcome.FinalScore,
	})
	if err != nil {
		return nil, err
	}

	sessionID := models.MustRecordIDString(session.ID)
	if _, err := c.store.UpdateItemStatusCAS(ctx, itemID, models.ItemStatusNormal, models.ItemStatusWaitingOptimalTime); err != nil {
		// Another actor won the race; close the session we just opened so
		// the item is not left with a dangling open intervention.
		if closeErr := c.store.CloseSession(ctx, sessionID, c.now()); closeErr != nil {
			c.logger.Error("close orphaned session", "session_id", sessionID, "error", closeErr)
		}
		if errors.Is(err, db.ErrPreconditionFailed) {
			return nil, fmt.Errorf("item %s changed state: %w", itemID, ErrConflict)
		}
		return nil, err
	}

	c.emit(ctx, notify.Event{
		Type:      "drying.scheduled",
		ItemID:    itemID,
		SessionID: sessionID,
		Detail:    fmt.Sprintf("window %s to %s", win.StartTime.Format(time.RFC3339), win.EndTime.Format(time.RFC3339)),
	})
	return session, nil
}

// CancelIntervention is total cancellation: from any non-normal item state
// it closes the open session, cancels any open order, and returns the item
// to normal. Calling it on an idle item is a no-op.
func (c *Coordinator) CancelIntervention(ctx context.Context, itemID string) error {
	item, err := c.store.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if lifecycle.ItemIdle(item.Status) {
		return nil
	}

	if order, err := c.store.OpenOrderForItem(ctx, itemID); err != nil {
		return err
	} else if order != nil {
		orderID := models.MustRecordIDString(order.ID)
		if _, err := c.store.UpdateOrderStatusCAS(ctx, orderID, order.Status, models.OrderStatusCancelled); err != nil && !errors.Is(err, db.ErrPreconditionFailed) {
			return err
		}
	}

	if session, err := c.store.OpenSessionForItem(ctx, itemID); err != nil {
		return err
	} else if session != nil {
		if err := c.store.CloseSession(ctx, models.MustRecordIDString(session.ID), c.now()); err != nil {
			return err
		}
	}

	if _, err := c.store.UpdateItemStatusCAS(ctx, itemID, item.Status, models.ItemStatusNormal); err != nil {
		if errors.Is(err, db.ErrPreconditionFailed) {
			// Re-read: if something else already returned it to normal the
			// cancellation is done, not failed.
			current, readErr := c.store.GetItem(ctx, itemID)
			if readErr == nil && lifecycle.ItemIdle(current.Status) {
				return nil
			}
			return fmt.Errorf("item %s changed state during cancel: %w", itemID, ErrConflict)
		}
		return err
	}

	c.emit(ctx, notify.Event{Type: "drying.cancelled", ItemID: itemID})
	return nil
}

// ItemHistory returns the item's full intervention audit trail.
func (c *Coordinator) ItemHistory(ctx context.Context, itemID string) ([]models.DryingSession, error) {
	return c.store.ListSessionsForItem(ctx, itemID)
}

// requireNoOpenIntervention rejects when the item already has an open
// session or order. An idle status with an open record means a prior write
// was left half-applied; that is an invariant violation, not a conflict.
func (c *Coordinator) requireNoOpenIntervention(ctx context.Context, itemID string) error {
	session, err := c.store.OpenSessionForItem(ctx, itemID)
	if err != nil {
		return err
	}
	if session != nil {
		return fmt.Errorf("item %s already has an open session: %w", itemID, ErrInvariant)
	}
	order, err := c.store.OpenOrderForItem(ctx, itemID)
	if err != nil {
		return err
	}
	if order != nil {
		return fmt.Errorf("item %s already has an open order: %w", itemID, ErrInvariant)
	}
	return nil
}

// itemCoord resolves an item's location to coordinates.
func (c *Coordinator) itemCoord(ctx context.Context, item *models.Item) (*models.Coord, error) {
	if item.LocationID == nil {
		return nil, fmt.Errorf("item %s: %w", models.MustRecordIDString(item.ID), ErrNoLocation)
	}
	loc, err := c.store.GetLocation(ctx, models.MustRecordIDString(*item.LocationID))
	if err != nil {
		return nil, err
	}
	coord := loc.Coord()
	if coord == nil {
		return nil, fmt.Errorf("item %s location not geocoded: %w", models.MustRecordIDString(item.ID), ErrNoLocation)
	}
	return coord, nil
}

// predict runs the predictor with timing, falling back to the deterministic
// formula if the configured predictor errors.
func (c *Coordinator) predict(ctx context.Context, req predictor.Request) (predictor.Outcome, error) {
	start := c.now()
	outcome, err := c.predictor.Predict(ctx, req)
	c.metrics.RecordTiming(metrics.OpPredict, time.Since(start))
	if err != nil {
		c.metrics.RecordFailure(metrics.OpPredict)
		c.logger.Warn("predictor failed, using deterministic fallback", "error", err)
		return predictor.Fallback{}.Predict(ctx, req)
	}
	return outcome, nil
}

// emit sends a notification without ever failing the calling transition.
func (c *Coordinator) emit(ctx context.Context, ev notify.Event) {
	ev.At = c.now()
	c.notifier.Notify(ctx, ev)
}
