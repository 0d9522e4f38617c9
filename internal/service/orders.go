package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/futonlab/miteguard/internal/db"
	"github.com/futonlab/miteguard/internal/geo"
	"github.com/futonlab/miteguard/internal/lifecycle"
	"github.com/futonlab/miteguard/internal/models"
	"github.com/futonlab/miteguard/internal/notify"
	"github.com/futonlab/miteguard/internal/predictor"
	"github.com/futonlab/miteguard/internal/risk"
)

// Cost model constants, in JPY.
const (
	costThin       = 2000
	costMedium     = 2400
	costThick      = 2800
	costExtraThick = 3200
	costPerFloor   = 200
)

// OrderResult is the outcome of creating a helper order. Warnings carry
// non-fatal gaps, such as cost defaults applied for missing location data.
type OrderResult struct {
	Order    *models.ServiceOrder  `json:"order"`
	Session  *models.DryingSession `json:"session"`
	Warnings []string              `json:"warnings,omitempty"`
}

// EstimateCost prices a helper intervention from the item's thickness and
// the pickup location's access. Missing attributes fall back to the cheaper
// assumption and are reported as warnings rather than errors.
func EstimateCost(item *models.Item, loc *models.Location) (int, []string) {
	var warnings []string

	var base int
	switch item.Thickness {
	case models.ThicknessThin:
		base = costThin
	case models.ThicknessMedium:
		base = costMedium
	case models.ThicknessThick:
		base = costThick
	case models.ThicknessExtraThick:
		base = costExtraThick
	default:
		base = costMedium
		warnings = append(warnings, fmt.Sprintf("unknown thickness %q, priced as medium", item.Thickness))
	}

	floor := 1
	if loc != nil && loc.FloorNumber != nil {
		floor = *loc.FloorNumber
	} else {
		warnings = append(warnings, "floor number unknown, priced as ground floor")
	}
	hasElevator := false
	if loc != nil && loc.HasElevator != nil {
		hasElevator = *loc.HasElevator
	} else {
		warnings = append(warnings, "elevator access unknown, priced as stairs")
	}

	cost := base
	if !hasElevator && floor > 1 {
		cost += (floor - 1) * costPerFloor
	}
	return cost, warnings
}

// CreateServiceOrder opens a helper-assisted intervention for an idle item:
// it creates the session and a pending order priced by the cost model, then
// parks the item in waitingPickup. The order stays pending until a helper
// accepts; if the window begins first, Tick expires it.
func (c *Coordinator) CreateServiceOrder(ctx context.Context, itemID, requesterID string, win models.OptimalWindow) (*OrderResult, error) {
	item, err := c.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.OwnerID != requesterID {
		return nil, fmt.Errorf("item %s is not owned by %s: %w", itemID, requesterID, ErrConflict)
	}
	if !lifecycle.ItemIdle(item.Status) {
		return nil, fmt.Errorf("item %s is %s: %w", itemID, item.Status, ErrConflict)
	}
	if err := c.requireNoOpenIntervention(ctx, itemID); err != nil {
		return nil, err
	}

	var loc *models.Location
	if item.LocationID != nil {
		loc, err = c.store.GetLocation(ctx, models.MustRecordIDString(*item.LocationID))
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
	}
	cost, warnings := EstimateCost(item, loc)

	outcome, err := c.predict(ctx, predictor.Request{
		BeforeScore: item.RiskScore,
		Window:      win,
	})
	if err != nil {
		return nil, err
	}

	session, err := c.store.CreateSession(ctx, &models.DryingSession{
		ItemID:         item.ID,
		InitiatorID:    requesterID,
		StartTime:      &win.StartTime,
		EndTime:        &win.EndTime,
		IsSelfService:  false,
		BeforeScore:    item.RiskScore,
		PredictedAfter: &outcome.FinalScore,
	})
	if err != nil {
		return nil, err
	}
	sessionID := models.MustRecordIDString(session.ID)

	order, err := c.store.CreateOrder(ctx, &models.ServiceOrder{
		ItemID:      item.ID,
		RequesterID: requesterID,
		LocationID:  item.LocationID,
		SessionID:   session.ID,
		Status:      models.OrderStatusPending,
		Cost:        &cost,
	})
	if err != nil {
		if closeErr := c.store.CloseSession(ctx, sessionID, c.now()); closeErr != nil {
			c.logger.Error("close orphaned session", "session_id", sessionID, "error", closeErr)
		}
		return nil, err
	}
	orderID := models.MustRecordIDString(order.ID)

	if _, err := c.store.UpdateItemStatusCAS(ctx, itemID, models.ItemStatusNormal, models.ItemStatusWaitingPickup); err != nil {
		c.rollbackOrder(ctx, orderID, sessionID, models.OrderStatusPending)
		if errors.Is(err, db.ErrPreconditionFailed) {
			return nil, fmt.Errorf("item %s changed state: %w", itemID, ErrConflict)
		}
		return nil, err
	}

	c.emit(ctx, notify.Event{
		Type:    "order.created",
		ItemID:  itemID,
		OrderID: orderID,
		Detail:  fmt.Sprintf("cost %d JPY, window %s to %s", cost, win.StartTime.Format(time.RFC3339), win.EndTime.Format(time.RFC3339)),
	})
	return &OrderResult{Order: order, Session: session, Warnings: warnings}, nil
}

// ListNearbyOrders returns the pending orders a helper can pick up: every
// pending order except the helper's own, filtered to radiusKm around their
// location. Stale unaccepted orders are expired first so they never show
// up in discovery. A nil location, or an order whose pickup point is not
// geocoded, passes the filter so that missing data widens visibility
// instead of hiding work.
func (c *Coordinator) ListNearbyOrders(ctx context.Context, helperID string, at *models.Coord, radiusKm float64) ([]models.ServiceOrder, error) {
	if radiusKm <= 0 {
		radiusKm = c.radiusKm
	}

	var sweep TickReport
	if err := c.expireStaleOrders(ctx, c.now(), &sweep); err != nil {
		c.logger.Warn("expiry sweep before discovery failed", "error", err)
	}

	pending, err := c.store.ListOrdersByStatus(ctx, models.OrderStatusPending)
	if err != nil {
		return nil, err
	}

	candidates := make([]geo.Candidate, 0, len(pending))
	for _, order := range pending {
		if order.RequesterID == helperID {
			continue
		}
		var coord *models.Coord
		if order.LocationID != nil {
			loc, err := c.store.GetLocation(ctx, models.MustRecordIDString(*order.LocationID))
			if err != nil && !errors.Is(err, db.ErrNotFound) {
				return nil, err
			}
			if loc != nil {
				coord = loc.Coord()
			}
		}
		candidates = append(candidates, geo.Candidate{Order: order, Coord: coord})
	}

	return geo.FilterNearby(candidates, at, radiusKm), nil
}

// AcceptOrder assigns a pending order to a helper and moves the item into
// helpDrying. First acceptance wins; a concurrent second accept loses the
// conditional update and gets ErrConflict. Requesters cannot accept their
// own orders.
func (c *Coordinator) AcceptOrder(ctx context.Context, orderID, helperID string) (*models.ServiceOrder, error) {
	order, err := c.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.RequesterID == helperID {
		return nil, fmt.Errorf("requester cannot accept own order %s: %w", orderID, ErrConflict)
	}

	accepted, err := c.store.AcceptOrderCAS(ctx, orderID, helperID)
	if err != nil {
		if errors.Is(err, db.ErrPreconditionFailed) {
			return nil, fmt.Errorf("order %s is no longer pending: %w", orderID, ErrConflict)
		}
		return nil, err
	}

	itemID := models.MustRecordIDString(accepted.ItemID)
	if _, err := c.store.UpdateItemStatusCAS(ctx, itemID, models.ItemStatusWaitingPickup, models.ItemStatusHelpDrying); err != nil && !errors.Is(err, db.ErrPreconditionFailed) {
		return nil, err
	}

	c.emit(ctx, notify.Event{
		Type:    "order.accepted",
		ItemID:  itemID,
		OrderID: orderID,
	})
	return accepted, nil
}

// BeginExecution marks an accepted order as in progress. The item is
// normally already in helpDrying from acceptance; the conditional update
// here repairs it if the accept-time transition was lost. Only the
// assigned helper may start the work.
func (c *Coordinator) BeginExecution(ctx context.Context, orderID, helperID string) (*models.ServiceOrder, error) {
	order, err := c.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := requireAssignee(order, helperID); err != nil {
		return nil, err
	}

	updated, err := c.store.UpdateOrderStatusCAS(ctx, orderID, models.OrderStatusAccepted, models.OrderStatusInProgress)
	if err != nil {
		if errors.Is(err, db.ErrPreconditionFailed) {
			return nil, fmt.Errorf("order %s is %s: %w", orderID, order.Status, ErrConflict)
		}
		return nil, err
	}

	itemID := models.MustRecordIDString(order.ItemID)
	if _, err := c.store.UpdateItemStatusCAS(ctx, itemID, models.ItemStatusWaitingPickup, models.ItemStatusHelpDrying); err != nil && !errors.Is(err, db.ErrPreconditionFailed) {
		return nil, err
	}

	c.emit(ctx, notify.Event{Type: "order.started", ItemID: itemID, OrderID: orderID})
	return updated, nil
}

// CompleteOrder finishes an in-progress order: the session's predicted
// outcome is committed as the item's new risk score, the session closes,
// and the item returns to normal. Only the assigned helper may complete.
func (c *Coordinator) CompleteOrder(ctx context.Context, orderID, helperID string) (*models.ServiceOrder, error) {
	order, err := c.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := requireAssignee(order, helperID); err != nil {
		return nil, err
	}

	updated, err := c.store.UpdateOrderStatusCAS(ctx, orderID, models.OrderStatusInProgress, models.OrderStatusCompleted)
	if err != nil {
		if errors.Is(err, db.ErrPreconditionFailed) {
			return nil, fmt.Errorf("order %s is %s: %w", orderID, order.Status, ErrConflict)
		}
		return nil, err
	}

	sessionID := models.MustRecordIDString(order.SessionID)
	itemID := models.MustRecordIDString(order.ItemID)
	now := c.now()

	session, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	after := session.BeforeScore
	if session.PredictedAfter != nil {
		after = *session.PredictedAfter
	}
	after = risk.Clamp(after)

	if err := c.store.SetSessionOutcome(ctx, sessionID, after, now); err != nil {
		return nil, err
	}
	if _, err := c.store.CommitItemScoreCAS(ctx, itemID, models.ItemStatusHelpDrying, models.ItemStatusNormal, after); err != nil && !errors.Is(err, db.ErrPreconditionFailed) {
		return nil, err
	}
	if err := c.store.CloseSession(ctx, sessionID, now); err != nil {
		return nil, err
	}

	c.emit(ctx, notify.Event{
		Type:    "order.completed",
		ItemID:  itemID,
		OrderID: orderID,
		Detail:  fmt.Sprintf("score %.2f to %.2f", session.BeforeScore, after),
	})
	return updated, nil
}

// CancelOrder cancels a non-terminal order on behalf of its requester or
// assignee, closing the session and returning the item to normal. The item
// keeps its current risk score; no partial outcome is ever committed.
func (c *Coordinator) CancelOrder(ctx context.Context, orderID, actorID string) error {
	order, err := c.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !actorOnOrder(order, actorID) {
		return fmt.Errorf("%s is not a party to order %s: %w", actorID, orderID, ErrConflict)
	}
	if order.Status == models.OrderStatusCompleted || order.Status == models.OrderStatusCancelled {
		return fmt.Errorf("order %s is already %s: %w", orderID, order.Status, ErrConflict)
	}

	if _, err := c.store.UpdateOrderStatusCAS(ctx, orderID, order.Status, models.OrderStatusCancelled); err != nil {
		if errors.Is(err, db.ErrPreconditionFailed) {
			return fmt.Errorf("order %s changed state: %w", orderID, ErrConflict)
		}
		return err
	}

	itemID := models.MustRecordIDString(order.ItemID)
	if err := c.store.CloseSession(ctx, models.MustRecordIDString(order.SessionID), c.now()); err != nil {
		return err
	}

	item, err := c.store.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if !lifecycle.ItemIdle(item.Status) {
		if _, err := c.store.UpdateItemStatusCAS(ctx, itemID, item.Status, models.ItemStatusNormal); err != nil && !errors.Is(err, db.ErrPreconditionFailed) {
			return err
		}
	}

	c.emit(ctx, notify.Event{Type: "order.cancelled", ItemID: itemID, OrderID: orderID})
	return nil
}

// rollbackOrder undoes a half-created order after a later step failed.
func (c *Coordinator) rollbackOrder(ctx context.Context, orderID, sessionID string, from models.OrderStatus) {
	if _, err := c.store.UpdateOrderStatusCAS(ctx, orderID, from, models.OrderStatusCancelled); err != nil && !errors.Is(err, db.ErrPreconditionFailed) {
		c.logger.Error("cancel orphaned order", "order_id", orderID, "error", err)
	}
	if err := c.store.CloseSession(ctx, sessionID, c.now()); err != nil {
		c.logger.Error("close orphaned session", "session_id", sessionID, "error", err)
	}
}

func requireAssignee(order *models.ServiceOrder, helperID string) error {
	if order.AssigneeID == nil || *order.AssigneeID != helperID {
		return fmt.Errorf("order %s is not assigned to %s: %w", models.MustRecordIDString(order.ID), helperID, ErrConflict)
	}
	return nil
}

func actorOnOrder(order *models.ServiceOrder, actorID string) bool {
	if order.RequesterID == actorID {
		return true
	}
	return order.AssigneeID != nil && *order.AssigneeID == actorID
}
