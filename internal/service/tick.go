package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/futonlab/miteguard/internal/db"
	"github.com/futonlab/miteguard/internal/forecast"
	"github.com/futonlab/miteguard/internal/metrics"
	"github.com/futonlab/miteguard/internal/models"
	"github.com/futonlab/miteguard/internal/notify"
	"github.com/futonlab/miteguard/internal/risk"
)

// TickReport summarizes one scheduling pass.
type TickReport struct {
	Started       int `json:"started"`
	Completed     int `json:"completed"`
	ExpiredOrders int `json:"expired_orders"`
	Skipped       int `json:"skipped"`
}

// GrowthReport summarizes one risk accrual pass.
type GrowthReport struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
}

// Tick advances every time-triggered transition that is due at the injected
// clock's current instant: scheduled self-drying sessions start, running
// ones complete and commit their outcome, and pending helper orders whose
// window has already begun expire. Each record is advanced through a
// conditional update, so overlapping ticks and user actions never
// double-apply a transition; the loser of any race is counted as skipped.
func (c *Coordinator) Tick(ctx context.Context) (TickReport, error) {
	start := c.now()
	report := TickReport{}

	if err := c.startDueSessions(ctx, start, &report); err != nil {
		c.metrics.RecordFailure(metrics.OpTick)
		return report, err
	}
	if err := c.completeDueSessions(ctx, start, &report); err != nil {
		c.metrics.RecordFailure(metrics.OpTick)
		return report, err
	}
	if err := c.expireStaleOrders(ctx, start, &report); err != nil {
		c.metrics.RecordFailure(metrics.OpTick)
		return report, err
	}

	c.metrics.RecordTiming(metrics.OpTick, time.Since(start))
	return report, nil
}

// startDueSessions moves waitingOptimalTime items into selfDrying once the
// confirmed window has begun.
func (c *Coordinator) startDueSessions(ctx context.Context, now time.Time, report *TickReport) error {
	items, err := c.store.ListItemsByStatus(ctx, models.ItemStatusWaitingOptimalTime)
	if err != nil {
		return fmt.Errorf("list waiting items: %w", err)
	}

	for i := range items {
		item := &items[i]
		itemID := models.MustRecordIDString(item.ID)

		session, err := c.store.OpenSessionForItem(ctx, itemID)
		if err != nil {
			return err
		}
		if session == nil || session.StartTime == nil {
			// Waiting item with no open session; repairable only by cancel.
			c.logger.Warn("waiting item without open session", "item_id", itemID)
			report.Skipped++
			continue
		}
		if session.StartTime.After(now) {
			continue
		}

		if _, err := c.store.UpdateItemStatusCAS(ctx, itemID, models.ItemStatusWaitingOptimalTime, models.ItemStatusSelfDrying); err != nil {
			if errors.Is(err, db.ErrPreconditionFailed) {
				report.Skipped++
				continue
			}
			return err
		}

		report.Started++
		c.emit(ctx, notify.Event{
			Type:      "drying.started",
			ItemID:    itemID,
			SessionID: models.MustRecordIDString(session.ID),
		})
	}
	return nil
}

// completeDueSessions finishes selfDrying items whose window has ended:
// the predicted outcome becomes the committed outcome, the session closes,
// and the item returns to normal with its new score.
func (c *Coordinator) completeDueSessions(ctx context.Context, now time.Time, report *TickReport) error {
	items, err := c.store.ListItemsByStatus(ctx, models.ItemStatusSelfDrying)
	if err != nil {
		return fmt.Errorf("list drying items: %w", err)
	}

	for i := range items {
		item := &items[i]
		itemID := models.MustRecordIDString(item.ID)

		session, err := c.store.OpenSessionForItem(ctx, itemID)
		if err != nil {
			return err
		}
		if session == nil || session.EndTime == nil {
			c.logger.Warn("drying item without open session", "item_id", itemID)
			report.Skipped++
			continue
		}
		if session.EndTime.After(now) {
			continue
		}

		after := item.RiskScore
		if session.PredictedAfter != nil {
			after = *session.PredictedAfter
		}
		after = risk.Clamp(after)

		sessionID := models.MustRecordIDString(session.ID)
		if err := c.store.SetSessionOutcome(ctx, sessionID, after, *session.EndTime); err != nil {
			return err
		}
		if _, err := c.store.CommitItemScoreCAS(ctx, itemID, models.ItemStatusSelfDrying, models.ItemStatusNormal, after); err != nil {
			if errors.Is(err, db.ErrPreconditionFailed) {
				report.Skipped++
				continue
			}
			return err
		}
		if err := c.store.CloseSession(ctx, sessionID, now); err != nil {
			return err
		}

		report.Completed++
		c.emit(ctx, notify.Event{
			Type:      "drying.completed",
			ItemID:    itemID,
			SessionID: sessionID,
			Detail:    fmt.Sprintf("score %.2f to %.2f", session.BeforeScore, after),
		})
	}
	return nil
}

// expireStaleOrders cancels pending helper orders whose drying window has
// already begun unaccepted, returning their items to normal.
func (c *Coordinator) expireStaleOrders(ctx context.Context, now time.Time, report *TickReport) error {
	orders, err := c.store.ListOrdersByStatus(ctx, models.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("list pending orders: %w", err)
	}

	for i := range orders {
		order := &orders[i]
		orderID := models.MustRecordIDString(order.ID)
		itemID := models.MustRecordIDString(order.ItemID)
		sessionID := models.MustRecordIDString(order.SessionID)

		session, err := c.store.GetSession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				c.logger.Warn("pending order without session", "order_id", orderID)
				report.Skipped++
				continue
			}
			return err
		}
		if session.StartTime == nil || session.StartTime.After(now) {
			continue
		}

		if _, err := c.store.UpdateOrderStatusCAS(ctx, orderID, models.OrderStatusPending, models.OrderStatusCancelled); err != nil {
			if errors.Is(err, db.ErrPreconditionFailed) {
				report.Skipped++
				continue
			}
			return err
		}
		if err := c.store.CloseSession(ctx, sessionID, now); err != nil {
			return err
		}
		if _, err := c.store.UpdateItemStatusCAS(ctx, itemID, models.ItemStatusWaitingPickup, models.ItemStatusNormal); err != nil && !errors.Is(err, db.ErrPreconditionFailed) {
			return err
		}

		report.ExpiredOrders++
		c.emit(ctx, notify.Event{
			Type:    "order.expired",
			ItemID:  itemID,
			OrderID: orderID,
			Detail:  "window started before any helper accepted",
		})
	}
	return nil
}

// GrowthTick accrues mite-risk growth on every item from current weather at
// its location. The forecast is fetched once per distinct location. Items
// without a geocoded location, and items whose forecast is unavailable, are
// skipped and counted; one bad location never stalls the rest of the pass.
func (c *Coordinator) GrowthTick(ctx context.Context, elapsed time.Duration) (GrowthReport, error) {
	start := c.now()
	report := GrowthReport{}

	items, err := c.store.ListItems(ctx)
	if err != nil {
		c.metrics.RecordFailure(metrics.OpGrowthTick)
		return report, fmt.Errorf("list items: %w", err)
	}

	type conditions struct {
		temp, humidity float64
		err            error
	}
	byLocation := map[string]conditions{}

	for i := range items {
		item := &items[i]
		itemID := models.MustRecordIDString(item.ID)

		coord, err := c.itemCoord(ctx, item)
		if err != nil {
			if errors.Is(err, ErrNoLocation) {
				report.Skipped++
				continue
			}
			return report, err
		}

		key := fmt.Sprintf("%.4f,%.4f", coord.Latitude, coord.Longitude)
		cond, ok := byLocation[key]
		if !ok {
			cond.temp, cond.humidity, cond.err = c.currentConditions(ctx, coord)
			byLocation[key] = cond
		}
		if cond.err != nil {
			c.logger.Warn("growth skipped, forecast unavailable", "item_id", itemID, "error", cond.err)
			report.Skipped++
			continue
		}

		growth := risk.HourlyGrowth(cond.temp, cond.humidity, item.Material, item.Thickness) * elapsed.Hours()
		if growth <= 0 {
			report.Processed++
			continue
		}

		if _, err := c.store.ApplyItemGrowthCAS(ctx, itemID, item.Status, risk.Round2(growth)); err != nil {
			if errors.Is(err, db.ErrPreconditionFailed) {
				// The item transitioned between read and write; drop this
				// tick's growth rather than applying it to a moved target.
				report.Skipped++
				continue
			}
			return report, err
		}
		report.Processed++
	}

	c.metrics.RecordTiming(metrics.OpGrowthTick, time.Since(start))
	return report, nil
}

// currentConditions reads the first forecast interval as the present weather.
func (c *Coordinator) currentConditions(ctx context.Context, coord *models.Coord) (temp, humidity float64, err error) {
	start := c.now()
	intervals, err := c.forecast.Forecast(ctx, coord.Latitude, coord.Longitude)
	c.metrics.RecordTiming(metrics.OpForecastFetch, time.Since(start))
	if err != nil {
		c.metrics.RecordFailure(metrics.OpForecastFetch)
		return 0, 0, err
	}
	if len(intervals) == 0 {
		return 0, 0, forecast.ErrUnavailable
	}
	return intervals[0].Temperature, intervals[0].Humidity, nil
}
