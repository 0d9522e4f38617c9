// Package db provides SurrealDB query functions for engine records.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"

	"github.com/futonlab/miteguard/internal/models"
)

// newID returns a short random record ID, readable in logs and URLs.
func newID() string {
	return uuid.New().String()[:8]
}

// first extracts the first record from a query result wrapper, or nil.
func first[T any](results *[]surrealdb.QueryResult[[]T]) *T {
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil
	}
	return &(*results)[0].Result[0]
}

// all extracts every record from a query result wrapper.
func all[T any](results *[]surrealdb.QueryResult[[]T]) []T {
	if results == nil || len(*results) == 0 {
		return []T{}
	}
	return (*results)[0].Result
}

// ---------------------------------------------------------------------------
// Items
// ---------------------------------------------------------------------------

// CreateItem persists a new item. The ID is generated here; Status defaults
// to normal and RiskScore to 0 when unset.
func (c *Client) CreateItem(ctx context.Context, item *models.Item) (*models.Item, error) {
	if item.Status == "" {
		item.Status = models.ItemStatusNormal
	}
	vars := map[string]any{
		"id":         newID(),
		"owner_id":   item.OwnerID,
		"name":       item.Name,
		"material":   item.Material,
		"thickness":  item.Thickness,
		"risk_score": item.RiskScore,
		"status":     item.Status,
		"location":   item.LocationID,
	}
	results, err := surrealdb.Query[[]models.Item](ctx, c.db, `
		CREATE type::record("item", $id) SET
			owner_id = $owner_id,
			name = $name,
			material = $material,
			thickness = $thickness,
			risk_score = $risk_score,
			status = $status,
			location_id = $location
		RETURN AFTER
	`, vars)
	if err != nil {
		return nil, fmt.Errorf("create item: %w", wrapQueryError(err))
	}
	created := first(results)
	if created == nil {
		return nil, fmt.Errorf("create item: no result returned")
	}
	return created, nil
}

// GetItem retrieves an item by ID. Returns ErrNotFound if missing.
func (c *Client) GetItem(ctx context.Context, id string) (*models.Item, error) {
	results, err := surrealdb.Query[[]models.Item](ctx, c.db, `
		SELECT * FROM type::record("item", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", wrapQueryError(err))
	}
	item := first(results)
	if item == nil {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return item, nil
}

// ListItems returns all items.
func (c *Client) ListItems(ctx context.Context) ([]models.Item, error) {
	results, err := surrealdb.Query[[]models.Item](ctx, c.db, `
		SELECT * FROM item ORDER BY created
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", wrapQueryError(err))
	}
	return all(results), nil
}

// ListItemsByStatus returns items currently in the given lifecycle state.
func (c *Client) ListItemsByStatus(ctx context.Context, status models.ItemStatus) ([]models.Item, error) {
	results, err := surrealdb.Query[[]models.Item](ctx, c.db, `
		SELECT * FROM item WHERE status = $status ORDER BY created
	`, map[string]any{"status": status})
	if err != nil {
		return nil, fmt.Errorf("list items by status: %w", wrapQueryError(err))
	}
	return all(results), nil
}

// UpdateItemStatusCAS transitions an item's status iff its persisted status
// still equals from. Zero matched rows means the precondition no longer
// holds and the caller must re-read rather than overwrite.
func (c *Client) UpdateItemStatusCAS(ctx context.Context, id string, from, to models.ItemStatus) (*models.Item, error) {
	results, err := surrealdb.Query[[]models.Item](ctx, c.db, `
		UPDATE type::record("item", $id) SET status = $to
		WHERE status = $from
		RETURN AFTER
	`, map[string]any{"id": id, "from": from, "to": to})
	if err != nil {
		return nil, fmt.Errorf("update item status: %w", wrapQueryError(err))
	}
	item := first(results)
	if item == nil {
		return nil, fmt.Errorf("item %s status %s -> %s: %w", id, from, to, ErrPreconditionFailed)
	}
	return item, nil
}

// ApplyItemGrowthCAS adds growth to an item's risk score, clamped to 100,
// iff the item is still in the status the caller read. A concurrent
// transition drops the growth for this tick instead of overwriting.
func (c *Client) ApplyItemGrowthCAS(ctx context.Context, id string, status models.ItemStatus, growth float64) (*models.Item, error) {
	results, err := surrealdb.Query[[]models.Item](ctx, c.db, `
		UPDATE type::record("item", $id)
		SET risk_score = math::min(risk_score + $growth, 100.0)
		WHERE status = $status
		RETURN AFTER
	`, map[string]any{"id": id, "status": status, "growth": growth})
	if err != nil {
		return nil, fmt.Errorf("apply item growth: %w", wrapQueryError(err))
	}
	item := first(results)
	if item == nil {
		return nil, fmt.Errorf("item %s growth in status %s: %w", id, status, ErrPreconditionFailed)
	}
	return item, nil
}

// CommitItemScoreCAS writes an intervention outcome: sets the risk score and
// moves the item to the target status, iff the persisted status still equals
// from. This is the only write path that lowers a score.
func (c *Client) CommitItemScoreCAS(ctx context.Context, id string, from, to models.ItemStatus, score float64) (*models.Item, error) {
	results, err := surrealdb.Query[[]models.Item](ctx, c.db, `
		UPDATE type::record("item", $id) SET
			risk_score = math::max(math::min($score, 100.0), 0.0),
			status = $to
		WHERE status = $from
		RETURN AFTER
	`, map[string]any{"id": id, "from": from, "to": to, "score": score})
	if err != nil {
		return nil, fmt.Errorf("commit item score: %w", wrapQueryError(err))
	}
	item := first(results)
	if item == nil {
		return nil, fmt.Errorf("item %s commit in status %s: %w", id, from, ErrPreconditionFailed)
	}
	return item, nil
}

// ---------------------------------------------------------------------------
// Locations
// ---------------------------------------------------------------------------

// CreateLocation persists a new location.
func (c *Client) CreateLocation(ctx context.Context, loc *models.Location) (*models.Location, error) {
	vars := map[string]any{
		"id":           newID(),
		"owner_id":     loc.OwnerID,
		"label":        loc.Label,
		"prefecture":   loc.Prefecture,
		"city":         loc.City,
		"address_line": loc.AddressLine,
		"latitude":     loc.Latitude,
		"longitude":    loc.Longitude,
		"floor_number": loc.FloorNumber,
		"has_elevator": loc.HasElevator,
	}
	results, err := surrealdb.Query[[]models.Location](ctx, c.db, `
		CREATE type::record("location", $id) SET
			owner_id = $owner_id,
			label = $label,
			prefecture = $prefecture,
			city = $city,
			address_line = $address_line,
			latitude = $latitude,
			longitude = $longitude,
			floor_number = $floor_number,
			has_elevator = $has_elevator
		RETURN AFTER
	`, vars)
	if err != nil {
		return nil, fmt.Errorf("create location: %w", wrapQueryError(err))
	}
	created := first(results)
	if created == nil {
		return nil, fmt.Errorf("create location: no result returned")
	}
	return created, nil
}

// GetLocation retrieves a location by ID. Returns ErrNotFound if missing.
func (c *Client) GetLocation(ctx context.Context, id string) (*models.Location, error) {
	results, err := surrealdb.Query[[]models.Location](ctx, c.db, `
		SELECT * FROM type::record("location", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get location: %w", wrapQueryError(err))
	}
	loc := first(results)
	if loc == nil {
		return nil, fmt.Errorf("location %s: %w", id, ErrNotFound)
	}
	return loc, nil
}

// ---------------------------------------------------------------------------
// Drying sessions
// ---------------------------------------------------------------------------

// CreateSession persists a new drying session for an item.
func (c *Client) CreateSession(ctx context.Context, s *models.DryingSession) (*models.DryingSession, error) {
	vars := map[string]any{
		"id":              newID(),
		"item":            s.ItemID,
		"initiator_id":    s.InitiatorID,
		"start_time":      s.StartTime,
		"end_time":        s.EndTime,
		"is_self_service": s.IsSelfService,
		"before_score":    s.BeforeScore,
		"predicted_after": s.PredictedAfter,
	}
	results, err := surrealdb.Query[[]models.DryingSession](ctx, c.db, `
		CREATE type::record("drying_session", $id) SET
			item_id = $item,
			initiator_id = $initiator_id,
			start_time = $start_time,
			end_time = $end_time,
			is_self_service = $is_self_service,
			before_score = $before_score,
			predicted_after = $predicted_after
		RETURN AFTER
	`, vars)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", wrapQueryError(err))
	}
	created := first(results)
	if created == nil {
		return nil, fmt.Errorf("create session: no result returned")
	}
	return created, nil
}

// GetSession retrieves a session by ID. Returns ErrNotFound if missing.
func (c *Client) GetSession(ctx context.Context, id string) (*models.DryingSession, error) {
	results, err := surrealdb.Query[[]models.DryingSession](ctx, c.db, `
		SELECT * FROM type::record("drying_session", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get session: %w", wrapQueryError(err))
	}
	s := first(results)
	if s == nil {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return s, nil
}

// OpenSessionForItem returns the item's open session, or nil when none.
// At most one open session per item is an engine invariant.
func (c *Client) OpenSessionForItem(ctx context.Context, itemID string) (*models.DryingSession, error) {
	results, err := surrealdb.Query[[]models.DryingSession](ctx, c.db, `
		SELECT * FROM drying_session
		WHERE item_id = type::record("item", $item) AND closed_at IS NONE
		ORDER BY created DESC LIMIT 1
	`, map[string]any{"item": itemID})
	if err != nil {
		return nil, fmt.Errorf("open session for item: %w", wrapQueryError(err))
	}
	return first(results), nil
}

// ListSessionsForItem returns the item's full intervention history,
// most recent first.
func (c *Client) ListSessionsForItem(ctx context.Context, itemID string) ([]models.DryingSession, error) {
	results, err := surrealdb.Query[[]models.DryingSession](ctx, c.db, `
		SELECT * FROM drying_session
		WHERE item_id = type::record("item", $item)
		ORDER BY created DESC
	`, map[string]any{"item": itemID})
	if err != nil {
		return nil, fmt.Errorf("list sessions for item: %w", wrapQueryError(err))
	}
	return all(results), nil
}

// SetSessionOutcome records the committed outcome on a session.
func (c *Client) SetSessionOutcome(ctx context.Context, id string, afterScore float64, endTime time.Time) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("drying_session", $id) SET
			after_score = $after,
			end_time = $end
	`, map[string]any{"id": id, "after": afterScore, "end": endTime})
	if err != nil {
		return fmt.Errorf("set session outcome: %w", wrapQueryError(err))
	}
	return nil
}

// CloseSession marks a session closed. Idempotent: closing an already-closed
// session is a no-op that preserves the original close time.
func (c *Client) CloseSession(ctx context.Context, id string, closedAt time.Time) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE type::record("drying_session", $id) SET closed_at = $at
		WHERE closed_at IS NONE
	`, map[string]any{"id": id, "at": closedAt})
	if err != nil {
		return fmt.Errorf("close session: %w", wrapQueryError(err))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Service orders
// ---------------------------------------------------------------------------

// CreateOrder persists a new pending service order.
func (c *Client) CreateOrder(ctx context.Context, o *models.ServiceOrder) (*models.ServiceOrder, error) {
	if o.Status == "" {
		o.Status = models.OrderStatusPending
	}
	vars := map[string]any{
		"id":           newID(),
		"item":         o.ItemID,
		"requester_id": o.RequesterID,
		"location":     o.LocationID,
		"session":      o.SessionID,
		"status":       o.Status,
		"cost":         o.Cost,
	}
	results, err := surrealdb.Query[[]models.ServiceOrder](ctx, c.db, `
		CREATE type::record("service_order", $id) SET
			item_id = $item,
			requester_id = $requester_id,
			location_id = $location,
			session_id = $session,
			status = $status,
			cost = $cost
		RETURN AFTER
	`, vars)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", wrapQueryError(err))
	}
	created := first(results)
	if created == nil {
		return nil, fmt.Errorf("create order: no result returned")
	}
	return created, nil
}

// GetOrder retrieves an order by ID. Returns ErrNotFound if missing.
func (c *Client) GetOrder(ctx context.Context, id string) (*models.ServiceOrder, error) {
	results, err := surrealdb.Query[[]models.ServiceOrder](ctx, c.db, `
		SELECT * FROM type::record("service_order", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get order: %w", wrapQueryError(err))
	}
	o := first(results)
	if o == nil {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return o, nil
}

// OpenOrderForItem returns the item's non-terminal order, or nil when none.
// At most one open order per item is an engine invariant.
func (c *Client) OpenOrderForItem(ctx context.Context, itemID string) (*models.ServiceOrder, error) {
	results, err := surrealdb.Query[[]models.ServiceOrder](ctx, c.db, `
		SELECT * FROM service_order
		WHERE item_id = type::record("item", $item)
			AND status NOT IN ["completed", "cancelled"]
		ORDER BY created DESC LIMIT 1
	`, map[string]any{"item": itemID})
	if err != nil {
		return nil, fmt.Errorf("open order for item: %w", wrapQueryError(err))
	}
	return first(results), nil
}

// ListOrdersByStatus returns orders in the given state, oldest first.
func (c *Client) ListOrdersByStatus(ctx context.Context, status models.OrderStatus) ([]models.ServiceOrder, error) {
	results, err := surrealdb.Query[[]models.ServiceOrder](ctx, c.db, `
		SELECT * FROM service_order WHERE status = $status ORDER BY created
	`, map[string]any{"status": status})
	if err != nil {
		return nil, fmt.Errorf("list orders by status: %w", wrapQueryError(err))
	}
	return all(results), nil
}

// AcceptOrderCAS claims a pending order for an assignee. First acceptance
// wins: the WHERE clause matches only while the order is still pending and
// unassigned, so a losing racer gets ErrPreconditionFailed.
func (c *Client) AcceptOrderCAS(ctx context.Context, id, assigneeID string) (*models.ServiceOrder, error) {
	results, err := surrealdb.Query[[]models.ServiceOrder](ctx, c.db, `
		UPDATE type::record("service_order", $id) SET
			status = "accepted",
			assignee_id = $assignee
		WHERE status = "pending" AND assignee_id IS NONE
		RETURN AFTER
	`, map[string]any{"id": id, "assignee": assigneeID})
	if err != nil {
		return nil, fmt.Errorf("accept order: %w", wrapQueryError(err))
	}
	o := first(results)
	if o == nil {
		return nil, fmt.Errorf("order %s accept: %w", id, ErrPreconditionFailed)
	}
	return o, nil
}

// UpdateOrderStatusCAS transitions an order's status iff its persisted
// status still equals from. Cancelling releases the assignee slot.
func (c *Client) UpdateOrderStatusCAS(ctx context.Context, id string, from, to models.OrderStatus) (*models.ServiceOrder, error) {
	query := `
		UPDATE type::record("service_order", $id) SET status = $to
		WHERE status = $from
		RETURN AFTER
	`
	if to == models.OrderStatusCancelled {
		query = `
		UPDATE type::record("service_order", $id) SET status = $to, assignee_id = NONE
		WHERE status = $from
		RETURN AFTER
	`
	}
	results, err := surrealdb.Query[[]models.ServiceOrder](ctx, c.db, query,
		map[string]any{"id": id, "from": from, "to": to})
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", wrapQueryError(err))
	}
	o := first(results)
	if o == nil {
		return nil, fmt.Errorf("order %s status %s -> %s: %w", id, from, to, ErrPreconditionFailed)
	}
	return o, nil
}
