// Package db provides integration tests for SurrealDB operations.
package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/futonlab/miteguard/internal/models"
)

var testDB *Client
var testContainer testcontainers.Container

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := testContainer.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = testContainer.Terminate(ctx)

	os.Exit(code)
}

// wipe clears all tables so tests start from a clean slate.
func wipe(t *testing.T) {
	t.Helper()
	if err := testDB.WipeData(context.Background()); err != nil {
		t.Fatalf("WipeData failed: %v", err)
	}
}

func createTestItem(t *testing.T, status models.ItemStatus, score float64) *models.Item {
	t.Helper()
	item, err := testDB.CreateItem(context.Background(), &models.Item{
		OwnerID:   "owner-1",
		Name:      "test futon",
		Material:  models.MaterialCotton,
		Thickness: models.ThicknessMedium,
		RiskScore: score,
		Status:    status,
	})
	if err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}
	return item
}

// =============================================================================
// ITEM TESTS
// =============================================================================

func TestCreateAndGetItem(t *testing.T) {
	wipe(t)
	ctx := context.Background()

	created := createTestItem(t, models.ItemStatusNormal, 25)
	if created.Name != "test futon" {
		t.Errorf("Expected name 'test futon', got %q", created.Name)
	}
	if created.Status != models.ItemStatusNormal {
		t.Errorf("Expected status normal, got %q", created.Status)
	}

	fetched, err := testDB.GetItem(ctx, models.MustRecordIDString(created.ID))
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if fetched.RiskScore != 25 {
		t.Errorf("Expected risk score 25, got %v", fetched.RiskScore)
	}

	_, err = testDB.GetItem(ctx, "non-existent-id")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetItem with non-existent ID should return ErrNotFound, got %v", err)
	}
}

func TestListItemsByStatus(t *testing.T) {
	wipe(t)
	ctx := context.Background()

	createTestItem(t, models.ItemStatusNormal, 10)
	createTestItem(t, models.ItemStatusNormal, 20)
	createTestItem(t, models.ItemStatusSelfDrying, 30)

	normal, err := testDB.ListItemsByStatus(ctx, models.ItemStatusNormal)
	if err != nil {
		t.Fatalf("ListItemsByStatus failed: %v", err)
	}
	if len(normal) != 2 {
		t.Errorf("Expected 2 normal items, got %d", len(normal))
	}

	all, err := testDB.ListItems(ctx)
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 items, got %d", len(all))
	}
}

func TestUpdateItemStatusCAS(t *testing.T) {
	wipe(t)
	ctx := context.Background()

	item := createTestItem(t, models.ItemStatusNormal, 0)
	id := models.MustRecordIDString(item.ID)

	updated, err := testDB.UpdateItemStatusCAS(ctx, id, models.ItemStatusNormal, models.ItemStatusWaitingOptimalTime)
	if err != nil {
		t.Fatalf("UpdateItemStatusCAS failed: %v", err)
	}
	if updated.Status != models.ItemStatusWaitingOptimalTime {
		t.Errorf("Expected waitingOptimalTime, got %q", updated.Status)
	}

	// Stale expected state must lose.
	_, err = testDB.UpdateItemStatusCAS(ctx, id, models.ItemStatusNormal, models.ItemStatusSelfDrying)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("Expected ErrPreconditionFailed, got %v", err)
	}

	// The persisted state is unchanged by the failed update.
	fetched, err := testDB.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if fetched.Status != models.ItemStatusWaitingOptimalTime {
		t.Errorf("Status changed by failed CAS: %q", fetched.Status)
	}
}

func TestApplyItemGrowthCAS(t *testing.T) {
	wipe(t)
	ctx := context.Background()

	item := createTestItem(t, models.ItemStatusNormal, 99.5)
	id := models.MustRecordIDString(item.ID)

	// Growth is clamped to 100 in the database.
	updated, err := testDB.ApplyItemGrowthCAS(ctx, id, models.ItemStatusNormal, 2.0)
	if err != nil {
		t.Fatalf("ApplyItemGrowthCAS failed: %v", err)
	}
	if updated.RiskScore != 100 {
		t.Errorf("Expected score clamped to 100, got %v", updated.RiskScore)
	}

	// Status mismatch drops the growth.
	_, err = testDB.ApplyItemGrowthCAS(ctx, id, models.ItemStatusSelfDrying, 1.0)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("Expected ErrPreconditionFailed, got %v", err)
	}
}

func TestCommitItemScoreCAS(t *testing.T) {
	wipe(t)
	ctx := context.Background()

	item := createTestItem(t, models.ItemStatusSelfDrying, 60)
	id := models.MustRecordIDString(item.ID)

	updated, err := testDB.CommitItemScoreCAS(ctx, id, models.ItemStatusSelfDrying, models.ItemStatusNormal, 24.55)
	if err != nil {
		t.Fatalf("CommitItemScoreCAS failed: %v", err)
	}
	if updated.Status != models.ItemStatusNormal {
		t.Errorf("Expected normal, got %q", updated.Status)
	}
	if updated.RiskScore != 24.55 {
		t.Errorf("Expected score 24.55, got %v", updated.RiskScore)
	}

	// Second commit sees the wrong state.
	_, err = testDB.CommitItemScoreCAS(ctx, id, models.ItemStatusSelfDrying, models.ItemStatusNormal, 10)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("Expected ErrPreconditionFailed, got %v", err)
	}
}

// =============================================================================
// LOCATION TESTS
// =============================================================================

func TestCreateAndGetLocation(t *testing.T) {
	wipe(t)
	ctx := context.Background()

	lat, lon := 35.6812, 139.7671
	floor := 3
	created, err := testDB.CreateLocation(ctx, &models.Location{
		OwnerID:     "owner-1",
		Label:       "home",
		Prefecture:  "Tokyo",
		City:        "Chiyoda",
		Latitude:    &lat,
		Longitude:   &lon,
		FloorNumber: &floor,
	})
	if err != nil {
		t.Fatalf("CreateLocation failed: %v", err)
	}

	fetched, err := testDB.GetLocation(ctx, models.MustRecordIDString(created.ID))
	if err != nil {
		t.Fatalf("GetLocation failed: %v", err)
	}
	coord := fetched.Coord()
	if coord == nil {
		t.Fatal("Expected geocoded location")
	}
	if coord.Latitude != lat || coord.Longitude != lon {
		t.Errorf("Coordinates mismatch: %+v", coord)
	}
	if fetched.HasElevator != nil {
		t.Error("HasElevator should be unset")
	}
}

// =============================================================================
// SESSION TESTS
// =============================================================================

func TestSessionLifecycle(t *testing.T) {
	wipe(t)
	ctx := context.Background()

	item := createTestItem(t, models.ItemStatusWaitingOptimalTime, 50)
	itemID := models.MustRecordIDString(item.ID)

	start := time.Now().UTC().Truncate(time.Second)
	end := start.Add(4 * time.Hour)
	predicted := 22.5

	session, err := testDB.CreateSession(ctx, &models.DryingSession{
		ItemID:         item.ID,
		InitiatorID:    "owner-1",
		StartTime:      &start,
		EndTime:        &end,
		IsSelfService:  true,
		BeforeScore:    50,
		PredictedAfter: &predicted,
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if !session.Open() {
		t.Error("New session should be open")
	}

	open, err := testDB.OpenSessionForItem(ctx, itemID)
	if err != nil {
		t.Fatalf("OpenSessionForItem failed: %v", err)
	}
	if open == nil {
		t.Fatal("Expected an open session")
	}
	if open.PredictedAfter == nil || *open.PredictedAfter != predicted {
		t.Errorf("PredictedAfter mismatch: %v", open.PredictedAfter)
	}

	sessionID := models.MustRecordIDString(session.ID)
	if err := testDB.SetSessionOutcome(ctx, sessionID, 22.5, end); err != nil {
		t.Fatalf("SetSessionOutcome failed: %v", err)
	}
	if err := testDB.CloseSession(ctx, sessionID, time.Now()); err != nil {
		t.Fatalf("CloseSession failed: %v", err)
	}

	// Closing again is a no-op.
	if err := testDB.CloseSession(ctx, sessionID, time.Now()); err != nil {
		t.Fatalf("Second CloseSession should not error: %v", err)
	}

	open, err = testDB.OpenSessionForItem(ctx, itemID)
	if err != nil {
		t.Fatalf("OpenSessionForItem after close failed: %v", err)
	}
	if open != nil {
		t.Error("Expected no open session after close")
	}

	history, err := testDB.ListSessionsForItem(ctx, itemID)
	if err != nil {
		t.Fatalf("ListSessionsForItem failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 session in history, got %d", len(history))
	}
	if history[0].AfterScore == nil || *history[0].AfterScore != 22.5 {
		t.Errorf("AfterScore mismatch: %v", history[0].AfterScore)
	}
}

// =============================================================================
// ORDER TESTS
// =============================================================================

func createTestOrder(t *testing.T, item *models.Item) *models.ServiceOrder {
	t.Helper()
	ctx := context.Background()

	start := time.Now().UTC().Add(time.Hour)
	end := start.Add(4 * time.Hour)
	session, err := testDB.CreateSession(ctx, &models.DryingSession{
		ItemID:      item.ID,
		InitiatorID: item.OwnerID,
		StartTime:   &start,
		EndTime:     &end,
		BeforeScore: item.RiskScore,
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	cost := 2400
	order, err := testDB.CreateOrder(ctx, &models.ServiceOrder{
		ItemID:      item.ID,
		RequesterID: item.OwnerID,
		SessionID:   session.ID,
		Status:      models.OrderStatusPending,
		Cost:        &cost,
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	return order
}

func TestAcceptOrderCASFirstWins(t *testing.T) {
	wipe(t)
	ctx := context.Background()

	item := createTestItem(t, models.ItemStatusWaitingPickup, 40)
	order := createTestOrder(t, item)
	orderID := models.MustRecordIDString(order.ID)

	accepted, err := testDB.AcceptOrderCAS(ctx, orderID, "helper-1")
	if err != nil {
		t.Fatalf("AcceptOrderCAS failed: %v", err)
	}
	if accepted.Status != models.OrderStatusAccepted {
		t.Errorf("Expected accepted, got %q", accepted.Status)
	}
	if accepted.AssigneeID == nil || *accepted.AssigneeID != "helper-1" {
		t.Errorf("AssigneeID mismatch: %v", accepted.AssigneeID)
	}

	// Second helper loses.
	_, err = testDB.AcceptOrderCAS(ctx, orderID, "helper-2")
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("Expected ErrPreconditionFailed, got %v", err)
	}

	fetched, err := testDB.GetOrder(ctx, orderID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if *fetched.AssigneeID != "helper-1" {
		t.Errorf("Assignment changed by losing accept: %v", *fetched.AssigneeID)
	}
}

func TestOrderStatusCAS(t *testing.T) {
	wipe(t)
	ctx := context.Background()

	item := createTestItem(t, models.ItemStatusWaitingPickup, 40)
	order := createTestOrder(t, item)
	orderID := models.MustRecordIDString(order.ID)

	if _, err := testDB.AcceptOrderCAS(ctx, orderID, "helper-1"); err != nil {
		t.Fatalf("AcceptOrderCAS failed: %v", err)
	}

	updated, err := testDB.UpdateOrderStatusCAS(ctx, orderID, models.OrderStatusAccepted, models.OrderStatusInProgress)
	if err != nil {
		t.Fatalf("UpdateOrderStatusCAS failed: %v", err)
	}
	if updated.Status != models.OrderStatusInProgress {
		t.Errorf("Expected inProgress, got %q", updated.Status)
	}

	// Double start loses.
	_, err = testDB.UpdateOrderStatusCAS(ctx, orderID, models.OrderStatusAccepted, models.OrderStatusInProgress)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("Expected ErrPreconditionFailed, got %v", err)
	}

	// Cancelling releases the assignee slot.
	cancelled, err := testDB.UpdateOrderStatusCAS(ctx, orderID, models.OrderStatusInProgress, models.OrderStatusCancelled)
	if err != nil {
		t.Fatalf("UpdateOrderStatusCAS cancel failed: %v", err)
	}
	if cancelled.Status != models.OrderStatusCancelled {
		t.Errorf("Expected cancelled, got %q", cancelled.Status)
	}
	if cancelled.AssigneeID != nil {
		t.Errorf("Expected assignee cleared on cancel, got %q", *cancelled.AssigneeID)
	}
}

func TestOpenOrderForItem(t *testing.T) {
	wipe(t)
	ctx := context.Background()

	item := createTestItem(t, models.ItemStatusWaitingPickup, 40)
	itemID := models.MustRecordIDString(item.ID)
	order := createTestOrder(t, item)
	orderID := models.MustRecordIDString(order.ID)

	open, err := testDB.OpenOrderForItem(ctx, itemID)
	if err != nil {
		t.Fatalf("OpenOrderForItem failed: %v", err)
	}
	if open == nil {
		t.Fatal("Expected an open order")
	}

	if _, err := testDB.UpdateOrderStatusCAS(ctx, orderID, models.OrderStatusPending, models.OrderStatusCancelled); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	open, err = testDB.OpenOrderForItem(ctx, itemID)
	if err != nil {
		t.Fatalf("OpenOrderForItem after cancel failed: %v", err)
	}
	if open != nil {
		t.Error("Cancelled order should not be open")
	}
}

func TestListOrdersByStatus(t *testing.T) {
	wipe(t)
	ctx := context.Background()

	itemA := createTestItem(t, models.ItemStatusWaitingPickup, 40)
	itemB := createTestItem(t, models.ItemStatusWaitingPickup, 50)
	createTestOrder(t, itemA)
	orderB := createTestOrder(t, itemB)

	if _, err := testDB.AcceptOrderCAS(ctx, models.MustRecordIDString(orderB.ID), "helper-1"); err != nil {
		t.Fatalf("AcceptOrderCAS failed: %v", err)
	}

	pending, err := testDB.ListOrdersByStatus(ctx, models.OrderStatusPending)
	if err != nil {
		t.Fatalf("ListOrdersByStatus failed: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("Expected 1 pending order, got %d", len(pending))
	}
}
