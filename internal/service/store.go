package service

import (
	"context"
	"time"

	"github.com/futonlab/miteguard/internal/models"
)

// Store is the persistence surface the coordinator needs. *db.Client
// implements it; tests substitute an in-memory fake. Every transition goes
// through a CAS method so the persisted status stays the source of truth.
type Store interface {
	GetItem(ctx context.Context, id string) (*models.Item, error)
	ListItems(ctx context.Context) ([]models.Item, error)
	ListItemsByStatus(ctx context.Context, status models.ItemStatus) ([]models.Item, error)
	UpdateItemStatusCAS(ctx context.Context, id string, from, to models.ItemStatus) (*models.Item, error)
	ApplyItemGrowthCAS(ctx context.Context, id string, status models.ItemStatus, growth float64) (*models.Item, error)
	CommitItemScoreCAS(ctx context.Context, id string, from, to models.ItemStatus, score float64) (*models.Item, error)

	GetLocation(ctx context.Context, id string) (*models.Location, error)

	CreateSession(ctx context.Context, s *models.DryingSession) (*models.DryingSession, error)
	GetSession(ctx context.Context, id string) (*models.DryingSession, error)
	OpenSessionForItem(ctx context.Context, itemID string) (*models.DryingSession, error)
	ListSessionsForItem(ctx context.Context, itemID string) ([]models.DryingSession, error)
	SetSessionOutcome(ctx context.Context, id string, afterScore float64, endTime time.Time) error
	CloseSession(ctx context.Context, id string, closedAt time.Time) error

	CreateOrder(ctx context.Context, o *models.ServiceOrder) (*models.ServiceOrder, error)
	GetOrder(ctx context.Context, id string) (*models.ServiceOrder, error)
	OpenOrderForItem(ctx context.Context, itemID string) (*models.ServiceOrder, error)
	ListOrdersByStatus(ctx context.Context, status models.OrderStatus) ([]models.ServiceOrder, error)
	AcceptOrderCAS(ctx context.Context, id, assigneeID string) (*models.ServiceOrder, error)
	UpdateOrderStatusCAS(ctx context.Context, id string, from, to models.OrderStatus) (*models.ServiceOrder, error)
}
