package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// OrderStatus is the two-party service transaction state.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusAccepted   OrderStatus = "accepted"
	OrderStatusInProgress OrderStatus = "inProgress"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// ServiceOrder wraps a helper-assisted intervention. AssigneeID is unset
// exactly while the order is pending; first acceptance wins.
type ServiceOrder struct {
	ID          surrealmodels.RecordID  `json:"id"`
	ItemID      surrealmodels.RecordID  `json:"item_id"`
	RequesterID string                  `json:"requester_id"`
	AssigneeID  *string                 `json:"assignee_id,omitempty"`
	LocationID  *surrealmodels.RecordID `json:"location_id,omitempty"`
	SessionID   surrealmodels.RecordID  `json:"session_id"`
	Status      OrderStatus             `json:"status"`
	Cost        *int                    `json:"cost,omitempty"`
	IsPaid      bool                    `json:"is_paid"`
	Created     time.Time               `json:"created,omitempty"`
	Updated     time.Time               `json:"updated,omitempty"`
}
