// Package models defines data structures for the miteguard engine.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// ItemStatus is the item's authoritative lifecycle state. Exactly one status
// is persisted per item; transitions go through conditional updates only.
type ItemStatus string

const (
	ItemStatusNormal             ItemStatus = "normal"
	ItemStatusWaitingOptimalTime ItemStatus = "waitingOptimalTime"
	ItemStatusSelfDrying         ItemStatus = "selfDrying"
	ItemStatusWaitingPickup      ItemStatus = "waitingPickup"
	ItemStatusHelpDrying         ItemStatus = "helpDrying"
)

// Material is the item's fabric category. Affects the hourly growth rate.
type Material string

const (
	MaterialCotton    Material = "cotton"
	MaterialWool      Material = "wool"
	MaterialPolyester Material = "polyester"
	MaterialSilk      Material = "silk"
	MaterialFeather   Material = "feather"
)

// Thickness is the item's thickness category. Affects growth rate and helper cost.
type Thickness string

const (
	ThicknessThin       Thickness = "thin"
	ThicknessMedium     Thickness = "medium"
	ThicknessThick      Thickness = "thick"
	ThicknessExtraThick Thickness = "extraThick"
)

// Item is a physical object whose mite-risk score is tracked over time.
// RiskScore stays in [0,100]: it only rises through the hourly growth model
// and only falls through a committed intervention outcome.
type Item struct {
	ID         surrealmodels.RecordID  `json:"id"`
	OwnerID    string                  `json:"owner_id"`
	Name       string                  `json:"name"`
	Material   Material                `json:"material"`
	Thickness  Thickness               `json:"thickness"`
	RiskScore  float64                 `json:"risk_score"`
	Status     ItemStatus              `json:"status"`
	LocationID *surrealmodels.RecordID `json:"location_id,omitempty"`
	Created    time.Time               `json:"created,omitempty"`
	Updated    time.Time               `json:"updated,omitempty"`
}
