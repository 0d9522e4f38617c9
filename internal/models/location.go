package models

import (
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Coord is a WGS84 coordinate pair.
type Coord struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location is a user-owned address an item can reference. FloorNumber and
// HasElevator feed the helper cost model; when unknown they fall back to
// floor 1 / no elevator and the caller surfaces a warning.
type Location struct {
	ID          surrealmodels.RecordID `json:"id"`
	OwnerID     string                 `json:"owner_id"`
	Label       string                 `json:"label"`
	Prefecture  string                 `json:"prefecture,omitempty"`
	City        string                 `json:"city,omitempty"`
	AddressLine string                 `json:"address_line,omitempty"`
	Latitude    *float64               `json:"latitude,omitempty"`
	Longitude   *float64               `json:"longitude,omitempty"`
	FloorNumber *int                   `json:"floor_number,omitempty"`
	HasElevator *bool                  `json:"has_elevator,omitempty"`
}

// Coord returns the location's coordinates, or nil when not geocoded.
func (l *Location) Coord() *Coord {
	if l == nil || l.Latitude == nil || l.Longitude == nil {
		return nil
	}
	return &Coord{Latitude: *l.Latitude, Longitude: *l.Longitude}
}
