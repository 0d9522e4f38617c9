package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// DryingSession is the audit record of one intervention attempt, from window
// selection to outcome commit. Sessions are never deleted: cancellation and
// completion both close the record and keep it readable as history.
//
// AfterScore stays unset until the outcome is committed. PredictedAfter holds
// the predictor's estimate from confirmation time so the commit at window end
// does not depend on any external call.
type DryingSession struct {
	ID             surrealmodels.RecordID `json:"id"`
	ItemID         surrealmodels.RecordID `json:"item_id"`
	InitiatorID    string                 `json:"initiator_id"`
	StartTime      *time.Time             `json:"start_time,omitempty"`
	EndTime        *time.Time             `json:"end_time,omitempty"`
	IsSelfService  bool                   `json:"is_self_service"`
	BeforeScore    float64                `json:"before_score"`
	AfterScore     *float64               `json:"after_score,omitempty"`
	PredictedAfter *float64               `json:"predicted_after,omitempty"`
	Created        time.Time              `json:"created,omitempty"`
	ClosedAt       *time.Time             `json:"closed_at,omitempty"`
}

// Open reports whether the session is still the item's active intervention.
func (s *DryingSession) Open() bool {
	return s != nil && s.ClosedAt == nil
}
