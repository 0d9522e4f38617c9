package lifecycle

import (
	"testing"

	"github.com/futonlab/miteguard/internal/models"
)

func TestCanItemTransition(t *testing.T) {
	tests := []struct {
		name string
		from models.ItemStatus
		to   models.ItemStatus
		want bool
	}{
		{"schedule self drying", models.ItemStatusNormal, models.ItemStatusWaitingOptimalTime, true},
		{"create helper order", models.ItemStatusNormal, models.ItemStatusWaitingPickup, true},
		{"window entered", models.ItemStatusWaitingOptimalTime, models.ItemStatusSelfDrying, true},
		{"window finished", models.ItemStatusSelfDrying, models.ItemStatusNormal, true},
		{"order accepted", models.ItemStatusWaitingPickup, models.ItemStatusHelpDrying, true},
		{"order done", models.ItemStatusHelpDrying, models.ItemStatusNormal, true},
		{"cancel from waiting", models.ItemStatusWaitingOptimalTime, models.ItemStatusNormal, true},
		{"cancel from pickup", models.ItemStatusWaitingPickup, models.ItemStatusNormal, true},

		{"skip to self drying", models.ItemStatusNormal, models.ItemStatusSelfDrying, false},
		{"cross branches", models.ItemStatusWaitingOptimalTime, models.ItemStatusHelpDrying, false},
		{"backwards", models.ItemStatusSelfDrying, models.ItemStatusWaitingOptimalTime, false},
		{"self loop", models.ItemStatusNormal, models.ItemStatusNormal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanItemTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanItemTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestAnyNonNormalStateCanCancel(t *testing.T) {
	states := []models.ItemStatus{
		models.ItemStatusWaitingOptimalTime,
		models.ItemStatusSelfDrying,
		models.ItemStatusWaitingPickup,
		models.ItemStatusHelpDrying,
	}
	for _, s := range states {
		if !CanItemTransition(s, models.ItemStatusNormal) {
			t.Errorf("cancellation from %s must return to normal", s)
		}
	}
}

func TestCanOrderTransition(t *testing.T) {
	tests := []struct {
		name string
		from models.OrderStatus
		to   models.OrderStatus
		want bool
	}{
		{"accept", models.OrderStatusPending, models.OrderStatusAccepted, true},
		{"begin", models.OrderStatusAccepted, models.OrderStatusInProgress, true},
		{"complete", models.OrderStatusInProgress, models.OrderStatusCompleted, true},
		{"withdraw pending", models.OrderStatusPending, models.OrderStatusCancelled, true},
		{"back out accepted", models.OrderStatusAccepted, models.OrderStatusCancelled, true},

		{"cancel in progress", models.OrderStatusInProgress, models.OrderStatusCancelled, true},
		{"complete from pending", models.OrderStatusPending, models.OrderStatusCompleted, false},
		{"reopen completed", models.OrderStatusCompleted, models.OrderStatusPending, false},
		{"reopen cancelled", models.OrderStatusCancelled, models.OrderStatusAccepted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanOrderTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanOrderTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	all := []models.OrderStatus{
		models.OrderStatusPending, models.OrderStatusAccepted, models.OrderStatusInProgress,
		models.OrderStatusCompleted, models.OrderStatusCancelled,
	}
	for _, from := range []models.OrderStatus{models.OrderStatusCompleted, models.OrderStatusCancelled} {
		if !OrderTerminal(from) {
			t.Errorf("%s should be terminal", from)
		}
		for _, to := range all {
			if CanOrderTransition(from, to) {
				t.Errorf("terminal state %s must not transition to %s", from, to)
			}
		}
	}
}
