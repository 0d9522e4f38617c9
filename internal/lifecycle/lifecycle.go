// Package lifecycle defines the legal transitions of the item and order
// state machines. Each machine owns only its own field; the coordinator
// sequences cross-machine side effects through explicit calls.
package lifecycle

import "github.com/futonlab/miteguard/internal/models"

// itemTransitions lists the allowed item status changes. Cancellation from
// any non-normal state back to normal is always legal and encoded here.
var itemTransitions = map[models.ItemStatus][]models.ItemStatus{
	models.ItemStatusNormal: {
		models.ItemStatusWaitingOptimalTime, // user schedules a self-drying window
		models.ItemStatusWaitingPickup,      // user creates a helper order
	},
	models.ItemStatusWaitingOptimalTime: {
		models.ItemStatusSelfDrying, // wall clock entered the window
		models.ItemStatusNormal,     // cancelled
	},
	models.ItemStatusSelfDrying: {
		models.ItemStatusNormal, // window ended or cancelled
	},
	models.ItemStatusWaitingPickup: {
		models.ItemStatusHelpDrying, // order accepted
		models.ItemStatusNormal,     // order expired or cancelled
	},
	models.ItemStatusHelpDrying: {
		models.ItemStatusNormal, // order completed or cancelled
	},
}

var orderTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending: {
		models.OrderStatusAccepted,
		models.OrderStatusCancelled, // withdrawn or expired unaccepted
	},
	models.OrderStatusAccepted: {
		models.OrderStatusInProgress,
		models.OrderStatusCancelled, // requester withdraws or assignee backs out
	},
	models.OrderStatusInProgress: {
		models.OrderStatusCompleted,
		models.OrderStatusCancelled, // cancellation is total from any non-terminal state
	},
}

// CanItemTransition reports whether from -> to is a legal item transition.
func CanItemTransition(from, to models.ItemStatus) bool {
	for _, next := range itemTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanOrderTransition reports whether from -> to is a legal order transition.
func CanOrderTransition(from, to models.OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ItemIdle reports whether the item has no intervention in flight.
func ItemIdle(s models.ItemStatus) bool {
	return s == models.ItemStatusNormal
}

// OrderTerminal reports whether the order can no longer change state.
func OrderTerminal(s models.OrderStatus) bool {
	return s == models.OrderStatusCompleted || s == models.OrderStatusCancelled
}
