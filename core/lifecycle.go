package core

import (
	"strings"
	"time"
)

const DefaultFreshnessWindow = 10 * time.Minute

var orderTransitions = map[OrderStatus]map[OrderStatus]struct{}{
	OrderStatusPending: {
		OrderStatusPaid:      {},
		OrderStatusCancelled: {},
		OrderStatusDisputed:  {},
	},
	OrderStatusPaid: {
		OrderStatusDelivered: {},
		OrderStatusDisputed:  {},
		OrderStatusRefunded:  {},
	},
}

// TransitionAllowed reports whether from -> to is part of the lifecycle graph.
// Re-applying the current status is always allowed.
func TransitionAllowed(from OrderStatus, to OrderStatus) bool {
	if from == to {
		return true
	}
	next, ok := orderTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

type DeliveryImplication string

const (
	DeliveryEligible DeliveryImplication = "eligible"
	DeliveryAtRisk   DeliveryImplication = "at_risk"
	DeliveryPending  DeliveryImplication = "pending"
)

// DeliveryImplicationFor reports what a verification result means for
// delivery of the order it was run against.
func DeliveryImplicationFor(rawStatus string) DeliveryImplication {
	switch MapToOrderState(rawStatus) {
	case OrderStatusPaid:
		return DeliveryEligible
	case OrderStatusRefunded, OrderStatusDisputed:
		return DeliveryAtRisk
	default:
		return DeliveryPending
	}
}

// DeliveryGate decides whether the irreversible delivery action may proceed.
type DeliveryGate struct {
	Window time.Duration
}

func NewDeliveryGate(window time.Duration) DeliveryGate {
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	return DeliveryGate{Window: window}
}

// Allows is true for Paid orders. Otherwise the latest verification check
// must exist, be no older than the window at now, and report a paid status.
func (g DeliveryGate) Allows(order Order, latest *VerificationCheck, now time.Time) bool {
	if order.Status == OrderStatusPaid {
		return true
	}
	if latest == nil {
		return false
	}
	window := g.Window
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	if now.Sub(latest.CheckedAt) > window {
		return false
	}
	return IsPaidStatus(strings.TrimSpace(latest.ResultStatus))
}
