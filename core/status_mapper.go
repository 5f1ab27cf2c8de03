package core

import "strings"

var paidVocabulary = map[string]struct{}{
	"paid":      {},
	"completed": {},
	"complete":  {},
	"success":   {},
}

// NormalizeStatus lower-cases and trims a processor status for storage and
// comparison.
func NormalizeStatus(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// IsPaidStatus reports whether raw belongs to the paid vocabulary.
func IsPaidStatus(raw string) bool {
	_, ok := paidVocabulary[NormalizeStatus(raw)]
	return ok
}

// MapToOrderState maps a raw processor status to an order status. It is total:
// anything outside the known vocabulary, including the empty string, maps to
// Pending.
func MapToOrderState(raw string) OrderStatus {
	status := NormalizeStatus(raw)
	if _, ok := paidVocabulary[status]; ok {
		return OrderStatusPaid
	}
	switch status {
	case "refunded":
		return OrderStatusRefunded
	case "chargeback":
		return OrderStatusDisputed
	case "cancelled", "failed":
		return OrderStatusCancelled
	default:
		return OrderStatusPending
	}
}

// AppliesToOrder reports whether a mapped processor state mutates the order.
// Pending-mapped signals never downgrade the current status.
func AppliesToOrder(mapped OrderStatus) bool {
	switch mapped {
	case OrderStatusPaid, OrderStatusRefunded, OrderStatusDisputed, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// resolvePaymentState returns the status a payment signal assigns to an order
// currently in current, and false when the order must stay as it is.
func resolvePaymentState(current OrderStatus, mapped OrderStatus) (OrderStatus, bool) {
	if !AppliesToOrder(mapped) {
		return current, false
	}
	if mapped == OrderStatusPaid && current == OrderStatusDelivered {
		return current, false
	}
	return mapped, true
}
