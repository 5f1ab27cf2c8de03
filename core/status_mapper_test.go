package core

import (
	"strings"
	"testing"
)

func TestMapToOrderState(t *testing.T) {
	cases := []struct {
		raw  string
		want OrderStatus
	}{
		{raw: "paid", want: OrderStatusPaid},
		{raw: "PAID", want: OrderStatusPaid},
		{raw: "Completed", want: OrderStatusPaid},
		{raw: "complete", want: OrderStatusPaid},
		{raw: " success ", want: OrderStatusPaid},
		{raw: "refunded", want: OrderStatusRefunded},
		{raw: "REFUNDED", want: OrderStatusRefunded},
		{raw: "chargeback", want: OrderStatusDisputed},
		{raw: "ChargeBack", want: OrderStatusDisputed},
		{raw: "cancelled", want: OrderStatusCancelled},
		{raw: "failed", want: OrderStatusCancelled},
		{raw: "FAILED", want: OrderStatusCancelled},
		{raw: "", want: OrderStatusPending},
		{raw: "unknown", want: OrderStatusPending},
		{raw: "order.paid", want: OrderStatusPending},
		{raw: "canceled", want: OrderStatusPending},
		{raw: "processing", want: OrderStatusPending},
	}
	for _, tc := range cases {
		if got := MapToOrderState(tc.raw); got != tc.want {
			t.Fatalf("MapToOrderState(%q): expected %q, got %q", tc.raw, tc.want, got)
		}
	}
}

func TestIsPaidStatus(t *testing.T) {
	for _, raw := range []string{"paid", "Completed", "COMPLETE", "success"} {
		if !IsPaidStatus(raw) {
			t.Fatalf("expected %q to be paid", raw)
		}
	}
	for _, raw := range []string{"", "refunded", "pending", "paid!"} {
		if IsPaidStatus(raw) {
			t.Fatalf("expected %q not to be paid", raw)
		}
	}
}

func TestResolvePaymentState(t *testing.T) {
	if _, apply := resolvePaymentState(OrderStatusPaid, OrderStatusPending); apply {
		t.Fatalf("expected pending-mapped signal not to apply")
	}
	if _, apply := resolvePaymentState(OrderStatusDelivered, OrderStatusPaid); apply {
		t.Fatalf("expected paid signal not to regress a delivered order")
	}
	next, apply := resolvePaymentState(OrderStatusDelivered, OrderStatusRefunded)
	if !apply || next != OrderStatusRefunded {
		t.Fatalf("expected refund to apply to delivered order, got %q apply=%v", next, apply)
	}
	next, apply = resolvePaymentState(OrderStatusPaid, OrderStatusPaid)
	if !apply || next != OrderStatusPaid {
		t.Fatalf("expected idempotent paid re-application, got %q apply=%v", next, apply)
	}
}

func FuzzMapToOrderState(f *testing.F) {
	for _, seed := range []string{"paid", "refunded", "chargeback", "cancelled", "failed", "", "ünïcode"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, raw string) {
		got := MapToOrderState(raw)
		if _, ok := ParseOrderStatus(string(got)); !ok {
			t.Fatalf("mapped %q to status outside vocabulary: %q", raw, got)
		}
		if again := MapToOrderState(strings.ToUpper(raw)); again != got && strings.ToLower(strings.ToUpper(raw)) == strings.ToLower(raw) {
			t.Fatalf("mapping is not case-insensitive for %q: %q vs %q", raw, got, again)
		}
		if got == OrderStatusDelivered {
			t.Fatalf("processor status must never map to delivered")
		}
	})
}
