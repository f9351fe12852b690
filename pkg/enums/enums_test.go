package enums

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPaid, OrderStatusProcessing, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusPaid, OrderStatusShipped, false},
		{OrderStatusShipped, OrderStatusPaid, false},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusRefunded, true},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPaid, false},
		{OrderStatusRefunded, OrderStatusCancelled, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: expected %v got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestParseReturnReason(t *testing.T) {
	if r, err := ParseReturnReason("wrong_size"); err != nil || r != ReturnReasonWrongSize {
		t.Fatalf("unexpected parse result %q %v", r, err)
	}
	if _, err := ParseReturnReason("too_expensive"); err == nil {
		t.Fatalf("expected unknown reason to fail")
	}
}

func TestParseStockFilterDefaultsToAll(t *testing.T) {
	f, err := ParseStockFilter("")
	if err != nil || f != StockFilterAll {
		t.Fatalf("expected all, got %q %v", f, err)
	}
	if _, err := ParseStockFilter("some"); err == nil {
		t.Fatalf("expected invalid filter error")
	}
}

func TestParseErrorsNameTheEnum(t *testing.T) {
	if _, err := ParseOutboxEventType("order.deleted"); err == nil || err.Error() != `invalid event type "order.deleted"` {
		t.Fatalf("unexpected error %v", err)
	}
	if _, err := ParseRole("Admin"); err == nil {
		t.Fatalf("parse must be case sensitive")
	}
	if s, err := ParseInvoiceStatus("paid"); err != nil || s != InvoiceStatusPaid {
		t.Fatalf("parse paid: %v %v", s, err)
	}
}
