package order

import (
	"errors"
	"testing"
	"time"

	"github.com/noah-isme/storefront-api/internal/cart"
	"github.com/noah-isme/storefront-api/internal/pricing"
)

func sampleOrder(userID, anonID string) Order {
	return Order{
		UserID: userID,
		AnonID: anonID,
		Items: []cart.Item{
			{ProductID: "p-1", Name: "Mug", UnitPrice: 1000, Qty: 2},
		},
		Summary:       pricing.Summary{Subtotal: 2000, Tax: 200, Shipping: 500, Total: 2700},
		TransactionID: "SQ_1735689600123_000000001",
		ReceiptNumber: "REC_89600123",
	}
}

func TestCreateDefaultsAndLookup(t *testing.T) {
	s := NewStore(nil)

	o, err := s.Create(sampleOrder("u-1", ""))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if o.ID == "" {
		t.Fatal("order id should be generated")
	}
	if o.Status != StatusPaid {
		t.Fatalf("status = %q, want %q", o.Status, StatusPaid)
	}

	got, err := s.Get(o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TransactionID != o.TransactionID {
		t.Fatalf("transaction id mismatch: %q vs %q", got.TransactionID, o.TransactionID)
	}

	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateRejectsEmptyOrder(t *testing.T) {
	s := NewStore(nil)
	if _, err := s.Create(Order{}); err == nil {
		t.Fatal("expected error for order without lines")
	}
}

func TestListByOwner(t *testing.T) {
	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	tick := 0
	s := NewStore(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})

	first, err := s.Create(sampleOrder("u-1", ""))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := s.Create(sampleOrder("u-1", ""))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(sampleOrder("", "anon-9")); err != nil {
		t.Fatalf("create: %v", err)
	}

	mine := s.ListByOwner("u-1", "")
	if len(mine) != 2 {
		t.Fatalf("expected 2 orders for u-1, got %d", len(mine))
	}
	if mine[0].ID != second.ID || mine[1].ID != first.ID {
		t.Fatal("orders should come back newest first")
	}

	anon := s.ListByOwner("", "anon-9")
	if len(anon) != 1 {
		t.Fatalf("expected 1 anonymous order, got %d", len(anon))
	}

	if got := s.ListByOwner("u-2", ""); len(got) != 0 {
		t.Fatalf("u-2 owns nothing, got %d orders", len(got))
	}
}

func TestSetStatusTransitions(t *testing.T) {
	s := NewStore(nil)
	o, err := s.Create(sampleOrder("u-1", ""))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := s.SetStatus(o.ID, StatusCanceled)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if updated.Status != StatusCanceled {
		t.Fatalf("status = %q, want %q", updated.Status, StatusCanceled)
	}

	// Re-applying the same status is idempotent.
	if _, err := s.SetStatus(o.ID, StatusCanceled); err != nil {
		t.Fatalf("idempotent cancel: %v", err)
	}

	// A canceled order cannot become refunded.
	if _, err := s.SetStatus(o.ID, StatusRefunded); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	if _, err := s.SetStatus("missing", StatusCanceled); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRevenueCountsOnlyPaidOrders(t *testing.T) {
	s := NewStore(nil)
	if _, err := s.Create(sampleOrder("u-1", "")); err != nil {
		t.Fatalf("create: %v", err)
	}
	b, err := s.Create(sampleOrder("u-2", ""))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if got := s.Revenue(); got != 5400 {
		t.Fatalf("revenue = %d, want 5400", got)
	}
	if _, err := s.SetStatus(b.ID, StatusRefunded); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if got := s.Revenue(); got != 2700 {
		t.Fatalf("revenue after refund = %d, want 2700", got)
	}
	if s.Count() != 2 {
		t.Fatalf("count = %d, want 2", s.Count())
	}
}
