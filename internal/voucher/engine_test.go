package voucher

import (
	"testing"
	"time"
)

func int32Ptr(v int32) *int32 { return &v }

func TestComputeFixed(t *testing.T) {
	r := Rule{Kind: KindFixed, Value: 500}
	if got := Compute(3000, r); got != 500 {
		t.Fatalf("fixed discount = %d, want 500", got)
	}
	if got := Compute(300, r); got != 300 {
		t.Fatalf("discount should cap at eligible amount, got %d", got)
	}
	if got := Compute(0, r); got != 0 {
		t.Fatalf("zero eligible should yield zero, got %d", got)
	}
}

func TestComputePercent(t *testing.T) {
	r := Rule{Kind: KindPercent, PercentBps: 1000}
	if got := Compute(5000, r); got != 500 {
		t.Fatalf("10%% of 5000 = %d, want 500", got)
	}
	if got := Compute(99, r); got != 9 {
		t.Fatalf("percent discount should round down, got %d", got)
	}
	if got := Compute(5000, Rule{Kind: KindPercent}); got != 0 {
		t.Fatalf("zero bps should yield zero, got %d", got)
	}
}

func TestValidateMinimumSpend(t *testing.T) {
	r := Rule{Kind: KindFixed, Value: 500, MinSpend: 3000}
	now := time.Now()
	if err := r.Validate(now, 2999); err != ErrMinimumSpendUnmet {
		t.Fatalf("expected ErrMinimumSpendUnmet, got %v", err)
	}
	if err := r.Validate(now, 3000); err != nil {
		t.Fatalf("exact minimum should pass, got %v", err)
	}
}

func TestValidateWindow(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	from := now.Add(time.Hour)
	to := now.Add(-time.Hour)

	if err := (Rule{ValidFrom: &from}).Validate(now, 0); err != ErrVoucherInactive {
		t.Fatalf("expected ErrVoucherInactive, got %v", err)
	}
	if err := (Rule{ValidTo: &to}).Validate(now, 0); err != ErrVoucherExpired {
		t.Fatalf("expected ErrVoucherExpired, got %v", err)
	}
}

func TestValidateUsageLimit(t *testing.T) {
	r := Rule{UsageLimit: int32Ptr(2), UsedCount: 2}
	if err := r.Validate(time.Now(), 0); err != ErrUsageLimitReached {
		t.Fatalf("expected ErrUsageLimitReached, got %v", err)
	}
	r.UsedCount = 1
	if err := r.Validate(time.Now(), 0); err != nil {
		t.Fatalf("remaining quota should pass, got %v", err)
	}
}
