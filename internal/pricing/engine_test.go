package pricing

import "testing"

func TestTaxIncludedRoundsDown(t *testing.T) {
	cases := []struct {
		price Money
		want  Money
	}{
		{0, 0},
		{99, 108},
		{100, 110},
		{1000, 1100},
		{12800, 14080},
	}
	for _, tc := range cases {
		if got := TaxIncluded(tc.price, DefaultTaxBps); got != tc.want {
			t.Fatalf("TaxIncluded(%d) = %d, want %d", tc.price, got, tc.want)
		}
	}
}

func TestTaxIncludedClampsNegativeInputs(t *testing.T) {
	if got := TaxIncluded(-500, DefaultTaxBps); got != 0 {
		t.Fatalf("negative price should clamp to 0, got %d", got)
	}
	if got := TaxIncluded(100, -10); got != 100 {
		t.Fatalf("negative rate should clamp to 0, got %d", got)
	}
}

func TestComputeCartTotals(t *testing.T) {
	items := []Item{
		{Qty: 2, UnitPrice: 1000},
		{Qty: 1, UnitPrice: 500},
	}
	got := Compute(items, 0, DefaultTaxBps, 500)
	want := Summary{Subtotal: 2500, Tax: 250, Shipping: 500, Total: 3250}
	if got != want {
		t.Fatalf("Compute = %+v, want %+v", got, want)
	}
}

func TestComputeEmptyCartIsAllZero(t *testing.T) {
	if got := Compute(nil, 0, DefaultTaxBps, 500); got != (Summary{}) {
		t.Fatalf("empty cart should produce a zero summary, got %+v", got)
	}
	zeroQty := []Item{{Qty: 0, UnitPrice: 1000}}
	if got := Compute(zeroQty, 0, DefaultTaxBps, 500); got != (Summary{}) {
		t.Fatalf("zero-qty lines should not count, got %+v", got)
	}
}

func TestComputeDiscountCapsAtSubtotal(t *testing.T) {
	items := []Item{{Qty: 1, UnitPrice: 1000}}
	got := Compute(items, 5000, DefaultTaxBps, 500)
	if got.Discount != 1000 {
		t.Fatalf("discount should cap at subtotal, got %d", got.Discount)
	}
	if got.Tax != 0 {
		t.Fatalf("fully discounted cart should carry no tax, got %d", got.Tax)
	}
	if got.Total != 500 {
		t.Fatalf("total should be shipping only, got %d", got.Total)
	}
}

func TestShippingFee(t *testing.T) {
	if got := ShippingFee(0, 500, 0); got != 0 {
		t.Fatalf("empty cart should waive shipping, got %d", got)
	}
	if got := ShippingFee(2500, 500, 0); got != 500 {
		t.Fatalf("non-empty cart pays the flat fee, got %d", got)
	}
	if got := ShippingFee(10000, 500, 8000); got != 0 {
		t.Fatalf("threshold reached should waive shipping, got %d", got)
	}
	if got := ShippingFee(7999, 500, 8000); got != 500 {
		t.Fatalf("below threshold pays the flat fee, got %d", got)
	}
}
