package pricing

// Money represents a monetary value stored in minor units (yen).
type Money = int64

// DefaultTaxBps is the Japanese consumption tax rate in basis points.
const DefaultTaxBps = 1000

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal Money `json:"subtotal"`
	Discount Money `json:"discount"`
	Tax      Money `json:"tax"`
	Shipping Money `json:"shipping"`
	Total    Money `json:"total"`
}

// TaxIncluded converts a tax-exclusive price into the tax-inclusive price,
// rounded down to the nearest yen.
func TaxIncluded(price Money, taxBps int) Money {
	if price < 0 {
		price = 0
	}
	if taxBps < 0 {
		taxBps = 0
	}
	return price * Money(10000+taxBps) / 10000
}

// Tax returns the consumption tax portion for the given tax-exclusive amount.
func Tax(amount Money, taxBps int) Money {
	if amount <= 0 || taxBps <= 0 {
		return 0
	}
	return amount * Money(taxBps) / 10000
}

// Compute calculates cart totals given the provided inputs. The shipping
// fee is waived for an empty cart.
func Compute(items []Item, discount Money, taxBps int, shipping Money) Summary {
	var subtotal Money
	lines := 0
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		price := it.UnitPrice
		if price < 0 {
			price = 0
		}
		subtotal += Money(it.Qty) * price
		lines++
	}
	if lines == 0 {
		return Summary{}
	}
	if discount < 0 {
		discount = 0
	}
	if discount > subtotal {
		discount = subtotal
	}
	taxable := subtotal - discount
	tax := Tax(taxable, taxBps)
	if shipping < 0 {
		shipping = 0
	}
	return Summary{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Shipping: shipping,
		Total:    taxable + tax + shipping,
	}
}

// ShippingFee resolves the applicable shipping fee. The flat fee applies to
// any non-empty cart; a positive free-shipping threshold waives it once the
// subtotal reaches the threshold.
func ShippingFee(subtotal Money, flatFee Money, freeThreshold Money) Money {
	if subtotal <= 0 {
		return 0
	}
	if freeThreshold > 0 && subtotal >= freeThreshold {
		return 0
	}
	if flatFee < 0 {
		return 0
	}
	return flatFee
}
