package pricing

import "strconv"

// currencyGlyph is the fixed display prefix; the storefront renders a
// single locale (ja-JP) and does no locale negotiation.
const currencyGlyph = "¥"

// Format renders an amount with the currency glyph and thousands separators.
func Format(amount Money) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var out []byte
	for i, d := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, d)
	}
	s := currencyGlyph + string(out)
	if negative {
		s = "-" + s
	}
	return s
}

// FormatIncludedTax renders the tax-inclusive price for a tax-exclusive
// unit price, e.g. 1000 -> "¥1,100".
func FormatIncludedTax(price Money, taxBps int) string {
	return Format(TaxIncluded(price, taxBps))
}
