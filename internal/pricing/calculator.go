package pricing

import "github.com/shopspring/decimal"

// Calculator derives monetary totals for a sale. It is a pure value type:
// no I/O, deterministic, all arithmetic in decimal to avoid rounding drift.
type Calculator struct {
	taxRate decimal.Decimal
}

// New returns a calculator applying the given tax rate (a fraction, 0.16 = 16%)
// to the discounted subtotal.
func New(taxRate decimal.Decimal) Calculator {
	return Calculator{taxRate: taxRate}
}

// TaxRate reports the configured rate.
func (c Calculator) TaxRate() decimal.Decimal {
	return c.taxRate
}

// Line computes the subtotal of one line: quantity times unit price.
func (c Calculator) Line(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// Totals computes tax and grand total from a subtotal and discount.
// tax = (subtotal - discount) * rate, rounded to 2 decimal places;
// total = subtotal - discount + tax.
func (c Calculator) Totals(subtotal, discount decimal.Decimal) (tax, total decimal.Decimal) {
	base := subtotal.Sub(discount)
	tax = base.Mul(c.taxRate).Round(2)
	total = base.Add(tax)
	return tax, total
}
