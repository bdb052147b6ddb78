package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestLineSubtotal(t *testing.T) {
	calc := New(dec("0.16"))

	assert.True(t, calc.Line(4, dec("25.00")).Equal(dec("100.00")))
	assert.True(t, calc.Line(3, dec("9.99")).Equal(dec("29.97")))
	assert.True(t, calc.Line(1, dec("0")).Equal(dec("0")))
}

func TestTotalsSixteenPercent(t *testing.T) {
	calc := New(dec("0.16"))

	tax, total := calc.Totals(dec("100.00"), dec("0"))
	assert.True(t, tax.Equal(dec("16.00")), "tax = %s", tax)
	assert.True(t, total.Equal(dec("116.00")), "total = %s", total)
}

func TestTotalsWithDiscount(t *testing.T) {
	calc := New(dec("0.16"))

	tax, total := calc.Totals(dec("250.00"), dec("50.00"))
	assert.True(t, tax.Equal(dec("32.00")))
	assert.True(t, total.Equal(dec("232.00")))
}

func TestTotalsRoundsTaxToCents(t *testing.T) {
	calc := New(dec("0.16"))

	// 29.97 * 0.16 = 4.7952 -> 4.80
	tax, total := calc.Totals(dec("29.97"), dec("0"))
	assert.True(t, tax.Equal(dec("4.80")), "tax = %s", tax)
	assert.True(t, total.Equal(dec("34.77")), "total = %s", total)
}

func TestTotalsIdentityHolds(t *testing.T) {
	calc := New(dec("0.11"))

	subtotals := []string{"0", "0.01", "19.99", "1234.56", "99999.99"}
	discounts := []string{"0", "0.01", "5.00"}
	for _, s := range subtotals {
		for _, d := range discounts {
			subtotal, discount := dec(s), dec(d)
			if discount.GreaterThan(subtotal) {
				continue
			}
			tax, total := calc.Totals(subtotal, discount)
			require.True(t, total.Equal(subtotal.Sub(discount).Add(tax)),
				"subtotal=%s discount=%s tax=%s total=%s", subtotal, discount, tax, total)
		}
	}
}

func TestZeroRate(t *testing.T) {
	calc := New(decimal.Zero)

	tax, total := calc.Totals(dec("75.50"), dec("0.50"))
	assert.True(t, tax.IsZero())
	assert.True(t, total.Equal(dec("75.00")))
}
