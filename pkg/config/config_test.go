package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaultTaxRate(t *testing.T) {
	t.Setenv("SALES_TAX_RATE", "")

	cfg := Load()
	assert.True(t, cfg.TaxRate.Equal(decimal.NewFromFloat(0.16)), "default tax rate should be 0.16, got %s", cfg.TaxRate)
}

func TestLoadCustomTaxRate(t *testing.T) {
	t.Setenv("SALES_TAX_RATE", "0.11")

	cfg := Load()
	assert.True(t, cfg.TaxRate.Equal(decimal.NewFromFloat(0.11)))
}

func TestLoadRejectsInvalidTaxRate(t *testing.T) {
	t.Setenv("SALES_TAX_RATE", "-1")

	cfg := Load()
	assert.True(t, cfg.TaxRate.Equal(decimal.NewFromFloat(0.16)), "negative rate must fall back to default")
}

func TestLoadDefaultPort(t *testing.T) {
	t.Setenv("PORT", "")

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Address())
}
