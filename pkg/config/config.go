package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

type Config struct {
	Port          string
	RedisAddr     string
	RedisPassword string
	TaxRate       decimal.Decimal
}

// Load resolves configuration from the environment. SALES_TAX_RATE is the
// fraction applied to the discounted subtotal (0.16 = 16%).
func Load() Config {
	taxRate := decimal.NewFromFloat(0.16)
	if raw := strings.TrimSpace(os.Getenv("SALES_TAX_RATE")); raw != "" {
		if parsed, err := decimal.NewFromString(raw); err == nil && !parsed.IsNegative() {
			taxRate = parsed
		}
	}

	return Config{
		Port:          getEnv("PORT", "8080"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		TaxRate:       taxRate,
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
