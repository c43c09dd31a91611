package config

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const EnvPrefix = "BULLION"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv          = "BULLION_APP_ENV"
	EnvPort            = "BULLION_APP_PORT"
	EnvDBDSN           = "BULLION_DB_DSN"
	EnvDBHost          = "BULLION_DB_HOST"
	EnvDBUser          = "BULLION_DB_USER"
	EnvDBName          = "BULLION_DB_NAME"
	EnvRedisURL        = "BULLION_REDIS_URL"
	EnvJWTSecret       = "BULLION_JWT_SECRET"
	EnvJWTIssuer       = "BULLION_JWT_ISSUER"
	EnvPriceCache      = "BULLION_PRICE_CACHE"
	EnvPriceLockSource = "BULLION_PRICE_LOCK_SOURCE"
	EnvPriceProviders  = "BULLION_PRICE_PROVIDERS"
	EnvPaymentsMin     = "BULLION_PAYMENTS_MIN_AMOUNT"
	EnvPaymentsMax     = "BULLION_PAYMENTS_MAX_AMOUNT"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

const (
	PriceCacheMemory = "memory"
	PriceCacheRedis  = "redis"

	PriceLockLive     = "live"
	PriceLockSnapshot = "snapshot"
)

// MinTopUp returns the configured minimum top-up amount.
func (p PaymentsConfig) MinTopUp() decimal.Decimal {
	amount, _ := parseAmount(p.MinAmount)
	return amount
}

// MaxTopUp returns the configured maximum top-up amount.
func (p PaymentsConfig) MaxTopUp() decimal.Decimal {
	amount, _ := parseAmount(p.MaxAmount)
	return amount
}

func parseAmount(value string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount %q must be positive", value)
	}
	return amount, nil
}
