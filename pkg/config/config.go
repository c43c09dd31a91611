package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Pricing      PricingConfig
	Payments     PaymentsConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Payments.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BULLION_APP_ENV" required:"true"`
	Port         string `envconfig:"BULLION_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BULLION_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"BULLION_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"BULLION_LOG_WARN_STACK" default:"false"`

	// CORSOrigins is a comma separated allow list for browser clients.
	CORSOrigins []string `envconfig:"BULLION_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"BULLION_DB_DSN"`

	Host     string `envconfig:"BULLION_DB_HOST"`
	Port     int    `envconfig:"BULLION_DB_PORT" default:"5432"`
	User     string `envconfig:"BULLION_DB_USER"`
	Password string `envconfig:"BULLION_DB_PASSWORD"`
	Name     string `envconfig:"BULLION_DB_NAME"`
	SSLMode  string `envconfig:"BULLION_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BULLION_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BULLION_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BULLION_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BULLION_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"BULLION_DB_SLOW_QUERY_THRESHOLD" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BULLION_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BULLION_REDIS_ADDR"`
	Password     string        `envconfig:"BULLION_REDIS_PASSWORD"`
	DB           int           `envconfig:"BULLION_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BULLION_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BULLION_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BULLION_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BULLION_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BULLION_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies tokens minted by the identity service. This service never issues tokens.
type JWTConfig struct {
	Secret string `envconfig:"BULLION_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"BULLION_JWT_ISSUER" required:"true"`
}

type PricingConfig struct {
	Currency        string        `envconfig:"BULLION_PRICE_CURRENCY" default:"INR"`
	CacheTTL        time.Duration `envconfig:"BULLION_PRICE_CACHE_TTL" default:"5m"`
	CacheBackend    string        `envconfig:"BULLION_PRICE_CACHE" default:"memory"`
	ProviderTimeout time.Duration `envconfig:"BULLION_PRICE_PROVIDER_TIMEOUT" default:"10s"`
	LockSource      string        `envconfig:"BULLION_PRICE_LOCK_SOURCE" default:"live"`

	// Providers is the ordered fallback list, e.g. "metalsapi,goldapi".
	Providers []string `envconfig:"BULLION_PRICE_PROVIDERS" default:"metalsapi,goldapi"`

	MetalsAPIURL  string `envconfig:"BULLION_PRICE_METALSAPI_URL" default:"https://metals-api.com/api"`
	MetalsAPIKey  string `envconfig:"BULLION_PRICE_METALSAPI_KEY"`
	MetalsAPIUnit string `envconfig:"BULLION_PRICE_METALSAPI_UNIT" default:"ounce"`
	GoldAPIURL    string `envconfig:"BULLION_PRICE_GOLDAPI_URL" default:"https://www.goldapi.io/api"`
	GoldAPIKey    string `envconfig:"BULLION_PRICE_GOLDAPI_KEY"`
	GoldAPIUnit   string `envconfig:"BULLION_PRICE_GOLDAPI_UNIT" default:"gram"`
}

func (p PricingConfig) validate() error {
	switch strings.ToLower(p.CacheBackend) {
	case PriceCacheMemory, PriceCacheRedis:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvPriceCache, PriceCacheMemory, PriceCacheRedis)
	}
	switch strings.ToLower(p.LockSource) {
	case PriceLockLive, PriceLockSnapshot:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvPriceLockSource, PriceLockLive, PriceLockSnapshot)
	}
	return nil
}

type PaymentsConfig struct {
	KeyID         string `envconfig:"BULLION_RAZORPAY_KEY_ID"`
	KeySecret     string `envconfig:"BULLION_RAZORPAY_KEY_SECRET"`
	WebhookSecret string `envconfig:"BULLION_RAZORPAY_WEBHOOK_SECRET"`
	BaseURL       string `envconfig:"BULLION_RAZORPAY_BASE_URL" default:"https://api.razorpay.com"`
	Currency      string `envconfig:"BULLION_PAYMENTS_CURRENCY" default:"INR"`
	// MinAmount and MaxAmount bound a single top-up, in major units.
	MinAmount            string        `envconfig:"BULLION_PAYMENTS_MIN_AMOUNT" default:"100"`
	MaxAmount            string        `envconfig:"BULLION_PAYMENTS_MAX_AMOUNT" default:"200000"`
	WebhookIdempotentTTL time.Duration `envconfig:"BULLION_PAYMENTS_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

func (p PaymentsConfig) validate() error {
	for env, value := range map[string]string{EnvPaymentsMin: p.MinAmount, EnvPaymentsMax: p.MaxAmount} {
		if _, err := parseAmount(value); err != nil {
			return fmt.Errorf("%s: %w", env, err)
		}
	}
	return nil
}

type CronConfig struct {
	Interval time.Duration `envconfig:"BULLION_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"BULLION_CRON_LOCK_TTL" default:"10m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BULLION_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	discreteValues := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if discreteValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
