package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/bullion-backend/api/routes"
	"github.com/angelmondragon/bullion-backend/internal/bookings"
	"github.com/angelmondragon/bullion-backend/internal/payments"
	"github.com/angelmondragon/bullion-backend/internal/pricing"
	"github.com/angelmondragon/bullion-backend/internal/pricing/oracle"
	"github.com/angelmondragon/bullion-backend/internal/tenants"
	"github.com/angelmondragon/bullion-backend/internal/wallet"
	"github.com/angelmondragon/bullion-backend/pkg/config"
	"github.com/angelmondragon/bullion-backend/pkg/db"
	"github.com/angelmondragon/bullion-backend/pkg/logger"
	"github.com/angelmondragon/bullion-backend/pkg/metrics"
	"github.com/angelmondragon/bullion-backend/pkg/migrate"
	"github.com/angelmondragon/bullion-backend/pkg/razorpay"
	"github.com/angelmondragon/bullion-backend/pkg/redis"
)

const (
	shutdownTimeout      = 15 * time.Second
	webhookGuardScope    = "razorpay-webhook"
	gatewayClientTimeout = 10 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	priceOracle, err := buildOracle(cfg.Pricing, redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build price oracle", err)
		os.Exit(1)
	}

	tenantService, err := tenants.NewService(tenants.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create tenant service", err)
		os.Exit(1)
	}

	lockSource, err := pricing.ParseLockSource(cfg.Pricing.LockSource)
	if err != nil {
		logg.Error(context.Background(), "invalid price lock source", err)
		os.Exit(1)
	}
	pricingService, err := pricing.NewService(pricing.ServiceParams{
		Repo:       pricing.NewRepository(dbClient.DB()),
		Margins:    tenantService,
		Oracle:     priceOracle,
		Logger:     logg,
		LockSource: lockSource,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pricing service", err)
		os.Exit(1)
	}

	walletService, err := wallet.NewService(wallet.ServiceParams{
		Repo:   wallet.NewRepository(dbClient.DB()),
		TX:     dbClient,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	bookingService, err := bookings.NewService(bookings.ServiceParams{
		Repo:   bookings.NewRepository(dbClient.DB()),
		TX:     dbClient,
		Prices: pricingService,
		Ledger: walletService,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create booking service", err)
		os.Exit(1)
	}

	gatewayClient, err := razorpay.NewClient(
		cfg.Payments.KeyID,
		cfg.Payments.KeySecret,
		razorpay.WithBaseURL(cfg.Payments.BaseURL),
		razorpay.WithHTTPClient(&http.Client{Timeout: gatewayClientTimeout}),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create razorpay client", err)
		os.Exit(1)
	}

	webhookGuard, err := payments.NewEventGuard(redisClient, cfg.Payments.WebhookIdempotentTTL, webhookGuardScope)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Repo:          payments.NewRepository(dbClient.DB()),
		Gateway:       gatewayClient,
		Ledger:        walletService,
		Logger:        logg,
		KeySecret:     cfg.Payments.KeySecret,
		WebhookSecret: cfg.Payments.WebhookSecret,
		Currency:      cfg.Payments.Currency,
		MinAmount:     cfg.Payments.MinTopUp(),
		MaxAmount:     cfg.Payments.MaxTopUp(),
		Guard:         webhookGuard,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%s", cfg.App.Port)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"lock_source": string(lockSource),
		"price_cache": cfg.Pricing.CacheBackend,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:       dbClient,
			Redis:    redisClient,
			Wallet:   walletService,
			Pricing:  pricingService,
			Bookings: bookingService,
			Payments: paymentService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}

func buildOracle(cfg config.PricingConfig, redisClient *redis.Client, logg *logger.Logger) (*oracle.Oracle, error) {
	providers, err := oracle.ProvidersFromConfig(cfg, &http.Client{Timeout: cfg.ProviderTimeout})
	if err != nil {
		return nil, err
	}

	var cache oracle.Cache = oracle.NewMemoryCache()
	if strings.EqualFold(cfg.CacheBackend, config.PriceCacheRedis) {
		cache, err = oracle.NewRedisCache(redisClient, redis.IsNil)
		if err != nil {
			return nil, err
		}
	}

	return oracle.New(oracle.Params{
		Providers: providers,
		Cache:     cache,
		TTL:       cfg.CacheTTL,
		Timeout:   cfg.ProviderTimeout,
		Logger:    logg,
		Metrics:   metrics.NewOracleMetrics(prometheus.DefaultRegisterer),
	})
}
