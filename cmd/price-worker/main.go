package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/bullion-backend/internal/cron"
	"github.com/angelmondragon/bullion-backend/internal/pricing"
	"github.com/angelmondragon/bullion-backend/internal/pricing/oracle"
	"github.com/angelmondragon/bullion-backend/internal/tenants"
	"github.com/angelmondragon/bullion-backend/pkg/config"
	"github.com/angelmondragon/bullion-backend/pkg/db"
	"github.com/angelmondragon/bullion-backend/pkg/enums"
	"github.com/angelmondragon/bullion-backend/pkg/instance"
	"github.com/angelmondragon/bullion-backend/pkg/logger"
	"github.com/angelmondragon/bullion-backend/pkg/metrics"
	"github.com/angelmondragon/bullion-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single snapshot cycle and exit")
	localLock := flag.Bool("local-lock", false, "use an in-process lock instead of redis")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "price-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "price-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	priceOracle, err := buildOracle(cfg.Pricing, redisClient, logg)
	if err != nil {
		logg.Error(ctx, "failed to build price oracle", err)
		os.Exit(1)
	}

	tenantService, err := tenants.NewService(tenants.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to create tenant service", err)
		os.Exit(1)
	}

	lockSource, err := pricing.ParseLockSource(cfg.Pricing.LockSource)
	if err != nil {
		logg.Error(ctx, "invalid price lock source", err)
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
		logg.Error(ctx, "failed to create pricing service", err)
		os.Exit(1)
	}

	snapshotJob, err := cron.NewPriceSnapshotJob(cron.PriceSnapshotJobParams{
		Logger:      logg,
		Tenants:     tenantService,
		Oracle:      priceOracle,
		Prices:      pricingService,
		Commodities: enums.Commodities(),
	})
	if err != nil {
		logg.Error(ctx, "failed to create price snapshot job", err)
		os.Exit(1)
	}

	workerID := instance.ID()
	var jobLock cron.Lock
	if *localLock {
		jobLock = cron.NewLocalLock()
	} else {
		lockKey := redisClient.LockKey(fmt.Sprintf("price-worker:%s", strings.ToLower(cfg.App.Env)))
		redisLock, err := cron.NewRedisLock(redisClient, lockKey, cfg.Cron.LockTTL)
		if err != nil {
			logg.Error(ctx, "failed to create cron lock", err)
			os.Exit(1)
		}
		jobLock = redisLock.WithHolder(workerID)
	}

	worker, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(snapshotJob),
		Lock:     jobLock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": workerID,
		"interval": cfg.Cron.Interval.String(),
		"once":     *once,
	})

	if *once {
		if err := worker.RunOnce(ctx); err != nil {
			logg.Error(ctx, "price worker cycle failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "price worker cycle complete")
		return
	}

	logg.Info(ctx, "starting price worker")
	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		logg.Error(ctx, "price worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "price worker stopped")
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
