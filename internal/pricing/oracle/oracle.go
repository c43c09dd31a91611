package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bullion-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bullion-backend/pkg/errors"
	"github.com/angelmondragon/bullion-backend/pkg/logger"
	"github.com/angelmondragon/bullion-backend/pkg/metrics"
	"github.com/angelmondragon/bullion-backend/pkg/money"
)

const (
	DefaultTTL     = 5 * time.Minute
	DefaultTimeout = 10 * time.Second

	// SourceCache marks a price served from the cache.
	SourceCache = "cache"
)

// MarketPrice is a per-gram base price for a commodity.
type MarketPrice struct {
	Commodity    enums.Commodity
	PricePerGram decimal.Decimal
	FetchedAt    time.Time
	// Source is the provider name, or SourceCache when no provider was called.
	Source string
	// Stale is set when every provider failed and an expired cache entry was served.
	Stale bool
}

// Fetcher is the surface consumed by the pricing service and the price worker.
type Fetcher interface {
	FetchMarketPrice(ctx context.Context, commodity enums.Commodity) (MarketPrice, error)
}

// Params wires an Oracle.
type Params struct {
	Providers []Provider
	Cache     Cache
	TTL       time.Duration
	Timeout   time.Duration
	Logger    *logger.Logger
	Metrics   *metrics.OracleMetrics
	Now       func() time.Time
}

// Oracle tries providers in order, first success wins, behind a per-commodity cache.
type Oracle struct {
	providers []Provider
	cache     Cache
	ttl       time.Duration
	timeout   time.Duration
	logg      *logger.Logger
	metrics   *metrics.OracleMetrics
	now       func() time.Time
}

func New(params Params) (*Oracle, error) {
	if len(params.Providers) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "at least one price provider is required")
	}
	for i, p := range params.Providers {
		if p == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("price provider %d is nil", i))
		}
	}
	if params.Cache == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "price cache is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger is required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Oracle{
		providers: params.Providers,
		cache:     params.Cache,
		ttl:       ttl,
		timeout:   timeout,
		logg:      params.Logger,
		metrics:   params.Metrics,
		now:       now,
	}, nil
}

// FetchMarketPrice returns the per-gram market price for commodity. A fresh cache
// entry short-circuits the providers. When every provider fails, the cached entry is
// served regardless of age; with no cache entry the result is an Unavailable error.
func (o *Oracle) FetchMarketPrice(ctx context.Context, commodity enums.Commodity) (MarketPrice, error) {
	if !commodity.IsValid() {
		return MarketPrice{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported commodity %q", commodity))
	}
	ctx = o.logg.WithField(ctx, "commodity", commodity.String())

	cached, hasCache, err := o.cache.Get(ctx, commodity)
	if err != nil {
		o.logg.Warn(o.logg.WithField(ctx, "error", err.Error()), "price cache read failed")
		hasCache = false
	}
	if hasCache && o.now().Sub(cached.FetchedAt) < o.ttl {
		o.metrics.ObserveCache(commodity.String(), metrics.CacheHit)
		return MarketPrice{
			Commodity:    commodity,
			PricePerGram: cached.PricePerGram,
			FetchedAt:    cached.FetchedAt,
			Source:       SourceCache,
		}, nil
	}
	o.metrics.ObserveCache(commodity.String(), metrics.CacheMiss)

	var failures []error
	for _, provider := range o.providers {
		price, err := o.callProvider(ctx, provider, commodity)
		if err != nil {
			failures = append(failures, err)
			continue
		}

		fetched := MarketPrice{
			Commodity:    commodity,
			PricePerGram: price,
			FetchedAt:    o.now().UTC(),
			Source:       provider.Name(),
		}
		if err := o.cache.Set(ctx, commodity, CachedPrice{
			PricePerGram: fetched.PricePerGram,
			FetchedAt:    fetched.FetchedAt,
			Provider:     fetched.Source,
		}); err != nil {
			o.logg.Warn(o.logg.WithField(ctx, "error", err.Error()), "price cache write failed")
		}
		return fetched, nil
	}

	if hasCache {
		o.metrics.ObserveCache(commodity.String(), metrics.CacheStale)
		o.logg.Warn(o.logg.WithFields(ctx, map[string]any{
			"fetched_at": cached.FetchedAt,
			"failures":   len(failures),
		}), "all price providers failed; serving stale cache")
		return MarketPrice{
			Commodity:    commodity,
			PricePerGram: cached.PricePerGram,
			FetchedAt:    cached.FetchedAt,
			Source:       SourceCache,
			Stale:        true,
		}, nil
	}

	return MarketPrice{}, pkgerrors.Wrap(pkgerrors.CodeUnavailable, errors.Join(failures...), "all price sources exhausted")
}

func (o *Oracle) callProvider(ctx context.Context, provider Provider, commodity enums.Commodity) (decimal.Decimal, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	pctx := o.logg.WithField(ctx, "provider", provider.Name())
	quote, err := provider.Quote(callCtx, commodity)
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			outcome = metrics.OutcomeTimeout
		}
		o.metrics.ObserveProvider(provider.Name(), outcome)
		o.logg.Warn(o.logg.WithField(pctx, "error", err.Error()), "price provider failed")
		return decimal.Zero, fmt.Errorf("%s: %w", provider.Name(), err)
	}

	price := quote.Price
	if quote.Unit != UnitGram {
		price = money.PerGramFromOunce(price)
	} else {
		price = money.RoundAmount(price)
	}
	if !price.IsPositive() {
		o.metrics.ObserveProvider(provider.Name(), metrics.OutcomeError)
		o.logg.Warn(o.logg.WithField(pctx, "price", price.String()), "price provider returned non-positive price")
		return decimal.Zero, fmt.Errorf("%s: non-positive price %s", provider.Name(), price)
	}

	o.metrics.ObserveProvider(provider.Name(), metrics.OutcomeSuccess)
	return price, nil
}
