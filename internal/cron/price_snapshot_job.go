package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/bullion-backend/internal/pricing"
	"github.com/angelmondragon/bullion-backend/internal/pricing/oracle"
	"github.com/angelmondragon/bullion-backend/pkg/db/models"
	"github.com/angelmondragon/bullion-backend/pkg/enums"
	"github.com/angelmondragon/bullion-backend/pkg/logger"
	"github.com/angelmondragon/bullion-backend/pkg/money"
)

// PriceSnapshotJobName labels the job in logs and metrics.
const PriceSnapshotJobName = "price_snapshot_job"

type activeTenantLister interface {
	ListActive(ctx context.Context) ([]models.Tenant, error)
}

type priceSetter interface {
	SetPrice(ctx context.Context, input pricing.SetPriceInput) (*models.PriceSnapshot, error)
}

// PriceSnapshotJobParams configure the daily snapshot writer.
type PriceSnapshotJobParams struct {
	Logger      *logger.Logger
	Tenants     activeTenantLister
	Oracle      oracle.Fetcher
	Prices      priceSetter
	Commodities []enums.Commodity
	Now         func() time.Time
}

type priceSnapshotJob struct {
	logg        *logger.Logger
	tenants     activeTenantLister
	oracle      oracle.Fetcher
	prices      priceSetter
	commodities []enums.Commodity
	now         func() time.Time
}

// NewPriceSnapshotJob builds the job that stores today's market price for every active tenant.
func NewPriceSnapshotJob(params PriceSnapshotJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Tenants == nil {
		return nil, fmt.Errorf("tenant lister required")
	}
	if params.Oracle == nil {
		return nil, fmt.Errorf("price oracle required")
	}
	if params.Prices == nil {
		return nil, fmt.Errorf("price service required")
	}
	commodities := params.Commodities
	if len(commodities) == 0 {
		commodities = enums.Commodities()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &priceSnapshotJob{
		logg:        params.Logger,
		tenants:     params.Tenants,
		oracle:      params.Oracle,
		prices:      params.Prices,
		commodities: commodities,
		now:         now,
	}, nil
}

func (j *priceSnapshotJob) Name() string { return PriceSnapshotJobName }

// Run fetches each commodity once and writes it for every tenant. A failure for one
// commodity or tenant is logged and collected; the remaining pairs still run.
func (j *priceSnapshotJob) Run(ctx context.Context) error {
	tenants, err := j.tenants.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active tenants: %w", err)
	}
	if len(tenants) == 0 {
		j.logg.Info(ctx, "no active tenants; nothing to snapshot")
		return nil
	}

	effective := j.now()
	var errs error
	written, kept := 0, 0
	for _, commodity := range j.commodities {
		commodityCtx := j.logg.WithField(ctx, "commodity", commodity.String())
		market, err := j.oracle.FetchMarketPrice(commodityCtx, commodity)
		if err != nil {
			j.logg.Error(commodityCtx, "market price unavailable for snapshot", err)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", commodity, err))
			continue
		}
		if market.Stale {
			j.logg.Warn(j.logg.WithField(commodityCtx, "fetched_at", market.FetchedAt), "snapshotting stale market price")
		}

		for _, tenant := range tenants {
			tenantCtx := j.logg.WithTenantID(commodityCtx, tenant.ID.String())
			snapshot, err := j.prices.SetPrice(tenantCtx, pricing.SetPriceInput{
				TenantID:      tenant.ID,
				Commodity:     commodity,
				BasePrice:     market.PricePerGram,
				EffectiveDate: effective,
				UpdatedBy:     pricing.SystemActor,
			})
			if err != nil {
				j.logg.Error(tenantCtx, "price snapshot failed", err)
				errs = multierr.Append(errs, fmt.Errorf("%s/%s: %w", tenant.ID, commodity, err))
				continue
			}
			if snapshot.SetBy != pricing.SystemActor {
				kept++
				j.logg.Info(j.logg.WithField(tenantCtx, "set_by", snapshot.SetBy), "manual price kept for today")
				continue
			}
			written++
			j.logg.Info(j.logg.WithField(tenantCtx, "final_price", snapshot.FinalPrice.StringFixed(money.AmountScale)), "price snapshot stored")
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"snapshots": written,
		"kept":      kept,
		"failures":  len(multierr.Errors(errs)),
	}), "price snapshot run finished")
	return errs
}
