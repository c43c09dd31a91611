package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bullion-backend/internal/pricing/oracle"
	"github.com/angelmondragon/bullion-backend/internal/tenants"
	"github.com/angelmondragon/bullion-backend/pkg/db/models"
	"github.com/angelmondragon/bullion-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bullion-backend/pkg/errors"
	"github.com/angelmondragon/bullion-backend/pkg/logger"
	"github.com/angelmondragon/bullion-backend/pkg/money"
)

// LockSource selects which price a booking locks.
type LockSource string

const (
	LockSourceLive     LockSource = "live"
	LockSourceSnapshot LockSource = "snapshot"
)

// ParseLockSource maps configuration onto a LockSource.
func ParseLockSource(value string) (LockSource, error) {
	switch LockSource(strings.ToLower(strings.TrimSpace(value))) {
	case LockSourceLive, "":
		return LockSourceLive, nil
	case LockSourceSnapshot:
		return LockSourceSnapshot, nil
	default:
		return "", fmt.Errorf("invalid price lock source %q", value)
	}
}

// SystemActor is recorded as set_by for snapshots written by the price worker. Its
// writes never replace a snapshot an admin set for the same day.
const SystemActor = "system"

// Service is the price policy engine.
type Service interface {
	GetCurrentPrice(ctx context.Context, tenantID uuid.UUID, commodity enums.Commodity) (*Price, error)
	GetLivePrice(ctx context.Context, tenantID uuid.UUID, commodity enums.Commodity) (*Price, error)
	SetPrice(ctx context.Context, input SetPriceInput) (*models.PriceSnapshot, error)
	CalculateGrams(ctx context.Context, tenantID uuid.UUID, commodity enums.Commodity, amount decimal.Decimal) (*GramQuote, error)
	// LockPrice resolves the price a new booking locks, from the configured source.
	LockPrice(ctx context.Context, tenantID uuid.UUID, commodity enums.Commodity) (*Price, error)
}

// SetPriceInput carries an admin or worker price update.
type SetPriceInput struct {
	TenantID      uuid.UUID
	Commodity     enums.Commodity
	BasePrice     decimal.Decimal
	EffectiveDate time.Time
	UpdatedBy     string
}

type marginSource interface {
	MarginFor(ctx context.Context, tenantID uuid.UUID, commodity enums.Commodity) (tenants.Margin, error)
}

// ServiceParams wires the pricing service.
type ServiceParams struct {
	Repo       Repository
	Margins    marginSource
	Oracle     oracle.Fetcher
	Logger     *logger.Logger
	LockSource LockSource
	Now        func() time.Time
}

type service struct {
	repo       Repository
	margins    marginSource
	oracle     oracle.Fetcher
	logg       *logger.Logger
	lockSource LockSource
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "price repository required")
	}
	if params.Margins == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tenant margin source required")
	}
	if params.Oracle == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "price oracle required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	lockSource := params.LockSource
	if lockSource == "" {
		lockSource = LockSourceLive
	}
	if lockSource != LockSourceLive && lockSource != LockSourceSnapshot {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("invalid lock source %q", lockSource))
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:       params.Repo,
		margins:    params.Margins,
		oracle:     params.Oracle,
		logg:       params.Logger,
		lockSource: lockSource,
		now:        now,
	}, nil
}

func (s *service) GetCurrentPrice(ctx context.Context, tenantID uuid.UUID, commodity enums.Commodity) (*Price, error) {
	if err := validateScope(tenantID, commodity); err != nil {
		return nil, err
	}
	snapshot, err := s.repo.FindLatest(ctx, tenantID, commodity, Day(s.now()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load price snapshot")
	}
	if snapshot == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no %s price set", commodity))
	}
	return &Price{
		Commodity:     snapshot.Commodity,
		BasePrice:     snapshot.BasePrice,
		MarginPercent: snapshot.MarginPercent,
		MarginFixed:   snapshot.MarginFixed,
		FinalPrice:    snapshot.FinalPrice,
		Source:        SourceSnapshot,
		FetchedAt:     snapshot.UpdatedAt,
	}, nil
}

func (s *service) GetLivePrice(ctx context.Context, tenantID uuid.UUID, commodity enums.Commodity) (*Price, error) {
	if err := validateScope(tenantID, commodity); err != nil {
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"tenant_id": tenantID.String(), "commodity": commodity.String()})

	market, err := s.oracle.FetchMarketPrice(ctx, commodity)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "market price unavailable; falling back to snapshot")
		return s.snapshotFallback(ctx, tenantID, commodity, err)
	}

	margin, err := s.margins.MarginFor(ctx, tenantID, commodity)
	if err != nil {
		return nil, err
	}
	return &Price{
		Commodity:     commodity,
		BasePrice:     market.PricePerGram,
		MarginPercent: margin.Percent,
		MarginFixed:   margin.Fixed,
		FinalPrice:    FinalPrice(market.PricePerGram, margin.Percent, margin.Fixed),
		Source:        market.Source,
		FetchedAt:     market.FetchedAt,
	}, nil
}

func (s *service) snapshotFallback(ctx context.Context, tenantID uuid.UUID, commodity enums.Commodity, cause error) (*Price, error) {
	price, err := s.GetCurrentPrice(ctx, tenantID, commodity)
	if err == nil {
		return price, nil
	}
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, cause, fmt.Sprintf("no %s price available", commodity))
	}
	return nil, err
}

func (s *service) SetPrice(ctx context.Context, input SetPriceInput) (*models.PriceSnapshot, error) {
	if err := validateScope(input.TenantID, input.Commodity); err != nil {
		return nil, err
	}
	if !input.BasePrice.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "base price must be greater than zero")
	}
	updatedBy := strings.TrimSpace(input.UpdatedBy)
	if updatedBy == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "updated by is required")
	}
	effective := input.EffectiveDate
	if effective.IsZero() {
		effective = s.now()
	}

	margin, err := s.margins.MarginFor(ctx, input.TenantID, input.Commodity)
	if err != nil {
		return nil, err
	}
	base := money.RoundAmount(input.BasePrice)

	stored, err := s.repo.Upsert(ctx, &models.PriceSnapshot{
		ID:            uuid.New(),
		TenantID:      input.TenantID,
		Commodity:     input.Commodity,
		EffectiveDay:  Day(effective),
		BasePrice:     base,
		MarginPercent: margin.Percent,
		MarginFixed:   margin.Fixed,
		FinalPrice:    FinalPrice(base, margin.Percent, margin.Fixed),
		SetBy:         updatedBy,
	}, updatedBy != SystemActor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert price snapshot")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"tenant_id":     input.TenantID.String(),
		"commodity":     input.Commodity.String(),
		"effective_day": stored.EffectiveDay.Format(time.DateOnly),
		"final_price":   stored.FinalPrice.StringFixed(money.AmountScale),
		"set_by":        stored.SetBy,
	}), "price snapshot set")
	return stored, nil
}

func (s *service) CalculateGrams(ctx context.Context, tenantID uuid.UUID, commodity enums.Commodity, amount decimal.Decimal) (*GramQuote, error) {
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	price, err := s.GetLivePrice(ctx, tenantID, commodity)
	if err != nil {
		return nil, err
	}
	return QuoteFor(commodity, amount, price)
}

func (s *service) LockPrice(ctx context.Context, tenantID uuid.UUID, commodity enums.Commodity) (*Price, error) {
	if s.lockSource == LockSourceSnapshot {
		return s.GetCurrentPrice(ctx, tenantID, commodity)
	}
	return s.GetLivePrice(ctx, tenantID, commodity)
}

// QuoteFor converts amount into grams at price.FinalPrice.
func QuoteFor(commodity enums.Commodity, amount decimal.Decimal, price *Price) (*GramQuote, error) {
	if price == nil || !price.FinalPrice.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeUnavailable, "price must be greater than zero")
	}
	return &GramQuote{
		Commodity:    commodity,
		Amount:       money.RoundAmount(amount),
		Grams:        GramsFor(amount, price.FinalPrice),
		PricePerGram: money.RoundAmount(price.FinalPrice),
		Source:       price.Source,
	}, nil
}

func validateScope(tenantID uuid.UUID, commodity enums.Commodity) error {
	if tenantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if !commodity.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported commodity %q", commodity))
	}
	return nil
}
