package tenants

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bullion-backend/pkg/db/models"
	"github.com/angelmondragon/bullion-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bullion-backend/pkg/errors"
)

// Margin is a tenant's markup over the market price.
type Margin struct {
	Percent decimal.Decimal
	Fixed   decimal.Decimal
}

// Service exposes tenant lookups to pricing and the price worker.
type Service interface {
	// MarginFor returns a zero margin when the tenant or its commodity margin is unknown.
	MarginFor(ctx context.Context, tenantID uuid.UUID, commodity enums.Commodity) (Margin, error)
	Get(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error)
	ListActive(ctx context.Context) ([]models.Tenant, error)
}

type service struct {
	repo Repository
}

// NewService wires a tenant service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tenant repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) MarginFor(ctx context.Context, tenantID uuid.UUID, commodity enums.Commodity) (Margin, error) {
	if !commodity.IsValid() {
		return Margin{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported commodity %q", commodity))
	}
	row, err := s.repo.FindMargin(ctx, tenantID, commodity)
	if err != nil {
		return Margin{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tenant margin")
	}
	if row == nil {
		return Margin{Percent: decimal.Zero, Fixed: decimal.Zero}, nil
	}
	return Margin{Percent: row.MarginPercent, Fixed: row.MarginFixed}, nil
}

func (s *service) Get(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, error) {
	tenant, err := s.repo.FindByID(ctx, tenantID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tenant not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tenant")
	}
	return tenant, nil
}

func (s *service) ListActive(ctx context.Context) ([]models.Tenant, error) {
	tenants, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active tenants")
	}
	return tenants, nil
}
