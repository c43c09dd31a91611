package tenants

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bullion-backend/pkg/db/models"
	"github.com/angelmondragon/bullion-backend/pkg/enums"
)

// Repository reads tenant configuration owned by the tenant-management service.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	FindMargin(ctx context.Context, tenantID uuid.UUID, commodity enums.Commodity) (*models.TenantCommodityMargin, error)
	ListActive(ctx context.Context) ([]models.Tenant, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a tenant repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByID returns gorm.ErrRecordNotFound when the tenant does not exist.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tenant).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

// FindMargin returns nil, nil when the tenant has no margin configured for the commodity.
func (r *repository) FindMargin(ctx context.Context, tenantID uuid.UUID, commodity enums.Commodity) (*models.TenantCommodityMargin, error) {
	var margin models.TenantCommodityMargin
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND commodity = ?", tenantID, commodity).
		First(&margin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &margin, nil
}

func (r *repository) ListActive(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}
