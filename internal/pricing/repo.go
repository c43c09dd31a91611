package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/bullion-backend/pkg/db/models"
	"github.com/angelmondragon/bullion-backend/pkg/enums"
)

// Repository persists daily price snapshots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// FindLatest returns the newest snapshot with effective_day <= day, or nil when none exists.
	FindLatest(ctx context.Context, tenantID uuid.UUID, commodity enums.Commodity, day time.Time) (*models.PriceSnapshot, error)
	// Upsert inserts the snapshot or overwrites the prices of the row sharing its
	// (tenant, commodity, effective_day) key, returning the stored row. Unless
	// replaceManual is set, only rows written by SystemActor are overwritten.
	Upsert(ctx context.Context, snapshot *models.PriceSnapshot, replaceManual bool) (*models.PriceSnapshot, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a price snapshot repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindLatest(ctx context.Context, tenantID uuid.UUID, commodity enums.Commodity, day time.Time) (*models.PriceSnapshot, error) {
	var snapshot models.PriceSnapshot
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND commodity = ? AND effective_day <= ?", tenantID, commodity, day).
		Order("effective_day DESC").
		First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *repository) Upsert(ctx context.Context, snapshot *models.PriceSnapshot, replaceManual bool) (*models.PriceSnapshot, error) {
	if snapshot.ID == uuid.Nil {
		snapshot.ID = uuid.New()
	}
	onConflict := clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "commodity"}, {Name: "effective_day"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"base_price", "margin_percent", "margin_fixed", "final_price", "set_by", "updated_at",
		}),
	}
	if !replaceManual {
		onConflict.Where = clause.Where{Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: "price_snapshots", Name: "set_by"}, Value: SystemActor},
		}}
	}
	err := r.db.WithContext(ctx).
		Clauses(onConflict).
		Create(snapshot).Error
	if err != nil {
		return nil, err
	}

	var stored models.PriceSnapshot
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND commodity = ? AND effective_day = ?", snapshot.TenantID, snapshot.Commodity, snapshot.EffectiveDay).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}
