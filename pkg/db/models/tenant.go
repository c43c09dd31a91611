package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bullion-backend/pkg/enums"
)

// Tenant is owned by the tenant-management service; this backend only reads it.
type Tenant struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TenantCommodityMargin is the markup a tenant applies on top of the market price.
type TenantCommodityMargin struct {
	TenantID      uuid.UUID       `gorm:"column:tenant_id;type:uuid;primaryKey"`
	Commodity     enums.Commodity `gorm:"column:commodity;type:text;primaryKey"`
	MarginPercent decimal.Decimal `gorm:"column:margin_percent;type:numeric(9,4);not null"`
	MarginFixed   decimal.Decimal `gorm:"column:margin_fixed;type:numeric(18,2);not null"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
