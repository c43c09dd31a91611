package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bullion-backend/pkg/enums"
)

// PriceSnapshot is the persisted daily price for a tenant and commodity.
type PriceSnapshot struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID      uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null"`
	Commodity     enums.Commodity `gorm:"column:commodity;type:text;not null"`
	EffectiveDay  time.Time       `gorm:"column:effective_day;type:date;not null"`
	BasePrice     decimal.Decimal `gorm:"column:base_price;type:numeric(18,2);not null"`
	MarginPercent decimal.Decimal `gorm:"column:margin_percent;type:numeric(9,4);not null"`
	MarginFixed   decimal.Decimal `gorm:"column:margin_fixed;type:numeric(18,2);not null"`
	FinalPrice    decimal.Decimal `gorm:"column:final_price;type:numeric(18,2);not null"`
	SetBy         string          `gorm:"column:set_by;not null"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
