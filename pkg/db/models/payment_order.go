package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bullion-backend/pkg/enums"
)

// PaymentOrder ties a gateway order id back to the wallet owner that created it.
type PaymentOrder struct {
	ID               uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID                `gorm:"column:user_id;type:uuid;not null"`
	TenantID         uuid.UUID                `gorm:"column:tenant_id;type:uuid;not null"`
	GatewayOrderID   string                   `gorm:"column:gateway_order_id;not null"`
	GatewayPaymentID *string                  `gorm:"column:gateway_payment_id"`
	Amount           decimal.Decimal          `gorm:"column:amount;type:numeric(18,2);not null"`
	Currency         string                   `gorm:"column:currency;not null"`
	Status           enums.PaymentOrderStatus `gorm:"column:status;type:text;not null"`
	CreatedAt        time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
