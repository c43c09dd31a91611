package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bullion-backend/pkg/enums"
)

// LedgerTransaction is an append-only wallet event. (type, external_ref) is unique,
// which makes gateway credits idempotent across processes.
type LedgerTransaction struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID    uuid.UUID               `gorm:"column:wallet_id;type:uuid;not null"`
	UserID      uuid.UUID               `gorm:"column:user_id;type:uuid;not null"`
	TenantID    uuid.UUID               `gorm:"column:tenant_id;type:uuid;not null"`
	BookingID   *uuid.UUID              `gorm:"column:booking_id;type:uuid"`
	Amount      decimal.Decimal         `gorm:"column:amount;type:numeric(18,2);not null"`
	Type        enums.TransactionType   `gorm:"column:type;type:text;not null"`
	Status      enums.TransactionStatus `gorm:"column:status;type:text;not null"`
	ExternalRef *string                 `gorm:"column:external_ref"`
	Metadata    json.RawMessage         `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
}
