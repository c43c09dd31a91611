package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bullion-backend/pkg/enums"
)

// Wallet is unique per (user, tenant). Cash never goes negative (CHECK constraint).
type Wallet struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID       `gorm:"column:user_id;type:uuid;not null"`
	TenantID    uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null"`
	CashBalance decimal.Decimal `gorm:"column:cash_balance;type:numeric(18,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`

	GramBalances []WalletGramBalance `gorm:"foreignKey:WalletID;references:ID"`
}

// WalletGramBalance stores one commodity's gram balance for a wallet.
type WalletGramBalance struct {
	WalletID  uuid.UUID       `gorm:"column:wallet_id;type:uuid;primaryKey"`
	Commodity enums.Commodity `gorm:"column:commodity;type:text;primaryKey"`
	Grams     decimal.Decimal `gorm:"column:grams;type:numeric(18,4);not null"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
