package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bullion-backend/pkg/enums"
)

// Booking records a price-locked purchase of grams funded by a wallet debit.
type Booking struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID             uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	TenantID           uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null"`
	Commodity          enums.Commodity     `gorm:"column:commodity;type:text;not null"`
	AmountPaid         decimal.Decimal     `gorm:"column:amount_paid;type:numeric(18,2);not null"`
	Grams              decimal.Decimal     `gorm:"column:grams;type:numeric(18,4);not null"`
	LockedPricePerGram decimal.Decimal     `gorm:"column:locked_price_per_gram;type:numeric(18,2);not null"`
	Status             enums.BookingStatus `gorm:"column:status;type:text;not null"`
	BookedAt           time.Time           `gorm:"column:booked_at;not null"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
