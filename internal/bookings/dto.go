package bookings

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bullion-backend/pkg/db/models"
	"github.com/angelmondragon/bullion-backend/pkg/enums"
	"github.com/angelmondragon/bullion-backend/pkg/pagination"
)

// CreateBookingInput is a customer's request to buy grams with wallet cash.
type CreateBookingInput struct {
	UserID    uuid.UUID
	TenantID  uuid.UUID
	Commodity enums.Commodity
	Amount    decimal.Decimal
}

// UpdateStatusInput carries an admin status change.
type UpdateStatusInput struct {
	BookingID uuid.UUID
	TenantID  uuid.UUID
	Status    enums.BookingStatus
	ActorRole enums.UserRole
}

// BookingDTO is the booking shape returned to API clients.
type BookingDTO struct {
	ID                 uuid.UUID           `json:"id"`
	Commodity          enums.Commodity     `json:"commodity"`
	Grams              decimal.Decimal     `json:"grams"`
	LockedPricePerGram decimal.Decimal     `json:"locked_price_per_gram"`
	AmountPaid         decimal.Decimal     `json:"amount_paid"`
	Status             enums.BookingStatus `json:"status"`
	BookedAt           time.Time           `json:"booked_at"`
}

// ToDTO maps a booking row into its API shape.
func ToDTO(b *models.Booking) BookingDTO {
	return BookingDTO{
		ID:                 b.ID,
		Commodity:          b.Commodity,
		Grams:              b.Grams,
		LockedPricePerGram: b.LockedPricePerGram,
		AmountPaid:         b.AmountPaid,
		Status:             b.Status,
		BookedAt:           b.BookedAt,
	}
}

// ToDTOPage maps a page of booking rows.
func ToDTOPage(page pagination.Page[models.Booking]) pagination.Page[BookingDTO] {
	items := make([]BookingDTO, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, ToDTO(&page.Items[i]))
	}
	return pagination.Page[BookingDTO]{Items: items, Limit: page.Limit, Offset: page.Offset, Total: page.Total}
}
