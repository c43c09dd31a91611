package bookings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bullion-backend/pkg/db/models"
	"github.com/angelmondragon/bullion-backend/pkg/enums"
	"github.com/angelmondragon/bullion-backend/pkg/pagination"
)

// Repository persists bookings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, booking *models.Booking) error
	// FindByID returns gorm.ErrRecordNotFound when the booking is missing from the tenant.
	FindByID(ctx context.Context, id, tenantID uuid.UUID) (*models.Booking, error)
	FindForUser(ctx context.Context, id, userID, tenantID uuid.UUID) (*models.Booking, error)
	ListByUser(ctx context.Context, userID, tenantID uuid.UUID, params pagination.Params) ([]models.Booking, int64, error)
	// UpdateStatus moves a booking from one status to another and reports whether it matched.
	UpdateStatus(ctx context.Context, id, tenantID uuid.UUID, from, to enums.BookingStatus) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a booking repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *repository) FindByID(ctx context.Context, id, tenantID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&booking).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) FindForUser(ctx context.Context, id, userID, tenantID uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND tenant_id = ?", id, userID, tenantID).
		First(&booking).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repository) ListByUser(ctx context.Context, userID, tenantID uuid.UUID, params pagination.Params) ([]models.Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("user_id = ? AND tenant_id = ?", userID, tenantID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var bookings []models.Booking
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND tenant_id = ?", userID, tenantID).
		Order("booked_at DESC").
		Order("id DESC").
		Limit(params.Limit).
		Offset(params.Offset).
		Find(&bookings).Error; err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id, tenantID uuid.UUID, from, to enums.BookingStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ? AND tenant_id = ? AND status = ?", id, tenantID, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
