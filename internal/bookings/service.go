package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bullion-backend/internal/pricing"
	"github.com/angelmondragon/bullion-backend/internal/wallet"
	"github.com/angelmondragon/bullion-backend/pkg/db/models"
	"github.com/angelmondragon/bullion-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bullion-backend/pkg/errors"
	"github.com/angelmondragon/bullion-backend/pkg/logger"
	"github.com/angelmondragon/bullion-backend/pkg/money"
	"github.com/angelmondragon/bullion-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type priceLocker interface {
	LockPrice(ctx context.Context, tenantID uuid.UUID, commodity enums.Commodity) (*pricing.Price, error)
}

type ledger interface {
	DebitWithTx(ctx context.Context, tx *gorm.DB, input wallet.DebitInput) (*models.LedgerTransaction, error)
	CreditGramsWithTx(ctx context.Context, tx *gorm.DB, input wallet.GramCreditInput) error
}

// Service is the booking engine.
type Service interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*models.Booking, error)
	GetUserBookings(ctx context.Context, userID, tenantID uuid.UUID, params pagination.Params) (pagination.Page[models.Booking], error)
	GetBooking(ctx context.Context, bookingID, userID, tenantID uuid.UUID) (*models.Booking, error)
	// UpdateBookingStatus changes status only. Cash and grams are left as booked.
	UpdateBookingStatus(ctx context.Context, input UpdateStatusInput) (*models.Booking, error)
}

// ServiceParams wires the booking engine.
type ServiceParams struct {
	Repo   Repository
	TX     txRunner
	Prices priceLocker
	Ledger ledger
	Logger *logger.Logger
	Now    func() time.Time
}

type service struct {
	repo   Repository
	tx     txRunner
	prices priceLocker
	ledger ledger
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "booking repository required")
	}
	if params.TX == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Prices == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "price locker required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "wallet ledger required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:   params.Repo,
		tx:     params.TX,
		prices: params.Prices,
		ledger: params.Ledger,
		logg:   params.Logger,
		now:    now,
	}, nil
}

func (s *service) CreateBooking(ctx context.Context, input CreateBookingInput) (*models.Booking, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if !input.Commodity.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported commodity %q", input.Commodity))
	}
	amount := money.RoundAmount(input.Amount)
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"user_id":   input.UserID.String(),
		"tenant_id": input.TenantID.String(),
		"commodity": input.Commodity.String(),
	})

	// Price lookup may hit external providers, so it stays outside the transaction.
	price, err := s.prices.LockPrice(ctx, input.TenantID, input.Commodity)
	if err != nil {
		return nil, err
	}
	quote, err := pricing.QuoteFor(input.Commodity, amount, price)
	if err != nil {
		return nil, err
	}
	if !quote.Grams.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount too small for a single gram unit")
	}

	booking := &models.Booking{
		ID:                 uuid.New(),
		UserID:             input.UserID,
		TenantID:           input.TenantID,
		Commodity:          input.Commodity,
		AmountPaid:         amount,
		Grams:              quote.Grams,
		LockedPricePerGram: quote.PricePerGram,
		Status:             enums.BookingStatusActive,
		BookedAt:           s.now().UTC(),
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, booking); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create booking")
		}
		if _, err := s.ledger.DebitWithTx(ctx, tx, wallet.DebitInput{
			UserID:    input.UserID,
			TenantID:  input.TenantID,
			Amount:    amount,
			BookingID: booking.ID,
		}); err != nil {
			return err
		}
		return s.ledger.CreditGramsWithTx(ctx, tx, wallet.GramCreditInput{
			UserID:    input.UserID,
			TenantID:  input.TenantID,
			Commodity: input.Commodity,
			Grams:     quote.Grams,
		})
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commit booking")
		}
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "booking rejected")
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"booking_id":   booking.ID.String(),
		"amount":       amount.StringFixed(money.AmountScale),
		"grams":        booking.Grams.StringFixed(money.GramScale),
		"locked_price": booking.LockedPricePerGram.StringFixed(money.AmountScale),
		"price_source": quote.Source,
	}), "booking created")
	return booking, nil
}

func (s *service) GetUserBookings(ctx context.Context, userID, tenantID uuid.UUID, params pagination.Params) (pagination.Page[models.Booking], error) {
	params = params.Normalize()
	if userID == uuid.Nil || tenantID == uuid.Nil {
		return pagination.Page[models.Booking]{}, pkgerrors.New(pkgerrors.CodeValidation, "user and tenant ids are required")
	}
	items, total, err := s.repo.ListByUser(ctx, userID, tenantID, params)
	if err != nil {
		return pagination.Page[models.Booking]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bookings")
	}
	return pagination.NewPage(items, params, total), nil
}

func (s *service) GetBooking(ctx context.Context, bookingID, userID, tenantID uuid.UUID) (*models.Booking, error) {
	if bookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id is required")
	}
	booking, err := s.repo.FindForUser(ctx, bookingID, userID, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}
	return booking, nil
}

func (s *service) UpdateBookingStatus(ctx context.Context, input UpdateStatusInput) (*models.Booking, error) {
	if input.ActorRole != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if input.BookingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id is required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid booking status %q", input.Status))
	}

	var updated *models.Booking
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		booking, err := repo.FindByID(ctx, input.BookingID, input.TenantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
		}
		if !booking.Status.CanTransitionTo(input.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "booking status transition not allowed").
				WithDetails(map[string]any{"from": booking.Status, "to": input.Status})
		}
		ok, err := repo.UpdateStatus(ctx, booking.ID, input.TenantID, booking.Status, input.Status)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update booking status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "booking status changed concurrently")
		}
		updated, err = repo.FindByID(ctx, booking.ID, input.TenantID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload booking")
		}
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commit booking status")
		}
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"booking_id": updated.ID.String(),
		"tenant_id":  updated.TenantID.String(),
		"status":     updated.Status.String(),
	}), "booking status updated")
	return updated, nil
}
