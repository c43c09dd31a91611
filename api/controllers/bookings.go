package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bullion-backend/api/responses"
	"github.com/angelmondragon/bullion-backend/api/validators"
	"github.com/angelmondragon/bullion-backend/internal/bookings"
	"github.com/angelmondragon/bullion-backend/pkg/db/models"
	"github.com/angelmondragon/bullion-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bullion-backend/pkg/errors"
	"github.com/angelmondragon/bullion-backend/pkg/logger"
	"github.com/angelmondragon/bullion-backend/pkg/pagination"
)

type bookingService interface {
	CreateBooking(ctx context.Context, input bookings.CreateBookingInput) (*models.Booking, error)
	GetUserBookings(ctx context.Context, userID, tenantID uuid.UUID, params pagination.Params) (pagination.Page[models.Booking], error)
	GetBooking(ctx context.Context, bookingID, userID, tenantID uuid.UUID) (*models.Booking, error)
}

type createBookingRequest struct {
	Commodity string          `json:"commodity" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

// BookingCreate spends wallet cash on grams at the price locked now.
func BookingCreate(svc bookingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}
		who, err := identityFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload createBookingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		commodity, err := enums.ParseCommodity(payload.Commodity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported commodity"))
			return
		}

		booking, err := svc.CreateBooking(r.Context(), bookings.CreateBookingInput{
			UserID:    who.UserID,
			TenantID:  who.TenantID,
			Commodity: commodity,
			Amount:    payload.Amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, bookings.ToDTO(booking))
	}
}

// BookingList pages the caller's bookings, newest first.
func BookingList(svc bookingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}
		who, err := identityFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.GetUserBookings(r.Context(), who.UserID, who.TenantID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bookings.ToDTOPage(page))
	}
}

// BookingGet returns one of the caller's bookings.
func BookingGet(svc bookingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}
		who, err := identityFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bookingID, err := validators.ParseUUIDParam("bookingId", chi.URLParam(r, "bookingId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		booking, err := svc.GetBooking(r.Context(), bookingID, who.UserID, who.TenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bookings.ToDTO(booking))
	}
}
