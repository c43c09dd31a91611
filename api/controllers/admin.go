package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bullion-backend/api/responses"
	"github.com/angelmondragon/bullion-backend/api/validators"
	"github.com/angelmondragon/bullion-backend/internal/bookings"
	"github.com/angelmondragon/bullion-backend/internal/pricing"
	"github.com/angelmondragon/bullion-backend/pkg/db/models"
	"github.com/angelmondragon/bullion-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bullion-backend/pkg/errors"
	"github.com/angelmondragon/bullion-backend/pkg/logger"
)

type priceSetter interface {
	SetPrice(ctx context.Context, input pricing.SetPriceInput) (*models.PriceSnapshot, error)
}

type bookingStatusUpdater interface {
	UpdateBookingStatus(ctx context.Context, input bookings.UpdateStatusInput) (*models.Booking, error)
}

type setPriceRequest struct {
	BasePrice decimal.Decimal `json:"base_price"`
	// EffectiveDate is YYYY-MM-DD; empty means today.
	EffectiveDate string `json:"effective_date" validate:"omitempty,datetime=2006-01-02"`
}

type priceSnapshotResponse struct {
	ID            uuid.UUID       `json:"id"`
	Commodity     enums.Commodity `json:"commodity"`
	EffectiveDate string          `json:"effective_date"`
	BasePrice     decimal.Decimal `json:"base_price"`
	MarginPercent decimal.Decimal `json:"margin_percent"`
	MarginFixed   decimal.Decimal `json:"margin_fixed"`
	FinalPrice    decimal.Decimal `json:"final_price"`
	SetBy         string          `json:"set_by"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// AdminSetPrice persists today's (or the given day's) base price for the caller's tenant.
func AdminSetPrice(svc priceSetter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing service unavailable"))
			return
		}
		who, err := identityFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		commodity, err := commodityParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload setPriceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var effective time.Time
		if raw := strings.TrimSpace(payload.EffectiveDate); raw != "" {
			effective, err = time.Parse(time.DateOnly, raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid effective date"))
				return
			}
		}

		snapshot, err := svc.SetPrice(r.Context(), pricing.SetPriceInput{
			TenantID:      who.TenantID,
			Commodity:     commodity,
			BasePrice:     payload.BasePrice,
			EffectiveDate: effective,
			UpdatedBy:     who.UserID.String(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, priceSnapshotResponse{
			ID:            snapshot.ID,
			Commodity:     snapshot.Commodity,
			EffectiveDate: snapshot.EffectiveDay.Format(time.DateOnly),
			BasePrice:     snapshot.BasePrice,
			MarginPercent: snapshot.MarginPercent,
			MarginFixed:   snapshot.MarginFixed,
			FinalPrice:    snapshot.FinalPrice,
			SetBy:         snapshot.SetBy,
			UpdatedAt:     snapshot.UpdatedAt,
		})
	}
}

type updateBookingStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE REDEEMED CANCELLED"`
}

// AdminUpdateBookingStatus moves a tenant booking along its lifecycle.
func AdminUpdateBookingStatus(svc bookingStatusUpdater, logg *logger.Logger) http.HandlerFunc {
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
		var payload updateBookingStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseBookingStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid booking status"))
			return
		}

		booking, err := svc.UpdateBookingStatus(r.Context(), bookings.UpdateStatusInput{
			BookingID: bookingID,
			TenantID:  who.TenantID,
			Status:    status,
			ActorRole: enums.UserRole(who.Role),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bookings.ToDTO(booking))
	}
}
