package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bullion-backend/api/responses"
	"github.com/angelmondragon/bullion-backend/api/validators"
	"github.com/angelmondragon/bullion-backend/internal/pricing"
	"github.com/angelmondragon/bullion-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bullion-backend/pkg/errors"
	"github.com/angelmondragon/bullion-backend/pkg/logger"
)

type priceReader interface {
	GetCurrentPrice(ctx context.Context, tenantID uuid.UUID, commodity enums.Commodity) (*pricing.Price, error)
	GetLivePrice(ctx context.Context, tenantID uuid.UUID, commodity enums.Commodity) (*pricing.Price, error)
	CalculateGrams(ctx context.Context, tenantID uuid.UUID, commodity enums.Commodity, amount decimal.Decimal) (*pricing.GramQuote, error)
}

// PriceLive returns the tenant's live price for the commodity in the path.
func PriceLive(svc priceReader, logg *logger.Logger) http.HandlerFunc {
	return priceHandler(svc, logg, func(ctx context.Context, tenantID uuid.UUID, commodity enums.Commodity) (*pricing.Price, error) {
		return svc.GetLivePrice(ctx, tenantID, commodity)
	})
}

// PriceCurrent returns the tenant's persisted price for today.
func PriceCurrent(svc priceReader, logg *logger.Logger) http.HandlerFunc {
	return priceHandler(svc, logg, func(ctx context.Context, tenantID uuid.UUID, commodity enums.Commodity) (*pricing.Price, error) {
		return svc.GetCurrentPrice(ctx, tenantID, commodity)
	})
}

func priceHandler(svc priceReader, logg *logger.Logger, read func(context.Context, uuid.UUID, enums.Commodity) (*pricing.Price, error)) http.HandlerFunc {
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

		price, err := read(r.Context(), who.TenantID, commodity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, price)
	}
}

type gramQuoteRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// PriceGrams quotes how many grams an amount buys at the live price.
func PriceGrams(svc priceReader, logg *logger.Logger) http.HandlerFunc {
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
		var payload gramQuoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.CalculateGrams(r.Context(), who.TenantID, commodity, payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

func commodityParam(r *http.Request) (enums.Commodity, error) {
	commodity, err := enums.ParseCommodity(chi.URLParam(r, "commodity"))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported commodity").
			WithDetails(map[string]string{"commodity": "must be one of gold silver"})
	}
	return commodity, nil
}
