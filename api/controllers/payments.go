package controllers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bullion-backend/api/responses"
	"github.com/angelmondragon/bullion-backend/api/validators"
	"github.com/angelmondragon/bullion-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/bullion-backend/pkg/errors"
	"github.com/angelmondragon/bullion-backend/pkg/logger"
)

type paymentService interface {
	CreateOrder(ctx context.Context, input payments.CreateOrderInput) (*payments.OrderHandle, error)
	ProcessSuccessfulPayment(ctx context.Context, input payments.VerifyPaymentInput) (*payments.PaymentResult, error)
}

type createOrderRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// PaymentCreateOrder opens a gateway order for a wallet top-up.
func PaymentCreateOrder(svc paymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		who, err := identityFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		handle, err := svc.CreateOrder(r.Context(), payments.CreateOrderInput{
			UserID:   who.UserID,
			TenantID: who.TenantID,
			Amount:   payload.Amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, handle)
	}
}

type verifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
}

// PaymentVerify is the synchronous confirmation posted by the client after checkout.
func PaymentVerify(svc paymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}
		who, err := identityFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload verifyPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ProcessSuccessfulPayment(r.Context(), payments.VerifyPaymentInput{
			UserID:    who.UserID,
			TenantID:  who.TenantID,
			OrderID:   payload.OrderID,
			PaymentID: payload.PaymentID,
			Signature: payload.Signature,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
