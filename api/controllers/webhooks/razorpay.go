package webhooks

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/bullion-backend/api/responses"
	"github.com/angelmondragon/bullion-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/bullion-backend/pkg/errors"
	"github.com/angelmondragon/bullion-backend/pkg/logger"
	"github.com/angelmondragon/bullion-backend/pkg/razorpay"
)

const maxWebhookBody = 1 << 20

// RazorpayWebhookService handles one verified-or-not gateway delivery.
type RazorpayWebhookService interface {
	HandleWebhook(ctx context.Context, input payments.WebhookInput) (*payments.WebhookResult, error)
}

// RazorpayWebhook reads the raw body so the signature is checked over the exact bytes sent.
func RazorpayWebhook(svc RazorpayWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		signature := strings.TrimSpace(r.Header.Get(razorpay.HeaderSignature))
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodePaymentVerification, "webhook signature missing"))
			return
		}
		eventID := strings.TrimSpace(r.Header.Get(razorpay.HeaderEventID))
		if logg != nil && eventID != "" {
			ctx = logg.WithField(ctx, "event_id", eventID)
		}

		result, err := svc.HandleWebhook(ctx, payments.WebhookInput{
			Payload:   payload,
			Signature: signature,
			EventID:   eventID,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
