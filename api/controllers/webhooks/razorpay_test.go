package webhooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bullion-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/bullion-backend/pkg/errors"
	"github.com/angelmondragon/bullion-backend/pkg/razorpay"
)

type fakeWebhookService struct {
	calls  int
	input  payments.WebhookInput
	result *payments.WebhookResult
	err    error
}

func (f *fakeWebhookService) HandleWebhook(ctx context.Context, input payments.WebhookInput) (*payments.WebhookResult, error) {
	f.calls++
	f.input = input
	return f.result, f.err
}

func TestRazorpayWebhookPassesRawBody(t *testing.T) {
	body := `{"event":"payment.captured","payload":{}}`
	svc := &fakeWebhookService{result: &payments.WebhookResult{Event: razorpay.EventPaymentCaptured, Handled: true}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", strings.NewReader(body))
	req.Header.Set(razorpay.HeaderSignature, "sig")
	req.Header.Set(razorpay.HeaderEventID, "evt_1")
	resp := httptest.NewRecorder()
	RazorpayWebhook(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, svc.calls)
	assert.Equal(t, body, string(svc.input.Payload))
	assert.Equal(t, "sig", svc.input.Signature)
	assert.Equal(t, "evt_1", svc.input.EventID)
}

func TestRazorpayWebhookRejectsMissingSignature(t *testing.T) {
	svc := &fakeWebhookService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	RazorpayWebhook(svc, nil).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Zero(t, svc.calls)
}

func TestRazorpayWebhookSurfacesVerificationFailure(t *testing.T) {
	svc := &fakeWebhookService{err: pkgerrors.New(pkgerrors.CodePaymentVerification, "invalid webhook signature")}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", strings.NewReader(`{"event":"payment.captured"}`))
	req.Header.Set(razorpay.HeaderSignature, "bad")
	resp := httptest.NewRecorder()
	RazorpayWebhook(svc, nil).ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
