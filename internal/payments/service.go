package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bullion-backend/internal/wallet"
	"github.com/angelmondragon/bullion-backend/pkg/db/models"
	"github.com/angelmondragon/bullion-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bullion-backend/pkg/errors"
	"github.com/angelmondragon/bullion-backend/pkg/logger"
	"github.com/angelmondragon/bullion-backend/pkg/money"
	"github.com/angelmondragon/bullion-backend/pkg/razorpay"
)

// Credit sources recorded in ledger metadata.
const (
	SourceVerify  = "verify"
	SourceWebhook = "webhook"
)

// Gateway is the subset of the payment gateway client used here.
type Gateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, req razorpay.OrderRequest) (*razorpay.Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error)
}

type creditor interface {
	Credit(ctx context.Context, input wallet.CreditInput) (*wallet.CreditResult, error)
}

type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// Service is the payment gateway adapter for wallet top-ups.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderHandle, error)
	VerifySignature(orderID, paymentID, signature string) bool
	ProcessSuccessfulPayment(ctx context.Context, input VerifyPaymentInput) (*PaymentResult, error)
	HandleWebhook(ctx context.Context, input WebhookInput) (*WebhookResult, error)
}

// CreateOrderInput requests a top-up order for the caller's wallet.
type CreateOrderInput struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Amount   decimal.Decimal
}

// OrderHandle is returned to the client to open the gateway checkout.
type OrderHandle struct {
	OrderID     string          `json:"order_id"`
	Amount      decimal.Decimal `json:"amount"`
	AmountMinor int64           `json:"amount_minor"`
	Currency    string          `json:"currency"`
	KeyID       string          `json:"key_id"`
}

// VerifyPaymentInput is the synchronous confirmation posted by the client after checkout.
type VerifyPaymentInput struct {
	UserID    uuid.UUID
	TenantID  uuid.UUID
	OrderID   string
	PaymentID string
	Signature string
}

// PaymentResult reports the credit applied for a payment.
type PaymentResult struct {
	PaymentID string          `json:"payment_id"`
	OrderID   string          `json:"order_id"`
	Amount    decimal.Decimal `json:"amount"`
	Duplicate bool            `json:"duplicate"`
}

// WebhookInput is one raw gateway delivery.
type WebhookInput struct {
	Payload   []byte
	Signature string
	EventID   string
}

// WebhookResult describes how a delivery was handled. Every non-error result is acknowledged.
type WebhookResult struct {
	Event     string `json:"event"`
	Handled   bool   `json:"handled"`
	Duplicate bool   `json:"duplicate"`
}

// ServiceParams wires the payments service.
type ServiceParams struct {
	Repo          Repository
	Gateway       Gateway
	Ledger        creditor
	Logger        *logger.Logger
	KeySecret     string
	WebhookSecret string
	Currency      string
	MinAmount     decimal.Decimal
	MaxAmount     decimal.Decimal
	// Guard is optional.
	Guard eventGuard
}

type service struct {
	repo          Repository
	gateway       Gateway
	ledger        creditor
	logg          *logger.Logger
	keySecret     string
	webhookSecret string
	currency      string
	minAmount     decimal.Decimal
	maxAmount     decimal.Decimal
	guard         eventGuard
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment order repository required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "wallet ledger required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if strings.TrimSpace(params.KeySecret) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway key secret required")
	}
	if strings.TrimSpace(params.WebhookSecret) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook secret required")
	}
	if !params.MinAmount.IsPositive() || params.MaxAmount.LessThan(params.MinAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "invalid top-up bounds")
	}
	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "INR"
	}
	return &service{
		repo:          params.Repo,
		gateway:       params.Gateway,
		ledger:        params.Ledger,
		logg:          params.Logger,
		keySecret:     params.KeySecret,
		webhookSecret: params.WebhookSecret,
		currency:      currency,
		minAmount:     params.MinAmount,
		maxAmount:     params.MaxAmount,
		guard:         params.Guard,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderHandle, error) {
	if input.UserID == uuid.Nil || input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user and tenant ids are required")
	}
	amount := money.RoundAmount(input.Amount)
	if amount.LessThan(s.minAmount) || amount.GreaterThan(s.maxAmount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount outside allowed top-up range").
			WithDetails(map[string]any{
				"min": s.minAmount.StringFixed(money.AmountScale),
				"max": s.maxAmount.StringFixed(money.AmountScale),
			})
	}

	minor := money.ToMinorUnits(amount)
	order, err := s.gateway.CreateOrder(ctx, razorpay.OrderRequest{
		Amount:   minor,
		Currency: s.currency,
		Receipt:  uuid.NewString(),
		Notes: map[string]string{
			"user_id":   input.UserID.String(),
			"tenant_id": input.TenantID.String(),
		},
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, &models.PaymentOrder{
		ID:             uuid.New(),
		UserID:         input.UserID,
		TenantID:       input.TenantID,
		GatewayOrderID: order.ID,
		Amount:         amount,
		Currency:       s.currency,
		Status:         enums.PaymentOrderStatusCreated,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment order")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"user_id":   input.UserID.String(),
		"tenant_id": input.TenantID.String(),
		"order_id":  order.ID,
		"amount":    amount.StringFixed(money.AmountScale),
	}), "payment order created")
	return &OrderHandle{
		OrderID:     order.ID,
		Amount:      amount,
		AmountMinor: minor,
		Currency:    s.currency,
		KeyID:       s.gateway.KeyID(),
	}, nil
}

func (s *service) VerifySignature(orderID, paymentID, signature string) bool {
	if strings.TrimSpace(orderID) == "" || strings.TrimSpace(paymentID) == "" {
		return false
	}
	return razorpay.VerifyPaymentSignature(orderID, paymentID, signature, s.keySecret)
}

func (s *service) ProcessSuccessfulPayment(ctx context.Context, input VerifyPaymentInput) (*PaymentResult, error) {
	if !s.VerifySignature(input.OrderID, input.PaymentID, input.Signature) {
		return nil, pkgerrors.New(pkgerrors.CodePaymentVerification, "payment signature mismatch")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"order_id": input.OrderID, "payment_id": input.PaymentID})

	order, err := s.loadOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}
	if input.UserID != uuid.Nil && (order.UserID != input.UserID || order.TenantID != input.TenantID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment order belongs to another wallet")
	}

	payment, err := s.gateway.FetchPayment(ctx, input.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment.OrderID != "" && payment.OrderID != input.OrderID {
		return nil, pkgerrors.New(pkgerrors.CodePaymentVerification, "payment does not belong to order")
	}
	if !payment.IsSettled() {
		return nil, pkgerrors.New(pkgerrors.CodePaymentVerification, fmt.Sprintf("payment not settled: %s", payment.Status))
	}
	return s.credit(ctx, order, *payment, SourceVerify)
}

func (s *service) HandleWebhook(ctx context.Context, input WebhookInput) (*WebhookResult, error) {
	if !razorpay.VerifyWebhookSignature(input.Payload, input.Signature, s.webhookSecret) {
		return nil, pkgerrors.New(pkgerrors.CodePaymentVerification, "webhook signature mismatch")
	}
	event, err := razorpay.ParseWebhookEvent(input.Payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"event": event.Event, "event_id": input.EventID})

	if s.guard != nil && input.EventID != "" {
		seen, err := s.guard.CheckAndMark(ctx, input.EventID)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "webhook guard unavailable")
		} else if seen {
			s.logg.Info(ctx, "webhook redelivery skipped")
			return &WebhookResult{Event: event.Event, Duplicate: true}, nil
		}
	}

	result, err := s.dispatch(ctx, event)
	if err != nil && s.guard != nil && input.EventID != "" {
		if releaseErr := s.guard.Release(ctx, input.EventID); releaseErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", releaseErr.Error()), "release webhook guard")
		}
	}
	return result, err
}

func (s *service) dispatch(ctx context.Context, event razorpay.WebhookEvent) (*WebhookResult, error) {
	switch event.Event {
	case razorpay.EventPaymentCaptured:
		payment, ok := event.PaymentEntity()
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment entity missing")
		}
		ctx = s.logg.WithFields(ctx, map[string]any{"order_id": payment.OrderID, "payment_id": payment.ID})
		order, err := s.repo.FindByGatewayOrderID(ctx, payment.OrderID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment order")
		}
		if order == nil {
			s.logg.Warn(ctx, "captured payment for unknown order ignored")
			return &WebhookResult{Event: event.Event}, nil
		}
		res, err := s.credit(ctx, order, payment, SourceWebhook)
		if err != nil {
			return nil, err
		}
		return &WebhookResult{Event: event.Event, Handled: true, Duplicate: res.Duplicate}, nil

	case razorpay.EventPaymentFailed:
		payment, ok := event.PaymentEntity()
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment entity missing")
		}
		ctx = s.logg.WithFields(ctx, map[string]any{"order_id": payment.OrderID, "payment_id": payment.ID})
		marked, err := s.repo.MarkFailed(ctx, payment.OrderID, payment.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment order failed")
		}
		s.logg.Warn(s.logg.WithField(ctx, "order_marked", marked), "payment failed")
		return &WebhookResult{Event: event.Event, Handled: true}, nil

	default:
		s.logg.Info(ctx, "webhook event ignored")
		return &WebhookResult{Event: event.Event}, nil
	}
}

func (s *service) loadOrder(ctx context.Context, gatewayOrderID string) (*models.PaymentOrder, error) {
	order, err := s.repo.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment order not found")
	}
	return order, nil
}

func (s *service) credit(ctx context.Context, order *models.PaymentOrder, payment razorpay.Payment, source string) (*PaymentResult, error) {
	amount := money.FromMinorUnits(payment.Amount)
	if !amount.IsPositive() {
		amount = order.Amount
	}
	if !amount.Equal(order.Amount) {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"order_amount":   order.Amount.StringFixed(money.AmountScale),
			"gateway_amount": amount.StringFixed(money.AmountScale),
		}), "gateway amount differs from order; crediting gateway amount")
	}

	meta, err := json.Marshal(map[string]string{
		"gateway_order_id": order.GatewayOrderID,
		"source":           source,
		"method":           payment.Method,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode credit metadata")
	}

	res, err := s.ledger.Credit(ctx, wallet.CreditInput{
		UserID:      order.UserID,
		TenantID:    order.TenantID,
		Amount:      amount,
		ExternalRef: payment.ID,
		Metadata:    meta,
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.MarkPaid(ctx, order.GatewayOrderID, payment.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment order paid")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"source":    source,
		"duplicate": res.Duplicate,
		"amount":    amount.StringFixed(money.AmountScale),
	}), "payment processed")
	return &PaymentResult{
		PaymentID: payment.ID,
		OrderID:   order.GatewayOrderID,
		Amount:    amount,
		Duplicate: res.Duplicate,
	}, nil
}
