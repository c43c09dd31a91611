package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/bullion-backend/internal/wallet"
	"github.com/angelmondragon/bullion-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bullion-backend/pkg/db/models"
	"github.com/angelmondragon/bullion-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bullion-backend/pkg/errors"
	"github.com/angelmondragon/bullion-backend/pkg/logger"
	"github.com/angelmondragon/bullion-backend/pkg/razorpay"
)

const (
	testKeySecret     = "key_secret"
	testWebhookSecret = "whsec"
)

type fakeGateway struct {
	mu       sync.Mutex
	orders   int
	payments map[string]razorpay.Payment
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) CreateOrder(ctx context.Context, req razorpay.OrderRequest) (*razorpay.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders++
	return &razorpay.Order{ID: fmt.Sprintf("order_%d", g.orders), Amount: req.Amount, Currency: req.Currency, Status: "created"}, nil
}

func (g *fakeGateway) FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	payment, ok := g.payments[paymentID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "payment not found")
	}
	return &payment, nil
}

func (g *fakeGateway) settle(paymentID, orderID string, minor int64, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[paymentID] = razorpay.Payment{ID: paymentID, OrderID: orderID, Amount: minor, Currency: "INR", Status: status, Method: "upi"}
}

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
}

func (m *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "test:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

type harness struct {
	svc     Service
	gateway *fakeGateway
	wallets wallet.Service
	conn    *gorm.DB
	user    uuid.UUID
	tenant  uuid.UUID
}

func newHarness(t *testing.T, withGuard bool) *harness {
	t.Helper()
	client := dbtest.Open(t)
	wallets, err := wallet.NewService(wallet.ServiceParams{
		Repo:   wallet.NewRepository(client.DB()),
		TX:     client,
		Logger: logger.Nop(),
	})
	require.NoError(t, err)

	gateway := &fakeGateway{payments: map[string]razorpay.Payment{}}
	params := ServiceParams{
		Repo:          NewRepository(client.DB()),
		Gateway:       gateway,
		Ledger:        wallets,
		Logger:        logger.Nop(),
		KeySecret:     testKeySecret,
		WebhookSecret: testWebhookSecret,
		Currency:      "inr",
		MinAmount:     decimal.NewFromInt(100),
		MaxAmount:     decimal.NewFromInt(200000),
	}
	if withGuard {
		guard, err := NewEventGuard(&memoryStore{keys: map[string]string{}}, time.Hour, "razorpay")
		require.NoError(t, err)
		params.Guard = guard
	}
	svc, err := NewService(params)
	require.NoError(t, err)

	h := &harness{svc: svc, gateway: gateway, wallets: wallets, conn: client.DB(), user: uuid.New(), tenant: uuid.New()}
	_, err = wallets.EnsureWallet(context.Background(), h.user, h.tenant)
	require.NoError(t, err)
	return h
}

func (h *harness) credits(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.conn.Model(&models.LedgerTransaction{}).Where("type = ?", enums.TransactionTypeCredit).Count(&n).Error)
	return n
}

func (h *harness) cash(t *testing.T) string {
	t.Helper()
	snap, err := h.wallets.GetWallet(context.Background(), h.user, h.tenant)
	require.NoError(t, err)
	return snap.CashBalance.StringFixed(2)
}

func webhookBody(t *testing.T, event, paymentID, orderID string, minor int64) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"entity": "event",
		"event":  event,
		"payload": map[string]any{
			"payment": map[string]any{
				"entity": map[string]any{
					"id":       paymentID,
					"order_id": orderID,
					"amount":   minor,
					"currency": "INR",
					"status":   "captured",
				},
			},
		},
	})
	require.NoError(t, err)
	return body
}

func signedWebhook(t *testing.T, event, paymentID, orderID string, minor int64, eventID string) WebhookInput {
	body := webhookBody(t, event, paymentID, orderID, minor)
	return WebhookInput{Payload: body, Signature: razorpay.SignWebhook(body, testWebhookSecret), EventID: eventID}
}

func TestCreateOrderEnforcesBoundsAndPersists(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	_, err := h.svc.CreateOrder(ctx, CreateOrderInput{UserID: h.user, TenantID: h.tenant, Amount: decimal.NewFromInt(99)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = h.svc.CreateOrder(ctx, CreateOrderInput{UserID: h.user, TenantID: h.tenant, Amount: decimal.NewFromInt(200001)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	handle, err := h.svc.CreateOrder(ctx, CreateOrderInput{UserID: h.user, TenantID: h.tenant, Amount: decimal.RequireFromString("1500.50")})
	require.NoError(t, err)
	assert.Equal(t, "rzp_test_key", handle.KeyID)
	assert.Equal(t, int64(150050), handle.AmountMinor)
	assert.Equal(t, "INR", handle.Currency)

	var order models.PaymentOrder
	require.NoError(t, h.conn.Where("gateway_order_id = ?", handle.OrderID).First(&order).Error)
	assert.Equal(t, enums.PaymentOrderStatusCreated, order.Status)
	assert.Equal(t, h.user, order.UserID)
	assert.Equal(t, "1500.50", order.Amount.StringFixed(2))
}

func TestVerifySignature(t *testing.T) {
	h := newHarness(t, false)
	sig := razorpay.SignPayment("order_1", "pay_1", testKeySecret)
	assert.True(t, h.svc.VerifySignature("order_1", "pay_1", sig))
	assert.False(t, h.svc.VerifySignature("order_1", "pay_2", sig))
	assert.False(t, h.svc.VerifySignature("", "pay_1", sig))
}

func TestProcessSuccessfulPaymentRejectsBadSignature(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	handle, err := h.svc.CreateOrder(ctx, CreateOrderInput{UserID: h.user, TenantID: h.tenant, Amount: decimal.NewFromInt(1000)})
	require.NoError(t, err)
	h.gateway.settle("pay_1", handle.OrderID, handle.AmountMinor, razorpay.PaymentStatusCaptured)

	_, err = h.svc.ProcessSuccessfulPayment(ctx, VerifyPaymentInput{UserID: h.user, TenantID: h.tenant, OrderID: handle.OrderID, PaymentID: "pay_1", Signature: "deadbeef"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentVerification))
	assert.Equal(t, int64(0), h.credits(t))
}

func TestProcessSuccessfulPaymentRequiresSettledPayment(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	handle, err := h.svc.CreateOrder(ctx, CreateOrderInput{UserID: h.user, TenantID: h.tenant, Amount: decimal.NewFromInt(1000)})
	require.NoError(t, err)
	h.gateway.settle("pay_1", handle.OrderID, handle.AmountMinor, razorpay.PaymentStatusFailed)

	_, err = h.svc.ProcessSuccessfulPayment(ctx, VerifyPaymentInput{
		UserID: h.user, TenantID: h.tenant, OrderID: handle.OrderID, PaymentID: "pay_1",
		Signature: razorpay.SignPayment(handle.OrderID, "pay_1", testKeySecret),
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentVerification))
	assert.Equal(t, int64(0), h.credits(t))
}

func TestBothPathsInAnyOrderCreditOnce(t *testing.T) {
	orders := map[string][]string{
		"verify first":  {SourceVerify, SourceWebhook, SourceVerify, SourceWebhook},
		"webhook first": {SourceWebhook, SourceWebhook, SourceVerify, SourceVerify},
	}
	for name, sequence := range orders {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, false)
			ctx := context.Background()
			handle, err := h.svc.CreateOrder(ctx, CreateOrderInput{UserID: h.user, TenantID: h.tenant, Amount: decimal.NewFromInt(2500)})
			require.NoError(t, err)
			h.gateway.settle("pay_abc", handle.OrderID, handle.AmountMinor, razorpay.PaymentStatusCaptured)

			for i, step := range sequence {
				switch step {
				case SourceVerify:
					_, err := h.svc.ProcessSuccessfulPayment(ctx, VerifyPaymentInput{
						UserID: h.user, TenantID: h.tenant, OrderID: handle.OrderID, PaymentID: "pay_abc",
						Signature: razorpay.SignPayment(handle.OrderID, "pay_abc", testKeySecret),
					})
					require.NoError(t, err)
				case SourceWebhook:
					res, err := h.svc.HandleWebhook(ctx, signedWebhook(t, razorpay.EventPaymentCaptured, "pay_abc", handle.OrderID, handle.AmountMinor, fmt.Sprintf("evt_%d", i)))
					require.NoError(t, err)
					assert.True(t, res.Handled)
				}
			}

			assert.Equal(t, int64(1), h.credits(t))
			assert.Equal(t, "2500.00", h.cash(t))

			var order models.PaymentOrder
			require.NoError(t, h.conn.Where("gateway_order_id = ?", handle.OrderID).First(&order).Error)
			assert.Equal(t, enums.PaymentOrderStatusPaid, order.Status)
			require.NotNil(t, order.GatewayPaymentID)
			assert.Equal(t, "pay_abc", *order.GatewayPaymentID)
		})
	}
}

func TestConcurrentPathsCreditOnce(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	handle, err := h.svc.CreateOrder(ctx, CreateOrderInput{UserID: h.user, TenantID: h.tenant, Amount: decimal.NewFromInt(700)})
	require.NoError(t, err)
	h.gateway.settle("pay_race", handle.OrderID, handle.AmountMinor, razorpay.PaymentStatusCaptured)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := h.svc.ProcessSuccessfulPayment(ctx, VerifyPaymentInput{
				UserID: h.user, TenantID: h.tenant, OrderID: handle.OrderID, PaymentID: "pay_race",
				Signature: razorpay.SignPayment(handle.OrderID, "pay_race", testKeySecret),
			})
			assert.NoError(t, err)
		}()
		go func(i int) {
			defer wg.Done()
			_, err := h.svc.HandleWebhook(ctx, signedWebhook(t, razorpay.EventPaymentCaptured, "pay_race", handle.OrderID, handle.AmountMinor, fmt.Sprintf("evt_%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), h.credits(t))
	assert.Equal(t, "700.00", h.cash(t))
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	h := newHarness(t, false)
	body := webhookBody(t, razorpay.EventPaymentCaptured, "pay_1", "order_1", 10000)

	_, err := h.svc.HandleWebhook(context.Background(), WebhookInput{Payload: body, Signature: razorpay.SignWebhook(body, "other")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePaymentVerification))
	assert.Equal(t, int64(0), h.credits(t))
}

func TestHandleWebhookAcknowledgesUnknownEvents(t *testing.T) {
	h := newHarness(t, false)

	res, err := h.svc.HandleWebhook(context.Background(), signedWebhook(t, "refund.processed", "pay_1", "order_1", 10000, ""))
	require.NoError(t, err)
	assert.False(t, res.Handled)
	assert.Equal(t, "refund.processed", res.Event)

	res, err = h.svc.HandleWebhook(context.Background(), signedWebhook(t, razorpay.EventPaymentCaptured, "pay_1", "order_unknown", 10000, ""))
	require.NoError(t, err)
	assert.False(t, res.Handled)
	assert.Equal(t, int64(0), h.credits(t))
}

func TestHandleWebhookPaymentFailedMarksOrder(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	handle, err := h.svc.CreateOrder(ctx, CreateOrderInput{UserID: h.user, TenantID: h.tenant, Amount: decimal.NewFromInt(500)})
	require.NoError(t, err)

	res, err := h.svc.HandleWebhook(ctx, signedWebhook(t, razorpay.EventPaymentFailed, "pay_bad", handle.OrderID, handle.AmountMinor, ""))
	require.NoError(t, err)
	assert.True(t, res.Handled)

	var order models.PaymentOrder
	require.NoError(t, h.conn.Where("gateway_order_id = ?", handle.OrderID).First(&order).Error)
	assert.Equal(t, enums.PaymentOrderStatusFailed, order.Status)
	assert.Equal(t, int64(0), h.credits(t))
	assert.Equal(t, "0.00", h.cash(t))
}

func TestHandleWebhookGuardSkipsRedelivery(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	handle, err := h.svc.CreateOrder(ctx, CreateOrderInput{UserID: h.user, TenantID: h.tenant, Amount: decimal.NewFromInt(300)})
	require.NoError(t, err)

	delivery := signedWebhook(t, razorpay.EventPaymentCaptured, "pay_g", handle.OrderID, handle.AmountMinor, "evt_same")
	first, err := h.svc.HandleWebhook(ctx, delivery)
	require.NoError(t, err)
	assert.True(t, first.Handled)

	second, err := h.svc.HandleWebhook(ctx, delivery)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.False(t, second.Handled)
	assert.Equal(t, int64(1), h.credits(t))
}

func TestHandleWebhookGuardReleasedOnFailure(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	// The order exists but its owner has no wallet, so the credit fails.
	require.NoError(t, NewRepository(h.conn).Create(ctx, &models.PaymentOrder{
		UserID: uuid.New(), TenantID: h.tenant, GatewayOrderID: "order_orphan",
		Amount: decimal.NewFromInt(100), Currency: "INR", Status: enums.PaymentOrderStatusCreated,
	}))
	delivery := signedWebhook(t, razorpay.EventPaymentCaptured, "pay_o", "order_orphan", 10000, "evt_retry")

	_, err := h.svc.HandleWebhook(ctx, delivery)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = h.svc.HandleWebhook(ctx, delivery)
	require.Error(t, err, "redelivery must be processed again after a failure")
}

func TestNewServiceValidatesParams(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)

	_, err = NewEventGuard(nil, time.Hour, "razorpay")
	require.Error(t, err)
}
