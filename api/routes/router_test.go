package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/bullion-backend/internal/bookings"
	"github.com/angelmondragon/bullion-backend/internal/payments"
	"github.com/angelmondragon/bullion-backend/internal/pricing"
	"github.com/angelmondragon/bullion-backend/internal/pricing/oracle"
	"github.com/angelmondragon/bullion-backend/internal/tenants"
	"github.com/angelmondragon/bullion-backend/internal/wallet"
	pkgAuth "github.com/angelmondragon/bullion-backend/pkg/auth"
	"github.com/angelmondragon/bullion-backend/pkg/config"
	"github.com/angelmondragon/bullion-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bullion-backend/pkg/db/models"
	"github.com/angelmondragon/bullion-backend/pkg/enums"
	"github.com/angelmondragon/bullion-backend/pkg/logger"
	"github.com/angelmondragon/bullion-backend/pkg/razorpay"
)

const (
	testKeySecret     = "key_secret"
	testWebhookSecret = "whsec"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type fixedOracle struct {
	perGram decimal.Decimal
}

func (o fixedOracle) FetchMarketPrice(ctx context.Context, commodity enums.Commodity) (oracle.MarketPrice, error) {
	return oracle.MarketPrice{Commodity: commodity, PricePerGram: o.perGram, FetchedAt: time.Now().UTC(), Source: "stub"}, nil
}

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
		return nil, fmt.Errorf("payment %s not found", paymentID)
	}
	return &payment, nil
}

type testServer struct {
	handler http.Handler
	cfg     *config.Config
	gateway *fakeGateway
	conn    *gorm.DB
	tenant  uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	client := dbtest.Open(t)
	logg := logger.Nop()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "bullion-identity"},
	}

	tenantID := uuid.New()
	require.NoError(t, client.DB().Create(&models.Tenant{ID: tenantID, Name: "Acme Bullion", IsActive: true}).Error)
	require.NoError(t, client.DB().Create(&models.TenantCommodityMargin{
		TenantID:      tenantID,
		Commodity:     enums.CommodityGold,
		MarginPercent: decimal.Zero,
		MarginFixed:   decimal.NewFromInt(50),
	}).Error)

	tenantSvc, err := tenants.NewService(tenants.NewRepository(client.DB()))
	require.NoError(t, err)
	priceSvc, err := pricing.NewService(pricing.ServiceParams{
		Repo:    pricing.NewRepository(client.DB()),
		Margins: tenantSvc,
		Oracle:  fixedOracle{perGram: decimal.NewFromInt(7000)},
		Logger:  logg,
	})
	require.NoError(t, err)
	walletSvc, err := wallet.NewService(wallet.ServiceParams{Repo: wallet.NewRepository(client.DB()), TX: client, Logger: logg})
	require.NoError(t, err)
	bookingSvc, err := bookings.NewService(bookings.ServiceParams{
		Repo:   bookings.NewRepository(client.DB()),
		TX:     client,
		Prices: priceSvc,
		Ledger: walletSvc,
		Logger: logg,
	})
	require.NoError(t, err)
	gateway := &fakeGateway{payments: map[string]razorpay.Payment{}}
	paymentSvc, err := payments.NewService(payments.ServiceParams{
		Repo:          payments.NewRepository(client.DB()),
		Gateway:       gateway,
		Ledger:        walletSvc,
		Logger:        logg,
		KeySecret:     testKeySecret,
		WebhookSecret: testWebhookSecret,
		Currency:      "INR",
		MinAmount:     decimal.NewFromInt(100),
		MaxAmount:     decimal.NewFromInt(200000),
	})
	require.NoError(t, err)

	handler := NewRouter(cfg, logg, Dependencies{
		DB:       stubPinger{},
		Wallet:   walletSvc,
		Pricing:  priceSvc,
		Bookings: bookingSvc,
		Payments: paymentSvc,
	})
	return &testServer{handler: handler, cfg: cfg, gateway: gateway, conn: client.DB(), tenant: tenantID}
}

func (s *testServer) token(t *testing.T, userID uuid.UUID, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(s.cfg.JWT, time.Now(), time.Hour, pkgAuth.AccessTokenPayload{
		UserID:   userID,
		TenantID: s.tenant,
		Role:     role,
	})
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	s.handler.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data any `json:"data"`
	}{Data: dest}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope), resp.Body.String())
}

type walletBody struct {
	CashBalance  decimal.Decimal            `json:"cash_balance"`
	GramBalances map[string]decimal.Decimal `json:"gram_balances"`
}

func TestHealthRoutesArePublic(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/ready", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/metrics", "", nil).Code)
}

func TestAPIRequiresToken(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/v1/wallet", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/v1/wallet", "garbage", nil).Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	s := newTestServer(t)
	customer := s.token(t, uuid.New(), enums.UserRoleCustomer)
	admin := s.token(t, uuid.New(), enums.UserRoleAdmin)

	resp := s.do(t, http.MethodPut, "/api/admin/v1/prices/gold", customer, map[string]any{"base_price": "7100"})
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = s.do(t, http.MethodPut, "/api/admin/v1/prices/gold", admin, map[string]any{"base_price": "7100"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var snapshot struct {
		FinalPrice decimal.Decimal `json:"final_price"`
	}
	decode(t, resp, &snapshot)
	assert.Equal(t, "7150.00", snapshot.FinalPrice.StringFixed(2))

	resp = s.do(t, http.MethodGet, "/api/v1/prices/gold/current", customer, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

func TestTopUpThenBookThroughRouter(t *testing.T) {
	s := newTestServer(t)
	userID := uuid.New()
	token := s.token(t, userID, enums.UserRoleCustomer)

	resp := s.do(t, http.MethodGet, "/api/v1/wallet", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = s.do(t, http.MethodPost, "/api/v1/wallet", token, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = s.do(t, http.MethodPost, "/api/v1/payments/orders", token, map[string]any{"amount": "2500"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var handle payments.OrderHandle
	decode(t, resp, &handle)
	require.Equal(t, int64(250000), handle.AmountMinor)

	s.gateway.mu.Lock()
	s.gateway.payments["pay_1"] = razorpay.Payment{ID: "pay_1", OrderID: handle.OrderID, Amount: 250000, Currency: "INR", Status: razorpay.PaymentStatusCaptured}
	s.gateway.mu.Unlock()

	resp = s.do(t, http.MethodPost, "/api/v1/payments/verify", token, map[string]any{
		"razorpay_order_id":   handle.OrderID,
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  razorpay.SignPayment(handle.OrderID, "pay_1", testKeySecret),
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	webhook, err := json.Marshal(map[string]any{
		"event": razorpay.EventPaymentCaptured,
		"payload": map[string]any{"payment": map[string]any{"entity": map[string]any{
			"id": "pay_1", "order_id": handle.OrderID, "amount": 250000, "currency": "INR", "status": "captured",
		}}},
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", bytes.NewReader(webhook))
	req.Header.Set(razorpay.HeaderSignature, razorpay.SignWebhook(webhook, testWebhookSecret))
	hookResp := httptest.NewRecorder()
	s.handler.ServeHTTP(hookResp, req)
	require.Equal(t, http.StatusOK, hookResp.Code, hookResp.Body.String())
	var hook payments.WebhookResult
	decode(t, hookResp, &hook)
	assert.True(t, hook.Duplicate)

	resp = s.do(t, http.MethodPost, "/api/v1/bookings", token, map[string]any{"commodity": "gold", "amount": "2000"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var booking bookings.BookingDTO
	decode(t, resp, &booking)
	assert.Equal(t, "7050.00", booking.LockedPricePerGram.StringFixed(2))
	assert.Equal(t, "0.2837", booking.Grams.StringFixed(4))

	resp = s.do(t, http.MethodGet, "/api/v1/wallet", token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var snap walletBody
	decode(t, resp, &snap)
	assert.Equal(t, "500.00", snap.CashBalance.StringFixed(2))
	assert.Equal(t, "0.2837", snap.GramBalances["gold"].StringFixed(4))

	resp = s.do(t, http.MethodPost, "/api/v1/bookings", token, map[string]any{"commodity": "gold", "amount": "600"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = s.do(t, http.MethodGet, "/api/v1/bookings/"+booking.ID.String(), token, nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	other := s.token(t, uuid.New(), enums.UserRoleCustomer)
	resp = s.do(t, http.MethodGet, "/api/v1/bookings/"+booking.ID.String(), other, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	var credits int64
	require.NoError(t, s.conn.Model(&models.LedgerTransaction{}).Where("type = ?", enums.TransactionTypeCredit).Count(&credits).Error)
	assert.Equal(t, int64(1), credits)

	resp = s.do(t, http.MethodGet, "/api/v1/wallet/transactions", token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, strings.Contains(resp.Body.String(), `"type":"DEBIT"`))
}
