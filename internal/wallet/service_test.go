package wallet

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/bullion-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bullion-backend/pkg/db/models"
	"github.com/angelmondragon/bullion-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bullion-backend/pkg/errors"
	"github.com/angelmondragon/bullion-backend/pkg/logger"
	"github.com/angelmondragon/bullion-backend/pkg/pagination"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	client := dbtest.Open(t)
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(client.DB()),
		TX:     client,
		Logger: logger.Nop(),
	})
	require.NoError(t, err)
	return svc, client.DB()
}

func fundedWallet(t *testing.T, svc Service, cash string) (uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	userID, tenantID := uuid.New(), uuid.New()
	_, err := svc.EnsureWallet(ctx, userID, tenantID)
	require.NoError(t, err)
	if cash != "0" {
		_, err = svc.Credit(ctx, CreditInput{UserID: userID, TenantID: tenantID, Amount: d(cash), ExternalRef: "seed-" + userID.String()})
		require.NoError(t, err)
	}
	return userID, tenantID
}

func countTransactions(t *testing.T, conn *gorm.DB, txnType enums.TransactionType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.LedgerTransaction{}).Where("type = ?", txnType).Count(&n).Error)
	return n
}

func TestEnsureWalletProvisionsEveryCommodity(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	userID, tenantID := uuid.New(), uuid.New()

	first, err := svc.EnsureWallet(ctx, userID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", first.CashBalance.StringFixed(2))
	for _, commodity := range enums.Commodities() {
		grams, ok := first.GramBalances[commodity]
		require.True(t, ok, "missing %s", commodity)
		assert.True(t, grams.IsZero())
	}

	second, err := svc.EnsureWallet(ctx, userID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, first.WalletID, second.WalletID)

	var wallets int64
	require.NoError(t, conn.Model(&models.Wallet{}).Count(&wallets).Error)
	assert.Equal(t, int64(1), wallets)
	var rows int64
	require.NoError(t, conn.Model(&models.WalletGramBalance{}).Count(&rows).Error)
	assert.Equal(t, int64(len(enums.Commodities())), rows)
}

func TestGetWalletNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetWallet(context.Background(), uuid.New(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.GetWallet(context.Background(), uuid.Nil, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCreditIsIdempotentOnExternalRef(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	userID, tenantID := fundedWallet(t, svc, "0")

	input := CreditInput{UserID: userID, TenantID: tenantID, Amount: d("1500"), ExternalRef: "pay_123", Metadata: []byte(`{"order_id":"order_1"}`)}
	first, err := svc.Credit(ctx, input)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := svc.Credit(ctx, input)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	require.NotNil(t, second.Transaction)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)

	snap, err := svc.GetWallet(ctx, userID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, "1500.00", snap.CashBalance.StringFixed(2))
	assert.Equal(t, int64(1), countTransactions(t, conn, enums.TransactionTypeCredit))
}

func TestConcurrentCreditsForOneRefApplyOnce(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	userID, tenantID := fundedWallet(t, svc, "0")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Credit(ctx, CreditInput{UserID: userID, TenantID: tenantID, Amount: d("250"), ExternalRef: "pay_race"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	snap, err := svc.GetWallet(ctx, userID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, "250.00", snap.CashBalance.StringFixed(2))
	assert.Equal(t, int64(1), countTransactions(t, conn, enums.TransactionTypeCredit))
}

func TestCreditRequiresWalletAndPositiveAmount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, CreditInput{UserID: uuid.New(), TenantID: uuid.New(), Amount: d("10"), ExternalRef: "pay_x"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	userID, tenantID := fundedWallet(t, svc, "0")
	_, err = svc.Credit(ctx, CreditInput{UserID: userID, TenantID: tenantID, Amount: d("-1"), ExternalRef: "pay_y"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.Credit(ctx, CreditInput{UserID: userID, TenantID: tenantID, Amount: d("0.001"), ExternalRef: "pay_z"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDebitInsufficientFundsLeavesWalletUntouched(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	userID, tenantID := fundedWallet(t, svc, "500")

	_, err := svc.Debit(ctx, DebitInput{UserID: userID, TenantID: tenantID, Amount: d("500.01")})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds))

	snap, err := svc.GetWallet(ctx, userID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, "500.00", snap.CashBalance.StringFixed(2))
	assert.Equal(t, int64(0), countTransactions(t, conn, enums.TransactionTypeDebit))

	txn, err := svc.Debit(ctx, DebitInput{UserID: userID, TenantID: tenantID, Amount: d("500")})
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionTypeDebit, txn.Type)
	snap, err = svc.GetWallet(ctx, userID, tenantID)
	require.NoError(t, err)
	assert.True(t, snap.CashBalance.IsZero())
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	userID, tenantID := fundedWallet(t, svc, "1000")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Debit(ctx, DebitInput{UserID: userID, TenantID: tenantID, Amount: d("300")})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds):
				rejected++
			default:
				t.Errorf("unexpected debit error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 7, rejected)
	snap, err := svc.GetWallet(ctx, userID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", snap.CashBalance.StringFixed(2))
	assert.False(t, snap.CashBalance.IsNegative())
	assert.Equal(t, int64(3), countTransactions(t, conn, enums.TransactionTypeDebit))
}

func TestCreditGramsAccumulates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID, tenantID := fundedWallet(t, svc, "0")

	require.NoError(t, svc.CreditGrams(ctx, GramCreditInput{UserID: userID, TenantID: tenantID, Commodity: enums.CommodityGold, Grams: d("0.2857")}))
	require.NoError(t, svc.CreditGrams(ctx, GramCreditInput{UserID: userID, TenantID: tenantID, Commodity: enums.CommodityGold, Grams: d("1.3889")}))

	snap, err := svc.GetWallet(ctx, userID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, "1.6746", snap.GramsOf(enums.CommodityGold).StringFixed(4))
	assert.Equal(t, "0.0000", snap.GramsOf(enums.CommoditySilver).StringFixed(4))

	err = svc.CreditGrams(ctx, GramCreditInput{UserID: userID, TenantID: tenantID, Commodity: enums.CommodityGold, Grams: decimal.Zero})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	err = svc.CreditGrams(ctx, GramCreditInput{UserID: userID, TenantID: tenantID, Commodity: "platinum", Grams: d("1")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListTransactionsNewestFirst(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID, tenantID := fundedWallet(t, svc, "0")

	for i := 1; i <= 3; i++ {
		_, err := svc.Credit(ctx, CreditInput{UserID: userID, TenantID: tenantID, Amount: decimal.NewFromInt(int64(i * 100)), ExternalRef: fmt.Sprintf("pay_%d", i)})
		require.NoError(t, err)
	}

	page, err := svc.ListTransactions(ctx, userID, tenantID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.Limit)
	for _, txn := range page.Items {
		assert.Equal(t, enums.TransactionTypeCredit, txn.Type)
	}
	assert.False(t, page.Items[0].CreatedAt.Before(page.Items[1].CreatedAt))

	rest, err := svc.ListTransactions(ctx, userID, tenantID, pagination.Params{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, rest.Items, 1)
}
