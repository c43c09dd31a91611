package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bullion-backend/pkg/db/models"
	"github.com/angelmondragon/bullion-backend/pkg/enums"
)

// Snapshot is the read model of a wallet handed to the API layer.
type Snapshot struct {
	WalletID     uuid.UUID                           `json:"wallet_id"`
	UserID       uuid.UUID                           `json:"user_id"`
	TenantID     uuid.UUID                           `json:"tenant_id"`
	CashBalance  decimal.Decimal                     `json:"cash_balance"`
	GramBalances map[enums.Commodity]decimal.Decimal `json:"gram_balances"`
	UpdatedAt    time.Time                           `json:"updated_at"`
}

// GramsOf returns the balance for commodity, zero when the wallet has no row for it.
func (s *Snapshot) GramsOf(commodity enums.Commodity) decimal.Decimal {
	if s == nil {
		return decimal.Zero
	}
	if grams, ok := s.GramBalances[commodity]; ok {
		return grams
	}
	return decimal.Zero
}

func snapshotFromModel(w *models.Wallet) *Snapshot {
	balances := make(map[enums.Commodity]decimal.Decimal, len(enums.Commodities()))
	for _, commodity := range enums.Commodities() {
		balances[commodity] = decimal.Zero
	}
	updated := w.UpdatedAt
	for _, row := range w.GramBalances {
		balances[row.Commodity] = row.Grams
		if row.UpdatedAt.After(updated) {
			updated = row.UpdatedAt
		}
	}
	return &Snapshot{
		WalletID:     w.ID,
		UserID:       w.UserID,
		TenantID:     w.TenantID,
		CashBalance:  w.CashBalance,
		GramBalances: balances,
		UpdatedAt:    updated,
	}
}

// CreditInput funds a wallet. ExternalRef is the gateway payment id; credits sharing one apply once.
type CreditInput struct {
	UserID      uuid.UUID
	TenantID    uuid.UUID
	Amount      decimal.Decimal
	ExternalRef string
	Metadata    []byte
}

// CreditResult reports the CREDIT row for the reference and whether this call was a replay.
type CreditResult struct {
	Transaction *models.LedgerTransaction
	Duplicate   bool
}

// DebitInput spends wallet cash, optionally on behalf of a booking.
type DebitInput struct {
	UserID    uuid.UUID
	TenantID  uuid.UUID
	Amount    decimal.Decimal
	BookingID uuid.UUID
}

// GramCreditInput adds grams of one commodity to a wallet.
type GramCreditInput struct {
	UserID    uuid.UUID
	TenantID  uuid.UUID
	Commodity enums.Commodity
	Grams     decimal.Decimal
}
