package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bullion-backend/api/responses"
	"github.com/angelmondragon/bullion-backend/api/validators"
	"github.com/angelmondragon/bullion-backend/internal/wallet"
	"github.com/angelmondragon/bullion-backend/pkg/db/models"
	"github.com/angelmondragon/bullion-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bullion-backend/pkg/errors"
	"github.com/angelmondragon/bullion-backend/pkg/logger"
	"github.com/angelmondragon/bullion-backend/pkg/pagination"
)

type walletReader interface {
	GetWallet(ctx context.Context, userID, tenantID uuid.UUID) (*wallet.Snapshot, error)
	ListTransactions(ctx context.Context, userID, tenantID uuid.UUID, params pagination.Params) (pagination.Page[models.LedgerTransaction], error)
}

type walletProvisioner interface {
	EnsureWallet(ctx context.Context, userID, tenantID uuid.UUID) (*wallet.Snapshot, error)
}

// WalletGet returns the caller's wallet snapshot.
func WalletGet(svc walletReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}
		who, err := identityFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.GetWallet(r.Context(), who.UserID, who.TenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// WalletProvision creates the caller's wallet if it does not exist yet.
func WalletProvision(svc walletProvisioner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}
		who, err := identityFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.EnsureWallet(r.Context(), who.UserID, who.TenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// WalletTransactions lists the caller's ledger history, newest first.
func WalletTransactions(svc walletReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}
		who, err := identityFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListTransactions(r.Context(), who.UserID, who.TenantID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTransactionPage(page))
	}
}

type transactionResponse struct {
	ID          uuid.UUID               `json:"id"`
	Type        enums.TransactionType   `json:"type"`
	Status      enums.TransactionStatus `json:"status"`
	Amount      decimal.Decimal         `json:"amount"`
	BookingID   *uuid.UUID              `json:"booking_id,omitempty"`
	ExternalRef *string                 `json:"external_ref,omitempty"`
	Metadata    json.RawMessage         `json:"metadata,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

func newTransactionPage(page pagination.Page[models.LedgerTransaction]) pagination.Page[transactionResponse] {
	items := make([]transactionResponse, 0, len(page.Items))
	for _, tx := range page.Items {
		items = append(items, transactionResponse{
			ID:          tx.ID,
			Type:        tx.Type,
			Status:      tx.Status,
			Amount:      tx.Amount,
			BookingID:   tx.BookingID,
			ExternalRef: tx.ExternalRef,
			Metadata:    tx.Metadata,
			CreatedAt:   tx.CreatedAt,
		})
	}
	return pagination.Page[transactionResponse]{Items: items, Limit: page.Limit, Offset: page.Offset, Total: page.Total}
}
