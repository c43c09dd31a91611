package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bullion-backend/pkg/db"
	"github.com/angelmondragon/bullion-backend/pkg/db/models"
	"github.com/angelmondragon/bullion-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bullion-backend/pkg/errors"
	"github.com/angelmondragon/bullion-backend/pkg/logger"
	"github.com/angelmondragon/bullion-backend/pkg/money"
	"github.com/angelmondragon/bullion-backend/pkg/pagination"
)

const (
	walletOwnerConstraint = "uq_wallets_user_tenant"
	creditRefConstraint   = "uq_ledger_transactions_type_ref"
)

var errDuplicateCredit = errors.New("duplicate credit")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the wallet ledger. Each mutating call is one store transaction.
type Service interface {
	GetWallet(ctx context.Context, userID, tenantID uuid.UUID) (*Snapshot, error)
	EnsureWallet(ctx context.Context, userID, tenantID uuid.UUID) (*Snapshot, error)
	Credit(ctx context.Context, input CreditInput) (*CreditResult, error)
	Debit(ctx context.Context, input DebitInput) (*models.LedgerTransaction, error)
	// DebitWithTx runs the debit inside the caller's transaction.
	DebitWithTx(ctx context.Context, tx *gorm.DB, input DebitInput) (*models.LedgerTransaction, error)
	CreditGrams(ctx context.Context, input GramCreditInput) error
	CreditGramsWithTx(ctx context.Context, tx *gorm.DB, input GramCreditInput) error
	ListTransactions(ctx context.Context, userID, tenantID uuid.UUID, params pagination.Params) (pagination.Page[models.LedgerTransaction], error)
}

// ServiceParams wires the wallet service.
type ServiceParams struct {
	Repo   Repository
	TX     txRunner
	Logger *logger.Logger
}

type service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "wallet repository required")
	}
	if params.TX == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &service{repo: params.Repo, tx: params.TX, logg: params.Logger}, nil
}

func (s *service) GetWallet(ctx context.Context, userID, tenantID uuid.UUID) (*Snapshot, error) {
	if err := validateOwner(userID, tenantID); err != nil {
		return nil, err
	}
	wallet, err := s.repo.FindByOwner(ctx, userID, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	if wallet == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
	}
	return snapshotFromModel(wallet), nil
}

func (s *service) EnsureWallet(ctx context.Context, userID, tenantID uuid.UUID) (*Snapshot, error) {
	if err := validateOwner(userID, tenantID); err != nil {
		return nil, err
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		wallet, err := repo.FindByOwner(ctx, userID, tenantID)
		if err != nil {
			return err
		}
		if wallet == nil {
			wallet = &models.Wallet{ID: uuid.New(), UserID: userID, TenantID: tenantID, CashBalance: decimal.Zero}
			if err := repo.CreateWallet(ctx, wallet); err != nil {
				return err
			}
		}
		return repo.EnsureGramRows(ctx, wallet.ID, enums.Commodities())
	})
	if err != nil && !db.IsUniqueViolation(err, walletOwnerConstraint) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "provision wallet")
	}
	// A concurrent registration may have won the insert; either way the wallet now exists.
	return s.GetWallet(ctx, userID, tenantID)
}

func (s *service) Credit(ctx context.Context, input CreditInput) (*CreditResult, error) {
	if err := validateOwner(input.UserID, input.TenantID); err != nil {
		return nil, err
	}
	amount := money.RoundAmount(input.Amount)
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	ref := strings.TrimSpace(input.ExternalRef)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"user_id":      input.UserID.String(),
		"tenant_id":    input.TenantID.String(),
		"external_ref": ref,
	})

	txn := &models.LedgerTransaction{
		ID:       uuid.New(),
		UserID:   input.UserID,
		TenantID: input.TenantID,
		Amount:   amount,
		Type:     enums.TransactionTypeCredit,
		Status:   enums.TransactionStatusSuccess,
	}
	if ref != "" {
		txn.ExternalRef = &ref
	}
	if len(input.Metadata) > 0 {
		txn.Metadata = json.RawMessage(input.Metadata)
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		wallet, err := repo.FindByOwner(ctx, input.UserID, input.TenantID)
		if err != nil {
			return err
		}
		if wallet == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		txn.WalletID = wallet.ID

		inserted, err := repo.InsertTransactionIfAbsent(ctx, txn)
		if err != nil {
			if db.IsUniqueViolation(err, creditRefConstraint) {
				return errDuplicateCredit
			}
			return err
		}
		if !inserted {
			return errDuplicateCredit
		}
		return repo.IncrementCash(ctx, wallet.ID, amount)
	})
	switch {
	case err == nil:
		s.logg.Info(s.logg.WithField(ctx, "amount", amount.StringFixed(money.AmountScale)), "wallet credited")
		return &CreditResult{Transaction: txn}, nil
	case errors.Is(err, errDuplicateCredit):
		existing, findErr := s.repo.FindTransactionByRef(ctx, enums.TransactionTypeCredit, ref)
		if findErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load existing credit")
		}
		s.logg.Info(ctx, "duplicate credit ignored")
		return &CreditResult{Transaction: existing, Duplicate: true}, nil
	case pkgerrors.As(err) != nil:
		return nil, err
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit wallet")
	}
}

func (s *service) Debit(ctx context.Context, input DebitInput) (*models.LedgerTransaction, error) {
	var txn *models.LedgerTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		txn, err = s.DebitWithTx(ctx, tx, input)
		return err
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit wallet")
	}
	return txn, nil
}

func (s *service) DebitWithTx(ctx context.Context, tx *gorm.DB, input DebitInput) (*models.LedgerTransaction, error) {
	if err := validateOwner(input.UserID, input.TenantID); err != nil {
		return nil, err
	}
	amount := money.RoundAmount(input.Amount)
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}

	repo := s.repo.WithTx(tx)
	wallet, err := repo.FindByOwner(ctx, input.UserID, input.TenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	if wallet == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
	}

	ok, err := repo.DebitCash(ctx, wallet.ID, amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit wallet")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient wallet balance").
			WithDetails(map[string]any{"required": amount.StringFixed(money.AmountScale)})
	}

	txn := &models.LedgerTransaction{
		ID:       uuid.New(),
		WalletID: wallet.ID,
		UserID:   input.UserID,
		TenantID: input.TenantID,
		Amount:   amount,
		Type:     enums.TransactionTypeDebit,
		Status:   enums.TransactionStatusSuccess,
	}
	if input.BookingID != uuid.Nil {
		bookingID := input.BookingID
		txn.BookingID = &bookingID
	}
	if err := repo.InsertTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record debit")
	}
	return txn, nil
}

func (s *service) CreditGrams(ctx context.Context, input GramCreditInput) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.CreditGramsWithTx(ctx, tx, input)
	})
}

func (s *service) CreditGramsWithTx(ctx context.Context, tx *gorm.DB, input GramCreditInput) error {
	if err := validateOwner(input.UserID, input.TenantID); err != nil {
		return err
	}
	if !input.Commodity.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported commodity")
	}
	grams := money.RoundGrams(input.Grams)
	if !grams.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "grams must be greater than zero")
	}

	repo := s.repo.WithTx(tx)
	wallet, err := repo.FindByOwner(ctx, input.UserID, input.TenantID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	if wallet == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
	}
	if err := repo.AddGrams(ctx, wallet.ID, input.Commodity, grams); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit grams")
	}
	return nil
}

func (s *service) ListTransactions(ctx context.Context, userID, tenantID uuid.UUID, params pagination.Params) (pagination.Page[models.LedgerTransaction], error) {
	params = params.Normalize()
	if err := validateOwner(userID, tenantID); err != nil {
		return pagination.Page[models.LedgerTransaction]{}, err
	}
	wallet, err := s.repo.FindByOwner(ctx, userID, tenantID)
	if err != nil {
		return pagination.Page[models.LedgerTransaction]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	if wallet == nil {
		return pagination.Page[models.LedgerTransaction]{}, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
	}
	txns, total, err := s.repo.ListTransactions(ctx, wallet.ID, params)
	if err != nil {
		return pagination.Page[models.LedgerTransaction]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	return pagination.NewPage(txns, params, total), nil
}

func validateOwner(userID, tenantID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if tenantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	return nil
}
