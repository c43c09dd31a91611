package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/bullion-backend/pkg/db/models"
	"github.com/angelmondragon/bullion-backend/pkg/enums"
	"github.com/angelmondragon/bullion-backend/pkg/pagination"
)

// Repository manages wallets, their gram balances and the append-only transaction log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// FindByOwner returns the wallet with its gram balances, or nil when none exists.
	FindByOwner(ctx context.Context, userID, tenantID uuid.UUID) (*models.Wallet, error)
	CreateWallet(ctx context.Context, wallet *models.Wallet) error
	// EnsureGramRows inserts a zero balance row for each commodity missing one.
	EnsureGramRows(ctx context.Context, walletID uuid.UUID, commodities []enums.Commodity) error
	// DebitCash decrements cash only when the balance covers amount. It reports whether a row changed.
	DebitCash(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (bool, error)
	IncrementCash(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) error
	AddGrams(ctx context.Context, walletID uuid.UUID, commodity enums.Commodity, grams decimal.Decimal) error
	InsertTransaction(ctx context.Context, txn *models.LedgerTransaction) error
	// InsertTransactionIfAbsent skips the insert when (type, external_ref) is taken and reports whether it inserted.
	InsertTransactionIfAbsent(ctx context.Context, txn *models.LedgerTransaction) (bool, error)
	FindTransactionByRef(ctx context.Context, txnType enums.TransactionType, externalRef string) (*models.LedgerTransaction, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.LedgerTransaction, int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByOwner(ctx context.Context, userID, tenantID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).
		Preload("GramBalances", func(db *gorm.DB) *gorm.DB { return db.Order("commodity ASC") }).
		Where("user_id = ? AND tenant_id = ?", userID, tenantID).
		First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	if wallet.ID == uuid.Nil {
		wallet.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(wallet).Error
}

func (r *repository) EnsureGramRows(ctx context.Context, walletID uuid.UUID, commodities []enums.Commodity) error {
	if len(commodities) == 0 {
		return nil
	}
	rows := make([]models.WalletGramBalance, 0, len(commodities))
	for _, commodity := range commodities {
		rows = append(rows, models.WalletGramBalance{WalletID: walletID, Commodity: commodity, Grams: decimal.Zero})
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "wallet_id"}, {Name: "commodity"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

func (r *repository) DebitCash(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ? AND cash_balance >= ?", walletID, amount).
		Updates(map[string]any{
			"cash_balance": gorm.Expr("cash_balance - ?", amount),
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) IncrementCash(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) error {
	res := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Updates(map[string]any{
			"cash_balance": gorm.Expr("cash_balance + ?", amount),
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) AddGrams(ctx context.Context, walletID uuid.UUID, commodity enums.Commodity, grams decimal.Decimal) error {
	now := time.Now().UTC()
	row := models.WalletGramBalance{WalletID: walletID, Commodity: commodity, Grams: grams, UpdatedAt: now}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "wallet_id"}, {Name: "commodity"}},
			DoUpdates: clause.Assignments(map[string]any{
				"grams":      gorm.Expr("wallet_gram_balances.grams + excluded.grams"),
				"updated_at": gorm.Expr("excluded.updated_at"),
			}),
		}).
		Create(&row).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Update("updated_at", now).Error
}

func (r *repository) InsertTransaction(ctx context.Context, txn *models.LedgerTransaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) InsertTransactionIfAbsent(ctx context.Context, txn *models.LedgerTransaction) (bool, error) {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "type"}, {Name: "external_ref"}},
			DoNothing: true,
		}).
		Create(txn)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindTransactionByRef(ctx context.Context, txnType enums.TransactionType, externalRef string) (*models.LedgerTransaction, error) {
	var txn models.LedgerTransaction
	err := r.db.WithContext(ctx).
		Where("type = ? AND external_ref = ?", txnType, externalRef).
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) ListTransactions(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.LedgerTransaction, int64, error) {
	var total int64
	base := r.db.WithContext(ctx).Model(&models.LedgerTransaction{}).Where("wallet_id = ?", walletID)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txns []models.LedgerTransaction
	if err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(params.Limit).
		Offset(params.Offset).
		Find(&txns).Error; err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}
