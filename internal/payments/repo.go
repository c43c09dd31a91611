package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bullion-backend/pkg/db/models"
	"github.com/angelmondragon/bullion-backend/pkg/enums"
)

// Repository persists gateway payment orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.PaymentOrder) error
	// FindByGatewayOrderID returns nil when the order is unknown.
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentOrder, error)
	MarkPaid(ctx context.Context, gatewayOrderID, paymentID string) error
	// MarkFailed only moves orders that are still CREATED.
	MarkFailed(ctx context.Context, gatewayOrderID, paymentID string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.PaymentOrder) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	err := r.db.WithContext(ctx).
		Where("gateway_order_id = ?", gatewayOrderID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) MarkPaid(ctx context.Context, gatewayOrderID, paymentID string) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentOrder{}).
		Where("gateway_order_id = ? AND status <> ?", gatewayOrderID, enums.PaymentOrderStatusPaid).
		Updates(map[string]any{
			"status":             enums.PaymentOrderStatusPaid,
			"gateway_payment_id": paymentID,
			"updated_at":         time.Now().UTC(),
		}).Error
}

func (r *repository) MarkFailed(ctx context.Context, gatewayOrderID, paymentID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentOrder{}).
		Where("gateway_order_id = ? AND status = ?", gatewayOrderID, enums.PaymentOrderStatusCreated).
		Updates(map[string]any{
			"status":             enums.PaymentOrderStatusFailed,
			"gateway_payment_id": paymentID,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
