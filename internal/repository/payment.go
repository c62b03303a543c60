package repository

import (
	"context"
	"errors"

	"keyhouse/internal/models"

	"gorm.io/gorm"
)

// PaymentRepository records confirmed external payments.
type PaymentRepository interface {
	RecordReceipt(ctx context.Context, receipt *models.PaymentReceipt) (bool, error)
	GetByTransaction(ctx context.Context, transactionID string) (*models.PaymentReceipt, error)
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment receipt repository
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// RecordReceipt inserts the receipt and reports false when the transaction id
// was already recorded.
func (r *paymentRepository) RecordReceipt(ctx context.Context, receipt *models.PaymentReceipt) (bool, error) {
	// A savepoint keeps the surrounding postgres transaction usable after a
	// duplicate-key failure.
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(receipt).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, models.NewInternalError(err)
	}
	return true, nil
}

func (r *paymentRepository) GetByTransaction(ctx context.Context, transactionID string) (*models.PaymentReceipt, error) {
	var receipt models.PaymentReceipt
	if err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&receipt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("PaymentReceipt", transactionID)
		}
		return nil, models.NewInternalError(err)
	}
	return &receipt, nil
}
