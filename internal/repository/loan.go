package repository

import (
	"context"
	"errors"
	"time"

	"keyhouse/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LoanRepository persists loan decisions and repayment schedules.
type LoanRepository interface {
	CreateDecision(ctx context.Context, d *models.LoanDecision) error
	GetDecision(ctx context.Context, id uuid.UUID) (*models.LoanDecision, error)
	GetDecisionForUpdate(ctx context.Context, id uuid.UUID) (*models.LoanDecision, error)
	GetDecisionByApplication(ctx context.Context, applicationID uuid.UUID) (*models.LoanDecision, error)
	Decide(ctx context.Context, id uuid.UUID, status models.LoanDecisionStatus, updates map[string]interface{}) (bool, error)
	MarkFeePaid(ctx context.Context, id uuid.UUID, purpose models.PaymentPurpose, at time.Time) (bool, error)

	CreateRepayments(ctx context.Context, rows []models.LoanRepayment) error
	ListRepayments(ctx context.Context, decisionID uuid.UUID) ([]models.LoanRepayment, error)
	GetRepayment(ctx context.Context, id uuid.UUID) (*models.LoanRepayment, error)
	MarkRepaymentPaid(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ListPendingDueBefore(ctx context.Context, now time.Time) ([]models.LoanRepayment, error)
	MarkOverdue(ctx context.Context, id uuid.UUID) (bool, error)
}

type loanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) CreateDecision(ctx context.Context, d *models.LoanDecision) error {
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("application already has a loan decision")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *loanRepository) GetDecision(ctx context.Context, id uuid.UUID) (*models.LoanDecision, error) {
	return first[models.LoanDecision](ctx, r.db, "LoanDecision", id)
}

func (r *loanRepository) GetDecisionForUpdate(ctx context.Context, id uuid.UUID) (*models.LoanDecision, error) {
	return firstForUpdate[models.LoanDecision](ctx, r.db, "LoanDecision", id)
}

func (r *loanRepository) GetDecisionByApplication(ctx context.Context, applicationID uuid.UUID) (*models.LoanDecision, error) {
	var d models.LoanDecision
	if err := r.db.WithContext(ctx).Where("application_id = ?", applicationID).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("LoanDecision for application", applicationID)
		}
		return nil, models.NewInternalError(err)
	}
	return &d, nil
}

// Decide moves a pending decision to its final status.
func (r *loanRepository) Decide(ctx context.Context, id uuid.UUID, status models.LoanDecisionStatus, updates map[string]interface{}) (bool, error) {
	values := map[string]interface{}{"status": status}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.LoanDecision{}).
		Where("id = ? AND status = ?", id, models.LoanDecisionPending).
		Updates(values)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// MarkFeePaid stamps the fee timestamp matching purpose if it is still unset.
func (r *loanRepository) MarkFeePaid(ctx context.Context, id uuid.UUID, purpose models.PaymentPurpose, at time.Time) (bool, error) {
	var column string
	switch purpose {
	case models.PaymentPurposeProcessingFee:
		column = "processing_fee_paid_at"
	case models.PaymentPurposeManagementFee:
		column = "management_fee_paid_at"
	default:
		return false, models.NewValidationError("unsupported loan fee purpose: " + string(purpose))
	}

	res := r.db.WithContext(ctx).
		Model(&models.LoanDecision{}).
		Where("id = ? AND "+column+" IS NULL", id).
		Update(column, at)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *loanRepository) CreateRepayments(ctx context.Context, rows []models.LoanRepayment) error {
	if len(rows) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *loanRepository) ListRepayments(ctx context.Context, decisionID uuid.UUID) ([]models.LoanRepayment, error) {
	var rows []models.LoanRepayment
	if err := r.db.WithContext(ctx).
		Where("loan_decision_id = ?", decisionID).
		Order("installment_no ASC").
		Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

func (r *loanRepository) GetRepayment(ctx context.Context, id uuid.UUID) (*models.LoanRepayment, error) {
	return first[models.LoanRepayment](ctx, r.db, "LoanRepayment", id)
}

func (r *loanRepository) MarkRepaymentPaid(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.LoanRepayment{}).
		Where("id = ? AND status IN ?", id, []models.RepaymentStatus{models.RepaymentPending, models.RepaymentOverdue}).
		Updates(map[string]interface{}{
			"status":  models.RepaymentPaid,
			"paid_at": at,
		})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *loanRepository) ListPendingDueBefore(ctx context.Context, now time.Time) ([]models.LoanRepayment, error) {
	var rows []models.LoanRepayment
	if err := r.db.WithContext(ctx).
		Where("status = ? AND due_date < ?", models.RepaymentPending, now).
		Order("due_date ASC").
		Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

func (r *loanRepository) MarkOverdue(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.LoanRepayment{}).
		Where("id = ? AND status = ?", id, models.RepaymentPending).
		Update("status", models.RepaymentOverdue)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}
