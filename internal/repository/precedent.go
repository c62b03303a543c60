package repository

import (
	"context"
	"errors"
	"time"

	"keyhouse/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PrecedentRepository persists condition precedents.
type PrecedentRepository interface {
	Create(ctx context.Context, cp *models.ConditionPrecedent) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ConditionPrecedent, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.ConditionPrecedent, error)
	GetByApplication(ctx context.Context, applicationID uuid.UUID) (*models.ConditionPrecedent, error)
	Save(ctx context.Context, cp *models.ConditionPrecedent) error
	ListExpirable(ctx context.Context, now time.Time) ([]models.ConditionPrecedent, error)
	ExpireIfOpen(ctx context.Context, id uuid.UUID) (bool, error)
}

type precedentRepository struct {
	db *gorm.DB
}

// NewPrecedentRepository creates a new condition precedent repository
func NewPrecedentRepository(db *gorm.DB) PrecedentRepository {
	return &precedentRepository{db: db}
}

func (r *precedentRepository) Create(ctx context.Context, cp *models.ConditionPrecedent) error {
	if err := r.db.WithContext(ctx).Create(cp).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("application already has a condition precedent")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *precedentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ConditionPrecedent, error) {
	return first[models.ConditionPrecedent](ctx, r.db, "ConditionPrecedent", id)
}

func (r *precedentRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.ConditionPrecedent, error) {
	return firstForUpdate[models.ConditionPrecedent](ctx, r.db, "ConditionPrecedent", id)
}

func (r *precedentRepository) GetByApplication(ctx context.Context, applicationID uuid.UUID) (*models.ConditionPrecedent, error) {
	var cp models.ConditionPrecedent
	if err := r.db.WithContext(ctx).Where("application_id = ?", applicationID).First(&cp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("ConditionPrecedent for application", applicationID)
		}
		return nil, models.NewInternalError(err)
	}
	return &cp, nil
}

func (r *precedentRepository) Save(ctx context.Context, cp *models.ConditionPrecedent) error {
	if err := r.db.WithContext(ctx).Save(cp).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ListExpirable returns open precedents whose due date has passed.
func (r *precedentRepository) ListExpirable(ctx context.Context, now time.Time) ([]models.ConditionPrecedent, error) {
	var cps []models.ConditionPrecedent
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND due_date IS NOT NULL AND due_date < ?",
			[]models.PrecedentStatus{models.PrecedentPending, models.PrecedentInReview}, now).
		Order("due_date ASC").
		Find(&cps).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return cps, nil
}

// ExpireIfOpen marks a pending or in-review precedent expired.
func (r *precedentRepository) ExpireIfOpen(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ConditionPrecedent{}).
		Where("id = ? AND status IN ?", id, []models.PrecedentStatus{models.PrecedentPending, models.PrecedentInReview}).
		Update("status", models.PrecedentExpired)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}
