package repository

import (
	"context"
	"errors"
	"time"

	"keyhouse/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RescheduleRepository persists reschedule negotiations.
type RescheduleRepository interface {
	Create(ctx context.Context, req *models.InspectionRescheduleRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.InspectionRescheduleRequest, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.InspectionRescheduleRequest, error)
	FindOpen(ctx context.Context, inspectionID uuid.UUID) (*models.InspectionRescheduleRequest, error)
	ListByInspection(ctx context.Context, inspectionID uuid.UUID) ([]models.InspectionRescheduleRequest, error)
	Resolve(ctx context.Context, id uuid.UUID, status models.RescheduleStatus, by uuid.UUID, reason string, at time.Time) (bool, error)
}

type rescheduleRepository struct {
	db *gorm.DB
}

// NewRescheduleRepository creates a new reschedule repository
func NewRescheduleRepository(db *gorm.DB) RescheduleRepository {
	return &rescheduleRepository{db: db}
}

func (r *rescheduleRepository) Create(ctx context.Context, req *models.InspectionRescheduleRequest) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("inspection already has an open reschedule request")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *rescheduleRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.InspectionRescheduleRequest, error) {
	return first[models.InspectionRescheduleRequest](ctx, r.db, "InspectionRescheduleRequest", id)
}

func (r *rescheduleRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.InspectionRescheduleRequest, error) {
	return firstForUpdate[models.InspectionRescheduleRequest](ctx, r.db, "InspectionRescheduleRequest", id)
}

// FindOpen returns the inspection's Proposed request, or nil when there is none.
func (r *rescheduleRepository) FindOpen(ctx context.Context, inspectionID uuid.UUID) (*models.InspectionRescheduleRequest, error) {
	var req models.InspectionRescheduleRequest
	if err := r.db.WithContext(ctx).
		Where("inspection_id = ? AND status = ?", inspectionID, models.RescheduleProposed).
		First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

func (r *rescheduleRepository) ListByInspection(ctx context.Context, inspectionID uuid.UUID) ([]models.InspectionRescheduleRequest, error) {
	var reqs []models.InspectionRescheduleRequest
	if err := r.db.WithContext(ctx).
		Where("inspection_id = ?", inspectionID).
		Order("created_at ASC").
		Find(&reqs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

// Resolve moves a Proposed request into a terminal status exactly once.
func (r *rescheduleRepository) Resolve(ctx context.Context, id uuid.UUID, status models.RescheduleStatus, by uuid.UUID, reason string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InspectionRescheduleRequest{}).
		Where("id = ? AND status = ?", id, models.RescheduleProposed).
		Updates(map[string]interface{}{
			"status":           status,
			"resolved_by":      by,
			"resolved_at":      at,
			"rejection_reason": reason,
		})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}
