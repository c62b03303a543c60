package repository

import (
	"context"
	"time"

	"keyhouse/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var activeInspectionStatuses = []models.InspectionStatus{
	models.InspectionScheduled,
	models.InspectionRescheduled,
}

// InspectionRepository persists inspections.
type InspectionRepository interface {
	Create(ctx context.Context, inspection *models.Inspection) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Inspection, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Inspection, error)
	ListByOrganization(ctx context.Context, orgID uuid.UUID, status models.InspectionStatus) ([]models.Inspection, error)
	Cancel(ctx context.Context, id, slotID uuid.UUID, status models.InspectionStatus, at time.Time) (bool, error)
	Repoint(ctx context.Context, id, fromSlot, toSlot uuid.UUID, date time.Time) (bool, error)
	SetOutcome(ctx context.Context, id uuid.UUID, status models.InspectionStatus) (bool, error)
	MarkFeePaid(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ListUnpaidActiveBefore(ctx context.Context, cutoff time.Time) ([]models.Inspection, error)
}

type inspectionRepository struct {
	db *gorm.DB
}

// NewInspectionRepository creates a new inspection repository
func NewInspectionRepository(db *gorm.DB) InspectionRepository {
	return &inspectionRepository{db: db}
}

func (r *inspectionRepository) Create(ctx context.Context, inspection *models.Inspection) error {
	if err := r.db.WithContext(ctx).Create(inspection).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewSlotUnavailableError(inspection.SlotID)
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *inspectionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Inspection, error) {
	return first[models.Inspection](ctx, r.db, "Inspection", id)
}

func (r *inspectionRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Inspection, error) {
	return firstForUpdate[models.Inspection](ctx, r.db, "Inspection", id)
}

func (r *inspectionRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID, status models.InspectionStatus) ([]models.Inspection, error) {
	var inspections []models.Inspection
	q := r.db.WithContext(ctx).Where("organization_id = ?", orgID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Order("created_at DESC").Find(&inspections).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return inspections, nil
}

// Cancel moves an active inspection still bound to slotID into a cancelled
// status. It reports false when the inspection was no longer active on that slot.
func (r *inspectionRepository) Cancel(ctx context.Context, id, slotID uuid.UUID, status models.InspectionStatus, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Inspection{}).
		Where("id = ? AND slot_id = ? AND status IN ?", id, slotID, activeInspectionStatuses).
		Updates(map[string]interface{}{
			"status":       status,
			"cancelled_at": at,
		})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Repoint moves an active inspection from one slot to another, dates it on
// the new slot and marks it rescheduled.
func (r *inspectionRepository) Repoint(ctx context.Context, id, fromSlot, toSlot uuid.UUID, date time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Inspection{}).
		Where("id = ? AND slot_id = ? AND status IN ?", id, fromSlot, activeInspectionStatuses).
		Updates(map[string]interface{}{
			"slot_id":         toSlot,
			"inspection_date": date,
			"status":          models.InspectionRescheduled,
		})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return false, models.NewSlotUnavailableError(toSlot)
		}
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *inspectionRepository) SetOutcome(ctx context.Context, id uuid.UUID, status models.InspectionStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Inspection{}).
		Where("id = ? AND status IN ?", id, activeInspectionStatuses).
		Update("status", status)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// MarkFeePaid sets fee_paid once. It reports false when the fee was already recorded.
func (r *inspectionRepository) MarkFeePaid(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Inspection{}).
		Where("id = ? AND fee_paid = ?", id, false).
		Updates(map[string]interface{}{
			"fee_paid":    true,
			"fee_paid_at": at,
		})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *inspectionRepository) ListUnpaidActiveBefore(ctx context.Context, cutoff time.Time) ([]models.Inspection, error) {
	var inspections []models.Inspection
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND fee_paid = ? AND created_at < ?", activeInspectionStatuses, false, cutoff).
		Order("created_at ASC").
		Find(&inspections).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return inspections, nil
}
