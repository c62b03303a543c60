package repository

import (
	"context"
	"errors"

	"keyhouse/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SlotRepository persists availability templates and their bookable slots.
type SlotRepository interface {
	CreateTemplate(ctx context.Context, template *models.DayAvailability) error
	GetTemplate(ctx context.Context, id uuid.UUID) (*models.DayAvailability, error)
	ListTemplates(ctx context.Context, orgID uuid.UUID) ([]models.DayAvailability, error)
	CreateSlot(ctx context.Context, slot *models.DayAvailabilitySlot) error
	GetSlot(ctx context.Context, id uuid.UUID) (*models.DayAvailabilitySlot, error)
	ListAvailable(ctx context.Context, orgID uuid.UUID) ([]models.DayAvailabilitySlot, error)
	Reserve(ctx context.Context, id uuid.UUID) error
	ReleaseIfUnheld(ctx context.Context, id uuid.UUID) (bool, error)
}

type slotRepository struct {
	db *gorm.DB
}

// NewSlotRepository creates a new slot repository
func NewSlotRepository(db *gorm.DB) SlotRepository {
	return &slotRepository{db: db}
}

func (r *slotRepository) CreateTemplate(ctx context.Context, template *models.DayAvailability) error {
	if err := r.db.WithContext(ctx).Omit("Slots").Create(template).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *slotRepository) GetTemplate(ctx context.Context, id uuid.UUID) (*models.DayAvailability, error) {
	var template models.DayAvailability
	if err := r.db.WithContext(ctx).
		Preload("Slots", func(db *gorm.DB) *gorm.DB { return db.Order("day_of_week ASC") }).
		Where("id = ?", id).
		First(&template).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("DayAvailability", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &template, nil
}

func (r *slotRepository) ListTemplates(ctx context.Context, orgID uuid.UUID) ([]models.DayAvailability, error) {
	var templates []models.DayAvailability
	if err := r.db.WithContext(ctx).
		Preload("Slots").
		Where("organization_id = ?", orgID).
		Order("created_at ASC").
		Find(&templates).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return templates, nil
}

func (r *slotRepository) CreateSlot(ctx context.Context, slot *models.DayAvailabilitySlot) error {
	if err := r.db.WithContext(ctx).Create(slot).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewDuplicateSlotError(slot.DayAvailabilityID, slot.DayOfWeek)
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *slotRepository) GetSlot(ctx context.Context, id uuid.UUID) (*models.DayAvailabilitySlot, error) {
	return first[models.DayAvailabilitySlot](ctx, r.db, "DayAvailabilitySlot", id)
}

func (r *slotRepository) ListAvailable(ctx context.Context, orgID uuid.UUID) ([]models.DayAvailabilitySlot, error) {
	var slots []models.DayAvailabilitySlot
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? AND is_available = ?", orgID, true).
		Order("day_of_week ASC, start_time ASC").
		Find(&slots).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return slots, nil
}

// Reserve flips is_available from true to false in one conditional write.
// Losing the race yields SlotUnavailable; an unknown id yields NotFound.
func (r *slotRepository) Reserve(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.DayAvailabilitySlot{}).
		Where("id = ? AND is_available = ?", id, true).
		Update("is_available", false)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.DayAvailabilitySlot{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return models.NewInternalError(err)
	}
	if count == 0 {
		return models.NewNotFoundError("DayAvailabilitySlot", id)
	}
	return models.NewSlotUnavailableError(id)
}

// ReleaseIfUnheld marks the slot available unless an active inspection still
// references it. It reports whether the flag was flipped.
func (r *slotRepository) ReleaseIfUnheld(ctx context.Context, id uuid.UUID) (bool, error) {
	held := r.db.Model(&models.Inspection{}).
		Select("1").
		Where("slot_id = ? AND status IN ?", id, []models.InspectionStatus{models.InspectionScheduled, models.InspectionRescheduled})

	res := r.db.WithContext(ctx).
		Model(&models.DayAvailabilitySlot{}).
		Where("id = ? AND is_available = ?", id, false).
		Where("NOT EXISTS (?)", held).
		Update("is_available", true)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}
