package repository

import (
	"context"
	"errors"
	"time"

	"keyhouse/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApplicationRepository persists applications, their stage history and the
// per-stage records owned by the developer and lender flows.
type ApplicationRepository interface {
	Create(ctx context.Context, app *models.Application) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Application, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Application, error)
	CompareAndSetStage(ctx context.Context, id uuid.UUID, expected, next models.ApplicationStageName, updates map[string]interface{}) (bool, error)
	SetReferences(ctx context.Context, id uuid.UUID, refs map[string]interface{}) error

	OpenStage(ctx context.Context, row *models.ApplicationStage) error
	CloseOpenStage(ctx context.Context, applicationID uuid.UUID, at time.Time) (int64, error)
	History(ctx context.Context, applicationID uuid.UUID) ([]models.ApplicationStage, error)

	SaveEligibility(ctx context.Context, e *models.Eligibility) error
	GetEligibility(ctx context.Context, id uuid.UUID) (*models.Eligibility, error)
	CreateOfferLetter(ctx context.Context, o *models.OfferLetter) error
	GetOfferLetter(ctx context.Context, id uuid.UUID) (*models.OfferLetter, error)
	FindOfferLetterByReview(ctx context.Context, reviewRequestID uuid.UUID) (*models.OfferLetter, error)
	UpdateOfferLetterStatus(ctx context.Context, id uuid.UUID, from []models.OfferLetterStatus, to models.OfferLetterStatus, extra map[string]interface{}) (bool, error)
	CreateEscrow(ctx context.Context, e *models.EscrowInformation) error
	GetEscrow(ctx context.Context, id uuid.UUID) (*models.EscrowInformation, error)
	FindEscrowByReview(ctx context.Context, reviewRequestID uuid.UUID) (*models.EscrowInformation, error)
	UpdateEscrowStatus(ctx context.Context, id uuid.UUID, to models.EscrowStatus) (bool, error)
}

type applicationRepository struct {
	db *gorm.DB
}

// NewApplicationRepository creates a new application repository
func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) Create(ctx context.Context, app *models.Application) error {
	if err := r.db.WithContext(ctx).Create(app).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *applicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	return first[models.Application](ctx, r.db, "Application", id)
}

func (r *applicationRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	return firstForUpdate[models.Application](ctx, r.db, "Application", id)
}

func (r *applicationRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Application, error) {
	var apps []models.Application
	if err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").
		Find(&apps).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return apps, nil
}

// CompareAndSetStage updates current_stage only if it still equals expected.
func (r *applicationRepository) CompareAndSetStage(ctx context.Context, id uuid.UUID, expected, next models.ApplicationStageName, updates map[string]interface{}) (bool, error) {
	values := map[string]interface{}{"current_stage": next}
	for k, v := range updates {
		values[k] = v
	}

	res := r.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("id = ? AND current_stage = ?", id, expected).
		Updates(values)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// SetReferences writes non-progression reference columns (offer letter id,
// loan offer id and similar).
func (r *applicationRepository) SetReferences(ctx context.Context, id uuid.UUID, refs map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("id = ?", id).
		Updates(refs)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Application", id)
	}
	return nil
}

func (r *applicationRepository) OpenStage(ctx context.Context, row *models.ApplicationStage) error {
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("application already has an open stage")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *applicationRepository) CloseOpenStage(ctx context.Context, applicationID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ApplicationStage{}).
		Where("application_id = ? AND exit_time IS NULL", applicationID).
		Update("exit_time", at)
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *applicationRepository) History(ctx context.Context, applicationID uuid.UUID) ([]models.ApplicationStage, error) {
	var rows []models.ApplicationStage
	if err := r.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("entry_time ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

func (r *applicationRepository) SaveEligibility(ctx context.Context, e *models.Eligibility) error {
	if err := r.db.WithContext(ctx).Save(e).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *applicationRepository) GetEligibility(ctx context.Context, id uuid.UUID) (*models.Eligibility, error) {
	return first[models.Eligibility](ctx, r.db, "Eligibility", id)
}

func (r *applicationRepository) CreateOfferLetter(ctx context.Context, o *models.OfferLetter) error {
	if err := r.db.WithContext(ctx).Create(o).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("application already has an offer letter")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *applicationRepository) GetOfferLetter(ctx context.Context, id uuid.UUID) (*models.OfferLetter, error) {
	return first[models.OfferLetter](ctx, r.db, "OfferLetter", id)
}

func (r *applicationRepository) FindOfferLetterByReview(ctx context.Context, reviewRequestID uuid.UUID) (*models.OfferLetter, error) {
	var o models.OfferLetter
	if err := r.db.WithContext(ctx).Where("review_request_id = ?", reviewRequestID).First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("OfferLetter for review", reviewRequestID)
		}
		return nil, models.NewInternalError(err)
	}
	return &o, nil
}

func (r *applicationRepository) UpdateOfferLetterStatus(ctx context.Context, id uuid.UUID, from []models.OfferLetterStatus, to models.OfferLetterStatus, extra map[string]interface{}) (bool, error) {
	values := map[string]interface{}{"status": to}
	for k, v := range extra {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.OfferLetter{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *applicationRepository) CreateEscrow(ctx context.Context, e *models.EscrowInformation) error {
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("application already has escrow information")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *applicationRepository) GetEscrow(ctx context.Context, id uuid.UUID) (*models.EscrowInformation, error) {
	return first[models.EscrowInformation](ctx, r.db, "EscrowInformation", id)
}

func (r *applicationRepository) FindEscrowByReview(ctx context.Context, reviewRequestID uuid.UUID) (*models.EscrowInformation, error) {
	var e models.EscrowInformation
	if err := r.db.WithContext(ctx).Where("review_request_id = ?", reviewRequestID).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("EscrowInformation for review", reviewRequestID)
		}
		return nil, models.NewInternalError(err)
	}
	return &e, nil
}

func (r *applicationRepository) UpdateEscrowStatus(ctx context.Context, id uuid.UUID, to models.EscrowStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.EscrowInformation{}).
		Where("id = ? AND status = ?", id, models.EscrowPendingReview).
		Update("status", to)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}
