package repository

import (
	"context"
	"errors"
	"time"

	"keyhouse/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReviewRepository persists the stage configuration table, review requests,
// their stage snapshots and approvals.
type ReviewRepository interface {
	UpsertTypeStage(ctx context.Context, stage *models.ReviewRequestTypeStage) error
	ListTypeStages(ctx context.Context, orgType models.OrganizationType, resourceType models.ReviewResourceType) ([]models.ReviewRequestTypeStage, error)
	ListEnabledTypeStages(ctx context.Context, orgType models.OrganizationType, resourceType models.ReviewResourceType) ([]models.ReviewRequestTypeStage, error)
	SetTypeStageEnabled(ctx context.Context, id uuid.UUID, enabled bool) (*models.ReviewRequestTypeStage, error)

	CreateRequest(ctx context.Context, req *models.ReviewRequest, stages []models.ReviewRequestStage) error
	GetRequest(ctx context.Context, id uuid.UUID) (*models.ReviewRequest, error)
	GetRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.ReviewRequest, error)
	ListSnapshot(ctx context.Context, reviewRequestID uuid.UUID) ([]models.ReviewRequestStage, error)
	UpsertApproval(ctx context.Context, approval *models.ReviewRequestApproval) error
	ListApprovals(ctx context.Context, reviewRequestID uuid.UUID) ([]models.ReviewRequestApproval, error)
	MarkRequest(ctx context.Context, id uuid.UUID, status models.ReviewStatus, at time.Time) (bool, error)
}

type reviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository creates a new review repository
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

// UpsertTypeStage inserts or updates the configuration row keyed by
// organization type, resource type and stage type.
func (r *reviewRepository) UpsertTypeStage(ctx context.Context, stage *models.ReviewRequestTypeStage) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_type"}, {Name: "resource_type"}, {Name: "stage_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "position", "enabled", "updated_at"}),
	}).Create(stage).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *reviewRepository) ListTypeStages(ctx context.Context, orgType models.OrganizationType, resourceType models.ReviewResourceType) ([]models.ReviewRequestTypeStage, error) {
	var stages []models.ReviewRequestTypeStage
	q := r.db.WithContext(ctx).Where("organization_type = ?", orgType)
	if resourceType != "" {
		q = q.Where("resource_type = ?", resourceType)
	}
	if err := q.Order("resource_type ASC, position ASC").Find(&stages).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return stages, nil
}

func (r *reviewRepository) ListEnabledTypeStages(ctx context.Context, orgType models.OrganizationType, resourceType models.ReviewResourceType) ([]models.ReviewRequestTypeStage, error) {
	var stages []models.ReviewRequestTypeStage
	if err := r.db.WithContext(ctx).
		Where("organization_type = ? AND resource_type = ? AND enabled = ?", orgType, resourceType, true).
		Order("position ASC").
		Find(&stages).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return stages, nil
}

func (r *reviewRepository) SetTypeStageEnabled(ctx context.Context, id uuid.UUID, enabled bool) (*models.ReviewRequestTypeStage, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ReviewRequestTypeStage{}).
		Where("id = ?", id).
		Update("enabled", enabled)
	if res.Error != nil {
		return nil, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.NewNotFoundError("ReviewRequestTypeStage", id)
	}
	return first[models.ReviewRequestTypeStage](ctx, r.db, "ReviewRequestTypeStage", id)
}

func (r *reviewRepository) CreateRequest(ctx context.Context, req *models.ReviewRequest, stages []models.ReviewRequestStage) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(req).Error; err != nil {
		return models.NewInternalError(err)
	}
	if len(stages) == 0 {
		return nil
	}
	for i := range stages {
		stages[i].ReviewRequestID = req.ID
	}
	if err := r.db.WithContext(ctx).Create(&stages).Error; err != nil {
		return models.NewInternalError(err)
	}
	req.Stages = stages
	return nil
}

func (r *reviewRepository) GetRequest(ctx context.Context, id uuid.UUID) (*models.ReviewRequest, error) {
	var req models.ReviewRequest
	if err := r.db.WithContext(ctx).
		Preload("Stages", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Approvals").
		Where("id = ?", id).
		First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("ReviewRequest", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

// GetRequestForUpdate locks the request row; concurrent approvals of the
// same request serialize on it.
func (r *reviewRepository) GetRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.ReviewRequest, error) {
	return firstForUpdate[models.ReviewRequest](ctx, r.db, "ReviewRequest", id)
}

func (r *reviewRepository) ListSnapshot(ctx context.Context, reviewRequestID uuid.UUID) ([]models.ReviewRequestStage, error) {
	var stages []models.ReviewRequestStage
	if err := r.db.WithContext(ctx).
		Where("review_request_id = ?", reviewRequestID).
		Order("position ASC").
		Find(&stages).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return stages, nil
}

// UpsertApproval writes the single approval row for a (request, stage) pair.
func (r *reviewRepository) UpsertApproval(ctx context.Context, approval *models.ReviewRequestApproval) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "review_request_id"}, {Name: "stage_type_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"organization_id", "approver_id", "decision", "comment", "decided_at", "updated_at"}),
	}).Create(approval).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *reviewRepository) ListApprovals(ctx context.Context, reviewRequestID uuid.UUID) ([]models.ReviewRequestApproval, error) {
	var approvals []models.ReviewRequestApproval
	if err := r.db.WithContext(ctx).
		Where("review_request_id = ?", reviewRequestID).
		Find(&approvals).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return approvals, nil
}

// MarkRequest moves a pending request to complete or declined.
func (r *reviewRepository) MarkRequest(ctx context.Context, id uuid.UUID, status models.ReviewStatus, at time.Time) (bool, error) {
	updates := map[string]interface{}{"status": status}
	switch status {
	case models.ReviewComplete:
		updates["completed_at"] = at
	case models.ReviewDeclined:
		updates["declined_at"] = at
	}

	res := r.db.WithContext(ctx).
		Model(&models.ReviewRequest{}).
		Where("id = ? AND status = ?", id, models.ReviewPending).
		Updates(updates)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}
