package service

import (
	"context"
	"strings"
	"time"

	"keyhouse/internal/cache"
	"keyhouse/internal/events"
	"keyhouse/internal/models"
	"keyhouse/internal/observability"
	"keyhouse/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const reviewComponent = "review_engine"

// ReviewService runs the ordered multi-stage approval workflow shared by
// offer letters, escrow attendance and document packages.
type ReviewService struct {
	store     *repository.Store
	cache     *cache.Cache
	publisher events.Publisher
	onOutcome ReviewOutcomeHandler
	now       func() time.Time
}

// ReviewOutcomeHandler updates the resource covered by a review request that
// just completed or was declined. It runs inside the approval transaction,
// so an error rolls the approval back.
type ReviewOutcomeHandler func(ctx context.Context, tx *repository.Store, req *models.ReviewRequest) error

type CreateReviewRequestInput struct {
	OrganizationType models.OrganizationType
	OrganizationID   uuid.UUID
	ResourceType     models.ReviewResourceType
	ResourceID       uuid.UUID
}

type RecordApprovalInput struct {
	ReviewRequestID uuid.UUID
	StageTypeID     uuid.UUID
	OrganizationID  uuid.UUID
	ApproverID      uuid.UUID
	Decision        models.ReviewDecision
	Comment         string
}

type StageConfigInput struct {
	OrganizationType models.OrganizationType
	ResourceType     models.ReviewResourceType
	StageType        string
	Name             string
	Position         int
	Enabled          bool
}

func NewReviewService(store *repository.Store, c *cache.Cache, publisher events.Publisher) *ReviewService {
	return &ReviewService{store: store, cache: c, publisher: publisher, now: utcNow}
}

// OnOutcome registers the handler run when a request leaves pending.
func (s *ReviewService) OnOutcome(fn ReviewOutcomeHandler) {
	s.onOutcome = fn
}

// ConfigureStage inserts or updates one row of the stage configuration table.
func (s *ReviewService) ConfigureStage(ctx context.Context, in StageConfigInput) (*models.ReviewRequestTypeStage, error) {
	if !in.OrganizationType.Valid() || !in.ResourceType.Valid() {
		return nil, models.NewValidationError("Unknown organization type or resource type")
	}
	in.StageType = strings.TrimSpace(in.StageType)
	if in.StageType == "" {
		return nil, models.NewValidationError("Stage type is required")
	}

	stage := &models.ReviewRequestTypeStage{
		OrganizationType: in.OrganizationType,
		ResourceType:     in.ResourceType,
		StageType:        in.StageType,
		Name:             in.Name,
		Position:         in.Position,
		Enabled:          in.Enabled,
	}
	if err := s.store.Reviews.UpsertTypeStage(ctx, stage); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, cache.StageConfigKey(string(in.OrganizationType), string(in.ResourceType)))

	// The upsert path leaves the caller's ID unset on update; re-read by key.
	stages, err := s.store.Reviews.ListTypeStages(ctx, in.OrganizationType, in.ResourceType)
	if err != nil {
		return nil, err
	}
	for i := range stages {
		if stages[i].StageType == in.StageType {
			return &stages[i], nil
		}
	}
	return nil, models.NewNotFoundError("ReviewRequestTypeStage", in.StageType)
}

// ListStages returns the configured stages for an organization type and
// resource type, enabled or not.
func (s *ReviewService) ListStages(ctx context.Context, orgType models.OrganizationType, resourceType models.ReviewResourceType) ([]models.ReviewRequestTypeStage, error) {
	if !orgType.Valid() || !resourceType.Valid() {
		return nil, models.NewValidationError("Unknown organization type or resource type")
	}
	var stages []models.ReviewRequestTypeStage
	err := s.cache.Aside(ctx, cache.StageConfigKey(string(orgType), string(resourceType)), &stages, cache.StageConfigTTL, func() error {
		var err error
		stages, err = s.store.Reviews.ListTypeStages(ctx, orgType, resourceType)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stages, nil
}

// SetStageEnabled toggles a configured stage. Existing review requests keep
// the snapshot taken when they were created.
func (s *ReviewService) SetStageEnabled(ctx context.Context, actor models.Actor, stageID uuid.UUID, enabled bool) (stage *models.ReviewRequestTypeStage, err error) {
	ctx, span := begin(ctx, reviewComponent, "SetStageEnabled", idAttr("stage_id", stageID), attribute.Bool("enabled", enabled))
	defer func() { finish(ctx, span, reviewComponent, "SetStageEnabled", err) }()

	if err := requireOrganization(actor, models.OrganizationTypePlatform); err != nil {
		return nil, err
	}
	stage, err = s.store.Reviews.SetTypeStageEnabled(ctx, stageID, enabled)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, cache.StageConfigKey(string(stage.OrganizationType), string(stage.ResourceType)))
	return stage, nil
}

// CreateReviewRequest snapshots the currently enabled stages for the
// organization type and resource type into a new pending request.
func (s *ReviewService) CreateReviewRequest(ctx context.Context, in CreateReviewRequestInput) (req *models.ReviewRequest, err error) {
	ctx, span := begin(ctx, reviewComponent, "CreateReviewRequest",
		attribute.String("resource_type", string(in.ResourceType)), idAttr("resource_id", in.ResourceID))
	defer func() { finish(ctx, span, reviewComponent, "CreateReviewRequest", err) }()

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		req, err = s.createRequest(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *ReviewService) createRequest(ctx context.Context, tx *repository.Store, in CreateReviewRequestInput) (*models.ReviewRequest, error) {
	if !in.OrganizationType.Valid() || !in.ResourceType.Valid() {
		return nil, models.NewValidationError("Unknown organization type or resource type")
	}
	if in.OrganizationID == uuid.Nil || in.ResourceID == uuid.Nil {
		return nil, models.NewValidationError("Organization and resource are required")
	}

	enabled, err := tx.Reviews.ListEnabledTypeStages(ctx, in.OrganizationType, in.ResourceType)
	if err != nil {
		return nil, err
	}
	if len(enabled) == 0 {
		return nil, models.NewValidationError("No review stages are enabled for " +
			string(in.OrganizationType) + "/" + string(in.ResourceType))
	}

	snapshot := make([]models.ReviewRequestStage, 0, len(enabled))
	for _, st := range enabled {
		snapshot = append(snapshot, models.ReviewRequestStage{
			StageTypeID: st.ID,
			StageType:   st.StageType,
			Position:    st.Position,
		})
	}

	req := &models.ReviewRequest{
		OrganizationType: in.OrganizationType,
		OrganizationID:   in.OrganizationID,
		ResourceType:     in.ResourceType,
		ResourceID:       in.ResourceID,
		Status:           models.ReviewPending,
	}
	if err := tx.Reviews.CreateRequest(ctx, req, snapshot); err != nil {
		return nil, err
	}
	return req, nil
}

// RecordApproval upserts one stage decision. The request row is locked and
// completion is recomputed from the approvals read inside the same
// transaction. A declined stage declines the whole request at once.
// completed reports whether this call moved the request to complete.
func (s *ReviewService) RecordApproval(ctx context.Context, in RecordApprovalInput) (req *models.ReviewRequest, completed bool, err error) {
	ctx, span := begin(ctx, reviewComponent, "RecordApproval",
		idAttr("review_request_id", in.ReviewRequestID), idAttr("stage_type_id", in.StageTypeID),
		attribute.String("decision", string(in.Decision)))
	defer func() { finish(ctx, span, reviewComponent, "RecordApproval", err) }()

	if in.Decision != models.DecisionApproved && in.Decision != models.DecisionDeclined {
		return nil, false, models.NewValidationError("Decision must be approved or declined")
	}

	now := s.now()
	var declined bool
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		locked, err := tx.Reviews.GetRequestForUpdate(ctx, in.ReviewRequestID)
		if err != nil {
			return err
		}
		if locked.OrganizationID != in.OrganizationID {
			return models.NewForbiddenError("Only the assigned organization may review this request")
		}
		if locked.Status != models.ReviewPending {
			return models.NewReviewNotActiveError(locked.ID, locked.Status)
		}

		snapshot, err := tx.Reviews.ListSnapshot(ctx, locked.ID)
		if err != nil {
			return err
		}
		if !containsStage(snapshot, in.StageTypeID) {
			return models.NewValidationError("Stage is not part of this review request")
		}

		if err := tx.Reviews.UpsertApproval(ctx, &models.ReviewRequestApproval{
			ReviewRequestID: locked.ID,
			StageTypeID:     in.StageTypeID,
			OrganizationID:  in.OrganizationID,
			ApproverID:      in.ApproverID,
			Decision:        in.Decision,
			Comment:         in.Comment,
			DecidedAt:       now,
		}); err != nil {
			return err
		}

		if in.Decision == models.DecisionDeclined {
			if _, err := tx.Reviews.MarkRequest(ctx, locked.ID, models.ReviewDeclined, now); err != nil {
				return err
			}
			declined = true
		} else {
			approvals, err := tx.Reviews.ListApprovals(ctx, locked.ID)
			if err != nil {
				return err
			}
			if allStagesApproved(snapshot, approvals) {
				completed, err = tx.Reviews.MarkRequest(ctx, locked.ID, models.ReviewComplete, now)
				if err != nil {
					return err
				}
			}
		}

		req, err = tx.Reviews.GetRequest(ctx, locked.ID)
		if err != nil {
			return err
		}
		if req.Status != models.ReviewPending && s.onOutcome != nil {
			return s.onOutcome(ctx, tx, req)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	observability.ReviewDecisions.WithLabelValues(string(req.ResourceType), string(in.Decision)).Inc()
	switch {
	case declined:
		events.Emit(ctx, s.publisher, s.outcomeEvent(events.ReviewDeclined, req, in.ApproverID))
	case completed:
		events.Emit(ctx, s.publisher, s.outcomeEvent(events.ReviewCompleted, req, in.ApproverID))
	}
	return req, completed, nil
}

func (s *ReviewService) outcomeEvent(t events.Type, req *models.ReviewRequest, actorID uuid.UUID) events.Event {
	return events.New(t, "review_request", req.ID, actorID, map[string]interface{}{
		"resource_type": req.ResourceType,
		"resource_id":   req.ResourceID,
	})
}

func (s *ReviewService) GetRequest(ctx context.Context, id uuid.UUID) (*models.ReviewRequest, error) {
	return s.store.Reviews.GetRequest(ctx, id)
}

func containsStage(snapshot []models.ReviewRequestStage, stageTypeID uuid.UUID) bool {
	for _, st := range snapshot {
		if st.StageTypeID == stageTypeID {
			return true
		}
	}
	return false
}

// allStagesApproved reports whether every snapshot stage has an approved
// decision.
func allStagesApproved(snapshot []models.ReviewRequestStage, approvals []models.ReviewRequestApproval) bool {
	approved := make(map[uuid.UUID]bool, len(approvals))
	for _, a := range approvals {
		if a.Decision == models.DecisionApproved {
			approved[a.StageTypeID] = true
		}
	}
	for _, st := range snapshot {
		if !approved[st.StageTypeID] {
			return false
		}
	}
	return len(snapshot) > 0
}
