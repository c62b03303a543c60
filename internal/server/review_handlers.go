package server

import (
	"keyhouse/internal/models"
	"keyhouse/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ListReviewStages handles GET /api/review-stages?organization_type=&resource_type=
func (s *Server) ListReviewStages(c *fiber.Ctx) error {
	stages, err := s.svc.Reviews.ListStages(c.UserContext(),
		models.OrganizationType(c.Query("organization_type")),
		models.ReviewResourceType(c.Query("resource_type")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stages)
}

// ConfigureReviewStage handles POST /api/review-stages (platform only)
func (s *Server) ConfigureReviewStage(c *fiber.Ctx) error {
	if err := requirePlatform(c); err != nil {
		return nil
	}
	var req struct {
		OrganizationType models.OrganizationType   `json:"organization_type"`
		ResourceType     models.ReviewResourceType `json:"resource_type"`
		StageType        string                    `json:"stage_type"`
		Name             string                    `json:"name"`
		Position         int                       `json:"position"`
		Enabled          bool                      `json:"enabled"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	stage, err := s.svc.Reviews.ConfigureStage(c.UserContext(), service.StageConfigInput{
		OrganizationType: req.OrganizationType,
		ResourceType:     req.ResourceType,
		StageType:        req.StageType,
		Name:             req.Name,
		Position:         req.Position,
		Enabled:          req.Enabled,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(stage)
}

// SetReviewStageEnabled handles PATCH /api/review-stages/:id
func (s *Server) SetReviewStageEnabled(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.Enabled == nil {
		return respondError(c, models.NewValidationError("enabled is required"))
	}

	stage, err := s.svc.Reviews.SetStageEnabled(c.UserContext(), actor(c), id, *req.Enabled)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(stage)
}

// CreateReviewRequest handles POST /api/review-requests. The request is
// assigned to the caller's organization.
func (s *Server) CreateReviewRequest(c *fiber.Ctx) error {
	a := actor(c)
	if !a.IsOrganization() {
		return respondError(c, models.NewForbiddenError("organization membership required"))
	}
	var req struct {
		ResourceType models.ReviewResourceType `json:"resource_type"`
		ResourceID   uuid.UUID                 `json:"resource_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.ResourceID == uuid.Nil {
		return respondError(c, models.NewValidationError("resource_id is required"))
	}

	request, err := s.svc.Reviews.CreateReviewRequest(c.UserContext(), service.CreateReviewRequestInput{
		OrganizationType: a.OrganizationType,
		OrganizationID:   a.OrganizationID,
		ResourceType:     req.ResourceType,
		ResourceID:       req.ResourceID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(request)
}

// GetReviewRequest handles GET /api/review-requests/:id
func (s *Server) GetReviewRequest(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	request, err := s.svc.Reviews.GetRequest(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	if a := actor(c); !a.ActsFor(request.OrganizationID) && !isPlatform(a) {
		return respondError(c, models.NewForbiddenError("Only the assigned organization may view this review"))
	}
	return c.JSON(request)
}

// RecordApproval handles POST /api/review-requests/:id/approvals. A request
// that completes or is declined updates its covered resource in the same
// transaction.
func (s *Server) RecordApproval(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		StageTypeID uuid.UUID             `json:"stage_type_id"`
		Decision    models.ReviewDecision `json:"decision"`
		Comment     string                `json:"comment"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	a := actor(c)
	request, completed, err := s.svc.Reviews.RecordApproval(c.UserContext(), service.RecordApprovalInput{
		ReviewRequestID: id,
		StageTypeID:     req.StageTypeID,
		OrganizationID:  a.OrganizationID,
		ApproverID:      a.UserID,
		Decision:        req.Decision,
		Comment:         req.Comment,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"review_request": request,
		"completed":      completed,
	})
}
