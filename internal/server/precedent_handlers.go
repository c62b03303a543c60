package server

import (
	"time"

	"keyhouse/internal/models"

	"github.com/gofiber/fiber/v2"
)

// MarkPrecedentReviewed handles POST /api/condition-precedents/:id/reviews
func (s *Server) MarkPrecedentReviewed(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Reviewer models.ReviewerSide `json:"reviewer"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	cp, err := s.svc.Precedents.MarkReviewed(c.UserContext(), actor(c), id, req.Reviewer)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(cp)
}

// RevokePrecedentReview handles DELETE /api/condition-precedents/:id/reviews/:reviewer
func (s *Server) RevokePrecedentReview(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	side := models.ReviewerSide(c.Params("reviewer"))

	cp, err := s.svc.Precedents.RevokeReview(c.UserContext(), actor(c), id, side)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(cp)
}

// SetPrecedentDueDate handles PUT /api/condition-precedents/:id/due-date
func (s *Server) SetPrecedentDueDate(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		DueDate time.Time `json:"due_date"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.DueDate.IsZero() {
		return respondError(c, models.NewValidationError("due_date is required"))
	}

	cp, err := s.svc.Precedents.SetDueDate(c.UserContext(), actor(c), id, req.DueDate)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(cp)
}

// ExpirePrecedent handles POST /api/condition-precedents/:id/expire (platform only)
func (s *Server) ExpirePrecedent(c *fiber.Ctx) error {
	if err := requirePlatform(c); err != nil {
		return nil
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	cp, err := s.svc.Precedents.Expire(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(cp)
}

// GetPrecedent handles GET /api/condition-precedents/:id. Housing fund
// reviewers see every precedent; others must be party to the application.
func (s *Server) GetPrecedent(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	ctx := c.UserContext()
	cp, err := s.svc.Precedents.Get(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if a := actor(c); !(a.IsOrganization() && a.OrganizationType == models.OrganizationTypeHSF) {
		if _, err := s.svc.Applications.GetForActor(ctx, a, cp.ApplicationID); err != nil {
			return respondError(c, err)
		}
	}
	return c.JSON(cp)
}
