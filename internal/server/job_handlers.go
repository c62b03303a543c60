package server

import (
	"slices"
	"time"

	"keyhouse/internal/models"
	"keyhouse/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ListJobs handles GET /api/jobs (platform only)
func (s *Server) ListJobs(c *fiber.Ctx) error {
	if err := requirePlatform(c); err != nil {
		return nil
	}
	return c.JSON(fiber.Map{"jobs": s.svc.Jobs.Names()})
}

// RunJob handles POST /api/jobs/:name/run (platform only). confirm-inspection
// takes the inspection id as target.
func (s *Server) RunJob(c *fiber.Ctx) error {
	if err := requirePlatform(c); err != nil {
		return nil
	}
	name := c.Params("name")
	if name != service.JobConfirmInspection && !slices.Contains(s.svc.Jobs.Names(), name) {
		return respondError(c, models.NewNotFoundError("Job", name))
	}

	var req struct {
		Target uuid.UUID `json:"target"`
	}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}
	if name == service.JobConfirmInspection && req.Target == uuid.Nil {
		return respondError(c, models.NewValidationError("target is required"))
	}

	affected, err := s.svc.Jobs.Run(c.UserContext(), name, time.Now().UTC(), req.Target)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"job":      name,
		"affected": affected,
	})
}
