package server

import (
	"keyhouse/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateDayAvailability handles POST /api/availability/templates
func (s *Server) CreateDayAvailability(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	template, err := s.svc.Slots.CreateDayAvailability(c.UserContext(), actor(c), req.Name)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(template)
}

// ListDayAvailability handles GET /api/organizations/:orgId/availability/templates
func (s *Server) ListDayAvailability(c *fiber.Ctx) error {
	orgID, err := parseUUIDParam(c, "orgId")
	if err != nil {
		return nil
	}
	templates, err := s.svc.Slots.ListTemplates(c.UserContext(), orgID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(templates)
}

// GenerateSlot handles POST /api/availability/templates/:id/slots
func (s *Server) GenerateSlot(c *fiber.Ctx) error {
	templateID, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		DayOfWeek string `json:"day_of_week"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	slot, err := s.svc.Slots.GenerateSlot(c.UserContext(), actor(c), service.GenerateSlotInput{
		TemplateID: templateID,
		DayOfWeek:  req.DayOfWeek,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(slot)
}

// ListAvailableSlots handles GET /api/organizations/:orgId/slots
func (s *Server) ListAvailableSlots(c *fiber.Ctx) error {
	orgID, err := parseUUIDParam(c, "orgId")
	if err != nil {
		return nil
	}
	slots, err := s.svc.Slots.ListAvailableSlots(c.UserContext(), orgID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(slots)
}

// GetDayAvailability handles GET /api/availability/templates/:id
func (s *Server) GetDayAvailability(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	template, err := s.svc.Slots.GetTemplate(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(template)
}

// GetSlot handles GET /api/slots/:id
func (s *Server) GetSlot(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	slot, err := s.svc.Slots.GetSlot(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(slot)
}
