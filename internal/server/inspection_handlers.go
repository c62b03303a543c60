package server

import (
	"keyhouse/internal/models"
	"keyhouse/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// canViewInspection allows the booking buyer, the hosting organization and
// platform operators.
func canViewInspection(a models.Actor, inspection *models.Inspection) bool {
	if a.IsOrganization() {
		return a.ActsFor(inspection.OrganizationID) || isPlatform(a)
	}
	return a.UserID == inspection.UserID
}

// BookInspection handles POST /api/inspections
func (s *Server) BookInspection(c *fiber.Ctx) error {
	var req struct {
		SlotID        uuid.UUID          `json:"slot_id"`
		ApplicationID *uuid.UUID         `json:"application_id,omitempty"`
		FullName      string             `json:"full_name"`
		Email         string             `json:"email"`
		Phone         string             `json:"phone"`
		MeetingMode   models.MeetingMode `json:"meeting_mode"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.SlotID == uuid.Nil {
		return respondError(c, models.NewValidationError("slot_id is required"))
	}

	inspection, err := s.svc.Inspections.BookSlot(c.UserContext(), actor(c), service.BookSlotInput{
		SlotID:        req.SlotID,
		ApplicationID: req.ApplicationID,
		FullName:      req.FullName,
		Email:         req.Email,
		Phone:         req.Phone,
		MeetingMode:   req.MeetingMode,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(inspection)
}

// GetInspection handles GET /api/inspections/:id
func (s *Server) GetInspection(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	inspection, err := s.svc.Inspections.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	if !canViewInspection(actor(c), inspection) {
		return respondError(c, models.NewForbiddenError("Not a party to this inspection"))
	}
	return c.JSON(inspection)
}

// CancelInspection handles POST /api/inspections/:id/cancel
func (s *Server) CancelInspection(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	inspection, err := s.svc.Inspections.Cancel(c.UserContext(), actor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(inspection)
}

// RecordInspectionOutcome handles POST /api/inspections/:id/outcome
func (s *Server) RecordInspectionOutcome(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Attended *bool `json:"attended"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.Attended == nil {
		return respondError(c, models.NewValidationError("attended is required"))
	}

	inspection, err := s.svc.Inspections.RecordOutcome(c.UserContext(), actor(c), id, *req.Attended)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(inspection)
}

// ListOrganizationInspections handles GET /api/organizations/:orgId/inspections?status=
func (s *Server) ListOrganizationInspections(c *fiber.Ctx) error {
	orgID, err := parseUUIDParam(c, "orgId")
	if err != nil {
		return nil
	}
	status := models.InspectionStatus(c.Query("status"))
	inspections, err := s.svc.Inspections.ListForOrganization(c.UserContext(), actor(c), orgID, status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(inspections)
}

// ProposeReschedule handles POST /api/inspections/:id/reschedules
func (s *Server) ProposeReschedule(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		ProposedSlotID uuid.UUID `json:"proposed_slot_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	request, err := s.svc.Reschedules.Propose(c.UserContext(), actor(c), id, req.ProposedSlotID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(request)
}

// ListReschedules handles GET /api/inspections/:id/reschedules
func (s *Server) ListReschedules(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	inspection, err := s.svc.Inspections.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	if !canViewInspection(actor(c), inspection) {
		return respondError(c, models.NewForbiddenError("Not a party to this inspection"))
	}
	requests, err := s.svc.Reschedules.ListForInspection(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(requests)
}

// GetReschedule handles GET /api/reschedules/:id
func (s *Server) GetReschedule(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	request, err := s.svc.Reschedules.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	inspection, err := s.svc.Inspections.Get(c.UserContext(), request.InspectionID)
	if err != nil {
		return respondError(c, err)
	}
	if !canViewInspection(actor(c), inspection) {
		return respondError(c, models.NewForbiddenError("Not a party to this inspection"))
	}
	return c.JSON(request)
}

// AcceptReschedule handles POST /api/reschedules/:id/accept
func (s *Server) AcceptReschedule(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	request, err := s.svc.Reschedules.Accept(c.UserContext(), actor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(request)
}

// RejectReschedule handles POST /api/reschedules/:id/reject
func (s *Server) RejectReschedule(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}

	request, err := s.svc.Reschedules.Reject(c.UserContext(), actor(c), id, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(request)
}
