package server

import (
	"time"

	"keyhouse/internal/models"
	"keyhouse/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// CreateApplication handles POST /api/applications
func (s *Server) CreateApplication(c *fiber.Ctx) error {
	var req struct {
		Type                    models.ApplicationType `json:"type"`
		DeveloperOrganizationID uuid.UUID              `json:"developer_organization_id"`
		BuyerID                 uuid.UUID              `json:"buyer_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	app, err := s.svc.Applications.Create(c.UserContext(), actor(c), service.CreateApplicationInput{
		Type:                    req.Type,
		DeveloperOrganizationID: req.DeveloperOrganizationID,
		BuyerID:                 req.BuyerID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(app)
}

// ListMyApplications handles GET /api/applications for the calling buyer.
func (s *Server) ListMyApplications(c *fiber.Ctx) error {
	apps, err := s.svc.Applications.ListForBuyer(c.UserContext(), actor(c).UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(apps)
}

// GetApplication handles GET /api/applications/:id
func (s *Server) GetApplication(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	app, err := s.svc.Applications.GetForActor(c.UserContext(), actor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(app)
}

// GetApplicationHistory handles GET /api/applications/:id/history
func (s *Server) GetApplicationHistory(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	ctx := c.UserContext()
	if _, err := s.svc.Applications.GetForActor(ctx, actor(c), id); err != nil {
		return respondError(c, err)
	}
	history, err := s.svc.Applications.History(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(history)
}

// GetNextStages handles GET /api/applications/:id/next-stages
func (s *Server) GetNextStages(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	ctx := c.UserContext()
	if _, err := s.svc.Applications.GetForActor(ctx, actor(c), id); err != nil {
		return respondError(c, err)
	}
	stages, err := s.svc.Applications.NextStages(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if stages == nil {
		stages = []models.ApplicationStageName{}
	}
	return c.JSON(fiber.Map{"next_stages": stages})
}

// AdvanceApplication handles POST /api/applications/:id/advance
func (s *Server) AdvanceApplication(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Target        models.ApplicationStageName  `json:"target"`
		ExpectedStage *models.ApplicationStageName `json:"expected_stage,omitempty"`
		Metadata      map[string]interface{}       `json:"metadata,omitempty"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.Target == "" {
		return respondError(c, models.NewValidationError("target is required"))
	}

	app, err := s.svc.Applications.Advance(c.UserContext(), actor(c), service.AdvanceInput{
		ApplicationID: id,
		Target:        req.Target,
		ExpectedStage: req.ExpectedStage,
		Metadata:      req.Metadata,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(app)
}

// DeclineApplication handles POST /api/applications/:id/decline
func (s *Server) DeclineApplication(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Reasons []string `json:"reasons"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	app, err := s.svc.Applications.Decline(c.UserContext(), actor(c), id, req.Reasons)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(app)
}

// RecordEligibility handles POST /api/applications/:id/eligibility
func (s *Server) RecordEligibility(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Eligible           *bool `json:"eligible"`
		MaxLoanAmountMinor int64 `json:"max_loan_amount_minor"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.Eligible == nil {
		return respondError(c, models.NewValidationError("eligible is required"))
	}

	eligibility, err := s.svc.Applications.RecordEligibility(c.UserContext(), actor(c), id, service.RecordEligibilityInput{
		Eligible:           *req.Eligible,
		MaxLoanAmountMinor: req.MaxLoanAmountMinor,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(eligibility)
}

// IssueOfferLetter handles POST /api/applications/:id/offer-letter
func (s *Server) IssueOfferLetter(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		DocumentURL string `json:"document_url"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	offer, err := s.svc.Applications.IssueOfferLetter(c.UserContext(), actor(c), id, req.DocumentURL)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(offer)
}

// AcceptOfferLetter handles POST /api/applications/:id/offer-letter/accept
func (s *Server) AcceptOfferLetter(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	offer, err := s.svc.Applications.AcceptOfferLetter(c.UserContext(), actor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(offer)
}

// OpenEscrow handles POST /api/applications/:id/escrow
func (s *Server) OpenEscrow(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		AttendanceDate time.Time `json:"attendance_date"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.AttendanceDate.IsZero() {
		return respondError(c, models.NewValidationError("attendance_date is required"))
	}

	escrow, err := s.svc.Applications.OpenEscrow(c.UserContext(), actor(c), id, req.AttendanceDate)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(escrow)
}

// ChooseLoanOffer handles POST /api/applications/:id/loan-offer
func (s *Server) ChooseLoanOffer(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		LoanOfferID          uuid.UUID `json:"loan_offer_id"`
		LenderOrganizationID uuid.UUID `json:"lender_organization_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.LoanOfferID == uuid.Nil || req.LenderOrganizationID == uuid.Nil {
		return respondError(c, models.NewValidationError("loan_offer_id and lender_organization_id are required"))
	}

	app, err := s.svc.Applications.ChooseLoanOffer(c.UserContext(), actor(c), id, req.LoanOfferID, req.LenderOrganizationID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(app)
}
