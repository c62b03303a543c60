package server

import (
	"keyhouse/internal/models"
	"keyhouse/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// loanDecisionForActor loads a decision visible to the caller.
func (s *Server) loanDecisionForActor(c *fiber.Ctx, id uuid.UUID) (*models.LoanDecision, error) {
	ctx := c.UserContext()
	decision, err := s.svc.Loans.GetDecision(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.svc.Applications.GetForActor(ctx, actor(c), decision.ApplicationID); err != nil {
		return nil, err
	}
	return decision, nil
}

// DecideLoan handles POST /api/loan-decisions/:id/decision
func (s *Server) DecideLoan(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Approve        *bool  `json:"approve"`
		Reason         string `json:"reason"`
		PrincipalMinor int64  `json:"principal_minor"`
		TenorMonths    int    `json:"tenor_months"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.Approve == nil {
		return respondError(c, models.NewValidationError("approve is required"))
	}

	decision, err := s.svc.Loans.Decide(c.UserContext(), actor(c), service.DecideLoanInput{
		DecisionID:     id,
		Approve:        *req.Approve,
		Reason:         req.Reason,
		PrincipalMinor: req.PrincipalMinor,
		TenorMonths:    req.TenorMonths,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(decision)
}

// GetLoanDecision handles GET /api/loan-decisions/:id
func (s *Server) GetLoanDecision(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	decision, err := s.loanDecisionForActor(c, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(decision)
}

// ListRepayments handles GET /api/loan-decisions/:id/repayments
func (s *Server) ListRepayments(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	if _, err := s.loanDecisionForActor(c, id); err != nil {
		return respondError(c, err)
	}
	repayments, err := s.svc.Loans.ListRepayments(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(repayments)
}

// RecordRepayment handles POST /api/repayments/:id/pay
func (s *Server) RecordRepayment(c *fiber.Ctx) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return nil
	}
	repayment, err := s.svc.Loans.RecordRepayment(c.UserContext(), actor(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(repayment)
}
