package server

import (
	"keyhouse/internal/models"
	"keyhouse/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ConfirmPayment handles POST /api/payments/confirmations. The payment
// gateway relays provider confirmations with a platform token. Replays of a
// known transaction answer 200 with applied=false.
func (s *Server) ConfirmPayment(c *fiber.Ctx) error {
	if err := requirePlatform(c); err != nil {
		return nil
	}
	var req struct {
		TransactionID string                `json:"transaction_id"`
		Purpose       models.PaymentPurpose `json:"purpose"`
		ReferenceID   uuid.UUID             `json:"reference_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	applied, err := s.svc.Payments.OnPaymentConfirmed(c.UserContext(), service.PaymentConfirmation{
		TransactionID: req.TransactionID,
		Purpose:       req.Purpose,
		ReferenceID:   req.ReferenceID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"applied": applied})
}
