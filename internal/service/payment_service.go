package service

import (
	"context"
	"log/slog"
	"strings"

	"keyhouse/internal/events"
	"keyhouse/internal/models"
	"keyhouse/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const paymentComponent = "payment_confirmation"

// PaymentService applies confirmations from the external payment provider.
type PaymentService struct {
	store       *repository.Store
	inspections *InspectionService
	publisher   events.Publisher
}

type PaymentConfirmation struct {
	TransactionID string
	Purpose       models.PaymentPurpose
	ReferenceID   uuid.UUID
}

func NewPaymentService(store *repository.Store, inspections *InspectionService, publisher events.Publisher) *PaymentService {
	return &PaymentService{store: store, inspections: inspections, publisher: publisher}
}

// OnPaymentConfirmed unblocks the fee-gated step named by purpose. Each
// transaction id is applied once; replays report applied=false.
func (s *PaymentService) OnPaymentConfirmed(ctx context.Context, in PaymentConfirmation) (applied bool, err error) {
	ctx, span := begin(ctx, paymentComponent, "OnPaymentConfirmed",
		attribute.String("purpose", string(in.Purpose)), idAttr("reference_id", in.ReferenceID))
	defer func() {
		finish(ctx, span, paymentComponent, "OnPaymentConfirmed", err,
			slog.String("transaction_id", in.TransactionID), slog.Bool("applied", applied))
	}()

	in.TransactionID = strings.TrimSpace(in.TransactionID)
	if in.TransactionID == "" {
		return false, models.NewValidationError("Transaction id is required")
	}
	if in.ReferenceID == uuid.Nil {
		return false, models.NewValidationError("Reference id is required")
	}
	switch in.Purpose {
	case models.PaymentPurposeInspectionFee, models.PaymentPurposeProcessingFee, models.PaymentPurposeManagementFee:
	default:
		return false, models.NewValidationError("Unknown payment purpose: " + string(in.Purpose))
	}

	var emitted []events.Event
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		created, err := tx.Payments.RecordReceipt(ctx, &models.PaymentReceipt{
			TransactionID: in.TransactionID,
			Purpose:       in.Purpose,
			ReferenceID:   in.ReferenceID,
		})
		if err != nil || !created {
			return err
		}

		switch in.Purpose {
		case models.PaymentPurposeInspectionFee:
			inspection, confirmed, err := s.inspections.confirmFee(ctx, tx, in.ReferenceID)
			if err != nil {
				return err
			}
			if confirmed {
				emitted = append(emitted, s.inspections.confirmedEvent(inspection))
			}
		case models.PaymentPurposeProcessingFee, models.PaymentPurposeManagementFee:
			if _, err := tx.Loans.GetDecision(ctx, in.ReferenceID); err != nil {
				return err
			}
			if _, err := tx.Loans.MarkFeePaid(ctx, in.ReferenceID, in.Purpose, s.inspections.now()); err != nil {
				return err
			}
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}

	events.Emit(ctx, s.publisher, emitted...)
	return applied, nil
}
