package service

import (
	"context"
	"log/slog"
	"time"

	"keyhouse/internal/events"
	"keyhouse/internal/models"
	"keyhouse/internal/repository"
	"keyhouse/internal/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const loanComponent = "loan_decisioning"

// LoanService records lender decisions and tracks repayment installments.
type LoanService struct {
	store     *repository.Store
	publisher events.Publisher
	now       func() time.Time
}

type DecideLoanInput struct {
	DecisionID     uuid.UUID
	Approve        bool
	Reason         string
	PrincipalMinor int64
	TenorMonths    int
}

func NewLoanService(store *repository.Store, publisher events.Publisher) *LoanService {
	return &LoanService{store: store, publisher: publisher, now: utcNow}
}

// Decide approves or declines a pending decision. Only the chosen lender may
// decide, and only after the processing fee is paid. Approval generates the
// monthly repayment schedule.
func (s *LoanService) Decide(ctx context.Context, actor models.Actor, in DecideLoanInput) (decision *models.LoanDecision, err error) {
	ctx, span := begin(ctx, loanComponent, "Decide", idAttr("loan_decision_id", in.DecisionID), attribute.Bool("approve", in.Approve))
	defer func() { finish(ctx, span, loanComponent, "Decide", err) }()

	if err := validation.ValidateReason(in.Reason); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if in.Approve {
		if err := validation.ValidateLoanTerms(in.PrincipalMinor, in.TenorMonths); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}

	now := s.now()
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		current, err := tx.Loans.GetDecisionForUpdate(ctx, in.DecisionID)
		if err != nil {
			return err
		}
		if !actor.ActsFor(current.LenderOrganizationID) {
			return models.NewForbiddenError("Only the chosen lender may decide")
		}
		if current.Status != models.LoanDecisionPending {
			return models.NewInvalidTransitionError("loan decision is already " + string(current.Status))
		}
		if current.ProcessingFeePaidAt == nil {
			return models.NewPreconditionError("processing fee has not been paid")
		}

		status := models.LoanDecisionDeclined
		updates := map[string]interface{}{
			"reason":     in.Reason,
			"decided_by": actor.UserID,
			"decided_at": now,
		}
		if in.Approve {
			status = models.LoanDecisionApproved
			updates["principal_minor"] = in.PrincipalMinor
			updates["tenor_months"] = in.TenorMonths
		}

		ok, err := tx.Loans.Decide(ctx, current.ID, status, updates)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewInvalidTransitionError("loan decision changed concurrently")
		}
		if in.Approve {
			if err := tx.Loans.CreateRepayments(ctx, RepaymentSchedule(current.ID, in.PrincipalMinor, in.TenorMonths, now)); err != nil {
				return err
			}
		}

		decision, err = tx.Loans.GetDecision(ctx, current.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	events.Emit(ctx, s.publisher, events.New(events.LoanDecided, "loan_decision", decision.ID, actor.UserID, map[string]interface{}{
		"application_id": decision.ApplicationID,
		"status":         decision.Status,
	}))
	return decision, nil
}

// RepaymentSchedule splits principal into equal monthly installments, the
// first due one month after start. The remainder lands on the last one.
func RepaymentSchedule(decisionID uuid.UUID, principalMinor int64, tenorMonths int, start time.Time) []models.LoanRepayment {
	if tenorMonths <= 0 {
		return nil
	}
	base := principalMinor / int64(tenorMonths)
	remainder := principalMinor - base*int64(tenorMonths)

	rows := make([]models.LoanRepayment, 0, tenorMonths)
	for i := 1; i <= tenorMonths; i++ {
		amount := base
		if i == tenorMonths {
			amount += remainder
		}
		rows = append(rows, models.LoanRepayment{
			LoanDecisionID: decisionID,
			InstallmentNo:  i,
			DueDate:        start.AddDate(0, i, 0),
			AmountMinor:    amount,
			Status:         models.RepaymentPending,
		})
	}
	return rows
}

// RecordRepayment marks an installment paid. The buyer or the lender may record it.
func (s *LoanService) RecordRepayment(ctx context.Context, actor models.Actor, repaymentID uuid.UUID) (repayment *models.LoanRepayment, err error) {
	ctx, span := begin(ctx, loanComponent, "RecordRepayment", idAttr("repayment_id", repaymentID))
	defer func() { finish(ctx, span, loanComponent, "RecordRepayment", err) }()

	var applicationID uuid.UUID
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		current, err := tx.Loans.GetRepayment(ctx, repaymentID)
		if err != nil {
			return err
		}
		decision, err := tx.Loans.GetDecision(ctx, current.LoanDecisionID)
		if err != nil {
			return err
		}
		app, err := tx.Applications.GetByID(ctx, decision.ApplicationID)
		if err != nil {
			return err
		}
		if !isBuyer(actor, app.BuyerID) && !actor.ActsFor(decision.LenderOrganizationID) {
			return models.NewForbiddenError("Only the buyer or the lender may record repayments")
		}
		applicationID = app.ID

		ok, err := tx.Loans.MarkRepaymentPaid(ctx, current.ID, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return models.NewInvalidTransitionError("installment is already " + string(current.Status))
		}
		repayment, err = tx.Loans.GetRepayment(ctx, current.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	events.Emit(ctx, s.publisher, events.New(events.LoanRepaymentReceived, "loan_repayment", repayment.ID, actor.UserID, map[string]interface{}{
		"application_id": applicationID,
		"installment_no": repayment.InstallmentNo,
	}))
	return repayment, nil
}

// CheckOverdueLoans marks pending installments due before now as overdue
// and returns how many changed.
func (s *LoanService) CheckOverdueLoans(ctx context.Context, now time.Time) (overdue int, err error) {
	ctx, span := begin(ctx, loanComponent, "CheckOverdueLoans")
	defer func() { finish(ctx, span, loanComponent, "CheckOverdueLoans", err, slog.Int("overdue", overdue)) }()

	due, err := s.store.Loans.ListPendingDueBefore(ctx, now)
	if err != nil {
		return 0, err
	}
	var emitted []events.Event
	for _, r := range due {
		ok, err := s.store.Loans.MarkOverdue(ctx, r.ID)
		if err != nil {
			return overdue, err
		}
		if !ok {
			continue
		}
		overdue++
		emitted = append(emitted, events.New(events.LoanRepaymentOverdue, "loan_repayment", r.ID, uuid.Nil, map[string]interface{}{
			"loan_decision_id": r.LoanDecisionID,
			"installment_no":   r.InstallmentNo,
			"due_date":         r.DueDate,
		}))
	}
	events.Emit(ctx, s.publisher, emitted...)
	return overdue, nil
}

func (s *LoanService) GetDecision(ctx context.Context, id uuid.UUID) (*models.LoanDecision, error) {
	return s.store.Loans.GetDecision(ctx, id)
}

func (s *LoanService) ListRepayments(ctx context.Context, decisionID uuid.UUID) ([]models.LoanRepayment, error) {
	return s.store.Loans.ListRepayments(ctx, decisionID)
}

// createLoanDecision opens the pending decision when an application enters
// loan decisioning.
func createLoanDecision(ctx context.Context, tx *repository.Store, app *models.Application) (*models.LoanDecision, error) {
	if app.LoanOfferID == nil || app.LenderOrganizationID == nil {
		return nil, models.NewStageGateError(gateLoanOfferChosen)
	}
	d := &models.LoanDecision{
		ApplicationID:        app.ID,
		LoanOfferID:          *app.LoanOfferID,
		LenderOrganizationID: *app.LenderOrganizationID,
		Status:               models.LoanDecisionPending,
	}
	if err := tx.Loans.CreateDecision(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}
