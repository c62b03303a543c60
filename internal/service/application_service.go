package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"keyhouse/internal/events"
	"keyhouse/internal/models"
	"keyhouse/internal/observability"
	"keyhouse/internal/repository"
	"keyhouse/internal/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
)

const applicationComponent = "application_orchestrator"

// ApplicationService is the top-level lifecycle state machine. It owns the
// stage history and composes the review engine, precedent tracker and loan
// decisioning through stage gates and entry side effects.
type ApplicationService struct {
	store     *repository.Store
	reviews   *ReviewService
	publisher events.Publisher
	now       func() time.Time
}

type CreateApplicationInput struct {
	Type                    models.ApplicationType
	DeveloperOrganizationID uuid.UUID
	BuyerID                 uuid.UUID
}

type AdvanceInput struct {
	ApplicationID uuid.UUID
	Target        models.ApplicationStageName
	// ExpectedStage, when set, must match the current stage.
	ExpectedStage *models.ApplicationStageName
	Metadata      map[string]interface{}
}

type RecordEligibilityInput struct {
	Eligible           bool
	MaxLoanAmountMinor int64
}

func NewApplicationService(store *repository.Store, reviews *ReviewService, publisher events.Publisher) *ApplicationService {
	s := &ApplicationService{store: store, reviews: reviews, publisher: publisher, now: utcNow}
	reviews.OnOutcome(s.applyReviewOutcome)
	return s
}

// isParticipant reports whether actor is a party to the application.
func isParticipant(actor models.Actor, app *models.Application) bool {
	switch {
	case isBuyer(actor, app.BuyerID):
		return true
	case actor.ActsFor(app.DeveloperOrganizationID):
		return true
	case app.LenderOrganizationID != nil && actor.ActsFor(*app.LenderOrganizationID):
		return true
	}
	return actor.IsOrganization() && actor.OrganizationType == models.OrganizationTypePlatform
}

// Create starts an application at the created stage.
func (s *ApplicationService) Create(ctx context.Context, actor models.Actor, in CreateApplicationInput) (app *models.Application, err error) {
	ctx, span := begin(ctx, applicationComponent, "Create", attribute.String("type", string(in.Type)))
	defer func() { finish(ctx, span, applicationComponent, "Create", err) }()

	if _, ok := stagePlans[in.Type]; !ok {
		return nil, models.NewValidationError("Unknown application type: " + string(in.Type))
	}
	if in.DeveloperOrganizationID == uuid.Nil {
		return nil, models.NewValidationError("Developer organization is required")
	}
	if !actor.IsOrganization() {
		if in.BuyerID != uuid.Nil && in.BuyerID != actor.UserID {
			return nil, models.NewForbiddenError("Buyers may only apply for themselves")
		}
		in.BuyerID = actor.UserID
	}
	if in.BuyerID == uuid.Nil {
		return nil, models.NewValidationError("Buyer is required")
	}

	now := s.now()
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		app = &models.Application{
			Type:                    in.Type,
			BuyerID:                 in.BuyerID,
			DeveloperOrganizationID: in.DeveloperOrganizationID,
			CurrentStage:            models.StageCreated,
		}
		if err := tx.Applications.Create(ctx, app); err != nil {
			return err
		}
		return tx.Applications.OpenStage(ctx, &models.ApplicationStage{
			ApplicationID: app.ID,
			Stage:         models.StageCreated,
			EntryTime:     now,
			ActorID:       actor.UserID,
		})
	})
	if err != nil {
		return nil, err
	}

	events.Emit(ctx, s.publisher, events.New(events.ApplicationCreated, "application", app.ID, actor.UserID, map[string]interface{}{
		"type": app.Type,
	}))
	return app, nil
}

// Advance moves the application to target. The current stage's exit gate
// and target's entry gate must hold; on success the open history row is
// closed, a new one opened and current_stage swapped with a conditional
// write keyed on the stage read at the start. Gate failures mutate nothing.
func (s *ApplicationService) Advance(ctx context.Context, actor models.Actor, in AdvanceInput) (app *models.Application, err error) {
	ctx, span := begin(ctx, applicationComponent, "Advance",
		idAttr("application_id", in.ApplicationID), attribute.String("target", string(in.Target)))
	defer func() {
		finish(ctx, span, applicationComponent, "Advance", err, slog.String("target", string(in.Target)))
	}()

	var from models.ApplicationStageName
	now := s.now()
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		snapshot, err := tx.Applications.GetByID(ctx, in.ApplicationID)
		if err != nil {
			return err
		}
		if !isParticipant(actor, snapshot) {
			return models.NewForbiddenError("Only parties to the application may advance it")
		}
		from = snapshot.CurrentStage
		span.AddAttributes(attribute.String("from", string(from)))
		if in.ExpectedStage != nil && *in.ExpectedStage != from {
			return models.NewStaleStageError(*in.ExpectedStage, from)
		}
		if from.Terminal() {
			return models.NewInvalidTransitionError("application is " + string(from))
		}
		if in.Target == models.StageDeclined {
			return models.NewValidationError("Use decline to move an application to declined")
		}

		plan := stagePlans[snapshot.Type]
		if !plan.includes(in.Target) {
			return models.NewValidationError("Stage " + string(in.Target) + " is not part of a " + string(snapshot.Type) + " application")
		}
		if !plan.reachable(from, in.Target) {
			return models.NewInvalidTransitionError("cannot advance from " + string(from) + " to " + string(in.Target))
		}

		if cond, err := exitGate(ctx, tx, snapshot); err != nil || cond != "" {
			if err != nil {
				return err
			}
			return models.NewStageGateError(cond)
		}
		if cond := entryGate(snapshot, in.Target); cond != "" {
			return models.NewStageGateError(cond)
		}

		refs := map[string]interface{}{}
		switch in.Target {
		case models.StageConditionPrecedent:
			cp, err := createPrecedent(ctx, tx, snapshot.ID)
			if err != nil {
				return err
			}
			refs["condition_precedent_id"] = cp.ID
		case models.StageLoanDecision:
			d, err := createLoanDecision(ctx, tx, snapshot)
			if err != nil {
				return err
			}
			refs["loan_decision_id"] = d.ID
		}

		ok, err := tx.Applications.CompareAndSetStage(ctx, snapshot.ID, from, in.Target, refs)
		if err != nil {
			return err
		}
		if !ok {
			fresh, err := tx.Applications.GetByID(ctx, snapshot.ID)
			if err != nil {
				return err
			}
			return models.NewStaleStageError(from, fresh.CurrentStage)
		}

		if err := s.moveHistory(ctx, tx, snapshot.ID, in.Target, actor.UserID, in.Metadata, now); err != nil {
			return err
		}
		app, err = tx.Applications.GetByID(ctx, snapshot.ID)
		return err
	})
	if err != nil {
		var appErr *models.AppError
		if errors.Is(err, models.ErrStageGateNotSatisfied) && errors.As(err, &appErr) {
			observability.StageGateFailures.WithLabelValues(appErr.Condition).Inc()
		}
		return nil, err
	}

	observability.StageTransitions.WithLabelValues(string(from), string(in.Target)).Inc()
	events.Emit(ctx, s.publisher, events.New(events.ApplicationAdvanced, "application", app.ID, actor.UserID, map[string]interface{}{
		"from": from,
		"to":   in.Target,
	}))
	return app, nil
}

// moveHistory closes the open history row and opens one for stage.
func (s *ApplicationService) moveHistory(ctx context.Context, tx *repository.Store, appID uuid.UUID, stage models.ApplicationStageName, actorID uuid.UUID, metadata map[string]interface{}, now time.Time) error {
	if _, err := tx.Applications.CloseOpenStage(ctx, appID, now); err != nil {
		return err
	}
	return tx.Applications.OpenStage(ctx, &models.ApplicationStage{
		ApplicationID: appID,
		Stage:         stage,
		EntryTime:     now,
		ActorID:       actorID,
		Metadata:      datatypes.JSONMap(metadata),
	})
}

// exitGate returns the unmet condition for leaving the current stage, or "".
func exitGate(ctx context.Context, tx *repository.Store, app *models.Application) (string, error) {
	switch app.CurrentStage {
	case models.StageEligibilityCheck:
		if app.EligibilityID == nil {
			return gateEligibilityEligible, nil
		}
		e, err := tx.Applications.GetEligibility(ctx, *app.EligibilityID)
		if err != nil {
			return "", err
		}
		if e.Status != models.EligibilityEligible {
			return gateEligibilityEligible, nil
		}
	case models.StageOfferLetter:
		if app.OfferLetterID == nil {
			return gateOfferAccepted, nil
		}
		o, err := tx.Applications.GetOfferLetter(ctx, *app.OfferLetterID)
		if err != nil {
			return "", err
		}
		if o.Status != models.OfferLetterAccepted {
			return gateOfferAccepted, nil
		}
	case models.StageInspection:
		if app.InspectionID == nil {
			return gateInspectionAttended, nil
		}
		i, err := tx.Inspections.GetByID(ctx, *app.InspectionID)
		if err != nil {
			return "", err
		}
		if i.Status != models.InspectionAttended {
			return gateInspectionAttended, nil
		}
	case models.StageEscrow:
		if app.EscrowID == nil {
			return gateEscrowCompleted, nil
		}
		e, err := tx.Applications.GetEscrow(ctx, *app.EscrowID)
		if err != nil {
			return "", err
		}
		if e.Status != models.EscrowCompleted {
			return gateEscrowCompleted, nil
		}
	case models.StageConditionPrecedent:
		if app.ConditionPrecedentID == nil {
			return gatePrecedentCompleted, nil
		}
		// Locked so a concurrent RevokeReview serializes against the stage move.
		cp, err := tx.Precedents.GetForUpdate(ctx, *app.ConditionPrecedentID)
		if err != nil {
			return "", err
		}
		if cp.Status != models.PrecedentCompleted {
			return gatePrecedentCompleted, nil
		}
	case models.StageLoanDecision:
		if app.LoanDecisionID == nil {
			return gateLoanApproved, nil
		}
		d, err := tx.Loans.GetDecisionForUpdate(ctx, *app.LoanDecisionID)
		if err != nil {
			return "", err
		}
		if d.Status != models.LoanDecisionApproved {
			return gateLoanApproved, nil
		}
	}
	return "", nil
}

// entryGate returns the unmet condition for entering target, or "".
func entryGate(app *models.Application, target models.ApplicationStageName) string {
	if target == models.StageLoanDecision && (app.LoanOfferID == nil || app.LenderOrganizationID == nil) {
		return gateLoanOfferChosen
	}
	return ""
}

// Decline moves a non-terminal application to declined. Declining an
// already declined application is a no-op. Sibling entities such as the
// inspection or escrow are left untouched as historical record.
func (s *ApplicationService) Decline(ctx context.Context, actor models.Actor, applicationID uuid.UUID, reasons []string) (app *models.Application, err error) {
	ctx, span := begin(ctx, applicationComponent, "Decline", idAttr("application_id", applicationID))
	defer func() { finish(ctx, span, applicationComponent, "Decline", err) }()

	reasons, err = validation.NormalizeReasons(reasons)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	encoded, err := json.Marshal(reasons)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	var from models.ApplicationStageName
	now := s.now()
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		snapshot, err := tx.Applications.GetByID(ctx, applicationID)
		if err != nil {
			return err
		}
		if !isParticipant(actor, snapshot) {
			return models.NewForbiddenError("Only parties to the application may decline it")
		}
		from = snapshot.CurrentStage
		switch from {
		case models.StageDeclined:
			app = snapshot
			return nil
		case models.StageClosed:
			return models.NewInvalidTransitionError("application is closed")
		}

		ok, err := tx.Applications.CompareAndSetStage(ctx, snapshot.ID, from, models.StageDeclined, map[string]interface{}{
			"decline_reasons": datatypes.JSON(encoded),
			"declined_at":     now,
		})
		if err != nil {
			return err
		}
		if !ok {
			fresh, err := tx.Applications.GetByID(ctx, snapshot.ID)
			if err != nil {
				return err
			}
			if fresh.CurrentStage == models.StageDeclined {
				from, app = models.StageDeclined, fresh
				return nil
			}
			return models.NewStaleStageError(from, fresh.CurrentStage)
		}

		if err := s.moveHistory(ctx, tx, snapshot.ID, models.StageDeclined, actor.UserID,
			map[string]interface{}{"reasons": reasons}, now); err != nil {
			return err
		}
		app, err = tx.Applications.GetByID(ctx, snapshot.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if from != models.StageDeclined {
		observability.StageTransitions.WithLabelValues(string(from), string(models.StageDeclined)).Inc()
		events.Emit(ctx, s.publisher, events.New(events.ApplicationDeclined, "application", app.ID, actor.UserID, map[string]interface{}{
			"from":    from,
			"reasons": reasons,
		}))
	}
	return app, nil
}

// RecordEligibility stores the lender's eligibility assessment for an
// application at the eligibility_check stage.
func (s *ApplicationService) RecordEligibility(ctx context.Context, actor models.Actor, applicationID uuid.UUID, in RecordEligibilityInput) (eligibility *models.Eligibility, err error) {
	ctx, span := begin(ctx, applicationComponent, "RecordEligibility", idAttr("application_id", applicationID))
	defer func() { finish(ctx, span, applicationComponent, "RecordEligibility", err) }()

	if err := requireOrganization(actor, models.OrganizationTypeLender, models.OrganizationTypePlatform); err != nil {
		return nil, err
	}
	if in.MaxLoanAmountMinor < 0 {
		return nil, models.NewValidationError("Maximum loan amount cannot be negative")
	}

	status := models.EligibilityIneligible
	if in.Eligible {
		status = models.EligibilityEligible
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		app, err := tx.Applications.GetByID(ctx, applicationID)
		if err != nil {
			return err
		}
		if app.CurrentStage != models.StageEligibilityCheck {
			return models.NewInvalidTransitionError("eligibility is recorded at the eligibility_check stage")
		}

		eligibility = &models.Eligibility{ApplicationID: app.ID}
		if app.EligibilityID != nil {
			if eligibility, err = tx.Applications.GetEligibility(ctx, *app.EligibilityID); err != nil {
				return err
			}
		}
		eligibility.Status = status
		eligibility.MaxLoanAmountMinor = in.MaxLoanAmountMinor
		eligibility.AssessedBy = actor.UserID
		if err := tx.Applications.SaveEligibility(ctx, eligibility); err != nil {
			return err
		}
		return tx.Applications.SetReferences(ctx, app.ID, map[string]interface{}{"eligibility_id": eligibility.ID})
	})
	if err != nil {
		return nil, err
	}
	return eligibility, nil
}

// IssueOfferLetter creates the offer letter and opens its review request
// with the developer organization.
func (s *ApplicationService) IssueOfferLetter(ctx context.Context, actor models.Actor, applicationID uuid.UUID, documentURL string) (offer *models.OfferLetter, err error) {
	ctx, span := begin(ctx, applicationComponent, "IssueOfferLetter", idAttr("application_id", applicationID))
	defer func() { finish(ctx, span, applicationComponent, "IssueOfferLetter", err) }()

	documentURL = strings.TrimSpace(documentURL)
	if documentURL == "" {
		return nil, models.NewValidationError("Document URL is required")
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		app, err := tx.Applications.GetByID(ctx, applicationID)
		if err != nil {
			return err
		}
		if !actor.ActsFor(app.DeveloperOrganizationID) {
			return models.NewForbiddenError("Only the developer may issue the offer letter")
		}
		if app.CurrentStage != models.StageOfferLetter {
			return models.NewInvalidTransitionError("offer letters are issued at the offer_letter stage")
		}
		if app.OfferLetterID != nil {
			return models.NewConflictError("application already has an offer letter")
		}

		offerID := uuid.New()
		req, err := s.reviews.createRequest(ctx, tx, CreateReviewRequestInput{
			OrganizationType: models.OrganizationTypeDeveloper,
			OrganizationID:   app.DeveloperOrganizationID,
			ResourceType:     models.ResourceOfferLetter,
			ResourceID:       offerID,
		})
		if err != nil {
			return err
		}

		offer = &models.OfferLetter{
			ID:              offerID,
			ApplicationID:   app.ID,
			ReviewRequestID: &req.ID,
			Status:          models.OfferLetterPendingReview,
			DocumentURL:     documentURL,
		}
		if err := tx.Applications.CreateOfferLetter(ctx, offer); err != nil {
			return err
		}
		return tx.Applications.SetReferences(ctx, app.ID, map[string]interface{}{"offer_letter_id": offer.ID})
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

// AcceptOfferLetter records the buyer's acceptance of an approved offer letter.
func (s *ApplicationService) AcceptOfferLetter(ctx context.Context, actor models.Actor, applicationID uuid.UUID) (offer *models.OfferLetter, err error) {
	ctx, span := begin(ctx, applicationComponent, "AcceptOfferLetter", idAttr("application_id", applicationID))
	defer func() { finish(ctx, span, applicationComponent, "AcceptOfferLetter", err) }()

	now := s.now()
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		app, err := tx.Applications.GetByID(ctx, applicationID)
		if err != nil {
			return err
		}
		if !isBuyer(actor, app.BuyerID) {
			return models.NewForbiddenError("Only the buyer may accept the offer letter")
		}
		if app.CurrentStage != models.StageOfferLetter || app.OfferLetterID == nil {
			return models.NewPreconditionError("no offer letter awaiting acceptance")
		}
		ok, err := tx.Applications.UpdateOfferLetterStatus(ctx, *app.OfferLetterID,
			[]models.OfferLetterStatus{models.OfferLetterApproved}, models.OfferLetterAccepted,
			map[string]interface{}{"accepted_at": now})
		if err != nil {
			return err
		}
		if !ok {
			return models.NewPreconditionError("offer letter must be approved before it can be accepted")
		}
		offer, err = tx.Applications.GetOfferLetter(ctx, *app.OfferLetterID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

// OpenEscrow records the escrow attendance and opens its review request
// with the developer organization.
func (s *ApplicationService) OpenEscrow(ctx context.Context, actor models.Actor, applicationID uuid.UUID, attendanceDate time.Time) (escrow *models.EscrowInformation, err error) {
	ctx, span := begin(ctx, applicationComponent, "OpenEscrow", idAttr("application_id", applicationID))
	defer func() { finish(ctx, span, applicationComponent, "OpenEscrow", err) }()

	if attendanceDate.IsZero() {
		return nil, models.NewValidationError("Attendance date is required")
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		app, err := tx.Applications.GetByID(ctx, applicationID)
		if err != nil {
			return err
		}
		if !actor.ActsFor(app.DeveloperOrganizationID) {
			return models.NewForbiddenError("Only the developer may open escrow")
		}
		if app.CurrentStage != models.StageEscrow {
			return models.NewInvalidTransitionError("escrow is opened at the escrow stage")
		}
		if app.EscrowID != nil {
			return models.NewConflictError("application already has escrow information")
		}

		escrowID := uuid.New()
		req, err := s.reviews.createRequest(ctx, tx, CreateReviewRequestInput{
			OrganizationType: models.OrganizationTypeDeveloper,
			OrganizationID:   app.DeveloperOrganizationID,
			ResourceType:     models.ResourceEscrowAttendance,
			ResourceID:       escrowID,
		})
		if err != nil {
			return err
		}

		at := attendanceDate.UTC()
		escrow = &models.EscrowInformation{
			ID:              escrowID,
			ApplicationID:   app.ID,
			ReviewRequestID: &req.ID,
			Status:          models.EscrowPendingReview,
			AttendanceDate:  &at,
		}
		if err := tx.Applications.CreateEscrow(ctx, escrow); err != nil {
			return err
		}
		return tx.Applications.SetReferences(ctx, app.ID, map[string]interface{}{"escrow_id": escrow.ID})
	})
	if err != nil {
		return nil, err
	}
	return escrow, nil
}

// applyReviewOutcome moves the offer letter or escrow covered by req to its
// reviewed status. Requests that cover no orchestrated resource are ignored.
func (s *ApplicationService) applyReviewOutcome(ctx context.Context, tx *repository.Store, req *models.ReviewRequest) error {
	switch req.ResourceType {
	case models.ResourceOfferLetter:
		offer, err := tx.Applications.FindOfferLetterByReview(ctx, req.ID)
		if models.ErrorCode(err) == models.CodeNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		to := models.OfferLetterApproved
		if req.Status == models.ReviewDeclined {
			to = models.OfferLetterDeclined
		}
		_, err = tx.Applications.UpdateOfferLetterStatus(ctx, offer.ID,
			[]models.OfferLetterStatus{models.OfferLetterPendingReview}, to, nil)
		return err
	case models.ResourceEscrowAttendance:
		escrow, err := tx.Applications.FindEscrowByReview(ctx, req.ID)
		if models.ErrorCode(err) == models.CodeNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		to := models.EscrowCompleted
		if req.Status == models.ReviewDeclined {
			to = models.EscrowDeclined
		}
		_, err = tx.Applications.UpdateEscrowStatus(ctx, escrow.ID, to)
		return err
	}
	return nil
}

// ChooseLoanOffer records the buyer's chosen loan offer and lender. It is
// the entry gate for loan decisioning.
func (s *ApplicationService) ChooseLoanOffer(ctx context.Context, actor models.Actor, applicationID, loanOfferID, lenderOrgID uuid.UUID) (app *models.Application, err error) {
	ctx, span := begin(ctx, applicationComponent, "ChooseLoanOffer", idAttr("application_id", applicationID))
	defer func() { finish(ctx, span, applicationComponent, "ChooseLoanOffer", err) }()

	if loanOfferID == uuid.Nil || lenderOrgID == uuid.Nil {
		return nil, models.NewValidationError("Loan offer and lender are required")
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		current, err := tx.Applications.GetByID(ctx, applicationID)
		if err != nil {
			return err
		}
		if !isBuyer(actor, current.BuyerID) {
			return models.NewForbiddenError("Only the buyer may choose a loan offer")
		}
		if current.Type != models.ApplicationTypeMortgage {
			return models.NewValidationError("Only mortgage applications take a loan offer")
		}
		plan := stagePlans[current.Type]
		if current.CurrentStage.Terminal() || plan.index(current.CurrentStage) >= plan.index(models.StageLoanDecision) {
			return models.NewInvalidTransitionError("loan offer can no longer change at " + string(current.CurrentStage))
		}
		if err := tx.Applications.SetReferences(ctx, current.ID, map[string]interface{}{
			"loan_offer_id":          loanOfferID,
			"lender_organization_id": lenderOrgID,
		}); err != nil {
			return err
		}
		app, err = tx.Applications.GetByID(ctx, current.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

func (s *ApplicationService) Get(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	return s.store.Applications.GetByID(ctx, id)
}

// GetForActor returns the application if actor is a party to it.
func (s *ApplicationService) GetForActor(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Application, error) {
	app, err := s.store.Applications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isParticipant(actor, app) {
		return nil, models.NewForbiddenError("Only parties to the application may view it")
	}
	return app, nil
}

// History returns the stage log in entry order.
func (s *ApplicationService) History(ctx context.Context, id uuid.UUID) ([]models.ApplicationStage, error) {
	if _, err := s.store.Applications.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Applications.History(ctx, id)
}

// NextStages lists the stages the application may advance to.
func (s *ApplicationService) NextStages(ctx context.Context, id uuid.UUID) ([]models.ApplicationStageName, error) {
	app, err := s.store.Applications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.CurrentStage.Terminal() {
		return nil, nil
	}
	return stagePlans[app.Type].next(app.CurrentStage), nil
}

func (s *ApplicationService) ListForBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Application, error) {
	return s.store.Applications.ListByBuyer(ctx, buyerID)
}
