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

const precedentComponent = "precedent_tracker"

// PrecedentService tracks the dual document review gating loan decisioning.
type PrecedentService struct {
	store     *repository.Store
	publisher events.Publisher
	now       func() time.Time
}

func NewPrecedentService(store *repository.Store, publisher events.Publisher) *PrecedentService {
	return &PrecedentService{store: store, publisher: publisher, now: utcNow}
}

// authorizeReviewer checks that actor may sign off for side. Lender reviews
// are restricted to the application's chosen lender once one is set.
func authorizeReviewer(actor models.Actor, side models.ReviewerSide, app *models.Application) error {
	switch side {
	case models.ReviewerHSF:
		return requireOrganization(actor, models.OrganizationTypeHSF)
	case models.ReviewerLender:
		if err := requireOrganization(actor, models.OrganizationTypeLender); err != nil {
			return err
		}
		if app.LenderOrganizationID != nil && !actor.ActsFor(*app.LenderOrganizationID) {
			return models.NewForbiddenError("Only the application's lender may review its documents")
		}
		return nil
	}
	return models.NewValidationError("Reviewer must be hsf or lender")
}

func applyReview(cp *models.ConditionPrecedent, side models.ReviewerSide, reviewed bool, by uuid.UUID, at time.Time) {
	var byRef *uuid.UUID
	var atRef *time.Time
	if reviewed {
		byRef, atRef = &by, &at
	}
	switch side {
	case models.ReviewerHSF:
		cp.HSFDocsReviewed, cp.HSFReviewedBy, cp.HSFReviewedAt = reviewed, byRef, atRef
	case models.ReviewerLender:
		cp.LenderDocsReviewed, cp.LenderReviewedBy, cp.LenderReviewedAt = reviewed, byRef, atRef
	}

	cp.Status = cp.DeriveStatus()
	if cp.Status == models.PrecedentCompleted {
		if cp.CompletedDate == nil {
			cp.CompletedDate = &at
		}
	} else {
		cp.CompletedDate = nil
	}
}

// MarkReviewed records one side's sign-off. A repeated sign-off from the same
// side overwrites the reviewer and timestamp. The precedent completes once
// both sides have signed off.
func (s *PrecedentService) MarkReviewed(ctx context.Context, actor models.Actor, cpID uuid.UUID, side models.ReviewerSide) (cp *models.ConditionPrecedent, err error) {
	return s.setReview(ctx, actor, cpID, side, true)
}

// RevokeReview withdraws one side's sign-off while the application is still
// at the condition precedent stage. A completed precedent reverts.
func (s *PrecedentService) RevokeReview(ctx context.Context, actor models.Actor, cpID uuid.UUID, side models.ReviewerSide) (cp *models.ConditionPrecedent, err error) {
	return s.setReview(ctx, actor, cpID, side, false)
}

func (s *PrecedentService) setReview(ctx context.Context, actor models.Actor, cpID uuid.UUID, side models.ReviewerSide, reviewed bool) (cp *models.ConditionPrecedent, err error) {
	operation := "MarkReviewed"
	if !reviewed {
		operation = "RevokeReview"
	}
	ctx, span := begin(ctx, precedentComponent, operation, idAttr("condition_precedent_id", cpID), attribute.String("side", string(side)))
	defer func() { finish(ctx, span, precedentComponent, operation, err, slog.String("side", string(side))) }()

	var before models.PrecedentStatus
	now := s.now()
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		current, err := tx.Precedents.GetForUpdate(ctx, cpID)
		if err != nil {
			return err
		}
		app, err := tx.Applications.GetByID(ctx, current.ApplicationID)
		if err != nil {
			return err
		}
		if err := authorizeReviewer(actor, side, app); err != nil {
			return err
		}
		if current.Status == models.PrecedentExpired {
			return models.NewInvalidTransitionError("condition precedent has expired")
		}
		if !reviewed && app.CurrentStage != models.StageConditionPrecedent {
			return models.NewInvalidTransitionError("reviews can only be revoked at the condition_precedent stage")
		}

		before = current.Status
		applyReview(current, side, reviewed, actor.UserID, now)
		if err := tx.Precedents.Save(ctx, current); err != nil {
			return err
		}
		cp = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if before != models.PrecedentCompleted && cp.Status == models.PrecedentCompleted {
		events.Emit(ctx, s.publisher, events.New(events.PrecedentCompleted, "condition_precedent", cp.ID, actor.UserID, map[string]interface{}{
			"application_id": cp.ApplicationID,
		}))
	}
	return cp, nil
}

// SetDueDate sets the deadline after which ExpirePending expires the precedent.
func (s *PrecedentService) SetDueDate(ctx context.Context, actor models.Actor, cpID uuid.UUID, due time.Time) (cp *models.ConditionPrecedent, err error) {
	ctx, span := begin(ctx, precedentComponent, "SetDueDate", idAttr("condition_precedent_id", cpID))
	defer func() { finish(ctx, span, precedentComponent, "SetDueDate", err) }()

	if err := requireOrganization(actor, models.OrganizationTypeHSF, models.OrganizationTypeLender, models.OrganizationTypePlatform); err != nil {
		return nil, err
	}
	if err := validation.ValidateDueDate(due, s.now()); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		current, err := tx.Precedents.GetForUpdate(ctx, cpID)
		if err != nil {
			return err
		}
		if current.Status == models.PrecedentCompleted || current.Status == models.PrecedentExpired {
			return models.NewInvalidTransitionError("condition precedent is already " + string(current.Status))
		}
		dueUTC := due.UTC()
		current.DueDate = &dueUTC
		if err := tx.Precedents.Save(ctx, current); err != nil {
			return err
		}
		cp = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cp, nil
}

// Expire marks an open precedent expired.
func (s *PrecedentService) Expire(ctx context.Context, cpID uuid.UUID) (cp *models.ConditionPrecedent, err error) {
	ctx, span := begin(ctx, precedentComponent, "Expire", idAttr("condition_precedent_id", cpID))
	defer func() { finish(ctx, span, precedentComponent, "Expire", err) }()

	ok, err := s.store.Precedents.ExpireIfOpen(ctx, cpID)
	if err != nil {
		return nil, err
	}
	cp, err = s.store.Precedents.GetByID(ctx, cpID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewInvalidTransitionError("condition precedent is already " + string(cp.Status))
	}
	events.Emit(ctx, s.publisher, s.expiredEvent(cp))
	return cp, nil
}

// ExpirePending expires every open precedent whose due date is before now
// and returns how many were expired.
func (s *PrecedentService) ExpirePending(ctx context.Context, now time.Time) (expired int, err error) {
	ctx, span := begin(ctx, precedentComponent, "ExpirePending")
	defer func() { finish(ctx, span, precedentComponent, "ExpirePending", err, slog.Int("expired", expired)) }()

	due, err := s.store.Precedents.ListExpirable(ctx, now)
	if err != nil {
		return 0, err
	}
	var emitted []events.Event
	for i := range due {
		ok, err := s.store.Precedents.ExpireIfOpen(ctx, due[i].ID)
		if err != nil {
			return expired, err
		}
		if ok {
			expired++
			due[i].Status = models.PrecedentExpired
			emitted = append(emitted, s.expiredEvent(&due[i]))
		}
	}
	events.Emit(ctx, s.publisher, emitted...)
	return expired, nil
}

func (s *PrecedentService) expiredEvent(cp *models.ConditionPrecedent) events.Event {
	return events.New(events.PrecedentExpired, "condition_precedent", cp.ID, uuid.Nil, map[string]interface{}{
		"application_id": cp.ApplicationID,
	})
}

func (s *PrecedentService) Get(ctx context.Context, id uuid.UUID) (*models.ConditionPrecedent, error) {
	return s.store.Precedents.GetByID(ctx, id)
}

// createPrecedent opens the precedent when an application enters the
// condition_precedent stage.
func createPrecedent(ctx context.Context, tx *repository.Store, applicationID uuid.UUID) (*models.ConditionPrecedent, error) {
	cp := &models.ConditionPrecedent{
		ApplicationID: applicationID,
		Status:        models.PrecedentPending,
	}
	if err := tx.Precedents.Create(ctx, cp); err != nil {
		return nil, err
	}
	return cp, nil
}
