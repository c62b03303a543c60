package service

import (
	"context"
	"time"

	"keyhouse/internal/cache"
	"keyhouse/internal/events"
	"keyhouse/internal/models"
	"keyhouse/internal/observability"
	"keyhouse/internal/repository"
	"keyhouse/internal/validation"

	"github.com/google/uuid"
)

const rescheduleComponent = "reschedule_negotiator"

// RescheduleService negotiates slot swaps for booked inspections. A request
// moves from Proposed to AcceptedByUser or RejectedByUser exactly once.
type RescheduleService struct {
	store     *repository.Store
	cache     *cache.Cache
	publisher events.Publisher
	now       func() time.Time
}

func NewRescheduleService(store *repository.Store, c *cache.Cache, publisher events.Publisher) *RescheduleService {
	return &RescheduleService{store: store, cache: c, publisher: publisher, now: utcNow}
}

// sideOf resolves which party of the inspection the actor speaks for.
func sideOf(actor models.Actor, inspection *models.Inspection) (models.ProposerSide, bool) {
	switch {
	case isBuyer(actor, inspection.UserID):
		return models.ProposerUser, true
	case actor.ActsFor(inspection.OrganizationID):
		return models.ProposerOrganization, true
	}
	return "", false
}

// Propose opens a reschedule request moving the inspection from its current
// slot to proposedSlotID. The proposed slot is re-read inside the
// transaction and must be available.
func (s *RescheduleService) Propose(ctx context.Context, actor models.Actor, inspectionID, proposedSlotID uuid.UUID) (req *models.InspectionRescheduleRequest, err error) {
	ctx, span := begin(ctx, rescheduleComponent, "Propose",
		idAttr("inspection_id", inspectionID), idAttr("proposed_slot_id", proposedSlotID))
	defer func() { finish(ctx, span, rescheduleComponent, "Propose", err) }()

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		inspection, err := tx.Inspections.GetForUpdate(ctx, inspectionID)
		if err != nil {
			return err
		}
		side, ok := sideOf(actor, inspection)
		if !ok {
			return models.NewForbiddenError("Only the buyer or the hosting organization may propose a reschedule")
		}
		if !inspection.Status.Active() {
			return models.NewInvalidTransitionError("inspection is " + string(inspection.Status))
		}
		if proposedSlotID == inspection.SlotID {
			return models.NewValidationError("Proposed slot must differ from the current slot")
		}

		proposed, err := tx.Slots.GetSlot(ctx, proposedSlotID)
		if err != nil {
			return err
		}
		if proposed.OrganizationID != inspection.OrganizationID {
			return models.NewValidationError("Proposed slot belongs to another organization")
		}
		if !proposed.IsAvailable {
			return models.NewSlotUnavailableError(proposed.ID)
		}

		req = &models.InspectionRescheduleRequest{
			InspectionID:   inspection.ID,
			OriginalSlotID: inspection.SlotID,
			ProposedSlotID: proposed.ID,
			ProposedBy:     actor.UserID,
			ProposerSide:   side,
			Status:         models.RescheduleProposed,
		}
		return tx.Reschedules.Create(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	events.Emit(ctx, s.publisher, events.New(events.RescheduleProposed, "inspection_reschedule_request", req.ID, actor.UserID, map[string]interface{}{
		"inspection_id":    req.InspectionID,
		"proposed_slot_id": req.ProposedSlotID,
		"proposer_side":    req.ProposerSide,
	}))
	return req, nil
}

// loadForResolution locks the request and its inspection and checks that the
// actor is the party that did not propose.
func loadForResolution(ctx context.Context, tx *repository.Store, actor models.Actor, requestID uuid.UUID) (*models.InspectionRescheduleRequest, *models.Inspection, error) {
	req, err := tx.Reschedules.GetForUpdate(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if req.Status.Terminal() {
		return nil, nil, models.NewInvalidTransitionError("reschedule request is already " + string(req.Status))
	}
	inspection, err := tx.Inspections.GetForUpdate(ctx, req.InspectionID)
	if err != nil {
		return nil, nil, err
	}
	side, ok := sideOf(actor, inspection)
	if !ok {
		return nil, nil, models.NewForbiddenError("Only parties to the inspection may respond")
	}
	if side == req.ProposerSide {
		return nil, nil, models.NewForbiddenError("The proposing party cannot respond to its own request")
	}
	return req, inspection, nil
}

// Accept swaps the inspection onto the proposed slot. In one transaction the
// proposed slot is consumed, the inspection repointed and redated, the
// original slot freed and the request resolved.
func (s *RescheduleService) Accept(ctx context.Context, actor models.Actor, requestID uuid.UUID) (req *models.InspectionRescheduleRequest, err error) {
	ctx, span := begin(ctx, rescheduleComponent, "Accept", idAttr("request_id", requestID))
	defer func() { finish(ctx, span, rescheduleComponent, "Accept", err) }()

	var orgID uuid.UUID
	now := s.now()
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		current, inspection, err := loadForResolution(ctx, tx, actor, requestID)
		if err != nil {
			return err
		}
		if !inspection.Status.Active() {
			return models.NewInvalidTransitionError("inspection is " + string(inspection.Status))
		}
		if inspection.SlotID != current.OriginalSlotID {
			return models.NewInvalidTransitionError("inspection no longer holds the original slot")
		}
		orgID = inspection.OrganizationID

		if err := tx.Slots.Reserve(ctx, current.ProposedSlotID); err != nil {
			return err
		}
		proposed, err := tx.Slots.GetSlot(ctx, current.ProposedSlotID)
		if err != nil {
			return err
		}
		date := nextOccurrence(now, proposed.DayOfWeek, proposed.StartTime)
		ok, err := tx.Inspections.Repoint(ctx, inspection.ID, current.OriginalSlotID, current.ProposedSlotID, date)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewInvalidTransitionError("inspection changed concurrently")
		}
		if _, err := tx.Slots.ReleaseIfUnheld(ctx, current.OriginalSlotID); err != nil {
			return err
		}
		ok, err = tx.Reschedules.Resolve(ctx, current.ID, models.RescheduleAcceptedByUser, actor.UserID, "", now)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewInvalidTransitionError("reschedule request resolved concurrently")
		}
		req, err = tx.Reschedules.GetByID(ctx, current.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	observability.RescheduleResolutions.WithLabelValues(string(models.RescheduleAcceptedByUser)).Inc()
	s.cache.Invalidate(ctx, cache.AvailableSlotsKey(orgID))
	events.Emit(ctx, s.publisher, events.New(events.RescheduleAccepted, "inspection_reschedule_request", req.ID, actor.UserID, map[string]interface{}{
		"inspection_id": req.InspectionID,
		"slot_id":       req.ProposedSlotID,
	}))
	return req, nil
}

// Reject resolves the request without touching either slot.
func (s *RescheduleService) Reject(ctx context.Context, actor models.Actor, requestID uuid.UUID, reason string) (req *models.InspectionRescheduleRequest, err error) {
	ctx, span := begin(ctx, rescheduleComponent, "Reject", idAttr("request_id", requestID))
	defer func() { finish(ctx, span, rescheduleComponent, "Reject", err) }()

	if err := validation.ValidateReason(reason); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	now := s.now()
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		current, _, err := loadForResolution(ctx, tx, actor, requestID)
		if err != nil {
			return err
		}
		ok, err := tx.Reschedules.Resolve(ctx, current.ID, models.RescheduleRejectedByUser, actor.UserID, reason, now)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewInvalidTransitionError("reschedule request resolved concurrently")
		}
		req, err = tx.Reschedules.GetByID(ctx, current.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	observability.RescheduleResolutions.WithLabelValues(string(models.RescheduleRejectedByUser)).Inc()
	events.Emit(ctx, s.publisher, events.New(events.RescheduleRejected, "inspection_reschedule_request", req.ID, actor.UserID, map[string]interface{}{
		"inspection_id": req.InspectionID,
		"reason":        reason,
	}))
	return req, nil
}

func (s *RescheduleService) Get(ctx context.Context, id uuid.UUID) (*models.InspectionRescheduleRequest, error) {
	return s.store.Reschedules.GetByID(ctx, id)
}

func (s *RescheduleService) ListForInspection(ctx context.Context, inspectionID uuid.UUID) ([]models.InspectionRescheduleRequest, error) {
	return s.store.Reschedules.ListByInspection(ctx, inspectionID)
}
