package service

import (
	"context"
	"log/slog"
	"time"

	"keyhouse/internal/cache"
	"keyhouse/internal/events"
	"keyhouse/internal/featureflags"
	"keyhouse/internal/middleware"
	"keyhouse/internal/models"
	"keyhouse/internal/observability"
	"keyhouse/internal/repository"
	"keyhouse/internal/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const (
	inspectionComponent = "inspection_scheduler"

	// DefaultInspectionFeeWindow is how long a booking may stay unpaid when
	// the organization requires an inspection fee.
	DefaultInspectionFeeWindow = 30 * time.Minute
)

// InspectionService books and cancels inspections against slots.
type InspectionService struct {
	store     *repository.Store
	cache     *cache.Cache
	publisher events.Publisher
	flags     *featureflags.Manager
	feeWindow time.Duration
	now       func() time.Time
}

type BookSlotInput struct {
	SlotID        uuid.UUID
	ApplicationID *uuid.UUID
	FullName      string
	Email         string
	Phone         string
	MeetingMode   models.MeetingMode
}

func NewInspectionService(
	store *repository.Store,
	c *cache.Cache,
	publisher events.Publisher,
	flags *featureflags.Manager,
	feeWindow time.Duration,
) *InspectionService {
	if feeWindow <= 0 {
		feeWindow = DefaultInspectionFeeWindow
	}
	return &InspectionService{
		store:     store,
		cache:     c,
		publisher: publisher,
		flags:     flags,
		feeWindow: feeWindow,
		now:       utcNow,
	}
}

// BookSlot flips the slot's availability with a single conditional write and
// creates the inspection in the same transaction. A lost race surfaces as
// SlotUnavailable; callers re-query and pick another slot.
func (s *InspectionService) BookSlot(ctx context.Context, actor models.Actor, in BookSlotInput) (inspection *models.Inspection, err error) {
	ctx, span := begin(ctx, inspectionComponent, "BookSlot", idAttr("slot_id", in.SlotID))
	defer func() { finish(ctx, span, inspectionComponent, "BookSlot", err, slog.String("slot_id", in.SlotID.String())) }()

	if actor.IsOrganization() || actor.UserID == uuid.Nil {
		return nil, models.NewForbiddenError("Only buyers may book inspections")
	}
	if err := validation.ValidateInspectionContact(validation.InspectionContact{
		FullName:    in.FullName,
		Email:       in.Email,
		Phone:       in.Phone,
		MeetingMode: in.MeetingMode,
	}); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	now := s.now()
	var slot *models.DayAvailabilitySlot
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		slot, err = tx.Slots.GetSlot(ctx, in.SlotID)
		if err != nil {
			return err
		}

		if in.ApplicationID != nil {
			app, err := tx.Applications.GetForUpdate(ctx, *in.ApplicationID)
			if err != nil {
				return err
			}
			if app.BuyerID != actor.UserID {
				return models.NewForbiddenError("Application belongs to another buyer")
			}
			if app.DeveloperOrganizationID != slot.OrganizationID {
				return models.NewValidationError("Slot is not offered by the application's developer")
			}
			if err := checkInspectionLink(ctx, tx, app); err != nil {
				return err
			}
		}

		if err := tx.Slots.Reserve(ctx, slot.ID); err != nil {
			return err
		}

		inspection = &models.Inspection{
			ApplicationID:  in.ApplicationID,
			SlotID:         slot.ID,
			OrganizationID: slot.OrganizationID,
			UserID:         actor.UserID,
			InspectionDate: nextOccurrence(now, slot.DayOfWeek, slot.StartTime),
			FullName:       in.FullName,
			Email:          in.Email,
			Phone:          in.Phone,
			MeetingMode:    in.MeetingMode,
			Status:         models.InspectionScheduled,
		}
		if err := tx.Inspections.Create(ctx, inspection); err != nil {
			return err
		}

		if in.ApplicationID != nil {
			return tx.Applications.SetReferences(ctx, *in.ApplicationID, map[string]interface{}{
				"inspection_id": inspection.ID,
			})
		}
		return nil
	})
	if err != nil {
		if models.ErrorCode(err) == models.CodeConflict {
			observability.SlotBookings.WithLabelValues("unavailable").Inc()
		}
		return nil, err
	}

	observability.SlotBookings.WithLabelValues("booked").Inc()
	s.cache.Invalidate(ctx, cache.AvailableSlotsKey(slot.OrganizationID))
	events.Emit(ctx, s.publisher, events.New(events.InspectionBooked, "inspection", inspection.ID, actor.UserID, map[string]interface{}{
		"slot_id":         slot.ID,
		"organization_id": slot.OrganizationID,
	}))
	return inspection, nil
}

// checkInspectionLink rejects linking a new booking to an application that
// has moved past its inspection stage or whose linked inspection still
// stands.
func checkInspectionLink(ctx context.Context, tx *repository.Store, app *models.Application) error {
	if app.CurrentStage.Terminal() {
		return models.NewInvalidTransitionError("application is " + string(app.CurrentStage))
	}
	plan := stagePlans[app.Type]
	if plan.index(app.CurrentStage) > plan.index(models.StageInspection) {
		return models.NewInvalidTransitionError("application is past the inspection stage")
	}
	if app.InspectionID == nil {
		return nil
	}
	linked, err := tx.Inspections.GetByID(ctx, *app.InspectionID)
	if err != nil {
		if models.ErrorCode(err) == models.CodeNotFound {
			return nil
		}
		return err
	}
	if linked.Status.Active() || linked.Status == models.InspectionAttended {
		return models.NewInvalidTransitionError("application already has a " + string(linked.Status) + " inspection")
	}
	return nil
}

// Cancel cancels an active inspection on behalf of the buyer or the hosting
// organization and frees its slot in the same transaction. The slot is only
// freed while no other active inspection holds it.
func (s *InspectionService) Cancel(ctx context.Context, actor models.Actor, inspectionID uuid.UUID) (inspection *models.Inspection, err error) {
	ctx, span := begin(ctx, inspectionComponent, "Cancel", idAttr("inspection_id", inspectionID))
	defer func() { finish(ctx, span, inspectionComponent, "Cancel", err) }()

	now := s.now()
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		current, err := tx.Inspections.GetForUpdate(ctx, inspectionID)
		if err != nil {
			return err
		}

		var status models.InspectionStatus
		switch {
		case isBuyer(actor, current.UserID):
			status = models.InspectionCancelledByUser
		case actor.ActsFor(current.OrganizationID):
			status = models.InspectionCancelledByOrganization
		default:
			return models.NewForbiddenError("Only the buyer or the hosting organization may cancel")
		}
		if !current.Status.Active() {
			return models.NewInvalidTransitionError("inspection is " + string(current.Status))
		}

		ok, err := tx.Inspections.Cancel(ctx, current.ID, current.SlotID, status, now)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewInvalidTransitionError("inspection changed concurrently")
		}
		if _, err := tx.Slots.ReleaseIfUnheld(ctx, current.SlotID); err != nil {
			return err
		}
		if err := closeOpenReschedule(ctx, tx, current.ID, actor.UserID, "inspection cancelled", now); err != nil {
			return err
		}

		inspection, err = tx.Inspections.GetByID(ctx, current.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, cache.AvailableSlotsKey(inspection.OrganizationID))
	events.Emit(ctx, s.publisher, events.New(events.InspectionCancelled, "inspection", inspection.ID, actor.UserID, map[string]interface{}{
		"status":  inspection.Status,
		"slot_id": inspection.SlotID,
	}))
	return inspection, nil
}

// RecordOutcome records whether the buyer attended. Only the hosting
// organization may record it; the slot is returned to the pool afterwards.
func (s *InspectionService) RecordOutcome(ctx context.Context, actor models.Actor, inspectionID uuid.UUID, attended bool) (inspection *models.Inspection, err error) {
	ctx, span := begin(ctx, inspectionComponent, "RecordOutcome",
		idAttr("inspection_id", inspectionID), attribute.Bool("attended", attended))
	defer func() { finish(ctx, span, inspectionComponent, "RecordOutcome", err) }()

	status := models.InspectionNotAttended
	if attended {
		status = models.InspectionAttended
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		current, err := tx.Inspections.GetForUpdate(ctx, inspectionID)
		if err != nil {
			return err
		}
		if !actor.ActsFor(current.OrganizationID) {
			return models.NewForbiddenError("Only the hosting organization may record the outcome")
		}
		ok, err := tx.Inspections.SetOutcome(ctx, current.ID, status)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewInvalidTransitionError("inspection is " + string(current.Status))
		}
		if _, err := tx.Slots.ReleaseIfUnheld(ctx, current.SlotID); err != nil {
			return err
		}
		if err := closeOpenReschedule(ctx, tx, current.ID, actor.UserID, "inspection concluded", s.now()); err != nil {
			return err
		}
		inspection, err = tx.Inspections.GetByID(ctx, current.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, cache.AvailableSlotsKey(inspection.OrganizationID))
	events.Emit(ctx, s.publisher, events.New(events.InspectionOutcome, "inspection", inspection.ID, actor.UserID, map[string]interface{}{
		"status": inspection.Status,
	}))
	return inspection, nil
}

// ConfirmAndScheduleAfterPayment marks the inspection fee paid. Repeated
// confirmations are no-ops.
func (s *InspectionService) ConfirmAndScheduleAfterPayment(ctx context.Context, inspectionID uuid.UUID) (inspection *models.Inspection, err error) {
	ctx, span := begin(ctx, inspectionComponent, "ConfirmAndScheduleAfterPayment", idAttr("inspection_id", inspectionID))
	defer func() { finish(ctx, span, inspectionComponent, "ConfirmAndScheduleAfterPayment", err) }()

	var confirmed bool
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		inspection, confirmed, err = s.confirmFee(ctx, tx, inspectionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if confirmed {
		events.Emit(ctx, s.publisher, s.confirmedEvent(inspection))
	}
	return inspection, nil
}

func (s *InspectionService) confirmFee(ctx context.Context, tx *repository.Store, inspectionID uuid.UUID) (*models.Inspection, bool, error) {
	current, err := tx.Inspections.GetForUpdate(ctx, inspectionID)
	if err != nil {
		return nil, false, err
	}
	if current.FeePaid {
		return current, false, nil
	}
	if !current.Status.Active() {
		return nil, false, models.NewInvalidTransitionError("inspection is " + string(current.Status))
	}
	ok, err := tx.Inspections.MarkFeePaid(ctx, current.ID, s.now())
	if err != nil {
		return nil, false, err
	}
	updated, err := tx.Inspections.GetByID(ctx, current.ID)
	if err != nil {
		return nil, false, err
	}
	return updated, ok, nil
}

func (s *InspectionService) confirmedEvent(inspection *models.Inspection) events.Event {
	return events.New(events.InspectionConfirmed, "inspection", inspection.ID, inspection.UserID, map[string]interface{}{
		"inspection_date": inspection.InspectionDate,
		"organization_id": inspection.OrganizationID,
	})
}

// ReleaseUnpaidInspections cancels active inspections whose fee is still
// unpaid once the payment window has lapsed, for organizations that require
// the fee. It returns how many inspections were released.
func (s *InspectionService) ReleaseUnpaidInspections(ctx context.Context, now time.Time) (released int, err error) {
	ctx, span := begin(ctx, inspectionComponent, "ReleaseUnpaidInspections")
	defer func() { finish(ctx, span, inspectionComponent, "ReleaseUnpaidInspections", err, slog.Int("released", released)) }()

	candidates, err := s.store.Inspections.ListUnpaidActiveBefore(ctx, now.Add(-s.feeWindow))
	if err != nil {
		return 0, err
	}

	var emitted []events.Event
	touched := map[uuid.UUID]struct{}{}
	for _, c := range candidates {
		if !s.flags.Enabled(featureflags.InspectionFeeRequired, c.OrganizationID) {
			continue
		}
		candidate := c
		var ok bool
		err := s.store.Transaction(ctx, func(tx *repository.Store) error {
			var err error
			ok, err = tx.Inspections.Cancel(ctx, candidate.ID, candidate.SlotID, models.InspectionCancelledByOrganization, now)
			if err != nil || !ok {
				return err
			}
			if _, err := tx.Slots.ReleaseIfUnheld(ctx, candidate.SlotID); err != nil {
				return err
			}
			return closeOpenReschedule(ctx, tx, candidate.ID, uuid.Nil, "inspection fee unpaid", now)
		})
		if err != nil {
			return released, err
		}
		if !ok {
			continue
		}
		released++
		touched[candidate.OrganizationID] = struct{}{}
		emitted = append(emitted, events.New(events.InspectionReleased, "inspection", candidate.ID, uuid.Nil, map[string]interface{}{
			"slot_id": candidate.SlotID,
		}))
	}

	for orgID := range touched {
		s.cache.Invalidate(ctx, cache.AvailableSlotsKey(orgID))
	}
	events.Emit(ctx, s.publisher, emitted...)
	return released, nil
}

func (s *InspectionService) Get(ctx context.Context, id uuid.UUID) (*models.Inspection, error) {
	return s.store.Inspections.GetByID(ctx, id)
}

// ListForOrganization lists the hosting organization's inspections,
// optionally filtered by status.
func (s *InspectionService) ListForOrganization(ctx context.Context, actor models.Actor, orgID uuid.UUID, status models.InspectionStatus) ([]models.Inspection, error) {
	if !actor.ActsFor(orgID) {
		return nil, models.NewForbiddenError("Only organization members may list its inspections")
	}
	return s.store.Inspections.ListByOrganization(ctx, orgID, status)
}

// closeOpenReschedule rejects a pending reschedule proposal once its
// inspection stops being active. Slot availability is untouched.
func closeOpenReschedule(ctx context.Context, tx *repository.Store, inspectionID, by uuid.UUID, reason string, at time.Time) error {
	open, err := tx.Reschedules.FindOpen(ctx, inspectionID)
	if err != nil || open == nil {
		return err
	}
	ok, err := tx.Reschedules.Resolve(ctx, open.ID, models.RescheduleRejectedByUser, by, reason, at)
	if err != nil {
		return err
	}
	if ok {
		observability.RescheduleResolutions.WithLabelValues(string(models.RescheduleRejectedByUser)).Inc()
		middleware.Logger.InfoContext(ctx, "closed pending reschedule",
			slog.String("request_id", open.ID.String()), slog.String("reason", reason))
	}
	return nil
}
