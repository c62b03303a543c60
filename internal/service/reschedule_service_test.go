package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"keyhouse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rescheduleSetup struct {
	developer  models.Actor
	buyer      models.Actor
	s1, s2     *models.DayAvailabilitySlot
	inspection *models.Inspection
}

func (f *fixture) bookedInspection(t *testing.T) rescheduleSetup {
	t.Helper()
	r := rescheduleSetup{developer: org(models.OrganizationTypeDeveloper), buyer: buyer()}
	r.s1 = f.newSlot(t, r.developer, models.Monday)
	r.s2 = f.newSlot(t, r.developer, models.Tuesday)

	var err error
	r.inspection, err = f.inspections.BookSlot(context.Background(), r.buyer, bookingFor(r.s1.ID))
	require.NoError(t, err)
	return r
}

func TestRescheduleService_AcceptSwapsSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.bookedInspection(t)

	req, err := f.reschedules.Propose(ctx, r.buyer, r.inspection.ID, r.s2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RescheduleProposed, req.Status)
	assert.Equal(t, models.ProposerUser, req.ProposerSide)
	assert.True(t, f.slotAvailable(t, r.s2.ID), "proposing does not hold the slot")

	_, err = f.reschedules.Accept(ctx, r.buyer, req.ID)
	assertCode(t, err, models.CodeForbidden)

	accepted, err := f.reschedules.Accept(ctx, colleague(r.developer), req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RescheduleAcceptedByUser, accepted.Status)
	assert.NotNil(t, accepted.ResolvedAt)

	assert.True(t, f.slotAvailable(t, r.s1.ID))
	assert.False(t, f.slotAvailable(t, r.s2.ID))

	inspection, err := f.inspections.Get(ctx, r.inspection.ID)
	require.NoError(t, err)
	assert.Equal(t, r.s2.ID, inspection.SlotID)
	assert.Equal(t, models.InspectionRescheduled, inspection.Status)
	moved := inspection.InspectionDate.UTC()
	assert.Equal(t, time.Tuesday, moved.Weekday())
	assert.Equal(t, 9, moved.Hour())
	assert.Zero(t, moved.Minute())
	assert.True(t, moved.After(r.inspection.InspectionDate.UTC().AddDate(0, 0, -7)))

	_, err = f.reschedules.Accept(ctx, r.developer, req.ID)
	assert.True(t, errors.Is(err, models.ErrInvalidTransition))
	_, err = f.reschedules.Reject(ctx, r.developer, req.ID, "changed my mind")
	assert.True(t, errors.Is(err, models.ErrInvalidTransition))
}

func TestRescheduleService_RejectLeavesSlotsAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.bookedInspection(t)

	req, err := f.reschedules.Propose(ctx, r.developer, r.inspection.ID, r.s2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposerOrganization, req.ProposerSide)

	rejected, err := f.reschedules.Reject(ctx, r.buyer, req.ID, "Tuesday does not work for me")
	require.NoError(t, err)
	assert.Equal(t, models.RescheduleRejectedByUser, rejected.Status)
	assert.Equal(t, "Tuesday does not work for me", rejected.RejectionReason)

	assert.False(t, f.slotAvailable(t, r.s1.ID))
	assert.True(t, f.slotAvailable(t, r.s2.ID))

	inspection, err := f.inspections.Get(ctx, r.inspection.ID)
	require.NoError(t, err)
	assert.Equal(t, r.s1.ID, inspection.SlotID)
	assert.Equal(t, models.InspectionScheduled, inspection.Status)
}

func TestRescheduleService_ProposeValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.bookedInspection(t)

	t.Run("same slot", func(t *testing.T) {
		_, err := f.reschedules.Propose(ctx, r.buyer, r.inspection.ID, r.s1.ID)
		assertCode(t, err, models.CodeValidation)
	})

	t.Run("unavailable slot", func(t *testing.T) {
		taken := f.newSlot(t, r.developer, models.Wednesday)
		_, err := f.inspections.BookSlot(ctx, buyer(), bookingFor(taken.ID))
		require.NoError(t, err)

		_, err = f.reschedules.Propose(ctx, r.buyer, r.inspection.ID, taken.ID)
		assert.True(t, errors.Is(err, models.ErrSlotUnavailable))
	})

	t.Run("slot from another organization", func(t *testing.T) {
		foreign := f.newSlot(t, org(models.OrganizationTypeDeveloper), models.Monday)
		_, err := f.reschedules.Propose(ctx, r.buyer, r.inspection.ID, foreign.ID)
		assertCode(t, err, models.CodeValidation)
	})

	t.Run("outsider", func(t *testing.T) {
		_, err := f.reschedules.Propose(ctx, buyer(), r.inspection.ID, r.s2.ID)
		assertCode(t, err, models.CodeForbidden)
	})

	t.Run("one open proposal per inspection", func(t *testing.T) {
		_, err := f.reschedules.Propose(ctx, r.buyer, r.inspection.ID, r.s2.ID)
		require.NoError(t, err)

		_, err = f.reschedules.Propose(ctx, r.developer, r.inspection.ID, r.s2.ID)
		assertCode(t, err, models.CodeConflict)
	})
}

func TestRescheduleService_AcceptAfterProposedSlotWasTaken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.bookedInspection(t)

	req, err := f.reschedules.Propose(ctx, r.buyer, r.inspection.ID, r.s2.ID)
	require.NoError(t, err)

	_, err = f.inspections.BookSlot(ctx, buyer(), bookingFor(r.s2.ID))
	require.NoError(t, err)

	_, err = f.reschedules.Accept(ctx, r.developer, req.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrSlotUnavailable))

	got, err := f.reschedules.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RescheduleProposed, got.Status)
	assert.False(t, f.slotAvailable(t, r.s1.ID), "original slot stays with the inspection")

	// The organization can still turn the stale proposal down.
	_, err = f.reschedules.Reject(ctx, r.developer, req.ID, "slot was taken")
	require.NoError(t, err)
}

func TestRescheduleService_RejectRequiresShortReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.bookedInspection(t)

	req, err := f.reschedules.Propose(ctx, r.buyer, r.inspection.ID, r.s2.ID)
	require.NoError(t, err)

	_, err = f.reschedules.Reject(ctx, r.developer, req.ID, strings.Repeat("x", 501))
	assertCode(t, err, models.CodeValidation)

	history, err := f.reschedules.ListForInspection(ctx, r.inspection.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.RescheduleProposed, history[0].Status)
}
