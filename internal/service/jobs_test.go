package service

import (
	"context"
	"testing"
	"time"

	"keyhouse/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobs_Names(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []string{
		JobCheckOverdueLoans,
		JobExpirePendingPrecedents,
		JobReleaseUnpaidInspections,
	}, f.jobs.Names())
}

func TestJobs_Run(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := f.jobs.Run(ctx, "rebuild-search-index", now, uuid.Nil)
	assert.Error(t, err)

	_, err = f.jobs.Run(ctx, JobConfirmInspection, now, uuid.Nil)
	assert.Error(t, err)

	slot := f.newSlot(t, org(models.OrganizationTypeDeveloper), models.Sunday)
	inspection, err := f.inspections.BookSlot(ctx, buyer(), bookingFor(slot.ID))
	require.NoError(t, err)

	affected, err := f.jobs.Run(ctx, JobConfirmInspection, now, inspection.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, affected)

	got, err := f.inspections.Get(ctx, inspection.ID)
	require.NoError(t, err)
	assert.True(t, got.FeePaid)
}

func TestJobs_RunAll(t *testing.T) {
	f := newFixture(t, fixtureOptions{flags: "inspection_fee_required=on"})
	ctx := context.Background()

	l := f.pendingDecision(t)
	f.payFee(t, models.PaymentPurposeProcessingFee, l.decision.ID)
	_, err := f.loans.Decide(ctx, l.lender, DecideLoanInput{
		DecisionID: l.decision.ID, Approve: true, PrincipalMinor: 300, TenorMonths: 3,
	})
	require.NoError(t, err)

	slot := f.newSlot(t, org(models.OrganizationTypeDeveloper), models.Monday)
	inspection, err := f.inspections.BookSlot(ctx, buyer(), bookingFor(slot.ID))
	require.NoError(t, err)

	require.NoError(t, f.jobs.RunAll(ctx, time.Now().UTC().AddDate(0, 1, 1)))

	repayments, err := f.loans.ListRepayments(ctx, l.decision.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RepaymentOverdue, repayments[0].Status)

	got, err := f.inspections.Get(ctx, inspection.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InspectionCancelledByOrganization, got.Status)
	assert.True(t, f.slotAvailable(t, slot.ID))
}
