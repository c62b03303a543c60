package service

import (
	"context"
	"testing"

	"keyhouse/internal/events"
	"keyhouse/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentService_ReplayedConfirmationIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.pendingDecision(t)

	confirmation := PaymentConfirmation{
		TransactionID: "psk_12345",
		Purpose:       models.PaymentPurposeProcessingFee,
		ReferenceID:   l.decision.ID,
	}
	applied, err := f.payments.OnPaymentConfirmed(ctx, confirmation)
	require.NoError(t, err)
	assert.True(t, applied)

	decision, err := f.loans.GetDecision(ctx, l.decision.ID)
	require.NoError(t, err)
	require.NotNil(t, decision.ProcessingFeePaidAt)
	paidAt := *decision.ProcessingFeePaidAt

	applied, err = f.payments.OnPaymentConfirmed(ctx, confirmation)
	require.NoError(t, err)
	assert.False(t, applied)

	decision, err = f.loans.GetDecision(ctx, l.decision.ID)
	require.NoError(t, err)
	assert.True(t, paidAt.Equal(*decision.ProcessingFeePaidAt))
	assert.Nil(t, decision.ManagementFeePaidAt)
}

func TestPaymentService_ManagementFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.pendingDecision(t)

	f.payFee(t, models.PaymentPurposeManagementFee, l.decision.ID)

	decision, err := f.loans.GetDecision(ctx, l.decision.ID)
	require.NoError(t, err)
	assert.NotNil(t, decision.ManagementFeePaidAt)
	assert.Nil(t, decision.ProcessingFeePaidAt)
}

func TestPaymentService_InspectionFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	slot := f.newSlot(t, org(models.OrganizationTypeDeveloper), models.Friday)
	inspection, err := f.inspections.BookSlot(ctx, buyer(), bookingFor(slot.ID))
	require.NoError(t, err)

	f.payFee(t, models.PaymentPurposeInspectionFee, inspection.ID)

	got, err := f.inspections.Get(ctx, inspection.ID)
	require.NoError(t, err)
	assert.True(t, got.FeePaid)
	assert.Equal(t, 1, countEvents(f.recorder, events.InspectionConfirmed))

	// A direct confirmation afterwards is a no-op.
	_, err = f.inspections.ConfirmAndScheduleAfterPayment(ctx, inspection.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, countEvents(f.recorder, events.InspectionConfirmed))
}

func TestPaymentService_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.payments.OnPaymentConfirmed(ctx, PaymentConfirmation{
		TransactionID: "txn-1", Purpose: "membership_fee", ReferenceID: uuid.New(),
	})
	assertCode(t, err, models.CodeValidation)

	_, err = f.payments.OnPaymentConfirmed(ctx, PaymentConfirmation{
		TransactionID: " ", Purpose: models.PaymentPurposeInspectionFee, ReferenceID: uuid.New(),
	})
	assertCode(t, err, models.CodeValidation)

	_, err = f.payments.OnPaymentConfirmed(ctx, PaymentConfirmation{
		TransactionID: "txn-2", Purpose: models.PaymentPurposeProcessingFee,
	})
	assertCode(t, err, models.CodeValidation)

	unknown := PaymentConfirmation{TransactionID: "txn-3", Purpose: models.PaymentPurposeProcessingFee, ReferenceID: uuid.New()}
	_, err = f.payments.OnPaymentConfirmed(ctx, unknown)
	assertCode(t, err, models.CodeNotFound)

	// The failed attempt did not consume the transaction id.
	l := f.pendingDecision(t)
	unknown.ReferenceID = l.decision.ID
	applied, err := f.payments.OnPaymentConfirmed(ctx, unknown)
	require.NoError(t, err)
	assert.True(t, applied)
}
