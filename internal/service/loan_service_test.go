package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"keyhouse/internal/events"
	"keyhouse/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoanService_DecideRequiresProcessingFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.pendingDecision(t)
	approve := DecideLoanInput{DecisionID: l.decision.ID, Approve: true, PrincipalMinor: 1_000, TenorMonths: 3}

	_, err := f.loans.Decide(ctx, l.lender, approve)
	assertCode(t, err, models.CodePrecondition)

	f.payFee(t, models.PaymentPurposeProcessingFee, l.decision.ID)

	_, err = f.loans.Decide(ctx, org(models.OrganizationTypeLender), approve)
	assertCode(t, err, models.CodeForbidden)

	invalid := approve
	invalid.TenorMonths = 0
	_, err = f.loans.Decide(ctx, l.lender, invalid)
	assertCode(t, err, models.CodeValidation)

	decision, err := f.loans.Decide(ctx, colleague(l.lender), approve)
	require.NoError(t, err)
	assert.Equal(t, models.LoanDecisionApproved, decision.Status)
	assert.Equal(t, int64(1_000), decision.PrincipalMinor)
	assert.NotNil(t, decision.DecidedAt)
	assert.Contains(t, f.recorder.Types(), events.LoanDecided)

	repayments, err := f.loans.ListRepayments(ctx, decision.ID)
	require.NoError(t, err)
	require.Len(t, repayments, 3)
	var total int64
	for i, r := range repayments {
		assert.Equal(t, i+1, r.InstallmentNo)
		assert.Equal(t, models.RepaymentPending, r.Status)
		total += r.AmountMinor
	}
	assert.Equal(t, int64(1_000), total)

	_, err = f.loans.Decide(ctx, l.lender, DecideLoanInput{DecisionID: l.decision.ID, Reason: "second thoughts"})
	assert.True(t, errors.Is(err, models.ErrInvalidTransition))
}

func TestLoanService_DeclineCreatesNoSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.pendingDecision(t)
	f.payFee(t, models.PaymentPurposeProcessingFee, l.decision.ID)

	decision, err := f.loans.Decide(ctx, l.lender, DecideLoanInput{DecisionID: l.decision.ID, Reason: "income not verified"})
	require.NoError(t, err)
	assert.Equal(t, models.LoanDecisionDeclined, decision.Status)
	assert.Equal(t, "income not verified", decision.Reason)

	repayments, err := f.loans.ListRepayments(ctx, decision.ID)
	require.NoError(t, err)
	assert.Empty(t, repayments)

	_, err = f.applications.Advance(ctx, l.lender, advanceTo(models.StageClosed, l.app.ID))
	assertGate(t, err, "loan_decision_approved")
}

func TestLoanService_Repayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.pendingDecision(t)
	f.payFee(t, models.PaymentPurposeProcessingFee, l.decision.ID)

	_, err := f.loans.Decide(ctx, l.lender, DecideLoanInput{
		DecisionID: l.decision.ID, Approve: true, PrincipalMinor: 600_000, TenorMonths: 6,
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	overdue, err := f.loans.CheckOverdueLoans(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, overdue)

	overdue, err = f.loans.CheckOverdueLoans(ctx, now.AddDate(0, 2, 15))
	require.NoError(t, err)
	assert.Equal(t, 2, overdue)
	assert.Equal(t, 2, countEvents(f.recorder, events.LoanRepaymentOverdue))

	repayments, err := f.loans.ListRepayments(ctx, l.decision.ID)
	require.NoError(t, err)
	first := repayments[0]
	assert.Equal(t, models.RepaymentOverdue, first.Status)
	assert.Equal(t, models.RepaymentPending, repayments[2].Status)

	_, err = f.loans.RecordRepayment(ctx, buyer(), first.ID)
	assertCode(t, err, models.CodeForbidden)

	paid, err := f.loans.RecordRepayment(ctx, l.buyer, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RepaymentPaid, paid.Status)
	assert.NotNil(t, paid.PaidAt)

	_, err = f.loans.RecordRepayment(ctx, l.lender, first.ID)
	assert.True(t, errors.Is(err, models.ErrInvalidTransition))

	paid, err = f.loans.RecordRepayment(ctx, l.lender, repayments[2].ID)
	require.NoError(t, err)
	assert.Equal(t, 3, paid.InstallmentNo)

	// Marked installments are not counted twice.
	overdue, err = f.loans.CheckOverdueLoans(ctx, now.AddDate(0, 2, 15))
	require.NoError(t, err)
	assert.Zero(t, overdue)

	_, err = f.loans.RecordRepayment(ctx, l.buyer, uuid.New())
	assertCode(t, err, models.CodeNotFound)
}

func TestRepaymentSchedule(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	id := uuid.New()

	rows := RepaymentSchedule(id, 1_000, 3, start)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(333), rows[0].AmountMinor)
	assert.Equal(t, int64(333), rows[1].AmountMinor)
	assert.Equal(t, int64(334), rows[2].AmountMinor)
	assert.Equal(t, time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), rows[0].DueDate)
	assert.Equal(t, time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC), rows[2].DueDate)
	for _, r := range rows {
		assert.Equal(t, id, r.LoanDecisionID)
		assert.Equal(t, models.RepaymentPending, r.Status)
	}

	assert.Nil(t, RepaymentSchedule(id, 1_000, 0, start))
}
