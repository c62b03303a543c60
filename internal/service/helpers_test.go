package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"keyhouse/internal/events"
	"keyhouse/internal/models"
	"keyhouse/internal/repository"
	"keyhouse/internal/testutil"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *repository.Store
	recorder *events.Recorder

	slots        *SlotService
	inspections  *InspectionService
	reschedules  *RescheduleService
	reviews      *ReviewService
	precedents   *PrecedentService
	loans        *LoanService
	payments     *PaymentService
	applications *ApplicationService
	jobs         *Jobs
}

type fixtureOptions struct {
	flags string
	redis redis.Cmdable
}

func newFixture(t *testing.T, opts ...fixtureOptions) *fixture {
	t.Helper()
	var o fixtureOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	store := testutil.NewStore(t)
	rec := &events.Recorder{}
	svc := newServices(store, o.redis, rec, Settings{FeatureFlags: o.flags})

	f := &fixture{store: store, recorder: rec}
	f.slots = svc.Slots
	f.inspections = svc.Inspections
	f.reschedules = svc.Reschedules
	f.reviews = svc.Reviews
	f.precedents = svc.Precedents
	f.loans = svc.Loans
	f.payments = svc.Payments
	f.applications = svc.Applications
	f.jobs = svc.Jobs
	return f
}

func buyer() models.Actor {
	return models.Actor{UserID: uuid.New()}
}

func org(t models.OrganizationType) models.Actor {
	return models.Actor{UserID: uuid.New(), OrganizationID: uuid.New(), OrganizationType: t}
}

// colleague returns another member of the same organization.
func colleague(a models.Actor) models.Actor {
	a.UserID = uuid.New()
	return a
}

// newSlot creates a template with one available slot on day.
func (f *fixture) newSlot(t *testing.T, owner models.Actor, day models.Weekday) *models.DayAvailabilitySlot {
	t.Helper()
	ctx := context.Background()
	template, err := f.slots.CreateDayAvailability(ctx, owner, "Viewings "+string(day))
	require.NoError(t, err)
	slot, err := f.slots.GenerateSlot(ctx, owner, GenerateSlotInput{
		TemplateID: template.ID,
		DayOfWeek:  string(day),
		StartTime:  "09:00",
		EndTime:    "10:00",
	})
	require.NoError(t, err)
	return slot
}

func bookingFor(slotID uuid.UUID) BookSlotInput {
	return BookSlotInput{
		SlotID:      slotID,
		FullName:    "Ada Buyer",
		Email:       "ada@example.com",
		Phone:       "+2348012345678",
		MeetingMode: models.MeetingInPerson,
	}
}

func (f *fixture) slotAvailable(t *testing.T, id uuid.UUID) bool {
	t.Helper()
	slot, err := f.store.Slots.GetSlot(context.Background(), id)
	require.NoError(t, err)
	return slot.IsAvailable
}

// configureStages enables the given stage types, in order, for a resource.
func (f *fixture) configureStages(t *testing.T, orgType models.OrganizationType, resource models.ReviewResourceType, stageTypes ...string) []*models.ReviewRequestTypeStage {
	t.Helper()
	out := make([]*models.ReviewRequestTypeStage, 0, len(stageTypes))
	for i, st := range stageTypes {
		stage, err := f.reviews.ConfigureStage(context.Background(), StageConfigInput{
			OrganizationType: orgType,
			ResourceType:     resource,
			StageType:        st,
			Name:             st,
			Position:         i + 1,
			Enabled:          true,
		})
		require.NoError(t, err)
		out = append(out, stage)
	}
	return out
}

// approveAll approves every snapshot stage of the request.
func (f *fixture) approveAll(t *testing.T, reqID, orgID uuid.UUID) *models.ReviewRequest {
	t.Helper()
	ctx := context.Background()
	req, err := f.reviews.GetRequest(ctx, reqID)
	require.NoError(t, err)

	for _, st := range req.Stages {
		req, _, err = f.reviews.RecordApproval(ctx, RecordApprovalInput{
			ReviewRequestID: reqID,
			StageTypeID:     st.StageTypeID,
			OrganizationID:  orgID,
			ApproverID:      uuid.New(),
			Decision:        models.DecisionApproved,
		})
		require.NoError(t, err)
	}
	require.Equal(t, models.ReviewComplete, req.Status)
	return req
}

// applicationAt persists an application already sitting at stage, with an
// open history row for it.
func (f *fixture) applicationAt(t *testing.T, typ models.ApplicationType, stage models.ApplicationStageName, buyerID, developerID uuid.UUID) *models.Application {
	t.Helper()
	ctx := context.Background()
	app := &models.Application{
		Type:                    typ,
		BuyerID:                 buyerID,
		DeveloperOrganizationID: developerID,
		CurrentStage:            stage,
	}
	require.NoError(t, f.store.Applications.Create(ctx, app))
	require.NoError(t, f.store.Applications.OpenStage(ctx, &models.ApplicationStage{
		ApplicationID: app.ID,
		Stage:         stage,
		EntryTime:     time.Now().UTC().Add(-time.Hour),
	}))
	return app
}

func (f *fixture) setRefs(t *testing.T, appID uuid.UUID, refs map[string]interface{}) *models.Application {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.Applications.SetReferences(ctx, appID, refs))
	app, err := f.store.Applications.GetByID(ctx, appID)
	require.NoError(t, err)
	return app
}

type loanSetup struct {
	buyer    models.Actor
	lender   models.Actor
	app      *models.Application
	decision *models.LoanDecision
}

// pendingDecision builds a mortgage application at loan_decision with a
// pending decision owned by a fresh lender.
func (f *fixture) pendingDecision(t *testing.T) loanSetup {
	t.Helper()
	ctx := context.Background()
	l := loanSetup{buyer: buyer(), lender: org(models.OrganizationTypeLender)}

	app := f.applicationAt(t, models.ApplicationTypeMortgage, models.StageLoanDecision, l.buyer.UserID, uuid.New())
	app = f.setRefs(t, app.ID, map[string]interface{}{
		"loan_offer_id":          uuid.New(),
		"lender_organization_id": l.lender.OrganizationID,
	})

	var err error
	l.decision, err = createLoanDecision(ctx, f.store, app)
	require.NoError(t, err)
	l.app = f.setRefs(t, app.ID, map[string]interface{}{"loan_decision_id": l.decision.ID})
	return l
}

func (f *fixture) payFee(t *testing.T, purpose models.PaymentPurpose, ref uuid.UUID) {
	t.Helper()
	applied, err := f.payments.OnPaymentConfirmed(context.Background(), PaymentConfirmation{
		TransactionID: "txn-" + uuid.NewString(),
		Purpose:       purpose,
		ReferenceID:   ref,
	})
	require.NoError(t, err)
	require.True(t, applied)
}

func countEvents(rec *events.Recorder, typ events.Type) int {
	n := 0
	for _, got := range rec.Types() {
		if got == typ {
			n++
		}
	}
	return n
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, models.ErrorCode(err), "unexpected error: %v", err)
}

func assertGate(t *testing.T, err error, condition string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, models.ErrStageGateNotSatisfied), "unexpected error: %v", err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, condition, appErr.Condition)
}
