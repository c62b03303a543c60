package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWeekday(t *testing.T) {
	tests := []struct {
		in   string
		want Weekday
		ok   bool
	}{
		{"monday", Monday, true},
		{"  Friday ", Friday, true},
		{"SUNDAY", Sunday, true},
		{"mon", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseWeekday(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWeekday_TimeWeekday(t *testing.T) {
	days := []Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}
	for i, d := range days {
		assert.Equal(t, time.Weekday(i), d.TimeWeekday(), string(d))
	}
}

func TestConditionPrecedent_DeriveStatus(t *testing.T) {
	cp := &ConditionPrecedent{}
	assert.Equal(t, PrecedentPending, cp.DeriveStatus())

	cp.LenderDocsReviewed = true
	assert.Equal(t, PrecedentInReview, cp.DeriveStatus())

	cp.LenderDocsReviewed = false
	cp.HSFDocsReviewed = true
	assert.Equal(t, PrecedentInReview, cp.DeriveStatus())

	cp.LenderDocsReviewed = true
	assert.Equal(t, PrecedentCompleted, cp.DeriveStatus())
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StageClosed.Terminal())
	assert.True(t, StageDeclined.Terminal())
	assert.False(t, StageEscrow.Terminal())

	assert.True(t, RescheduleAcceptedByUser.Terminal())
	assert.True(t, RescheduleRejectedByUser.Terminal())
	assert.False(t, RescheduleProposed.Terminal())

	assert.True(t, InspectionScheduled.Active())
	assert.True(t, InspectionRescheduled.Active())
	assert.False(t, InspectionAttended.Active())
	assert.False(t, InspectionCancelledByUser.Active())

	assert.True(t, InspectionCancelledByUser.Cancelled())
	assert.True(t, InspectionCancelledByOrganization.Cancelled())
	assert.False(t, InspectionNotAttended.Cancelled())
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, OrganizationTypeHSF.Valid())
	assert.False(t, OrganizationType("bank").Valid())

	assert.True(t, ResourceEscrowAttendance.Valid())
	assert.False(t, ReviewResourceType("contract").Valid())
}

func TestActor_ActsFor(t *testing.T) {
	orgID := uuid.New()

	buyer := Actor{UserID: uuid.New()}
	assert.False(t, buyer.IsOrganization())
	assert.False(t, buyer.ActsFor(uuid.Nil), "buyers never act for the zero organization")

	member := Actor{UserID: uuid.New(), OrganizationID: orgID, OrganizationType: OrganizationTypeLender}
	assert.True(t, member.ActsFor(orgID))
	assert.False(t, member.ActsFor(uuid.New()))
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, CodeNotFound, ErrorCode(NewNotFoundError("Slot", 1)))
	assert.Equal(t, CodeConflict, ErrorCode(fmt.Errorf("booking: %w", NewSlotUnavailableError(1))))
	assert.Equal(t, CodeInternal, ErrorCode(errors.New("boom")))
}

func TestDomainErrorsWrapSentinels(t *testing.T) {
	assert.ErrorIs(t, NewSlotUnavailableError(1), ErrSlotUnavailable)
	assert.ErrorIs(t, NewDuplicateSlotError(1, Monday), ErrDuplicateSlot)
	assert.ErrorIs(t, NewStaleStageError(StageCreated, StageEscrow), ErrStaleStage)
	assert.ErrorIs(t, NewInvalidTransitionError("no"), ErrInvalidTransition)
	assert.ErrorIs(t, NewReviewNotActiveError(1, ReviewComplete), ErrReviewRequestNotActive)

	gate := NewStageGateError("offer_letter_accepted")
	assert.ErrorIs(t, gate, ErrStageGateNotSatisfied)
	assert.Equal(t, "offer_letter_accepted", gate.Condition)
	assert.Equal(t, CodePrecondition, gate.Code)
}

func TestRespondWithError(t *testing.T) {
	app := fiber.New()
	app.Get("/gate", func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusUnprocessableEntity, NewStageGateError("fee_paid"))
	})
	app.Get("/internal", func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusInternalServerError, NewInternalError(errors.New("db down")))
	})
	app.Get("/plain", func(c *fiber.Ctx) error {
		return RespondWithError(c, fiber.StatusBadRequest, errors.New("plain failure"))
	})

	read := func(path string) (int, ErrorResponse) {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil), -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		var out ErrorResponse
		require.NoError(t, json.Unmarshal(body, &out))
		return resp.StatusCode, out
	}

	status, body := read("/gate")
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, CodePrecondition, body.Code)
	assert.Equal(t, "STAGE_GATE_NOT_SATISFIED", body.Reason)
	assert.Equal(t, "fee_paid", body.Condition)
	assert.Empty(t, body.Details)

	status, body = read("/internal")
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, CodeInternal, body.Code)
	assert.Equal(t, "db down", body.Details)

	status, body = read("/plain")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "plain failure", body.Error)
	assert.Empty(t, body.Code)
}
