package service

import (
	"context"
	"errors"
	"testing"

	"keyhouse/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotService_GenerateSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	developer := org(models.OrganizationTypeDeveloper)

	template, err := f.slots.CreateDayAvailability(ctx, developer, "Weekday mornings")
	require.NoError(t, err)

	t.Run("creates an available slot", func(t *testing.T) {
		slot, err := f.slots.GenerateSlot(ctx, colleague(developer), GenerateSlotInput{
			TemplateID: template.ID, DayOfWeek: "Monday", StartTime: "09:00", EndTime: "10:00",
		})
		require.NoError(t, err)
		assert.True(t, slot.IsAvailable)
		assert.Equal(t, models.Monday, slot.DayOfWeek)
		assert.Equal(t, developer.OrganizationID, slot.OrganizationID)
	})

	t.Run("duplicate day surfaces DuplicateSlot", func(t *testing.T) {
		_, err := f.slots.GenerateSlot(ctx, developer, GenerateSlotInput{
			TemplateID: template.ID, DayOfWeek: "monday", StartTime: "11:00", EndTime: "12:00",
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrDuplicateSlot))
		assertCode(t, err, models.CodeConflict)
	})

	t.Run("start must precede end", func(t *testing.T) {
		_, err := f.slots.GenerateSlot(ctx, developer, GenerateSlotInput{
			TemplateID: template.ID, DayOfWeek: "tuesday", StartTime: "10:00", EndTime: "09:00",
		})
		assertCode(t, err, models.CodeValidation)
	})

	t.Run("unknown day", func(t *testing.T) {
		_, err := f.slots.GenerateSlot(ctx, developer, GenerateSlotInput{
			TemplateID: template.ID, DayOfWeek: "someday", StartTime: "09:00", EndTime: "10:00",
		})
		assertCode(t, err, models.CodeValidation)
	})

	t.Run("other organizations are forbidden", func(t *testing.T) {
		_, err := f.slots.GenerateSlot(ctx, org(models.OrganizationTypeDeveloper), GenerateSlotInput{
			TemplateID: template.ID, DayOfWeek: "wednesday", StartTime: "09:00", EndTime: "10:00",
		})
		assertCode(t, err, models.CodeForbidden)
	})

	t.Run("buyers cannot create templates", func(t *testing.T) {
		_, err := f.slots.CreateDayAvailability(ctx, buyer(), "mine")
		assertCode(t, err, models.CodeForbidden)
	})
}

func TestSlotService_ListingCacheIsInvalidatedByBooking(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newFixture(t, fixtureOptions{redis: rdb})
	ctx := context.Background()
	developer := org(models.OrganizationTypeDeveloper)
	slot := f.newSlot(t, developer, models.Monday)

	listed, err := f.slots.ListAvailableSlots(ctx, developer.OrganizationID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = f.inspections.BookSlot(ctx, buyer(), bookingFor(slot.ID))
	require.NoError(t, err)

	listed, err = f.slots.ListAvailableSlots(ctx, developer.OrganizationID)
	require.NoError(t, err)
	assert.Empty(t, listed, "booking must invalidate the cached listing")
}
