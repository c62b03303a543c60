package service

import (
	"context"
	"strings"
	"time"

	"keyhouse/internal/cache"
	"keyhouse/internal/models"
	"keyhouse/internal/repository"
	"keyhouse/internal/validation"

	"github.com/google/uuid"
)

const slotComponent = "slot_store"

// SlotService owns availability templates and the bookable slots generated
// from them.
type SlotService struct {
	store *repository.Store
	cache *cache.Cache
	ttl   time.Duration
}

type GenerateSlotInput struct {
	TemplateID uuid.UUID
	DayOfWeek  string
	StartTime  string
	EndTime    string
}

// NewSlotService creates a slot service. A zero ttl uses the default listing TTL.
func NewSlotService(store *repository.Store, c *cache.Cache, ttl time.Duration) *SlotService {
	if ttl <= 0 {
		ttl = cache.AvailableSlotsTTL
	}
	return &SlotService{store: store, cache: c, ttl: ttl}
}

// CreateDayAvailability creates a named template owned by the actor's organization.
func (s *SlotService) CreateDayAvailability(ctx context.Context, actor models.Actor, name string) (template *models.DayAvailability, err error) {
	ctx, span := begin(ctx, slotComponent, "CreateDayAvailability", idAttr("organization_id", actor.OrganizationID))
	defer func() { finish(ctx, span, slotComponent, "CreateDayAvailability", err) }()

	if err := requireOrganization(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.NewValidationError("Template name is required")
	}

	template = &models.DayAvailability{OrganizationID: actor.OrganizationID, Name: name}
	if err := s.store.Slots.CreateTemplate(ctx, template); err != nil {
		return nil, err
	}
	return template, nil
}

// GenerateSlot materializes one available slot on a template. Only the
// owning organization may generate slots.
func (s *SlotService) GenerateSlot(ctx context.Context, actor models.Actor, in GenerateSlotInput) (slot *models.DayAvailabilitySlot, err error) {
	ctx, span := begin(ctx, slotComponent, "GenerateSlot", idAttr("template_id", in.TemplateID))
	defer func() { finish(ctx, span, slotComponent, "GenerateSlot", err) }()

	day, err := validation.ParseDayOfWeek(in.DayOfWeek)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateSlotWindow(in.StartTime, in.EndTime); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	template, err := s.store.Slots.GetTemplate(ctx, in.TemplateID)
	if err != nil {
		return nil, err
	}
	if !actor.ActsFor(template.OrganizationID) {
		return nil, models.NewForbiddenError("Only the owning organization may generate slots")
	}

	slot = &models.DayAvailabilitySlot{
		DayAvailabilityID: template.ID,
		OrganizationID:    template.OrganizationID,
		DayOfWeek:         day,
		StartTime:         in.StartTime,
		EndTime:           in.EndTime,
		IsAvailable:       true,
	}
	if err := s.store.Slots.CreateSlot(ctx, slot); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, cache.AvailableSlotsKey(template.OrganizationID))
	return slot, nil
}

// ListAvailableSlots is the cached read path for slot pickers. Booking
// never consults it.
func (s *SlotService) ListAvailableSlots(ctx context.Context, orgID uuid.UUID) ([]models.DayAvailabilitySlot, error) {
	var slots []models.DayAvailabilitySlot
	err := s.cache.Aside(ctx, cache.AvailableSlotsKey(orgID), &slots, s.ttl, func() error {
		var err error
		slots, err = s.store.Slots.ListAvailable(ctx, orgID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (s *SlotService) ListTemplates(ctx context.Context, orgID uuid.UUID) ([]models.DayAvailability, error) {
	return s.store.Slots.ListTemplates(ctx, orgID)
}

func (s *SlotService) GetTemplate(ctx context.Context, id uuid.UUID) (*models.DayAvailability, error) {
	return s.store.Slots.GetTemplate(ctx, id)
}

func (s *SlotService) GetSlot(ctx context.Context, id uuid.UUID) (*models.DayAvailabilitySlot, error) {
	return s.store.Slots.GetSlot(ctx, id)
}
