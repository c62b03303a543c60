package seed

import (
	"context"
	"fmt"

	"keyhouse/internal/models"
	"keyhouse/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

var demoDays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// DemoOptions sizes the generated demo data set.
type DemoOptions struct {
	Developers int
	Buyers     int
	// Seed makes the generated names and times reproducible. Zero picks a
	// random seed.
	Seed int64
}

// Demo is what SeedDemo created. Actors are returned so tooling can mint
// tokens for them.
type Demo struct {
	Developers   []models.Actor
	Lender       models.Actor
	Buyers       []models.Actor
	Slots        []models.DayAvailabilitySlot
	Applications []models.Application
	Inspections  []models.Inspection
}

// Factory builds demo entities through the engines so every invariant the
// services enforce also holds for seeded data.
type Factory struct {
	svc   *service.Services
	faker *gofakeit.Faker
}

// NewFactory creates a factory. A zero seed uses a random one.
func NewFactory(svc *service.Services, seed int64) *Factory {
	return &Factory{svc: svc, faker: gofakeit.New(seed)}
}

// Organization returns a fresh member of a new organization of type t.
func (f *Factory) Organization(t models.OrganizationType) models.Actor {
	return models.Actor{UserID: uuid.New(), OrganizationID: uuid.New(), OrganizationType: t}
}

// Buyer returns a fresh individual buyer.
func (f *Factory) Buyer() models.Actor {
	return models.Actor{UserID: uuid.New()}
}

// Contact builds plausible booking details for slotID.
func (f *Factory) Contact(slotID uuid.UUID, applicationID *uuid.UUID) service.BookSlotInput {
	mode := models.MeetingInPerson
	if f.faker.Bool() {
		mode = models.MeetingVirtual
	}
	return service.BookSlotInput{
		SlotID:        slotID,
		ApplicationID: applicationID,
		FullName:      f.faker.Name(),
		Email:         f.faker.Email(),
		Phone:         "+1 " + f.faker.Phone(),
		MeetingMode:   mode,
	}
}

// Showroom creates a template for developer and one slot per demo day.
func (f *Factory) Showroom(ctx context.Context, developer models.Actor) ([]models.DayAvailabilitySlot, error) {
	template, err := f.svc.Slots.CreateDayAvailability(ctx, developer, f.faker.Company()+" showroom")
	if err != nil {
		return nil, err
	}

	slots := make([]models.DayAvailabilitySlot, 0, len(demoDays))
	for _, day := range demoDays {
		hour := f.faker.Number(8, 16)
		slot, err := f.svc.Slots.GenerateSlot(ctx, developer, service.GenerateSlotInput{
			TemplateID: template.ID,
			DayOfWeek:  day,
			StartTime:  fmt.Sprintf("%02d:00", hour),
			EndTime:    fmt.Sprintf("%02d:00", hour+1),
		})
		if err != nil {
			return nil, err
		}
		slots = append(slots, *slot)
	}
	return slots, nil
}

// SeedDemo creates developers with showrooms, one lender, and buyers who
// each start an application and book an inspection with their developer
// while slots last.
func (f *Factory) SeedDemo(ctx context.Context, opts DemoOptions) (*Demo, error) {
	if opts.Developers <= 0 {
		return nil, fmt.Errorf("at least one developer is required")
	}

	demo := &Demo{Lender: f.Organization(models.OrganizationTypeLender)}
	free := make(map[uuid.UUID][]models.DayAvailabilitySlot, opts.Developers)
	for i := 0; i < opts.Developers; i++ {
		dev := f.Organization(models.OrganizationTypeDeveloper)
		slots, err := f.Showroom(ctx, dev)
		if err != nil {
			return nil, fmt.Errorf("showroom for developer %d: %w", i, err)
		}
		demo.Developers = append(demo.Developers, dev)
		demo.Slots = append(demo.Slots, slots...)
		free[dev.OrganizationID] = slots
	}

	for i := 0; i < opts.Buyers; i++ {
		buyer := f.Buyer()
		dev := demo.Developers[i%len(demo.Developers)]

		typ := models.ApplicationTypeMortgage
		if f.faker.Bool() {
			typ = models.ApplicationTypeOutright
		}
		app, err := f.svc.Applications.Create(ctx, buyer, service.CreateApplicationInput{
			Type:                    typ,
			DeveloperOrganizationID: dev.OrganizationID,
		})
		if err != nil {
			return nil, fmt.Errorf("application for buyer %d: %w", i, err)
		}
		demo.Buyers = append(demo.Buyers, buyer)

		remaining := free[dev.OrganizationID]
		if len(remaining) > 0 {
			inspection, err := f.svc.Inspections.BookSlot(ctx, buyer, f.Contact(remaining[0].ID, &app.ID))
			if err != nil {
				return nil, fmt.Errorf("inspection for buyer %d: %w", i, err)
			}
			free[dev.OrganizationID] = remaining[1:]
			demo.Inspections = append(demo.Inspections, *inspection)
		}

		// Re-read so the inspection link is visible.
		app, err = f.svc.Applications.Get(ctx, app.ID)
		if err != nil {
			return nil, err
		}
		demo.Applications = append(demo.Applications, *app)
	}
	return demo, nil
}
