package seed_test

import (
	"context"
	"strings"
	"testing"

	"keyhouse/internal/models"
	"keyhouse/internal/seed"
	"keyhouse/internal/service"
	"keyhouse/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServices(t *testing.T) *service.Services {
	t.Helper()
	return service.NewServices(testutil.NewStore(t), nil, service.Settings{})
}

func TestBuiltInStageConfig(t *testing.T) {
	blocks, err := seed.BuiltInStageConfig()
	require.NoError(t, err)
	require.NotEmpty(t, blocks)

	resources := map[models.ReviewResourceType]bool{}
	for _, b := range blocks {
		resources[b.ResourceType] = true
	}
	assert.True(t, resources[models.ResourceOfferLetter])
	assert.True(t, resources[models.ResourceEscrowAttendance])
}

func TestLoadStageConfig_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "unknown organization type",
			doc: `
- organization_type: bank
  resource_type: offer_letter
  stages: [{type: legal, enabled: true}]
`,
		},
		{
			name: "unknown resource type",
			doc: `
- organization_type: developer
  resource_type: deed
  stages: [{type: legal, enabled: true}]
`,
		},
		{
			name: "blank stage type",
			doc: `
- organization_type: developer
  resource_type: offer_letter
  stages: [{type: " ", enabled: true}]
`,
		},
		{
			name: "duplicate stage",
			doc: `
- organization_type: developer
  resource_type: offer_letter
  stages: [{type: legal, enabled: true}, {type: legal, enabled: false}]
`,
		},
		{
			name: "unknown field",
			doc: `
- organization_type: developer
  resource_type: offer_letter
  steps: []
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := seed.LoadStageConfig(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestApplyStageConfig_IdempotentAndOrdered(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()

	blocks, err := seed.LoadStageConfig(strings.NewReader(`
- organization_type: developer
  resource_type: offer_letter
  stages:
    - {type: legal, name: Legal, enabled: true}
    - {type: sales, name: Sales, enabled: false}
`))
	require.NoError(t, err)

	applied, err := seed.ApplyStageConfig(ctx, svc.Reviews, blocks)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	_, err = seed.ApplyStageConfig(ctx, svc.Reviews, blocks)
	require.NoError(t, err)

	stages, err := svc.Reviews.ListStages(ctx, models.OrganizationTypeDeveloper, models.ResourceOfferLetter)
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, "legal", stages[0].StageType)
	assert.Equal(t, 1, stages[0].Position)
	assert.True(t, stages[0].Enabled)
	assert.Equal(t, "sales", stages[1].StageType)
	assert.Equal(t, 2, stages[1].Position)
	assert.False(t, stages[1].Enabled)
}

func TestRun_SeedsStagesAndDemo(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()

	res, err := seed.Run(ctx, svc, seed.Options{
		Demo: &seed.DemoOptions{Developers: 2, Buyers: 3, Seed: 42},
	})
	require.NoError(t, err)
	assert.Positive(t, res.StagesApplied)
	require.NotNil(t, res.Demo)

	demo := res.Demo
	assert.Len(t, demo.Developers, 2)
	assert.Len(t, demo.Applications, 3)
	assert.Len(t, demo.Inspections, 3)
	assert.Equal(t, models.OrganizationTypeLender, demo.Lender.OrganizationType)

	for i, app := range demo.Applications {
		assert.Equal(t, models.StageCreated, app.CurrentStage)
		require.NotNil(t, app.InspectionID, "application %d", i)
		assert.Equal(t, demo.Inspections[i].ID, *app.InspectionID)
	}

	// Booked slots are no longer offered.
	booked := 0
	for _, dev := range demo.Developers {
		available, err := svc.Slots.ListAvailableSlots(ctx, dev.OrganizationID)
		require.NoError(t, err)
		booked += 6 - len(available)
	}
	assert.Equal(t, 3, booked)

	// The built-in offer letter stages are usable right away.
	_, err = svc.Reviews.CreateReviewRequest(ctx, service.CreateReviewRequestInput{
		OrganizationType: models.OrganizationTypeDeveloper,
		OrganizationID:   demo.Developers[0].OrganizationID,
		ResourceType:     models.ResourceOfferLetter,
		ResourceID:       demo.Applications[0].ID,
	})
	assert.NoError(t, err)
}

func TestSeedDemo_RunsOutOfSlotsGracefully(t *testing.T) {
	svc := newServices(t)
	demo, err := seed.NewFactory(svc, 7).SeedDemo(context.Background(), seed.DemoOptions{Developers: 1, Buyers: 8})
	require.NoError(t, err)
	assert.Len(t, demo.Applications, 8)
	assert.Len(t, demo.Inspections, 6)
}

func TestSeedDemo_RequiresDeveloper(t *testing.T) {
	_, err := seed.NewFactory(newServices(t), 1).SeedDemo(context.Background(), seed.DemoOptions{})
	assert.Error(t, err)
}
