package server

import (
	"errors"
	"net/http"
	"testing"

	"keyhouse/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/health/ready", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}](t, resp)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Checks["database"])
	assert.Equal(t, "disabled", body.Checks["redis"])
}

func TestReadiness_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	env := newTestEnvWith(t, testConfig(), rdb)

	resp := env.request(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Checks map[string]string `json:"checks"`
	}](t, resp)
	assert.Equal(t, "healthy", body.Checks["redis"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/api/applications", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestInvalidUUIDParam(t *testing.T) {
	env := newTestEnv(t)
	buyer := buyerActor()

	resp := env.request(t, http.MethodGet, "/api/inspections/not-a-uuid", &buyer, nil)
	body := expectError(t, resp, http.StatusBadRequest, models.CodeValidation)
	assert.Equal(t, "Invalid ID", body.Error)

	resp = env.request(t, http.MethodGet, "/api/organizations/nope/slots", &buyer, nil)
	body = expectError(t, resp, http.StatusBadRequest, models.CodeValidation)
	assert.Equal(t, "Invalid org ID", body.Error)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", models.NewValidationError("bad"), fiber.StatusBadRequest},
		{"not found", models.NewNotFoundError("Inspection", 1), fiber.StatusNotFound},
		{"slot race", models.NewSlotUnavailableError(1), fiber.StatusConflict},
		{"stale stage", models.NewStaleStageError(models.StageCreated, models.StageEscrow), fiber.StatusConflict},
		{"gate", models.NewStageGateError("escrow_completed"), fiber.StatusUnprocessableEntity},
		{"invalid transition", models.NewInvalidTransitionError("no"), fiber.StatusUnprocessableEntity},
		{"forbidden", models.NewForbiddenError("no"), fiber.StatusForbidden},
		{"foreign", errors.New("boom"), fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestHumanizeParam(t *testing.T) {
	assert.Equal(t, "ID", humanizeParam("id"))
	assert.Equal(t, "org ID", humanizeParam("orgId"))
	assert.Equal(t, "reviewer", humanizeParam("reviewer"))
}

func TestFeatureFlags(t *testing.T) {
	cfg := testConfig()
	cfg.FeatureFlags = "inspection_fee_required=on,virtual_inspections=off"
	env := newTestEnvWith(t, cfg, nil)
	developer := orgActor(models.OrganizationTypeDeveloper)

	resp := env.request(t, http.MethodGet, "/api/feature-flags", &developer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	flags := decode[map[string]bool](t, resp)
	assert.True(t, flags["inspection_fee_required"])
	assert.False(t, flags["virtual_inspections"])
}

func TestBookingRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	env := newTestEnvWith(t, testConfig(), rdb)
	buyer := buyerActor()

	for i := 0; i < 10; i++ {
		resp := env.request(t, http.MethodPost, "/api/inspections", &buyer, fiber.Map{})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, "request %d", i+1)
	}

	resp := env.request(t, http.MethodPost, "/api/inspections", &buyer, fiber.Map{})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	other := buyerActor()
	resp = env.request(t, http.MethodPost, "/api/inspections", &other, fiber.Map{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
