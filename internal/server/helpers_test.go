package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"keyhouse/internal/config"
	"keyhouse/internal/middleware"
	"keyhouse/internal/models"
	"keyhouse/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "server-test-secret"

type testEnv struct {
	server *Server
	app    *fiber.App
}

func testConfig() *config.Config {
	return &config.Config{
		Env:            "test",
		JWTSecret:      testSecret,
		AllowedOrigins: "http://localhost:3000",
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, testConfig(), nil)
}

func newTestEnvWith(t *testing.T, cfg *config.Config, rdb *redis.Client) *testEnv {
	t.Helper()
	s := NewServerWithDeps(cfg, testutil.NewDB(t), rdb)
	return &testEnv{server: s, app: s.App()}
}

func buyerActor() models.Actor {
	return models.Actor{UserID: uuid.New()}
}

func orgActor(typ models.OrganizationType) models.Actor {
	return models.Actor{UserID: uuid.New(), OrganizationID: uuid.New(), OrganizationType: typ}
}

func tokenFor(t *testing.T, a models.Actor) string {
	t.Helper()
	token, err := middleware.SignActorToken(a, testSecret, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)
	return token
}

// request sends a JSON request as a (nil for anonymous) and returns the response.
func (e *testEnv) request(t *testing.T, method, path string, a *models.Actor, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a != nil {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, *a))
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// expectError asserts status and the error envelope, returning it for
// further checks.
func expectError(t *testing.T, resp *http.Response, status int, code string) models.ErrorResponse {
	t.Helper()
	require.Equal(t, status, resp.StatusCode)
	body := decode[models.ErrorResponse](t, resp)
	assert.Equal(t, code, body.Code)
	return body
}

// availableSlot creates a template and one Monday slot owned by developer.
func (e *testEnv) availableSlot(t *testing.T, developer models.Actor) models.DayAvailabilitySlot {
	t.Helper()

	resp := e.request(t, http.MethodPost, "/api/availability/templates", &developer, fiber.Map{"name": "Showroom"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	template := decode[models.DayAvailability](t, resp)

	resp = e.request(t, http.MethodPost, "/api/availability/templates/"+template.ID.String()+"/slots", &developer, fiber.Map{
		"day_of_week": "monday",
		"start_time":  "09:00",
		"end_time":    "10:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[models.DayAvailabilitySlot](t, resp)
}

func booking(slotID uuid.UUID) fiber.Map {
	return fiber.Map{
		"slot_id":      slotID,
		"full_name":    "Ada Buyer",
		"email":        "ada@example.com",
		"phone":        "+2348012345678",
		"meeting_mode": models.MeetingInPerson,
	}
}

func (e *testEnv) bookedInspection(t *testing.T, developer, buyer models.Actor) models.Inspection {
	t.Helper()
	slot := e.availableSlot(t, developer)
	resp := e.request(t, http.MethodPost, "/api/inspections", &buyer, booking(slot.ID))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[models.Inspection](t, resp)
}

func (e *testEnv) createApplication(t *testing.T, buyer models.Actor, typ models.ApplicationType, developerOrg uuid.UUID) models.Application {
	t.Helper()
	resp := e.request(t, http.MethodPost, "/api/applications", &buyer, fiber.Map{
		"type":                      typ,
		"developer_organization_id": developerOrg,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[models.Application](t, resp)
}

func (e *testEnv) advance(t *testing.T, a models.Actor, appID uuid.UUID, target models.ApplicationStageName) *http.Response {
	t.Helper()
	return e.request(t, http.MethodPost, "/api/applications/"+appID.String()+"/advance", &a, fiber.Map{"target": target})
}
