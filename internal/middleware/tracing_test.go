package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"keyhouse/internal/models"
	"keyhouse/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := observability.Tracer
	observability.Tracer = tp.Tracer("middleware-test")
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { observability.Tracer = previous })
	return recorder
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracingMiddleware_NamesSpanByRoute(t *testing.T) {
	recorder := recordSpans(t)
	lender := models.Actor{UserID: uuid.New(), OrganizationID: uuid.New(), OrganizationType: models.OrganizationTypeLender}

	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Get("/loan-decisions/:id", AuthRequired(testSecret), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/loan-decisions/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer "+signFor(t, lender, time.Hour))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "GET /loan-decisions/:id", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
	assert.Equal(t, span.SpanContext().TraceID().String(), resp.Header.Get(TraceIDHeader))

	got := attrs(span)
	assert.Equal(t, "/loan-decisions/:id", got["http.route"].AsString())
	assert.Equal(t, int64(http.StatusOK), got["http.status_code"].AsInt64())
	assert.Equal(t, lender.UserID.String(), got["user.id"].AsString())
	assert.Equal(t, lender.OrganizationID.String(), got["organization.id"].AsString())
	assert.Equal(t, string(models.OrganizationTypeLender), got["organization.type"].AsString())
	assert.Equal(t, codes.Unset, span.Status().Code)
}

func TestTracingMiddleware_ContinuesUpstreamTrace(t *testing.T) {
	recorder := recordSpans(t)

	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	const parent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("traceparent", parent)
	_, err := app.Test(req)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", spans[0].SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", spans[0].Parent().SpanID().String())
}

func TestTracingMiddleware_MarksServerErrors(t *testing.T) {
	recorder := recordSpans(t)

	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(assert.AnError))
	})
	app.Get("/missing", func(c *fiber.Ctx) error {
		return models.NewNotFoundError("Inspection", "x")
	})

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	_, err = app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	missing := attrs(spans[1])
	assert.Equal(t, models.CodeNotFound, missing["error.code"].AsString())
	require.NotEmpty(t, spans[1].Events())
	assert.Equal(t, "exception", spans[1].Events()[0].Name)
}
