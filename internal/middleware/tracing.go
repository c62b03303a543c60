package middleware

import (
	"net/http"

	"keyhouse/internal/models"
	"keyhouse/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDHeader echoes the request's trace ID back to the caller.
const TraceIDHeader = "X-Trace-ID"

// TracingMiddleware opens a server span per request. The span continues any
// upstream trace found in the headers, and is renamed to the matched route
// template once routing is done so IDs do not end up in span names.
func TracingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Continue an upstream trace (traceparent / baggage)
		carrier := propagation.HeaderCarrier(http.Header(c.GetReqHeaders()))
		ctx := otel.GetTextMapPropagator().Extract(c.UserContext(), carrier)

		ctx, span := observability.Tracer.Start(ctx, "HTTP "+c.Method(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.path", c.Path()),
				attribute.String("http.ip", c.IP()),
			),
		)
		defer span.End()

		// ContextMiddleware and the request logger read these
		traceID := span.SpanContext().TraceID().String()
		c.Locals("traceID", traceID)
		c.Locals("spanID", span.SpanContext().SpanID().String())
		c.Set(TraceIDHeader, traceID)

		if rid, ok := c.Locals("requestid").(string); ok {
			span.SetAttributes(attribute.String("request.id", rid))
		}

		c.SetUserContext(ctx)
		err := c.Next()

		route := c.Route().Path
		span.SetName(c.Method() + " " + route)
		span.SetAttributes(attribute.String("http.route", route))

		// Handlers usually respond through RespondWithError and return nil,
		// so the status code is the reliable failure signal.
		status := c.Response().StatusCode()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.code", models.ErrorCode(err)))
		}
		if status >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		// Set by AuthRequired further down the chain
		if actor, ok := ActorFromLocals(c); ok {
			span.SetAttributes(attribute.String("user.id", actor.UserID.String()))
			if actor.IsOrganization() {
				span.SetAttributes(
					attribute.String("organization.id", actor.OrganizationID.String()),
					attribute.String("organization.type", string(actor.OrganizationType)),
				)
			}
		}

		return err
	}
}
