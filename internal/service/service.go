// Package service implements the application lifecycle engines: slot store,
// inspection scheduler, reschedule negotiator, review engine, condition
// precedent tracker, application orchestrator, loans and payments.
package service

import (
	"context"
	"log/slog"
	"time"

	"keyhouse/internal/middleware"
	"keyhouse/internal/models"
	"keyhouse/internal/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

func utcNow() time.Time {
	return time.Now().UTC()
}

// begin opens a span for an engine operation.
func begin(ctx context.Context, component, operation string, attrs ...attribute.KeyValue) (context.Context, *observability.Span) {
	return observability.StartSpan(ctx, component, operation, attrs...)
}

// finish ends the span and logs the call outcome.
func finish(ctx context.Context, span *observability.Span, component, operation string, err error, attrs ...any) {
	span.Finish(err)
	if id := span.TraceID(); id != "" {
		attrs = append(attrs, slog.String("trace_id", id))
	}
	observability.LogServiceCall(ctx, middleware.Logger, component, operation, err, attrs...)
}

func idAttr(key string, id uuid.UUID) attribute.KeyValue {
	return attribute.String(key, id.String())
}

// requireOrganization rejects buyers and unknown organization types.
func requireOrganization(actor models.Actor, allowed ...models.OrganizationType) error {
	if !actor.IsOrganization() {
		return models.NewForbiddenError("organization membership required")
	}
	if len(allowed) == 0 {
		return nil
	}
	for _, t := range allowed {
		if actor.OrganizationType == t {
			return nil
		}
	}
	return models.NewForbiddenError("organization type " + string(actor.OrganizationType) + " may not perform this action")
}

// isBuyer reports whether actor is the individual user userID rather than
// an organization member acting on their behalf.
func isBuyer(actor models.Actor, userID uuid.UUID) bool {
	return !actor.IsOrganization() && actor.UserID != uuid.Nil && actor.UserID == userID
}

// nextOccurrence returns the next date on or after now that falls on day,
// at the given HH:MM wall-clock time in UTC.
func nextOccurrence(now time.Time, day models.Weekday, hhmm string) time.Time {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return now
	}
	want := day.TimeWeekday()
	delta := (int(want) - int(now.Weekday()) + 7) % 7
	d := now.AddDate(0, 0, delta)
	at := time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
	if at.Before(now) {
		at = at.AddDate(0, 0, 7)
	}
	return at
}
