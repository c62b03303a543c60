// Package events publishes domain events after state changes commit.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"keyhouse/internal/middleware"
	"keyhouse/internal/observability"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Type names a domain event.
type Type string

const (
	InspectionBooked      Type = "inspection.booked"
	InspectionCancelled   Type = "inspection.cancelled"
	InspectionOutcome     Type = "inspection.outcome_recorded"
	InspectionConfirmed   Type = "inspection.confirmed"
	InspectionReleased    Type = "inspection.released_unpaid"
	RescheduleProposed    Type = "reschedule.proposed"
	RescheduleAccepted    Type = "reschedule.accepted"
	RescheduleRejected    Type = "reschedule.rejected"
	ReviewCompleted       Type = "review.completed"
	ReviewDeclined        Type = "review.declined"
	ApplicationCreated    Type = "application.created"
	ApplicationAdvanced   Type = "application.stage_changed"
	ApplicationDeclined   Type = "application.declined"
	PrecedentCompleted    Type = "precedent.completed"
	PrecedentExpired      Type = "precedent.expired"
	LoanDecided           Type = "loan.decided"
	LoanRepaymentOverdue  Type = "loan.overdue"
	LoanRepaymentReceived Type = "loan.repayment_received"
)

const channelPrefix = "keyhouse:events:"

// Event describes something that happened to a resource.
type Event struct {
	Type         Type                   `json:"type"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   uuid.UUID              `json:"resource_id"`
	ActorID      uuid.UUID              `json:"actor_id,omitempty"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	OccurredAt   time.Time              `json:"occurred_at"`
}

// New builds an event stamped with the current UTC time.
func New(t Type, resourceType string, resourceID, actorID uuid.UUID, payload map[string]interface{}) Event {
	return Event{
		Type:         t,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		ActorID:      actorID,
		Payload:      payload,
		OccurredAt:   time.Now().UTC(),
	}
}

// Channel returns the pub/sub channel an event type is published on.
func Channel(t Type) string {
	return channelPrefix + string(t)
}

// Encode serializes an event for the wire.
func Encode(e Event) (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return string(b), nil
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// RedisPublisher publishes events into Redis channels. A nil client makes
// every publish a no-op.
type RedisPublisher struct {
	rdb redis.Cmdable
}

// NewRedisPublisher creates a publisher using the provided Redis client.
func NewRedisPublisher(rdb redis.Cmdable) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	if p == nil || p.rdb == nil {
		return nil
	}
	payload, err := Encode(e)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, Channel(e.Type), payload).Err(); err != nil {
		observability.EventsPublished.WithLabelValues(string(e.Type), "error").Inc()
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	observability.EventsPublished.WithLabelValues(string(e.Type), "ok").Inc()
	return nil
}

// Emit publishes each event and logs failures. Delivery is best effort and
// never fails the operation that produced the events.
func Emit(ctx context.Context, p Publisher, evts ...Event) {
	if p == nil {
		return
	}
	for _, e := range evts {
		if err := p.Publish(ctx, e); err != nil {
			middleware.Logger.WarnContext(ctx, "event publish failed",
				slog.String("event_type", string(e.Type)),
				slog.String("resource_id", e.ResourceID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Subscribe listens on every event channel and calls onEvent for each
// decodable message until ctx is cancelled.
func Subscribe(ctx context.Context, rdb *redis.Client, onEvent func(Event)) error {
	if rdb == nil {
		return nil
	}
	sub := rdb.PSubscribe(ctx, channelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					middleware.Logger.Warn("dropping undecodable event",
						slog.String("channel", msg.Channel), slog.String("error", err.Error()))
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in event subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onEvent(e)
				}()
			}
		}
	}()

	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in publish order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
