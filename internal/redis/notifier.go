package redisclient

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventNotifier publishes appointment events to a Redis channel consumed by
// the notification collaborator. Publishing is fire-and-forget: failures are
// logged, never surfaced to the booking path.
type EventNotifier struct {
	client  *redis.Client
	channel string
}

func NewEventNotifier(client *redis.Client, channel string) *EventNotifier {
	return &EventNotifier{client: client, channel: channel}
}

type appointmentEvent struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	EventType     string    `json:"event_type"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (n *EventNotifier) AppointmentEvent(ctx context.Context, appointmentID uuid.UUID, eventType string) {
	payload, err := json.Marshal(appointmentEvent{
		AppointmentID: appointmentID,
		EventType:     eventType,
		OccurredAt:    time.Now(),
	})
	if err != nil {
		log.Printf("encode appointment event %s: %v", eventType, err)
		return
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		log.Printf("publish appointment event %s for %s: %v", eventType, appointmentID, err)
	}
}
