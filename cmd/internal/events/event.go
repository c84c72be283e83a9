package events

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Topics, one per lifecycle transition. The topic doubles as the event type.
const (
	TopicUserCreated       = "user.created"
	TopicUserVerified      = "user.verified"
	TopicUserLogin         = "user.login"
	TopicUserLogout        = "user.logout"
	TopicUserPasswordReset = "user.password.reset"
)

const (
	serviceName    = "user-service"
	envelopeSchema = "1.0"
)

// Event is the wire envelope shared by every topic. Consumers key on
// EventType; Data carries the per-topic payload.
type Event struct {
	EventID   string    `json:"eventId"`
	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Data      any       `json:"data"`
}

// New assembles an envelope for the given topic.
func New(eventType string, data any) (Event, error) {
	now := time.Now().UTC()
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return Event{}, err
	}
	return Event{
		EventID:   id.String(),
		EventType: eventType,
		Timestamp: now,
		Service:   serviceName,
		Version:   envelopeSchema,
		Data:      data,
	}, nil
}
