package realtime

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// Event is the envelope pushed to a user's sessions.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

const EventHired = "hired"

// Notifier delivers an event to every live session of a user. Delivery is
// best effort: a nil error does not mean anyone received it.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, ev Event) error
}

func encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}
