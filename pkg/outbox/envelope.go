package outbox

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

var inventoryNamespace = uuid.MustParse("6f1b6c3e-8d2a-4f4e-9a51-3c0d2b7e5a10")

// InventoryAggregateID derives a stable aggregate id for a numeric product id.
func InventoryAggregateID(productID int64) uuid.UUID {
	return uuid.NewSHA1(inventoryNamespace, []byte(strconv.FormatInt(productID, 10)))
}

// NewActorRef returns nil when neither a user nor a role is known.
func NewActorRef(userID uuid.UUID, role string) *ActorRef {
	if userID == uuid.Nil && role == "" {
		return nil
	}
	return &ActorRef{UserID: userID, Role: role}
}
