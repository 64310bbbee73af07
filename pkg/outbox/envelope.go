package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
)

// EnvelopeVersion is written when a DomainEvent leaves Version unset.
const EnvelopeVersion = 1

// ActorRef identifies who caused the event.
type ActorRef struct {
	UserID *uuid.UUID `json:"userId,omitempty"`
	Role   string     `json:"role,omitempty"`
	Guest  bool       `json:"guest,omitempty"`
}

// UserActor references a signed-in account.
func UserActor(id uuid.UUID, role enums.UserRole) *ActorRef {
	return &ActorRef{UserID: &id, Role: role.String()}
}

// GuestActor marks events caused by a cart with no account behind it.
func GuestActor() *ActorRef {
	return &ActorRef{Guest: true}
}

// PayloadEnvelope is the JSON stored in outbox_events.payload.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// NewEnvelope stamps an event id and serializes event.Data.
func NewEnvelope(event DomainEvent) (PayloadEnvelope, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("marshal %s data: %w", event.EventType, err)
	}
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	version := event.Version
	if version == 0 {
		version = EnvelopeVersion
	}
	return PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: occurredAt.UTC(),
		Actor:      event.Actor,
		Data:       data,
	}, nil
}

// DecodeEnvelope parses a stored payload and rejects envelopes without an
// event id or data.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if _, err := uuid.Parse(envelope.EventID); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("envelope event id: %w", err)
	}
	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return PayloadEnvelope{}, errors.New("envelope data missing")
	}
	return envelope, nil
}
