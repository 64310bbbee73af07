package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
)

func TestNewEnvelopeDefaults(t *testing.T) {
	userID := uuid.New()
	envelope, err := NewEnvelope(DomainEvent{
		EventType:   enums.EventOrderCreated,
		AggregateID: "order-1-abc",
		Actor:       UserActor(userID, enums.UserRoleUser),
		Data:        map[string]string{"orderId": "order-1-abc"},
	})
	require.NoError(t, err)

	assert.Equal(t, EnvelopeVersion, envelope.Version)
	assert.False(t, envelope.OccurredAt.IsZero())
	assert.Equal(t, time.UTC, envelope.OccurredAt.Location())
	_, err = uuid.Parse(envelope.EventID)
	assert.NoError(t, err)
	assert.JSONEq(t, `{"orderId":"order-1-abc"}`, string(envelope.Data))
	require.NotNil(t, envelope.Actor.UserID)
	assert.Equal(t, userID, *envelope.Actor.UserID)
}

func TestDecodeEnvelopeRoundTripAndRejects(t *testing.T) {
	envelope, err := NewEnvelope(DomainEvent{EventType: enums.EventOrderCreated, Actor: GuestActor(), Data: []int{1}})
	require.NoError(t, err)
	raw, err := json.Marshal(envelope)
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, envelope.EventID, decoded.EventID)
	assert.True(t, decoded.Actor.Guest)

	bad := map[string]string{
		"not json":   `{`,
		"no id":      `{"version":1,"eventId":"","data":{}}`,
		"null data":  `{"version":1,"eventId":"` + uuid.NewString() + `","data":null}`,
		"empty data": `{"version":1,"eventId":"` + uuid.NewString() + `"}`,
	}
	for name, payload := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(payload))
			assert.Error(t, err)
		})
	}
}
