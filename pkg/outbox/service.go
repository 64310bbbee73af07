package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
)

var (
	ErrTransactionRequired = errors.New("outbox: transaction required")
	ErrUnknownEventType    = errors.New("outbox: unknown event type")
	ErrAggregateIDRequired = errors.New("outbox: aggregate id required")
)

// DomainEvent is what services hand to Emit inside their transaction.
type DomainEvent struct {
	EventType   enums.OutboxEventType
	AggregateID string
	Actor       *ActorRef
	Data        any
	Version     int
	OccurredAt  time.Time
}

// Emitter is the narrow surface domain services depend on.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error
}

type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Emit queues event in the caller's transaction so the row commits or rolls
// back with the change it describes. The row id and the envelope event id
// are the same value.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	switch {
	case tx == nil:
		return ErrTransactionRequired
	case !event.EventType.IsValid():
		return fmt.Errorf("%w: %q", ErrUnknownEventType, event.EventType)
	case strings.TrimSpace(event.AggregateID) == "":
		return ErrAggregateIDRequired
	}

	envelope, err := NewEnvelope(event)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", event.EventType, err)
	}
	row := models.OutboxEvent{
		ID:            uuid.MustParse(envelope.EventID),
		EventType:     event.EventType,
		AggregateType: event.EventType.Aggregate(),
		AggregateID:   event.AggregateID,
		Payload:       raw,
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return fmt.Errorf("insert %s outbox row: %w", event.EventType, err)
	}

	if s.logg != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"event_id":     envelope.EventID,
			"event_type":   event.EventType,
			"aggregate_id": event.AggregateID,
		}), "outbox event queued")
	}
	return nil
}
