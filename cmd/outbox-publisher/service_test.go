package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox/registry"
)

const orderNumber = "order-1717243200000-k3j2h1x9a"

func orderEvent(t *testing.T, eventType enums.OutboxEventType, attempts int) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderNumber,
		Payload:       mustEnvelopePayload(t, uuid.NewString()),
		AttemptCount:  attempts,
	}
}

func ordersTopic(payload any) *fakeRegistry {
	return &fakeRegistry{resolved: &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "orders-topic"},
		Payload:    payload,
	}}
}

func TestProcessBatchKeepsGoingAfterTransientFailure(t *testing.T) {
	first := orderEvent(t, enums.EventOrderCreated, 0)
	second := orderEvent(t, enums.EventOrderCreated, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{err: errors.New("transient")},
		fakePublishResult{},
	}}
	service := newTestService(t, repo, pub, ordersTopic(&payloads.OrderCreatedEvent{}), &fakeDLQRepo{}, nil)

	claimed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, claimed)
	assert.Equal(t, []uuid.UUID{first.ID}, repo.failed)
	assert.Equal(t, []uuid.UUID{second.ID}, repo.published)
}

func TestProcessBatchReportsEmptyBatch(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, ordersTopic(nil), &fakeDLQRepo{}, nil)

	claimed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, claimed)
}

func TestProcessBatchReturnsStorageErrors(t *testing.T) {
	repo := &fakeRepo{
		events:     []models.OutboxEvent{orderEvent(t, enums.EventOrderCreated, 0)},
		publishErr: errors.New("db gone"),
	}
	service := newTestService(t, repo, &fakePublisher{results: []publishResult{fakePublishResult{}}}, ordersTopic(&payloads.OrderCreatedEvent{}), &fakeDLQRepo{}, nil)

	_, err := service.processBatch(context.Background())
	require.ErrorContains(t, err, "db gone")
}

func TestProcessBatchSkipsEventsAlreadyPublished(t *testing.T) {
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventProductUpdated,
		AggregateType: enums.AggregateProduct,
		AggregateID:   "3",
		Payload:       mustEnvelopePayload(t, "dup"),
	}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{}
	resolver := &fakeRegistry{resolved: &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: "catalog-topic"},
		Payload:    &payloads.ProductChangedEvent{},
	}}
	service := newTestService(t, repo, pub, resolver, &fakeDLQRepo{}, nil)
	service.guard = &fakeGuard{seen: map[string]bool{event.ID.String(): true}}

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pub.calls, "guarded event must not be published again")
	assert.Equal(t, []uuid.UUID{event.ID}, repo.published)
}

func TestProcessBatchClearsGuardWhenPublishFails(t *testing.T) {
	event := orderEvent(t, enums.EventOrderStatusChanged, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("transient")}}}
	guard := &fakeGuard{seen: map[string]bool{}}
	service := newTestService(t, repo, pub, ordersTopic(&payloads.OrderStatusChangedEvent{}), &fakeDLQRepo{}, nil)
	service.guard = guard

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.Len(t, repo.failed, 1)
	assert.NotContains(t, guard.seen, event.ID.String())
}

func TestProcessBatchDeadLetters(t *testing.T) {
	cases := []struct {
		name     string
		attempts int
		resolver *fakeRegistry
		pub      *fakePublisher
		reason   enums.OutboxDLQErrorReason
	}{
		{
			name:     "undecodable row",
			resolver: &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))},
			pub:      &fakePublisher{},
			reason:   enums.OutboxDLQReasonNonRetryable,
		},
		{
			name:     "missing topic publisher",
			resolver: ordersTopic(&payloads.OrderCreatedEvent{}),
			pub:      nil,
			reason:   enums.OutboxDLQReasonNonRetryable,
		},
		{
			name:     "attempts exhausted",
			attempts: 1,
			resolver: ordersTopic(&payloads.OrderCreatedEvent{}),
			pub:      &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("transient")}}},
			reason:   enums.OutboxDLQReasonMaxAttempts,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := orderEvent(t, enums.EventOrderCreated, tc.attempts)
			repo := &fakeRepo{events: []models.OutboxEvent{event}}
			dlq := &fakeDLQRepo{}
			var pub publisher
			if tc.pub != nil {
				pub = tc.pub
			}
			service := newTestService(t, repo, pub, tc.resolver, dlq, &config.OutboxConfig{
				BatchSize:      1,
				PollIntervalMS: 100,
				MaxAttempts:    2,
			})

			_, err := service.processBatch(context.Background())
			require.NoError(t, err)
			require.Len(t, dlq.entries, 1)
			entry := dlq.entries[0]
			assert.Equal(t, event.ID, entry.EventID)
			assert.Equal(t, tc.reason, entry.ErrorReason)
			assert.JSONEq(t, string(event.Payload), string(entry.Payload))
			assert.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
			assert.Empty(t, repo.published)
		})
	}
}

func TestProcessBatchPublishesConcurrently(t *testing.T) {
	events := make([]models.OutboxEvent, 6)
	for i := range events {
		events[i] = orderEvent(t, enums.EventOrderCreated, 0)
	}
	repo := &fakeRepo{events: events}
	pub := &fakePublisher{}
	for range events {
		pub.results = append(pub.results, fakePublishResult{})
	}
	service := newTestService(t, repo, pub, ordersTopic(&payloads.OrderCreatedEvent{}), &fakeDLQRepo{}, &config.OutboxConfig{
		BatchSize:          len(events),
		MaxAttempts:        3,
		PublishConcurrency: 3,
	})

	claimed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(events), claimed)
	assert.Equal(t, len(events), pub.calls)
	want := make([]uuid.UUID, 0, len(events))
	for _, e := range events {
		want = append(want, e.ID)
	}
	assert.Equal(t, want, repo.published, "rows settle in claim order")
}

func TestPollBackoffDoublesUntilCapped(t *testing.T) {
	b := newPollBackoff(time.Second, 3*time.Second)

	first := b.fail()
	assert.GreaterOrEqual(t, first, 2*time.Second)
	assert.Less(t, first, 2*time.Second+jitterWindow)

	second := b.fail()
	assert.GreaterOrEqual(t, second, 3*time.Second)
	assert.Less(t, second, 3*time.Second+jitterWindow)

	b.reset()
	assert.Equal(t, time.Second, b.current)
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, registry registryResolver, dlq dlqRepository, outboxCfgOverride *config.OutboxConfig) *Service {
	outboxCfg := config.OutboxConfig{
		BatchSize:          2,
		PollIntervalMS:     100,
		MaxAttempts:        5,
		PublishConcurrency: 1,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	cfg := &config.Config{
		Outbox: outboxCfg,
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:           cfg,
		Logger:           logg,
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		Registry:         registry,
		PublisherFactory: func(string) publisher { return pub },
		DLQRepository:    dlq,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func mustEnvelopePayload(tb testing.TB, eventID string) json.RawMessage {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

type fakeRepo struct {
	events     []models.OutboxEvent
	published  []uuid.UUID
	failed     []uuid.UUID
	terminal   []uuid.UUID
	publishErr error
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (f *fakePubSubClient) Ping(context.Context) error {
	return nil
}

func (f *fakePubSubClient) Publisher(name string) *gcppubsub.Publisher {
	return nil
}

type fakePublisher struct {
	mu      sync.Mutex
	results []publishResult
	calls   int
}

func (f *fakePublisher) Publish(context.Context, *gcppubsub.Message) publishResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Descriptor.AggregateType = event.AggregateType
	resolved.Envelope.EventID = event.ID.String()
	resolved.Envelope.OccurredAt = time.Now()
	return &resolved, f.err
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeGuard struct {
	seen map[string]bool
}

func (f *fakeGuard) MarkSeen(_ context.Context, _ string, eventID string) (bool, error) {
	if f.seen[eventID] {
		return true, nil
	}
	f.seen[eventID] = true
	return false, nil
}

func (f *fakeGuard) Forget(_ context.Context, _ string, eventID string) error {
	delete(f.seen, eventID)
	return nil
}
