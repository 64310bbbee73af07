package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
	"github.com/angelmondragon/coffeeshop-backend/pkg/metrics"
	"github.com/angelmondragon/coffeeshop-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	defaultConcurrency    = 8
	maxIdleBackoff        = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
	guardScope            = "outbox-publisher"
)

// outcome is what happened to a single outbox row in a batch.
type outcome string

const (
	outcomePublished    outcome = "published"
	outcomeDuplicate    outcome = "duplicate"
	outcomeRetry        outcome = "retry"
	outcomeDeadLettered outcome = "dead_lettered"
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

// publishGuard remembers event ids that already reached pubsub, so a row whose
// mark-published write was lost is not delivered twice.
type publishGuard interface {
	MarkSeen(ctx context.Context, worker, eventID string) (bool, error)
	Forget(ctx context.Context, worker, eventID string) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	DLQRepository    dlqRepository
	Guard            publishGuard
	Metrics          *metrics.OutboxMetrics
}

// Service drains outbox_events into pubsub topics.
type Service struct {
	logg        *logger.Logger
	db          dbClient
	pubsub      pubSubClient
	repo        outboxRepository
	registry    registryResolver
	dlq         dlqRepository
	guard       publishGuard
	metrics     *metrics.OutboxMetrics
	topics      publisherFactory
	batchSize   int
	maxAttempts int
	concurrency int
	interval    time.Duration
	now         func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	}

	topics := params.PublisherFactory
	if topics == nil {
		topics = func(topic string) publisher {
			return wrapPublisher(params.PubSub.Publisher(topic))
		}
	}

	cfg := params.Config.Outbox
	return &Service{
		logg:        params.Logger,
		db:          params.DB,
		pubsub:      params.PubSub,
		repo:        params.Repository,
		registry:    params.Registry,
		dlq:         params.DLQRepository,
		guard:       params.Guard,
		metrics:     params.Metrics,
		topics:      topics,
		batchSize:   positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts: positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		concurrency: positiveOr(cfg.PublishConcurrency, defaultConcurrency),
		interval:    time.Duration(positiveOr(cfg.PollIntervalMS, int(defaultPollInterval/time.Millisecond))) * time.Millisecond,
		now:         time.Now,
	}, nil
}

// Run polls until ctx is canceled. A full batch is followed immediately by the
// next one; an empty batch waits one interval; a failing batch backs off.
func (s *Service) Run(ctx context.Context) error {
	deps := []struct {
		name string
		ping func(context.Context) error
	}{{"database", s.db.Ping}, {"pubsub", s.pubsub.Ping}}
	for _, dep := range deps {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(ctx, dep.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}

	wait := newPollBackoff(s.interval, maxIdleBackoff)
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		handled, err := s.processBatch(ctx)
		var delay time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			delay = wait.fail()
		case handled > 0:
			wait.reset()
			continue
		default:
			wait.reset()
			delay = wait.idle()
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
	}
}

// delivery tracks one claimed row through a batch.
type delivery struct {
	event      models.OutboxEvent
	resolved   *registry.ResolvedEvent
	logCtx     context.Context
	resolveErr error
	duplicate  bool
	publishErr error
}

// processBatch claims up to batchSize rows in one transaction. Rows are
// published concurrently and then settled one by one on the transaction. It
// returns the number of rows claimed.
func (s *Service) processBatch(ctx context.Context) (int, error) {
	claimed := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(events)
		s.metrics.ObserveBatch(claimed)

		batch := make([]*delivery, 0, len(events))
		for _, event := range events {
			batch = append(batch, s.prepare(ctx, event))
		}

		var g errgroup.Group
		g.SetLimit(s.concurrency)
		for _, d := range batch {
			if d.resolveErr != nil || d.duplicate {
				continue
			}
			g.Go(func() error {
				d.publishErr = s.publish(ctx, d.event, d.resolved)
				return nil
			})
		}
		_ = g.Wait()

		for _, d := range batch {
			result, err := s.settle(tx, d)
			if err != nil {
				return err
			}
			s.metrics.Delivered(string(result))
		}
		return nil
	})
	return claimed, err
}

// prepare decodes the row and checks the publish guard.
func (s *Service) prepare(ctx context.Context, event models.OutboxEvent) *delivery {
	d := &delivery{event: event, logCtx: s.logg.WithFields(ctx, rowFields(event))}
	d.resolved, d.resolveErr = s.registry.Resolve(event)
	if d.resolveErr != nil {
		return d
	}
	d.logCtx = s.logg.WithFields(d.logCtx, map[string]any{
		"event_id":    d.resolved.Envelope.EventID,
		"topic":       d.resolved.Descriptor.Topic,
		"occurred_at": d.resolved.Envelope.OccurredAt.Format(time.RFC3339Nano),
	})
	d.duplicate = s.seenBefore(d.logCtx, d.resolved.Envelope.EventID)
	return d
}

// settle records what happened to one row. Only storage errors are returned;
// publish failures become retry or dead-letter outcomes.
func (s *Service) settle(tx *gorm.DB, d *delivery) (outcome, error) {
	event := d.event
	switch {
	case d.resolveErr != nil:
		return outcomeDeadLettered, s.deadLetter(d.logCtx, tx, event, enums.OutboxDLQReasonNonRetryable, d.resolveErr)
	case d.duplicate:
		s.logg.Info(d.logCtx, "outbox event already published")
		return outcomeDuplicate, s.markPublished(tx, event.ID)
	case d.publishErr == nil:
		if err := s.markPublished(tx, event.ID); err != nil {
			return outcomePublished, err
		}
		s.logg.Info(d.logCtx, "outbox event published")
		return outcomePublished, nil
	}

	s.forget(d.logCtx, d.resolved.Envelope.EventID)
	attempt := event.AttemptCount + 1
	logCtx := s.logg.WithField(d.logCtx, "attempt_count", attempt)
	cause := d.publishErr

	var nonRetryable registry.NonRetryableError
	switch {
	case errors.As(cause, &nonRetryable):
		return outcomeDeadLettered, s.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonNonRetryable, cause)
	case attempt >= s.maxAttempts:
		cause = fmt.Errorf("max publish attempts reached: %w", cause)
		return outcomeDeadLettered, s.deadLetter(logCtx, tx, event, enums.OutboxDLQReasonMaxAttempts, cause)
	}

	s.logg.Warn(s.logg.WithField(logCtx, "error", cause.Error()), "outbox publish failed")
	if err := s.repo.MarkFailedTx(tx, event.ID, cause); err != nil {
		return outcomeRetry, fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return outcomeRetry, nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.topics(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	started := s.now()
	result := pub.Publish(publishCtx, &gcppubsub.Message{
		Data:       event.Payload,
		Attributes: messageAttributes(event, resolved.Envelope.EventID),
	})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	s.metrics.ObservePublish(s.now().Sub(started))
	return err
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"error_reason": reason,
		"error":        cause.Error(),
	}), "outbox event will not be retried")

	if err := s.dlq.InsertTx(tx, models.NewOutboxDLQ(event, reason, cause, s.now())); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) markPublished(tx *gorm.DB, id uuid.UUID) error {
	if err := s.repo.MarkPublishedTx(tx, id); err != nil {
		return fmt.Errorf("mark published %s: %w", id, err)
	}
	return nil
}

// seenBefore marks eventID in the guard and reports whether it was already
// there. A guard outage lets the publish go ahead.
func (s *Service) seenBefore(ctx context.Context, eventID string) bool {
	if s.guard == nil {
		return false
	}
	seen, err := s.guard.MarkSeen(ctx, guardScope, eventID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "publish guard unavailable")
		return false
	}
	return seen
}

func (s *Service) forget(ctx context.Context, eventID string) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Forget(ctx, guardScope, eventID); err != nil {
		s.logg.Error(ctx, "clear publish guard", err)
	}
}

func rowFields(event models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"attempt_count":  event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func messageAttributes(event models.OutboxEvent, eventID string) map[string]string {
	return map[string]string{
		"event_id":       eventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID,
		"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
	}
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

// pollBackoff doubles the wait after each failed batch, capped at max.
type pollBackoff struct {
	base    time.Duration
	max     time.Duration
	current time.Duration
}

func newPollBackoff(base, max time.Duration) *pollBackoff {
	return &pollBackoff{base: base, max: max, current: base}
}

func (b *pollBackoff) reset() { b.current = b.base }

func (b *pollBackoff) idle() time.Duration { return jitter(b.base) }

func (b *pollBackoff) fail() time.Duration {
	b.current = min(b.current*2, b.max)
	return jitter(b.current)
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// gcpPublisher adapts the pubsub client so tests can swap in fakes.
type gcpPublisher struct {
	inner *gcppubsub.Publisher
}

func wrapPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return gcpPublisher{inner: p}
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.inner.Publish(ctx, msg)
}
