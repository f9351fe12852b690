package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fashionmarket/storefront-backend/pkg/config"
	"github.com/fashionmarket/storefront-backend/pkg/db/models"
	"github.com/fashionmarket/storefront-backend/pkg/enums"
	"github.com/fashionmarket/storefront-backend/pkg/logger"
	"github.com/fashionmarket/storefront-backend/pkg/metrics"
	"github.com/fashionmarket/storefront-backend/pkg/outbox"
	"github.com/fashionmarket/storefront-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
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

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	DLQRepository    dlqRepository
	Metrics          *metrics.OutboxMetrics
}

// Service drains the outbox table into Pub/Sub. A batch is claimed and
// settled inside one transaction, so concurrent publishers never share rows.
type Service struct {
	logg        *logger.Logger
	db          dbClient
	repo        outboxRepository
	pubsub      pubSubClient
	registry    registryResolver
	dlq         dlqRepository
	metrics     *metrics.OutboxMetrics
	publishers  publisherFactory
	batchSize   int
	maxAttempts int
	pace        *pacer
	now         func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	var missing []string
	for name, ok := range map[string]bool{
		"config":         params.Config != nil,
		"logger":         params.Logger != nil,
		"database":       params.DB != nil,
		"pubsub":         params.PubSub != nil,
		"repository":     params.Repository != nil,
		"event registry": params.Registry != nil,
		"dlq repository": params.DLQRepository != nil,
	} {
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("outbox publisher missing %s", strings.Join(missing, ", "))
	}

	publishers := params.PublisherFactory
	if publishers == nil {
		publishers = gcpPublishers(params.PubSub)
	}
	cfg := params.Config.Outbox
	poll := time.Duration(positiveOr(cfg.PollIntervalMS, defaultPollMs)) * time.Millisecond
	return &Service{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		pubsub:      params.PubSub,
		registry:    params.Registry,
		dlq:         params.DLQRepository,
		metrics:     params.Metrics,
		publishers:  publishers,
		batchSize:   positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts: positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		pace:        newPacer(poll),
		now:         time.Now,
	}, nil
}

func positiveOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// Run polls until ctx is canceled. A batch that found rows is followed
// straight away by the next one.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if err := s.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping: %w", err)
	}

	for ctx.Err() == nil {
		stats, err := s.drain(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch aborted", err)
			wait = s.pace.failed()
		case stats.total() > 0:
			s.logg.Debug(s.logg.WithFields(ctx, stats.fields()), "outbox batch settled")
			s.pace.reset()
			continue
		default:
			wait = s.pace.idle()
		}
		if err := s.pace.wait(ctx, wait); err != nil {
			break
		}
	}
	s.logg.Info(ctx, "outbox publisher stopping")
	return ctx.Err()
}

type batchStats struct {
	published, retried, deadLettered int
}

func (b batchStats) total() int { return b.published + b.retried + b.deadLettered }

func (b batchStats) fields() map[string]any {
	return map[string]any{"published": b.published, "retried": b.retried, "dead_lettered": b.deadLettered}
}

// drain claims one batch and settles every row in it. An error means the
// transaction rolled back and the whole batch will be claimed again.
func (s *Service) drain(ctx context.Context) (batchStats, error) {
	var stats batchStats
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		stats = batchStats{}
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim batch: %w", err)
		}
		for _, event := range events {
			v := s.judge(ctx, event)
			if err := s.settle(ctx, tx, event, v); err != nil {
				return err
			}
			switch v.kind {
			case verdictPublished:
				stats.published++
			case verdictRetry:
				stats.retried++
			default:
				stats.deadLettered++
			}
		}
		return nil
	})
	return stats, err
}

type verdictKind int

const (
	verdictPublished verdictKind = iota
	verdictRetry
	verdictDeadLetter
)

// verdict is what happens to a row after one publish attempt.
type verdict struct {
	kind   verdictKind
	reason enums.OutboxDLQErrorReason
	topic  string
	env    outbox.PayloadEnvelope
	err    error
}

func (s *Service) judge(ctx context.Context, event models.OutboxEvent) verdict {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return verdict{kind: verdictDeadLetter, reason: enums.OutboxDLQReasonNonRetryable, err: err}
	}
	v := verdict{topic: resolved.Descriptor.Topic, env: resolved.Envelope}

	err = s.publish(ctx, event, resolved)
	var permanent registry.NonRetryableError
	switch {
	case err == nil:
		v.kind = verdictPublished
	case errors.As(err, &permanent):
		v.kind, v.reason, v.err = verdictDeadLetter, enums.OutboxDLQReasonNonRetryable, err
	case event.AttemptCount+1 >= s.maxAttempts:
		v.kind, v.reason = verdictDeadLetter, enums.OutboxDLQReasonMaxAttempts
		v.err = fmt.Errorf("gave up after %d attempts: %w", event.AttemptCount+1, err)
	default:
		v.kind, v.err = verdictRetry, err
	}
	return v
}

// settle records a verdict on the row. Only bookkeeping failures are
// returned; publish failures live on the row itself.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, v verdict) error {
	logCtx := s.logg.WithFields(ctx, eventFields(event, v))
	eventType := string(event.EventType)

	switch v.kind {
	case verdictPublished:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark %s published: %w", event.ID, err)
		}
		s.metrics.Published(eventType)
		s.logg.Debug(logCtx, "outbox event published")
	case verdictRetry:
		if err := s.repo.MarkFailedTx(tx, event.ID, v.err); err != nil {
			return fmt.Errorf("record failure on %s: %w", event.ID, err)
		}
		s.metrics.Failed(eventType)
		s.logg.Warn(logCtx, "outbox publish failed, will retry")
	case verdictDeadLetter:
		if err := s.dlq.InsertTx(tx, outbox.NewDeadLetter(event, v.reason, v.err, s.now())); err != nil {
			return fmt.Errorf("dead-letter %s: %w", event.ID, err)
		}
		if err := s.repo.MarkTerminalTx(tx, event.ID, v.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark %s terminal: %w", event.ID, err)
		}
		s.metrics.DeadLettered(eventType, string(v.reason))
		s.logg.Warn(logCtx, "outbox event moved to dlq")
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(ctx, newMessage(event, resolved.Envelope))
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher for %s returned no result", topic))
	}
	_, err := result.Get(ctx)
	return err
}

func eventFields(event models.OutboxEvent, v verdict) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if v.env.EventID != "" {
		fields["event_id"] = v.env.EventID
	}
	if v.topic != "" {
		fields["topic"] = v.topic
	}
	if v.err != nil {
		fields["error"] = v.err.Error()
	}
	if v.kind == verdictDeadLetter {
		fields["error_reason"] = v.reason
	}
	return fields
}
