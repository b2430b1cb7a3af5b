package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/musicportal-backend/pkg/config"
	"github.com/angelmondragon/musicportal-backend/pkg/db/models"
	"github.com/angelmondragon/musicportal-backend/pkg/logger"
	"github.com/angelmondragon/musicportal-backend/pkg/metrics"
	"github.com/angelmondragon/musicportal-backend/pkg/outbox/registry"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	fallbackBatchSize   = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackMaxAttempts = 10
	publishTimeout      = 15 * time.Second
	idleBackoffCeiling  = 10 * time.Second
	maxJitter           = 250 * time.Millisecond
)

// Narrow views of the collaborators so tests can substitute fakes.
type (
	dbClient interface {
		Ping(context.Context) error
		WithTx(context.Context, func(tx *gorm.DB) error) error
	}
	pubSubClient interface {
		Ping(context.Context) error
		Publisher(name string) *gcppubsub.Publisher
	}
	outboxRepository interface {
		FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
		MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
		MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
		MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
	}
	dlqRepository interface {
		InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
	}
	registryResolver interface {
		Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
	}
)

// ServiceParams wires the publisher. Publishers and Metrics are optional;
// Publishers defaults to the Pub/Sub client.
type ServiceParams struct {
	Settings   config.OutboxConfig
	Logger     *logger.Logger
	DB         dbClient
	PubSub     pubSubClient
	Outbox     outboxRepository
	DLQ        dlqRepository
	Registry   registryResolver
	Publishers publisherFactory
	Metrics    *metrics.OutboxMetrics
}

// Service drains outbox_events into Pub/Sub. Each batch runs in one
// transaction so row locks taken by the fetch are held until every row in
// the batch is settled.
type Service struct {
	logg             *logger.Logger
	db               dbClient
	repo             outboxRepository
	pubsub           pubSubClient
	registry         registryResolver
	dlq              dlqRepository
	publisherFactory publisherFactory
	metrics          *metrics.OutboxMetrics
	batchSize        int
	maxAttempts      int
	pollInterval     time.Duration
}

func NewService(p ServiceParams) (*Service, error) {
	var missing []string
	for name, isNil := range map[string]bool{
		"logger":         p.Logger == nil,
		"db":             p.DB == nil,
		"pubsub":         p.PubSub == nil,
		"outbox repo":    p.Outbox == nil,
		"dlq repo":       p.DLQ == nil,
		"event registry": p.Registry == nil,
	} {
		if isNil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("outbox publisher missing: %s", strings.Join(missing, ", "))
	}

	publishers := p.Publishers
	if publishers == nil {
		publishers = gcpPublisherFactory(p.PubSub)
	}
	return &Service{
		logg:             p.Logger,
		db:               p.DB,
		repo:             p.Outbox,
		pubsub:           p.PubSub,
		registry:         p.Registry,
		dlq:              p.DLQ,
		publisherFactory: publishers,
		metrics:          p.Metrics,
		batchSize:        positiveOr(p.Settings.BatchSize, fallbackBatchSize),
		maxAttempts:      positiveOr(p.Settings.MaxAttempts, fallbackMaxAttempts),
		pollInterval:     time.Duration(positiveOr(p.Settings.PollIntervalMS, int(fallbackPoll/time.Millisecond))) * time.Millisecond,
	}, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run polls until ctx is canceled. Empty batches sleep one poll interval;
// batch errors back off exponentially up to idleBackoffCeiling.
func (s *Service) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{
		"database": s.db.Ping,
		"pubsub":   s.pubsub.Ping,
	} {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	wait := s.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		drained, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			wait = min(wait*2, idleBackoffCeiling)
		case drained:
			wait = s.pollInterval
			continue
		default:
			wait = s.pollInterval
		}

		if err := pause(ctx, wait+jitter()); err != nil {
			return err
		}
	}
}

func pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func jitter() time.Duration {
	return rand.N(maxJitter)
}
