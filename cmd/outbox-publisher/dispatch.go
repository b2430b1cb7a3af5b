package main

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/musicportal-backend/pkg/db/models"
	"github.com/angelmondragon/musicportal-backend/pkg/enums"
	"github.com/angelmondragon/musicportal-backend/pkg/outbox/registry"
	"gorm.io/gorm"
)

type verdictKind int

const (
	verdictPublished verdictKind = iota
	verdictRetry
	verdictDeadLetter
)

// verdict is what happened to one row; settle turns it into repository writes.
type verdict struct {
	kind   verdictKind
	reason enums.OutboxDLQErrorReason
	topic  string
	err    error
}

// processBatch reports whether any rows were fetched.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveBatch(time.Since(started)) }()

	fetched := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		fetched = len(events) > 0
		for _, event := range events {
			if err := s.settle(ctx, tx, event, s.dispatch(ctx, event)); err != nil {
				return err
			}
		}
		return nil
	})
	return fetched, err
}

func (s *Service) dispatch(ctx context.Context, event models.OutboxEvent) verdict {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return verdict{kind: verdictDeadLetter, reason: enums.OutboxDLQReasonNonRetryable, err: err}
	}

	topic := resolved.Descriptor.Topic
	err = s.send(ctx, topic, buildMessage(event, resolved))
	switch {
	case err == nil:
		return verdict{kind: verdictPublished, topic: topic}
	case registry.IsNonRetryable(err):
		return verdict{kind: verdictDeadLetter, reason: enums.OutboxDLQReasonNonRetryable, topic: topic, err: err}
	case event.AttemptCount+1 >= s.maxAttempts:
		return verdict{
			kind:   verdictDeadLetter,
			reason: enums.OutboxDLQReasonMaxAttempts,
			topic:  topic,
			err:    fmt.Errorf("gave up after %d attempts: %w", event.AttemptCount+1, err),
		}
	default:
		return verdict{kind: verdictRetry, topic: topic, err: err}
	}
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, v verdict) error {
	logCtx := s.logg.WithFields(ctx, rowFields(event, v))

	switch v.kind {
	case verdictPublished:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.IncPublished(string(event.EventType))
		s.logg.Info(logCtx, "outbox event published")

	case verdictRetry:
		s.logg.Warn(logCtx, "outbox publish failed, will retry")
		if err := s.repo.MarkFailedTx(tx, event.ID, v.err); err != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, err)
		}
		s.metrics.IncFailed(string(event.EventType))

	case verdictDeadLetter:
		s.logg.Warn(logCtx, "outbox event moved to dlq")
		if err := s.dlq.InsertTx(tx, models.DeadLetter(event, v.reason, v.err, time.Now())); err != nil {
			return fmt.Errorf("insert dlq %s: %w", event.ID, err)
		}
		if err := s.repo.MarkTerminalTx(tx, event.ID, v.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", event.ID, err)
		}
		s.metrics.IncDeadLettered(string(v.reason))
	}
	return nil
}

func rowFields(event models.OutboxEvent, v verdict) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if v.topic != "" {
		fields["topic"] = v.topic
	}
	if v.reason != "" {
		fields["error_reason"] = v.reason
	}
	if v.err != nil {
		fields["error"] = v.err.Error()
	}
	return fields
}
