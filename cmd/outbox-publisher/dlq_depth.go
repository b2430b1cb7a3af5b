package main

import (
	"context"
	"time"

	"github.com/angelmondragon/musicportal-backend/pkg/enums"
	"github.com/angelmondragon/musicportal-backend/pkg/logger"
	"github.com/angelmondragon/musicportal-backend/pkg/metrics"
)

const dlqRefreshInterval = time.Minute

type dlqCounter interface {
	CountByReason(ctx context.Context) (map[enums.OutboxDLQErrorReason]int64, error)
}

// watchDLQDepth keeps the dead letter gauge current until ctx ends. Count
// failures are logged and retried on the next tick.
func watchDLQDepth(ctx context.Context, counter dlqCounter, m *metrics.OutboxMetrics, logg *logger.Logger, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if err := refreshDLQDepth(ctx, counter, m); err != nil && ctx.Err() == nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "dlq depth refresh failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func refreshDLQDepth(ctx context.Context, counter dlqCounter, m *metrics.OutboxMetrics) error {
	counts, err := counter.CountByReason(ctx)
	if err != nil {
		return err
	}
	byReason := make(map[string]int64, len(counts))
	for reason, n := range counts {
		byReason[string(reason)] = n
	}
	m.SetDLQDepth(byReason)
	return nil
}
