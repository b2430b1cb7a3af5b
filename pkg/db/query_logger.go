package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/musicportal-backend/pkg/logger"
)

// queryLogger routes GORM output through the service logger. Failed and slow
// statements are warnings; everything else is debug output and only emitted
// when verbose is set.
type queryLogger struct {
	logg    *logger.Logger
	slow    time.Duration
	verbose bool
}

func newQueryLogger(logg *logger.Logger, slow time.Duration, verbose bool) gormlogger.Interface {
	return &queryLogger{logg: logg, slow: slow, verbose: verbose}
}

func (q *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *q
	clone.verbose = level >= gormlogger.Info
	return &clone
}

func (q *queryLogger) Info(ctx context.Context, msg string, args ...any) {
	if q.verbose {
		q.logg.Debug(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Warn(ctx context.Context, msg string, args ...any) {
	q.logg.Warn(ctx, fmt.Sprintf(msg, args...))
}

func (q *queryLogger) Error(ctx context.Context, msg string, args ...any) {
	q.logg.Warn(ctx, fmt.Sprintf(msg, args...))
}

func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := q.slow > 0 && elapsed > q.slow
	if !failed && !slow && !q.verbose {
		return
	}

	sql, rows := fc()
	fields := map[string]any{
		"sql":        sql,
		"rows":       rows,
		"elapsed_ms": elapsed.Milliseconds(),
	}
	switch {
	case failed:
		fields["db_error"] = err.Error()
		q.logg.Warn(q.logg.WithFields(ctx, fields), "db.query_failed")
	case slow:
		q.logg.Warn(q.logg.WithFields(ctx, fields), "db.slow_query")
	default:
		q.logg.Debug(q.logg.WithFields(ctx, fields), "db.query")
	}
}
