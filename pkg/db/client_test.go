package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/musicportal-backend/pkg/config"
	"github.com/angelmondragon/musicportal-backend/pkg/logger"
)

type testTrack struct {
	ID    int
	Title string `gorm:"uniqueIndex"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testTrack{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	conn := newTestDB(t)
	client := Wrap(conn)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testTrack{Title: "Blue in Green"}).Error
	}))

	var count int64
	require.NoError(t, conn.Model(&testTrack{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testTrack{Title: "So What"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	require.NoError(t, conn.Model(&testTrack{}).Count(&count).Error)
	require.EqualValues(t, 1, count, "rollback should leave the first row only")
}

func TestWrapDetectsSQLite(t *testing.T) {
	client := Wrap(newTestDB(t))
	require.Equal(t, DialectSQLite, client.Dialect())
}

func TestPing(t *testing.T) {
	client := Wrap(newTestDB(t))
	require.NoError(t, client.Ping(context.Background()))
}

func TestIsUniqueViolation(t *testing.T) {
	conn := newTestDB(t)
	require.NoError(t, conn.Create(&testTrack{Title: "Take Five"}).Error)
	err := conn.Create(&testTrack{Title: "Take Five"}).Error
	require.Error(t, err)
	require.True(t, IsUniqueViolation(err, ""))

	pgErr := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "accounts_username_key"})
	require.True(t, IsUniqueViolation(pgErr, "accounts_username_key"))
	require.False(t, IsUniqueViolation(pgErr, "accounts_email_key"))

	require.False(t, IsUniqueViolation(errors.New("connection reset"), ""))
	require.False(t, IsUniqueViolation(nil, ""))
}

func TestIsNotFound(t *testing.T) {
	conn := newTestDB(t)
	var row testTrack
	err := conn.First(&row, "title = ?", "missing").Error
	require.True(t, IsNotFound(err))
	require.False(t, IsNotFound(errors.New("other")))
}

func TestIsForeignKeyViolation(t *testing.T) {
	require.True(t, IsForeignKeyViolation(fmt.Errorf("delete: %w", &pgconn.PgError{Code: "23503"})))
	require.True(t, IsForeignKeyViolation(&pq.Error{Code: "23503"}))
	require.True(t, IsForeignKeyViolation(errors.New("FOREIGN KEY constraint failed")))
	require.False(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}))
	require.False(t, IsForeignKeyViolation(nil))
}

func TestQueryLoggerReportsSlowAndFailedStatements(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: buf})
	ql := newQueryLogger(logg, 10*time.Millisecond, false)
	stmt := func() (string, int64) { return "SELECT 1", 1 }

	ql.Trace(context.Background(), time.Now(), stmt, nil)
	require.Empty(t, buf.String(), "fast successful queries stay quiet")

	ql.Trace(context.Background(), time.Now(), stmt, gorm.ErrRecordNotFound)
	require.Empty(t, buf.String(), "not found is not a failure")

	ql.Trace(context.Background(), time.Now().Add(-time.Second), stmt, nil)
	require.Contains(t, buf.String(), "db.slow_query")

	buf.Reset()
	ql.Trace(context.Background(), time.Now(), stmt, errors.New("syntax error"))
	require.Contains(t, buf.String(), "db.query_failed")
	require.Contains(t, buf.String(), "syntax error")

	buf.Reset()
	ql.LogMode(gormlogger.Info).Trace(context.Background(), time.Now(), stmt, nil)
	require.Contains(t, buf.String(), "db.query")
}

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{}, true, nil)
	require.ErrorIs(t, err, ErrMissingDSN)
}
