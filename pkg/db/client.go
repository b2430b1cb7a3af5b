package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/musicportal-backend/pkg/config"
	"github.com/angelmondragon/musicportal-backend/pkg/logger"
)

// Dialect names the SQL backend a client is talking to.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

var ErrMissingDSN = errors.New("database DSN is required")

// Pinger exposes the health check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Client owns the shared GORM connection pool.
type Client struct {
	conn    *gorm.DB
	dialect Dialect
}

// New opens the database. Postgres is the default; sqlite is chosen by the
// feature flag or by MUSICPORTAL_DB_DRIVER=sqlite.
func New(ctx context.Context, cfg config.DBConfig, useSQLite bool, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, ErrMissingDSN
	}
	dialect := DialectPostgres
	if useSQLite || strings.EqualFold(cfg.Driver, string(DialectSQLite)) {
		dialect = DialectSQLite
	}

	conn, err := gorm.Open(dialector(dialect, cfg.DSN), &gorm.Config{
		Logger:                 newQueryLogger(logg, cfg.SlowQuery, cfg.LogQueries),
		SkipDefaultTransaction: true,
		NowFunc:                NowUTC,
	})
	if err != nil {
		return nil, errors.Join(errors.New("opening db connection"), err)
	}
	if err := configurePool(conn, dialect, cfg); err != nil {
		return nil, err
	}

	logg.Info(logg.WithField(ctx, "dialect", string(dialect)), "database connection established")
	return &Client{conn: conn, dialect: dialect}, nil
}

func dialector(dialect Dialect, dsn string) gorm.Dialector {
	if dialect == DialectSQLite {
		return sqlite.Open(dsn)
	}
	return postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true})
}

// configurePool pins sqlite to a single connection: there is one writer and
// the foreign_keys pragma is per connection.
func configurePool(conn *gorm.DB, dialect Dialect, cfg config.DBConfig) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	if dialect == DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
		return conn.Exec("PRAGMA foreign_keys = ON").Error
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	return nil
}

// Wrap adapts an already-open GORM connection, mainly for tests.
func Wrap(conn *gorm.DB) *Client {
	c := &Client{conn: conn, dialect: DialectPostgres}
	if conn != nil && conn.Dialector != nil && conn.Dialector.Name() == string(DialectSQLite) {
		c.dialect = DialectSQLite
	}
	return c
}

func (c *Client) Dialect() Dialect { return c.dialect }

func (c *Client) DB() *gorm.DB { return c.conn }

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in a transaction. Returning an error or panicking rolls it
// back.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn)
}

// NowUTC is the clock used for autoCreateTime/autoUpdateTime columns so that
// sqlite text timestamps compare correctly.
func NowUTC() time.Time {
	return time.Now().UTC()
}
