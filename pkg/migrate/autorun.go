package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/musicportal-backend/pkg/config"
	"github.com/angelmondragon/musicportal-backend/pkg/db"
	"github.com/angelmondragon/musicportal-backend/pkg/logger"
)

type bootAction int

const (
	bootSkip bootAction = iota
	bootSQLiteSchema
	bootGooseUp
)

func (a bootAction) String() string {
	switch a {
	case bootSQLiteSchema:
		return "sqlite_schema"
	case bootGooseUp:
		return "goose_up"
	default:
		return "skip"
	}
}

// planBoot decides how a process prepares the schema before serving.
// Postgres is only migrated from a process in dev with auto-migrate on;
// everywhere else cmd/migrate owns the schema.
func planBoot(cfg *config.Config, dialect db.Dialect) bootAction {
	switch {
	case dialect == db.DialectSQLite:
		return bootSQLiteSchema
	case cfg.App.IsDev() && cfg.FeatureFlags.AutoMigrate:
		return bootGooseUp
	default:
		return bootSkip
	}
}

// AtBoot prepares the schema for the api and the outbox publisher.
func AtBoot(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	action := planBoot(cfg, client.Dialect())
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "schema_action": action.String()})

	switch action {
	case bootSQLiteSchema:
		if err := client.EnsureSQLiteSchema(ctx); err != nil {
			return fmt.Errorf("applying sqlite schema: %w", err)
		}
		logg.Info(ctx, "sqlite schema ready")
	case bootGooseUp:
		sqlDB, err := client.DB().DB()
		if err != nil {
			return fmt.Errorf("extracting sql.DB: %w", err)
		}
		runner, err := NewRunner(sqlDB, DefaultDir)
		if err != nil {
			return err
		}
		steps, err := runner.Up(ctx)
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "applied", len(steps)), "goose migrations applied at boot")
	default:
		logg.Debug(ctx, "schema managed externally")
	}
	return nil
}
