package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/angelmondragon/musicportal-backend/pkg/config"
	"github.com/angelmondragon/musicportal-backend/pkg/db"
	"github.com/angelmondragon/musicportal-backend/pkg/logger"
	"github.com/angelmondragon/musicportal-backend/pkg/migrate"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cmdFlag := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmdFlag,
		"dir": *dir,
	})

	cmd, err := migrate.ParseCommand(*cmdFlag)
	if err != nil {
		logg.Error(ctx, "invalid -cmd", err)
		os.Exit(2)
	}

	if err := run(ctx, cfg, logg, cmd, *dir, *name, *version); err != nil {
		logg.Error(ctx, "migrate failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, cmd migrate.Command, dir, name, version string) error {
	switch cmd {
	case migrate.CommandCreate:
		if name == "" {
			return errors.New("missing -name for create")
		}
		path, err := migrate.NewFile(dir, name, time.Now())
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "path", path), "migration created")
		return nil
	case migrate.CommandValidate:
		if err := migrate.CheckDir(dir); err != nil {
			return err
		}
		logg.Info(ctx, "migration files valid")
		return nil
	}

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer dbClient.Close()

	// goose files are Postgres SQL; sqlite only knows "up" via the embedded schema
	if dbClient.Dialect() == db.DialectSQLite {
		if cmd != migrate.CommandUp {
			return fmt.Errorf("-cmd=%s is not supported on sqlite", cmd)
		}
		if err := dbClient.EnsureSQLiteSchema(ctx); err != nil {
			return fmt.Errorf("sqlite schema: %w", err)
		}
		logg.Info(ctx, "sqlite schema applied")
		return nil
	}

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("sql database: %w", err)
	}
	runner, err := migrate.NewRunner(sqlDB, dir)
	if err != nil {
		return err
	}

	var steps []migrate.Step
	switch cmd {
	case migrate.CommandUp:
		steps, err = runner.Up(ctx)
	case migrate.CommandDown:
		steps, err = runner.Down(ctx)
	case migrate.CommandStatus:
		steps, err = runner.Status(ctx)
	case migrate.CommandVersion:
		target, perr := migrate.ParseVersion(version)
		if perr != nil {
			return perr
		}
		steps, err = runner.To(ctx, target)
	}
	if err != nil {
		return err
	}

	for _, step := range steps {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":   step.Version,
			"file":      step.Path,
			"direction": step.Direction,
			"state":     step.State,
		}), "migration")
	}
	logg.Info(logg.WithField(ctx, "steps", len(steps)), "migrate done")
	return nil
}
