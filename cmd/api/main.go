package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/angelmondragon/musicportal-backend/api/routes"
	"github.com/angelmondragon/musicportal-backend/internal/accounts"
	"github.com/angelmondragon/musicportal-backend/internal/auth"
	"github.com/angelmondragon/musicportal-backend/internal/catalog"
	"github.com/angelmondragon/musicportal-backend/internal/intake"
	"github.com/angelmondragon/musicportal-backend/internal/registration"
	"github.com/angelmondragon/musicportal-backend/internal/seed"
	"github.com/angelmondragon/musicportal-backend/pkg/auth/session"
	"github.com/angelmondragon/musicportal-backend/pkg/config"
	"github.com/angelmondragon/musicportal-backend/pkg/db"
	"github.com/angelmondragon/musicportal-backend/pkg/logger"
	"github.com/angelmondragon/musicportal-backend/pkg/metrics"
	"github.com/angelmondragon/musicportal-backend/pkg/migrate"
	"github.com/angelmondragon/musicportal-backend/pkg/outbox"
	"github.com/angelmondragon/musicportal-backend/pkg/redis"
	"github.com/angelmondragon/musicportal-backend/pkg/storage/local"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.AtBoot(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	songStore, err := local.New(filepath.Join(cfg.Storage.Root, "songs"), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to prepare song storage", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	portalMetrics := metrics.NewPortalMetrics(registry)

	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	files, err := intake.NewService(intake.ServiceParams{
		Store:        songStore,
		PublicPrefix: cfg.Storage.PublicPrefix,
		MaxBytes:     cfg.Storage.MaxUploadBytes(),
		Metrics:      portalMetrics,
		Logger:       logg,
	})
	must(logg, err, "failed to create file intake")

	accountService, err := accounts.NewService(accounts.ServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
		Outbox:         emitter,
		Files:          files,
		Logger:         logg,
	})
	must(logg, err, "failed to create accounts service")

	registrationService, err := registration.NewService(registration.ServiceParams{
		DB: dbClient,
		Accounts: func(tx *gorm.DB) registration.AccountCreator {
			return accountService.WithTx(tx)
		},
		Outbox:         emitter,
		PasswordConfig: cfg.Password,
		Metrics:        portalMetrics,
		Logger:         logg,
	})
	must(logg, err, "failed to create registration service")

	authService, err := auth.NewService(auth.ServiceParams{
		Accounts:       accountService,
		Registrations:  registrationService,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	must(logg, err, "failed to create auth service")

	genreService, err := catalog.NewGenreService(catalog.GenreServiceParams{
		DB:       dbClient.DB(),
		CacheTTL: cfg.Catalog.GenreCacheTTL,
	})
	must(logg, err, "failed to create genre service")

	queryService, err := catalog.NewQueryService(catalog.QueryServiceParams{
		DB:              dbClient.DB(),
		DefaultPageSize: cfg.Catalog.DefaultPageSize,
		MaxPageSize:     cfg.Catalog.MaxPageSize,
		Metrics:         portalMetrics,
	})
	must(logg, err, "failed to create catalog query service")

	songService, err := catalog.NewSongService(catalog.SongServiceParams{
		DB:     dbClient,
		Files:  files,
		Outbox: emitter,
		Logger: logg,
	})
	must(logg, err, "failed to create song service")

	if cfg.FeatureFlags.SeedOnStart {
		err := seed.Run(context.Background(), seed.Params{
			DB:       dbClient.DB(),
			Accounts: accountService,
			Genres:   genreService,
			Config:   cfg.Seed,
			Logger:   logg,
		})
		if err != nil {
			// the API still serves with a partial seed
			logg.Error(context.Background(), "seed finished with errors", err)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			songStore,
			sessionManager,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			authService,
			registrationService,
			accountService,
			queryService,
			songService,
			genreService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func must(logg *logger.Logger, err error, msg string) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
