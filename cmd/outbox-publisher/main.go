package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/musicportal-backend/pkg/config"
	"github.com/angelmondragon/musicportal-backend/pkg/db"
	"github.com/angelmondragon/musicportal-backend/pkg/logger"
	"github.com/angelmondragon/musicportal-backend/pkg/metrics"
	"github.com/angelmondragon/musicportal-backend/pkg/migrate"
	"github.com/angelmondragon/musicportal-backend/pkg/outbox"
	"github.com/angelmondragon/musicportal-backend/pkg/outbox/registry"
	"github.com/angelmondragon/musicportal-backend/pkg/pubsub"
)

const (
	serviceName     = "outbox-publisher"
	shutdownTimeout = 5 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if !cfg.PubSub.Enabled {
		logg.Warn(context.Background(), "pubsub disabled, outbox rows will accumulate until it is enabled")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher shut down gracefully")
}

// run wires the publisher loop, the dead letter gauge and the metrics
// listener, and returns once all three have stopped.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return err
	}
	defer closeLogged(ctx, logg, "database", dbClient.Close)

	if err := migrate.AtBoot(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer closeLogged(ctx, logg, "pubsub", pubsubClient.Close)

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return err
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	outboxMetrics := metrics.NewOutboxMetrics(promRegistry)
	dlq := outbox.NewDLQRepository(dbClient.DB())

	service, err := NewService(ServiceParams{
		Settings: cfg.Outbox,
		Logger:   logg,
		DB:       dbClient,
		PubSub:   pubsubClient,
		Outbox:   outbox.NewRepository(dbClient.DB()),
		DLQ:      dlq,
		Registry: eventRegistry,
		Metrics:  outboxMetrics,
	})
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "topics": eventRegistry.Topics()})
	logg.Info(ctx, "starting outbox publisher")

	metricsServer := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Outbox.MetricsPort),
		Handler:           promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return service.Run(groupCtx) })
	group.Go(func() error { return watchDLQDepth(groupCtx, dlq, outboxMetrics, logg, dlqRefreshInterval) })
	group.Go(func() error {
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(groupCtx), shutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func closeLogged(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(ctx, "error closing "+name, err)
	}
}
