package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mochkris/procurement-backend/internal/cron"
	"github.com/mochkris/procurement-backend/internal/inventory"
	"github.com/mochkris/procurement-backend/internal/requisitions"
	"github.com/mochkris/procurement-backend/pkg/config"
	"github.com/mochkris/procurement-backend/pkg/db"
	"github.com/mochkris/procurement-backend/pkg/instance"
	"github.com/mochkris/procurement-backend/pkg/logger"
	"github.com/mochkris/procurement-backend/pkg/metrics"
	"github.com/mochkris/procurement-backend/pkg/migrate"
	"github.com/mochkris/procurement-backend/pkg/outbox"
	"github.com/mochkris/procurement-backend/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	bootLogg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		bootLogg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		bootLogg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    instance.GetID(),
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

// run wires the worker and blocks until ctx is canceled. Cleanup runs through
// defers, so every exit path closes what was opened.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeQuietly(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer closeQuietly(ctx, logg, "redis", redisClient.Close)

	reg := prometheus.NewRegistry()
	jobs, err := buildJobs(cfg, logg, dbClient, metrics.NewWorkflowMetrics(reg))
	if err != nil {
		return err
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(serviceKind+":"+lockEnv(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	go func() {
		if err := metrics.Serve(ctx, cfg.Service.MetricsAddr, reg, logg); err != nil {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()

	logg.Info(logg.WithField(ctx, "interval", cfg.Cron.Interval.String()), "starting cron worker")
	return service.Run(ctx)
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, workflowMetrics *metrics.WorkflowMetrics) (*cron.Registry, error) {
	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)
	publisher := outbox.NewService(outboxRepo, logg)

	inventoryService, err := inventory.NewService(inventory.NewRepository(conn), dbClient, publisher, workflowMetrics, logg, cfg.Workflow)
	if err != nil {
		return nil, fmt.Errorf("inventory service: %w", err)
	}
	requisitionService, err := requisitions.NewService(requisitions.NewRepository(conn), dbClient, publisher, inventoryService, workflowMetrics, logg)
	if err != nil {
		return nil, fmt.Errorf("requisition service: %w", err)
	}

	lowStock, err := cron.NewLowStockJob(cron.LowStockJobParams{
		Logger:       logg,
		DB:           dbClient,
		Inventory:    inventoryService,
		Requisitions: requisitionService,
	})
	if err != nil {
		return nil, fmt.Errorf("low stock job: %w", err)
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		Repository:    outboxRepo,
		RetentionDays: cfg.Outbox.RetentionDays,
		DeadAttempts:  cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	registry := cron.NewRegistry()
	for _, job := range []cron.Job{lowStock, retention} {
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func closeQuietly(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(logg.WithField(ctx, "dependency", name), "close failed", err)
	}
}

func lockEnv(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
