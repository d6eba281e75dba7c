package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mochkris/procurement-backend/api/routes"
	"github.com/mochkris/procurement-backend/internal/documents"
	"github.com/mochkris/procurement-backend/internal/inventory"
	"github.com/mochkris/procurement-backend/internal/purchaseorders"
	"github.com/mochkris/procurement-backend/internal/receiving"
	"github.com/mochkris/procurement-backend/internal/requisitions"
	"github.com/mochkris/procurement-backend/internal/suppliers"
	"github.com/mochkris/procurement-backend/pkg/config"
	"github.com/mochkris/procurement-backend/pkg/db"
	"github.com/mochkris/procurement-backend/pkg/instance"
	"github.com/mochkris/procurement-backend/pkg/logger"
	"github.com/mochkris/procurement-backend/pkg/metrics"
	"github.com/mochkris/procurement-backend/pkg/migrate"
	"github.com/mochkris/procurement-backend/pkg/outbox"
	"github.com/mochkris/procurement-backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

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

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
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

	reg := prometheus.NewRegistry()
	workflowMetrics := metrics.NewWorkflowMetrics(reg)
	conn := dbClient.DB()
	publisher := outbox.NewService(outbox.NewRepository(conn), logg)

	inventoryService, err := inventory.NewService(inventory.NewRepository(conn), dbClient, publisher, workflowMetrics, logg, cfg.Workflow)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}
	requisitionService, err := requisitions.NewService(requisitions.NewRepository(conn), dbClient, publisher, inventoryService, workflowMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create requisition service", err)
		os.Exit(1)
	}
	supplierRepo := suppliers.NewRepository(conn)
	purchaseOrderService, err := purchaseorders.NewService(
		purchaseorders.NewRepository(conn),
		dbClient,
		publisher,
		requisitionService,
		inventoryService,
		suppliers.NewDirectory(supplierRepo),
		workflowMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create purchase order service", err)
		os.Exit(1)
	}
	supplierService, err := suppliers.NewService(supplierRepo, dbClient, publisher, purchaseOrderService)
	if err != nil {
		logg.Error(context.Background(), "failed to create supplier service", err)
		os.Exit(1)
	}
	receivingService, err := receiving.NewService(dbClient, publisher, purchaseOrderService, requisitionService, inventoryService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create receiving service", err)
		os.Exit(1)
	}
	documentService, err := documents.NewService(purchaseOrderService, requisitionService, inventoryService, cfg.Workflow.DocumentPageSize)
	if err != nil {
		logg.Error(context.Background(), "failed to create document service", err)
		os.Exit(1)
	}
	deadLetters, err := outbox.NewDeadLetters(dbClient, outbox.NewDLQRepository(conn), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create dead letter admin", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			metrics.Handler(reg),
			inventoryService,
			requisitionService,
			purchaseOrderService,
			receivingService,
			supplierService,
			documentService,
			deadLetters,
		),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shutting down gracefully")
	}
}
