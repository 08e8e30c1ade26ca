package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	httpAdapter "github.com/finbridge/sms-gateway/internal/adapter/http"
	"github.com/finbridge/sms-gateway/internal/adapter/postgres"
	"github.com/finbridge/sms-gateway/internal/adapter/provider"
	"github.com/finbridge/sms-gateway/internal/adapter/upstream"
	"github.com/finbridge/sms-gateway/internal/adapter/ws"
	"github.com/finbridge/sms-gateway/internal/app"
	"github.com/finbridge/sms-gateway/pkg/config"
	"github.com/finbridge/sms-gateway/pkg/logger"
	"github.com/finbridge/sms-gateway/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New("sms-gateway", cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := tracing.InitTracer(ctx, "sms-gateway", cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("failed to initialize tracer, continuing without tracing", zap.Error(err))
	} else {
		defer func() { _ = tp.Shutdown(ctx) }()
	}

	db, err := postgres.NewConnection(ctx, cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	runMigrations(cfg.DatabaseURL, log)

	messageRepo := postgres.NewMessageRepo(db)
	bridgeRepo := postgres.NewBridgeRepo(db)
	tenantRepo := postgres.NewTenantRepo(db)
	externalServiceRepo := postgres.NewExternalServiceRepo(db)

	registry := provider.NewRegistry(bridgeRepo,
		provider.NewAfricasTalking(),
		provider.NewSimulator(cfg.SimulatorFailRate),
	)

	queue := app.NewSerialQueue(cfg.DispatchQueueSize, cfg.DispatchWorkers, log)
	wsHub := ws.NewHub()

	dispatchService := app.NewDispatchService(messageRepo, tenantRepo, registry, queue, wsHub, log)
	forwarder := upstream.NewClient(cfg.UpstreamTokenTTL)
	inboundService := app.NewInboundService(messageRepo, tenantRepo, registry, externalServiceRepo, forwarder, queue, log)

	sweep := app.NewRecoverySweep(messageRepo, dispatchService, cfg.RecoveryDelay, cfg.RecoveryPageSize, log)
	go sweep.Run(ctx)

	router := httpAdapter.NewRouter(httpAdapter.RouterDeps{
		MessageHandler:     httpAdapter.NewMessageHandler(dispatchService),
		WebhookHandler:     httpAdapter.NewWebhookHandler(dispatchService, inboundService),
		HealthHandler:      httpAdapter.NewHealthHandler(db),
		WebSocketHandler:   httpAdapter.NewWebSocketHandler(wsHub),
		Logger:             log,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting http server", zap.String("port", cfg.AppPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	// Drain queued dispatch work before the process exits; whatever does not
	// make it stays pending and the next start's recovery sweep resends it.
	if err := queue.Close(shutdownCtx); err != nil {
		log.Error("task queue shutdown error", zap.Error(err))
	}

	cancel()

	log.Info("server stopped")
}

func runMigrations(databaseURL string, log *zap.Logger) {
	m, err := migrate.New("file://migrations", databaseURL)
	if err != nil {
		log.Warn("failed to create migrator", zap.Error(err))
		return
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Warn("migration failed", zap.Error(err))
		return
	}

	log.Info("database migrations applied")
}
