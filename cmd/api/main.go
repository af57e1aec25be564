package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wms-platform/reconciliation-service/internal/activities"
	"github.com/wms-platform/reconciliation-service/internal/application"
	"github.com/wms-platform/reconciliation-service/internal/config"
	kafkaInfra "github.com/wms-platform/reconciliation-service/internal/infrastructure/kafka"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/storage"
	temporalInfra "github.com/wms-platform/reconciliation-service/internal/infrastructure/temporal"
	"github.com/wms-platform/reconciliation-service/internal/workflows"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/idempotency"
	"github.com/wms-platform/reconciliation-service/pkg/kafka"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
	"github.com/wms-platform/reconciliation-service/pkg/outbox"
	"github.com/wms-platform/reconciliation-service/pkg/resilience"
	"github.com/wms-platform/reconciliation-service/pkg/temporal"
	"github.com/wms-platform/reconciliation-service/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.DefaultConfig(config.ServiceName)).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	// Setup enhanced logger
	logConfig := logging.DefaultConfig(config.ServiceName)
	logConfig.Level = logging.ParseLevel(cfg.LogLevel)
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting reconciliation-service API", "backend", cfg.StorageBackend)

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Error("Invalid configuration")
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize OpenTelemetry tracing
	tracerProvider, err := tracing.Initialize(ctx, cfg.Tracing)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", cfg.Tracing.OTLPEndpoint)
	}

	m := metrics.New(metrics.DefaultConfig(config.ServiceName))
	eventFactory := cloudevents.NewEventFactory(cloudevents.SourceReconciliation)

	backend, err := storage.Open(ctx, cfg, eventFactory, m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to open storage", "backend", cfg.StorageBackend)
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = backend.Close(closeCtx)
	}()
	logger.Info("Storage opened", "backend", backend.Name)

	var alerts application.AlertPublisher = application.NopAlertPublisher{}
	if cfg.KafkaEnabled {
		// Kafka producer behind a circuit breaker
		kafkaProducer := kafka.NewProducer(cfg.Kafka)
		defer kafkaProducer.Close()

		breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("kafka-producer"), logger.Logger, m)
		instrumentedProducer := kafka.NewInstrumentedProducer(kafkaProducer, breaker, m, logger)
		logger.Info("Kafka producer initialized", "brokers", cfg.Kafka.Brokers)

		alerts = kafkaInfra.NewAlertPublisher(instrumentedProducer, eventFactory, kafka.Topics.ReconciliationAlerts)

		outboxPublisher := outbox.NewPublisher(
			backend.Outbox,
			instrumentedProducer,
			logger,
			m,
			&outbox.PublisherConfig{
				PollInterval: cfg.Outbox.PollInterval,
				BatchSize:    cfg.Outbox.BatchSize,
				Retention:    cfg.Outbox.Retention,
			},
		)
		if err := outboxPublisher.Start(ctx); err != nil {
			logger.WithError(err).Error("Failed to start outbox publisher")
			os.Exit(1)
		}
		defer outboxPublisher.Stop()
		logger.Info("Outbox publisher started")
	} else {
		logger.Warn("Kafka disabled, outbox events stay unpublished and alerts are dropped")
	}

	var (
		temporalClient *temporal.Client
		notifier       application.CompletionNotifier = application.NopCompletionNotifier{}
	)
	if cfg.TemporalEnabled {
		temporalClient, err = temporal.NewClient(ctx, cfg.Temporal)
		if err != nil {
			logger.WithError(err).Error("Failed to connect to Temporal")
			os.Exit(1)
		}
		defer temporalClient.Close()

		notifier = temporalInfra.NewCompletionNotifier(temporalClient, cfg.Workflow.CheckInterval, cfg.Workflow.StallAfter)
		logger.Info("Connected to Temporal", "host", cfg.Temporal.HostPort, "namespace", cfg.Temporal.Namespace)
	}

	ledger := application.NewLedger(backend.Store, alerts, m, logger, cfg.Ledger.MaxAttempts)
	service := application.NewReconciliationService(backend.Store, ledger, notifier, m, logger)

	// Embedded stores cannot be shared with cmd/worker
	if temporalClient != nil && cfg.Embedded() {
		w := temporalClient.NewWorker(temporal.DefaultWorkerOptions(temporal.TaskQueues.Reconciliation))
		workflows.Register(w)
		activities.NewReconciliationActivities(service, alerts, m, logger).Register(w)
		if err := w.Start(); err != nil {
			logger.WithError(err).Error("Failed to start in-process worker")
			os.Exit(1)
		}
		defer w.Stop()
		logger.Info("In-process worker started", "taskQueue", temporal.TaskQueues.Reconciliation)
	}

	if cfg.KafkaEnabled {
		consumer := kafka.NewConsumer(cfg.Kafka, m, logger)
		kafkaInfra.NewAssignmentHandlers(service, logger).Register(consumer)
		defer consumer.Close()

		go func() {
			if err := consumer.Start(ctx); err != nil && err != context.Canceled {
				logger.WithError(err).Error("Kafka consumer stopped")
			}
		}()
		logger.Info("Kafka consumer started", "topic", kafka.Topics.ProductionAssignments)
	}

	idemConfig := idempotency.DefaultConfig(config.ServiceName, backend.IdempotencyKeys, logger, m)
	idemConfig.RequireKey = cfg.Idempotency.RequireKey
	idemConfig.RetentionPeriod = cfg.Idempotency.Retention

	router := setupRouter(routerDeps{
		service:     service,
		idempotency: idemConfig,
		metrics:     m,
		ready:       backend.Store.Ping,
		logger:      logger,
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
		}
	}()
	logger.Info("Server started", "addr", cfg.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	stop()

	logger.Info("Server stopped")
}
