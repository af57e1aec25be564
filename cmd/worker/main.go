package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wms-platform/reconciliation-service/internal/activities"
	"github.com/wms-platform/reconciliation-service/internal/application"
	"github.com/wms-platform/reconciliation-service/internal/config"
	kafkaInfra "github.com/wms-platform/reconciliation-service/internal/infrastructure/kafka"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/storage"
	"github.com/wms-platform/reconciliation-service/internal/workflows"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/kafka"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
	"github.com/wms-platform/reconciliation-service/pkg/resilience"
	"github.com/wms-platform/reconciliation-service/pkg/temporal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.DefaultConfig(config.ServiceName)).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logConfig := logging.DefaultConfig(config.ServiceName)
	logConfig.Level = logging.ParseLevel(cfg.LogLevel)
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting reconciliation worker")

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Error("Invalid configuration")
		os.Exit(1)
	}
	if cfg.Embedded() {
		logger.Error("The worker needs a shared backend; the API runs it in-process for embedded backends",
			"backend", cfg.StorageBackend)
		os.Exit(1)
	}

	ctx := context.Background()
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

	var alerts application.AlertPublisher = application.NopAlertPublisher{}
	if cfg.KafkaEnabled {
		kafkaProducer := kafka.NewProducer(cfg.Kafka)
		defer kafkaProducer.Close()

		breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("kafka-producer"), logger.Logger, m)
		alerts = kafkaInfra.NewAlertPublisher(
			kafka.NewInstrumentedProducer(kafkaProducer, breaker, m, logger),
			eventFactory,
			kafka.Topics.ReconciliationAlerts,
		)
	}

	// The API owns the outbox relay; events written here are picked up there.
	ledger := application.NewLedger(backend.Store, alerts, m, logger, cfg.Ledger.MaxAttempts)
	service := application.NewReconciliationService(backend.Store, ledger, application.NopCompletionNotifier{}, m, logger)

	temporalClient, err := temporal.NewClient(ctx, cfg.Temporal)
	if err != nil {
		logger.WithError(err).Error("Failed to create Temporal client")
		os.Exit(1)
	}
	defer temporalClient.Close()
	logger.Info("Connected to Temporal", "hostPort", cfg.Temporal.HostPort, "namespace", cfg.Temporal.Namespace)

	w := temporalClient.NewWorker(temporal.DefaultWorkerOptions(temporal.TaskQueues.Reconciliation))
	workflows.Register(w)
	activities.NewReconciliationActivities(service, alerts, m, logger).Register(w)
	logger.Info("Registered workflow and activities", "workflow", temporal.WorkflowNames.AssignmentReconciliation)

	if err := w.Start(); err != nil {
		logger.WithError(err).Error("Worker failed to start")
		os.Exit(1)
	}
	logger.Info("Worker started", "taskQueue", temporal.TaskQueues.Reconciliation)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down worker...")

	w.Stop()
	logger.Info("Worker stopped")
}
