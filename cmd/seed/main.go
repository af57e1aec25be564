package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/wms-platform/reconciliation-service/internal/application"
	"github.com/wms-platform/reconciliation-service/internal/config"
	"github.com/wms-platform/reconciliation-service/internal/fixtures"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/storage"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/logging"
	"github.com/wms-platform/reconciliation-service/pkg/metrics"
)

// Seeds assignments from a YAML fixture into the configured backend.
// Assignments that already exist are skipped, so the tool can be re-run.

var (
	fixturePath = flag.String("file", "internal/fixtures/testdata/assignments.yaml", "YAML fixture of assignments")
	timeout     = flag.Duration("timeout", time.Minute, "Overall time limit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.DefaultConfig(config.ServiceName)).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logConfig := logging.DefaultConfig(config.ServiceName)
	logConfig.Level = logging.ParseLevel(cfg.LogLevel)
	logger := logging.New(logConfig).WithComponent("seed")

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Error("Invalid configuration")
		os.Exit(1)
	}

	f, err := fixtures.Load(*fixturePath)
	if err != nil {
		logger.WithError(err).Error("Failed to load fixture", "file", *fixturePath)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	m := metrics.New(metrics.DefaultConfig(config.ServiceName))
	backend, err := storage.Open(ctx, cfg, cloudevents.NewEventFactory(cloudevents.SourceReconciliation), m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to open storage", "backend", cfg.StorageBackend)
		os.Exit(1)
	}
	defer backend.Close(context.Background())

	// Events land in the outbox and are relayed by the API
	ledger := application.NewLedger(backend.Store, application.NopAlertPublisher{}, m, logger, cfg.Ledger.MaxAttempts)
	service := application.NewReconciliationService(backend.Store, ledger, application.NopCompletionNotifier{}, m, logger)

	report, err := fixtures.Apply(ctx, service, f)
	if err != nil {
		logger.WithError(err).Error("Seeding failed", "opened", report.Opened, "steps", report.Steps)
		backend.Close(context.Background())
		os.Exit(1)
	}

	logger.Info("Seeding completed",
		"backend", backend.Name,
		"opened", report.Opened,
		"skipped", report.Skipped,
		"steps", report.Steps,
	)
}
