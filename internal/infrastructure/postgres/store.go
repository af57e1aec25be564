// Package postgres is a relational storage backend built on gorm. A bucket
// save locks the row FOR UPDATE, compares versions and writes the audit and
// outbox rows in the same transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wms-platform/reconciliation-service/internal/config"
	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/internal/infrastructure/outboxmapper"
	"github.com/wms-platform/reconciliation-service/pkg/cloudevents"
	"github.com/wms-platform/reconciliation-service/pkg/outbox"
)

// PostgreSQL error codes the store reacts to
const (
	PgErrUniqueViolation      = "23505"
	PgErrSerializationFailure = "40001"
	PgErrDeadlockDetected     = "40P01"
)

// Store implements domain.Store on PostgreSQL
type Store struct {
	db           *gorm.DB
	eventFactory *cloudevents.EventFactory
}

// Open connects, sizes the pool and migrates the schema
func Open(cfg config.PostgresConfig, eventFactory *cloudevents.EventFactory) (*Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, eventFactory: eventFactory}
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Migrate creates or updates the tables
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(
		&AssignmentRow{},
		&BucketRow{},
		&PickEventRow{},
		&QCReviewRow{},
		&OutboxRow{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// Assignments returns the assignment repository
func (s *Store) Assignments() domain.AssignmentRepository { return &assignmentRepository{s} }

// Buckets returns the size bucket repository
func (s *Store) Buckets() domain.SizeBucketRepository { return &bucketRepository{s} }

// Audit returns the audit log reader
func (s *Store) Audit() domain.AuditRepository { return &auditRepository{s} }

// Outbox returns the relay side of the outbox
func (s *Store) Outbox() outbox.Repository { return &outboxRepository{s} }

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the connection pool
func (s *Store) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func (s *Store) createOutbox(ctx context.Context, tx *gorm.DB, events []domain.DomainEvent) error {
	rows, err := outboxmapper.Build(ctx, s.eventFactory, events)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	records := make([]*OutboxRow, len(rows))
	for i, row := range rows {
		records[i] = toOutboxRow(row)
	}
	if err := tx.Create(&records).Error; err != nil {
		return fmt.Errorf("failed to save outbox events: %w", err)
	}
	return nil
}

type assignmentRepository struct{ s *Store }

func (r *assignmentRepository) Create(ctx context.Context, a *domain.Assignment, buckets []*domain.SizeBucket) error {
	err := r.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(toAssignmentRow(a)).Error; err != nil {
			return err
		}

		rows := make([]*BucketRow, len(buckets))
		for i, b := range buckets {
			rows[i] = toBucketRow(b)
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to insert buckets: %w", err)
		}

		return r.s.createOutbox(ctx, tx, a.DomainEvents)
	})
	if err != nil {
		if pgCode(err) == PgErrUniqueViolation {
			return domain.ErrAssignmentExists
		}
		return err
	}

	a.ClearDomainEvents()
	return nil
}

func (r *assignmentRepository) Save(ctx context.Context, a *domain.Assignment) error {
	err := r.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&AssignmentRow{}).
			Where("assignment_id = ?", a.AssignmentID).
			Updates(map[string]interface{}{
				"status":        string(a.Status),
				"updated_at":    a.UpdatedAt,
				"reconciled_at": a.ReconciledAt,
				"closed_at":     a.ClosedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to save assignment: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.ErrAssignmentNotFound
		}

		return r.s.createOutbox(ctx, tx, a.DomainEvents)
	})
	if err != nil {
		return err
	}

	a.ClearDomainEvents()
	return nil
}

func (r *assignmentRepository) FindByID(ctx context.Context, assignmentID string) (*domain.Assignment, error) {
	var row AssignmentRow
	err := r.s.db.WithContext(ctx).Where("assignment_id = ?", assignmentID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return row.toDomain(), nil
}

type bucketRepository struct{ s *Store }

func (r *bucketRepository) FindByKey(ctx context.Context, assignmentID, size string) (*domain.SizeBucket, error) {
	var row BucketRow
	err := r.s.db.WithContext(ctx).
		Where("assignment_id = ? AND size = ?", assignmentID, size).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *bucketRepository) FindByAssignment(ctx context.Context, assignmentID string) ([]*domain.SizeBucket, error) {
	var rows []BucketRow
	if err := r.s.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("size").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	buckets := make([]*domain.SizeBucket, len(rows))
	for i := range rows {
		buckets[i] = rows[i].toDomain()
	}
	return buckets, nil
}

func (r *bucketRepository) Save(ctx context.Context, b *domain.SizeBucket, expectedVersion int64) error {
	err := r.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current BucketRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("assignment_id = ? AND size = ?", b.AssignmentID, b.Size).
			First(&current).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrBucketNotFound
			}
			return err
		}
		if current.Version != expectedVersion {
			return domain.ErrConcurrentModification
		}

		if err := tx.Save(toBucketRow(b)).Error; err != nil {
			return fmt.Errorf("failed to save bucket: %w", err)
		}

		for _, event := range b.DomainEvents {
			var err error
			switch e := event.(type) {
			case *domain.PickEvent:
				err = tx.Create(toPickEventRow(e)).Error
			case *domain.QCReviewEvent:
				err = tx.Create(toQCReviewRow(e)).Error
			}
			if err != nil {
				return fmt.Errorf("failed to append audit record: %w", err)
			}
		}

		return r.s.createOutbox(ctx, tx, b.DomainEvents)
	})
	if err != nil {
		switch pgCode(err) {
		case PgErrSerializationFailure, PgErrDeadlockDetected:
			return domain.ErrConcurrentModification
		}
		return err
	}

	b.ClearDomainEvents()
	return nil
}

type auditRepository struct{ s *Store }

func (r *auditRepository) ListPickEvents(ctx context.Context, assignmentID, size string) ([]*domain.PickEvent, error) {
	var rows []PickEventRow
	if err := r.s.db.WithContext(ctx).
		Where("assignment_id = ? AND size = ?", assignmentID, size).
		Order("version").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	events := make([]*domain.PickEvent, len(rows))
	for i := range rows {
		events[i] = rows[i].toDomain()
	}
	return events, nil
}

func (r *auditRepository) ListQCReviews(ctx context.Context, assignmentID, size string) ([]*domain.QCReviewEvent, error) {
	var rows []QCReviewRow
	if err := r.s.db.WithContext(ctx).
		Where("assignment_id = ? AND size = ?", assignmentID, size).
		Order("version").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	events := make([]*domain.QCReviewEvent, len(rows))
	for i := range rows {
		events[i] = rows[i].toDomain()
	}
	return events, nil
}

type outboxRepository struct{ s *Store }

func (r *outboxRepository) FindUnpublished(ctx context.Context, limit int) ([]*outbox.OutboxEvent, error) {
	var rows []OutboxRow
	if err := r.s.db.WithContext(ctx).
		Where("published_at IS NULL AND retry_count < max_retries").
		Order("created_at").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find unpublished events: %w", err)
	}

	events := make([]*outbox.OutboxEvent, len(rows))
	for i := range rows {
		events[i] = rows[i].toOutbox()
	}
	return events, nil
}

func (r *outboxRepository) MarkPublished(ctx context.Context, eventID string) error {
	result := r.s.db.WithContext(ctx).Model(&OutboxRow{}).
		Where("id = ?", eventID).
		Update("published_at", time.Now().UTC())
	if result.Error != nil {
		return fmt.Errorf("failed to mark event as published: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("event not found: %s", eventID)
	}
	return nil
}

func (r *outboxRepository) IncrementRetry(ctx context.Context, eventID string, errorMsg string) error {
	result := r.s.db.WithContext(ctx).Model(&OutboxRow{}).
		Where("id = ?", eventID).
		Updates(map[string]interface{}{
			"retry_count": gorm.Expr("retry_count + 1"),
			"last_error":  errorMsg,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to increment retry count: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("event not found: %s", eventID)
	}
	return nil
}

func (r *outboxRepository) DeletePublished(ctx context.Context, before time.Time) (int64, error) {
	result := r.s.db.WithContext(ctx).
		Where("published_at IS NOT NULL AND published_at < ?", before).
		Delete(&OutboxRow{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete published events: %w", result.Error)
	}
	return result.RowsAffected, nil
}
