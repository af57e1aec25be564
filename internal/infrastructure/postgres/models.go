package postgres

import (
	"encoding/json"
	"time"

	"github.com/wms-platform/reconciliation-service/internal/domain"
	"github.com/wms-platform/reconciliation-service/pkg/outbox"
)

// AssignmentRow is the assignments table
type AssignmentRow struct {
	AssignmentID string     `gorm:"column:assignment_id;primaryKey;type:varchar(64)"`
	OrderID      string     `gorm:"column:order_id;type:varchar(64);index"`
	BatchID      string     `gorm:"column:batch_id;type:varchar(64);index"`
	ProductID    string     `gorm:"column:product_id;type:varchar(64)"`
	Status       string     `gorm:"column:status;type:varchar(20);default:'open'"`
	Sizes        []string   `gorm:"column:sizes;serializer:json"`
	OpenedAt     time.Time  `gorm:"column:opened_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime:false"`
	ReconciledAt *time.Time `gorm:"column:reconciled_at"`
	ClosedAt     *time.Time `gorm:"column:closed_at"`
}

func (AssignmentRow) TableName() string { return "assignments" }

// BucketRow is the size_buckets table
type BucketRow struct {
	AssignmentID       string    `gorm:"column:assignment_id;primaryKey;type:varchar(64)"`
	Size               string    `gorm:"column:size;primaryKey;type:varchar(16)"`
	Assigned           int       `gorm:"column:assigned;check:assigned > 0"`
	Picked             int       `gorm:"column:picked"`
	ApprovedCumulative int       `gorm:"column:approved_cumulative"`
	RejectedCumulative int       `gorm:"column:rejected_cumulative"`
	ReplacedCumulative int       `gorm:"column:replaced_cumulative"`
	Version            int64     `gorm:"column:version"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (BucketRow) TableName() string { return "size_buckets" }

// PickEventRow is the pick_events audit table
type PickEventRow struct {
	EventID      string    `gorm:"column:event_id;primaryKey;type:varchar(64)"`
	AssignmentID string    `gorm:"column:assignment_id;type:varchar(64);index:idx_pick_bucket_version,priority:1"`
	Size         string    `gorm:"column:size;type:varchar(16);index:idx_pick_bucket_version,priority:2"`
	Version      int64     `gorm:"column:version;index:idx_pick_bucket_version,priority:3"`
	Quantity     int       `gorm:"column:quantity"`
	Freed        int       `gorm:"column:freed"`
	PickedAfter  int       `gorm:"column:picked_after"`
	Picker       string    `gorm:"column:picker;type:varchar(64)"`
	PickedAt     time.Time `gorm:"column:picked_at"`
}

func (PickEventRow) TableName() string { return "pick_events" }

// QCReviewRow is the qc_reviews audit table
type QCReviewRow struct {
	EventID      string    `gorm:"column:event_id;primaryKey;type:varchar(64)"`
	AssignmentID string    `gorm:"column:assignment_id;type:varchar(64);index:idx_qc_bucket_version,priority:1"`
	Size         string    `gorm:"column:size;type:varchar(16);index:idx_qc_bucket_version,priority:2"`
	Version      int64     `gorm:"column:version;index:idx_qc_bucket_version,priority:3"`
	Approved     int       `gorm:"column:approved"`
	Rejected     int       `gorm:"column:rejected"`
	Remarks      string    `gorm:"column:remarks;type:text"`
	Inspector    string    `gorm:"column:inspector;type:varchar(64)"`
	ReviewedAt   time.Time `gorm:"column:reviewed_at"`
}

func (QCReviewRow) TableName() string { return "qc_reviews" }

// OutboxRow is the outbox_events table
type OutboxRow struct {
	ID            string     `gorm:"column:id;primaryKey;type:varchar(64)"`
	AggregateID   string     `gorm:"column:aggregate_id;type:varchar(160);index"`
	AggregateType string     `gorm:"column:aggregate_type;type:varchar(32)"`
	EventType     string     `gorm:"column:event_type;type:varchar(128)"`
	Topic         string     `gorm:"column:topic;type:varchar(128)"`
	Payload       []byte     `gorm:"column:payload;type:bytea"`
	CreatedAt     time.Time  `gorm:"column:created_at;index;autoCreateTime:false"`
	PublishedAt   *time.Time `gorm:"column:published_at;index"`
	RetryCount    int        `gorm:"column:retry_count"`
	LastError     string     `gorm:"column:last_error;type:text"`
	MaxRetries    int        `gorm:"column:max_retries"`
}

func (OutboxRow) TableName() string { return "outbox_events" }

func toAssignmentRow(a *domain.Assignment) *AssignmentRow {
	return &AssignmentRow{
		AssignmentID: a.AssignmentID,
		OrderID:      a.OrderID,
		BatchID:      a.BatchID,
		ProductID:    a.ProductID,
		Status:       string(a.Status),
		Sizes:        a.Sizes,
		OpenedAt:     a.OpenedAt,
		UpdatedAt:    a.UpdatedAt,
		ReconciledAt: a.ReconciledAt,
		ClosedAt:     a.ClosedAt,
	}
}

func (r *AssignmentRow) toDomain() *domain.Assignment {
	return &domain.Assignment{
		AssignmentID: r.AssignmentID,
		OrderID:      r.OrderID,
		BatchID:      r.BatchID,
		ProductID:    r.ProductID,
		Status:       domain.AssignmentStatus(r.Status),
		Sizes:        r.Sizes,
		OpenedAt:     r.OpenedAt,
		UpdatedAt:    r.UpdatedAt,
		ReconciledAt: r.ReconciledAt,
		ClosedAt:     r.ClosedAt,
	}
}

func toBucketRow(b *domain.SizeBucket) *BucketRow {
	return &BucketRow{
		AssignmentID:       b.AssignmentID,
		Size:               b.Size,
		Assigned:           b.Assigned,
		Picked:             b.Picked,
		ApprovedCumulative: b.ApprovedCumulative,
		RejectedCumulative: b.RejectedCumulative,
		ReplacedCumulative: b.ReplacedCumulative,
		Version:            b.Version,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}

func (r *BucketRow) toDomain() *domain.SizeBucket {
	return &domain.SizeBucket{
		AssignmentID:       r.AssignmentID,
		Size:               r.Size,
		Assigned:           r.Assigned,
		Picked:             r.Picked,
		ApprovedCumulative: r.ApprovedCumulative,
		RejectedCumulative: r.RejectedCumulative,
		ReplacedCumulative: r.ReplacedCumulative,
		Version:            r.Version,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func toPickEventRow(e *domain.PickEvent) *PickEventRow {
	return &PickEventRow{
		EventID:      e.EventID,
		AssignmentID: e.AssignmentID,
		Size:         e.Size,
		Version:      e.Version,
		Quantity:     e.Quantity,
		Freed:        e.Freed,
		PickedAfter:  e.PickedAfter,
		Picker:       e.Picker,
		PickedAt:     e.PickedAt,
	}
}

func (r *PickEventRow) toDomain() *domain.PickEvent {
	return &domain.PickEvent{
		EventID:      r.EventID,
		AssignmentID: r.AssignmentID,
		Size:         r.Size,
		Quantity:     r.Quantity,
		Freed:        r.Freed,
		PickedAfter:  r.PickedAfter,
		Picker:       r.Picker,
		Version:      r.Version,
		PickedAt:     r.PickedAt,
	}
}

func toQCReviewRow(e *domain.QCReviewEvent) *QCReviewRow {
	return &QCReviewRow{
		EventID:      e.EventID,
		AssignmentID: e.AssignmentID,
		Size:         e.Size,
		Version:      e.Version,
		Approved:     e.Approved,
		Rejected:     e.Rejected,
		Remarks:      e.Remarks,
		Inspector:    e.Inspector,
		ReviewedAt:   e.ReviewedAt,
	}
}

func (r *QCReviewRow) toDomain() *domain.QCReviewEvent {
	return &domain.QCReviewEvent{
		EventID:      r.EventID,
		AssignmentID: r.AssignmentID,
		Size:         r.Size,
		Approved:     r.Approved,
		Rejected:     r.Rejected,
		Remarks:      r.Remarks,
		Inspector:    r.Inspector,
		Version:      r.Version,
		ReviewedAt:   r.ReviewedAt,
	}
}

func toOutboxRow(e *outbox.OutboxEvent) *OutboxRow {
	return &OutboxRow{
		ID:            e.ID,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		EventType:     e.EventType,
		Topic:         e.Topic,
		Payload:       e.Payload,
		CreatedAt:     e.CreatedAt,
		PublishedAt:   e.PublishedAt,
		RetryCount:    e.RetryCount,
		LastError:     e.LastError,
		MaxRetries:    e.MaxRetries,
	}
}

func (r *OutboxRow) toOutbox() *outbox.OutboxEvent {
	return &outbox.OutboxEvent{
		ID:            r.ID,
		AggregateID:   r.AggregateID,
		AggregateType: r.AggregateType,
		EventType:     r.EventType,
		Topic:         r.Topic,
		Payload:       json.RawMessage(r.Payload),
		CreatedAt:     r.CreatedAt,
		PublishedAt:   r.PublishedAt,
		RetryCount:    r.RetryCount,
		LastError:     r.LastError,
		MaxRetries:    r.MaxRetries,
	}
}
