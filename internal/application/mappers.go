package application

import "github.com/wms-platform/reconciliation-service/internal/domain"

// ToSizeBucketDTO converts a bucket and its remaining work
func ToSizeBucketDTO(b *domain.SizeBucket) *SizeBucketDTO {
	if b == nil {
		return nil
	}

	rem := domain.CalculateRemaining(*b)
	return &SizeBucketDTO{
		AssignmentID:        b.AssignmentID,
		Size:                b.Size,
		Assigned:            b.Assigned,
		Picked:              b.Picked,
		ApprovedCumulative:  b.ApprovedCumulative,
		RejectedCumulative:  b.RejectedCumulative,
		ReplacedCumulative:  b.ReplacedCumulative,
		Pending:             rem.Pending,
		AwaitingReplacement: rem.AwaitingReplacement,
		RemainingToPick:     rem.RemainingToPick,
		Unverified:          rem.Unverified,
		Reconciled:          b.IsReconciled(),
		Version:             b.Version,
		UpdatedAt:           b.UpdatedAt,
	}
}

// ToSizeBucketListDTO converts all buckets of an assignment with totals
func ToSizeBucketListDTO(assignmentID string, buckets []*domain.SizeBucket) *SizeBucketListDTO {
	dtos := make([]SizeBucketDTO, 0, len(buckets))
	for _, b := range buckets {
		dtos = append(dtos, *ToSizeBucketDTO(b))
	}
	return &SizeBucketListDTO{
		AssignmentID: assignmentID,
		Buckets:      dtos,
		Totals:       totals(dtos),
	}
}

func totals(buckets []SizeBucketDTO) BucketTotalsDTO {
	var t BucketTotalsDTO
	for _, b := range buckets {
		t.Assigned += b.Assigned
		t.Picked += b.Picked
		t.Approved += b.ApprovedCumulative
		t.Rejected += b.RejectedCumulative
		t.AwaitingReplacement += b.AwaitingReplacement
		t.RemainingToPick += b.RemainingToPick
		t.Unverified += b.Unverified
	}
	return t
}

// ToAssignmentDTO converts an assignment. When buckets is non-nil they are
// included along with the summary.
func ToAssignmentDTO(a *domain.Assignment, buckets []*domain.SizeBucket) *AssignmentDTO {
	if a == nil {
		return nil
	}

	dto := &AssignmentDTO{
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

	if buckets != nil {
		list := ToSizeBucketListDTO(a.AssignmentID, buckets)
		dto.Buckets = list.Buckets
		dto.Summary = summarize(list.Totals)
	}
	return dto
}

// ToPickEventDTOs converts pick history
func ToPickEventDTOs(events []*domain.PickEvent) []PickEventDTO {
	dtos := make([]PickEventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, PickEventDTO{
			EventID:     e.EventID,
			Quantity:    e.Quantity,
			Freed:       e.Freed,
			PickedAfter: e.PickedAfter,
			Picker:      e.Picker,
			Version:     e.Version,
			PickedAt:    e.PickedAt,
		})
	}
	return dtos
}

// ToQCReviewDTOs converts QC history
func ToQCReviewDTOs(events []*domain.QCReviewEvent) []QCReviewDTO {
	dtos := make([]QCReviewDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, QCReviewDTO{
			EventID:    e.EventID,
			Approved:   e.Approved,
			Rejected:   e.Rejected,
			Remarks:    e.Remarks,
			Inspector:  e.Inspector,
			Version:    e.Version,
			ReviewedAt: e.ReviewedAt,
		})
	}
	return dtos
}
