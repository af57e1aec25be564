package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssignment(t *testing.T) {
	tests := []struct {
		name        string
		id          string
		sizes       map[string]int
		expectError bool
	}{
		{"valid", "ASN-001", map[string]int{"s": 10, "M": 20, "XL": 5}, false},
		{"missing id", "  ", map[string]int{"M": 1}, true},
		{"no sizes", "ASN-002", map[string]int{}, true},
		{"zero assigned", "ASN-003", map[string]int{"M": 0}, true},
		{"negative assigned", "ASN-004", map[string]int{"M": -2}, true},
		{"duplicate size ignoring case", "ASN-005", map[string]int{"m": 1, "M": 2}, true},
		{"blank size", "ASN-006", map[string]int{" ": 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, buckets, err := NewAssignment(tt.id, "ORD-1", "BATCH-1", "PROD-1", tt.sizes, testTime)
			if tt.expectError {
				assert.ErrorIs(t, err, ErrInvalidAssignment)
				assert.Nil(t, a)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, AssignmentStatusOpen, a.Status)
			assert.Equal(t, []string{"M", "S", "XL"}, a.Sizes)
			require.Len(t, buckets, 3)
			assert.Equal(t, "M", buckets[0].Size)
			assert.Equal(t, 20, buckets[0].Assigned)
			assert.Equal(t, int64(1), buckets[0].Version)
			assert.Equal(t, 10, buckets[1].Assigned)
			require.Len(t, a.DomainEvents, 1)
			assert.IsType(t, &AssignmentOpenedEvent{}, a.DomainEvents[0])
		})
	}
}

func TestAssignment_Close(t *testing.T) {
	a, _, err := NewAssignment("ASN-001", "ORD-1", "B-1", "P-1", map[string]int{"M": 5}, testTime)
	require.NoError(t, err)
	a.ClearDomainEvents()

	assert.True(t, a.AcceptsMutations())
	assert.True(t, a.Close("dispatched", testTime))
	assert.False(t, a.AcceptsMutations())
	assert.False(t, a.Close("dispatched", testTime), "closing twice is a no-op")
	assert.Len(t, a.DomainEvents, 1)
}

func TestAssignment_MarkReconciled(t *testing.T) {
	a, buckets, err := NewAssignment("ASN-001", "ORD-1", "B-1", "P-1", map[string]int{"M": 5, "L": 3}, testTime)
	require.NoError(t, err)
	a.ClearDomainEvents()

	changed, err := a.MarkReconciled(buckets, testTime)
	assert.Error(t, err)
	assert.False(t, changed)

	for _, b := range buckets {
		b.Picked = b.Assigned
		b.ApprovedCumulative = b.Assigned
	}

	changed, err = a.MarkReconciled(buckets, testTime)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, AssignmentStatusReconciled, a.Status)
	require.Len(t, a.DomainEvents, 1)
	event := a.DomainEvents[0].(*AssignmentReconciledEvent)
	assert.Equal(t, 8, event.TotalAssigned)

	changed, err = a.MarkReconciled(buckets, testTime)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestAssignment_MarkReconciledWhenClosed(t *testing.T) {
	a, buckets, err := NewAssignment("ASN-001", "ORD-1", "B-1", "P-1", map[string]int{"M": 1}, testTime)
	require.NoError(t, err)
	a.Close("cancelled", testTime)

	_, err = a.MarkReconciled(buckets, testTime)
	assert.ErrorIs(t, err, ErrAssignmentClosed)
}

func TestAssignment_HasSize(t *testing.T) {
	a, _, err := NewAssignment("ASN-001", "ORD-1", "B-1", "P-1", map[string]int{"XL": 1}, testTime)
	require.NoError(t, err)

	assert.True(t, a.HasSize(" xl "))
	assert.False(t, a.HasSize("S"))
}
