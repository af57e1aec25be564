package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckInvariants(t *testing.T) {
	valid := bucket(20, 10, 5, 2, 1)

	tests := []struct {
		name   string
		mutate func(b *SizeBucket)
		want   string
	}{
		{"identity", func(b *SizeBucket) { b.Size = "L" }, InvariantBucketIdentity},
		{"assigned changed", func(b *SizeBucket) { b.Assigned = 25 }, InvariantAssignedImmutable},
		{"picked above assigned", func(b *SizeBucket) { b.Picked = 21 }, InvariantPickedWithinAssigned},
		{"picked negative", func(b *SizeBucket) { b.Picked = -1; b.ApprovedCumulative = 5 }, InvariantPickedWithinAssigned},
		{"approved above picked", func(b *SizeBucket) { b.ApprovedCumulative = 11 }, InvariantApprovedWithinPicked},
		{"approved decreased", func(b *SizeBucket) { b.ApprovedCumulative = 4 }, InvariantApprovedMonotonic},
		{"rejected decreased", func(b *SizeBucket) { b.RejectedCumulative = 1 }, InvariantRejectedMonotonic},
		{"replaced decreased", func(b *SizeBucket) { b.ReplacedCumulative = 0 }, InvariantReplacedMonotonic},
		{"replaced above rejected", func(b *SizeBucket) { b.ReplacedCumulative = 3 }, InvariantReplacedWithinRejected},
		{"unverified negative", func(b *SizeBucket) { b.RejectedCumulative = 8 }, InvariantUnverifiedNonNegative},
		{"valid", func(b *SizeBucket) { b.Picked = 12 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			after := valid
			tt.mutate(&after)

			err := CheckInvariants(valid, after)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvariantViolation))

			var violation *InvariantViolationError
			require.ErrorAs(t, err, &violation)
			assert.Equal(t, tt.want, violation.Invariant)
			assert.Equal(t, valid, violation.Before)
			assert.Equal(t, after, violation.After)
		})
	}
}

func TestCheckInvariants_ErrorNamesBucket(t *testing.T) {
	before := bucket(20, 10, 5, 0, 0)
	after := before
	after.Picked = 30

	err := CheckInvariants(before, after)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ASN-001/M")
	assert.Contains(t, err.Error(), InvariantPickedWithinAssigned)
}

func TestCheckState(t *testing.T) {
	assert.Empty(t, CheckState(bucket(20, 20, 15, 5, 5)))
	assert.Equal(t, InvariantUnverifiedNonNegative, CheckState(bucket(20, 10, 8, 5, 0)))
}
