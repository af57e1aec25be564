package application

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wms-platform/reconciliation-service/internal/domain"
	apperrors "github.com/wms-platform/reconciliation-service/pkg/errors"
)

var invariantErr = domain.InvariantViolationError{Invariant: domain.InvariantApprovedWithinPicked}

func TestToAppError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"exceeds remaining", &domain.LimitError{Err: domain.ErrExceedsRemaining, Requested: 3, Limit: 2}, apperrors.CodeExceedsRemaining, http.StatusUnprocessableEntity},
		{"exceeds unverified", &domain.LimitError{Err: domain.ErrQuantityExceedsUnverified, Requested: 3, Limit: 0}, apperrors.CodeQuantityExceedsUnverified, http.StatusUnprocessableEntity},
		{"remarks", domain.ErrRemarksRequired, apperrors.CodeRemarksRequired, http.StatusUnprocessableEntity},
		{"negative", domain.ErrInvalidQuantity, apperrors.CodeValidationError, http.StatusBadRequest},
		{"closed", domain.ErrAssignmentClosed, apperrors.CodeAssignmentClosed, http.StatusConflict},
		{"exists", domain.ErrAssignmentExists, apperrors.CodeConflict, http.StatusConflict},
		{"conflict", fmt.Errorf("save: %w", domain.ErrConcurrentModification), apperrors.CodeConflict, http.StatusConflict},
		{"bucket missing", domain.ErrBucketNotFound, apperrors.CodeNotFound, http.StatusNotFound},
		{"invariant", &invariantErr, apperrors.CodeReconciliationError, http.StatusInternalServerError},
		{"storage", context.DeadlineExceeded, apperrors.CodeInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := toAppError(tt.err, "A-1", "M")
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, tt.status, appErr.HTTPStatus)
			assert.ErrorIs(t, appErr, tt.err)
		})
	}
}

func TestToAppError_LimitDetails(t *testing.T) {
	appErr := toAppError(&domain.LimitError{Err: domain.ErrExceedsRemaining, Requested: 12, Limit: 10}, "A-1", "XL")
	assert.Equal(t, map[string]string{
		"assignmentId": "A-1",
		"size":         "XL",
		"requested":    "12",
		"limit":        "10",
	}, appErr.Details)
}
