package application

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/wms-platform/reconciliation-service/internal/domain"
	apperrors "github.com/wms-platform/reconciliation-service/pkg/errors"
)

// toAppError maps ledger and assignment errors onto the API error taxonomy.
// Input errors carry the bucket and the exceeded limit in their details.
func toAppError(err error, assignmentID, size string) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}

	var appErr *apperrors.AppError
	switch {
	case errors.Is(err, domain.ErrInvariantViolation):
		return apperrors.ErrReconciliation(err)

	case errors.Is(err, domain.ErrExceedsRemaining):
		appErr = apperrors.ErrUnprocessable(apperrors.CodeExceedsRemaining, "pick quantity exceeds remaining to pick")
	case errors.Is(err, domain.ErrQuantityExceedsUnverified):
		appErr = apperrors.ErrUnprocessable(apperrors.CodeQuantityExceedsUnverified, "verdict quantity exceeds unverified units")
	case errors.Is(err, domain.ErrRemarksRequired):
		appErr = apperrors.ErrUnprocessable(apperrors.CodeRemarksRequired, "remarks are required when rejecting units")

	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrInvalidAssignment):
		appErr = apperrors.ErrValidation(err.Error())

	case errors.Is(err, domain.ErrAssignmentNotFound):
		return apperrors.ErrNotFoundWithID("assignment", assignmentID).Wrap(err)
	case errors.Is(err, domain.ErrBucketNotFound):
		return apperrors.ErrNotFoundWithID("size bucket", assignmentID+"/"+size).Wrap(err)

	case errors.Is(err, domain.ErrAssignmentClosed):
		return apperrors.NewAppError(apperrors.CodeAssignmentClosed, "assignment is closed", http.StatusConflict).
			WithDetail("assignmentId", assignmentID).
			Wrap(err)
	case errors.Is(err, domain.ErrAssignmentExists):
		return apperrors.ErrConflict("assignment already exists").WithDetail("assignmentId", assignmentID).Wrap(err)
	case errors.Is(err, domain.ErrConcurrentModification):
		return apperrors.ErrConflict("size bucket was modified concurrently, retry the request").Wrap(err)

	default:
		return apperrors.ErrInternal("").Wrap(err)
	}

	if assignmentID != "" {
		appErr = appErr.WithDetail("assignmentId", assignmentID)
	}
	if size != "" {
		appErr = appErr.WithDetail("size", size)
	}

	var limitErr *domain.LimitError
	if errors.As(err, &limitErr) {
		appErr = appErr.
			WithDetail("requested", strconv.Itoa(limitErr.Requested)).
			WithDetail("limit", strconv.Itoa(limitErr.Limit))
	}

	return appErr.Wrap(err)
}

// isInputError reports errors caused by the request rather than the service
func isInputError(err error) bool {
	return errors.Is(err, domain.ErrExceedsRemaining) ||
		errors.Is(err, domain.ErrQuantityExceedsUnverified) ||
		errors.Is(err, domain.ErrRemarksRequired) ||
		errors.Is(err, domain.ErrInvalidQuantity) ||
		errors.Is(err, domain.ErrInvalidAssignment) ||
		errors.Is(err, domain.ErrAssignmentClosed) ||
		errors.Is(err, domain.ErrAssignmentNotFound) ||
		errors.Is(err, domain.ErrBucketNotFound) ||
		errors.Is(err, domain.ErrAssignmentExists)
}
