package errors

import (
	"fmt"
	"net/http"

	apperrors "slotwise/pkg/errors"
	"slotwise/pkg/model"
)

// SlotUnavailable maps an availability denial onto the API error surface.
// The block reason becomes the error code so clients can branch on it.
func SlotUnavailable(reason model.BlockReason, blockedBy, details string) *apperrors.AppError {
	err := apperrors.New(string(reason), "The requested time slot is not available", http.StatusConflict)
	info := map[string]any{}
	if blockedBy != "" {
		info["blocked_by"] = blockedBy
	}
	if details != "" {
		info["details"] = details
	}
	if len(info) > 0 {
		err.WithDetails(info)
	}
	return err
}

// InvalidStatusTransition rejects a state-machine violation.
func InvalidStatusTransition(from, to model.BookingStatus) *apperrors.AppError {
	return apperrors.Conflict(
		fmt.Sprintf("Cannot transition booking from %q to %q", from, to),
	).WithDetails(map[string]any{
		"current_status":   string(from),
		"requested_status": string(to),
	})
}

func BookingNotFound(id int64) *apperrors.AppError {
	return apperrors.NotFoundWithID("Booking", fmt.Sprintf("%d", id))
}

// InvalidCancelToken rejects a self-service cancellation with a token that
// does not match the booking.
func InvalidCancelToken() *apperrors.AppError {
	return apperrors.New(apperrors.CodeInvalidInput, "Invalid cancellation token", http.StatusForbidden)
}
