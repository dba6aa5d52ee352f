package server

import (
	"errors"
	"net/http"

	"github.com/mkats/lessonledger/internal/booking"
	"github.com/mkats/lessonledger/internal/payments"
	"github.com/mkats/lessonledger/internal/storage"
)

// errorStatus maps domain errors to HTTP status codes. Every failure an
// operation can return surfaces here; nothing is swallowed.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrLessonNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, booking.ErrInvalidState),
		errors.Is(err, booking.ErrNothingToWithdraw):
		return http.StatusConflict
	case errors.Is(err, booking.ErrNotRegistered):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrInsufficientFunds),
		errors.Is(err, payments.ErrTransferFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, storage.ErrCapacityExceeded):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
