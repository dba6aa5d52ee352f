package booking

import "errors"

var (
	// ErrNotRegistered is returned when an operation requires a teacher
	// ledger account that does not exist.
	ErrNotRegistered = errors.New("teacher not registered")

	// ErrUnauthorized is returned when the caller is not a party allowed to
	// perform the operation.
	ErrUnauthorized = errors.New("caller not authorized for this lesson")

	// ErrInvalidState is returned when the lesson is in the wrong lifecycle
	// or payment state for the requested transition.
	ErrInvalidState = errors.New("lesson in invalid state for operation")

	// ErrNothingToWithdraw is returned when the caller's balance is zero.
	ErrNothingToWithdraw = errors.New("nothing to withdraw")
)
