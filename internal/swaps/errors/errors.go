package errors

import "errors"

var (
	ErrSlotNotFound = errors.New("slot not found")

	ErrRequestNotFound = errors.New("swap request not found")

	ErrUserNotFound = errors.New("user not found")

	ErrInvalidID = errors.New("invalid ID format")

	// ErrStatusConflict means a compare-and-set status update matched a
	// document whose status had already moved on.
	ErrStatusConflict = errors.New("status changed concurrently")

	// ErrDuplicatePending means the unique (pair_key, PENDING) index
	// rejected a second open negotiation for the same slot pair.
	ErrDuplicatePending = errors.New("a pending swap request already exists for this slot pair")
)
