package purchase

import "errors"

var (
	ErrInvalidUnlockPolicy = errors.New("invalid unlock policy")

	// ErrInvalidEnvelope is returned when a validation response does not
	// carry a result object.
	ErrInvalidEnvelope = errors.New("validation response has no result object")

	ErrEmptyReceipt = errors.New("receipt is empty")

	ErrProductIDRequired = errors.New("product ID is required")
)
