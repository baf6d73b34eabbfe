package entitlement

import "errors"

var (
	// ErrInvalidSource is returned when a grant names no recognised source.
	ErrInvalidSource = errors.New("invalid entitlement source")
)
