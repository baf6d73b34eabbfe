// Package receipt defines the contract of the remote receipt validator.
package receipt

import (
	"context"

	"iapgate/internal/domain/purchase"
)

// Validator submits a receipt token to the remote validation endpoint.
// A non-nil error means no verdict was obtained (transport, status or
// decoding failure); otherwise the result is safe to Classify.
type Validator interface {
	Validate(ctx context.Context, receipt string) (*purchase.ValidationResult, error)
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, receipt string) (*purchase.ValidationResult, error)

func (f ValidatorFunc) Validate(ctx context.Context, receipt string) (*purchase.ValidationResult, error) {
	return f(ctx, receipt)
}
