// Package entitlement tracks whether the current user may access gated
// content during this session.
package entitlement

// Source records what granted the entitlement.
type Source string

const (
	// SourcePurchaseEvent is a purchase observed from the store this session.
	SourcePurchaseEvent Source = "purchase_event"
	// SourceValidation is a validator response reporting an active subscription.
	SourceValidation Source = "validation"
)

func (s Source) IsValid() bool {
	switch s {
	case SourcePurchaseEvent, SourceValidation:
		return true
	default:
		return false
	}
}

func (s Source) String() string {
	return string(s)
}
