package purchaseflow

// State is the controller's position in the purchase flow.
type State int

const (
	StateConnecting State = iota
	StateListing
	StateAwaitingPurchaseOrHistory
	StateValidating
	StateEntitled
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateListing:
		return "listing"
	case StateAwaitingPurchaseOrHistory:
		return "awaiting_purchase_or_history"
	case StateValidating:
		return "validating"
	case StateEntitled:
		return "entitled"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
