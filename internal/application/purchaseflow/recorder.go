package purchaseflow

import "iapgate/internal/domain/purchase"

// Event kinds passed to Recorder.PurchaseEvent.
const (
	EventPurchaseUpdated   = "updated"
	EventPurchaseFailed    = "failed"
	EventPurchaseCancelled = "cancelled"
	// EventRequestFailed is a purchase the store refused to start.
	EventRequestFailed = "request_failed"
)

// Validation triggers passed to Recorder.ValidationOutcome.
const (
	TriggerHistory        = "history"
	TriggerPurchaseUpdate = "purchase_update"
	TriggerDirect         = "direct"
)

// Recorder receives flow counters. Implementations must be safe for
// concurrent use.
type Recorder interface {
	PurchaseEvent(kind string)
	ValidationOutcome(trigger string, outcome purchase.Outcome)
}

type nopRecorder struct{}

func (nopRecorder) PurchaseEvent(string)                       {}
func (nopRecorder) ValidationOutcome(string, purchase.Outcome) {}
