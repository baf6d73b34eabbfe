// Package pubsub carries store events between the sandbox store and the
// purchase flow controllers listening to it.
package pubsub

import (
	"context"
	"errors"
	"fmt"

	"iapgate/internal/domain/purchase"
)

// StoreEventType represents the type of store event
type StoreEventType string

const (
	// StoreEventPurchaseUpdated carries a completed or restored transaction
	StoreEventPurchaseUpdated StoreEventType = "purchase_updated"
	// StoreEventPurchaseError carries a failed or cancelled transaction
	StoreEventPurchaseError StoreEventType = "purchase_error"
)

var ErrBusClosed = errors.New("store event bus is closed")

// StoreEvent is one message on the bus. Exactly one of Transaction and
// Error is set, matching Type.
type StoreEvent struct {
	Type        StoreEventType          `json:"type"`
	Transaction *purchase.Transaction   `json:"transaction,omitempty"`
	Error       *purchase.PurchaseError `json:"error,omitempty"`
	// Redelivered marks an unfinished transaction sent again to a new listener.
	Redelivered bool  `json:"redelivered,omitempty"`
	Timestamp   int64 `json:"timestamp"`
}

// Validate checks that the payload matches the event type.
func (e StoreEvent) Validate() error {
	switch e.Type {
	case StoreEventPurchaseUpdated:
		if e.Transaction == nil {
			return fmt.Errorf("%s event without transaction", e.Type)
		}
	case StoreEventPurchaseError:
		if e.Error == nil {
			return fmt.Errorf("%s event without error", e.Type)
		}
	default:
		return fmt.Errorf("unknown store event type %q", e.Type)
	}
	return nil
}

// StoreEventHandler is called for each event, one at a time and in publish
// order per subscription.
type StoreEventHandler func(ctx context.Context, event StoreEvent)

// Unsubscribe stops a subscription. It is safe to call more than once.
type Unsubscribe func() error

// StoreEventBus publishes store events to every current subscriber.
type StoreEventBus interface {
	Publish(ctx context.Context, event StoreEvent) error
	// Subscribe returns once the subscription is live: events published
	// after it returns are delivered.
	Subscribe(ctx context.Context, handler StoreEventHandler) (Unsubscribe, error)
	Close() error
}
