// Package storefront defines the contract of the platform store the purchase
// flow talks to.
package storefront

import (
	"context"
	"errors"

	"iapgate/internal/domain/purchase"
)

var (
	ErrNotConnected   = errors.New("store connection is not open")
	ErrUnknownProduct = errors.New("product is not in the store catalog")
)

// PurchaseUpdatedHandler receives completed or restored transactions.
type PurchaseUpdatedHandler func(ctx context.Context, tx purchase.Transaction)

// PurchaseErrorHandler receives failed or cancelled transactions.
type PurchaseErrorHandler func(ctx context.Context, perr purchase.PurchaseError)

// Subscription is a listener registration. Remove stops delivery; each
// subscription is released independently of the others.
type Subscription interface {
	Remove() error
}

// Store is the platform store. Events from one subscription are delivered in
// arrival order; they may arrive at any time after OnPurchaseUpdated or
// OnPurchaseError returns, including before GetSubscriptions completes.
type Store interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	// GetSubscriptions returns the catalog entries for ids, in ids order.
	GetSubscriptions(ctx context.Context, ids []string) ([]purchase.Product, error)
	// GetPurchaseHistory returns past transactions, oldest first.
	GetPurchaseHistory(ctx context.Context) ([]purchase.Transaction, error)

	OnPurchaseUpdated(ctx context.Context, handler PurchaseUpdatedHandler) (Subscription, error)
	OnPurchaseError(ctx context.Context, handler PurchaseErrorHandler) (Subscription, error)

	// FinishTransaction acknowledges tx so the store stops redelivering it.
	FinishTransaction(ctx context.Context, tx purchase.Transaction, consumable bool) error
	// RequestSubscription starts a purchase; its result arrives as an event.
	RequestSubscription(ctx context.Context, productID string) error
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func() error

func (f SubscriptionFunc) Remove() error {
	return f()
}
