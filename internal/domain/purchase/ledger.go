package purchase

import (
	"context"
	"errors"
	"time"
)

var ErrLedgerEntryNotFound = errors.New("ledger entry not found")

// LedgerEntry is a transaction recorded by the sandbox store, with the
// bookkeeping the store needs for redelivery and validation.
type LedgerEntry struct {
	Transaction
	// ExpiresAt is nil for a subscription without a period.
	ExpiresAt  *time.Time
	Finished   bool
	FinishedAt *time.Time
	Metadata   map[string]string
}

// ActiveAt reports whether the subscription is still running at t.
func (e LedgerEntry) ActiveAt(t time.Time) bool {
	return e.ExpiresAt == nil || t.Before(*e.ExpiresAt)
}

// LedgerRepository stores sandbox transactions.
type LedgerRepository interface {
	Create(ctx context.Context, entry *LedgerEntry) error
	// History returns every entry, oldest purchase first.
	History(ctx context.Context) ([]*LedgerEntry, error)
	FindByReceipt(ctx context.Context, receipt string) (*LedgerEntry, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*LedgerEntry, error)
	MarkFinished(ctx context.Context, transactionID string, at time.Time) error
	// ListUnfinished returns entries not yet acknowledged, oldest first.
	ListUnfinished(ctx context.Context) ([]*LedgerEntry, error)
	Delete(ctx context.Context, transactionID string) error
}
