// Package sandboxstore is a local stand-in for the platform store. It keeps
// its transactions in the sandbox ledger and delivers purchase events over a
// store event bus, so purchases can be driven from another process.
package sandboxstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"iapgate/internal/application/receipt"
	"iapgate/internal/application/storefront"
	"iapgate/internal/domain/purchase"
	"iapgate/internal/infrastructure/pubsub"
	sharedConfig "iapgate/internal/shared/config"
	"iapgate/internal/shared/id"
	"iapgate/internal/shared/logger"
)

// ResponseCodeError is the response code of a generic sandbox failure.
const ResponseCodeError = "6"

// Outcome decides how the next RequestSubscription ends.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeCancel  Outcome = "cancel"
	OutcomeFail    Outcome = "fail"
)

func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(s); o {
	case OutcomeSuccess, OutcomeCancel, OutcomeFail:
		return o, nil
	default:
		return "", fmt.Errorf("unknown sandbox outcome %q", s)
	}
}

// PurchaseOptions tune a sandbox purchase.
type PurchaseOptions struct {
	// Expired records the subscription as already lapsed.
	Expired bool
	// WithoutReceipt delivers the transaction with an empty receipt.
	WithoutReceipt bool
}

type Option func(*Store)

// Transactor runs fn atomically against the ledger.
type Transactor interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type noTransaction struct{}

func (noTransaction) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// WithTransactor makes withdrawing an unpublished purchase atomic.
func WithTransactor(t Transactor) Option {
	return func(s *Store) {
		s.tx = t
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store implements storefront.Store against the sandbox ledger.
type Store struct {
	catalog            []purchase.Product
	platform           purchase.Platform
	cancelResponseCode string
	ledger             purchase.LedgerRepository
	bus                pubsub.StoreEventBus
	tx                 Transactor
	logger             logger.Interface
	now                func() time.Time

	mu          sync.Mutex
	connected   bool
	nextOutcome Outcome
}

var (
	_ storefront.Store  = (*Store)(nil)
	_ receipt.Validator = (*Store)(nil)
)

func New(
	cfg sharedConfig.StoreConfig,
	ledger purchase.LedgerRepository,
	bus pubsub.StoreEventBus,
	log logger.Interface,
	opts ...Option,
) *Store {
	catalog := make([]purchase.Product, 0, len(cfg.Catalog))
	for _, p := range cfg.Catalog {
		catalog = append(catalog, purchase.Product{
			ID:          p.ID,
			Title:       p.Title,
			Price:       p.Price,
			Description: p.Description,
			Period:      p.Period,
		})
	}

	cancelCode := cfg.CancelResponseCode
	if cancelCode == "" {
		cancelCode = purchase.DefaultCancelResponseCode
	}

	s := &Store{
		catalog:            catalog,
		platform:           purchase.Platform(cfg.Platform),
		cancelResponseCode: cancelCode,
		ledger:             ledger,
		bus:                bus,
		tx:                 noTransaction{},
		logger:             log.Named("sandboxstore"),
		now:                time.Now,
		nextOutcome:        OutcomeSuccess,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Connect(_ context.Context) error {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()

	s.logger.Infow("sandbox store connected", "platform", s.platform, "catalog_size", len(s.catalog))
	return nil
}

func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()

	s.logger.Infow("sandbox store connection closed")
	return nil
}

func (s *Store) requireConnected() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return storefront.ErrNotConnected
	}
	return nil
}

// Catalog returns every product the sandbox sells.
func (s *Store) Catalog() []purchase.Product {
	out := make([]purchase.Product, len(s.catalog))
	copy(out, s.catalog)
	return out
}

func (s *Store) product(productID string) (purchase.Product, bool) {
	for _, p := range s.catalog {
		if p.ID == productID {
			return p, true
		}
	}
	return purchase.Product{}, false
}

// GetSubscriptions returns the catalog entries for ids in ids order. Ids the
// catalog does not know are skipped, as a real store does.
func (s *Store) GetSubscriptions(_ context.Context, ids []string) ([]purchase.Product, error) {
	if err := s.requireConnected(); err != nil {
		return nil, err
	}

	products := make([]purchase.Product, 0, len(ids))
	for _, productID := range ids {
		p, ok := s.product(productID)
		if !ok {
			s.logger.Warnw("requested product not in sandbox catalog", "product_id", productID)
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

func (s *Store) GetPurchaseHistory(ctx context.Context) ([]purchase.Transaction, error) {
	if err := s.requireConnected(); err != nil {
		return nil, err
	}

	entries, err := s.ledger.History(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase history: %w", err)
	}

	history := make([]purchase.Transaction, 0, len(entries))
	for _, e := range entries {
		history = append(history, e.Transaction)
	}
	return history, nil
}

// OnPurchaseUpdated registers handler and then redelivers every unfinished
// transaction in the ledger.
func (s *Store) OnPurchaseUpdated(ctx context.Context, handler storefront.PurchaseUpdatedHandler) (storefront.Subscription, error) {
	unsubscribe, err := s.bus.Subscribe(ctx, func(ctx context.Context, event pubsub.StoreEvent) {
		if event.Type != pubsub.StoreEventPurchaseUpdated {
			return
		}
		handler(ctx, *event.Transaction)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to purchase updates: %w", err)
	}

	if err := s.redeliverUnfinished(ctx); err != nil {
		s.logger.Warnw("failed to redeliver unfinished transactions", "error", err)
	}

	return storefront.SubscriptionFunc(unsubscribe), nil
}

func (s *Store) redeliverUnfinished(ctx context.Context) error {
	entries, err := s.ledger.ListUnfinished(ctx)
	if err != nil {
		return err
	}

	for _, e := range entries {
		tx := e.Transaction
		if err := s.bus.Publish(ctx, pubsub.StoreEvent{
			Type:        pubsub.StoreEventPurchaseUpdated,
			Transaction: &tx,
			Redelivered: true,
		}); err != nil {
			return err
		}
	}

	if len(entries) > 0 {
		s.logger.Infow("redelivered unfinished transactions", "count", len(entries))
	}
	return nil
}

func (s *Store) OnPurchaseError(ctx context.Context, handler storefront.PurchaseErrorHandler) (storefront.Subscription, error) {
	unsubscribe, err := s.bus.Subscribe(ctx, func(ctx context.Context, event pubsub.StoreEvent) {
		if event.Type != pubsub.StoreEventPurchaseError {
			return
		}
		handler(ctx, *event.Error)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to purchase errors: %w", err)
	}
	return storefront.SubscriptionFunc(unsubscribe), nil
}

// FinishTransaction marks tx acknowledged. Subscriptions are never
// consumable.
func (s *Store) FinishTransaction(ctx context.Context, tx purchase.Transaction, consumable bool) error {
	if err := s.requireConnected(); err != nil {
		return err
	}
	if consumable {
		return fmt.Errorf("transaction %s: subscriptions cannot be consumed", tx.TransactionID)
	}

	if err := s.ledger.MarkFinished(ctx, tx.TransactionID, s.now()); err != nil {
		if errors.Is(err, purchase.ErrLedgerEntryNotFound) {
			return fmt.Errorf("transaction %s: %w", tx.TransactionID, err)
		}
		return fmt.Errorf("failed to finish transaction: %w", err)
	}
	return nil
}

// SetNextOutcome decides how the next RequestSubscription ends. It resets
// to OutcomeSuccess after use.
func (s *Store) SetNextOutcome(o Outcome) {
	s.mu.Lock()
	s.nextOutcome = o
	s.mu.Unlock()
}

func (s *Store) takeOutcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.nextOutcome
	s.nextOutcome = OutcomeSuccess
	return o
}

// RequestSubscription starts a sandbox purchase. The result arrives as a
// purchase update or error event.
func (s *Store) RequestSubscription(ctx context.Context, productID string) error {
	if err := s.requireConnected(); err != nil {
		return err
	}
	if _, ok := s.product(productID); !ok {
		return fmt.Errorf("%w: %s", storefront.ErrUnknownProduct, productID)
	}

	switch s.takeOutcome() {
	case OutcomeCancel:
		return s.Cancel(ctx, productID)
	case OutcomeFail:
		return s.Fail(ctx, productID, purchase.CodeUnknown, ResponseCodeError)
	default:
		_, err := s.Purchase(ctx, productID, PurchaseOptions{})
		return err
	}
}

// Purchase records a completed transaction for productID and publishes it.
func (s *Store) Purchase(ctx context.Context, productID string, opts PurchaseOptions) (*purchase.Transaction, error) {
	product, ok := s.product(productID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", storefront.ErrUnknownProduct, productID)
	}

	receiptToken, err := id.NewReceipt()
	if err != nil {
		return nil, fmt.Errorf("failed to issue receipt: %w", err)
	}

	now := s.now().UTC()
	entry := &purchase.LedgerEntry{
		Transaction: purchase.Transaction{
			TransactionID: uuid.NewString(),
			ProductID:     product.ID,
			Receipt:       receiptToken,
			PurchasedAt:   now,
		},
		Metadata: map[string]string{
			"platform": s.platform.String(),
		},
	}
	switch {
	case opts.Expired:
		expiredAt := now.Add(-time.Second)
		entry.ExpiresAt = &expiredAt
	case product.Period > 0:
		expiresAt := now.Add(product.Period)
		entry.ExpiresAt = &expiresAt
	}
	if opts.WithoutReceipt {
		entry.Metadata["receipt_withheld"] = "true"
	}

	tx := entry.Transaction
	if opts.WithoutReceipt {
		tx.Receipt = ""
	}

	// the row must be committed before any listener can see the event
	if err := s.ledger.Create(ctx, entry); err != nil {
		return nil, err
	}
	if err := s.bus.Publish(ctx, pubsub.StoreEvent{
		Type:        pubsub.StoreEventPurchaseUpdated,
		Transaction: &tx,
	}); err != nil {
		if derr := s.withdraw(ctx, tx.TransactionID); derr != nil {
			s.logger.Errorw("failed to withdraw unpublished purchase",
				"transaction_id", tx.TransactionID,
				"error", derr,
			)
		}
		return nil, fmt.Errorf("failed to publish purchase: %w", err)
	}

	s.logger.Infow("sandbox purchase completed",
		"transaction_id", tx.TransactionID,
		"product_id", tx.ProductID,
		"expired", opts.Expired,
	)
	return &tx, nil
}

// withdraw removes a purchase whose event never left the store, unless a
// listener has already finished it.
func (s *Store) withdraw(ctx context.Context, transactionID string) error {
	return s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		entry, err := s.ledger.FindByTransactionID(ctx, transactionID)
		if err != nil {
			return err
		}
		if entry.Finished {
			return nil
		}
		return s.ledger.Delete(ctx, transactionID)
	})
}

// Cancel publishes the platform's user-cancelled error for productID.
func (s *Store) Cancel(ctx context.Context, productID string) error {
	return s.publishError(ctx, purchase.PurchaseError{
		Code:         purchase.CodeUserCancelled,
		ResponseCode: s.cancelResponseCode,
		Message:      "Payment is Cancelled.",
		ProductID:    productID,
	})
}

// Fail publishes a purchase failure with the given codes.
func (s *Store) Fail(ctx context.Context, productID, code, responseCode string) error {
	if code == "" && responseCode == "" {
		code, responseCode = purchase.CodeUnknown, ResponseCodeError
	}
	return s.publishError(ctx, purchase.PurchaseError{
		Code:         code,
		ResponseCode: responseCode,
		Message:      "Sandbox purchase failed.",
		ProductID:    productID,
	})
}

func (s *Store) publishError(ctx context.Context, perr purchase.PurchaseError) error {
	if err := s.bus.Publish(ctx, pubsub.StoreEvent{
		Type:  pubsub.StoreEventPurchaseError,
		Error: &perr,
	}); err != nil {
		return fmt.Errorf("failed to publish purchase error: %w", err)
	}

	s.logger.Infow("sandbox purchase error published",
		"product_id", perr.ProductID,
		"code", perr.Code,
		"response_code", perr.ResponseCode,
	)
	return nil
}

// Validate answers a receipt from the ledger: unknown receipts are rejected
// with the error sentinel, lapsed ones report an inactive subscription.
func (s *Store) Validate(ctx context.Context, receiptToken string) (*purchase.ValidationResult, error) {
	if receiptToken == "" {
		res := purchase.RejectedResult()
		return &res, nil
	}

	entry, err := s.ledger.FindByReceipt(ctx, receiptToken)
	if err != nil {
		if errors.Is(err, purchase.ErrLedgerEntryNotFound) {
			res := purchase.RejectedResult()
			return &res, nil
		}
		return nil, err
	}

	var res purchase.ValidationResult
	if entry.ActiveAt(s.now()) {
		res = purchase.ActiveResult()
	} else {
		res = purchase.ExpiredResult()
	}
	return &res, nil
}
