// Package purchaseflow implements the purchase flow controller: it connects
// to the store, lists subscription products, replays purchase history,
// handles purchase events and validates receipts, and derives the
// entitlement the presentation layer reads.
package purchaseflow

import (
	"context"
	"sync"
	"time"

	"iapgate/internal/application/receipt"
	"iapgate/internal/application/storefront"
	"iapgate/internal/domain/entitlement"
	"iapgate/internal/domain/purchase"
	"iapgate/internal/shared/goroutine"
	"iapgate/internal/shared/logger"
)

// Config holds the controller's static settings.
type Config struct {
	// ProductIDs are the platform-specific subscription ids to list.
	ProductIDs []string
	Policy     purchase.UnlockPolicy
	// CancelResponseCode is the platform's "user cancelled" response code.
	CancelResponseCode string
}

type Option func(*Controller)

func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithOnChange registers a callback invoked with a fresh snapshot after
// every state, entitlement or product change.
func WithOnChange(fn func(Snapshot)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// Controller drives one activation of the purchase screen. Store callbacks
// may run on other goroutines, so all mutable state sits behind mu.
type Controller struct {
	store     storefront.Store
	validator receipt.Validator
	notifier  Notifier
	cfg       Config
	logger    logger.Interface
	recorder  Recorder
	onChange  func(Snapshot)
	now       func() time.Time

	// changeMu serialises onChange deliveries so the last one delivered
	// always carries the latest state.
	changeMu sync.Mutex

	mu          sync.Mutex
	state       State
	ready       bool
	inflight    int
	entitlement entitlement.State
	products    []purchase.Product
	updateSub   storefront.Subscription
	errorSub    storefront.Subscription

	// validations dispatched from events run under runCtx, cancelled on
	// Deactivate.
	runCtx    context.Context
	cancelRun context.CancelFunc
	wg        sync.WaitGroup
}

func NewController(
	store storefront.Store,
	validator receipt.Validator,
	notifier Notifier,
	cfg Config,
	log logger.Interface,
	opts ...Option,
) *Controller {
	if cfg.Policy == "" {
		cfg.Policy = purchase.UnlockOptimistic
	}
	if cfg.CancelResponseCode == "" {
		cfg.CancelResponseCode = purchase.DefaultCancelResponseCode
	}

	c := &Controller{
		store:     store,
		validator: validator,
		notifier:  notifier,
		cfg:       cfg,
		logger:    log.Named("purchaseflow"),
		recorder:  nopRecorder{},
		now:       time.Now,
		state:     StateConnecting,
		products:  []purchase.Product{},
	}
	c.runCtx, c.cancelRun = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Activate runs connect, listener registration, product discovery and
// history replay. None of the failures along the way are returned: the
// controller degrades to an empty product list instead.
func (c *Controller) Activate(ctx context.Context) {
	c.mu.Lock()
	if c.state == StateClosed || c.ready {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.mu.Unlock()
	c.changed()

	if err := c.store.Connect(ctx); err != nil {
		c.logger.Warnw("error connecting to store", "error", err)
	}

	c.registerListeners(ctx)
	c.DiscoverProducts(ctx)
	c.ReplayHistory(ctx)

	c.mu.Lock()
	c.ready = true
	c.settleLocked()
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) registerListeners(ctx context.Context) {
	errorSub, err := c.store.OnPurchaseError(ctx, c.HandlePurchaseError)
	if err != nil {
		c.logger.Warnw("failed to register purchase error listener", "error", err)
	}
	updateSub, err := c.store.OnPurchaseUpdated(ctx, c.HandlePurchaseUpdate)
	if err != nil {
		c.logger.Warnw("failed to register purchase update listener", "error", err)
	}

	c.mu.Lock()
	c.errorSub = errorSub
	c.updateSub = updateSub
	closed := c.state == StateClosed
	c.mu.Unlock()

	// Deactivate raced with registration; release what we just acquired.
	if closed {
		c.release("purchase_error_subscription", errorSub)
		c.release("purchase_update_subscription", updateSub)
	}
}

// DiscoverProducts lists the configured subscription products. On failure
// the product list is left untouched and the error is only logged.
func (c *Controller) DiscoverProducts(ctx context.Context) {
	c.setPhase(StateListing)

	products, err := c.store.GetSubscriptions(ctx, c.cfg.ProductIDs)
	if err != nil {
		c.logger.Warnw("error finding items", "product_ids", c.cfg.ProductIDs, "error", err)
		return
	}
	if products == nil {
		products = []purchase.Product{}
	}

	c.mu.Lock()
	c.products = products
	c.mu.Unlock()

	c.logger.Infow("subscription products listed", "count", len(products))
	c.changed()
}

// ReplayHistory validates the receipt of the most recent past purchase, if
// any. Missing history or an entry without a receipt counts as "no prior
// purchase".
func (c *Controller) ReplayHistory(ctx context.Context) {
	history, err := c.store.GetPurchaseHistory(ctx)
	if err != nil {
		c.logger.Debugw("purchase history unavailable", "error", err)
		return
	}

	latest := purchase.LatestReceipt(history)
	if latest == "" {
		c.logger.Debugw("no prior purchase to restore", "history_len", len(history))
		return
	}

	c.logger.Infow("restoring purchase from history", "history_len", len(history))
	c.dispatchValidation(latest, TriggerHistory)
}

// HandlePurchaseError surfaces a failed transaction. A user cancellation is
// logged and never shown.
func (c *Controller) HandlePurchaseError(ctx context.Context, perr purchase.PurchaseError) {
	if perr.IsUserCancelled(c.cfg.CancelResponseCode) {
		c.recorder.PurchaseEvent(EventPurchaseCancelled)
		c.logger.Debugw("purchase cancelled by user", "product_id", perr.ProductID)
		return
	}

	c.recorder.PurchaseEvent(EventPurchaseFailed)
	c.logger.Warnw("purchase failed",
		"code", perr.Code,
		"response_code", perr.ResponseCode,
		"product_id", perr.ProductID,
		"message", perr.Message,
	)
	c.notify(ctx, Notice{Kind: NoticePurchaseFailed, Code: perr.DisplayCode(), ProductID: perr.ProductID})
}

// HandlePurchaseUpdate processes a completed or restored transaction. Under
// the optimistic policy the entitlement is granted before the validator
// answers. A receipt, when present, is validated in the background and the
// transaction is finished so the store does not redeliver it.
func (c *Controller) HandlePurchaseUpdate(ctx context.Context, tx purchase.Transaction) {
	c.recorder.PurchaseEvent(EventPurchaseUpdated)
	c.logger.Infow("purchase updated",
		"transaction_id", tx.TransactionID,
		"product_id", tx.ProductID,
		"has_receipt", tx.HasReceipt(),
	)

	if c.cfg.Policy == purchase.UnlockOptimistic {
		c.grant(entitlement.SourcePurchaseEvent)
	}

	if !tx.HasReceipt() {
		if c.cfg.Policy == purchase.UnlockConfirm {
			c.logger.Warnw("purchase without receipt cannot be confirmed", "transaction_id", tx.TransactionID)
		}
		return
	}

	c.dispatchValidation(tx.Receipt, TriggerPurchaseUpdate)

	if err := c.store.FinishTransaction(ctx, tx, false); err != nil {
		c.logger.Warnw("failed to finish transaction", "transaction_id", tx.TransactionID, "error", err)
	}
}

// ValidateReceipt submits receipt and applies the verdict: active grants,
// expired and rejected only notify. It never revokes an entitlement.
func (c *Controller) ValidateReceipt(ctx context.Context, receipt string) purchase.Outcome {
	return c.validate(ctx, receipt, TriggerDirect)
}

func (c *Controller) validate(ctx context.Context, receiptToken, trigger string) purchase.Outcome {
	if receiptToken == "" {
		c.logger.Warnw("skipping validation", "error", purchase.ErrEmptyReceipt)
		return purchase.OutcomeFailed
	}

	c.mu.Lock()
	c.inflight++
	c.settleLocked()
	c.mu.Unlock()
	c.changed()

	defer func() {
		c.mu.Lock()
		c.inflight--
		c.settleLocked()
		c.mu.Unlock()
		c.changed()
	}()

	var result *purchase.ValidationResult
	err := goroutine.Guard("validator", func() error {
		var verr error
		result, verr = c.validator.Validate(ctx, receiptToken)
		return verr
	})
	if err == nil && result == nil {
		err = purchase.ErrInvalidEnvelope
	}
	if err != nil {
		c.recorder.ValidationOutcome(trigger, purchase.OutcomeFailed)
		if ctx.Err() != nil {
			c.logger.Debugw("validation abandoned", "trigger", trigger, "error", err)
			return purchase.OutcomeFailed
		}
		c.logger.Warnw("receipt validation failed", "trigger", trigger, "error", err)
		c.notify(ctx, Notice{Kind: NoticeValidationFailed})
		return purchase.OutcomeFailed
	}

	outcome := result.Classify()
	c.recorder.ValidationOutcome(trigger, outcome)
	c.logger.Infow("receipt validated", "trigger", trigger, "outcome", outcome)

	switch outcome {
	case purchase.OutcomeActive:
		c.grant(entitlement.SourceValidation)
	case purchase.OutcomeRejected:
		c.notify(ctx, Notice{Kind: NoticeValidationFailed})
	case purchase.OutcomeExpired:
		// an existing grant stays in place
		c.notify(ctx, Notice{Kind: NoticeExpired})
	}
	return outcome
}

func (c *Controller) dispatchValidation(receiptToken, trigger string) {
	goroutine.SafeGo(c.logger, &c.wg, "validate_receipt", func() {
		c.validate(c.runCtx, receiptToken, trigger)
	})
}

// RequestPurchase forwards a purchase intent to the store. The purchase
// result arrives later as an update or error event.
func (c *Controller) RequestPurchase(ctx context.Context, productID string) {
	if productID == "" {
		c.logger.Warnw("ignoring purchase request", "error", purchase.ErrProductIDRequired)
		return
	}

	c.logger.Infow("requesting subscription", "product_id", productID)
	if err := c.store.RequestSubscription(ctx, productID); err != nil {
		c.recorder.PurchaseEvent(EventRequestFailed)
		c.logger.Warnw("failed to request subscription", "product_id", productID, "error", err)
		c.notify(ctx, Notice{Kind: NoticeRequestFailed, ProductID: productID})
	}
}

// Deactivate releases the update subscription, the error subscription and
// the store connection. Each release is attempted regardless of how the
// previous one ended. Background validations are cancelled and their
// results dropped.
func (c *Controller) Deactivate(ctx context.Context) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	updateSub, errorSub := c.updateSub, c.errorSub
	c.updateSub, c.errorSub = nil, nil
	c.mu.Unlock()

	c.cancelRun()

	c.release("purchase_update_subscription", updateSub)
	c.release("purchase_error_subscription", errorSub)
	if err := goroutine.Guard("store_connection", func() error { return c.store.Close(ctx) }); err != nil {
		c.logger.Warnw("failed to close store connection", "error", err)
	}

	c.logger.Infow("purchase flow deactivated")
	c.changed()
}

func (c *Controller) release(name string, sub storefront.Subscription) {
	if sub == nil {
		return
	}
	if err := goroutine.Guard(name, sub.Remove); err != nil {
		c.logger.Warnw("failed to remove listener", "listener", name, "error", err)
	}
}

// Wait blocks until every background validation has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Snapshot returns a copy of the state the presentation layer renders.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	products := make([]purchase.Product, len(c.products))
	copy(products, c.products)
	entitled := c.entitlement.Granted()
	return Snapshot{
		State:             c.state,
		Entitled:          entitled,
		EntitlementSource: c.entitlement.Source(),
		Products:          products,
		View:              Project(entitled, products),
	}
}

func (c *Controller) grant(source entitlement.Source) {
	c.mu.Lock()
	if err := c.entitlement.Grant(source, c.now()); err != nil {
		c.mu.Unlock()
		c.logger.Errorw("failed to grant entitlement", "source", source, "error", err)
		return
	}
	c.settleLocked()
	c.mu.Unlock()

	c.logger.Infow("entitlement granted", "source", source)
	c.changed()
}

func (c *Controller) setPhase(s State) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()
	c.changed()
}

// settleLocked moves to the resting state once the activation sequence is
// done; before that the phase states stand.
func (c *Controller) settleLocked() {
	if c.state == StateClosed || !c.ready {
		return
	}
	switch {
	case c.inflight > 0:
		c.state = StateValidating
	case c.entitlement.Granted():
		c.state = StateEntitled
	default:
		c.state = StateAwaitingPurchaseOrHistory
	}
}

func (c *Controller) notify(ctx context.Context, n Notice) {
	c.mu.Lock()
	closed := c.state == StateClosed
	c.mu.Unlock()
	if closed {
		c.logger.Debugw("dropping notice after deactivation", "kind", n.Kind)
		return
	}
	if err := goroutine.Guard("notifier", func() error {
		c.notifier.Notify(ctx, n)
		return nil
	}); err != nil {
		c.logger.Errorw("notifier failed", "kind", n.Kind, "error", err)
	}
}

func (c *Controller) changed() {
	if c.onChange == nil {
		return
	}
	c.changeMu.Lock()
	defer c.changeMu.Unlock()

	c.mu.Lock()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.onChange(snap)
}
