package purchaseflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iapgate/internal/application/receipt"
	"iapgate/internal/application/storefront"
	"iapgate/internal/domain/entitlement"
	"iapgate/internal/domain/purchase"
	"iapgate/internal/shared/i18n"
	"iapgate/internal/shared/logger"
)

type fakeStore struct {
	mu sync.Mutex

	connectErr   error
	products     []purchase.Product
	productsErr  error
	history      []purchase.Transaction
	historyErr   error
	requestErr   error
	closeErr     error
	closePanic   bool
	removeErrs   map[string]error
	removePanics map[string]bool

	requestedIDs []string
	finished     []purchase.Transaction
	removed      []string
	closed       int

	onUpdate storefront.PurchaseUpdatedHandler
	onError  storefront.PurchaseErrorHandler
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		removeErrs:   map[string]error{},
		removePanics: map[string]bool{},
	}
}

func (s *fakeStore) Connect(context.Context) error { return s.connectErr }

func (s *fakeStore) Close(context.Context) error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	if s.closePanic {
		panic("close exploded")
	}
	return s.closeErr
}

func (s *fakeStore) GetSubscriptions(_ context.Context, ids []string) ([]purchase.Product, error) {
	s.mu.Lock()
	s.requestedIDs = append([]string(nil), ids...)
	s.mu.Unlock()
	return s.products, s.productsErr
}

func (s *fakeStore) GetPurchaseHistory(context.Context) ([]purchase.Transaction, error) {
	return s.history, s.historyErr
}

func (s *fakeStore) subscription(name string) storefront.Subscription {
	return storefront.SubscriptionFunc(func() error {
		s.mu.Lock()
		s.removed = append(s.removed, name)
		s.mu.Unlock()
		if s.removePanics[name] {
			panic(name + " exploded")
		}
		return s.removeErrs[name]
	})
}

func (s *fakeStore) OnPurchaseUpdated(_ context.Context, h storefront.PurchaseUpdatedHandler) (storefront.Subscription, error) {
	s.onUpdate = h
	return s.subscription("update"), nil
}

func (s *fakeStore) OnPurchaseError(_ context.Context, h storefront.PurchaseErrorHandler) (storefront.Subscription, error) {
	s.onError = h
	return s.subscription("error"), nil
}

func (s *fakeStore) FinishTransaction(_ context.Context, tx purchase.Transaction, consumable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if consumable {
		return errors.New("subscriptions are not consumable")
	}
	s.finished = append(s.finished, tx)
	return nil
}

func (s *fakeStore) RequestSubscription(context.Context, string) error { return s.requestErr }

type fakeValidator struct {
	mu       sync.Mutex
	result   *purchase.ValidationResult
	err      error
	block    chan struct{}
	receipts []string
}

func (v *fakeValidator) Validate(ctx context.Context, receipt string) (*purchase.ValidationResult, error) {
	v.mu.Lock()
	v.receipts = append(v.receipts, receipt)
	v.mu.Unlock()
	if v.block != nil {
		select {
		case <-v.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return v.result, v.err
}

func (v *fakeValidator) calls() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.receipts...)
}

type noticeLog struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *noticeLog) Notify(_ context.Context, notice Notice) {
	n.mu.Lock()
	n.notices = append(n.notices, notice)
	n.mu.Unlock()
}

func (n *noticeLog) all() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.notices...)
}

func result(r purchase.ValidationResult) *purchase.ValidationResult {
	return &r
}

var monthly = purchase.Product{ID: "rniapt_699_1m", Title: "Monthly subscription", Price: "$6.99"}

func newTestController(store *fakeStore, v *fakeValidator, policy purchase.UnlockPolicy) (*Controller, *noticeLog) {
	notices := &noticeLog{}
	c := NewController(store, v, notices, Config{
		ProductIDs:         []string{monthly.ID},
		Policy:             policy,
		CancelResponseCode: "2",
	}, logger.Nop())
	return c, notices
}

func TestController_ActivateListsProducts(t *testing.T) {
	store := newFakeStore()
	store.products = []purchase.Product{monthly}
	c, notices := newTestController(store, &fakeValidator{}, purchase.UnlockOptimistic)

	c.Activate(context.Background())
	c.Wait()

	snap := c.Snapshot()
	assert.Equal(t, []string{monthly.ID}, store.requestedIDs)
	assert.Equal(t, []purchase.Product{monthly}, snap.Products)
	assert.Equal(t, ViewPaywall, snap.View)
	assert.Equal(t, StateAwaitingPurchaseOrHistory, snap.State)
	assert.False(t, snap.Entitled)
	assert.Empty(t, notices.all())
}

func TestController_DiscoveryFailureStaysFetching(t *testing.T) {
	tests := []struct {
		name     string
		products []purchase.Product
		err      error
	}{
		{"store error", nil, errors.New("billing unavailable")},
		{"empty catalog", []purchase.Product{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.products = tt.products
			store.productsErr = tt.err
			c, notices := newTestController(store, &fakeValidator{}, purchase.UnlockOptimistic)

			c.Activate(context.Background())
			c.Wait()

			snap := c.Snapshot()
			assert.Empty(t, snap.Products)
			assert.Equal(t, ViewFetching, snap.View)
			assert.Empty(t, notices.all())
		})
	}
}

func TestController_ConnectFailureIsNotFatal(t *testing.T) {
	store := newFakeStore()
	store.connectErr = errors.New("no billing service")
	store.productsErr = storefront.ErrNotConnected
	c, notices := newTestController(store, &fakeValidator{}, purchase.UnlockOptimistic)

	c.Activate(context.Background())

	assert.Equal(t, ViewFetching, c.Snapshot().View)
	assert.NotNil(t, store.onUpdate)
	assert.NotNil(t, store.onError)
	assert.Empty(t, notices.all())
}

func TestController_HistoryReplay(t *testing.T) {
	t.Run("empty history makes no validator call", func(t *testing.T) {
		store := newFakeStore()
		v := &fakeValidator{result: result(purchase.ActiveResult())}
		c, _ := newTestController(store, v, purchase.UnlockOptimistic)

		c.Activate(context.Background())
		c.Wait()

		assert.Empty(t, v.calls())
		assert.False(t, c.Snapshot().Entitled)
	})

	t.Run("last entry without receipt makes no validator call", func(t *testing.T) {
		store := newFakeStore()
		store.history = []purchase.Transaction{{TransactionID: "t1", Receipt: "r1"}, {TransactionID: "t2"}}
		v := &fakeValidator{result: result(purchase.ActiveResult())}
		c, _ := newTestController(store, v, purchase.UnlockOptimistic)

		c.Activate(context.Background())
		c.Wait()

		assert.Empty(t, v.calls())
	})

	t.Run("validates only the last receipt", func(t *testing.T) {
		store := newFakeStore()
		store.products = []purchase.Product{monthly}
		store.history = []purchase.Transaction{
			{TransactionID: "t1", Receipt: "old"},
			{TransactionID: "t2", Receipt: "latest"},
		}
		v := &fakeValidator{result: result(purchase.ActiveResult())}
		c, notices := newTestController(store, v, purchase.UnlockOptimistic)

		c.Activate(context.Background())
		c.Wait()

		assert.Equal(t, []string{"latest"}, v.calls())
		snap := c.Snapshot()
		assert.True(t, snap.Entitled)
		assert.Equal(t, entitlement.SourceValidation, snap.EntitlementSource)
		assert.Equal(t, ViewUnlocked, snap.View)
		assert.Equal(t, StateEntitled, snap.State)
		assert.Empty(t, notices.all())
	})

	t.Run("history error counts as no prior purchase", func(t *testing.T) {
		store := newFakeStore()
		store.historyErr = errors.New("history unavailable")
		v := &fakeValidator{}
		c, notices := newTestController(store, v, purchase.UnlockOptimistic)

		c.Activate(context.Background())
		c.Wait()

		assert.Empty(t, v.calls())
		assert.Empty(t, notices.all())
	})
}

func TestController_HandlePurchaseError(t *testing.T) {
	tests := []struct {
		name      string
		perr      purchase.PurchaseError
		wantCodes []string
	}{
		{"cancel response code is silent", purchase.PurchaseError{ResponseCode: "2", Code: purchase.CodeUserCancelled}, nil},
		{"cancel response code without normalized code", purchase.PurchaseError{ResponseCode: "2"}, nil},
		{"item unavailable alerts with code", purchase.PurchaseError{ResponseCode: "4", Code: purchase.CodeItemUnavail}, []string{purchase.CodeItemUnavail}},
		{"raw response code is shown when no code", purchase.PurchaseError{ResponseCode: "6"}, []string{"6"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			c, notices := newTestController(store, &fakeValidator{}, purchase.UnlockOptimistic)
			c.Activate(context.Background())

			store.onError(context.Background(), tt.perr)

			var codes []string
			for _, n := range notices.all() {
				assert.Equal(t, NoticePurchaseFailed, n.Kind)
				codes = append(codes, n.Code)
			}
			assert.Equal(t, tt.wantCodes, codes)
			assert.False(t, c.Snapshot().Entitled)
		})
	}
}

func TestController_PurchaseUpdateOptimistic(t *testing.T) {
	t.Run("grants before validation answers", func(t *testing.T) {
		store := newFakeStore()
		store.products = []purchase.Product{monthly}
		v := &fakeValidator{result: result(purchase.ActiveResult()), block: make(chan struct{})}
		c, _ := newTestController(store, v, purchase.UnlockOptimistic)
		c.Activate(context.Background())

		tx := purchase.Transaction{TransactionID: "t1", ProductID: monthly.ID, Receipt: "r1"}
		store.onUpdate(context.Background(), tx)

		snap := c.Snapshot()
		assert.True(t, snap.Entitled)
		assert.Equal(t, entitlement.SourcePurchaseEvent, snap.EntitlementSource)
		assert.Equal(t, ViewUnlocked, snap.View)

		close(v.block)
		c.Wait()
		assert.Equal(t, []string{"r1"}, v.calls())
		assert.Equal(t, []purchase.Transaction{tx}, store.finished)
		assert.Equal(t, StateEntitled, c.Snapshot().State)
	})

	t.Run("empty receipt grants without validation", func(t *testing.T) {
		store := newFakeStore()
		v := &fakeValidator{}
		c, notices := newTestController(store, v, purchase.UnlockOptimistic)
		c.Activate(context.Background())

		store.onUpdate(context.Background(), purchase.Transaction{TransactionID: "t1"})
		c.Wait()

		assert.True(t, c.Snapshot().Entitled)
		assert.Empty(t, v.calls())
		assert.Empty(t, store.finished)
		assert.Empty(t, notices.all())
	})

	t.Run("rejected receipt keeps the grant and alerts once", func(t *testing.T) {
		store := newFakeStore()
		v := &fakeValidator{result: result(purchase.RejectedResult())}
		c, notices := newTestController(store, v, purchase.UnlockOptimistic)
		c.Activate(context.Background())

		store.onUpdate(context.Background(), purchase.Transaction{TransactionID: "t1", Receipt: "bad"})
		c.Wait()

		assert.True(t, c.Snapshot().Entitled)
		assert.Equal(t, []Notice{{Kind: NoticeValidationFailed}}, notices.all())
	})

	t.Run("events before discovery are handled", func(t *testing.T) {
		store := newFakeStore()
		c, _ := newTestController(store, &fakeValidator{}, purchase.UnlockOptimistic)

		c.HandlePurchaseUpdate(context.Background(), purchase.Transaction{TransactionID: "t0"})
		c.Activate(context.Background())

		assert.True(t, c.Snapshot().Entitled)
		assert.Equal(t, StateEntitled, c.Snapshot().State)
	})
}

func TestController_PurchaseUpdateConfirm(t *testing.T) {
	t.Run("waits for active verdict", func(t *testing.T) {
		store := newFakeStore()
		store.products = []purchase.Product{monthly}
		v := &fakeValidator{result: result(purchase.ActiveResult()), block: make(chan struct{})}
		c, _ := newTestController(store, v, purchase.UnlockConfirm)
		c.Activate(context.Background())

		store.onUpdate(context.Background(), purchase.Transaction{TransactionID: "t1", Receipt: "r1"})

		require.Eventually(t, func() bool {
			return c.Snapshot().State == StateValidating
		}, time.Second, 5*time.Millisecond)
		snap := c.Snapshot()
		assert.False(t, snap.Entitled)
		assert.Equal(t, ViewPaywall, snap.View)

		close(v.block)
		c.Wait()
		snap = c.Snapshot()
		assert.True(t, snap.Entitled)
		assert.Equal(t, entitlement.SourceValidation, snap.EntitlementSource)
	})

	t.Run("empty receipt does not grant", func(t *testing.T) {
		store := newFakeStore()
		c, _ := newTestController(store, &fakeValidator{}, purchase.UnlockConfirm)
		c.Activate(context.Background())

		store.onUpdate(context.Background(), purchase.Transaction{TransactionID: "t1"})
		c.Wait()

		assert.False(t, c.Snapshot().Entitled)
	})
}

func TestController_ValidateReceipt(t *testing.T) {
	tests := []struct {
		name         string
		result       *purchase.ValidationResult
		err          error
		wantOutcome  purchase.Outcome
		wantEntitled bool
		wantNotices  []Notice
	}{
		{
			name:         "active grants",
			result:       result(purchase.ActiveResult()),
			wantOutcome:  purchase.OutcomeActive,
			wantEntitled: true,
		},
		{
			name:        "error sentinel alerts generic error",
			result:      result(purchase.RejectedResult()),
			wantOutcome: purchase.OutcomeRejected,
			wantNotices: []Notice{{Kind: NoticeValidationFailed}},
		},
		{
			name:        "inactive alerts expired",
			result:      result(purchase.ExpiredResult()),
			wantOutcome: purchase.OutcomeExpired,
			wantNotices: []Notice{{Kind: NoticeExpired}},
		},
		{
			name:        "transport failure alerts generic error",
			err:         errors.New("connection refused"),
			wantOutcome: purchase.OutcomeFailed,
			wantNotices: []Notice{{Kind: NoticeValidationFailed}},
		},
		{
			name:        "nil result is a failure",
			wantOutcome: purchase.OutcomeFailed,
			wantNotices: []Notice{{Kind: NoticeValidationFailed}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			v := &fakeValidator{result: tt.result, err: tt.err}
			c, notices := newTestController(store, v, purchase.UnlockOptimistic)
			c.Activate(context.Background())

			outcome := c.ValidateReceipt(context.Background(), "receipt")

			assert.Equal(t, tt.wantOutcome, outcome)
			assert.Equal(t, tt.wantEntitled, c.Snapshot().Entitled)
			assert.Equal(t, tt.wantNotices, notices.all())
			assert.Equal(t, []string{"receipt"}, v.calls())
		})
	}
}

func TestController_ValidateReceiptEmpty(t *testing.T) {
	store := newFakeStore()
	v := &fakeValidator{}
	c, notices := newTestController(store, v, purchase.UnlockOptimistic)

	assert.Equal(t, purchase.OutcomeFailed, c.ValidateReceipt(context.Background(), ""))
	assert.Empty(t, v.calls())
	assert.Empty(t, notices.all())
}

func TestController_ExpiredDoesNotRevoke(t *testing.T) {
	store := newFakeStore()
	v := &fakeValidator{result: result(purchase.ExpiredResult())}
	c, notices := newTestController(store, v, purchase.UnlockOptimistic)
	c.Activate(context.Background())

	store.onUpdate(context.Background(), purchase.Transaction{TransactionID: "t1", Receipt: "r1"})
	c.Wait()

	assert.True(t, c.Snapshot().Entitled)
	assert.Equal(t, []Notice{{Kind: NoticeExpired}}, notices.all())
}

func TestController_ValidatorPanicIsContained(t *testing.T) {
	store := newFakeStore()
	notices := &noticeLog{}
	v := receipt.ValidatorFunc(func(context.Context, string) (*purchase.ValidationResult, error) {
		panic("decoder exploded")
	})
	c := NewController(store, v, notices, Config{}, logger.Nop())

	assert.Equal(t, purchase.OutcomeFailed, c.ValidateReceipt(context.Background(), "r1"))
	assert.Equal(t, []Notice{{Kind: NoticeValidationFailed}}, notices.all())
}

func TestController_RequestPurchase(t *testing.T) {
	store := newFakeStore()
	store.requestErr = storefront.ErrUnknownProduct
	c, notices := newTestController(store, &fakeValidator{}, purchase.UnlockOptimistic)
	c.Activate(context.Background())

	c.RequestPurchase(context.Background(), "missing")
	c.RequestPurchase(context.Background(), "")

	assert.Equal(t, []Notice{{Kind: NoticeRequestFailed, ProductID: "missing"}}, notices.all())
	title, message := notices.all()[0].Text(i18n.EN)
	assert.NotEmpty(t, title)
	assert.NotEmpty(t, message)
}

func TestController_Deactivate(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *fakeStore)
	}{
		{"all releases succeed", func(*fakeStore) {}},
		{"first release fails", func(s *fakeStore) { s.removeErrs["update"] = errors.New("gone") }},
		{"second release panics", func(s *fakeStore) { s.removePanics["error"] = true }},
		{"every release fails", func(s *fakeStore) {
			s.removePanics["update"] = true
			s.removeErrs["error"] = errors.New("gone")
			s.closePanic = true
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			tt.setup(store)
			c, _ := newTestController(store, &fakeValidator{}, purchase.UnlockOptimistic)
			c.Activate(context.Background())

			require.NotPanics(t, func() { c.Deactivate(context.Background()) })

			assert.Equal(t, []string{"update", "error"}, store.removed)
			assert.Equal(t, 1, store.closed)
			assert.Equal(t, StateClosed, c.Snapshot().State)
		})
	}
}

func TestController_DeactivateIsIdempotent(t *testing.T) {
	store := newFakeStore()
	c, _ := newTestController(store, &fakeValidator{}, purchase.UnlockOptimistic)
	c.Activate(context.Background())

	c.Deactivate(context.Background())
	c.Deactivate(context.Background())

	assert.Len(t, store.removed, 2)
	assert.Equal(t, 1, store.closed)
}

func TestController_DeactivateAbandonsValidation(t *testing.T) {
	store := newFakeStore()
	v := &fakeValidator{result: result(purchase.ActiveResult()), block: make(chan struct{})}
	c, notices := newTestController(store, v, purchase.UnlockConfirm)
	c.Activate(context.Background())

	store.onUpdate(context.Background(), purchase.Transaction{TransactionID: "t1", Receipt: "r1"})
	c.Deactivate(context.Background())

	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("validation was not abandoned")
	}

	snap := c.Snapshot()
	assert.Equal(t, StateClosed, snap.State)
	assert.False(t, snap.Entitled)
	assert.Empty(t, notices.all())
}

func TestController_OnChange(t *testing.T) {
	store := newFakeStore()
	store.products = []purchase.Product{monthly}

	var mu sync.Mutex
	var views []View
	c := NewController(store, &fakeValidator{}, &noticeLog{}, Config{ProductIDs: []string{monthly.ID}}, logger.Nop(),
		WithOnChange(func(s Snapshot) {
			mu.Lock()
			views = append(views, s.View)
			mu.Unlock()
		}),
	)

	c.Activate(context.Background())
	c.HandlePurchaseUpdate(context.Background(), purchase.Transaction{TransactionID: "t1"})

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, views)
	assert.Equal(t, ViewFetching, views[0])
	assert.Contains(t, views, ViewPaywall)
	assert.Equal(t, ViewUnlocked, views[len(views)-1])
}

func TestController_LastChangeMatchesSnapshot(t *testing.T) {
	for i := 0; i < 50; i++ {
		store := newFakeStore()
		store.products = []purchase.Product{monthly}

		var mu sync.Mutex
		var last Snapshot
		c := NewController(store, &fakeValidator{}, &noticeLog{}, Config{ProductIDs: []string{monthly.ID}}, logger.Nop(),
			WithOnChange(func(s Snapshot) {
				mu.Lock()
				last = s
				mu.Unlock()
			}),
		)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Activate(context.Background())
		}()
		go func() {
			defer wg.Done()
			c.HandlePurchaseUpdate(context.Background(), purchase.Transaction{TransactionID: "t1"})
		}()
		wg.Wait()

		want := c.Snapshot()
		mu.Lock()
		got := last
		mu.Unlock()
		require.Equal(t, want.View, got.View, "iteration %d", i)
		require.Equal(t, want.State, got.State, "iteration %d", i)
		assert.Equal(t, ViewUnlocked, got.View)
	}
}

type countingRecorder struct {
	mu       sync.Mutex
	events   map[string]int
	outcomes map[purchase.Outcome]int
}

func (r *countingRecorder) PurchaseEvent(kind string) {
	r.mu.Lock()
	r.events[kind]++
	r.mu.Unlock()
}

func (r *countingRecorder) ValidationOutcome(_ string, o purchase.Outcome) {
	r.mu.Lock()
	r.outcomes[o]++
	r.mu.Unlock()
}

func TestController_Recorder(t *testing.T) {
	store := newFakeStore()
	rec := &countingRecorder{events: map[string]int{}, outcomes: map[purchase.Outcome]int{}}
	v := &fakeValidator{result: result(purchase.ActiveResult())}
	c := NewController(store, v, &noticeLog{}, Config{}, logger.Nop(), WithRecorder(rec))
	c.Activate(context.Background())

	store.onError(context.Background(), purchase.PurchaseError{ResponseCode: "2"})
	store.onError(context.Background(), purchase.PurchaseError{ResponseCode: "3"})
	store.onUpdate(context.Background(), purchase.Transaction{TransactionID: "t1", Receipt: "r1"})
	store.requestErr = errors.New("billing unavailable")
	c.RequestPurchase(context.Background(), monthly.ID)
	c.Wait()

	assert.Equal(t, 1, rec.events[EventRequestFailed])
	assert.Zero(t, rec.outcomes[purchase.OutcomeFailed])
	assert.Equal(t, 1, rec.events[EventPurchaseCancelled])
	assert.Equal(t, 1, rec.events[EventPurchaseFailed])
	assert.Equal(t, 1, rec.events[EventPurchaseUpdated])
	assert.Equal(t, 1, rec.outcomes[purchase.OutcomeActive])
}
