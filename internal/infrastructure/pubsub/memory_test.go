package pubsub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iapgate/internal/domain/purchase"
	"iapgate/internal/shared/logger"
)

type eventSink struct {
	mu     sync.Mutex
	events []StoreEvent
}

func (s *eventSink) handle(_ context.Context, e StoreEvent) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *eventSink) snapshot() []StoreEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StoreEvent(nil), s.events...)
}

func updated(id string) StoreEvent {
	return StoreEvent{
		Type:        StoreEventPurchaseUpdated,
		Transaction: &purchase.Transaction{TransactionID: id, Receipt: "r-" + id},
	}
}

func TestMemoryStoreEventBus_DeliversInOrder(t *testing.T) {
	bus := NewMemoryStoreEventBus(logger.Nop())
	defer bus.Close()

	sink := &eventSink{}
	unsubscribe, err := bus.Subscribe(context.Background(), sink.handle)
	require.NoError(t, err)
	defer unsubscribe()

	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		require.NoError(t, bus.Publish(context.Background(), updated(id)))
	}

	require.Eventually(t, func() bool { return len(sink.snapshot()) == len(ids) }, time.Second, 5*time.Millisecond)
	for i, e := range sink.snapshot() {
		assert.Equal(t, ids[i], e.Transaction.TransactionID)
		assert.NotZero(t, e.Timestamp)
	}
}

func TestMemoryStoreEventBus_FanOutAndUnsubscribe(t *testing.T) {
	bus := NewMemoryStoreEventBus(logger.Nop())
	defer bus.Close()

	first, second := &eventSink{}, &eventSink{}
	unsubFirst, err := bus.Subscribe(context.Background(), first.handle)
	require.NoError(t, err)
	_, err = bus.Subscribe(context.Background(), second.handle)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), updated("1")))
	require.Eventually(t, func() bool {
		return len(first.snapshot()) == 1 && len(second.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, unsubFirst())
	require.NoError(t, unsubFirst())

	require.NoError(t, bus.Publish(context.Background(), updated("2")))
	require.Eventually(t, func() bool { return len(second.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Len(t, first.snapshot(), 1)
}

func TestMemoryStoreEventBus_HandlerPanicKeepsSubscription(t *testing.T) {
	bus := NewMemoryStoreEventBus(logger.Nop())
	defer bus.Close()

	sink := &eventSink{}
	_, err := bus.Subscribe(context.Background(), func(ctx context.Context, e StoreEvent) {
		if e.Transaction.TransactionID == "boom" {
			panic("handler exploded")
		}
		sink.handle(ctx, e)
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), updated("boom")))
	require.NoError(t, bus.Publish(context.Background(), updated("ok")))

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestMemoryStoreEventBus_RejectsMalformedAndClosed(t *testing.T) {
	bus := NewMemoryStoreEventBus(logger.Nop())

	assert.Error(t, bus.Publish(context.Background(), StoreEvent{Type: StoreEventPurchaseError}))
	assert.Error(t, bus.Publish(context.Background(), StoreEvent{Type: "refund"}))

	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(context.Background(), updated("x")), ErrBusClosed)
	_, err := bus.Subscribe(context.Background(), func(context.Context, StoreEvent) {})
	assert.ErrorIs(t, err, ErrBusClosed)
}
