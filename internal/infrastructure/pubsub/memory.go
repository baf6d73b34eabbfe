package pubsub

import (
	"context"
	"sync"
	"time"

	"iapgate/internal/shared/goroutine"
	"iapgate/internal/shared/logger"
)

// MemoryStoreEventBus delivers events within the process. Each subscriber
// owns a queue drained by one goroutine, so a slow handler never blocks
// Publish or other subscribers.
type MemoryStoreEventBus struct {
	logger logger.Interface

	mu     sync.Mutex
	nextID int
	subs   map[int]*memorySubscriber
	closed bool
}

func NewMemoryStoreEventBus(log logger.Interface) *MemoryStoreEventBus {
	return &MemoryStoreEventBus{
		logger: log.Named("pubsub.memory"),
		subs:   make(map[int]*memorySubscriber),
	}
}

var _ StoreEventBus = (*MemoryStoreEventBus)(nil)

func (b *MemoryStoreEventBus) Publish(_ context.Context, event StoreEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	for _, sub := range b.subs {
		sub.enqueue(event)
	}

	b.logger.Debugw("store event published", "type", event.Type, "subscribers", len(b.subs))
	return nil
}

func (b *MemoryStoreEventBus) Subscribe(_ context.Context, handler StoreEventHandler) (Unsubscribe, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}

	id := b.nextID
	b.nextID++
	sub := &memorySubscriber{
		handler: handler,
		logger:  b.logger,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	b.subs[id] = sub
	goroutine.SafeGo(b.logger, nil, "store_event_subscriber", sub.run)

	var once sync.Once
	return func() error {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			sub.stop()
		})
		return nil
	}, nil
}

// Close stops every subscriber. Events still queued are dropped.
func (b *MemoryStoreEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[int]*memorySubscriber)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
	return nil
}

type memorySubscriber struct {
	handler StoreEventHandler
	logger  logger.Interface

	mu    sync.Mutex
	queue []StoreEvent
	wake  chan struct{}
	done  chan struct{}
}

func (s *memorySubscriber) enqueue(event StoreEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, event)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *memorySubscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			event := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			default:
			}
			err := goroutine.Guard("store_event_handler", func() error {
				s.handler(context.Background(), event)
				return nil
			})
			if err != nil {
				s.logger.Errorw("store event handler failed", "type", event.Type, "error", err)
			}
		}
	}
}

// stop does not wait for an in-flight handler, so a handler may
// unsubscribe itself.
func (s *memorySubscriber) stop() {
	close(s.done)
}
