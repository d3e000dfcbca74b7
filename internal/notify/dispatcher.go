package notify

import (
	"context"
	"sync"

	"github.com/openarena/wallet/pkg/wallet"
	"go.uber.org/zap"
)

const defaultQueueSize = 256

// Handler relays one balance event to a delivery channel (websocket hub,
// push gateway, and so on). A returned error is logged and dropped.
type Handler func(ctx context.Context, event wallet.BalanceEvent) error

// Dispatcher is the post-commit notification side channel. Events are queued
// and delivered by a single worker goroutine, so a slow or failing delivery
// channel can never delay or fail the financial operation that produced the
// event. When the queue is full the event is dropped and logged.
type Dispatcher struct {
	logger *zap.Logger
	queue  chan wallet.BalanceEvent

	mu       sync.RWMutex
	handlers []Handler

	closeOnce sync.Once
	done      chan struct{}
}

// New starts a dispatcher with the given queue capacity (0 for the default).
func New(logger *zap.Logger, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	dispatcher := &Dispatcher{
		logger: logger,
		queue:  make(chan wallet.BalanceEvent, queueSize),
		done:   make(chan struct{}),
	}
	go dispatcher.run()
	return dispatcher
}

// Subscribe registers a delivery channel for all future events.
func (dispatcher *Dispatcher) Subscribe(handler Handler) {
	if handler == nil {
		return
	}
	dispatcher.mu.Lock()
	defer dispatcher.mu.Unlock()
	dispatcher.handlers = append(dispatcher.handlers, handler)
}

// EmitBalanceChange enqueues an event without blocking the caller.
func (dispatcher *Dispatcher) EmitBalanceChange(_ context.Context, event wallet.BalanceEvent) {
	select {
	case dispatcher.queue <- event:
	default:
		dispatcher.logger.Warn("balance event dropped, queue full",
			zap.String("account_id", event.AccountID.String()),
			zap.String("transaction_id", event.Transaction.ID.String()),
		)
	}
}

// Close stops accepting events and waits for the queue to drain.
func (dispatcher *Dispatcher) Close() {
	dispatcher.closeOnce.Do(func() {
		close(dispatcher.queue)
	})
	<-dispatcher.done
}

func (dispatcher *Dispatcher) run() {
	defer close(dispatcher.done)
	for event := range dispatcher.queue {
		dispatcher.deliver(event)
	}
}

func (dispatcher *Dispatcher) deliver(event wallet.BalanceEvent) {
	dispatcher.mu.RLock()
	handlers := append([]Handler(nil), dispatcher.handlers...)
	dispatcher.mu.RUnlock()
	for _, handler := range handlers {
		if err := handler(context.Background(), event); err != nil {
			dispatcher.logger.Warn("balance event delivery failed",
				zap.String("account_id", event.AccountID.String()),
				zap.String("transaction_id", event.Transaction.ID.String()),
				zap.Error(err),
			)
		}
	}
}
