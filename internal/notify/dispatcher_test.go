package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/openarena/wallet/pkg/wallet"
	"go.uber.org/zap"
)

func testEvent(test *testing.T, rawAccountID string, balance int64) wallet.BalanceEvent {
	test.Helper()
	accountID, err := wallet.NewAccountID(rawAccountID)
	if err != nil {
		test.Fatalf("account id: %v", err)
	}
	metadata, err := wallet.NewMetadataJSON("{}")
	if err != nil {
		test.Fatalf("metadata: %v", err)
	}
	transaction, err := wallet.BuildTransaction(accountID, wallet.TypeDeposit, wallet.AmountCents(balance), 0, nil, metadata, 100)
	if err != nil {
		test.Fatalf("transaction: %v", err)
	}
	return wallet.BalanceEvent{
		AccountID:    accountID,
		Transaction:  transaction,
		BalanceCents: wallet.AmountCents(balance),
	}
}

func TestDispatcherDeliversToAllSubscribers(test *testing.T) {
	test.Parallel()
	dispatcher := New(zap.NewNop(), 8)

	var mu sync.Mutex
	var received []string
	for _, name := range []string{"push", "websocket"} {
		channel := name
		dispatcher.Subscribe(func(_ context.Context, event wallet.BalanceEvent) error {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, channel+":"+event.AccountID.String())
			return nil
		})
	}

	dispatcher.EmitBalanceChange(context.Background(), testEvent(test, "acct-1", 100))
	dispatcher.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		test.Fatalf("expected 2 deliveries, got %d", len(received))
	}
}

func TestDispatcherSurvivesFailingHandler(test *testing.T) {
	test.Parallel()
	dispatcher := New(zap.NewNop(), 8)

	delivered := make(chan struct{}, 1)
	dispatcher.Subscribe(func(context.Context, wallet.BalanceEvent) error {
		return errors.New("channel down")
	})
	dispatcher.Subscribe(func(context.Context, wallet.BalanceEvent) error {
		delivered <- struct{}{}
		return nil
	})

	dispatcher.EmitBalanceChange(context.Background(), testEvent(test, "acct-2", 50))

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		test.Fatalf("healthy subscriber never received the event")
	}
	dispatcher.Close()
}

func TestDispatcherDropsWhenQueueFull(test *testing.T) {
	test.Parallel()
	dispatcher := New(zap.NewNop(), 1)

	release := make(chan struct{})
	dispatcher.Subscribe(func(context.Context, wallet.BalanceEvent) error {
		<-release
		return nil
	})

	// First event occupies the worker, second fills the queue, third drops.
	// None of them may block the emitting caller.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for index := 0; index < 3; index++ {
			dispatcher.EmitBalanceChange(context.Background(), testEvent(test, "acct-3", int64(index+1)))
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		test.Fatalf("emit blocked on a saturated queue")
	}
	close(release)
	dispatcher.Close()
}
