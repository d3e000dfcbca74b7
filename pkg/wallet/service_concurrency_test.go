package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestConcurrentDebitsNeverOverdraw(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	accountID := mustAccountID(test, "hot-account")
	seedAccount(test, store, accountID, 100)
	service := mustNewService(test, store, WithRetryPolicy(10, 5*time.Second))
	metadata := mustMetadata(test, "{}")

	const workers = 8
	amount := mustPositiveAmount(test, 30)
	var wg sync.WaitGroup
	results := make([]error, workers)
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, err := service.Debit(context.Background(), accountID, amount, TypeTournamentEntry, metadata, nil)
			results[slot] = err
		}(worker)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientFunds):
		default:
			test.Fatalf("unexpected error: %v", err)
		}
	}
	// 100 cents satisfies exactly three 30-cent debits.
	if succeeded != 3 {
		test.Fatalf("expected exactly 3 successful debits, got %d", succeeded)
	}
	account := store.snapshotAccount(test, accountID)
	if account.BalanceCents != 10 {
		test.Fatalf("expected final balance 10, got %d", account.BalanceCents)
	}
	transactions := store.committedTransactions(accountID)
	if len(transactions) != 3 {
		test.Fatalf("expected 3 committed transactions, got %d", len(transactions))
	}
	for _, transaction := range transactions {
		if transaction.BalanceAfterCents < 0 {
			test.Fatalf("observed negative balance snapshot: %+v", transaction)
		}
	}
}

func TestTwoConcurrentDebitsOneInsufficient(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	accountID := mustAccountID(test, "duel-account")
	seedAccount(test, store, accountID, 100)
	service := mustNewService(test, store, WithRetryPolicy(10, 5*time.Second))
	metadata := mustMetadata(test, "{}")

	amount := mustPositiveAmount(test, 60)
	var wg sync.WaitGroup
	results := make([]error, 2)
	for worker := 0; worker < 2; worker++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, err := service.Debit(context.Background(), accountID, amount, TypeTournamentEntry, metadata, nil)
			results[slot] = err
		}(worker)
	}
	wg.Wait()

	var failures []error
	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		failures = append(failures, err)
	}
	if succeeded != 1 || len(failures) != 1 {
		test.Fatalf("expected one success and one failure, got %d/%d", succeeded, len(failures))
	}
	// The loser genuinely cannot be satisfied, so it must see insufficient
	// funds rather than a transient conflict.
	if !errors.Is(failures[0], ErrInsufficientFunds) {
		test.Fatalf("expected ErrInsufficientFunds, got %v", failures[0])
	}
	account := store.snapshotAccount(test, accountID)
	if account.BalanceCents != 40 {
		test.Fatalf("expected final balance 40, got %d", account.BalanceCents)
	}
}

func TestRetriesRecoverFromTransientConflicts(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	accountID := mustAccountID(test, "contended")
	seedAccount(test, store, accountID, 100)
	store.forcedConflicts = 2
	service := mustNewService(test, store)

	receipt, err := service.Credit(context.Background(), accountID, mustPositiveAmount(test, 10), TypeDeposit, mustMetadata(test, "{}"), nil)
	if err != nil {
		test.Fatalf("credit after transient conflicts: %v", err)
	}
	if receipt.BalanceCents != 110 {
		test.Fatalf("expected balance 110, got %d", receipt.BalanceCents)
	}
}

func TestExhaustedRetriesSurfaceConcurrentModification(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	accountID := mustAccountID(test, "pathological")
	seedAccount(test, store, accountID, 100)
	store.forcedConflicts = 100
	service := mustNewService(test, store, WithRetryPolicy(3, time.Second))

	_, err := service.Debit(context.Background(), accountID, mustPositiveAmount(test, 10), TypeWithdrawal, mustMetadata(test, "{}"), nil)
	if !errors.Is(err, ErrConcurrentModification) {
		test.Fatalf("expected ErrConcurrentModification, got %v", err)
	}
	account := store.snapshotAccount(test, accountID)
	if account.BalanceCents != 100 {
		test.Fatalf("expected balance unchanged, got %d", account.BalanceCents)
	}
}

func TestCancelledCallerDoesNotTearCommit(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	accountID := mustAccountID(test, "cancelled")
	seedAccount(test, store, accountID, 100)
	service := mustNewService(test, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	receipt, err := service.Credit(ctx, accountID, mustPositiveAmount(test, 10), TypeDeposit, mustMetadata(test, "{}"), nil)
	if err != nil {
		test.Fatalf("credit with cancelled caller: %v", err)
	}
	if receipt.BalanceCents != 110 {
		test.Fatalf("expected balance 110, got %d", receipt.BalanceCents)
	}
	if got := len(store.committedTransactions(accountID)); got != 1 {
		test.Fatalf("expected full commit, got %d transactions", got)
	}
}
