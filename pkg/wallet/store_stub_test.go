package wallet

import (
	"context"
	"sort"
	"sync"
	"testing"
)

// stubStore implements Store in memory with the same compare-and-swap
// semantics the real store provides: reads are unlocked snapshots, the
// version-guarded balance write is the only arbitration point.
type stubStore struct {
	mu           sync.Mutex
	accounts     map[string]Account
	transactions []Transaction

	forcedConflicts int
	getErr          error
	updateErr       error
	insertErr       error
	listErr         error
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{accounts: map[string]Account{}}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	return fn(ctx, store)
}

func (store *stubStore) CreateAccount(ctx context.Context, account Account) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if _, ok := store.accounts[account.ID.String()]; ok {
		return ErrAccountExists
	}
	store.accounts[account.ID.String()] = account
	return nil
}

func (store *stubStore) GetAccount(ctx context.Context, accountID AccountID) (Account, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.getErr != nil {
		return Account{}, store.getErr
	}
	account, ok := store.accounts[accountID.String()]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (store *stubStore) UpdateBalance(ctx context.Context, update BalanceUpdate) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.updateErr != nil {
		return store.updateErr
	}
	if store.forcedConflicts > 0 {
		store.forcedConflicts--
		return ErrVersionConflict
	}
	account, ok := store.accounts[update.AccountID.String()]
	if !ok {
		return ErrAccountNotFound
	}
	if account.Version != update.ExpectedVersion {
		return ErrVersionConflict
	}
	account.BalanceCents = update.NewBalanceCents
	account.TotalDepositsCents += update.DepositsDeltaCents
	account.TotalWithdrawalsCents += update.WithdrawalsDeltaCents
	account.Version++
	store.accounts[update.AccountID.String()] = account
	return nil
}

func (store *stubStore) InsertTransaction(ctx context.Context, transaction Transaction) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.insertErr != nil {
		return store.insertErr
	}
	if transaction.IdempotencyKey != nil {
		for _, existing := range store.transactions {
			if existing.AccountID == transaction.AccountID &&
				existing.IdempotencyKey != nil &&
				existing.IdempotencyKey.String() == transaction.IdempotencyKey.String() {
				return ErrDuplicateIdempotencyKey
			}
		}
	}
	store.transactions = append(store.transactions, transaction)
	return nil
}

func (store *stubStore) FindTransactionByIdempotencyKey(ctx context.Context, accountID AccountID, key IdempotencyKey) (Transaction, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, transaction := range store.transactions {
		if transaction.AccountID == accountID &&
			transaction.IdempotencyKey != nil &&
			transaction.IdempotencyKey.String() == key.String() {
			return transaction, nil
		}
	}
	return Transaction{}, ErrTransactionNotFound
}

func (store *stubStore) ListTransactions(ctx context.Context, accountID AccountID, filter TransactionFilter) (TransactionPage, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.listErr != nil {
		return TransactionPage{}, store.listErr
	}
	matches := make([]Transaction, 0, len(store.transactions))
	for _, transaction := range store.transactions {
		if transaction.AccountID != accountID {
			continue
		}
		if filter.Type != nil && transaction.Type != *filter.Type {
			continue
		}
		if filter.Status != nil && transaction.Status != *filter.Status {
			continue
		}
		if filter.FromUnixUTC != 0 && transaction.CreatedUnixUTC < filter.FromUnixUTC {
			continue
		}
		if filter.ToUnixUTC != 0 && transaction.CreatedUnixUTC > filter.ToUnixUTC {
			continue
		}
		matches = append(matches, transaction)
	}
	sort.SliceStable(matches, func(left, right int) bool {
		return matches[left].CreatedUnixUTC > matches[right].CreatedUnixUTC
	})
	total := int64(len(matches))
	offset := (filter.Page - 1) * filter.Limit
	if offset > len(matches) {
		offset = len(matches)
	}
	end := offset + filter.Limit
	if end > len(matches) {
		end = len(matches)
	}
	return TransactionPage{
		Transactions: append([]Transaction(nil), matches[offset:end]...),
		Page:         filter.Page,
		Limit:        filter.Limit,
		TotalCount:   total,
	}, nil
}

func (store *stubStore) snapshotAccount(test *testing.T, accountID AccountID) Account {
	test.Helper()
	store.mu.Lock()
	defer store.mu.Unlock()
	account, ok := store.accounts[accountID.String()]
	if !ok {
		test.Fatalf("account %s not found", accountID.String())
	}
	return account
}

func (store *stubStore) committedTransactions(accountID AccountID) []Transaction {
	store.mu.Lock()
	defer store.mu.Unlock()
	matches := make([]Transaction, 0, len(store.transactions))
	for _, transaction := range store.transactions {
		if transaction.AccountID == accountID {
			matches = append(matches, transaction)
		}
	}
	return matches
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, func() int64 { return 100 }, options...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func seedAccount(test *testing.T, store *stubStore, accountID AccountID, balance int64) {
	test.Helper()
	store.mu.Lock()
	defer store.mu.Unlock()
	store.accounts[accountID.String()] = Account{
		ID:             accountID,
		BalanceCents:   AmountCents(balance),
		Version:        1,
		CreatedUnixUTC: 100,
	}
}

func mustAccountID(test *testing.T, raw string) AccountID {
	test.Helper()
	value, err := NewAccountID(raw)
	if err != nil {
		test.Fatalf("account id: %v", err)
	}
	return value
}

func mustTransactionID(test *testing.T, raw string) TransactionID {
	test.Helper()
	value, err := NewTransactionID(raw)
	if err != nil {
		test.Fatalf("transaction id: %v", err)
	}
	return value
}

func mustIdempotencyKey(test *testing.T, raw string) IdempotencyKey {
	test.Helper()
	value, err := NewIdempotencyKey(raw)
	if err != nil {
		test.Fatalf("idempotency key: %v", err)
	}
	return value
}

func mustMetadata(test *testing.T, raw string) MetadataJSON {
	test.Helper()
	value, err := NewMetadataJSON(raw)
	if err != nil {
		test.Fatalf("metadata: %v", err)
	}
	return value
}

func mustPositiveAmount(test *testing.T, raw int64) PositiveAmountCents {
	test.Helper()
	value, err := NewPositiveAmountCents(raw)
	if err != nil {
		test.Fatalf("amount: %v", err)
	}
	return value
}
