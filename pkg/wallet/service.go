package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Service is the ledger core: the only component allowed to mutate a
// balance. Each Credit/Debit runs as one atomic read-validate-write unit in
// the store, guarded by a per-account compare-and-swap on Account.Version.
type Service struct {
	store       Store
	nowFn       func() int64
	logger      OperationLogger
	emitter     BalanceEmitter
	maxAttempts int
	retryBudget time.Duration
}

// NewService wires a Service.
func NewService(store Store, now func() int64, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:       store,
		nowFn:       now,
		maxAttempts: defaultMaxAttempts,
		retryBudget: defaultRetryBudget,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// CreateAccount registers a zero-balance account. Called once per platform
// user at registration time.
func (service *Service) CreateAccount(ctx context.Context, accountID AccountID) (Account, error) {
	account := Account{
		ID:             accountID,
		Version:        1,
		CreatedUnixUTC: service.nowFn(),
	}
	operationError := service.store.CreateAccount(ctx, account)
	service.logOperation(ctx, OperationLog{
		Operation: operationCreateAccount,
		AccountID: accountID,
		Error:     operationError,
	})
	if operationError != nil {
		return Account{}, operationError
	}
	return account, nil
}

// GetAccount returns the full account view including reporting counters.
func (service *Service) GetAccount(ctx context.Context, accountID AccountID) (Account, error) {
	return service.store.GetAccount(ctx, accountID)
}

// GetBalance returns the current balance in cents.
func (service *Service) GetBalance(ctx context.Context, accountID AccountID) (AmountCents, error) {
	account, err := service.store.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return account.BalanceCents, nil
}

// Credit appends a positive mutation and returns the committed transaction
// with the new balance.
func (service *Service) Credit(ctx context.Context, accountID AccountID, amount PositiveAmountCents, transactionType TransactionType, metadata MetadataJSON, idempotencyKey *IdempotencyKey) (Receipt, error) {
	return service.apply(ctx, operationCredit, accountID, amount.AsCredit(), transactionType, metadata, idempotencyKey)
}

// Debit appends a negative mutation if the balance can satisfy it. The
// balance never goes below zero: an unsatisfiable debit fails with
// ErrInsufficientFunds before any write.
func (service *Service) Debit(ctx context.Context, accountID AccountID, amount PositiveAmountCents, transactionType TransactionType, metadata MetadataJSON, idempotencyKey *IdempotencyKey) (Receipt, error) {
	return service.apply(ctx, operationDebit, accountID, amount.AsDebit(), transactionType, metadata, idempotencyKey)
}

// apply runs the shared read-validate-write sequence under the optimistic
// concurrency guard. The commit context is detached from caller
// cancellation: once an attempt begins it completes or aborts whole.
func (service *Service) apply(ctx context.Context, operation string, accountID AccountID, delta AmountCents, transactionType TransactionType, metadata MetadataJSON, idempotencyKey *IdempotencyKey) (Receipt, error) {
	var receipt Receipt
	var replayed bool

	operationError := func() error {
		if _, err := ParseTransactionType(transactionType.String()); err != nil {
			return err
		}
		commitCtx := context.WithoutCancel(ctx)
		deadline := time.Now().Add(service.retryBudget)
		for attempt := 0; ; attempt++ {
			err := service.attemptOnce(commitCtx, accountID, delta, transactionType, metadata, idempotencyKey, &receipt, &replayed)
			if err == nil {
				return nil
			}
			if errors.Is(err, ErrDuplicateIdempotencyKey) && idempotencyKey != nil {
				// Lost a same-key race after the balance read. The winner's
				// commit is the authoritative application of this operation.
				return service.replayCommitted(commitCtx, accountID, *idempotencyKey, &receipt, &replayed)
			}
			if !errors.Is(err, ErrVersionConflict) {
				return err
			}
			if attempt+1 >= service.maxAttempts || !time.Now().Before(deadline) {
				return WrapError(operation, "account", "retries_exhausted", ErrConcurrentModification)
			}
			sleepWithJitter(attempt)
		}
	}()

	if operationError == nil && !replayed {
		service.emitBalanceChange(ctx, receipt)
	}
	service.logOperation(ctx, OperationLog{
		Operation:      operation,
		AccountID:      accountID,
		TransactionID:  receipt.Transaction.ID,
		Type:           transactionType,
		Amount:         delta,
		IdempotencyKey: idempotencyKey,
		Metadata:       metadata,
		Error:          operationError,
	})
	if operationError != nil {
		return Receipt{}, operationError
	}
	return receipt, nil
}

// attemptOnce is one atomic unit: read balance, validate, persist the new
// balance and the transaction record together. Both succeed or neither does.
func (service *Service) attemptOnce(ctx context.Context, accountID AccountID, delta AmountCents, transactionType TransactionType, metadata MetadataJSON, idempotencyKey *IdempotencyKey, receipt *Receipt, replayed *bool) error {
	return service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		account, err := txStore.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if idempotencyKey != nil {
			existing, err := txStore.FindTransactionByIdempotencyKey(ctx, accountID, *idempotencyKey)
			if err == nil {
				*receipt = Receipt{Transaction: existing, BalanceCents: account.BalanceCents}
				*replayed = true
				return nil
			}
			if !errors.Is(err, ErrTransactionNotFound) {
				return err
			}
		}
		newBalance := account.BalanceCents + delta
		if newBalance < 0 {
			return ErrInsufficientFunds
		}
		transaction, err := BuildTransaction(accountID, transactionType, delta, account.BalanceCents, idempotencyKey, metadata, service.nowFn())
		if err != nil {
			return err
		}
		update := BalanceUpdate{
			AccountID:       accountID,
			ExpectedVersion: account.Version,
			NewBalanceCents: newBalance,
		}
		if delta > 0 {
			update.DepositsDeltaCents = delta
		} else {
			update.WithdrawalsDeltaCents = -delta
		}
		if err := txStore.UpdateBalance(ctx, update); err != nil {
			return err
		}
		if err := txStore.InsertTransaction(ctx, transaction); err != nil {
			return err
		}
		*receipt = Receipt{Transaction: transaction, BalanceCents: newBalance}
		*replayed = false
		return nil
	})
}

// replayCommitted resolves an idempotency-key collision by returning the
// previously committed transaction alongside the current balance.
func (service *Service) replayCommitted(ctx context.Context, accountID AccountID, key IdempotencyKey, receipt *Receipt, replayed *bool) error {
	existing, err := service.store.FindTransactionByIdempotencyKey(ctx, accountID, key)
	if err != nil {
		return err
	}
	account, err := service.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	*receipt = Receipt{Transaction: existing, BalanceCents: account.BalanceCents}
	*replayed = true
	return nil
}

func (service *Service) emitBalanceChange(ctx context.Context, receipt Receipt) {
	if service.emitter == nil {
		return
	}
	service.emitter.EmitBalanceChange(context.WithoutCancel(ctx), BalanceEvent{
		AccountID:    receipt.Transaction.AccountID,
		Transaction:  receipt.Transaction,
		BalanceCents: receipt.BalanceCents,
	})
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

func sleepWithJitter(attempt int) {
	backoff := retryBackoffBase << attempt
	jitter := time.Duration(rand.Int64N(int64(retryBackoffBase)))
	time.Sleep(backoff + jitter)
}
