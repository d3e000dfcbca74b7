package wallet

import (
	"context"
	"time"
)

// BalanceEvent summarizes one committed balance mutation for the real-time
// side channel. It carries no authority: the ledger is the source of truth.
type BalanceEvent struct {
	AccountID    AccountID
	Transaction  Transaction
	BalanceCents AmountCents
}

// BalanceEmitter receives balance events strictly after commit. Delivery is
// best-effort; the service ignores its outcome entirely.
type BalanceEmitter interface {
	EmitBalanceChange(ctx context.Context, event BalanceEvent)
}

// WithBalanceEmitter wires the post-commit notification side channel.
func WithBalanceEmitter(emitter BalanceEmitter) ServiceOption {
	return func(service *Service) {
		service.emitter = emitter
	}
}

// WithRetryPolicy overrides the concurrency-conflict retry budget.
func WithRetryPolicy(maxAttempts int, budget time.Duration) ServiceOption {
	return func(service *Service) {
		if maxAttempts > 0 {
			service.maxAttempts = maxAttempts
		}
		if budget > 0 {
			service.retryBudget = budget
		}
	}
}
