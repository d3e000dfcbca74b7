package wallet

import (
	"context"
	"fmt"
)

// ListTransactions returns one newest-first page of ledger history. The read
// path never takes the concurrency guard: it sees committed records only and
// tolerates being milliseconds stale.
func (service *Service) ListTransactions(ctx context.Context, accountID AccountID, filter TransactionFilter) (TransactionPage, error) {
	normalized, err := normalizeFilter(filter)
	if err != nil {
		return TransactionPage{}, err
	}
	if _, err := service.store.GetAccount(ctx, accountID); err != nil {
		return TransactionPage{}, err
	}
	return service.store.ListTransactions(ctx, accountID, normalized)
}

func normalizeFilter(filter TransactionFilter) (TransactionFilter, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit == 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit < 0 || filter.Limit > maxListLimit {
		return TransactionFilter{}, fmt.Errorf("%w: limit %d out of range", ErrInvalidListLimit, filter.Limit)
	}
	if filter.Type != nil {
		if _, err := ParseTransactionType(filter.Type.String()); err != nil {
			return TransactionFilter{}, err
		}
	}
	if filter.Status != nil {
		if _, err := ParseTransactionStatus(filter.Status.String()); err != nil {
			return TransactionFilter{}, err
		}
	}
	return filter, nil
}
