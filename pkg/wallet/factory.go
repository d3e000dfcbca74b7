package wallet

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// The transaction factory. Purely record-shaping: no state, no I/O. The
// service is the only caller and the only component that persists what is
// built here.

// MintTransactionID produces a globally unique transaction id with a
// time-based prefix and a random suffix.
func MintTransactionID(nowUnixUTC int64) TransactionID {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return TransactionID{value: fmt.Sprintf("%s_%d_%s", transactionIDPrefix, nowUnixUTC, suffix[:transactionIDSuffixLength])}
}

// BuildTransaction shapes a canonical completed ledger record for a signed
// delta against the given starting balance.
func BuildTransaction(
	accountID AccountID,
	transactionType TransactionType,
	delta AmountCents,
	balanceBefore AmountCents,
	idempotencyKey *IdempotencyKey,
	metadata MetadataJSON,
	nowUnixUTC int64,
) (Transaction, error) {
	if accountID.String() == "" {
		return Transaction{}, fmt.Errorf("%w: empty account id", ErrInvalidAccountID)
	}
	if _, err := ParseTransactionType(transactionType.String()); err != nil {
		return Transaction{}, err
	}
	if delta == 0 {
		return Transaction{}, fmt.Errorf("%w: zero delta", ErrInvalidAmountCents)
	}
	balanceAfter := balanceBefore + delta
	if balanceAfter < 0 {
		return Transaction{}, fmt.Errorf("%w: negative resulting balance", ErrInvalidBalance)
	}
	return Transaction{
		ID:                 MintTransactionID(nowUnixUTC),
		AccountID:          accountID,
		Type:               transactionType,
		AmountCents:        delta,
		Status:             StatusCompleted,
		BalanceBeforeCents: balanceBefore,
		BalanceAfterCents:  balanceAfter,
		IdempotencyKey:     idempotencyKey,
		Metadata:           metadata,
		CreatedUnixUTC:     nowUnixUTC,
	}, nil
}
