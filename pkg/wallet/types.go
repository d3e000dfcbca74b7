package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// AmountCents is a signed ledger delta in the minor currency unit.
// Credits are positive, debits negative.
type AmountCents int64

// Int64 returns the raw cent value.
func (amount AmountCents) Int64() int64 {
	return int64(amount)
}

// PositiveAmountCents is a caller-supplied mutation magnitude, always > 0.
type PositiveAmountCents int64

// NewPositiveAmountCents validates an amount and ensures it is strictly positive.
func NewPositiveAmountCents(raw int64) (PositiveAmountCents, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmountCents)
	}
	return PositiveAmountCents(raw), nil
}

// Int64 returns the raw cent value.
func (amount PositiveAmountCents) Int64() int64 {
	return int64(amount)
}

// AsCredit returns the amount as a positive ledger delta.
func (amount PositiveAmountCents) AsCredit() AmountCents {
	return AmountCents(amount)
}

// AsDebit returns the amount as a negative ledger delta.
func (amount PositiveAmountCents) AsDebit() AmountCents {
	return AmountCents(-amount)
}

// AccountID identifies a wallet account (one per platform user).
type AccountID struct {
	value string
}

// NewAccountID validates and normalizes an account id.
func NewAccountID(raw string) (AccountID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return AccountID{}, fmt.Errorf("%w: empty value", ErrInvalidAccountID)
	}
	return AccountID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id AccountID) String() string {
	return id.value
}

// TransactionID identifies one immutable ledger entry.
type TransactionID struct {
	value string
}

// NewTransactionID validates and normalizes a transaction id.
func NewTransactionID(raw string) (TransactionID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return TransactionID{}, fmt.Errorf("%w: empty value", ErrInvalidTransactionID)
	}
	return TransactionID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id TransactionID) String() string {
	return id.value
}

// IdempotencyKey scopes duplicate detection for gateway-driven mutations.
type IdempotencyKey struct {
	value string
}

// NewIdempotencyKey validates and normalizes an idempotency key.
func NewIdempotencyKey(raw string) (IdempotencyKey, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return IdempotencyKey{}, fmt.Errorf("%w: empty value", ErrInvalidIdempotencyKey)
	}
	return IdempotencyKey{value: trimmed}, nil
}

// String returns the normalized key.
func (key IdempotencyKey) String() string {
	return key.value
}

// MetadataJSON stores the opaque per-transaction reference blob
// (tournament id, gateway ids, free-text description).
type MetadataJSON struct {
	value string
}

// NewMetadataJSON validates a metadata string (defaulting to "{}" for empty inputs).
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = "{}"
	}
	if !json.Valid([]byte(normalized)) {
		return MetadataJSON{}, fmt.Errorf("%w: must be valid json", ErrInvalidMetadataJSON)
	}
	return MetadataJSON{value: normalized}, nil
}

// String returns the normalized JSON blob.
func (metadata MetadataJSON) String() string {
	return metadata.value
}

// TransactionType enumerates balance-affecting event kinds.
type TransactionType string

const (
	TypeDeposit           TransactionType = "deposit"
	TypeWithdrawal        TransactionType = "withdrawal"
	TypeTournamentEntry   TransactionType = "tournament_entry"
	TypeTournamentWin     TransactionType = "tournament_win"
	TypeReferralBonus     TransactionType = "referral_bonus"
	TypeAchievementReward TransactionType = "achievement_reward"
	TypeAdminAdjustment   TransactionType = "admin_adjustment"
	TypeRefund            TransactionType = "refund"
)

// ParseTransactionType validates a raw transaction type.
func ParseTransactionType(raw string) (TransactionType, error) {
	transactionType := TransactionType(strings.TrimSpace(raw))
	switch transactionType {
	case TypeDeposit, TypeWithdrawal, TypeTournamentEntry, TypeTournamentWin,
		TypeReferralBonus, TypeAchievementReward, TypeAdminAdjustment, TypeRefund:
		return transactionType, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTransactionType, raw)
}

// String returns the canonical type name.
func (transactionType TransactionType) String() string {
	return string(transactionType)
}

// TransactionStatus defines the transaction lifecycle. Completed and failed
// are terminal.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// ParseTransactionStatus validates a raw status.
func ParseTransactionStatus(raw string) (TransactionStatus, error) {
	status := TransactionStatus(strings.TrimSpace(raw))
	switch status {
	case StatusPending, StatusCompleted, StatusFailed:
		return status, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// String returns the canonical status name.
func (status TransactionStatus) String() string {
	return string(status)
}

// Transaction is a single immutable line in the ledger.
type Transaction struct {
	ID                 TransactionID
	AccountID          AccountID
	Type               TransactionType
	AmountCents        AmountCents
	Status             TransactionStatus
	BalanceBeforeCents AmountCents
	BalanceAfterCents  AmountCents
	IdempotencyKey     *IdempotencyKey
	Metadata           MetadataJSON
	CreatedUnixUTC     int64
}

// Account is the per-user stored balance plus reporting counters. The
// counters are derived views; BalanceCents is the source of truth.
type Account struct {
	ID                    AccountID
	BalanceCents          AmountCents
	TotalDepositsCents    AmountCents
	TotalWithdrawalsCents AmountCents
	PendingCents          AmountCents
	Version               int64
	CreatedUnixUTC        int64
}

// BalanceUpdate describes a compare-and-swap balance write. The store must
// apply it only when the stored version still equals ExpectedVersion, bump
// the version, and report ErrVersionConflict otherwise.
type BalanceUpdate struct {
	AccountID             AccountID
	ExpectedVersion       int64
	NewBalanceCents       AmountCents
	DepositsDeltaCents    AmountCents
	WithdrawalsDeltaCents AmountCents
}

// TransactionFilter narrows and pages a history listing.
type TransactionFilter struct {
	Page        int
	Limit       int
	Type        *TransactionType
	Status      *TransactionStatus
	FromUnixUTC int64
	ToUnixUTC   int64
}

// TransactionPage is one newest-first page of ledger history.
type TransactionPage struct {
	Transactions []Transaction
	Page         int
	Limit        int
	TotalCount   int64
}

// Receipt is the result of a committed Credit or Debit.
type Receipt struct {
	Transaction  Transaction
	BalanceCents AmountCents
}

// Store is the persistence contract used by Service.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	CreateAccount(ctx context.Context, account Account) error
	GetAccount(ctx context.Context, accountID AccountID) (Account, error)
	UpdateBalance(ctx context.Context, update BalanceUpdate) error
	InsertTransaction(ctx context.Context, transaction Transaction) error
	FindTransactionByIdempotencyKey(ctx context.Context, accountID AccountID, key IdempotencyKey) (Transaction, error)
	ListTransactions(ctx context.Context, accountID AccountID, filter TransactionFilter) (TransactionPage, error)
}
