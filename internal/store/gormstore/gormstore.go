package gormstore

import (
	"context"
	"errors"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/openarena/wallet/pkg/wallet"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultMetadataJSON     = "{}"
	pgUniqueViolationCode   = "23505"
	sqliteConstraintCode    = 19
	errorOperationStore     = "store"
	errorSubjectAccount     = "account"
	errorSubjectTransaction = "transaction"
	errorCodeCreate         = "create"
	errorCodeDuplicate      = "duplicate"
	errorCodeGet            = "get"
	errorCodeInsert         = "insert"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeCount          = "count"
	errorCodeUpdate         = "update"
)

// Store implements wallet.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the wallet tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Account{}, &WalletTransaction{})
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore wallet.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) CreateAccount(ctx context.Context, account wallet.Account) error {
	model := Account{
		AccountID:             account.ID.String(),
		BalanceCents:          account.BalanceCents.Int64(),
		TotalDepositsCents:    account.TotalDepositsCents.Int64(),
		TotalWithdrawalsCents: account.TotalWithdrawalsCents.Int64(),
		PendingCents:          account.PendingCents.Int64(),
		Version:               account.Version,
		CreatedAt:             time.Unix(account.CreatedUnixUTC, 0).UTC(),
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectAccount, errorCodeDuplicate, wallet.ErrAccountExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetAccount(ctx context.Context, accountID wallet.AccountID) (wallet.Account, error) {
	var model Account
	err := store.db.WithContext(ctx).
		Where("account_id = ?", accountID.String()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return wallet.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, wallet.ErrAccountNotFound)
		}
		return wallet.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, err)
	}
	account, err := mapAccount(model)
	if err != nil {
		return wallet.Account{}, wrapStoreError(errorSubjectAccount, errorCodeInvalid, err)
	}
	return account, nil
}

// UpdateBalance applies the compare-and-swap write: the row changes only if
// the stored version still matches, and the version advances with it.
func (store *Store) UpdateBalance(ctx context.Context, update wallet.BalanceUpdate) error {
	result := store.db.WithContext(ctx).
		Model(&Account{}).
		Where("account_id = ? AND version = ?", update.AccountID.String(), update.ExpectedVersion).
		Updates(map[string]interface{}{
			"balance_cents":           update.NewBalanceCents.Int64(),
			"total_deposits_cents":    gorm.Expr("total_deposits_cents + ?", update.DepositsDeltaCents.Int64()),
			"total_withdrawals_cents": gorm.Expr("total_withdrawals_cents + ?", update.WithdrawalsDeltaCents.Int64()),
			"version":                 gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, wallet.ErrVersionConflict)
	}
	return nil
}

func (store *Store) InsertTransaction(ctx context.Context, transaction wallet.Transaction) error {
	var idempotencyKey *string
	if transaction.IdempotencyKey != nil {
		value := transaction.IdempotencyKey.String()
		idempotencyKey = &value
	}
	model := WalletTransaction{
		TransactionID:      transaction.ID.String(),
		AccountID:          transaction.AccountID.String(),
		Type:               transaction.Type.String(),
		AmountCents:        transaction.AmountCents.Int64(),
		Status:             transaction.Status.String(),
		BalanceBeforeCents: transaction.BalanceBeforeCents.Int64(),
		BalanceAfterCents:  transaction.BalanceAfterCents.Int64(),
		IdempotencyKey:     idempotencyKey,
		Metadata:           datatypesJSON(transaction.Metadata.String()),
		CreatedAt:          time.Unix(transaction.CreatedUnixUTC, 0).UTC(),
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectTransaction, errorCodeDuplicate, wallet.ErrDuplicateIdempotencyKey)
	}
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) FindTransactionByIdempotencyKey(ctx context.Context, accountID wallet.AccountID, key wallet.IdempotencyKey) (wallet.Transaction, error) {
	var model WalletTransaction
	err := store.db.WithContext(ctx).
		Where("account_id = ? AND idempotency_key = ?", accountID.String(), key.String()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return wallet.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, wallet.ErrTransactionNotFound)
		}
		return wallet.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeGet, err)
	}
	transaction, err := mapTransaction(model)
	if err != nil {
		return wallet.Transaction{}, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
	}
	return transaction, nil
}

func (store *Store) ListTransactions(ctx context.Context, accountID wallet.AccountID, filter wallet.TransactionFilter) (wallet.TransactionPage, error) {
	query := store.db.WithContext(ctx).
		Model(&WalletTransaction{}).
		Where("account_id = ?", accountID.String())
	if filter.Type != nil {
		query = query.Where("type = ?", filter.Type.String())
	}
	if filter.Status != nil {
		query = query.Where("status = ?", filter.Status.String())
	}
	if filter.FromUnixUTC != 0 {
		query = query.Where("created_at >= ?", time.Unix(filter.FromUnixUTC, 0).UTC())
	}
	if filter.ToUnixUTC != 0 {
		query = query.Where("created_at <= ?", time.Unix(filter.ToUnixUTC, 0).UTC())
	}

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return wallet.TransactionPage{}, wrapStoreError(errorSubjectTransaction, errorCodeCount, err)
	}

	var rows []WalletTransaction
	err := query.
		Order("created_at DESC, transaction_id DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&rows).Error
	if err != nil {
		return wallet.TransactionPage{}, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}

	transactions := make([]wallet.Transaction, 0, len(rows))
	for _, row := range rows {
		transaction, err := mapTransaction(row)
		if err != nil {
			return wallet.TransactionPage{}, wrapStoreError(errorSubjectTransaction, errorCodeInvalid, err)
		}
		transactions = append(transactions, transaction)
	}
	return wallet.TransactionPage{
		Transactions: transactions,
		Page:         filter.Page,
		Limit:        filter.Limit,
		TotalCount:   totalCount,
	}, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return wallet.WrapError(errorOperationStore, subject, code, err)
}

func mapAccount(model Account) (wallet.Account, error) {
	accountID, err := wallet.NewAccountID(model.AccountID)
	if err != nil {
		return wallet.Account{}, err
	}
	return wallet.Account{
		ID:                    accountID,
		BalanceCents:          wallet.AmountCents(model.BalanceCents),
		TotalDepositsCents:    wallet.AmountCents(model.TotalDepositsCents),
		TotalWithdrawalsCents: wallet.AmountCents(model.TotalWithdrawalsCents),
		PendingCents:          wallet.AmountCents(model.PendingCents),
		Version:               model.Version,
		CreatedUnixUTC:        model.CreatedAt.Unix(),
	}, nil
}

func mapTransaction(row WalletTransaction) (wallet.Transaction, error) {
	transactionID, err := wallet.NewTransactionID(row.TransactionID)
	if err != nil {
		return wallet.Transaction{}, err
	}
	accountID, err := wallet.NewAccountID(row.AccountID)
	if err != nil {
		return wallet.Transaction{}, err
	}
	transactionType, err := wallet.ParseTransactionType(row.Type)
	if err != nil {
		return wallet.Transaction{}, err
	}
	status, err := wallet.ParseTransactionStatus(row.Status)
	if err != nil {
		return wallet.Transaction{}, err
	}
	var idempotencyKey *wallet.IdempotencyKey
	if row.IdempotencyKey != nil {
		parsedKey, err := wallet.NewIdempotencyKey(*row.IdempotencyKey)
		if err != nil {
			return wallet.Transaction{}, err
		}
		idempotencyKey = &parsedKey
	}
	metadata, err := wallet.NewMetadataJSON(string(row.Metadata))
	if err != nil {
		return wallet.Transaction{}, err
	}
	return wallet.Transaction{
		ID:                 transactionID,
		AccountID:          accountID,
		Type:               transactionType,
		AmountCents:        wallet.AmountCents(row.AmountCents),
		Status:             status,
		BalanceBeforeCents: wallet.AmountCents(row.BalanceBeforeCents),
		BalanceAfterCents:  wallet.AmountCents(row.BalanceAfterCents),
		IdempotencyKey:     idempotencyKey,
		Metadata:           metadata,
		CreatedUnixUTC:     row.CreatedAt.Unix(),
	}, nil
}

func datatypesJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return datatypes.JSON([]byte(raw))
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
