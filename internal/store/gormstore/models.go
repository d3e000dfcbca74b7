package gormstore

import (
	"time"

	"gorm.io/datatypes"
)

// Account represents the wallet_accounts table. Version is the
// compare-and-swap token guarding every balance write.
type Account struct {
	AccountID             string    `gorm:"primaryKey"`
	BalanceCents          int64     `gorm:"not null"`
	TotalDepositsCents    int64     `gorm:"not null"`
	TotalWithdrawalsCents int64     `gorm:"not null"`
	PendingCents          int64     `gorm:"not null"`
	Version               int64     `gorm:"not null"`
	CreatedAt             time.Time `gorm:"not null"`
}

func (Account) TableName() string { return "wallet_accounts" }

// WalletTransaction mirrors the wallet_transactions table. Rows are
// append-only; nothing updates them after insert.
type WalletTransaction struct {
	TransactionID      string         `gorm:"primaryKey"`
	AccountID          string         `gorm:"not null;index:idx_wallet_tx_account_created,priority:1;index:uniq_wallet_tx_account_idem,unique,priority:1"`
	Type               string         `gorm:"not null"`
	AmountCents        int64          `gorm:"not null"`
	Status             string         `gorm:"not null"`
	BalanceBeforeCents int64          `gorm:"not null"`
	BalanceAfterCents  int64          `gorm:"not null"`
	IdempotencyKey     *string        `gorm:"index:uniq_wallet_tx_account_idem,unique,priority:2"`
	Metadata           datatypes.JSON `gorm:"not null"`
	CreatedAt          time.Time      `gorm:"not null;index:idx_wallet_tx_account_created,priority:2"`
}

func (WalletTransaction) TableName() string { return "wallet_transactions" }
